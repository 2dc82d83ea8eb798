package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"report-api/internal/domain"

	"github.com/go-redis/redis/v8"
)

const (
	keyPrefix        = "report_api"
	reportKeyPrefix  = keyPrefix + ":report:"
	activeIndexKey   = keyPrefix + ":reports:active"
	expiredIndexKey  = keyPrefix + ":reports:expired"
	paymentKeyPrefix = keyPrefix + ":payment:"
	paymentRefPrefix = keyPrefix + ":payment_ref:"
	maxWatchRetries  = 3
)

// markExpiredScript move para expired, numa única execução atômica, os ids que
// ainda estão no índice de ativos. Ids já expirados são ignorados.
var markExpiredScript = redis.NewScript(`
	local active = KEYS[1]
	local expired = KEYS[2]
	local prefix = ARGV[1]
	local updatedAt = ARGV[2]
	local changed = 0

	for i = 3, #ARGV do
		local id = ARGV[i]
		local score = redis.call('ZSCORE', active, id)
		if score then
			local key = prefix .. id
			local current = redis.call('GET', key)
			redis.call('ZREM', active, id)
			if current then
				local data = cjson.decode(current)
				data.status = 'expired'
				data.updated_at = updatedAt
				redis.call('SET', key, cjson.encode(data))
				redis.call('ZADD', expired, score, id)
				changed = changed + 1
			end
		end
	end

	return changed
`)

// deleteExpiredScript remove definitivamente os ids que ainda estão no índice de expirados
var deleteExpiredScript = redis.NewScript(`
	local expired = KEYS[1]
	local prefix = ARGV[1]
	local removed = 0

	for i = 2, #ARGV do
		local id = ARGV[i]
		if redis.call('ZSCORE', expired, id) then
			redis.call('DEL', prefix .. id)
			redis.call('ZREM', expired, id)
			removed = removed + 1
		end
	end

	return removed
`)

// RedisStorage implementa domain.ReportStore e domain.PaymentStore usando Redis.
// Relatórios ficam em JSON; dois sorted sets (ativos e expirados) indexam por expires_at.
type RedisStorage struct {
	client *redis.Client
	logger domain.Logger
}

// NewRedisStorage cria uma nova instância do RedisStorage
func NewRedisStorage(host, port, password string, db int, logger domain.Logger) (*RedisStorage, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: password,
		DB:       db,

		PoolSize:     20,
		MinIdleConns: 5,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
		IdleTimeout:  5 * time.Minute,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if logger != nil {
		logger.Info("Redis connection established", map[string]interface{}{
			"host": host,
			"port": port,
			"db":   db,
		})
	}

	return NewRedisStorageFromClient(rdb, logger), nil
}

// NewRedisStorageFromClient reaproveita um cliente já configurado
func NewRedisStorageFromClient(client *redis.Client, logger domain.Logger) *RedisStorage {
	return &RedisStorage{
		client: client,
		logger: logger,
	}
}

// Create persiste um novo relatório e o indexa como ativo
func (r *RedisStorage) Create(ctx context.Context, report *domain.Report) error {
	start := time.Now()
	key := reportKeyPrefix + report.ID

	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report %s: %w", report.ID, err)
	}

	err = r.withWatch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return fmt.Errorf("report %s already exists", report.ID)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.ZAdd(ctx, indexFor(report.Status), &redis.Z{
				Score:  float64(report.ExpiresAt.UnixMilli()),
				Member: report.ID,
			})
			return nil
		})
		return err
	}, key)

	r.logStorageOperation("CREATE", key, err == nil, sinceMs(start), err)
	return err
}

// Get recupera um relatório pelo ID
func (r *RedisStorage) Get(ctx context.Context, id string) (*domain.Report, error) {
	start := time.Now()
	key := reportKeyPrefix + id

	report, err := r.getReport(ctx, r.client, key)
	if err != nil && !errors.Is(err, domain.ErrReportNotFound) {
		r.logStorageOperation("GET", key, false, sinceMs(start), err)
		return nil, err
	}

	r.logStorageOperation("GET", key, true, sinceMs(start), nil)
	return report, err
}

// UpdateStatus troca o status sob WATCH (compare-and-set) e move o id entre os índices
func (r *RedisStorage) UpdateStatus(ctx context.Context, id string, from, to domain.ReportStatus, update domain.StatusUpdate) error {
	start := time.Now()
	key := reportKeyPrefix + id

	err := r.withWatch(ctx, func(tx *redis.Tx) error {
		report, err := r.getReport(ctx, tx, key)
		if err != nil {
			return err
		}
		if report.Status != from {
			return staleStatus(id, string(from), string(report.Status))
		}

		applyStatusUpdate(report, to, update)
		data, err := json.Marshal(report)
		if err != nil {
			return fmt.Errorf("failed to marshal report %s: %w", id, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.ZRem(ctx, activeIndexKey, id)
			pipe.ZRem(ctx, expiredIndexKey, id)
			pipe.ZAdd(ctx, indexFor(to), &redis.Z{
				Score:  float64(report.ExpiresAt.UnixMilli()),
				Member: id,
			})
			return nil
		})
		return err
	}, key)

	r.logStorageOperation("UPDATE_STATUS", key, err == nil, sinceMs(start), err)
	return err
}

// SelectActiveExpired lista relatórios ativos com expires_at anterior a now
func (r *RedisStorage) SelectActiveExpired(ctx context.Context, now time.Time) ([]*domain.Report, error) {
	return r.selectBefore(ctx, "SELECT_ACTIVE_EXPIRED", activeIndexKey, now)
}

// SelectExpiredOlderThan lista relatórios expired com expires_at anterior ao cutoff
func (r *RedisStorage) SelectExpiredOlderThan(ctx context.Context, cutoff time.Time) ([]*domain.Report, error) {
	return r.selectBefore(ctx, "SELECT_EXPIRED_OLDER_THAN", expiredIndexKey, cutoff)
}

// MarkExpired executa a transição em lote via script Lua (atômico no Redis)
func (r *RedisStorage) MarkExpired(ctx context.Context, ids []string, at time.Time) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	start := time.Now()

	args := make([]interface{}, 0, len(ids)+2)
	args = append(args, reportKeyPrefix, at.UTC().Format(time.RFC3339Nano))
	for _, id := range ids {
		args = append(args, id)
	}

	changed, err := markExpiredScript.Run(ctx, r.client, []string{activeIndexKey, expiredIndexKey}, args...).Int()
	if err != nil {
		r.logStorageOperation("MARK_EXPIRED", activeIndexKey, false, sinceMs(start), err)
		return 0, fmt.Errorf("failed to mark reports expired: %w", err)
	}

	r.logStorageOperation("MARK_EXPIRED", activeIndexKey, true, sinceMs(start), nil)
	return changed, nil
}

// DeleteExpired remove em lote via script Lua (atômico no Redis)
func (r *RedisStorage) DeleteExpired(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	start := time.Now()

	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, reportKeyPrefix)
	for _, id := range ids {
		args = append(args, id)
	}

	removed, err := deleteExpiredScript.Run(ctx, r.client, []string{expiredIndexKey}, args...).Int()
	if err != nil {
		r.logStorageOperation("DELETE_EXPIRED", expiredIndexKey, false, sinceMs(start), err)
		return 0, fmt.Errorf("failed to delete expired reports: %w", err)
	}

	r.logStorageOperation("DELETE_EXPIRED", expiredIndexKey, true, sinceMs(start), nil)
	return removed, nil
}

// CreatePayment persiste um pagamento e o índice pela referência do provedor
func (r *RedisStorage) CreatePayment(ctx context.Context, payment *domain.Payment) error {
	start := time.Now()
	key := paymentKeyPrefix + payment.ID
	refKey := paymentRefPrefix + payment.ProviderRef

	data, err := json.Marshal(payment)
	if err != nil {
		return fmt.Errorf("failed to marshal payment %s: %w", payment.ID, err)
	}

	err = r.withWatch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key, refKey).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return fmt.Errorf("payment %s already exists", payment.ID)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.Set(ctx, refKey, payment.ID, 0)
			return nil
		})
		return err
	}, key, refKey)

	r.logStorageOperation("CREATE_PAYMENT", key, err == nil, sinceMs(start), err)
	return err
}

// GetPayment recupera um pagamento pelo ID
func (r *RedisStorage) GetPayment(ctx context.Context, id string) (*domain.Payment, error) {
	return r.getPayment(ctx, r.client, paymentKeyPrefix+id)
}

// GetPaymentByProviderRef recupera um pagamento pela referência do provedor
func (r *RedisStorage) GetPaymentByProviderRef(ctx context.Context, ref string) (*domain.Payment, error) {
	id, err := r.client.Get(ctx, paymentRefPrefix+ref).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to resolve payment ref %s: %w", ref, err)
	}
	return r.GetPayment(ctx, id)
}

// UpdatePaymentStatus troca o status de um pagamento sob WATCH (compare-and-set)
func (r *RedisStorage) UpdatePaymentStatus(ctx context.Context, id string, from, to domain.PaymentStatus, at time.Time) error {
	start := time.Now()
	key := paymentKeyPrefix + id

	err := r.withWatch(ctx, func(tx *redis.Tx) error {
		payment, err := r.getPayment(ctx, tx, key)
		if err != nil {
			return err
		}
		if payment.Status != from {
			return staleStatus(id, string(from), string(payment.Status))
		}
		payment.Status = to
		payment.UpdatedAt = at

		data, err := json.Marshal(payment)
		if err != nil {
			return fmt.Errorf("failed to marshal payment %s: %w", id, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}, key)

	r.logStorageOperation("UPDATE_PAYMENT_STATUS", key, err == nil, sinceMs(start), err)
	return err
}

// Health verifica se o storage está saudável
func (r *RedisStorage) Health(ctx context.Context) error {
	start := time.Now()

	if err := r.client.Ping(ctx).Err(); err != nil {
		r.logStorageOperation("HEALTH", "ping", false, sinceMs(start), err)
		return fmt.Errorf("Redis health check failed: %w", err)
	}

	r.logStorageOperation("HEALTH", "ping", true, sinceMs(start), nil)
	return nil
}

// Close fecha a conexão com o storage
func (r *RedisStorage) Close() error {
	if err := r.client.Close(); err != nil {
		if r.logger != nil {
			r.logger.Error("Failed to close Redis connection", err, nil)
		}
		return err
	}
	if r.logger != nil {
		r.logger.Info("Redis connection closed", nil)
	}
	return nil
}

// withWatch executa fn numa transação otimista, repetindo em caso de conflito
func (r *RedisStorage) withWatch(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	var err error
	for attempt := 0; attempt < maxWatchRetries; attempt++ {
		err = r.client.Watch(ctx, fn, keys...)
		if err != redis.TxFailedErr {
			return err
		}
	}
	return fmt.Errorf("transaction on %v failed after %d attempts: %w", keys, maxWatchRetries, err)
}

func (r *RedisStorage) selectBefore(ctx context.Context, operation, index string, before time.Time) ([]*domain.Report, error) {
	start := time.Now()

	ids, err := r.client.ZRangeByScore(ctx, index, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(before.UnixMilli(), 10),
	}).Result()
	if err != nil {
		r.logStorageOperation(operation, index, false, sinceMs(start), err)
		return nil, fmt.Errorf("failed to query %s: %w", index, err)
	}
	if len(ids) == 0 {
		r.logStorageOperation(operation, index, true, sinceMs(start), nil)
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = reportKeyPrefix + id
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		r.logStorageOperation(operation, index, false, sinceMs(start), err)
		return nil, fmt.Errorf("failed to load reports from %s: %w", index, err)
	}

	reports := make([]*domain.Report, 0, len(values))
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue // índice aponta para chave já removida
		}
		var report domain.Report
		if err := json.Unmarshal([]byte(raw), &report); err != nil {
			r.logStorageOperation(operation, keys[i], false, sinceMs(start), err)
			return nil, fmt.Errorf("failed to unmarshal report %s: %w", keys[i], err)
		}
		reports = append(reports, &report)
	}

	r.logStorageOperation(operation, index, true, sinceMs(start), nil)
	return reports, nil
}

func (r *RedisStorage) getReport(ctx context.Context, c redis.Cmdable, key string) (*domain.Report, error) {
	raw, err := c.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, domain.ErrReportNotFound
		}
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}

	var report domain.Report
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report for key %s: %w", key, err)
	}
	return &report, nil
}

func (r *RedisStorage) getPayment(ctx context.Context, c redis.Cmdable, key string) (*domain.Payment, error) {
	raw, err := c.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}

	var payment domain.Payment
	if err := json.Unmarshal([]byte(raw), &payment); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payment for key %s: %w", key, err)
	}
	return &payment, nil
}

// logStorageOperation registra operações de storage
func (r *RedisStorage) logStorageOperation(operation, key string, success bool, latency float64, err error) {
	if r.logger == nil {
		return
	}
	if success {
		r.logger.Debug("Storage operation completed", map[string]interface{}{
			"operation": operation,
			"key":       key,
			"latency":   latency,
		})
	} else {
		r.logger.Error("Storage operation failed", err, map[string]interface{}{
			"operation": operation,
			"key":       key,
			"latency":   latency,
		})
	}
}

func indexFor(status domain.ReportStatus) string {
	if status == domain.ReportExpired {
		return expiredIndexKey
	}
	return activeIndexKey
}
