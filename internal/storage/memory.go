package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"report-api/internal/domain"
)

// MemoryStorage implementa domain.ReportStore e domain.PaymentStore em memória.
// Cada operação em lote roda sob o mesmo lock, o que a torna atômica.
type MemoryStorage struct {
	reports     map[string]*domain.Report
	payments    map[string]*domain.Payment
	paymentRefs map[string]string // provider ref -> payment id
	mutex       sync.RWMutex
	logger      domain.Logger
}

// NewMemoryStorage cria uma nova instância do MemoryStorage
func NewMemoryStorage(logger domain.Logger) *MemoryStorage {
	storage := &MemoryStorage{
		reports:     make(map[string]*domain.Report),
		payments:    make(map[string]*domain.Payment),
		paymentRefs: make(map[string]string),
		logger:      logger,
	}

	if logger != nil {
		logger.Info("Memory storage initialized", nil)
	}

	return storage
}

// Create persiste um novo relatório
func (m *MemoryStorage) Create(ctx context.Context, report *domain.Report) error {
	start := time.Now()

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.reports[report.ID]; exists {
		err := fmt.Errorf("report %s already exists", report.ID)
		m.logStorageOperation("CREATE", report.ID, false, sinceMs(start), err)
		return err
	}

	reportCopy := *report
	m.reports[report.ID] = &reportCopy

	m.logStorageOperation("CREATE", report.ID, true, sinceMs(start), nil)
	return nil
}

// Get recupera um relatório pelo ID
func (m *MemoryStorage) Get(ctx context.Context, id string) (*domain.Report, error) {
	start := time.Now()

	m.mutex.RLock()
	defer m.mutex.RUnlock()

	report, exists := m.reports[id]
	if !exists {
		m.logStorageOperation("GET", id, true, sinceMs(start), nil)
		return nil, domain.ErrReportNotFound
	}

	// Cria cópia para evitar modificações concorrentes
	result := *report

	m.logStorageOperation("GET", id, true, sinceMs(start), nil)
	return &result, nil
}

// UpdateStatus troca o status de um relatório sob o lock de escrita (compare-and-set)
func (m *MemoryStorage) UpdateStatus(ctx context.Context, id string, from, to domain.ReportStatus, update domain.StatusUpdate) error {
	start := time.Now()

	m.mutex.Lock()
	defer m.mutex.Unlock()

	report, exists := m.reports[id]
	if !exists {
		m.logStorageOperation("UPDATE_STATUS", id, false, sinceMs(start), domain.ErrReportNotFound)
		return domain.ErrReportNotFound
	}
	if report.Status != from {
		err := staleStatus(id, string(from), string(report.Status))
		m.logStorageOperation("UPDATE_STATUS", id, false, sinceMs(start), err)
		return err
	}

	applyStatusUpdate(report, to, update)

	m.logStorageOperation("UPDATE_STATUS", id, true, sinceMs(start), nil)
	return nil
}

// SelectActiveExpired lista relatórios ativos com expires_at anterior a now
func (m *MemoryStorage) SelectActiveExpired(ctx context.Context, now time.Time) ([]*domain.Report, error) {
	return m.selectReports("SELECT_ACTIVE_EXPIRED", func(r *domain.Report) bool {
		return r.Status.IsActive() && r.ExpiresAt.Before(now)
	}), nil
}

// SelectExpiredOlderThan lista relatórios expired com expires_at anterior ao cutoff
func (m *MemoryStorage) SelectExpiredOlderThan(ctx context.Context, cutoff time.Time) ([]*domain.Report, error) {
	return m.selectReports("SELECT_EXPIRED_OLDER_THAN", func(r *domain.Report) bool {
		return r.Status == domain.ReportExpired && r.ExpiresAt.Before(cutoff)
	}), nil
}

// MarkExpired marca atomicamente como expired os relatórios que ainda estão ativos
func (m *MemoryStorage) MarkExpired(ctx context.Context, ids []string, at time.Time) (int, error) {
	start := time.Now()

	m.mutex.Lock()
	defer m.mutex.Unlock()

	changed := 0
	for _, id := range ids {
		report, exists := m.reports[id]
		if !exists || !report.Status.IsActive() {
			continue
		}
		report.Status = domain.ReportExpired
		report.UpdatedAt = at
		changed++
	}

	m.logStorageOperation("MARK_EXPIRED", fmt.Sprintf("%d ids", len(ids)), true, sinceMs(start), nil)
	return changed, nil
}

// DeleteExpired remove atomicamente os relatórios que ainda estão expired
func (m *MemoryStorage) DeleteExpired(ctx context.Context, ids []string) (int, error) {
	start := time.Now()

	m.mutex.Lock()
	defer m.mutex.Unlock()

	removed := 0
	for _, id := range ids {
		report, exists := m.reports[id]
		if !exists || report.Status != domain.ReportExpired {
			continue
		}
		delete(m.reports, id)
		removed++
	}

	m.logStorageOperation("DELETE_EXPIRED", fmt.Sprintf("%d ids", len(ids)), true, sinceMs(start), nil)
	return removed, nil
}

// CreatePayment persiste um novo pagamento
func (m *MemoryStorage) CreatePayment(ctx context.Context, payment *domain.Payment) error {
	start := time.Now()

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.payments[payment.ID]; exists {
		return fmt.Errorf("payment %s already exists", payment.ID)
	}
	if _, exists := m.paymentRefs[payment.ProviderRef]; exists {
		return fmt.Errorf("payment with provider ref %s already exists", payment.ProviderRef)
	}

	paymentCopy := *payment
	m.payments[payment.ID] = &paymentCopy
	m.paymentRefs[payment.ProviderRef] = payment.ID

	m.logStorageOperation("CREATE_PAYMENT", payment.ID, true, sinceMs(start), nil)
	return nil
}

// GetPayment recupera um pagamento pelo ID
func (m *MemoryStorage) GetPayment(ctx context.Context, id string) (*domain.Payment, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	payment, exists := m.payments[id]
	if !exists {
		return nil, domain.ErrPaymentNotFound
	}
	result := *payment
	return &result, nil
}

// GetPaymentByProviderRef recupera um pagamento pela referência do provedor
func (m *MemoryStorage) GetPaymentByProviderRef(ctx context.Context, ref string) (*domain.Payment, error) {
	m.mutex.RLock()
	id, exists := m.paymentRefs[ref]
	m.mutex.RUnlock()

	if !exists {
		return nil, domain.ErrPaymentNotFound
	}
	return m.GetPayment(ctx, id)
}

// UpdatePaymentStatus troca o status de um pagamento sob o lock de escrita (compare-and-set)
func (m *MemoryStorage) UpdatePaymentStatus(ctx context.Context, id string, from, to domain.PaymentStatus, at time.Time) error {
	start := time.Now()

	m.mutex.Lock()
	defer m.mutex.Unlock()

	payment, exists := m.payments[id]
	if !exists {
		return domain.ErrPaymentNotFound
	}
	if payment.Status != from {
		err := staleStatus(id, string(from), string(payment.Status))
		m.logStorageOperation("UPDATE_PAYMENT_STATUS", id, false, sinceMs(start), err)
		return err
	}
	payment.Status = to
	payment.UpdatedAt = at

	m.logStorageOperation("UPDATE_PAYMENT_STATUS", id, true, sinceMs(start), nil)
	return nil
}

// Health verifica se o storage está saudável
func (m *MemoryStorage) Health(ctx context.Context) error {
	m.mutex.RLock()
	reports := len(m.reports)
	payments := len(m.payments)
	m.mutex.RUnlock()

	if m.logger != nil {
		m.logger.Debug("Memory storage health check", map[string]interface{}{
			"reports":  reports,
			"payments": payments,
		})
	}
	return nil
}

// Close limpa os dados (no-op de conexão para memory)
func (m *MemoryStorage) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.reports = make(map[string]*domain.Report)
	m.payments = make(map[string]*domain.Payment)
	m.paymentRefs = make(map[string]string)

	if m.logger != nil {
		m.logger.Info("Memory storage closed", nil)
	}
	return nil
}

// GetStats retorna estatísticas do storage em memória
func (m *MemoryStorage) GetStats() map[string]interface{} {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return map[string]interface{}{
		"reports":  len(m.reports),
		"payments": len(m.payments),
		"type":     "memory",
	}
}

// selectReports retorna cópias, ordenadas por expires_at, dos relatórios que satisfazem match
func (m *MemoryStorage) selectReports(operation string, match func(*domain.Report) bool) []*domain.Report {
	start := time.Now()

	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var result []*domain.Report
	for _, report := range m.reports {
		if match(report) {
			reportCopy := *report
			result = append(result, &reportCopy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ExpiresAt.Before(result[j].ExpiresAt)
	})

	m.logStorageOperation(operation, fmt.Sprintf("%d rows", len(result)), true, sinceMs(start), nil)
	return result
}

// logStorageOperation registra operações de storage
func (m *MemoryStorage) logStorageOperation(operation, key string, success bool, latency float64, err error) {
	if m.logger == nil {
		return
	}

	if success {
		m.logger.Debug("Storage operation completed", map[string]interface{}{
			"operation": operation,
			"key":       key,
			"latency":   latency,
		})
	} else {
		m.logger.Error("Storage operation failed", err, map[string]interface{}{
			"operation": operation,
			"key":       key,
			"latency":   latency,
		})
	}
}

// applyStatusUpdate aplica status e campos opcionais; expires_at nunca é tocado
func applyStatusUpdate(report *domain.Report, status domain.ReportStatus, update domain.StatusUpdate) {
	report.Status = status
	if update.Content != "" {
		report.Content = update.Content
	}
	if update.Error != "" {
		report.Error = update.Error
	}
	if !update.At.IsZero() {
		report.UpdatedAt = update.At
	}
}

// staleStatus indica que o registro mudou desde a leitura feita por quem pediu a transição
func staleStatus(id, expected, current string) error {
	return fmt.Errorf("%w: %s is %s, expected %s", domain.ErrInvalidTransition, id, current, expected)
}

func sinceMs(start time.Time) float64 {
	return time.Since(start).Seconds() * 1000
}
