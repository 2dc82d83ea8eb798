package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"report-api/internal/domain"
)

const (
	// DefaultEvictionThreshold é o tamanho do registro a partir do qual a varredura remove buckets
	DefaultEvictionThreshold = 1000
	// DefaultIdleTimeout é o tempo mínimo sem uso para um bucket cheio ser removido
	DefaultIdleTimeout = 600 * time.Second

	shardCount = 32
)

// RegistryConfig contém a política aplicada a todos os buckets
type RegistryConfig struct {
	Capacity          int
	RefillRate        float64 // tokens por segundo
	EvictionThreshold int
	IdleTimeout       time.Duration
	Clock             domain.Clock
}

// Registry mapeia identificadores para buckets.
// O mapa é particionado por hash; o mutex do shard é mantido durante
// lookup+consume, então a varredura nunca remove um bucket em uso.
type Registry struct {
	cfg    RegistryConfig
	shards [shardCount]*shard
}

type shard struct {
	mu      sync.Mutex
	buckets map[string]*TokenBucket
}

// NewRegistry cria um registro vazio
func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.EvictionThreshold <= 0 {
		cfg.EvictionThreshold = DefaultEvictionThreshold
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = domain.SystemClock{}
	}

	r := &Registry{cfg: cfg}
	for i := range r.shards {
		r.shards[i] = &shard{buckets: make(map[string]*TokenBucket)}
	}
	return r
}

// Allow consome um token do bucket do identificador, criando-o se necessário
func (r *Registry) Allow(identifier string) *domain.RateLimitResult {
	s := r.shardFor(identifier)

	s.mu.Lock()
	defer s.mu.Unlock()

	bucket, ok := s.buckets[identifier]
	if !ok {
		bucket = NewTokenBucket(r.cfg.Capacity, r.cfg.RefillRate, r.cfg.Clock)
		s.buckets[identifier] = bucket
	}

	allowed := bucket.Consume(1)
	result := &domain.RateLimitResult{
		Allowed:    allowed,
		Identifier: identifier,
		Limit:      bucket.Capacity(),
		Remaining:  int(bucket.Tokens()),
		Reset:      bucket.ResetAfter(),
	}
	if !allowed {
		result.Remaining = 0
		result.RetryAfter = retryAfter(bucket.WaitTime(1))
	}
	return result
}

// retryAfter arredonda a espera para cima e soma 1s, evitando Retry-After: 0
func retryAfter(wait time.Duration) time.Duration {
	return time.Duration(math.Ceil(wait.Seconds())+1) * time.Second
}

// Len retorna o número de buckets registrados
func (r *Registry) Len() int {
	total := 0
	for _, s := range r.shards {
		s.mu.Lock()
		total += len(s.buckets)
		s.mu.Unlock()
	}
	return total
}

// Bucket retorna o bucket de um identificador, se existir
func (r *Registry) Bucket(identifier string) (*TokenBucket, bool) {
	s := r.shardFor(identifier)
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[identifier]
	return b, ok
}

// Sweep remove buckets cheios e ociosos, mas só quando o registro atingiu o limiar.
// Retorna quantos buckets foram removidos.
func (r *Registry) Sweep(now time.Time) int {
	if r.Len() < r.cfg.EvictionThreshold {
		return 0
	}

	removed := 0
	for _, s := range r.shards {
		s.mu.Lock()
		for id, b := range s.buckets {
			if b.idle(now, r.cfg.IdleTimeout) {
				delete(s.buckets, id)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// StartJanitor executa Sweep periodicamente até o contexto ser cancelado.
// onSweep recebe (removidos, restantes) após cada execução; pode ser nil.
func (r *Registry) StartJanitor(ctx context.Context, every time.Duration, onSweep func(removed, remaining int)) {
	if every <= 0 {
		return
	}

	ticker := time.NewTicker(every)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed := r.Sweep(r.cfg.Clock.Now())
				if onSweep != nil {
					onSweep(removed, r.Len())
				}
			}
		}
	}()
}

func (r *Registry) shardFor(identifier string) *shard {
	return r.shards[xxhash.Sum64String(identifier)%shardCount]
}
