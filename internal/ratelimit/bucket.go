// Package ratelimit implementa o token bucket por identificador e o registro
// em memória que o middleware HTTP consulta a cada requisição.
//
// O saldo de tokens é contínuo: a cada consumo o bucket é reabastecido com
// elapsed * refillRate, limitado à capacidade. O estado é local ao processo e
// se perde no restart; o limite é uma proteção por instância, não uma cota
// global distribuída.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"report-api/internal/domain"
)

// TokenBucket é um contador de rate limit com reabastecimento contínuo.
// A aritmética de refill é delegada a rate.Limiter; o bucket acrescenta o
// relógio injetável e o registro de último uso para a varredura de ociosos.
type TokenBucket struct {
	mu         sync.Mutex
	limiter    *rate.Limiter
	capacity   int
	refillRate float64
	lastRefill time.Time
	clock      domain.Clock
}

// NewTokenBucket cria um bucket cheio.
// refillRate é em tokens por segundo (capacity/60 para "N por minuto").
func NewTokenBucket(capacity int, refillRate float64, clock domain.Clock) *TokenBucket {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if capacity <= 0 || refillRate <= 0 {
		panic("ratelimit: capacity and refill rate must be positive")
	}
	return &TokenBucket{
		limiter:    rate.NewLimiter(rate.Limit(refillRate), capacity),
		capacity:   capacity,
		refillRate: refillRate,
		lastRefill: clock.Now(),
		clock:      clock,
	}
}

// Consume reabastece o saldo e, se houver n tokens, debita e admite
func (b *TokenBucket) Consume(n int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock.Now()
	b.lastRefill = now
	return b.limiter.AllowN(now, n)
}

// WaitTime retorna quanto falta para haver n tokens. Não altera o estado.
func (b *TokenBucket) WaitTime(n int) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	missing := float64(n) - b.limiter.TokensAt(b.clock.Now())
	if missing <= 0 {
		return 0
	}
	return time.Duration(missing / b.refillRate * float64(time.Second))
}

// Tokens retorna o saldo atual (com refill aplicado até agora)
func (b *TokenBucket) Tokens() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	// rate.Limiter admite déficits menores que 1ns de refill; não expor saldo negativo
	if tokens := b.limiter.TokensAt(b.clock.Now()); tokens > 0 {
		return tokens
	}
	return 0
}

// Capacity retorna o teto de tokens
func (b *TokenBucket) Capacity() int {
	return b.capacity
}

// RefillRate retorna tokens adicionados por segundo
func (b *TokenBucket) RefillRate() float64 {
	return b.refillRate
}

// ResetAfter é o tempo para encher o bucket a partir de zero (capacity/refillRate)
func (b *TokenBucket) ResetAfter() time.Duration {
	return time.Duration(float64(b.capacity) / b.refillRate * float64(time.Second))
}

// LastRefill retorna o instante do último consumo
func (b *TokenBucket) LastRefill() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastRefill
}

// idle indica se o bucket está cheio e sem uso há pelo menos idleFor
func (b *TokenBucket) idle(now time.Time, idleFor time.Duration) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if now.Sub(b.lastRefill) < idleFor {
		return false
	}
	return b.limiter.TokensAt(now) >= float64(b.capacity)
}
