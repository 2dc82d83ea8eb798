package ratelimit

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucket_StartsFull(t *testing.T) {
	clock := newManualClock()
	bucket := NewTokenBucket(100, 100.0/60.0, clock)

	assert.Equal(t, 100.0, bucket.Tokens())
	assert.Equal(t, 100, bucket.Capacity())
	assert.InDelta(t, 100.0/60.0, bucket.RefillRate(), 1e-12)
	assert.Equal(t, 60*time.Second, bucket.ResetAfter())
}

func TestTokenBucket_DepletionAndRefill(t *testing.T) {
	clock := newManualClock()
	bucket := NewTokenBucket(100, 100.0/60.0, clock)

	for i := 0; i < 100; i++ {
		require.True(t, bucket.Consume(1), "request %d should be admitted", i+1)
	}
	assert.False(t, bucket.Consume(1))

	clock.Advance(590 * time.Millisecond)
	assert.False(t, bucket.Consume(1), "less than one token regenerated")

	clock.Advance(20 * time.Millisecond)
	assert.True(t, bucket.Consume(1), "one token regenerated after 0.6s")
	assert.False(t, bucket.Consume(1))
}

func TestTokenBucket_WaitTime(t *testing.T) {
	clock := newManualClock()
	rate := 100.0 / 60.0
	bucket := NewTokenBucket(100, rate, clock)

	assert.Equal(t, time.Duration(0), bucket.WaitTime(1))

	for i := 0; i < 100; i++ {
		bucket.Consume(1)
	}

	before := bucket.Tokens()
	wait := bucket.WaitTime(1)
	assert.InDelta(t, 1/rate, wait.Seconds(), 1e-6)
	assert.InDelta(t, 5/rate, bucket.WaitTime(5).Seconds(), 1e-6)

	// WaitTime não altera o saldo
	assert.Equal(t, before, bucket.Tokens())
	assert.Equal(t, wait, bucket.WaitTime(1))
}

func TestTokenBucket_ConsumeMoreThanCapacity(t *testing.T) {
	bucket := NewTokenBucket(10, 1, newManualClock())

	assert.False(t, bucket.Consume(11))
	assert.True(t, bucket.Consume(10))
	assert.Equal(t, 0.0, bucket.Tokens())
}

func TestTokenBucket_NeverExceedsCapacity(t *testing.T) {
	clock := newManualClock()
	bucket := NewTokenBucket(10, 5, clock)

	bucket.Consume(3)
	clock.Advance(time.Hour)

	assert.Equal(t, 10.0, bucket.Tokens())
}

func TestTokenBucket_BalanceStaysInRange(t *testing.T) {
	clock := newManualClock()
	bucket := NewTokenBucket(20, 2, clock)
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 5000; i++ {
		clock.Advance(time.Duration(rng.Intn(1500)) * time.Millisecond)
		bucket.Consume(1 + rng.Intn(4))

		tokens := bucket.Tokens()
		require.GreaterOrEqual(t, tokens, 0.0)
		require.LessOrEqual(t, tokens, 20.0)
	}
}

func TestTokenBucket_LastRefillTracksConsume(t *testing.T) {
	clock := newManualClock()
	bucket := NewTokenBucket(5, 1, clock)
	start := clock.Now()

	clock.Advance(3 * time.Second)
	bucket.Consume(1)

	assert.Equal(t, start.Add(3*time.Second), bucket.LastRefill())
}

func TestNewTokenBucket_InvalidPolicyPanics(t *testing.T) {
	assert.Panics(t, func() { NewTokenBucket(0, 1, nil) })
	assert.Panics(t, func() { NewTokenBucket(10, 0, nil) })
}
