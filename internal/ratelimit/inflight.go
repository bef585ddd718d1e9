package ratelimit

import (
	"context"
	"math"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// InFlightLimiter caps the number of outstanding operations.
type InFlightLimiter struct {
	sem       *semaphore.Weighted
	capacity  int64
	current   atomic.Int64
	highWater atomic.Int64
}

// InFlightCapacity is ceil(targetQPS × ratio), at least one. The product
// is rounded to nine decimals first so float noise such as
// 100 × 0.07 = 7.000000000000001 does not claim an extra slot.
func InFlightCapacity(targetQPS, ratio float64) int {
	p := math.Round(targetQPS*ratio*1e9) / 1e9
	return max(1, int(math.Ceil(p)))
}

// NewInFlightLimiter sizes the limiter at InFlightCapacity(targetQPS, ratio).
func NewInFlightLimiter(targetQPS, ratio float64) *InFlightLimiter {
	return NewInFlightLimiterWithCapacity(InFlightCapacity(targetQPS, ratio))
}

func NewInFlightLimiterWithCapacity(capacity int) *InFlightLimiter {
	if capacity < 1 {
		capacity = 1
	}
	return &InFlightLimiter{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: int64(capacity),
	}
}

// Token is one slot of submission capacity.
type Token struct {
	limiter *InFlightLimiter
	once    sync.Once
}

// Acquire blocks until a slot is free or ctx is done. A ctx that is already
// done never acquires, even when a slot is free.
func (l *InFlightLimiter) Acquire(ctx context.Context) (*Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	n := l.current.Add(1)
	for {
		hw := l.highWater.Load()
		if n <= hw || l.highWater.CompareAndSwap(hw, n) {
			break
		}
	}
	return &Token{limiter: l}, nil
}

// Release returns the slot. Calling it more than once, or on a nil token,
// is a no-op.
func (t *Token) Release() {
	if t == nil {
		return
	}
	t.once.Do(func() {
		t.limiter.current.Add(-1)
		t.limiter.sem.Release(1)
	})
}

// Outstanding reports how many tokens are currently held.
func (l *InFlightLimiter) Outstanding() int { return int(l.current.Load()) }

// Capacity reports the maximum number of tokens.
func (l *InFlightLimiter) Capacity() int { return int(l.capacity) }

// HighWater reports the most tokens ever held at once.
func (l *InFlightLimiter) HighWater() int { return int(l.highWater.Load()) }
