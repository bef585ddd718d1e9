// Package ratelimit provides issuance pacing and in-flight backpressure for
// load generation.
package ratelimit

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"simbench/internal/core"
)

// minQPS bounds the limit from below; a slower rate overflows delay
// arithmetic.
const minQPS = 1e-6

// RateController paces issuance so the long-run rate converges to a target
// QPS. Idle time earns at most burst operations of credit, so a caller
// that falls behind catches up by no more than burst at once.
type RateController struct {
	limiter *rate.Limiter
	qps     float64
	clock   core.Clock

	// mu keeps reservations in clock order.
	mu     sync.Mutex
	issued atomic.Int64
}

// DefaultBurst is the burst allowance used when none is configured:
// a tenth of a second's worth of operations, at least one.
func DefaultBurst(qps float64) int {
	return max(1, int(math.Ceil(qps/10)))
}

// NewRateController creates a controller with a full burst of credit. A
// non-positive burst selects DefaultBurst. A non-positive qps disables
// pacing. A nil clock uses the real clock.
func NewRateController(qps float64, burst int, clock core.Clock) *RateController {
	if clock == nil {
		clock = core.RealClock{}
	}
	if burst <= 0 {
		burst = DefaultBurst(qps)
	}
	limit := rate.Inf
	if qps > 0 {
		limit = rate.Limit(math.Max(qps, minQPS))
	}
	return &RateController{limiter: rate.NewLimiter(limit, burst), qps: qps, clock: clock}
}

func (r *RateController) reserve() (*rate.Reservation, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock.Now()
	res := r.limiter.ReserveN(now, 1)
	return res, res.DelayFrom(now)
}

// Reserve claims the next issuance slot without blocking and returns how
// long the caller must wait before using it.
func (r *RateController) Reserve() time.Duration {
	_, delay := r.reserve()
	r.issued.Add(1)
	return delay
}

// Wait claims the next issuance slot and blocks until it is due or ctx is
// done. A slot abandoned because ctx ended is handed back.
func (r *RateController) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res, delay := r.reserve()
	if delay <= 0 {
		r.issued.Add(1)
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		r.mu.Lock()
		res.CancelAt(r.clock.Now())
		r.mu.Unlock()
		return ctx.Err()
	case <-timer.C:
		r.issued.Add(1)
		return nil
	}
}

// Issued reports how many slots have been granted.
func (r *RateController) Issued() int64 { return r.issued.Load() }

// QPS returns the target rate.
func (r *RateController) QPS() float64 { return r.qps }

// Burst returns the burst allowance.
func (r *RateController) Burst() int { return r.limiter.Burst() }
