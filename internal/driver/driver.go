// Package driver orchestrates a benchmark run: one worker pool per
// workload, a shared statistics aggregate and periodic snapshots.
package driver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"simbench/internal/collector"
	"simbench/internal/core"
	"simbench/internal/pool"
	"simbench/internal/workload"
)

// DefaultStatInterval is used when New is given a non-positive interval.
const DefaultStatInterval = time.Second

var (
	// ErrRunAborted is returned when the failure rate breaches the abort policy.
	ErrRunAborted  = errors.New("run aborted")
	ErrNoWorkloads = errors.New("no workloads to run")
)

// Driver runs workloads against a submitter.
type Driver struct {
	interval      time.Duration
	submitter     core.Submitter
	duration      time.Duration
	maxOperations int64
	abort         collector.AbortPolicy
	submitTimeout time.Duration
	clock         core.Clock
	logger        *zap.Logger
}

type Option func(*Driver)

// WithDuration stops the run after d.
func WithDuration(d time.Duration) Option {
	return func(dr *Driver) { dr.duration = d }
}

// WithMaxOperations stops the run after n operations in total across all
// workloads.
func WithMaxOperations(n int64) Option {
	return func(dr *Driver) { dr.maxOperations = n }
}

// WithAbortPolicy fails the run with ErrRunAborted once more than
// maxFailureRate of at least minSamples completions have failed.
func WithAbortPolicy(maxFailureRate float64, minSamples uint64) Option {
	return func(dr *Driver) {
		dr.abort = collector.AbortPolicy{MaxFailureRate: maxFailureRate, MinSamples: minSamples}
	}
}

// WithSubmitTimeout bounds each submission.
func WithSubmitTimeout(d time.Duration) Option {
	return func(dr *Driver) { dr.submitTimeout = d }
}

func WithClock(c core.Clock) Option {
	return func(dr *Driver) { dr.clock = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(dr *Driver) { dr.logger = l }
}

// New creates a driver that snapshots statistics every interval.
func New(interval time.Duration, submitter core.Submitter, opts ...Option) *Driver {
	if interval <= 0 {
		interval = DefaultStatInterval
	}
	d := &Driver{
		interval:  interval,
		submitter: submitter,
		clock:     core.RealClock{},
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run drives every workload concurrently until the duration elapses, the
// operation budget is spent, ctx is cancelled or the abort policy trips.
// Snapshots go to agg every interval and once more, marked Final, before
// Run returns. Live counters are registered on registry when it is non-nil.
//
// Cancellation of ctx is not an error. On abort the final snapshot is
// returned together with an error wrapping ErrRunAborted.
func (d *Driver) Run(ctx context.Context, workloads []*workload.Workload, agg collector.Aggregator, registry prometheus.Registerer) (collector.Snapshot, error) {
	if len(workloads) == 0 {
		return collector.Snapshot{}, ErrNoWorkloads
	}
	for _, w := range workloads {
		if w == nil || w.Generator == nil {
			return collector.Snapshot{}, fmt.Errorf("%w: workload has no generator", workload.ErrInvalidSpec)
		}
		if err := w.Spec.Validate(); err != nil {
			return collector.Snapshot{}, fmt.Errorf("workload %q: %w", w.Name(), err)
		}
	}
	if err := d.abort.Validate(); err != nil {
		return collector.Snapshot{}, err
	}
	if agg == nil {
		agg = collector.Multi()
	}

	stats := collector.NewRunStatistics(d.clock)
	var recorder collector.Recorder = stats
	if registry != nil {
		prom, err := collector.NewPromMetrics(registry)
		if err != nil {
			return collector.Snapshot{}, fmt.Errorf("registering metrics: %w", err)
		}
		recorder = collector.Tee(stats, prom)
		agg = collector.Multi(prom, agg)
	}

	runID := uuid.NewString()
	logger := d.logger.With(zap.String("run", runID))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if d.duration > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, d.duration)
		defer cancel()
	}

	budget := pool.NewBudget(d.maxOperations)
	pools := make([]*pool.Pool, len(workloads))
	for i, w := range workloads {
		pools[i] = pool.New(w, d.submitter, recorder, pool.Config{
			SubmitTimeout: d.submitTimeout,
			Budget:        budget,
			Clock:         d.clock,
			Logger:        logger,
		})
	}

	snapshot := func(seq int, final bool) collector.Snapshot {
		snap := stats.Snapshot()
		snap.RunID = runID
		snap.Sequence = seq
		snap.Final = final
		for _, p := range pools {
			snap.Outstanding += p.InFlight().Outstanding()
		}
		return snap
	}

	var aborted atomic.Bool
	checkAbort := func(snap collector.Snapshot) {
		if d.abort.Exceeded(snap) && aborted.CompareAndSwap(false, true) {
			logger.Warn("abort policy exceeded, stopping run",
				zap.Float64("failureRate", snap.FailureRate()),
				zap.Uint64("completed", snap.Succeeded+snap.Failed))
			cancel()
		}
	}

	logger.Info("run started",
		zap.Int("workloads", len(workloads)),
		zap.Duration("duration", d.duration),
		zap.Int64("maxOperations", d.maxOperations))

	g, gctx := errgroup.WithContext(runCtx)
	for _, p := range pools {
		g.Go(func() error { return p.Run(gctx) })
	}

	done := make(chan struct{})
	var ticks sync.WaitGroup
	seq := 0
	ticks.Add(1)
	go func() {
		defer ticks.Done()
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				seq++
				snap := snapshot(seq, false)
				agg.Aggregate(snap)
				checkAbort(snap)
			}
		}
	}()

	err := g.Wait()
	close(done)
	ticks.Wait()

	final := snapshot(seq+1, true)
	checkAbort(final)
	agg.Aggregate(final)

	logger.Info("run finished",
		zap.Uint64("submitted", final.Submitted),
		zap.Uint64("failed", final.Failed),
		zap.Duration("elapsed", final.Elapsed),
		zap.Bool("aborted", aborted.Load()))

	if err != nil && !isBenignCancellation(err) {
		return final, err
	}
	if aborted.Load() {
		return final, fmt.Errorf("%w: failure rate %.2f%% over %d operations exceeds %.2f%%",
			ErrRunAborted, final.FailureRate()*100, final.Succeeded+final.Failed, d.abort.MaxFailureRate*100)
	}
	return final, nil
}

func isBenignCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
