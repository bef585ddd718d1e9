// Package pool runs the worker goroutines that drive one workload.
package pool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"simbench/internal/collector"
	"simbench/internal/core"
	"simbench/internal/ratelimit"
	"simbench/internal/workload"
)

// Config tunes a Pool. The zero value is usable.
type Config struct {
	// SubmitTimeout bounds one submission; zero means no bound.
	SubmitTimeout time.Duration
	// Budget is shared across pools to cap total operations; nil is unlimited.
	Budget *Budget
	// Burst overrides the rate controller burst; zero uses the default.
	Burst  int
	Clock  core.Clock
	Logger *zap.Logger
}

// Pool owns the workers, rate controller and in-flight limiter of a single
// workload.
type Pool struct {
	workload  *workload.Workload
	submitter core.Submitter
	recorder  collector.Recorder
	cfg       Config

	rate     *ratelimit.RateController
	inflight *ratelimit.InFlightLimiter
	logger   *zap.Logger
	failLog  *rate.Sometimes

	nextID      atomic.Int64
	activeCount atomic.Int32
	wg          sync.WaitGroup
}

func New(w *workload.Workload, submitter core.Submitter, recorder collector.Recorder, cfg Config) *Pool {
	if cfg.Clock == nil {
		cfg.Clock = core.RealClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = collector.Tee()
	}
	return &Pool{
		workload:  w,
		submitter: submitter,
		recorder:  recorder,
		cfg:       cfg,
		rate:      ratelimit.NewRateController(w.Spec.TargetQPS, cfg.Burst, cfg.Clock),
		inflight:  ratelimit.NewInFlightLimiter(w.Spec.TargetQPS, w.Spec.InFlightRatio),
		logger:    cfg.Logger.With(zap.String("workload", w.Name())),
		failLog:   &rate.Sometimes{First: 5, Interval: 10 * time.Second},
	}
}

// Run starts exactly NumWorkers workers and blocks until all of them exit,
// either because ctx ended or the shared budget ran out.
func (p *Pool) Run(ctx context.Context) error {
	p.spawn(ctx, p.workload.Spec.NumWorkers)
	p.wg.Wait()
	return nil
}

func (p *Pool) spawn(ctx context.Context, count int) {
	for i := 0; i < count; i++ {
		workerID := int(p.nextID.Add(1))
		p.activeCount.Add(1)
		p.wg.Add(1)
		go func(id int) {
			defer func() {
				p.activeCount.Add(-1)
				p.wg.Done()
			}()
			defer p.recoverPanic(id)
			p.work(ctx, id)
		}(workerID)
	}
}

func (p *Pool) activeWorkers() int {
	return int(p.activeCount.Load())
}

// InFlight exposes the pool's limiter for observation.
func (p *Pool) InFlight() *ratelimit.InFlightLimiter {
	return p.inflight
}

func (p *Pool) work(ctx context.Context, workerID int) {
	p.logger.Debug("worker started", zap.Int("worker", workerID))
	defer p.logger.Debug("worker stopped", zap.Int("worker", workerID))

	for {
		if ctx.Err() != nil {
			return
		}
		if !p.cfg.Budget.Claim() {
			return
		}
		op := p.workload.Generator.Next()
		if err := p.rate.Wait(ctx); err != nil {
			return
		}
		if err := p.submit(ctx, workerID, op); err != nil {
			return
		}
	}
}

// submit runs one operation through the in-flight limiter and the
// submitter. It only returns an error when ctx ended before the operation
// could be submitted; submission failures are recorded, not returned.
func (p *Pool) submit(ctx context.Context, workerID int, op core.Operation) error {
	token, err := p.inflight.Acquire(ctx)
	if err != nil {
		return err
	}
	defer token.Release()

	subCtx := context.WithoutCancel(ctx)
	if p.cfg.SubmitTimeout > 0 {
		var cancel context.CancelFunc
		subCtx, cancel = context.WithTimeout(subCtx, p.cfg.SubmitTimeout)
		defer cancel()
	}

	name := p.workload.Name()
	p.recorder.Submitted(name, op.Kind)
	start := p.cfg.Clock.Now()
	_, err = p.safeSubmit(subCtx, op)
	event := core.Event{
		WorkerID:  workerID,
		Workload:  name,
		Timestamp: start,
		Kind:      op.Kind,
		Duration:  p.cfg.Clock.Since(start),
		Success:   err == nil,
	}
	if err != nil {
		err = &core.SubmissionError{OpID: op.ID, Kind: op.Kind, Err: err}
		event.Error = err.Error()
		p.failLog.Do(func() {
			p.logger.Warn("submission failed", zap.Int("worker", workerID), zap.Error(err))
		})
	}
	p.recorder.Report(event)
	return nil
}

func (p *Pool) safeSubmit(ctx context.Context, op core.Operation) (effects core.Effects, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return p.submitter.Submit(ctx, op)
}

// recoverPanic keeps a panicking worker from taking the process down. The
// worker is not restarted.
func (p *Pool) recoverPanic(workerID int) {
	if r := recover(); r != nil {
		p.logger.Error("worker panicked", zap.Int("worker", workerID), zap.Any("panic", r))
	}
}
