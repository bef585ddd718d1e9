// Package collector aggregates submission outcomes into run statistics and
// delivers periodic snapshots to sinks.
package collector

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"simbench/internal/core"
)

// Recorder is what workers update. Submitted is called when a submission
// starts; Report when its outcome is known.
type Recorder interface {
	Submitted(workload string, kind core.Kind)
	core.Reporter
}

type kindStats struct {
	submitted atomic.Uint64
	succeeded atomic.Uint64
	failed    atomic.Uint64
	latency   *SafeHistogram
}

// RunStatistics is the shared aggregate every worker updates. All updates
// are commutative, so no ordering between workers is needed.
type RunStatistics struct {
	clock core.Clock
	start time.Time

	submitted atomic.Uint64
	succeeded atomic.Uint64
	failed    atomic.Uint64
	latency   *SafeHistogram

	mu    sync.RWMutex
	kinds map[core.Kind]*kindStats

	errMu     sync.Mutex
	lastError string
}

// NewRunStatistics starts a statistics window now. A nil clock uses the
// real clock.
func NewRunStatistics(clock core.Clock) *RunStatistics {
	if clock == nil {
		clock = core.RealClock{}
	}
	return &RunStatistics{
		clock:   clock,
		start:   clock.Now(),
		latency: NewSafeHistogram(),
		kinds:   make(map[core.Kind]*kindStats),
	}
}

func (s *RunStatistics) kind(k core.Kind) *kindStats {
	s.mu.RLock()
	ks, ok := s.kinds[k]
	s.mu.RUnlock()
	if ok {
		return ks
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if ks, ok = s.kinds[k]; !ok {
		ks = &kindStats{latency: NewSafeHistogram()}
		s.kinds[k] = ks
	}
	return ks
}

func (s *RunStatistics) Submitted(_ string, kind core.Kind) {
	s.submitted.Add(1)
	s.kind(kind).submitted.Add(1)
}

// Report records the outcome of one submission.
func (s *RunStatistics) Report(e core.Event) {
	ks := s.kind(e.Kind)
	if e.Success {
		s.succeeded.Add(1)
		ks.succeeded.Add(1)
	} else {
		s.failed.Add(1)
		ks.failed.Add(1)
		if e.Error != "" {
			s.errMu.Lock()
			s.lastError = e.Error
			s.errMu.Unlock()
		}
	}
	s.latency.Record(e.Duration)
	ks.latency.Record(e.Duration)
}

// Completed is the number of submissions whose outcome is known.
func (s *RunStatistics) Completed() uint64 {
	return s.succeeded.Load() + s.failed.Load()
}

// FailureRate is failed / completed, or 0 before any completion.
func (s *RunStatistics) FailureRate() float64 {
	failed := s.failed.Load()
	done := failed + s.succeeded.Load()
	if done == 0 {
		return 0
	}
	return float64(failed) / float64(done)
}

// Snapshot reads a point-in-time copy. Counters are read individually, so a
// snapshot taken while workers run may be mid-update by a few operations.
func (s *RunStatistics) Snapshot() Snapshot {
	elapsed := s.clock.Since(s.start)
	snap := Snapshot{
		Timestamp: s.clock.Now(),
		Elapsed:   elapsed,
		Submitted: s.submitted.Load(),
		Succeeded: s.succeeded.Load(),
		Failed:    s.failed.Load(),
		Latency:   s.latency.Summary(),
		Kinds:     make(map[core.Kind]KindSnapshot),
	}
	if done := snap.Succeeded + snap.Failed; done <= snap.Submitted {
		snap.InFlight = snap.Submitted - done
	}
	if elapsed > 0 {
		snap.ThroughputQPS = float64(snap.Succeeded+snap.Failed) / elapsed.Seconds()
	}

	s.mu.RLock()
	for k, ks := range s.kinds {
		snap.Kinds[k] = KindSnapshot{
			Submitted: ks.submitted.Load(),
			Succeeded: ks.succeeded.Load(),
			Failed:    ks.failed.Load(),
			Latency:   ks.latency.Summary(),
		}
	}
	s.mu.RUnlock()

	s.errMu.Lock()
	snap.LastError = s.lastError
	s.errMu.Unlock()
	return snap
}

// Snapshot is a read-only view of RunStatistics.
type Snapshot struct {
	RunID     string
	Sequence  int
	Final     bool
	Timestamp time.Time
	Elapsed   time.Duration

	Submitted uint64
	Succeeded uint64
	Failed    uint64
	InFlight  uint64

	// Outstanding is the number of in-flight limiter tokens held when the
	// snapshot was taken. Filled in by the driver.
	Outstanding   int
	ThroughputQPS float64
	Latency       DurationMetrics
	Kinds         map[core.Kind]KindSnapshot
	LastError     string
}

// KindSnapshot holds per-operation-kind counters.
type KindSnapshot struct {
	Submitted uint64
	Succeeded uint64
	Failed    uint64
	Latency   DurationMetrics
}

// SortedKinds returns the kinds present in the snapshot in name order.
func (s Snapshot) SortedKinds() []core.Kind {
	kinds := make([]core.Kind, 0, len(s.Kinds))
	for k := range s.Kinds {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// multiRecorder fans updates out to several recorders.
type multiRecorder []Recorder

// Tee returns a Recorder that forwards to every non-nil recorder.
func Tee(recorders ...Recorder) Recorder {
	out := make(multiRecorder, 0, len(recorders))
	for _, r := range recorders {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

func (m multiRecorder) Submitted(workload string, kind core.Kind) {
	for _, r := range m {
		r.Submitted(workload, kind)
	}
}

func (m multiRecorder) Report(e core.Event) {
	for _, r := range m {
		r.Report(e)
	}
}
