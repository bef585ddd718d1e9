package collector

import (
	"sync"
	"testing"
	"time"

	"simbench/internal/core"
)

func within(got, want time.Duration, frac float64) bool {
	diff := got - want
	if diff < 0 {
		diff = -diff
	}
	return float64(diff) <= float64(want)*frac
}

func TestRunStatistics_CountsByKind(t *testing.T) {
	clock := core.NewFakeClock(time.Unix(0, 0))
	s := NewRunStatistics(clock)

	s.Submitted("w", core.KindSharedCounter)
	s.Submitted("w", core.KindSharedCounter)
	s.Submitted("w", core.KindTransferObject)
	s.Report(core.Event{Kind: core.KindSharedCounter, Success: true, Duration: 10 * time.Millisecond})
	s.Report(core.Event{Kind: core.KindSharedCounter, Success: false, Duration: 20 * time.Millisecond, Error: "boom"})
	clock.Advance(2 * time.Second)

	snap := s.Snapshot()
	if snap.Submitted != 3 || snap.Succeeded != 1 || snap.Failed != 1 {
		t.Fatalf("unexpected totals: %+v", snap)
	}
	if snap.InFlight != 1 {
		t.Errorf("expected 1 in flight, got %d", snap.InFlight)
	}
	if snap.Elapsed != 2*time.Second {
		t.Errorf("expected 2s elapsed, got %v", snap.Elapsed)
	}
	if snap.ThroughputQPS != 1.0 {
		t.Errorf("expected 1 op/s, got %v", snap.ThroughputQPS)
	}
	if snap.LastError != "boom" {
		t.Errorf("expected last error boom, got %q", snap.LastError)
	}

	counter := snap.Kinds[core.KindSharedCounter]
	if counter.Submitted != 2 || counter.Succeeded != 1 || counter.Failed != 1 {
		t.Errorf("unexpected shared_counter stats: %+v", counter)
	}
	transfer := snap.Kinds[core.KindTransferObject]
	if transfer.Submitted != 1 || transfer.Succeeded != 0 {
		t.Errorf("unexpected transfer_object stats: %+v", transfer)
	}
	if got := s.FailureRate(); got != 0.5 {
		t.Errorf("expected failure rate 0.5, got %v", got)
	}
}

func TestRunStatistics_LatencySummary(t *testing.T) {
	s := NewRunStatistics(nil)
	for i := 1; i <= 100; i++ {
		s.Submitted("w", core.KindSharedCounter)
		s.Report(core.Event{Kind: core.KindSharedCounter, Success: true, Duration: time.Duration(i) * time.Millisecond})
	}

	lat := s.Snapshot().Latency
	if lat.Count != 100 {
		t.Fatalf("expected 100 samples, got %d", lat.Count)
	}
	checks := []struct {
		name      string
		got, want time.Duration
	}{
		{"min", lat.Min, time.Millisecond},
		{"p50", lat.P50, 50 * time.Millisecond},
		{"p99", lat.P99, 99 * time.Millisecond},
		{"max", lat.Max, 100 * time.Millisecond},
	}
	for _, c := range checks {
		if !within(c.got, c.want, 0.01) {
			t.Errorf("%s: expected ~%v, got %v", c.name, c.want, c.got)
		}
	}
}

func TestRunStatistics_EmptySnapshot(t *testing.T) {
	snap := NewRunStatistics(nil).Snapshot()
	if snap.Submitted != 0 || snap.Latency.Count != 0 || len(snap.Kinds) != 0 {
		t.Errorf("expected empty snapshot, got %+v", snap)
	}
	if snap.SuccessRate() != 0 || snap.FailureRate() != 0 {
		t.Error("expected zero rates on empty snapshot")
	}
}

func TestRunStatistics_ThreadSafety(t *testing.T) {
	s := NewRunStatistics(nil)
	var wg sync.WaitGroup
	numGoroutines := 50
	perGoroutine := 200

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			kind := core.KindSharedCounter
			if id%2 == 0 {
				kind = core.KindTransferObject
			}
			for j := 0; j < perGoroutine; j++ {
				s.Submitted("w", kind)
				s.Report(core.Event{WorkerID: id, Kind: kind, Success: j%10 != 0, Duration: time.Millisecond})
				if j%50 == 0 {
					_ = s.Snapshot()
				}
			}
		}(i)
	}
	wg.Wait()

	snap := s.Snapshot()
	total := uint64(numGoroutines * perGoroutine)
	if snap.Submitted != total {
		t.Errorf("expected %d submitted, got %d", total, snap.Submitted)
	}
	if snap.Succeeded+snap.Failed != total {
		t.Errorf("expected %d completions, got %d", total, snap.Succeeded+snap.Failed)
	}
	if snap.Failed != total/10 {
		t.Errorf("expected %d failures, got %d", total/10, snap.Failed)
	}
	if snap.InFlight != 0 {
		t.Errorf("expected nothing in flight, got %d", snap.InFlight)
	}
	if snap.Latency.Count != int64(total) {
		t.Errorf("expected %d latency samples, got %d", total, snap.Latency.Count)
	}
}

func TestTee_ForwardsToAll(t *testing.T) {
	a := NewRunStatistics(nil)
	b := NewRunStatistics(nil)
	r := Tee(a, nil, b)

	r.Submitted("w", core.KindTransferObject)
	r.Report(core.Event{Kind: core.KindTransferObject, Success: true})

	for i, s := range []*RunStatistics{a, b} {
		snap := s.Snapshot()
		if snap.Submitted != 1 || snap.Succeeded != 1 {
			t.Errorf("recorder %d: unexpected snapshot %+v", i, snap)
		}
	}
}

func TestSafeHistogram_ClampsOutOfRange(t *testing.T) {
	h := NewSafeHistogram()
	h.Record(0)
	h.Record(time.Hour)
	if h.TotalCount() != 2 {
		t.Fatalf("expected both samples recorded, got %d", h.TotalCount())
	}
	sum := h.Summary()
	if sum.Min > 2*time.Microsecond {
		t.Errorf("expected min clamped to ~1µs, got %v", sum.Min)
	}
	if !within(sum.Max, 10*time.Minute, 0.01) {
		t.Errorf("expected max clamped to ~10m, got %v", sum.Max)
	}
}

func TestCollector_KeepsSnapshots(t *testing.T) {
	c := NewCollector()
	if _, ok := c.Last(); ok {
		t.Fatal("expected no snapshot yet")
	}
	c.Aggregate(Snapshot{Sequence: 1})
	c.Aggregate(Snapshot{Sequence: 2, Final: true})

	if got := len(c.Snapshots()); got != 2 {
		t.Fatalf("expected 2 snapshots, got %d", got)
	}
	last, _ := c.Last()
	if last.Sequence != 2 {
		t.Errorf("expected last sequence 2, got %d", last.Sequence)
	}
	final, ok := c.Final()
	if !ok || !final.Final {
		t.Error("expected final snapshot")
	}
}

func TestMulti_FansOut(t *testing.T) {
	a, b := NewCollector(), NewCollector()
	var calls int
	agg := Multi(a, nil, b, AggregatorFunc(func(Snapshot) { calls++ }))
	agg.Aggregate(Snapshot{Sequence: 7})

	if len(a.Snapshots()) != 1 || len(b.Snapshots()) != 1 || calls != 1 {
		t.Error("expected every aggregator to receive the snapshot")
	}
}

func TestComputeDurationMetrics(t *testing.T) {
	durations := []time.Duration{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}
	m := ComputeDurationMetrics(durations)
	if m.Min != 10 || m.Max != 100 || m.Avg != 55 {
		t.Errorf("unexpected min/max/avg: %+v", m)
	}
	if m.P50 != 50 || m.P90 != 90 || m.P99 != 100 {
		t.Errorf("unexpected percentiles: %+v", m)
	}
	if ComputePercentile(durations, 0.50) != 50 {
		t.Error("expected p50=50")
	}
	if got := ComputeDurationMetrics(nil); got != (DurationMetrics{}) {
		t.Errorf("expected zero metrics for no samples, got %+v", got)
	}
}
