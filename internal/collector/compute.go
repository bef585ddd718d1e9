package collector

import (
	"sort"
	"time"
)

// DurationMetrics summarizes a latency distribution.
type DurationMetrics struct {
	Count int64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
	P50   time.Duration
	P90   time.Duration
	P95   time.Duration
	P99   time.Duration
}

// ComputeDurationMetrics summarizes raw samples exactly. Pure function; the
// input slice is not modified.
func ComputeDurationMetrics(durations []time.Duration) DurationMetrics {
	if len(durations) == 0 {
		return DurationMetrics{}
	}
	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var total time.Duration
	for _, d := range sorted {
		total += d
	}
	return DurationMetrics{
		Count: int64(len(sorted)),
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		Avg:   total / time.Duration(len(sorted)),
		P50:   percentileSorted(sorted, 0.50),
		P90:   percentileSorted(sorted, 0.90),
		P95:   percentileSorted(sorted, 0.95),
		P99:   percentileSorted(sorted, 0.99),
	}
}

// ComputePercentile returns the percentile p in (0,1], rank rounded to nearest.
func ComputePercentile(durations []time.Duration, p float64) time.Duration {
	if len(durations) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return percentileSorted(sorted, p)
}

func percentileSorted(sorted []time.Duration, p float64) time.Duration {
	idx := int(float64(len(sorted))*p+0.5) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// SuccessRate is the percentage of completed submissions that succeeded.
func (s Snapshot) SuccessRate() float64 {
	done := s.Succeeded + s.Failed
	if done == 0 {
		return 0
	}
	return float64(s.Succeeded) / float64(done) * 100
}

// FailureRate is failed / completed as a fraction in [0,1].
func (s Snapshot) FailureRate() float64 {
	done := s.Succeeded + s.Failed
	if done == 0 {
		return 0
	}
	return float64(s.Failed) / float64(done)
}
