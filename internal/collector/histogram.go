package collector

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Recorded latencies are clamped to [1µs, 10min] at three significant figures.
const (
	minTrackable = int64(1)
	maxTrackable = int64(10 * time.Minute / time.Microsecond)
)

// SafeHistogram is a thread-safe latency histogram in microseconds.
type SafeHistogram struct {
	mu   sync.Mutex
	hist *hdrhistogram.Histogram
}

func NewSafeHistogram() *SafeHistogram {
	return &SafeHistogram{hist: hdrhistogram.New(minTrackable, maxTrackable, 3)}
}

// Record adds one latency observation.
func (h *SafeHistogram) Record(d time.Duration) {
	us := d.Microseconds()
	if us < minTrackable {
		us = minTrackable
	}
	if us > maxTrackable {
		us = maxTrackable
	}
	h.mu.Lock()
	_ = h.hist.RecordValue(us) // in range after clamping
	h.mu.Unlock()
}

// Summary computes the latency summary under a single lock.
func (h *SafeHistogram) Summary() DurationMetrics {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.hist.TotalCount() == 0 {
		return DurationMetrics{}
	}
	us := func(v int64) time.Duration { return time.Duration(v) * time.Microsecond }
	return DurationMetrics{
		Count: h.hist.TotalCount(),
		Min:   us(h.hist.Min()),
		Max:   us(h.hist.Max()),
		Avg:   time.Duration(h.hist.Mean() * float64(time.Microsecond)),
		P50:   us(h.hist.ValueAtQuantile(50)),
		P90:   us(h.hist.ValueAtQuantile(90)),
		P95:   us(h.hist.ValueAtQuantile(95)),
		P99:   us(h.hist.ValueAtQuantile(99)),
	}
}

func (h *SafeHistogram) TotalCount() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hist.TotalCount()
}
