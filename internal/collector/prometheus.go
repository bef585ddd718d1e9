package collector

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"simbench/internal/core"
)

const namespace = "simbench"

// PromMetrics exports live run counters on a prometheus registry. It is a
// Recorder (per-operation updates) and an Aggregator (per-snapshot gauges).
type PromMetrics struct {
	submitted  *prometheus.CounterVec
	succeeded  *prometheus.CounterVec
	failed     *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	inFlight   prometheus.Gauge
	throughput prometheus.Gauge
}

// NewPromMetrics registers the run collectors on r. Collectors already
// registered by an earlier run on the same registry are reused.
func NewPromMetrics(r prometheus.Registerer) (*PromMetrics, error) {
	labels := []string{"workload", "kind"}
	m := &PromMetrics{
		submitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_submitted_total",
			Help:      "Operations handed to the submitter",
		}, labels),
		succeeded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_succeeded_total",
			Help:      "Operations that completed successfully",
		}, labels),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_failed_total",
			Help:      "Operations that failed",
		}, labels),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_latency_seconds",
			Help:      "Submission latency",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 16),
		}, labels),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "operations_in_flight",
			Help:      "Submissions started but not yet completed at the last snapshot",
		}),
		throughput: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "throughput_ops_per_second",
			Help:      "Completed operations per second since the run started",
		}),
	}

	var err error
	if m.submitted, err = register(r, m.submitted); err != nil {
		return nil, err
	}
	if m.succeeded, err = register(r, m.succeeded); err != nil {
		return nil, err
	}
	if m.failed, err = register(r, m.failed); err != nil {
		return nil, err
	}
	if m.latency, err = register(r, m.latency); err != nil {
		return nil, err
	}
	if m.inFlight, err = register(r, m.inFlight); err != nil {
		return nil, err
	}
	if m.throughput, err = register(r, m.throughput); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](r prometheus.Registerer, c C) (C, error) {
	if err := r.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *PromMetrics) Submitted(workload string, kind core.Kind) {
	m.submitted.WithLabelValues(workload, string(kind)).Inc()
}

func (m *PromMetrics) Report(e core.Event) {
	kind := string(e.Kind)
	if e.Success {
		m.succeeded.WithLabelValues(e.Workload, kind).Inc()
	} else {
		m.failed.WithLabelValues(e.Workload, kind).Inc()
	}
	m.latency.WithLabelValues(e.Workload, kind).Observe(e.Duration.Seconds())
}

func (m *PromMetrics) Aggregate(s Snapshot) {
	m.inFlight.Set(float64(s.InFlight))
	m.throughput.Set(s.ThroughputQPS)
}
