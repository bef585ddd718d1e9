package collector

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Thresholds defines pass/fail criteria checked against the final snapshot.
type Thresholds struct {
	Latency *DurationThresholds `yaml:"latency"`
	Failed  *FailureThresholds  `yaml:"failed"`
}

// DurationThresholds defines latency limits.
type DurationThresholds struct {
	Avg time.Duration `yaml:"avg"`
	P50 time.Duration `yaml:"p50"`
	P90 time.Duration `yaml:"p90"`
	P95 time.Duration `yaml:"p95"`
	P99 time.Duration `yaml:"p99"`
}

// FailureThresholds defines error rate limits, e.g. "5%".
type FailureThresholds struct {
	Rate string `yaml:"rate"`
}

// ThresholdResult represents the outcome of a single threshold check.
type ThresholdResult struct {
	Name      string `json:"name"`
	Passed    bool   `json:"passed"`
	Threshold string `json:"threshold"`
	Actual    string `json:"actual"`
}

// ThresholdResults contains all threshold check results.
type ThresholdResults struct {
	Passed  bool              `json:"passed"`
	Results []ThresholdResult `json:"results"`
}

// Validate reports malformed thresholds.
func (t *Thresholds) Validate() error {
	if t == nil || t.Failed == nil || t.Failed.Rate == "" {
		return nil
	}
	if _, err := parsePercentage(t.Failed.Rate); err != nil {
		return err
	}
	return nil
}

// Check evaluates all thresholds against a snapshot.
func (t *Thresholds) Check(s Snapshot) *ThresholdResults {
	if t == nil {
		return &ThresholdResults{Passed: true, Results: nil}
	}

	results := &ThresholdResults{
		Passed:  true,
		Results: make([]ThresholdResult, 0),
	}

	if t.Latency != nil {
		results.checkDurationThresholds(t.Latency, &s.Latency)
	}

	if t.Failed != nil && t.Failed.Rate != "" {
		results.checkFailureRate(t.Failed, s)
	}

	return results
}

func (r *ThresholdResults) checkDurationThresholds(thresholds *DurationThresholds, actual *DurationMetrics) {
	checks := []struct {
		name      string
		threshold time.Duration
		actual    time.Duration
	}{
		{"latency.avg", thresholds.Avg, actual.Avg},
		{"latency.p50", thresholds.P50, actual.P50},
		{"latency.p90", thresholds.P90, actual.P90},
		{"latency.p95", thresholds.P95, actual.P95},
		{"latency.p99", thresholds.P99, actual.P99},
	}

	for _, check := range checks {
		if check.threshold == 0 {
			continue
		}

		passed := check.actual < check.threshold
		if !passed {
			r.Passed = false
		}

		r.Results = append(r.Results, ThresholdResult{
			Name:      check.name,
			Passed:    passed,
			Threshold: FormatDuration(check.threshold),
			Actual:    FormatDuration(check.actual),
		})
	}
}

func (r *ThresholdResults) checkFailureRate(thresholds *FailureThresholds, s Snapshot) {
	thresholdRate, err := parsePercentage(thresholds.Rate)
	if err != nil {
		return
	}

	actualRate := s.FailureRate() * 100
	passed := actualRate < thresholdRate

	if !passed {
		r.Passed = false
	}

	r.Results = append(r.Results, ThresholdResult{
		Name:      "failed.rate",
		Passed:    passed,
		Threshold: thresholds.Rate,
		Actual:    fmt.Sprintf("%.2f%%", actualRate),
	})
}

// Violations returns only the failed threshold results.
func (r *ThresholdResults) Violations() []ThresholdResult {
	violations := make([]ThresholdResult, 0)
	for _, result := range r.Results {
		if !result.Passed {
			violations = append(violations, result)
		}
	}
	return violations
}

// AbortPolicy stops a run early once the failure rate over at least
// MinSamples completions exceeds MaxFailureRate (a fraction in [0,1]).
// A zero MaxFailureRate disables the policy.
type AbortPolicy struct {
	MaxFailureRate float64
	MinSamples     uint64
}

func (p AbortPolicy) Enabled() bool { return p.MaxFailureRate > 0 }

// Validate reports out-of-range settings.
func (p AbortPolicy) Validate() error {
	if p.MaxFailureRate < 0 || p.MaxFailureRate > 1 {
		return fmt.Errorf("abort maxFailureRate must be within [0,1], got %v", p.MaxFailureRate)
	}
	return nil
}

// Exceeded reports whether the snapshot breaches the policy.
func (p AbortPolicy) Exceeded(s Snapshot) bool {
	if !p.Enabled() {
		return false
	}
	done := s.Succeeded + s.Failed
	if done == 0 || done < p.MinSamples {
		return false
	}
	return s.FailureRate() > p.MaxFailureRate
}

func parsePercentage(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if !strings.HasSuffix(s, "%") {
		return 0, fmt.Errorf("invalid percentage format: %s", s)
	}
	s = strings.TrimSuffix(s, "%")
	return strconv.ParseFloat(s, 64)
}

// FormatDuration formats a duration for display.
func FormatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return d.Round(time.Second).String()
}
