package collector

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// FormatText writes a snapshot in human-readable format.
func FormatText(w io.Writer, s Snapshot, thresholds *ThresholdResults) {
	if s.Submitted == 0 {
		fmt.Fprintln(w, "No operations submitted")
		return
	}

	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "simbench - Run Results")
	fmt.Fprintln(w, "==============================")
	fmt.Fprintln(w, "")
	if s.RunID != "" {
		fmt.Fprintf(w, "Run:            %s\n", s.RunID)
	}
	fmt.Fprintf(w, "Duration:       %v\n", s.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "Submitted:      %s\n", formatNumber(s.Submitted))
	fmt.Fprintf(w, "Success Rate:   %.1f%% (%s / %s)\n",
		s.SuccessRate(), formatNumber(s.Succeeded), formatNumber(s.Succeeded+s.Failed))
	fmt.Fprintf(w, "Throughput:     %.1f ops/s\n", s.ThroughputQPS)
	if s.InFlight > 0 {
		fmt.Fprintf(w, "In Flight:      %d\n", s.InFlight)
	}
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Latency:")
	fmt.Fprintf(w, "  Min:    %s\n", FormatDuration(s.Latency.Min))
	fmt.Fprintf(w, "  Avg:    %s\n", FormatDuration(s.Latency.Avg))
	fmt.Fprintf(w, "  P50:    %s\n", FormatDuration(s.Latency.P50))
	fmt.Fprintf(w, "  P90:    %s\n", FormatDuration(s.Latency.P90))
	fmt.Fprintf(w, "  P95:    %s\n", FormatDuration(s.Latency.P95))
	fmt.Fprintf(w, "  P99:    %s\n", FormatDuration(s.Latency.P99))
	fmt.Fprintf(w, "  Max:    %s\n", FormatDuration(s.Latency.Max))
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "By Kind:")
	for _, kind := range s.SortedKinds() {
		ks := s.Kinds[kind]
		fmt.Fprintf(w, "  %-16s %s ops   failed=%s  avg=%s  p95=%s  p99=%s\n",
			kind, formatNumber(ks.Submitted), formatNumber(ks.Failed),
			FormatDuration(ks.Latency.Avg),
			FormatDuration(ks.Latency.P95),
			FormatDuration(ks.Latency.P99))
	}
	if s.LastError != "" {
		fmt.Fprintln(w, "")
		fmt.Fprintf(w, "Last Error:     %s\n", s.LastError)
	}

	if thresholds != nil && len(thresholds.Results) > 0 {
		fmt.Fprintln(w, "")
		fmt.Fprintln(w, "Thresholds:")
		for _, result := range thresholds.Results {
			symbol := "✓"
			if !result.Passed {
				symbol = "✗"
			}
			fmt.Fprintf(w, "  %s %s < %s (actual: %s)\n",
				symbol, result.Name, result.Threshold, result.Actual)
		}
	}
}

// FormatJSON writes a snapshot in JSON format.
func FormatJSON(w io.Writer, s Snapshot, thresholds *ThresholdResults) {
	output := struct {
		RunID         string                     `json:"runId,omitempty"`
		Final         bool                       `json:"final"`
		Duration      string                     `json:"duration"`
		Submitted     uint64                     `json:"submitted"`
		Succeeded     uint64                     `json:"succeeded"`
		Failed        uint64                     `json:"failed"`
		InFlight      uint64                     `json:"inFlight"`
		SuccessRate   float64                    `json:"successRate"`
		ThroughputQPS float64                    `json:"throughputQps"`
		Latency       jsonDurationMetrics        `json:"latency"`
		Kinds         map[string]jsonKindMetrics `json:"kinds"`
		LastError     string                     `json:"lastError,omitempty"`
		Thresholds    *ThresholdResults          `json:"thresholds,omitempty"`
	}{
		RunID:         s.RunID,
		Final:         s.Final,
		Duration:      s.Elapsed.Round(time.Millisecond).String(),
		Submitted:     s.Submitted,
		Succeeded:     s.Succeeded,
		Failed:        s.Failed,
		InFlight:      s.InFlight,
		SuccessRate:   s.SuccessRate(),
		ThroughputQPS: s.ThroughputQPS,
		Latency:       toJSONDurationMetrics(s.Latency),
		Kinds:         make(map[string]jsonKindMetrics),
		LastError:     s.LastError,
		Thresholds:    thresholds,
	}

	for kind, ks := range s.Kinds {
		output.Kinds[string(kind)] = jsonKindMetrics{
			Submitted: ks.Submitted,
			Succeeded: ks.Succeeded,
			Failed:    ks.Failed,
			Latency:   toJSONDurationMetrics(ks.Latency),
		}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(output) // stdout errors are unrecoverable
}

type jsonDurationMetrics struct {
	Min string `json:"min"`
	Max string `json:"max"`
	Avg string `json:"avg"`
	P50 string `json:"p50"`
	P90 string `json:"p90"`
	P95 string `json:"p95"`
	P99 string `json:"p99"`
}

type jsonKindMetrics struct {
	Submitted uint64              `json:"submitted"`
	Succeeded uint64              `json:"succeeded"`
	Failed    uint64              `json:"failed"`
	Latency   jsonDurationMetrics `json:"latency"`
}

func toJSONDurationMetrics(d DurationMetrics) jsonDurationMetrics {
	return jsonDurationMetrics{
		Min: FormatDuration(d.Min),
		Max: FormatDuration(d.Max),
		Avg: FormatDuration(d.Avg),
		P50: FormatDuration(d.P50),
		P90: FormatDuration(d.P90),
		P95: FormatDuration(d.P95),
		P99: FormatDuration(d.P99),
	}
}

func formatNumber(n uint64) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		return fmt.Sprintf("%d,%03d", n/1000, n%1000)
	}
	return fmt.Sprintf("%s,%03d", formatNumber(n/1000), n%1000)
}
