package collector

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"simbench/internal/core"
)

func sampleSnapshot() Snapshot {
	lat := DurationMetrics{
		Count: 100,
		Min:   10 * time.Millisecond,
		Max:   100 * time.Millisecond,
		Avg:   50 * time.Millisecond,
		P50:   45 * time.Millisecond,
		P90:   80 * time.Millisecond,
		P95:   90 * time.Millisecond,
		P99:   98 * time.Millisecond,
	}
	return Snapshot{
		RunID:         "run-1",
		Final:         true,
		Elapsed:       10 * time.Second,
		Submitted:     1500,
		Succeeded:     1425,
		Failed:        75,
		ThroughputQPS: 150,
		Latency:       lat,
		Kinds: map[core.Kind]KindSnapshot{
			core.KindTransferObject: {Submitted: 750, Succeeded: 750, Latency: lat},
			core.KindSharedCounter:  {Submitted: 750, Succeeded: 675, Failed: 75, Latency: lat},
		},
		LastError: "rejected",
	}
}

func TestFormatText_BasicOutput(t *testing.T) {
	var buf bytes.Buffer
	FormatText(&buf, sampleSnapshot(), nil)
	output := buf.String()

	for _, want := range []string{
		"simbench - Run Results",
		"Run:            run-1",
		"Submitted:      1,500",
		"Success Rate:   95.0% (1,425 / 1,500)",
		"Throughput:     150.0 ops/s",
		"P99:    98ms",
		"Last Error:     rejected",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got:\n%s", want, output)
		}
	}
	if strings.Index(output, "shared_counter") > strings.Index(output, "transfer_object") {
		t.Error("expected kinds listed in name order")
	}
}

func TestFormatText_Empty(t *testing.T) {
	var buf bytes.Buffer
	FormatText(&buf, Snapshot{}, nil)
	if !strings.Contains(buf.String(), "No operations submitted") {
		t.Errorf("unexpected output: %s", buf.String())
	}
}

func TestFormatText_Thresholds(t *testing.T) {
	th := &Thresholds{Latency: &DurationThresholds{P99: 50 * time.Millisecond}}
	var buf bytes.Buffer
	FormatText(&buf, sampleSnapshot(), th.Check(sampleSnapshot()))
	if !strings.Contains(buf.String(), "✗ latency.p99 < 50ms (actual: 98ms)") {
		t.Errorf("expected failed threshold line, got:\n%s", buf.String())
	}
}

func TestFormatJSON_Fields(t *testing.T) {
	var buf bytes.Buffer
	FormatJSON(&buf, sampleSnapshot(), nil)

	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if out["submitted"].(float64) != 1500 {
		t.Errorf("unexpected submitted: %v", out["submitted"])
	}
	if out["final"] != true {
		t.Error("expected final=true")
	}
	kinds := out["kinds"].(map[string]any)
	counter := kinds["shared_counter"].(map[string]any)
	if counter["failed"].(float64) != 75 {
		t.Errorf("unexpected shared_counter failures: %v", counter["failed"])
	}
	if _, ok := out["thresholds"]; ok {
		t.Error("expected thresholds omitted when nil")
	}
}

func TestFormatNumber(t *testing.T) {
	tests := map[uint64]string{
		7:       "7",
		1000:    "1,000",
		999999:  "999,999",
		1234567: "1,234,567",
	}
	for n, want := range tests {
		if got := formatNumber(n); got != want {
			t.Errorf("formatNumber(%d) = %q, want %q", n, got, want)
		}
	}
}
