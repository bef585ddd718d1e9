package progress

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"simbench/internal/collector"
)

func snapshot() collector.Snapshot {
	return collector.Snapshot{
		Elapsed:       75 * time.Second,
		Submitted:     120,
		Succeeded:     108,
		Failed:        12,
		InFlight:      3,
		ThroughputQPS: 9.5,
		Latency:       collector.DurationMetrics{P99: 48 * time.Millisecond},
	}
}

func TestNewProgress(t *testing.T) {
	progress := NewProgress(false)
	if progress.quiet {
		t.Error("quiet should be false")
	}
	if !NewProgress(true).quiet {
		t.Error("quiet should be true")
	}
}

func TestProgress_AggregatePrintsStatus(t *testing.T) {
	var buf bytes.Buffer
	progress := NewProgress(false)
	progress.SetOutput(&buf)

	progress.Aggregate(snapshot())

	output := buf.String()
	for _, want := range []string{"[01:15]", "Ops: 120", "QPS: 9.5", "In flight: 3", "Errors: 12 (10.0%)", "p99: 48ms"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in %q", want, output)
		}
	}
}

func TestProgress_FinalSnapshotStops(t *testing.T) {
	var buf bytes.Buffer
	progress := NewProgress(false)
	progress.SetOutput(&buf)

	final := snapshot()
	final.Final = true
	progress.Aggregate(final)
	buf.Reset()

	progress.Aggregate(snapshot())
	if buf.Len() != 0 {
		t.Errorf("expected no output after the final snapshot, got %q", buf.String())
	}
}

func TestProgress_QuietMode(t *testing.T) {
	var buf bytes.Buffer
	progress := NewProgress(true)
	progress.SetOutput(&buf)

	progress.Aggregate(snapshot())
	progress.Print("hello")
	progress.Printf("n=%d", 1)
	progress.Stop()

	if buf.Len() != 0 {
		t.Errorf("expected no output in quiet mode, got %q", buf.String())
	}
}

func TestProgress_DoubleStop(t *testing.T) {
	var buf bytes.Buffer
	progress := NewProgress(false)
	progress.SetOutput(&buf)

	progress.Stop()
	progress.Stop()
	if got := strings.Count(buf.String(), "\033[K"); got != 1 {
		t.Errorf("expected the line cleared once, got %d", got)
	}
}

func TestProgress_Printf(t *testing.T) {
	var buf bytes.Buffer
	progress := NewProgress(false)
	progress.SetOutput(&buf)

	progress.Printf("Starting %d workloads", 2)
	if !strings.Contains(buf.String(), "Starting 2 workloads\n") {
		t.Errorf("unexpected output %q", buf.String())
	}
}
