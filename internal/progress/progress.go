// Package progress prints a one-line live status of a run to a terminal.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"simbench/internal/collector"
)

// Progress is a collector.Aggregator that redraws a status line on every
// snapshot. The final snapshot clears the line so the report can follow.
type Progress struct {
	quiet   bool
	output  io.Writer
	mu      sync.Mutex
	stopped atomic.Bool
}

func NewProgress(quiet bool) *Progress {
	return &Progress{
		quiet:  quiet,
		output: os.Stderr,
	}
}

func (p *Progress) SetOutput(w io.Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.output = w
}

// Aggregate implements collector.Aggregator.
func (p *Progress) Aggregate(s collector.Snapshot) {
	if p.quiet || p.stopped.Load() {
		return
	}
	if s.Final {
		p.Stop()
		return
	}
	elapsed := s.Elapsed
	mins := int(elapsed.Minutes())
	secs := int(elapsed.Seconds()) % 60
	p.mu.Lock()
	fmt.Fprintf(p.output, "\033[K[%02d:%02d] Ops: %d | QPS: %.1f | In flight: %d | Errors: %d (%.1f%%) | p99: %s\r",
		mins, secs, s.Submitted, s.ThroughputQPS, s.InFlight, s.Failed, s.FailureRate()*100,
		collector.FormatDuration(s.Latency.P99))
	p.mu.Unlock()
}

// Stop clears the status line. Later snapshots are ignored.
func (p *Progress) Stop() {
	if p.quiet || p.stopped.Swap(true) {
		return
	}
	p.mu.Lock()
	fmt.Fprintf(p.output, "\033[K")
	p.mu.Unlock()
}

func (p *Progress) Print(message string) {
	if p.quiet {
		return
	}
	p.mu.Lock()
	fmt.Fprintf(p.output, "\033[K%s\n", message)
	p.mu.Unlock()
}

func (p *Progress) Printf(format string, args ...interface{}) {
	if p.quiet {
		return
	}
	p.mu.Lock()
	fmt.Fprintf(p.output, "\033[K"+format+"\n", args...)
	p.mu.Unlock()
}
