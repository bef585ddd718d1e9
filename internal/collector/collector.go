package collector

import (
	"sync"
)

// Aggregator receives periodic snapshots of a run. Aggregate is called from
// the driver's ticker goroutine and must not block for long.
type Aggregator interface {
	Aggregate(Snapshot)
}

// AggregatorFunc adapts a function to Aggregator.
type AggregatorFunc func(Snapshot)

func (f AggregatorFunc) Aggregate(s Snapshot) { f(s) }

// Multi forwards each snapshot to every non-nil aggregator in order.
func Multi(aggs ...Aggregator) Aggregator {
	out := make([]Aggregator, 0, len(aggs))
	for _, a := range aggs {
		if a != nil {
			out = append(out, a)
		}
	}
	return AggregatorFunc(func(s Snapshot) {
		for _, a := range out {
			a.Aggregate(s)
		}
	})
}

// Collector is an Aggregator that keeps every snapshot it receives.
type Collector struct {
	mu        sync.Mutex
	snapshots []Snapshot
}

func NewCollector() *Collector {
	return &Collector{snapshots: make([]Snapshot, 0)}
}

// Aggregate stores a snapshot. Thread-safe.
func (c *Collector) Aggregate(s Snapshot) {
	c.mu.Lock()
	c.snapshots = append(c.snapshots, s)
	c.mu.Unlock()
}

// Snapshots returns a copy of collected snapshots.
func (c *Collector) Snapshots() []Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]Snapshot, len(c.snapshots))
	copy(result, c.snapshots)
	return result
}

// Last returns the most recent snapshot and whether one exists.
func (c *Collector) Last() (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.snapshots) == 0 {
		return Snapshot{}, false
	}
	return c.snapshots[len(c.snapshots)-1], true
}

// Final returns the snapshot marked final, if it has arrived.
func (c *Collector) Final() (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.snapshots) - 1; i >= 0; i-- {
		if c.snapshots[i].Final {
			return c.snapshots[i], true
		}
	}
	return Snapshot{}, false
}
