package simnet

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"simbench/internal/core"
)

// failureStream is the second PCG word for the rejection generator.
const failureStream = 0xfa11_0e75

var (
	ErrRejected     = errors.New("operation rejected by validators")
	ErrBadSignature = errors.New("operation is not validly signed")
)

const clientNode NodeID = "client"

// ClusterConfig describes a simulated validator set.
type ClusterConfig struct {
	Sim        SimConfig
	Validators int
	// TimeScale multiplies simulated latency before it is slept in real
	// time. Zero completes submissions without sleeping.
	TimeScale float64
	// FailureRate is the probability in [0,1] that a submission is rejected.
	FailureRate float64
}

// Validate reports out-of-range settings.
func (c ClusterConfig) Validate() error {
	if c.Validators < 1 {
		return fmt.Errorf("validators must be at least 1, got %d", c.Validators)
	}
	if c.TimeScale < 0 {
		return fmt.Errorf("time scale must be non-negative, got %v", c.TimeScale)
	}
	if c.FailureRate < 0 || c.FailureRate > 1 {
		return fmt.Errorf("failure rate must be within [0,1], got %v", c.FailureRate)
	}
	return nil
}

type request struct{ round uint64 }

type reply struct{ round uint64 }

// Cluster is a core.Submitter backed by a simulated validator set. Each
// submission is broadcast over a Network; it completes once a quorum of
// 2f+1 validators has replied, and that virtual round-trip time is slept,
// scaled by TimeScale. The cluster keeps counter values and object owners
// so tests can check the effects of a run.
type Cluster struct {
	cfg    ClusterConfig
	quorum int

	// mu serializes simulation rounds and guards the bookkeeping below.
	mu       sync.Mutex
	net      *Network
	rng      *rand.Rand
	round    uint64
	replies  int
	quorumAt time.Duration
	counters map[core.ObjectID]uint64
	owners   map[core.ObjectID]core.Address
	versions map[core.ObjectID]uint64
	accepted uint64
	rejected uint64
}

func NewCluster(cfg ClusterConfig) (*Cluster, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	f := (cfg.Validators - 1) / 3
	c := &Cluster{
		cfg:      cfg,
		quorum:   2*f + 1,
		net:      NewNetwork(cfg.Sim),
		rng:      rand.New(rand.NewPCG(cfg.Sim.Seed, failureStream)),
		counters: make(map[core.ObjectID]uint64),
		owners:   make(map[core.ObjectID]core.Address),
		versions: make(map[core.ObjectID]uint64),
	}

	c.net.Register(clientNode, c.onReply)
	for i := 0; i < cfg.Validators; i++ {
		id := ValidatorID(i)
		c.net.Register(id, func(m Message) {
			req := m.Payload.(request)
			_ = c.net.Send(id, clientNode, reply{round: req.round}) // client is registered
		})
	}
	return c, nil
}

// ValidatorID names the i-th validator.
func ValidatorID(i int) NodeID {
	return NodeID(fmt.Sprintf("validator-%d", i))
}

func (c *Cluster) onReply(m Message) {
	r := m.Payload.(reply)
	if r.round != c.round {
		return
	}
	c.replies++
	if c.replies == c.quorum {
		c.quorumAt = m.DeliverAt
	}
}

// Quorum returns the number of replies a submission waits for.
func (c *Cluster) Quorum() int { return c.quorum }

// Submit signs op, simulates its broadcast and waits out the scaled quorum
// latency. Rejections are decided by the seeded failure generator.
func (c *Cluster) Submit(ctx context.Context, op core.Operation) (core.Effects, error) {
	if op.Signer.IsZero() {
		return core.Effects{}, ErrBadSignature
	}
	msg := op.Bytes()
	sig := op.Signer.Sign(msg)
	if !op.Signer.Verify(msg, sig) {
		return core.Effects{}, ErrBadSignature
	}

	latency, reject := c.simulate()
	scaled := time.Duration(float64(latency) * c.cfg.TimeScale)
	if scaled > 0 {
		timer := time.NewTimer(scaled)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return core.Effects{}, ctx.Err()
		case <-timer.C:
		}
	}

	sum := sha256.Sum256(sig)
	effects := core.Effects{Digest: hex.EncodeToString(sum[:]), Latency: scaled}
	if reject {
		c.mu.Lock()
		c.rejected++
		c.mu.Unlock()
		return effects, ErrRejected
	}
	c.apply(op)
	return effects, nil
}

// simulate runs one broadcast round on the virtual network and returns the
// time at which the quorum-th reply arrived.
func (c *Cluster) simulate() (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.round++
	c.replies = 0
	c.quorumAt = 0
	start := c.net.Now()
	for i := 0; i < c.cfg.Validators; i++ {
		_ = c.net.Send(clientNode, ValidatorID(i), request{round: c.round}) // validators are registered
	}
	c.net.RunUntilIdle()

	reject := c.cfg.FailureRate > 0 && c.rng.Float64() < c.cfg.FailureRate
	return c.quorumAt - start, reject
}

func (c *Cluster) apply(op core.Operation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accepted++
	switch {
	case op.Counter != nil:
		c.counters[op.Counter.Counter]++
		c.versions[op.Counter.Counter]++
	case op.Transfer != nil:
		c.owners[op.Transfer.Object.ID] = op.Transfer.Recipient
		c.versions[op.Transfer.Object.ID]++
	}
	c.versions[op.Gas.ID]++
}

// CounterValue returns how many increments a shared counter has received.
func (c *Cluster) CounterValue(id core.ObjectID) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters[id]
}

// Owner returns the last recipient of a transferred object.
func (c *Cluster) Owner(id core.ObjectID) (core.Address, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.owners[id]
	return a, ok
}

// Version returns how many accepted operations touched an object.
func (c *Cluster) Version(id core.ObjectID) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.versions[id]
}

// Accepted and Rejected count submissions by outcome.
func (c *Cluster) Accepted() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accepted
}

func (c *Cluster) Rejected() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rejected
}
