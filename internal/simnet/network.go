package simnet

import (
	"container/heap"
	"errors"
	"fmt"
	"sync"
	"time"
)

var ErrUnknownNode = errors.New("unknown node")

// Message is one scheduled delivery. Times are virtual, measured from the
// start of the session.
type Message struct {
	From      NodeID
	To        NodeID
	Payload   any
	SentAt    time.Duration
	DeliverAt time.Duration
	Seq       uint64
}

// Handler consumes a delivered message. It may Send further messages.
type Handler func(Message)

// Network is a discrete-event transport. Sends are scheduled on a virtual
// clock using the latency model; Step delivers the earliest pending message
// and advances the clock to its delivery time. Messages due at the same
// instant are delivered in send order.
type Network struct {
	model *LatencyModel

	mu        sync.Mutex
	now       time.Duration
	seq       uint64
	queue     messageQueue
	handlers  map[NodeID]Handler
	delivered uint64
}

func NewNetwork(cfg SimConfig) *Network {
	return &Network{
		model:    NewLatencyModel(cfg.Net.Latency, cfg.Seed),
		handlers: make(map[NodeID]Handler),
	}
}

// Register installs the handler for id, replacing any earlier one.
func (n *Network) Register(id NodeID, h Handler) {
	n.mu.Lock()
	n.handlers[id] = h
	n.mu.Unlock()
}

// Send schedules payload for delivery to a registered node.
func (n *Network) Send(from, to NodeID, payload any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.handlers[to]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNode, to)
	}
	n.seq++
	heap.Push(&n.queue, Message{
		From:      from,
		To:        to,
		Payload:   payload,
		SentAt:    n.now,
		DeliverAt: n.now + n.model.SampleLink(from, to),
		Seq:       n.seq,
	})
	return nil
}

// Step delivers the next message. It returns false when nothing is pending.
// The handler runs without the network lock held.
func (n *Network) Step() bool {
	n.mu.Lock()
	if n.queue.Len() == 0 {
		n.mu.Unlock()
		return false
	}
	msg := heap.Pop(&n.queue).(Message)
	n.now = msg.DeliverAt
	n.delivered++
	h := n.handlers[msg.To]
	n.mu.Unlock()

	h(msg)
	return true
}

// RunUntilIdle delivers messages until none are pending and returns how
// many were delivered.
func (n *Network) RunUntilIdle() int {
	count := 0
	for n.Step() {
		count++
	}
	return count
}

// RunUntil delivers every message due at or before t, then moves the clock
// to t if it is behind.
func (n *Network) RunUntil(t time.Duration) int {
	count := 0
	for {
		n.mu.Lock()
		due := n.queue.Len() > 0 && n.queue[0].DeliverAt <= t
		n.mu.Unlock()
		if !due || !n.Step() {
			break
		}
		count++
	}
	n.mu.Lock()
	if n.now < t {
		n.now = t
	}
	n.mu.Unlock()
	return count
}

// Now returns the virtual time.
func (n *Network) Now() time.Duration {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.now
}

func (n *Network) Pending() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.queue.Len()
}

func (n *Network) Delivered() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.delivered
}

// messageQueue orders messages by delivery time, then send sequence.
type messageQueue []Message

func (q messageQueue) Len() int { return len(q) }

func (q messageQueue) Less(i, j int) bool {
	if q[i].DeliverAt != q[j].DeliverAt {
		return q[i].DeliverAt < q[j].DeliverAt
	}
	return q[i].Seq < q[j].Seq
}

func (q messageQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *messageQueue) Push(x any) { *q = append(*q, x.(Message)) }

func (q *messageQueue) Pop() any {
	old := *q
	last := old[len(old)-1]
	*q = old[:len(old)-1]
	return last
}
