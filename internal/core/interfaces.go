// Package core defines the fundamental types shared by the load driver and
// the network simulation.
package core

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind tags the type of operation a workload issues.
type Kind string

const (
	KindTransferObject Kind = "transfer_object"
	KindSharedCounter  Kind = "shared_counter"
)

// TransferPayload moves an owned object to a recipient.
type TransferPayload struct {
	Object    ObjectRef
	Recipient Address
}

// CounterPayload increments a shared counter object.
type CounterPayload struct {
	Counter ObjectID
}

// Operation is one ready-to-submit unit of work. It is owned by the worker
// that drew it until its submission completes.
type Operation struct {
	ID       string
	Seq      uint64
	Workload string
	Kind     Kind
	Sender   Address
	Gas      ObjectRef
	Signer   Keypair

	Transfer *TransferPayload
	Counter  *CounterPayload
}

// Bytes returns the canonical byte form that gets signed.
func (op Operation) Bytes() []byte {
	s := fmt.Sprintf("%s|%d|%s|%s|%s", op.ID, op.Seq, op.Kind, op.Sender, op.Gas)
	switch {
	case op.Transfer != nil:
		s += fmt.Sprintf("|%s|%s", op.Transfer.Object, op.Transfer.Recipient)
	case op.Counter != nil:
		s += "|" + op.Counter.Counter.String()
	}
	return []byte(s)
}

// Effects describes the observed outcome of a submitted operation.
type Effects struct {
	Digest  string
	Latency time.Duration
}

// Submitter is the external network interface operations are sent through.
// Implementations must be safe for concurrent use.
type Submitter interface {
	Submit(ctx context.Context, op Operation) (Effects, error)
}

// SubmitterFunc adapts a function to the Submitter interface.
type SubmitterFunc func(ctx context.Context, op Operation) (Effects, error)

func (f SubmitterFunc) Submit(ctx context.Context, op Operation) (Effects, error) {
	return f(ctx, op)
}

// ErrSubmission marks a single failed submission.
var ErrSubmission = errors.New("submission failed")

// SubmissionError records why one operation failed to submit.
type SubmissionError struct {
	OpID string
	Kind Kind
	Err  error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Kind, e.OpID, e.Err)
}

func (e *SubmissionError) Unwrap() []error { return []error{ErrSubmission, e.Err} }

// Event is a single completion record reported by a worker.
type Event struct {
	WorkerID  int
	Workload  string
	Timestamp time.Time
	Kind      Kind
	Duration  time.Duration
	Success   bool
	Error     string
}

// Reporter receives completion events. Implementations must be safe for
// concurrent use.
type Reporter interface {
	Report(Event)
}
