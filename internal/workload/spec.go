// Package workload declares weighted operation mixes and generates the
// operations a benchmark run submits.
package workload

import (
	"errors"
	"fmt"
	"math"

	"github.com/hashicorp/go-multierror"

	"simbench/internal/core"
	"simbench/internal/ratelimit"
)

// ErrInvalidSpec is returned when a workload configuration is malformed.
var ErrInvalidSpec = errors.New("invalid workload spec")

// KindWeight pairs an operation kind with its relative weight. Declaration
// order is significant: it is the stable order weighted draws walk.
type KindWeight struct {
	Kind   core.Kind
	Weight int
}

// Spec is an immutable workload descriptor.
type Spec struct {
	Name          string
	TargetQPS     float64
	NumWorkers    int
	InFlightRatio float64
	Weights       []KindWeight

	Owner      core.Address
	PrimaryGas core.ObjectRef
	ExtraGas   []core.ObjectRef
	Keypair    core.Keypair

	NumTransferAccounts int
	NumSharedCounters   int

	// Seed fixes the kind sequence the generator draws.
	Seed uint64
}

// KnownKinds lists the operation kinds a workload can issue, in their
// canonical order.
var KnownKinds = []core.Kind{core.KindSharedCounter, core.KindTransferObject}

// ParseKind maps a configuration name to a Kind.
func ParseKind(name string) (core.Kind, error) {
	for _, k := range KnownKinds {
		if string(k) == name {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: unknown operation kind %q", ErrInvalidSpec, name)
}

// TotalWeight sums every configured weight.
func (s Spec) TotalWeight() int {
	total := 0
	for _, w := range s.Weights {
		total += w.Weight
	}
	return total
}

// WeightOf returns the configured weight for kind, or 0.
func (s Spec) WeightOf(kind core.Kind) int {
	total := 0
	for _, w := range s.Weights {
		if w.Kind == kind {
			total += w.Weight
		}
	}
	return total
}

// MaxInFlight is ceil(TargetQPS × InFlightRatio), the cap on outstanding
// operations.
func (s Spec) MaxInFlight() int {
	return ratelimit.InFlightCapacity(s.TargetQPS, s.InFlightRatio)
}

// FundingObjects returns the primary gas object followed by any extra gas.
func (s Spec) FundingObjects() []core.ObjectRef {
	out := make([]core.ObjectRef, 0, 1+len(s.ExtraGas))
	if !s.PrimaryGas.IsZero() {
		out = append(out, s.PrimaryGas)
	}
	return append(out, s.ExtraGas...)
}

// Validate reports every problem with the spec at once. The returned error
// wraps ErrInvalidSpec.
func (s Spec) Validate() error {
	var result *multierror.Error
	add := func(format string, args ...any) {
		result = multierror.Append(result, fmt.Errorf(format, args...))
	}

	if s.TargetQPS <= 0 || math.IsNaN(s.TargetQPS) || math.IsInf(s.TargetQPS, 0) {
		add("target qps must be positive, got %v", s.TargetQPS)
	}
	if s.NumWorkers <= 0 {
		add("num workers must be positive, got %d", s.NumWorkers)
	}
	if s.InFlightRatio <= 0 || math.IsNaN(s.InFlightRatio) || math.IsInf(s.InFlightRatio, 0) {
		add("in-flight ratio must be positive, got %v", s.InFlightRatio)
	}

	seen := make(map[core.Kind]bool)
	for _, w := range s.Weights {
		if w.Weight < 0 {
			add("weight for %s must be non-negative, got %d", w.Kind, w.Weight)
		}
		if seen[w.Kind] {
			add("duplicate weight for %s", w.Kind)
		}
		seen[w.Kind] = true
		if _, err := ParseKind(string(w.Kind)); err != nil {
			add("unknown operation kind %q", w.Kind)
		}
	}
	total := s.TotalWeight()
	if total <= 0 {
		add("total weight must be positive, got %d", total)
	}

	if total > 0 {
		if s.PrimaryGas.IsZero() {
			add("primary gas object is required")
		}
		if s.Keypair.IsZero() {
			add("keypair is required")
		}
	}
	if s.WeightOf(core.KindTransferObject) > 0 {
		funding := len(s.FundingObjects())
		switch {
		case s.NumTransferAccounts < 1:
			add("transfer workload needs at least one transfer account, got %d", s.NumTransferAccounts)
		case s.NumTransferAccounts > funding:
			add("%d transfer accounts need %d funding objects, only %d available",
				s.NumTransferAccounts, s.NumTransferAccounts, funding)
		}
	}
	if s.WeightOf(core.KindSharedCounter) > 0 && s.NumSharedCounters < 1 {
		add("shared counter workload needs at least one counter, got %d", s.NumSharedCounters)
	}

	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSpec, err)
	}
	return nil
}
