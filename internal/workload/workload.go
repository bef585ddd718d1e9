package workload

import (
	"fmt"

	"simbench/internal/core"
)

// Workload bundles a validated spec with its generator.
type Workload struct {
	Spec      Spec
	Generator *Generator
}

// New validates spec and prepares its generator.
func New(spec Spec) (*Workload, error) {
	gen, err := NewGenerator(spec)
	if err != nil {
		return nil, err
	}
	return &Workload{Spec: spec, Generator: gen}, nil
}

// Name returns the workload name, falling back to its kinds.
func (w *Workload) Name() string {
	if w.Spec.Name != "" {
		return w.Spec.Name
	}
	return fmt.Sprintf("workload(%d kinds)", len(w.Generator.kinds))
}

// NewCombination builds the combined transfer-object / shared-counter
// workload.
func NewCombination(
	targetQPS int,
	numWorkers int,
	inFlightRatio float64,
	primaryGas core.ObjectRef,
	owner core.Address,
	keypair core.Keypair,
	numTransferAccounts int,
	sharedCounterWeight int,
	transferObjectWeight int,
) (*Workload, error) {
	return New(Spec{
		Name:          "combination",
		TargetQPS:     float64(targetQPS),
		NumWorkers:    numWorkers,
		InFlightRatio: inFlightRatio,
		Weights: []KindWeight{
			{Kind: core.KindSharedCounter, Weight: sharedCounterWeight},
			{Kind: core.KindTransferObject, Weight: transferObjectWeight},
		},
		Owner:               owner,
		PrimaryGas:          primaryGas,
		Keypair:             keypair,
		NumTransferAccounts: numTransferAccounts,
		NumSharedCounters:   1,
	})
}
