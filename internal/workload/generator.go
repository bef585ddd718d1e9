package workload

import (
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"

	"simbench/internal/core"
)

// seedStream is the second PCG word; it keeps generator streams distinct
// from other seeded consumers that share a numeric seed.
const seedStream = 0x5ce7_c0de

// Generator produces an infinite, restartable sequence of operations whose
// kind distribution converges to the spec's weights. It is safe for
// concurrent use.
type Generator struct {
	spec Spec

	kinds      []core.Kind
	cumulative []int
	total      int

	recipients      []core.Address
	transferObjects []core.ObjectRef
	funding         []core.ObjectRef
	counters        []core.ObjectID

	mu      sync.Mutex
	rng     *rand.Rand
	seq     uint64
	cursors map[core.Kind]int
	counts  map[core.Kind]uint64
}

// NewGenerator validates spec and builds a generator for it.
func NewGenerator(spec Spec) (*Generator, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	g := &Generator{
		spec:    spec,
		funding: spec.FundingObjects(),
		counts:  make(map[core.Kind]uint64),
	}
	for _, w := range spec.Weights {
		if w.Weight == 0 {
			continue
		}
		g.total += w.Weight
		g.kinds = append(g.kinds, w.Kind)
		g.cumulative = append(g.cumulative, g.total)
	}

	for i := 0; i < spec.NumTransferAccounts; i++ {
		g.recipients = append(g.recipients, core.DeriveAddress(spec.Owner, i))
		g.transferObjects = append(g.transferObjects, core.ObjectRef{
			ID:      core.DeriveObjectID(spec.PrimaryGas.ID, i),
			Version: 1,
		})
	}
	for i := 0; i < spec.NumSharedCounters; i++ {
		g.counters = append(g.counters, core.DeriveObjectID(spec.PrimaryGas.ID, spec.NumTransferAccounts+i))
	}

	g.Restart()
	return g, nil
}

// Spec returns the descriptor the generator was built from.
func (g *Generator) Spec() Spec { return g.spec }

// Restart rewinds the seeded stream so subsequent draws replay the sequence
// from the beginning. Draw counts are kept.
func (g *Generator) Restart() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rng = rand.New(rand.NewPCG(g.spec.Seed, seedStream))
	g.cursors = make(map[core.Kind]int)
}

// Next draws the next operation.
func (g *Generator) Next() core.Operation {
	g.mu.Lock()
	kind := g.pick(g.rng.IntN(g.total))
	cursor := g.cursors[kind]
	g.cursors[kind] = cursor + 1
	g.counts[kind]++
	g.seq++
	seq := g.seq
	g.mu.Unlock()

	op := core.Operation{
		ID:       uuid.NewString(),
		Seq:      seq,
		Workload: g.spec.Name,
		Kind:     kind,
		Sender:   g.spec.Owner,
		Gas:      g.spec.PrimaryGas,
		Signer:   g.spec.Keypair,
	}
	switch kind {
	case core.KindTransferObject:
		idx := cursor % len(g.transferObjects)
		op.Gas = g.funding[idx%len(g.funding)]
		op.Transfer = &core.TransferPayload{
			Object:    g.transferObjects[idx],
			Recipient: g.recipients[(idx+1)%len(g.recipients)],
		}
	case core.KindSharedCounter:
		op.Counter = &core.CounterPayload{Counter: g.counters[cursor%len(g.counters)]}
	}
	return op
}

// pick walks the cumulative weights in declaration order; the first bucket
// whose upper bound exceeds r wins.
func (g *Generator) pick(r int) core.Kind {
	for i, bound := range g.cumulative {
		if r < bound {
			return g.kinds[i]
		}
	}
	return g.kinds[len(g.kinds)-1]
}

// Counts returns how many operations of each kind have been drawn.
func (g *Generator) Counts() map[core.Kind]uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[core.Kind]uint64, len(g.counts))
	for k, v := range g.counts {
		out[k] = v
	}
	return out
}

// Counters returns the shared counter objects the workload increments.
func (g *Generator) Counters() []core.ObjectID {
	return append([]core.ObjectID(nil), g.counters...)
}

// TransferObjects returns the owned objects the workload moves around.
func (g *Generator) TransferObjects() []core.ObjectRef {
	return append([]core.ObjectRef(nil), g.transferObjects...)
}
