package pool

import "sync/atomic"

// Budget is an operation allowance shared by every worker of a run. A nil
// Budget is unlimited.
type Budget struct {
	remaining atomic.Int64
}

// NewBudget returns a budget of max operations, or nil when max <= 0.
func NewBudget(max int64) *Budget {
	if max <= 0 {
		return nil
	}
	b := &Budget{}
	b.remaining.Store(max)
	return b
}

// Claim takes one operation from the budget. It returns false once the
// budget is spent.
func (b *Budget) Claim() bool {
	if b == nil {
		return true
	}
	return b.remaining.Add(-1) >= 0
}

// Remaining reports how many claims are left, or -1 for an unlimited budget.
func (b *Budget) Remaining() int64 {
	if b == nil {
		return -1
	}
	if r := b.remaining.Load(); r > 0 {
		return r
	}
	return 0
}
