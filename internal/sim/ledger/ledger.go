package ledger

import (
	"haulcraft.sim/internal/sim/resources"
)

// PartyID identifies anything that can hold resources: an agent, a node, a
// depot, a site. Opaque to the ledger; only used as a map key.
type PartyID string

// Ledger is the authoritative store of held and allocated amounts per
// (party, type). Allocated amounts are units reserved for an in-flight
// transfer destined for that party: not yet spendable, but counted against
// capacity. The ledger does pure bookkeeping; policy and notifications live
// in the exchange engine, which is the only caller of the mutators.
type Ledger struct {
	held      map[PartyID]map[resources.Type]int
	allocated map[PartyID]map[resources.Type]int

	// warnf receives underflow diagnostics (a decrease below zero is a
	// caller logic error; the amount is clamped, never stored negative).
	warnf func(format string, args ...any)
}

func New() *Ledger {
	return &Ledger{
		held:      map[PartyID]map[resources.Type]int{},
		allocated: map[PartyID]map[resources.Type]int{},
	}
}

// SetWarnFunc installs a sink for underflow diagnostics. Nil disables them.
func (l *Ledger) SetWarnFunc(f func(format string, args ...any)) { l.warnf = f }

func (l *Ledger) HeldAmount(p PartyID, t resources.Type) int      { return l.held[p][t] }
func (l *Ledger) AllocatedAmount(p PartyID, t resources.Type) int { return l.allocated[p][t] }

func (l *Ledger) TotalHeld(p PartyID) int      { return sum(l.held[p]) }
func (l *Ledger) TotalAllocated(p PartyID) int { return sum(l.allocated[p]) }

func (l *Ledger) IncreaseHeld(p PartyID, t resources.Type, n int) {
	bump(l.held, p, t, n)
}

func (l *Ledger) DecreaseHeld(p PartyID, t resources.Type, n int) {
	l.drop(l.held, "held", p, t, n)
}

func (l *Ledger) IncreaseAllocated(p PartyID, t resources.Type, n int) {
	bump(l.allocated, p, t, n)
}

func (l *Ledger) DecreaseAllocated(p PartyID, t resources.Type, n int) {
	l.drop(l.allocated, "allocated", p, t, n)
}

func bump(m map[PartyID]map[resources.Type]int, p PartyID, t resources.Type, n int) {
	if n <= 0 {
		return
	}
	e := m[p]
	if e == nil {
		e = map[resources.Type]int{}
		m[p] = e
	}
	e[t] += n
}

func (l *Ledger) drop(m map[PartyID]map[resources.Type]int, kind string, p PartyID, t resources.Type, n int) {
	if n <= 0 {
		return
	}
	e := m[p]
	cur := e[t]
	if n > cur {
		if l.warnf != nil {
			l.warnf("ledger: %s underflow party=%s type=%s have=%d dec=%d", kind, p, t, cur, n)
		}
		n = cur
	}
	if n == 0 {
		return
	}
	e[t] -= n
	if e[t] <= 0 {
		delete(e, t)
	}
	if len(e) == 0 {
		delete(m, p)
	}
}

func sum(e map[resources.Type]int) int {
	total := 0
	for _, n := range e {
		total += n
	}
	return total
}
