package exchange

import "haulcraft.sim/internal/sim/resources"

// Requirement is one line of a demand-driven receiver's shopping list:
// "this party needs Needed units of Type in total". Missing amounts are a
// pure function of the current ledger, recomputed on every query.
type Requirement struct {
	Type   resources.Type
	Needed int
}

// Missing returns how many units are still missing for p.
func (r Requirement) Missing(v View, p PartyID) int {
	m := r.Needed - v.HeldAmount(p, r.Type)
	if m < 0 {
		return 0
	}
	return m
}

func (r Requirement) Fulfilled(v View, p PartyID) bool {
	return r.Missing(v, p) == 0
}

// RequirementSet is the full list for one party. Its sum of Needed doubles
// as the party's capacity ceiling, so a set edit immediately changes what
// the engine will admit.
type RequirementSet []Requirement

func (s RequirementSet) Capacity() int {
	total := 0
	for _, r := range s {
		total += r.Needed
	}
	return total
}

// MissingOf returns the missing amount for one type, 0 when the type is not
// in the set.
func (s RequirementSet) MissingOf(v View, p PartyID, t resources.Type) int {
	for _, r := range s {
		if r.Type == t {
			return r.Missing(v, p)
		}
	}
	return 0
}

func (s RequirementSet) Missing(v View, p PartyID) int {
	total := 0
	for _, r := range s {
		total += r.Missing(v, p)
	}
	return total
}

func (s RequirementSet) Fulfilled(v View, p PartyID) bool {
	for _, r := range s {
		if !r.Fulfilled(v, p) {
			return false
		}
	}
	return true
}
