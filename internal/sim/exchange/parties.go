package exchange

import (
	"haulcraft.sim/internal/sim/ledger"
	"haulcraft.sim/internal/sim/resources"
)

// PartyID is re-exported so callers of the engine don't need to import the
// ledger package directly.
type PartyID = ledger.PartyID

// View is the read-only ledger query surface handed to capability predicates
// and requirement math. The Engine implements it; nothing else mutates the
// ledger, so reads through a View are always consistent with the last
// engine operation.
type View interface {
	HeldAmount(p PartyID, t resources.Type) int
	AllocatedAmount(p PartyID, t resources.Type) int
	TotalHeld(p PartyID) int
	TotalAllocated(p PartyID) int
}

// Provider is the source side of a transfer. Finite providers answer from
// their held amount; extraction nodes answer true unconditionally.
type Provider interface {
	PartyID() PartyID
	CanProvide(v View, t resources.Type, n int) bool
}

// Receiver is the destination side. Capacity counts held plus allocated;
// demand-driven receivers derive it from their current requirements on every
// call, so it must not be cached.
type Receiver interface {
	PartyID() PartyID
	Capacity(v View) int
	CanReceive(v View, t resources.Type, n int) bool
}
