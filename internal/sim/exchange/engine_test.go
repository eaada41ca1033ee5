package exchange

import (
	"testing"

	"haulcraft.sim/internal/sim/resources"
)

// stockProvider answers from its held amount, like a carrier agent.
type stockProvider struct{ id PartyID }

func (p *stockProvider) PartyID() PartyID { return p.id }
func (p *stockProvider) CanProvide(v View, t resources.Type, n int) bool {
	return v.HeldAmount(p.id, t) >= n
}

// bottomlessProvider answers true unconditionally, like an extraction node.
type bottomlessProvider struct{ id PartyID }

func (p *bottomlessProvider) PartyID() PartyID                          { return p.id }
func (p *bottomlessProvider) CanProvide(View, resources.Type, int) bool { return true }

// binReceiver is a fixed-capacity receiver that takes any type.
type binReceiver struct {
	id  PartyID
	cap int
}

func (r *binReceiver) PartyID() PartyID  { return r.id }
func (r *binReceiver) Capacity(View) int { return r.cap }
func (r *binReceiver) CanReceive(v View, t resources.Type, n int) bool {
	return v.TotalHeld(r.id)+v.TotalAllocated(r.id)+n <= r.cap
}

// needyReceiver is demand-driven: requirements define both what it takes and
// its capacity, looked up fresh on every call.
type needyReceiver struct {
	id   PartyID
	reqs RequirementSet
}

func (r *needyReceiver) PartyID() PartyID    { return r.id }
func (r *needyReceiver) Capacity(v View) int { return r.reqs.Capacity() }
func (r *needyReceiver) CanReceive(v View, t resources.Type, n int) bool {
	return n <= r.reqs.MissingOf(v, r.id, t)
}

func seed(e *Engine, p PartyID, t resources.Type, n int) {
	e.Deposit(p, t, n)
}

func TestRequest_ApproveThenComplete(t *testing.T) {
	e := NewEngine()
	src := &stockProvider{id: "P"}
	dst := &binReceiver{id: "R", cap: 10}
	seed(e, "P", resources.Stone, 5)

	tx, ok := e.Request(src, dst, resources.Stone, 1)
	if !ok {
		t.Fatalf("request denied, want approved")
	}
	if got := e.AllocatedAmount("R", resources.Stone); got != 1 {
		t.Fatalf("allocated[R][stone] = %d, want 1", got)
	}
	// Source is untouched until completion.
	if got := e.HeldAmount("P", resources.Stone); got != 5 {
		t.Fatalf("held[P][stone] = %d, want 5 before completion", got)
	}

	tx.Complete()
	if got := e.HeldAmount("R", resources.Stone); got != 1 {
		t.Fatalf("held[R][stone] = %d, want 1", got)
	}
	if got := e.HeldAmount("P", resources.Stone); got != 4 {
		t.Fatalf("held[P][stone] = %d, want 4", got)
	}
	if got := e.AllocatedAmount("R", resources.Stone); got != 0 {
		t.Fatalf("allocated[R][stone] = %d, want 0", got)
	}
	if tx.Status != StatusCompleted || !tx.Settled() {
		t.Fatalf("status = %s, want COMPLETED", tx.Status)
	}
	if e.PendingCount() != 0 {
		t.Fatalf("pending = %d, want 0", e.PendingCount())
	}
}

func TestRequest_DeniedWhenReceiverFull(t *testing.T) {
	e := NewEngine()
	src := &stockProvider{id: "P"}
	dst := &binReceiver{id: "R", cap: 1}
	seed(e, "P", resources.Stone, 5)
	seed(e, "R", resources.Wood, 1)

	tx, ok := e.Request(src, dst, resources.Stone, 1)
	if ok || tx != nil {
		t.Fatalf("request approved, want denied (receiver at capacity)")
	}
	// Denial purity: nothing moved on either side.
	if got := e.HeldAmount("P", resources.Stone); got != 5 {
		t.Fatalf("held[P][stone] = %d, want 5", got)
	}
	if got := e.TotalAllocated("R"); got != 0 {
		t.Fatalf("allocated[R] = %d, want 0", got)
	}
	if got := e.TotalHeld("R"); got != 1 {
		t.Fatalf("held[R] = %d, want 1", got)
	}
}

func TestRequest_DeniedWhenProviderShort(t *testing.T) {
	e := NewEngine()
	src := &stockProvider{id: "P"}
	dst := &binReceiver{id: "R", cap: 10}

	if _, ok := e.Request(src, dst, resources.Stone, 1); ok {
		t.Fatalf("request approved, want denied (empty provider)")
	}
	if got := e.TotalAllocated("R"); got != 0 {
		t.Fatalf("allocated[R] = %d, want 0", got)
	}
}

func TestRequest_RejectsBadArguments(t *testing.T) {
	e := NewEngine()
	src := &bottomlessProvider{id: "P"}
	dst := &binReceiver{id: "R", cap: 10}

	if _, ok := e.Request(nil, dst, resources.Stone, 1); ok {
		t.Fatalf("nil source approved")
	}
	if _, ok := e.Request(src, nil, resources.Stone, 1); ok {
		t.Fatalf("nil destination approved")
	}
	if _, ok := e.Request(src, dst, resources.Stone, 0); ok {
		t.Fatalf("zero amount approved")
	}
	if _, ok := e.Request(src, dst, resources.Type("PLUTONIUM"), 1); ok {
		t.Fatalf("unknown resource type approved")
	}
}

func TestRequest_AllocationCountsAgainstCapacity(t *testing.T) {
	e := NewEngine()
	src := &bottomlessProvider{id: "P"}
	dst := &binReceiver{id: "R", cap: 2}

	if _, ok := e.Request(src, dst, resources.Stone, 1); !ok {
		t.Fatalf("first request denied")
	}
	if _, ok := e.Request(src, dst, resources.Stone, 1); !ok {
		t.Fatalf("second request denied")
	}
	// Two outstanding reservations fill capacity 2 even though held is 0.
	if _, ok := e.Request(src, dst, resources.Stone, 1); ok {
		t.Fatalf("third request approved, want denied by allocation")
	}
	if got := e.TotalHeld("R") + e.TotalAllocated("R"); got != 2 {
		t.Fatalf("held+allocated = %d, want 2", got)
	}
}

func TestComplete_Conservation(t *testing.T) {
	e := NewEngine()
	src := &stockProvider{id: "P"}
	dst := &binReceiver{id: "R", cap: 10}
	seed(e, "P", resources.Stone, 5)

	sumBoth := func() int {
		return e.HeldAmount("P", resources.Stone) + e.AllocatedAmount("P", resources.Stone) +
			e.HeldAmount("R", resources.Stone) + e.AllocatedAmount("R", resources.Stone)
	}

	before := sumBoth()
	tx, _ := e.Request(src, dst, resources.Stone, 2)
	// Reservation shifts nothing between parties.
	if got := sumBoth(); got != before+2 {
		// The destination's allocation is new bookkeeping, not a debit: the
		// source still reports its 5 until completion.
		t.Fatalf("held+allocated after reserve = %d, want %d", got, before+2)
	}
	tx.Complete()
	if got := sumBoth(); got != before {
		t.Fatalf("held+allocated after complete = %d, want %d", got, before)
	}
}

func TestComplete_IdempotentTerminal(t *testing.T) {
	e := NewEngine()
	src := &stockProvider{id: "P"}
	dst := &binReceiver{id: "R", cap: 10}
	seed(e, "P", resources.Stone, 5)

	tx, _ := e.Request(src, dst, resources.Stone, 1)
	tx.Complete()
	tx.Complete()
	tx.Cancel()

	if got := e.HeldAmount("R", resources.Stone); got != 1 {
		t.Fatalf("held[R][stone] = %d after duplicate terminals, want 1", got)
	}
	if got := e.HeldAmount("P", resources.Stone); got != 4 {
		t.Fatalf("held[P][stone] = %d after duplicate terminals, want 4", got)
	}
	if tx.Status != StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED (cancel after complete is a no-op)", tx.Status)
	}
}

func TestCancel_ClearsAllocationOnly(t *testing.T) {
	e := NewEngine()
	src := &stockProvider{id: "P"}
	dst := &binReceiver{id: "R", cap: 10}
	seed(e, "P", resources.Stone, 5)

	tx, _ := e.Request(src, dst, resources.Stone, 3)
	if got := e.TotalAllocated("R"); got != 3 {
		t.Fatalf("allocated[R] = %d, want 3", got)
	}
	tx.Cancel()
	tx.Cancel()

	if got := e.TotalAllocated("R"); got != 0 {
		t.Fatalf("allocated[R] = %d after cancel, want 0", got)
	}
	if got := e.HeldAmount("P", resources.Stone); got != 5 {
		t.Fatalf("held[P][stone] = %d after cancel, want 5 (never debited)", got)
	}
	if got := e.TotalHeld("R"); got != 0 {
		t.Fatalf("held[R] = %d after cancel, want 0", got)
	}
	if tx.Status != StatusCancelled {
		t.Fatalf("status = %s, want CANCELLED", tx.Status)
	}
}

func TestCancel_BlocksLaterComplete(t *testing.T) {
	e := NewEngine()
	src := &stockProvider{id: "P"}
	dst := &binReceiver{id: "R", cap: 10}
	seed(e, "P", resources.Stone, 5)

	tx, _ := e.Request(src, dst, resources.Stone, 1)
	tx.Cancel()
	tx.Complete()

	if got := e.TotalHeld("R"); got != 0 {
		t.Fatalf("held[R] = %d, want 0 (complete after cancel must not deliver)", got)
	}
	if got := e.HeldAmount("P", resources.Stone); got != 5 {
		t.Fatalf("held[P][stone] = %d, want 5", got)
	}
}

func TestDemandReceiver_RequirementsGateAndCapacity(t *testing.T) {
	e := NewEngine()
	src := &stockProvider{id: "P"}
	dst := &needyReceiver{id: "S", reqs: RequirementSet{
		{Type: resources.Stone, Needed: 3},
	}}
	seed(e, "P", resources.Stone, 10)
	seed(e, "P", resources.Wood, 10)

	// Wood is not on the list.
	if _, ok := e.Request(src, dst, resources.Wood, 1); ok {
		t.Fatalf("unrequired type approved")
	}

	for i := 0; i < 3; i++ {
		tx, ok := e.Request(src, dst, resources.Stone, 1)
		if !ok {
			t.Fatalf("stone request %d denied", i+1)
		}
		tx.Complete()
	}
	if got := dst.reqs.MissingOf(e, "S", resources.Stone); got != 0 {
		t.Fatalf("missing = %d after three deliveries, want 0", got)
	}
	if !dst.reqs.Fulfilled(e, "S") {
		t.Fatalf("requirement set not fulfilled")
	}
	// Fulfilled means full: capacity == sum needed == held.
	if _, ok := e.Request(src, dst, resources.Stone, 1); ok {
		t.Fatalf("request approved against fulfilled requirement")
	}

	// Editing the set takes effect on the next query, no caching anywhere.
	dst.reqs = RequirementSet{{Type: resources.Stone, Needed: 5}}
	if _, ok := e.Request(src, dst, resources.Stone, 1); !ok {
		t.Fatalf("request denied after requirements grew")
	}
}

func TestSubscribeChange_FiresPerAffectedParty(t *testing.T) {
	e := NewEngine()
	src := &stockProvider{id: "P"}
	dst := &binReceiver{id: "R", cap: 10}
	seed(e, "P", resources.Stone, 5)

	counts := map[PartyID]int{}
	cancel := e.SubscribeChange(func(p PartyID) { counts[p]++ })

	tx, _ := e.Request(src, dst, resources.Stone, 1)
	if counts["R"] != 1 || counts["P"] != 0 {
		t.Fatalf("after reserve counts = %v, want only R notified", counts)
	}
	tx.Complete()
	if counts["R"] != 2 || counts["P"] != 1 {
		t.Fatalf("after complete counts = %v, want R=2 P=1", counts)
	}

	cancel()
	e.Deposit("P", resources.Stone, 1)
	if counts["P"] != 1 {
		t.Fatalf("subscriber fired after cancel: %v", counts)
	}
}

func TestSubscribeTransfer_CarriesFullDescription(t *testing.T) {
	e := NewEngine()
	src := &stockProvider{id: "P"}
	dst := &binReceiver{id: "R", cap: 10}
	seed(e, "P", resources.Iron, 2)

	var got []Transfer
	e.SubscribeTransfer(func(tr Transfer) { got = append(got, tr) })

	tx, _ := e.Request(src, dst, resources.Iron, 2)
	if len(got) != 0 {
		t.Fatalf("transfer broadcast fired before completion")
	}
	tx.Complete()

	if len(got) != 1 {
		t.Fatalf("broadcasts = %d, want 1", len(got))
	}
	tr := got[0]
	if tr.Source != "P" || tr.Destination != "R" || tr.Type != resources.Iron || tr.Amount != 2 {
		t.Fatalf("broadcast = %+v", tr)
	}
	if tr.ID != tx.ID {
		t.Fatalf("broadcast id %q != transaction id %q", tr.ID, tx.ID)
	}
}

func TestCompleteOnSettledTransaction_Warns(t *testing.T) {
	e := NewEngine()
	warned := 0
	e.SetWarnFunc(func(string, ...any) { warned++ })

	src := &stockProvider{id: "P"}
	dst := &binReceiver{id: "R", cap: 10}
	seed(e, "P", resources.Stone, 1)

	tx, _ := e.Request(src, dst, resources.Stone, 1)
	tx.Complete()
	warned = 0
	tx.Complete()
	if warned != 1 {
		t.Fatalf("warnings = %d for complete-on-settled, want 1", warned)
	}
}

func TestConsume_DebitsHeld(t *testing.T) {
	e := NewEngine()
	seed(e, "S", resources.Stone, 3)
	e.Consume("S", resources.Stone, 3)
	if got := e.TotalHeld("S"); got != 0 {
		t.Fatalf("held[S] = %d after consume, want 0", got)
	}
}
