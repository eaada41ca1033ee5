package exchange

import (
	"fmt"
	"sync/atomic"

	"haulcraft.sim/internal/sim/ledger"
	"haulcraft.sim/internal/sim/resources"
)

// Engine is the single authority for beginning, completing and cancelling
// transfers. It owns the ledger and the set of pending transactions; every
// mutating call is expected to run on one goroutine (the world loop), which
// is the entire concurrency discipline of this core.
type Engine struct {
	led    *ledger.Ledger
	active map[*Transaction]struct{}

	nextTxNum atomic.Uint64

	changeSubs   map[int]func(PartyID)
	transferSubs map[int]func(Transfer)
	nextSub      int

	warnf func(format string, args ...any)
}

func NewEngine() *Engine {
	e := &Engine{
		led:          ledger.New(),
		active:       map[*Transaction]struct{}{},
		changeSubs:   map[int]func(PartyID){},
		transferSubs: map[int]func(Transfer){},
	}
	e.led.SetWarnFunc(func(format string, args ...any) {
		if e.warnf != nil {
			e.warnf(format, args...)
		}
	})
	return e
}

// SetWarnFunc installs a sink for diagnostics (ledger underflow, terminal
// re-transitions). Nil disables them.
func (e *Engine) SetWarnFunc(f func(format string, args ...any)) { e.warnf = f }

func (e *Engine) HeldAmount(p PartyID, t resources.Type) int      { return e.led.HeldAmount(p, t) }
func (e *Engine) AllocatedAmount(p PartyID, t resources.Type) int { return e.led.AllocatedAmount(p, t) }
func (e *Engine) TotalHeld(p PartyID) int                         { return e.led.TotalHeld(p) }
func (e *Engine) TotalAllocated(p PartyID) int                    { return e.led.TotalAllocated(p) }

// HasCapacity reports whether dst could admit n more units right now. Held
// and allocated both count against the ceiling.
func (e *Engine) HasCapacity(dst Receiver, n int) bool {
	p := dst.PartyID()
	return e.led.TotalHeld(p)+e.led.TotalAllocated(p)+n <= dst.Capacity(e)
}

// Deposit credits held units directly, outside any transaction. Used to
// seed starting stock; production ticks on nodes go through here as well.
func (e *Engine) Deposit(p PartyID, t resources.Type, n int) {
	if n <= 0 {
		return
	}
	e.led.IncreaseHeld(p, t, n)
	e.notifyChange(p)
}

// Consume debits held units directly, outside any transaction. Used when a
// party spends what it holds (a site building its level). Clamps at zero
// like every ledger decrease.
func (e *Engine) Consume(p PartyID, t resources.Type, n int) {
	if n <= 0 {
		return
	}
	e.led.DecreaseHeld(p, t, n)
	e.notifyChange(p)
}

// Request is the reserve half of the two-phase transfer. Checks run in
// order, short-circuiting: provider stock, receiver policy, capacity. A
// denial is the normal "receiver full / source empty" outcome, not an
// error: nothing is mutated and (nil, false) is returned.
//
// On approval the amount is allocated on the destination only. The source
// keeps reporting the unit as held until completion; only the destination
// has an allocated concept.
func (e *Engine) Request(src Provider, dst Receiver, t resources.Type, n int) (*Transaction, bool) {
	if src == nil || dst == nil || n <= 0 || !resources.Valid(t) {
		return nil, false
	}
	if !src.CanProvide(e, t, n) {
		return nil, false
	}
	if !dst.CanReceive(e, t, n) {
		return nil, false
	}
	if !e.HasCapacity(dst, n) {
		return nil, false
	}

	tx := &Transaction{
		ID:          fmt.Sprintf("TX%06d", e.nextTxNum.Add(1)),
		Source:      src.PartyID(),
		Destination: dst.PartyID(),
		Type:        t,
		Amount:      n,
		Status:      StatusPending,
		eng:         e,
	}
	e.active[tx] = struct{}{}
	e.led.IncreaseAllocated(tx.Destination, t, n)
	e.notifyChange(tx.Destination)
	return tx, true
}

// Complete commits a pending transaction: the allocated units become held
// on the destination and the source is debited now, at completion time.
// Completing a settled or unknown transaction is a silent no-op.
func (e *Engine) Complete(tx *Transaction) {
	if !e.take(tx, "complete") {
		return
	}
	e.led.DecreaseAllocated(tx.Destination, tx.Type, tx.Amount)
	e.led.IncreaseHeld(tx.Destination, tx.Type, tx.Amount)
	e.led.DecreaseHeld(tx.Source, tx.Type, tx.Amount)
	tx.Status = StatusCompleted

	e.notifyChange(tx.Source)
	e.notifyChange(tx.Destination)
	e.notifyTransfer(Transfer{
		ID:          tx.ID,
		Source:      tx.Source,
		Destination: tx.Destination,
		Type:        tx.Type,
		Amount:      tx.Amount,
	})
}

// Cancel releases a pending reservation. The source was never debited, so
// only the destination's allocation is undone. Idempotent like Complete.
func (e *Engine) Cancel(tx *Transaction) {
	if !e.take(tx, "cancel") {
		return
	}
	e.led.DecreaseAllocated(tx.Destination, tx.Type, tx.Amount)
	tx.Status = StatusCancelled
	e.notifyChange(tx.Destination)
}

// take removes tx from the active set, reporting duplicate terminal
// transitions as a diagnostic rather than an error.
func (e *Engine) take(tx *Transaction, op string) bool {
	if tx == nil {
		return false
	}
	if _, ok := e.active[tx]; !ok {
		if e.warnf != nil && tx.Status != StatusPending {
			e.warnf("exchange: %s on settled transaction %s (status=%s)", op, tx.ID, tx.Status)
		}
		return false
	}
	delete(e.active, tx)
	return true
}

// PendingCount reports the number of open reservations.
func (e *Engine) PendingCount() int { return len(e.active) }

// SubscribeChange registers a callback fired with the affected party after
// every held/allocated mutation for that party. Order across subscribers is
// unspecified; a callback always runs after the mutation it reports.
func (e *Engine) SubscribeChange(fn func(PartyID)) (cancel func()) {
	e.nextSub++
	id := e.nextSub
	e.changeSubs[id] = fn
	return func() { delete(e.changeSubs, id) }
}

// SubscribeTransfer registers a callback fired with the full transfer
// description after every completed transaction.
func (e *Engine) SubscribeTransfer(fn func(Transfer)) (cancel func()) {
	e.nextSub++
	id := e.nextSub
	e.transferSubs[id] = fn
	return func() { delete(e.transferSubs, id) }
}

func (e *Engine) notifyChange(p PartyID) {
	for _, fn := range e.changeSubs {
		fn(p)
	}
}

func (e *Engine) notifyTransfer(tr Transfer) {
	for _, fn := range e.transferSubs {
		fn(tr)
	}
}
