// Package interaction drives a sequence of single-unit transfers between a
// stationary interaction point and whichever counterpart is currently
// associated with it (in range). The engine never learns about proximity;
// this package owns that lifecycle and guarantees one outstanding
// transaction per point.
package interaction

import (
	"haulcraft.sim/internal/sim/exchange"
	"haulcraft.sim/internal/sim/resources"
)

type State string

const (
	StateIdle   State = "IDLE"
	StateActive State = "ACTIVE"
)

// Plan is one transfer the owning station wants to attempt with a
// counterpart: direction, type and amount, all chosen by the Policy.
type Plan struct {
	Source      exchange.Provider
	Destination exchange.Receiver
	Type        resources.Type
	Amount      int
}

// Policy decides whether and what to transfer with a counterpart at each
// step of the cycle. Returning false means "nothing to do right now", a
// normal outcome that leaves or returns the cycle to Idle.
type Policy interface {
	Plan(counterpart exchange.PartyID) (Plan, bool)
}

// Cycle is the per-station interaction state machine. Idle until a
// counterpart associates and a reservation is approved; then Active with
// exactly one pending transaction and a tick deadline. When the deadline
// passes the transaction commits and the cycle re-arms in place for the
// same counterpart, with no externally visible Idle gap, until a plan is
// denied or the counterpart drops.
type Cycle struct {
	eng           *exchange.Engine
	policy        Policy
	cooldownTicks uint64

	state       State
	counterpart exchange.PartyID
	tx          *exchange.Transaction
	completeAt  uint64
}

func NewCycle(eng *exchange.Engine, policy Policy, cooldownTicks uint64) *Cycle {
	if cooldownTicks == 0 {
		cooldownTicks = 1
	}
	return &Cycle{
		eng:           eng,
		policy:        policy,
		cooldownTicks: cooldownTicks,
		state:         StateIdle,
	}
}

func (c *Cycle) State() State                  { return c.state }
func (c *Cycle) Counterpart() exchange.PartyID { return c.counterpart }

// Pending returns the outstanding transaction, nil when Idle.
func (c *Cycle) Pending() *exchange.Transaction {
	if c.state != StateActive {
		return nil
	}
	return c.tx
}

// Start associates a counterpart. Only acts from Idle: a second Start while
// Active is rejected by construction, which is what keeps this cycle to one
// outstanding transaction. A denied reservation leaves the cycle Idle.
func (c *Cycle) Start(counterpart exchange.PartyID, nowTick uint64) bool {
	if c.state != StateIdle {
		return false
	}
	return c.arm(counterpart, nowTick)
}

// Step advances the cycle one tick. When the completion deadline has passed
// the outstanding transaction commits, then the cycle immediately re-plans
// for the same counterpart: approved means a fresh transaction and a fresh
// deadline, denied means Idle.
func (c *Cycle) Step(nowTick uint64) {
	if c.state != StateActive || nowTick < c.completeAt {
		return
	}
	c.tx.Complete()
	counterpart := c.counterpart
	c.tx = nil
	c.state = StateIdle
	c.counterpart = ""
	c.arm(counterpart, nowTick)
}

// Drop dissociates a counterpart (left range, despawned). The outstanding
// reservation is cancelled and the cycle forced to Idle; a stale pending
// transaction must never survive a dissociation.
func (c *Cycle) Drop(counterpart exchange.PartyID) {
	if c.state != StateActive || c.counterpart != counterpart {
		return
	}
	c.tx.Cancel()
	c.tx = nil
	c.state = StateIdle
	c.counterpart = ""
}

func (c *Cycle) arm(counterpart exchange.PartyID, nowTick uint64) bool {
	plan, ok := c.policy.Plan(counterpart)
	if !ok {
		return false
	}
	tx, ok := c.eng.Request(plan.Source, plan.Destination, plan.Type, plan.Amount)
	if !ok {
		return false
	}
	c.state = StateActive
	c.counterpart = counterpart
	c.tx = tx
	c.completeAt = nowTick + c.cooldownTicks
	return true
}
