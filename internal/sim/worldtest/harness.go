package worldtest

import (
	"testing"

	"haulcraft.sim/internal/sim/exchange"
	"haulcraft.sim/internal/sim/resources"
	"haulcraft.sim/internal/sim/tuning"
	"haulcraft.sim/internal/sim/world"
)

// Harness drives a world through its exported API only: stations and agents
// go in through the Add* helpers before stepping, ticks advance with Step,
// and assertions read back through the exchange engine's query surface.
// Tests never call Run, so everything stays on the test goroutine.
type Harness struct {
	T *testing.T
	W *world.World

	transfers []exchange.Transfer
	tracked   []boundedReceiver
}

// quickTuning keeps integration runs short: production every tick, short
// cooldowns, small carry loads.
func quickTuning() tuning.Tuning {
	return tuning.Tuning{
		TickRateHz:          5,
		HaulCooldownTicks:   2,
		StationRadius:       2,
		AgentCarryCapacity:  4,
		DepotCapacity:       50,
		NodeProductionTicks: 1,
		NodeStockCap:        20,
	}.WithDefaults()
}

func NewHarness(t *testing.T) *Harness {
	t.Helper()
	w := world.New(world.WorldConfig{
		ID:     "test",
		Seed:   1,
		Tuning: quickTuning(),
	}, nil)

	h := &Harness{T: t, W: w}
	w.Engine().SubscribeTransfer(func(tr exchange.Transfer) {
		h.transfers = append(h.transfers, tr)
	})
	return h
}

// Step advances n ticks, checking the capacity invariant for every tracked
// receiver after each one.
func (h *Harness) Step(n int) {
	h.T.Helper()
	for i := 0; i < n; i++ {
		h.W.Step()
		h.checkInvariants()
	}
}

// Transfers returns every committed transfer seen so far.
func (h *Harness) Transfers() []exchange.Transfer { return h.transfers }

// DeliveredTo sums committed amounts of one type into a party.
func (h *Harness) DeliveredTo(p exchange.PartyID, t resources.Type) int {
	total := 0
	for _, tr := range h.transfers {
		if tr.Destination == p && tr.Type == t {
			total += tr.Amount
		}
	}
	return total
}

type boundedReceiver interface {
	PartyID() exchange.PartyID
	Capacity(exchange.View) int
}

// Track registers a receiver for the per-step capacity invariant check.
func (h *Harness) Track(rs ...boundedReceiver) {
	h.tracked = append(h.tracked, rs...)
}

func (h *Harness) checkInvariants() {
	h.T.Helper()
	eng := h.W.Engine()
	for _, r := range h.tracked {
		p := r.PartyID()
		if got, ceiling := eng.TotalHeld(p)+eng.TotalAllocated(p), r.Capacity(eng); got > ceiling {
			h.T.Fatalf("capacity invariant broken for %s at tick %d: held+allocated=%d > capacity=%d",
				p, h.W.CurrentTick(), got, ceiling)
		}
	}
}
