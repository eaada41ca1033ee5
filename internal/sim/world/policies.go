package world

import (
	"haulcraft.sim/internal/sim/exchange"
	"haulcraft.sim/internal/sim/interaction"
	"haulcraft.sim/internal/sim/resources"
)

// nodePickupPolicy hands one unit of the node's resource to the counterpart
// agent. It waits for produced stock even though the node's CanProvide is
// unconditional, so completion always has a unit to debit.
type nodePickupPolicy struct {
	w    *World
	node *Node
}

func (p *nodePickupPolicy) Plan(counterpart exchange.PartyID) (interaction.Plan, bool) {
	a := p.w.agents[string(counterpart)]
	if a == nil {
		return interaction.Plan{}, false
	}
	if p.w.eng.HeldAmount(p.node.PartyID(), p.node.Resource) < 1 {
		return interaction.Plan{}, false
	}
	return interaction.Plan{
		Source:      p.node,
		Destination: a,
		Type:        p.node.Resource,
		Amount:      1,
	}, true
}

// deliveryPolicy pulls one unit from the counterpart agent into a receiver
// station. The type is the first, in catalog order, that the agent holds and
// the receiver will take; for sites that means "a not yet fulfilled
// requirement the agent has at least one unit of".
type deliveryPolicy struct {
	w   *World
	dst exchange.Receiver
}

func (p *deliveryPolicy) Plan(counterpart exchange.PartyID) (interaction.Plan, bool) {
	a := p.w.agents[string(counterpart)]
	if a == nil {
		return interaction.Plan{}, false
	}
	t, ok := p.pickType(a)
	if !ok {
		return interaction.Plan{}, false
	}
	return interaction.Plan{
		Source:      a,
		Destination: p.dst,
		Type:        t,
		Amount:      1,
	}, true
}

func (p *deliveryPolicy) pickType(a *Agent) (resources.Type, bool) {
	for _, t := range resources.All() {
		if p.w.eng.HeldAmount(a.PartyID(), t) == 0 {
			continue
		}
		if p.dst.CanReceive(p.w.eng, t, 1) {
			return t, true
		}
	}
	return "", false
}
