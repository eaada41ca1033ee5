package world

import (
	"fmt"

	"haulcraft.sim/internal/sim/exchange"
	"haulcraft.sim/internal/sim/interaction"
	"haulcraft.sim/internal/sim/resources"
)

// Agent is a carrier: a finite provider (it can only give what it holds)
// and a capacity-bounded receiver (its carry capacity). Movement is one
// grid step per tick; while a station cycle holds an active transaction
// with the agent it stands still.
type Agent struct {
	ID   string
	Name string
	Pos  Vec2i

	carryCapacity int
}

func (a *Agent) PartyID() exchange.PartyID { return exchange.PartyID(a.ID) }

func (a *Agent) CanProvide(v exchange.View, t resources.Type, amount int) bool {
	return v.HeldAmount(a.PartyID(), t) >= amount
}

func (a *Agent) Capacity(v exchange.View) int { return a.carryCapacity }

func (a *Agent) CanReceive(v exchange.View, t resources.Type, amount int) bool {
	p := a.PartyID()
	return v.TotalHeld(p)+v.TotalAllocated(p)+amount <= a.carryCapacity
}

type SpawnAgentRequest struct {
	Name string
	Pos  Vec2i
	Resp chan SpawnAgentResponse
}

type SpawnAgentResponse struct {
	AgentID string
}

func (w *World) handleSpawnAgent(req SpawnAgentRequest) {
	a := w.AddAgent(req.Name, req.Pos)
	if req.Resp != nil {
		select {
		case req.Resp <- SpawnAgentResponse{AgentID: a.ID}:
		default:
		}
	}
}

// AddAgent registers a carrier agent. Safe only before Run or on the loop
// goroutine; transports use the SpawnAgent channel instead.
func (w *World) AddAgent(name string, pos Vec2i) *Agent {
	if name == "" {
		name = "agent"
	}
	w.nextAgentNum++
	a := &Agent{
		ID:            fmt.Sprintf("A%04d", w.nextAgentNum),
		Name:          name,
		Pos:           pos,
		carryCapacity: w.cfg.Tuning.AgentCarryCapacity,
	}
	w.agents[a.ID] = a
	return a
}

func (w *World) stepAgents(now uint64) {
	for _, id := range sortedKeys(w.agents) {
		a := w.agents[id]
		if w.agentBusy(a) {
			continue
		}
		goal, ok := w.agentGoal(a)
		if !ok || goal == a.Pos {
			continue
		}
		a.Pos = stepToward(a.Pos, goal)
	}
}

// agentBusy reports whether any station cycle currently holds an active
// transaction with this agent.
func (w *World) agentBusy(a *Agent) bool {
	p := exchange.PartyID(a.ID)
	for _, st := range w.stationsSorted() {
		cyc := st.Cycle()
		if cyc.State() == interaction.StateActive && cyc.Counterpart() == p {
			return true
		}
	}
	return false
}

// agentGoal picks where the agent should head: deliver what it carries to
// the neediest reachable receiver, otherwise fetch from the nearest node
// with stock that somebody wants.
func (w *World) agentGoal(a *Agent) (Vec2i, bool) {
	p := a.PartyID()
	if w.eng.TotalHeld(p) > 0 {
		// Sites that still miss a type we carry come first.
		var best Vec2i
		bestDist := -1
		for _, id := range sortedKeys(w.sites) {
			s := w.sites[id]
			if !w.carriesNeededType(a, s) {
				continue
			}
			if d := dist(a.Pos, s.Pos); bestDist < 0 || d < bestDist {
				best, bestDist = s.Pos, d
			}
		}
		if bestDist >= 0 {
			return best, true
		}
		for _, id := range sortedKeys(w.depots) {
			d := w.depots[id]
			if !w.eng.HasCapacity(d, 1) {
				continue
			}
			if dd := dist(a.Pos, d.Pos); bestDist < 0 || dd < bestDist {
				best, bestDist = d.Pos, dd
			}
		}
		if bestDist >= 0 {
			return best, true
		}
		return Vec2i{}, false
	}

	if !w.eng.HasCapacity(a, 1) {
		return Vec2i{}, false
	}
	var best Vec2i
	bestDist := -1
	for _, id := range sortedKeys(w.nodes) {
		n := w.nodes[id]
		if w.eng.HeldAmount(n.PartyID(), n.Resource) == 0 {
			continue
		}
		if !w.resourceWanted(n.Resource) {
			continue
		}
		if d := dist(a.Pos, n.Pos); bestDist < 0 || d < bestDist {
			best, bestDist = n.Pos, d
		}
	}
	return best, bestDist >= 0
}

func (w *World) carriesNeededType(a *Agent, s *Site) bool {
	for _, r := range s.Requirements() {
		if r.Missing(w.eng, s.PartyID()) == 0 {
			continue
		}
		if w.eng.HeldAmount(a.PartyID(), r.Type) > 0 {
			return true
		}
	}
	return false
}

// resourceWanted reports whether any receiver could still use a unit of t.
func (w *World) resourceWanted(t resources.Type) bool {
	for _, id := range sortedKeys(w.sites) {
		s := w.sites[id]
		if s.Requirements().MissingOf(w.eng, s.PartyID(), t) > 0 {
			return true
		}
	}
	for _, id := range sortedKeys(w.depots) {
		if w.eng.HasCapacity(w.depots[id], 1) {
			return true
		}
	}
	return false
}
