package world

import (
	"haulcraft.sim/internal/sim/exchange"
	"haulcraft.sim/internal/sim/interaction"
	"haulcraft.sim/internal/sim/resources"
)

// Node is an extraction point: an infinite provider of one resource type.
// Extracted units accumulate as its held stock (capped by tuning) and leave
// through the interaction cycle when an agent comes in range.
type Node struct {
	ID       string
	Resource resources.Type
	Pos      Vec2i

	cycle           *interaction.Cycle
	nextProduceTick uint64
}

func (n *Node) PartyID() exchange.PartyID { return exchange.PartyID(n.ID) }
func (n *Node) StationPos() Vec2i         { return n.Pos }
func (n *Node) Cycle() *interaction.Cycle { return n.cycle }

// CanProvide is unconditional: nodes are bottomless as far as the engine is
// concerned. The pickup policy still waits for produced stock so the ledger
// debit at completion has something to debit.
func (n *Node) CanProvide(v exchange.View, t resources.Type, amount int) bool {
	return t == n.Resource
}

// Depot is a fixed-capacity receiver that accepts any resource type while
// room remains.
type Depot struct {
	ID       string
	Pos      Vec2i
	capacity int

	cycle *interaction.Cycle
}

func (d *Depot) PartyID() exchange.PartyID { return exchange.PartyID(d.ID) }
func (d *Depot) StationPos() Vec2i         { return d.Pos }
func (d *Depot) Cycle() *interaction.Cycle { return d.cycle }

func (d *Depot) Capacity(v exchange.View) int { return d.capacity }

func (d *Depot) CanReceive(v exchange.View, t resources.Type, amount int) bool {
	p := d.PartyID()
	return v.TotalHeld(p)+v.TotalAllocated(p)+amount <= d.capacity
}

// Site is a demand-driven receiver: a build site whose current level defines
// a requirement set. Its capacity is the sum of outstanding requirement
// totals, derived on every query so requirement edits and level advances
// take effect immediately.
type Site struct {
	ID  string
	Pos Vec2i

	levels []exchange.RequirementSet
	level  int

	cycle *interaction.Cycle
}

func (s *Site) PartyID() exchange.PartyID { return exchange.PartyID(s.ID) }
func (s *Site) StationPos() Vec2i         { return s.Pos }
func (s *Site) Cycle() *interaction.Cycle { return s.cycle }

func (s *Site) Level() int { return s.level }

// Requirements returns the current level's requirement set, nil once all
// levels are built.
func (s *Site) Requirements() exchange.RequirementSet {
	if s.level >= len(s.levels) {
		return nil
	}
	return s.levels[s.level]
}

// SetRequirements replaces the current level's requirement set at runtime.
func (s *Site) SetRequirements(reqs exchange.RequirementSet) {
	if s.level < len(s.levels) {
		s.levels[s.level] = reqs
	}
}

func (s *Site) Capacity(v exchange.View) int { return s.Requirements().Capacity() }

func (s *Site) CanReceive(v exchange.View, t resources.Type, amount int) bool {
	return amount <= s.Requirements().MissingOf(v, s.PartyID(), t)
}

// AddNode registers an extraction node for one resource type.
func (w *World) AddNode(res resources.Type, pos Vec2i) *Node {
	n := &Node{
		ID:       w.newStationID("N"),
		Resource: res,
		Pos:      pos,
	}
	n.cycle = interaction.NewCycle(w.eng, &nodePickupPolicy{w: w, node: n}, uint64(w.cfg.Tuning.HaulCooldownTicks))
	w.nodes[n.ID] = n
	return n
}

// AddDepot registers a storage depot. capacity <= 0 falls back to tuning.
func (w *World) AddDepot(pos Vec2i, capacity int) *Depot {
	if capacity <= 0 {
		capacity = w.cfg.Tuning.DepotCapacity
	}
	d := &Depot{
		ID:       w.newStationID("D"),
		Pos:      pos,
		capacity: capacity,
	}
	d.cycle = interaction.NewCycle(w.eng, &deliveryPolicy{w: w, dst: d}, uint64(w.cfg.Tuning.HaulCooldownTicks))
	w.depots[d.ID] = d
	return d
}

// AddSite registers a build site with one requirement set per level.
func (w *World) AddSite(pos Vec2i, levels []exchange.RequirementSet) *Site {
	s := &Site{
		ID:     w.newStationID("S"),
		Pos:    pos,
		levels: levels,
	}
	s.cycle = interaction.NewCycle(w.eng, &deliveryPolicy{w: w, dst: s}, uint64(w.cfg.Tuning.HaulCooldownTicks))
	w.sites[s.ID] = s
	return s
}
