package world

import (
	"encoding/json"
	"fmt"

	"haulcraft.sim/internal/protocol"
	"haulcraft.sim/internal/sim/exchange"
	"haulcraft.sim/internal/sim/resources"
)

type AttachRequest struct {
	ObserverName string
	Out          chan []byte
	Resp         chan AttachResponse
}

type AttachResponse struct {
	ObserverID string
	Welcome    protocol.WelcomeMsg
}

type observerClient struct {
	id  string
	out chan []byte
}

func (w *World) handleAttach(req AttachRequest) {
	w.nextObserverNum++
	id := fmt.Sprintf("O%04d", w.nextObserverNum)
	if req.Out != nil {
		w.observers[id] = &observerClient{id: id, out: req.Out}
		w.observerCount.Add(1)
	}

	types := make([]string, 0, len(resources.All()))
	for _, t := range resources.All() {
		types = append(types, string(t))
	}
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		ObserverID:      id,
		WorldParams: protocol.WorldParams{
			WorldID:       w.cfg.ID,
			TickRateHz:    w.cfg.Tuning.TickRateHz,
			HaulCooldown:  w.cfg.Tuning.HaulCooldownTicks,
			StationRadius: w.cfg.Tuning.StationRadius,
			Seed:          w.cfg.Seed,
		},
		ResourceTypes: types,
	}
	if req.Resp != nil {
		select {
		case req.Resp <- AttachResponse{ObserverID: id, Welcome: welcome}:
		default:
		}
	}
}

func (w *World) handleDetach(id string) {
	if _, ok := w.observers[id]; !ok {
		return
	}
	delete(w.observers, id)
	w.observerCount.Add(-1)
}

func (w *World) broadcastTick(now uint64) {
	if len(w.observers) == 0 {
		return
	}

	msgs := make([][]byte, 0, 1+len(w.tickTransfers))
	if b, err := json.Marshal(w.buildTickMsg(now)); err == nil {
		msgs = append(msgs, b)
	}
	for _, tr := range w.tickTransfers {
		b, err := json.Marshal(protocol.TransferMsg{
			Type:            protocol.TypeTransfer,
			ProtocolVersion: protocol.Version,
			Tick:            now,
			TransferID:      tr.ID,
			Source:          string(tr.Source),
			Destination:     string(tr.Destination),
			Resource:        string(tr.Type),
			Amount:          tr.Amount,
		})
		if err != nil {
			continue
		}
		msgs = append(msgs, b)
	}

	// Slow observers drop messages rather than stalling the tick.
	for _, oc := range w.observers {
		for _, b := range msgs {
			select {
			case oc.out <- b:
			default:
			}
		}
	}
}

func (w *World) buildTickMsg(now uint64) protocol.TickMsg {
	msg := protocol.TickMsg{
		Type:            protocol.TypeTick,
		ProtocolVersion: protocol.Version,
		Tick:            now,
		Parties:         []protocol.PartyState{},
		Events:          append([]protocol.Event(nil), w.tickEvents...),
	}
	add := func(id, kind string, pos Vec2i, capacity int) {
		p := protocol.PartyState{
			PartyID:  id,
			Kind:     kind,
			Pos:      [2]int{pos.X, pos.Z},
			Capacity: capacity,
		}
		for _, t := range resources.All() {
			if n := w.eng.HeldAmount(exchange.PartyID(id), t); n > 0 {
				if p.Held == nil {
					p.Held = map[string]int{}
				}
				p.Held[string(t)] = n
			}
			if n := w.eng.AllocatedAmount(exchange.PartyID(id), t); n > 0 {
				if p.Allocated == nil {
					p.Allocated = map[string]int{}
				}
				p.Allocated[string(t)] = n
			}
		}
		msg.Parties = append(msg.Parties, p)
	}
	for _, id := range sortedKeys(w.nodes) {
		n := w.nodes[id]
		add(id, "NODE", n.Pos, 0)
	}
	for _, id := range sortedKeys(w.depots) {
		d := w.depots[id]
		add(id, "DEPOT", d.Pos, d.capacity)
	}
	for _, id := range sortedKeys(w.sites) {
		s := w.sites[id]
		add(id, "SITE", s.Pos, s.Capacity(w.eng))
	}
	for _, id := range sortedKeys(w.agents) {
		a := w.agents[id]
		add(id, "AGENT", a.Pos, a.carryCapacity)
	}
	return msg
}
