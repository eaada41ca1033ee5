package world

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync/atomic"
	"time"

	"haulcraft.sim/internal/protocol"
	"haulcraft.sim/internal/sim/exchange"
	"haulcraft.sim/internal/sim/interaction"
	"haulcraft.sim/internal/sim/tuning"
)

type WorldConfig struct {
	ID   string
	Seed int64

	Tuning tuning.Tuning
}

// World is the simulation: extraction nodes produce typed resource units,
// depots and build sites receive them, and carrier agents haul single units
// between the two. All state is owned by the loop goroutine; external
// callers talk to it through channels, and the exchange engine is only ever
// touched from that goroutine.
type World struct {
	cfg WorldConfig
	eng *exchange.Engine

	tick atomic.Uint64

	agents map[string]*Agent
	nodes  map[string]*Node
	depots map[string]*Depot
	sites  map[string]*Site

	observers     map[string]*observerClient
	observerCount atomic.Int64

	attach     chan AttachRequest
	detach     chan string
	spawnAgent chan SpawnAgentRequest
	stop       chan struct{}

	nextAgentNum    uint64
	nextStationNum  uint64
	nextObserverNum uint64

	// Per-tick scratch, reset in step().
	tickEvents    []protocol.Event
	tickTransfers []exchange.Transfer

	logger         *log.Logger
	auditLogger    AuditLogger
	transferLogger TransferLogger
}

type AuditLogger interface {
	WriteAudit(v AuditEntry) error
}

type TransferLogger interface {
	WriteTransfer(v TransferLogEntry) error
}

type AuditEntry struct {
	Tick    uint64         `json:"t"`
	Actor   string         `json:"actor"`
	Action  string         `json:"action"`
	Details map[string]any `json:"details,omitempty"`
}

type TransferLogEntry struct {
	Tick        uint64 `json:"t"`
	TransferID  string `json:"transfer_id"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Resource    string `json:"resource"`
	Amount      int    `json:"amount"`
}

func New(cfg WorldConfig, logger *log.Logger) *World {
	cfg.Tuning = cfg.Tuning.WithDefaults()
	w := &World{
		cfg:        cfg,
		eng:        exchange.NewEngine(),
		agents:     map[string]*Agent{},
		nodes:      map[string]*Node{},
		depots:     map[string]*Depot{},
		sites:      map[string]*Site{},
		observers:  map[string]*observerClient{},
		attach:     make(chan AttachRequest, 64),
		detach:     make(chan string, 64),
		spawnAgent: make(chan SpawnAgentRequest, 64),
		stop:       make(chan struct{}),
		logger:     logger,
	}
	if logger != nil {
		w.eng.SetWarnFunc(func(format string, args ...any) {
			logger.Printf(format, args...)
		})
	}
	w.eng.SubscribeTransfer(w.onTransfer)
	return w
}

func (w *World) SetAuditLogger(l AuditLogger)       { w.auditLogger = l }
func (w *World) SetTransferLogger(l TransferLogger) { w.transferLogger = l }

func (w *World) Attach() chan<- AttachRequest         { return w.attach }
func (w *World) Detach() chan<- string                { return w.detach }
func (w *World) SpawnAgent() chan<- SpawnAgentRequest { return w.spawnAgent }

func (w *World) CurrentTick() uint64 { return w.tick.Load() }

// Observers reports how many observers are currently attached. Safe to call
// from any goroutine.
func (w *World) Observers() int { return int(w.observerCount.Load()) }

// Engine exposes the exchange engine for setup and tests. Mutating calls on
// it must not race the loop goroutine; do setup before Run.
func (w *World) Engine() *exchange.Engine { return w.eng }

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.Tuning.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.attach:
			w.handleAttach(req)
		case id := <-w.detach:
			w.handleDetach(id)
		case req := <-w.spawnAgent:
			w.handleSpawnAgent(req)
		case <-ticker.C:
			w.Step()
		}
	}
}

func (w *World) Stop() { close(w.stop) }

// Step advances the world one tick: production, agent movement, station
// interaction cycles, site level-ups, then the observer broadcast.
func (w *World) Step() {
	now := w.tick.Add(1)
	w.tickEvents = w.tickEvents[:0]
	w.tickTransfers = w.tickTransfers[:0]

	w.stepProduction(now)
	w.stepAgents(now)
	w.stepStations(now)
	w.stepSites(now)

	w.broadcastTick(now)
}

func (w *World) stepProduction(now uint64) {
	for _, id := range sortedKeys(w.nodes) {
		n := w.nodes[id]
		if now < n.nextProduceTick {
			continue
		}
		n.nextProduceTick = now + uint64(w.cfg.Tuning.NodeProductionTicks)
		if w.eng.TotalHeld(n.PartyID()) >= w.cfg.Tuning.NodeStockCap {
			continue
		}
		w.eng.Deposit(n.PartyID(), n.Resource, 1)
	}
}

func (w *World) stepStations(now uint64) {
	for _, st := range w.stationsSorted() {
		cyc := st.Cycle()

		// A counterpart that walked out of range (or despawned) drops
		// before anything else: no stale reservation may survive.
		if cyc.State() == interaction.StateActive {
			a := w.agents[string(cyc.Counterpart())]
			if a == nil || !inRange(st.StationPos(), a.Pos, w.cfg.Tuning.StationRadius) {
				cp := cyc.Counterpart()
				cyc.Drop(cp)
				w.audit(now, string(st.PartyID()), "CYCLE_DROP", map[string]any{"counterpart": string(cp)})
			}
		}

		prev := cyc.Pending()
		cyc.Step(now)
		if cur := cyc.Pending(); cur != nil && cur != prev {
			// Re-armed in place: a fresh reservation without an Idle gap.
			w.audit(now, string(st.PartyID()), "CYCLE_START", map[string]any{
				"counterpart": string(cyc.Counterpart()),
				"transfer_id": cur.ID,
			})
		}

		if cyc.State() == interaction.StateIdle {
			if a := w.nearestAgentInRange(st); a != nil {
				if cyc.Start(exchange.PartyID(a.ID), now) {
					w.audit(now, string(st.PartyID()), "CYCLE_START", map[string]any{
						"counterpart": a.ID,
						"transfer_id": cyc.Pending().ID,
					})
				}
			}
		}
	}
}

func (w *World) stepSites(now uint64) {
	for _, id := range sortedKeys(w.sites) {
		s := w.sites[id]
		reqs := s.Requirements()
		if len(reqs) == 0 || !reqs.Fulfilled(w.eng, s.PartyID()) {
			continue
		}
		// Building consumes the delivered materials.
		for _, r := range reqs {
			w.eng.Consume(s.PartyID(), r.Type, r.Needed)
		}
		s.level++
		w.audit(now, id, "SITE_LEVEL_UP", map[string]any{"level": s.level})
		w.tickEvents = append(w.tickEvents, protocol.Event{
			"t":       now,
			"type":    "SITE_LEVEL_UP",
			"site_id": id,
			"level":   s.level,
		})
	}
}

func (w *World) onTransfer(tr exchange.Transfer) {
	now := w.tick.Load()
	w.tickTransfers = append(w.tickTransfers, tr)
	w.audit(now, string(tr.Source), "TRANSFER", map[string]any{
		"transfer_id": tr.ID,
		"to":          string(tr.Destination),
		"resource":    string(tr.Type),
		"amount":      tr.Amount,
	})
	if w.transferLogger != nil {
		if err := w.transferLogger.WriteTransfer(TransferLogEntry{
			Tick:        now,
			TransferID:  tr.ID,
			Source:      string(tr.Source),
			Destination: string(tr.Destination),
			Resource:    string(tr.Type),
			Amount:      tr.Amount,
		}); err != nil && w.logger != nil {
			w.logger.Printf("transfer log: %v", err)
		}
	}
}

func (w *World) audit(now uint64, actor, action string, details map[string]any) {
	if w.auditLogger == nil {
		return
	}
	if err := w.auditLogger.WriteAudit(AuditEntry{
		Tick:    now,
		Actor:   actor,
		Action:  action,
		Details: details,
	}); err != nil && w.logger != nil {
		w.logger.Printf("audit log: %v", err)
	}
}

// station is the common surface of nodes, depots and sites for the
// interaction sweep.
type station interface {
	PartyID() exchange.PartyID
	StationPos() Vec2i
	Cycle() *interaction.Cycle
}

func (w *World) stationsSorted() []station {
	out := make([]station, 0, len(w.nodes)+len(w.depots)+len(w.sites))
	for _, id := range sortedKeys(w.nodes) {
		out = append(out, w.nodes[id])
	}
	for _, id := range sortedKeys(w.depots) {
		out = append(out, w.depots[id])
	}
	for _, id := range sortedKeys(w.sites) {
		out = append(out, w.sites[id])
	}
	return out
}

func (w *World) nearestAgentInRange(st station) *Agent {
	var best *Agent
	bestDist := 0
	for _, id := range sortedKeys(w.agents) {
		a := w.agents[id]
		if !inRange(st.StationPos(), a.Pos, w.cfg.Tuning.StationRadius) {
			continue
		}
		d := dist(st.StationPos(), a.Pos)
		if best == nil || d < bestDist {
			best = a
			bestDist = d
		}
	}
	return best
}

func (w *World) newStationID(prefix string) string {
	w.nextStationNum++
	return fmt.Sprintf("%s%04d", prefix, w.nextStationNum)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
