// Package multiworld runs several independent worlds side by side and
// routes observers to the one they name. Worlds never share state: each has
// its own exchange engine, loop goroutine and persistence directory.
package multiworld

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"haulcraft.sim/internal/sim/world"
)

type Runtime struct {
	Spec  WorldSpec
	World *world.World
}

type Manager struct {
	logger *log.Logger

	mu      sync.RWMutex
	worlds  map[string]*Runtime
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewManager(logger *log.Logger) *Manager {
	return &Manager{
		logger: logger,
		worlds: map[string]*Runtime{},
	}
}

// Add constructs a world from its spec. Worlds are added before Start; the
// caller does per-world setup (seeding stations, wiring loggers) on the
// returned runtime while nothing is running yet.
func (m *Manager) Add(spec WorldSpec) (*Runtime, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil, errors.New("multiworld: add after start")
	}
	if spec.ID == "" {
		return nil, errors.New("multiworld: empty world id")
	}
	if _, ok := m.worlds[spec.ID]; ok {
		return nil, fmt.Errorf("multiworld: duplicate world id %q", spec.ID)
	}
	rt := &Runtime{
		Spec: spec,
		World: world.New(world.WorldConfig{
			ID:     spec.ID,
			Seed:   spec.Seed,
			Tuning: spec.Tuning.WithDefaults(),
		}, m.logger),
	}
	m.worlds[spec.ID] = rt
	return rt, nil
}

// Get returns the named world, or the lone world when id is empty and
// exactly one exists.
func (m *Manager) Get(id string) (*world.World, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id == "" && len(m.worlds) == 1 {
		for _, rt := range m.worlds {
			return rt.World, true
		}
	}
	rt, ok := m.worlds[id]
	if !ok {
		return nil, false
	}
	return rt.World, true
}

// IDs returns the world ids in sorted order.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.worlds))
	for id := range m.worlds {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Start launches one loop goroutine per world. It is not restartable.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("multiworld: already started")
	}
	if len(m.worlds) == 0 {
		return errors.New("multiworld: no worlds")
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.running = true

	for id, rt := range m.worlds {
		id, rt := id, rt
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			if err := rt.World.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				if m.logger != nil {
					m.logger.Printf("world %s stopped: %v", id, err)
				}
			}
		}()
	}
	return nil
}

// Stop cancels every world loop and waits for them to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}
