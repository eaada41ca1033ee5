package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"haulcraft.sim/internal/persistence/indexdb"
	persistlog "haulcraft.sim/internal/persistence/log"
	"haulcraft.sim/internal/sim/exchange"
	"haulcraft.sim/internal/sim/multiworld"
	"haulcraft.sim/internal/sim/resources"
	"haulcraft.sim/internal/sim/tuning"
	"haulcraft.sim/internal/sim/world"
	"haulcraft.sim/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		worldID    = flag.String("world", "world_1", "world id (single-world mode)")
		seed       = flag.Int64("seed", 1337, "world seed (single-world mode)")
		worldsPath = flag.String("worlds", "", "path to worlds.yaml (multi-world mode)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: ./configs/tuning.yaml)")
		agentCount = flag.Int("agents", 3, "carrier agents to spawn per world")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite transfer index")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	specs := loadSpecs(logger, *worldsPath, *worldID, *seed, *tuningPath)

	mgr := multiworld.NewManager(logger)
	indexes := map[string]*indexdb.SQLiteIndex{}
	var closers []func()
	for _, spec := range specs {
		rt, err := mgr.Add(spec)
		if err != nil {
			logger.Fatalf("add world: %v", err)
		}
		seedScenario(rt.World, *agentCount)

		worldDir := filepath.Join(*dataDir, "worlds", spec.ID)
		_ = os.MkdirAll(worldDir, 0o755)

		transferLog := persistlog.NewTransferLogger(worldDir)
		auditLog := persistlog.NewAuditLogger(worldDir)
		closers = append(closers, func() { _ = transferLog.Close() }, func() { _ = auditLog.Close() })

		transferSinks := multiTransferLogger{transferLog}
		auditSinks := multiAuditLogger{auditLog}
		if !*disableDB {
			idx, err := indexdb.OpenSQLite(filepath.Join(worldDir, "index.db"))
			if err != nil {
				logger.Fatalf("open transfer index for %s: %v", spec.ID, err)
			}
			closers = append(closers, func() { _ = idx.Close() })
			indexes[spec.ID] = idx
			transferSinks = append(transferSinks, idx)
			auditSinks = append(auditSinks, idx)
		}
		rt.World.SetTransferLogger(transferSinks)
		rt.World.SetAuditLogger(auditSinks)
	}
	defer func() {
		for _, c := range closers {
			c()
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := mgr.Start(ctx); err != nil {
		logger.Fatalf("start worlds: %v", err)
	}
	defer mgr.Stop()

	loneID := ""
	if len(specs) == 1 {
		loneID = specs[0].ID
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/observe", func(rw http.ResponseWriter, r *http.Request) {
		w, ok := mgr.Get(r.URL.Query().Get("world"))
		if !ok {
			http.Error(rw, "unknown world", http.StatusNotFound)
			return
		}
		ws.NewServer(w, logger).Handler()(rw, r)
	})
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/v1/worlds", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(map[string]any{"worlds": mgr.IDs()})
	})
	mux.HandleFunc("/v1/stats", func(rw http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("world")
		w, ok := mgr.Get(id)
		if !ok {
			http.Error(rw, "unknown world", http.StatusNotFound)
			return
		}
		if id == "" {
			id = loneID
		}
		idx := indexes[id]
		if idx == nil {
			http.Error(rw, "index disabled", http.StatusServiceUnavailable)
			return
		}
		totals, err := idx.DeliveredTotals()
		if err != nil {
			http.Error(rw, err.Error(), http.StatusInternalServerError)
			return
		}
		recent, err := idx.RecentTransfers(50)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusInternalServerError)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(map[string]any{
			"world":            id,
			"tick":             w.CurrentTick(),
			"delivered_totals": totals,
			"recent_transfers": recent,
		})
	})

	srv := &http.Server{Addr: *addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
		defer c()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Printf("worlds=%s listening on %s", strings.Join(mgr.IDs(), ","), *addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("http: %v", err)
	}
}

// loadSpecs resolves the world list: a worlds.yaml when given, otherwise a
// single world from the flags plus the shared tuning.yaml.
func loadSpecs(logger *log.Logger, worldsPath, worldID string, seed int64, tuningPath string) []multiworld.WorldSpec {
	if worldsPath != "" {
		cfg, err := multiworld.LoadConfig(worldsPath)
		if err != nil {
			logger.Fatalf("load worlds: %v", err)
		}
		return cfg.Worlds
	}

	tp := strings.TrimSpace(tuningPath)
	if tp == "" {
		tp = filepath.Join("configs", "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		tune = tuning.Default()
	}
	return []multiworld.WorldSpec{{ID: worldID, Seed: seed, Tuning: tune}}
}

// seedScenario lays out a small haul economy: one node per common resource,
// a depot for overflow, a build site with two levels, and the carriers.
func seedScenario(w *world.World, agents int) {
	w.AddNode(resources.Stone, world.Vec2i{X: -12, Z: 0})
	w.AddNode(resources.Wood, world.Vec2i{X: 12, Z: 0})
	w.AddNode(resources.Iron, world.Vec2i{X: 0, Z: -12})
	w.AddDepot(world.Vec2i{X: 0, Z: 12}, 0)
	w.AddSite(world.Vec2i{X: 0, Z: 0}, []exchange.RequirementSet{
		{
			{Type: resources.Stone, Needed: 6},
			{Type: resources.Wood, Needed: 4},
		},
		{
			{Type: resources.Stone, Needed: 10},
			{Type: resources.Wood, Needed: 6},
			{Type: resources.Iron, Needed: 4},
		},
	})
	for i := 0; i < agents; i++ {
		w.AddAgent("", world.Vec2i{X: 2 * i, Z: 2 * i})
	}
}

type multiTransferLogger []world.TransferLogger

func (m multiTransferLogger) WriteTransfer(v world.TransferLogEntry) error {
	for _, l := range m {
		if err := l.WriteTransfer(v); err != nil {
			return err
		}
	}
	return nil
}

type multiAuditLogger []world.AuditLogger

func (m multiAuditLogger) WriteAudit(v world.AuditEntry) error {
	for _, l := range m {
		if err := l.WriteAudit(v); err != nil {
			return err
		}
	}
	return nil
}
