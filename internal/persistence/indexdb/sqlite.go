package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"haulcraft.sim/internal/sim/world"
)

// SQLiteIndex is a read-model of the transfer stream: committed transfers
// and audit entries, indexed for the admin surface. It is observational
// only; the ledger itself is never persisted and every run starts fresh.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type reqKind int

const (
	reqTransfer reqKind = iota + 1
	reqAudit
	reqFlush
)

type req struct {
	kind reqKind

	transfer world.TransferLogEntry
	audit    world.AuditEntry

	// Closed by the writer once everything enqueued before this request
	// has been committed. Only set for reqFlush.
	ack chan struct{}
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		// High buffer: bursty commit ticks must not stall the sim.
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS transfers (
			transfer_id TEXT PRIMARY KEY,
			tick INTEGER NOT NULL,
			source TEXT NOT NULL,
			destination TEXT NOT NULL,
			resource TEXT NOT NULL,
			amount INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_transfers_tick ON transfers(tick);`,
		`CREATE INDEX IF NOT EXISTS idx_transfers_dest ON transfers(destination, tick);`,
		`CREATE TABLE IF NOT EXISTS audits (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			actor TEXT NOT NULL,
			action TEXT NOT NULL,
			details_json TEXT,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_actor_tick ON audits(actor, tick);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) WriteTransfer(entry world.TransferLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqTransfer, transfer: entry}:
	default:
		// Drop if the indexer falls behind; JSONL logs remain the source of truth.
	}
	return nil
}

func (s *SQLiteIndex) WriteAudit(entry world.AuditEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqAudit, audit: entry}:
	default:
	}
	return nil
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertTransfer, _ := s.db.Prepare(`INSERT OR REPLACE INTO transfers(transfer_id,tick,source,destination,resource,amount) VALUES(?,?,?,?,?,?)`)
	insertAudit, _ := s.db.Prepare(`INSERT OR REPLACE INTO audits(tick,seq,actor,action,details_json) VALUES(?,?,?,?,?)`)
	defer func() {
		if insertTransfer != nil {
			_ = insertTransfer.Close()
		}
		if insertAudit != nil {
			_ = insertAudit.Close()
		}
	}()

	var (
		tx          *sql.Tx
		opCount     int
		lastCommit  = time.Now()
		commitEvery = 500

		lastAuditTick uint64
		auditSeq      int
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
	}
	defer commit()

	for r := range s.ch {
		if r.kind == reqFlush {
			commit()
			close(r.ack)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTransfer:
			if insertTransfer != nil {
				_, _ = tx.Stmt(insertTransfer).Exec(
					r.transfer.TransferID, r.transfer.Tick, r.transfer.Source,
					r.transfer.Destination, r.transfer.Resource, r.transfer.Amount)
				opCount++
			}
		case reqAudit:
			if r.audit.Tick != lastAuditTick {
				lastAuditTick = r.audit.Tick
				auditSeq = 0
			}
			auditSeq++
			if insertAudit != nil {
				_, _ = tx.Stmt(insertAudit).Exec(
					r.audit.Tick, auditSeq, r.audit.Actor, r.audit.Action, detailsJSON(r.audit.Details))
				opCount++
			}
		}
		// Commit on batch size, on age, or whenever the queue drains so
		// readers never wait long for an idle writer.
		if opCount >= commitEvery || time.Since(lastCommit) > 2*time.Second || len(s.ch) == 0 {
			commit()
		}
	}
}

func detailsJSON(m map[string]any) any {
	if len(m) == 0 {
		return nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return string(b)
}

// DeliveredTotals returns the total committed amount per resource type.
func (s *SQLiteIndex) DeliveredTotals() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT resource, SUM(amount) FROM transfers GROUP BY resource`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var res string
		var total int
		if err := rows.Scan(&res, &total); err != nil {
			return nil, err
		}
		out[res] = total
	}
	return out, rows.Err()
}

// RecentTransfers returns up to limit transfers, newest tick first.
func (s *SQLiteIndex) RecentTransfers(limit int) ([]world.TransferLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`SELECT transfer_id,tick,source,destination,resource,amount
		FROM transfers ORDER BY tick DESC, transfer_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []world.TransferLogEntry
	for rows.Next() {
		var e world.TransferLogEntry
		if err := rows.Scan(&e.TransferID, &e.Tick, &e.Source, &e.Destination, &e.Resource, &e.Amount); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Flush blocks until every write enqueued before the call has been
// committed. The request rides the same channel as the writes, so the
// writer reaching it means everything ahead of it is already in.
func (s *SQLiteIndex) Flush() {
	if s == nil || s.closed.Load() {
		return
	}
	ack := make(chan struct{})
	s.ch <- req{kind: reqFlush, ack: ack}
	<-ack
}
