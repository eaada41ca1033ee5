package indexdb

import (
	"fmt"
	"path/filepath"
	"testing"

	"haulcraft.sim/internal/sim/world"
)

func openTestIndex(t *testing.T) *SQLiteIndex {
	t.Helper()
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestSQLiteIndex_TransferTotalsAndRecents(t *testing.T) {
	idx := openTestIndex(t)

	entries := []world.TransferLogEntry{
		{Tick: 1, TransferID: "TX000001", Source: "N0001", Destination: "A0001", Resource: "STONE", Amount: 1},
		{Tick: 2, TransferID: "TX000002", Source: "A0001", Destination: "S0001", Resource: "STONE", Amount: 1},
		{Tick: 3, TransferID: "TX000003", Source: "N0002", Destination: "A0001", Resource: "WOOD", Amount: 2},
	}
	for _, e := range entries {
		if err := idx.WriteTransfer(e); err != nil {
			t.Fatalf("write transfer: %v", err)
		}
	}
	idx.Flush()

	totals, err := idx.DeliveredTotals()
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if totals["STONE"] != 2 || totals["WOOD"] != 2 {
		t.Fatalf("totals = %v", totals)
	}

	recent, err := idx.RecentTransfers(2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("recent len = %d, want 2", len(recent))
	}
	if recent[0].TransferID != "TX000003" {
		t.Fatalf("newest first, got %s", recent[0].TransferID)
	}
}

func TestSQLiteIndex_DuplicateTransferIDUpserts(t *testing.T) {
	idx := openTestIndex(t)

	e := world.TransferLogEntry{Tick: 1, TransferID: "TX000001", Source: "N0001", Destination: "A0001", Resource: "STONE", Amount: 1}
	_ = idx.WriteTransfer(e)
	_ = idx.WriteTransfer(e)
	idx.Flush()

	totals, err := idx.DeliveredTotals()
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if totals["STONE"] != 1 {
		t.Fatalf("totals = %v, duplicate id must not double-count", totals)
	}
}

func TestSQLiteIndex_AuditWrites(t *testing.T) {
	idx := openTestIndex(t)

	_ = idx.WriteAudit(world.AuditEntry{Tick: 1, Actor: "N0001", Action: "CYCLE_DROP", Details: map[string]any{"counterpart": "A0001"}})
	_ = idx.WriteAudit(world.AuditEntry{Tick: 1, Actor: "S0001", Action: "SITE_LEVEL_UP"})
	idx.Flush()

	var n int
	if err := idx.db.QueryRow(`SELECT COUNT(*) FROM audits`).Scan(&n); err != nil {
		t.Fatalf("count audits: %v", err)
	}
	if n != 2 {
		t.Fatalf("audit rows = %d, want 2", n)
	}
}

func TestSQLiteIndex_FlushCommitsEverythingEnqueuedBefore(t *testing.T) {
	idx := openTestIndex(t)

	// Well under the writer's batch threshold, so nothing here commits on
	// its own; only Flush can make these rows visible.
	const n = 100
	for i := 0; i < n; i++ {
		_ = idx.WriteTransfer(world.TransferLogEntry{
			Tick: uint64(i), TransferID: fmt.Sprintf("TX%06d", i),
			Source: "N0001", Destination: "A0001", Resource: "STONE", Amount: 1,
		})
	}
	idx.Flush()

	var rows int
	if err := idx.db.QueryRow(`SELECT COUNT(*) FROM transfers`).Scan(&rows); err != nil {
		t.Fatalf("count: %v", err)
	}
	if rows != n {
		t.Fatalf("rows after flush = %d, want %d", rows, n)
	}
}

func TestSQLiteIndex_FlushAfterCloseIsNoop(t *testing.T) {
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	idx.Flush()
}

func TestSQLiteIndex_WriteAfterCloseIsNoop(t *testing.T) {
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := idx.WriteTransfer(world.TransferLogEntry{TransferID: "TX000009"}); err != nil {
		t.Fatalf("write after close: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("double close: %v", err)
	}
}
