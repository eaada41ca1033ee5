package ledger

import (
	"fmt"
	"strings"
	"testing"

	"haulcraft.sim/internal/sim/resources"
)

func TestLedger_UnknownKeysReadZero(t *testing.T) {
	l := New()
	if got := l.HeldAmount("nobody", resources.Stone); got != 0 {
		t.Fatalf("held for unknown party = %d, want 0", got)
	}
	if got := l.AllocatedAmount("nobody", resources.Stone); got != 0 {
		t.Fatalf("allocated for unknown party = %d, want 0", got)
	}
	if got := l.TotalHeld("nobody"); got != 0 {
		t.Fatalf("total held for unknown party = %d, want 0", got)
	}
	if got := l.TotalAllocated("nobody"); got != 0 {
		t.Fatalf("total allocated for unknown party = %d, want 0", got)
	}
}

func TestLedger_TotalsSumAcrossTypes(t *testing.T) {
	l := New()
	l.IncreaseHeld("p1", resources.Stone, 3)
	l.IncreaseHeld("p1", resources.Wood, 2)
	l.IncreaseAllocated("p1", resources.Iron, 1)

	if got := l.TotalHeld("p1"); got != 5 {
		t.Fatalf("TotalHeld = %d, want 5", got)
	}
	if got := l.TotalAllocated("p1"); got != 1 {
		t.Fatalf("TotalAllocated = %d, want 1", got)
	}
	if got := l.HeldAmount("p1", resources.Wood); got != 2 {
		t.Fatalf("HeldAmount(wood) = %d, want 2", got)
	}
}

func TestLedger_DecreaseClampsAndWarns(t *testing.T) {
	l := New()
	var warnings []string
	l.SetWarnFunc(func(format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	})

	l.IncreaseHeld("p1", resources.Stone, 2)
	l.DecreaseHeld("p1", resources.Stone, 5)

	if got := l.HeldAmount("p1", resources.Stone); got != 0 {
		t.Fatalf("held after underflow = %d, want 0 (clamped)", got)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "underflow") {
		t.Fatalf("warnings = %v, want one underflow diagnostic", warnings)
	}

	// Decrease with nothing held at all: still clamped, still warned.
	l.DecreaseAllocated("p2", resources.Wood, 1)
	if got := l.AllocatedAmount("p2", resources.Wood); got != 0 {
		t.Fatalf("allocated after underflow = %d, want 0", got)
	}
	if len(warnings) != 2 {
		t.Fatalf("warnings = %v, want 2", warnings)
	}
}

func TestLedger_IgnoresNonPositiveAmounts(t *testing.T) {
	l := New()
	l.IncreaseHeld("p1", resources.Stone, 0)
	l.IncreaseHeld("p1", resources.Stone, -3)
	l.DecreaseHeld("p1", resources.Stone, -1)
	if got := l.TotalHeld("p1"); got != 0 {
		t.Fatalf("TotalHeld = %d, want 0", got)
	}
}

func TestLedger_EmptyEntriesCollapse(t *testing.T) {
	l := New()
	l.IncreaseHeld("p1", resources.Stone, 1)
	l.DecreaseHeld("p1", resources.Stone, 1)
	if len(l.held) != 0 {
		t.Fatalf("held map not collapsed after balance hit zero: %v", l.held)
	}
}
