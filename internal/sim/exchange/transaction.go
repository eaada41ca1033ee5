package exchange

import "haulcraft.sim/internal/sim/resources"

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// Transaction is a single in-flight transfer of n units of one type from a
// provider to a receiver. Created only by Engine.Request; it transitions out
// of PENDING exactly once (Complete or Cancel), after which further calls to
// either are no-ops and the engine forgets it.
type Transaction struct {
	ID          string
	Source      PartyID
	Destination PartyID
	Type        resources.Type
	Amount      int
	Status      Status

	eng *Engine
}

func (tx *Transaction) Complete() {
	if tx != nil && tx.eng != nil {
		tx.eng.Complete(tx)
	}
}

func (tx *Transaction) Cancel() {
	if tx != nil && tx.eng != nil {
		tx.eng.Cancel(tx)
	}
}

// Settled reports whether the transaction has reached a terminal status.
func (tx *Transaction) Settled() bool {
	return tx == nil || tx.Status != StatusPending
}

// Transfer describes a committed transfer, broadcast to subscribers that
// need the full description rather than just "this party changed".
type Transfer struct {
	ID          string
	Source      PartyID
	Destination PartyID
	Type        resources.Type
	Amount      int
}
