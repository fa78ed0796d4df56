package domain

import (
	"time"
)

// Finance record statuses.
const (
	FinancePending  = "PENDING"
	FinanceApproved = "APPROVED"
	FinanceRejected = "REJECTED"
)

// SystemActor is recorded on decisions made automatically (timeouts).
const SystemActor = "system"

// FinanceRecord tracks one financing round for an order. At most one PENDING
// record may exist per order; a record is terminal once decided.
type FinanceRecord struct {
	ID        string     `json:"id"`
	OrderID   string     `json:"order_id"`
	Status    string     `json:"status"`
	DecidedBy string     `json:"decided_by,omitempty"`
	DecidedAt *time.Time `json:"decided_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Decided reports whether the record has reached a terminal decision.
func (f *FinanceRecord) Decided() bool {
	return f.Status == FinanceApproved || f.Status == FinanceRejected
}
