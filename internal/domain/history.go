package domain

import (
	"time"
)

// HistoryEntry is an immutable audit row written after every order state
// change.
type HistoryEntry struct {
	ID         int64       `json:"id"`
	OrderID    string      `json:"order_id"`
	FromStatus OrderStatus `json:"from_status,omitempty"`
	ToStatus   OrderStatus `json:"to_status"`
	Actor      string      `json:"actor"`
	Note       string      `json:"note,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}
