package domain

import (
	"time"
)

// DispatchPreparing is the only dispatch record status; the order's own
// status carries the rest of the lifecycle.
const DispatchPreparing = "PREPARING"

// DispatchRecord marks that dispatch preparation started for an order.
// Creation is idempotent: repeating dispatch initiation returns the existing
// record unchanged.
type DispatchRecord struct {
	ID           string    `json:"id"`
	OrderID      string    `json:"order_id"`
	Status       string    `json:"status"`
	DispatchedAt time.Time `json:"dispatched_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// DeliveryRecord marks confirmed delivery. One per order, idempotent creation.
type DeliveryRecord struct {
	ID          string    `json:"id"`
	OrderID     string    `json:"order_id"`
	DeliveredAt time.Time `json:"delivered_at"`
	CreatedAt   time.Time `json:"created_at"`
}
