package domain

import (
	"time"
)

// OrderStatus is the single source of truth for an order's lifecycle position.
type OrderStatus string

// Order statuses.
const (
	StatusPending        OrderStatus = "PENDING"
	StatusBlocked        OrderStatus = "BLOCKED"
	StatusAllotted       OrderStatus = "ALLOTTED"
	StatusDispatched     OrderStatus = "DISPATCHED"
	StatusDelivered      OrderStatus = "DELIVERED"
	StatusConfirmed      OrderStatus = "CONFIRMED"
	StatusCanceled       OrderStatus = "CANCELED"
	StatusFailed         OrderStatus = "FAILED"
	StatusCompleted      OrderStatus = "COMPLETED"
	StatusNotified       OrderStatus = "NOTIFIED"
	StatusFinancePending OrderStatus = "FINANCE_PENDING"
	StatusApproved       OrderStatus = "APPROVED"
)

// IsTerminal reports whether the status admits no further transitions.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCanceled, StatusFailed:
		return true
	}
	return false
}

// ValidOrderStatuses returns the closed set of order statuses.
func ValidOrderStatuses() []OrderStatus {
	return []OrderStatus{
		StatusPending, StatusBlocked, StatusAllotted, StatusDispatched,
		StatusDelivered, StatusConfirmed, StatusCanceled, StatusFailed,
		StatusCompleted, StatusNotified, StatusFinancePending, StatusApproved,
	}
}

// IsValidOrderStatus checks whether the given value is a known order status.
func IsValidOrderStatus(s OrderStatus) bool {
	for _, v := range ValidOrderStatuses() {
		if v == s {
			return true
		}
	}
	return false
}

// Customer identifies the buyer on an order.
type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// VehicleConfig is the requested vehicle configuration. Allocation matches
// stock rows against every populated attribute.
type VehicleConfig struct {
	Model        string `json:"model"`
	VariantCode  string `json:"variant_code"`
	VariantName  string `json:"variant_name"`
	Colour       string `json:"colour"`
	FuelType     string `json:"fuel_type"`
	Transmission string `json:"transmission"`
	Quantity     int    `json:"quantity"`
}

// Complete reports whether every attribute required for on-hand matching is
// present. An incomplete configuration can only be satisfied by a
// manufacturer order.
func (c VehicleConfig) Complete() bool {
	return c.Model != "" && c.VariantCode != "" && c.VariantName != "" &&
		c.Colour != "" && c.FuelType != "" && c.Transmission != "" &&
		c.Quantity > 0
}

// Allocation sources recorded on the order for compensation.
const (
	SourceOnHand       = "on_hand"
	SourcePreallocated = "preallocated"
	SourceManufacturer = "manufacturer"
)

// Order is a vehicle sales order. Orders are never deleted; terminal states
// are COMPLETED, CANCELED, and FAILED.
type Order struct {
	ID       string        `json:"id"`
	Customer Customer      `json:"customer"`
	Config   VehicleConfig `json:"config"`
	Status   OrderStatus   `json:"status"`

	// Allocation bookkeeping used for compensation and finance re-initiation.
	BlockedQuantity  int     `json:"blocked_quantity"`
	AllocationSource string  `json:"allocation_source,omitempty"`
	BlockedStockID   *string `json:"blocked_stock_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasBlockedStock reports whether the order currently holds blocked inventory
// that cancellation must restore.
func (o *Order) HasBlockedStock() bool {
	return o.BlockedQuantity > 0
}
