package domain

import (
	"time"
)

// StockStatus marks whether a stock row still has quantity to allocate.
type StockStatus string

const (
	StockAvailable StockStatus = "AVAILABLE"
	StockDepleted  StockStatus = "DEPLETED"
)

// Stock is an on-hand inventory row for a specific vehicle configuration.
type Stock struct {
	ID           string      `json:"id"`
	VariantCode  string      `json:"variant_code"`
	Colour       string      `json:"colour"`
	FuelType     string      `json:"fuel_type"`
	Transmission string      `json:"transmission"`
	Quantity     int         `json:"quantity"`
	Status       StockStatus `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// PreallocatedStock is an incoming-pool row. Claiming it requires an exact
// quantity match and converts it into a fresh on-hand row.
type PreallocatedStock struct {
	ID              string      `json:"id"`
	VariantCode     string      `json:"variant_code"`
	Colour          string      `json:"colour"`
	FuelType        string      `json:"fuel_type"`
	Transmission    string      `json:"transmission"`
	Quantity        int         `json:"quantity"`
	Status          StockStatus `json:"status"`
	ExpectedArrival *time.Time  `json:"expected_arrival,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Variant is a catalog row. A missing variant reference on allocation is a
// configuration error, not a retryable condition.
type Variant struct {
	Code         string    `json:"code"`
	Model        string    `json:"model"`
	Name         string    `json:"name"`
	FuelType     string    `json:"fuel_type,omitempty"`
	Transmission string    `json:"transmission,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Manufacturer order statuses.
const (
	ManufacturerOrderPlaced    = "PLACED"
	ManufacturerOrderFulfilled = "FULFILLED"
)

// ManufacturerOrder is the placeholder recorded when neither pool can satisfy
// a request. The order stays PENDING until external fulfillment.
type ManufacturerOrder struct {
	ID           string    `json:"id"`
	OrderID      string    `json:"order_id"`
	VariantCode  string    `json:"variant_code"`
	Colour       string    `json:"colour"`
	FuelType     string    `json:"fuel_type"`
	Transmission string    `json:"transmission"`
	Quantity     int       `json:"quantity"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AllocationResult is the outcome of a stock allocation attempt.
type AllocationResult struct {
	Status  OrderStatus `json:"status"` // BLOCKED or PENDING
	Source  string      `json:"source,omitempty"`
	StockID string      `json:"stock_id,omitempty"`
}
