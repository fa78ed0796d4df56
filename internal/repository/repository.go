package repository

import (
	"context"

	"github.com/shobha-cmd/vehicleSalesManagement-sub000/internal/domain"
)

// OrderRepository defines the interface for order persistence operations.
type OrderRepository interface {
	// NextOrderID reserves the next year-scoped sequence value and returns a
	// formatted order identifier (VO-<year>-<6-digit sequence>).
	NextOrderID(ctx context.Context, year int) (string, error)

	// Create inserts a new order.
	Create(ctx context.Context, order *domain.Order) error

	// GetByID retrieves an order by its identifier.
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// ListByStatus returns all orders currently in the given status, oldest
	// first.
	ListByStatus(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error)

	// UpdateStatus transitions the order to the given status.
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) error

	// SetAllocation records the allocation bookkeeping used for compensation.
	SetAllocation(ctx context.Context, id string, blockedQty int, source string, stockID *string) error

	// ClearAllocation resets the allocation bookkeeping after compensation.
	ClearAllocation(ctx context.Context, id string) error
}

// StockRepository defines the interface for stock persistence operations.
// All quantity mutations are single atomic statements so that two orders
// racing for the same configuration cannot double-allocate.
type StockRepository interface {
	// GetVariant looks up a catalog variant by code.
	GetVariant(ctx context.Context, code string) (*domain.Variant, error)

	// CreateVariant inserts a catalog variant (idempotent upsert).
	CreateVariant(ctx context.Context, v *domain.Variant) error

	// CreateStock inserts a new on-hand stock row.
	CreateStock(ctx context.Context, stock *domain.Stock) (*domain.Stock, error)

	// CreatePreallocated inserts a new incoming-pool row.
	CreatePreallocated(ctx context.Context, stock *domain.PreallocatedStock) (*domain.PreallocatedStock, error)

	// ListByVariant returns all on-hand rows for a variant.
	ListByVariant(ctx context.Context, variantCode string) ([]domain.Stock, error)

	// AllocateOnHand atomically decrements the first AVAILABLE on-hand row
	// matching the configuration with sufficient quantity, flipping it to
	// DEPLETED at zero. Returns the row id, or ErrNotFound when no row
	// satisfies the request.
	AllocateOnHand(ctx context.Context, cfg domain.VehicleConfig) (string, error)

	// ClaimPreallocated atomically consumes an incoming-pool row whose
	// quantity matches the request exactly and creates a new on-hand row of
	// the requested quantity, fully blocked for the order. Returns the new
	// on-hand row id, or ErrNotFound when no pool row matches.
	ClaimPreallocated(ctx context.Context, cfg domain.VehicleConfig) (string, error)

	// RestoreQuantity adds qty back to the first on-hand row matching the
	// configuration, creating a new AVAILABLE row when none exists. Returns
	// the row id credited.
	RestoreQuantity(ctx context.Context, cfg domain.VehicleConfig, qty int) (string, error)

	// ReleaseBlockedRow flips a fully blocked on-hand row back to AVAILABLE.
	ReleaseBlockedRow(ctx context.Context, stockID string) error

	// CreateManufacturerOrder records the step-3 fallback placeholder.
	CreateManufacturerOrder(ctx context.Context, mo *domain.ManufacturerOrder) error

	// FulfillManufacturerOrder marks the placeholder FULFILLED and returns it.
	FulfillManufacturerOrder(ctx context.Context, orderID string) (*domain.ManufacturerOrder, error)
}

// FinanceRepository defines the interface for finance record persistence.
type FinanceRepository interface {
	// CreateActive opens a new PENDING finance round for the order. Returns
	// ErrAlreadyExists when an undecided round is already open.
	CreateActive(ctx context.Context, orderID string) (*domain.FinanceRecord, error)

	// GetActiveByOrder retrieves the undecided finance record for the order.
	GetActiveByOrder(ctx context.Context, orderID string) (*domain.FinanceRecord, error)

	// Decide transitions a PENDING record to APPROVED or REJECTED, recording
	// the deciding actor. Deciding an already-decided record returns
	// ErrInvalidState.
	Decide(ctx context.Context, id, status, actor string) error
}

// DispatchRepository defines the interface for dispatch and delivery records.
type DispatchRepository interface {
	// CreateDispatch inserts the dispatch record for an order, or returns the
	// existing one. The bool result reports whether a new record was created.
	CreateDispatch(ctx context.Context, orderID string) (*domain.DispatchRecord, bool, error)

	// GetDispatchByOrder retrieves the dispatch record for an order.
	GetDispatchByOrder(ctx context.Context, orderID string) (*domain.DispatchRecord, error)

	// CreateDelivery inserts the delivery record for an order, or returns the
	// existing one.
	CreateDelivery(ctx context.Context, orderID string) (*domain.DeliveryRecord, bool, error)

	// GetDeliveryByOrder retrieves the delivery record for an order.
	GetDeliveryByOrder(ctx context.Context, orderID string) (*domain.DeliveryRecord, error)
}

// HistoryRepository defines the interface for the immutable audit trail.
type HistoryRepository interface {
	// Append writes one audit entry.
	Append(ctx context.Context, entry *domain.HistoryEntry) error

	// ListByOrder returns the audit trail for an order, oldest first.
	ListByOrder(ctx context.Context, orderID string) ([]domain.HistoryEntry, error)
}
