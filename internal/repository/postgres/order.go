package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/shobha-cmd/vehicleSalesManagement-sub000/internal/domain"
	"github.com/shobha-cmd/vehicleSalesManagement-sub000/pkg/database"
	apperrors "github.com/shobha-cmd/vehicleSalesManagement-sub000/pkg/errors"
)

// OrderRepository implements repository.OrderRepository using PostgreSQL.
type OrderRepository struct {
	pool database.DBTX
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool database.DBTX) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// NextOrderID reserves the next year-scoped sequence value and formats it as
// VO-<year>-<6-digit sequence>.
func (r *OrderRepository) NextOrderID(ctx context.Context, year int) (string, error) {
	query := `
		INSERT INTO order_sequences (year, last_value)
		VALUES ($1, 1)
		ON CONFLICT (year) DO UPDATE SET last_value = order_sequences.last_value + 1
		RETURNING last_value`

	var seq int64
	if err := r.pool.QueryRow(ctx, query, year).Scan(&seq); err != nil {
		return "", fmt.Errorf("next order id: %w", err)
	}

	return fmt.Sprintf("VO-%d-%06d", year, seq), nil
}

// Create inserts a new order.
func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	query := `
		INSERT INTO orders (
			id, customer_name, customer_email, customer_phone,
			model, variant_code, variant_name, colour, fuel_type, transmission,
			quantity, status, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
		RETURNING created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		order.ID,
		order.Customer.Name,
		order.Customer.Email,
		order.Customer.Phone,
		order.Config.Model,
		order.Config.VariantCode,
		order.Config.VariantName,
		order.Config.Colour,
		order.Config.FuelType,
		order.Config.Transmission,
		order.Config.Quantity,
		order.Status,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}

	return nil
}

const orderColumns = `
	id, customer_name, customer_email, customer_phone,
	model, variant_code, variant_name, colour, fuel_type, transmission,
	quantity, status, blocked_quantity, allocation_source, blocked_stock_id,
	created_at, updated_at`

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(
		&o.ID,
		&o.Customer.Name,
		&o.Customer.Email,
		&o.Customer.Phone,
		&o.Config.Model,
		&o.Config.VariantCode,
		&o.Config.VariantName,
		&o.Config.Colour,
		&o.Config.FuelType,
		&o.Config.Transmission,
		&o.Config.Quantity,
		&o.Status,
		&o.BlockedQuantity,
		&o.AllocationSource,
		&o.BlockedStockID,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// GetByID retrieves an order by its identifier.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	o, err := scanOrder(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("order", id)
		}
		return nil, fmt.Errorf("get order by id: %w", err)
	}

	return o, nil
}

// ListByStatus returns all orders currently in the given status, oldest first.
func (r *OrderRepository) ListByStatus(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE status = $1 ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("list orders by status: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}

	return orders, nil
}

// UpdateStatus transitions the order to the given status.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) error {
	query := `
		UPDATE orders
		SET status = $1, updated_at = NOW()
		WHERE id = $2`

	ct, err := r.pool.Exec(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("order", id)
	}

	return nil
}

// SetAllocation records the allocation bookkeeping used for compensation.
func (r *OrderRepository) SetAllocation(ctx context.Context, id string, blockedQty int, source string, stockID *string) error {
	query := `
		UPDATE orders
		SET blocked_quantity = $1, allocation_source = $2, blocked_stock_id = $3, updated_at = NOW()
		WHERE id = $4`

	ct, err := r.pool.Exec(ctx, query, blockedQty, source, stockID, id)
	if err != nil {
		return fmt.Errorf("set order allocation: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("order", id)
	}

	return nil
}

// ClearAllocation resets the allocation bookkeeping after compensation.
func (r *OrderRepository) ClearAllocation(ctx context.Context, id string) error {
	query := `
		UPDATE orders
		SET blocked_quantity = 0, allocation_source = '', blocked_stock_id = NULL, updated_at = NOW()
		WHERE id = $1`

	ct, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("clear order allocation: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("order", id)
	}

	return nil
}
