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

// DispatchRepository implements repository.DispatchRepository using
// PostgreSQL. Both record types are unique per order; creation is idempotent
// and re-creation returns the existing row unchanged.
type DispatchRepository struct {
	pool database.DBTX
}

// NewDispatchRepository creates a new PostgreSQL-backed dispatch repository.
func NewDispatchRepository(pool database.DBTX) *DispatchRepository {
	return &DispatchRepository{pool: pool}
}

// CreateDispatch inserts the dispatch record for an order, or returns the
// existing one.
func (r *DispatchRepository) CreateDispatch(ctx context.Context, orderID string) (*domain.DispatchRecord, bool, error) {
	query := `
		INSERT INTO dispatch_records (order_id, status)
		VALUES ($1, 'PREPARING')
		ON CONFLICT (order_id) DO NOTHING
		RETURNING id, order_id, status, dispatched_at, created_at`

	var rec domain.DispatchRecord
	err := r.pool.QueryRow(ctx, query, orderID).Scan(
		&rec.ID,
		&rec.OrderID,
		&rec.Status,
		&rec.DispatchedAt,
		&rec.CreatedAt,
	)
	if err == nil {
		return &rec, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("create dispatch record: %w", err)
	}

	existing, err := r.GetDispatchByOrder(ctx, orderID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// GetDispatchByOrder retrieves the dispatch record for an order.
func (r *DispatchRepository) GetDispatchByOrder(ctx context.Context, orderID string) (*domain.DispatchRecord, error) {
	query := `
		SELECT id, order_id, status, dispatched_at, created_at
		FROM dispatch_records
		WHERE order_id = $1`

	var rec domain.DispatchRecord
	err := r.pool.QueryRow(ctx, query, orderID).Scan(
		&rec.ID,
		&rec.OrderID,
		&rec.Status,
		&rec.DispatchedAt,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("dispatch record", orderID)
		}
		return nil, fmt.Errorf("get dispatch record: %w", err)
	}

	return &rec, nil
}

// CreateDelivery inserts the delivery record for an order, or returns the
// existing one.
func (r *DispatchRepository) CreateDelivery(ctx context.Context, orderID string) (*domain.DeliveryRecord, bool, error) {
	query := `
		INSERT INTO delivery_records (order_id)
		VALUES ($1)
		ON CONFLICT (order_id) DO NOTHING
		RETURNING id, order_id, delivered_at, created_at`

	var rec domain.DeliveryRecord
	err := r.pool.QueryRow(ctx, query, orderID).Scan(
		&rec.ID,
		&rec.OrderID,
		&rec.DeliveredAt,
		&rec.CreatedAt,
	)
	if err == nil {
		return &rec, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("create delivery record: %w", err)
	}

	existing, err := r.GetDeliveryByOrder(ctx, orderID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// GetDeliveryByOrder retrieves the delivery record for an order.
func (r *DispatchRepository) GetDeliveryByOrder(ctx context.Context, orderID string) (*domain.DeliveryRecord, error) {
	query := `
		SELECT id, order_id, delivered_at, created_at
		FROM delivery_records
		WHERE order_id = $1`

	var rec domain.DeliveryRecord
	err := r.pool.QueryRow(ctx, query, orderID).Scan(
		&rec.ID,
		&rec.OrderID,
		&rec.DeliveredAt,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("delivery record", orderID)
		}
		return nil, fmt.Errorf("get delivery record: %w", err)
	}

	return &rec, nil
}
