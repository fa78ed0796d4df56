package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/shobha-cmd/vehicleSalesManagement-sub000/internal/domain"
	"github.com/shobha-cmd/vehicleSalesManagement-sub000/pkg/database"
	apperrors "github.com/shobha-cmd/vehicleSalesManagement-sub000/pkg/errors"
)

// uniqueViolation is the PostgreSQL error code for unique constraint violations.
const uniqueViolation = "23505"

// FinanceRepository implements repository.FinanceRepository using PostgreSQL.
// The one-active-round-per-order invariant is enforced by a partial unique
// index on (order_id) WHERE status = 'PENDING'.
type FinanceRepository struct {
	pool database.DBTX
}

// NewFinanceRepository creates a new PostgreSQL-backed finance repository.
func NewFinanceRepository(pool database.DBTX) *FinanceRepository {
	return &FinanceRepository{pool: pool}
}

// CreateActive opens a new PENDING finance round for the order.
func (r *FinanceRepository) CreateActive(ctx context.Context, orderID string) (*domain.FinanceRecord, error) {
	query := `
		INSERT INTO finance_records (order_id, status)
		VALUES ($1, 'PENDING')
		RETURNING id, order_id, status, decided_by, decided_at, created_at, updated_at`

	var rec domain.FinanceRecord
	err := r.pool.QueryRow(ctx, query, orderID).Scan(
		&rec.ID,
		&rec.OrderID,
		&rec.Status,
		&rec.DecidedBy,
		&rec.DecidedAt,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, apperrors.AlreadyExists("finance record", "order_id", orderID)
		}
		return nil, fmt.Errorf("create finance record: %w", err)
	}

	return &rec, nil
}

// GetActiveByOrder retrieves the undecided finance record for the order.
func (r *FinanceRepository) GetActiveByOrder(ctx context.Context, orderID string) (*domain.FinanceRecord, error) {
	query := `
		SELECT id, order_id, status, decided_by, decided_at, created_at, updated_at
		FROM finance_records
		WHERE order_id = $1 AND status = 'PENDING'`

	var rec domain.FinanceRecord
	err := r.pool.QueryRow(ctx, query, orderID).Scan(
		&rec.ID,
		&rec.OrderID,
		&rec.Status,
		&rec.DecidedBy,
		&rec.DecidedAt,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("active finance record", orderID)
		}
		return nil, fmt.Errorf("get active finance record: %w", err)
	}

	return &rec, nil
}

// Decide transitions a PENDING record to APPROVED or REJECTED. The status
// guard in the WHERE clause makes a second decision attempt a no-op, surfaced
// as ErrInvalidState.
func (r *FinanceRepository) Decide(ctx context.Context, id, status, actor string) error {
	query := `
		UPDATE finance_records
		SET status = $1, decided_by = $2, decided_at = NOW(), updated_at = NOW()
		WHERE id = $3 AND status = 'PENDING'`

	ct, err := r.pool.Exec(ctx, query, status, actor, id)
	if err != nil {
		return fmt.Errorf("decide finance record: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.InvalidState(fmt.Sprintf("finance record %s is already decided or does not exist", id))
	}

	return nil
}
