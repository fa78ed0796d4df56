package postgres

import (
	"context"
	"fmt"

	"github.com/shobha-cmd/vehicleSalesManagement-sub000/internal/domain"
	"github.com/shobha-cmd/vehicleSalesManagement-sub000/pkg/database"
)

// HistoryRepository implements repository.HistoryRepository using PostgreSQL.
type HistoryRepository struct {
	pool database.DBTX
}

// NewHistoryRepository creates a new PostgreSQL-backed history repository.
func NewHistoryRepository(pool database.DBTX) *HistoryRepository {
	return &HistoryRepository{pool: pool}
}

// Append writes one audit entry.
func (r *HistoryRepository) Append(ctx context.Context, entry *domain.HistoryEntry) error {
	query := `
		INSERT INTO order_history (order_id, from_status, to_status, actor, note)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	actor := entry.Actor
	if actor == "" {
		actor = domain.SystemActor
	}

	err := r.pool.QueryRow(ctx, query,
		entry.OrderID,
		entry.FromStatus,
		entry.ToStatus,
		actor,
		entry.Note,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("append history entry: %w", err)
	}
	entry.Actor = actor

	return nil
}

// ListByOrder returns the audit trail for an order, oldest first.
func (r *HistoryRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.HistoryEntry, error) {
	query := `
		SELECT id, order_id, from_status, to_status, actor, note, created_at
		FROM order_history
		WHERE order_id = $1
		ORDER BY id ASC`

	rows, err := r.pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("list history by order: %w", err)
	}
	defer rows.Close()

	var entries []domain.HistoryEntry
	for rows.Next() {
		var e domain.HistoryEntry
		if err := rows.Scan(
			&e.ID,
			&e.OrderID,
			&e.FromStatus,
			&e.ToStatus,
			&e.Actor,
			&e.Note,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}

	if entries == nil {
		entries = []domain.HistoryEntry{}
	}

	return entries, nil
}
