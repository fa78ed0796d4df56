package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/shobha-cmd/vehicleSalesManagement-sub000/internal/saga"
	"github.com/shobha-cmd/vehicleSalesManagement-sub000/pkg/database"
)

// appendAttempts bounds the sequence-collision retry in Append.
const appendAttempts = 5

// JournalRepository implements saga.Journal on the saga_journal table.
// Sequence numbers are assigned inside the INSERT so an appended entry is
// durable before it is ever applied to in-memory state.
type JournalRepository struct {
	pool database.DBTX
}

// NewJournalRepository creates a new PostgreSQL-backed saga journal.
func NewJournalRepository(pool database.DBTX) *JournalRepository {
	return &JournalRepository{pool: pool}
}

// Append assigns the next per-saga sequence number and inserts the entry.
// The run loop and signal handlers append concurrently, so two writers can
// compute the same seq; the loser hits the (saga_id, seq) primary key and
// retries with a recomputed sequence.
func (r *JournalRepository) Append(ctx context.Context, entry *saga.Entry) error {
	query := `
		INSERT INTO saga_journal (saga_id, seq, entry_type, name, payload, error)
		VALUES (
			$1,
			(SELECT COALESCE(MAX(seq), 0) + 1 FROM saga_journal WHERE saga_id = $1),
			$2, $3, $4, $5
		)
		RETURNING seq, created_at`

	var err error
	for attempt := 0; attempt < appendAttempts; attempt++ {
		err = r.pool.QueryRow(ctx, query,
			entry.SagaID,
			entry.Type,
			entry.Name,
			entry.Payload,
			entry.Err,
		).Scan(&entry.Seq, &entry.At)
		if err == nil {
			return nil
		}

		var pgErr *pgconn.PgError
		if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
			break
		}
	}

	return fmt.Errorf("append journal entry: %w", err)
}

// Load returns all entries for a saga in sequence order.
func (r *JournalRepository) Load(ctx context.Context, sagaID string) ([]saga.Entry, error) {
	query := `
		SELECT saga_id, seq, entry_type, name, payload, error, created_at
		FROM saga_journal
		WHERE saga_id = $1
		ORDER BY seq ASC`

	rows, err := r.pool.Query(ctx, query, sagaID)
	if err != nil {
		return nil, fmt.Errorf("load journal: %w", err)
	}
	defer rows.Close()

	var entries []saga.Entry
	for rows.Next() {
		var e saga.Entry
		if err := rows.Scan(&e.SagaID, &e.Seq, &e.Type, &e.Name, &e.Payload, &e.Err, &e.At); err != nil {
			return nil, fmt.Errorf("scan journal row: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal rows: %w", err)
	}

	return entries, nil
}

// OpenSagas lists sagas without a completion marker.
func (r *JournalRepository) OpenSagas(ctx context.Context) ([]string, error) {
	query := `
		SELECT DISTINCT saga_id
		FROM saga_journal
		WHERE saga_id NOT IN (
			SELECT saga_id FROM saga_journal WHERE entry_type = 'completed'
		)
		ORDER BY saga_id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list open sagas: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan open saga id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate open saga rows: %w", err)
	}

	return ids, nil
}
