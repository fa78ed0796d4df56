package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shobha-cmd/vehicleSalesManagement-sub000/internal/saga"
	"github.com/shobha-cmd/vehicleSalesManagement-sub000/pkg/database"
)

func setupJournalRepo(t *testing.T) (*JournalRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	repo := NewJournalRepository(mock)
	return repo, mock
}

func journalEntry() *saga.Entry {
	return &saga.Entry{
		SagaID:  "VO-2025-000001",
		Type:    saga.EntryActivity,
		Name:    "place_order#0",
		Payload: []byte(`{}`),
	}
}

// ---------------------------------------------------------------------------
// Append
// ---------------------------------------------------------------------------

func TestJournalRepository_Append_AssignsSequence(t *testing.T) {
	repo, mock := setupJournalRepo(t)
	defer mock.Close()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	entry := journalEntry()
	mock.ExpectQuery("INSERT INTO saga_journal").
		WithArgs(entry.SagaID, entry.Type, entry.Name, entry.Payload, entry.Err).
		WillReturnRows(pgxmock.NewRows([]string{"seq", "created_at"}).AddRow(int64(3), now))

	require.NoError(t, repo.Append(context.Background(), entry))
	assert.Equal(t, int64(3), entry.Seq)
	assert.Equal(t, now, entry.At)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJournalRepository_Append_RetriesOnSequenceCollision(t *testing.T) {
	repo, mock := setupJournalRepo(t)
	defer mock.Close()

	// A concurrent appender took the computed seq; the losing insert hits the
	// primary key and retries with a recomputed sequence.
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	entry := journalEntry()
	mock.ExpectQuery("INSERT INTO saga_journal").
		WithArgs(entry.SagaID, entry.Type, entry.Name, entry.Payload, entry.Err).
		WillReturnError(&pgconn.PgError{Code: uniqueViolation, ConstraintName: "saga_journal_pkey"})
	mock.ExpectQuery("INSERT INTO saga_journal").
		WithArgs(entry.SagaID, entry.Type, entry.Name, entry.Payload, entry.Err).
		WillReturnRows(pgxmock.NewRows([]string{"seq", "created_at"}).AddRow(int64(4), now))

	require.NoError(t, repo.Append(context.Background(), entry))
	assert.Equal(t, int64(4), entry.Seq)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJournalRepository_Append_OtherErrorsNotRetried(t *testing.T) {
	repo, mock := setupJournalRepo(t)
	defer mock.Close()

	entry := journalEntry()
	mock.ExpectQuery("INSERT INTO saga_journal").
		WithArgs(entry.SagaID, entry.Type, entry.Name, entry.Payload, entry.Err).
		WillReturnError(errors.New("connection refused"))

	err := repo.Append(context.Background(), entry)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// Load / OpenSagas
// ---------------------------------------------------------------------------

func TestJournalRepository_Load_OrdersBySequence(t *testing.T) {
	repo, mock := setupJournalRepo(t)
	defer mock.Close()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cols := []string{"saga_id", "seq", "entry_type", "name", "payload", "error", "created_at"}
	mock.ExpectQuery("SELECT .+ FROM saga_journal").
		WithArgs("VO-2025-000001").
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow("VO-2025-000001", int64(1), saga.EntryStart, "start", []byte(`{"order_id":"VO-2025-000001"}`), "", now).
			AddRow("VO-2025-000001", int64(2), saga.EntryActivity, "place_order#0", []byte(`{}`), "", now))

	entries, err := repo.Load(context.Background(), "VO-2025-000001")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, saga.EntryStart, entries[0].Type)
	assert.Equal(t, "place_order#0", entries[1].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJournalRepository_OpenSagas(t *testing.T) {
	repo, mock := setupJournalRepo(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT DISTINCT saga_id").
		WillReturnRows(pgxmock.NewRows([]string{"saga_id"}).
			AddRow("VO-2025-000001").
			AddRow("VO-2025-000002"))

	ids, err := repo.OpenSagas(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"VO-2025-000001", "VO-2025-000002"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}
