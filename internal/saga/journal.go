package saga

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// EntryType classifies journal entries.
type EntryType string

const (
	// EntryStart records the order request that started the saga.
	EntryStart EntryType = "start"
	// EntrySignal records an accepted external signal.
	EntrySignal EntryType = "signal"
	// EntryActivity records a completed activity invocation and its outcome.
	EntryActivity EntryType = "activity"
	// EntryCompleted marks the saga terminal; no further entries follow.
	EntryCompleted EntryType = "completed"
)

// Entry is one record in a saga's ordered journal. The saga's in-memory state
// is a pure function of its journal, which is what makes crash recovery a
// replay instead of a guess.
type Entry struct {
	SagaID  string          `json:"saga_id"`
	Seq     int64           `json:"seq"`
	Type    EntryType       `json:"type"`
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Err     string          `json:"error,omitempty"`
	At      time.Time       `json:"at"`
}

// Journal is the durable, ordered, per-saga event log. Append assigns the
// next sequence number and must be committed before the entry is applied to
// in-memory state.
type Journal interface {
	Append(ctx context.Context, entry *Entry) error
	Load(ctx context.Context, sagaID string) ([]Entry, error)
	// OpenSagas lists sagas that have journal entries but no completion
	// marker; these are recovered on startup.
	OpenSagas(ctx context.Context) ([]string, error)
}

// MemoryJournal is an in-memory Journal used by tests and available as a
// non-durable fallback.
type MemoryJournal struct {
	mu      sync.Mutex
	entries map[string][]Entry
}

// NewMemoryJournal creates an empty in-memory journal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{entries: make(map[string][]Entry)}
}

// Append assigns the next sequence number and stores the entry.
func (j *MemoryJournal) Append(_ context.Context, entry *Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	entry.Seq = int64(len(j.entries[entry.SagaID]) + 1)
	if entry.At.IsZero() {
		entry.At = time.Now().UTC()
	}
	j.entries[entry.SagaID] = append(j.entries[entry.SagaID], *entry)
	return nil
}

// Load returns all entries for a saga in sequence order.
func (j *MemoryJournal) Load(_ context.Context, sagaID string) ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	entries := make([]Entry, len(j.entries[sagaID]))
	copy(entries, j.entries[sagaID])
	return entries, nil
}

// OpenSagas lists sagas without a completion marker.
func (j *MemoryJournal) OpenSagas(_ context.Context) ([]string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	var open []string
	for id, entries := range j.entries {
		completed := false
		for _, e := range entries {
			if e.Type == EntryCompleted {
				completed = true
				break
			}
		}
		if !completed {
			open = append(open, id)
		}
	}
	sort.Strings(open)
	return open, nil
}
