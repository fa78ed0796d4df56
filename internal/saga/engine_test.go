package saga

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shobha-cmd/vehicleSalesManagement-sub000/internal/domain"
	apperrors "github.com/shobha-cmd/vehicleSalesManagement-sub000/pkg/errors"
)

// ---------------------------------------------------------------------------
// fake activities
// ---------------------------------------------------------------------------

// fakeActivities tracks invocations and simulates the service layer without a
// database. Orders start PENDING and move through the usual statuses.
type fakeActivities struct {
	mu sync.Mutex

	placeErr   error
	placeRes   domain.AllocationResult
	initErr    error
	dispatchIn int // invalid-state dispatches before success

	placeCalls     int
	initCalls      int
	resolveCalls   int
	dispatchCalls  int
	deliverCalls   int
	terminateCalls int

	lastResolveActor  string
	lastResolveOK     bool
	terminalStatus    domain.OrderStatus
	terminateReason   string
	compensationCount int
}

func newFakeActivities() *fakeActivities {
	return &fakeActivities{
		placeRes: domain.AllocationResult{
			Status:  domain.StatusBlocked,
			Source:  domain.SourceOnHand,
			StockID: "stock-1",
		},
	}
}

func (f *fakeActivities) PlaceOrder(_ context.Context, _ string) (*domain.AllocationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.placeCalls++
	if f.placeErr != nil {
		return nil, f.placeErr
	}
	res := f.placeRes
	return &res, nil
}

func (f *fakeActivities) InitiateFinance(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initCalls++
	return f.initErr
}

func (f *fakeActivities) ResolveFinance(_ context.Context, _ string, approved bool, actor string) (domain.OrderStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolveCalls++
	f.lastResolveOK = approved
	f.lastResolveActor = actor
	if approved {
		return domain.StatusAllotted, nil
	}
	return domain.StatusPending, nil
}

func (f *fakeActivities) Dispatch(_ context.Context, _ string) (domain.OrderStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dispatchCalls++
	if f.dispatchIn > 0 {
		f.dispatchIn--
		return "", apperrors.InvalidState("dispatch requires an ALLOTTED order")
	}
	return domain.StatusDispatched, nil
}

func (f *fakeActivities) Deliver(_ context.Context, _ string) (domain.OrderStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deliverCalls++
	return domain.StatusDelivered, nil
}

func (f *fakeActivities) Terminate(_ context.Context, _ string, terminal domain.OrderStatus, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terminateCalls++
	f.compensationCount++
	f.terminalStatus = terminal
	f.terminateReason = reason
	return nil
}

func (f *fakeActivities) snapshot() fakeActivities {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fakeActivities{
		placeCalls:        f.placeCalls,
		initCalls:         f.initCalls,
		resolveCalls:      f.resolveCalls,
		dispatchCalls:     f.dispatchCalls,
		deliverCalls:      f.deliverCalls,
		terminateCalls:    f.terminateCalls,
		lastResolveActor:  f.lastResolveActor,
		lastResolveOK:     f.lastResolveOK,
		terminalStatus:    f.terminalStatus,
		terminateReason:   f.terminateReason,
		compensationCount: f.compensationCount,
	}
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func sagaTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testConfig() Config {
	return Config{
		Timeouts: Timeouts{
			FinanceInit:     time.Minute,
			FinanceDecision: time.Minute,
			DispatchInit:    time.Minute,
			Delivery:        time.Minute,
		},
		Retry: RetryPolicy{
			InitialBackoff: 5 * time.Millisecond,
			MaxAttempts:    3,
			CallTimeout:    time.Second,
		},
	}
}

func newTestEngine(journal Journal, acts Activities, cfg Config) *Engine {
	return NewEngine(journal, acts, nil, sagaTestLogger(), cfg)
}

func waitForPhase(t *testing.T, e *Engine, orderID string, phase Phase) {
	t.Helper()
	require.Eventually(t, func() bool {
		view, err := e.OrderStatus(context.Background(), orderID)
		return err == nil && view.Phase == string(phase)
	}, 3*time.Second, 5*time.Millisecond, "saga never reached phase %s", phase)
}

func signal(t *testing.T, e *Engine, orderID string, sig Signal) {
	t.Helper()
	require.NoError(t, e.Signal(context.Background(), orderID, sig))
}

// faultJournal fails a fixed number of appends for one entry name and
// delegates everything else to the wrapped journal.
type faultJournal struct {
	Journal
	mu       sync.Mutex
	failName string
	failures int
}

func (j *faultJournal) Append(ctx context.Context, entry *Entry) error {
	j.mu.Lock()
	if entry.Name == j.failName && j.failures > 0 {
		j.failures--
		j.mu.Unlock()
		return errors.New("journal unavailable")
	}
	j.mu.Unlock()
	return j.Journal.Append(ctx, entry)
}

// ---------------------------------------------------------------------------
// lifecycle
// ---------------------------------------------------------------------------

func TestSaga_HappyPath(t *testing.T) {
	acts := newFakeActivities()
	e := newTestEngine(NewMemoryJournal(), acts, testConfig())
	ctx := context.Background()

	require.NoError(t, e.StartOrderSaga(ctx, "VO-2025-000001"))
	waitForPhase(t, e, "VO-2025-000001", PhaseAwaitingFinance)

	signal(t, e, "VO-2025-000001", Signal{Kind: SignalInitiateFinance})
	signal(t, e, "VO-2025-000001", Signal{Kind: SignalApproveFinance, Actor: "alice"})
	waitForPhase(t, e, "VO-2025-000001", PhaseAwaitingDisp)

	signal(t, e, "VO-2025-000001", Signal{Kind: SignalInitiateDispatch})
	waitForPhase(t, e, "VO-2025-000001", PhaseAwaitingDeliv)

	signal(t, e, "VO-2025-000001", Signal{Kind: SignalConfirmDelivery})
	waitForPhase(t, e, "VO-2025-000001", PhaseDelivered)

	snap := acts.snapshot()
	assert.Equal(t, 1, snap.placeCalls)
	assert.Equal(t, 1, snap.initCalls)
	assert.Equal(t, 1, snap.resolveCalls)
	assert.True(t, snap.lastResolveOK)
	assert.Equal(t, "alice", snap.lastResolveActor)
	assert.Equal(t, 1, snap.dispatchCalls)
	assert.Equal(t, 1, snap.deliverCalls)
	assert.Zero(t, snap.terminateCalls)

	view, err := e.OrderStatus(ctx, "VO-2025-000001")
	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusDelivered), view.Status)
}

func TestSaga_PlacementFailureIsTerminal(t *testing.T) {
	acts := newFakeActivities()
	acts.placeErr = fmt.Errorf("variant lookup: %w", apperrors.ErrInvalidInput)
	e := newTestEngine(NewMemoryJournal(), acts, testConfig())

	require.NoError(t, e.StartOrderSaga(context.Background(), "VO-2025-000002"))
	waitForPhase(t, e, "VO-2025-000002", PhaseFailed)

	snap := acts.snapshot()
	assert.Equal(t, 1, snap.placeCalls)
	assert.Equal(t, domain.StatusFailed, snap.terminalStatus)
	assert.Equal(t, 1, snap.compensationCount)
}

func TestSaga_CancelWhileAwaitingDispatch(t *testing.T) {
	acts := newFakeActivities()
	e := newTestEngine(NewMemoryJournal(), acts, testConfig())
	ctx := context.Background()

	require.NoError(t, e.StartOrderSaga(ctx, "VO-2025-000003"))
	waitForPhase(t, e, "VO-2025-000003", PhaseAwaitingFinance)
	signal(t, e, "VO-2025-000003", Signal{Kind: SignalInitiateFinance})
	signal(t, e, "VO-2025-000003", Signal{Kind: SignalApproveFinance, Actor: "alice"})
	waitForPhase(t, e, "VO-2025-000003", PhaseAwaitingDisp)

	signal(t, e, "VO-2025-000003", Signal{Kind: SignalCancelOrder})
	waitForPhase(t, e, "VO-2025-000003", PhaseCanceled)

	snap := acts.snapshot()
	assert.Equal(t, domain.StatusCanceled, snap.terminalStatus)
	assert.Equal(t, 1, snap.compensationCount, "compensation must run exactly once")
	assert.Zero(t, snap.dispatchCalls)
}

func TestSaga_FinanceInitTimeoutFails(t *testing.T) {
	cfg := testConfig()
	cfg.Timeouts.FinanceInit = 30 * time.Millisecond

	acts := newFakeActivities()
	e := newTestEngine(NewMemoryJournal(), acts, cfg)

	require.NoError(t, e.StartOrderSaga(context.Background(), "VO-2025-000004"))
	waitForPhase(t, e, "VO-2025-000004", PhaseFailed)

	snap := acts.snapshot()
	assert.Equal(t, domain.StatusFailed, snap.terminalStatus)
	assert.Equal(t, 1, snap.compensationCount, "compensation must run exactly once")
	assert.Zero(t, snap.initCalls)
}

func TestSaga_FinanceDecisionTimeoutAutoRejects(t *testing.T) {
	cfg := testConfig()
	cfg.Timeouts.FinanceDecision = 30 * time.Millisecond

	acts := newFakeActivities()
	e := newTestEngine(NewMemoryJournal(), acts, cfg)
	ctx := context.Background()

	require.NoError(t, e.StartOrderSaga(ctx, "VO-2025-000005"))
	waitForPhase(t, e, "VO-2025-000005", PhaseAwaitingFinance)
	signal(t, e, "VO-2025-000005", Signal{Kind: SignalInitiateFinance})

	// The decision window elapses: the round auto-rejects as the system and
	// the saga returns to awaiting a fresh initiation.
	require.Eventually(t, func() bool {
		snap := acts.snapshot()
		return snap.resolveCalls == 1 && !snap.lastResolveOK && snap.lastResolveActor == domain.SystemActor
	}, 3*time.Second, 5*time.Millisecond)
	waitForPhase(t, e, "VO-2025-000005", PhaseAwaitingFinance)
}

func TestSaga_RejectionAllowsFreshRound(t *testing.T) {
	acts := newFakeActivities()
	e := newTestEngine(NewMemoryJournal(), acts, testConfig())
	ctx := context.Background()

	require.NoError(t, e.StartOrderSaga(ctx, "VO-2025-000006"))
	waitForPhase(t, e, "VO-2025-000006", PhaseAwaitingFinance)

	signal(t, e, "VO-2025-000006", Signal{Kind: SignalInitiateFinance})
	signal(t, e, "VO-2025-000006", Signal{Kind: SignalRejectFinance, Actor: "bob"})
	require.Eventually(t, func() bool {
		return acts.snapshot().resolveCalls == 1
	}, 3*time.Second, 5*time.Millisecond)

	// Second round succeeds.
	signal(t, e, "VO-2025-000006", Signal{Kind: SignalInitiateFinance})
	signal(t, e, "VO-2025-000006", Signal{Kind: SignalApproveFinance, Actor: "alice"})
	waitForPhase(t, e, "VO-2025-000006", PhaseAwaitingDisp)

	snap := acts.snapshot()
	assert.Equal(t, 2, snap.initCalls)
	assert.Equal(t, 2, snap.resolveCalls)
	assert.True(t, snap.lastResolveOK)
	assert.Equal(t, "alice", snap.lastResolveActor)
}

func TestSaga_PrematureDispatchDiscarded(t *testing.T) {
	acts := newFakeActivities()
	acts.dispatchIn = 1
	e := newTestEngine(NewMemoryJournal(), acts, testConfig())
	ctx := context.Background()

	require.NoError(t, e.StartOrderSaga(ctx, "VO-2025-000007"))
	waitForPhase(t, e, "VO-2025-000007", PhaseAwaitingFinance)
	signal(t, e, "VO-2025-000007", Signal{Kind: SignalInitiateFinance})
	signal(t, e, "VO-2025-000007", Signal{Kind: SignalApproveFinance, Actor: "alice"})
	waitForPhase(t, e, "VO-2025-000007", PhaseAwaitingDisp)

	// First initiation hits the invalid-state gate and is discarded; the
	// saga keeps awaiting instead of failing.
	signal(t, e, "VO-2025-000007", Signal{Kind: SignalInitiateDispatch})
	require.Eventually(t, func() bool {
		return acts.snapshot().dispatchCalls == 1
	}, 3*time.Second, 5*time.Millisecond)
	waitForPhase(t, e, "VO-2025-000007", PhaseAwaitingDisp)

	signal(t, e, "VO-2025-000007", Signal{Kind: SignalInitiateDispatch})
	waitForPhase(t, e, "VO-2025-000007", PhaseAwaitingDeliv)
	assert.Equal(t, 2, acts.snapshot().dispatchCalls)
}

func TestSaga_JournalFailureParksInsteadOfFailing(t *testing.T) {
	journal := &faultJournal{Journal: NewMemoryJournal(), failName: "place_order#0", failures: 1}
	acts := newFakeActivities()
	e1 := newTestEngine(journal, acts, testConfig())
	ctx := context.Background()

	// The placement succeeds but its journal write does not; the saga must
	// park for recovery, not compensate a successful allocation.
	require.NoError(t, e1.StartOrderSaga(ctx, "VO-2025-000013"))
	require.Eventually(t, func() bool {
		return e1.Running() == 0
	}, 3*time.Second, 5*time.Millisecond)

	snap := acts.snapshot()
	assert.Equal(t, 1, snap.placeCalls)
	assert.Zero(t, snap.terminateCalls, "an undurable outcome must not fail the order")
	assert.Zero(t, snap.compensationCount)

	// The journal still has the saga open; a fresh engine re-runs the
	// unrecorded step and carries the order through.
	acts2 := newFakeActivities()
	e2 := newTestEngine(journal, acts2, testConfig())
	require.NoError(t, e2.Recover(ctx))
	waitForPhase(t, e2, "VO-2025-000013", PhaseAwaitingFinance)

	signal(t, e2, "VO-2025-000013", Signal{Kind: SignalInitiateFinance})
	signal(t, e2, "VO-2025-000013", Signal{Kind: SignalApproveFinance, Actor: "alice"})
	waitForPhase(t, e2, "VO-2025-000013", PhaseAwaitingDisp)
	signal(t, e2, "VO-2025-000013", Signal{Kind: SignalInitiateDispatch})
	waitForPhase(t, e2, "VO-2025-000013", PhaseAwaitingDeliv)
	signal(t, e2, "VO-2025-000013", Signal{Kind: SignalConfirmDelivery})
	waitForPhase(t, e2, "VO-2025-000013", PhaseDelivered)

	snap2 := acts2.snapshot()
	assert.Equal(t, 1, snap2.placeCalls)
	assert.Zero(t, snap2.terminateCalls)
}

// ---------------------------------------------------------------------------
// signal routing
// ---------------------------------------------------------------------------

func TestSignal_UnknownSaga(t *testing.T) {
	e := newTestEngine(NewMemoryJournal(), newFakeActivities(), testConfig())

	err := e.Signal(context.Background(), "VO-2025-999999", Signal{Kind: SignalCancelOrder})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSignal_CompletedSaga(t *testing.T) {
	acts := newFakeActivities()
	acts.placeErr = errors.New("stock store down")
	cfg := testConfig()
	cfg.Retry.MaxAttempts = 1
	e := newTestEngine(NewMemoryJournal(), acts, cfg)
	ctx := context.Background()

	require.NoError(t, e.StartOrderSaga(ctx, "VO-2025-000008"))
	waitForPhase(t, e, "VO-2025-000008", PhaseFailed)
	require.Eventually(t, func() bool {
		return e.Running() == 0
	}, 3*time.Second, 5*time.Millisecond)

	err := e.Signal(ctx, "VO-2025-000008", Signal{Kind: SignalInitiateFinance})
	assert.ErrorIs(t, err, apperrors.ErrAlreadyTerminal)
}

func TestSignal_ResumesParkedSaga(t *testing.T) {
	journal := NewMemoryJournal()
	ctx := context.Background()

	acts1 := newFakeActivities()
	e1 := newTestEngine(journal, acts1, testConfig())
	require.NoError(t, e1.StartOrderSaga(ctx, "VO-2025-000014"))
	waitForPhase(t, e1, "VO-2025-000014", PhaseAwaitingFinance)

	shutdownCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	require.NoError(t, e1.Shutdown(shutdownCtx))

	// The saga is open in the journal but absent from the new engine's
	// memory. A signal must resume it, not report it terminal.
	acts2 := newFakeActivities()
	e2 := newTestEngine(journal, acts2, testConfig())
	signal(t, e2, "VO-2025-000014", Signal{Kind: SignalInitiateFinance})
	signal(t, e2, "VO-2025-000014", Signal{Kind: SignalApproveFinance, Actor: "alice"})
	waitForPhase(t, e2, "VO-2025-000014", PhaseAwaitingDisp)

	assert.Zero(t, acts2.snapshot().placeCalls, "recorded steps must not re-run on resume")
	assert.Equal(t, 1, acts2.snapshot().initCalls)
}

func TestStart_DuplicateSaga(t *testing.T) {
	e := newTestEngine(NewMemoryJournal(), newFakeActivities(), testConfig())
	ctx := context.Background()

	require.NoError(t, e.StartOrderSaga(ctx, "VO-2025-000009"))
	err := e.StartOrderSaga(ctx, "VO-2025-000009")
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

// ---------------------------------------------------------------------------
// queries
// ---------------------------------------------------------------------------

func TestAggregateStatus_MidFlight(t *testing.T) {
	acts := newFakeActivities()
	e := newTestEngine(NewMemoryJournal(), acts, testConfig())
	ctx := context.Background()

	require.NoError(t, e.StartOrderSaga(ctx, "VO-2025-000010"))
	waitForPhase(t, e, "VO-2025-000010", PhaseAwaitingFinance)
	signal(t, e, "VO-2025-000010", Signal{Kind: SignalInitiateFinance})

	require.Eventually(t, func() bool {
		agg, err := e.AggregateStatus(ctx, "VO-2025-000010")
		return err == nil && agg[SubFinance] == domain.FinancePending
	}, 3*time.Second, 5*time.Millisecond)

	agg, err := e.AggregateStatus(ctx, "VO-2025-000010")
	require.NoError(t, err)
	assert.Equal(t, "NOT_STARTED", agg[SubDispatch])
	assert.Contains(t, agg, SubOrder)
}

// ---------------------------------------------------------------------------
// recovery
// ---------------------------------------------------------------------------

func TestRecover_ResumesMidFlight(t *testing.T) {
	journal := NewMemoryJournal()
	ctx := context.Background()

	acts1 := newFakeActivities()
	e1 := newTestEngine(journal, acts1, testConfig())
	require.NoError(t, e1.StartOrderSaga(ctx, "VO-2025-000011"))
	waitForPhase(t, e1, "VO-2025-000011", PhaseAwaitingFinance)
	signal(t, e1, "VO-2025-000011", Signal{Kind: SignalInitiateFinance})
	signal(t, e1, "VO-2025-000011", Signal{Kind: SignalApproveFinance, Actor: "alice"})
	waitForPhase(t, e1, "VO-2025-000011", PhaseAwaitingDisp)

	shutdownCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	require.NoError(t, e1.Shutdown(shutdownCtx))

	// A fresh engine on the same journal resumes without re-running the
	// recorded steps.
	acts2 := newFakeActivities()
	e2 := newTestEngine(journal, acts2, testConfig())
	require.NoError(t, e2.Recover(ctx))
	waitForPhase(t, e2, "VO-2025-000011", PhaseAwaitingDisp)

	snap := acts2.snapshot()
	assert.Zero(t, snap.placeCalls, "recorded activities must not re-run on replay")
	assert.Zero(t, snap.initCalls)
	assert.Zero(t, snap.resolveCalls)

	signal(t, e2, "VO-2025-000011", Signal{Kind: SignalInitiateDispatch})
	waitForPhase(t, e2, "VO-2025-000011", PhaseAwaitingDeliv)
	signal(t, e2, "VO-2025-000011", Signal{Kind: SignalConfirmDelivery})
	waitForPhase(t, e2, "VO-2025-000011", PhaseDelivered)

	view, err := e2.OrderStatus(ctx, "VO-2025-000011")
	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusDelivered), view.Status)
}

func TestAdoptOrder_StartsMissingSaga(t *testing.T) {
	e := newTestEngine(NewMemoryJournal(), newFakeActivities(), testConfig())
	ctx := context.Background()

	started, err := e.AdoptOrder(ctx, "VO-2025-000015")
	require.NoError(t, err)
	assert.True(t, started)
	waitForPhase(t, e, "VO-2025-000015", PhaseAwaitingFinance)

	// Adopting an order whose saga is already running is a no-op.
	started, err = e.AdoptOrder(ctx, "VO-2025-000015")
	require.NoError(t, err)
	assert.False(t, started)
}

func TestAdoptOrder_SkipsJournaledSaga(t *testing.T) {
	journal := NewMemoryJournal()
	ctx := context.Background()

	e1 := newTestEngine(journal, newFakeActivities(), testConfig())
	require.NoError(t, e1.StartOrderSaga(ctx, "VO-2025-000016"))
	waitForPhase(t, e1, "VO-2025-000016", PhaseAwaitingFinance)

	shutdownCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	require.NoError(t, e1.Shutdown(shutdownCtx))

	// A parked saga has journal history; the sweep leaves it to recovery.
	e2 := newTestEngine(journal, newFakeActivities(), testConfig())
	started, err := e2.AdoptOrder(ctx, "VO-2025-000016")
	require.NoError(t, err)
	assert.False(t, started)
	assert.Zero(t, e2.Running())
}

func TestRecover_CompletedSagaNotRelaunched(t *testing.T) {
	journal := NewMemoryJournal()
	ctx := context.Background()

	acts := newFakeActivities()
	e1 := newTestEngine(journal, acts, testConfig())
	require.NoError(t, e1.StartOrderSaga(ctx, "VO-2025-000012"))
	waitForPhase(t, e1, "VO-2025-000012", PhaseAwaitingFinance)
	signal(t, e1, "VO-2025-000012", Signal{Kind: SignalCancelOrder})
	waitForPhase(t, e1, "VO-2025-000012", PhaseCanceled)

	e2 := newTestEngine(journal, newFakeActivities(), testConfig())
	require.NoError(t, e2.Recover(ctx))
	assert.Zero(t, e2.Running())

	// Queries against the finished saga replay the journal.
	view, err := e2.OrderStatus(ctx, "VO-2025-000012")
	require.NoError(t, err)
	assert.Equal(t, string(PhaseCanceled), view.Phase)
	assert.Equal(t, string(domain.StatusCanceled), view.Status)
}
