package saga

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shobha-cmd/vehicleSalesManagement-sub000/internal/domain"
	apperrors "github.com/shobha-cmd/vehicleSalesManagement-sub000/pkg/errors"
)

// Timeouts bounds every await point in the orchestration.
type Timeouts struct {
	FinanceInit     time.Duration
	FinanceDecision time.Duration
	DispatchInit    time.Duration
	Delivery        time.Duration
}

// DefaultTimeouts returns the production await windows.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		FinanceInit:     7 * 24 * time.Hour,
		FinanceDecision: 7 * 24 * time.Hour,
		DispatchInit:    7 * 24 * time.Hour,
		Delivery:        time.Hour,
	}
}

// RetryPolicy bounds activity invocations. Business-rule errors are never
// retried; only infrastructure failures consume attempts.
type RetryPolicy struct {
	InitialBackoff time.Duration
	MaxAttempts    int
	CallTimeout    time.Duration
}

// DefaultRetryPolicy returns the production activity retry bounds.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialBackoff: time.Second,
		MaxAttempts:    3,
		CallTimeout:    30 * time.Second,
	}
}

// waitOutcome is the journaled result of an await point.
type waitOutcome string

const (
	waitSignal   waitOutcome = "signal"
	waitTimeout  waitOutcome = "timeout"
	waitCanceled waitOutcome = "canceled"
)

// awaitRecord is the journal payload of a resolved await.
type awaitRecord struct {
	Outcome waitOutcome `json:"outcome"`
}

// activityOutcome is the journal payload of a completed activity, carrying the
// result and enough error shape to reconstruct the failure on replay.
type activityOutcome struct {
	Result  json.RawMessage `json:"result,omitempty"`
	ErrKind string          `json:"error_kind,omitempty"`
}

// errStopped aborts the run loop during engine shutdown; the saga stays open
// in the journal and resumes on the next start.
var errStopped = errors.New("saga engine stopping")

// errParked aborts the run loop when a journal write fails. The outcome of
// the step is not durable, so the saga must not decide anything on it; it
// stays open and recovery re-runs the unrecorded step.
var errParked = errors.New("saga parked on journal failure")

// halted reports whether the run loop must abandon progress without deciding
// an outcome. Either way the saga stays open in the journal.
func halted(err error) bool {
	return errors.Is(err, errStopped) || errors.Is(err, errParked)
}

// instance is one running saga. Its state is guarded by mu; the run loop owns
// forward progress, signals and queries only touch state under the lock.
type instance struct {
	engine *Engine
	state  *State

	mu      sync.Mutex
	cond    *sync.Cond
	stopped bool
}

func newInstance(engine *Engine, state *State) *instance {
	in := &instance{engine: engine, state: state}
	in.cond = sync.NewCond(&in.mu)
	return in
}

// apply folds an accepted signal into state and wakes the run loop.
func (in *instance) apply(sig Signal) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.state.ApplySignal(sig)
	in.cond.Broadcast()
}

// stop asks the run loop to abandon its current await or retry loop.
func (in *instance) stop() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.stopped = true
	in.cond.Broadcast()
}

func (in *instance) setPhase(p Phase) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.state.Phase = p
}

func (in *instance) setStatus(s domain.OrderStatus) {
	if s == "" {
		return
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	in.state.OrderStatus = s
}

// record appends a step outcome to the journal and mirrors it into state.
// The journal write commits before the in-memory record, so a crash between
// the two replays the same outcome instead of inventing a new one.
func (in *instance) record(key string, payload any, errMsg string) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal step record: %w", err)
	}

	entry := &Entry{
		SagaID:  in.state.OrderID,
		Type:    EntryActivity,
		Name:    key,
		Payload: raw,
		Err:     errMsg,
	}
	if err := in.engine.journal.Append(context.Background(), entry); err != nil {
		in.engine.logger.Error("journal append failed, parking saga",
			slog.String("saga_id", in.state.OrderID),
			slog.String("step", key),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("journal step %s: %w", key, errParked)
	}

	in.mu.Lock()
	in.state.Steps[key] = stepRecord{Payload: raw, Err: errMsg}
	in.mu.Unlock()
	return nil
}

// await blocks until ready() holds, the saga is canceled, the window elapses,
// or the engine stops. The outcome is journaled under key, so a replayed run
// takes the same branch without waiting again.
func (in *instance) await(key string, window time.Duration, ready func() bool) (waitOutcome, error) {
	in.mu.Lock()
	if rec, ok := in.state.Steps[key]; ok {
		in.mu.Unlock()
		var r awaitRecord
		if err := json.Unmarshal(rec.Payload, &r); err != nil {
			return "", fmt.Errorf("replay await %s: %w", key, err)
		}
		return r.Outcome, nil
	}

	// Windows restart from now on recovery; the journal does not carry
	// deadline bookkeeping.
	deadline := time.Now().Add(window)
	timer := time.AfterFunc(window, in.cond.Broadcast)
	defer timer.Stop()

	var outcome waitOutcome
	for {
		switch {
		case in.stopped:
			in.mu.Unlock()
			return "", errStopped
		case in.state.Canceled:
			outcome = waitCanceled
		case ready():
			outcome = waitSignal
		case !time.Now().Before(deadline):
			outcome = waitTimeout
		default:
			in.cond.Wait()
			continue
		}
		break
	}
	in.mu.Unlock()

	if err := in.record(key, awaitRecord{Outcome: outcome}, ""); err != nil {
		return "", err
	}
	return outcome, nil
}

// execute runs one activity with bounded retries, journaling the outcome
// under key. A recorded key short-circuits: the activity does not run again.
func (in *instance) execute(key string, fn func(ctx context.Context) (any, error)) (json.RawMessage, error) {
	in.mu.Lock()
	rec, done := in.state.Steps[key]
	stopped := in.stopped
	in.mu.Unlock()
	if done {
		return decodeActivity(key, rec)
	}
	if stopped {
		return nil, errStopped
	}

	policy := in.engine.retry
	var result any
	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), policy.CallTimeout)
		result, lastErr = fn(ctx)
		cancel()

		if lastErr == nil || classifyErr(lastErr) != "" {
			break
		}
		if attempt == policy.MaxAttempts {
			break
		}

		sagaActivityRetriesTotal.WithLabelValues(key).Inc()
		in.engine.logger.Warn("saga activity failed, retrying",
			slog.String("saga_id", in.state.OrderID),
			slog.String("activity", key),
			slog.Int("attempt", attempt),
			slog.String("error", lastErr.Error()),
		)

		backoff := policy.InitialBackoff * time.Duration(1<<uint(attempt-1))
		if !in.sleep(backoff) {
			return nil, errStopped
		}
	}

	// Infrastructure failures are not journaled: recovery re-runs the
	// activity (they are idempotent) instead of replaying a dead end.
	// Business-rule errors are deterministic branches and are recorded.
	if lastErr != nil && classifyErr(lastErr) == "" {
		return nil, lastErr
	}

	outcome := activityOutcome{}
	errMsg := ""
	if lastErr != nil {
		outcome.ErrKind = classifyErr(lastErr)
		errMsg = lastErr.Error()
	} else if result != nil {
		raw, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("marshal activity result %s: %w", key, err)
		}
		outcome.Result = raw
	}

	if err := in.record(key, outcome, errMsg); err != nil {
		return nil, err
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return outcome.Result, nil
}

// sleep waits out a retry backoff, returning false when the engine stops.
func (in *instance) sleep(d time.Duration) bool {
	in.mu.Lock()
	defer in.mu.Unlock()

	timer := time.AfterFunc(d, in.cond.Broadcast)
	defer timer.Stop()

	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if in.stopped {
			return false
		}
		in.cond.Wait()
	}
	return !in.stopped
}

// decodeActivity reconstructs a recorded activity outcome, including the
// error shape the run loop branches on.
func decodeActivity(key string, rec stepRecord) (json.RawMessage, error) {
	var outcome activityOutcome
	if err := json.Unmarshal(rec.Payload, &outcome); err != nil {
		return nil, fmt.Errorf("replay activity %s: %w", key, err)
	}
	if rec.Err != "" || outcome.ErrKind != "" {
		return nil, reconstructErr(outcome.ErrKind, rec.Err)
	}
	return outcome.Result, nil
}

// classifyErr tags business-rule errors so they survive the journal and are
// never retried.
func classifyErr(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, apperrors.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, apperrors.ErrAlreadyTerminal):
		return "already_terminal"
	case errors.Is(err, apperrors.ErrNotFound):
		return "not_found"
	default:
		return ""
	}
}

// reconstructErr rebuilds a journaled activity error with its sentinel intact.
func reconstructErr(kind, msg string) error {
	if msg == "" {
		msg = "activity failed"
	}
	switch kind {
	case "invalid_input":
		return fmt.Errorf("%s: %w", msg, apperrors.ErrInvalidInput)
	case "invalid_state":
		return fmt.Errorf("%s: %w", msg, apperrors.ErrInvalidState)
	case "already_terminal":
		return fmt.Errorf("%s: %w", msg, apperrors.ErrAlreadyTerminal)
	case "not_found":
		return fmt.Errorf("%s: %w", msg, apperrors.ErrNotFound)
	default:
		return errors.New(msg)
	}
}

// isCanceled reports whether a cancellation signal has been received.
func (in *instance) isCanceled() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.state.Canceled
}

// run drives the order through the full lifecycle. Every await and activity
// is journaled, so run is safe to restart from the top at any time: recorded
// steps replay their outcomes and the loop fast-forwards to where it left off.
func (in *instance) run() {
	defer in.engine.finish(in)

	st := in.state
	orderID := st.OrderID

	// Order placement. Failure here is terminal; there is nothing to resume.
	raw, err := in.execute("place_order#0", func(ctx context.Context) (any, error) {
		return in.engine.activities.PlaceOrder(ctx, orderID)
	})
	if halted(err) {
		return
	}
	if err != nil {
		in.terminate(domain.StatusFailed, PhaseFailed, "order placement failed: "+err.Error())
		return
	}
	var placed domain.AllocationResult
	if err := json.Unmarshal(raw, &placed); err == nil {
		in.setStatus(placed.Status)
	}

	if in.isCanceled() {
		in.terminate(domain.StatusCanceled, PhaseCanceled, "order canceled")
		return
	}
	in.setPhase(PhaseOrderResolved)

	// Financing rounds. A rejection (explicit or by decision timeout) sends
	// the order back to awaiting a fresh initiation with a fresh window.
	var initsConsumed, decisionsConsumed, initAwaits, initCalls, decisionAwaits, resolveCalls int
	for {
		in.setPhase(PhaseAwaitingFinance)
		outcome, err := in.await(fmt.Sprintf("await_finance_init#%d", initAwaits), in.engine.timeouts.FinanceInit, func() bool {
			return st.FinanceInits > initsConsumed
		})
		initAwaits++
		if err != nil {
			return
		}
		if outcome == waitCanceled {
			in.terminate(domain.StatusCanceled, PhaseCanceled, "order canceled")
			return
		}
		if outcome == waitTimeout {
			in.terminate(domain.StatusFailed, PhaseFailed, "finance not initiated in time")
			return
		}
		initsConsumed++

		_, err = in.execute(fmt.Sprintf("initiate_finance#%d", initCalls), func(ctx context.Context) (any, error) {
			return nil, in.engine.activities.InitiateFinance(ctx, orderID)
		})
		initCalls++
		if halted(err) {
			return
		}
		if errors.Is(err, apperrors.ErrInvalidState) || errors.Is(err, apperrors.ErrInvalidInput) {
			// Premature initiation; discard it and keep waiting.
			continue
		}
		if err != nil {
			in.terminate(domain.StatusFailed, PhaseFailed, "finance initiation failed: "+err.Error())
			return
		}
		in.setStatus(domain.StatusFinancePending)

		outcome, err = in.await(fmt.Sprintf("await_finance_decision#%d", decisionAwaits), in.engine.timeouts.FinanceDecision, func() bool {
			return len(st.Decisions) > decisionsConsumed
		})
		decisionAwaits++
		if err != nil {
			return
		}
		if outcome == waitCanceled {
			in.terminate(domain.StatusCanceled, PhaseCanceled, "order canceled")
			return
		}

		// A decision window that elapses counts as an automatic rejection
		// attributed to the system.
		approved := false
		actor := domain.SystemActor
		if outcome == waitSignal {
			in.mu.Lock()
			d := st.Decisions[decisionsConsumed]
			in.mu.Unlock()
			decisionsConsumed++
			approved = d.Approved
			actor = d.Actor
		}

		raw, err := in.execute(fmt.Sprintf("resolve_finance#%d", resolveCalls), func(ctx context.Context) (any, error) {
			return in.engine.activities.ResolveFinance(ctx, orderID, approved, actor)
		})
		resolveCalls++
		if halted(err) {
			return
		}
		if err != nil {
			in.terminate(domain.StatusFailed, PhaseFailed, "finance resolution failed: "+err.Error())
			return
		}
		var status domain.OrderStatus
		if err := json.Unmarshal(raw, &status); err == nil {
			in.setStatus(status)
		}

		if approved {
			break
		}
	}
	in.setPhase(PhaseFinanceResolved)

	// Dispatch. Premature initiations are discarded without burning the saga.
	var dispatchConsumed, dispatchAwaits, dispatchCalls int
	for {
		in.setPhase(PhaseAwaitingDisp)
		outcome, err := in.await(fmt.Sprintf("await_dispatch_init#%d", dispatchAwaits), in.engine.timeouts.DispatchInit, func() bool {
			return st.DispatchInits > dispatchConsumed
		})
		dispatchAwaits++
		if err != nil {
			return
		}
		if outcome == waitCanceled {
			in.terminate(domain.StatusCanceled, PhaseCanceled, "order canceled")
			return
		}
		if outcome == waitTimeout {
			in.terminate(domain.StatusFailed, PhaseFailed, "dispatch not initiated in time")
			return
		}
		dispatchConsumed++

		raw, err := in.execute(fmt.Sprintf("dispatch#%d", dispatchCalls), func(ctx context.Context) (any, error) {
			return in.engine.activities.Dispatch(ctx, orderID)
		})
		dispatchCalls++
		if halted(err) {
			return
		}
		if errors.Is(err, apperrors.ErrInvalidState) {
			continue
		}
		if err != nil {
			in.terminate(domain.StatusFailed, PhaseFailed, "dispatch failed: "+err.Error())
			return
		}
		var status domain.OrderStatus
		if err := json.Unmarshal(raw, &status); err == nil {
			in.setStatus(status)
		}
		break
	}
	in.setPhase(PhaseDispatchDone)

	// Delivery confirmation window is short; an unconfirmed delivery is a
	// failure, not a silent skip.
	in.setPhase(PhaseAwaitingDeliv)
	outcome, err := in.await("await_delivery#0", in.engine.timeouts.Delivery, func() bool {
		return st.DeliveryConfirms > 0
	})
	if err != nil {
		return
	}
	if outcome == waitCanceled {
		in.terminate(domain.StatusCanceled, PhaseCanceled, "order canceled")
		return
	}
	if outcome == waitTimeout {
		in.terminate(domain.StatusFailed, PhaseFailed, "delivery not confirmed in time")
		return
	}

	raw, err = in.execute("deliver#0", func(ctx context.Context) (any, error) {
		return in.engine.activities.Deliver(ctx, orderID)
	})
	if halted(err) {
		return
	}
	if err != nil {
		in.terminate(domain.StatusFailed, PhaseFailed, "delivery failed: "+err.Error())
		return
	}
	var status domain.OrderStatus
	if err := json.Unmarshal(raw, &status); err == nil {
		in.setStatus(status)
	}

	in.complete(PhaseDelivered, "delivered")
}

// terminate compensates blocked stock, commits the terminal order status and
// marks the saga done. Compensation runs before the terminal transition and
// at most once across retries and replays.
func (in *instance) terminate(status domain.OrderStatus, phase Phase, reason string) {
	_, err := in.execute("terminate#0", func(ctx context.Context) (any, error) {
		return nil, in.engine.activities.Terminate(ctx, in.state.OrderID, status, reason)
	})
	if halted(err) {
		return
	}
	if err != nil {
		// Leave the saga open; recovery replays up to here and retries.
		in.engine.logger.Error("saga termination failed",
			slog.String("saga_id", in.state.OrderID),
			slog.String("error", err.Error()),
		)
		return
	}

	in.setStatus(status)
	in.complete(phase, reason)
}

// complete writes the terminal journal marker.
func (in *instance) complete(phase Phase, outcome string) {
	entry := &Entry{
		SagaID: in.state.OrderID,
		Type:   EntryCompleted,
		Name:   outcome,
	}
	if err := in.engine.journal.Append(context.Background(), entry); err != nil {
		in.engine.logger.Error("failed to journal saga completion",
			slog.String("saga_id", in.state.OrderID),
			slog.String("error", err.Error()),
		)
		return
	}

	in.mu.Lock()
	in.state.Phase = phase
	in.state.Completed = true
	in.state.Outcome = outcome
	in.mu.Unlock()

	sagasCompletedTotal.WithLabelValues(string(phase)).Inc()
	in.engine.onCompleted(in.state.OrderID, phase, outcome)
}
