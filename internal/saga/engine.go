package saga

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shobha-cmd/vehicleSalesManagement-sub000/internal/event"
	apperrors "github.com/shobha-cmd/vehicleSalesManagement-sub000/pkg/errors"
)

// Config tunes the engine's await windows and activity retry bounds.
type Config struct {
	Timeouts Timeouts
	Retry    RetryPolicy
}

// DefaultConfig returns the production engine configuration.
func DefaultConfig() Config {
	return Config{
		Timeouts: DefaultTimeouts(),
		Retry:    DefaultRetryPolicy(),
	}
}

// OrderStatusView is the answer to an order-status query.
type OrderStatusView struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Phase   string `json:"phase"`
}

// Engine hosts the running saga instances. One saga per order; signals and
// queries address sagas by order id.
type Engine struct {
	journal    Journal
	activities Activities
	producer   *event.Producer
	logger     *slog.Logger
	timeouts   Timeouts
	retry      RetryPolicy

	mu        sync.Mutex
	instances map[string]*instance
	wg        sync.WaitGroup
}

// NewEngine creates a saga engine.
func NewEngine(journal Journal, activities Activities, producer *event.Producer, logger *slog.Logger, cfg Config) *Engine {
	return &Engine{
		journal:    journal,
		activities: activities,
		producer:   producer,
		logger:     logger,
		timeouts:   cfg.Timeouts,
		retry:      cfg.Retry,
		instances:  make(map[string]*instance),
	}
}

// StartOrderSaga journals the start entry and launches the saga for an order.
func (e *Engine) StartOrderSaga(ctx context.Context, orderID string) error {
	if orderID == "" {
		return apperrors.InvalidInput("order id is required")
	}

	e.mu.Lock()
	if _, ok := e.instances[orderID]; ok {
		e.mu.Unlock()
		return apperrors.Conflict(fmt.Sprintf("saga for order %s is already running", orderID))
	}
	e.mu.Unlock()

	payload, err := json.Marshal(StartPayload{OrderID: orderID})
	if err != nil {
		return fmt.Errorf("marshal start payload: %w", err)
	}
	if err := e.journal.Append(ctx, &Entry{
		SagaID:  orderID,
		Type:    EntryStart,
		Name:    "start",
		Payload: payload,
	}); err != nil {
		return fmt.Errorf("journal saga start: %w", err)
	}

	e.launch(newInstance(e, NewState(orderID)))
	sagasStartedTotal.Inc()

	e.logger.InfoContext(ctx, "order saga started", slog.String("order_id", orderID))
	return nil
}

// Signal delivers an external event to a running saga. Signals to unknown
// sagas fail with not-found; signals to finished sagas fail as terminal. An
// open saga that is not in memory is resumed from the journal first.
func (e *Engine) Signal(ctx context.Context, orderID string, sig Signal) error {
	e.mu.Lock()
	in, ok := e.instances[orderID]
	e.mu.Unlock()

	if !ok {
		entries, err := e.journal.Load(ctx, orderID)
		if err != nil {
			return fmt.Errorf("load saga journal: %w", err)
		}
		if len(entries) == 0 {
			return apperrors.NotFound("saga", orderID)
		}
		state := Replay(entries)
		if state.Completed {
			return apperrors.AlreadyTerminal(orderID)
		}
		// Open but not in memory: a previous run parked on a journal or
		// termination failure. Resume it and deliver the signal normally.
		in = e.resume(state)
	}

	in.mu.Lock()
	completed := in.state.Completed
	in.mu.Unlock()
	if completed {
		return apperrors.AlreadyTerminal(orderID)
	}

	raw, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("marshal signal: %w", err)
	}
	if err := e.journal.Append(ctx, &Entry{
		SagaID:  orderID,
		Type:    EntrySignal,
		Name:    sig.Kind,
		Payload: raw,
	}); err != nil {
		return fmt.Errorf("journal signal: %w", err)
	}

	in.apply(sig)
	sagaSignalsTotal.WithLabelValues(sig.Kind).Inc()

	e.logger.InfoContext(ctx, "saga signal accepted",
		slog.String("order_id", orderID),
		slog.String("kind", sig.Kind),
		slog.String("actor", sig.Actor),
	)
	return nil
}

// OrderStatus answers the order-status query for a running or finished saga.
func (e *Engine) OrderStatus(ctx context.Context, orderID string) (*OrderStatusView, error) {
	state, err := e.snapshot(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &OrderStatusView{
		OrderID: state.OrderID,
		Status:  string(state.OrderStatus),
		Phase:   string(state.Phase),
	}, nil
}

// AggregateStatus answers the per-sub-process status query.
func (e *Engine) AggregateStatus(ctx context.Context, orderID string) (map[string]string, error) {
	state, err := e.snapshot(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return state.AggregateStatus(), nil
}

// snapshot returns a copy of the saga's state, falling back to a journal
// replay for sagas no longer in memory.
func (e *Engine) snapshot(ctx context.Context, orderID string) (*State, error) {
	e.mu.Lock()
	in, ok := e.instances[orderID]
	e.mu.Unlock()

	if ok {
		in.mu.Lock()
		defer in.mu.Unlock()
		cp := *in.state
		return &cp, nil
	}

	entries, err := e.journal.Load(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load saga journal: %w", err)
	}
	if len(entries) == 0 {
		return nil, apperrors.NotFound("saga", orderID)
	}

	state := Replay(entries)
	if state.Completed {
		state.Phase = outcomePhase(state.Outcome)
	}
	return state, nil
}

// Recover relaunches every saga the journal reports as open. Each resumed run
// replays its recorded steps and continues from the first unrecorded one.
func (e *Engine) Recover(ctx context.Context) error {
	open, err := e.journal.OpenSagas(ctx)
	if err != nil {
		return fmt.Errorf("list open sagas: %w", err)
	}

	for _, id := range open {
		entries, err := e.journal.Load(ctx, id)
		if err != nil {
			return fmt.Errorf("load saga %s: %w", id, err)
		}
		state := Replay(entries)
		if state.Completed || state.OrderID == "" {
			continue
		}
		e.launch(newInstance(e, state))
		e.logger.InfoContext(ctx, "saga recovered",
			slog.String("order_id", id),
			slog.Int("journal_entries", len(entries)),
		)
	}

	if len(open) > 0 {
		e.logger.InfoContext(ctx, "saga recovery complete", slog.Int("recovered", len(open)))
	}
	return nil
}

// AdoptOrder starts a saga for an order that has none: the order row
// committed but the saga start entry never made it to the journal, so
// neither Recover nor Signal will ever pick it up. Orders with any journal
// history are left alone. Reports whether a saga was started.
func (e *Engine) AdoptOrder(ctx context.Context, orderID string) (bool, error) {
	e.mu.Lock()
	_, running := e.instances[orderID]
	e.mu.Unlock()
	if running {
		return false, nil
	}

	entries, err := e.journal.Load(ctx, orderID)
	if err != nil {
		return false, fmt.Errorf("load saga journal: %w", err)
	}
	if len(entries) > 0 {
		return false, nil
	}

	return true, e.StartOrderSaga(ctx, orderID)
}

// Shutdown stops all running sagas cooperatively and waits for them to park.
// Open sagas stay open in the journal and resume on the next start.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	for _, in := range e.instances {
		in.stop()
	}
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("saga engine shutdown: %w", ctx.Err())
	}
}

// Running reports the number of in-memory saga instances.
func (e *Engine) Running() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.instances)
}

// resume relaunches an open saga that parked out of memory, keeping at most
// one instance per order when resumes race.
func (e *Engine) resume(state *State) *instance {
	e.mu.Lock()
	if existing, ok := e.instances[state.OrderID]; ok {
		e.mu.Unlock()
		return existing
	}
	in := newInstance(e, state)
	e.instances[state.OrderID] = in
	e.mu.Unlock()

	sagasActive.Inc()
	e.wg.Add(1)
	go in.run()

	e.logger.Info("parked saga resumed", slog.String("order_id", state.OrderID))
	return in
}

func (e *Engine) launch(in *instance) {
	e.mu.Lock()
	e.instances[in.state.OrderID] = in
	e.mu.Unlock()

	sagasActive.Inc()
	e.wg.Add(1)
	go in.run()
}

// finish detaches a parked or completed instance.
func (e *Engine) finish(in *instance) {
	e.mu.Lock()
	delete(e.instances, in.state.OrderID)
	e.mu.Unlock()

	sagasActive.Dec()
	e.wg.Done()
}

// onCompleted publishes the terminal outcome; failures are logged, the saga
// is already durably complete.
func (e *Engine) onCompleted(orderID string, phase Phase, outcome string) {
	e.logger.Info("order saga completed",
		slog.String("order_id", orderID),
		slog.String("phase", string(phase)),
		slog.String("outcome", outcome),
	)

	if e.producer == nil {
		return
	}
	if err := e.producer.PublishSagaCompleted(context.Background(), orderID, string(phase), outcome); err != nil {
		e.logger.Error("failed to publish saga.completed event",
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
	}
}

// outcomePhase maps a journaled completion marker back to a terminal phase.
func outcomePhase(outcome string) Phase {
	switch outcome {
	case "delivered":
		return PhaseDelivered
	case "order canceled":
		return PhaseCanceled
	default:
		return PhaseFailed
	}
}
