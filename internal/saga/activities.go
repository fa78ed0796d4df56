package saga

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shobha-cmd/vehicleSalesManagement-sub000/internal/domain"
	"github.com/shobha-cmd/vehicleSalesManagement-sub000/internal/service"
	apperrors "github.com/shobha-cmd/vehicleSalesManagement-sub000/pkg/errors"
)

// Activities is the side-effecting work the orchestrator invokes. Every method
// is idempotent under re-invocation, which is what lets the engine retry a
// call or replay a journal without double-applying effects.
type Activities interface {
	// PlaceOrder runs stock allocation for the order and returns the outcome.
	PlaceOrder(ctx context.Context, orderID string) (*domain.AllocationResult, error)

	// InitiateFinance opens a financing round for a stock-blocked order and
	// moves it to FINANCE_PENDING.
	InitiateFinance(ctx context.Context, orderID string) error

	// ResolveFinance records the decision on the open financing round and then
	// moves the order: ALLOTTED on approval, back to PENDING on rejection.
	ResolveFinance(ctx context.Context, orderID string, approved bool, actor string) (domain.OrderStatus, error)

	// Dispatch creates the dispatch record for an ALLOTTED order and moves it
	// to DISPATCHED. Already dispatched or delivered orders short-circuit.
	Dispatch(ctx context.Context, orderID string) (domain.OrderStatus, error)

	// Deliver creates the delivery record for a DISPATCHED order and moves it
	// to DELIVERED. Already delivered orders short-circuit.
	Deliver(ctx context.Context, orderID string) (domain.OrderStatus, error)

	// Terminate compensates any blocked stock and moves the order to the given
	// terminal status. Safe to re-invoke; the stock release happens at most
	// once.
	Terminate(ctx context.Context, orderID string, terminal domain.OrderStatus, reason string) error
}

// ServiceActivities implements Activities on top of the service layer.
type ServiceActivities struct {
	orders     *service.OrderService
	allocation *service.AllocationService
	finance    *service.FinanceService
	dispatch   *service.DispatchService
	logger     *slog.Logger
}

// NewServiceActivities wires the orchestrator's activities to the services.
func NewServiceActivities(
	orders *service.OrderService,
	allocation *service.AllocationService,
	finance *service.FinanceService,
	dispatch *service.DispatchService,
	logger *slog.Logger,
) *ServiceActivities {
	return &ServiceActivities{
		orders:     orders,
		allocation: allocation,
		finance:    finance,
		dispatch:   dispatch,
		logger:     logger,
	}
}

// PlaceOrder runs the allocation fallback chain.
func (a *ServiceActivities) PlaceOrder(ctx context.Context, orderID string) (*domain.AllocationResult, error) {
	return a.allocation.Allocate(ctx, orderID)
}

// InitiateFinance verifies the order can enter financing and opens the round.
func (a *ServiceActivities) InitiateFinance(ctx context.Context, orderID string) error {
	order, err := a.orders.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status.IsTerminal() {
		return apperrors.AlreadyTerminal(orderID)
	}

	switch {
	case order.Status == domain.StatusFinancePending:
		// A round is already open; re-delivered initiations are no-ops.
		return nil
	case order.Status == domain.StatusBlocked:
	case order.Status == domain.StatusPending && order.HasBlockedStock():
		// A rejected round reverted the order to PENDING while the stock
		// stays blocked; a fresh round is allowed.
	default:
		return apperrors.InvalidState(fmt.Sprintf("finance requires a stock-blocked order, got %s", order.Status))
	}

	if _, err := a.finance.Initiate(ctx, orderID); err != nil {
		return err
	}
	if _, err := a.orders.Transition(ctx, orderID, domain.StatusFinancePending, domain.SystemActor, "finance initiated"); err != nil {
		return err
	}

	return nil
}

// ResolveFinance decides the open round before touching the order status, so
// a concurrent reader never sees the order moved ahead of the record.
func (a *ServiceActivities) ResolveFinance(ctx context.Context, orderID string, approved bool, actor string) (domain.OrderStatus, error) {
	decision := domain.FinanceRejected
	target := domain.StatusPending
	note := fmt.Sprintf("finance rejected by %s", actor)
	if approved {
		decision = domain.FinanceApproved
		target = domain.StatusAllotted
		note = fmt.Sprintf("finance approved by %s", actor)
	}

	if _, err := a.finance.Decide(ctx, orderID, decision, actor); err != nil {
		// A retried resolution finds the round already decided; fall through
		// to the order transition, which is itself a no-op when done.
		if !errors.Is(err, apperrors.ErrInvalidState) {
			return "", err
		}
	}

	order, err := a.orders.Transition(ctx, orderID, target, actor, note)
	if err != nil {
		return "", err
	}

	return order.Status, nil
}

// Dispatch gates on ALLOTTED and flips the order to DISPATCHED.
func (a *ServiceActivities) Dispatch(ctx context.Context, orderID string) (domain.OrderStatus, error) {
	order, err := a.orders.GetOrder(ctx, orderID)
	if err != nil {
		return "", err
	}

	switch order.Status {
	case domain.StatusDispatched, domain.StatusDelivered, domain.StatusCompleted:
		return order.Status, nil
	case domain.StatusAllotted:
	default:
		return "", apperrors.InvalidState(fmt.Sprintf("dispatch requires an ALLOTTED order, got %s", order.Status))
	}

	if _, _, err := a.dispatch.Dispatch(ctx, orderID); err != nil {
		return "", err
	}
	updated, err := a.orders.Transition(ctx, orderID, domain.StatusDispatched, domain.SystemActor, "dispatch prepared")
	if err != nil {
		return "", err
	}

	return updated.Status, nil
}

// Deliver gates on DISPATCHED and flips the order to DELIVERED.
func (a *ServiceActivities) Deliver(ctx context.Context, orderID string) (domain.OrderStatus, error) {
	order, err := a.orders.GetOrder(ctx, orderID)
	if err != nil {
		return "", err
	}

	switch order.Status {
	case domain.StatusDelivered, domain.StatusCompleted:
		return order.Status, nil
	case domain.StatusDispatched:
	default:
		return "", apperrors.InvalidState(fmt.Sprintf("delivery requires a DISPATCHED order, got %s", order.Status))
	}

	if _, _, err := a.dispatch.Deliver(ctx, orderID); err != nil {
		return "", err
	}
	updated, err := a.orders.Transition(ctx, orderID, domain.StatusDelivered, domain.SystemActor, "delivery confirmed")
	if err != nil {
		return "", err
	}

	return updated.Status, nil
}

// Terminate compensates blocked stock and commits the terminal status.
func (a *ServiceActivities) Terminate(ctx context.Context, orderID string, terminal domain.OrderStatus, reason string) error {
	if err := a.allocation.Compensate(ctx, orderID); err != nil {
		return err
	}

	if _, err := a.orders.Transition(ctx, orderID, terminal, domain.SystemActor, reason); err != nil {
		// A re-invoked termination finds the order already terminal.
		if errors.Is(err, apperrors.ErrAlreadyTerminal) {
			return nil
		}
		return err
	}

	return nil
}

var _ Activities = (*ServiceActivities)(nil)
