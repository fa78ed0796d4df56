package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shobha-cmd/vehicleSalesManagement-sub000/internal/domain"
	apperrors "github.com/shobha-cmd/vehicleSalesManagement-sub000/pkg/errors"
)

func newOrderService(t *testing.T, orderRepo *mockOrderRepository, historyRepo *mockHistoryRepository) *OrderService {
	t.Helper()
	return NewOrderService(orderRepo, historyRepo, newTestProducer(t), newTestLogger())
}

func TestCreateOrder_Success(t *testing.T) {
	orderRepo := new(mockOrderRepository)
	historyRepo := new(mockHistoryRepository)
	svc := newOrderService(t, orderRepo, historyRepo)
	ctx := context.Background()

	orderRepo.On("NextOrderID", ctx, mock.AnythingOfType("int")).Return("VO-2025-000007", nil)
	orderRepo.On("Create", ctx, mock.MatchedBy(func(o *domain.Order) bool {
		return o.ID == "VO-2025-000007" && o.Status == domain.StatusPending
	})).Return(nil)
	historyRepo.On("Append", ctx, mock.MatchedBy(func(e *domain.HistoryEntry) bool {
		return e.OrderID == "VO-2025-000007" && e.ToStatus == domain.StatusPending
	})).Return(nil)

	order, err := svc.CreateOrder(ctx,
		domain.Customer{Name: "Alice", Email: "alice@example.com"},
		domain.VehicleConfig{Model: "X", VariantCode: "V", Quantity: 1},
		"alice",
	)
	require.NoError(t, err)
	assert.Equal(t, "VO-2025-000007", order.ID)
	assert.Equal(t, domain.StatusPending, order.Status)

	orderRepo.AssertExpectations(t)
	historyRepo.AssertExpectations(t)
}

func TestCreateOrder_MissingEmail(t *testing.T) {
	orderRepo := new(mockOrderRepository)
	historyRepo := new(mockHistoryRepository)
	svc := newOrderService(t, orderRepo, historyRepo)

	order, err := svc.CreateOrder(context.Background(),
		domain.Customer{Name: "Alice"},
		domain.VehicleConfig{VariantCode: "V", Quantity: 1},
		"alice",
	)
	assert.Nil(t, order)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	orderRepo.AssertNotCalled(t, "NextOrderID", mock.Anything, mock.Anything)
}

func TestCreateOrder_NonPositiveQuantity(t *testing.T) {
	orderRepo := new(mockOrderRepository)
	historyRepo := new(mockHistoryRepository)
	svc := newOrderService(t, orderRepo, historyRepo)

	order, err := svc.CreateOrder(context.Background(),
		domain.Customer{Name: "Alice", Email: "alice@example.com"},
		domain.VehicleConfig{VariantCode: "V", Quantity: 0},
		"alice",
	)
	assert.Nil(t, order)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestTransition_AuditBeforeCommit(t *testing.T) {
	orderRepo := new(mockOrderRepository)
	historyRepo := new(mockHistoryRepository)
	svc := newOrderService(t, orderRepo, historyRepo)
	ctx := context.Background()

	order := pendingOrder()
	order.Status = domain.StatusBlocked
	orderRepo.On("GetByID", ctx, order.ID).Return(order, nil)
	historyRepo.On("Append", ctx, mock.MatchedBy(func(e *domain.HistoryEntry) bool {
		return e.FromStatus == domain.StatusBlocked && e.ToStatus == domain.StatusAllotted && e.Actor == "alice"
	})).Return(nil)
	orderRepo.On("UpdateStatus", ctx, order.ID, domain.StatusAllotted).Return(nil)

	updated, err := svc.Transition(ctx, order.ID, domain.StatusAllotted, "alice", "finance approved")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAllotted, updated.Status)

	orderRepo.AssertExpectations(t)
	historyRepo.AssertExpectations(t)
}

func TestTransition_TerminalOrderRejected(t *testing.T) {
	orderRepo := new(mockOrderRepository)
	historyRepo := new(mockHistoryRepository)
	svc := newOrderService(t, orderRepo, historyRepo)
	ctx := context.Background()

	order := pendingOrder()
	order.Status = domain.StatusCanceled
	orderRepo.On("GetByID", ctx, order.ID).Return(order, nil)

	updated, err := svc.Transition(ctx, order.ID, domain.StatusDispatched, "bob", "")
	assert.Nil(t, updated)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyTerminal)

	orderRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	historyRepo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestTransition_SameStatusIsNoop(t *testing.T) {
	orderRepo := new(mockOrderRepository)
	historyRepo := new(mockHistoryRepository)
	svc := newOrderService(t, orderRepo, historyRepo)
	ctx := context.Background()

	order := pendingOrder()
	order.Status = domain.StatusDispatched
	orderRepo.On("GetByID", ctx, order.ID).Return(order, nil)

	updated, err := svc.Transition(ctx, order.ID, domain.StatusDispatched, "bob", "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDispatched, updated.Status)

	orderRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	historyRepo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestTransition_UnknownStatus(t *testing.T) {
	orderRepo := new(mockOrderRepository)
	historyRepo := new(mockHistoryRepository)
	svc := newOrderService(t, orderRepo, historyRepo)

	updated, err := svc.Transition(context.Background(), "VO-2025-000001", domain.OrderStatus("SHIPPED"), "bob", "")
	assert.Nil(t, updated)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
