package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shobha-cmd/vehicleSalesManagement-sub000/internal/domain"
	"github.com/shobha-cmd/vehicleSalesManagement-sub000/internal/event"
	"github.com/shobha-cmd/vehicleSalesManagement-sub000/internal/repository"
	apperrors "github.com/shobha-cmd/vehicleSalesManagement-sub000/pkg/errors"
)

// OrderService implements the business logic for order lifecycle operations.
// All status transitions funnel through Transition so the audit trail stays
// complete and terminal states stay terminal.
type OrderService struct {
	orderRepo   repository.OrderRepository
	historyRepo repository.HistoryRepository
	producer    *event.Producer
	logger      *slog.Logger
}

// NewOrderService creates a new order service.
func NewOrderService(
	orderRepo repository.OrderRepository,
	historyRepo repository.HistoryRepository,
	producer *event.Producer,
	logger *slog.Logger,
) *OrderService {
	return &OrderService{
		orderRepo:   orderRepo,
		historyRepo: historyRepo,
		producer:    producer,
		logger:      logger,
	}
}

// CreateOrder validates the request, reserves a year-scoped order number and
// persists the order in PENDING. Stock allocation runs afterwards as the first
// fulfillment step.
func (s *OrderService) CreateOrder(ctx context.Context, customer domain.Customer, cfg domain.VehicleConfig, actor string) (*domain.Order, error) {
	if customer.Name == "" {
		return nil, apperrors.InvalidInput("customer name is required")
	}
	if customer.Email == "" {
		return nil, apperrors.InvalidInput("customer email is required")
	}
	if cfg.VariantCode == "" {
		return nil, apperrors.InvalidInput("variant_code is required")
	}
	if cfg.Quantity <= 0 {
		return nil, apperrors.InvalidInput("quantity must be positive")
	}
	if actor == "" {
		actor = domain.SystemActor
	}

	now := time.Now().UTC()
	id, err := s.orderRepo.NextOrderID(ctx, now.Year())
	if err != nil {
		return nil, fmt.Errorf("reserve order id: %w", err)
	}

	order := &domain.Order{
		ID:       id,
		Customer: customer,
		Config:   cfg,
		Status:   domain.StatusPending,
	}
	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	if err := s.historyRepo.Append(ctx, &domain.HistoryEntry{
		OrderID:  order.ID,
		ToStatus: domain.StatusPending,
		Actor:    actor,
		Note:     "order created",
	}); err != nil {
		return nil, fmt.Errorf("record order creation: %w", err)
	}

	if err := s.producer.PublishOrderPlaced(ctx, order); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.placed event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "order created",
		slog.String("order_id", order.ID),
		slog.String("variant_code", cfg.VariantCode),
		slog.Int("quantity", cfg.Quantity),
	)

	return order, nil
}

// GetOrder retrieves an order by its identifier.
func (s *OrderService) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return order, nil
}

// History returns the audit trail for an order, oldest first.
func (s *OrderService) History(ctx context.Context, orderID string) ([]domain.HistoryEntry, error) {
	if _, err := s.orderRepo.GetByID(ctx, orderID); err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	entries, err := s.historyRepo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order history: %w", err)
	}
	return entries, nil
}

// Transition moves the order to the given status, writing the audit entry
// before committing the change. Transitioning an order already in the target
// status is a no-op; transitioning out of a terminal status fails.
func (s *OrderService) Transition(ctx context.Context, orderID string, to domain.OrderStatus, actor, note string) (*domain.Order, error) {
	if !domain.IsValidOrderStatus(to) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown order status %q", to))
	}
	if actor == "" {
		actor = domain.SystemActor
	}

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order.Status == to {
		return order, nil
	}
	if order.Status.IsTerminal() {
		return nil, apperrors.AlreadyTerminal(orderID)
	}

	from := order.Status
	if err := s.historyRepo.Append(ctx, &domain.HistoryEntry{
		OrderID:    orderID,
		FromStatus: from,
		ToStatus:   to,
		Actor:      actor,
		Note:       note,
	}); err != nil {
		return nil, fmt.Errorf("record status transition: %w", err)
	}
	if err := s.orderRepo.UpdateStatus(ctx, orderID, to); err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	order.Status = to

	if err := s.producer.PublishOrderStatusChanged(ctx, orderID, from, to, actor); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.status_changed event",
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "order status changed",
		slog.String("order_id", orderID),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
		slog.String("actor", actor),
	)

	return order, nil
}
