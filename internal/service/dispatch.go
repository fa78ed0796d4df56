package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shobha-cmd/vehicleSalesManagement-sub000/internal/domain"
	"github.com/shobha-cmd/vehicleSalesManagement-sub000/internal/repository"
)

// DispatchService records dispatch and delivery. Both records are created at
// most once per order; repeated requests return the existing record.
type DispatchService struct {
	dispatchRepo repository.DispatchRepository
	logger       *slog.Logger
}

// NewDispatchService creates a new dispatch service.
func NewDispatchService(dispatchRepo repository.DispatchRepository, logger *slog.Logger) *DispatchService {
	return &DispatchService{
		dispatchRepo: dispatchRepo,
		logger:       logger,
	}
}

// Dispatch creates the dispatch record for the order, or returns the existing
// one. The bool result reports whether this call created it.
func (s *DispatchService) Dispatch(ctx context.Context, orderID string) (*domain.DispatchRecord, bool, error) {
	rec, created, err := s.dispatchRepo.CreateDispatch(ctx, orderID)
	if err != nil {
		return nil, false, fmt.Errorf("create dispatch record: %w", err)
	}

	if created {
		s.logger.InfoContext(ctx, "order dispatched",
			slog.String("order_id", orderID),
			slog.String("dispatch_id", rec.ID),
		)
	}

	return rec, created, nil
}

// Deliver creates the delivery record for the order, or returns the existing
// one.
func (s *DispatchService) Deliver(ctx context.Context, orderID string) (*domain.DeliveryRecord, bool, error) {
	rec, created, err := s.dispatchRepo.CreateDelivery(ctx, orderID)
	if err != nil {
		return nil, false, fmt.Errorf("create delivery record: %w", err)
	}

	if created {
		s.logger.InfoContext(ctx, "order delivered",
			slog.String("order_id", orderID),
			slog.String("delivery_id", rec.ID),
		)
	}

	return rec, created, nil
}

// GetDispatch returns the dispatch record for an order.
func (s *DispatchService) GetDispatch(ctx context.Context, orderID string) (*domain.DispatchRecord, error) {
	rec, err := s.dispatchRepo.GetDispatchByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get dispatch record: %w", err)
	}
	return rec, nil
}

// GetDelivery returns the delivery record for an order.
func (s *DispatchService) GetDelivery(ctx context.Context, orderID string) (*domain.DeliveryRecord, error) {
	rec, err := s.dispatchRepo.GetDeliveryByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get delivery record: %w", err)
	}
	return rec, nil
}
