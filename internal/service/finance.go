package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shobha-cmd/vehicleSalesManagement-sub000/internal/domain"
	"github.com/shobha-cmd/vehicleSalesManagement-sub000/internal/repository"
	apperrors "github.com/shobha-cmd/vehicleSalesManagement-sub000/pkg/errors"
)

// FinanceService manages financing rounds. At most one undecided round exists
// per order; a decided round is immutable and a rejection is followed by a
// fresh round on the next initiation.
type FinanceService struct {
	financeRepo repository.FinanceRepository
	logger      *slog.Logger
}

// NewFinanceService creates a new finance service.
func NewFinanceService(financeRepo repository.FinanceRepository, logger *slog.Logger) *FinanceService {
	return &FinanceService{
		financeRepo: financeRepo,
		logger:      logger,
	}
}

// Initiate opens a PENDING financing round for the order. When an undecided
// round already exists it is returned unchanged, so re-delivered initiations
// cannot open a second round.
func (s *FinanceService) Initiate(ctx context.Context, orderID string) (*domain.FinanceRecord, error) {
	rec, err := s.financeRepo.CreateActive(ctx, orderID)
	if err == nil {
		s.logger.InfoContext(ctx, "finance round opened",
			slog.String("order_id", orderID),
			slog.String("finance_id", rec.ID),
		)
		return rec, nil
	}
	if !errors.Is(err, apperrors.ErrAlreadyExists) {
		return nil, fmt.Errorf("open finance round: %w", err)
	}

	existing, err := s.financeRepo.GetActiveByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get active finance round: %w", err)
	}
	return existing, nil
}

// Decide records an approval or rejection on the order's undecided round.
// Deciding when no undecided round exists returns ErrInvalidState.
func (s *FinanceService) Decide(ctx context.Context, orderID, status, actor string) (*domain.FinanceRecord, error) {
	if status != domain.FinanceApproved && status != domain.FinanceRejected {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid finance decision %q", status))
	}
	if actor == "" {
		return nil, apperrors.InvalidInput("actor is required")
	}

	rec, err := s.financeRepo.GetActiveByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.InvalidState(fmt.Sprintf("order %s has no undecided finance round", orderID))
		}
		return nil, fmt.Errorf("get active finance round: %w", err)
	}

	if err := s.financeRepo.Decide(ctx, rec.ID, status, actor); err != nil {
		return nil, fmt.Errorf("decide finance round: %w", err)
	}
	rec.Status = status
	rec.DecidedBy = actor

	s.logger.InfoContext(ctx, "finance round decided",
		slog.String("order_id", orderID),
		slog.String("finance_id", rec.ID),
		slog.String("status", status),
		slog.String("actor", actor),
	)

	return rec, nil
}

// GetActive returns the undecided financing round for an order.
func (s *FinanceService) GetActive(ctx context.Context, orderID string) (*domain.FinanceRecord, error) {
	rec, err := s.financeRepo.GetActiveByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get active finance round: %w", err)
	}
	return rec, nil
}
