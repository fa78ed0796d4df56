package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shobha-cmd/vehicleSalesManagement-sub000/internal/domain"
	"github.com/shobha-cmd/vehicleSalesManagement-sub000/internal/event"
	"github.com/shobha-cmd/vehicleSalesManagement-sub000/internal/manufacturer"
	"github.com/shobha-cmd/vehicleSalesManagement-sub000/internal/repository"
	apperrors "github.com/shobha-cmd/vehicleSalesManagement-sub000/pkg/errors"
)

// AllocationService implements stock allocation, compensation and backorder
// fulfillment. Allocation walks a strict fallback chain: on-hand stock first,
// then the incoming pool, then a manufacturer backorder.
type AllocationService struct {
	orderRepo   repository.OrderRepository
	stockRepo   repository.StockRepository
	historyRepo repository.HistoryRepository
	notifier    manufacturer.Notifier
	producer    *event.Producer
	logger      *slog.Logger
}

// NewAllocationService creates a new allocation service.
func NewAllocationService(
	orderRepo repository.OrderRepository,
	stockRepo repository.StockRepository,
	historyRepo repository.HistoryRepository,
	notifier manufacturer.Notifier,
	producer *event.Producer,
	logger *slog.Logger,
) *AllocationService {
	return &AllocationService{
		orderRepo:   orderRepo,
		stockRepo:   stockRepo,
		historyRepo: historyRepo,
		notifier:    notifier,
		producer:    producer,
		logger:      logger,
	}
}

// Allocate runs the fallback chain for the order's configuration and commits
// the outcome: BLOCKED with bookkeeping when inventory was found, PENDING with
// a manufacturer backorder otherwise. Re-running against an already allocated
// order returns the recorded outcome without touching stock again.
func (s *AllocationService) Allocate(ctx context.Context, orderID string) (*domain.AllocationResult, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}

	if order.HasBlockedStock() {
		result := &domain.AllocationResult{
			Status: domain.StatusBlocked,
			Source: order.AllocationSource,
		}
		if order.BlockedStockID != nil {
			result.StockID = *order.BlockedStockID
		}
		return result, nil
	}

	cfg := order.Config

	// A reference to a variant that does not exist is a configuration error,
	// not a reason to fall through to the manufacturer.
	variant, err := s.stockRepo.GetVariant(ctx, cfg.VariantCode)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.InvalidInput(fmt.Sprintf("unknown variant %q", cfg.VariantCode))
		}
		return nil, fmt.Errorf("get variant: %w", err)
	}
	if cfg.Model != "" && cfg.Model != variant.Model {
		return nil, apperrors.InvalidInput(fmt.Sprintf("model %q does not match variant %q", cfg.Model, cfg.VariantCode))
	}

	// An incomplete configuration cannot match inventory rows; only the
	// manufacturer can satisfy it.
	if cfg.Complete() {
		if result, err := s.allocateFromInventory(ctx, order); err != nil {
			return nil, err
		} else if result != nil {
			return result, nil
		}
	}

	return s.placeBackorder(ctx, order)
}

// allocateFromInventory tries on-hand stock, then the incoming pool. A nil
// result with nil error means neither pool could satisfy the request.
func (s *AllocationService) allocateFromInventory(ctx context.Context, order *domain.Order) (*domain.AllocationResult, error) {
	cfg := order.Config

	stockID, err := s.stockRepo.AllocateOnHand(ctx, cfg)
	source := domain.SourceOnHand
	if errors.Is(err, apperrors.ErrNotFound) {
		stockID, err = s.stockRepo.ClaimPreallocated(ctx, cfg)
		source = domain.SourcePreallocated
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("allocate stock: %w", err)
	}

	if err := s.commitAllocation(ctx, order, cfg.Quantity, source, stockID); err != nil {
		return nil, err
	}

	result := &domain.AllocationResult{
		Status:  domain.StatusBlocked,
		Source:  source,
		StockID: stockID,
	}

	if err := s.producer.PublishStockAllocated(ctx, order, result); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish stock.allocated event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "stock allocated",
		slog.String("order_id", order.ID),
		slog.String("source", source),
		slog.String("stock_id", stockID),
		slog.Int("quantity", cfg.Quantity),
	)

	return result, nil
}

// commitAllocation records the bookkeeping used for compensation and moves
// the order to BLOCKED, audit entry first.
func (s *AllocationService) commitAllocation(ctx context.Context, order *domain.Order, qty int, source, stockID string) error {
	if err := s.orderRepo.SetAllocation(ctx, order.ID, qty, source, &stockID); err != nil {
		return fmt.Errorf("record allocation: %w", err)
	}
	if err := s.historyRepo.Append(ctx, &domain.HistoryEntry{
		OrderID:    order.ID,
		FromStatus: order.Status,
		ToStatus:   domain.StatusBlocked,
		Actor:      domain.SystemActor,
		Note:       fmt.Sprintf("stock blocked from %s", source),
	}); err != nil {
		return fmt.Errorf("record allocation transition: %w", err)
	}
	if err := s.orderRepo.UpdateStatus(ctx, order.ID, domain.StatusBlocked); err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	order.Status = domain.StatusBlocked
	order.BlockedQuantity = qty
	order.AllocationSource = source
	order.BlockedStockID = &stockID

	return nil
}

// placeBackorder records the manufacturer placeholder and leaves the order
// PENDING. Notifying the manufacturer API is best effort; the placeholder row
// is the source of truth.
func (s *AllocationService) placeBackorder(ctx context.Context, order *domain.Order) (*domain.AllocationResult, error) {
	cfg := order.Config
	mo := &domain.ManufacturerOrder{
		OrderID:      order.ID,
		VariantCode:  cfg.VariantCode,
		Colour:       cfg.Colour,
		FuelType:     cfg.FuelType,
		Transmission: cfg.Transmission,
		Quantity:     cfg.Quantity,
	}
	if err := s.stockRepo.CreateManufacturerOrder(ctx, mo); err != nil {
		return nil, fmt.Errorf("create manufacturer order: %w", err)
	}

	if err := s.notifier.NotifyOrderPlaced(ctx, mo); err != nil {
		s.logger.WarnContext(ctx, "manufacturer notification failed",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.historyRepo.Append(ctx, &domain.HistoryEntry{
		OrderID:  order.ID,
		ToStatus: domain.StatusPending,
		Actor:    domain.SystemActor,
		Note:     "backordered from manufacturer",
	}); err != nil {
		return nil, fmt.Errorf("record backorder: %w", err)
	}

	s.logger.InfoContext(ctx, "order backordered",
		slog.String("order_id", order.ID),
		slog.String("variant_code", cfg.VariantCode),
		slog.Int("quantity", cfg.Quantity),
	)

	return &domain.AllocationResult{
		Status: domain.StatusPending,
		Source: domain.SourceManufacturer,
	}, nil
}

// Compensate returns blocked inventory to the matching pool and clears the
// allocation bookkeeping. An order holding no blocked stock is a no-op, so
// the release happens at most once however often cancellation retries.
func (s *AllocationService) Compensate(ctx context.Context, orderID string) error {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("get order: %w", err)
	}
	if !order.HasBlockedStock() {
		return nil
	}

	cfg := order.Config
	switch {
	case order.AllocationSource == domain.SourceOnHand:
		if _, err := s.stockRepo.RestoreQuantity(ctx, cfg, order.BlockedQuantity); err != nil {
			return fmt.Errorf("restore stock quantity: %w", err)
		}
	case order.BlockedStockID != nil:
		// Pool-claimed and backorder-fulfilled rows hold the full blocked
		// quantity themselves; flipping the row back makes it allocatable.
		if err := s.stockRepo.ReleaseBlockedRow(ctx, *order.BlockedStockID); err != nil {
			return fmt.Errorf("release blocked row: %w", err)
		}
	default:
		return apperrors.InvalidState(fmt.Sprintf("order %s has blocked stock but no allocation bookkeeping", orderID))
	}

	if err := s.orderRepo.ClearAllocation(ctx, orderID); err != nil {
		return fmt.Errorf("clear allocation: %w", err)
	}

	if err := s.historyRepo.Append(ctx, &domain.HistoryEntry{
		OrderID:  orderID,
		ToStatus: order.Status,
		Actor:    domain.SystemActor,
		Note:     fmt.Sprintf("released %d blocked unit(s) to %s", order.BlockedQuantity, order.AllocationSource),
	}); err != nil {
		return fmt.Errorf("record stock release: %w", err)
	}

	if err := s.producer.PublishStockReleased(ctx, order); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish stock.released event",
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "blocked stock released",
		slog.String("order_id", orderID),
		slog.String("source", order.AllocationSource),
		slog.Int("quantity", order.BlockedQuantity),
	)

	return nil
}

// FulfillBackorder converts an outstanding manufacturer placeholder into a
// fully blocked on-hand row and moves the order to BLOCKED.
func (s *AllocationService) FulfillBackorder(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order.Status.IsTerminal() {
		return nil, apperrors.AlreadyTerminal(orderID)
	}
	if order.HasBlockedStock() {
		return order, nil
	}

	mo, err := s.stockRepo.FulfillManufacturerOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("fulfill manufacturer order: %w", err)
	}

	created, err := s.stockRepo.CreateStock(ctx, &domain.Stock{
		VariantCode:  mo.VariantCode,
		Colour:       mo.Colour,
		FuelType:     mo.FuelType,
		Transmission: mo.Transmission,
		Quantity:     mo.Quantity,
		Status:       domain.StockDepleted,
	})
	if err != nil {
		return nil, fmt.Errorf("create stock from backorder: %w", err)
	}

	if err := s.commitAllocation(ctx, order, mo.Quantity, domain.SourceManufacturer, created.ID); err != nil {
		return nil, err
	}

	result := &domain.AllocationResult{
		Status:  domain.StatusBlocked,
		Source:  domain.SourceManufacturer,
		StockID: created.ID,
	}
	if err := s.producer.PublishStockAllocated(ctx, order, result); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish stock.allocated event",
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "backorder fulfilled",
		slog.String("order_id", orderID),
		slog.String("stock_id", created.ID),
		slog.Int("quantity", mo.Quantity),
	)

	return order, nil
}
