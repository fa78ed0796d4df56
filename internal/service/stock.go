package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shobha-cmd/vehicleSalesManagement-sub000/internal/domain"
	"github.com/shobha-cmd/vehicleSalesManagement-sub000/internal/repository"
	apperrors "github.com/shobha-cmd/vehicleSalesManagement-sub000/pkg/errors"
)

// StockService covers catalog and inventory seeding. Allocation itself lives
// in AllocationService.
type StockService struct {
	stockRepo repository.StockRepository
	logger    *slog.Logger
}

// NewStockService creates a new stock service.
func NewStockService(stockRepo repository.StockRepository, logger *slog.Logger) *StockService {
	return &StockService{
		stockRepo: stockRepo,
		logger:    logger,
	}
}

// AddVariant upserts a catalog variant.
func (s *StockService) AddVariant(ctx context.Context, v *domain.Variant) error {
	if v.Code == "" {
		return apperrors.InvalidInput("variant code is required")
	}
	if v.Model == "" {
		return apperrors.InvalidInput("variant model is required")
	}
	if v.Name == "" {
		return apperrors.InvalidInput("variant name is required")
	}

	if err := s.stockRepo.CreateVariant(ctx, v); err != nil {
		return fmt.Errorf("add variant: %w", err)
	}

	s.logger.InfoContext(ctx, "variant added",
		slog.String("code", v.Code),
		slog.String("model", v.Model),
	)

	return nil
}

// AddStock seeds a new on-hand stock row for an existing variant.
func (s *StockService) AddStock(ctx context.Context, stock *domain.Stock) (*domain.Stock, error) {
	if stock.VariantCode == "" {
		return nil, apperrors.InvalidInput("variant_code is required")
	}
	if stock.Quantity < 0 {
		return nil, apperrors.InvalidInput("quantity must be non-negative")
	}
	if _, err := s.stockRepo.GetVariant(ctx, stock.VariantCode); err != nil {
		return nil, fmt.Errorf("get variant: %w", err)
	}

	created, err := s.stockRepo.CreateStock(ctx, stock)
	if err != nil {
		return nil, fmt.Errorf("add stock: %w", err)
	}

	s.logger.InfoContext(ctx, "stock added",
		slog.String("stock_id", created.ID),
		slog.String("variant_code", created.VariantCode),
		slog.Int("quantity", created.Quantity),
	)

	return created, nil
}

// AddPreallocated seeds a new incoming-pool row for an existing variant.
func (s *StockService) AddPreallocated(ctx context.Context, stock *domain.PreallocatedStock) (*domain.PreallocatedStock, error) {
	if stock.VariantCode == "" {
		return nil, apperrors.InvalidInput("variant_code is required")
	}
	if stock.Quantity <= 0 {
		return nil, apperrors.InvalidInput("quantity must be positive")
	}
	if _, err := s.stockRepo.GetVariant(ctx, stock.VariantCode); err != nil {
		return nil, fmt.Errorf("get variant: %w", err)
	}

	created, err := s.stockRepo.CreatePreallocated(ctx, stock)
	if err != nil {
		return nil, fmt.Errorf("add preallocated stock: %w", err)
	}

	s.logger.InfoContext(ctx, "preallocated stock added",
		slog.String("stock_id", created.ID),
		slog.String("variant_code", created.VariantCode),
		slog.Int("quantity", created.Quantity),
	)

	return created, nil
}

// ListStock returns the on-hand rows for a variant.
func (s *StockService) ListStock(ctx context.Context, variantCode string) ([]domain.Stock, error) {
	if variantCode == "" {
		return nil, apperrors.InvalidInput("variant_code is required")
	}
	stocks, err := s.stockRepo.ListByVariant(ctx, variantCode)
	if err != nil {
		return nil, fmt.Errorf("list stock: %w", err)
	}
	return stocks, nil
}
