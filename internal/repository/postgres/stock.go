package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/shobha-cmd/vehicleSalesManagement-sub000/internal/domain"
	"github.com/shobha-cmd/vehicleSalesManagement-sub000/pkg/database"
	apperrors "github.com/shobha-cmd/vehicleSalesManagement-sub000/pkg/errors"
)

// StockRepository implements repository.StockRepository using PostgreSQL.
// Every quantity mutation is a single UPDATE with a quantity guard in the
// WHERE clause, so concurrent allocations against the same row serialize on
// the row lock and re-evaluate the guard.
type StockRepository struct {
	pool database.DBTX
}

// NewStockRepository creates a new PostgreSQL-backed stock repository.
func NewStockRepository(pool database.DBTX) *StockRepository {
	return &StockRepository{pool: pool}
}

// GetVariant looks up a catalog variant by code.
func (r *StockRepository) GetVariant(ctx context.Context, code string) (*domain.Variant, error) {
	query := `
		SELECT code, model, name, fuel_type, transmission, created_at
		FROM variants
		WHERE code = $1`

	var v domain.Variant
	err := r.pool.QueryRow(ctx, query, code).Scan(
		&v.Code,
		&v.Model,
		&v.Name,
		&v.FuelType,
		&v.Transmission,
		&v.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("variant", code)
		}
		return nil, fmt.Errorf("get variant: %w", err)
	}

	return &v, nil
}

// CreateVariant inserts a catalog variant (idempotent upsert).
func (r *StockRepository) CreateVariant(ctx context.Context, v *domain.Variant) error {
	query := `
		INSERT INTO variants (code, model, name, fuel_type, transmission)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (code) DO UPDATE SET
			model = EXCLUDED.model,
			name = EXCLUDED.name,
			fuel_type = EXCLUDED.fuel_type,
			transmission = EXCLUDED.transmission`

	_, err := r.pool.Exec(ctx, query, v.Code, v.Model, v.Name, v.FuelType, v.Transmission)
	if err != nil {
		return fmt.Errorf("create variant: %w", err)
	}

	return nil
}

// CreateStock inserts a new on-hand stock row.
func (r *StockRepository) CreateStock(ctx context.Context, stock *domain.Stock) (*domain.Stock, error) {
	query := `
		INSERT INTO stock (variant_code, colour, fuel_type, transmission, quantity, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	status := stock.Status
	if status == "" {
		status = domain.StockAvailable
	}

	result := *stock
	result.Status = status
	err := r.pool.QueryRow(ctx, query,
		stock.VariantCode,
		stock.Colour,
		stock.FuelType,
		stock.Transmission,
		stock.Quantity,
		status,
	).Scan(&result.ID, &result.CreatedAt, &result.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create stock: %w", err)
	}

	return &result, nil
}

// CreatePreallocated inserts a new incoming-pool row.
func (r *StockRepository) CreatePreallocated(ctx context.Context, stock *domain.PreallocatedStock) (*domain.PreallocatedStock, error) {
	query := `
		INSERT INTO preallocated_stock (variant_code, colour, fuel_type, transmission, quantity, status, expected_arrival)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	status := stock.Status
	if status == "" {
		status = domain.StockAvailable
	}

	result := *stock
	result.Status = status
	err := r.pool.QueryRow(ctx, query,
		stock.VariantCode,
		stock.Colour,
		stock.FuelType,
		stock.Transmission,
		stock.Quantity,
		status,
		stock.ExpectedArrival,
	).Scan(&result.ID, &result.CreatedAt, &result.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create preallocated stock: %w", err)
	}

	return &result, nil
}

// ListByVariant returns all on-hand rows for a variant.
func (r *StockRepository) ListByVariant(ctx context.Context, variantCode string) ([]domain.Stock, error) {
	query := `
		SELECT id, variant_code, colour, fuel_type, transmission, quantity, status, created_at, updated_at
		FROM stock
		WHERE variant_code = $1
		ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, variantCode)
	if err != nil {
		return nil, fmt.Errorf("list stock by variant: %w", err)
	}
	defer rows.Close()

	var stocks []domain.Stock
	for rows.Next() {
		var s domain.Stock
		if err := rows.Scan(
			&s.ID,
			&s.VariantCode,
			&s.Colour,
			&s.FuelType,
			&s.Transmission,
			&s.Quantity,
			&s.Status,
			&s.CreatedAt,
			&s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan stock row: %w", err)
		}
		stocks = append(stocks, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stock rows: %w", err)
	}

	if stocks == nil {
		stocks = []domain.Stock{}
	}

	return stocks, nil
}

// AllocateOnHand atomically decrements the first AVAILABLE on-hand row
// matching the configuration with sufficient quantity. The outer quantity
// guard is re-evaluated under the row lock, so two racing requests for the
// last unit cannot both succeed.
func (r *StockRepository) AllocateOnHand(ctx context.Context, cfg domain.VehicleConfig) (string, error) {
	query := `
		UPDATE stock
		SET quantity = quantity - $1,
		    status = CASE WHEN quantity - $1 = 0 THEN 'DEPLETED' ELSE status END,
		    updated_at = NOW()
		WHERE id = (
			SELECT id FROM stock
			WHERE variant_code = $2 AND colour = $3 AND fuel_type = $4 AND transmission = $5
			  AND status = 'AVAILABLE' AND quantity >= $1
			ORDER BY created_at ASC
			LIMIT 1
		)
		AND quantity >= $1
		RETURNING id`

	var id string
	err := r.pool.QueryRow(ctx, query,
		cfg.Quantity,
		cfg.VariantCode,
		cfg.Colour,
		cfg.FuelType,
		cfg.Transmission,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperrors.ErrNotFound
		}
		return "", fmt.Errorf("allocate on-hand stock: %w", err)
	}

	return id, nil
}

// ClaimPreallocated consumes an incoming-pool row whose quantity matches the
// request exactly and creates a new on-hand row holding the requested
// quantity, already fully blocked (DEPLETED) for the order. Cancellation
// releases the row back to AVAILABLE.
func (r *StockRepository) ClaimPreallocated(ctx context.Context, cfg domain.VehicleConfig) (string, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	claimQuery := `
		UPDATE preallocated_stock
		SET quantity = 0, status = 'DEPLETED', updated_at = NOW()
		WHERE id = (
			SELECT id FROM preallocated_stock
			WHERE variant_code = $2 AND colour = $3 AND fuel_type = $4 AND transmission = $5
			  AND status = 'AVAILABLE' AND quantity = $1
			ORDER BY created_at ASC
			LIMIT 1
		)
		AND quantity = $1
		RETURNING id`

	var poolID string
	err = tx.QueryRow(ctx, claimQuery,
		cfg.Quantity,
		cfg.VariantCode,
		cfg.Colour,
		cfg.FuelType,
		cfg.Transmission,
	).Scan(&poolID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperrors.ErrNotFound
		}
		return "", fmt.Errorf("claim preallocated stock: %w", err)
	}

	insertQuery := `
		INSERT INTO stock (variant_code, colour, fuel_type, transmission, quantity, status)
		VALUES ($1, $2, $3, $4, $5, 'DEPLETED')
		RETURNING id`

	var stockID string
	err = tx.QueryRow(ctx, insertQuery,
		cfg.VariantCode,
		cfg.Colour,
		cfg.FuelType,
		cfg.Transmission,
		cfg.Quantity,
	).Scan(&stockID)
	if err != nil {
		return "", fmt.Errorf("create on-hand row from pool: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit transaction: %w", err)
	}

	return stockID, nil
}

// RestoreQuantity adds qty back to the first on-hand row matching the
// configuration, creating a new AVAILABLE row when none exists.
func (r *StockRepository) RestoreQuantity(ctx context.Context, cfg domain.VehicleConfig, qty int) (string, error) {
	query := `
		UPDATE stock
		SET quantity = quantity + $1, status = 'AVAILABLE', updated_at = NOW()
		WHERE id = (
			SELECT id FROM stock
			WHERE variant_code = $2 AND colour = $3 AND fuel_type = $4 AND transmission = $5
			ORDER BY created_at ASC
			LIMIT 1
		)
		RETURNING id`

	var id string
	err := r.pool.QueryRow(ctx, query,
		qty,
		cfg.VariantCode,
		cfg.Colour,
		cfg.FuelType,
		cfg.Transmission,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("restore stock quantity: %w", err)
	}

	created, err := r.CreateStock(ctx, &domain.Stock{
		VariantCode:  cfg.VariantCode,
		Colour:       cfg.Colour,
		FuelType:     cfg.FuelType,
		Transmission: cfg.Transmission,
		Quantity:     qty,
		Status:       domain.StockAvailable,
	})
	if err != nil {
		return "", err
	}

	return created.ID, nil
}

// ReleaseBlockedRow flips a fully blocked on-hand row back to AVAILABLE.
func (r *StockRepository) ReleaseBlockedRow(ctx context.Context, stockID string) error {
	query := `
		UPDATE stock
		SET status = 'AVAILABLE', updated_at = NOW()
		WHERE id = $1`

	ct, err := r.pool.Exec(ctx, query, stockID)
	if err != nil {
		return fmt.Errorf("release blocked stock row: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("stock", stockID)
	}

	return nil
}

// CreateManufacturerOrder records the step-3 fallback placeholder.
func (r *StockRepository) CreateManufacturerOrder(ctx context.Context, mo *domain.ManufacturerOrder) error {
	query := `
		INSERT INTO manufacturer_orders (order_id, variant_code, colour, fuel_type, transmission, quantity, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	if mo.Status == "" {
		mo.Status = domain.ManufacturerOrderPlaced
	}

	err := r.pool.QueryRow(ctx, query,
		mo.OrderID,
		mo.VariantCode,
		mo.Colour,
		mo.FuelType,
		mo.Transmission,
		mo.Quantity,
		mo.Status,
	).Scan(&mo.ID, &mo.CreatedAt, &mo.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create manufacturer order: %w", err)
	}

	return nil
}

// FulfillManufacturerOrder marks the placeholder FULFILLED and returns it.
func (r *StockRepository) FulfillManufacturerOrder(ctx context.Context, orderID string) (*domain.ManufacturerOrder, error) {
	query := `
		UPDATE manufacturer_orders
		SET status = 'FULFILLED', updated_at = NOW()
		WHERE order_id = $1 AND status = 'PLACED'
		RETURNING id, order_id, variant_code, colour, fuel_type, transmission, quantity, status, created_at, updated_at`

	var mo domain.ManufacturerOrder
	err := r.pool.QueryRow(ctx, query, orderID).Scan(
		&mo.ID,
		&mo.OrderID,
		&mo.VariantCode,
		&mo.Colour,
		&mo.FuelType,
		&mo.Transmission,
		&mo.Quantity,
		&mo.Status,
		&mo.CreatedAt,
		&mo.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("manufacturer order", orderID)
		}
		return nil, fmt.Errorf("fulfill manufacturer order: %w", err)
	}

	return &mo, nil
}
