package service

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/shobha-cmd/vehicleSalesManagement-sub000/internal/domain"
	"github.com/shobha-cmd/vehicleSalesManagement-sub000/internal/event"
	pkgkafka "github.com/shobha-cmd/vehicleSalesManagement-sub000/pkg/kafka"
)

// --- Mock OrderRepository ---

type mockOrderRepository struct {
	mock.Mock
}

func (m *mockOrderRepository) NextOrderID(ctx context.Context, year int) (string, error) {
	args := m.Called(ctx, year)
	return args.String(0), args.Error(1)
}

func (m *mockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *mockOrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderRepository) ListByStatus(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error) {
	args := m.Called(ctx, status)
	return args.Get(0).([]domain.Order), args.Error(1)
}

func (m *mockOrderRepository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *mockOrderRepository) SetAllocation(ctx context.Context, id string, blockedQty int, source string, stockID *string) error {
	args := m.Called(ctx, id, blockedQty, source, stockID)
	return args.Error(0)
}

func (m *mockOrderRepository) ClearAllocation(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// --- Mock StockRepository ---

type mockStockRepository struct {
	mock.Mock
}

func (m *mockStockRepository) GetVariant(ctx context.Context, code string) (*domain.Variant, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Variant), args.Error(1)
}

func (m *mockStockRepository) CreateVariant(ctx context.Context, v *domain.Variant) error {
	args := m.Called(ctx, v)
	return args.Error(0)
}

func (m *mockStockRepository) CreateStock(ctx context.Context, stock *domain.Stock) (*domain.Stock, error) {
	args := m.Called(ctx, stock)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Stock), args.Error(1)
}

func (m *mockStockRepository) CreatePreallocated(ctx context.Context, stock *domain.PreallocatedStock) (*domain.PreallocatedStock, error) {
	args := m.Called(ctx, stock)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PreallocatedStock), args.Error(1)
}

func (m *mockStockRepository) ListByVariant(ctx context.Context, variantCode string) ([]domain.Stock, error) {
	args := m.Called(ctx, variantCode)
	return args.Get(0).([]domain.Stock), args.Error(1)
}

func (m *mockStockRepository) AllocateOnHand(ctx context.Context, cfg domain.VehicleConfig) (string, error) {
	args := m.Called(ctx, cfg)
	return args.String(0), args.Error(1)
}

func (m *mockStockRepository) ClaimPreallocated(ctx context.Context, cfg domain.VehicleConfig) (string, error) {
	args := m.Called(ctx, cfg)
	return args.String(0), args.Error(1)
}

func (m *mockStockRepository) RestoreQuantity(ctx context.Context, cfg domain.VehicleConfig, qty int) (string, error) {
	args := m.Called(ctx, cfg, qty)
	return args.String(0), args.Error(1)
}

func (m *mockStockRepository) ReleaseBlockedRow(ctx context.Context, stockID string) error {
	args := m.Called(ctx, stockID)
	return args.Error(0)
}

func (m *mockStockRepository) CreateManufacturerOrder(ctx context.Context, mo *domain.ManufacturerOrder) error {
	args := m.Called(ctx, mo)
	return args.Error(0)
}

func (m *mockStockRepository) FulfillManufacturerOrder(ctx context.Context, orderID string) (*domain.ManufacturerOrder, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ManufacturerOrder), args.Error(1)
}

// --- Mock FinanceRepository ---

type mockFinanceRepository struct {
	mock.Mock
}

func (m *mockFinanceRepository) CreateActive(ctx context.Context, orderID string) (*domain.FinanceRecord, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FinanceRecord), args.Error(1)
}

func (m *mockFinanceRepository) GetActiveByOrder(ctx context.Context, orderID string) (*domain.FinanceRecord, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FinanceRecord), args.Error(1)
}

func (m *mockFinanceRepository) Decide(ctx context.Context, id, status, actor string) error {
	args := m.Called(ctx, id, status, actor)
	return args.Error(0)
}

// --- Mock DispatchRepository ---

type mockDispatchRepository struct {
	mock.Mock
}

func (m *mockDispatchRepository) CreateDispatch(ctx context.Context, orderID string) (*domain.DispatchRecord, bool, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.DispatchRecord), args.Bool(1), args.Error(2)
}

func (m *mockDispatchRepository) GetDispatchByOrder(ctx context.Context, orderID string) (*domain.DispatchRecord, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DispatchRecord), args.Error(1)
}

func (m *mockDispatchRepository) CreateDelivery(ctx context.Context, orderID string) (*domain.DeliveryRecord, bool, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.DeliveryRecord), args.Bool(1), args.Error(2)
}

func (m *mockDispatchRepository) GetDeliveryByOrder(ctx context.Context, orderID string) (*domain.DeliveryRecord, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DeliveryRecord), args.Error(1)
}

// --- Mock HistoryRepository ---

type mockHistoryRepository struct {
	mock.Mock
}

func (m *mockHistoryRepository) Append(ctx context.Context, entry *domain.HistoryEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *mockHistoryRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.HistoryEntry, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).([]domain.HistoryEntry), args.Error(1)
}

// --- Mock manufacturer Notifier ---

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) NotifyOrderPlaced(ctx context.Context, mo *domain.ManufacturerOrder) error {
	args := m.Called(ctx, mo)
	return args.Error(0)
}

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestProducer returns an event producer whose publishes fail silently in
// tests (no real broker behind it).
func newTestProducer(t *testing.T) *event.Producer {
	t.Helper()
	logger := newTestLogger()
	kafkaCfg := pkgkafka.DefaultProducerConfig([]string{"localhost:9092"})
	return event.NewProducer(pkgkafka.NewProducer(kafkaCfg, logger), logger)
}
