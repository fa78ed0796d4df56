package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shobha-cmd/vehicleSalesManagement-sub000/internal/domain"
	pkgkafka "github.com/shobha-cmd/vehicleSalesManagement-sub000/pkg/kafka"
)

// Kafka topic constants for vehicle sales domain events.
const (
	TopicOrderPlaced        = "vehiclesales.order.placed"
	TopicOrderStatusChanged = "vehiclesales.order.status_changed"
	TopicStockAllocated     = "vehiclesales.stock.allocated"
	TopicStockReleased      = "vehiclesales.stock.released"
	TopicSagaCompleted      = "vehiclesales.saga.completed"
)

// Aggregate type constant.
const AggregateTypeOrder = "order"

// Source identifier for events originating from this service.
const SourceOrderService = "vehicle-sales-service"

// OrderPlacedData is the payload for an order.placed event.
type OrderPlacedData struct {
	OrderID      string `json:"order_id"`
	CustomerName string `json:"customer_name"`
	Model        string `json:"model"`
	VariantCode  string `json:"variant_code"`
	Quantity     int    `json:"quantity"`
	Status       string `json:"status"`
	Source       string `json:"allocation_source,omitempty"`
}

// OrderStatusChangedData is the payload for an order.status_changed event.
type OrderStatusChangedData struct {
	OrderID    string `json:"order_id"`
	FromStatus string `json:"from_status,omitempty"`
	ToStatus   string `json:"to_status"`
	Actor      string `json:"actor"`
}

// StockAllocatedData is the payload for a stock.allocated event.
type StockAllocatedData struct {
	OrderID     string `json:"order_id"`
	StockID     string `json:"stock_id,omitempty"`
	Source      string `json:"source"`
	VariantCode string `json:"variant_code"`
	Quantity    int    `json:"quantity"`
}

// StockReleasedData is the payload for a stock.released event.
type StockReleasedData struct {
	OrderID     string `json:"order_id"`
	StockID     string `json:"stock_id,omitempty"`
	Source      string `json:"source"`
	VariantCode string `json:"variant_code"`
	Quantity    int    `json:"quantity"`
}

// SagaCompletedData is the payload for a saga.completed event.
type SagaCompletedData struct {
	OrderID string `json:"order_id"`
	Outcome string `json:"outcome"`
	Reason  string `json:"reason,omitempty"`
}

// Producer publishes vehicle sales domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the order service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishOrderPlaced publishes an order.placed event.
func (p *Producer) PublishOrderPlaced(ctx context.Context, order *domain.Order) error {
	data := OrderPlacedData{
		OrderID:      order.ID,
		CustomerName: order.Customer.Name,
		Model:        order.Config.Model,
		VariantCode:  order.Config.VariantCode,
		Quantity:     order.Config.Quantity,
		Status:       string(order.Status),
		Source:       order.AllocationSource,
	}

	event, err := pkgkafka.NewEvent(TopicOrderPlaced, order.ID, AggregateTypeOrder, SourceOrderService, data)
	if err != nil {
		return fmt.Errorf("create order.placed event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicOrderPlaced, event); err != nil {
		return fmt.Errorf("publish order.placed event: %w", err)
	}

	p.logger.DebugContext(ctx, "published order.placed event",
		slog.String("order_id", order.ID),
		slog.String("status", string(order.Status)),
	)

	return nil
}

// PublishOrderStatusChanged publishes an order.status_changed event.
func (p *Producer) PublishOrderStatusChanged(ctx context.Context, orderID string, from, to domain.OrderStatus, actor string) error {
	data := OrderStatusChangedData{
		OrderID:    orderID,
		FromStatus: string(from),
		ToStatus:   string(to),
		Actor:      actor,
	}

	event, err := pkgkafka.NewEvent(TopicOrderStatusChanged, orderID, AggregateTypeOrder, SourceOrderService, data)
	if err != nil {
		return fmt.Errorf("create order.status_changed event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicOrderStatusChanged, event); err != nil {
		return fmt.Errorf("publish order.status_changed event: %w", err)
	}

	p.logger.DebugContext(ctx, "published order.status_changed event",
		slog.String("order_id", orderID),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
	)

	return nil
}

// PublishStockAllocated publishes a stock.allocated event.
func (p *Producer) PublishStockAllocated(ctx context.Context, order *domain.Order, result *domain.AllocationResult) error {
	data := StockAllocatedData{
		OrderID:     order.ID,
		StockID:     result.StockID,
		Source:      result.Source,
		VariantCode: order.Config.VariantCode,
		Quantity:    order.Config.Quantity,
	}

	event, err := pkgkafka.NewEvent(TopicStockAllocated, order.ID, AggregateTypeOrder, SourceOrderService, data)
	if err != nil {
		return fmt.Errorf("create stock.allocated event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicStockAllocated, event); err != nil {
		return fmt.Errorf("publish stock.allocated event: %w", err)
	}

	p.logger.DebugContext(ctx, "published stock.allocated event",
		slog.String("order_id", order.ID),
		slog.String("source", result.Source),
	)

	return nil
}

// PublishStockReleased publishes a stock.released event after compensation.
func (p *Producer) PublishStockReleased(ctx context.Context, order *domain.Order) error {
	var stockID string
	if order.BlockedStockID != nil {
		stockID = *order.BlockedStockID
	}
	data := StockReleasedData{
		OrderID:     order.ID,
		StockID:     stockID,
		Source:      order.AllocationSource,
		VariantCode: order.Config.VariantCode,
		Quantity:    order.BlockedQuantity,
	}

	event, err := pkgkafka.NewEvent(TopicStockReleased, order.ID, AggregateTypeOrder, SourceOrderService, data)
	if err != nil {
		return fmt.Errorf("create stock.released event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicStockReleased, event); err != nil {
		return fmt.Errorf("publish stock.released event: %w", err)
	}

	p.logger.DebugContext(ctx, "published stock.released event",
		slog.String("order_id", order.ID),
	)

	return nil
}

// PublishSagaCompleted publishes a saga.completed event when an order reaches
// a terminal state.
func (p *Producer) PublishSagaCompleted(ctx context.Context, orderID, outcome, reason string) error {
	data := SagaCompletedData{
		OrderID: orderID,
		Outcome: outcome,
		Reason:  reason,
	}

	event, err := pkgkafka.NewEvent(TopicSagaCompleted, orderID, AggregateTypeOrder, SourceOrderService, data)
	if err != nil {
		return fmt.Errorf("create saga.completed event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicSagaCompleted, event); err != nil {
		return fmt.Errorf("publish saga.completed event: %w", err)
	}

	p.logger.DebugContext(ctx, "published saga.completed event",
		slog.String("order_id", orderID),
		slog.String("outcome", outcome),
	)

	return nil
}
