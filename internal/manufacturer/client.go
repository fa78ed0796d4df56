package manufacturer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/shobha-cmd/vehicleSalesManagement-sub000/internal/domain"
	"github.com/shobha-cmd/vehicleSalesManagement-sub000/pkg/httpclient"
)

// Notifier forwards backorder placeholders to the manufacturer's ordering API.
// Notification is best effort; the placeholder row is the source of truth.
type Notifier interface {
	NotifyOrderPlaced(ctx context.Context, mo *domain.ManufacturerOrder) error
}

// orderRequest is the wire format accepted by the manufacturer ordering API.
type orderRequest struct {
	Reference    string `json:"reference"`
	VariantCode  string `json:"variant_code"`
	Colour       string `json:"colour,omitempty"`
	FuelType     string `json:"fuel_type,omitempty"`
	Transmission string `json:"transmission,omitempty"`
	Quantity     int    `json:"quantity"`
}

// Client calls the manufacturer ordering API over HTTP with circuit breaker
// protection.
type Client struct {
	http    *httpclient.CircuitBreakerClient
	baseURL string
	logger  *slog.Logger
}

// NewClient creates a manufacturer API client.
func NewClient(baseURL string, httpCfg httpclient.Config, logger *slog.Logger) *Client {
	base := httpclient.New(httpCfg)
	cb := httpclient.NewCircuitBreakerClient(base, httpclient.DefaultCircuitBreakerConfig("manufacturer"), logger)
	return &Client{
		http:    cb,
		baseURL: baseURL,
		logger:  logger,
	}
}

// NotifyOrderPlaced posts the backorder to the manufacturer's ordering API.
func (c *Client) NotifyOrderPlaced(ctx context.Context, mo *domain.ManufacturerOrder) error {
	payload := orderRequest{
		Reference:    mo.OrderID,
		VariantCode:  mo.VariantCode,
		Colour:       mo.Colour,
		FuelType:     mo.FuelType,
		Transmission: mo.Transmission,
		Quantity:     mo.Quantity,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal manufacturer order: %w", err)
	}

	resp, err := c.http.Post(ctx, c.baseURL+"/api/v1/orders", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("call manufacturer api: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return httpclient.ParseResponseError(resp, "manufacturer")
	}
	_ = resp.Body.Close()

	c.logger.DebugContext(ctx, "manufacturer order notified",
		slog.String("order_id", mo.OrderID),
		slog.String("variant_code", mo.VariantCode),
	)

	return nil
}

// NoopNotifier is used when no manufacturer API endpoint is configured.
type NoopNotifier struct{}

// NotifyOrderPlaced does nothing.
func (NoopNotifier) NotifyOrderPlaced(context.Context, *domain.ManufacturerOrder) error {
	return nil
}

var _ Notifier = (*Client)(nil)
var _ Notifier = NoopNotifier{}
