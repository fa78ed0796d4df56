package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shobha-cmd/vehicleSalesManagement-sub000/internal/domain"
	"github.com/shobha-cmd/vehicleSalesManagement-sub000/internal/service"
	"github.com/shobha-cmd/vehicleSalesManagement-sub000/pkg/httputil"
	"github.com/shobha-cmd/vehicleSalesManagement-sub000/pkg/middleware"
	"github.com/shobha-cmd/vehicleSalesManagement-sub000/pkg/validator"
)

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	service *service.OrderService
	saga    SagaCoordinator
	logger  *slog.Logger
}

// NewOrderHandler creates a new order HTTP handler.
func NewOrderHandler(svc *service.OrderService, saga SagaCoordinator, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		service: svc,
		saga:    saga,
		logger:  logger,
	}
}

// --- Request DTOs ---

// CustomerRequest is the buyer section of an order request.
type CustomerRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"omitempty"`
}

// VehicleConfigRequest is the requested vehicle configuration. Attributes
// beyond model, variant and quantity are optional; an incomplete
// configuration is routed to a manufacturer backorder.
type VehicleConfigRequest struct {
	Model        string `json:"model" validate:"required"`
	VariantCode  string `json:"variant_code" validate:"required"`
	VariantName  string `json:"variant_name" validate:"omitempty"`
	Colour       string `json:"colour" validate:"omitempty"`
	FuelType     string `json:"fuel_type" validate:"omitempty"`
	Transmission string `json:"transmission" validate:"omitempty"`
	Quantity     int    `json:"quantity" validate:"required,gte=1"`
}

// CreateOrderRequest is the JSON request body for placing an order.
type CreateOrderRequest struct {
	Customer CustomerRequest      `json:"customer" validate:"required"`
	Config   VehicleConfigRequest `json:"config" validate:"required"`
}

// --- Handlers ---

// CreateOrder handles POST /api/v1/orders. It creates the order and starts
// its fulfillment saga; the saga resolves stock allocation asynchronously.
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	// Limit request body to 1MB to prevent DoS via large payloads.
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	actor := middleware.ActorFromContext(r.Context())
	if actor == "" {
		actor = req.Customer.Email
	}

	customer := domain.Customer{
		Name:  req.Customer.Name,
		Email: req.Customer.Email,
		Phone: req.Customer.Phone,
	}
	cfg := domain.VehicleConfig{
		Model:        req.Config.Model,
		VariantCode:  req.Config.VariantCode,
		VariantName:  req.Config.VariantName,
		Colour:       req.Config.Colour,
		FuelType:     req.Config.FuelType,
		Transmission: req.Config.Transmission,
		Quantity:     req.Config.Quantity,
	}

	order, err := h.service.CreateOrder(r.Context(), customer, cfg, actor)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if err := h.saga.StartOrderSaga(r.Context(), order.ID); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: order})
}

// GetOrder handles GET /api/v1/orders/{orderId}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	order, err := h.service.GetOrder(r.Context(), orderID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}

// GetStatus handles GET /api/v1/orders/{orderId}/status. The status comes
// from the saga's view of the order, which reflects the last committed
// transition even while activities are in flight.
func (h *OrderHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	view, err := h.saga.OrderStatus(r.Context(), orderID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: view})
}

// GetSagaStatus handles GET /api/v1/orders/{orderId}/saga. It returns the
// per-sub-process status map for the order's saga.
func (h *OrderHandler) GetSagaStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	agg, err := h.saga.AggregateStatus(r.Context(), orderID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: agg})
}

// historyEntryResponse flattens a history row for API consumers.
type historyEntryResponse struct {
	FromStatus string    `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status"`
	Actor      string    `json:"actor,omitempty"`
	Note       string    `json:"note,omitempty"`
	At         time.Time `json:"at"`
}

// GetHistory handles GET /api/v1/orders/{orderId}/history
func (h *OrderHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	entries, err := h.service.History(r.Context(), orderID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	out := make([]historyEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, historyEntryResponse{
			FromStatus: string(e.FromStatus),
			ToStatus:   string(e.ToStatus),
			Actor:      e.Actor,
			Note:       e.Note,
			At:         e.CreatedAt,
		})
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: out})
}
