package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shobha-cmd/vehicleSalesManagement-sub000/internal/saga"
	"github.com/shobha-cmd/vehicleSalesManagement-sub000/internal/service"
	apperrors "github.com/shobha-cmd/vehicleSalesManagement-sub000/pkg/errors"
	"github.com/shobha-cmd/vehicleSalesManagement-sub000/pkg/httputil"
	"github.com/shobha-cmd/vehicleSalesManagement-sub000/pkg/middleware"
)

// SagaCoordinator is the engine surface the HTTP layer depends on.
type SagaCoordinator interface {
	StartOrderSaga(ctx context.Context, orderID string) error
	Signal(ctx context.Context, orderID string, sig saga.Signal) error
	OrderStatus(ctx context.Context, orderID string) (*saga.OrderStatusView, error)
	AggregateStatus(ctx context.Context, orderID string) (map[string]string, error)
}

// SagaHandler handles HTTP requests that drive a running order saga.
type SagaHandler struct {
	saga       SagaCoordinator
	allocation *service.AllocationService
	logger     *slog.Logger
}

// NewSagaHandler creates a new saga HTTP handler.
func NewSagaHandler(coordinator SagaCoordinator, allocation *service.AllocationService, logger *slog.Logger) *SagaHandler {
	return &SagaHandler{
		saga:       coordinator,
		allocation: allocation,
		logger:     logger,
	}
}

// signalResponse acknowledges an accepted signal. Signals are applied
// asynchronously by the saga, so acceptance is not completion.
type signalResponse struct {
	OrderID  string `json:"order_id"`
	Signal   string `json:"signal"`
	Accepted bool   `json:"accepted"`
}

// decisionRequest is the optional JSON body of approve/reject requests. The
// authenticated principal takes precedence over the body actor.
type decisionRequest struct {
	Actor string `json:"actor"`
}

func (h *SagaHandler) signal(w http.ResponseWriter, r *http.Request, sig saga.Signal) {
	orderID := chi.URLParam(r, "orderId")

	if err := h.saga.Signal(r.Context(), orderID, sig); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusAccepted, httputil.Response{
		Data: signalResponse{OrderID: orderID, Signal: sig.Kind, Accepted: true},
	})
}

// resolveActor picks the decision actor: the authenticated principal if
// present, otherwise the body actor.
func (h *SagaHandler) resolveActor(r *http.Request) string {
	if actor := middleware.ActorFromContext(r.Context()); actor != "" {
		return actor
	}

	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20)
	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		return ""
	}
	return req.Actor
}

// InitiateFinance handles POST /api/v1/orders/{orderId}/finance
func (h *SagaHandler) InitiateFinance(w http.ResponseWriter, r *http.Request) {
	h.signal(w, r, saga.Signal{Kind: saga.SignalInitiateFinance})
}

// ApproveFinance handles POST /api/v1/orders/{orderId}/finance/approve
func (h *SagaHandler) ApproveFinance(w http.ResponseWriter, r *http.Request) {
	actor := h.resolveActor(r)
	if actor == "" {
		httputil.WriteError(w, r, apperrors.InvalidInput("decision actor is required"), h.logger)
		return
	}
	h.signal(w, r, saga.Signal{Kind: saga.SignalApproveFinance, Actor: actor})
}

// RejectFinance handles POST /api/v1/orders/{orderId}/finance/reject
func (h *SagaHandler) RejectFinance(w http.ResponseWriter, r *http.Request) {
	actor := h.resolveActor(r)
	if actor == "" {
		httputil.WriteError(w, r, apperrors.InvalidInput("decision actor is required"), h.logger)
		return
	}
	h.signal(w, r, saga.Signal{Kind: saga.SignalRejectFinance, Actor: actor})
}

// InitiateDispatch handles POST /api/v1/orders/{orderId}/dispatch
func (h *SagaHandler) InitiateDispatch(w http.ResponseWriter, r *http.Request) {
	h.signal(w, r, saga.Signal{Kind: saga.SignalInitiateDispatch})
}

// ConfirmDelivery handles POST /api/v1/orders/{orderId}/delivery
func (h *SagaHandler) ConfirmDelivery(w http.ResponseWriter, r *http.Request) {
	h.signal(w, r, saga.Signal{Kind: saga.SignalConfirmDelivery})
}

// CancelOrder handles POST /api/v1/orders/{orderId}/cancel
func (h *SagaHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	h.signal(w, r, saga.Signal{Kind: saga.SignalCancelOrder})
}

// FulfillBackorder handles POST /api/v1/orders/{orderId}/stock-fulfillment.
// It records arrival of a manufacturer backorder and blocks the created
// stock against the order; the saga then proceeds through finance as usual.
func (h *SagaHandler) FulfillBackorder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	order, err := h.allocation.FulfillBackorder(r.Context(), orderID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}
