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
	"github.com/shobha-cmd/vehicleSalesManagement-sub000/pkg/validator"
)

// StockHandler handles HTTP requests for stock administration endpoints.
type StockHandler struct {
	service *service.StockService
	logger  *slog.Logger
}

// NewStockHandler creates a new stock HTTP handler.
func NewStockHandler(svc *service.StockService, logger *slog.Logger) *StockHandler {
	return &StockHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// AddVariantRequest is the JSON request body for registering a catalog variant.
type AddVariantRequest struct {
	Code         string `json:"code" validate:"required"`
	Model        string `json:"model" validate:"required"`
	Name         string `json:"name" validate:"required"`
	FuelType     string `json:"fuel_type" validate:"omitempty"`
	Transmission string `json:"transmission" validate:"omitempty"`
}

// AddStockRequest is the JSON request body for adding an on-hand stock row.
type AddStockRequest struct {
	VariantCode  string `json:"variant_code" validate:"required"`
	Colour       string `json:"colour" validate:"required"`
	FuelType     string `json:"fuel_type" validate:"required"`
	Transmission string `json:"transmission" validate:"required"`
	Quantity     int    `json:"quantity" validate:"gte=0"`
}

// AddPreallocatedRequest is the JSON request body for adding an incoming-pool
// row.
type AddPreallocatedRequest struct {
	VariantCode     string     `json:"variant_code" validate:"required"`
	Colour          string     `json:"colour" validate:"required"`
	FuelType        string     `json:"fuel_type" validate:"required"`
	Transmission    string     `json:"transmission" validate:"required"`
	Quantity        int        `json:"quantity" validate:"required,gte=1"`
	ExpectedArrival *time.Time `json:"expected_arrival" validate:"omitempty"`
}

// decodeBody decodes and validates a JSON request body, writing the error
// response itself when the body is unusable.
func decodeBody(w http.ResponseWriter, r *http.Request, req any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return false
	}
	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return false
	}
	return true
}

// --- Handlers ---

// AddVariant handles POST /api/v1/variants
func (h *StockHandler) AddVariant(w http.ResponseWriter, r *http.Request) {
	var req AddVariantRequest
	if !decodeBody(w, r, &req) {
		return
	}

	variant := &domain.Variant{
		Code:         req.Code,
		Model:        req.Model,
		Name:         req.Name,
		FuelType:     req.FuelType,
		Transmission: req.Transmission,
	}
	if err := h.service.AddVariant(r.Context(), variant); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: variant})
}

// AddStock handles POST /api/v1/stock
func (h *StockHandler) AddStock(w http.ResponseWriter, r *http.Request) {
	var req AddStockRequest
	if !decodeBody(w, r, &req) {
		return
	}

	stock, err := h.service.AddStock(r.Context(), &domain.Stock{
		VariantCode:  req.VariantCode,
		Colour:       req.Colour,
		FuelType:     req.FuelType,
		Transmission: req.Transmission,
		Quantity:     req.Quantity,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: stock})
}

// AddPreallocated handles POST /api/v1/stock/preallocated
func (h *StockHandler) AddPreallocated(w http.ResponseWriter, r *http.Request) {
	var req AddPreallocatedRequest
	if !decodeBody(w, r, &req) {
		return
	}

	row, err := h.service.AddPreallocated(r.Context(), &domain.PreallocatedStock{
		VariantCode:     req.VariantCode,
		Colour:          req.Colour,
		FuelType:        req.FuelType,
		Transmission:    req.Transmission,
		Quantity:        req.Quantity,
		ExpectedArrival: req.ExpectedArrival,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: row})
}

// ListStock handles GET /api/v1/stock/{variantCode}
func (h *StockHandler) ListStock(w http.ResponseWriter, r *http.Request) {
	variantCode := chi.URLParam(r, "variantCode")

	rows, err := h.service.ListStock(r.Context(), variantCode)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: rows})
}
