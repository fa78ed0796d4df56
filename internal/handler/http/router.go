package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shobha-cmd/vehicleSalesManagement-sub000/internal/service"
	"github.com/shobha-cmd/vehicleSalesManagement-sub000/pkg/health"
	"github.com/shobha-cmd/vehicleSalesManagement-sub000/pkg/middleware"
)

// RouterConfig carries the HTTP surface settings.
type RouterConfig struct {
	// JWTSecret enables authentication on finance decision routes when set.
	JWTSecret string
	// SignalRPS and SignalBurst rate-limit the saga signal routes per client
	// IP when SignalRPS is positive.
	SignalRPS   int
	SignalBurst int

	AllowedOrigins []string
	Environment    string
}

// NewRouter creates a chi router with all vehicle sales routes registered.
func NewRouter(
	orderService *service.OrderService,
	stockService *service.StockService,
	allocationService *service.AllocationService,
	coordinator SagaCoordinator,
	healthHandler *health.Handler,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(CORS(CORSConfig{AllowedOrigins: cfg.AllowedOrigins, Environment: cfg.Environment}))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("vehicle-sales"))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	orderHandler := NewOrderHandler(orderService, coordinator, logger)
	sagaHandler := NewSagaHandler(coordinator, allocationService, logger)
	stockHandler := NewStockHandler(stockService, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", orderHandler.CreateOrder)
			r.Get("/{orderId}", orderHandler.GetOrder)
			r.Get("/{orderId}/status", orderHandler.GetStatus)
			r.Get("/{orderId}/saga", orderHandler.GetSagaStatus)
			r.Get("/{orderId}/history", orderHandler.GetHistory)

			// Saga signal routes
			r.Group(func(r chi.Router) {
				if cfg.SignalRPS > 0 {
					r.Use(middleware.RateLimit(cfg.SignalRPS, cfg.SignalBurst, logger))
				}

				r.Post("/{orderId}/finance", sagaHandler.InitiateFinance)
				r.Post("/{orderId}/dispatch", sagaHandler.InitiateDispatch)
				r.Post("/{orderId}/delivery", sagaHandler.ConfirmDelivery)
				r.Post("/{orderId}/cancel", sagaHandler.CancelOrder)
				r.Post("/{orderId}/stock-fulfillment", sagaHandler.FulfillBackorder)

				// Finance decisions require an authenticated finance principal
				// when authentication is configured.
				r.Group(func(r chi.Router) {
					if cfg.JWTSecret != "" {
						r.Use(middleware.Auth(middleware.NewJWTValidator(cfg.JWTSecret)))
						r.Use(middleware.RequireRole("finance", "admin"))
					}
					r.Post("/{orderId}/finance/approve", sagaHandler.ApproveFinance)
					r.Post("/{orderId}/finance/reject", sagaHandler.RejectFinance)
				})
			})
		})

		// Stock administration
		r.Post("/variants", stockHandler.AddVariant)
		r.Route("/stock", func(r chi.Router) {
			r.Post("/", stockHandler.AddStock)
			r.Post("/preallocated", stockHandler.AddPreallocated)
			r.Get("/{variantCode}", stockHandler.ListStock)
		})
	})

	return r
}
