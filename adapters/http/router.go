// Package http provides the JSON:API transport for wallet sign-in, API
// registration, usage metering and settlement.
package http

import (
	"net/http"
	"time"

	"github.com/artpar/trustmeter/adapters/metrics"
	"github.com/artpar/trustmeter/app"
	"github.com/artpar/trustmeter/pkg/jsonapi"
	"github.com/artpar/trustmeter/ports"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Services are the application services exposed over HTTP.
type Services struct {
	Auth       *app.Authenticator
	Catalog    *app.CatalogService
	Usage      *app.UsageMeter
	Settlement *app.SettlementCoordinator
	Encoder    ports.SettlementEncoder // optional; renders calldata in contract mode
}

// Handler serves the /api routes.
type Handler struct {
	auth       *app.Authenticator
	catalog    *app.CatalogService
	usage      *app.UsageMeter
	settlement *app.SettlementCoordinator
	encoder    ports.SettlementEncoder
	validate   *validator.Validate
	logger     zerolog.Logger
}

// NewHandler creates the API handler.
func NewHandler(s Services, logger zerolog.Logger) *Handler {
	return &Handler{
		auth:       s.Auth,
		catalog:    s.Catalog,
		usage:      s.Usage,
		settlement: s.Settlement,
		encoder:    s.Encoder,
		validate:   newValidator(),
		logger:     logger,
	}
}

// RouterConfig holds optional configuration for the router.
type RouterConfig struct {
	Metrics        *metrics.Collector
	MetricsHandler http.Handler // defaults to promhttp.Handler() when Metrics is set
	MetricsPath    string       // default "/metrics"
	RequestTimeout time.Duration
	Version        VersionInfo
}

// NewRouter creates the main HTTP router.
func NewRouter(h *Handler, health *HealthHandler, logger zerolog.Logger, cfg RouterConfig) chi.Router {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	if cfg.Metrics != nil {
		r.Use(NewMetricsMiddleware(cfg.Metrics))
	}

	r.Get("/health", health.Liveness)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Get("/version", NewVersionHandler(cfg.Version))

	if cfg.MetricsHandler != nil {
		r.Handle(cfg.MetricsPath, cfg.MetricsHandler)
	} else if cfg.Metrics != nil {
		r.Handle(cfg.MetricsPath, promhttp.Handler())
	}

	r.Get("/.well-known/openapi.json", OpenAPISpec)
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Route("/api", func(r chi.Router) {
		// Public
		r.Get("/nonce", h.Nonce)
		r.Post("/nonce", h.Nonce)
		r.Post("/auth/session", h.CreateSession)
		r.Get("/apis", h.ListAPIs)
		r.Get("/available-apis", h.ListAPIs)

		// Wallet-authenticated
		r.Group(func(r chi.Router) {
			r.Use(h.RequireWallet)

			r.Get("/me", h.Me)

			r.Post("/apis", h.RegisterAPI)
			r.Post("/register", h.RegisterAPI)
			r.Get("/apis/mine", h.ListMyAPIs)
			r.Get("/my-apis", h.ListMyAPIs)
			r.Put("/apis/{id}/price", h.UpdatePrice)

			r.Post("/usage/{apiID}", h.RecordUsage)
			r.Get("/usage/{apiID}", h.GetUsage)
			r.Post("/log-usage", h.RecordUsage)

			r.Post("/settle/{apiID}", h.Settle)
			r.Post("/confirm-settlement/{batchID}", h.ConfirmSettlement)
			r.Get("/settlements", h.ListSettlements)
			r.Get("/settlements/{batchID}", h.GetSettlement)
		})

		r.Get("/apis/{id}", h.GetAPI)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		jsonapi.WriteError(w, jsonapi.ErrNotFound("route"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		jsonapi.WriteError(w, jsonapi.NewError(http.StatusMethodNotAllowed, "method_not_allowed", "Method Not Allowed").
			Detailf("%s is not supported on %s", r.Method, r.URL.Path).
			Build())
	})

	return r
}
