package httpserver

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"evtelemetry/backend/services/telemetry-service/internal/http/middleware"
	"evtelemetry/backend/services/telemetry-service/internal/metrics"
)

// Routes defines HTTP endpoints. Nil handlers are not mounted.
type Routes struct {
	IngestVehicle   http.Handler
	IngestMeter     http.Handler
	RegisterMapping http.Handler
	GetMapping      http.Handler
	Summary         http.Handler
	VehicleLatest   http.Handler
	MeterLatest     http.Handler
	Stream          http.Handler
	Health          http.Handler
	Metrics         http.Handler
}

// RouterOptions carries cross-cutting concerns applied by the router.
type RouterOptions struct {
	Logger       *zap.Logger
	Metrics      *metrics.Metrics
	QueryTimeout time.Duration
	// AdminGuard protects administrative routes when set.
	AdminGuard func(http.Handler) http.Handler
}

// NewRouter sets up HTTP routing.
func NewRouter(routes Routes, opts RouterOptions) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.AccessLog(opts.Logger, opts.Metrics))

	mount := func(router *mux.Router, path, method string, h http.Handler) {
		if h != nil {
			router.Handle(path, h).Methods(method)
		}
	}

	// long-lived streams skip the per-request timeout
	mount(r, "/v1/ingestion/stream", http.MethodGet, routes.Stream)
	mount(r, "/health", http.MethodGet, routes.Health)
	mount(r, "/metrics", http.MethodGet, routes.Metrics)

	// timeouts wrap each /v1 route; under a subrouter a method mismatch would answer 404
	scoped := func(h http.Handler) http.Handler {
		if h == nil || opts.QueryTimeout <= 0 {
			return h
		}
		return middleware.Timeout(opts.QueryTimeout)(h)
	}

	registerMapping := routes.RegisterMapping
	if registerMapping != nil && opts.AdminGuard != nil {
		registerMapping = middleware.Chain(registerMapping, opts.AdminGuard)
	}

	mount(r, "/v1/ingestion/vehicle", http.MethodPost, scoped(routes.IngestVehicle))
	mount(r, "/v1/ingestion/meter", http.MethodPost, scoped(routes.IngestMeter))
	mount(r, "/v1/ingestion/mapping", http.MethodPost, scoped(registerMapping))
	mount(r, "/v1/mappings/{vehicleId}", http.MethodGet, scoped(routes.GetMapping))
	mount(r, "/v1/analytics/{vehicleId}/summary", http.MethodGet, scoped(routes.Summary))
	mount(r, "/v1/vehicles/{vehicleId}/latest", http.MethodGet, scoped(routes.VehicleLatest))
	mount(r, "/v1/meters/{meterId}/latest", http.MethodGet, scoped(routes.MeterLatest))

	return middleware.Recover(opts.Logger)(r)
}
