package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"pacer/internal/version"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
)

// MetricsServer serves Prometheus metrics and a health check on a separate port.
type MetricsServer struct {
	server *http.Server
}

// ServerOption configures a MetricsServer.
type ServerOption func(r *mux.Router)

// WithTracing adds OpenTelemetry request tracing to every route.
func WithTracing(serviceName string) ServerOption {
	return func(r *mux.Router) {
		r.Use(otelmux.Middleware(serviceName))
	}
}

// NewMetricsServer creates a metrics HTTP server serving the Prometheus handler
// at the given path and a health check at /health on the given port.
func NewMetricsServer(port int, path string, provider *Provider, opts ...ServerOption) *MetricsServer {
	r := mux.NewRouter()
	for _, opt := range opts {
		opt(r)
	}

	r.HandleFunc("/health", healthHandler).Methods(http.MethodGet)
	if provider != nil && provider.registry != nil {
		r.Handle(path, promhttp.HandlerFor(provider.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	return &MetricsServer{
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		},
	}
}

// Handler returns the server's router.
func (ms *MetricsServer) Handler() http.Handler {
	return ms.server.Handler
}

// Start begins serving metrics in a blocking call.
// Returns http.ErrServerClosed on graceful shutdown.
func (ms *MetricsServer) Start() error {
	slog.Info("Starting metrics server", "addr", ms.server.Addr)
	return ms.server.ListenAndServe()
}

// Shutdown gracefully stops the metrics server.
func (ms *MetricsServer) Shutdown(ctx context.Context) error {
	return ms.server.Shutdown(ctx)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	info := version.GetInfo()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":      "ok",
		"version":     info.Version,
		"instance_id": info.InstanceID,
	})
}
