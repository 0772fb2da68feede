package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pacer/internal/models"
	"pacer/internal/ratelimit"
	"pacer/internal/version"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMetricsProvider(t *testing.T) *Provider {
	t.Helper()
	metrics := models.MetricsConfig{Enabled: true, Path: "/metrics", Port: 9090}
	obs := models.ObservabilityConfig{
		ServiceName: "test",
		Tracing:     models.TracingConfig{Enabled: false},
	}

	provider, err := Setup(metrics, obs, version.Info{})
	require.NoError(t, err)
	t.Cleanup(func() { provider.Shutdown(context.Background()) })
	return provider
}

func TestNewMetricsServer_CustomPath(t *testing.T) {
	provider := setupMetricsProvider(t)

	ms := NewMetricsServer(9191, "/pacer/metrics", provider)
	assert.Equal(t, ":9191", ms.server.Addr)

	for path, want := range map[string]int{
		"/pacer/metrics": http.StatusOK,
		"/metrics":       http.StatusNotFound,
	} {
		rr := httptest.NewRecorder()
		ms.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, rr.Code, path)
	}
}

func TestMetricsServer_ShutdownStopsStart(t *testing.T) {
	ms := NewMetricsServer(0, "/metrics", setupMetricsProvider(t))

	errCh := make(chan error, 1)
	go func() { errCh <- ms.Start() }()
	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, ms.Shutdown(ctx))
	assert.ErrorIs(t, <-errCh, http.ErrServerClosed)
}

func TestMetricsServer_Health(t *testing.T) {
	ms := NewMetricsServer(9090, "/metrics", nil)

	rr := httptest.NewRecorder()
	ms.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, version.GetInfo().InstanceID, body["instance_id"])
}

func TestMetricsServer_ExposesLimiterMetrics(t *testing.T) {
	provider := setupMetricsProvider(t)

	limiter, err := ratelimit.New(1, 0)
	require.NoError(t, err)
	instrumented, err := NewInstrumentedLimiter(limiter, "exposed", provider.InstrumentOptions()...)
	require.NoError(t, err)

	now := time.Now()
	instrumented.Admit(now)
	instrumented.Admit(now)

	ms := NewMetricsServer(9090, "/metrics", provider)
	rr := httptest.NewRecorder()
	ms.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "ratelimit_admissions")
	assert.Contains(t, body, `limiter="exposed"`)
}

func TestMetricsServer_WithTracing(t *testing.T) {
	ms := NewMetricsServer(9090, "/metrics", nil, WithTracing("test"))

	rr := httptest.NewRecorder()
	ms.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestNewMetricsServer_NilProvider(t *testing.T) {
	ms := NewMetricsServer(9090, "/metrics", nil)
	assert.NotNil(t, ms)

	rr := httptest.NewRecorder()
	ms.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
