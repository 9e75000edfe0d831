package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/santacall/santacall/internal/pkg/log"
	"github.com/santacall/santacall/internal/pkg/service/common/httpserver/middleware"
)

func TestMiddlewares(t *testing.T) {
	t.Parallel()

	logger := log.NewDebugLogger()
	var requestID string
	handler := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		requestID, _ = middleware.RequestIDFromContext(req.Context())
		logger.Info(req.Context(), "handler called")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("OK"))
	})

	filter := middleware.PathFilter("/health-check")
	wrapped := middleware.Wrap(
		handler,
		middleware.RequestInfo(),
		middleware.AccessLog(logger, filter),
		middleware.OpenTelemetry(tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider(), filter),
	)

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/orders", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.NotEmpty(t, requestID)
	assert.Equal(t, requestID, rec.Header().Get(middleware.RequestIDHeader))

	// Filtered request is not logged
	rec = httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health-check", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	logger.AssertJSONMessages(t, `
{"level":"info","message":"handler called","http.request_id":"%s"}
{"level":"info","message":"req POST /v1/orders status=202","component":"http","http.status":202,"http.bytes":2,"http.request_id":"%s"}
{"level":"info","message":"handler called"}
`)
	assert.NotContains(t, logger.AllMessages(), "req GET /health-check")
}

func TestRequestIDFromContext_Missing(t *testing.T) {
	t.Parallel()
	_, ok := middleware.RequestIDFromContext(context.Background())
	assert.False(t, ok)
}
