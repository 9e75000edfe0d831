package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const operationName = "http.server.request"

// OpenTelemetry middleware records the standard HTTP server metrics and opens the request span.
// The span name is the matched chi route pattern, so IDs in the path do not increase cardinality.
func OpenTelemetry(tp trace.TracerProvider, mp metric.MeterProvider, filters ...FilterFn) Middleware {
	return otelhttp.NewMiddleware(
		operationName,
		otelhttp.WithTracerProvider(tp),
		otelhttp.WithMeterProvider(mp),
		otelhttp.WithFilter(func(req *http.Request) bool {
			return accepted(req, filters)
		}),
		otelhttp.WithSpanNameFormatter(func(_ string, req *http.Request) string {
			if rctx := chi.RouteContext(req.Context()); rctx != nil && rctx.RoutePattern() != "" {
				return req.Method + " " + rctx.RoutePattern()
			}
			return req.Method
		}),
	)
}
