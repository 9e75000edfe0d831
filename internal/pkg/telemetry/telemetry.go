// Package telemetry provides the OpenTelemetry meter and tracer providers.
// Metrics are exported in the Prometheus format. Spans are recorded, an exporter is not configured.
package telemetry

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelPrometheus "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/santacall/santacall/internal/pkg/utils/errors"
)

const instrumentationName = "github.com/santacall/santacall"

type Telemetry interface {
	TracerProvider() trace.TracerProvider
	Tracer() Tracer
	MeterProvider() metric.MeterProvider
	Meter() Meter
	// MetricsHandler serves the metrics in the Prometheus text format.
	MetricsHandler() http.Handler
	Shutdown(ctx context.Context) error
}

type telemetry struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	handler        http.Handler
	shutdown       func(ctx context.Context) error
}

// New creates telemetry with the Prometheus exporter, each instance has its own registry.
func New() (Telemetry, error) {
	registry := prometheus.NewRegistry()
	exporter, err := otelPrometheus.New(otelPrometheus.WithRegisterer(registry), otelPrometheus.WithoutScopeInfo())
	if err != nil {
		return nil, errors.PrefixError(err, "cannot create prometheus exporter")
	}

	tracerProvider := tracesdk.NewTracerProvider()
	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	return &telemetry{
		tracerProvider: tracerProvider,
		meterProvider:  meterProvider,
		handler:        promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		shutdown:       shutdownAll(tracerProvider.Shutdown, meterProvider.Shutdown),
	}, nil
}

// NewNop returns telemetry which drops all spans and metrics.
func NewNop() Telemetry {
	return &telemetry{
		tracerProvider: tracenoop.NewTracerProvider(),
		meterProvider:  noop.NewMeterProvider(),
		handler:        http.NotFoundHandler(),
		shutdown:       func(context.Context) error { return nil },
	}
}

func (t *telemetry) TracerProvider() trace.TracerProvider {
	return t.tracerProvider
}

func (t *telemetry) Tracer() Tracer {
	return &tracer{tracer: t.tracerProvider.Tracer(instrumentationName)}
}

func (t *telemetry) MeterProvider() metric.MeterProvider {
	return t.meterProvider
}

func (t *telemetry) Meter() Meter {
	return &meter{meter: t.meterProvider.Meter(instrumentationName)}
}

func (t *telemetry) MetricsHandler() http.Handler {
	return t.handler
}

func (t *telemetry) Shutdown(ctx context.Context) error {
	return t.shutdown(ctx)
}

func shutdownAll(fns ...func(ctx context.Context) error) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		errs := errors.NewMultiError()
		for _, fn := range fns {
			if err := fn(ctx); err != nil {
				errs.Append(err)
			}
		}
		return errs.ErrorOrNil()
	}
}
