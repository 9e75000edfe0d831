package telemetry

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// ForTest records ended spans and collects metrics on demand, so tests can assert them.
type ForTest interface {
	Telemetry
	// EndedSpans returns the ended spans with the name, in the order they ended.
	EndedSpans(name string) tracetest.SpanStubs
	// Int64Sum returns the sum of all data points of the counter matching the attributes.
	Int64Sum(t *testing.T, name string, attrs ...attribute.KeyValue) int64
}

type forTest struct {
	*telemetry
	reader   *sdkmetric.ManualReader
	recorder *tracetest.SpanRecorder
}

func NewForTest(t *testing.T) ForTest {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tracerProvider := tracesdk.NewTracerProvider(tracesdk.WithSpanProcessor(recorder))
	reader := sdkmetric.NewManualReader()
	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	shutdown := shutdownAll(tracerProvider.Shutdown, meterProvider.Shutdown)
	t.Cleanup(func() {
		_ = shutdown(context.Background())
	})
	return &forTest{
		telemetry: &telemetry{
			tracerProvider: tracerProvider,
			meterProvider:  meterProvider,
			handler:        http.NotFoundHandler(),
			shutdown:       shutdown,
		},
		reader:   reader,
		recorder: recorder,
	}
}

func (v *forTest) EndedSpans(name string) tracetest.SpanStubs {
	var out tracetest.SpanStubs
	for _, s := range tracetest.SpanStubsFromReadOnlySpans(v.recorder.Ended()) {
		if s.Name == name {
			out = append(out, s)
		}
	}
	return out
}

func (v *forTest) Int64Sum(t *testing.T, name string, attrs ...attribute.KeyValue) int64 {
	t.Helper()

	var data metricdata.ResourceMetrics
	require.NoError(t, v.reader.Collect(context.Background(), &data))

	var total int64
	for _, scope := range data.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, point := range sum.DataPoints {
				if hasAttributes(point.Attributes, attrs) {
					total += point.Value
				}
			}
		}
	}
	return total
}

func hasAttributes(set attribute.Set, attrs []attribute.KeyValue) bool {
	for _, kv := range attrs {
		if v, ok := set.Value(kv.Key); !ok || v != kv.Value {
			return false
		}
	}
	return true
}
