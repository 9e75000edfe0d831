package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/santacall/santacall/internal/pkg/utils/errors"
)

func TestTelemetry_Prometheus(t *testing.T) {
	t.Parallel()

	tel, err := New()
	require.NoError(t, err)
	defer func() { assert.NoError(t, tel.Shutdown(context.Background())) }()

	counter := tel.Meter().Counter("santacall.orders.booked", "Booked orders.", "{order}")
	counter.Add(context.Background(), 2, metric.WithAttributes(attribute.String("order.type", "gift")))

	rec := httptest.NewRecorder()
	tel.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(body), `santacall_orders_booked_total`)
	assert.Contains(t, string(body), `="gift"} 2`)
}

func TestTelemetry_ForTest(t *testing.T) {
	t.Parallel()

	tel := NewForTest(t)
	counter := tel.Meter().Counter("calls", "", "")
	counter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("state", "ended")))
	counter.Add(context.Background(), 3, metric.WithAttributes(attribute.String("state", "missed")))

	assert.Equal(t, int64(4), tel.Int64Sum(t, "calls"))
	assert.Equal(t, int64(3), tel.Int64Sum(t, "calls", attribute.String("state", "missed")))
	assert.Equal(t, int64(0), tel.Int64Sum(t, "unknown"))
}

func TestTelemetry_Nop(t *testing.T) {
	t.Parallel()

	tel := NewNop()
	tel.Meter().UpDownCounter("live", "", "").Add(context.Background(), 1)
	tel.Meter().Histogram("duration", "", "s").Record(context.Background(), 1.5)
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestTelemetry_Tracer(t *testing.T) {
	t.Parallel()

	tel := NewForTest(t)

	ctx, parent := tel.Tracer().Start(context.Background(), "santacall.book")
	_, child := tel.Tracer().Start(ctx, "santacall.submit")
	child.SetAttributes(attribute.String("order.id", "order-1"))
	err := errors.New("render backend is unavailable")
	child.End(&err)
	var noErr error
	parent.End(&noErr)

	// Span without a result
	_, other := tel.Tracer().Start(context.Background(), "santacall.book")
	other.End(nil)

	books := tel.EndedSpans("santacall.book")
	require.Len(t, books, 2)
	assert.Equal(t, codes.Ok, books[0].Status.Code)
	assert.Equal(t, codes.Unset, books[1].Status.Code)

	submits := tel.EndedSpans("santacall.submit")
	require.Len(t, submits, 1)
	assert.Equal(t, codes.Error, submits[0].Status.Code)
	assert.Equal(t, "render backend is unavailable", submits[0].Status.Description)
	assert.Equal(t, books[0].SpanContext.SpanID(), submits[0].Parent.SpanID())
	assert.Contains(t, submits[0].Attributes, attribute.String("order.id", "order-1"))
	assert.Empty(t, tel.EndedSpans("unknown"))
}

func TestTelemetry_NewTracer(t *testing.T) {
	t.Parallel()

	tel, err := New()
	require.NoError(t, err)

	_, span := tel.Tracer().Start(context.Background(), "santacall.book")
	span.End(nil)
	assert.NoError(t, tel.Shutdown(context.Background()))

	_, span = NewNop().Tracer().Start(context.Background(), "santacall.book")
	span.End(nil)
}
