package backend_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/santacall/santacall/internal/pkg/log"
	"github.com/santacall/santacall/internal/pkg/service/santacall/backend"
	"github.com/santacall/santacall/internal/pkg/service/santacall/model"
	"github.com/santacall/santacall/internal/pkg/utils/errors"
)

func testConfig() backend.Config {
	cfg := backend.NewConfig()
	cfg.Token = "secret"
	cfg.RetryCount = 0
	cfg.CallbackBaseURL = "https://santacall.local/"
	cfg.Render.URL = "https://render.local"
	cfg.Telephony.URL = "https://telephony.local"
	cfg.Telephony.BreakerFailures = 2
	cfg.Telephony.BreakerTimeout = time.Hour
	cfg.Billing.URL = "https://billing.local"
	return cfg
}

func TestRenderClient_SubmitRender(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := backend.NewRenderClient(log.NewNopLogger(), testConfig())
	transport := httpmock.NewMockTransport()
	client.Client().SetTransport(transport)

	transport.RegisterResponder(http.MethodPost, "https://render.local/v1/renders", func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "Bearer secret", req.Header.Get("Authorization"))
		body := map[string]any{}
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		assert.Equal(t, map[string]any{
			"orderId":     "order-1",
			"jobId":       "job-1",
			"attempt":     float64(1),
			"child":       map[string]any{"name": "Anna", "age": float64(6), "interests": []any{"space"}},
			"callbackUrl": "https://santacall.local/v1/callbacks/render",
		}, body)
		return httpmock.NewJsonResponse(http.StatusAccepted, map[string]any{"handle": "render-123"})
	})

	handle, err := client.SubmitRender(ctx, backend.RenderRequest{
		OrderID: "order-1",
		JobID:   "job-1",
		Attempt: 1,
		Child:   model.Child{Name: "Anna", Age: 6, Interests: []string{"space"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "render-123", handle)
}

func TestRenderClient_SubmitRender_Errors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := backend.NewRenderClient(log.NewNopLogger(), testConfig())
	transport := httpmock.NewMockTransport()
	client.Client().SetTransport(transport)

	// Client error is permanent
	transport.RegisterResponder(http.MethodPost, "https://render.local/v1/renders", httpmock.NewJsonResponderOrPanic(http.StatusBadRequest, map[string]any{"message": "unknown interest"}))
	_, err := client.SubmitRender(ctx, backend.RenderRequest{OrderID: "order-1"})
	if assert.Error(t, err) {
		assert.Equal(t, "submit render failed: status 400: unknown interest", err.Error())
		assert.True(t, backend.IsPermanent(err))
	}

	// Server error is transient
	transport.RegisterResponder(http.MethodPost, "https://render.local/v1/renders", httpmock.NewStringResponder(http.StatusServiceUnavailable, "unavailable"))
	_, err = client.SubmitRender(ctx, backend.RenderRequest{OrderID: "order-1"})
	if assert.Error(t, err) {
		assert.Equal(t, "submit render failed: status 503", err.Error())
		assert.False(t, backend.IsPermanent(err))
	}

	// Network error is transient
	transport.RegisterResponder(http.MethodPost, "https://render.local/v1/renders", httpmock.NewErrorResponder(errors.New("connection refused")))
	_, err = client.SubmitRender(ctx, backend.RenderRequest{OrderID: "order-1"})
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "connection refused")
		assert.False(t, backend.IsPermanent(err))
	}
}

func TestRenderClient_CancelRender(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := backend.NewRenderClient(log.NewNopLogger(), testConfig())
	transport := httpmock.NewMockTransport()
	client.Client().SetTransport(transport)

	transport.RegisterResponder(http.MethodDelete, "https://render.local/v1/renders/render-1", httpmock.NewStringResponder(http.StatusNoContent, ""))
	transport.RegisterResponder(http.MethodDelete, "https://render.local/v1/renders/render-2", httpmock.NewStringResponder(http.StatusNotFound, ""))
	assert.NoError(t, client.CancelRender(ctx, "render-1"))
	assert.NoError(t, client.CancelRender(ctx, "render-2"))
	assert.Equal(t, 2, transport.GetTotalCallCount())
}

func TestTelephonyClient_InitiateCall(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client, err := backend.NewTelephonyClient(log.NewNopLogger(), testConfig())
	require.NoError(t, err)
	transport := httpmock.NewMockTransport()
	client.Client().SetTransport(transport)

	transport.RegisterResponder(http.MethodPost, "https://telephony.local/v1/calls", func(req *http.Request) (*http.Response, error) {
		body := map[string]any{}
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		assert.Equal(t, "conv-1", body["conversationId"])
		assert.Equal(t, "https://santacall.local/v1/callbacks/telephony", body["callbackUrl"])
		return httpmock.NewJsonResponse(http.StatusCreated, map[string]any{"handle": "call-123"})
	})
	transport.RegisterResponder(http.MethodDelete, "https://telephony.local/v1/calls/call-123", httpmock.NewStringResponder(http.StatusOK, ""))

	handle, err := client.InitiateCall(ctx, "conv-1", []backend.Participant{{Role: "child", Name: "Anna"}})
	require.NoError(t, err)
	assert.Equal(t, "call-123", handle)
	assert.NoError(t, client.HangUp(ctx, handle))
}

func TestTelephonyClient_CircuitBreaker(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	logger := log.NewDebugLogger()
	client, err := backend.NewTelephonyClient(logger, testConfig())
	require.NoError(t, err)
	transport := httpmock.NewMockTransport()
	client.Client().SetTransport(transport)

	// Permanent errors do not open the breaker
	transport.RegisterResponder(http.MethodPost, "https://telephony.local/v1/calls", httpmock.NewStringResponder(http.StatusUnprocessableEntity, ""))
	for range 3 {
		_, err = client.InitiateCall(ctx, "conv-1", nil)
		assert.True(t, backend.IsPermanent(err))
	}
	assert.Equal(t, gobreaker.StateClosed, client.BreakerState())

	// Transient errors open the breaker
	transport.RegisterResponder(http.MethodPost, "https://telephony.local/v1/calls", httpmock.NewStringResponder(http.StatusBadGateway, ""))
	for range 2 {
		_, err = client.InitiateCall(ctx, "conv-1", nil)
		assert.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, client.BreakerState())
	assert.Equal(t, 5, transport.GetTotalCallCount())

	// Fail fast, no request is sent
	_, err = client.InitiateCall(ctx, "conv-1", nil)
	if assert.Error(t, err) {
		assert.ErrorIs(t, err, gobreaker.ErrOpenState)
		assert.False(t, backend.IsPermanent(err))
	}
	assert.Equal(t, 5, transport.GetTotalCallCount())
	logger.AssertJSONMessages(t, `{"level":"warn","message":"circuit breaker \"telephony\" changed state from \"closed\" to \"open\"","component":"telephony"}`)
}

func TestBillingClient_IsEntitled(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := backend.NewBillingClient(log.NewNopLogger(), testConfig())
	transport := httpmock.NewMockTransport()
	client.Client().SetTransport(transport)

	transport.RegisterResponder(http.MethodGet, "https://billing.local/v1/accounts/account-1/entitlement", httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]any{"entitled": true}))
	transport.RegisterResponder(http.MethodGet, "https://billing.local/v1/accounts/account-2/entitlement", httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]any{"entitled": false}))
	transport.RegisterResponder(http.MethodGet, "https://billing.local/v1/accounts/account-3/entitlement", httpmock.NewStringResponder(http.StatusNotFound, ""))
	transport.RegisterResponder(http.MethodGet, "https://billing.local/v1/accounts/account-4/entitlement", httpmock.NewStringResponder(http.StatusInternalServerError, ""))

	entitled, err := client.IsEntitled(ctx, "account-1")
	require.NoError(t, err)
	assert.True(t, entitled)

	entitled, err = client.IsEntitled(ctx, "account-2")
	require.NoError(t, err)
	assert.False(t, entitled)

	entitled, err = client.IsEntitled(ctx, "account-3")
	require.NoError(t, err)
	assert.False(t, entitled)

	_, err = client.IsEntitled(ctx, "account-4")
	assert.Error(t, err)
}

func TestNewClients(t *testing.T) {
	t.Parallel()

	clients, err := backend.NewClients(log.NewNopLogger(), testConfig())
	require.NoError(t, err)
	assert.NotNil(t, clients.Renderer)
	assert.NotNil(t, clients.Telephony)
	assert.NotNil(t, clients.Billing)
}
