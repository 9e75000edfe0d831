package fulfillment_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	svcErrors "github.com/santacall/santacall/internal/pkg/service/common/errors"
	"github.com/santacall/santacall/internal/pkg/service/common/utctime"
	"github.com/santacall/santacall/internal/pkg/service/santacall/backend"
	"github.com/santacall/santacall/internal/pkg/service/santacall/config"
	"github.com/santacall/santacall/internal/pkg/service/santacall/dependencies"
	"github.com/santacall/santacall/internal/pkg/service/santacall/fulfillment"
	"github.com/santacall/santacall/internal/pkg/service/santacall/model"
	"github.com/santacall/santacall/internal/pkg/service/santacall/timewindow"
)

// The mocked clock starts at Monday 2024-12-02 09:00 UTC.
const tuesdaySlot = "2024-12-03T17:00:00.000Z"

type testEnv struct {
	d   dependencies.Mocked
	orc *fulfillment.Orchestrator
}

func setup(t *testing.T, opts ...dependencies.MockedOption) *testEnv {
	t.Helper()
	d := dependencies.NewMockedServiceScope(t, opts...)
	return &testEnv{d: d, orc: fulfillment.New(d)}
}

func spec(accountID string) model.OrderSpec {
	return model.OrderSpec{
		Type:      model.OrderTypeOneTime,
		Child:     model.Child{Name: "Anna", Age: 6, Interests: []string{"space", "trains"}},
		Requester: model.Requester{AccountID: accountID, OrganizationID: "org-1"},
		Slot:      utctime.MustParse(tuesdaySlot).Time(),
	}
}

func (e *testEnv) order(t *testing.T, orderID string) model.Order {
	t.Helper()
	order, err := e.orc.Get(context.Background(), orderID)
	require.NoError(t, err)
	return order
}

func (e *testEnv) renderCompleted(t *testing.T, event backend.RenderCompleted) {
	t.Helper()
	require.NoError(t, e.orc.VideoJobs().HandleRenderCompleted(context.Background(), event))
}

func (e *testEnv) callState(t *testing.T, handle string, state backend.CallState) {
	t.Helper()
	event := backend.CallStateChanged{Handle: handle, State: state, At: e.d.Clock().Now()}
	require.NoError(t, e.orc.Conversations().HandleCallStateChanged(context.Background(), event))
}

// bookScheduled books the order and finishes its video.
func (e *testEnv) bookScheduled(t *testing.T, accountID string) model.Order {
	t.Helper()
	order, err := e.orc.Book(context.Background(), spec(accountID))
	require.NoError(t, err)
	e.renderCompleted(t, backend.RenderCompleted{Handle: e.d.TestRenderer().LastHandle(), Outcome: backend.RenderReady, AssetRef: "asset"})
	order = e.order(t, order.OrderID)
	require.Equal(t, model.OrderScheduled, order.State)
	return order
}

// waitForCall advances the clock to the slot and waits until the conversation is attached to the order.
func (e *testEnv) waitForCall(t *testing.T, orderID string) model.Conversation {
	t.Helper()
	e.d.FakeClock().Advance(e.order(t, orderID).Slot.Sub(e.d.Clock().Now()))
	assert.Eventually(t, func() bool {
		return e.order(t, orderID).ConversationID != ""
	}, 5*time.Second, time.Millisecond)
	conv, found := e.d.Repository().ConversationOf(orderID)
	require.True(t, found)
	return conv
}

func TestOrchestrator_Completed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := setup(t)
	clk := e.d.FakeClock()

	// Booking
	order, err := e.orc.Book(ctx, spec("account-1"))
	require.NoError(t, err)
	assert.Equal(t, model.OrderPending, order.State)
	assert.NotEmpty(t, order.VideoJobID)
	assert.Equal(t, 1, e.orc.InFlight())
	require.Len(t, e.d.TestRenderer().Submitted(), 1)
	assert.Equal(t, order.OrderID, e.d.TestRenderer().Submitted()[0].OrderID)

	// Video is ready, the order is scheduled
	e.renderCompleted(t, backend.RenderCompleted{Handle: "render-1", Outcome: backend.RenderReady, AssetRef: "s3://videos/1.mp4"})
	order = e.order(t, order.OrderID)
	assert.Equal(t, model.OrderScheduled, order.State)
	assert.Equal(t, clk.Now(), *order.ScheduledAt)

	// Nothing happens before the slot
	clk.Advance(order.Slot.Sub(clk.Now()) - time.Minute)
	assert.Empty(t, e.d.TestTelephony().Calls())

	// The slot arrives, the call is started
	clk.Advance(time.Minute)
	assert.Eventually(t, func() bool {
		return e.order(t, order.OrderID).ConversationID != ""
	}, 5*time.Second, time.Millisecond)
	calls := e.d.TestTelephony().Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, e.order(t, order.OrderID).ConversationID, calls[0].ConversationID)
	assert.Equal(t, utctime.MustParse(tuesdaySlot).Time(), clk.Now())

	// The call connects
	e.callState(t, "call-1", backend.CallConnected)
	assert.Equal(t, model.OrderInProgress, e.order(t, order.OrderID).State)

	// The call ends after the minimal duration
	clk.Advance(5 * time.Minute)
	e.callState(t, "call-1", backend.CallEnded)
	order = e.order(t, order.OrderID)
	assert.Equal(t, model.OrderCompleted, order.State)
	assert.Nil(t, order.Failure)
	assert.NotNil(t, order.ScheduledAt)
	assert.NotNil(t, order.InProgressAt)
	assert.NotNil(t, order.CompletedAt)
	assert.Equal(t, 0, e.orc.InFlight())

	assert.Equal(t, int64(1), e.d.TestTelemetry().Int64Sum(t, "santacall.orders.booked", attribute.String("type", "oneTime")))
	assert.Equal(t, int64(1), e.d.TestTelemetry().Int64Sum(t, "santacall.orders.finished", attribute.String("state", "completed")))
	e.d.DebugLogger().AssertJSONMessages(t, `
{"level":"info","message":"order booked for 2024-12-03T17:00:00Z","component":"fulfillment","order.id":"%s"}
{"level":"info","message":"order scheduled, the call starts in 32h0m0s","component":"fulfillment"}
{"level":"info","message":"slot arrived, starting the call","component":"fulfillment"}
{"level":"info","message":"order in progress","component":"fulfillment"}
{"level":"info","message":"order completed","component":"fulfillment"}
`)
}

func TestOrchestrator_RenderExhausted(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := setup(t)
	clk := e.d.FakeClock()

	order, err := e.orc.Book(ctx, spec("account-1"))
	require.NoError(t, err)

	for i, handle := range []string{"render-1", "render-2", "render-3"} {
		if i > 0 {
			// Wait for the retry
			clk.Advance(time.Duration(i) * 30 * time.Second)
			assert.Eventually(t, func() bool {
				job, err := e.d.Repository().VideoJobByHandle(handle)
				return err == nil && job.State == model.VideoJobRendering
			}, 5*time.Second, time.Millisecond)
		}
		e.renderCompleted(t, backend.RenderCompleted{Handle: handle, Outcome: backend.RenderFailed, FailureReason: "gpu crashed", Retryable: true})
	}

	order = e.order(t, order.OrderID)
	assert.Equal(t, model.OrderFailed, order.State)
	assert.Equal(t, &model.Failure{Reason: model.FailureRenderFailed, Message: "render failed: gpu crashed"}, order.Failure)
	assert.Len(t, e.d.TestRenderer().Submitted(), 3)
	assert.Equal(t, 0, e.orc.InFlight())

	// No conversation is ever created
	clk.Advance(48 * time.Hour)
	_, found := e.d.Repository().ConversationOf(order.OrderID)
	assert.False(t, found)
	assert.Empty(t, e.d.TestTelephony().Calls())

	assert.Equal(t, int64(1), e.d.TestTelemetry().Int64Sum(t, "santacall.orders.finished", attribute.String("reason", "renderFailed")))
}

func TestOrchestrator_CancelPending(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := setup(t)

	order, err := e.orc.Book(ctx, spec("account-1"))
	require.NoError(t, err)

	order, err = e.orc.Cancel(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderCancelled, order.State)
	assert.NotNil(t, order.CancelledAt)
	assert.Equal(t, 0, e.orc.InFlight())

	// The render is abandoned
	job, err := e.d.Repository().VideoJob(order.VideoJobID)
	require.NoError(t, err)
	assert.Equal(t, model.VideoJobFailed, job.State)
	assert.Equal(t, model.FailureReasonAbandoned, job.LastFailureReason)
	assert.Equal(t, []string{"render-1"}, e.d.TestRenderer().Cancelled())

	// Late callback has no effect
	e.renderCompleted(t, backend.RenderCompleted{Handle: "render-1", Outcome: backend.RenderReady})
	assert.Equal(t, model.OrderCancelled, e.order(t, order.OrderID).State)

	// Cancel of a cancelled order is a conflict
	_, err = e.orc.Cancel(ctx, order.OrderID)
	assert.Equal(t, 409, svcErrors.HTTPCodeFrom(err))
}

func TestOrchestrator_CancelScheduled(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := setup(t)
	clk := e.d.FakeClock()

	order := e.bookScheduled(t, "account-1")

	order, err := e.orc.Cancel(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderCancelled, order.State)

	// The slot timer is disarmed
	clk.Advance(48 * time.Hour)
	time.Sleep(10 * time.Millisecond)
	assert.Empty(t, e.d.TestTelephony().Calls())
	_, found := e.d.Repository().ConversationOf(order.OrderID)
	assert.False(t, found)
}

func TestOrchestrator_CancelRinging(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := setup(t)

	order := e.bookScheduled(t, "account-1")
	conv := e.waitForCall(t, order.OrderID)
	assert.Equal(t, model.ConversationRinging, conv.State)

	order, err := e.orc.Cancel(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderCancelled, order.State)
	assert.Equal(t, []string{"call-1"}, e.d.TestTelephony().HungUp())

	conv, _ = e.d.Repository().ConversationOf(order.OrderID)
	assert.Equal(t, model.ConversationFailed, conv.State)
	assert.Equal(t, model.FailureCancelled, conv.Failure.Reason)
	assert.Equal(t, int64(0), e.orc.Conversations().Live())
}

func TestOrchestrator_CancelInProgress(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := setup(t)

	order := e.bookScheduled(t, "account-1")
	e.waitForCall(t, order.OrderID)
	e.callState(t, "call-1", backend.CallConnected)
	require.Equal(t, model.OrderInProgress, e.order(t, order.OrderID).State)

	_, err := e.orc.Cancel(ctx, order.OrderID)
	var transitionErr *model.InvalidTransitionError
	if assert.ErrorAs(t, err, &transitionErr) {
		assert.Equal(t, model.OrderInProgress, transitionErr.State)
		assert.Equal(t, model.OrderEventCancel, transitionErr.Event)
	}
	assert.Equal(t, 409, svcErrors.HTTPCodeFrom(err))

	// The call continues
	assert.Equal(t, model.OrderInProgress, e.order(t, order.OrderID).State)
	conv, _ := e.d.Repository().ConversationOf(order.OrderID)
	assert.Equal(t, model.ConversationConnected, conv.State)
	assert.Empty(t, e.d.TestTelephony().HungUp())
}

func TestOrchestrator_CallOutcomes(t *testing.T) {
	t.Parallel()

	t.Run("missed", func(t *testing.T) {
		t.Parallel()
		e := setup(t)
		order := e.bookScheduled(t, "account-1")
		e.waitForCall(t, order.OrderID)

		e.d.FakeClock().Advance(45 * time.Second)
		assert.Eventually(t, func() bool {
			return e.order(t, order.OrderID).State == model.OrderFailed
		}, 5*time.Second, time.Millisecond)
		assert.Equal(t, model.FailureCallMissed, e.order(t, order.OrderID).Failure.Reason)
	})

	t.Run("too short", func(t *testing.T) {
		t.Parallel()
		e := setup(t)
		order := e.bookScheduled(t, "account-1")
		e.waitForCall(t, order.OrderID)

		e.callState(t, "call-1", backend.CallConnected)
		e.d.FakeClock().Advance(10 * time.Second)
		e.callState(t, "call-1", backend.CallEnded)
		order = e.order(t, order.OrderID)
		assert.Equal(t, model.OrderFailed, order.State)
		assert.Equal(t, model.FailureCallTooShort, order.Failure.Reason)
	})

	t.Run("call failed", func(t *testing.T) {
		t.Parallel()
		e := setup(t)
		order := e.bookScheduled(t, "account-1")
		e.waitForCall(t, order.OrderID)

		require.NoError(t, e.orc.Conversations().HandleCallStateChanged(context.Background(), backend.CallStateChanged{
			Handle: "call-1",
			State:  backend.CallFailed,
			Reason: "network error",
		}))
		order = e.order(t, order.OrderID)
		assert.Equal(t, model.OrderFailed, order.State)
		assert.Equal(t, &model.Failure{Reason: model.FailureCallFailed, Message: "network error"}, order.Failure)
	})
}

func TestOrchestrator_CapacityExhausted(t *testing.T) {
	t.Parallel()

	e := setup(t, dependencies.WithConfig(func(cfg *config.Config) {
		cfg.Conversation.MaxConcurrent = 1
	}))
	clk := e.d.FakeClock()

	first := e.bookScheduled(t, "account-1")
	second := e.bookScheduled(t, "account-2")

	// Both slot timers fire, only one call gets the line
	clk.Advance(first.Slot.Sub(clk.Now()))
	assert.Eventually(t, func() bool {
		conv, err := e.d.Repository().ConversationByHandle("call-1")
		return err == nil && conv.State == model.ConversationRinging && e.orc.Conversations().Waiting() == 1
	}, 5*time.Second, time.Millisecond)

	admitted, err := e.d.Repository().ConversationByHandle("call-1")
	require.NoError(t, err)
	waiting := first.OrderID
	if admitted.OrderID == first.OrderID {
		waiting = second.OrderID
	}

	// Keep the line busy
	e.callState(t, "call-1", backend.CallConnected)

	clk.Advance(2 * time.Minute)
	assert.Eventually(t, func() bool {
		return e.order(t, waiting).State == model.OrderFailed
	}, 5*time.Second, time.Millisecond)
	assert.Equal(t, model.FailureCapacityExhausted, e.order(t, waiting).Failure.Reason)
	assert.Equal(t, model.OrderInProgress, e.order(t, admitted.OrderID).State)
	assert.Len(t, e.d.TestTelephony().Calls(), 1)
}

func TestOrchestrator_BookRejected(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := setup(t)

	// Not entitled
	e.d.TestBilling().Deny("account-denied")
	_, err := e.orc.Book(ctx, spec("account-denied"))
	if assert.Error(t, err) {
		assert.Equal(t, `account "account-denied" is not entitled to book a call`, err.Error())
		assert.Equal(t, 403, svcErrors.HTTPCodeFrom(err))
	}

	// Too soon
	tooSoon := spec("account-1")
	tooSoon.Slot = utctime.MustParse("2024-12-02T17:00:00.000Z").Time()
	_, err = e.orc.Book(ctx, tooSoon)
	var rejected *timewindow.RejectedError
	if assert.ErrorAs(t, err, &rejected) {
		assert.Equal(t, timewindow.ReasonTooSoon, rejected.Reason)
		assert.Equal(t, 422, svcErrors.HTTPCodeFrom(err))
	}

	// Missing gift
	gift := spec("account-1")
	gift.Type = model.OrderTypeGift
	_, err = e.orc.Book(ctx, gift)
	if assert.Error(t, err) {
		assert.Equal(t, `gift details are required for the "gift" order type`, err.Error())
		assert.Equal(t, 400, svcErrors.HTTPCodeFrom(err))
	}

	// Not entitled and too soon, the slot is rejected without the entitlement check
	deniedTooSoon := spec("account-denied")
	deniedTooSoon.Slot = tooSoon.Slot
	_, err = e.orc.Book(ctx, deniedTooSoon)
	if assert.ErrorAs(t, err, &rejected) {
		assert.Equal(t, timewindow.ReasonTooSoon, rejected.Reason)
		assert.Equal(t, 422, svcErrors.HTTPCodeFrom(err))
	}
	assert.Equal(t, []string{"account-denied"}, e.d.TestBilling().Checked())

	assert.Empty(t, e.orc.List(ctx, fulfillment.ListFilter{}))
	assert.Empty(t, e.d.TestRenderer().Submitted())

	// Each rejected booking is traced
	spans := e.d.TestTelemetry().EndedSpans("santacall.fulfillment.Book")
	require.Len(t, spans, 4)
	for _, span := range spans {
		assert.Equal(t, codes.Error, span.Status.Code)
	}
}

func TestOrchestrator_Reschedule(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := setup(t)

	order, err := e.orc.Book(ctx, spec("account-1"))
	require.NoError(t, err)

	// Wednesday 18:30 in UTC+01:00
	slot := utctime.MustParse("2024-12-04T17:30:00.000Z").Time()
	order, err = e.orc.Reschedule(ctx, order.OrderID, slot, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, model.OrderPending, order.State)
	assert.Equal(t, slot, order.Slot)
	assert.Equal(t, time.Hour, order.LocalOffset)

	// Outside of the window
	_, err = e.orc.Reschedule(ctx, order.OrderID, slot.Add(3*time.Hour), time.Hour)
	var rejected *timewindow.RejectedError
	if assert.ErrorAs(t, err, &rejected) {
		assert.Equal(t, timewindow.ReasonOutsideWindow, rejected.Reason)
	}

	// The slot is immutable once the order is scheduled
	e.renderCompleted(t, backend.RenderCompleted{Handle: "render-1", Outcome: backend.RenderReady})
	_, err = e.orc.Reschedule(ctx, order.OrderID, slot.Add(time.Hour), time.Hour)
	assert.Equal(t, 409, svcErrors.HTTPCodeFrom(err))
	assert.Equal(t, slot, e.order(t, order.OrderID).Slot)
}

func TestOrchestrator_Refund(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := setup(t)

	order := e.bookScheduled(t, "account-1")

	// Only a completed order can be refunded
	_, err := e.orc.Refund(ctx, order.OrderID)
	assert.Equal(t, 409, svcErrors.HTTPCodeFrom(err))

	e.waitForCall(t, order.OrderID)
	e.callState(t, "call-1", backend.CallConnected)
	e.d.FakeClock().Advance(time.Minute)
	e.callState(t, "call-1", backend.CallEnded)

	order, err = e.orc.Refund(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderRefunded, order.State)
	assert.NotNil(t, order.RefundedAt)

	_, err = e.orc.Refund(ctx, "missing")
	assert.Equal(t, 404, svcErrors.HTTPCodeFrom(err))
}

func TestOrchestrator_List(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := setup(t)

	first, err := e.orc.Book(ctx, spec("account-1"))
	require.NoError(t, err)
	e.d.FakeClock().Advance(time.Second)
	second, err := e.orc.Book(ctx, spec("account-2"))
	require.NoError(t, err)
	e.d.FakeClock().Advance(time.Second)
	third, err := e.orc.Book(ctx, spec("account-1"))
	require.NoError(t, err)
	_, err = e.orc.Cancel(ctx, third.OrderID)
	require.NoError(t, err)

	ids := func(orders []model.Order) (out []string) {
		for _, order := range orders {
			out = append(out, order.OrderID)
		}
		return out
	}

	assert.Equal(t, []string{first.OrderID, second.OrderID, third.OrderID}, ids(e.orc.List(ctx, fulfillment.ListFilter{})))
	assert.Equal(t, []string{first.OrderID, third.OrderID}, ids(e.orc.List(ctx, fulfillment.ListFilter{AccountID: "account-1"})))
	assert.Equal(t, []string{third.OrderID}, ids(e.orc.List(ctx, fulfillment.ListFilter{AccountID: "account-1", State: model.OrderCancelled})))
	assert.Empty(t, e.orc.List(ctx, fulfillment.ListFilter{OrganizationID: "org-2"}))
}
