// Package conversation executes the live call of an order at its slot.
//
// The number of concurrent live calls is limited. A call waiting for a free line
// fails after the grace period, it never blocks the schedule indefinitely.
// The line is held from the admission until the conversation is terminal.
package conversation

import (
	"context"
	"sync"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/atomic"
	"golang.org/x/sync/semaphore"

	"github.com/santacall/santacall/internal/pkg/ctxattr"
	"github.com/santacall/santacall/internal/pkg/idgenerator"
	"github.com/santacall/santacall/internal/pkg/log"
	svcErrors "github.com/santacall/santacall/internal/pkg/service/common/errors"
	"github.com/santacall/santacall/internal/pkg/service/common/servicectx"
	"github.com/santacall/santacall/internal/pkg/service/santacall/backend"
	"github.com/santacall/santacall/internal/pkg/service/santacall/model"
	"github.com/santacall/santacall/internal/pkg/service/santacall/repository"
	"github.com/santacall/santacall/internal/pkg/telemetry"
	"github.com/santacall/santacall/internal/pkg/utils/errors"
)

// Listener is notified about the progress of a conversation.
// A conversation aborted by Abort is not reported.
type Listener interface {
	ConversationConnected(ctx context.Context, conv model.Conversation)
	ConversationFinished(ctx context.Context, conv model.Conversation)
}

type Coordinator struct {
	config    Config
	logger    log.Logger
	tracer    telemetry.Tracer
	clock     clockwork.Clock
	repo      *repository.Repository
	telephony backend.Telephony
	listener  Listener
	ctx       context.Context

	lines *semaphore.Weighted

	lock  sync.Mutex
	calls map[string]*call

	waiting    *atomic.Int64
	live       *atomic.Int64
	admissions metric.Int64Counter
	liveGauge  metric.Int64UpDownCounter
}

// call is the in-memory state of a non-terminal conversation.
type call struct {
	admitted   bool
	cancelWait context.CancelFunc
	ringTimer  clockwork.Timer
}

type dependencies interface {
	Logger() log.Logger
	Clock() clockwork.Clock
	Process() *servicectx.Process
	Telemetry() telemetry.Telemetry
	Repository() *repository.Repository
	Telephony() backend.Telephony
}

var errNoop = errors.New("no-op")

func New(d dependencies, cfg Config, listener Listener) *Coordinator {
	meter := d.Telemetry().Meter()
	c := &Coordinator{
		config:     cfg,
		logger:     d.Logger().WithComponent("conversation"),
		tracer:     d.Telemetry().Tracer(),
		clock:      d.Clock(),
		repo:       d.Repository(),
		telephony:  d.Telephony(),
		listener:   listener,
		ctx:        d.Process().Ctx(),
		lines:      semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		calls:      make(map[string]*call),
		waiting:    atomic.NewInt64(0),
		live:       atomic.NewInt64(0),
		admissions: meter.Counter("santacall.conversation.admissions", "Admissions of live calls by result.", "{call}"),
		liveGauge:  meter.UpDownCounter("santacall.conversation.live", "Live calls holding a line.", "{call}"),
	}

	d.Process().OnShutdown(func(ctx context.Context) {
		c.lock.Lock()
		defer c.lock.Unlock()
		for _, call := range c.calls {
			call.cancelWait()
			if call.ringTimer != nil {
				call.ringTimer.Stop()
			}
		}
		c.logger.Info(ctx, "conversation timers stopped")
	})

	return c
}

// Waiting returns the number of calls waiting for a free line.
func (c *Coordinator) Waiting() int64 {
	return c.waiting.Load()
}

// Live returns the number of calls holding a line.
func (c *Coordinator) Live() int64 {
	return c.live.Load()
}

// Start creates the conversation of the order and initiates the call, when a line is free.
// It blocks until the call is initiated, or the admission fails. The failure is reported to the listener.
func (c *Coordinator) Start(ctx context.Context, order model.Order) (conv model.Conversation, err error) {
	ctx, span := c.tracer.Start(ctx, "santacall.conversation.Start", trace.WithAttributes(attribute.String("order.id", order.OrderID)))
	defer span.End(&err)

	conv, err = c.start(ctx, order)
	if err == nil {
		span.SetAttributes(
			attribute.String("conversation.id", conv.ConversationID),
			attribute.String("conversation.state", string(conv.State)),
		)
	}
	return conv, err
}

func (c *Coordinator) start(ctx context.Context, order model.Order) (model.Conversation, error) {
	now := c.clock.Now()
	conv := model.NewConversation(now, idgenerator.ConversationID(), order.OrderID, order.Slot)
	if err := c.repo.CreateConversation(conv); err != nil {
		return model.Conversation{}, err
	}
	ctx = convCtx(ctx, conv)
	conversationID := conv.ConversationID

	waitCtx, cancelWait := context.WithCancel(c.ctx)
	defer cancelWait()

	c.lock.Lock()
	c.calls[conv.ConversationID] = &call{cancelWait: cancelWait}
	c.lock.Unlock()

	if !c.acquire(ctx, waitCtx, cancelWait) {
		if waitCtx.Err() != nil && c.ctx.Err() == nil && !c.isFinished(conv.ConversationID) {
			c.admissions.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "rejected")))
			c.logger.Warnf(ctx, `no free line within %s`, c.config.AdmissionGracePeriod)
			c.fail(ctx, conv.ConversationID, model.FailureCapacityExhausted, "no free line for the call")
		}
		return c.repo.Conversation(conversationID)
	}

	// Line is acquired, check the conversation has not been aborted meanwhile
	c.lock.Lock()
	state, found := c.calls[conv.ConversationID]
	if found {
		state.admitted = true
		c.live.Inc()
		c.liveGauge.Add(ctx, 1)
	}
	c.lock.Unlock()
	if !found {
		c.lines.Release(1)
		return c.repo.Conversation(conversationID)
	}
	c.admissions.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "admitted")))

	handle, err := c.telephony.InitiateCall(ctx, conv.ConversationID, []backend.Participant{
		{Role: "host", Name: c.config.HostName},
		{Role: "child", Name: order.Child.Name},
	})
	if err != nil {
		c.logger.Warnf(ctx, `cannot initiate call: %s`, err)
		c.fail(ctx, conv.ConversationID, model.FailureCallFailed, err.Error())
		return c.repo.Conversation(conversationID)
	}

	conv, err = c.repo.UpdateConversation(conversationID, func(conv model.Conversation) (model.Conversation, error) {
		if conv.State != model.ConversationScheduled {
			return model.Conversation{}, errNoop
		}
		conv.CallHandle = handle
		now := c.clock.Now()
		return conv.WithState(now, now, model.ConversationRinging)
	})
	if errors.Is(err, errNoop) {
		// Aborted during the initiation
		c.hangUp(ctx, handle)
		return c.repo.Conversation(conversationID)
	} else if err != nil {
		return model.Conversation{}, err
	}

	c.logger.With(attribute.String("call.handle", handle)).Info(ctx, "call initiated, ringing")
	c.armRingTimeout(conv)
	return conv, nil
}

// HandleCallStateChanged applies the telephony callback.
// Duplicate and outdated callbacks are ignored.
func (c *Coordinator) HandleCallStateChanged(ctx context.Context, event backend.CallStateChanged) error {
	conv, err := c.repo.ConversationByHandle(event.Handle)
	if err != nil {
		return err
	}
	ctx = convCtx(ctx, conv)

	at := event.At
	if at.IsZero() {
		at = c.clock.Now()
	}

	var update func(conv model.Conversation) (model.Conversation, error)
	switch event.State {
	case backend.CallRinging:
		update = func(conv model.Conversation) (model.Conversation, error) {
			if conv.State != model.ConversationScheduled {
				return model.Conversation{}, errNoop
			}
			return conv.WithState(c.clock.Now(), at, model.ConversationRinging)
		}
	case backend.CallConnected:
		update = func(conv model.Conversation) (model.Conversation, error) {
			if conv.State != model.ConversationRinging {
				return model.Conversation{}, errNoop
			}
			return conv.WithState(c.clock.Now(), at, model.ConversationConnected)
		}
	case backend.CallEnded:
		update = func(conv model.Conversation) (model.Conversation, error) {
			switch conv.State {
			case model.ConversationRinging:
				// Hung up before answering
				return conv.WithState(c.clock.Now(), at, model.ConversationMissed)
			case model.ConversationConnected:
				conv, err := conv.WithState(c.clock.Now(), at, model.ConversationEnded)
				if err == nil && conv.Duration < c.config.MinConnectedDuration {
					conv.Failure = &model.Failure{Reason: model.FailureCallTooShort, Message: "call ended after " + conv.Duration.String()}
				}
				return conv, err
			default:
				return model.Conversation{}, errNoop
			}
		}
	case backend.CallFailed:
		update = func(conv model.Conversation) (model.Conversation, error) {
			if conv.State.IsTerminal() {
				return model.Conversation{}, errNoop
			}
			reason := event.Reason
			if reason == "" {
				reason = "call failed"
			}
			return conv.Fail(c.clock.Now(), model.FailureCallFailed, reason)
		}
	default:
		return svcErrors.NewBadRequestError(errors.Errorf(`unexpected call state "%s"`, event.State))
	}

	updated, err := c.repo.UpdateConversation(conv.ConversationID, update)
	if errors.Is(err, errNoop) {
		c.logger.Debugf(ctx, `ignored call state "%s" of the conversation in state "%s"`, event.State, conv.State)
		return nil
	} else if err != nil {
		return err
	}

	c.logger.Infof(ctx, `call state changed to "%s"`, updated.State)
	switch {
	case updated.State == model.ConversationConnected:
		c.stopRingTimer(updated.ConversationID)
		c.listener.ConversationConnected(ctx, updated)
	case updated.State.IsTerminal():
		c.finish(ctx, updated.ConversationID)
		c.listener.ConversationFinished(ctx, updated)
	}
	return nil
}

// Abort stops the conversation of the order, if it is not connected yet.
// A waiting call gives up the admission, a ringing call is hung up.
func (c *Coordinator) Abort(ctx context.Context, orderID string) error {
	conv, found := c.repo.ConversationOf(orderID)
	if !found {
		return nil
	}
	ctx = convCtx(ctx, conv)

	updated, err := c.repo.UpdateConversation(conv.ConversationID, func(conv model.Conversation) (model.Conversation, error) {
		switch {
		case conv.State == model.ConversationConnected:
			return model.Conversation{}, svcErrors.NewConflictError(
				"conversationConnected",
				errors.Errorf(`conversation "%s" is connected, it cannot be aborted`, conv.ConversationID),
			)
		case conv.State.IsTerminal():
			return model.Conversation{}, errNoop
		default:
			return conv.Fail(c.clock.Now(), model.FailureCancelled, "aborted")
		}
	})
	if errors.Is(err, errNoop) {
		return nil
	} else if err != nil {
		return err
	}

	c.finish(ctx, updated.ConversationID)
	if updated.CallHandle != "" {
		c.hangUp(ctx, updated.CallHandle)
	}
	c.logger.Info(ctx, "conversation aborted")
	return nil
}

// acquire waits for a free line, at most for the grace period.
func (c *Coordinator) acquire(ctx, waitCtx context.Context, cancelWait context.CancelFunc) bool {
	if c.lines.TryAcquire(1) {
		return true
	}

	timer := c.clock.AfterFunc(c.config.AdmissionGracePeriod, cancelWait)
	defer timer.Stop()

	c.waiting.Inc()
	defer c.waiting.Dec()

	c.logger.Info(ctx, "waiting for a free line")
	return c.lines.Acquire(waitCtx, 1) == nil
}

func (c *Coordinator) fail(ctx context.Context, conversationID string, reason model.FailureReason, message string) {
	updated, err := c.repo.UpdateConversation(conversationID, func(conv model.Conversation) (model.Conversation, error) {
		if conv.State.IsTerminal() {
			return model.Conversation{}, errNoop
		}
		return conv.Fail(c.clock.Now(), reason, message)
	})
	if errors.Is(err, errNoop) {
		return
	} else if err != nil {
		c.logger.Error(ctx, err.Error())
		return
	}
	c.finish(ctx, conversationID)
	c.listener.ConversationFinished(ctx, updated)
}

func (c *Coordinator) armRingTimeout(conv model.Conversation) {
	c.lock.Lock()
	defer c.lock.Unlock()

	state, found := c.calls[conv.ConversationID]
	if !found {
		return
	}

	state.ringTimer = c.clock.AfterFunc(c.config.RingTimeout, func() {
		if c.ctx.Err() != nil {
			return
		}
		ctx := convCtx(c.ctx, conv)
		updated, err := c.repo.UpdateConversation(conv.ConversationID, func(conv model.Conversation) (model.Conversation, error) {
			if conv.State != model.ConversationRinging {
				return model.Conversation{}, errNoop
			}
			now := c.clock.Now()
			return conv.WithState(now, now, model.ConversationMissed)
		})
		if errors.Is(err, errNoop) {
			return
		} else if err != nil {
			c.logger.Error(ctx, err.Error())
			return
		}
		c.logger.Infof(ctx, `call not answered within %s`, c.config.RingTimeout)
		c.finish(ctx, conv.ConversationID)
		c.hangUp(ctx, conv.CallHandle)
		c.listener.ConversationFinished(ctx, updated)
	})
}

func (c *Coordinator) stopRingTimer(conversationID string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if state, found := c.calls[conversationID]; found && state.ringTimer != nil {
		state.ringTimer.Stop()
		state.ringTimer = nil
	}
}

// finish releases resources of the terminal conversation, the line is released exactly once.
func (c *Coordinator) finish(ctx context.Context, conversationID string) {
	c.lock.Lock()
	defer c.lock.Unlock()

	state, found := c.calls[conversationID]
	if !found {
		return
	}
	delete(c.calls, conversationID)

	state.cancelWait()
	if state.ringTimer != nil {
		state.ringTimer.Stop()
	}
	if state.admitted {
		c.lines.Release(1)
		c.live.Dec()
		c.liveGauge.Add(ctx, -1)
	}
}

func (c *Coordinator) isFinished(conversationID string) bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	_, found := c.calls[conversationID]
	return !found
}

func (c *Coordinator) hangUp(ctx context.Context, handle string) {
	if err := c.telephony.HangUp(ctx, handle); err != nil {
		c.logger.Warnf(ctx, `cannot hang up call "%s": %s`, handle, err)
	}
}

func convCtx(ctx context.Context, conv model.Conversation) context.Context {
	return ctxattr.ContextWith(ctx, attribute.String("order.id", conv.OrderID), attribute.String("conversation.id", conv.ConversationID))
}
