// Package fulfillment drives an order from the booking to the terminal state.
//
// The order is booked as PENDING and its video is submitted immediately.
// When the video is ready, the order is SCHEDULED and a timer is armed for the slot.
// At the slot, the call is started. The outcome of the call is reconciled back into the order.
//
// The orchestrator keeps only the in-memory registry of in-flight orders, see entry.
// The registry entry is removed when the order reaches a terminal state.
package fulfillment

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/santacall/santacall/internal/pkg/ctxattr"
	"github.com/santacall/santacall/internal/pkg/idgenerator"
	"github.com/santacall/santacall/internal/pkg/log"
	svcErrors "github.com/santacall/santacall/internal/pkg/service/common/errors"
	"github.com/santacall/santacall/internal/pkg/service/common/servicectx"
	"github.com/santacall/santacall/internal/pkg/service/santacall/backend"
	"github.com/santacall/santacall/internal/pkg/service/santacall/config"
	"github.com/santacall/santacall/internal/pkg/service/santacall/conversation"
	"github.com/santacall/santacall/internal/pkg/service/santacall/model"
	"github.com/santacall/santacall/internal/pkg/service/santacall/repository"
	"github.com/santacall/santacall/internal/pkg/service/santacall/timewindow"
	"github.com/santacall/santacall/internal/pkg/service/santacall/videojob"
	"github.com/santacall/santacall/internal/pkg/telemetry"
	"github.com/santacall/santacall/internal/pkg/utils/errors"
)

type Orchestrator struct {
	logger  log.Logger
	tracer  telemetry.Tracer
	clock   clockwork.Clock
	repo    *repository.Repository
	slots   *timewindow.Validator
	billing backend.Billing

	videoJobs     *videojob.Coordinator
	conversations *conversation.Coordinator

	// ctx is used by the slot timers, it is cancelled on shutdown
	ctx context.Context
	wg  sync.WaitGroup

	lock    sync.Mutex
	entries map[string]*entry

	booked   metric.Int64Counter
	finished metric.Int64Counter
}

// entry is the in-flight state of a non-terminal order.
// The lock serializes transitions of the order triggered by the orchestrator.
// It is never held during a call to a coordinator which may invoke a listener method.
type entry struct {
	lock      sync.Mutex
	orderID   string
	jobID     string
	slotTimer clockwork.Timer
}

type dependencies interface {
	Logger() log.Logger
	Clock() clockwork.Clock
	Process() *servicectx.Process
	Telemetry() telemetry.Telemetry
	Config() config.Config
	SlotValidator() *timewindow.Validator
	Repository() *repository.Repository
	Renderer() backend.Renderer
	Telephony() backend.Telephony
	Billing() backend.Billing
}

// ListFilter selects orders by the requester and the state, empty fields match all orders.
type ListFilter struct {
	AccountID      string
	OrganizationID string
	State          model.OrderState
}

var errNoop = errors.New("no-op")

func New(d dependencies) *Orchestrator {
	meter := d.Telemetry().Meter()
	o := &Orchestrator{
		logger:   d.Logger().WithComponent("fulfillment"),
		tracer:   d.Telemetry().Tracer(),
		clock:    d.Clock(),
		repo:     d.Repository(),
		slots:    d.SlotValidator(),
		billing:  d.Billing(),
		ctx:      d.Process().Ctx(),
		entries:  make(map[string]*entry),
		booked:   meter.Counter("santacall.orders.booked", "Booked orders by type.", "{order}"),
		finished: meter.Counter("santacall.orders.finished", "Orders in a terminal state by state and failure reason.", "{order}"),
	}

	o.videoJobs = videojob.New(d, d.Config().Render, o)
	o.conversations = conversation.New(d, d.Config().Conversation, o)

	// Registered after the coordinators, so it is invoked first
	d.Process().OnShutdown(func(ctx context.Context) {
		o.Shutdown(ctx)
	})

	return o
}

func (o *Orchestrator) VideoJobs() *videojob.Coordinator {
	return o.videoJobs
}

func (o *Orchestrator) Conversations() *conversation.Coordinator {
	return o.conversations
}

// InFlight returns the number of orders which are not terminal.
func (o *Orchestrator) InFlight() int {
	o.lock.Lock()
	defer o.lock.Unlock()
	return len(o.entries)
}

// Book creates a PENDING order and submits its video.
// The slot must be accepted by the time window validator, then the requester must be entitled.
func (o *Orchestrator) Book(ctx context.Context, spec model.OrderSpec) (order model.Order, err error) {
	ctx, span := o.tracer.Start(ctx, "santacall.fulfillment.Book", trace.WithAttributes(attribute.String("order.type", string(spec.Type))))
	defer span.End(&err)

	order, err = o.book(ctx, spec)
	if order.OrderID != "" {
		span.SetAttributes(attribute.String("order.id", order.OrderID))
	}
	return order, err
}

func (o *Orchestrator) book(ctx context.Context, spec model.OrderSpec) (model.Order, error) {
	// The slot is rejected before the billing backend is called
	order, err := model.NewOrder(o.clock.Now(), idgenerator.OrderID(), spec, o.slots)
	if err != nil {
		var rejected *timewindow.RejectedError
		if !errors.As(err, &rejected) {
			err = svcErrors.NewBadRequestError(err)
		}
		return model.Order{}, err
	}

	entitled, err := o.billing.IsEntitled(ctx, spec.Requester.AccountID)
	if err != nil {
		return model.Order{}, errors.PrefixError(err, "cannot check entitlement")
	}
	if !entitled {
		return model.Order{}, svcErrors.NewForbiddenError("notEntitled", errors.Errorf(`account "%s" is not entitled to book a call`, spec.Requester.AccountID))
	}

	if err := o.repo.CreateOrder(order); err != nil {
		return model.Order{}, err
	}

	e := o.register(order.OrderID)
	ctx = orderCtx(ctx, order.OrderID)
	o.booked.Add(ctx, 1, metric.WithAttributes(attribute.String("type", string(order.Type))))
	o.logger.Infof(ctx, `order booked for %s`, order.Slot.Format(time.RFC3339))

	// The listener may be invoked synchronously, the entry lock must not be held
	job, err := o.videoJobs.Submit(ctx, order)
	if err != nil {
		o.logger.Errorf(ctx, `cannot submit video job: %s`, err)
		e.lock.Lock()
		o.fail(ctx, e, "", model.FailureInternal, "cannot submit video job")
		e.lock.Unlock()
		return o.repo.Order(order.OrderID)
	}

	e.lock.Lock()
	defer e.lock.Unlock()

	_, err = o.repo.UpdateOrder(order.OrderID, func(order model.Order) (model.Order, error) {
		if order.State.IsTerminal() || order.VideoJobID != "" {
			return model.Order{}, errNoop
		}
		order.VideoJobID = job.JobID
		order.UpdatedAt = o.clock.Now()
		return order, nil
	})
	if err != nil && !errors.Is(err, errNoop) {
		return model.Order{}, err
	}

	current, err := o.repo.Order(order.OrderID)
	if err != nil {
		return model.Order{}, err
	}
	if current.State == model.OrderCancelled {
		// Cancelled during the submission
		if err := o.videoJobs.Cancel(ctx, job.JobID); err != nil {
			o.logger.Warnf(ctx, `cannot cancel video job: %s`, err)
		}
	} else {
		e.jobID = job.JobID
	}

	return current, nil
}

func (o *Orchestrator) Get(_ context.Context, orderID string) (model.Order, error) {
	return o.repo.Order(orderID)
}

// Call returns the conversation of the order, it exists since the slot arrived.
func (o *Orchestrator) Call(_ context.Context, orderID string) (model.Conversation, error) {
	if _, err := o.repo.Order(orderID); err != nil {
		return model.Conversation{}, err
	}
	conv, found := o.repo.ConversationOf(orderID)
	if !found {
		return model.Conversation{}, svcErrors.NewResourceNotFoundError("call", orderID, "order")
	}
	return conv, nil
}

// List returns orders matching the filter, the oldest first.
func (o *Orchestrator) List(_ context.Context, filter ListFilter) []model.Order {
	return o.repo.ListOrders(func(order model.Order) bool {
		return (filter.AccountID == "" || order.Requester.AccountID == filter.AccountID) &&
			(filter.OrganizationID == "" || order.Requester.OrganizationID == filter.OrganizationID) &&
			(filter.State == "" || order.State == filter.State)
	})
}

// Cancel moves a PENDING or SCHEDULED order to CANCELLED.
// The pending conversation is aborted, the slot timer is disarmed and the video job is abandoned.
// A connected call cannot be cancelled.
func (o *Orchestrator) Cancel(ctx context.Context, orderID string) (order model.Order, err error) {
	ctx, span := o.tracer.Start(ctx, "santacall.fulfillment.Cancel", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End(&err)
	return o.cancel(orderCtx(ctx, orderID), orderID)
}

func (o *Orchestrator) cancel(ctx context.Context, orderID string) (model.Order, error) {

	e, found := o.entry(orderID)
	if !found {
		// The order is terminal or unknown, the repository returns the error
		return o.repo.UpdateOrder(orderID, func(order model.Order) (model.Order, error) {
			return order.Cancel(o.clock.Now())
		})
	}

	e.lock.Lock()
	defer e.lock.Unlock()

	order, err := o.repo.Order(orderID)
	if err != nil {
		return model.Order{}, err
	}
	if _, err := order.Cancel(o.clock.Now()); err != nil {
		return model.Order{}, err
	}

	if order.State == model.OrderScheduled {
		if err := o.conversations.Abort(ctx, orderID); err != nil {
			return model.Order{}, err
		}
	}

	updated, err := o.repo.UpdateOrder(orderID, func(order model.Order) (model.Order, error) {
		return order.Cancel(o.clock.Now())
	})
	if err != nil {
		return model.Order{}, err
	}

	if e.slotTimer != nil {
		e.slotTimer.Stop()
		e.slotTimer = nil
	}
	if e.jobID != "" {
		if err := o.videoJobs.Cancel(ctx, e.jobID); err != nil {
			o.logger.Warnf(ctx, `cannot cancel video job: %s`, err)
		}
	}

	o.finish(ctx, e, updated)
	return updated, nil
}

// Reschedule changes the slot of a PENDING order, the new slot is validated again.
func (o *Orchestrator) Reschedule(ctx context.Context, orderID string, slot time.Time, localOffset time.Duration) (model.Order, error) {
	if e, found := o.entry(orderID); found {
		e.lock.Lock()
		defer e.lock.Unlock()
	}

	updated, err := o.repo.UpdateOrder(orderID, func(order model.Order) (model.Order, error) {
		return order.Reschedule(o.clock.Now(), slot, localOffset, o.slots)
	})
	if err != nil {
		return model.Order{}, err
	}

	o.logger.Infof(orderCtx(ctx, orderID), `order rescheduled to %s`, updated.Slot.Format(time.RFC3339))
	return updated, nil
}

// Refund moves a COMPLETED order to REFUNDED.
func (o *Orchestrator) Refund(ctx context.Context, orderID string) (model.Order, error) {
	updated, err := o.repo.UpdateOrder(orderID, func(order model.Order) (model.Order, error) {
		return order.Refund(o.clock.Now())
	})
	if err != nil {
		return model.Order{}, err
	}

	ctx = orderCtx(ctx, orderID)
	o.finished.Add(ctx, 1, metric.WithAttributes(attribute.String("state", string(updated.State)), attribute.String("reason", "")))
	o.logger.Info(ctx, "order refunded")
	return updated, nil
}

// Shutdown disarms all slot timers and waits for the running ones.
func (o *Orchestrator) Shutdown(ctx context.Context) {
	o.lock.Lock()
	entries := make([]*entry, 0, len(o.entries))
	for _, e := range o.entries {
		entries = append(entries, e)
	}
	o.lock.Unlock()

	for _, e := range entries {
		e.lock.Lock()
		if e.slotTimer != nil {
			e.slotTimer.Stop()
			e.slotTimer = nil
		}
		e.lock.Unlock()
	}

	o.wg.Wait()
	o.logger.Infof(ctx, `slot timers stopped, %d order(s) in flight`, len(entries))
}

// VideoReady schedules the order and arms the timer for the slot.
func (o *Orchestrator) VideoReady(ctx context.Context, job model.VideoJob) {
	e, found := o.entry(job.OrderID)
	if !found {
		o.logger.Debugf(ctx, `ignored ready video of the finished order`)
		return
	}

	e.lock.Lock()
	defer e.lock.Unlock()

	now := o.clock.Now()
	updated, err := o.repo.UpdateOrder(job.OrderID, func(order model.Order) (model.Order, error) {
		return order.Schedule(now, job)
	})
	if err != nil {
		o.logger.Errorf(ctx, `cannot schedule order: %s`, err)
		return
	}

	delay := updated.Slot.Sub(now)
	if delay < 0 {
		delay = 0
	}
	o.armSlotTimer(e, delay)
	o.logger.Infof(ctx, `order scheduled, the call starts in %s`, delay)
}

// VideoFailed fails the order, the video cannot be rendered.
func (o *Orchestrator) VideoFailed(ctx context.Context, job model.VideoJob) {
	e, found := o.entry(job.OrderID)
	if !found {
		o.logger.Debugf(ctx, `ignored failed video of the finished order`)
		return
	}

	e.lock.Lock()
	defer e.lock.Unlock()
	o.fail(ctx, e, job.JobID, model.FailureRenderFailed, "render failed: "+job.LastFailureReason)
}

// ConversationConnected moves the order to IN_PROGRESS.
func (o *Orchestrator) ConversationConnected(ctx context.Context, conv model.Conversation) {
	e, found := o.entry(conv.OrderID)
	if !found {
		o.logger.Warnf(ctx, `connected conversation of the finished order`)
		return
	}

	e.lock.Lock()
	defer e.lock.Unlock()

	now := o.clock.Now()
	_, err := o.repo.UpdateOrder(conv.OrderID, func(order model.Order) (model.Order, error) {
		// The callback can be faster than the return from the conversation start
		if order.ConversationID == "" {
			var err error
			if order, err = order.AttachConversation(now, conv); err != nil {
				return model.Order{}, err
			}
		}
		return order.Start(now, conv)
	})
	if err != nil {
		o.logger.Errorf(ctx, `cannot start order: %s`, err)
		return
	}
	o.logger.Info(ctx, "order in progress")
}

// ConversationFinished derives the terminal state of the order from the conversation outcome.
func (o *Orchestrator) ConversationFinished(ctx context.Context, conv model.Conversation) {
	e, found := o.entry(conv.OrderID)
	if !found {
		o.logger.Debugf(ctx, `ignored finished conversation of the finished order`)
		return
	}

	e.lock.Lock()
	defer e.lock.Unlock()

	now := o.clock.Now()
	updated, err := o.repo.UpdateOrder(conv.OrderID, func(order model.Order) (model.Order, error) {
		if order.ConversationID == "" {
			order.ConversationID = conv.ConversationID
		}
		switch {
		case conv.State == model.ConversationEnded && conv.Failure == nil:
			return order.Complete(now)
		case conv.State == model.ConversationMissed:
			return order.Fail(now, model.FailureCallMissed, "the call was not answered")
		case conv.Failure != nil:
			return order.Fail(now, conv.Failure.Reason, conv.Failure.Message)
		default:
			return order.Fail(now, model.FailureInternal, `unexpected conversation state "`+string(conv.State)+`"`)
		}
	})
	if err != nil {
		o.logger.Errorf(ctx, `cannot finish order: %s`, err)
		return
	}

	o.finish(ctx, e, updated)
}

func (o *Orchestrator) armSlotTimer(e *entry, delay time.Duration) {
	if e.slotTimer != nil {
		e.slotTimer.Stop()
	}

	var timer clockwork.Timer
	timer = o.clock.AfterFunc(delay, func() {
		e.lock.Lock()
		if e.slotTimer != timer {
			e.lock.Unlock()
			return
		}
		e.slotTimer = nil
		o.wg.Add(1)
		e.lock.Unlock()

		defer o.wg.Done()
		if o.ctx.Err() == nil {
			o.slotArrived(orderCtx(o.ctx, e.orderID), e)
		}
	})
	e.slotTimer = timer
}

// slotArrived starts the call of the SCHEDULED order.
func (o *Orchestrator) slotArrived(ctx context.Context, e *entry) {
	order, err := o.repo.Order(e.orderID)
	if err != nil {
		o.logger.Error(ctx, err.Error())
		return
	}
	if order.State != model.OrderScheduled {
		return
	}

	o.logger.Info(ctx, "slot arrived, starting the call")

	// Blocks while waiting for a free line, the listener may be invoked synchronously
	conv, err := o.conversations.Start(ctx, order)

	e.lock.Lock()
	defer e.lock.Unlock()

	if err != nil {
		o.logger.Errorf(ctx, `cannot start conversation: %s`, err)
		o.fail(ctx, e, "", model.FailureInternal, "cannot start conversation")
		return
	}

	current, err := o.repo.Order(e.orderID)
	if err != nil {
		o.logger.Error(ctx, err.Error())
		return
	}

	switch {
	case current.State == model.OrderCancelled:
		// Cancelled before the conversation was created
		if err := o.conversations.Abort(ctx, e.orderID); err != nil {
			o.logger.Warnf(ctx, `cannot abort conversation: %s`, err)
		}
	case current.State == model.OrderScheduled && current.ConversationID == "":
		_, err := o.repo.UpdateOrder(e.orderID, func(order model.Order) (model.Order, error) {
			return order.AttachConversation(o.clock.Now(), conv)
		})
		if err != nil {
			o.logger.Errorf(ctx, `cannot attach conversation: %s`, err)
		}
	}
}

// fail moves the order to FAILED, the entry lock must be held.
func (o *Orchestrator) fail(ctx context.Context, e *entry, jobID string, reason model.FailureReason, message string) {
	updated, err := o.repo.UpdateOrder(e.orderID, func(order model.Order) (model.Order, error) {
		if jobID != "" {
			order.VideoJobID = jobID
		}
		return order.Fail(o.clock.Now(), reason, message)
	})
	if err != nil {
		o.logger.Errorf(ctx, `cannot fail order: %s`, err)
		return
	}
	o.finish(ctx, e, updated)
}

// finish removes the entry of the terminal order.
func (o *Orchestrator) finish(ctx context.Context, e *entry, order model.Order) {
	if e.slotTimer != nil {
		e.slotTimer.Stop()
		e.slotTimer = nil
	}

	o.lock.Lock()
	delete(o.entries, e.orderID)
	o.lock.Unlock()

	var reason string
	if order.Failure != nil {
		reason = string(order.Failure.Reason)
	}
	o.finished.Add(ctx, 1, metric.WithAttributes(attribute.String("state", string(order.State)), attribute.String("reason", reason)))

	if reason == "" {
		o.logger.Infof(ctx, `order %s`, order.State)
	} else {
		o.logger.Warnf(ctx, `order %s: %s: %s`, order.State, reason, order.Failure.Message)
	}
}

func (o *Orchestrator) register(orderID string) *entry {
	o.lock.Lock()
	defer o.lock.Unlock()
	e := &entry{orderID: orderID}
	o.entries[orderID] = e
	return e
}

func (o *Orchestrator) entry(orderID string) (*entry, bool) {
	o.lock.Lock()
	defer o.lock.Unlock()
	e, found := o.entries[orderID]
	return e, found
}

func orderCtx(ctx context.Context, orderID string) context.Context {
	return ctxattr.ContextWith(ctx, attribute.String("order.id", orderID))
}
