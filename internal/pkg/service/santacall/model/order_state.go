package model

import (
	"fmt"
	"net/http"
	"time"
)

type OrderEvent string

const (
	OrderEventSchedule   OrderEvent = "schedule"
	OrderEventAttach     OrderEvent = "attachConversation"
	OrderEventStart      OrderEvent = "start"
	OrderEventComplete   OrderEvent = "complete"
	OrderEventFail       OrderEvent = "fail"
	OrderEventCancel     OrderEvent = "cancel"
	OrderEventRefund     OrderEvent = "refund"
	OrderEventReschedule OrderEvent = "reschedule"
)

// nolint: gochecknoglobals
var orderTransitions = map[OrderEvent]map[OrderState]OrderState{
	OrderEventSchedule:   {OrderPending: OrderScheduled},
	OrderEventStart:      {OrderScheduled: OrderInProgress},
	OrderEventComplete:   {OrderInProgress: OrderCompleted},
	OrderEventFail:       {OrderPending: OrderFailed, OrderScheduled: OrderFailed, OrderInProgress: OrderFailed},
	OrderEventCancel:     {OrderPending: OrderCancelled, OrderScheduled: OrderCancelled},
	OrderEventRefund:     {OrderCompleted: OrderRefunded},
	OrderEventReschedule: {OrderPending: OrderPending},
}

// InvalidTransitionError is returned when the event is not allowed in the current state of the order.
type InvalidTransitionError struct {
	OrderID string
	State   OrderState
	Event   OrderEvent
	Reason  string
}

func (e *InvalidTransitionError) Error() string {
	msg := fmt.Sprintf(`event "%s" is not allowed for order "%s" in state "%s"`, e.Event, e.OrderID, e.State)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *InvalidTransitionError) StatusCode() int {
	return http.StatusConflict
}

func (e *InvalidTransitionError) ErrorName() string {
	return "invalidTransition"
}

func (o Order) transition(now time.Time, event OrderEvent) (Order, error) {
	to, ok := orderTransitions[event][o.State]
	if !ok {
		return Order{}, o.invalidTransition(event, "")
	}

	switch to {
	case OrderScheduled:
		o.ScheduledAt = &now
	case OrderInProgress:
		o.InProgressAt = &now
	case OrderCompleted:
		o.CompletedAt = &now
	case OrderFailed:
		o.FailedAt = &now
	case OrderCancelled:
		o.CancelledAt = &now
	case OrderRefunded:
		o.RefundedAt = &now
	default:
	}

	o.State = to
	o.UpdatedAt = now
	return o, nil
}

func (o Order) invalidTransition(event OrderEvent, reason string, args ...any) error {
	if len(args) > 0 {
		reason = fmt.Sprintf(reason, args...)
	}
	return &InvalidTransitionError{OrderID: o.OrderID, State: o.State, Event: event, Reason: reason}
}
