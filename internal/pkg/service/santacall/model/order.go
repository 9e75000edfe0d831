// Package model contains the Order, VideoJob and Conversation entities and their state machines.
//
// Entities are values, each transition returns a modified copy, so a failed transition never leaves
// a half-updated entity behind.
package model

import (
	"time"

	"github.com/santacall/santacall/internal/pkg/utils/errors"
)

type OrderType string

const (
	OrderTypeOneTime   OrderType = "oneTime"
	OrderTypeRecurring OrderType = "recurring"
	OrderTypeGift      OrderType = "gift"
)

type OrderState string

const (
	OrderPending    OrderState = "pending"
	OrderScheduled  OrderState = "scheduled"
	OrderInProgress OrderState = "inProgress"
	OrderCompleted  OrderState = "completed"
	OrderFailed     OrderState = "failed"
	OrderCancelled  OrderState = "cancelled"
	OrderRefunded   OrderState = "refunded"
)

// Interests is the fixed vocabulary of the child interest tags.
const Interests = "animals art books building cooking dancing dinosaurs music nature science space sports trains videoGames"

type Order struct {
	OrderID        string
	Type           OrderType
	State          OrderState
	Child          Child
	Requester      Requester
	Slot           time.Time
	LocalOffset    time.Duration
	Gift           *Gift
	Failure        *Failure
	VideoJobID     string
	ConversationID string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ScheduledAt    *time.Time
	InProgressAt   *time.Time
	CompletedAt    *time.Time
	FailedAt       *time.Time
	CancelledAt    *time.Time
	RefundedAt     *time.Time
}

type Child struct {
	Name      string   `json:"name" validate:"required,max=50"`
	Age       int      `json:"age" validate:"min=1,max=17"`
	Interests []string `json:"interests" validate:"max=5,unique,dive,oneof=animals art books building cooking dancing dinosaurs music nature science space sports trains videoGames"`
}

// Requester is the identity supplied by the auth provider, it is opaque for the service.
type Requester struct {
	AccountID      string `json:"accountId" validate:"required"`
	OrganizationID string `json:"organizationId" validate:"required"`
}

type Gift struct {
	FromName string `json:"fromName" validate:"required,max=50"`
	Message  string `json:"message" validate:"max=500"`
}

// OrderSpec is the validated content of a booking request.
type OrderSpec struct {
	Type        OrderType
	Child       Child
	Requester   Requester
	Slot        time.Time
	LocalOffset time.Duration
	Gift        *Gift
}

// SlotValidator checks the requested call slot, see the timewindow package.
type SlotValidator interface {
	Validate(slot, now time.Time, localOffset time.Duration) error
}

// NewOrder creates a PENDING order, the slot must be accepted by the validator.
func NewOrder(now time.Time, orderID string, spec OrderSpec, slots SlotValidator) (Order, error) {
	switch spec.Type {
	case OrderTypeGift:
		if spec.Gift == nil {
			return Order{}, errors.New(`gift details are required for the "gift" order type`)
		}
	case OrderTypeOneTime, OrderTypeRecurring:
		if spec.Gift != nil {
			return Order{}, errors.Errorf(`gift details are not allowed for the "%s" order type`, spec.Type)
		}
	default:
		return Order{}, errors.Errorf(`unexpected order type "%s"`, spec.Type)
	}

	if err := slots.Validate(spec.Slot, now, spec.LocalOffset); err != nil {
		return Order{}, err
	}

	return Order{
		OrderID:     orderID,
		Type:        spec.Type,
		State:       OrderPending,
		Child:       spec.Child,
		Requester:   spec.Requester,
		Slot:        spec.Slot.UTC(),
		LocalOffset: spec.LocalOffset,
		Gift:        spec.Gift,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (s OrderState) IsTerminal() bool {
	switch s {
	case OrderCompleted, OrderFailed, OrderCancelled, OrderRefunded:
		return true
	default:
		return false
	}
}

// Schedule moves the order to SCHEDULED, the video job of the order must be READY.
func (o Order) Schedule(now time.Time, job VideoJob) (Order, error) {
	if job.OrderID != o.OrderID || job.State != VideoJobReady {
		return Order{}, o.invalidTransition(OrderEventSchedule, `video job "%s" is not ready`, job.JobID)
	}
	o.VideoJobID = job.JobID
	return o.transition(now, OrderEventSchedule)
}

// AttachConversation records the conversation started for the SCHEDULED order, the state is not changed.
func (o Order) AttachConversation(now time.Time, conv Conversation) (Order, error) {
	if o.State != OrderScheduled || conv.OrderID != o.OrderID || (o.ConversationID != "" && o.ConversationID != conv.ConversationID) {
		return Order{}, o.invalidTransition(OrderEventAttach, `conversation "%s" cannot be attached`, conv.ConversationID)
	}
	o.ConversationID = conv.ConversationID
	o.UpdatedAt = now
	return o, nil
}

// Start moves the order to IN_PROGRESS, the conversation of the order must be CONNECTED.
func (o Order) Start(now time.Time, conv Conversation) (Order, error) {
	if conv.OrderID != o.OrderID || conv.ConversationID != o.ConversationID || conv.State != ConversationConnected {
		return Order{}, o.invalidTransition(OrderEventStart, `conversation "%s" is not connected`, conv.ConversationID)
	}
	return o.transition(now, OrderEventStart)
}

func (o Order) Complete(now time.Time) (Order, error) {
	return o.transition(now, OrderEventComplete)
}

func (o Order) Fail(now time.Time, reason FailureReason, message string) (Order, error) {
	o.Failure = &Failure{Reason: reason, Message: message}
	return o.transition(now, OrderEventFail)
}

func (o Order) Cancel(now time.Time) (Order, error) {
	return o.transition(now, OrderEventCancel)
}

func (o Order) Refund(now time.Time) (Order, error) {
	return o.transition(now, OrderEventRefund)
}

// Reschedule changes the slot of a PENDING order, the new slot is validated again.
func (o Order) Reschedule(now time.Time, slot time.Time, localOffset time.Duration, slots SlotValidator) (Order, error) {
	if o.State != OrderPending {
		return Order{}, o.invalidTransition(OrderEventReschedule, "")
	}
	if err := slots.Validate(slot, now, localOffset); err != nil {
		return Order{}, err
	}
	o.Slot = slot.UTC()
	o.LocalOffset = localOffset
	return o.transition(now, OrderEventReschedule)
}
