package api

import (
	"github.com/santacall/santacall/internal/pkg/service/common/duration"
	"github.com/santacall/santacall/internal/pkg/service/common/utctime"
	"github.com/santacall/santacall/internal/pkg/service/santacall/model"
	"github.com/santacall/santacall/internal/pkg/service/santacall/timewindow"
)

type BookOrderRequest struct {
	Type        string          `json:"type" validate:"required,oneof=oneTime recurring gift"`
	Child       model.Child     `json:"child"`
	Slot        utctime.UTCTime `json:"slot"`
	LocalOffset string          `json:"localOffset" validate:"omitempty,utcoffset"`
	Gift        *model.Gift     `json:"gift,omitempty"`
}

type RescheduleOrderRequest struct {
	Slot        utctime.UTCTime `json:"slot"`
	LocalOffset string          `json:"localOffset" validate:"omitempty,utcoffset"`
}

type RenderCallbackRequest struct {
	Handle        string `json:"handle" validate:"required"`
	Outcome       string `json:"outcome" validate:"required,oneof=ready failed"`
	AssetRef      string `json:"assetRef"`
	FailureReason string `json:"failureReason"`
	Retryable     bool   `json:"retryable"`
}

type TelephonyCallbackRequest struct {
	Handle string           `json:"handle" validate:"required"`
	State  string           `json:"state" validate:"required,oneof=ringing connected ended failed"`
	At     *utctime.UTCTime `json:"at,omitempty"`
	Reason string           `json:"reason"`
}

type CallbackResponse struct {
	Status string `json:"status"`
}

type Order struct {
	OrderID        string           `json:"orderId"`
	Type           string           `json:"type"`
	State          string           `json:"state"`
	Child          model.Child      `json:"child"`
	Requester      model.Requester  `json:"requester"`
	Slot           utctime.UTCTime  `json:"slot"`
	LocalOffset    string           `json:"localOffset"`
	Gift           *model.Gift      `json:"gift,omitempty"`
	Failure        *Failure         `json:"failure,omitempty"`
	VideoJobID     string           `json:"videoJobId,omitempty"`
	ConversationID string           `json:"conversationId,omitempty"`
	CreatedAt      utctime.UTCTime  `json:"createdAt"`
	UpdatedAt      utctime.UTCTime  `json:"updatedAt"`
	ScheduledAt    *utctime.UTCTime `json:"scheduledAt,omitempty"`
	InProgressAt   *utctime.UTCTime `json:"inProgressAt,omitempty"`
	CompletedAt    *utctime.UTCTime `json:"completedAt,omitempty"`
	FailedAt       *utctime.UTCTime `json:"failedAt,omitempty"`
	CancelledAt    *utctime.UTCTime `json:"cancelledAt,omitempty"`
	RefundedAt     *utctime.UTCTime `json:"refundedAt,omitempty"`
}

type Failure struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// Call is the conversation of an order, the duration is counted from the answer to the hang-up.
type Call struct {
	ConversationID string            `json:"conversationId"`
	State          string            `json:"state"`
	ScheduledStart utctime.UTCTime   `json:"scheduledStart"`
	RingingAt      *utctime.UTCTime  `json:"ringingAt,omitempty"`
	StartedAt      *utctime.UTCTime  `json:"startedAt,omitempty"`
	EndedAt        *utctime.UTCTime  `json:"endedAt,omitempty"`
	Duration       duration.Duration `json:"duration"`
	Failure        *Failure          `json:"failure,omitempty"`
}

type OrdersList struct {
	Orders []Order `json:"orders"`
}

func orderView(order model.Order) Order {
	out := Order{
		OrderID:        order.OrderID,
		Type:           string(order.Type),
		State:          string(order.State),
		Child:          order.Child,
		Requester:      order.Requester,
		Slot:           utctime.From(order.Slot),
		LocalOffset:    timewindow.FormatOffset(order.LocalOffset),
		Gift:           order.Gift,
		VideoJobID:     order.VideoJobID,
		ConversationID: order.ConversationID,
		CreatedAt:      utctime.From(order.CreatedAt),
		UpdatedAt:      utctime.From(order.UpdatedAt),
		ScheduledAt:    utctime.FromPtr(order.ScheduledAt),
		InProgressAt:   utctime.FromPtr(order.InProgressAt),
		CompletedAt:    utctime.FromPtr(order.CompletedAt),
		FailedAt:       utctime.FromPtr(order.FailedAt),
		CancelledAt:    utctime.FromPtr(order.CancelledAt),
		RefundedAt:     utctime.FromPtr(order.RefundedAt),
	}
	if order.Failure != nil {
		out.Failure = &Failure{Reason: string(order.Failure.Reason), Message: order.Failure.Message}
	}
	return out
}

func ordersView(orders []model.Order) OrdersList {
	out := OrdersList{Orders: make([]Order, 0, len(orders))}
	for _, order := range orders {
		out.Orders = append(out.Orders, orderView(order))
	}
	return out
}

func callView(conv model.Conversation) Call {
	out := Call{
		ConversationID: conv.ConversationID,
		State:          string(conv.State),
		ScheduledStart: utctime.From(conv.ScheduledStart),
		RingingAt:      utctime.FromPtr(conv.RingingAt),
		StartedAt:      utctime.FromPtr(conv.StartedAt),
		EndedAt:        utctime.FromPtr(conv.EndedAt),
		Duration:       duration.From(conv.Duration),
	}
	if conv.Failure != nil {
		out.Failure = &Failure{Reason: string(conv.Failure.Reason), Message: conv.Failure.Message}
	}
	return out
}
