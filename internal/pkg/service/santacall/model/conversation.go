package model

import (
	"time"

	"github.com/santacall/santacall/internal/pkg/utils/errors"
)

type ConversationState string

const (
	ConversationScheduled ConversationState = "scheduled"
	ConversationRinging   ConversationState = "ringing"
	ConversationConnected ConversationState = "connected"
	ConversationEnded     ConversationState = "ended"
	ConversationMissed    ConversationState = "missed"
	ConversationFailed    ConversationState = "failed"
)

// Conversation is the live call of an order at its slot.
type Conversation struct {
	ConversationID string
	OrderID        string
	State          ConversationState
	ScheduledStart time.Time
	CallHandle     string
	RingingAt      *time.Time
	StartedAt      *time.Time
	EndedAt        *time.Time
	Duration       time.Duration
	Failure        *Failure
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func NewConversation(now time.Time, conversationID, orderID string, scheduledStart time.Time) Conversation {
	return Conversation{
		ConversationID: conversationID,
		OrderID:        orderID,
		State:          ConversationScheduled,
		ScheduledStart: scheduledStart,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (s ConversationState) IsTerminal() bool {
	switch s {
	case ConversationEnded, ConversationMissed, ConversationFailed:
		return true
	default:
		return false
	}
}

// WithState returns the conversation in the new state.
// The "at" time is reported by the telephony backend, it is used for the call timestamps.
func (c Conversation) WithState(now, at time.Time, to ConversationState) (Conversation, error) {
	from := c.State
	switch {
	case from == ConversationScheduled && to == ConversationRinging:
		c.RingingAt = &at
	case from == ConversationRinging && to == ConversationConnected:
		c.StartedAt = &at
	case from == ConversationRinging && to == ConversationMissed:
		c.EndedAt = &at
	case from == ConversationConnected && to == ConversationEnded:
		c.EndedAt = &at
		if c.StartedAt != nil && at.After(*c.StartedAt) {
			c.Duration = at.Sub(*c.StartedAt)
		}
	case !from.IsTerminal() && to == ConversationFailed:
		c.EndedAt = &at
	default:
		return Conversation{}, errors.Errorf(`unexpected conversation "%s" state transition from "%s" to "%s"`, c.ConversationID, from, to)
	}
	c.State = to
	c.UpdatedAt = now
	return c, nil
}

func (c Conversation) Fail(now time.Time, reason FailureReason, message string) (Conversation, error) {
	c, err := c.WithState(now, now, ConversationFailed)
	if err != nil {
		return Conversation{}, err
	}
	c.Failure = &Failure{Reason: reason, Message: message}
	return c, nil
}
