// Package backend defines the external collaborators of the service and their HTTP clients:
// the render backend, the telephony backend and the billing service.
package backend

import (
	"context"
	"time"

	"github.com/santacall/santacall/internal/pkg/service/santacall/model"
)

type RenderRequest struct {
	OrderID     string      `json:"orderId"`
	JobID       string      `json:"jobId"`
	Attempt     int         `json:"attempt"`
	Child       model.Child `json:"child"`
	Gift        *model.Gift `json:"gift,omitempty"`
	CallbackURL string      `json:"callbackUrl,omitempty"`
}

// Renderer submits render jobs, the outcome is reported asynchronously by the RenderCompleted callback.
type Renderer interface {
	SubmitRender(ctx context.Context, req RenderRequest) (handle string, err error)
	CancelRender(ctx context.Context, handle string) error
}

type Participant struct {
	Role string `json:"role"`
	Name string `json:"name"`
}

// Telephony initiates live calls, the progress is reported asynchronously by the CallStateChanged callback.
type Telephony interface {
	InitiateCall(ctx context.Context, conversationID string, participants []Participant) (handle string, err error)
	HangUp(ctx context.Context, handle string) error
}

type Billing interface {
	IsEntitled(ctx context.Context, accountID string) (bool, error)
}

type RenderOutcome string

const (
	RenderReady  RenderOutcome = "ready"
	RenderFailed RenderOutcome = "failed"
)

// RenderCompleted is the callback of the render backend.
type RenderCompleted struct {
	Handle        string
	Outcome       RenderOutcome
	AssetRef      string
	FailureReason string
	// Retryable is set by the backend if the failure is transient.
	Retryable bool
}

type CallState string

const (
	CallRinging   CallState = "ringing"
	CallConnected CallState = "connected"
	CallEnded     CallState = "ended"
	CallFailed    CallState = "failed"
)

// CallStateChanged is the callback of the telephony backend.
type CallStateChanged struct {
	Handle string
	State  CallState
	At     time.Time
	Reason string
}
