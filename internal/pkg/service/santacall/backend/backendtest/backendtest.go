// Package backendtest provides in-memory backends for tests.
package backendtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/santacall/santacall/internal/pkg/service/santacall/backend"
)

type Renderer struct {
	lock       sync.Mutex
	submitted  []backend.RenderRequest
	handles    []string
	cancelled  []string
	submitErrs []error
}

func NewRenderer() *Renderer {
	return &Renderer{}
}

// FailNextSubmit sets errors returned by the next submissions, a nil item means success.
func (r *Renderer) FailNextSubmit(errs ...error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.submitErrs = append(r.submitErrs, errs...)
}

func (r *Renderer) SubmitRender(_ context.Context, req backend.RenderRequest) (string, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.submitted = append(r.submitted, req)
	if len(r.submitErrs) > 0 {
		err := r.submitErrs[0]
		r.submitErrs = r.submitErrs[1:]
		if err != nil {
			return "", err
		}
	}

	handle := fmt.Sprintf("render-%d", len(r.handles)+1)
	r.handles = append(r.handles, handle)
	return handle, nil
}

func (r *Renderer) CancelRender(_ context.Context, handle string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.cancelled = append(r.cancelled, handle)
	return nil
}

func (r *Renderer) Submitted() []backend.RenderRequest {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]backend.RenderRequest(nil), r.submitted...)
}

// Handles returns handles of the accepted submissions.
func (r *Renderer) Handles() []string {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]string(nil), r.handles...)
}

func (r *Renderer) LastHandle() string {
	r.lock.Lock()
	defer r.lock.Unlock()
	if len(r.handles) == 0 {
		return ""
	}
	return r.handles[len(r.handles)-1]
}

func (r *Renderer) Cancelled() []string {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]string(nil), r.cancelled...)
}

type Call struct {
	Handle         string
	ConversationID string
	Participants   []backend.Participant
}

type Telephony struct {
	lock     sync.Mutex
	calls    []Call
	hungUp   []string
	callErrs []error
}

func NewTelephony() *Telephony {
	return &Telephony{}
}

// FailNextCall sets errors returned by the next call initiations, a nil item means success.
func (t *Telephony) FailNextCall(errs ...error) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.callErrs = append(t.callErrs, errs...)
}

func (t *Telephony) InitiateCall(_ context.Context, conversationID string, participants []backend.Participant) (string, error) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if len(t.callErrs) > 0 {
		err := t.callErrs[0]
		t.callErrs = t.callErrs[1:]
		if err != nil {
			return "", err
		}
	}

	handle := fmt.Sprintf("call-%d", len(t.calls)+1)
	t.calls = append(t.calls, Call{Handle: handle, ConversationID: conversationID, Participants: participants})
	return handle, nil
}

func (t *Telephony) HangUp(_ context.Context, handle string) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.hungUp = append(t.hungUp, handle)
	return nil
}

func (t *Telephony) Calls() []Call {
	t.lock.Lock()
	defer t.lock.Unlock()
	return append([]Call(nil), t.calls...)
}

func (t *Telephony) HungUp() []string {
	t.lock.Lock()
	defer t.lock.Unlock()
	return append([]string(nil), t.hungUp...)
}

type Billing struct {
	lock    sync.Mutex
	denied  map[string]bool
	checked []string
}

func NewBilling() *Billing {
	return &Billing{denied: make(map[string]bool)}
}

func (b *Billing) Deny(accountID string) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.denied[accountID] = true
}

func (b *Billing) IsEntitled(_ context.Context, accountID string) (bool, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.checked = append(b.checked, accountID)
	return !b.denied[accountID], nil
}

// Checked returns the accounts of all entitlement checks.
func (b *Billing) Checked() []string {
	b.lock.Lock()
	defer b.lock.Unlock()
	return append([]string(nil), b.checked...)
}
