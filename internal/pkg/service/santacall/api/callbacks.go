package api

import (
	"net/http"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/santacall/santacall/internal/pkg/service/common/httpserver"
	"github.com/santacall/santacall/internal/pkg/service/santacall/backend"
	"github.com/santacall/santacall/internal/pkg/utils/errors"
)

const (
	callbackAccepted  = "accepted"
	callbackDuplicate = "duplicate"
)

func (a *API) renderCallback(w http.ResponseWriter, req *http.Request) error {
	payload := RenderCallbackRequest{}
	if err := a.decode(req, &payload); err != nil {
		return err
	}

	key := "render/" + payload.Handle + "/" + payload.Outcome
	if a.dedup.seen(key) {
		a.logger.Debugf(req.Context(), `duplicate render callback "%s"`, key)
		httpserver.WriteJSON(w, http.StatusAccepted, CallbackResponse{Status: callbackDuplicate})
		return nil
	}

	err := a.orders.VideoJobs().HandleRenderCompleted(req.Context(), backend.RenderCompleted{
		Handle:        payload.Handle,
		Outcome:       backend.RenderOutcome(payload.Outcome),
		AssetRef:      payload.AssetRef,
		FailureReason: payload.FailureReason,
		Retryable:     payload.Retryable,
	})
	if err != nil {
		return err
	}

	a.dedup.remember(key)
	httpserver.WriteJSON(w, http.StatusAccepted, CallbackResponse{Status: callbackAccepted})
	return nil
}

func (a *API) telephonyCallback(w http.ResponseWriter, req *http.Request) error {
	payload := TelephonyCallbackRequest{}
	if err := a.decode(req, &payload); err != nil {
		return err
	}

	key := "telephony/" + payload.Handle + "/" + payload.State
	if a.dedup.seen(key) {
		a.logger.Debugf(req.Context(), `duplicate telephony callback "%s"`, key)
		httpserver.WriteJSON(w, http.StatusAccepted, CallbackResponse{Status: callbackDuplicate})
		return nil
	}

	event := backend.CallStateChanged{
		Handle: payload.Handle,
		State:  backend.CallState(payload.State),
		Reason: payload.Reason,
	}
	if payload.At != nil {
		event.At = payload.At.Time()
	}
	if err := a.orders.Conversations().HandleCallStateChanged(req.Context(), event); err != nil {
		return err
	}

	a.dedup.remember(key)
	httpserver.WriteJSON(w, http.StatusAccepted, CallbackResponse{Status: callbackAccepted})
	return nil
}

// dedup remembers recently applied callbacks, so a redelivered callback is answered without processing.
// The coordinators are idempotent, the cache only saves the work.
type dedup struct {
	cache *ristretto.Cache[string, struct{}]
}

func newDedup(size int64) (*dedup, error) {
	if size <= 0 {
		return &dedup{}, nil
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, struct{}]{
		NumCounters:        size * 10,
		MaxCost:            size,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "cannot create callback de-duplication cache")
	}
	return &dedup{cache: cache}, nil
}

func (d *dedup) seen(key string) bool {
	if d.cache == nil {
		return false
	}
	_, found := d.cache.Get(key)
	return found
}

func (d *dedup) remember(key string) {
	if d.cache == nil {
		return
	}
	d.cache.Set(key, struct{}{}, 1)
	d.cache.Wait()
}

func (d *dedup) close() {
	if d.cache != nil {
		d.cache.Close()
	}
}
