package model

import (
	"time"

	"github.com/santacall/santacall/internal/pkg/utils/errors"
)

type VideoJobState string

const (
	VideoJobQueued    VideoJobState = "queued"
	VideoJobRendering VideoJobState = "rendering"
	VideoJobReady     VideoJobState = "ready"
	VideoJobFailed    VideoJobState = "failed"
)

// VideoJob is the render pipeline of the personalized video of an order.
type VideoJob struct {
	Retryable
	JobID             string
	OrderID           string
	State             VideoJobState
	Attempt           int
	RenderHandle      string
	AssetRef          string
	LastFailureReason string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	ReadyAt           *time.Time
	FailedAt          *time.Time
}

func NewVideoJob(now time.Time, jobID, orderID string) VideoJob {
	return VideoJob{JobID: jobID, OrderID: orderID, State: VideoJobQueued, CreatedAt: now, UpdatedAt: now}
}

func (s VideoJobState) IsTerminal() bool {
	return s == VideoJobReady || s == VideoJobFailed
}

// WithState returns the job in the new state, only the QUEUED -> RENDERING -> {READY, FAILED} flow
// and the RENDERING -> QUEUED retry loop are allowed.
func (j VideoJob) WithState(now time.Time, to VideoJobState) (VideoJob, error) {
	from := j.State
	switch {
	case from == VideoJobQueued && to == VideoJobRendering:
	case from == VideoJobRendering && to == VideoJobQueued:
	case from == VideoJobRendering && to == VideoJobReady:
		j.ReadyAt = &now
	case !from.IsTerminal() && to == VideoJobFailed:
		j.FailedAt = &now
	default:
		return VideoJob{}, errors.Errorf(`unexpected video job "%s" state transition from "%s" to "%s"`, j.JobID, from, to)
	}
	j.State = to
	j.UpdatedAt = now
	return j, nil
}

// Submitted records a new render attempt accepted by the backend.
func (j VideoJob) Submitted(now time.Time, handle string) (VideoJob, error) {
	j, err := j.WithState(now, VideoJobRendering)
	if err != nil {
		return VideoJob{}, err
	}
	j.Attempt++
	j.RenderHandle = handle
	return j, nil
}

func (j VideoJob) Succeeded(now time.Time, assetRef string) (VideoJob, error) {
	j, err := j.WithState(now, VideoJobReady)
	if err != nil {
		return VideoJob{}, err
	}
	j.AssetRef = assetRef
	j.ResetRetry()
	return j, nil
}

// RetryLater returns the failed attempt back to the queue, the next attempt is allowed after the backoff.
// A failed submission has no attempt in the backend, so it is counted here.
func (j VideoJob) RetryLater(now time.Time, b RetryBackoff, reason string) (VideoJob, error) {
	if j.State == VideoJobQueued {
		j.Attempt++
	} else {
		var err error
		if j, err = j.WithState(now, VideoJobQueued); err != nil {
			return VideoJob{}, err
		}
	}
	j.RenderHandle = ""
	j.LastFailureReason = reason
	j.IncrementRetryAttempt(b, now, reason)
	j.UpdatedAt = now
	return j, nil
}

func (j VideoJob) Failed(now time.Time, reason string) (VideoJob, error) {
	if j.State == VideoJobQueued && reason != FailureReasonAbandoned {
		// failed submission
		j.Attempt++
	}
	j, err := j.WithState(now, VideoJobFailed)
	if err != nil {
		return VideoJob{}, err
	}
	j.LastFailureReason = reason
	return j, nil
}

// FailureReasonAbandoned is the last failure reason of a job stopped by the order cancellation.
const FailureReasonAbandoned = "abandoned"
