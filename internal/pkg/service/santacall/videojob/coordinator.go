// Package videojob drives the asynchronous render of the personalized video of an order.
//
// A job is submitted to the render backend, the outcome is reported by the render callback.
// Transient failures return the job to the queue, the next attempt is armed by a timer with an exponential backoff.
// When the attempts are exhausted, or the failure is permanent, the job fails and the listener is notified.
package videojob

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/atomic"

	"github.com/santacall/santacall/internal/pkg/ctxattr"
	"github.com/santacall/santacall/internal/pkg/idgenerator"
	"github.com/santacall/santacall/internal/pkg/log"
	"github.com/santacall/santacall/internal/pkg/service/common/servicectx"
	"github.com/santacall/santacall/internal/pkg/service/santacall/backend"
	"github.com/santacall/santacall/internal/pkg/service/santacall/model"
	"github.com/santacall/santacall/internal/pkg/service/santacall/repository"
	"github.com/santacall/santacall/internal/pkg/telemetry"
	"github.com/santacall/santacall/internal/pkg/utils/errors"
)

// Listener is notified when a job reaches a terminal state on its own.
// A job cancelled by Cancel is not reported.
type Listener interface {
	VideoReady(ctx context.Context, job model.VideoJob)
	VideoFailed(ctx context.Context, job model.VideoJob)
}

type Coordinator struct {
	config   Config
	backoff  model.RetryBackoff
	logger   log.Logger
	tracer   telemetry.Tracer
	clock    clockwork.Clock
	repo     *repository.Repository
	renderer backend.Renderer
	listener Listener

	// ctx is used by the timer callbacks, it is cancelled on shutdown
	ctx context.Context
	wg  sync.WaitGroup

	lock   sync.Mutex
	timers map[string]clockwork.Timer

	inFlight *atomic.Int64
	attempts metric.Int64Counter
}

type dependencies interface {
	Logger() log.Logger
	Clock() clockwork.Clock
	Process() *servicectx.Process
	Telemetry() telemetry.Telemetry
	Repository() *repository.Repository
	Renderer() backend.Renderer
}

// errNoop skips an update of an entity which has already moved on.
var errNoop = errors.New("no-op")

func New(d dependencies, cfg Config, listener Listener) *Coordinator {
	c := &Coordinator{
		config:   cfg,
		backoff:  cfg.Backoff(),
		logger:   d.Logger().WithComponent("videojob"),
		tracer:   d.Telemetry().Tracer(),
		clock:    d.Clock(),
		repo:     d.Repository(),
		renderer: d.Renderer(),
		listener: listener,
		ctx:      d.Process().Ctx(),
		timers:   make(map[string]clockwork.Timer),
		inFlight: atomic.NewInt64(0),
		attempts: d.Telemetry().Meter().Counter("santacall.render.attempts", "Render attempts by result.", "{attempt}"),
	}

	d.Process().OnShutdown(func(ctx context.Context) {
		c.logger.Info(ctx, "stopping video job timers")
		c.stopAllTimers()
		c.wg.Wait()
		c.logger.Info(ctx, "video job timers stopped")
	})

	return c
}

// InFlight returns the number of jobs which are not terminal.
func (c *Coordinator) InFlight() int64 {
	return c.inFlight.Load()
}

// Submit creates a new job for the order and submits the first render attempt.
// A failed submission is not an error, it is retried or reported to the listener as the job failure.
func (c *Coordinator) Submit(ctx context.Context, order model.Order) (model.VideoJob, error) {
	job := model.NewVideoJob(c.clock.Now(), idgenerator.VideoJobID(), order.OrderID)
	if err := c.repo.CreateVideoJob(job); err != nil {
		return model.VideoJob{}, err
	}

	c.inFlight.Inc()
	c.wg.Add(1)
	defer c.wg.Done()

	c.attempt(c.jobCtx(ctx, job), job.JobID)

	return c.repo.VideoJob(job.JobID)
}

// HandleRenderCompleted applies the render callback.
// Duplicate callbacks and callbacks of an older attempt are ignored.
func (c *Coordinator) HandleRenderCompleted(ctx context.Context, event backend.RenderCompleted) error {
	job, err := c.repo.VideoJobByHandle(event.Handle)
	if err != nil {
		return err
	}
	ctx = c.jobCtx(ctx, job)

	switch event.Outcome {
	case backend.RenderReady:
		updated, err := c.repo.UpdateVideoJob(job.JobID, func(job model.VideoJob) (model.VideoJob, error) {
			if job.State != model.VideoJobRendering || job.RenderHandle != event.Handle {
				return model.VideoJob{}, errNoop
			}
			return job.Succeeded(c.clock.Now(), event.AssetRef)
		})
		if errors.Is(err, errNoop) {
			c.logger.Debugf(ctx, `ignored render callback "%s" of the job in state "%s"`, event.Outcome, job.State)
			return nil
		} else if err != nil {
			return err
		}

		c.finished(updated)
		c.attempts.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "ready")))
		c.logger.Infof(ctx, `video job is ready after %d attempt(s)`, updated.Attempt)
		c.listener.VideoReady(ctx, updated)
		return nil
	case backend.RenderFailed:
		reason := event.FailureReason
		if reason == "" {
			reason = "render failed"
		}
		c.failed(ctx, job.JobID, event.Handle, reason, !event.Retryable)
		return nil
	default:
		return errors.Errorf(`unexpected render outcome "%s"`, event.Outcome)
	}
}

// Cancel abandons the job, the pending retry is disarmed and the running render is cancelled.
// A terminal job is not modified.
func (c *Coordinator) Cancel(ctx context.Context, jobID string) error {
	var handle string
	updated, err := c.repo.UpdateVideoJob(jobID, func(job model.VideoJob) (model.VideoJob, error) {
		if job.State.IsTerminal() {
			return model.VideoJob{}, errNoop
		}
		handle = job.RenderHandle
		return job.Failed(c.clock.Now(), model.FailureReasonAbandoned)
	})
	if errors.Is(err, errNoop) {
		return nil
	} else if err != nil {
		return err
	}

	ctx = c.jobCtx(ctx, updated)
	c.finished(updated)
	c.attempts.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "abandoned")))
	c.logger.Info(ctx, "video job abandoned")

	if handle != "" {
		if err := c.renderer.CancelRender(ctx, handle); err != nil {
			c.logger.Warnf(ctx, `cannot cancel render "%s": %s`, handle, err)
		}
	}
	return nil
}

// attempt submits the queued job to the render backend.
func (c *Coordinator) attempt(ctx context.Context, jobID string) {
	job, err := c.repo.VideoJob(jobID)
	if err != nil {
		c.logger.Error(ctx, err.Error())
		return
	}
	if job.State != model.VideoJobQueued {
		return
	}

	order, err := c.repo.Order(job.OrderID)
	if err != nil {
		c.failed(ctx, jobID, "", err.Error(), true)
		return
	}

	handle, err := c.submitRender(ctx, order, job)
	if err != nil {
		c.logger.Warnf(ctx, `render submission failed: %s`, err)
		c.failed(ctx, jobID, "", err.Error(), backend.IsPermanent(err))
		return
	}

	// The timer is armed before the job is visible as RENDERING,
	// so it cannot replace a retry timer armed by a fast callback.
	if c.config.Timeout > 0 {
		c.armTimer(jobID, c.config.Timeout, func() {
			c.failed(c.jobCtx(c.ctx, job), jobID, handle, "render timeout", false)
		})
	}

	updated, err := c.repo.UpdateVideoJob(jobID, func(job model.VideoJob) (model.VideoJob, error) {
		if job.State != model.VideoJobQueued {
			return model.VideoJob{}, errNoop
		}
		return job.Submitted(c.clock.Now(), handle)
	})
	if errors.Is(err, errNoop) {
		// The job has been cancelled during the submission
		c.stopTimer(jobID)
		if err := c.renderer.CancelRender(ctx, handle); err != nil {
			c.logger.Warnf(ctx, `cannot cancel render "%s": %s`, handle, err)
		}
		return
	} else if err != nil {
		c.logger.Error(ctx, err.Error())
		return
	}

	c.attempts.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "submitted")))
	c.logger.With(attribute.String("render.handle", handle)).Infof(ctx, `render attempt %d submitted`, updated.Attempt)
}

func (c *Coordinator) submitRender(ctx context.Context, order model.Order, job model.VideoJob) (handle string, err error) {
	ctx, span := c.tracer.Start(ctx, "santacall.videojob.attempt", trace.WithAttributes(
		attribute.String("order.id", order.OrderID),
		attribute.String("videojob.id", job.JobID),
		attribute.Int("videojob.attempt", job.Attempt+1),
	))
	defer span.End(&err)

	handle, err = c.renderer.SubmitRender(ctx, backend.RenderRequest{
		OrderID: order.OrderID,
		JobID:   job.JobID,
		Attempt: job.Attempt + 1,
		Child:   order.Child,
		Gift:    order.Gift,
	})
	if err == nil {
		span.SetAttributes(attribute.String("render.handle", handle))
	}
	return handle, err
}

// failed applies the failure of the current attempt.
// The expectedHandle identifies the attempt, it is empty for a failed submission.
func (c *Coordinator) failed(ctx context.Context, jobID, expectedHandle, reason string, permanent bool) {
	updated, err := c.repo.UpdateVideoJob(jobID, func(job model.VideoJob) (model.VideoJob, error) {
		if job.State.IsTerminal() || job.RenderHandle != expectedHandle {
			return model.VideoJob{}, errNoop
		}

		attempts := job.Attempt
		if job.State == model.VideoJobQueued {
			// Failed submission is also an attempt
			attempts++
		}

		if permanent || attempts >= c.config.MaxAttempts {
			return job.Failed(c.clock.Now(), reason)
		}
		return job.RetryLater(c.clock.Now(), c.backoff, reason)
	})
	if errors.Is(err, errNoop) {
		c.logger.Debugf(ctx, `ignored failure "%s" of an outdated render attempt`, reason)
		return
	} else if err != nil {
		c.logger.Error(ctx, err.Error())
		return
	}

	if updated.State == model.VideoJobFailed {
		c.finished(updated)
		c.attempts.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "failed")))
		c.logger.Warnf(ctx, `video job failed after %d attempt(s): %s`, updated.Attempt, reason)
		c.listener.VideoFailed(ctx, updated)
		return
	}

	c.attempts.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "retry")))
	delay := updated.RetryAfter.Sub(c.clock.Now())
	c.logger.Infof(ctx, `render attempt %d failed, retrying in %s: %s`, updated.Attempt, delay.Round(time.Second), reason)
	c.armTimer(jobID, delay, func() {
		c.attempt(c.jobCtx(c.ctx, updated), jobID)
	})
}

// finished releases resources of the terminal job.
func (c *Coordinator) finished(job model.VideoJob) {
	c.stopTimer(job.JobID)
	c.inFlight.Dec()
}

// armTimer replaces the current timer of the job.
func (c *Coordinator) armTimer(jobID string, delay time.Duration, fn func()) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if timer, found := c.timers[jobID]; found {
		timer.Stop()
	}

	var timer clockwork.Timer
	timer = c.clock.AfterFunc(delay, func() {
		c.lock.Lock()
		current, found := c.timers[jobID]
		if !found || current != timer {
			c.lock.Unlock()
			return
		}
		delete(c.timers, jobID)
		c.wg.Add(1)
		c.lock.Unlock()

		defer c.wg.Done()
		if c.ctx.Err() == nil {
			fn()
		}
	})
	c.timers[jobID] = timer
}

func (c *Coordinator) stopTimer(jobID string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if timer, found := c.timers[jobID]; found {
		timer.Stop()
		delete(c.timers, jobID)
	}
}

func (c *Coordinator) stopAllTimers() {
	c.lock.Lock()
	defer c.lock.Unlock()
	for jobID, timer := range c.timers {
		timer.Stop()
		delete(c.timers, jobID)
	}
}

func (c *Coordinator) jobCtx(ctx context.Context, job model.VideoJob) context.Context {
	return ctxattr.ContextWith(ctx, attribute.String("order.id", job.OrderID), attribute.String("video_job.id", job.JobID))
}
