package repository

import (
	svcErrors "github.com/santacall/santacall/internal/pkg/service/common/errors"
	"github.com/santacall/santacall/internal/pkg/service/santacall/model"
	"github.com/santacall/santacall/internal/pkg/utils/errors"
)

const videoJobsTable = "video jobs"

// CreateVideoJob stores a new job, only one non-terminal job per order is allowed.
func (r *Repository) CreateVideoJob(job model.VideoJob) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if _, found := r.jobs[job.JobID]; found {
		return svcErrors.NewResourceAlreadyExistsError("videoJob", job.JobID, videoJobsTable)
	}
	if active, found := r.activeJob[job.OrderID]; found {
		return svcErrors.NewConflictError(
			"videoJobActive",
			errors.Errorf(`order "%s" already has the active video job "%s"`, job.OrderID, active),
		)
	}

	r.jobs[job.JobID] = job
	r.jobsOfOrder[job.OrderID] = append(r.jobsOfOrder[job.OrderID], job.JobID)
	r.indexJob(job)
	return nil
}

func (r *Repository) VideoJob(jobID string) (model.VideoJob, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	job, found := r.jobs[jobID]
	if !found {
		return model.VideoJob{}, svcErrors.NewResourceNotFoundError("videoJob", jobID, videoJobsTable)
	}
	return job, nil
}

// VideoJobByHandle finds the job by a render handle of any of its attempts.
func (r *Repository) VideoJobByHandle(handle string) (model.VideoJob, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	job, found := r.jobs[r.jobByHandle[handle]]
	if !found {
		return model.VideoJob{}, svcErrors.NewResourceNotFoundError("renderHandle", handle, videoJobsTable)
	}
	return job, nil
}

// VideoJobsOf returns all jobs of the order, from the oldest.
func (r *Repository) VideoJobsOf(orderID string) []model.VideoJob {
	r.lock.RLock()
	defer r.lock.RUnlock()

	out := make([]model.VideoJob, 0, len(r.jobsOfOrder[orderID]))
	for _, jobID := range r.jobsOfOrder[orderID] {
		out = append(out, r.jobs[jobID])
	}
	return out
}

func (r *Repository) UpdateVideoJob(jobID string, update func(model.VideoJob) (model.VideoJob, error)) (model.VideoJob, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	job, found := r.jobs[jobID]
	if !found {
		return model.VideoJob{}, svcErrors.NewResourceNotFoundError("videoJob", jobID, videoJobsTable)
	}

	updated, err := update(job)
	if err != nil {
		return model.VideoJob{}, err
	}
	if updated.JobID != job.JobID || updated.OrderID != job.OrderID {
		return model.VideoJob{}, errors.Errorf(`video job "%s" key cannot be modified`, jobID)
	}

	r.jobs[jobID] = updated
	r.indexJob(updated)
	return updated, nil
}

func (r *Repository) indexJob(job model.VideoJob) {
	if job.RenderHandle != "" {
		r.jobByHandle[job.RenderHandle] = job.JobID
	}
	if job.State.IsTerminal() {
		if r.activeJob[job.OrderID] == job.JobID {
			delete(r.activeJob, job.OrderID)
		}
	} else {
		r.activeJob[job.OrderID] = job.JobID
	}
}
