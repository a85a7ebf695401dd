package runtime

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clearcite/integrity-engine/internal/data/repos"
	"github.com/clearcite/integrity-engine/internal/domain"
	"github.com/clearcite/integrity-engine/internal/platform/logger"
	"github.com/clearcite/integrity-engine/internal/realtime"
)

// Context is the execution handle for one claimed job run. Pipelines never
// write the job row directly; Progress, Fail and Succeed are the only
// sanctioned transitions, and each one is guarded so a cancellation that
// landed in the meantime is not overwritten.
type Context struct {
	Ctx context.Context
	Job *domain.AnalysisJob

	repo repos.AnalysisJobRepo
	bus  realtime.Bus
	log  *logger.Logger
}

func NewContext(ctx context.Context, job *domain.AnalysisJob, repo repos.AnalysisJobRepo, bus realtime.Bus, baseLog *logger.Logger) *Context {
	return &Context{
		Ctx:  ctx,
		Job:  job,
		repo: repo,
		bus:  bus,
		log:  baseLog.With("job_id", job.ID, "job_type", job.JobType),
	}
}

// writeCtx returns a context safe for job-row writes. Once the run context
// is expired (timeout, shutdown) terminal updates still have to land.
func (c *Context) writeCtx() context.Context {
	if c.Ctx != nil && c.Ctx.Err() == nil {
		return c.Ctx
	}
	return context.Background()
}

// Progress publishes a non-terminal stage update. It returns false when the
// update was rejected because the job reached a terminal status (canceled)
// concurrently; the pipeline must stop then.
func (c *Context) Progress(status domain.JobStatus, pct int) bool {
	now := time.Now()
	ok, err := c.repo.UpdateFieldsUnlessStatus(c.Ctx, nil, c.Job.ID,
		[]domain.JobStatus{domain.JobCanceled, domain.JobFailed, domain.JobDone},
		map[string]interface{}{
			"status":       status,
			"progress":     pct,
			"heartbeat_at": now,
		})
	if err != nil {
		c.log.Warn("Job progress update failed", "error", err)
		return true // transient write failure is not a cancellation
	}
	if !ok {
		return false
	}

	c.Job.Status = status
	c.Job.Progress = pct
	c.Job.HeartbeatAt = &now
	c.publish("")
	return true
}

// Fail records a terminal failure with its error kind. The job stays
// retryable through an explicit re-enqueue when the kind allows it.
func (c *Context) Fail(kind string, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	now := time.Now()
	ok, uerr := c.repo.UpdateFieldsUnlessStatus(c.writeCtx(), nil, c.Job.ID,
		[]domain.JobStatus{domain.JobCanceled},
		map[string]interface{}{
			"status":       domain.JobFailed,
			"error_kind":   kind,
			"error":        msg,
			"locked_at":    nil,
			"heartbeat_at": now,
		})
	if uerr != nil {
		c.log.Error("Job fail update failed", "error", uerr)
		return
	}
	if !ok {
		return
	}

	c.Job.Status = domain.JobFailed
	c.Job.ErrorKind = kind
	c.Job.Error = msg
	c.Job.LockedAt = nil
	c.publish(kind)
}

// Succeed marks the job done and attaches the produced result.
func (c *Context) Succeed(resultID uuid.UUID) {
	ok, err := c.repo.UpdateFieldsUnlessStatus(c.writeCtx(), nil, c.Job.ID,
		[]domain.JobStatus{domain.JobCanceled},
		map[string]interface{}{
			"status":    domain.JobDone,
			"progress":  100,
			"result_id": resultID,
			"locked_at": nil,
		})
	if err != nil {
		c.log.Error("Job success update failed", "error", err)
		return
	}
	if !ok {
		return
	}

	c.Job.Status = domain.JobDone
	c.Job.Progress = 100
	c.Job.ResultID = &resultID
	c.Job.LockedAt = nil
	c.publish("")
}

func (c *Context) publish(errorKind string) {
	if c.bus == nil {
		return
	}
	ev := realtime.JobEvent{
		JobID:        c.Job.ID,
		SubmissionID: c.Job.SubmissionID,
		Revision:     c.Job.Revision,
		Status:       string(c.Job.Status),
		Progress:     c.Job.Progress,
		ErrorKind:    errorKind,
	}
	if err := c.bus.PublishJob(c.writeCtx(), ev); err != nil {
		c.log.Debug("Job event publish failed", "error", err)
	}
}
