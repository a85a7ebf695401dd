package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/clearcite/integrity-engine/internal/data/repos"
	"github.com/clearcite/integrity-engine/internal/domain"
	"github.com/clearcite/integrity-engine/internal/platform/logger"
)

// Enqueuer provides claim-or-join job submission: at most one non-failed job
// per (submission, revision). Concurrent enqueues for the same revision
// collapse onto one execution via singleflight, and the existing-job check
// inside the flight catches enqueues spaced out in time.
type Enqueuer struct {
	repo repos.AnalysisJobRepo
	log  *logger.Logger
	sf   singleflight.Group
}

func NewEnqueuer(repo repos.AnalysisJobRepo, baseLog *logger.Logger) *Enqueuer {
	return &Enqueuer{repo: repo, log: baseLog.With("component", "JobEnqueuer")}
}

func (e *Enqueuer) Enqueue(ctx context.Context, submissionID uuid.UUID, revision int) (*domain.AnalysisJob, error) {
	key := fmt.Sprintf("%s:%d", submissionID, revision)
	v, err, _ := e.sf.Do(key, func() (interface{}, error) {
		// Joined callers share this one execution; detach it from the first
		// caller's context so their disconnect cannot fail everyone else.
		ctx := context.WithoutCancel(ctx)

		existing, err := e.repo.FindActive(ctx, nil, submissionID, revision)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}

		job := &domain.AnalysisJob{
			ID:           uuid.New(),
			JobType:      domain.JobTypeDocumentAnalysis,
			SubmissionID: submissionID,
			Revision:     revision,
			Status:       domain.JobQueued,
			CreatedAt:    time.Now(),
		}
		if err := e.repo.Create(ctx, nil, job); err != nil {
			return nil, err
		}
		e.log.Info("Analysis job enqueued", "job_id", job.ID, "submission_id", submissionID, "revision", revision)
		return job, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.AnalysisJob), nil
}

// Cancel stops a job if it has not entered matching yet. Returns false when
// the job was past the cancelable window or already terminal.
func (e *Enqueuer) Cancel(ctx context.Context, jobID uuid.UUID) (bool, error) {
	return e.repo.CancelIfCancelable(ctx, nil, jobID)
}
