package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/clearcite/integrity-engine/internal/data/repos"
	"github.com/clearcite/integrity-engine/internal/domain"
	"github.com/clearcite/integrity-engine/internal/jobs/runtime"
	"github.com/clearcite/integrity-engine/internal/platform/logger"
	"github.com/clearcite/integrity-engine/internal/realtime"
)

const staleJobAfter = 10 * time.Minute

// Worker polls for claimable jobs and dispatches them through the handler
// registry. Jobs from different submissions run concurrently, one per loop.
type Worker struct {
	repo         repos.AnalysisJobRepo
	registry     *runtime.Registry
	bus          realtime.Bus
	log          *logger.Logger
	concurrency  int
	pollInterval time.Duration
	jobTimeout   time.Duration
}

func NewWorker(repo repos.AnalysisJobRepo, registry *runtime.Registry, bus realtime.Bus, baseLog *logger.Logger, concurrency int, pollInterval, jobTimeout time.Duration) *Worker {
	if concurrency < 1 {
		concurrency = 1
	}
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &Worker{
		repo:         repo,
		registry:     registry,
		bus:          bus,
		log:          baseLog.With("component", "JobWorker"),
		concurrency:  concurrency,
		pollInterval: pollInterval,
		jobTimeout:   jobTimeout,
	}
}

func (w *Worker) Start(ctx context.Context) {
	w.log.Info("Starting job worker pool", "concurrency", w.concurrency)
	for i := 0; i < w.concurrency; i++ {
		go w.runLoop(ctx, i+1)
	}
}

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
			job, err := w.repo.ClaimNextQueued(ctx, nil, staleJobAfter)
			if err != nil {
				w.log.Warn("Claim failed", "worker_id", workerID, "error", err)
				continue
			}
			if job == nil {
				continue
			}
			w.runOne(ctx, workerID, job)
		}
	}
}

// RunOnce claims and runs at most one job synchronously. Exists for tests
// and for the corpusctl reanalyze path; the serving path uses Start.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.repo.ClaimNextQueued(ctx, nil, staleJobAfter)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	w.runOne(ctx, 0, job)
	return true, nil
}

func (w *Worker) runOne(parent context.Context, workerID int, job *domain.AnalysisJob) {
	ctx, cancel := context.WithTimeout(parent, w.jobTimeout)
	defer cancel()

	jc := runtime.NewContext(ctx, job, w.repo, w.bus, w.log)

	h, ok := w.registry.Get(job.JobType)
	if !ok {
		w.log.Warn("No handler registered for job type", "worker_id", workerID, "job_type", job.JobType, "job_id", job.ID)
		jc.Fail(domain.ErrKindInternal, fmt.Errorf("no handler registered for job_type=%s", job.JobType))
		return
	}

	defer func() {
		if r := recover(); r != nil {
			w.log.Error("Job handler panic", "worker_id", workerID, "job_id", job.ID, "panic", r)
			jc.Fail(domain.ErrKindInternal, fmt.Errorf("panic: %v", r))
		}
	}()

	// Handlers report their own terminal outcome; an error here is the
	// safety net for bugs, not the normal failure path.
	if runErr := h.Run(jc); runErr != nil {
		jc.Fail(domain.ErrorKind(runErr), runErr)
	}
}
