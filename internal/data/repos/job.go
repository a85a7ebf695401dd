package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clearcite/integrity-engine/internal/domain"
	"github.com/clearcite/integrity-engine/internal/platform/logger"
)

type AnalysisJobRepo interface {
	Create(ctx context.Context, tx *gorm.DB, job *domain.AnalysisJob) error
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.AnalysisJob, error)
	// FindActive returns the newest non-failed, non-canceled job for the
	// revision, or nil. A done job counts as active: its handle (and result)
	// is what an idempotent enqueue should hand back.
	FindActive(ctx context.Context, tx *gorm.DB, submissionID uuid.UUID, revision int) (*domain.AnalysisJob, error)
	// ClaimNextQueued picks the oldest claimable job and marks it locked.
	// Jobs whose worker stopped heartbeating past staleAfter are reclaimable.
	ClaimNextQueued(ctx context.Context, tx *gorm.DB, staleAfter time.Duration) (*domain.AnalysisJob, error)
	UpdateFieldsUnlessStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, disallowed []domain.JobStatus, updates map[string]interface{}) (bool, error)
	// CancelIfCancelable flips the job to canceled only while it has not yet
	// entered matching.
	CancelIfCancelable(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error)
	Heartbeat(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type analysisJobRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAnalysisJobRepo(db *gorm.DB, baseLog *logger.Logger) AnalysisJobRepo {
	return &analysisJobRepo{db: db, log: baseLog.With("repo", "AnalysisJobRepo")}
}

func (r *analysisJobRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *analysisJobRepo) Create(ctx context.Context, tx *gorm.DB, job *domain.AnalysisJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.JobType == "" {
		job.JobType = domain.JobTypeDocumentAnalysis
	}
	now := time.Now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	return r.conn(tx).WithContext(ctx).Create(job).Error
}

func (r *analysisJobRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.AnalysisJob, error) {
	var job domain.AnalysisJob
	err := r.conn(tx).WithContext(ctx).Where("id = ?", id).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *analysisJobRepo) FindActive(ctx context.Context, tx *gorm.DB, submissionID uuid.UUID, revision int) (*domain.AnalysisJob, error) {
	var job domain.AnalysisJob
	err := r.conn(tx).WithContext(ctx).
		Where("submission_id = ? AND revision = ? AND status NOT IN ?",
			submissionID, revision, []domain.JobStatus{domain.JobFailed, domain.JobCanceled}).
		Order("created_at DESC").
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *analysisJobRepo) ClaimNextQueued(ctx context.Context, tx *gorm.DB, staleAfter time.Duration) (*domain.AnalysisJob, error) {
	conn := r.conn(tx)
	now := time.Now()
	staleCutoff := now.Add(-staleAfter)

	// Two-step claim: pick a candidate, then a guarded UPDATE that only one
	// worker can win. Works on both postgres and sqlite, unlike SKIP LOCKED.
	for attempt := 0; attempt < 3; attempt++ {
		var job domain.AnalysisJob
		err := conn.WithContext(ctx).
			Where(`(status = ? AND locked_at IS NULL)
				OR (status IN ? AND heartbeat_at IS NOT NULL AND heartbeat_at < ?)`,
				domain.JobQueued,
				[]domain.JobStatus{domain.JobQueued, domain.JobExtracting, domain.JobMatching, domain.JobScoring},
				staleCutoff).
			Order("created_at ASC").
			First(&job).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}

		res := conn.WithContext(ctx).
			Model(&domain.AnalysisJob{}).
			Where("id = ? AND (locked_at IS NULL OR heartbeat_at < ?)", job.ID, staleCutoff).
			Updates(map[string]interface{}{
				"locked_at":    now,
				"heartbeat_at": now,
				"attempts":     gorm.Expr("attempts + 1"),
				"updated_at":   now,
			})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected > 0 {
			job.LockedAt = &now
			job.HeartbeatAt = &now
			job.Attempts++
			return &job, nil
		}
		// Lost the race for this row; try the next candidate.
	}
	return nil, nil
}

func (r *analysisJobRepo) UpdateFieldsUnlessStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, disallowed []domain.JobStatus, updates map[string]interface{}) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	q := r.conn(tx).WithContext(ctx).
		Model(&domain.AnalysisJob{}).
		Where("id = ?", id)
	if len(disallowed) > 0 {
		q = q.Where("status NOT IN ?", disallowed)
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *analysisJobRepo) CancelIfCancelable(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error) {
	now := time.Now()
	res := r.conn(tx).WithContext(ctx).
		Model(&domain.AnalysisJob{}).
		Where("id = ? AND status IN ?", id, []domain.JobStatus{domain.JobQueued, domain.JobExtracting}).
		Updates(map[string]interface{}{
			"status":     domain.JobCanceled,
			"locked_at":  nil,
			"updated_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *analysisJobRepo) Heartbeat(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	now := time.Now()
	return r.conn(tx).WithContext(ctx).
		Model(&domain.AnalysisJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"heartbeat_at": now, "updated_at": now}).Error
}
