package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clearcite/integrity-engine/internal/domain"
	"github.com/clearcite/integrity-engine/internal/platform/logger"
)

// AnalysisResultRepo is append-only: results are inserted once per revision
// and never updated, so prior revisions stay intact for audit.
type AnalysisResultRepo interface {
	Create(ctx context.Context, tx *gorm.DB, res *domain.AnalysisResult) error
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.AnalysisResult, error)
	GetByRevision(ctx context.Context, tx *gorm.DB, submissionID uuid.UUID, revision int) (*domain.AnalysisResult, error)
	ListBySubmission(ctx context.Context, tx *gorm.DB, submissionID uuid.UUID) ([]*domain.AnalysisResult, error)
}

type analysisResultRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAnalysisResultRepo(db *gorm.DB, baseLog *logger.Logger) AnalysisResultRepo {
	return &analysisResultRepo{db: db, log: baseLog.With("repo", "AnalysisResultRepo")}
}

func (r *analysisResultRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *analysisResultRepo) Create(ctx context.Context, tx *gorm.DB, res *domain.AnalysisResult) error {
	if res.ID == uuid.Nil {
		res.ID = uuid.New()
	}
	return r.conn(tx).WithContext(ctx).Create(res).Error
}

func (r *analysisResultRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.AnalysisResult, error) {
	var res domain.AnalysisResult
	err := r.conn(tx).WithContext(ctx).Where("id = ?", id).First(&res).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *analysisResultRepo) GetByRevision(ctx context.Context, tx *gorm.DB, submissionID uuid.UUID, revision int) (*domain.AnalysisResult, error) {
	var res domain.AnalysisResult
	err := r.conn(tx).WithContext(ctx).
		Where("submission_id = ? AND revision = ?", submissionID, revision).
		First(&res).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *analysisResultRepo) ListBySubmission(ctx context.Context, tx *gorm.DB, submissionID uuid.UUID) ([]*domain.AnalysisResult, error) {
	var out []*domain.AnalysisResult
	err := r.conn(tx).WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("revision ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
