package repos

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clearcite/integrity-engine/internal/domain"
	"github.com/clearcite/integrity-engine/internal/platform/logger"
)

type SubmissionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, sub *domain.Submission) error
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.Submission, error)
	List(ctx context.Context, tx *gorm.DB, search string) ([]*domain.Submission, error)
	// UpdateStateCAS transitions state from -> to atomically; extra fields are
	// applied in the same UPDATE. Returns false when the row was not in the
	// expected state, leaving it untouched.
	UpdateStateCAS(ctx context.Context, tx *gorm.DB, id uuid.UUID, from, to domain.SubmissionState, extra map[string]interface{}) (bool, error)
	AppendTransition(ctx context.Context, tx *gorm.DB, tr *domain.SubmissionTransition) error
	ListTransitions(ctx context.Context, tx *gorm.DB, submissionID uuid.UUID) ([]*domain.SubmissionTransition, error)
}

type submissionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSubmissionRepo(db *gorm.DB, baseLog *logger.Logger) SubmissionRepo {
	return &submissionRepo{db: db, log: baseLog.With("repo", "SubmissionRepo")}
}

func (r *submissionRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *submissionRepo) Create(ctx context.Context, tx *gorm.DB, sub *domain.Submission) error {
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	return r.conn(tx).WithContext(ctx).Create(sub).Error
}

func (r *submissionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.Submission, error) {
	var sub domain.Submission
	err := r.conn(tx).WithContext(ctx).Where("id = ?", id).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *submissionRepo) List(ctx context.Context, tx *gorm.DB, search string) ([]*domain.Submission, error) {
	q := r.conn(tx).WithContext(ctx).Model(&domain.Submission{})
	if s := strings.TrimSpace(search); s != "" {
		q = q.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(s)+"%")
	}
	var out []*domain.Submission
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *submissionRepo) UpdateStateCAS(ctx context.Context, tx *gorm.DB, id uuid.UUID, from, to domain.SubmissionState, extra map[string]interface{}) (bool, error) {
	updates := map[string]interface{}{
		"state":      to,
		"updated_at": time.Now(),
	}
	for k, v := range extra {
		updates[k] = v
	}
	res := r.conn(tx).WithContext(ctx).
		Model(&domain.Submission{}).
		Where("id = ? AND state = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *submissionRepo) AppendTransition(ctx context.Context, tx *gorm.DB, tr *domain.SubmissionTransition) error {
	if tr.ID == uuid.Nil {
		tr.ID = uuid.New()
	}
	if tr.CreatedAt.IsZero() {
		tr.CreatedAt = time.Now()
	}
	return r.conn(tx).WithContext(ctx).Create(tr).Error
}

func (r *submissionRepo) ListTransitions(ctx context.Context, tx *gorm.DB, submissionID uuid.UUID) ([]*domain.SubmissionTransition, error) {
	var out []*domain.SubmissionTransition
	err := r.conn(tx).WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
