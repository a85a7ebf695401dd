package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clearcite/integrity-engine/internal/domain"
	"github.com/clearcite/integrity-engine/internal/platform/logger"
)

type DocumentRepo interface {
	Create(ctx context.Context, tx *gorm.DB, doc *domain.Document) error
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.Document, error)
	GetByRevision(ctx context.Context, tx *gorm.DB, submissionID uuid.UUID, revision int) (*domain.Document, error)
	MaxRevision(ctx context.Context, tx *gorm.DB, submissionID uuid.UUID) (int, error)
}

type documentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDocumentRepo(db *gorm.DB, baseLog *logger.Logger) DocumentRepo {
	return &documentRepo{db: db, log: baseLog.With("repo", "DocumentRepo")}
}

func (r *documentRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *documentRepo) Create(ctx context.Context, tx *gorm.DB, doc *domain.Document) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	return r.conn(tx).WithContext(ctx).Create(doc).Error
}

func (r *documentRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.Document, error) {
	var doc domain.Document
	err := r.conn(tx).WithContext(ctx).Where("id = ?", id).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepo) GetByRevision(ctx context.Context, tx *gorm.DB, submissionID uuid.UUID, revision int) (*domain.Document, error) {
	var doc domain.Document
	err := r.conn(tx).WithContext(ctx).
		Where("submission_id = ? AND revision = ?", submissionID, revision).
		First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepo) MaxRevision(ctx context.Context, tx *gorm.DB, submissionID uuid.UUID) (int, error) {
	var max *int
	err := r.conn(tx).WithContext(ctx).
		Model(&domain.Document{}).
		Where("submission_id = ?", submissionID).
		Select("MAX(revision)").
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}
