package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/clearcite/integrity-engine/internal/domain"
	"github.com/clearcite/integrity-engine/internal/platform/logger"
)

// CorpusRepo reads the shared reference corpus. Upsert exists for the
// out-of-band seed tool only; the engine itself never writes here.
type CorpusRepo interface {
	ListEntries(ctx context.Context, tx *gorm.DB) ([]*domain.CorpusEntry, error)
	UpsertEntry(ctx context.Context, tx *gorm.DB, entry *domain.CorpusEntry) error
}

type corpusRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCorpusRepo(db *gorm.DB, baseLog *logger.Logger) CorpusRepo {
	return &corpusRepo{db: db, log: baseLog.With("repo", "CorpusRepo")}
}

func (r *corpusRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *corpusRepo) ListEntries(ctx context.Context, tx *gorm.DB) ([]*domain.CorpusEntry, error) {
	var out []*domain.CorpusEntry
	if err := r.conn(tx).WithContext(ctx).Order("source_id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *corpusRepo) UpsertEntry(ctx context.Context, tx *gorm.DB, entry *domain.CorpusEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.AddedAt.IsZero() {
		entry.AddedAt = time.Now()
	}
	return r.conn(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"source_type", "title", "url", "topic_tags", "fingerprints", "token_count", "published_at"}),
		}).
		Create(entry).Error
}

type LibraryRepo interface {
	ListWorks(ctx context.Context, tx *gorm.DB) ([]*domain.ReferenceWork, error)
	UpsertWork(ctx context.Context, tx *gorm.DB, work *domain.ReferenceWork) error
}

type libraryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLibraryRepo(db *gorm.DB, baseLog *logger.Logger) LibraryRepo {
	return &libraryRepo{db: db, log: baseLog.With("repo", "LibraryRepo")}
}

func (r *libraryRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *libraryRepo) ListWorks(ctx context.Context, tx *gorm.DB) ([]*domain.ReferenceWork, error) {
	var out []*domain.ReferenceWork
	if err := r.conn(tx).WithContext(ctx).Order("title ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *libraryRepo) UpsertWork(ctx context.Context, tx *gorm.DB, work *domain.ReferenceWork) error {
	if work.ID == uuid.Nil {
		work.ID = uuid.New()
	}
	if work.AddedAt.IsZero() {
		work.AddedAt = time.Now()
	}
	return r.conn(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"source_type", "title", "url", "topic_tags", "published_at"}),
		}).
		Create(work).Error
}
