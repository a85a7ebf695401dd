package recommend

import (
	"context"

	"github.com/clearcite/integrity-engine/internal/data/repos"
	"github.com/clearcite/integrity-engine/internal/domain"
)

type gormStore struct {
	repo repos.LibraryRepo
}

// NewGormStore adapts the reference library repo to the LibraryStore the
// generator consumes.
func NewGormStore(repo repos.LibraryRepo) LibraryStore {
	return gormStore{repo: repo}
}

func (s gormStore) ListWorks(ctx context.Context) ([]*domain.ReferenceWork, error) {
	return s.repo.ListWorks(ctx, nil)
}
