package db

import (
	"gorm.io/gorm"

	"github.com/clearcite/integrity-engine/internal/domain"
)

func AutoMigrateAll(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&domain.Submission{},
		&domain.SubmissionTransition{},
		&domain.Document{},
		&domain.AnalysisResult{},
		&domain.AnalysisJob{},
		&domain.CorpusEntry{},
		&domain.ReferenceWork{},
	)
}
