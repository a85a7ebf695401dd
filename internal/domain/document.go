package domain

import (
	"time"

	"github.com/google/uuid"
)

type DocumentFormat string

const (
	FormatPDF  DocumentFormat = "pdf"
	FormatDOCX DocumentFormat = "docx"
	FormatTXT  DocumentFormat = "txt"
)

// Document is one immutable revision of a submission's content. A
// resubmission inserts a new row with revision = previous + 1; earlier
// revisions are never touched again.
type Document struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	SubmissionID   uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:ux_document_submission_revision" json:"submission_id"`
	Revision       int            `gorm:"not null;uniqueIndex:ux_document_submission_revision" json:"revision"`
	Filename       string         `gorm:"column:filename" json:"filename"`
	Format         DocumentFormat `gorm:"column:format;not null" json:"format"`
	Content        []byte         `gorm:"column:content" json:"-"`
	NormalizedText string         `gorm:"column:normalized_text" json:"-"`
	TokenCount     int            `gorm:"column:token_count;not null;default:0" json:"token_count"`
	CreatedAt      time.Time      `gorm:"not null;index" json:"created_at"`
}

func (Document) TableName() string { return "document" }
