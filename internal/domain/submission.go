package domain

import (
	"time"

	"github.com/google/uuid"
)

type SubmissionState string

const (
	StateDraft          SubmissionState = "draft"
	StateAnalyzing      SubmissionState = "analyzing"
	StateClear          SubmissionState = "clear"
	StateFlagged        SubmissionState = "flagged"
	StateSubmitted      SubmissionState = "submitted"
	StateGraded         SubmissionState = "graded"
	StateAnalysisFailed SubmissionState = "analysis_failed"
)

// Submission owns its chain of Document revisions and AnalysisResults. The
// row is mutated only through state-machine transitions; Grade is write-once.
type Submission struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	StudentID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"student_id"`
	AssignmentID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"assignment_id"`
	Title           string          `gorm:"column:title;not null" json:"title"`
	CurrentRevision int             `gorm:"column:current_revision;not null;default:0" json:"current_revision"`
	State           SubmissionState `gorm:"column:state;not null;index" json:"state"`
	Grade           *int            `gorm:"column:grade" json:"grade,omitempty"`
	GradedBy        *uuid.UUID      `gorm:"type:uuid;column:graded_by" json:"graded_by,omitempty"`
	GradedAt        *time.Time      `gorm:"column:graded_at" json:"graded_at,omitempty"`
	CreatedAt       time.Time       `gorm:"not null;index" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"not null" json:"updated_at"`
}

func (Submission) TableName() string { return "submission" }

// SubmissionTransition is one row of the audit log appended on every
// successful state change.
type SubmissionTransition struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	SubmissionID uuid.UUID       `gorm:"type:uuid;not null;index" json:"submission_id"`
	FromState    SubmissionState `gorm:"column:from_state;not null" json:"from_state"`
	ToState      SubmissionState `gorm:"column:to_state;not null" json:"to_state"`
	Event        string          `gorm:"column:event;not null" json:"event"`
	ActorID      uuid.UUID       `gorm:"type:uuid;column:actor_id" json:"actor_id"`
	CreatedAt    time.Time       `gorm:"not null;index" json:"created_at"`
}

func (SubmissionTransition) TableName() string { return "submission_transition" }
