package domain

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobExtracting JobStatus = "extracting"
	JobMatching   JobStatus = "matching"
	JobScoring    JobStatus = "scoring"
	JobDone       JobStatus = "done"
	JobFailed     JobStatus = "failed"
	JobCanceled   JobStatus = "canceled"
)

const JobTypeDocumentAnalysis = "document_analysis"

// AnalysisJob is one asynchronous analysis run for a document revision.
// At most one non-terminal job exists per (submission, revision); enqueueing
// while one is active joins it instead of starting a second run.
type AnalysisJob struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	JobType      string     `gorm:"column:job_type;not null;index" json:"job_type"`
	SubmissionID uuid.UUID  `gorm:"type:uuid;not null;index:idx_job_submission_revision" json:"submission_id"`
	Revision     int        `gorm:"not null;index:idx_job_submission_revision" json:"revision"`
	Status       JobStatus  `gorm:"column:status;not null;index" json:"status"`
	Progress     int        `gorm:"column:progress;not null;default:0" json:"progress"`
	Attempts     int        `gorm:"column:attempts;not null;default:0" json:"attempts"`
	ErrorKind    string     `gorm:"column:error_kind" json:"error_kind,omitempty"`
	Error        string     `gorm:"column:error" json:"error,omitempty"`
	LockedAt     *time.Time `gorm:"column:locked_at;index" json:"locked_at,omitempty"`
	HeartbeatAt  *time.Time `gorm:"column:heartbeat_at" json:"heartbeat_at,omitempty"`
	ResultID     *uuid.UUID `gorm:"type:uuid;column:result_id" json:"result_id,omitempty"`
	CreatedAt    time.Time  `gorm:"not null;index" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"not null" json:"updated_at"`
}

func (AnalysisJob) TableName() string { return "analysis_job" }

// Terminal reports whether the job can make no further progress.
func (j *AnalysisJob) Terminal() bool {
	switch j.Status {
	case JobDone, JobFailed, JobCanceled:
		return true
	default:
		return false
	}
}

// Cancelable is true only before matching starts; once the similarity walk
// is running the job goes to completion or timeout.
func (j *AnalysisJob) Cancelable() bool {
	switch j.Status {
	case JobQueued, JobExtracting:
		return true
	default:
		return false
	}
}
