package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Severity string

const (
	SeverityHigh     Severity = "high"
	SeverityModerate Severity = "moderate"
	SeverityNone     Severity = "none"
)

// MatchSpan is a contiguous run of document tokens attributed to one corpus
// source. Token indices are half-open [StartToken, EndToken). LocalRatio is
// the matched fraction of the span itself, not of the whole document.
type MatchSpan struct {
	StartToken    int              `json:"start_token"`
	EndToken      int              `json:"end_token"`
	SourceID      string           `json:"source_id"`
	SourceTitle   string           `json:"source_title"`
	SourceType    CorpusSourceType `json:"source_type"`
	MatchedTokens int              `json:"matched_tokens"`
	LocalRatio    float64          `json:"local_ratio"`
	Severity      Severity         `json:"severity"`
	Excerpt       string           `json:"excerpt,omitempty"`
}

func (s MatchSpan) TokenLen() int { return s.EndToken - s.StartToken }

func (s MatchSpan) Overlaps(other MatchSpan) bool {
	return s.StartToken < other.EndToken && other.StartToken < s.EndToken
}

type Recommendation struct {
	Title      string           `json:"title"`
	URL        string           `json:"url,omitempty"`
	SourceType CorpusSourceType `json:"source_type"`
	Relevance  float64          `json:"relevance"`
}

// AnalysisResult is the immutable outcome of analyzing one document revision.
// Rows are append-only, keyed (submission, revision); re-analysis of a new
// revision inserts a new row and prior rows are retained for audit.
type AnalysisResult struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	SubmissionID    uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:ux_result_submission_revision" json:"submission_id"`
	DocumentID      uuid.UUID      `gorm:"type:uuid;not null" json:"document_id"`
	Revision        int            `gorm:"not null;uniqueIndex:ux_result_submission_revision" json:"revision"`
	Overall         float64        `gorm:"column:overall;not null" json:"overall"`
	Flagged         bool           `gorm:"column:flagged;not null" json:"flagged"`
	Spans           datatypes.JSON `gorm:"column:spans" json:"spans"`
	Recommendations datatypes.JSON `gorm:"column:recommendations" json:"recommendations"`
	ComputedAt      time.Time      `gorm:"column:computed_at;not null" json:"computed_at"`
}

func (AnalysisResult) TableName() string { return "analysis_result" }

func (r *AnalysisResult) SpanList() ([]MatchSpan, error) {
	var out []MatchSpan
	if len(r.Spans) == 0 {
		return out, nil
	}
	err := json.Unmarshal(r.Spans, &out)
	return out, err
}

func (r *AnalysisResult) RecommendationList() ([]Recommendation, error) {
	var out []Recommendation
	if len(r.Recommendations) == 0 {
		return out, nil
	}
	err := json.Unmarshal(r.Recommendations, &out)
	return out, err
}
