package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type CorpusSourceType string

const (
	SourceWeb             CorpusSourceType = "web"
	SourceJournal         CorpusSourceType = "journal"
	SourcePriorSubmission CorpusSourceType = "prior_submission"
)

// CorpusEntry is fingerprinted reference text. Rows are written by an
// out-of-band ingestion process (see cmd/corpusctl); the engine only reads
// them when building an index snapshot.
type CorpusEntry struct {
	ID           uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	SourceID     string           `gorm:"column:source_id;not null;uniqueIndex" json:"source_id"`
	SourceType   CorpusSourceType `gorm:"column:source_type;not null;index" json:"source_type"`
	Title        string           `gorm:"column:title;not null" json:"title"`
	URL          string           `gorm:"column:url" json:"url,omitempty"`
	TopicTags    datatypes.JSON   `gorm:"column:topic_tags" json:"topic_tags"`
	Fingerprints datatypes.JSON   `gorm:"column:fingerprints" json:"-"`
	TokenCount   int              `gorm:"column:token_count;not null;default:0" json:"token_count"`
	PublishedAt  *time.Time       `gorm:"column:published_at" json:"published_at,omitempty"`
	AddedAt      time.Time        `gorm:"column:added_at;not null" json:"added_at"`
}

func (CorpusEntry) TableName() string { return "corpus_entry" }

// ReferenceWork is an entry in the topic-indexed reference library used for
// remediation recommendations. Separate from the matching corpus: these are
// things we want students to read, not things we match against.
type ReferenceWork struct {
	ID          uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	SourceID    string           `gorm:"column:source_id;not null;uniqueIndex" json:"source_id"`
	SourceType  CorpusSourceType `gorm:"column:source_type;not null" json:"source_type"`
	Title       string           `gorm:"column:title;not null" json:"title"`
	URL         string           `gorm:"column:url" json:"url,omitempty"`
	TopicTags   datatypes.JSON   `gorm:"column:topic_tags" json:"topic_tags"`
	PublishedAt *time.Time       `gorm:"column:published_at" json:"published_at,omitempty"`
	AddedAt     time.Time        `gorm:"column:added_at;not null" json:"added_at"`
}

func (ReferenceWork) TableName() string { return "reference_library" }
