package corpus

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/clearcite/integrity-engine/internal/data/repos"
	"github.com/clearcite/integrity-engine/internal/domain"
	"github.com/clearcite/integrity-engine/internal/platform/logger"
)

// Entry is one corpus source with its fingerprint set, decoded out of the
// stored row for fast membership checks during matching.
type Entry struct {
	SourceID    string
	SourceType  domain.CorpusSourceType
	Title       string
	URL         string
	Tags        []string
	TokenCount  int
	PublishedAt *time.Time

	fingerprints map[uint64]struct{}
}

func (e *Entry) HasFingerprint(fp uint64) bool {
	_, ok := e.fingerprints[fp]
	return ok
}

// Snapshot is one immutable, internally consistent view of the corpus. An
// in-flight match holds its snapshot end-to-end; reloads build a fresh one
// and swap the pointer, never mutating a published snapshot.
type Snapshot struct {
	entries  map[string]*Entry
	inverted map[uint64][]string // fingerprint -> sorted source ids
	loadedAt time.Time
}

func (s *Snapshot) Entry(sourceID string) *Entry {
	return s.entries[sourceID]
}

// Candidates returns the source ids sharing this fingerprint, in a stable
// sorted order so matching stays deterministic.
func (s *Snapshot) Candidates(fp uint64) []string {
	return s.inverted[fp]
}

func (s *Snapshot) Size() int { return len(s.entries) }

func (s *Snapshot) LoadedAt() time.Time { return s.loadedAt }

// Index holds the current corpus snapshot behind an atomic pointer. Many
// concurrent readers, no locks; writers swap whole snapshots.
type Index struct {
	repo repos.CorpusRepo
	log  *logger.Logger
	snap atomic.Pointer[Snapshot]
}

func NewIndex(repo repos.CorpusRepo, baseLog *logger.Logger) *Index {
	return &Index{repo: repo, log: baseLog.With("component", "CorpusIndex")}
}

// Snapshot returns the current snapshot, or ErrIndexUnavailable if no load
// has succeeded yet. Matching fails whole on that error; there is no
// degraded smaller-scope search.
func (i *Index) Snapshot() (*Snapshot, error) {
	s := i.snap.Load()
	if s == nil {
		return nil, domain.ErrIndexUnavailable
	}
	return s, nil
}

// Reload builds a snapshot from the corpus store and atomically publishes it.
// Jobs already matching keep the snapshot they started with.
func (i *Index) Reload(ctx context.Context) error {
	rows, err := i.repo.ListEntries(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}

	snap := &Snapshot{
		entries:  make(map[string]*Entry, len(rows)),
		inverted: make(map[uint64][]string),
		loadedAt: time.Now(),
	}
	for _, row := range rows {
		entry, err := decodeEntry(row)
		if err != nil {
			i.log.Warn("Skipping undecodable corpus entry", "source_id", row.SourceID, "error", err)
			continue
		}
		snap.entries[entry.SourceID] = entry
		for fp := range entry.fingerprints {
			snap.inverted[fp] = append(snap.inverted[fp], entry.SourceID)
		}
	}
	for fp := range snap.inverted {
		sort.Strings(snap.inverted[fp])
	}

	i.snap.Store(snap)
	i.log.Info("Corpus snapshot loaded", "entries", snap.Size(), "fingerprints", len(snap.inverted))
	return nil
}

func decodeEntry(row *domain.CorpusEntry) (*Entry, error) {
	var fps []uint64
	if len(row.Fingerprints) > 0 {
		if err := json.Unmarshal(row.Fingerprints, &fps); err != nil {
			return nil, fmt.Errorf("fingerprints: %w", err)
		}
	}
	var tags []string
	if len(row.TopicTags) > 0 {
		if err := json.Unmarshal(row.TopicTags, &tags); err != nil {
			return nil, fmt.Errorf("topic_tags: %w", err)
		}
	}

	entry := &Entry{
		SourceID:     row.SourceID,
		SourceType:   row.SourceType,
		Title:        row.Title,
		URL:          row.URL,
		Tags:         tags,
		TokenCount:   row.TokenCount,
		PublishedAt:  row.PublishedAt,
		fingerprints: make(map[uint64]struct{}, len(fps)),
	}
	for _, fp := range fps {
		entry.fingerprints[fp] = struct{}{}
	}
	return entry, nil
}

// SnapshotFromEntries builds a standalone snapshot without a store behind it.
// Used by tests and by corpusctl dry runs.
func SnapshotFromEntries(entries []*Entry) *Snapshot {
	snap := &Snapshot{
		entries:  make(map[string]*Entry, len(entries)),
		inverted: make(map[uint64][]string),
		loadedAt: time.Now(),
	}
	for _, e := range entries {
		snap.entries[e.SourceID] = e
		for fp := range e.fingerprints {
			snap.inverted[fp] = append(snap.inverted[fp], e.SourceID)
		}
	}
	for fp := range snap.inverted {
		sort.Strings(snap.inverted[fp])
	}
	return snap
}

// NewEntry builds an in-memory corpus entry from a fingerprint list.
func NewEntry(sourceID, title string, sourceType domain.CorpusSourceType, tags []string, fps []uint64) *Entry {
	e := &Entry{
		SourceID:     sourceID,
		SourceType:   sourceType,
		Title:        title,
		Tags:         tags,
		fingerprints: make(map[uint64]struct{}, len(fps)),
	}
	for _, fp := range fps {
		e.fingerprints[fp] = struct{}{}
	}
	return e
}
