package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/clearcite/integrity-engine/internal/corpus"
	"github.com/clearcite/integrity-engine/internal/data/repos/testutil"
	"github.com/clearcite/integrity-engine/internal/domain"
)

type stubStore struct {
	works []*domain.ReferenceWork
	err   error
}

func (s stubStore) ListWorks(context.Context) ([]*domain.ReferenceWork, error) {
	return s.works, s.err
}

func work(sourceID, title string, published time.Time, tags ...string) *domain.ReferenceWork {
	raw, _ := json.Marshal(tags)
	p := published
	return &domain.ReferenceWork{
		SourceID:    sourceID,
		SourceType:  domain.SourceJournal,
		Title:       title,
		URL:         "https://library.example/" + sourceID,
		TopicTags:   datatypes.JSON(raw),
		PublishedAt: &p,
	}
}

func taggedSnapshot(tagsBySource map[string][]string) *corpus.Snapshot {
	var entries []*corpus.Entry
	for id, tags := range tagsBySource {
		entries = append(entries, corpus.NewEntry(id, "Title of "+id, domain.SourceJournal, tags, nil))
	}
	return corpus.SnapshotFromEntries(entries)
}

func spanFor(sourceID string) domain.MatchSpan {
	return domain.MatchSpan{SourceID: sourceID, SourceTitle: "Title of " + sourceID, LocalRatio: 0.5}
}

func TestRecommendRanksByTagOverlapThenRecency(t *testing.T) {
	t.Parallel()

	old := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	store := stubStore{works: []*domain.ReferenceWork{
		work("lib-1", "One Tag Old", old, "ethics"),
		work("lib-2", "Two Tags", old, "ethics", "citation"),
		work("lib-3", "One Tag Recent", recent, "citation"),
		work("lib-4", "No Overlap", recent, "astronomy"),
	}}
	g := New(store, 4, testutil.Logger(t))

	snap := taggedSnapshot(map[string][]string{"src-1": {"ethics", "citation"}})
	recs := g.Recommend(context.Background(), []domain.MatchSpan{spanFor("src-1")}, snap)

	require.Len(t, recs, 3)
	assert.Equal(t, "Two Tags", recs[0].Title)
	assert.Equal(t, "One Tag Recent", recs[1].Title)
	assert.Equal(t, "One Tag Old", recs[2].Title)
	assert.InDelta(t, 1.0, recs[0].Relevance, 1e-9)
	assert.InDelta(t, 0.5, recs[1].Relevance, 1e-9)
}

func TestRecommendExcludesMatchedSources(t *testing.T) {
	t.Parallel()

	store := stubStore{works: []*domain.ReferenceWork{
		work("src-1", "The Matched Source Itself", time.Now(), "ethics"),
		work("lib-1", "Title of src-1", time.Now(), "ethics"),
		work("lib-2", "Legitimate Reading", time.Now(), "ethics"),
	}}
	g := New(store, 4, testutil.Logger(t))

	snap := taggedSnapshot(map[string][]string{"src-1": {"ethics"}})
	recs := g.Recommend(context.Background(), []domain.MatchSpan{spanFor("src-1")}, snap)

	require.Len(t, recs, 1)
	assert.Equal(t, "Legitimate Reading", recs[0].Title)
}

func TestRecommendDeduplicatesTitlesAndAppliesTopK(t *testing.T) {
	t.Parallel()

	var works []*domain.ReferenceWork
	for i := 0; i < 6; i++ {
		works = append(works, work(fmt.Sprintf("lib-%d", i), fmt.Sprintf("Reading %d", i), time.Now(), "ethics"))
	}
	works = append(works, work("lib-dup", "Reading 0", time.Now(), "ethics"))

	g := New(stubStore{works: works}, 4, testutil.Logger(t))
	snap := taggedSnapshot(map[string][]string{"src-1": {"ethics"}})

	recs := g.Recommend(context.Background(), []domain.MatchSpan{spanFor("src-1")}, snap)
	require.Len(t, recs, 4)
	seen := map[string]bool{}
	for _, r := range recs {
		assert.False(t, seen[r.Title], "duplicate title %q", r.Title)
		seen[r.Title] = true
	}
}

func TestRecommendStoreFailureIsBestEffort(t *testing.T) {
	t.Parallel()

	g := New(stubStore{err: fmt.Errorf("connection refused")}, 4, testutil.Logger(t))
	snap := taggedSnapshot(map[string][]string{"src-1": {"ethics"}})

	recs := g.Recommend(context.Background(), []domain.MatchSpan{spanFor("src-1")}, snap)
	assert.Empty(t, recs)
}

func TestRecommendNoSpansNoWork(t *testing.T) {
	t.Parallel()

	g := New(stubStore{works: []*domain.ReferenceWork{work("lib-1", "X", time.Now(), "ethics")}}, 4, testutil.Logger(t))
	snap := taggedSnapshot(map[string][]string{"src-1": {"ethics"}})

	assert.Empty(t, g.Recommend(context.Background(), nil, snap))
	assert.Empty(t, g.Recommend(context.Background(), []domain.MatchSpan{spanFor("src-1")}, nil))
}
