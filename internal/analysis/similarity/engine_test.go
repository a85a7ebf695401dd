package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearcite/integrity-engine/internal/analysis/ingest"
	"github.com/clearcite/integrity-engine/internal/corpus"
	"github.com/clearcite/integrity-engine/internal/data/repos/testutil"
	"github.com/clearcite/integrity-engine/internal/domain"
)

func snapshotOf(entries ...*corpus.Entry) *corpus.Snapshot {
	return corpus.SnapshotFromEntries(entries)
}

func entryFromText(sourceID, title, text string, k int) *corpus.Entry {
	norm := ingest.Normalize(text)
	return corpus.NewEntry(sourceID, title, domain.SourceJournal, nil, Fingerprints(norm, k))
}

func TestMatchRequiresSnapshot(t *testing.T) {
	t.Parallel()
	e := NewEngine(5, 3, 1, testutil.Logger(t))

	_, err := e.Match(ingest.Normalize("some document text"), nil)
	assert.ErrorIs(t, err, domain.ErrIndexUnavailable)
}

func TestMatchExactCopy(t *testing.T) {
	t.Parallel()
	e := NewEngine(5, 3, 1, testutil.Logger(t))

	text := "machine learning systems require careful evaluation of training data quality"
	doc := ingest.Normalize(text)
	snap := snapshotOf(entryFromText("src-1", "ML Evaluation", text, 5))

	spans, err := e.Match(doc, snap)
	require.NoError(t, err)
	require.Len(t, spans, 1)

	sp := spans[0]
	assert.Equal(t, 0, sp.StartToken)
	assert.Equal(t, len(doc.Tokens), sp.EndToken)
	assert.Equal(t, "src-1", sp.SourceID)
	assert.Equal(t, len(doc.Tokens), sp.MatchedTokens)
	assert.InDelta(t, 1.0, sp.LocalRatio, 1e-9)
	assert.Equal(t, text, sp.Excerpt)
}

func TestMatchIsCaseInsensitive(t *testing.T) {
	t.Parallel()
	e := NewEngine(5, 3, 1, testutil.Logger(t))

	doc := ingest.Normalize("Machine Learning Systems Require Careful Evaluation Of Training Data")
	snap := snapshotOf(entryFromText("src-1", "ML", "machine learning systems require careful evaluation of training data", 5))

	spans, err := e.Match(doc, snap)
	require.NoError(t, err)
	require.Len(t, spans, 1)
	// Excerpt keeps the document's own casing.
	assert.Contains(t, spans[0].Excerpt, "Machine Learning")
}

func TestMatchDiscardsShortRuns(t *testing.T) {
	t.Parallel()
	e := NewEngine(5, 3, 1, testutil.Logger(t))

	// A shared run of 6 tokens yields only 2 matching shingles at k=5,
	// below the 3-shingle minimum.
	shared := "alpha beta gamma delta epsilon zeta"
	doc := ingest.Normalize("intro words here " + shared + " closing remarks follow now")
	snap := snapshotOf(entryFromText("src-1", "Short", shared, 5))

	spans, err := e.Match(doc, snap)
	require.NoError(t, err)
	assert.Empty(t, spans)
}

func TestMatchMergesAcrossGap(t *testing.T) {
	t.Parallel()

	doc := ingest.Normalize("one two three four five six seven eight nine ten eleven twelve")
	k := 3
	fps := Fingerprints(doc, k)
	require.True(t, len(fps) >= 6)

	// Entry matches shingles 0,1,3,4: a single-shingle hole that gap
	// tolerance 1 bridges into one run.
	entry := corpus.NewEntry("src-gap", "Gappy", domain.SourceWeb, nil,
		[]uint64{fps[0], fps[1], fps[3], fps[4]})
	snap := snapshotOf(entry)

	merged := NewEngine(k, 2, 1, testutil.Logger(t))
	spans, err := merged.Match(doc, snap)
	require.NoError(t, err)
	require.Len(t, spans, 1)
	assert.Equal(t, 0, spans[0].StartToken)
	assert.Equal(t, 4+k, spans[0].EndToken)
	// The hole's tokens are still covered by the neighboring windows.
	assert.InDelta(t, 1.0, spans[0].LocalRatio, 1e-9)
	assert.Equal(t, 4+k, spans[0].MatchedTokens)

	// With no tolerance the hole splits the run in two.
	strict := NewEngine(k, 2, 0, testutil.Logger(t))
	spans, err = strict.Match(doc, snap)
	require.NoError(t, err)
	assert.Len(t, spans, 2)
}

func TestMatchDeterministic(t *testing.T) {
	t.Parallel()
	e := NewEngine(5, 3, 1, testutil.Logger(t))

	doc := ingest.Normalize("students often paraphrase published work without attribution which the similarity engine should surface consistently across runs of the analysis")
	snap := snapshotOf(
		entryFromText("src-b", "B", "paraphrase published work without attribution which the similarity engine", 5),
		entryFromText("src-a", "A", "surface consistently across runs of the analysis", 5),
	)

	first, err := e.Match(doc, snap)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	for i := 0; i < 10; i++ {
		again, err := e.Match(doc, snap)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestMatchShortDocumentHasNoShingles(t *testing.T) {
	t.Parallel()
	e := NewEngine(5, 3, 1, testutil.Logger(t))

	doc := ingest.Normalize("too short")
	snap := snapshotOf(entryFromText("src-1", "X", "too short", 5))

	spans, err := e.Match(doc, snap)
	require.NoError(t, err)
	assert.Empty(t, spans)
}

func TestFingerprintSeparatorDisambiguates(t *testing.T) {
	t.Parallel()

	a := Fingerprint([]string{"ab", "c"}, 0, 2)
	b := Fingerprint([]string{"a", "bc"}, 0, 2)
	assert.NotEqual(t, a, b)
}
