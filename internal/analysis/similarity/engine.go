package similarity

import (
	"sort"

	"github.com/clearcite/integrity-engine/internal/analysis/ingest"
	"github.com/clearcite/integrity-engine/internal/corpus"
	"github.com/clearcite/integrity-engine/internal/domain"
	"github.com/clearcite/integrity-engine/internal/platform/logger"
)

const excerptMaxRunes = 160

// Engine matches a document's shingle sequence against a corpus snapshot.
// It is deterministic: the same normalized text and the same snapshot yield
// an identical ordered span sequence, so results are reproducible.
type Engine struct {
	shingleSize     int
	minSpanShingles int
	gapTolerance    int
	log             *logger.Logger
}

func NewEngine(shingleSize, minSpanShingles, gapTolerance int, baseLog *logger.Logger) *Engine {
	return &Engine{
		shingleSize:     shingleSize,
		minSpanShingles: minSpanShingles,
		gapTolerance:    gapTolerance,
		log:             baseLog.With("component", "SimilarityEngine"),
	}
}

func (e *Engine) ShingleSize() int { return e.shingleSize }

// Match produces raw spans ordered by descending local ratio. Spans from
// different sources may still overlap here; the scorer resolves overlaps.
func (e *Engine) Match(doc *ingest.NormalizedText, snap *corpus.Snapshot) ([]domain.MatchSpan, error) {
	if snap == nil {
		return nil, domain.ErrIndexUnavailable
	}
	fps := Fingerprints(doc, e.shingleSize)
	if len(fps) == 0 {
		return nil, nil
	}

	// Candidate sources sharing at least one fingerprint, iterated in sorted
	// order so span output is stable.
	candidateSet := make(map[string]struct{})
	for _, fp := range fps {
		for _, id := range snap.Candidates(fp) {
			candidateSet[id] = struct{}{}
		}
	}
	candidates := make([]string, 0, len(candidateSet))
	for id := range candidateSet {
		candidates = append(candidates, id)
	}
	sort.Strings(candidates)

	var spans []domain.MatchSpan
	for _, id := range candidates {
		entry := snap.Entry(id)
		if entry == nil {
			continue
		}
		spans = append(spans, e.matchSource(doc, fps, entry)...)
	}

	sort.SliceStable(spans, func(a, b int) bool {
		if spans[a].LocalRatio != spans[b].LocalRatio {
			return spans[a].LocalRatio > spans[b].LocalRatio
		}
		if spans[a].StartToken != spans[b].StartToken {
			return spans[a].StartToken < spans[b].StartToken
		}
		return spans[a].SourceID < spans[b].SourceID
	})
	return spans, nil
}

// matchSource walks the document shingles against one source, merging runs
// of matching shingles. A run survives at most gapTolerance consecutive
// non-matching shingles before it closes.
func (e *Engine) matchSource(doc *ingest.NormalizedText, fps []uint64, entry *corpus.Entry) []domain.MatchSpan {
	var out []domain.MatchSpan

	runStart := -1 // first matched shingle of the open run
	lastMatch := -1
	for i := 0; i <= len(fps); i++ {
		matches := i < len(fps) && entry.HasFingerprint(fps[i])
		if matches {
			if runStart < 0 {
				runStart = i
			}
			lastMatch = i
			continue
		}
		if runStart >= 0 && (i == len(fps) || i-lastMatch > e.gapTolerance) {
			if span, ok := e.closeRun(doc, fps, entry, runStart, lastMatch); ok {
				out = append(out, span)
			}
			runStart = -1
			lastMatch = -1
		}
	}
	return out
}

func (e *Engine) closeRun(doc *ingest.NormalizedText, fps []uint64, entry *corpus.Entry, runStart, lastMatch int) (domain.MatchSpan, bool) {
	if lastMatch-runStart+1 < e.minSpanShingles {
		return domain.MatchSpan{}, false
	}

	k := e.shingleSize
	startToken := runStart
	endToken := lastMatch + k

	// Matched token count is the union of [i, i+k) over matched shingles: a
	// shingle d positions after the previous one contributes min(d, k) new
	// tokens, since closer windows overlap.
	matchedTokens := 0
	prev := -1
	for i := runStart; i <= lastMatch; i++ {
		if !entry.HasFingerprint(fps[i]) {
			continue
		}
		if prev < 0 {
			matchedTokens += k
		} else if d := i - prev; d < k {
			matchedTokens += d
		} else {
			matchedTokens += k
		}
		prev = i
	}

	spanTokens := endToken - startToken
	span := domain.MatchSpan{
		StartToken:    startToken,
		EndToken:      endToken,
		SourceID:      entry.SourceID,
		SourceTitle:   entry.Title,
		SourceType:    entry.SourceType,
		MatchedTokens: matchedTokens,
		LocalRatio:    float64(matchedTokens) / float64(spanTokens),
		Severity:      domain.SeverityNone,
		Excerpt:       excerpt(doc, startToken, endToken),
	}
	return span, true
}

func excerpt(doc *ingest.NormalizedText, startToken, endToken int) string {
	if startToken >= len(doc.Tokens) {
		return ""
	}
	last := endToken - 1
	if last >= len(doc.Tokens) {
		last = len(doc.Tokens) - 1
	}
	text := doc.Text[doc.Tokens[startToken].Start:doc.Tokens[last].End]
	runes := []rune(text)
	if len(runes) > excerptMaxRunes {
		return string(runes[:excerptMaxRunes]) + "..."
	}
	return text
}
