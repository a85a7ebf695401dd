package score

import (
	"sort"

	"github.com/clearcite/integrity-engine/internal/domain"
)

// Scorer aggregates match spans into the overall originality score and the
// flag decision. Threshold and tier boundaries come from configuration so
// institutions can tune policy without touching the matching algorithm.
type Scorer struct {
	flagThreshold    float64
	highSeverity     float64
	moderateSeverity float64
}

func New(flagThreshold, highSeverity, moderateSeverity float64) *Scorer {
	return &Scorer{
		flagThreshold:    flagThreshold,
		highSeverity:     highSeverity,
		moderateSeverity: moderateSeverity,
	}
}

func (s *Scorer) Threshold() float64 { return s.flagThreshold }

// Score resolves overlapping spans by keeping only the highest-ratio span
// per region, then computes overall = 100 * covered tokens / docTokens,
// capped at 100. The returned spans are the non-overlapping survivors,
// ordered by descending local ratio, with severity tiers assigned.
func (s *Scorer) Score(spans []domain.MatchSpan, docTokens int) (float64, bool, []domain.MatchSpan) {
	kept := resolveOverlaps(spans)

	covered := 0
	for _, sp := range kept {
		covered += sp.TokenLen()
	}

	overall := 0.0
	if docTokens > 0 {
		overall = 100 * float64(covered) / float64(docTokens)
	}
	if overall > 100 {
		overall = 100
	}

	flagged := overall > s.flagThreshold

	for i := range kept {
		kept[i].Severity = s.severity(kept[i].LocalRatio)
	}
	return overall, flagged, kept
}

// severity tiers are presentational: low-ratio spans stay in the result but
// get no badge.
func (s *Scorer) severity(ratio float64) domain.Severity {
	switch {
	case ratio >= s.highSeverity:
		return domain.SeverityHigh
	case ratio >= s.moderateSeverity:
		return domain.SeverityModerate
	default:
		return domain.SeverityNone
	}
}

// resolveOverlaps greedily admits spans in descending ratio order, dropping
// any span that overlaps an already kept one. Ties break on start token and
// source id so the outcome is deterministic.
func resolveOverlaps(spans []domain.MatchSpan) []domain.MatchSpan {
	ordered := make([]domain.MatchSpan, len(spans))
	copy(ordered, spans)
	sort.SliceStable(ordered, func(a, b int) bool {
		if ordered[a].LocalRatio != ordered[b].LocalRatio {
			return ordered[a].LocalRatio > ordered[b].LocalRatio
		}
		if ordered[a].StartToken != ordered[b].StartToken {
			return ordered[a].StartToken < ordered[b].StartToken
		}
		return ordered[a].SourceID < ordered[b].SourceID
	})

	var kept []domain.MatchSpan
	for _, candidate := range ordered {
		overlaps := false
		for _, k := range kept {
			if candidate.Overlaps(k) {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, candidate)
		}
	}
	return kept
}
