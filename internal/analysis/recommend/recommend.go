package recommend

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/clearcite/integrity-engine/internal/corpus"
	"github.com/clearcite/integrity-engine/internal/domain"
	"github.com/clearcite/integrity-engine/internal/platform/logger"
)

// LibraryStore is the topic-indexed reference-library metadata store.
type LibraryStore interface {
	ListWorks(ctx context.Context) ([]*domain.ReferenceWork, error)
}

// Generator maps matched corpus sources to legitimate reading material.
// Recommendations are best-effort: if the library store is unreachable the
// analysis proceeds with an empty list rather than failing.
type Generator struct {
	store LibraryStore
	topK  int
	log   *logger.Logger
}

func New(store LibraryStore, topK int, baseLog *logger.Logger) *Generator {
	return &Generator{
		store: store,
		topK:  topK,
		log:   baseLog.With("component", "RecommendationGenerator"),
	}
}

type rankedWork struct {
	work    *domain.ReferenceWork
	overlap int
}

// Recommend resolves the topic tags of every source touched by a span, finds
// library works sharing at least one tag, excludes the matched sources
// themselves, and returns the top-K distinct titles ranked by (tag overlap,
// recency) descending.
func (g *Generator) Recommend(ctx context.Context, spans []domain.MatchSpan, snap *corpus.Snapshot) []domain.Recommendation {
	if len(spans) == 0 || snap == nil {
		return nil
	}

	matchedIDs := make(map[string]struct{})
	matchedTitles := make(map[string]struct{})
	tagSet := make(map[string]struct{})
	for _, sp := range spans {
		if _, seen := matchedIDs[sp.SourceID]; seen {
			continue
		}
		matchedIDs[sp.SourceID] = struct{}{}
		matchedTitles[strings.ToLower(sp.SourceTitle)] = struct{}{}
		if entry := snap.Entry(sp.SourceID); entry != nil {
			for _, tag := range entry.Tags {
				tagSet[strings.ToLower(tag)] = struct{}{}
			}
		}
	}
	if len(tagSet) == 0 {
		return nil
	}

	works, err := g.store.ListWorks(ctx)
	if err != nil {
		g.log.Warn("Library store unavailable, skipping recommendations", "error", err)
		return nil
	}

	var ranked []rankedWork
	for _, w := range works {
		if _, matched := matchedIDs[w.SourceID]; matched {
			continue
		}
		if _, cited := matchedTitles[strings.ToLower(w.Title)]; cited {
			continue
		}
		overlap := tagOverlap(w, tagSet)
		if overlap == 0 {
			continue
		}
		ranked = append(ranked, rankedWork{work: w, overlap: overlap})
	}

	sort.SliceStable(ranked, func(a, b int) bool {
		if ranked[a].overlap != ranked[b].overlap {
			return ranked[a].overlap > ranked[b].overlap
		}
		ta, tb := publishedAt(ranked[a].work), publishedAt(ranked[b].work)
		if !ta.Equal(tb) {
			return ta.After(tb)
		}
		return ranked[a].work.Title < ranked[b].work.Title
	})

	seenTitles := make(map[string]struct{})
	var out []domain.Recommendation
	for _, r := range ranked {
		key := strings.ToLower(r.work.Title)
		if _, dup := seenTitles[key]; dup {
			continue
		}
		seenTitles[key] = struct{}{}
		out = append(out, domain.Recommendation{
			Title:      r.work.Title,
			URL:        r.work.URL,
			SourceType: r.work.SourceType,
			Relevance:  float64(r.overlap) / float64(len(tagSet)),
		})
		if len(out) == g.topK {
			break
		}
	}
	return out
}

func tagOverlap(w *domain.ReferenceWork, tagSet map[string]struct{}) int {
	var tags []string
	if len(w.TopicTags) > 0 {
		if err := json.Unmarshal(w.TopicTags, &tags); err != nil {
			return 0
		}
	}
	overlap := 0
	for _, t := range tags {
		if _, ok := tagSet[strings.ToLower(t)]; ok {
			overlap++
		}
	}
	return overlap
}

func publishedAt(w *domain.ReferenceWork) time.Time {
	if w.PublishedAt != nil {
		return *w.PublishedAt
	}
	return w.AddedAt
}
