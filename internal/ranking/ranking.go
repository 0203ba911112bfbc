// Package ranking implements the Ranking & Diversification stage (C3):
// deduplicate candidates, score them, sort descending, apply a full
// Fisher-Yates shuffle for diversification, then paginate.
//
// The scoring formula and shuffle strategy are config-driven per
// spec.md §9's Open Questions, resolved in SPEC_FULL.md §5.
package ranking

import (
	"context"
	"math/rand"
	"sort"

	"clipfeed/internal/models"
	"clipfeed/internal/store"
)

// Weights holds the configurable scoring coefficients (internal/config.ScoringConfig).
type Weights struct {
	PopularityWeight     float64
	TrendingWeight       float64
	FeedPriorityWeight   float64
	FeedWeightWeight     float64
	GenreMatchBonus      float64
	LanguageMatchBonus   float64
	RecencyWeekBonus     float64
	RecencyMonthBonus    float64
	CompletionRateWeight float64
	JitterMax            float64
}

// Ranker scores, deduplicates, and diversifies candidate pools into a
// single ordered list of Cards.
type Ranker struct {
	weights Weights
	rng     *rand.Rand
	store   store.DocumentStore
}

// NewRanker builds a Ranker. rng must be non-nil: Rank's shuffle (and
// Score, when JitterMax > 0) draws from it, and no default source is
// substituted. A caller-seeded source keeps ranking reproducible in tests.
func NewRanker(weights Weights, rng *rand.Rand, s store.DocumentStore) *Ranker {
	return &Ranker{weights: weights, rng: rng, store: s}
}

// Dedup removes duplicate titles across pools, keeping the first
// occurrence (pools are merged in the fixed Personalized/Trending/
// Popular/Fresh order, so personalized placements win ties).
func Dedup(pools []PoolResult) []ScoredCandidate {
	seen := make(map[string]struct{})
	out := make([]ScoredCandidate, 0)
	for _, p := range pools {
		for _, t := range p.Titles {
			if _, ok := seen[t.ID]; ok {
				continue
			}
			seen[t.ID] = struct{}{}
			out = append(out, ScoredCandidate{Title: t, Source: p.Source})
		}
	}
	return out
}

// PoolResult mirrors pools.Result without importing the pools package,
// avoiding a dependency cycle between ranking and pools (both are
// consumed by the feed orchestrator).
type PoolResult struct {
	Source models.FeedSource
	Titles []*models.Title
}

// ScoredCandidate is a deduplicated Title carrying its pool origin and,
// once scored, its algorithm score.
type ScoredCandidate struct {
	Title *models.Title
	Source models.FeedSource
	Score  float64
}

// Score computes the weighted ranking score for a candidate per
// spec.md §4.3, given the requesting user's preferences.
func (r *Ranker) Score(now int64, c ScoredCandidate, prefs models.Preferences) float64 {
	t := c.Title
	score := t.Analytics.PopularityScore*r.weights.PopularityWeight +
		t.Analytics.TrendingScore*r.weights.TrendingWeight +
		float64(t.Feed.FeedPriority)*r.weights.FeedPriorityWeight +
		t.Feed.FeedWeight*r.weights.FeedWeightWeight +
		t.Analytics.CompletionRate*r.weights.CompletionRateWeight

	if t.HasGenreOverlap(prefs.PreferredGenres) {
		score += r.weights.GenreMatchBonus
	}
	if t.HasLanguageOverlap(prefs.PreferredLanguages) {
		score += r.weights.LanguageMatchBonus
	}

	if t.PublishedAt != nil {
		ageDays := daysSince(*t.PublishedAt, now)
		switch {
		case ageDays <= 7:
			score += r.weights.RecencyWeekBonus
		case ageDays <= 30:
			score += r.weights.RecencyMonthBonus
		}
	}

	// Jitter breaks ties between same-score titles so the feed isn't
	// perfectly stable run to run, per spec.md §9 Open Question #1:
	// jitter is added before sorting, not after — the shuffle below is
	// a second, independent diversification pass over the full slice.
	if r.weights.JitterMax > 0 {
		score += r.rng.Float64() * r.weights.JitterMax
	}
	return score
}

func daysSince(t interface{ Unix() int64 }, nowUnix int64) float64 {
	return float64(nowUnix-t.Unix()) / 86400
}

// Rank scores every candidate, sorts descending by score, then
// applies a full Fisher-Yates shuffle over the entire ranked slice
// (not a windowed shuffle) per the Open Question #1 resolution: the
// sort establishes relevance order and the shuffle diversifies it
// globally rather than only locally.
func (r *Ranker) Rank(nowUnix int64, candidates []ScoredCandidate, prefs models.Preferences) []ScoredCandidate {
	for i := range candidates {
		candidates[i].Score = r.Score(nowUnix, candidates[i], prefs)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	r.shuffle(candidates)
	return candidates
}

// shuffle performs a Fisher-Yates shuffle over the whole slice.
func (r *Ranker) shuffle(candidates []ScoredCandidate) {
	for i := len(candidates) - 1; i > 0; i-- {
		j := r.rng.Intn(i + 1)
		candidates[i], candidates[j] = candidates[j], candidates[i]
	}
}

// Paginate slices ranked candidates into the requested page.
func Paginate(candidates []ScoredCandidate, page, pageSize int) ([]ScoredCandidate, bool) {
	start := (page - 1) * pageSize
	if start >= len(candidates) {
		return nil, false
	}
	end := start + pageSize
	hasMore := end < len(candidates)
	if end > len(candidates) {
		end = len(candidates)
	}
	return candidates[start:end], hasMore
}

// AttachFirstEpisodes builds Cards from scored candidates, fetching
// each Title's first playable Episode with one GetFirstEpisode call
// per candidate; the lookups are not batched.
func (r *Ranker) AttachFirstEpisodes(ctx context.Context, candidates []ScoredCandidate) ([]models.Card, error) {
	cards := make([]models.Card, 0, len(candidates))
	for _, c := range candidates {
		ep, err := r.store.GetFirstEpisode(ctx, c.Title.ID)
		if err != nil {
			// A title with no playable episode is dropped from the
			// feed rather than surfaced as a dead card.
			continue
		}
		cards = append(cards, models.Card{
			Title:          c.Title,
			FirstEpisode:   ep,
			FeedSource:     c.Source,
			AlgorithmScore: c.Score,
		})
	}
	return cards, nil
}
