// Package pools implements the Candidate Pools stage (C2): four
// independent title sources — Personalized, Trending, Popular, Fresh —
// fetched concurrently and merged under a shared deadline.
//
// Grounded on the errgroup fan-out idiom used across the retrieval
// pack for bounded concurrent fetches, applied here to DocumentStore
// reads instead of Kubernetes API calls.
package pools

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"clipfeed/internal/metrics"
	"clipfeed/internal/models"
	"clipfeed/internal/store"
)

// Request carries the inputs every pool needs to build its predicate.
type Request struct {
	UserID      string
	Preferences models.Preferences
	Region      string
	ExcludeIDs  []string
	PerPoolSize int
}

// Result is one pool's labeled contribution.
type Result struct {
	Source models.FeedSource
	Titles []*models.Title
}

// Fetcher runs the four Candidate Pools concurrently against a
// DocumentStore and returns whatever completed before ctx's deadline;
// a single pool's failure does not fail the others (a failed pool's
// Result simply has no Titles; the error is neither returned nor
// logged) — ctx cancellation aborts all in-flight pools.
type Fetcher struct {
	store              store.DocumentStore
	trendingWindowDays int
	freshWindowDays    int
}

// NewFetcher builds a Fetcher over store. trendingWindowDays and
// freshWindowDays come from internal/config.FeedConfig (e.g. 7 and 30).
func NewFetcher(s store.DocumentStore, trendingWindowDays, freshWindowDays int) *Fetcher {
	return &Fetcher{store: s, trendingWindowDays: trendingWindowDays, freshWindowDays: freshWindowDays}
}

// Fetch runs all four pools concurrently and returns their results in
// a fixed, deterministic order (Personalized, Trending, Popular,
// Fresh) regardless of completion order. A pool that errors
// contributes an empty slice rather than failing the whole fetch,
// since a partial feed beats no feed.
func (f *Fetcher) Fetch(ctx context.Context, req Request) []Result {
	results := make([]Result, 4)
	results[0].Source = models.FeedSourcePersonalized
	results[1].Source = models.FeedSourceTrending
	results[2].Source = models.FeedSourcePopular
	results[3].Source = models.FeedSourceFresh

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer observePoolFetch("personalized", time.Now())
		titles, err := f.personalized(gctx, req)
		if err == nil {
			results[0].Titles = titles
		}
		return nil
	})
	g.Go(func() error {
		defer observePoolFetch("trending", time.Now())
		titles, err := f.trending(gctx, req)
		if err == nil {
			results[1].Titles = titles
		}
		return nil
	})
	g.Go(func() error {
		defer observePoolFetch("popular", time.Now())
		titles, err := f.popular(gctx, req)
		if err == nil {
			results[2].Titles = titles
		}
		return nil
	})
	g.Go(func() error {
		defer observePoolFetch("fresh", time.Now())
		titles, err := f.fresh(gctx, req)
		if err == nil {
			results[3].Titles = titles
		}
		return nil
	})

	// g.Wait only ever returns nil above; each pool swallows its own
	// error into an empty result so one slow/failing pool can't sink
	// the whole feed.
	_ = g.Wait()
	return results
}

func observePoolFetch(source string, started time.Time) {
	metrics.PoolFetchDuration.WithLabelValues(source).Observe(time.Since(started).Seconds())
}

func (f *Fetcher) personalized(ctx context.Context, req Request) ([]*models.Title, error) {
	filter := store.TitleFilter{
		Genres:     req.Preferences.PreferredGenres,
		Languages:  req.Preferences.PreferredLanguages,
		ExcludeIDs: req.ExcludeIDs,
		Region:     req.Region,
		Limit:      req.PerPoolSize,
	}
	return f.store.ListPublishedTitles(ctx, filter)
}

func (f *Fetcher) trending(ctx context.Context, req Request) ([]*models.Title, error) {
	return f.store.ListTrendingTitles(ctx, f.trendingWindowDays, req.PerPoolSize)
}

func (f *Fetcher) popular(ctx context.Context, req Request) ([]*models.Title, error) {
	filter := store.TitleFilter{
		ExcludeIDs: req.ExcludeIDs,
		Region:     req.Region,
		Limit:      req.PerPoolSize,
	}
	return f.store.ListPopularTitles(ctx, filter)
}

func (f *Fetcher) fresh(ctx context.Context, req Request) ([]*models.Title, error) {
	return f.store.ListFreshTitles(ctx, f.freshWindowDays, req.PerPoolSize)
}
