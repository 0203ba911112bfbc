package store

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"clipfeed/internal/apperr"
	"clipfeed/internal/metrics"
	"clipfeed/internal/models"
)

// BreakerStore wraps a DocumentStore with a circuit breaker so a
// struggling Postgres instance fails fast with a Dependency error
// instead of piling up latency on every request.
// Uses gobreaker/v2's generic Execute[T] to wrap the whole interface.
type BreakerStore struct {
	inner DocumentStore
	cb    *gobreaker.CircuitBreaker[any]
}

// NewBreakerStore wraps inner with a breaker named name.
func NewBreakerStore(inner DocumentStore, name string) *BreakerStore {
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    time.Minute,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 10 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
		},
		OnStateChange: func(_ string, _ gobreaker.State, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
	return &BreakerStore{inner: inner, cb: cb}
}

func execute[T any](b *BreakerStore, fn func() (T, error)) (T, error) {
	result, err := b.cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		var zero T
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, apperr.Dependencyf(err, "document store circuit breaker rejected the call")
		}
		return zero, err
	}
	// A nil result (e.g. from the write methods) would make a bare
	// result.(T) panic, so the comma-ok form yields T's zero value.
	v, _ := result.(T)
	return v, nil
}

func (b *BreakerStore) GetTitle(ctx context.Context, id string) (*models.Title, error) {
	return execute(b, func() (*models.Title, error) { return b.inner.GetTitle(ctx, id) })
}

func (b *BreakerStore) GetTitles(ctx context.Context, ids []string) ([]*models.Title, error) {
	return execute(b, func() ([]*models.Title, error) { return b.inner.GetTitles(ctx, ids) })
}

func (b *BreakerStore) ListPublishedTitles(ctx context.Context, filter TitleFilter) ([]*models.Title, error) {
	return execute(b, func() ([]*models.Title, error) { return b.inner.ListPublishedTitles(ctx, filter) })
}

func (b *BreakerStore) ListTrendingTitles(ctx context.Context, sinceDays int, limit int) ([]*models.Title, error) {
	return execute(b, func() ([]*models.Title, error) { return b.inner.ListTrendingTitles(ctx, sinceDays, limit) })
}

func (b *BreakerStore) ListPopularTitles(ctx context.Context, filter TitleFilter) ([]*models.Title, error) {
	return execute(b, func() ([]*models.Title, error) { return b.inner.ListPopularTitles(ctx, filter) })
}

func (b *BreakerStore) ListFreshTitles(ctx context.Context, sinceDays int, limit int) ([]*models.Title, error) {
	return execute(b, func() ([]*models.Title, error) { return b.inner.ListFreshTitles(ctx, sinceDays, limit) })
}

func (b *BreakerStore) ListFeaturedTitles(ctx context.Context, limit int) ([]*models.Title, error) {
	return execute(b, func() ([]*models.Title, error) { return b.inner.ListFeaturedTitles(ctx, limit) })
}

func (b *BreakerStore) ListEditorsPicks(ctx context.Context, limit int) ([]*models.Title, error) {
	return execute(b, func() ([]*models.Title, error) { return b.inner.ListEditorsPicks(ctx, limit) })
}

func (b *BreakerStore) SearchTitles(ctx context.Context, query string, limit, offset int) ([]*models.Title, error) {
	return execute(b, func() ([]*models.Title, error) { return b.inner.SearchTitles(ctx, query, limit, offset) })
}

func (b *BreakerStore) UpdateTitleAnalytics(ctx context.Context, id string, fn func(*models.TitleAnalytics)) error {
	_, err := execute(b, func() (any, error) { return nil, b.inner.UpdateTitleAnalytics(ctx, id, fn) })
	return err
}

func (b *BreakerStore) GetEpisode(ctx context.Context, id string) (*models.Episode, error) {
	return execute(b, func() (*models.Episode, error) { return b.inner.GetEpisode(ctx, id) })
}

func (b *BreakerStore) GetEpisodes(ctx context.Context, ids []string) ([]*models.Episode, error) {
	return execute(b, func() ([]*models.Episode, error) { return b.inner.GetEpisodes(ctx, ids) })
}

func (b *BreakerStore) ListEpisodesByTitle(ctx context.Context, titleID string) ([]*models.Episode, error) {
	return execute(b, func() ([]*models.Episode, error) { return b.inner.ListEpisodesByTitle(ctx, titleID) })
}

func (b *BreakerStore) GetFirstEpisode(ctx context.Context, titleID string) (*models.Episode, error) {
	return execute(b, func() (*models.Episode, error) { return b.inner.GetFirstEpisode(ctx, titleID) })
}

func (b *BreakerStore) GetUser(ctx context.Context, userID string) (*models.User, error) {
	return execute(b, func() (*models.User, error) { return b.inner.GetUser(ctx, userID) })
}

func (b *BreakerStore) UpsertUser(ctx context.Context, user *models.User) error {
	_, err := execute(b, func() (any, error) { return nil, b.inner.UpsertUser(ctx, user) })
	return err
}

func (b *BreakerStore) GetWatchRecord(ctx context.Context, userID, episodeID string) (*models.WatchRecord, error) {
	return execute(b, func() (*models.WatchRecord, error) { return b.inner.GetWatchRecord(ctx, userID, episodeID) })
}

func (b *BreakerStore) UpsertWatchRecord(ctx context.Context, record *models.WatchRecord) error {
	_, err := execute(b, func() (any, error) { return nil, b.inner.UpsertWatchRecord(ctx, record) })
	return err
}

func (b *BreakerStore) ListContinueWatching(ctx context.Context, userID string, min, max float64, limit int) ([]*models.WatchRecord, error) {
	return execute(b, func() ([]*models.WatchRecord, error) {
		return b.inner.ListContinueWatching(ctx, userID, min, max, limit)
	})
}

func (b *BreakerStore) ListWatchRecordsByUser(ctx context.Context, userID string, limit, offset int) ([]*models.WatchRecord, error) {
	return execute(b, func() ([]*models.WatchRecord, error) {
		return b.inner.ListWatchRecordsByUser(ctx, userID, limit, offset)
	})
}

func (b *BreakerStore) ListWatchRecordsByTitle(ctx context.Context, userID, titleID string) ([]*models.WatchRecord, error) {
	return execute(b, func() ([]*models.WatchRecord, error) {
		return b.inner.ListWatchRecordsByTitle(ctx, userID, titleID)
	})
}

func (b *BreakerStore) DeleteWatchHistory(ctx context.Context, userID string) error {
	_, err := execute(b, func() (any, error) { return nil, b.inner.DeleteWatchHistory(ctx, userID) })
	return err
}

func (b *BreakerStore) CountRecentSessions(ctx context.Context, userID string, titleID string) (int, float64, error) {
	type result struct {
		count int
		avg   float64
	}
	r, err := execute(b, func() (result, error) {
		c, a, e := b.inner.CountRecentSessions(ctx, userID, titleID)
		return result{c, a}, e
	})
	return r.count, r.avg, err
}

var _ DocumentStore = (*BreakerStore)(nil)
