package progress_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clipfeed/internal/apperr"
	"clipfeed/internal/models"
	"clipfeed/internal/progress"
	"clipfeed/internal/store"
)

func seedEpisode(s *store.MemoryStore, titleID, episodeID string, duration int) *models.Episode {
	title := &models.Title{ID: titleID, Status: models.TitleStatusPublished}
	s.PutTitle(title)
	ep := &models.Episode{ID: episodeID, TitleID: titleID, Duration: duration, Status: models.EpisodeStatusPublished}
	s.PutEpisode(ep)
	return ep
}

func TestUpsertProgress_CreatesOnFirstWatch(t *testing.T) {
	s := store.NewMemoryStore()
	ep := seedEpisode(s, "t1", "e1", 1000)
	p := progress.NewStore(s, 0.80)

	record, justCompleted, err := p.UpsertProgress(context.Background(), "u1", ep, 100, "swipe", time.Now())
	require.NoError(t, err)
	assert.False(t, justCompleted)
	assert.Equal(t, 100, record.CurrentPosition)
	assert.Equal(t, models.WatchStatusWatching, record.Status)
}

func TestUpsertProgress_PositionIsMonotonic(t *testing.T) {
	s := store.NewMemoryStore()
	ep := seedEpisode(s, "t1", "e1", 1000)
	p := progress.NewStore(s, 0.80)
	now := time.Now()

	_, _, err := p.UpsertProgress(context.Background(), "u1", ep, 500, "swipe", now)
	require.NoError(t, err)

	record, _, err := p.UpsertProgress(context.Background(), "u1", ep, 100, "swipe", now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 500, record.CurrentPosition, "position must never regress across upserts")
}

func TestUpsertProgress_CompletionFiresExactlyOnceAndUpdatesTitleAnalytics(t *testing.T) {
	s := store.NewMemoryStore()
	ep := seedEpisode(s, "t1", "e1", 1000)
	p := progress.NewStore(s, 0.80)
	now := time.Now()

	_, err := p.StartWatching(context.Background(), "u1", ep, "swipe", now)
	require.NoError(t, err)

	_, justCompleted, err := p.UpsertProgress(context.Background(), "u1", ep, 850, "swipe", now)
	require.NoError(t, err)
	assert.True(t, justCompleted)

	title, err := s.GetTitle(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), title.Analytics.CompletedViews)
	assert.Equal(t, 1.0, title.Analytics.CompletionRate)

	_, justCompletedAgain, err := p.UpsertProgress(context.Background(), "u1", ep, 900, "swipe", now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, justCompletedAgain, "completion must not re-fire on subsequent updates")

	title2, err := s.GetTitle(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), title2.Analytics.CompletedViews, "completed view counter must not double-count")
}

func TestSetRating_ReplacesPreviousRatingInRunningAverage(t *testing.T) {
	s := store.NewMemoryStore()
	ep := seedEpisode(s, "t1", "e1", 1000)
	p := progress.NewStore(s, 0.80)
	ctx := context.Background()

	_, err := p.StartWatching(ctx, "u1", ep, "swipe", time.Now())
	require.NoError(t, err)
	_, err = p.StartWatching(ctx, "u2", &models.Episode{ID: "e1", TitleID: "t1", Duration: 1000}, "swipe", time.Now())
	require.NoError(t, err)

	require.NoError(t, p.SetRating(ctx, "u1", "t1", 4))
	title, err := s.GetTitle(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), title.Analytics.TotalRatings)
	assert.Equal(t, 4.0, title.Analytics.AverageRating)

	require.NoError(t, p.SetRating(ctx, "u2", "t1", 2))
	title, err = s.GetTitle(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), title.Analytics.TotalRatings)
	assert.Equal(t, 3.0, title.Analytics.AverageRating)

	// u1 changes their mind: this must replace, not accumulate.
	require.NoError(t, p.SetRating(ctx, "u1", "t1", 2))
	title, err = s.GetTitle(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), title.Analytics.TotalRatings, "rating count must not grow on a re-rate")
	assert.Equal(t, 2.0, title.Analytics.AverageRating)
}

func TestSetRating_RejectsOutOfRangeValues(t *testing.T) {
	s := store.NewMemoryStore()
	ep := seedEpisode(s, "t1", "e1", 1000)
	p := progress.NewStore(s, 0.80)
	ctx := context.Background()
	_, err := p.StartWatching(ctx, "u1", ep, "swipe", time.Now())
	require.NoError(t, err)

	err = p.SetRating(ctx, "u1", "t1", 0)
	require.Error(t, err)
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))

	err = p.SetRating(ctx, "u1", "t1", 6)
	require.Error(t, err)
}

func TestSetRating_WithoutAnyWatchRecordIsConflict(t *testing.T) {
	s := store.NewMemoryStore()
	seedEpisode(s, "t1", "e1", 1000)
	p := progress.NewStore(s, 0.80)

	err := p.SetRating(context.Background(), "u1", "t1", 4)
	require.Error(t, err)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
}

func TestSetRating_AcceptsAnyWatchedEpisodeOfTheTitle(t *testing.T) {
	s := store.NewMemoryStore()
	title := &models.Title{ID: "t1", Status: models.TitleStatusPublished}
	s.PutTitle(title)
	ep2 := &models.Episode{ID: "e2", TitleID: "t1", Duration: 1000, Status: models.EpisodeStatusPublished}
	s.PutEpisode(ep2)
	p := progress.NewStore(s, 0.80)
	ctx := context.Background()

	_, err := p.StartWatching(ctx, "u1", ep2, "swipe", time.Now())
	require.NoError(t, err)

	require.NoError(t, p.SetRating(ctx, "u1", "t1", 5))
	record, err := s.GetWatchRecord(ctx, "u1", "e2")
	require.NoError(t, err)
	require.NotNil(t, record.Rating)
	assert.Equal(t, 5, *record.Rating)
}

func TestToggleLike_FlipsAndAdjustsTitleCounter(t *testing.T) {
	s := store.NewMemoryStore()
	ep := seedEpisode(s, "t1", "e1", 1000)
	p := progress.NewStore(s, 0.80)
	ctx := context.Background()
	_, err := p.StartWatching(ctx, "u1", ep, "swipe", time.Now())
	require.NoError(t, err)

	liked, err := p.ToggleLike(ctx, "u1", "e1")
	require.NoError(t, err)
	assert.True(t, liked)
	title, _ := s.GetTitle(ctx, "t1")
	assert.Equal(t, int64(1), title.Analytics.TotalLikes)

	liked, err = p.ToggleLike(ctx, "u1", "e1")
	require.NoError(t, err)
	assert.False(t, liked)
	title, _ = s.GetTitle(ctx, "t1")
	assert.Equal(t, int64(0), title.Analytics.TotalLikes)
}

func TestToggleShare_IsIdempotentOnTheCounter(t *testing.T) {
	s := store.NewMemoryStore()
	ep := seedEpisode(s, "t1", "e1", 1000)
	p := progress.NewStore(s, 0.80)
	ctx := context.Background()
	_, err := p.StartWatching(ctx, "u1", ep, "swipe", time.Now())
	require.NoError(t, err)

	require.NoError(t, p.ToggleShare(ctx, "u1", "e1"))
	require.NoError(t, p.ToggleShare(ctx, "u1", "e1"))

	title, _ := s.GetTitle(ctx, "t1")
	assert.Equal(t, int64(1), title.Analytics.TotalShares, "second share call must be a no-op on the counter")
}

func TestAddEngagement_AccumulatesCountersAcrossCalls(t *testing.T) {
	s := store.NewMemoryStore()
	ep := seedEpisode(s, "t1", "e1", 1000)
	p := progress.NewStore(s, 0.80)
	ctx := context.Background()
	_, err := p.StartWatching(ctx, "u1", ep, "swipe", time.Now())
	require.NoError(t, err)

	require.NoError(t, p.AddEngagement(ctx, "u1", "e1", models.EpisodeEngagement{
		SessionDuration: 30, PauseCount: 1, SeekCount: 2, BufferingTime: 3,
	}))
	require.NoError(t, p.AddEngagement(ctx, "u1", "e1", models.EpisodeEngagement{
		SessionDuration: 15, PauseCount: 1,
	}))

	record, err := s.GetWatchRecord(ctx, "u1", "e1")
	require.NoError(t, err)
	assert.Equal(t, 45, record.Engagement.SessionDuration)
	assert.Equal(t, 2, record.Engagement.PauseCount)
	assert.Equal(t, 2, record.Engagement.SeekCount)
	assert.Equal(t, 3, record.Engagement.BufferingTime)
}

func TestUpsertProgress_ConcurrentWritesForSameKeyAreSerialized(t *testing.T) {
	s := store.NewMemoryStore()
	ep := seedEpisode(s, "t1", "e1", 10000)
	p := progress.NewStore(s, 0.80)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(pos int) {
			defer wg.Done()
			_, _, _ = p.UpsertProgress(ctx, "u1", ep, pos*10, "swipe", time.Now())
		}(i)
	}
	wg.Wait()

	record, err := s.GetWatchRecord(ctx, "u1", "e1")
	require.NoError(t, err)
	assert.Equal(t, 500, record.CurrentPosition, "the highest position among concurrent writers must win")
}

func TestNextEpisode_ReturnsLowestOrdinalAfterGiven(t *testing.T) {
	episodes := []*models.Episode{
		{ID: "e1", SeasonNumber: 1, EpisodeNumber: 1},
		{ID: "e2", SeasonNumber: 1, EpisodeNumber: 2},
		{ID: "e3", SeasonNumber: 1, EpisodeNumber: 3},
	}
	next, ok := progress.NextEpisode(episodes, models.Ordinal{SeasonNumber: 1, EpisodeNumber: 1})
	require.True(t, ok)
	assert.Equal(t, "e2", next.ID)

	_, ok = progress.NextEpisode(episodes, models.Ordinal{SeasonNumber: 1, EpisodeNumber: 3})
	assert.False(t, ok)
}
