package feed_test

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clipfeed/internal/analytics"
	"clipfeed/internal/feed"
	"clipfeed/internal/models"
	"clipfeed/internal/prefetch"
	"clipfeed/internal/progress"
	"clipfeed/internal/ranking"
	"clipfeed/internal/store"
)

func testConfig() feed.Config {
	return feed.Config{
		DefaultPageSize:     20,
		MaxPageSize:         50,
		PerPoolSize:         10,
		FeedCacheTTL:        0,
		ContinueWatchingMin: 0.05,
		ContinueWatchingMax: 0.80,
		CompletionThreshold: 0.80,
		TrendingWindowDays:  7,
		FreshWindowDays:     30,
	}
}

func newOrchestrator(docs *store.MemoryStore, c *fakeCache) *feed.Orchestrator {
	ranker := ranking.NewRanker(ranking.Weights{PopularityWeight: 1}, rand.New(rand.NewSource(1)), docs)
	planner := prefetch.NewPlanner(docs, "480p", 3)
	progressStore := progress.NewStore(docs, 0.80)
	return feed.New(docs, c, ranker, planner, progressStore, analytics.NoopSink{}, testConfig())
}

func publishedTitleWithEpisode(s *store.MemoryStore, id string) *models.Title {
	publishedAt := time.Now()
	title := &models.Title{
		ID: id, Status: models.TitleStatusPublished,
		PublishedAt: &publishedAt,
		Feed:        models.FeedMetadata{IsInRandomFeed: true},
	}
	s.PutTitle(title)
	s.PutEpisode(&models.Episode{ID: id + "-e1", TitleID: id, Status: models.EpisodeStatusPublished})
	return title
}

func TestGetTrending_CachesResultOnMiss(t *testing.T) {
	s := store.NewMemoryStore()
	title := publishedTitleWithEpisode(s, "t1")
	title.Analytics.TrendingScore = 10
	c := newFakeCache()
	o := newOrchestrator(s, c)

	cards, err := o.GetTrending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "t1", cards[0].Title.ID)
	assert.True(t, c.has("trending:default"))
}

func TestGetTrending_SecondCallIsAServedFromCache(t *testing.T) {
	s := store.NewMemoryStore()
	publishedTitleWithEpisode(s, "t1")
	c := newFakeCache()
	o := newOrchestrator(s, c)
	ctx := context.Background()

	first, err := o.GetTrending(ctx, 10)
	require.NoError(t, err)

	// Mutate the store after the first call: if the second call hits
	// the live store again, it would see the new title too.
	publishedTitleWithEpisode(s, "t2")

	second, err := o.GetTrending(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, len(first), len(second), "second call must be served from cache, not the live store")
}

func TestGetFeed_ReturnsPaginatedCards(t *testing.T) {
	s := store.NewMemoryStore()
	publishedTitleWithEpisode(s, "t1")
	publishedTitleWithEpisode(s, "t2")
	c := newFakeCache()
	o := newOrchestrator(s, c)

	page, err := o.GetFeed(context.Background(), feed.FeedRequest{UserID: "u1", Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalCount)
	assert.Len(t, page.Cards, 2)
	assert.False(t, page.HasMore)
}

func TestGetFeed_UnknownUserFallsBackToDefaultPreferencesInsteadOfErroring(t *testing.T) {
	s := store.NewMemoryStore()
	publishedTitleWithEpisode(s, "t1")
	c := newFakeCache()
	o := newOrchestrator(s, c)

	page, err := o.GetFeed(context.Background(), feed.FeedRequest{UserID: "ghost", Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, page.Cards, 1)
}

func TestStartWatching_InvalidatesUserAndTitleTags(t *testing.T) {
	s := store.NewMemoryStore()
	publishedTitleWithEpisode(s, "t1")
	s.PutEpisode(&models.Episode{ID: "e1", TitleID: "t1", Duration: 1000, Status: models.EpisodeStatusPublished})
	c := newFakeCache()
	o := newOrchestrator(s, c)
	ctx := context.Background()

	require.NoError(t, c.SetWithTags(ctx, "continue_watching:u1", []models.Card{}, 0, "user:u1"))
	require.True(t, c.has("continue_watching:u1"))

	_, err := o.StartWatching(ctx, "u1", "e1", "swipe")
	require.NoError(t, err)
	assert.False(t, c.has("continue_watching:u1"), "starting a session must invalidate the user's cached pages")
}

func TestUpdateProgress_CompletionInvalidatesTitleCache(t *testing.T) {
	s := store.NewMemoryStore()
	publishedTitleWithEpisode(s, "t1")
	s.PutEpisode(&models.Episode{ID: "e1", TitleID: "t1", Duration: 1000, Status: models.EpisodeStatusPublished})
	c := newFakeCache()
	o := newOrchestrator(s, c)
	ctx := context.Background()

	require.NoError(t, c.SetWithTags(ctx, "similar:t1", []models.Card{}, 0, "title:t1"))

	record, err := o.UpdateProgress(ctx, "u1", "e1", 900, "swipe")
	require.NoError(t, err)
	assert.Equal(t, models.WatchStatusCompleted, record.Status)
	assert.False(t, c.has("similar:t1"), "completing an episode must invalidate the title's cached pages")
}

func TestUpdateProgress_NonCompletingUpdateLeavesTitleCacheIntact(t *testing.T) {
	s := store.NewMemoryStore()
	publishedTitleWithEpisode(s, "t1")
	s.PutEpisode(&models.Episode{ID: "e1", TitleID: "t1", Duration: 1000, Status: models.EpisodeStatusPublished})
	c := newFakeCache()
	o := newOrchestrator(s, c)
	ctx := context.Background()

	require.NoError(t, c.SetWithTags(ctx, "similar:t1", []models.Card{}, 0, "title:t1"))
	_, err := o.UpdateProgress(ctx, "u1", "e1", 100, "swipe")
	require.NoError(t, err)
	assert.True(t, c.has("similar:t1"))
}

func TestToggleLike_InvalidatesTitleCache(t *testing.T) {
	s := store.NewMemoryStore()
	publishedTitleWithEpisode(s, "t1")
	s.PutEpisode(&models.Episode{ID: "e1", TitleID: "t1", Duration: 1000, Status: models.EpisodeStatusPublished})
	c := newFakeCache()
	o := newOrchestrator(s, c)
	ctx := context.Background()
	_, err := o.StartWatching(ctx, "u1", "e1", "swipe")
	require.NoError(t, err)

	require.NoError(t, c.SetWithTags(ctx, "similar:t1", []models.Card{}, 0, "title:t1"))
	liked, err := o.ToggleLike(ctx, "u1", "e1")
	require.NoError(t, err)
	assert.True(t, liked)
	assert.False(t, c.has("similar:t1"))
}

func TestRate_RejectsOutOfRangeAndInvalidatesOnSuccess(t *testing.T) {
	s := store.NewMemoryStore()
	publishedTitleWithEpisode(s, "t1")
	s.PutEpisode(&models.Episode{ID: "e1", TitleID: "t1", Duration: 1000, Status: models.EpisodeStatusPublished})
	c := newFakeCache()
	o := newOrchestrator(s, c)
	ctx := context.Background()
	_, err := o.StartWatching(ctx, "u1", "e1", "swipe")
	require.NoError(t, err)

	require.Error(t, o.Rate(ctx, "u1", "e1", 10))

	require.NoError(t, c.SetWithTags(ctx, "similar:t1", []models.Card{}, 0, "title:t1"))
	require.NoError(t, o.Rate(ctx, "u1", "e1", 5))
	assert.False(t, c.has("similar:t1"))
}

func TestClearHistory_InvalidatesUserCache(t *testing.T) {
	s := store.NewMemoryStore()
	publishedTitleWithEpisode(s, "t1")
	s.PutEpisode(&models.Episode{ID: "e1", TitleID: "t1", Duration: 1000, Status: models.EpisodeStatusPublished})
	c := newFakeCache()
	o := newOrchestrator(s, c)
	ctx := context.Background()
	_, err := o.StartWatching(ctx, "u1", "e1", "swipe")
	require.NoError(t, err)

	require.NoError(t, c.SetWithTags(ctx, "continue_watching:u1", []models.Card{}, 0, "user:u1"))
	require.NoError(t, o.ClearHistory(ctx, "u1"))
	assert.False(t, c.has("continue_watching:u1"))

	records, err := s.ListWatchRecordsByUser(ctx, "u1", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSearch_MatchesTitleOrDescriptionCaseInsensitively(t *testing.T) {
	s := store.NewMemoryStore()
	t1 := publishedTitleWithEpisode(s, "t1")
	t1.Title = "Midnight Drama"
	c := newFakeCache()
	o := newOrchestrator(s, c)

	page, err := o.Search(context.Background(), "u1", "midnight", 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Cards, 1)
	assert.Equal(t, "t1", page.Cards[0].Title.ID)
}
