package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clipfeed/internal/apperr"
	"clipfeed/internal/models"
	"clipfeed/internal/store"
)

func TestMemoryStore_GetTitle_NotFound(t *testing.T) {
	s := store.NewMemoryStore()
	_, err := s.GetTitle(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestMemoryStore_ListPublishedTitles_FiltersByGenreAndFeedEligibility(t *testing.T) {
	s := store.NewMemoryStore()
	s.PutTitle(&models.Title{
		ID: "t1", Status: models.TitleStatusPublished, Genres: []string{"drama"},
		Feed: models.FeedMetadata{IsInRandomFeed: true},
	})
	s.PutTitle(&models.Title{
		ID: "t2", Status: models.TitleStatusPublished, Genres: []string{"comedy"},
		Feed: models.FeedMetadata{IsInRandomFeed: true},
	})
	s.PutTitle(&models.Title{
		ID: "t3", Status: models.TitleStatusDraft, Genres: []string{"drama"},
		Feed: models.FeedMetadata{IsInRandomFeed: true},
	})

	out, err := s.ListPublishedTitles(context.Background(), store.TitleFilter{Genres: []string{"drama"}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "t1", out[0].ID)
}

func TestMemoryStore_UpsertWatchRecord_RoundTrips(t *testing.T) {
	s := store.NewMemoryStore()
	record := &models.WatchRecord{UserID: "u1", EpisodeID: "e1", TitleID: "t1", CurrentPosition: 10}
	require.NoError(t, s.UpsertWatchRecord(context.Background(), record))

	got, err := s.GetWatchRecord(context.Background(), "u1", "e1")
	require.NoError(t, err)
	assert.Equal(t, 10, got.CurrentPosition)

	record.CurrentPosition = 999
	got2, err := s.GetWatchRecord(context.Background(), "u1", "e1")
	require.NoError(t, err)
	assert.Equal(t, 10, got2.CurrentPosition, "stored record must be copied, not aliased")
}

func TestMemoryStore_ListContinueWatching_OrdersByMostRecent(t *testing.T) {
	s := store.NewMemoryStore()
	now := time.Now()
	s.PutTitle(&models.Title{ID: "t1"})
	require.NoError(t, s.UpsertWatchRecord(context.Background(), &models.WatchRecord{
		UserID: "u1", EpisodeID: "e1", TitleID: "t1", Status: models.WatchStatusWatching,
		PercentageWatched: 30, SessionInfo: models.SessionInfo{LastWatchedAt: now.Add(-time.Hour)},
	}))
	require.NoError(t, s.UpsertWatchRecord(context.Background(), &models.WatchRecord{
		UserID: "u1", EpisodeID: "e2", TitleID: "t1", Status: models.WatchStatusWatching,
		PercentageWatched: 50, SessionInfo: models.SessionInfo{LastWatchedAt: now},
	}))

	out, err := s.ListContinueWatching(context.Background(), "u1", 0.05, 0.80, 10)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "e2", out[0].EpisodeID)
}

func TestMemoryStore_CountRecentSessions_AveragesAcrossDistinctTitles(t *testing.T) {
	s := store.NewMemoryStore()
	require.NoError(t, s.UpsertWatchRecord(context.Background(), &models.WatchRecord{UserID: "u1", EpisodeID: "e1", TitleID: "t1"}))
	require.NoError(t, s.UpsertWatchRecord(context.Background(), &models.WatchRecord{UserID: "u1", EpisodeID: "e2", TitleID: "t1"}))
	require.NoError(t, s.UpsertWatchRecord(context.Background(), &models.WatchRecord{UserID: "u1", EpisodeID: "e3", TitleID: "t2"}))

	count, avg, err := s.CountRecentSessions(context.Background(), "u1", "t1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.InDelta(t, 1.5, avg, 0.001)
}
