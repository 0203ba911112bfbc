// Package store implements the DocumentStore persistence boundary used
// by every Core component to read and write Titles, Episodes, Users,
// and WatchRecords.
package store

import (
	"context"

	"clipfeed/internal/models"
)

// TitleFilter narrows Title queries for the Candidate Pools (C2).
type TitleFilter struct {
	Genres      []string
	Languages   []string
	ExcludeIDs  []string
	OnlyPremium *bool
	Region      string
	Limit       int
	Offset      int
}

// DocumentStore is the persistence interface every Core component
// depends on. Implementations must return apperr-classified errors
// (apperr.NotFound for missing records, apperr.Dependency for
// transport/backend failures) so the HTTP layer can map them.
type DocumentStore interface {
	// Titles
	GetTitle(ctx context.Context, id string) (*models.Title, error)
	GetTitles(ctx context.Context, ids []string) ([]*models.Title, error)
	ListPublishedTitles(ctx context.Context, filter TitleFilter) ([]*models.Title, error)
	ListTrendingTitles(ctx context.Context, sinceDays int, limit int) ([]*models.Title, error)
	ListPopularTitles(ctx context.Context, filter TitleFilter) ([]*models.Title, error)
	ListFreshTitles(ctx context.Context, sinceDays int, limit int) ([]*models.Title, error)
	ListFeaturedTitles(ctx context.Context, limit int) ([]*models.Title, error)
	ListEditorsPicks(ctx context.Context, limit int) ([]*models.Title, error)
	SearchTitles(ctx context.Context, query string, limit, offset int) ([]*models.Title, error)
	UpdateTitleAnalytics(ctx context.Context, id string, fn func(*models.TitleAnalytics)) error

	// Episodes
	GetEpisode(ctx context.Context, id string) (*models.Episode, error)
	GetEpisodes(ctx context.Context, ids []string) ([]*models.Episode, error)
	ListEpisodesByTitle(ctx context.Context, titleID string) ([]*models.Episode, error)
	GetFirstEpisode(ctx context.Context, titleID string) (*models.Episode, error)

	// Users
	GetUser(ctx context.Context, userID string) (*models.User, error)
	UpsertUser(ctx context.Context, user *models.User) error

	// WatchRecords
	GetWatchRecord(ctx context.Context, userID, episodeID string) (*models.WatchRecord, error)
	UpsertWatchRecord(ctx context.Context, record *models.WatchRecord) error
	ListContinueWatching(ctx context.Context, userID string, min, max float64, limit int) ([]*models.WatchRecord, error)
	ListWatchRecordsByUser(ctx context.Context, userID string, limit, offset int) ([]*models.WatchRecord, error)
	ListWatchRecordsByTitle(ctx context.Context, userID, titleID string) ([]*models.WatchRecord, error)
	DeleteWatchHistory(ctx context.Context, userID string) error
	CountRecentSessions(ctx context.Context, userID string, titleID string) (int, float64, error)
}
