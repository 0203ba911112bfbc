// Package models defines the Core's explicit record types for Title,
// Episode, User, WatchRecord, and the derived FeedPage/Card shapes.
//
// The source system this spec was distilled from mixed in-memory plain
// records and document-store shapes sharing field names; per spec.md
// §9 these are replaced here with explicit, typed records. Card-only
// metadata (_feedSource, _algorithmScore, _prefetch) lives on Card, not
// on Title.
package models

import "time"

// TitleType enumerates the kinds of catalog entry.
type TitleType string

const (
	TitleTypeMovie     TitleType = "movie"
	TitleTypeSeries    TitleType = "series"
	TitleTypeWebSeries TitleType = "web-series"
)

// TitleStatus enumerates the publication lifecycle of a Title.
type TitleStatus string

const (
	TitleStatusDraft     TitleStatus = "draft"
	TitleStatusPublished TitleStatus = "published"
	TitleStatusArchived  TitleStatus = "archived"
	TitleStatusPrivate   TitleStatus = "private"
)

// TitleAnalytics holds the aggregate counters recomputed by C4 writes
// and read by C2/C3.
type TitleAnalytics struct {
	TotalViews      int64   `json:"totalViews" gorm:"column:total_views;default:0"`
	TotalLikes      int64   `json:"totalLikes" gorm:"column:total_likes;default:0"`
	TotalShares     int64   `json:"totalShares" gorm:"column:total_shares;default:0"`
	AverageRating   float64 `json:"averageRating" gorm:"column:average_rating;default:0"`
	TotalRatings    int64   `json:"totalRatings" gorm:"column:total_ratings;default:0"`
	PopularityScore float64 `json:"popularityScore" gorm:"column:popularity_score;default:0"`
	TrendingScore   float64 `json:"trendingScore" gorm:"column:trending_score;default:0"`
	CompletionRate  float64 `json:"completionRate" gorm:"column:completion_rate;default:0"`

	// CompletedViews and TotalViews back the fraction-of-completed-views
	// CompletionRate semantics (SPEC_FULL.md §5.2) — the source's
	// moving-average variant is deliberately not implemented.
	CompletedViews int64 `json:"-" gorm:"column:completed_views;default:0"`
}

// FeedMetadata holds the feed-eligibility and weighting fields read by C2/C3.
type FeedMetadata struct {
	IsInRandomFeed        bool     `json:"isInRandomFeed" gorm:"column:is_in_random_feed;default:false"`
	FeedPriority          int      `json:"feedPriority" gorm:"column:feed_priority;default:1"`
	FeedWeight            float64  `json:"feedWeight" gorm:"column:feed_weight;default:1"`
	IsFeatured            bool     `json:"isFeatured" gorm:"column:is_featured;default:false"`
	IsEditorsPick         bool     `json:"isEditorsPick" gorm:"column:is_editors_pick;default:false"`
	GeographicRestrictions []string `json:"geographicRestrictions" gorm:"column:geographic_restrictions;type:text[]"`
}

// Title is a movie / series / web-series catalog entry.
type Title struct {
	ID          string      `json:"id" gorm:"column:id;primaryKey"`
	Title       string      `json:"title" gorm:"column:title;not null" validate:"required"`
	Description string      `json:"description" gorm:"column:description"`
	Genres      []string    `json:"genres" gorm:"column:genres;type:text[]"`
	Languages   []string    `json:"languages" gorm:"column:languages;type:text[]"`
	Type        TitleType   `json:"type" gorm:"column:type;not null" validate:"required"`
	Category    string      `json:"category" gorm:"column:category"`
	AgeRating   string      `json:"ageRating" gorm:"column:age_rating"`
	Cast        []string    `json:"cast" gorm:"column:cast_members;type:text[]"`
	Directors   []string    `json:"directors" gorm:"column:directors;type:text[]"`
	PublishedAt *time.Time  `json:"publishedAt,omitempty" gorm:"column:published_at"`
	Status      TitleStatus `json:"status" gorm:"column:status;not null" validate:"required"`
	IsPremium   bool        `json:"isPremium" gorm:"column:is_premium;default:false"`

	Analytics TitleAnalytics `json:"analytics" gorm:"embedded"`
	Feed      FeedMetadata   `json:"feed" gorm:"embedded;embeddedPrefix:feed_"`

	EpisodeIDs []string `json:"episodeIds" gorm:"-"`

	CreatedAt time.Time `json:"createdAt" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"column:updated_at;autoUpdateTime"`
}

// TableName sets the GORM table name.
func (Title) TableName() string { return "titles" }

// IsPublished reports whether the Title is visible to the Core.
func (t *Title) IsPublished() bool { return t.Status == TitleStatusPublished }

// DaysSincePublished returns the number of days since PublishedAt, or
// a large sentinel if PublishedAt is nil (never treated as recent).
func (t *Title) DaysSincePublished(now time.Time) float64 {
	if t.PublishedAt == nil {
		return 1e9
	}
	return now.Sub(*t.PublishedAt).Hours() / 24
}

// RecomputePopularityScore recomputes popularityScore on demand.
// Per spec.md §9 Open Questions, recencyScore clamps to 0 when
// PublishedAt is nil rather than the behavior being unspecified.
func (t *Title) RecomputePopularityScore(now time.Time) float64 {
	viewScore := float64(t.Analytics.TotalViews) * 0.001
	likeScore := float64(t.Analytics.TotalLikes) * 0.01
	ratingScore := t.Analytics.AverageRating * 10

	recencyScore := 0.0
	if t.PublishedAt != nil {
		days := t.DaysSincePublished(now)
		recencyScore = 100 - days
		if recencyScore < 0 {
			recencyScore = 0
		}
	}

	score := viewScore + likeScore + ratingScore + recencyScore*0.1
	t.Analytics.PopularityScore = score
	return score
}

// HasGenreOverlap reports whether the Title shares any genre with genres.
func (t *Title) HasGenreOverlap(genres []string) bool {
	return stringSetsOverlap(t.Genres, genres)
}

// HasLanguageOverlap reports whether the Title shares any language with languages.
func (t *Title) HasLanguageOverlap(languages []string) bool {
	return stringSetsOverlap(t.Languages, languages)
}

func stringSetsOverlap(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, v := range a {
		set[v] = struct{}{}
	}
	for _, v := range b {
		if _, ok := set[v]; ok {
			return true
		}
	}
	return false
}
