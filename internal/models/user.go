package models

// DataUsage is the user's stated preference for streaming quality
// versus bandwidth, used by the Prefetch Planner.
type DataUsage string

const (
	DataUsageLow    DataUsage = "low"
	DataUsageMedium DataUsage = "medium"
	DataUsageHigh   DataUsage = "high"
)

// Preferences captures the signals the Candidate Pools and Ranking
// stage key off.
type Preferences struct {
	PreferredGenres    []string  `json:"preferredGenres" gorm:"column:preferred_genres;type:text[]"`
	PreferredLanguages []string  `json:"preferredLanguages" gorm:"column:preferred_languages;type:text[]"`
	AutoPlay           bool      `json:"autoPlay" gorm:"column:auto_play;default:true"`
	DataUsage          DataUsage `json:"dataUsage" gorm:"column:data_usage;default:medium"`
}

// GenreCount pairs a genre with an observed frequency.
type GenreCount struct {
	Genre string `json:"genre"`
	Count int    `json:"count"`
}

// UserAnalytics aggregates a user's lifetime viewing statistics.
type UserAnalytics struct {
	TotalWatchTime          int64        `json:"totalWatchTime" gorm:"column:total_watch_time;default:0"`
	VideosWatched           int64        `json:"videosWatched" gorm:"column:videos_watched;default:0"`
	AverageSessionDuration  float64      `json:"averageSessionDuration" gorm:"column:average_session_duration;default:0"`
	FavoriteGenres          []GenreCount `json:"favoriteGenres" gorm:"-"`
}

// Engagement aggregates a user's interaction counters.
type Engagement struct {
	Likes                  int64   `json:"likes" gorm:"column:likes;default:0"`
	Shares                 int64   `json:"shares" gorm:"column:shares;default:0"`
	SwipeRight             int64   `json:"swipeRight" gorm:"column:swipe_right;default:0"`
	SwipeLeft              int64   `json:"swipeLeft" gorm:"column:swipe_left;default:0"`
	AverageVideoCompletion float64 `json:"averageVideoCompletion" gorm:"column:average_video_completion;default:0"`
}

// User is typically anonymous, identified by a stable UserID.
type User struct {
	UserID      string        `json:"userId" gorm:"column:user_id;primaryKey"`
	Preferences Preferences   `json:"preferences" gorm:"embedded"`
	Analytics   UserAnalytics `json:"analytics" gorm:"embedded"`
	Engagement  Engagement    `json:"engagement" gorm:"embedded"`
	IsPremium   bool          `json:"isPremium" gorm:"column:is_premium;default:false"`
}

// TableName sets the GORM table name.
func (User) TableName() string { return "users" }

// EffectivePreferences overlays overrideGenre/overrideLanguage onto the
// stored preferences per spec.md §4.6 step 2, without mutating the
// stored User record.
func (u *User) EffectivePreferences(overrideGenre, overrideLanguage string) Preferences {
	prefs := u.Preferences
	if overrideGenre != "" {
		prefs.PreferredGenres = []string{overrideGenre}
	}
	if overrideLanguage != "" {
		prefs.PreferredLanguages = []string{overrideLanguage}
	}
	return prefs
}
