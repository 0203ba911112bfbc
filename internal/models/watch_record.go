package models

import "time"

// WatchStatus enumerates the lifecycle of a WatchRecord.
type WatchStatus string

const (
	WatchStatusWatching WatchStatus = "watching"
	WatchStatusCompleted WatchStatus = "completed"
	WatchStatusDropped   WatchStatus = "dropped"
	WatchStatusPaused    WatchStatus = "paused"
)

// SessionInfo tracks the viewing-session shape of a WatchRecord,
// folded into the single WatchRecord spec.md §3 defines rather than
// split across separate session/history tables.
type SessionInfo struct {
	StartedAt            time.Time  `json:"startedAt" gorm:"column:started_at"`
	LastWatchedAt         time.Time  `json:"lastWatchedAt" gorm:"column:last_watched_at;index"`
	CompletedAt          *time.Time `json:"completedAt,omitempty" gorm:"column:completed_at"`
	TotalSessions        int        `json:"totalSessions" gorm:"column:total_sessions;default:0"`
	AverageSessionLength float64    `json:"averageSessionLength" gorm:"column:average_session_length;default:0"`
}

// EpisodeEngagement tracks per-record interaction counters.
type EpisodeEngagement struct {
	SessionDuration int `json:"sessionDuration" gorm:"column:session_duration;default:0"`
	PauseCount      int `json:"pauseCount" gorm:"column:pause_count;default:0"`
	SeekCount       int `json:"seekCount" gorm:"column:seek_count;default:0"`
	BufferingTime   int `json:"bufferingTime" gorm:"column:buffering_time;default:0"`
}

// WatchRecord is the single mutable per-(userId, episodeId) progress record.
//
// Invariants (spec.md §3, §8):
//   - 0 <= CurrentPosition <= TotalDuration
//   - PercentageWatched = 100*CurrentPosition/TotalDuration, clamped to [0,100]
//   - IsCompleted <=> PercentageWatched >= 80; becoming true sets
//     Status=completed and stamps CompletedAt exactly once
//   - CurrentPosition never decreases across updates
//   - at most one WatchRecord per (UserID, EpisodeID)
type WatchRecord struct {
	UserID           string            `json:"userId" gorm:"column:user_id;primaryKey"`
	EpisodeID        string            `json:"episodeId" gorm:"column:episode_id;primaryKey"`
	TitleID          string            `json:"titleId" gorm:"column:title_id;index"`
	EpisodeOrdinal   Ordinal           `json:"episodeOrdinal" gorm:"embedded;embeddedPrefix:ordinal_"`
	CurrentPosition  int               `json:"currentPosition" gorm:"column:current_position;default:0"`
	TotalDuration    int               `json:"totalDuration" gorm:"column:total_duration"`
	PercentageWatched float64          `json:"percentageWatched" gorm:"column:percentage_watched;default:0"`
	IsCompleted      bool              `json:"isCompleted" gorm:"column:is_completed;default:false"`
	Status           WatchStatus       `json:"status" gorm:"column:status;default:watching"`
	WatchedVia       string            `json:"watchedVia" gorm:"column:watched_via"`
	Rating           *int              `json:"rating,omitempty" gorm:"column:rating"`
	Liked            bool              `json:"liked" gorm:"column:liked;default:false"`
	Shared           bool              `json:"shared" gorm:"column:shared;default:false"`
	SessionInfo      SessionInfo       `json:"sessionInfo" gorm:"embedded"`
	Engagement       EpisodeEngagement `json:"engagement" gorm:"embedded"`

	// DeviceCategory is a supplemented (SPEC_FULL.md §4), purely
	// additive field that is stored and serialized as given; nothing in
	// the service derives it from WatchedVia or sets it. It is never
	// consulted by completion or ranking logic.
	DeviceCategory string `json:"deviceCategory,omitempty" gorm:"column:device_category"`
}

// TableName sets the GORM table name.
func (WatchRecord) TableName() string { return "watch_records" }

// ApplyPosition applies a monotonic position update and the 80%
// completion rule, idempotently. completionThreshold is e.g. 0.80.
func (w *WatchRecord) ApplyPosition(position int, now time.Time, completionThreshold float64) {
	if w.TotalDuration > 0 && position > w.TotalDuration {
		position = w.TotalDuration
	}
	if position > w.CurrentPosition {
		w.CurrentPosition = position
	}
	w.recomputePercentage()

	if !w.IsCompleted && w.PercentageWatched >= completionThreshold*100 {
		w.IsCompleted = true
		w.Status = WatchStatusCompleted
		completedAt := now
		w.SessionInfo.CompletedAt = &completedAt
	}
}

func (w *WatchRecord) recomputePercentage() {
	if w.TotalDuration <= 0 {
		w.PercentageWatched = 0
		return
	}
	pct := 100 * float64(w.CurrentPosition) / float64(w.TotalDuration)
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	w.PercentageWatched = pct
}

// IsInContinueWatchingWindow reports whether w belongs in the
// continue-watching band: strictly between min and max percentage
// (expressed as fractions, e.g. 0.05/0.80) and status watching/paused.
func (w *WatchRecord) IsInContinueWatchingWindow(min, max float64) bool {
	if w.Status != WatchStatusWatching && w.Status != WatchStatusPaused {
		return false
	}
	pct := w.PercentageWatched / 100
	return pct > min && pct < max
}
