package models

// QualityVariant is one transcoded rendition of an Episode's video.
type QualityVariant struct {
	Resolution string `json:"resolution"`
	URL        string `json:"url"`
	FileSize   int64  `json:"fileSize"`
	Bitrate    int    `json:"bitrate"`
}

// StreamingOptions controls client-side buffering behavior for an Episode.
type StreamingOptions struct {
	PreloadEnabled  bool `json:"preloadEnabled" gorm:"column:preload_enabled;default:true"`
	PreloadDuration int  `json:"preloadDuration" gorm:"column:preload_duration;default:10"`
	ChunkSize       int  `json:"chunkSize" gorm:"column:chunk_size;default:1048576"`
	AdaptiveBitrate bool `json:"adaptiveBitrate" gorm:"column:adaptive_bitrate;default:true"`
}

// EpisodeAnalytics holds per-episode playback analytics.
type EpisodeAnalytics struct {
	TotalViews     int64   `json:"totalViews" gorm:"column:total_views;default:0"`
	TotalWatchTime int64   `json:"totalWatchTime" gorm:"column:total_watch_time;default:0"`
	CompletionRate float64 `json:"completionRate" gorm:"column:completion_rate;default:0"`
	Likes          int64   `json:"likes" gorm:"column:likes;default:0"`
	DropOffPoints  []int   `json:"dropOffPoints" gorm:"column:drop_off_points;type:integer[]"`
}

// EpisodeStatus mirrors Title's publication lifecycle.
type EpisodeStatus string

const (
	EpisodeStatusDraft     EpisodeStatus = "draft"
	EpisodeStatusPublished EpisodeStatus = "published"
	EpisodeStatusArchived  EpisodeStatus = "archived"
)

// Episode is one playable unit of a Title.
//
// Invariant: for a given TitleID, (SeasonNumber, EpisodeNumber) is
// unique and defines total order; adjacency (previous/next) is always
// computed on demand per spec.md §9 — no previousEpisodeId/nextEpisodeId
// fields are persisted.
type Episode struct {
	ID               string           `json:"id" gorm:"column:id;primaryKey"`
	TitleID          string           `json:"titleId" gorm:"column:title_id;not null;index"`
	SeasonNumber     int              `json:"seasonNumber" gorm:"column:season_number;not null"`
	EpisodeNumber    int              `json:"episodeNumber" gorm:"column:episode_number;not null"`
	Title            string           `json:"title" gorm:"column:title"`
	Duration         int              `json:"duration" gorm:"column:duration"` // seconds
	ThumbnailURL     string           `json:"thumbnailUrl" gorm:"column:thumbnail_url"`
	VideoURL         string           `json:"videoUrl" gorm:"column:video_url"`
	QualityVariants  []QualityVariant `json:"qualityVariants" gorm:"-"`
	Status           EpisodeStatus    `json:"status" gorm:"column:status;not null"`
	StreamingOptions StreamingOptions `json:"streamingOptions" gorm:"embedded;embeddedPrefix:stream_"`
	Analytics        EpisodeAnalytics `json:"analytics" gorm:"embedded"`
}

// TableName sets the GORM table name.
func (Episode) TableName() string { return "episodes" }

// IsPublished reports whether the Episode is visible to the Core.
func (e *Episode) IsPublished() bool { return e.Status == EpisodeStatusPublished }

// Ordinal returns the (season, episode) pair used for total ordering.
type Ordinal struct {
	SeasonNumber  int `json:"seasonNumber"`
	EpisodeNumber int `json:"episodeNumber"`
}

// OrdinalOf returns e's Ordinal.
func (e *Episode) OrdinalOf() Ordinal {
	return Ordinal{SeasonNumber: e.SeasonNumber, EpisodeNumber: e.EpisodeNumber}
}

// Less reports whether o sorts before other under (season, episode) order.
func (o Ordinal) Less(other Ordinal) bool {
	if o.SeasonNumber != other.SeasonNumber {
		return o.SeasonNumber < other.SeasonNumber
	}
	return o.EpisodeNumber < other.EpisodeNumber
}

// LowestResolutionURL implements the §4.5 prefetch quality policy's
// low-bandwidth pick: prefer 480p, else the lowest present variant,
// else the master VideoURL.
func (e *Episode) LowestResolutionURL() string {
	for _, v := range e.QualityVariants {
		if v.Resolution == "480p" {
			return v.URL
		}
	}
	if len(e.QualityVariants) > 0 {
		lowest := e.QualityVariants[0]
		for _, v := range e.QualityVariants[1:] {
			if variantRank(v.Resolution) < variantRank(lowest.Resolution) {
				lowest = v
			}
		}
		return lowest.URL
	}
	return e.VideoURL
}

// StreamResolutionURL implements the §4.5 prefetch quality policy's
// stream pick: 720p if present, else the first variant.
func (e *Episode) StreamResolutionURL() string {
	for _, v := range e.QualityVariants {
		if v.Resolution == "720p" {
			return v.URL
		}
	}
	if len(e.QualityVariants) > 0 {
		return e.QualityVariants[0].URL
	}
	return e.VideoURL
}

func variantRank(resolution string) int {
	switch resolution {
	case "240p":
		return 1
	case "360p":
		return 2
	case "480p":
		return 3
	case "720p":
		return 4
	case "1080p":
		return 5
	case "4k":
		return 6
	default:
		return 99
	}
}
