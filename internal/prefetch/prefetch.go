// Package prefetch implements the Prefetch Planner (C5): deciding
// which upcoming episodes of a Card's title to preload, at what
// quality, and estimating the bytes that plan costs the viewer.
package prefetch

import (
	"context"
	"sort"

	"clipfeed/internal/models"
	"clipfeed/internal/store"
)

// megabyte is the unit the sizing formula's multiplier table is
// expressed in (megabytes per minute of video).
const megabyte = 1_000_000

// bytesPerMinute is the sizing table keyed by resolution: megabytes of
// video per minute of playback.
var bytesPerMinute = map[string]float64{
	"480p":  0.5,
	"720p":  1.2,
	"1080p": 2.5,
	"4k":    6.0,
}

// Planner builds PrefetchPlans.
type Planner struct {
	docs                store.DocumentStore
	defaultQuality      string
	defaultEpisodeCount int
}

// NewPlanner builds a Planner. defaultQuality and defaultEpisodeCount
// come from internal/config.FeedConfig (e.g. "480p", 5).
func NewPlanner(docs store.DocumentStore, defaultQuality string, defaultEpisodeCount int) *Planner {
	return &Planner{docs: docs, defaultQuality: defaultQuality, defaultEpisodeCount: defaultEpisodeCount}
}

// Plan builds the title-level prefetch plan for titleID starting after
// `after` (the viewer's current episode ordinal, or the zero Ordinal
// to plan from the beginning). dataUsage adjusts the prefetched
// quality and episode count per the low-bandwidth policy; k, when > 0,
// is the smart-mode episode count and replaces the default count. The returned plan carries no
// per-user progress overlay — callers needing one call Overlay.
func (p *Planner) Plan(ctx context.Context, titleID string, after models.Ordinal, dataUsage models.DataUsage, k int) (*models.PrefetchPlan, error) {
	episodes, err := p.docs.ListEpisodesByTitle(ctx, titleID)
	if err != nil {
		return nil, err
	}
	sort.Slice(episodes, func(i, j int) bool {
		return episodes[i].OrdinalOf().Less(episodes[j].OrdinalOf())
	})

	count := k
	if count <= 0 {
		count = p.defaultEpisodeCount
	}
	count = clampEpisodeCount(count, dataUsage)

	upcoming := make([]*models.Episode, 0, count)
	for _, e := range episodes {
		if !after.Less(e.OrdinalOf()) {
			continue
		}
		upcoming = append(upcoming, e)
		if len(upcoming) == count {
			break
		}
	}

	quality := p.defaultQuality
	if dataUsage == models.DataUsageLow {
		quality = "480p"
	}

	plan := &models.PrefetchPlan{
		Quality:       quality,
		StreamQuality: "720p",
	}
	var totalBytes int64
	for _, e := range upcoming {
		plan.Episodes = append(plan.Episodes, models.PrefetchEpisode{
			EpisodeID:   e.ID,
			PrefetchURL: e.LowestResolutionURL(),
			StreamURL:   e.StreamResolutionURL(),
		})
		totalBytes += estimateBytes(e, quality)
	}
	plan.EstimatedBytes = totalBytes
	return plan, nil
}

// Overlay reads userID's WatchRecords against titleID in a single
// batched lookup and fills in each plan Episode's currentPosition,
// percentage, and completed fields in place.
func (p *Planner) Overlay(ctx context.Context, userID, titleID string, plan *models.PrefetchPlan) error {
	records, err := p.docs.ListWatchRecordsByTitle(ctx, userID, titleID)
	if err != nil {
		return err
	}
	byEpisode := make(map[string]*models.WatchRecord, len(records))
	for _, r := range records {
		byEpisode[r.EpisodeID] = r
	}
	for i := range plan.Episodes {
		r, ok := byEpisode[plan.Episodes[i].EpisodeID]
		if !ok {
			continue
		}
		plan.Episodes[i].CurrentPosition = r.CurrentPosition
		plan.Episodes[i].Percentage = r.PercentageWatched
		plan.Episodes[i].Completed = r.IsCompleted
	}
	return nil
}

// SmartK selects the prefetch episode count from a rolling average of
// episodes-per-session: users who binge get a deeper prefetch window,
// casual viewers get a shallow one.
func SmartK(avgEpisodesPerSession float64) int {
	switch {
	case avgEpisodesPerSession < 2:
		return 2
	case avgEpisodesPerSession > 5:
		return 7
	default:
		return 3
	}
}

func clampEpisodeCount(count int, dataUsage models.DataUsage) int {
	if dataUsage == models.DataUsageLow && count > 3 {
		return 3
	}
	if count < 2 {
		return 2
	}
	if count > 7 {
		return 7
	}
	return count
}

// estimateBytes estimates an Episode's byte cost at quality using
// duration_minutes * multiplier[quality] megabytes per minute, unless
// the Episode's own QualityVariant already carries a known FileSize.
func estimateBytes(e *models.Episode, quality string) int64 {
	for _, v := range e.QualityVariants {
		if v.Resolution == quality && v.FileSize > 0 {
			return v.FileSize
		}
	}
	multiplier, ok := bytesPerMinute[quality]
	if !ok {
		multiplier = bytesPerMinute["480p"]
	}
	minutes := float64(e.Duration) / 60.0
	return int64(minutes * multiplier * megabyte)
}
