// Package progress implements the Progress & Watchlist Store (C4):
// per-(user, episode) playback position, the 80% completion rule,
// rating aggregation, and the continue-watching window.
//
// Per-key serialization uses a sync.Map of mutexes keyed by
// (userId, episodeId), so concurrent progress updates for the same
// viewer+episode never race.
package progress

import (
	"context"
	"fmt"
	"sync"
	"time"

	"clipfeed/internal/apperr"
	"clipfeed/internal/metrics"
	"clipfeed/internal/models"
	"clipfeed/internal/store"
)

// Store implements the Progress & Watchlist operations over a
// DocumentStore, serializing writes per (userID, episodeID).
type Store struct {
	docs                store.DocumentStore
	completionThreshold float64
	keyLocks            sync.Map // string -> *sync.Mutex
}

// NewStore builds a progress Store. completionThreshold is e.g. 0.80.
func NewStore(docs store.DocumentStore, completionThreshold float64) *Store {
	return &Store{docs: docs, completionThreshold: completionThreshold}
}

func (s *Store) lockFor(userID, episodeID string) *sync.Mutex {
	key := mutexKey(userID, episodeID)
	muIface, _ := s.keyLocks.LoadOrStore(key, &sync.Mutex{})
	mu := muIface.(*sync.Mutex)
	mu.Lock()
	return mu
}

// UpsertProgress applies a monotonic position update to the caller's
// WatchRecord for (userID, episodeID), creating the record on first
// watch. now is the event time and position is the absolute playhead
// in seconds.
func (s *Store) UpsertProgress(ctx context.Context, userID string, episode *models.Episode, position int, watchedVia string, now time.Time) (*models.WatchRecord, bool, error) {
	mu := s.lockFor(userID, episode.ID)
	defer mu.Unlock()

	record, err := s.docs.GetWatchRecord(ctx, userID, episode.ID)
	wasCompleted := false
	if err != nil {
		if apperr.KindOf(err) != apperr.NotFound {
			return nil, false, err
		}
		record = &models.WatchRecord{
			UserID:         userID,
			EpisodeID:      episode.ID,
			TitleID:        episode.TitleID,
			EpisodeOrdinal: episode.OrdinalOf(),
			TotalDuration:  episode.Duration,
			Status:         models.WatchStatusWatching,
			WatchedVia:     watchedVia,
			SessionInfo: models.SessionInfo{
				StartedAt:     now,
				LastWatchedAt: now,
				TotalSessions: 1,
			},
		}
	} else {
		wasCompleted = record.IsCompleted
		record.SessionInfo.LastWatchedAt = now
	}

	record.ApplyPosition(position, now, s.completionThreshold)
	justCompleted := !wasCompleted && record.IsCompleted

	if err := s.docs.UpsertWatchRecord(ctx, record); err != nil {
		return nil, false, err
	}

	if justCompleted {
		metrics.WatchRecordUpdates.WithLabelValues("completed").Inc()
		if err := s.docs.UpdateTitleAnalytics(ctx, episode.TitleID, func(a *models.TitleAnalytics) {
			a.CompletedViews++
			if a.TotalViews > 0 {
				a.CompletionRate = float64(a.CompletedViews) / float64(a.TotalViews)
			}
		}); err != nil {
			return record, justCompleted, err
		}
	} else {
		metrics.WatchRecordUpdates.WithLabelValues("updated").Inc()
	}

	return record, justCompleted, nil
}

// StartWatching records the start of a viewing session for (user,
// episode), the entrypoint of the §6 start-watching endpoint. On the
// first start it creates the WatchRecord and increments the Title's
// view counter; a later start resumes the existing record, stamping
// LastWatchedAt and counting one more session while keeping its
// position, completion, rating, like and share state.
func (s *Store) StartWatching(ctx context.Context, userID string, episode *models.Episode, watchedVia string, now time.Time) (*models.WatchRecord, error) {
	mu := s.lockFor(userID, episode.ID)
	defer mu.Unlock()

	record, err := s.docs.GetWatchRecord(ctx, userID, episode.ID)
	isNew := err != nil && apperr.KindOf(err) == apperr.NotFound
	if err != nil && !isNew {
		return nil, err
	}

	if isNew {
		record = &models.WatchRecord{
			UserID:         userID,
			EpisodeID:      episode.ID,
			TitleID:        episode.TitleID,
			EpisodeOrdinal: episode.OrdinalOf(),
			TotalDuration:  episode.Duration,
			Status:         models.WatchStatusWatching,
			WatchedVia:     watchedVia,
			SessionInfo: models.SessionInfo{
				StartedAt:     now,
				LastWatchedAt: now,
				TotalSessions: 1,
			},
		}
	} else {
		record.SessionInfo.LastWatchedAt = now
		record.SessionInfo.TotalSessions++
	}
	if err := s.docs.UpsertWatchRecord(ctx, record); err != nil {
		return nil, err
	}

	if isNew {
		metrics.WatchRecordUpdates.WithLabelValues("created").Inc()
		if err := s.docs.UpdateTitleAnalytics(ctx, episode.TitleID, func(a *models.TitleAnalytics) {
			a.TotalViews++
		}); err != nil {
			return record, err
		}
	} else {
		metrics.WatchRecordUpdates.WithLabelValues("restarted").Inc()
	}
	return record, nil
}

// ToggleLike flips the liked flag on a user's WatchRecord for episodeID,
// adjusting the Title's TotalLikes counter to match.
func (s *Store) ToggleLike(ctx context.Context, userID, episodeID string) (bool, error) {
	mu := s.lockFor(userID, episodeID)
	defer mu.Unlock()

	record, err := s.docs.GetWatchRecord(ctx, userID, episodeID)
	if err != nil {
		return false, err
	}
	record.Liked = !record.Liked
	if err := s.docs.UpsertWatchRecord(ctx, record); err != nil {
		return false, err
	}

	delta := int64(1)
	if !record.Liked {
		delta = -1
	}
	if err := s.docs.UpdateTitleAnalytics(ctx, record.TitleID, func(a *models.TitleAnalytics) {
		a.TotalLikes += delta
		if a.TotalLikes < 0 {
			a.TotalLikes = 0
		}
	}); err != nil {
		return record.Liked, err
	}
	return record.Liked, nil
}

// SetRating applies a new 1-5 rating for userID on titleID, replacing
// any previous rating in the Title's running average — this is a
// replacement, not an accumulation: a user changing their rating
// moves the average, it never double-counts.
// The caller need not know which episode of the title the user
// watched: any WatchRecord of titleID qualifies, and the most
// recently watched one carries the rating. Rating a title with no
// WatchRecord at all is a Conflict, not a NotFound.
func (s *Store) SetRating(ctx context.Context, userID, titleID string, rating int) error {
	if rating < 1 || rating > 5 {
		return apperr.Validationf("rating must be between 1 and 5")
	}

	records, err := s.docs.ListWatchRecordsByTitle(ctx, userID, titleID)
	if err != nil {
		return err
	}
	latest := mostRecentlyWatched(records)
	if latest == nil {
		return apperr.Conflictf("user %s has not watched any episode of title %s", userID, titleID)
	}

	mu := s.lockFor(userID, latest.EpisodeID)
	defer mu.Unlock()
	record, err := s.docs.GetWatchRecord(ctx, userID, latest.EpisodeID)
	if err != nil {
		return err
	}

	previous := record.Rating
	record.Rating = &rating
	if err := s.docs.UpsertWatchRecord(ctx, record); err != nil {
		return err
	}

	return s.docs.UpdateTitleAnalytics(ctx, record.TitleID, func(a *models.TitleAnalytics) {
		if previous == nil {
			a.TotalRatings++
			total := a.AverageRating * float64(a.TotalRatings-1)
			a.AverageRating = (total + float64(rating)) / float64(a.TotalRatings)
			return
		}
		total := a.AverageRating*float64(a.TotalRatings) - float64(*previous) + float64(rating)
		a.AverageRating = total / float64(a.TotalRatings)
	})
}

func mostRecentlyWatched(records []*models.WatchRecord) *models.WatchRecord {
	var best *models.WatchRecord
	for _, r := range records {
		if best == nil || r.SessionInfo.LastWatchedAt.After(best.SessionInfo.LastWatchedAt) {
			best = r
		}
	}
	return best
}

// AddEngagement folds session-interaction counters into a user's
// WatchRecord for (userID, episodeID). The counters are monotonic
// increments, so repeated or batched calls for the same session are
// commutative: callers may report partial deltas without risk of
// double-counting beyond what they actually observed.
func (s *Store) AddEngagement(ctx context.Context, userID, episodeID string, delta models.EpisodeEngagement) error {
	mu := s.lockFor(userID, episodeID)
	defer mu.Unlock()

	record, err := s.docs.GetWatchRecord(ctx, userID, episodeID)
	if err != nil {
		return err
	}
	record.Engagement.SessionDuration += delta.SessionDuration
	record.Engagement.PauseCount += delta.PauseCount
	record.Engagement.SeekCount += delta.SeekCount
	record.Engagement.BufferingTime += delta.BufferingTime
	return s.docs.UpsertWatchRecord(ctx, record)
}

// ToggleShare marks a user's WatchRecord as shared and bumps the
// Title's share counter; sharing is idempotent per record (a second
// share call is a no-op on the counter).
func (s *Store) ToggleShare(ctx context.Context, userID, episodeID string) error {
	mu := s.lockFor(userID, episodeID)
	defer mu.Unlock()

	record, err := s.docs.GetWatchRecord(ctx, userID, episodeID)
	if err != nil {
		return err
	}
	if record.Shared {
		return nil
	}
	record.Shared = true
	if err := s.docs.UpsertWatchRecord(ctx, record); err != nil {
		return err
	}
	return s.docs.UpdateTitleAnalytics(ctx, record.TitleID, func(a *models.TitleAnalytics) {
		a.TotalShares++
	})
}

// GetContinueWatching returns the caller's in-progress episodes within
// the continue-watching window (min, max), most recently watched first.
func (s *Store) GetContinueWatching(ctx context.Context, userID string, min, max float64, limit int) ([]*models.WatchRecord, error) {
	return s.docs.ListContinueWatching(ctx, userID, min, max, limit)
}

// GetUserProgressOnTitle returns every WatchRecord the user has for a
// given title's episodes, ordered by episode ordinal.
func (s *Store) GetUserProgressOnTitle(ctx context.Context, userID, titleID string) ([]*models.WatchRecord, error) {
	return s.docs.ListWatchRecordsByTitle(ctx, userID, titleID)
}

// ClearHistory deletes every WatchRecord for userID.
func (s *Store) ClearHistory(ctx context.Context, userID string) error {
	return s.docs.DeleteWatchHistory(ctx, userID)
}

// NextEpisode returns the lowest-ordinal episode in episodes strictly
// after the given ordinal, using the on-demand adjacency computation
// per the Episode model's invariant note. Publication status is not
// checked; callers pass the episode list to choose from.
func NextEpisode(episodes []*models.Episode, after models.Ordinal) (*models.Episode, bool) {
	var best *models.Episode
	for _, e := range episodes {
		ord := e.OrdinalOf()
		if !after.Less(ord) {
			continue
		}
		if best == nil || ord.Less(best.OrdinalOf()) {
			best = e
		}
	}
	if best == nil {
		return nil, false
	}
	return best, true
}

func mutexKey(userID, episodeID string) string {
	return fmt.Sprintf("%s:%s", userID, episodeID)
}
