package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"clipfeed/internal/apperr"
	"clipfeed/internal/models"
)

// MemoryStore is an in-memory DocumentStore, a hand-written fake (no
// generated mocks) backing every package's tests that need a
// DocumentStore collaborator without a live Postgres instance.
type MemoryStore struct {
	mu sync.Mutex

	titles       map[string]*models.Title
	episodes     map[string]*models.Episode
	users        map[string]*models.User
	watchRecords map[string]*models.WatchRecord
}

// NewMemoryStore builds an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		titles:       make(map[string]*models.Title),
		episodes:     make(map[string]*models.Episode),
		users:        make(map[string]*models.User),
		watchRecords: make(map[string]*models.WatchRecord),
	}
}

// PutTitle seeds a Title.
func (m *MemoryStore) PutTitle(t *models.Title) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.titles[t.ID] = t
}

// PutEpisode seeds an Episode.
func (m *MemoryStore) PutEpisode(e *models.Episode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.episodes[e.ID] = e
}

// PutUser seeds a User.
func (m *MemoryStore) PutUser(u *models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.UserID] = u
}

func watchKey(userID, episodeID string) string { return userID + ":" + episodeID }

func (m *MemoryStore) GetTitle(_ context.Context, id string) (*models.Title, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.titles[id]
	if !ok {
		return nil, apperr.NotFoundf("title %s not found", id)
	}
	return t, nil
}

func (m *MemoryStore) GetTitles(ctx context.Context, ids []string) ([]*models.Title, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Title, 0, len(ids))
	for _, id := range ids {
		if t, ok := m.titles[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *MemoryStore) matchesFilter(t *models.Title, filter TitleFilter) bool {
	if !t.Feed.IsInRandomFeed {
		return false
	}
	if len(filter.Genres) > 0 && !t.HasGenreOverlap(filter.Genres) {
		return false
	}
	if len(filter.Languages) > 0 && !t.HasLanguageOverlap(filter.Languages) {
		return false
	}
	for _, excluded := range filter.ExcludeIDs {
		if t.ID == excluded {
			return false
		}
	}
	if filter.OnlyPremium != nil && t.IsPremium != *filter.OnlyPremium {
		return false
	}
	return true
}

func (m *MemoryStore) ListPublishedTitles(_ context.Context, filter TitleFilter) ([]*models.Title, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Title
	for _, t := range m.titles {
		if !t.IsPublished() || !m.matchesFilter(t, filter) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return limitTitles(out, filter.Limit), nil
}

func (m *MemoryStore) ListTrendingTitles(_ context.Context, sinceDays int, limit int) ([]*models.Title, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().AddDate(0, 0, -sinceDays)
	var out []*models.Title
	for _, t := range m.titles {
		if !t.IsPublished() || !t.Feed.IsInRandomFeed {
			continue
		}
		if t.PublishedAt == nil || t.PublishedAt.Before(cutoff) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Analytics.TrendingScore > out[j].Analytics.TrendingScore })
	return limitTitles(out, limit), nil
}

func (m *MemoryStore) ListPopularTitles(_ context.Context, filter TitleFilter) ([]*models.Title, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Title
	for _, t := range m.titles {
		if !t.IsPublished() || !m.matchesFilter(t, filter) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Analytics.PopularityScore > out[j].Analytics.PopularityScore
	})
	return limitTitles(out, filter.Limit), nil
}

func (m *MemoryStore) ListFreshTitles(_ context.Context, sinceDays int, limit int) ([]*models.Title, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().AddDate(0, 0, -sinceDays)
	var out []*models.Title
	for _, t := range m.titles {
		if !t.IsPublished() || !t.Feed.IsInRandomFeed || t.PublishedAt == nil {
			continue
		}
		if t.PublishedAt.Before(cutoff) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PublishedAt.After(*out[j].PublishedAt) })
	return limitTitles(out, limit), nil
}

func (m *MemoryStore) ListFeaturedTitles(_ context.Context, limit int) ([]*models.Title, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Title
	for _, t := range m.titles {
		if t.IsPublished() && t.Feed.IsFeatured {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return limitTitles(out, limit), nil
}

func (m *MemoryStore) ListEditorsPicks(_ context.Context, limit int) ([]*models.Title, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Title
	for _, t := range m.titles {
		if t.IsPublished() && t.Feed.IsEditorsPick {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return limitTitles(out, limit), nil
}

func (m *MemoryStore) SearchTitles(_ context.Context, query string, limit, offset int) ([]*models.Title, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Title
	q := strings.ToLower(query)
	for _, t := range m.titles {
		if strings.Contains(strings.ToLower(t.Title), q) || strings.Contains(strings.ToLower(t.Description), q) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	return limitTitles(out, limit), nil
}

func (m *MemoryStore) UpdateTitleAnalytics(_ context.Context, id string, fn func(*models.TitleAnalytics)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.titles[id]
	if !ok {
		return apperr.NotFoundf("title %s not found", id)
	}
	fn(&t.Analytics)
	return nil
}

func (m *MemoryStore) GetEpisode(_ context.Context, id string) (*models.Episode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.episodes[id]
	if !ok {
		return nil, apperr.NotFoundf("episode %s not found", id)
	}
	return e, nil
}

func (m *MemoryStore) GetEpisodes(_ context.Context, ids []string) ([]*models.Episode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Episode, 0, len(ids))
	for _, id := range ids {
		if e, ok := m.episodes[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MemoryStore) ListEpisodesByTitle(_ context.Context, titleID string) ([]*models.Episode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Episode
	for _, e := range m.episodes {
		if e.TitleID == titleID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrdinalOf().Less(out[j].OrdinalOf()) })
	return out, nil
}

func (m *MemoryStore) GetFirstEpisode(_ context.Context, titleID string) (*models.Episode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *models.Episode
	for _, e := range m.episodes {
		if e.TitleID != titleID || !e.IsPublished() {
			continue
		}
		if best == nil || e.OrdinalOf().Less(best.OrdinalOf()) {
			best = e
		}
	}
	if best == nil {
		return nil, apperr.NotFoundf("no playable episode for title %s", titleID)
	}
	return best, nil
}

func (m *MemoryStore) GetUser(_ context.Context, userID string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, apperr.NotFoundf("user %s not found", userID)
	}
	return u, nil
}

func (m *MemoryStore) UpsertUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.UserID] = user
	return nil
}

func (m *MemoryStore) GetWatchRecord(_ context.Context, userID, episodeID string) (*models.WatchRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.watchRecords[watchKey(userID, episodeID)]
	if !ok {
		return nil, apperr.NotFoundf("watch record %s/%s not found", userID, episodeID)
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryStore) UpsertWatchRecord(_ context.Context, record *models.WatchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *record
	m.watchRecords[watchKey(record.UserID, record.EpisodeID)] = &cp
	return nil
}

func (m *MemoryStore) ListContinueWatching(_ context.Context, userID string, min, max float64, limit int) ([]*models.WatchRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.WatchRecord
	for _, r := range m.watchRecords {
		if r.UserID != userID {
			continue
		}
		if r.IsInContinueWatchingWindow(min, max) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SessionInfo.LastWatchedAt.After(out[j].SessionInfo.LastWatchedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) ListWatchRecordsByUser(_ context.Context, userID string, limit, offset int) ([]*models.WatchRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.WatchRecord
	for _, r := range m.watchRecords {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SessionInfo.LastWatchedAt.After(out[j].SessionInfo.LastWatchedAt)
	})
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	return limitWatchRecords(out, limit), nil
}

func (m *MemoryStore) ListWatchRecordsByTitle(_ context.Context, userID, titleID string) ([]*models.WatchRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.WatchRecord
	for _, r := range m.watchRecords {
		if r.UserID == userID && r.TitleID == titleID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EpisodeOrdinal.Less(out[j].EpisodeOrdinal) })
	return out, nil
}

func (m *MemoryStore) DeleteWatchHistory(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, r := range m.watchRecords {
		if r.UserID == userID {
			delete(m.watchRecords, k)
		}
	}
	return nil
}

func (m *MemoryStore) CountRecentSessions(_ context.Context, userID string, titleID string) (int, float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	distinctTitles := make(map[string]struct{})
	for _, r := range m.watchRecords {
		if r.UserID != userID {
			continue
		}
		count++
		distinctTitles[r.TitleID] = struct{}{}
	}
	if len(distinctTitles) == 0 {
		return 0, 0, nil
	}
	return count, float64(count) / float64(len(distinctTitles)), nil
}

func limitTitles(titles []*models.Title, limit int) []*models.Title {
	if limit > 0 && len(titles) > limit {
		return titles[:limit]
	}
	return titles
}

func limitWatchRecords(records []*models.WatchRecord, limit int) []*models.WatchRecord {
	if limit > 0 && len(records) > limit {
		return records[:limit]
	}
	return records
}

var _ DocumentStore = (*MemoryStore)(nil)
