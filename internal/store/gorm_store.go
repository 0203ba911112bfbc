package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"clipfeed/internal/apperr"
	"clipfeed/internal/models"
)

// GormStore is the production DocumentStore implementation over Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an already-migrated *gorm.DB.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Models returns the record types AutoMigrate must know about.
func Models() []interface{} {
	return []interface{}{
		&models.Title{},
		&models.Episode{},
		&models.User{},
		&models.WatchRecord{},
	}
}

func wrapGormErr(err error, notFoundMsg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFoundf("%s", notFoundMsg)
	}
	return apperr.Dependencyf(err, "document store operation failed")
}

func (s *GormStore) GetTitle(ctx context.Context, id string) (*models.Title, error) {
	var t models.Title
	err := s.db.WithContext(ctx).First(&t, "id = ?", id).Error
	if err != nil {
		return nil, wrapGormErr(err, fmt.Sprintf("title %s not found", id))
	}
	return &t, nil
}

func (s *GormStore) GetTitles(ctx context.Context, ids []string) ([]*models.Title, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var titles []*models.Title
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&titles).Error; err != nil {
		return nil, wrapGormErr(err, "titles not found")
	}
	return titles, nil
}

func applyTitleFilter(q *gorm.DB, filter TitleFilter) *gorm.DB {
	q = q.Where("status = ?", models.TitleStatusPublished).Where("feed_is_in_random_feed = ?", true)
	if len(filter.Genres) > 0 {
		q = q.Where("genres && ?", filter.Genres)
	}
	if len(filter.Languages) > 0 {
		q = q.Where("languages && ?", filter.Languages)
	}
	if len(filter.ExcludeIDs) > 0 {
		q = q.Where("id NOT IN ?", filter.ExcludeIDs)
	}
	if filter.OnlyPremium != nil {
		q = q.Where("is_premium = ?", *filter.OnlyPremium)
	}
	if filter.Region != "" {
		q = q.Where("NOT (? = ANY(geographic_restrictions))", filter.Region)
	}
	return q
}

func (s *GormStore) ListPublishedTitles(ctx context.Context, filter TitleFilter) ([]*models.Title, error) {
	var titles []*models.Title
	q := applyTitleFilter(s.db.WithContext(ctx), filter)
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	if err := q.Find(&titles).Error; err != nil {
		return nil, wrapGormErr(err, "no published titles")
	}
	return titles, nil
}

func (s *GormStore) ListTrendingTitles(ctx context.Context, sinceDays int, limit int) ([]*models.Title, error) {
	cutoff := time.Now().AddDate(0, 0, -sinceDays)
	var titles []*models.Title
	q := applyTitleFilter(s.db.WithContext(ctx), TitleFilter{}).
		Where("published_at >= ?", cutoff).
		Order("trending_score DESC").Limit(limit)
	if err := q.Find(&titles).Error; err != nil {
		return nil, wrapGormErr(err, "no trending titles")
	}
	return titles, nil
}

func (s *GormStore) ListPopularTitles(ctx context.Context, filter TitleFilter) ([]*models.Title, error) {
	var titles []*models.Title
	q := applyTitleFilter(s.db.WithContext(ctx), filter).Order("popularity_score DESC")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if err := q.Find(&titles).Error; err != nil {
		return nil, wrapGormErr(err, "no popular titles")
	}
	return titles, nil
}

func (s *GormStore) ListFreshTitles(ctx context.Context, sinceDays int, limit int) ([]*models.Title, error) {
	cutoff := time.Now().AddDate(0, 0, -sinceDays)
	var titles []*models.Title
	q := applyTitleFilter(s.db.WithContext(ctx), TitleFilter{}).
		Where("published_at >= ?", cutoff).
		Order("published_at DESC").Limit(limit)
	if err := q.Find(&titles).Error; err != nil {
		return nil, wrapGormErr(err, "no fresh titles")
	}
	return titles, nil
}

func (s *GormStore) ListFeaturedTitles(ctx context.Context, limit int) ([]*models.Title, error) {
	var titles []*models.Title
	q := s.db.WithContext(ctx).Where("status = ? AND feed_is_featured = ?", models.TitleStatusPublished, true).Limit(limit)
	if err := q.Find(&titles).Error; err != nil {
		return nil, wrapGormErr(err, "no featured titles")
	}
	return titles, nil
}

func (s *GormStore) ListEditorsPicks(ctx context.Context, limit int) ([]*models.Title, error) {
	var titles []*models.Title
	q := s.db.WithContext(ctx).Where("status = ? AND feed_is_editors_pick = ?", models.TitleStatusPublished, true).Limit(limit)
	if err := q.Find(&titles).Error; err != nil {
		return nil, wrapGormErr(err, "no editor's picks")
	}
	return titles, nil
}

func (s *GormStore) SearchTitles(ctx context.Context, query string, limit, offset int) ([]*models.Title, error) {
	var titles []*models.Title
	like := "%" + query + "%"
	q := s.db.WithContext(ctx).
		Where("status = ? AND (title ILIKE ? OR description ILIKE ?)", models.TitleStatusPublished, like, like).
		Limit(limit).Offset(offset)
	if err := q.Find(&titles).Error; err != nil {
		return nil, wrapGormErr(err, "no search results")
	}
	return titles, nil
}

func (s *GormStore) UpdateTitleAnalytics(ctx context.Context, id string, fn func(*models.TitleAnalytics)) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t models.Title
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&t, "id = ?", id).Error; err != nil {
			return wrapGormErr(err, fmt.Sprintf("title %s not found", id))
		}
		fn(&t.Analytics)
		if err := tx.Model(&t).Updates(map[string]interface{}{
			"total_views":      t.Analytics.TotalViews,
			"total_likes":      t.Analytics.TotalLikes,
			"total_shares":     t.Analytics.TotalShares,
			"average_rating":   t.Analytics.AverageRating,
			"total_ratings":    t.Analytics.TotalRatings,
			"popularity_score": t.Analytics.PopularityScore,
			"completion_rate":  t.Analytics.CompletionRate,
			"completed_views":  t.Analytics.CompletedViews,
		}).Error; err != nil {
			return apperr.Dependencyf(err, "update title analytics failed")
		}
		return nil
	})
}

func (s *GormStore) GetEpisode(ctx context.Context, id string) (*models.Episode, error) {
	var e models.Episode
	if err := s.db.WithContext(ctx).First(&e, "id = ?", id).Error; err != nil {
		return nil, wrapGormErr(err, fmt.Sprintf("episode %s not found", id))
	}
	return &e, nil
}

func (s *GormStore) GetEpisodes(ctx context.Context, ids []string) ([]*models.Episode, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var episodes []*models.Episode
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&episodes).Error; err != nil {
		return nil, wrapGormErr(err, "episodes not found")
	}
	return episodes, nil
}

func (s *GormStore) ListEpisodesByTitle(ctx context.Context, titleID string) ([]*models.Episode, error) {
	var episodes []*models.Episode
	q := s.db.WithContext(ctx).Where("title_id = ? AND status = ?", titleID, models.EpisodeStatusPublished).
		Order("season_number ASC, episode_number ASC")
	if err := q.Find(&episodes).Error; err != nil {
		return nil, wrapGormErr(err, "no episodes for title")
	}
	return episodes, nil
}

func (s *GormStore) GetFirstEpisode(ctx context.Context, titleID string) (*models.Episode, error) {
	var e models.Episode
	err := s.db.WithContext(ctx).
		Where("title_id = ? AND status = ?", titleID, models.EpisodeStatusPublished).
		Order("season_number ASC, episode_number ASC").
		First(&e).Error
	if err != nil {
		return nil, wrapGormErr(err, fmt.Sprintf("no playable episode for title %s", titleID))
	}
	return &e, nil
}

func (s *GormStore) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, "user_id = ?", userID).Error; err != nil {
		return nil, wrapGormErr(err, fmt.Sprintf("user %s not found", userID))
	}
	return &u, nil
}

func (s *GormStore) UpsertUser(ctx context.Context, user *models.User) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(user).Error
	if err != nil {
		return apperr.Dependencyf(err, "upsert user failed")
	}
	return nil
}

func (s *GormStore) GetWatchRecord(ctx context.Context, userID, episodeID string) (*models.WatchRecord, error) {
	var w models.WatchRecord
	err := s.db.WithContext(ctx).First(&w, "user_id = ? AND episode_id = ?", userID, episodeID).Error
	if err != nil {
		return nil, wrapGormErr(err, "watch record not found")
	}
	return &w, nil
}

func (s *GormStore) UpsertWatchRecord(ctx context.Context, record *models.WatchRecord) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "episode_id"}},
		UpdateAll: true,
	}).Create(record).Error
	if err != nil {
		return apperr.Dependencyf(err, "upsert watch record failed")
	}
	return nil
}

func (s *GormStore) ListContinueWatching(ctx context.Context, userID string, min, max float64, limit int) ([]*models.WatchRecord, error) {
	var records []*models.WatchRecord
	q := s.db.WithContext(ctx).
		Where("user_id = ? AND status IN ? AND percentage_watched > ? AND percentage_watched < ?",
			userID, []models.WatchStatus{models.WatchStatusWatching, models.WatchStatusPaused}, min*100, max*100).
		Order("last_watched_at DESC").
		Limit(limit)
	if err := q.Find(&records).Error; err != nil {
		return nil, wrapGormErr(err, "no continue-watching records")
	}
	return records, nil
}

func (s *GormStore) ListWatchRecordsByUser(ctx context.Context, userID string, limit, offset int) ([]*models.WatchRecord, error) {
	var records []*models.WatchRecord
	q := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("last_watched_at DESC").Limit(limit).Offset(offset)
	if err := q.Find(&records).Error; err != nil {
		return nil, wrapGormErr(err, "no watch records")
	}
	return records, nil
}

func (s *GormStore) ListWatchRecordsByTitle(ctx context.Context, userID, titleID string) ([]*models.WatchRecord, error) {
	var records []*models.WatchRecord
	q := s.db.WithContext(ctx).Where("user_id = ? AND title_id = ?", userID, titleID).
		Order("ordinal_season_number ASC, ordinal_episode_number ASC")
	if err := q.Find(&records).Error; err != nil {
		return nil, wrapGormErr(err, "no watch records for title")
	}
	return records, nil
}

func (s *GormStore) DeleteWatchHistory(ctx context.Context, userID string) error {
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.WatchRecord{}).Error; err != nil {
		return apperr.Dependencyf(err, "clear watch history failed")
	}
	return nil
}

// CountRecentSessions returns the number of watch records started in
// the last 7 days for userID (optionally scoped to titleID) and the
// average episodes-per-session, feeding the Prefetch Planner's
// smart-mode k selection.
func (s *GormStore) CountRecentSessions(ctx context.Context, userID string, titleID string) (int, float64, error) {
	since := time.Now().AddDate(0, 0, -7)
	q := s.db.WithContext(ctx).Model(&models.WatchRecord{}).
		Where("user_id = ? AND started_at >= ?", userID, since)
	if titleID != "" {
		q = q.Where("title_id = ?", titleID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return 0, 0, apperr.Dependencyf(err, "count recent sessions failed")
	}
	if count == 0 {
		return 0, 0, nil
	}

	var distinctTitles int64
	dq := s.db.WithContext(ctx).Model(&models.WatchRecord{}).
		Where("user_id = ? AND started_at >= ?", userID, since).
		Distinct("title_id")
	if titleID != "" {
		dq = dq.Where("title_id = ?", titleID)
	}
	if err := dq.Count(&distinctTitles).Error; err != nil {
		return int(count), 0, apperr.Dependencyf(err, "count recent titles failed")
	}
	if distinctTitles == 0 {
		return int(count), 0, nil
	}
	return int(count), float64(count) / float64(distinctTitles), nil
}

var _ DocumentStore = (*GormStore)(nil)
