// Package feed implements the Feed Orchestrator (C6): the single
// entrypoint that ties the Cache Layer, Candidate Pools, Ranking,
// Prefetch Planner, Progress Store, and Analytics Sink together into
// the operations spec.md §6 exposes over HTTP.
package feed

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"clipfeed/internal/analytics"
	"clipfeed/internal/apperr"
	"clipfeed/internal/cache"
	"clipfeed/internal/metrics"
	"clipfeed/internal/models"
	"clipfeed/internal/pools"
	"clipfeed/internal/prefetch"
	"clipfeed/internal/progress"
	"clipfeed/internal/ranking"
	"clipfeed/internal/store"
)

// Config holds the orchestrator's tunables, sourced from internal/config.
type Config struct {
	DefaultPageSize     int
	MaxPageSize         int
	PerPoolSize         int
	FeedCacheTTL        time.Duration
	ContinueWatchingMin float64
	ContinueWatchingMax float64
	CompletionThreshold float64
	TrendingWindowDays  int
	FreshWindowDays     int
}

// Orchestrator implements every read/write operation of the feed domain.
type Orchestrator struct {
	docs      store.DocumentStore
	cacheStore cache.Store
	fetcher   *pools.Fetcher
	ranker    *ranking.Ranker
	planner   *prefetch.Planner
	progress  *progress.Store
	sink      analytics.Sink
	cfg       Config
}

// New builds an Orchestrator wiring every Core component together.
func New(docs store.DocumentStore, cacheStore cache.Store, ranker *ranking.Ranker, planner *prefetch.Planner, progressStore *progress.Store, sink analytics.Sink, cfg Config) *Orchestrator {
	return &Orchestrator{
		docs:       docs,
		cacheStore: cacheStore,
		fetcher:    pools.NewFetcher(docs, cfg.TrendingWindowDays, cfg.FreshWindowDays),
		ranker:     ranker,
		planner:    planner,
		progress:   progressStore,
		sink:       sink,
		cfg:        cfg,
	}
}

// FeedRequest is the input to GetFeed.
type FeedRequest struct {
	UserID           string
	Page             int
	PageSize         int
	OverrideGenre    string
	OverrideLanguage string
	Region           string
}

func (r *FeedRequest) normalize(cfg Config) {
	if r.Page <= 0 {
		r.Page = 1
	}
	if r.PageSize <= 0 {
		r.PageSize = cfg.DefaultPageSize
	}
	if r.PageSize > cfg.MaxPageSize {
		r.PageSize = cfg.MaxPageSize
	}
}

func filtersHash(req FeedRequest) string {
	raw := fmt.Sprintf("%d:%d:%s:%s:%s", req.Page, req.PageSize, req.OverrideGenre, req.OverrideLanguage, req.Region)
	sum := sha1.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// GetFeed runs the full feed algorithm: cache-aside lookup, concurrent
// candidate pool fan-out, ranking and diversification, prefetch
// planning, cache-set with tags, and a fire-and-forget content_view
// analytics event.
func (o *Orchestrator) GetFeed(ctx context.Context, req FeedRequest) (*models.FeedPage, error) {
	started := time.Now()
	req.normalize(o.cfg)
	key := cache.FeedKey(req.UserID, filtersHash(req))

	var page models.FeedPage
	if err := o.cacheStore.Get(ctx, key, &page); err == nil {
		metrics.CacheHits.WithLabelValues("feed").Inc()
		metrics.ObserveFeedRequest("hit", started)
		return &page, nil
	}
	metrics.CacheMisses.WithLabelValues("feed").Inc()

	user, err := o.docs.GetUser(ctx, req.UserID)
	var prefs models.Preferences
	if err != nil {
		if apperr.KindOf(err) != apperr.NotFound {
			return nil, err
		}
		user = &models.User{UserID: req.UserID}
	}
	prefs = user.EffectivePreferences(req.OverrideGenre, req.OverrideLanguage)

	poolResults := o.fetcher.Fetch(ctx, pools.Request{
		UserID:      req.UserID,
		Preferences: prefs,
		Region:      req.Region,
		PerPoolSize: o.cfg.PerPoolSize,
	})

	ranked := ranking.Dedup(toRankingPools(poolResults))
	ranked = o.ranker.Rank(time.Now().Unix(), ranked, prefs)

	pageCandidates, hasMore := ranking.Paginate(ranked, req.Page, req.PageSize)
	cards, err := o.ranker.AttachFirstEpisodes(ctx, pageCandidates)
	if err != nil {
		return nil, err
	}

	o.attachPrefetchPlans(ctx, req.UserID, cards, user.Preferences.DataUsage)

	result := models.FeedPage{
		Cards:      cards,
		Page:       req.Page,
		PageSize:   req.PageSize,
		TotalCount: len(ranked),
		HasMore:    hasMore,
	}

	_ = o.cacheStore.SetWithTags(ctx, key, result, o.cfg.FeedCacheTTL, cache.TagFeed, cache.TagUser(req.UserID))

	o.sink.Track(ctx, analytics.Event{
		Type:   analytics.TopicContentView,
		UserID: req.UserID,
		Data: map[string]interface{}{
			"page":     req.Page,
			"pageSize": req.PageSize,
			"count":    len(cards),
		},
		Timestamp: time.Now(),
	})

	metrics.ObserveFeedRequest("miss", started)
	return &result, nil
}

func (o *Orchestrator) attachPrefetchPlans(ctx context.Context, userID string, cards []models.Card, dataUsage models.DataUsage) {
	for i := range cards {
		c := &cards[i]
		plan, err := o.planForCard(ctx, userID, c.Title.ID, dataUsage)
		if err != nil {
			continue
		}
		c.Prefetch = plan
	}
}

// planForCard builds a Card's PrefetchPlan, cache-aside at two layers:
// the title-level episode/URL/size plan (shared across every viewer,
// under PrefetchEpisodePlanKey) and, when userID is known, a
// progress-overlaid copy of it (under PrefetchPlanKey, tagged with
// both the user and the title so either invalidates it).
func (o *Orchestrator) planForCard(ctx context.Context, userID, titleID string, dataUsage models.DataUsage) (*models.PrefetchPlan, error) {
	episodeKey := cache.PrefetchEpisodePlanKey(titleID)
	var basePlan models.PrefetchPlan
	if err := o.cacheStore.Get(ctx, episodeKey, &basePlan); err == nil {
		recordCacheLookup("prefetch_episode", true)
	} else {
		recordCacheLookup("prefetch_episode", false)
		k := 0
		if _, avg, err := o.docs.CountRecentSessions(ctx, userID, titleID); err == nil && avg > 0 {
			k = prefetch.SmartK(avg)
		}
		plan, err := o.planner.Plan(ctx, titleID, models.Ordinal{}, dataUsage, k)
		if err != nil {
			return nil, err
		}
		basePlan = *plan
		_ = o.cacheStore.SetWithTags(ctx, episodeKey, basePlan, cache.PrefetchEpisodeTTL, cache.TagTitle(titleID))
	}

	if userID == "" {
		return &basePlan, nil
	}

	userKey := cache.PrefetchPlanKey(userID, titleID)
	var overlaid models.PrefetchPlan
	if err := o.cacheStore.Get(ctx, userKey, &overlaid); err == nil {
		recordCacheLookup("prefetch_user", true)
		return &overlaid, nil
	}
	recordCacheLookup("prefetch_user", false)

	overlaid = basePlan
	overlaid.Episodes = append([]models.PrefetchEpisode(nil), basePlan.Episodes...)
	if err := o.planner.Overlay(ctx, userID, titleID, &overlaid); err != nil {
		return &basePlan, nil
	}
	_ = o.cacheStore.SetWithTags(ctx, userKey, overlaid, cache.PrefetchUserTTL, cache.TagUser(userID), cache.TagTitle(titleID))
	return &overlaid, nil
}

func recordCacheLookup(namespace string, hit bool) {
	if hit {
		metrics.CacheHits.WithLabelValues(namespace).Inc()
		return
	}
	metrics.CacheMisses.WithLabelValues(namespace).Inc()
}

func toRankingPools(results []pools.Result) []ranking.PoolResult {
	out := make([]ranking.PoolResult, len(results))
	for i, r := range results {
		out[i] = ranking.PoolResult{Source: r.Source, Titles: r.Titles}
	}
	return out
}

// GetTrending returns the top trending titles as Cards, cached under a
// single shared key (not per-user, since trending is global).
func (o *Orchestrator) GetTrending(ctx context.Context, limit int) ([]models.Card, error) {
	key := cache.TrendingKey("default")
	var cards []models.Card
	if err := o.cacheStore.Get(ctx, key, &cards); err == nil {
		recordCacheLookup("trending", true)
		return cards, nil
	}
	recordCacheLookup("trending", false)
	titles, err := o.docs.ListTrendingTitles(ctx, o.cfg.TrendingWindowDays, limit)
	if err != nil {
		return nil, err
	}
	cards, err = o.cardsFrom(ctx, titles, models.FeedSourceTrending)
	if err != nil {
		return nil, err
	}
	_ = o.cacheStore.SetWithTags(ctx, key, cards, cache.ShortTTL, cache.TagFeed)
	return cards, nil
}

// GetFeatured returns curated featured titles.
func (o *Orchestrator) GetFeatured(ctx context.Context, limit int) ([]models.Card, error) {
	key := cache.FeaturedKey()
	var cards []models.Card
	if err := o.cacheStore.Get(ctx, key, &cards); err == nil {
		recordCacheLookup("featured", true)
		return cards, nil
	}
	recordCacheLookup("featured", false)
	titles, err := o.docs.ListFeaturedTitles(ctx, limit)
	if err != nil {
		return nil, err
	}
	cards, err = o.cardsFrom(ctx, titles, models.FeedSourcePersonalized)
	if err != nil {
		return nil, err
	}
	_ = o.cacheStore.SetWithTags(ctx, key, cards, cache.MediumTTL, cache.TagFeed)
	return cards, nil
}

// GetEditorsPicks returns editor's-pick titles.
func (o *Orchestrator) GetEditorsPicks(ctx context.Context, limit int) ([]models.Card, error) {
	key := cache.EditorsPicksKey()
	var cards []models.Card
	if err := o.cacheStore.Get(ctx, key, &cards); err == nil {
		recordCacheLookup("editors_picks", true)
		return cards, nil
	}
	recordCacheLookup("editors_picks", false)
	titles, err := o.docs.ListEditorsPicks(ctx, limit)
	if err != nil {
		return nil, err
	}
	cards, err = o.cardsFrom(ctx, titles, models.FeedSourcePersonalized)
	if err != nil {
		return nil, err
	}
	_ = o.cacheStore.SetWithTags(ctx, key, cards, cache.MediumTTL, cache.TagFeed)
	return cards, nil
}

// GetPopularByGenre returns titles popular within a single genre.
func (o *Orchestrator) GetPopularByGenre(ctx context.Context, genre string, limit int) ([]models.Card, error) {
	key := cache.PopularByGenreKey(genre)
	var cards []models.Card
	if err := o.cacheStore.Get(ctx, key, &cards); err == nil {
		recordCacheLookup("popular_by_genre", true)
		return cards, nil
	}
	recordCacheLookup("popular_by_genre", false)
	titles, err := o.docs.ListPopularTitles(ctx, store.TitleFilter{Genres: []string{genre}, Limit: limit})
	if err != nil {
		return nil, err
	}
	cards, err = o.cardsFrom(ctx, titles, models.FeedSourcePopular)
	if err != nil {
		return nil, err
	}
	_ = o.cacheStore.SetWithTags(ctx, key, cards, cache.MediumTTL, cache.TagFeed)
	return cards, nil
}

// GetContinueWatching returns the user's in-progress titles as Cards
// whose FirstEpisode is the episode the user is partway through (the
// WatchRecord's own episode), not the title's canonical first episode.
func (o *Orchestrator) GetContinueWatching(ctx context.Context, userID string, limit int) ([]models.Card, error) {
	key := cache.ContinueWatchingKey(userID)
	var cards []models.Card
	if err := o.cacheStore.Get(ctx, key, &cards); err == nil {
		recordCacheLookup("continue_watching", true)
		return cards, nil
	}
	recordCacheLookup("continue_watching", false)

	records, err := o.progress.GetContinueWatching(ctx, userID, o.cfg.ContinueWatchingMin, o.cfg.ContinueWatchingMax, limit)
	if err != nil {
		return nil, err
	}

	cards = make([]models.Card, 0, len(records))
	for _, rec := range records {
		title, err := o.docs.GetTitle(ctx, rec.TitleID)
		if err != nil {
			continue
		}
		episode, err := o.docs.GetEpisode(ctx, rec.EpisodeID)
		if err != nil {
			continue
		}
		cards = append(cards, models.Card{
			Title:        title,
			FirstEpisode: episode,
			FeedSource:   models.FeedSourcePersonalized,
		})
	}
	_ = o.cacheStore.SetWithTags(ctx, key, cards, cache.ShortTTL, cache.TagUser(userID))
	return cards, nil
}

// GetSimilar returns titles similar to titleID, scored only by genre
// and language overlap since no separate similarity index exists.
func (o *Orchestrator) GetSimilar(ctx context.Context, titleID string, limit int) ([]models.Card, error) {
	key := cache.SimilarKey(titleID)
	var cards []models.Card
	if err := o.cacheStore.Get(ctx, key, &cards); err == nil {
		recordCacheLookup("similar", true)
		return cards, nil
	}
	recordCacheLookup("similar", false)

	seed, err := o.docs.GetTitle(ctx, titleID)
	if err != nil {
		return nil, err
	}
	candidates, err := o.docs.ListPublishedTitles(ctx, store.TitleFilter{
		Genres:     seed.Genres,
		ExcludeIDs: []string{titleID},
		Limit:      limit * 3,
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return overlapScore(seed, candidates[i]) > overlapScore(seed, candidates[j])
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	cards, err = o.cardsFrom(ctx, candidates, models.FeedSourcePersonalized)
	if err != nil {
		return nil, err
	}
	_ = o.cacheStore.SetWithTags(ctx, key, cards, cache.MediumTTL, cache.TagTitle(titleID))
	return cards, nil
}

func overlapScore(seed, candidate *models.Title) int {
	score := 0
	if candidate.HasGenreOverlap(seed.Genres) {
		score++
	}
	if candidate.HasLanguageOverlap(seed.Languages) {
		score++
	}
	return score
}

// Search finds titles matching query and records a fire-and-forget
// search analytics event.
func (o *Orchestrator) Search(ctx context.Context, userID, query string, page, pageSize int) (*models.FeedPage, error) {
	if pageSize <= 0 || pageSize > o.cfg.MaxPageSize {
		pageSize = o.cfg.DefaultPageSize
	}
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize

	sum := sha1.Sum([]byte(query))
	key := cache.SearchKey(hex.EncodeToString(sum[:]) + fmt.Sprintf(":%d:%d", page, pageSize))

	var result models.FeedPage
	if err := o.cacheStore.Get(ctx, key, &result); err == nil {
		recordCacheLookup("search", true)
		o.trackSearch(ctx, userID, query, len(result.Cards))
		return &result, nil
	}
	recordCacheLookup("search", false)

	titles, err := o.docs.SearchTitles(ctx, query, pageSize+1, offset)
	if err != nil {
		return nil, err
	}
	hasMore := len(titles) > pageSize
	if hasMore {
		titles = titles[:pageSize]
	}
	cards, err := o.cardsFrom(ctx, titles, models.FeedSourcePersonalized)
	if err != nil {
		return nil, err
	}

	result = models.FeedPage{Cards: cards, Page: page, PageSize: pageSize, HasMore: hasMore, TotalCount: len(cards)}
	_ = o.cacheStore.SetWithTags(ctx, key, result, cache.ShortTTL, cache.TagFeed)
	o.trackSearch(ctx, userID, query, len(cards))
	return &result, nil
}

func (o *Orchestrator) trackSearch(ctx context.Context, userID, query string, resultCount int) {
	o.sink.Track(ctx, analytics.Event{
		Type:      analytics.TopicSearch,
		UserID:    userID,
		Data:      map[string]interface{}{"query": query, "resultCount": resultCount},
		Timestamp: time.Now(),
	})
}

func (o *Orchestrator) cardsFrom(ctx context.Context, titles []*models.Title, source models.FeedSource) ([]models.Card, error) {
	cards := make([]models.Card, 0, len(titles))
	for _, t := range titles {
		ep, err := o.docs.GetFirstEpisode(ctx, t.ID)
		if err != nil {
			continue
		}
		cards = append(cards, models.Card{Title: t, FirstEpisode: ep, FeedSource: source})
	}
	return cards, nil
}

// StartWatching begins a viewing session for (userID, episodeID).
func (o *Orchestrator) StartWatching(ctx context.Context, userID, episodeID, watchedVia string) (*models.WatchRecord, error) {
	episode, err := o.docs.GetEpisode(ctx, episodeID)
	if err != nil {
		return nil, err
	}
	record, err := o.progress.StartWatching(ctx, userID, episode, watchedVia, time.Now())
	if err != nil {
		return nil, err
	}
	_ = o.cacheStore.InvalidateByTags(ctx, cache.TagUser(userID), cache.TagTitle(episode.TitleID))
	return record, nil
}

// UpdateProgress advances (userID, episodeID)'s playback position.
func (o *Orchestrator) UpdateProgress(ctx context.Context, userID, episodeID string, position int, watchedVia string) (*models.WatchRecord, error) {
	episode, err := o.docs.GetEpisode(ctx, episodeID)
	if err != nil {
		return nil, err
	}
	record, justCompleted, err := o.progress.UpsertProgress(ctx, userID, episode, position, watchedVia, time.Now())
	if err != nil {
		return nil, err
	}
	if justCompleted {
		o.sink.Track(ctx, analytics.Event{
			Type:      analytics.TopicEngagement,
			UserID:    userID,
			Data:      map[string]interface{}{"episodeId": episodeID, "event": "completed"},
			Timestamp: time.Now(),
		})
		_ = o.cacheStore.InvalidateByTags(ctx, cache.TagTitle(episode.TitleID))
	}
	_ = o.cacheStore.InvalidateByTags(ctx, cache.TagUser(userID))
	return record, nil
}

// ToggleLike flips a user's like on an episode's WatchRecord.
func (o *Orchestrator) ToggleLike(ctx context.Context, userID, episodeID string) (bool, error) {
	episode, err := o.docs.GetEpisode(ctx, episodeID)
	if err != nil {
		return false, err
	}
	liked, err := o.progress.ToggleLike(ctx, userID, episodeID)
	if err != nil {
		return false, err
	}
	_ = o.cacheStore.InvalidateByTags(ctx, cache.TagTitle(episode.TitleID))
	return liked, nil
}

// Rate applies a 1-5 rating to userID's WatchRecord on any episode of
// episodeID's title.
func (o *Orchestrator) Rate(ctx context.Context, userID, episodeID string, rating int) error {
	episode, err := o.docs.GetEpisode(ctx, episodeID)
	if err != nil {
		return err
	}
	if err := o.progress.SetRating(ctx, userID, episode.TitleID, rating); err != nil {
		return err
	}
	_ = o.cacheStore.InvalidateByTags(ctx, cache.TagUser(userID), cache.TagTitle(episode.TitleID))
	return nil
}

// AddEngagement folds session-interaction counters (pause/seek/buffering
// events, elapsed session time) into a user's WatchRecord for episodeID.
func (o *Orchestrator) AddEngagement(ctx context.Context, userID, episodeID string, sessionDuration, pauseCount, seekCount, bufferingTime int) error {
	delta := models.EpisodeEngagement{
		SessionDuration: sessionDuration,
		PauseCount:      pauseCount,
		SeekCount:       seekCount,
		BufferingTime:   bufferingTime,
	}
	return o.progress.AddEngagement(ctx, userID, episodeID, delta)
}

// ToggleShare flips a user's share flag on an episode's WatchRecord.
func (o *Orchestrator) ToggleShare(ctx context.Context, userID, episodeID string) error {
	episode, err := o.docs.GetEpisode(ctx, episodeID)
	if err != nil {
		return err
	}
	if err := o.progress.ToggleShare(ctx, userID, episodeID); err != nil {
		return err
	}
	_ = o.cacheStore.InvalidateByTags(ctx, cache.TagTitle(episode.TitleID))
	return nil
}

// ClearHistory deletes all of a user's WatchRecords and invalidates
// their cached continue-watching and feed pages.
func (o *Orchestrator) ClearHistory(ctx context.Context, userID string) error {
	if err := o.progress.ClearHistory(ctx, userID); err != nil {
		return err
	}
	_ = o.cacheStore.InvalidateByTags(ctx, cache.TagUser(userID))
	return nil
}
