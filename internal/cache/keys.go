package cache

import "fmt"

// Key namespaces for the feed domain, one Sprintf-formatted constant
// per domain.
const (
	feedKeyFmt          = "feed:%s:%s" // userId:filtersHash
	trendingKeyFmt      = "trending:%s"
	featuredKey         = "featured"
	editorsPicksKey     = "editors_picks"
	popularByGenreFmt   = "popular:genre:%s"
	continueWatchingFmt = "continue_watching:%s" // userId
	similarKeyFmt       = "similar:%s"            // titleId
	searchKeyFmt        = "search:%s"             // queryHash
	prefetchPlanFmt     = "prefetch:%s:%s"        // userId:titleId
	prefetchEpisodeFmt  = "prefetch:episode:%s"   // titleId
)

// FeedKey builds the cache key for a user's feed page under a given
// filter hash (page/pageSize/genre/language combination).
func FeedKey(userID, filtersHash string) string {
	return fmt.Sprintf(feedKeyFmt, userID, filtersHash)
}

// TrendingKey builds the cache key for trending titles in a window.
func TrendingKey(window string) string { return fmt.Sprintf(trendingKeyFmt, window) }

// FeaturedKey is the cache key for featured titles.
func FeaturedKey() string { return featuredKey }

// EditorsPicksKey is the cache key for editor's picks.
func EditorsPicksKey() string { return editorsPicksKey }

// PopularByGenreKey builds the cache key for popular titles in a genre.
func PopularByGenreKey(genre string) string { return fmt.Sprintf(popularByGenreFmt, genre) }

// ContinueWatchingKey builds the cache key for a user's continue-watching list.
func ContinueWatchingKey(userID string) string { return fmt.Sprintf(continueWatchingFmt, userID) }

// SimilarKey builds the cache key for titles similar to titleID.
func SimilarKey(titleID string) string { return fmt.Sprintf(similarKeyFmt, titleID) }

// SearchKey builds the cache key for a search query hash.
func SearchKey(queryHash string) string { return fmt.Sprintf(searchKeyFmt, queryHash) }

// PrefetchPlanKey builds the cache key for a user's progress-overlaid
// prefetch plan on titleID.
func PrefetchPlanKey(userID, titleID string) string {
	return fmt.Sprintf(prefetchPlanFmt, userID, titleID)
}

// PrefetchEpisodePlanKey builds the cache key for the title-level
// prefetch plan (no per-user progress overlay) shared by every viewer
// of titleID.
func PrefetchEpisodePlanKey(titleID string) string {
	return fmt.Sprintf(prefetchEpisodeFmt, titleID)
}

// Tag names used for invalidation. TagUser and TagTitle are
// parameterized; TagFeed is a single shared tag invalidating all
// cached feed pages, since any write can shift any user's ranking.
const (
	tagUserFmt  = "user:%s"
	tagTitleFmt = "title:%s"
	TagFeed     = "feed"
)

// TagUser builds the invalidation tag for a given user's cached entries.
func TagUser(userID string) string { return fmt.Sprintf(tagUserFmt, userID) }

// TagTitle builds the invalidation tag for a given title's cached entries.
func TagTitle(titleID string) string { return fmt.Sprintf(tagTitleFmt, titleID) }
