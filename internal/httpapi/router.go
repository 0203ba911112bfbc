package httpapi

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"clipfeed/internal/feed"
)

// RegisterRoutes mounts every feed-domain endpoint from spec.md §6
// onto router, plus /metrics for Prometheus scraping.
func RegisterRoutes(router *gin.Engine, orchestrator *feed.Orchestrator) {
	h := NewHandlers(orchestrator)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/feed", h.GetFeed)
	router.GET("/feed/trending", h.GetTrending)
	router.GET("/feed/featured", h.GetFeatured)
	router.GET("/feed/editors-picks", h.GetEditorsPicks)
	router.GET("/feed/popular", h.GetPopularByGenre)
	router.GET("/feed/continue-watching", h.GetContinueWatching)
	router.GET("/titles/:titleId/similar", h.GetSimilar)
	router.GET("/search", h.Search)

	router.POST("/progress/start", h.StartWatching)
	router.PUT("/progress", h.UpdateProgress)
	router.DELETE("/progress/history", h.ClearHistory)
	router.POST("/episodes/:episodeId/like", h.ToggleLike)
	router.POST("/episodes/:episodeId/rate", h.Rate)
	router.POST("/episodes/:episodeId/share", h.ToggleShare)
}
