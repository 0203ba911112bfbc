package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"clipfeed/internal/apperr"
	"clipfeed/internal/feed"
)

// Handlers binds the Feed Orchestrator to Gin routes.
type Handlers struct {
	orchestrator *feed.Orchestrator
	validate     *validator.Validate
}

// NewHandlers builds Handlers over an Orchestrator.
func NewHandlers(orchestrator *feed.Orchestrator) *Handlers {
	return &Handlers{orchestrator: orchestrator, validate: validator.New()}
}

func queryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func requireUserID(c *gin.Context) (string, bool) {
	userID := c.GetHeader("X-User-Id")
	if userID == "" {
		userID = c.Query("userId")
	}
	if userID == "" {
		HandleError(c, apperr.Validationf("userId is required"))
		return "", false
	}
	return userID, true
}

// GetFeed handles GET /feed.
func (h *Handlers) GetFeed(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	req := feed.FeedRequest{
		UserID:           userID,
		Page:             queryInt(c, "page", 1),
		PageSize:         queryInt(c, "pageSize", 20),
		OverrideGenre:    c.Query("genre"),
		OverrideLanguage: c.Query("language"),
		Region:           c.Query("region"),
	}
	page, err := h.orchestrator.GetFeed(c.Request.Context(), req)
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, page)
}

// GetTrending handles GET /feed/trending.
func (h *Handlers) GetTrending(c *gin.Context) {
	cards, err := h.orchestrator.GetTrending(c.Request.Context(), queryInt(c, "limit", 20))
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, cards)
}

// GetFeatured handles GET /feed/featured.
func (h *Handlers) GetFeatured(c *gin.Context) {
	cards, err := h.orchestrator.GetFeatured(c.Request.Context(), queryInt(c, "limit", 20))
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, cards)
}

// GetEditorsPicks handles GET /feed/editors-picks.
func (h *Handlers) GetEditorsPicks(c *gin.Context) {
	cards, err := h.orchestrator.GetEditorsPicks(c.Request.Context(), queryInt(c, "limit", 20))
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, cards)
}

// GetPopularByGenre handles GET /feed/popular.
func (h *Handlers) GetPopularByGenre(c *gin.Context) {
	genre := c.Query("genre")
	if genre == "" {
		HandleError(c, apperr.Validationf("genre is required"))
		return
	}
	cards, err := h.orchestrator.GetPopularByGenre(c.Request.Context(), genre, queryInt(c, "limit", 20))
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, cards)
}

// GetContinueWatching handles GET /feed/continue-watching.
func (h *Handlers) GetContinueWatching(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	cards, err := h.orchestrator.GetContinueWatching(c.Request.Context(), userID, queryInt(c, "limit", 20))
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, cards)
}

// GetSimilar handles GET /titles/:titleId/similar.
func (h *Handlers) GetSimilar(c *gin.Context) {
	titleID := c.Param("titleId")
	cards, err := h.orchestrator.GetSimilar(c.Request.Context(), titleID, queryInt(c, "limit", 10))
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, cards)
}

// Search handles GET /search.
func (h *Handlers) Search(c *gin.Context) {
	userID, _ := requireUserID(c)
	query := c.Query("q")
	if query == "" {
		HandleError(c, apperr.Validationf("q is required"))
		return
	}
	page, err := h.orchestrator.Search(c.Request.Context(), userID, query, queryInt(c, "page", 1), queryInt(c, "pageSize", 20))
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, page)
}

type startWatchingRequest struct {
	EpisodeID  string `json:"episodeId" validate:"required"`
	WatchedVia string `json:"watchedVia" validate:"required"`
}

// StartWatching handles POST /progress/start.
func (h *Handlers) StartWatching(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	var req startWatchingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ValidationErrorResponse(c, err)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		ValidationErrorResponse(c, err)
		return
	}
	record, err := h.orchestrator.StartWatching(c.Request.Context(), userID, req.EpisodeID, req.WatchedVia)
	if err != nil {
		HandleError(c, err)
		return
	}
	CreatedResponse(c, record)
}

type updateProgressRequest struct {
	EpisodeID  string `json:"episodeId" validate:"required"`
	Position   int    `json:"position" validate:"gte=0"`
	WatchedVia string `json:"watchedVia" validate:"required"`

	SessionDuration int `json:"sessionDuration" validate:"gte=0"`
	PauseCount      int `json:"pauseCount" validate:"gte=0"`
	SeekCount       int `json:"seekCount" validate:"gte=0"`
	BufferingTime   int `json:"bufferingTime" validate:"gte=0"`
}

func (r updateProgressRequest) hasEngagement() bool {
	return r.SessionDuration > 0 || r.PauseCount > 0 || r.SeekCount > 0 || r.BufferingTime > 0
}

// UpdateProgress handles PUT /progress.
func (h *Handlers) UpdateProgress(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	var req updateProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ValidationErrorResponse(c, err)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		ValidationErrorResponse(c, err)
		return
	}
	record, err := h.orchestrator.UpdateProgress(c.Request.Context(), userID, req.EpisodeID, req.Position, req.WatchedVia)
	if err != nil {
		HandleError(c, err)
		return
	}
	if req.hasEngagement() {
		if err := h.orchestrator.AddEngagement(c.Request.Context(), userID, req.EpisodeID, req.SessionDuration, req.PauseCount, req.SeekCount, req.BufferingTime); err != nil {
			HandleError(c, err)
			return
		}
	}
	SuccessResponse(c, record)
}

// ToggleLike handles POST /episodes/:episodeId/like.
func (h *Handlers) ToggleLike(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	episodeID := c.Param("episodeId")
	liked, err := h.orchestrator.ToggleLike(c.Request.Context(), userID, episodeID)
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, gin.H{"liked": liked})
}

type rateRequest struct {
	Rating int `json:"rating" validate:"required,min=1,max=5"`
}

// Rate handles POST /episodes/:episodeId/rate.
func (h *Handlers) Rate(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	episodeID := c.Param("episodeId")
	var req rateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ValidationErrorResponse(c, err)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		ValidationErrorResponse(c, err)
		return
	}
	if err := h.orchestrator.Rate(c.Request.Context(), userID, episodeID, req.Rating); err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, gin.H{"rated": true})
}

// ToggleShare handles POST /episodes/:episodeId/share.
func (h *Handlers) ToggleShare(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	episodeID := c.Param("episodeId")
	if err := h.orchestrator.ToggleShare(c.Request.Context(), userID, episodeID); err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, gin.H{"shared": true})
}

// ClearHistory handles DELETE /progress/history.
func (h *Handlers) ClearHistory(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	if err := h.orchestrator.ClearHistory(c.Request.Context(), userID); err != nil {
		HandleError(c, err)
		return
	}
	c.JSON(http.StatusNoContent, nil)
}
