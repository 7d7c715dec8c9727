package recommendation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/coursemate-backend/internal/catalog"
	"github.com/dustin/coursemate-backend/internal/utils"
	"github.com/dustin/coursemate-backend/pkg/logger"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Handler handles HTTP requests for recommendation operations
type Handler struct {
	service Service
	logger  *logger.Logger
}

// NewHandler creates a new recommendation handler
func NewHandler(service Service, log *logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  log.WithComponent("recommendation-handler"),
	}
}

type listQuery struct {
	Limit    int    `form:"limit,default=10" binding:"min=1,max=50"`
	Language string `form:"language"`
	SafeMode bool   `form:"safe_mode"`
	Exclude  string `form:"exclude"`
}

func (q listQuery) filters() (Filters, error) {
	ids, err := utils.ParseIDs(q.Exclude)
	if err != nil {
		return Filters{}, fmt.Errorf("%w: %v", ErrMalformedQuery, err)
	}
	return Filters{Languages: utils.SplitList(q.Language), SafeMode: q.SafeMode, Exclude: ids}, nil
}

type seedQuery struct {
	listQuery
	CourseID *int64 `form:"course_id"`
	MovieID  *int64 `form:"movie_id"`
	ItemID   *int64 `form:"item_id"`
}

func (q seedQuery) id() (int64, bool) {
	for _, id := range []*int64{q.ItemID, q.CourseID, q.MovieID} {
		if id != nil {
			return *id, true
		}
	}
	return 0, false
}

type searchQuery struct {
	Query string `form:"query"`
	Q     string `form:"q"`
	Limit int    `form:"limit,default=10" binding:"min=1,max=50"`
}

// stringList accepts either a JSON string or a list of strings
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*l = utils.SplitList(one)
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*l = many
	return nil
}

type profileRequest struct {
	Mood       string     `json:"mood"`
	Interests  []string   `json:"interests"`
	Age        *int       `json:"age" binding:"omitempty,min=0,max=150"`
	Budget     string     `json:"budget" binding:"omitempty,oneof=free paid any"`
	SkillLevel string     `json:"skill_level"`
	Liked      []int64    `json:"liked"`
	Disliked   []int64    `json:"disliked"`
	Watchlist  []int64    `json:"watchlist"`
	Language   stringList `json:"language"`
	SafeMode   bool       `json:"safe_mode"`
	Limit      int        `json:"limit" binding:"omitempty,min=1,max=50"`
}

func (r profileRequest) profile() Profile {
	return Profile{
		Mood:       r.Mood,
		Interests:  r.Interests,
		Age:        r.Age,
		Budget:     r.Budget,
		SkillLevel: r.SkillLevel,
		Liked:      r.Liked,
		Disliked:   r.Disliked,
		Watchlist:  r.Watchlist,
		Languages:  r.Language,
		SafeMode:   r.SafeMode,
		Limit:      r.Limit,
	}
}

// Search handles free-text title search
func (h *Handler) Search(c *gin.Context) {
	var q searchQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.fail(c, fmt.Errorf("%w: %v", ErrMalformedQuery, err))
		return
	}
	query := q.Query
	if strings.TrimSpace(query) == "" {
		query = q.Q
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	res, err := h.service.ByQuery(ctx, query, q.Limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.respond(c, ctx, res)
}

// GetSimilar handles item-to-item recommendations. An unknown seed id is
// answered with a random sample flagged as such.
func (h *Handler) GetSimilar(c *gin.Context) {
	var q seedQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.fail(c, fmt.Errorf("%w: %v", ErrMalformedQuery, err))
		return
	}
	id, ok := q.id()
	if !ok {
		h.fail(c, fmt.Errorf("%w: one of item_id, course_id or movie_id is required", ErrMalformedQuery))
		return
	}
	filters, err := q.filters()
	if err != nil {
		h.fail(c, err)
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	res, err := h.service.BySeed(ctx, SeedRequest{ID: id, Limit: q.Limit, Filters: filters})
	if errors.Is(err, catalog.ErrNotFound) {
		h.logger.Info("Seed item " + strconv.FormatInt(id, 10) + " not in catalog, serving random sample")
		res, err = h.service.RandomSample(ctx, ListRequest{Limit: q.Limit, Filters: filters})
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	h.respond(c, ctx, res)
}

// GetForProfile handles mood and preference based recommendations
func (h *Handler) GetForProfile(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, fmt.Errorf("%w: %v", ErrMalformedQuery, err))
		return
	}
	if subject, err := utils.GetSubjectFromToken(c); err == nil {
		h.logger.Debug("Profile recommendations for " + subject)
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	res, err := h.service.ByProfile(ctx, req.profile())
	if err != nil {
		h.fail(c, err)
		return
	}
	h.respond(c, ctx, res)
}

// GetTrending handles the popularity listing
func (h *Handler) GetTrending(c *gin.Context) {
	h.list(c, h.service.Trending)
}

// GetTopRated handles the rating listing
func (h *Handler) GetTopRated(c *gin.Context) {
	h.list(c, h.service.TopRated)
}

// GetCategories lists catalog categories with their item counts
func (h *Handler) GetCategories(c *gin.Context) {
	categories := h.service.Categories()
	c.JSON(http.StatusOK, gin.H{
		"categories": categories,
		"count":      len(categories),
	})
}

// GetModelStatus reports catalog and vector availability
func (h *Handler) GetModelStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Status())
}

// RegisterRoutes registers all recommendation routes
func (h *Handler) RegisterRoutes(router gin.IRouter, authMiddleware gin.HandlerFunc) {
	routes := router.Group("")
	if authMiddleware != nil {
		routes.Use(authMiddleware)
	}
	{
		routes.GET("/search", h.Search)
		routes.GET("/recommendations", h.GetSimilar)
		routes.POST("/recommendations/user", h.GetForProfile)
		routes.GET("/trending", h.GetTrending)
		routes.GET("/top-rated", h.GetTopRated)
		routes.GET("/categories", h.GetCategories)
		routes.GET("/model/status", h.GetModelStatus)
	}
}

func (h *Handler) list(c *gin.Context, fetch func(context.Context, ListRequest) (*Result, error)) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.fail(c, fmt.Errorf("%w: %v", ErrMalformedQuery, err))
		return
	}
	filters, err := q.filters()
	if err != nil {
		h.fail(c, err)
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	res, err := fetch(ctx, ListRequest{Limit: q.Limit, Filters: filters})
	if err != nil {
		h.fail(c, err)
		return
	}
	h.respond(c, ctx, res)
}

func (h *Handler) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.service.RequestTimeout())
}

func (h *Handler) respond(c *gin.Context, ctx context.Context, res *Result) {
	items := h.service.Responses(ctx, res)
	c.JSON(http.StatusOK, ListResponse{
		Items:       items,
		Count:       len(items),
		Mode:        res.Mode,
		Fallback:    res.Fallback,
		Degraded:    h.service.Status().Degraded,
		RequestID:   requestID(c),
		GeneratedAt: time.Now().UTC(),
	})
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrMalformedQuery):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		h.logger.WithRequestID(requestID(c)).Warn("Request timed out: " + err.Error())
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Request timed out"})
	default:
		h.logger.WithRequestID(requestID(c)).Error("Request failed: " + err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get recommendations"})
	}
}

func requestID(c *gin.Context) string {
	if id := requestid.Get(c); id != "" {
		return id
	}
	if id, ok := c.Get("request_id"); ok {
		if s, ok := id.(string); ok {
			return s
		}
	}
	id := uuid.NewString()
	c.Set("request_id", id)
	return id
}
