package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"githubhotspot/logger"
	"githubhotspot/models"
)

const (
	defaultLimit       = 50
	maxLimit           = 100
	defaultSearchLimit = 20
	healthTimeout      = 2 * time.Second
)

type handler struct {
	svc   Service
	ping  func(ctx context.Context) error
	count func(ctx context.Context) (int, error)
}

// RefreshResponse reports how many repositories a refresh stored
type RefreshResponse struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

func (h *handler) trending(c *gin.Context) {
	req, err := trendingRequestFromQuery(c)
	if err != nil {
		abortWithError(c, err)
		return
	}

	resp, err := h.svc.Trending(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handler) top(c *gin.Context) {
	period, err := parsePeriod(c.Query("timePeriod"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	limit, err := intQuery(c, "limit", defaultLimit)
	if err != nil {
		abortWithError(c, err)
		return
	}

	repos, err := h.svc.Top(c.Request.Context(), c.Query("language"), period, min(limit, maxLimit))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, repos)
}

func (h *handler) search(c *gin.Context) {
	query := strings.TrimSpace(c.DefaultQuery("query", c.Query("q")))
	if query == "" {
		abortWithError(c, fmt.Errorf("%w: query parameter is required", models.ErrInvalidRequest))
		return
	}
	limit, err := intQuery(c, "limit", defaultSearchLimit)
	if err != nil {
		abortWithError(c, err)
		return
	}

	repos, err := h.svc.Search(c.Request.Context(), query, min(limit, maxLimit))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, repos)
}

func (h *handler) getRepository(c *gin.Context) {
	repo, err := h.svc.GetRepository(c.Request.Context(), c.Param("owner"), c.Param("name"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, repo)
}

func (h *handler) refresh(c *gin.Context) {
	var req models.TrendingRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		abortWithError(c, fmt.Errorf("%w: %v", models.ErrInvalidRequest, err))
		return
	}
	if req.Limit < 0 || req.Page < 0 {
		abortWithError(c, fmt.Errorf("%w: limit and page must be positive", models.ErrInvalidRequest))
		return
	}

	count, err := h.svc.Refresh(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, RefreshResponse{Message: "Data refreshed successfully", Count: count})
}

func (h *handler) getWeights(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Weights())
}

func (h *handler) updateWeights(c *gin.Context) {
	var w models.WeightConfig
	if err := c.ShouldBindJSON(&w); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", models.ErrInvalidRequest, err))
		return
	}

	updated, err := h.svc.UpdateWeights(c.Request.Context(), w)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *handler) languages(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Languages())
}

func (h *handler) languageStats(c *gin.Context) {
	stats, err := h.svc.LanguageStats(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *handler) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	if h.ping != nil {
		if err := h.ping(ctx); err != nil {
			logger.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}

	body := gin.H{"status": "ok"}
	if h.count != nil {
		n, err := h.count(ctx)
		if err != nil {
			logger.Warn("Health check failed to count repositories", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		body["repositories"] = n
	}
	c.JSON(http.StatusOK, body)
}

func trendingRequestFromQuery(c *gin.Context) (models.TrendingRequest, error) {
	period, err := parsePeriod(c.Query("timePeriod"))
	if err != nil {
		return models.TrendingRequest{}, err
	}
	limit, err := intQuery(c, "limit", defaultLimit)
	if err != nil {
		return models.TrendingRequest{}, err
	}
	page, err := intQuery(c, "page", 1)
	if err != nil {
		return models.TrendingRequest{}, err
	}
	return models.TrendingRequest{
		Language:   strings.TrimSpace(c.Query("language")),
		TimePeriod: period,
		Limit:      min(limit, maxLimit),
		Page:       page,
	}, nil
}

func parsePeriod(raw string) (models.TimePeriod, error) {
	period, err := models.ParseTimePeriod(raw)
	if err != nil {
		return period, fmt.Errorf("%w: %v", models.ErrInvalidRequest, err)
	}
	return period, nil
}

// intQuery reads a positive integer parameter, falling back to def when absent
func intQuery(c *gin.Context, name string, def int) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", models.ErrInvalidRequest, name)
	}
	return n, nil
}

func abortWithError(c *gin.Context, err error) {
	status, body := NewAPIError(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}
