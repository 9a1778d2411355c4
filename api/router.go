// Package api exposes the hotspot service over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"githubhotspot/logger"
	"githubhotspot/models"
)

// RequestIDHeader carries the per-request correlation id
const RequestIDHeader = "X-Request-ID"

// Service is the application surface the handlers call
type Service interface {
	Trending(ctx context.Context, req models.TrendingRequest) (*models.TrendingResponse, error)
	Refresh(ctx context.Context, req models.TrendingRequest) (int, error)
	GetRepository(ctx context.Context, owner, name string) (*models.Repository, error)
	Search(ctx context.Context, query string, limit int) ([]models.Repository, error)
	Top(ctx context.Context, language string, period models.TimePeriod, limit int) ([]models.Repository, error)
	LanguageStats(ctx context.Context) ([]models.LanguageStats, error)
	Languages() []string
	Weights() models.WeightConfig
	UpdateWeights(ctx context.Context, w models.WeightConfig) (models.WeightConfig, error)
}

// RouterConfig holds the HTTP-level settings
type RouterConfig struct {
	AllowedOrigins []string
	// Ping backs the health check when set
	Ping func(ctx context.Context) error
	// Count reports the stored repository total on the health check
	Count func(ctx context.Context) (int, error)
}

// NewRouter builds the gin engine with every route registered
func NewRouter(svc Service, cfg RouterConfig) *gin.Engine {
	router := gin.New()

	corsCfg := cors.Config{
		AllowOrigins:  cfg.AllowedOrigins,
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", RequestIDHeader},
		ExposeHeaders: []string{RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 || (len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*") {
		corsCfg.AllowOrigins = nil
		corsCfg.AllowAllOrigins = true
	}

	router.Use(
		requestID(),
		requestLogger(),
		gin.Recovery(),
		cors.New(corsCfg),
	)

	h := &handler{svc: svc, ping: cfg.Ping, count: cfg.Count}

	router.GET("/healthz", h.health)

	repos := router.Group("/api/repositories")
	{
		repos.GET("/trending", h.trending)
		repos.GET("/top", h.top)
		repos.GET("/search", h.search)
		repos.POST("/refresh", h.refresh)
		repos.GET("/weights", h.getWeights)
		repos.POST("/weights", h.updateWeights)
		repos.GET("/:owner/:name", h.getRepository)
	}

	languages := router.Group("/api/languages")
	{
		languages.GET("", h.languages)
		languages.GET("/stats", h.languageStats)
	}

	return router
}

// requestID propagates the caller's X-Request-ID or assigns a new one
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log := logger.WithContext(
			zap.String("request_id", c.GetString("request_id")),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
		if c.Writer.Status() >= http.StatusInternalServerError {
			log.Error("Request failed", zap.Strings("errors", c.Errors.Errors()))
			return
		}
		log.Info("Request handled")
	}
}
