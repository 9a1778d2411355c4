package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"githubhotspot/cache"
	"githubhotspot/db"
	"githubhotspot/fetcher"
	"githubhotspot/logger"
	"githubhotspot/models"
	"githubhotspot/ranking"
)

// DBInterface abstracts the database operations needed by the service
// (for testability)
type DBInterface interface {
	StoreRepositories(ctx context.Context, repos []models.Repository) error
	StoreRepository(ctx context.Context, repo models.Repository) error
	GetByFullName(ctx context.Context, fullName string) (*models.Repository, error)
	Search(ctx context.Context, query string, limit int) ([]models.Repository, error)
	FindInWindow(ctx context.Context, language string, cutoff time.Time) ([]models.Repository, error)
	ListRepositories(ctx context.Context) ([]models.Repository, error)
	LastAnalyzed(ctx context.Context) (time.Time, error)
}

// GitHubClientInterface abstracts the GitHub client operations needed by the service
// (for testability)
type GitHubClientInterface interface {
	SearchRecent(ctx context.Context, language string, period models.TimePeriod, limit int) ([]models.Repository, error)
	FetchRepo(ctx context.Context, owner, name string) (*models.Repository, error)
	PopularLanguages() []string
}

// maxFetch is the most repositories a single search may return
const maxFetch = 100

// HotspotService answers trending, search and ranking queries
type HotspotService struct {
	database DBInterface
	client   GitHubClientInterface
	cache    cache.Store
	engine   *ranking.Engine
	cacheTTL time.Duration
	weights  atomic.Pointer[models.WeightConfig]
}

// NewHotspotService wires the request-level operations together
func NewHotspotService(database DBInterface, client GitHubClientInterface, store cache.Store, engine *ranking.Engine, weights models.WeightConfig, cacheTTL time.Duration) *HotspotService {
	if store == nil {
		store = cache.NoopStore{}
	}
	s := &HotspotService{
		database: database,
		client:   client,
		cache:    store,
		engine:   engine,
		cacheTTL: cacheTTL,
	}
	w := weights.WithPolicyDefault()
	s.weights.Store(&w)
	return s
}

// Weights returns the active weight configuration
func (s *HotspotService) Weights() models.WeightConfig {
	return *s.weights.Load()
}

// UpdateWeights installs a new weight configuration for subsequent scoring.
// Weights that do not sum to 1 are normalized first. Not persisted; clears
// the trending cache.
func (s *HotspotService) UpdateWeights(ctx context.Context, w models.WeightConfig) (models.WeightConfig, error) {
	w, err := checkWeights(w)
	if err != nil {
		return models.WeightConfig{}, err
	}

	s.weights.Store(&w)
	if err := s.cache.Clear(ctx); err != nil {
		logger.Warn("Failed to clear trending cache", zap.Error(err))
	}

	logger.Info("Ranking weights updated",
		zap.String("policy", string(w.Policy)),
		zap.Float64("stars", w.Stars),
		zap.Float64("forks", w.Forks))
	return w, nil
}

// resolveWeights picks the per-request override when present
func (s *HotspotService) resolveWeights(override *models.WeightConfig) (models.WeightConfig, error) {
	if override == nil {
		return s.Weights(), nil
	}
	return checkWeights(*override)
}

// checkWeights fills in the policy, rejects negative or all-zero weights
// and normalizes the rest to sum to 1.
func checkWeights(w models.WeightConfig) (models.WeightConfig, error) {
	w = w.WithPolicyDefault()
	if _, err := models.ParseScoringPolicy(string(w.Policy)); err != nil {
		return models.WeightConfig{}, fmt.Errorf("%w: %v", models.ErrInvalidRequest, err)
	}
	for _, v := range []float64{w.Stars, w.Forks, w.Issues, w.Freshness, w.Activity, w.Commits} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return models.WeightConfig{}, fmt.Errorf("%w: weights must be finite and non-negative", models.ErrInvalidRequest)
		}
	}
	if !w.IsValid() {
		if w.Sum() == 0 {
			return models.WeightConfig{}, fmt.Errorf("%w: at least one weight must be positive", models.ErrInvalidRequest)
		}
		logger.Warn("Weights do not sum to 1, normalizing", zap.Float64("sum", w.Sum()))
		w = w.Normalize()
	}
	return w, nil
}

func normalizeRequest(req models.TrendingRequest) models.TrendingRequest {
	params := models.NewPaginationParams(req.Page, req.Limit)
	req.Page = params.Page
	req.Limit = min(params.PageSize, maxFetch)
	req.Language = strings.TrimSpace(req.Language)
	return req
}

// Trending returns one page of freshly ranked repositories for the request,
// served from cache when possible
func (s *HotspotService) Trending(ctx context.Context, req models.TrendingRequest) (*models.TrendingResponse, error) {
	req = normalizeRequest(req)
	weights, err := s.resolveWeights(req.Weights)
	if err != nil {
		return nil, err
	}

	key := cache.TrendingKey(req, weights.Policy)
	if req.Weights == nil {
		var cached models.TrendingResponse
		found, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			logger.Warn("Discarding unreadable cache entry", zap.String("key", key), zap.Error(err))
			_ = s.cache.Remove(ctx, key)
		} else if found {
			logger.Debug("Returning cached trending repositories", zap.String("key", key))
			return &cached, nil
		}
	}

	fetchLimit := min(req.Limit*req.Page, maxFetch)
	ranked, err := fetcher.FetchAndStore(ctx, s.database, s.client, s.engine, weights, req.Language, req.TimePeriod, fetchLimit)
	if err != nil {
		return nil, err
	}

	response := &models.TrendingResponse{
		Repositories: ranking.Paginate(ranked, models.PaginationParams{Page: req.Page, PageSize: req.Limit}),
		TotalCount:   len(ranked),
		Page:         req.Page,
		PageSize:     req.Limit,
		Language:     req.Language,
		TimePeriod:   req.TimePeriod,
		GeneratedAt:  s.engine.Now(),
	}

	// Empty results are not cached so the next request retries GitHub
	if len(ranked) > 0 && req.Weights == nil {
		if err := s.cache.Set(ctx, key, response, s.cacheTTL); err != nil {
			logger.Warn("Failed to cache trending repositories", zap.String("key", key), zap.Error(err))
		}
	}
	return response, nil
}

// Refresh invalidates the cached pages and re-fetches the request's
// language and period from GitHub. It returns the number of repositories stored.
func (s *HotspotService) Refresh(ctx context.Context, req models.TrendingRequest) (int, error) {
	req = normalizeRequest(req)
	weights, err := s.resolveWeights(req.Weights)
	if err != nil {
		return 0, err
	}

	if err := s.cache.Clear(ctx); err != nil {
		logger.Warn("Failed to clear trending cache", zap.Error(err))
	}

	ranked, err := fetcher.FetchAndStore(ctx, s.database, s.client, s.engine, weights, req.Language, req.TimePeriod, req.Limit)
	if err != nil {
		return 0, err
	}
	return len(ranked), nil
}

// InvalidateCache drops every cached trending page
func (s *HotspotService) InvalidateCache(ctx context.Context) {
	if err := s.cache.Clear(ctx); err != nil {
		logger.Warn("Failed to clear trending cache", zap.Error(err))
	}
}

// GetRepository returns a stored repository, falling back to GitHub and
// storing the scored result when it is unknown locally
func (s *HotspotService) GetRepository(ctx context.Context, owner, name string) (*models.Repository, error) {
	owner, name = strings.TrimSpace(owner), strings.TrimSpace(name)
	if owner == "" || name == "" {
		return nil, fmt.Errorf("%w: owner and name are required", models.ErrInvalidRequest)
	}

	repo, err := s.database.GetByFullName(ctx, owner+"/"+name)
	if err == nil {
		return repo, nil
	}
	if !isNotFound(err) {
		return nil, err
	}

	repo, err = s.client.FetchRepo(ctx, owner, name)
	if err != nil {
		return nil, err
	}

	score, scoreErr := s.engine.Score(*repo, s.Weights())
	if scoreErr != nil {
		logger.Warn("Scoring anomaly, repository ranked with zero score",
			zap.String("repo", repo.FullName), zap.Error(scoreErr))
	}
	repo.HotspotScore = score
	repo.LastAnalyzed = s.engine.Now()

	if err := s.database.StoreRepository(ctx, *repo); err != nil {
		logger.Warn("Failed to store fetched repository", zap.String("repo", repo.FullName), zap.Error(err))
	}
	return repo, nil
}

// Search finds stored repositories matching query, highest score first
func (s *HotspotService) Search(ctx context.Context, query string, limit int) ([]models.Repository, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query parameter is required", models.ErrInvalidRequest)
	}
	return s.database.Search(ctx, query, limit)
}

// Top returns the highest-scoring stored repositories for a language and window
func (s *HotspotService) Top(ctx context.Context, language string, period models.TimePeriod, limit int) ([]models.Repository, error) {
	now := s.engine.Now()
	repos, err := s.database.FindInWindow(ctx, language, period.Cutoff(now))
	if err != nil {
		return nil, err
	}
	return ranking.TopRepositories(repos, language, period, limit, now), nil
}

// LanguageStats aggregates every stored repository by language
func (s *HotspotService) LanguageStats(ctx context.Context) ([]models.LanguageStats, error) {
	repos, err := s.database.ListRepositories(ctx)
	if err != nil {
		return nil, err
	}
	return ranking.LanguageStats(repos), nil
}

// Languages lists the languages offered as filters
func (s *HotspotService) Languages() []string {
	return s.client.PopularLanguages()
}

// LastAnalyzed reports when the stored data was last refreshed
func (s *HotspotService) LastAnalyzed(ctx context.Context) (time.Time, error) {
	return s.database.LastAnalyzed(ctx)
}

func isNotFound(err error) bool {
	return errors.Is(err, db.ErrRepositoryNotFound)
}
