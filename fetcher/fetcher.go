package fetcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/remeh/sizedwaitgroup"
	"go.uber.org/zap"

	"githubhotspot/logger"
	"githubhotspot/models"
	"githubhotspot/ranking"
)

// DBInterface defines the database operations needed by the fetcher
type DBInterface interface {
	StoreRepositories(ctx context.Context, repos []models.Repository) error
}

// GitHubClientInterface defines the GitHub client operations needed by the fetcher
type GitHubClientInterface interface {
	SearchRecent(ctx context.Context, language string, period models.TimePeriod, limit int) ([]models.Repository, error)
}

// FetchAndStore searches GitHub for repositories created within period,
// scores and orders them, persists the batch and returns it ranked.
// Scoring anomalies are logged and the affected records kept with score 0.
func FetchAndStore(
	ctx context.Context,
	database DBInterface,
	client GitHubClientInterface,
	engine *ranking.Engine,
	weights models.WeightConfig,
	language string,
	period models.TimePeriod,
	limit int,
) ([]models.Repository, error) {
	if ctx.Err() != nil {
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	}

	repos, err := client.SearchRecent(ctx, language, period, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search repositories (language=%q, period=%s): %w", language, period, err)
	}

	result := engine.RankBatch(repos, weights)
	for _, anomaly := range result.Anomalies {
		logger.Warn("Scoring anomaly, repository ranked with zero score",
			zap.String("repo", anomaly.FullName),
			zap.Error(anomaly))
	}

	if err := database.StoreRepositories(ctx, result.Repositories); err != nil {
		return nil, fmt.Errorf("failed to store repositories: %w", err)
	}

	logger.Info("Fetched and ranked repositories",
		zap.String("language", language),
		zap.String("period", period.String()),
		zap.String("policy", string(weights.Policy)),
		zap.Int("count", len(result.Repositories)),
		zap.Int("anomalies", len(result.Anomalies)))

	return result.Repositories, nil
}

// Target is one language and period combination kept fresh by the Poller.
// An empty Language means any language.
type Target struct {
	Language string
	Period   models.TimePeriod
}

// Targets builds the cross product of languages and periods
func Targets(languages []string, periods []models.TimePeriod) []Target {
	if len(languages) == 0 {
		languages = []string{""}
	}
	targets := make([]Target, 0, len(languages)*len(periods))
	for _, language := range languages {
		for _, period := range periods {
			targets = append(targets, Target{Language: language, Period: period})
		}
	}
	return targets
}

// PollerConfig configures a Poller
type PollerConfig struct {
	Targets          []Target
	Limit            int
	MaxParallelTasks int
	// OnRefresh runs after a pass that stored at least one batch.
	OnRefresh func()
}

// Poller periodically refreshes the stored repositories for every target
type Poller struct {
	database DBInterface
	client   GitHubClientInterface
	engine   *ranking.Engine
	weights  func() models.WeightConfig
	cfg      PollerConfig
}

// NewPoller creates a Poller. weights is read at the start of every pass so
// updated weights apply to the next refresh.
func NewPoller(database DBInterface, client GitHubClientInterface, engine *ranking.Engine, weights func() models.WeightConfig, cfg PollerConfig) *Poller {
	if cfg.MaxParallelTasks < 1 {
		cfg.MaxParallelTasks = 1
	}
	return &Poller{
		database: database,
		client:   client,
		engine:   engine,
		weights:  weights,
		cfg:      cfg,
	}
}

// RunOnce refreshes every target with bounded concurrency and returns the
// joined errors of the targets that failed
func (p *Poller) RunOnce(ctx context.Context) error {
	weights := p.weights()
	swg := sizedwaitgroup.New(p.cfg.MaxParallelTasks)

	var (
		mu     sync.Mutex
		errs   []error
		stored int
	)

	for _, target := range p.cfg.Targets {
		if ctx.Err() != nil {
			break
		}
		swg.Add()
		go func(target Target) {
			defer swg.Done()

			_, err := FetchAndStore(ctx, p.database, p.client, p.engine, weights, target.Language, target.Period, p.cfg.Limit)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			stored++
		}(target)
	}

	swg.Wait()

	if stored > 0 && p.cfg.OnRefresh != nil {
		p.cfg.OnRefresh()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors occurred while refreshing %d of %d targets: %w",
			len(errs), len(p.cfg.Targets), errors.Join(errs...))
	}
	return nil
}

// Run calls RunOnce every interval until ctx is cancelled
func (p *Poller) Run(ctx context.Context, interval time.Duration) {
	logger.Info("Starting repository polling",
		zap.Duration("interval", interval),
		zap.Int("targets", len(p.cfg.Targets)))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Repository polling stopped")
			return
		case <-ticker.C:
			if err := p.RunOnce(ctx); err != nil {
				logger.Error("Error refreshing repositories", zap.Error(err))
			}
		}
	}
}
