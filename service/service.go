package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"githubhotspot/api"
	"githubhotspot/cache"
	"githubhotspot/config"
	"githubhotspot/db"
	"githubhotspot/fetcher"
	"githubhotspot/github"
	"githubhotspot/logger"
	"githubhotspot/models"
	"githubhotspot/ranking"
)

// Service errors
var (
	ErrServiceInit     = fmt.Errorf("service initialization error")
	ErrServiceShutdown = fmt.Errorf("service shutdown error")
	ErrInvalidRequest  = models.ErrInvalidRequest
)

const shutdownTimeout = 15 * time.Second

// Service represents the main application service
type Service struct {
	config   *config.Config
	database *db.DB
	client   *github.Client
	cache    cache.Store
	hotspot  *HotspotService
	poller   *fetcher.Poller
	server   *http.Server
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewService connects every collaborator described by cfg
func NewService(cfg *config.Config) (*Service, error) {
	database, err := db.New(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to initialize database: %v", ErrServiceInit, err)
	}

	if err := database.Migrate(); err != nil {
		database.Close()
		return nil, fmt.Errorf("%w: failed to migrate database: %v", ErrServiceInit, err)
	}

	store, err := cache.New(cfg.Cache)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("%w: failed to initialize cache: %v", ErrServiceInit, err)
	}

	client := github.NewClient(cfg.GitHubToken, cfg.SearchRatePerMinute)
	engine := ranking.NewEngine(nil)
	hotspot := NewHotspotService(database, client, store, engine, cfg.Ranking, cfg.Cache.TTL)

	if cfg.WeightsNormalized {
		logger.Warn("Configured ranking weights did not sum to 1 and were normalized",
			zap.String("policy", string(cfg.Ranking.Policy)))
	}

	poller := fetcher.NewPoller(database, client, engine, hotspot.Weights, fetcher.PollerConfig{
		Targets:          fetcher.Targets(cfg.WatchLanguages, cfg.WatchPeriods),
		Limit:            cfg.FetchLimit,
		MaxParallelTasks: cfg.MaxParallelTasks,
		OnRefresh:        func() { hotspot.InvalidateCache(context.Background()) },
	})

	ctx, cancel := context.WithCancel(context.Background())

	logger.Info("Service initialized successfully",
		zap.Int("poll_interval", cfg.PollInterval),
		zap.Strings("watch_languages", cfg.WatchLanguages),
		zap.String("policy", string(cfg.Ranking.Policy)),
		zap.String("cache_backend", cfg.Cache.Backend))

	return &Service{
		config:   cfg,
		database: database,
		client:   client,
		cache:    store,
		hotspot:  hotspot,
		poller:   poller,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Hotspot exposes the request-level operations
func (s *Service) Hotspot() *HotspotService {
	return s.hotspot
}

// Database exposes the underlying store for one-shot commands
func (s *Service) Database() *db.DB {
	return s.database
}

// Poller exposes the background refresher for one-shot commands
func (s *Service) Poller() *fetcher.Poller {
	return s.poller
}

// Start runs the initial refresh, the poller, the HTTP server and the config
// watcher, then blocks until an interrupt signal arrives
func (s *Service) Start() error {
	if err := s.processInitial(); err != nil {
		logger.Warn("Error during initial refresh", zap.Error(err))
		// Continue despite initial processing error
	}

	go s.poller.Run(s.ctx, time.Duration(s.config.PollInterval)*time.Second)
	go s.watchConfig()

	if err := s.startServer(); err != nil {
		return err
	}

	s.waitForShutdown()
	return nil
}

// processInitial refreshes every target unless the stored data is newer
// than one poll interval
func (s *Service) processInitial() error {
	if s.ctx.Err() != nil {
		return fmt.Errorf("service context cancelled: %w", s.ctx.Err())
	}

	last, err := s.hotspot.LastAnalyzed(s.ctx)
	switch {
	case err == nil && time.Since(last) < time.Duration(s.config.PollInterval)*time.Second:
		logger.Info("Stored data is fresh, skipping initial refresh", zap.Time("last_analyzed", last))
		return nil
	case err != nil && !errors.Is(err, db.ErrNoRepositories):
		logger.Warn("Could not determine last analysis time", zap.Error(err))
	}

	logger.Info("Processing initial refresh")
	return s.poller.RunOnce(s.ctx)
}

func (s *Service) startServer() error {
	router := api.NewRouter(s.hotspot, api.RouterConfig{
		AllowedOrigins: s.config.CORSAllowedOrigins,
		Ping:           s.database.Ping,
		Count:          s.database.CountRepositories,
	})
	s.server = &http.Server{
		Addr:              ":" + s.config.ListenPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening", zap.String("port", s.config.ListenPort))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Error while running server", zap.Error(err))
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("%w: failed to start server: %v", ErrServiceInit, err)
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

// watchConfig applies a changed log level and ranking weights whenever the
// config file changes
func (s *Service) watchConfig() {
	if _, err := os.Stat(s.config.ConfigFile); err != nil {
		logger.Debug("No config file to watch", zap.String("path", s.config.ConfigFile))
		return
	}
	err := config.Watch(s.ctx, s.config.ConfigFile, func(cfg *config.Config) {
		if err := logger.SetLevel(cfg.LogLevel); err != nil {
			logger.Warn("Ignoring reloaded log level", zap.Error(err))
		}
		if cfg.Ranking == s.hotspot.Weights() {
			return
		}
		if _, err := s.hotspot.UpdateWeights(s.ctx, cfg.Ranking); err != nil {
			logger.Warn("Ignoring reloaded ranking weights", zap.Error(err))
		}
	})
	if err != nil {
		logger.Warn("Config watcher stopped", zap.Error(err))
	}
}

// waitForShutdown waits for the shutdown signal
func (s *Service) waitForShutdown() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown")
	case <-s.ctx.Done():
	}
	s.cancel()
}

// Close performs cleanup operations
func (s *Service) Close() error {
	logger.Info("Closing service")
	s.cancel()

	var errs []error
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("server forced to shutdown: %w", err))
		}
	}
	if err := s.cache.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close cache: %w", err))
	}
	if err := s.database.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close database: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %v", ErrServiceShutdown, errors.Join(errs...))
	}
	return nil
}
