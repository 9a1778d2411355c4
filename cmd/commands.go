package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"githubhotspot/db"
	"githubhotspot/logger"
	"githubhotspot/models"
	"githubhotspot/output"
	"githubhotspot/service"
)

var (
	flagLanguage string
	flagPeriod   string
	flagLimit    int
	flagAll      bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API with the background refresher",
	RunE: func(cmd *cobra.Command, _ []string) error {
		svc, err := service.NewService(cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := svc.Close(); err != nil {
				logger.Error("Error during service shutdown", zap.Error(err))
			}
		}()
		return svc.Start()
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Fetch, score and store repositories once",
	Long: `Refresh one language and period, or every configured watch target with --all.
The trending cache is cleared either way.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		period, err := models.ParseTimePeriod(flagPeriod)
		if err != nil {
			return err
		}

		return withService(func(svc *service.Service) error {
			ctx := cmd.Context()
			if flagAll {
				if err := svc.Poller().RunOnce(ctx); err != nil {
					return err
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "Refreshed every watch target")
				return err
			}

			count, err := svc.Hotspot().Refresh(ctx, models.TrendingRequest{
				Language:   flagLanguage,
				TimePeriod: period,
				Limit:      flagLimit,
			})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Data refreshed successfully: %d repositories\n", count)
			return err
		})
	},
}

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "Show the highest scoring stored repositories",
	RunE: func(cmd *cobra.Command, _ []string) error {
		period, err := models.ParseTimePeriod(flagPeriod)
		if err != nil {
			return err
		}

		return withService(func(svc *service.Service) error {
			limit := models.NewPaginationParams(1, flagLimit).PageSize
			repos, err := svc.Hotspot().Top(cmd.Context(), flagLanguage, period, min(limit, 100))
			if err != nil {
				return err
			}
			return output.WriteRepositories(cmd.OutOrStdout(), repos, outputOptions())
		})
	},
}

var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "Show repository counts and averages per language",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withService(func(svc *service.Service) error {
			stats, err := svc.Hotspot().LanguageStats(cmd.Context())
			if err != nil {
				return err
			}
			return output.WriteLanguageStats(cmd.OutOrStdout(), stats, outputOptions())
		})
	},
}

var scoreCmd = &cobra.Command{
	Use:   "score OWNER/NAME",
	Short: "Score a single repository, fetching it from GitHub when unknown",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, name, ok := strings.Cut(args[0], "/")
		if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
			return fmt.Errorf("expected OWNER/NAME, got %q", args[0])
		}

		return withService(func(svc *service.Service) error {
			repo, err := svc.Hotspot().GetRepository(cmd.Context(), owner, name)
			if err != nil {
				return err
			}
			return output.WriteRepositories(cmd.OutOrStdout(), []models.Repository{*repo}, outputOptions())
		})
	},
}

var weightsCmd = &cobra.Command{
	Use:   "weights",
	Short: "Show the configured ranking weights",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return output.WriteWeights(cmd.OutOrStdout(), cfg.Ranking.WithPolicyDefault(), outputOptions())
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		database, err := db.New(cfg.Database)
		if err != nil {
			return err
		}
		defer database.Close()

		if err := database.Ping(cmd.Context()); err != nil {
			return err
		}
		if err := database.Migrate(); err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), "Database schema is up to date")
		return err
	},
}

func init() {
	for _, c := range []*cobra.Command{refreshCmd, topCmd} {
		c.Flags().StringVarP(&flagLanguage, "language", "l", "", "language filter, empty for any")
		c.Flags().StringVarP(&flagPeriod, "period", "p", "weekly", "time period: daily, weekly or monthly")
		c.Flags().IntVarP(&flagLimit, "limit", "n", 0, "maximum repositories (default 50, max 100)")
	}
	refreshCmd.Flags().BoolVar(&flagAll, "all", false, "refresh every configured watch target")
}
