package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"githubhotspot/config"
	"githubhotspot/logger"
	"githubhotspot/output"
	"githubhotspot/service"
)

// Set by the linker at build time.
var version = "dev"

var (
	configPath   string
	outputFormat string
	noColor      bool
)

// cfg holds the validated configuration once PersistentPreRunE has run.
var cfg *config.Config

// rootCmd is the command-line entrypoint for all other commands.
var rootCmd = &cobra.Command{
	Use:           "hotspot",
	Short:         "Rank freshly created GitHub repositories by how hot they are.",
	Long:          `Hotspot searches GitHub for recently created repositories, scores them by growth and activity and serves the ranking over HTTP or the command line.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if _, err := output.ParseFormat(outputFormat); err != nil {
			return err
		}

		cfg = config.NewConfig()
		if err := cfg.Load(configPath); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := logger.Initialize(cfg.LogLevel, cfg.LogFormat); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		if noColor {
			color.NoColor = true
		}
		return nil
	},
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigFile, "path to the configuration file")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", string(output.TableOut), "output format: table, json or yaml")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable coloured labels in table output")

	rootCmd.AddCommand(serveCmd, refreshCmd, topCmd, languagesCmd, scoreCmd, weightsCmd, migrateCmd)
}

// outputOptions resolves the persistent output flags.
func outputOptions() output.Options {
	format, _ := output.ParseFormat(outputFormat)
	return output.Options{Format: format, UseColors: !color.NoColor}
}

// withService builds the full service for one-shot commands and closes it afterwards.
func withService(fn func(*service.Service) error) error {
	svc, err := service.NewService(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "error during shutdown: %v\n", err)
		}
	}()
	return fn(svc)
}
