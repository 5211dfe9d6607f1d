package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/knockmap/knockmap/internal/config"
	"github.com/knockmap/knockmap/internal/engine"
	"github.com/knockmap/knockmap/internal/logging"
)

var (
	cfgFile  string
	logLevel string
	version  = "dev"
	commit   = "none"
	date     = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "knockmap",
	Short: "knockmap: closer targets and appointment boards",
	Long: `knockmap is the sales dashboard for closer targets, market settings and
the weekly web and field appointment boards.

Run "knockmap serve" for the web dashboard or "knockmap board" for the
terminal board.`,
	SilenceUsage: true,
}

func Execute() {
	rootCmd.Version = fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.knockmap/knockmap.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides the config file")
}

// loadConfig reads the config file and applies the --log-level override.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

// openEngine loads config, sets up file logging and connects to the warehouse.
func openEngine(ctx context.Context) (*engine.Engine, *slog.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.Setup(cfg.Logging.Level, cfg.Logging.Directory)
	if err != nil {
		return nil, nil, err
	}
	eng, err := engine.Open(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return eng, logger, nil
}

// quietEngine is openEngine for commands that own the terminal: logs go to
// stderr only, at warn unless asked otherwise.
func quietEngine(ctx context.Context) (*engine.Engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	level := "warn"
	if logLevel != "" {
		level = logLevel
	}
	return engine.Open(ctx, cfg, logging.New(os.Stderr, level))
}
