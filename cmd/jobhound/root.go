package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobhound/internal/config"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "jobhound",
	Short: "Job radar for Welcome to the Jungle and LinkedIn alerts",
	Long:  "jobhound collects job postings, scores them against your profile, and alerts you to the best matches.",
	// Default to `start` so that `jobhound` with no args runs the daemon.
	RunE:         runStart,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: JOBHOUND_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig resolves the config path, loads the .env files next to it and in
// the working directory, then parses it.
// Priority: --config > JOBHOUND_CONFIG env var > "./config.yaml"
func loadConfig(path string) (*config.Config, error) {
	path = config.ResolvePath(path)
	if err := config.LoadEnv(path); err != nil {
		return nil, err
	}
	return config.Load(path)
}

// mustLoad loads the config and builds the logger from its log level, or
// exits. --debug overrides the configured level.
func mustLoad() (*config.Config, *slog.Logger) {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg, setupLogger(cfg.LogLevel, debug)
}

func setupLogger(level string, dbg bool) *slog.Logger {
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(level)); err != nil {
		logLevel = slog.LevelInfo
	}
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}
