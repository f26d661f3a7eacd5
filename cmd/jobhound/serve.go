package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobhound/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long:  "Serve the scoring API used by external AI scorers. POST /api/trigger-scrape runs an ingestion cycle in the background.",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger := mustLoad()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger, appOptions{adapters: true})
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := a.apiServer(ctx).ListenAndServe(ctx, cfg.API.Addr()); err != nil {
		logger.Error("api error", "error", err)
		os.Exit(1)
	}
	logger.Info("goodbye")
	return nil
}

func (a *app) apiServer(ctx context.Context) *api.Server {
	return api.NewServer(ctx, a.store, a.orchestrator, a.orchestrator, a.profile, api.Config{
		KeywordThreshold: a.cfg.Scoring.KeywordThreshold,
	}, a.logger)
}
