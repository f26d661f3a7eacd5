package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobhound/internal/pipeline"
	"github.com/amishk599/jobhound/internal/scheduler"
)

var startWithAPI bool

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the ingestion daemon",
	Long:  "Run an ingestion cycle on the configured schedule; blocks until SIGINT/SIGTERM. With --api the HTTP API is served alongside.",
	RunE:  runStart,
}

func init() {
	startCmd.Flags().BoolVar(&startWithAPI, "api", false, "also serve the HTTP API")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, logger := mustLoad()

	logger.Info("config loaded",
		"schedule", cfg.Schedule,
		"database", cfg.Database.Driver,
		"search_index", cfg.Sources.SearchIndex.Enabled,
		"inbox", cfg.Sources.Inbox.Enabled,
		"notification", cfg.Notification.Type,
		"ai", cfg.AI.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger, appOptions{adapters: true})
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	sched, err := scheduler.New(cfg.Schedule, a.scheduledCycle, logger)
	if err != nil {
		logger.Error("failed to create scheduler", "error", err)
		os.Exit(1)
	}

	apiErr := make(chan error, 1)
	if startWithAPI {
		srv := a.apiServer(ctx)
		go func() {
			apiErr <- srv.ListenAndServe(ctx, cfg.API.Addr())
		}()
	}

	schedErr := make(chan error, 1)
	go func() { schedErr <- sched.Run(ctx) }()

	select {
	case err := <-apiErr:
		// The API failed to bind or crashed; take the daemon down with it.
		stop()
		<-schedErr
		if err != nil {
			logger.Error("api error", "error", err)
			os.Exit(1)
		}
	case err := <-schedErr:
		if err != nil {
			logger.Error("scheduler error", "error", err)
			os.Exit(1)
		}
		if startWithAPI {
			<-apiErr
		}
	}

	logger.Info("goodbye")
	return nil
}

// scheduledCycle runs one ingestion cycle, then an AI scoring pass when AI
// scoring is enabled.
func (a *app) scheduledCycle(ctx context.Context) {
	report, err := a.orchestrator.RunCycle(ctx)
	switch {
	case errors.Is(err, pipeline.ErrCycleInProgress):
		a.logger.Warn("previous cycle still running, skipping")
		return
	case err != nil:
		a.logger.Warn("cycle interrupted", "error", err)
		return
	}
	a.logger.Info("cycle complete", "run_id", report.RunID, "new", report.New, "enriched", report.Enriched, "expired", report.Expired)

	if a.scorer == nil {
		return
	}
	if _, err := a.orchestrator.ScorePending(ctx); err != nil {
		a.logger.Warn("ai scoring pass failed", "error", err)
	}
}
