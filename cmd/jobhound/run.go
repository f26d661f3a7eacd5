package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var runDryRun bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one ingestion cycle and exit",
	Long:  "One-shot cycle: fetches every enabled source, stores and scores new postings, prints a per-source summary, exits. With --dry-run nothing is stored.",
	RunE:  runOnce,
}

func init() {
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "do not write to the store")
	rootCmd.AddCommand(runCmd)
}

func runOnce(cmd *cobra.Command, args []string) error {
	cfg, logger := mustLoad()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger, appOptions{adapters: true, dryRun: runDryRun})
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	report, err := a.orchestrator.RunCycle(ctx)
	if err != nil {
		logger.Error("cycle failed", "error", err)
		os.Exit(1)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n%-14s %-8s %6s %6s %6s  %s\n", "Source", "Status", "Found", "New", "Dup", "Error")
	for _, r := range report.Runs {
		fmt.Fprintf(out, "%-14s %-8s %6d %6d %6d  %s\n", r.Source, r.Status, r.Found, r.New, r.Duplicate, r.ErrorMessage)
	}
	fmt.Fprintf(out, "\nRun %s: %d new, %d enriched, %d expired\n", report.RunID, report.New, report.Enriched, report.Expired)
	return nil
}
