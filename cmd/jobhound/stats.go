package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobhound/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show stored posting counts",
	Long:  "Reads the store and prints postings by lifecycle and detail status.",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, logger := mustLoad()
	ctx := context.Background()

	st, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.Path, cfg.Database.DSN)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	stats, err := st.Stats(ctx)
	if err != nil {
		logger.Error("failed to read stats", "error", err)
		os.Exit(1)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-20s %s\n", "Status", "Postings")
	fmt.Fprintln(out, strings.Repeat("─", 30))
	for _, row := range []struct {
		label string
		n     int
	}{
		{"new", stats.New},
		{"scored", stats.Scored},
		{"notified", stats.Notified},
		{"detail pending", stats.Pending},
		{"detail failed", stats.Failed},
	} {
		fmt.Fprintf(out, "%-20s %d\n", row.label, row.n)
	}
	fmt.Fprintf(out, "\nTotal: %d postings\n", stats.Total)
	return nil
}
