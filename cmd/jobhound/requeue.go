package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobhound/internal/model"
	"github.com/amishk599/jobhound/internal/store"
)

var requeueSource string

var requeueCmd = &cobra.Command{
	Use:   "requeue",
	Short: "Move postings whose detail fetch failed back to pending",
	Long:  "Failed detail fetches are never retried automatically. requeue puts them back in the pending queue so the next cycle's top-up pass retries them.",
	RunE:  runRequeue,
}

func init() {
	requeueCmd.Flags().StringVar(&requeueSource, "source", string(model.SourceInbox), "source to requeue (empty for all)")
	rootCmd.AddCommand(requeueCmd)
}

func runRequeue(cmd *cobra.Command, args []string) error {
	cfg, logger := mustLoad()
	ctx := context.Background()

	st, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.Path, cfg.Database.DSN)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	n, err := st.RequeueFailed(ctx, model.Source(requeueSource))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "requeued %d postings\n", n)
	return nil
}
