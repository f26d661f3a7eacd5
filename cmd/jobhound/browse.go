package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobhound/internal/audit"
	"github.com/amishk599/jobhound/internal/model"
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse stored postings interactively (TUI)",
	Long:  "Shows the source picker TUI, then launches the split-pane postings view.",
	RunE:  runBrowse,
}

func init() {
	rootCmd.AddCommand(browseCmd)
}

func runBrowse(cmd *cobra.Command, args []string) error {
	cfg, _ := mustLoad()
	// Log output before the alt-screen starts corrupts the display.
	silentLogger := slog.New(slog.NewTextHandler(io.Discard, nil))

	a, err := newApp(context.Background(), cfg, silentLogger, appOptions{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	all, err := audit.RunLoader("the store", func(ctx context.Context) ([]model.StoredPosting, error) {
		return a.store.List(ctx, model.ListFilter{})
	})
	if err != nil {
		fmt.Printf("Error loading postings: %v\n", err)
		return nil
	}
	if len(all) == 0 {
		fmt.Println("No stored postings yet. Run `jobhound run` first.")
		return nil
	}

	perSource := make(map[model.Source]int)
	for _, p := range all {
		perSource[p.Source]++
	}
	options := audit.SourceOptions(len(all), perSource)

	opts := audit.Options{KeywordThreshold: cfg.Scoring.KeywordThreshold}
	if a.scorer != nil {
		opts.Score = a.scoreOne
	}

	for {
		choice, err := audit.RunSourcePicker(options)
		if err != nil {
			fmt.Printf("Picker error: %v\n", err)
			return nil
		}
		if choice < 0 {
			return nil
		}

		postings := filterSource(all, options[choice].Source)
		wantQuit, err := audit.RunBrowser(postings, opts)
		if err != nil {
			fmt.Printf("TUI error: %v\n", err)
		}
		if wantQuit {
			return nil
		}
		// else: loop → back to picker
	}
}

// scoreOne AI-scores a single posting and stores the result. It does not
// notify.
func (a *app) scoreOne(ctx context.Context, p model.StoredPosting) (model.StoredPosting, error) {
	s, err := a.scorer.Score(ctx, p)
	if err != nil {
		return p, err
	}
	updated, err := a.store.ApplyScores(ctx, []model.AIScore{s}, a.cfg.Scoring.Weights)
	if err != nil {
		return p, err
	}
	if len(updated) == 0 {
		return p, fmt.Errorf("posting %d no longer stored", p.ID)
	}
	return updated[0], nil
}

func filterSource(postings []model.StoredPosting, source model.Source) []model.StoredPosting {
	if source == "" {
		return postings
	}
	var out []model.StoredPosting
	for _, p := range postings {
		if p.Source == source {
			out = append(out, p)
		}
	}
	return out
}
