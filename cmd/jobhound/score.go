package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobhound/internal/ai"
	"github.com/amishk599/jobhound/internal/config"
	"github.com/amishk599/jobhound/internal/model"
	"github.com/amishk599/jobhound/internal/scoring"
)

var scoreFlags struct {
	title       string
	company     string
	location    string
	contract    string
	description string
	file        string
	prompt      bool
}

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Keyword-score an ad-hoc posting against the profile",
	Long:  "Scores a posting given on the command line with the keyword scorer. The description can be read from a file, or from stdin with --file -.",
	RunE:  runScore,
}

var scoreAIAll bool

var scoreAICmd = &cobra.Command{
	Use:   "score-ai",
	Short: "Run an AI scoring pass over stored postings",
	Long:  "Scores the next batch of postings above the keyword threshold with the configured LLM and notifies the matches. With --all, batches run until nothing is left.",
	RunE:  runScoreAI,
}

func init() {
	f := scoreCmd.Flags()
	f.StringVar(&scoreFlags.title, "title", "", "posting title (required)")
	f.StringVar(&scoreFlags.company, "company", "", "company name")
	f.StringVar(&scoreFlags.location, "location", "", "posting location")
	f.StringVar(&scoreFlags.contract, "contract", "", "contract type")
	f.StringVar(&scoreFlags.description, "description", "", "posting description")
	f.StringVar(&scoreFlags.file, "file", "", "read the description from this file (- for stdin)")
	f.BoolVar(&scoreFlags.prompt, "prompt", false, "also print the AI scoring prompt")
	_ = scoreCmd.MarkFlagRequired("title")

	scoreAICmd.Flags().BoolVar(&scoreAIAll, "all", false, "keep scoring batches until no posting is left")

	rootCmd.AddCommand(scoreCmd, scoreAICmd)
}

func runScore(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	profile, err := config.LoadProfile(cfg.ProfilePath)
	if err != nil {
		return err
	}

	desc := scoreFlags.description
	if scoreFlags.file != "" {
		desc, err = readDescription(cmd.InOrStdin(), scoreFlags.file)
		if err != nil {
			return err
		}
	}

	p := model.Posting{
		Title:        scoreFlags.title,
		Company:      scoreFlags.company,
		Location:     scoreFlags.location,
		ContractType: scoreFlags.contract,
		Description:  desc,
	}
	score := scoring.Score(p, profile)

	out := cmd.OutOrStdout()
	verdict := "below"
	if score >= cfg.Scoring.KeywordThreshold {
		verdict = "above"
	}
	fmt.Fprintf(out, "keyword score: %.1f (%s threshold %.0f)\n", score, verdict, cfg.Scoring.KeywordThreshold)

	if scoreFlags.prompt {
		prompt, err := ai.BuildPrompt(p, profile)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\n%s\n", prompt)
	}
	return nil
}

func readDescription(stdin io.Reader, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read description: %w", err)
	}
	return string(data), nil
}

func runScoreAI(cmd *cobra.Command, args []string) error {
	cfg, logger := mustLoad()
	if !cfg.AI.Enabled {
		return errors.New("ai scoring is disabled, set ai.enabled: true in the config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger, appOptions{})
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	var total struct{ updated, notified int }
	start := time.Now()
	for {
		report, err := a.orchestrator.ScorePending(ctx)
		if err != nil {
			return err
		}
		total.updated += report.Updated
		total.notified += report.Notified
		if !scoreAIAll || report.Updated == 0 || ctx.Err() != nil {
			break
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "scored %d postings, notified %d (%s)\n",
		total.updated, total.notified, time.Since(start).Round(time.Second))
	return nil
}
