package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/amishk599/jobhound/internal/model"
)

// ErrNoScorer is returned by ScorePending when AI scoring is not configured.
var ErrNoScorer = errors.New("ai scorer not configured")

// AIScorer rates a stored posting against the candidate profile.
type AIScorer interface {
	Score(ctx context.Context, p model.StoredPosting) (model.AIScore, error)
}

// ApplyReport summarizes one batch of AI scores.
type ApplyReport struct {
	Updated  int
	Notified int
}

// ApplyAIScores stores scores, combines them with the keyword scores, and
// notifies every posting whose final score reaches the AI threshold. A
// posting is marked notified only once its notification was delivered.
func (o *Orchestrator) ApplyAIScores(ctx context.Context, scores []model.AIScore) (ApplyReport, error) {
	if len(scores) == 0 {
		return ApplyReport{}, nil
	}

	updated, err := o.store.ApplyScores(ctx, scores, o.cfg.Weights)
	if err != nil {
		return ApplyReport{}, fmt.Errorf("apply ai scores: %w", err)
	}

	report := ApplyReport{Updated: len(updated)}
	if o.notifier == nil {
		return report, nil
	}

	for _, p := range updated {
		if p.Status == model.StatusNotified || p.FinalScore == nil || *p.FinalScore < o.cfg.AIThreshold {
			continue
		}
		if err := o.notifier.Notify([]model.StoredPosting{p}); err != nil {
			o.logger.Error("failed to notify posting", "id", p.ID, "error", err)
			continue
		}
		if err := o.store.MarkNotified(ctx, p.ID); err != nil {
			o.logger.Error("failed to mark posting notified", "id", p.ID, "error", err)
			continue
		}
		report.Notified++
	}

	o.logger.Info("ai scores applied", "updated", report.Updated, "notified", report.Notified)
	return report, nil
}

// ScorePending scores the next batch of scorable postings with the AI scorer
// and applies the results. Postings the scorer fails on are skipped and stay
// scorable for the next pass.
func (o *Orchestrator) ScorePending(ctx context.Context) (ApplyReport, error) {
	if o.scorer == nil {
		return ApplyReport{}, ErrNoScorer
	}

	batch, err := o.store.GetScorable(ctx, o.cfg.KeywordThreshold, o.cfg.AIBatchSize)
	if err != nil {
		return ApplyReport{}, fmt.Errorf("load scorable postings: %w", err)
	}

	var scores []model.AIScore
	for _, p := range batch {
		if ctx.Err() != nil {
			break
		}
		s, err := o.scorer.Score(ctx, p)
		if err != nil {
			o.logger.Warn("ai scoring failed", "id", p.ID, "title", p.Title, "error", err)
			continue
		}
		scores = append(scores, s)
	}

	o.logger.Info("ai scoring pass", "candidates", len(batch), "scored", len(scores))
	return o.ApplyAIScores(ctx, scores)
}
