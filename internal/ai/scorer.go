package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/amishk599/jobhound/internal/model"
)

// LLMProvider sends a prompt to an LLM and returns the raw text response.
// *OpenAIProvider and the retry decorator implement it.
type LLMProvider interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// LLMScorer rates stored postings against the candidate profile with an LLM.
type LLMScorer struct {
	provider LLMProvider
	profile  model.Profile
	logger   *slog.Logger
}

// NewLLMScorer creates a scorer backed by provider.
func NewLLMScorer(provider LLMProvider, profile model.Profile, logger *slog.Logger) *LLMScorer {
	return &LLMScorer{
		provider: provider,
		profile:  profile,
		logger:   logger,
	}
}

// Score asks the model for a 0-100 relevance score and a short reasoning.
func (s *LLMScorer) Score(ctx context.Context, p model.StoredPosting) (model.AIScore, error) {
	prompt, err := BuildPrompt(p.Posting, s.profile)
	if err != nil {
		return model.AIScore{}, err
	}

	raw, err := s.provider.Complete(ctx, prompt)
	if err != nil {
		return model.AIScore{}, fmt.Errorf("llm complete: %w", err)
	}

	parsed, err := parseScore(raw)
	if err != nil {
		return model.AIScore{}, fmt.Errorf("parse score for posting %d: %w", p.ID, err)
	}

	s.logger.Debug("posting scored by llm", "id", p.ID, "score", parsed.Score)
	return model.AIScore{
		PostingID: p.ID,
		Score:     parsed.Score,
		Reasoning: parsed.Reasoning,
	}, nil
}

// rawScore is the JSON shape returned by the model (matches postingScoreSchema).
type rawScore struct {
	Score     *float64 `json:"score"`
	Reasoning string   `json:"reasoning"`
}

type scoreResult struct {
	Score     float64
	Reasoning string
}

// parseScore decodes the model output. Providers without structured outputs
// sometimes wrap the object in a markdown fence, so that is stripped first.
func parseScore(raw string) (scoreResult, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var rs rawScore
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &rs); err != nil {
		return scoreResult{}, fmt.Errorf("unmarshal score JSON: %w", err)
	}
	if rs.Score == nil {
		return scoreResult{}, fmt.Errorf("score missing from response")
	}
	if math.IsNaN(*rs.Score) {
		return scoreResult{}, fmt.Errorf("score is not a number")
	}

	return scoreResult{
		Score:     math.Max(0, math.Min(100, *rs.Score)),
		Reasoning: strings.TrimSpace(rs.Reasoning),
	}, nil
}
