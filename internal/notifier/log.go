package notifier

import (
	"log/slog"

	"github.com/amishk599/jobhound/internal/model"
)

// Ensure LogNotifier implements model.Notifier.
var _ model.Notifier = (*LogNotifier)(nil)

// LogNotifier writes matches to the given logger as structured messages.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a notifier that logs each posting via slog.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs each posting. Returns nil (stdout logging does not fail).
func (n *LogNotifier) Notify(postings []model.StoredPosting) error {
	for _, p := range postings {
		args := []any{
			"id", p.ID,
			"source", p.Source,
			"company", p.Company,
			"title", p.Title,
			"location", p.Location,
			"salary", FormatSalary(p.SalaryMin, p.SalaryMax),
			"score", formatScore(p.FinalScore),
			"url", p.URL,
		}
		if p.AIReasoning != "" {
			args = append(args, "notes", truncate(p.AIReasoning, maxNotesLen))
		}
		n.logger.Info("matching posting", args...)
	}
	return nil
}

// SendMessage logs a plain alert at warn level.
func (n *LogNotifier) SendMessage(text string) error {
	n.logger.Warn("alert", "message", text)
	return nil
}
