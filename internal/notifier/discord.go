package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/amishk599/jobhound/internal/model"
)

// Ensure DiscordNotifier implements model.Notifier.
var _ model.Notifier = (*DiscordNotifier)(nil)

const defaultEmbedColor = 0x00D166

// DiscordNotifier posts embeds to a Discord channel webhook.
type DiscordNotifier struct {
	webhookURL string
	color      int
	httpClient *http.Client
	logger     *slog.Logger
}

// NewDiscordNotifier returns a notifier that posts one embed per posting.
func NewDiscordNotifier(webhookURL string, httpClient *http.Client, logger *slog.Logger) *DiscordNotifier {
	return &DiscordNotifier{
		webhookURL: webhookURL,
		color:      defaultEmbedColor,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Notify sends each posting as its own webhook call.
// Returns an error only if ALL messages fail.
func (d *DiscordNotifier) Notify(postings []model.StoredPosting) error {
	if len(postings) == 0 {
		return nil
	}

	failures := 0
	for i, p := range postings {
		if i > 0 {
			time.Sleep(500 * time.Millisecond)
		}
		if err := d.post(d.buildPayload(p)); err != nil {
			d.logger.Error("discord notification failed", "company", p.Company, "title", p.Title, "error", err)
			failures++
		}
	}

	if failures == len(postings) {
		return fmt.Errorf("all %d discord notifications failed", failures)
	}
	d.logger.Info("discord notifications complete", "sent", len(postings)-failures, "failed", failures)
	return nil
}

// SendMessage posts a plain content message.
func (d *DiscordNotifier) SendMessage(text string) error {
	return d.post(discordPayload{Content: text})
}

func (d *DiscordNotifier) post(payload discordPayload) error {
	if d.webhookURL == "" {
		return fmt.Errorf("discord webhook not configured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}

	resp, err := d.httpClient.Post(d.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post to discord: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: model.ParseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("discord webhook: %s", strings.TrimSpace(string(msg))),
		}
	}
	return nil
}

type discordPayload struct {
	Content string         `json:"content,omitempty"`
	Embeds  []discordEmbed `json:"embeds,omitempty"`
}

type discordEmbed struct {
	Title  string         `json:"title"`
	URL    string         `json:"url,omitempty"`
	Color  int            `json:"color"`
	Fields []discordField `json:"fields"`
	Footer *discordFooter `json:"footer,omitempty"`
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordFooter struct {
	Text string `json:"text"`
}

func (d *DiscordNotifier) buildPayload(p model.StoredPosting) discordPayload {
	fields := []discordField{
		{Name: "Company", Value: orUnknown(p.Company), Inline: true},
		{Name: "Location", Value: orUnknown(p.Location), Inline: true},
		{Name: "Contract", Value: orUnknown(p.ContractType), Inline: true},
		{Name: "Score", Value: formatScore(p.FinalScore), Inline: true},
		{Name: "Salary", Value: FormatSalary(p.SalaryMin, p.SalaryMax), Inline: true},
	}
	if p.AIReasoning != "" {
		fields = append(fields, discordField{Name: "AI Notes", Value: truncate(p.AIReasoning, maxNotesLen)})
	}

	return discordPayload{
		Embeds: []discordEmbed{{
			Title:  p.Title,
			URL:    p.URL,
			Color:  d.color,
			Fields: fields,
			Footer: &discordFooter{Text: "Source: " + sourceLabel(p.Source)},
		}},
	}
}
