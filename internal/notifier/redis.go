package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/amishk599/jobhound/internal/model"
)

// Ensure RedisNotifier implements model.Notifier.
var _ model.Notifier = (*RedisNotifier)(nil)

// DefaultRedisChannel is used when no channel is configured.
const DefaultRedisChannel = "jobhound:postings"

const publishTimeout = 5 * time.Second

// Event types published on the channel.
const (
	EventPostingMatched = "POSTING_MATCHED"
	EventAlert          = "ALERT"
)

// RedisNotifier publishes JSON events on a Redis pub/sub channel so other
// processes can consume matches.
type RedisNotifier struct {
	rdb     *redis.Client
	channel string
	logger  *slog.Logger
}

// NewRedisClient parses redisURL and verifies connectivity.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// NewRedisNotifier returns a notifier publishing on channel.
func NewRedisNotifier(rdb *redis.Client, channel string, logger *slog.Logger) *RedisNotifier {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisNotifier{rdb: rdb, channel: channel, logger: logger}
}

// PostingEvent is the payload of a POSTING_MATCHED event.
type PostingEvent struct {
	Type         string   `json:"type"`
	ID           int64    `json:"id"`
	Source       string   `json:"source"`
	Title        string   `json:"title"`
	Company      string   `json:"company"`
	Location     string   `json:"location,omitempty"`
	ContractType string   `json:"contractType,omitempty"`
	Salary       string   `json:"salary"`
	URL          string   `json:"url"`
	FinalScore   *float64 `json:"finalScore,omitempty"`
	Notes        string   `json:"notes,omitempty"`
}

// AlertEvent is the payload of an ALERT event.
type AlertEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Notify publishes one event per posting.
// Returns an error only if ALL publishes fail.
func (r *RedisNotifier) Notify(postings []model.StoredPosting) error {
	if len(postings) == 0 {
		return nil
	}

	failures := 0
	for _, p := range postings {
		event := PostingEvent{
			Type:         EventPostingMatched,
			ID:           p.ID,
			Source:       string(p.Source),
			Title:        p.Title,
			Company:      p.Company,
			Location:     p.Location,
			ContractType: p.ContractType,
			Salary:       FormatSalary(p.SalaryMin, p.SalaryMax),
			URL:          p.URL,
			FinalScore:   p.FinalScore,
			Notes:        truncate(p.AIReasoning, maxNotesLen),
		}
		if err := r.publish(event); err != nil {
			r.logger.Error("redis publish failed", "id", p.ID, "error", err)
			failures++
		}
	}

	if failures == len(postings) {
		return fmt.Errorf("all %d redis publishes failed", failures)
	}
	return nil
}

// SendMessage publishes an ALERT event.
func (r *RedisNotifier) SendMessage(text string) error {
	return r.publish(AlertEvent{Type: EventAlert, Message: text})
}

func (r *RedisNotifier) publish(event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := r.rdb.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", r.channel, err)
	}
	return nil
}
