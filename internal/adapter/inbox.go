package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/amishk599/jobhound/internal/extract"
	"github.com/amishk599/jobhound/internal/model"
)

// Ensure InboxAdapter implements model.Adapter.
var _ model.Adapter = (*InboxAdapter)(nil)

const (
	fallbackLabel    = "INBOX"
	placeholderTitle = "LinkedIn Job"
	placeholderOrg   = "LinkedIn"
	placeholderDesc  = "LinkedIn job alert"
)

// Mailbox is the subset of a mail API the inbox adapter needs.
type Mailbox interface {
	// Ping checks that the mailbox is reachable with the stored credentials.
	Ping(ctx context.Context) error
	// ResolveLabel maps a label name to its id. found is false when no label
	// has that name.
	ResolveLabel(ctx context.Context, name string) (id string, found bool, err error)
	ListUnread(ctx context.Context, labelID string, limit int) ([]string, error)
	// MessageHTML returns the first text/html part, or "" when there is none.
	MessageHTML(ctx context.Context, id string) (string, error)
	MarkRead(ctx context.Context, id string) error
}

// InboxConfig configures the LinkedIn alert e-mail adapter.
type InboxConfig struct {
	Label     string
	MaxEmails int
}

// InboxAdapter reads LinkedIn job alert e-mails and enriches the linked
// postings from their detail pages.
type InboxAdapter struct {
	*Enricher

	cfg     InboxConfig
	mailbox Mailbox
	logger  *slog.Logger
	now     func() time.Time
}

// NewInboxAdapter creates the adapter. mailbox may be nil when no credentials
// are configured, in which case the adapter reports itself unavailable.
func NewInboxAdapter(cfg InboxConfig, mailbox Mailbox, enricher *Enricher, logger *slog.Logger) *InboxAdapter {
	return &InboxAdapter{
		Enricher: enricher,
		cfg:      cfg,
		mailbox:  mailbox,
		logger:   logger,
		now:      time.Now,
	}
}

func (a *InboxAdapter) Name() model.Source { return model.SourceInbox }

func (a *InboxAdapter) Available(ctx context.Context) bool {
	if a.mailbox == nil {
		return false
	}
	if err := a.mailbox.Ping(ctx); err != nil {
		a.logger.Warn("mailbox unavailable", "error", err)
		return false
	}
	return true
}

// Fetch turns unread alert e-mails into postings. Messages without a readable
// HTML body are marked read right away. The others are marked read only when
// enrichment found no credential problem, so a fixed cookie can retry them.
func (a *InboxAdapter) Fetch(ctx context.Context) ([]model.Posting, error) {
	a.Reset()

	labelID, found, err := a.mailbox.ResolveLabel(ctx, a.cfg.Label)
	switch {
	case err != nil:
		a.logger.Warn("mail label lookup failed, falling back", "label", a.cfg.Label, "fallback", fallbackLabel, "error", err)
		labelID = fallbackLabel
	case !found:
		a.logger.Warn("mail label not found, falling back", "label", a.cfg.Label, "fallback", fallbackLabel)
		labelID = fallbackLabel
	}

	ids, err := a.mailbox.ListUnread(ctx, labelID, a.cfg.MaxEmails)
	if err != nil {
		return nil, fmt.Errorf("inbox list unread: %w", err)
	}

	var postings []model.Posting
	var toMark []string
	for _, id := range ids {
		body, err := a.mailbox.MessageHTML(ctx, id)
		if err != nil {
			// Unreadable bodies leave the queue like HTML-less ones.
			a.logger.Warn("failed to read alert e-mail", "message_id", id, "error", err)
			a.markRead(ctx, id)
			continue
		}
		if body == "" {
			a.markRead(ctx, id)
			continue
		}

		found, err := a.parseMessage(body)
		if err != nil {
			a.logger.Warn("failed to parse alert e-mail", "message_id", id, "error", err)
			continue
		}
		postings = append(postings, found...)
		toMark = append(toMark, id)
	}

	a.logger.Info("inbox scanned", "messages", len(ids), "postings", len(postings))

	if len(postings) > 0 {
		postings = a.Enrich(ctx, postings, a.MaxFetches())
	}

	if !a.CredentialIssue() {
		for _, id := range toMark {
			a.markRead(ctx, id)
		}
	}
	return postings, nil
}

func (a *InboxAdapter) parseMessage(body string) ([]model.Posting, error) {
	links, err := extract.ParseInboxLinks(body)
	if err != nil {
		return nil, err
	}

	postings := make([]model.Posting, 0, len(links))
	for _, l := range links {
		company, location := extract.SplitCompanyLocation(l.Block, l.Title)
		title := l.Title
		if title == "" {
			title = placeholderTitle
		}
		if company == "" {
			company = placeholderOrg
		}
		description := l.Block
		if description == "" {
			description = l.Title
		}
		if description == "" {
			description = placeholderDesc
		}
		postings = append(postings, model.Posting{
			Source:       model.SourceInbox,
			URL:          l.URL,
			Title:        title,
			Company:      company,
			Location:     location,
			Description:  description,
			DetailStatus: model.DetailPending,
			ScrapedAt:    a.now(),
		})
	}
	return postings, nil
}

func (a *InboxAdapter) markRead(ctx context.Context, id string) {
	if err := a.mailbox.MarkRead(ctx, id); err != nil {
		a.logger.Warn("failed to mark alert e-mail read", "message_id", id, "error", err)
	}
}
