// Package mailbox reads job alert e-mails from Gmail.
package mailbox

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/amishk599/jobhound/internal/adapter"
)

// Ensure GmailMailbox implements adapter.Mailbox.
var _ adapter.Mailbox = (*GmailMailbox)(nil)

const (
	me          = "me"
	unreadLabel = "UNREAD"
)

// ErrNoToken is returned when no OAuth token has been stored yet.
var ErrNoToken = errors.New("gmail token missing, run `jobhound auth gmail`")

// GmailMailbox implements adapter.Mailbox over the Gmail API.
type GmailMailbox struct {
	svc *gmail.Service
}

// NewGmailMailbox wraps an existing Gmail service.
func NewGmailMailbox(svc *gmail.Service) *GmailMailbox {
	return &GmailMailbox{svc: svc}
}

// Open builds a mailbox from the OAuth client secret at credentialsPath and the
// stored token at tokenPath. Refreshed tokens are written back to tokenPath.
func Open(ctx context.Context, credentialsPath, tokenPath string) (*GmailMailbox, error) {
	cfg, err := OAuthConfig(credentialsPath)
	if err != nil {
		return nil, err
	}
	tok, err := LoadToken(tokenPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoToken
		}
		return nil, err
	}

	ts := &persistingTokenSource{
		base: cfg.TokenSource(ctx, tok),
		path: tokenPath,
		last: tok.AccessToken,
	}
	return openWithClient(ctx, oauth2.NewClient(ctx, ts))
}

func openWithClient(ctx context.Context, client *http.Client, opts ...option.ClientOption) (*GmailMailbox, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return NewGmailMailbox(svc), nil
}

func (m *GmailMailbox) Ping(ctx context.Context) error {
	if _, err := m.svc.Users.GetProfile(me).Context(ctx).Do(); err != nil {
		return fmt.Errorf("gmail profile: %w", err)
	}
	return nil
}

func (m *GmailMailbox) ResolveLabel(ctx context.Context, name string) (string, bool, error) {
	resp, err := m.svc.Users.Labels.List(me).Context(ctx).Do()
	if err != nil {
		return "", false, fmt.Errorf("gmail list labels: %w", err)
	}
	for _, l := range resp.Labels {
		if l.Name == name {
			return l.Id, true, nil
		}
	}
	return "", false, nil
}

func (m *GmailMailbox) ListUnread(ctx context.Context, labelID string, limit int) ([]string, error) {
	resp, err := m.svc.Users.Messages.List(me).
		LabelIds(labelID).
		Q("is:unread").
		MaxResults(int64(limit)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("gmail list messages: %w", err)
	}
	ids := make([]string, 0, len(resp.Messages))
	for _, msg := range resp.Messages {
		ids = append(ids, msg.Id)
	}
	return ids, nil
}

func (m *GmailMailbox) MessageHTML(ctx context.Context, id string) (string, error) {
	msg, err := m.svc.Users.Messages.Get(me, id).Format("full").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("gmail get message %s: %w", id, err)
	}
	body, err := findHTML(msg.Payload)
	if err != nil {
		return "", fmt.Errorf("gmail message %s: %w", id, err)
	}
	return body, nil
}

func (m *GmailMailbox) MarkRead(ctx context.Context, id string) error {
	req := &gmail.ModifyMessageRequest{RemoveLabelIds: []string{unreadLabel}}
	if _, err := m.svc.Users.Messages.Modify(me, id, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("gmail mark read %s: %w", id, err)
	}
	return nil
}

// findHTML returns the first text/html part in depth-first order, decoded.
func findHTML(part *gmail.MessagePart) (string, error) {
	if part == nil {
		return "", nil
	}
	if part.MimeType == "text/html" && part.Body != nil && part.Body.Data != "" {
		return decodeBody(part.Body.Data)
	}
	for _, child := range part.Parts {
		body, err := findHTML(child)
		if err != nil || body != "" {
			return body, err
		}
	}
	return "", nil
}

// decodeBody decodes base64url data with or without padding.
func decodeBody(data string) (string, error) {
	b, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		b, err = base64.RawURLEncoding.DecodeString(data)
		if err != nil {
			return "", fmt.Errorf("decode body: %w", err)
		}
	}
	return string(b), nil
}
