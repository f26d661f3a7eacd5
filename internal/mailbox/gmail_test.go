package mailbox

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

func TestFindHTML(t *testing.T) {
	html := "<html><a href=\"https://www.linkedin.com/jobs/view/1\">Job</a></html>"
	encoded := base64.URLEncoding.EncodeToString([]byte(html))

	tests := []struct {
		name    string
		payload *gmail.MessagePart
		want    string
	}{
		{
			name:    "nil payload",
			payload: nil,
			want:    "",
		},
		{
			name: "single html part",
			payload: &gmail.MessagePart{
				MimeType: "text/html",
				Body:     &gmail.MessagePartBody{Data: encoded},
			},
			want: html,
		},
		{
			name: "nested multipart prefers first html depth first",
			payload: &gmail.MessagePart{
				MimeType: "multipart/mixed",
				Parts: []*gmail.MessagePart{
					{
						MimeType: "multipart/alternative",
						Parts: []*gmail.MessagePart{
							{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: base64.URLEncoding.EncodeToString([]byte("plain"))}},
							{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: encoded}},
						},
					},
					{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: base64.URLEncoding.EncodeToString([]byte("<p>later</p>"))}},
				},
			},
			want: html,
		},
		{
			name: "unpadded data",
			payload: &gmail.MessagePart{
				MimeType: "text/html",
				Body:     &gmail.MessagePartBody{Data: base64.RawURLEncoding.EncodeToString([]byte("<b>x</b>"))},
			},
			want: "<b>x</b>",
		},
		{
			name: "plain text only",
			payload: &gmail.MessagePart{
				MimeType: "text/plain",
				Body:     &gmail.MessagePartBody{Data: base64.URLEncoding.EncodeToString([]byte("plain"))},
			},
			want: "",
		},
		{
			name: "empty html body skipped",
			payload: &gmail.MessagePart{
				MimeType: "multipart/alternative",
				Parts: []*gmail.MessagePart{
					{MimeType: "text/html", Body: &gmail.MessagePartBody{}},
					{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: encoded}},
				},
			},
			want: html,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := findHTML(tt.payload)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("findHTML() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFindHTML_InvalidData(t *testing.T) {
	_, err := findHTML(&gmail.MessagePart{
		MimeType: "text/html",
		Body:     &gmail.MessagePartBody{Data: "!!not base64!!"},
	})
	if err == nil {
		t.Fatal("expected decode error")
	}
}

// gmailServer fakes the Gmail REST endpoints used by GmailMailbox.
type gmailServer struct {
	mu       sync.Mutex
	query    string
	labelIDs []string
	modified map[string][]string
}

func (g *gmailServer) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/profile", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"emailAddress":"me@example.com"}`))
	})
	mux.HandleFunc("/gmail/v1/users/me/labels", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"labels":[{"id":"INBOX","name":"INBOX"},{"id":"Label_7","name":"LinkedIn Jobs"}]}`))
	})
	mux.HandleFunc("/gmail/v1/users/me/messages", func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		g.query = r.URL.Query().Get("q")
		g.labelIDs = r.URL.Query()["labelIds"]
		g.mu.Unlock()
		w.Write([]byte(`{"messages":[{"id":"m1","threadId":"t1"},{"id":"m2","threadId":"t2"}]}`))
	})
	mux.HandleFunc("/gmail/v1/users/me/messages/m1", func(w http.ResponseWriter, r *http.Request) {
		data := base64.URLEncoding.EncodeToString([]byte("<p>alert</p>"))
		w.Write([]byte(`{"id":"m1","payload":{"mimeType":"multipart/alternative","parts":[{"mimeType":"text/html","body":{"data":"` + data + `"}}]}}`))
	})
	mux.HandleFunc("/gmail/v1/users/me/messages/m1/modify", func(w http.ResponseWriter, r *http.Request) {
		var req gmail.ModifyMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode modify request: %v", err)
		}
		g.mu.Lock()
		g.modified["m1"] = req.RemoveLabelIds
		g.mu.Unlock()
		w.Write([]byte(`{"id":"m1"}`))
	})
	return mux
}

func newTestMailbox(t *testing.T, srv *httptest.Server) *GmailMailbox {
	t.Helper()
	m, err := openWithClient(context.Background(), srv.Client(), option.WithEndpoint(srv.URL+"/"))
	if err != nil {
		t.Fatalf("open mailbox: %v", err)
	}
	return m
}

func TestGmailMailbox(t *testing.T) {
	g := &gmailServer{modified: map[string][]string{}}
	srv := httptest.NewServer(g.handler(t))
	defer srv.Close()

	m := newTestMailbox(t, srv)
	ctx := context.Background()

	if err := m.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	id, found, err := m.ResolveLabel(ctx, "LinkedIn Jobs")
	if err != nil || !found || id != "Label_7" {
		t.Errorf("ResolveLabel = (%q, %v, %v), want Label_7", id, found, err)
	}
	if _, found, _ := m.ResolveLabel(ctx, "Nope"); found {
		t.Error("expected unknown label not found")
	}

	ids, err := m.ListUnread(ctx, "Label_7", 25)
	if err != nil {
		t.Fatalf("ListUnread: %v", err)
	}
	if !slices.Equal(ids, []string{"m1", "m2"}) {
		t.Errorf("unexpected ids %v", ids)
	}

	body, err := m.MessageHTML(ctx, "m1")
	if err != nil {
		t.Fatalf("MessageHTML: %v", err)
	}
	if body != "<p>alert</p>" {
		t.Errorf("unexpected body %q", body)
	}

	if err := m.MarkRead(ctx, "m1"); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.query != "is:unread" {
		t.Errorf("expected is:unread query, got %q", g.query)
	}
	if !slices.Equal(g.labelIDs, []string{"Label_7"}) {
		t.Errorf("expected label filter, got %v", g.labelIDs)
	}
	if !slices.Equal(g.modified["m1"], []string{"UNREAD"}) {
		t.Errorf("expected UNREAD removed, got %v", g.modified["m1"])
	}
}

func TestGmailMailbox_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"code":401,"message":"invalid credentials"}}`))
	}))
	defer srv.Close()

	m := newTestMailbox(t, srv)
	if err := m.Ping(context.Background()); err == nil {
		t.Error("expected ping error")
	}
	if _, _, err := m.ResolveLabel(context.Background(), "x"); err == nil {
		t.Error("expected label error")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets", "token.json")
	want := &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	if err := SaveToken(path, want); err != nil {
		t.Fatalf("SaveToken: %v", err)
	}
	got, err := LoadToken(path)
	if err != nil {
		t.Fatalf("LoadToken: %v", err)
	}
	if got.AccessToken != want.AccessToken || got.RefreshToken != want.RefreshToken || !got.Expiry.Equal(want.Expiry) {
		t.Errorf("LoadToken() = %+v, want %+v", got, want)
	}
}

func TestOpen_MissingToken(t *testing.T) {
	dir := t.TempDir()
	creds := filepath.Join(dir, "credentials.json")
	secret := `{"installed":{"client_id":"id","client_secret":"secret","auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token","redirect_uris":["http://localhost"]}}`
	if err := writeFile(creds, secret); err != nil {
		t.Fatal(err)
	}

	_, err := Open(context.Background(), creds, filepath.Join(dir, "token.json"))
	if err != ErrNoToken {
		t.Errorf("expected ErrNoToken, got %v", err)
	}
}

func TestOAuthConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	if err := writeFile(path, "not json"); err != nil {
		t.Fatal(err)
	}
	if _, err := OAuthConfig(path); err == nil {
		t.Error("expected parse error")
	}
	if _, err := OAuthConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected read error")
	}
}

type staticSource struct{ tok *oauth2.Token }

func (s staticSource) Token() (*oauth2.Token, error) { return s.tok, nil }

func TestPersistingTokenSource_SavesOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	ts := &persistingTokenSource{
		base: staticSource{tok: &oauth2.Token{AccessToken: "fresh"}},
		path: path,
		last: "stale",
	}
	if _, err := ts.Token(); err != nil {
		t.Fatalf("Token: %v", err)
	}
	got, err := LoadToken(path)
	if err != nil {
		t.Fatalf("expected refreshed token written: %v", err)
	}
	if got.AccessToken != "fresh" {
		t.Errorf("saved token = %q, want fresh", got.AccessToken)
	}
}

func TestCallbackHandler(t *testing.T) {
	codes := make(chan string, 1)
	errs := make(chan error, 1)
	h := callbackHandler("xyz", codes, errs)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?state=wrong&code=c", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("state mismatch: expected 400, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?state=xyz&code=c0de", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "Authorization complete") {
		t.Errorf("unexpected body %q", body)
	}
	select {
	case code := <-codes:
		if code != "c0de" {
			t.Errorf("code = %q, want c0de", code)
		}
	default:
		t.Fatal("expected a code")
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?error=access_denied", nil))
	select {
	case err := <-errs:
		if !strings.Contains(err.Error(), "access_denied") {
			t.Errorf("unexpected error %v", err)
		}
	default:
		t.Fatal("expected an error")
	}
}
