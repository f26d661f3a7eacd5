package notifier

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/amishk599/jobhound/internal/model"
)

func TestDiscordNotifier_EmbedPayload(t *testing.T) {
	var payload discordPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	p := samplePosting("Data Analyst", "Acme")
	p.AIReasoning = strings.Repeat("x", 300)
	p.Location = ""

	n := NewDiscordNotifier(srv.URL, srv.Client(), discardLogger())
	if err := n.Notify([]model.StoredPosting{p}); err != nil {
		t.Fatalf("Notify() = %v", err)
	}

	if len(payload.Embeds) != 1 {
		t.Fatalf("expected 1 embed, got %d", len(payload.Embeds))
	}
	embed := payload.Embeds[0]
	if embed.Title != "Data Analyst" || embed.URL != "https://example.com/apply" {
		t.Errorf("unexpected embed header: %+v", embed)
	}
	if embed.Color != defaultEmbedColor {
		t.Errorf("color = %#x", embed.Color)
	}
	want := map[string]string{
		"Company":  "Acme",
		"Location": "Unknown",
		"Contract": "CDI",
		"Score":    "82.5%",
		"Salary":   ">= 45000",
	}
	for _, f := range embed.Fields {
		if v, ok := want[f.Name]; ok && f.Value != v {
			t.Errorf("field %s = %q, want %q", f.Name, f.Value, v)
		}
	}
	notes := embed.Fields[len(embed.Fields)-1]
	if notes.Name != "AI Notes" || len([]rune(notes.Value)) != maxNotesLen || notes.Inline {
		t.Errorf("unexpected notes field: name=%q len=%d inline=%v", notes.Name, len(notes.Value), notes.Inline)
	}
	if embed.Footer == nil || embed.Footer.Text != "Source: Welcome to the Jungle" {
		t.Errorf("unexpected footer: %+v", embed.Footer)
	}
}

func TestDiscordNotifier_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"Invalid Form Body"}`))
	}))
	defer srv.Close()

	n := NewDiscordNotifier(srv.URL, srv.Client(), discardLogger())
	err := n.SendMessage("hello")
	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected HTTPError 400, got %v", err)
	}
}

func TestDiscordNotifier_MissingWebhook(t *testing.T) {
	n := NewDiscordNotifier("", http.DefaultClient, discardLogger())
	if err := n.SendMessage("hello"); err == nil {
		t.Fatal("expected error without webhook")
	}
}

func TestDiscordNotifier_SendMessageContent(t *testing.T) {
	var payload discordPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&payload)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewDiscordNotifier(srv.URL, srv.Client(), discardLogger())
	if err := n.SendMessage("Cookie LinkedIn absent."); err != nil {
		t.Fatalf("SendMessage() = %v", err)
	}
	if payload.Content != "Cookie LinkedIn absent." || len(payload.Embeds) != 0 {
		t.Errorf("unexpected payload: %+v", payload)
	}
}
