package audit

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/amishk599/jobhound/internal/model"
)

func score(v float64) *float64 { return &v }

func stored(id int64, title string, kw, final *float64, scraped time.Time) model.StoredPosting {
	return model.StoredPosting{
		ID:           id,
		Posting:      model.Posting{Title: title, Company: "Acme", URL: "https://example.com/" + title, ScrapedAt: scraped},
		KeywordScore: kw,
		FinalScore:   final,
	}
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func sized(m auditModel) auditModel {
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return next.(auditModel)
}

func press(t *testing.T, m auditModel, msg tea.Msg) (auditModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(auditModel), cmd
}

func TestSortPostings(t *testing.T) {
	now := time.Now()
	postings := []model.StoredPosting{
		stored(1, "unscored-old", nil, nil, now.Add(-2*time.Hour)),
		stored(2, "kw-only", score(50), nil, now),
		stored(3, "final-low", score(90), score(40), now),
		stored(4, "unscored-new", nil, nil, now),
		stored(5, "final-high", score(10), score(80), now),
	}
	sortPostings(postings)

	var got []string
	for _, p := range postings {
		got = append(got, p.Title)
	}
	want := "final-high,final-low,kw-only,unscored-new,unscored-old"
	if strings.Join(got, ",") != want {
		t.Errorf("order = %v, want %s", got, want)
	}
}

func TestShortlist(t *testing.T) {
	postings := []model.StoredPosting{
		stored(1, "a", score(30), nil, time.Time{}),
		stored(2, "b", score(29.9), nil, time.Time{}),
		stored(3, "c", nil, nil, time.Time{}),
	}
	got := shortlist(postings, 30)
	if len(got) != 1 || got[0].ID != 1 {
		t.Errorf("shortlist = %+v, want only id 1", got)
	}
}

func TestNewAuditModel_DoesNotMutateInput(t *testing.T) {
	postings := []model.StoredPosting{
		stored(1, "low", score(10), nil, time.Time{}),
		stored(2, "high", score(90), nil, time.Time{}),
	}
	m := newAuditModel(postings, Options{KeywordThreshold: 50})
	if postings[0].ID != 1 {
		t.Error("input slice was reordered")
	}
	if m.all[0].ID != 2 || len(m.shortlist) != 1 {
		t.Errorf("all = %+v shortlist = %+v", m.all, m.shortlist)
	}
}

func TestAuditModel_Navigation(t *testing.T) {
	postings := []model.StoredPosting{
		stored(1, "first", score(90), nil, time.Time{}),
		stored(2, "second", score(80), nil, time.Time{}),
		stored(3, "third", score(10), nil, time.Time{}),
	}
	m := sized(newAuditModel(postings, Options{KeywordThreshold: 50}))

	m, _ = press(t, m, keyRunes("j"))
	m, _ = press(t, m, keyRunes("j"))
	m, _ = press(t, m, keyRunes("j"))
	if m.leftCursor != 2 {
		t.Errorf("leftCursor = %d, want clamped to 2", m.leftCursor)
	}

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.activePane != 1 {
		t.Fatalf("activePane = %d, want 1", m.activePane)
	}
	m, _ = press(t, m, keyRunes("j"))
	m, _ = press(t, m, keyRunes("j"))
	if m.rightCursor != 1 {
		t.Errorf("rightCursor = %d, want clamped to 1", m.rightCursor)
	}

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.view != viewDetail || m.detail.ID != 2 {
		t.Fatalf("view = %v detail = %d, want detail of id 2", m.view, m.detail.ID)
	}
	if !strings.Contains(m.View(), "Posting Details") {
		t.Error("detail view not rendered")
	}

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.view != viewList {
		t.Errorf("view = %v, want list after esc", m.view)
	}

	m, cmd := press(t, m, keyRunes("q"))
	if !m.wantQuit || cmd == nil {
		t.Error("q should quit")
	}
}

func TestAuditModel_EmptyEnterIsNoop(t *testing.T) {
	m := sized(newAuditModel(nil, Options{}))
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.view != viewList {
		t.Error("enter on an empty list should stay in list view")
	}
	if !strings.Contains(m.View(), "(no postings)") {
		t.Error("empty placeholder not rendered")
	}
}

func TestAuditModel_Score(t *testing.T) {
	posting := stored(7, "scorable", score(60), nil, time.Time{})
	var calls int
	opts := Options{
		KeywordThreshold: 50,
		Score: func(_ context.Context, p model.StoredPosting) (model.StoredPosting, error) {
			calls++
			p.AIScore = score(85)
			p.FinalScore = score(85)
			p.AIReasoning = "strong SQL match"
			return p, nil
		},
	}
	m := sized(newAuditModel([]model.StoredPosting{posting}, opts))
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	m, cmd := press(t, m, keyRunes("s"))
	if !m.scoreLoading || cmd == nil {
		t.Fatal("s should start scoring")
	}
	m, _ = press(t, m, cmd())
	if calls != 1 {
		t.Errorf("score calls = %d, want 1", calls)
	}
	if m.scoreLoading || m.detail.AIScore == nil || *m.detail.AIScore != 85 {
		t.Errorf("detail = %+v", m.detail)
	}
	if m.all[0].AIScore == nil || m.shortlist[0].AIScore == nil {
		t.Error("scored posting not propagated to the lists")
	}
	if !strings.Contains(m.renderDetail(), "strong SQL match") {
		t.Error("reasoning not rendered")
	}

	// Already scored: s does nothing.
	_, cmd = press(t, m, keyRunes("s"))
	if cmd != nil {
		t.Error("s on a scored posting should be a no-op")
	}
}

func TestAuditModel_ScoreError(t *testing.T) {
	opts := Options{Score: func(context.Context, model.StoredPosting) (model.StoredPosting, error) {
		return model.StoredPosting{}, errors.New("provider down")
	}}
	m := sized(newAuditModel([]model.StoredPosting{stored(1, "x", nil, nil, time.Time{})}, opts))
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m, cmd := press(t, m, keyRunes("s"))
	m, _ = press(t, m, cmd())

	if !strings.Contains(m.scoreError, "provider down") {
		t.Errorf("scoreError = %q", m.scoreError)
	}
	if m.detail.ID != 1 {
		t.Error("failed scoring must keep the open posting")
	}
}

func TestAuditModel_NoScorer(t *testing.T) {
	m := sized(newAuditModel([]model.StoredPosting{stored(1, "x", nil, nil, time.Time{})}, Options{}))
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	_, cmd := press(t, m, keyRunes("s"))
	if cmd != nil {
		t.Error("s without a scorer should be a no-op")
	}
}

func TestWordWrap(t *testing.T) {
	got := wordWrap("one two three four", 9)
	if got != "one two\nthree\nfour" {
		t.Errorf("wordWrap = %q", got)
	}
	if wordWrap("   ", 10) != "" {
		t.Error("blank text should wrap to empty")
	}
}

func TestSourceOptions(t *testing.T) {
	opts := SourceOptions(5, map[model.Source]int{model.SourceInbox: 2, model.SourceSearchIndex: 3})
	if len(opts) != 3 || opts[0].Source != "" || opts[0].Count != 5 {
		t.Fatalf("opts = %+v", opts)
	}
	if opts[1].Source != model.SourceSearchIndex || opts[1].Count != 3 || opts[2].Count != 2 {
		t.Errorf("opts = %+v", opts)
	}
}

func TestPickerModel(t *testing.T) {
	m := pickerModel{options: SourceOptions(0, nil), chosen: -1}
	next, _ := m.Update(keyRunes("j"))
	next, _ = next.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if got := next.(pickerModel).chosen; got != 1 {
		t.Errorf("chosen = %d, want 1", got)
	}

	next, _ = m.Update(keyRunes("q"))
	if got := next.(pickerModel).chosen; got != -2 {
		t.Errorf("chosen after q = %d, want -2", got)
	}
}
