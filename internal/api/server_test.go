package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/amishk599/jobhound/internal/model"
	"github.com/amishk599/jobhound/internal/pipeline"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func floatPtr(f float64) *float64 { return &f }

// fakeStore implements the read paths the API uses. Other methods panic.
type fakeStore struct {
	model.Store
	scorable     []model.StoredPosting
	gotThreshold float64
	gotLimit     int
	stats        model.Stats
	err          error
}

func (s *fakeStore) GetScorable(ctx context.Context, threshold float64, limit int) ([]model.StoredPosting, error) {
	s.gotThreshold = threshold
	s.gotLimit = limit
	return s.scorable, s.err
}

func (s *fakeStore) Stats(ctx context.Context) (model.Stats, error) {
	return s.stats, s.err
}

type fakeApplier struct {
	got    []model.AIScore
	report pipeline.ApplyReport
	err    error
}

func (a *fakeApplier) ApplyAIScores(ctx context.Context, scores []model.AIScore) (pipeline.ApplyReport, error) {
	a.got = scores
	return a.report, a.err
}

type fakeStarter struct {
	err   error
	calls int
}

func (f *fakeStarter) StartCycle(ctx context.Context) error {
	f.calls++
	return f.err
}

func newTestServer(store model.Store, applier ScoreApplier, starter CycleStarter) http.Handler {
	profile := model.Profile{
		Skills: model.SkillSet{Required: []model.Skill{{Keyword: "SQL", Weight: 10}}},
	}
	s := NewServer(context.Background(), store, applier, starter, profile, Config{KeywordThreshold: 30}, discardLogger())
	return s.Handler()
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(&fakeStore{}, &fakeApplier{}, nil), http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestPendingJobs(t *testing.T) {
	store := &fakeStore{scorable: []model.StoredPosting{
		{
			ID:           7,
			KeywordScore: floatPtr(64.5),
			Posting: model.Posting{
				Title:        "Data Analyst",
				Company:      "Acme",
				Location:     "Paris",
				ContractType: "CDI",
				Description:  "SQL and dashboards",
				URL:          "https://example.com/7",
			},
		},
	}}
	h := newTestServer(store, &fakeApplier{}, nil)

	rec := do(t, h, http.MethodGet, "/api/jobs/pending", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var jobs []pendingJob
	if err := json.Unmarshal(rec.Body.Bytes(), &jobs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
	j := jobs[0]
	if j.ID != 7 || j.Title != "Data Analyst" || j.KeywordScore != 64.5 || j.ContractType != "CDI" {
		t.Errorf("unexpected job %+v", j)
	}
	if j.Prompt != "" {
		t.Errorf("prompt should be omitted by default, got %q", j.Prompt)
	}
	if store.gotThreshold != 30 || store.gotLimit != 50 {
		t.Errorf("expected threshold 30 and default limit 50, got %v/%d", store.gotThreshold, store.gotLimit)
	}

	rec = do(t, h, http.MethodGet, "/api/jobs/pending?limit=5&include_prompt=true", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	jobs = nil
	json.Unmarshal(rec.Body.Bytes(), &jobs)
	if store.gotLimit != 5 {
		t.Errorf("expected limit 5, got %d", store.gotLimit)
	}
	if len(jobs) != 1 || !strings.Contains(jobs[0].Prompt, "Data Analyst") {
		t.Errorf("expected prompt with the posting title, got %+v", jobs)
	}
}

func TestPendingJobs_BadQuery(t *testing.T) {
	h := newTestServer(&fakeStore{}, &fakeApplier{}, nil)
	for _, target := range []string{"/api/jobs/pending?limit=abc", "/api/jobs/pending?limit=0", "/api/jobs/pending?limit=10000"} {
		rec := do(t, h, http.MethodGet, target, "")
		// limit=0 binds as unset and falls back to the default.
		if strings.HasSuffix(target, "limit=0") {
			if rec.Code != http.StatusOK {
				t.Errorf("%s: expected 200, got %d", target, rec.Code)
			}
			continue
		}
		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("%s: expected 422, got %d", target, rec.Code)
		}
	}
}

func TestPendingJobs_StoreError(t *testing.T) {
	h := newTestServer(&fakeStore{err: errors.New("disk full")}, &fakeApplier{}, nil)
	rec := do(t, h, http.MethodGet, "/api/jobs/pending", "")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestSubmitScores(t *testing.T) {
	applier := &fakeApplier{report: pipeline.ApplyReport{Updated: 2, Notified: 1}}
	h := newTestServer(&fakeStore{}, applier, nil)

	body := `{"scores":[{"job_id":1,"ai_score":85.5,"reasoning":"great fit"},{"job_id":2,"ai_score":0,"reasoning":"no"}]}`
	rec := do(t, h, http.MethodPost, "/api/jobs/scores", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["updated"] != 2 || resp["notified"] != 1 {
		t.Errorf("unexpected response %v", resp)
	}
	if len(applier.got) != 2 {
		t.Fatalf("expected 2 scores applied, got %d", len(applier.got))
	}
	if applier.got[0] != (model.AIScore{PostingID: 1, Score: 85.5, Reasoning: "great fit"}) {
		t.Errorf("unexpected first score %+v", applier.got[0])
	}
	if applier.got[1].Score != 0 {
		t.Errorf("a zero score must be accepted, got %+v", applier.got[1])
	}
}

func TestSubmitScores_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"scores":`},
		{"score above 100", `{"scores":[{"job_id":1,"ai_score":101,"reasoning":""}]}`},
		{"negative score", `{"scores":[{"job_id":1,"ai_score":-1,"reasoning":""}]}`},
		{"missing score", `{"scores":[{"job_id":1,"reasoning":""}]}`},
		{"missing job id", `{"scores":[{"ai_score":50,"reasoning":""}]}`},
		{"missing scores", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			applier := &fakeApplier{}
			rec := do(t, newTestServer(&fakeStore{}, applier, nil), http.MethodPost, "/api/jobs/scores", tt.body)
			if rec.Code != http.StatusUnprocessableEntity {
				t.Errorf("expected 422, got %d", rec.Code)
			}
			if applier.got != nil {
				t.Error("invalid submissions must not be applied")
			}
		})
	}
}

func TestSubmitScores_ApplyError(t *testing.T) {
	applier := &fakeApplier{err: errors.New("locked")}
	rec := do(t, newTestServer(&fakeStore{}, applier, nil), http.MethodPost, "/api/jobs/scores", `{"scores":[{"job_id":1,"ai_score":50,"reasoning":""}]}`)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestStats(t *testing.T) {
	store := &fakeStore{stats: model.Stats{Total: 10, New: 4, Scored: 3, Notified: 2, Pending: 1, Failed: 1}}
	rec := do(t, newTestServer(store, &fakeApplier{}, nil), http.MethodGet, "/api/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got statsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	want := statsResponse{Total: 10, New: 4, Scored: 3, Notified: 2, Pending: 1, Failed: 1}
	if got != want {
		t.Errorf("stats = %+v, want %+v", got, want)
	}
}

func TestTriggerScrape(t *testing.T) {
	tests := []struct {
		name     string
		starter  CycleStarter
		wantCode int
	}{
		{"not configured", nil, http.StatusServiceUnavailable},
		{"already running", &fakeStarter{err: pipeline.ErrCycleInProgress}, http.StatusConflict},
		{"started", &fakeStarter{}, http.StatusAccepted},
		{"failure", &fakeStarter{err: errors.New("boom")}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, newTestServer(&fakeStore{}, &fakeApplier{}, tt.starter), http.MethodPost, "/api/trigger-scrape", "")
			if rec.Code != tt.wantCode {
				t.Errorf("expected %d, got %d", tt.wantCode, rec.Code)
			}
		})
	}
}
