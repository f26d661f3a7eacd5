package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sort"
	"sync"

	"github.com/amishk599/jobhound/internal/adapter"
	"github.com/amishk599/jobhound/internal/model"
	"github.com/amishk599/jobhound/internal/scoring"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeAdapter returns canned postings.
type fakeAdapter struct {
	source      model.Source
	unavailable bool
	postings    []model.Posting
	err         error
	fetches     int
	block       chan struct{} // when set, Fetch waits on it
}

func (a *fakeAdapter) Name() model.Source                 { return a.source }
func (a *fakeAdapter) Available(ctx context.Context) bool { return !a.unavailable }

func (a *fakeAdapter) Fetch(ctx context.Context) ([]model.Posting, error) {
	a.fetches++
	if a.block != nil {
		<-a.block
	}
	return a.postings, a.err
}

// enrichingAdapter is a fakeAdapter that also owes detail fetches.
type enrichingAdapter struct {
	fakeAdapter
	maxFetches      int
	lastFetchCount  int
	credentialIssue bool
	halt            adapter.HaltReason
	enrichCalls     [][]model.Posting
	budgets         []int
	onEnrich        func()
}

func (a *enrichingAdapter) Enrich(ctx context.Context, postings []model.Posting, maxFetches int) []model.Posting {
	if a.onEnrich != nil {
		a.onEnrich()
	}
	a.enrichCalls = append(a.enrichCalls, postings)
	a.budgets = append(a.budgets, maxFetches)
	out := make([]model.Posting, len(postings))
	copy(out, postings)
	for i := range out {
		if i >= maxFetches {
			break
		}
		out[i].DetailStatus = model.DetailFetched
		out[i].Description = "full description with sql and python"
	}
	return out
}

func (a *enrichingAdapter) LastFetchCount() int        { return a.lastFetchCount }
func (a *enrichingAdapter) MaxFetches() int            { return a.maxFetches }
func (a *enrichingAdapter) CredentialIssue() bool      { return a.credentialIssue }
func (a *enrichingAdapter) Halted() adapter.HaltReason { return a.halt }

// stubMailbox serves fixed alert e-mails to a real InboxAdapter.
type stubMailbox struct {
	bodies map[string]string
	read   []string
}

func (m *stubMailbox) Ping(ctx context.Context) error { return nil }

func (m *stubMailbox) ResolveLabel(ctx context.Context, name string) (string, bool, error) {
	return "Label_1", true, nil
}

func (m *stubMailbox) ListUnread(ctx context.Context, labelID string, limit int) ([]string, error) {
	var ids []string
	for id := range m.bodies {
		if !slices.Contains(m.read, id) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *stubMailbox) MessageHTML(ctx context.Context, id string) (string, error) {
	return m.bodies[id], nil
}

func (m *stubMailbox) MarkRead(ctx context.Context, id string) error {
	m.read = append(m.read, id)
	return nil
}

// memStore is an in-memory model.Store.
type memStore struct {
	mu        sync.Mutex
	nextID    int64
	byFP      map[string]int64
	postings  map[int64]*model.StoredPosting
	runs      []model.RunLog
	expired   int
	expireErr error
	notified  []int64
}

func newMemStore() *memStore {
	return &memStore{
		byFP:     make(map[string]int64),
		postings: make(map[int64]*model.StoredPosting),
	}
}

func (s *memStore) Insert(ctx context.Context, fingerprint string, p model.Posting) (model.StoredPosting, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byFP[fingerprint]; ok {
		return *s.postings[id], false, nil
	}
	s.nextID++
	sp := &model.StoredPosting{Posting: p, ID: s.nextID, Fingerprint: fingerprint, Status: model.StatusNew}
	s.byFP[fingerprint] = sp.ID
	s.postings[sp.ID] = sp
	return *sp, true, nil
}

func (s *memStore) UpdateDetail(ctx context.Context, id int64, p model.Posting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sp, ok := s.postings[id]
	if !ok {
		return errors.New("not found")
	}
	if p.Description != "" {
		sp.Description = p.Description
	}
	sp.DetailStatus = p.DetailStatus
	return nil
}

func (s *memStore) UpdateKeywordScore(ctx context.Context, id int64, score float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.postings[id].KeywordScore = &score
	return nil
}

func (s *memStore) sorted() []*model.StoredPosting {
	out := make([]*model.StoredPosting, 0, len(s.postings))
	for _, sp := range s.postings {
		out = append(out, sp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *memStore) GetPending(ctx context.Context, source model.Source, limit int) ([]model.StoredPosting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.StoredPosting
	for _, sp := range s.sorted() {
		if sp.Source == source && sp.DetailStatus == model.DetailPending && len(out) < limit {
			out = append(out, *sp)
		}
	}
	return out, nil
}

func (s *memStore) GetScorable(ctx context.Context, threshold float64, limit int) ([]model.StoredPosting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.StoredPosting
	for _, sp := range s.sorted() {
		if sp.Status == model.StatusNew && sp.DetailStatus == model.DetailFetched &&
			sp.KeywordScore != nil && *sp.KeywordScore >= threshold {
			out = append(out, *sp)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) ApplyScores(ctx context.Context, scores []model.AIScore, w model.Weights) ([]model.StoredPosting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.StoredPosting
	for _, sc := range scores {
		sp, ok := s.postings[sc.PostingID]
		if !ok {
			continue
		}
		ai := sc.Score
		final := scoring.Combine(sp.KeywordScore, ai, w)
		sp.AIScore = &ai
		sp.FinalScore = &final
		sp.AIReasoning = sc.Reasoning
		if sp.Status != model.StatusNotified {
			sp.Status = model.StatusScored
		}
		out = append(out, *sp)
	}
	return out, nil
}

func (s *memStore) MarkNotified(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.postings[id].Status = model.StatusNotified
	s.notified = append(s.notified, id)
	return nil
}

func (s *memStore) ExpireOlderThan(ctx context.Context, days int) (int, error) {
	return s.expired, s.expireErr
}

func (s *memStore) RequeueFailed(ctx context.Context, source model.Source) (int, error) {
	return 0, nil
}

func (s *memStore) List(ctx context.Context, f model.ListFilter) ([]model.StoredPosting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.StoredPosting
	for _, sp := range s.sorted() {
		out = append(out, *sp)
	}
	return out, nil
}

func (s *memStore) Stats(ctx context.Context) (model.Stats, error) {
	return model.Stats{Total: len(s.postings)}, nil
}

func (s *memStore) RecordRun(ctx context.Context, r model.RunLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, r)
	return nil
}

func (s *memStore) get(id int64) model.StoredPosting {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.postings[id]
}

// recordingNotifier records notified postings and can fail selectively.
type recordingNotifier struct {
	notified []model.StoredPosting
	failFor  map[int64]bool
}

func (n *recordingNotifier) Notify(postings []model.StoredPosting) error {
	for _, p := range postings {
		if n.failFor[p.ID] {
			return errors.New("webhook down")
		}
	}
	n.notified = append(n.notified, postings...)
	return nil
}

func (n *recordingNotifier) SendMessage(text string) error { return nil }

// fakeScorer returns a fixed score per posting id.
type fakeScorer struct {
	scores map[int64]float64
	fail   map[int64]bool
	calls  int
}

func (f *fakeScorer) Score(ctx context.Context, p model.StoredPosting) (model.AIScore, error) {
	f.calls++
	if f.fail[p.ID] {
		return model.AIScore{}, errors.New("model timeout")
	}
	return model.AIScore{PostingID: p.ID, Score: f.scores[p.ID], Reasoning: "fit"}, nil
}
