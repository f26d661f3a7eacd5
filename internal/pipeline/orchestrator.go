// Package pipeline runs ingestion cycles: fetch from every adapter, dedup and
// persist, keyword-score, top up pending detail fetches, and expire old rows.
// It also applies AI scores and notifies the postings that clear the bar.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/amishk599/jobhound/internal/adapter"
	"github.com/amishk599/jobhound/internal/dedup"
	"github.com/amishk599/jobhound/internal/model"
	"github.com/amishk599/jobhound/internal/scoring"
)

// ErrCycleInProgress is returned when RunCycle is called while another cycle
// is still running.
var ErrCycleInProgress = errors.New("ingestion cycle already running")

// Run log statuses.
const (
	RunSuccess = "success"
	RunFailed  = "failed"
	RunSkipped = "skipped"
)

// DetailEnricher is implemented by adapters whose postings need a second
// request for their details. The orchestrator uses it to spend leftover fetch
// budget on postings stored pending by earlier cycles.
type DetailEnricher interface {
	Enrich(ctx context.Context, postings []model.Posting, maxFetches int) []model.Posting
	LastFetchCount() int
	MaxFetches() int
	CredentialIssue() bool
	Halted() adapter.HaltReason
}

// Config holds the orchestrator's scoring and retention settings.
type Config struct {
	KeywordThreshold float64 // minimum keyword score before AI scoring
	AIThreshold      float64 // minimum final score to notify
	Weights          model.Weights
	CleanupDays      int
	AIBatchSize      int
}

// CycleReport summarizes one RunCycle.
type CycleReport struct {
	RunID    string
	Runs     []model.RunLog
	New      int
	Enriched int // stored pending postings resolved by the top-up pass
	Expired  int
}

// Orchestrator owns the ingestion pipeline for every configured source.
type Orchestrator struct {
	adapters []model.Adapter
	store    model.Store
	notifier model.Notifier
	scorer   AIScorer
	profile  model.Profile
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time

	running atomic.Bool
}

// NewOrchestrator creates an orchestrator. notifier and scorer may be nil.
func NewOrchestrator(
	adapters []model.Adapter,
	store model.Store,
	notifier model.Notifier,
	scorer AIScorer,
	profile model.Profile,
	cfg Config,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		adapters: adapters,
		store:    store,
		notifier: notifier,
		scorer:   scorer,
		profile:  profile,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Running reports whether a cycle is in progress.
func (o *Orchestrator) Running() bool { return o.running.Load() }

// RunCycle runs one ingestion cycle. Only one cycle runs at a time; a
// concurrent call returns ErrCycleInProgress. Adapter failures are logged and
// recorded, never returned.
func (o *Orchestrator) RunCycle(ctx context.Context) (CycleReport, error) {
	if !o.running.CompareAndSwap(false, true) {
		return CycleReport{}, ErrCycleInProgress
	}
	defer o.running.Store(false)
	return o.runCycle(ctx)
}

// StartCycle starts a cycle in the background and returns at once. It returns
// ErrCycleInProgress when a cycle is already running.
func (o *Orchestrator) StartCycle(ctx context.Context) error {
	if !o.running.CompareAndSwap(false, true) {
		return ErrCycleInProgress
	}
	go func() {
		defer o.running.Store(false)
		if _, err := o.runCycle(ctx); err != nil {
			o.logger.Warn("triggered cycle interrupted", "error", err)
		}
	}()
	return nil
}

func (o *Orchestrator) runCycle(ctx context.Context) (CycleReport, error) {
	report := CycleReport{RunID: uuid.NewString()}
	o.logger.Info("ingestion cycle started", "run_id", report.RunID, "sources", len(o.adapters))

	var enrichers []model.Adapter
	for _, a := range o.adapters {
		if ctx.Err() != nil {
			break
		}
		run := o.runAdapter(ctx, report.RunID, a)
		report.Runs = append(report.Runs, run)
		report.New += run.New

		if _, ok := a.(DetailEnricher); ok && run.Status == RunSuccess {
			enrichers = append(enrichers, a)
		}
	}

	// Top-ups run once every source has been ingested.
	for _, a := range enrichers {
		if ctx.Err() != nil {
			break
		}
		report.Enriched += o.topUp(ctx, a.Name(), a.(DetailEnricher))
	}

	if o.cfg.CleanupDays > 0 {
		n, err := o.store.ExpireOlderThan(ctx, o.cfg.CleanupDays)
		if err != nil {
			o.logger.Error("failed to expire old postings", "error", err)
		}
		report.Expired = n
	}

	o.logger.Info("ingestion cycle complete",
		"run_id", report.RunID,
		"new", report.New,
		"enriched", report.Enriched,
		"expired", report.Expired,
	)
	return report, ctx.Err()
}

// runAdapter fetches from one source and persists what it returns.
func (o *Orchestrator) runAdapter(ctx context.Context, runID string, a model.Adapter) (run model.RunLog) {
	run = model.RunLog{
		RunID:     runID,
		Source:    a.Name(),
		StartedAt: o.now(),
	}
	defer func() {
		run.CompletedAt = o.now()
		if err := o.store.RecordRun(ctx, run); err != nil {
			o.logger.Error("failed to record run", "source", run.Source, "error", err)
		}
	}()

	if !a.Available(ctx) {
		o.logger.Warn("source unavailable, skipping", "source", a.Name())
		run.Status = RunSkipped
		return run
	}

	postings, err := a.Fetch(ctx)
	if err != nil {
		o.logger.Error("source fetch failed", "source", a.Name(), "error", err)
		run.Status = RunFailed
		run.ErrorMessage = err.Error()
		return run
	}

	run.Found = len(postings)
	for _, p := range postings {
		created, err := o.ingest(ctx, p)
		if err != nil {
			if errors.Is(err, dedup.ErrInvalidKeyInput) {
				o.logger.Debug("dropping posting without identity", "source", a.Name(), "title", p.Title)
			} else {
				o.logger.Error("failed to store posting", "source", a.Name(), "url", p.URL, "error", err)
			}
			continue
		}
		if created {
			run.New++
		} else {
			run.Duplicate++
		}
	}

	run.Status = RunSuccess
	o.logger.Info("source ingested",
		"source", a.Name(),
		"found", run.Found,
		"new", run.New,
		"duplicate", run.Duplicate,
	)
	return run
}

// ingest persists p and keyword-scores it when its details are final. A
// duplicate that arrives with details the stored copy lacks is merged.
func (o *Orchestrator) ingest(ctx context.Context, p model.Posting) (bool, error) {
	fp, err := dedup.Fingerprint(p.URL, p.Title, p.Company)
	if err != nil {
		return false, err
	}

	stored, created, err := o.store.Insert(ctx, fp, p)
	if err != nil {
		return false, err
	}

	if created {
		if p.DetailStatus != model.DetailPending {
			o.score(ctx, stored.ID, p)
		}
		return true, nil
	}

	if p.DetailStatus == model.DetailFetched && stored.DetailStatus != model.DetailFetched {
		if err := o.store.UpdateDetail(ctx, stored.ID, p); err != nil {
			return false, fmt.Errorf("merge details for %d: %w", stored.ID, err)
		}
		o.score(ctx, stored.ID, p)
	}
	return false, nil
}

func (o *Orchestrator) score(ctx context.Context, id int64, p model.Posting) {
	s := scoring.Score(p, o.profile)
	if err := o.store.UpdateKeywordScore(ctx, id, s); err != nil {
		o.logger.Error("failed to store keyword score", "id", id, "error", err)
	}
}

// topUp spends the fetch budget the adapter left unused on postings stored
// pending by earlier cycles, oldest first. It returns how many left pending.
func (o *Orchestrator) topUp(ctx context.Context, source model.Source, e DetailEnricher) int {
	if e.CredentialIssue() || e.Halted() != adapter.HaltNone {
		return 0
	}
	remaining := e.MaxFetches() - e.LastFetchCount()
	if remaining <= 0 {
		return 0
	}

	pending, err := o.store.GetPending(ctx, source, remaining)
	if err != nil {
		o.logger.Error("failed to load pending postings", "source", source, "error", err)
		return 0
	}
	if len(pending) == 0 {
		return 0
	}

	in := make([]model.Posting, len(pending))
	for i, sp := range pending {
		in[i] = sp.Posting
	}
	out := e.Enrich(ctx, in, remaining)

	var resolved int
	for i, p := range out {
		if p.DetailStatus == model.DetailPending {
			continue
		}
		id := pending[i].ID
		if err := o.store.UpdateDetail(ctx, id, p); err != nil {
			o.logger.Error("failed to store details", "id", id, "error", err)
			continue
		}
		o.score(ctx, id, p)
		resolved++
	}

	o.logger.Info("pending details topped up",
		"source", source,
		"candidates", len(pending),
		"resolved", resolved,
		"fetches", e.LastFetchCount(),
	)
	return resolved
}
