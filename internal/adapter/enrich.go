package adapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/amishk599/jobhound/internal/extract"
	"github.com/amishk599/jobhound/internal/model"
	"github.com/amishk599/jobhound/internal/ratelimit"
)

const (
	detailPacerKey        = "linkedin"
	sessionCookie         = "li_at"
	maxDetailBody         = 5 << 20
	statusLinkedInBlocked = 999

	alertCookieMissing = "Cookie LinkedIn absent. Ajoutez LINKEDIN_LI_AT_COOKIE dans .env pour activer le fetch."
	alertCookieExpired = "Cookie LinkedIn expire. Renouvelez la valeur LINKEDIN_LI_AT_COOKIE dans .env."
)

// HaltReason explains why an enrichment pass stopped early.
type HaltReason string

const (
	HaltNone        HaltReason = ""
	HaltAuth        HaltReason = "auth"
	HaltRateLimited HaltReason = "rate_limited"
)

// fetchOutcome classifies one detail page request.
type fetchOutcome int

const (
	outcomeOK fetchOutcome = iota
	outcomeAuth
	outcomeRateLimited
	outcomeBlocked
	outcomeError
)

func (o fetchOutcome) String() string {
	switch o {
	case outcomeOK:
		return "ok"
	case outcomeAuth:
		return "auth"
	case outcomeRateLimited:
		return "rate_limited"
	case outcomeBlocked:
		return "blocked"
	default:
		return "error"
	}
}

// EnrichConfig controls detail page fetching.
type EnrichConfig struct {
	Enabled       bool
	SessionCookie string
	MaxFetches    int
	UserAgents    []string
}

// Enricher fetches detail pages for inbox postings. Each posting moves through
// pending -> fetching -> fetched|failed. An authentication or rate-limit
// response fails the rest of the batch and halts the pass.
//
// The credential flags and the alert latch last for one ingestion run and are
// cleared by Reset.
type Enricher struct {
	cfg    EnrichConfig
	client *http.Client
	pacer  *ratelimit.Pacer
	alert  func(string) error
	logger *slog.Logger

	lastFetchCount  int
	credentialIssue bool
	alertSent       bool
	halt            HaltReason
}

// NewEnricher creates an Enricher. alert receives credential warnings and may
// be nil.
func NewEnricher(cfg EnrichConfig, client *http.Client, pacer *ratelimit.Pacer, alert func(string) error, logger *slog.Logger) *Enricher {
	return &Enricher{
		cfg:    cfg,
		client: client,
		pacer:  pacer,
		alert:  alert,
		logger: logger,
	}
}

// Reset clears the run-scoped flags.
func (e *Enricher) Reset() {
	e.lastFetchCount = 0
	e.credentialIssue = false
	e.alertSent = false
	e.halt = HaltNone
}

// LastFetchCount is the number of detail requests made by the latest Enrich call.
func (e *Enricher) LastFetchCount() int { return e.lastFetchCount }

// CredentialIssue reports a missing or rejected session cookie in this run.
func (e *Enricher) CredentialIssue() bool { return e.credentialIssue }

// Halted reports why the latest pass stopped early, if it did.
func (e *Enricher) Halted() HaltReason { return e.halt }

// MaxFetches is the per-run request budget.
func (e *Enricher) MaxFetches() int { return e.cfg.MaxFetches }

// Enrich fetches details for at most maxFetches pending postings and returns a
// copy of postings with their fields and detail status updated. Postings past
// the budget keep their status. Postings that are not pending are left alone.
func (e *Enricher) Enrich(ctx context.Context, postings []model.Posting, maxFetches int) []model.Posting {
	out := slices.Clone(postings)
	e.lastFetchCount = 0

	if len(out) == 0 {
		return out
	}
	if !e.cfg.Enabled {
		// Nothing is owed when detail fetching is off; the alert data is final.
		settleRemaining(out)
		return out
	}
	if e.cfg.SessionCookie == "" {
		failRemaining(out, 0)
		e.credentialIssue = true
		e.sendAlert(alertCookieMissing)
		return out
	}
	if maxFetches <= 0 {
		return out
	}

	for i := range out {
		if !awaitingDetail(out[i].DetailStatus) {
			continue
		}
		if e.lastFetchCount >= maxFetches {
			break
		}
		if err := e.pacer.Wait(ctx, detailPacerKey); err != nil {
			break
		}

		out[i].DetailStatus = model.DetailFetching
		e.lastFetchCount++
		outcome, fields, err := e.fetch(ctx, out[i].URL)

		switch outcome {
		case outcomeOK:
			applyDetail(&out[i], fields)
			out[i].DetailStatus = model.DetailFetched
		case outcomeAuth:
			e.logger.Error("detail fetch rejected, session cookie expired", "url", out[i].URL)
			failRemaining(out, i)
			e.credentialIssue = true
			e.halt = HaltAuth
			e.sendAlert(alertCookieExpired)
			return out
		case outcomeRateLimited:
			e.logger.Warn("detail fetch rate limited, stopping pass", "url", out[i].URL)
			failRemaining(out, i)
			e.halt = HaltRateLimited
			return out
		default:
			if ctx.Err() != nil {
				// Interrupted by shutdown; leave it for the next run.
				out[i].DetailStatus = model.DetailPending
				return out
			}
			e.logger.Warn("detail fetch failed", "url", out[i].URL, "outcome", outcome.String(), "error", err)
			out[i].DetailStatus = model.DetailFailed
		}
	}
	return out
}

func awaitingDetail(s model.DetailStatus) bool {
	return s == model.DetailPending || s == model.DetailFetching || s == ""
}

// failRemaining marks every posting from index from on that still awaits detail
// as failed.
func failRemaining(postings []model.Posting, from int) {
	for i := from; i < len(postings); i++ {
		if awaitingDetail(postings[i].DetailStatus) {
			postings[i].DetailStatus = model.DetailFailed
		}
	}
}

// settleRemaining marks every posting that still awaits detail as fetched,
// keeping the fields it already has.
func settleRemaining(postings []model.Posting) {
	for i := range postings {
		if awaitingDetail(postings[i].DetailStatus) {
			postings[i].DetailStatus = model.DetailFetched
		}
	}
}

// applyDetail overwrites only the fields the detail page provided.
func applyDetail(p *model.Posting, d extract.DetailFields) {
	if d.Description != "" {
		p.Description = d.Description
	}
	if d.ContractType != "" {
		p.ContractType = d.ContractType
	}
	if d.SalaryMin != nil {
		p.SalaryMin = d.SalaryMin
	}
	if d.SalaryMax != nil {
		p.SalaryMax = d.SalaryMax
	}
}

func (e *Enricher) sendAlert(msg string) {
	if e.alertSent || e.alert == nil {
		return
	}
	if err := e.alert(msg); err != nil {
		e.logger.Warn("failed to send credential alert", "error", err)
		return
	}
	e.alertSent = true
}

var loginPathPrefixes = []string{"/login", "/signup", "/uas/login", "/authwall"}

func (e *Enricher) fetch(ctx context.Context, link string) (fetchOutcome, extract.DetailFields, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return outcomeError, extract.DetailFields{}, fmt.Errorf("detail request for %s: %w", link, err)
	}
	req.Header.Set("User-Agent", pickUserAgent(e.cfg.UserAgents))
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "fr-FR,fr;q=0.9,en;q=0.8")
	req.Header.Set("Connection", "keep-alive")
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: e.cfg.SessionCookie})

	resp, err := e.client.Do(req)
	if err != nil {
		return outcomeError, extract.DetailFields{}, fmt.Errorf("detail fetch for %s: %w", link, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return outcomeAuth, extract.DetailFields{}, &model.HTTPError{StatusCode: resp.StatusCode}
	case http.StatusTooManyRequests:
		return outcomeRateLimited, extract.DetailFields{}, &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: model.ParseRetryAfter(resp.Header.Get("Retry-After")),
		}
	case statusLinkedInBlocked:
		return outcomeBlocked, extract.DetailFields{}, &model.HTTPError{StatusCode: resp.StatusCode}
	default:
		return outcomeError, extract.DetailFields{}, &model.HTTPError{
			StatusCode: resp.StatusCode,
			Err:        errors.New("unexpected status"),
		}
	}

	if isLoginPage(resp.Request) {
		return outcomeAuth, extract.DetailFields{}, errors.New("redirected to login page")
	}

	fields, err := extract.ParseDetailPage(io.LimitReader(resp.Body, maxDetailBody))
	if err != nil {
		return outcomeError, extract.DetailFields{}, err
	}
	return outcomeOK, fields, nil
}

// isLoginPage reports whether the request that produced the final response,
// after redirects, targets a sign-in page.
func isLoginPage(req *http.Request) bool {
	if req == nil || req.URL == nil {
		return false
	}
	path := strings.ToLower(req.URL.Path)
	for _, prefix := range loginPathPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
