package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/amishk599/jobhound/internal/extract"
	"github.com/amishk599/jobhound/internal/model"
	"github.com/amishk599/jobhound/internal/ratelimit"
)

// Ensure SearchIndexAdapter implements model.Adapter.
var _ model.Adapter = (*SearchIndexAdapter)(nil)

const (
	searchIndexPacerKey = "search-index"
	defaultHitsPerPage  = 20
	maxDiscoveryBody    = 5 << 20
)

// SearchIndexConfig configures the Welcome to the Jungle adapter.
type SearchIndexConfig struct {
	BaseURL      string
	Queries      []string
	Location     string
	ContractType string
	MaxPages     int
	HitsPerPage  int
}

// SearchIndexAdapter queries the Algolia index behind Welcome to the Jungle.
// The index credentials are scraped from the public jobs page once and cached.
type SearchIndexAdapter struct {
	cfg    SearchIndexConfig
	client *http.Client
	pacer  *ratelimit.Pacer
	filter model.Filter
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	creds *extract.IndexCredentials
}

// NewSearchIndexAdapter creates the adapter. filter may be nil to keep every hit.
func NewSearchIndexAdapter(cfg SearchIndexConfig, client *http.Client, pacer *ratelimit.Pacer, filter model.Filter, logger *slog.Logger) *SearchIndexAdapter {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.HitsPerPage <= 0 {
		cfg.HitsPerPage = defaultHitsPerPage
	}
	return &SearchIndexAdapter{
		cfg:    cfg,
		client: client,
		pacer:  pacer,
		filter: filter,
		logger: logger,
		now:    time.Now,
	}
}

func (a *SearchIndexAdapter) Name() model.Source { return model.SourceSearchIndex }

// Available reports whether the index credentials could be discovered.
func (a *SearchIndexAdapter) Available(ctx context.Context) bool {
	if _, err := a.credentials(ctx); err != nil {
		a.logger.Warn("search index unavailable", "error", err)
		return false
	}
	return true
}

// Fetch runs every configured query.
func (a *SearchIndexAdapter) Fetch(ctx context.Context) ([]model.Posting, error) {
	return a.Search(ctx, a.cfg.Queries)
}

// Search runs queries against the index and returns the mapped, filtered hits.
// A failing page request is logged and ends that query only.
func (a *SearchIndexAdapter) Search(ctx context.Context, queries []string) ([]model.Posting, error) {
	creds, err := a.credentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrSourceUnavailable, err)
	}

	var postings []model.Posting
	for _, q := range queries {
		if err := ctx.Err(); err != nil {
			return postings, err
		}
		postings = append(postings, a.searchQuery(ctx, creds, q)...)
	}
	return postings, nil
}

func (a *SearchIndexAdapter) searchQuery(ctx context.Context, creds extract.IndexCredentials, query string) []model.Posting {
	var postings []model.Posting
	for page := 0; page < a.cfg.MaxPages; page++ {
		if err := a.pacer.Wait(ctx, searchIndexPacerKey); err != nil {
			return postings
		}

		resp, err := a.queryPage(ctx, creds, query, page)
		if err != nil {
			a.logger.Error("search index query failed", "query", query, "page", page, "error", err)
			return postings
		}
		if len(resp.Hits) == 0 {
			break
		}

		for _, hit := range resp.Hits {
			p, ok := a.hitToPosting(hit)
			if !ok {
				a.logger.Debug("dropping incomplete search index hit", "query", query)
				continue
			}
			if a.filter != nil && !a.filter.Match(p) {
				continue
			}
			postings = append(postings, p)
		}

		if resp.NbPages > 0 && page >= resp.NbPages-1 {
			break
		}
	}

	a.logger.Info("search index query complete", "query", query, "postings", len(postings))
	return postings
}

type indexQuery struct {
	Query                 string   `json:"query"`
	Page                  int      `json:"page"`
	HitsPerPage           int      `json:"hitsPerPage"`
	AttributesToRetrieve  []string `json:"attributesToRetrieve"`
	AttributesToHighlight []string `json:"attributesToHighlight"`
}

type indexResponse struct {
	Hits    []map[string]any `json:"hits"`
	NbPages int              `json:"nbPages"`
}

func (a *SearchIndexAdapter) queryPage(ctx context.Context, creds extract.IndexCredentials, query string, page int) (indexResponse, error) {
	body, err := json.Marshal(indexQuery{
		Query:                 query,
		Page:                  page,
		HitsPerPage:           a.cfg.HitsPerPage,
		AttributesToRetrieve:  []string{"*"},
		AttributesToHighlight: []string{},
	})
	if err != nil {
		return indexResponse{}, fmt.Errorf("search index query %q: %w", query, err)
	}

	endpoint := fmt.Sprintf("https://%s-dsn.algolia.net/1/indexes/%s/query",
		strings.ToLower(creds.AppID), url.PathEscape(creds.Index))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return indexResponse{}, fmt.Errorf("search index query %q: %w", query, err)
	}
	req.Header.Set("X-Algolia-Application-Id", creds.AppID)
	req.Header.Set("X-Algolia-API-Key", creds.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", SearchIndexUserAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return indexResponse{}, fmt.Errorf("search index query %q: %w", query, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return indexResponse{}, &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: model.ParseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("search index query %q: unexpected status %d", query, resp.StatusCode),
		}
	}

	var out indexResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return indexResponse{}, fmt.Errorf("search index query %q: %w", query, err)
	}
	return out, nil
}

// credentials returns the cached index credentials, discovering them on first
// use. Failures are not cached so a later cycle can retry.
func (a *SearchIndexAdapter) credentials(ctx context.Context) (extract.IndexCredentials, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.creds != nil {
		return *a.creds, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.BaseURL+"/en/jobs", nil)
	if err != nil {
		return extract.IndexCredentials{}, fmt.Errorf("search index discovery: %w", err)
	}
	req.Header.Set("User-Agent", SearchIndexUserAgent)
	resp, err := a.client.Do(req)
	if err != nil {
		return extract.IndexCredentials{}, fmt.Errorf("search index discovery: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return extract.IndexCredentials{}, &model.HTTPError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("search index discovery: unexpected status %d", resp.StatusCode),
		}
	}

	page, err := io.ReadAll(io.LimitReader(resp.Body, maxDiscoveryBody))
	if err != nil {
		return extract.IndexCredentials{}, fmt.Errorf("search index discovery: %w", err)
	}
	creds, err := extract.ParseIndexCredentials(string(page))
	if err != nil {
		return extract.IndexCredentials{}, err
	}

	a.creds = &creds
	a.logger.Debug("search index credentials discovered", "app_id", creds.AppID, "index", creds.Index)
	return creds, nil
}

var (
	titleKeys       = []string{"title", "name", "job_title"}
	companyKeys     = []string{"company_name", "organization_name", "company", "organization"}
	urlKeys         = []string{"public_url", "url", "apply_url"}
	contractKeys    = []string{"contract_type", "contract_type_name", "contract"}
	descriptionKeys = []string{"description", "mission", "profile", "summary", "description_text"}
	idKeys          = []string{"id", "objectID"}
)

// hitToPosting maps one index hit. ok is false when the title, company or URL
// is missing.
func (a *SearchIndexAdapter) hitToPosting(hit map[string]any) (model.Posting, bool) {
	title := stringValue(firstValue(hit, titleKeys))

	companyRaw := firstValue(hit, companyKeys)
	if obj, isObj := companyRaw.(map[string]any); isObj {
		companyRaw = obj["name"]
	}
	company := stringValue(companyRaw)

	link := stringValue(firstValue(hit, urlKeys))
	if strings.HasPrefix(link, "/") {
		link = a.cfg.BaseURL + link
	}

	if title == "" || company == "" || link == "" {
		return model.Posting{}, false
	}

	return model.Posting{
		Source:       model.SourceSearchIndex,
		ExternalID:   stringValue(firstValue(hit, idKeys)),
		URL:          link,
		Title:        title,
		Company:      company,
		Location:     hitLocation(hit),
		ContractType: hitContract(hit),
		SalaryMin:    intValue(hit["salary_min"]),
		SalaryMax:    intValue(hit["salary_max"]),
		Description:  hitDescription(hit),
		DetailStatus: model.DetailFetched,
		ScrapedAt:    a.now(),
	}, true
}

func hitLocation(hit map[string]any) string {
	if office, ok := hit["office"].(map[string]any); ok {
		var parts []string
		for _, key := range []string{"city", "country"} {
			if v := stringValue(office[key]); v != "" {
				parts = append(parts, v)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, ", ")
		}
	}
	return stringValue(hit["location"])
}

func hitContract(hit map[string]any) string {
	v := firstValue(hit, contractKeys)
	if list, ok := v.([]any); ok {
		parts := make([]string, 0, len(list))
		for _, item := range list {
			parts = append(parts, stringValue(item))
		}
		return strings.Join(parts, ", ")
	}
	return stringValue(v)
}

// hitDescription flattens the description. Object values are joined in key
// order so the result is stable.
func hitDescription(hit map[string]any) string {
	v := firstValue(hit, descriptionKeys)
	if obj, ok := v.(map[string]any); ok {
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, stringValue(obj[k]))
		}
		v = strings.Join(parts, " ")
	}
	return extract.PlainText(stringValue(v))
}

// firstValue returns the first value under keys that is neither null nor an
// empty string.
func firstValue(hit map[string]any, keys []string) any {
	for _, k := range keys {
		v, ok := hit[k]
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr && s == "" {
			continue
		}
		return v
	}
	return nil
}

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func intValue(v any) *int {
	var n int
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil
		}
		n = int(t)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return nil
		}
		n = parsed
	default:
		return nil
	}
	return &n
}
