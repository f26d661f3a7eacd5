package model

import (
	"context"
	"time"
)

// Source identifies which adapter produced a posting.
type Source string

const (
	SourceSearchIndex Source = "search_index" // Welcome to the Jungle (Algolia)
	SourceInbox       Source = "inbox"        // LinkedIn job alert e-mails
)

// DetailStatus tracks whether a posting's description, contract and salary are final.
type DetailStatus string

const (
	DetailFetched DetailStatus = "fetched"
	DetailPending DetailStatus = "pending"
	DetailFailed  DetailStatus = "failed"

	// DetailFetching only exists while an enrichment request is in flight.
	// It is never persisted.
	DetailFetching DetailStatus = "fetching"
)

// Status is the scoring/notification lifecycle of a stored posting.
type Status string

const (
	StatusNew      Status = "new"
	StatusScored   Status = "scored"
	StatusNotified Status = "notified"
)

// Posting is a job offer as produced by a source adapter.
type Posting struct {
	Source       Source
	ExternalID   string // adapter-native id, empty for inbox postings
	URL          string
	Title        string
	Company      string
	Location     string
	ContractType string
	SalaryMin    *int
	SalaryMax    *int
	Description  string
	DetailStatus DetailStatus
	ScrapedAt    time.Time
}

// StoredPosting is a Posting as persisted, with its scores and lifecycle.
type StoredPosting struct {
	Posting
	ID           int64
	Fingerprint  string
	KeywordScore *float64
	AIScore      *float64
	FinalScore   *float64
	AIReasoning  string
	Status       Status
	ScoredAt     *time.Time
	NotifiedAt   *time.Time
}

// AIScore is an externally computed relevance score for one stored posting.
type AIScore struct {
	PostingID int64
	Score     float64
	Reasoning string
}

// Weights controls how the keyword and AI scores combine into the final score.
type Weights struct {
	Keyword float64
	AI      float64
}

// DefaultWeights rely on the AI score alone.
var DefaultWeights = Weights{Keyword: 0, AI: 1}

// RunLog records the outcome of one adapter within one ingestion cycle.
type RunLog struct {
	RunID        string
	Source       Source
	StartedAt    time.Time
	CompletedAt  time.Time
	Found        int
	New          int
	Duplicate    int
	ErrorMessage string
	Status       string // running, success, failed, skipped
}

// Stats summarizes the stored postings by lifecycle status.
type Stats struct {
	Total    int
	New      int
	Scored   int
	Notified int
	Pending  int // detail still owed
	Failed   int // detail enrichment gave up
}

// ListFilter narrows a listing of stored postings.
type ListFilter struct {
	Source Source // empty = all sources
	Limit  int
}

// Adapter produces postings from one source.
type Adapter interface {
	Name() Source
	// Available reports whether the source can be queried right now. Callers
	// skip unavailable adapters instead of failing the run.
	Available(ctx context.Context) bool
	Fetch(ctx context.Context) ([]Posting, error)
}

// Store persists postings. Every method runs as one atomic operation.
type Store interface {
	// Insert stores p under fingerprint. created is false when the fingerprint
	// already exists, in which case the existing record is returned untouched.
	Insert(ctx context.Context, fingerprint string, p Posting) (stored StoredPosting, created bool, err error)
	UpdateDetail(ctx context.Context, id int64, p Posting) error
	UpdateKeywordScore(ctx context.Context, id int64, score float64) error
	GetPending(ctx context.Context, source Source, limit int) ([]StoredPosting, error)
	GetScorable(ctx context.Context, threshold float64, limit int) ([]StoredPosting, error)
	ApplyScores(ctx context.Context, scores []AIScore, w Weights) ([]StoredPosting, error)
	MarkNotified(ctx context.Context, id int64) error
	ExpireOlderThan(ctx context.Context, days int) (int, error)
	RequeueFailed(ctx context.Context, source Source) (int, error)
	List(ctx context.Context, f ListFilter) ([]StoredPosting, error)
	Stats(ctx context.Context) (Stats, error)
	RecordRun(ctx context.Context, r RunLog) error
}

// Notifier delivers alerts to a human.
type Notifier interface {
	Notify(postings []StoredPosting) error
	SendMessage(text string) error
}

// Filter decides whether a posting matches the user's search criteria.
type Filter interface {
	Match(p Posting) bool
}
