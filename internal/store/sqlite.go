package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/amishk599/jobhound/internal/model"
	"github.com/amishk599/jobhound/internal/scoring"
)

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

// timeLayout is fixed width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000Z"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS jobs (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	fingerprint   TEXT NOT NULL UNIQUE,
	source        TEXT NOT NULL,
	external_id   TEXT NOT NULL DEFAULT '',
	url           TEXT NOT NULL DEFAULT '',
	title         TEXT NOT NULL,
	company       TEXT NOT NULL,
	location      TEXT NOT NULL DEFAULT '',
	contract_type TEXT NOT NULL DEFAULT '',
	salary_min    INTEGER,
	salary_max    INTEGER,
	description   TEXT NOT NULL DEFAULT '',
	detail_status TEXT NOT NULL DEFAULT 'pending',
	keyword_score REAL,
	ai_score      REAL,
	final_score   REAL,
	ai_reasoning  TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL DEFAULT 'new',
	scraped_at    TEXT NOT NULL,
	scored_at     TEXT,
	notified_at   TEXT
);
CREATE INDEX IF NOT EXISTS idx_jobs_scorable ON jobs (status, keyword_score);
CREATE INDEX IF NOT EXISTS idx_jobs_pending ON jobs (source, detail_status, scraped_at);
CREATE TABLE IF NOT EXISTS scrape_logs (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id         TEXT NOT NULL,
	source         TEXT NOT NULL,
	started_at     TEXT NOT NULL,
	completed_at   TEXT,
	jobs_found     INTEGER NOT NULL DEFAULT 0,
	jobs_new       INTEGER NOT NULL DEFAULT 0,
	jobs_duplicate INTEGER NOT NULL DEFAULT 0,
	error_message  TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL
);`

const postingColumns = `id, fingerprint, source, external_id, url, title, company, location,
	contract_type, salary_min, salary_max, description, detail_status, keyword_score,
	ai_score, final_score, ai_reasoning, status, scraped_at, scored_at, notified_at`

// SQLiteStore persists postings and run logs in a SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures the
// schema exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// A single connection serializes writers and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Insert stores p unless its fingerprint is already known.
func (s *SQLiteStore) Insert(ctx context.Context, fingerprint string, p model.Posting) (model.StoredPosting, bool, error) {
	scrapedAt := p.ScrapedAt
	if scrapedAt.IsZero() {
		scrapedAt = s.now()
	}

	var (
		stored  model.StoredPosting
		created bool
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO jobs (fingerprint, source, external_id, url, title,
			company, location, contract_type, salary_min, salary_max, description, detail_status,
			status, scraped_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (fingerprint) DO NOTHING`,
			fingerprint, string(p.Source), p.ExternalID, p.URL, p.Title, p.Company, p.Location,
			p.ContractType, intArg(p.SalaryMin), intArg(p.SalaryMax), p.Description,
			string(persistedDetailStatus(p)), string(model.StatusNew), formatTime(scrapedAt),
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		created = n == 1

		stored, err = scanSQLitePosting(tx.QueryRowContext(ctx,
			`SELECT `+postingColumns+` FROM jobs WHERE fingerprint = ?`, fingerprint))
		return err
	})
	if err != nil {
		return model.StoredPosting{}, false, fmt.Errorf("inserting posting %s: %w", fingerprint, err)
	}
	return stored, created, nil
}

// UpdateDetail merges the non-empty detail fields of p into posting id.
func (s *SQLiteStore) UpdateDetail(ctx context.Context, id int64, p model.Posting) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := scanSQLitePosting(tx.QueryRowContext(ctx,
			`SELECT `+postingColumns+` FROM jobs WHERE id = ?`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}

		mergeDetail(&existing, p)
		_, err = tx.ExecContext(ctx, `UPDATE jobs SET description = ?, contract_type = ?,
			salary_min = ?, salary_max = ?, location = ?, detail_status = ? WHERE id = ?`,
			existing.Description, existing.ContractType, intArg(existing.SalaryMin),
			intArg(existing.SalaryMax), existing.Location, string(existing.DetailStatus), id,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("updating detail of posting %d: %w", id, err)
	}
	return nil
}

// UpdateKeywordScore sets the keyword score of posting id.
func (s *SQLiteStore) UpdateKeywordScore(ctx context.Context, id int64, score float64) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE jobs SET keyword_score = ? WHERE id = ?`, score, id); err != nil {
		return fmt.Errorf("updating keyword score of posting %d: %w", id, err)
	}
	return nil
}

// GetPending returns new postings of source still owed detail, oldest first.
func (s *SQLiteStore) GetPending(ctx context.Context, source model.Source, limit int) ([]model.StoredPosting, error) {
	return s.query(ctx, "pending postings",
		`SELECT `+postingColumns+` FROM jobs
		WHERE source = ? AND status = ? AND detail_status = ?
		ORDER BY scraped_at ASC, id ASC LIMIT ?`,
		string(source), string(model.StatusNew), string(model.DetailPending), limitArg(limit),
	)
}

// GetScorable returns new, fully fetched postings whose keyword score reaches
// threshold, best first.
func (s *SQLiteStore) GetScorable(ctx context.Context, threshold float64, limit int) ([]model.StoredPosting, error) {
	return s.query(ctx, "scorable postings",
		`SELECT `+postingColumns+` FROM jobs
		WHERE status = ? AND detail_status = ? AND keyword_score IS NOT NULL AND keyword_score >= ?
		ORDER BY keyword_score DESC, id ASC LIMIT ?`,
		string(model.StatusNew), string(model.DetailFetched), threshold, limitArg(limit),
	)
}

// ApplyScores stores AI scores and the combined final score. Unknown ids are
// skipped. Returns the updated postings.
func (s *SQLiteStore) ApplyScores(ctx context.Context, scores []model.AIScore, w model.Weights) ([]model.StoredPosting, error) {
	var updated []model.StoredPosting
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		now := s.now()
		for _, sc := range scores {
			p, err := scanSQLitePosting(tx.QueryRowContext(ctx,
				`SELECT `+postingColumns+` FROM jobs WHERE id = ?`, sc.PostingID))
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			if err != nil {
				return err
			}

			applyScore(&p, sc, w, now)
			if _, err := tx.ExecContext(ctx, `UPDATE jobs SET ai_score = ?, ai_reasoning = ?,
				final_score = ?, status = ?, scored_at = ? WHERE id = ?`,
				*p.AIScore, p.AIReasoning, *p.FinalScore, string(p.Status), formatTime(now), p.ID,
			); err != nil {
				return err
			}
			updated = append(updated, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("applying ai scores: %w", err)
	}
	return updated, nil
}

// MarkNotified moves posting id to the notified status.
func (s *SQLiteStore) MarkNotified(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE jobs SET status = ?, notified_at = ? WHERE id = ?`,
		string(model.StatusNotified), formatTime(s.now()), id)
	if err != nil {
		return fmt.Errorf("marking posting %d notified: %w", id, err)
	}
	return nil
}

// ExpireOlderThan deletes postings first seen more than days ago.
func (s *SQLiteStore) ExpireOlderThan(ctx context.Context, days int) (int, error) {
	if days <= 0 {
		return 0, nil
	}
	cutoff := s.now().AddDate(0, 0, -days)
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE scraped_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("expiring postings older than %d days: %w", days, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expiring postings: %w", err)
	}
	return int(n), nil
}

// RequeueFailed moves failed new postings back to pending. An empty source
// requeues every source.
func (s *SQLiteStore) RequeueFailed(ctx context.Context, source model.Source) (int, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE jobs SET detail_status = ?
		WHERE detail_status = ? AND status = ? AND (? = '' OR source = ?)`,
		string(model.DetailPending), string(model.DetailFailed), string(model.StatusNew),
		string(source), string(source),
	)
	if err != nil {
		return 0, fmt.Errorf("requeueing failed postings: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("requeueing failed postings: %w", err)
	}
	return int(n), nil
}

// List returns stored postings, newest first.
func (s *SQLiteStore) List(ctx context.Context, f model.ListFilter) ([]model.StoredPosting, error) {
	return s.query(ctx, "postings",
		`SELECT `+postingColumns+` FROM jobs
		WHERE (? = '' OR source = ?)
		ORDER BY scraped_at DESC, id DESC LIMIT ?`,
		string(f.Source), string(f.Source), limitArg(f.Limit),
	)
}

// Stats counts stored postings by lifecycle and detail status.
func (s *SQLiteStore) Stats(ctx context.Context) (model.Stats, error) {
	var st model.Stats
	err := s.db.QueryRowContext(ctx, `SELECT
		COUNT(*),
		COALESCE(SUM(CASE WHEN status = 'new' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = 'scored' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = 'notified' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN detail_status = 'pending' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN detail_status = 'failed' THEN 1 ELSE 0 END), 0)
		FROM jobs`,
	).Scan(&st.Total, &st.New, &st.Scored, &st.Notified, &st.Pending, &st.Failed)
	if err != nil {
		return model.Stats{}, fmt.Errorf("computing stats: %w", err)
	}
	return st, nil
}

// RecordRun appends a run log row.
func (s *SQLiteStore) RecordRun(ctx context.Context, r model.RunLog) error {
	var completed any
	if !r.CompletedAt.IsZero() {
		completed = formatTime(r.CompletedAt)
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO scrape_logs (run_id, source, started_at,
		completed_at, jobs_found, jobs_new, jobs_duplicate, error_message, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, string(r.Source), formatTime(r.StartedAt), completed, r.Found, r.New,
		r.Duplicate, r.ErrorMessage, r.Status,
	)
	if err != nil {
		return fmt.Errorf("recording run %s for %s: %w", r.RunID, r.Source, err)
	}
	return nil
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) query(ctx context.Context, what, query string, args ...any) ([]model.StoredPosting, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", what, err)
	}
	defer rows.Close()

	var out []model.StoredPosting
	for rows.Next() {
		p, err := scanSQLitePosting(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", what, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLitePosting(row rowScanner) (model.StoredPosting, error) {
	var (
		p                               model.StoredPosting
		source, detail, status, scraped string
		salaryMin, salaryMax            sql.NullInt64
		keyword, ai, final              sql.NullFloat64
		scoredAt, notifiedAt            sql.NullString
	)
	err := row.Scan(&p.ID, &p.Fingerprint, &source, &p.ExternalID, &p.URL, &p.Title, &p.Company,
		&p.Location, &p.ContractType, &salaryMin, &salaryMax, &p.Description, &detail, &keyword,
		&ai, &final, &p.AIReasoning, &status, &scraped, &scoredAt, &notifiedAt)
	if err != nil {
		return model.StoredPosting{}, err
	}

	p.Source = model.Source(source)
	p.DetailStatus = model.DetailStatus(detail)
	p.Status = model.Status(status)
	p.SalaryMin = nullInt(salaryMin)
	p.SalaryMax = nullInt(salaryMax)
	p.KeywordScore = nullFloat(keyword)
	p.AIScore = nullFloat(ai)
	p.FinalScore = nullFloat(final)
	if p.ScrapedAt, err = parseTime(scraped); err != nil {
		return model.StoredPosting{}, err
	}
	if p.ScoredAt, err = parseNullTime(scoredAt); err != nil {
		return model.StoredPosting{}, err
	}
	if p.NotifiedAt, err = parseNullTime(notifiedAt); err != nil {
		return model.StoredPosting{}, err
	}
	return p, nil
}

// applyScore sets the AI fields and final score of p. A posting already
// notified keeps its status so it is not announced twice.
func applyScore(p *model.StoredPosting, sc model.AIScore, w model.Weights, now time.Time) {
	ai := sc.Score
	final := scoring.Combine(p.KeywordScore, ai, w)
	p.AIScore = &ai
	p.AIReasoning = sc.Reasoning
	p.FinalScore = &final
	if p.Status != model.StatusNotified {
		p.Status = model.StatusScored
	}
	scoredAt := now.UTC()
	p.ScoredAt = &scoredAt
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func intArg(v *int) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}

// limitArg maps a non-positive limit to SQLite's "no limit".
func limitArg(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
