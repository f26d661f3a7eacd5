package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/amishk599/jobhound/internal/model"
)

// Ensure PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS jobs (
	id            BIGSERIAL PRIMARY KEY,
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
	keyword_score DOUBLE PRECISION,
	ai_score      DOUBLE PRECISION,
	final_score   DOUBLE PRECISION,
	ai_reasoning  TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL DEFAULT 'new',
	scraped_at    TIMESTAMPTZ NOT NULL,
	scored_at     TIMESTAMPTZ,
	notified_at   TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_jobs_scorable ON jobs (status, keyword_score);
CREATE INDEX IF NOT EXISTS idx_jobs_pending ON jobs (source, detail_status, scraped_at);
CREATE TABLE IF NOT EXISTS scrape_logs (
	id             BIGSERIAL PRIMARY KEY,
	run_id         TEXT NOT NULL,
	source         TEXT NOT NULL,
	started_at     TIMESTAMPTZ NOT NULL,
	completed_at   TIMESTAMPTZ,
	jobs_found     INTEGER NOT NULL DEFAULT 0,
	jobs_new       INTEGER NOT NULL DEFAULT 0,
	jobs_duplicate INTEGER NOT NULL DEFAULT 0,
	error_message  TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL
);`

// PostgresStore persists postings and run logs in PostgreSQL through a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPostgresStore creates and verifies a pgxpool connection pool and ensures
// the schema exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is empty")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &PostgresStore{pool: pool, now: time.Now}, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Insert stores p unless its fingerprint is already known.
func (s *PostgresStore) Insert(ctx context.Context, fingerprint string, p model.Posting) (model.StoredPosting, bool, error) {
	scrapedAt := p.ScrapedAt
	if scrapedAt.IsZero() {
		scrapedAt = s.now()
	}

	var (
		stored  model.StoredPosting
		created bool
	)
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `INSERT INTO jobs (fingerprint, source, external_id, url, title,
			company, location, contract_type, salary_min, salary_max, description, detail_status,
			status, scraped_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			ON CONFLICT (fingerprint) DO NOTHING`,
			fingerprint, string(p.Source), p.ExternalID, p.URL, p.Title, p.Company, p.Location,
			p.ContractType, p.SalaryMin, p.SalaryMax, p.Description,
			string(persistedDetailStatus(p)), string(model.StatusNew), scrapedAt.UTC(),
		)
		if err != nil {
			return err
		}
		created = tag.RowsAffected() == 1

		stored, err = scanPgPosting(tx.QueryRow(ctx,
			`SELECT `+postingColumns+` FROM jobs WHERE fingerprint = $1`, fingerprint))
		return err
	})
	if err != nil {
		return model.StoredPosting{}, false, fmt.Errorf("inserting posting %s: %w", fingerprint, err)
	}
	return stored, created, nil
}

// UpdateDetail merges the non-empty detail fields of p into posting id.
func (s *PostgresStore) UpdateDetail(ctx context.Context, id int64, p model.Posting) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		existing, err := scanPgPosting(tx.QueryRow(ctx,
			`SELECT `+postingColumns+` FROM jobs WHERE id = $1 FOR UPDATE`, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}

		mergeDetail(&existing, p)
		_, err = tx.Exec(ctx, `UPDATE jobs SET description = $1, contract_type = $2,
			salary_min = $3, salary_max = $4, location = $5, detail_status = $6 WHERE id = $7`,
			existing.Description, existing.ContractType, existing.SalaryMin, existing.SalaryMax,
			existing.Location, string(existing.DetailStatus), id,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("updating detail of posting %d: %w", id, err)
	}
	return nil
}

// UpdateKeywordScore sets the keyword score of posting id.
func (s *PostgresStore) UpdateKeywordScore(ctx context.Context, id int64, score float64) error {
	if _, err := s.pool.Exec(ctx, `UPDATE jobs SET keyword_score = $1 WHERE id = $2`, score, id); err != nil {
		return fmt.Errorf("updating keyword score of posting %d: %w", id, err)
	}
	return nil
}

// GetPending returns new postings of source still owed detail, oldest first.
func (s *PostgresStore) GetPending(ctx context.Context, source model.Source, limit int) ([]model.StoredPosting, error) {
	return s.query(ctx, "pending postings",
		`SELECT `+postingColumns+` FROM jobs
		WHERE source = $1 AND status = $2 AND detail_status = $3
		ORDER BY scraped_at ASC, id ASC LIMIT $4`,
		string(source), string(model.StatusNew), string(model.DetailPending), pgLimit(limit),
	)
}

// GetScorable returns new, fully fetched postings whose keyword score reaches
// threshold, best first.
func (s *PostgresStore) GetScorable(ctx context.Context, threshold float64, limit int) ([]model.StoredPosting, error) {
	return s.query(ctx, "scorable postings",
		`SELECT `+postingColumns+` FROM jobs
		WHERE status = $1 AND detail_status = $2 AND keyword_score IS NOT NULL AND keyword_score >= $3
		ORDER BY keyword_score DESC, id ASC LIMIT $4`,
		string(model.StatusNew), string(model.DetailFetched), threshold, pgLimit(limit),
	)
}

// ApplyScores stores AI scores and the combined final score. Unknown ids are
// skipped. Returns the updated postings.
func (s *PostgresStore) ApplyScores(ctx context.Context, scores []model.AIScore, w model.Weights) ([]model.StoredPosting, error) {
	var updated []model.StoredPosting
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		updated = updated[:0]
		now := s.now()
		for _, sc := range scores {
			p, err := scanPgPosting(tx.QueryRow(ctx,
				`SELECT `+postingColumns+` FROM jobs WHERE id = $1 FOR UPDATE`, sc.PostingID))
			if errors.Is(err, pgx.ErrNoRows) {
				continue
			}
			if err != nil {
				return err
			}

			applyScore(&p, sc, w, now)
			if _, err := tx.Exec(ctx, `UPDATE jobs SET ai_score = $1, ai_reasoning = $2,
				final_score = $3, status = $4, scored_at = $5 WHERE id = $6`,
				*p.AIScore, p.AIReasoning, *p.FinalScore, string(p.Status), *p.ScoredAt, p.ID,
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
func (s *PostgresStore) MarkNotified(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `UPDATE jobs SET status = $1, notified_at = $2 WHERE id = $3`,
		string(model.StatusNotified), s.now().UTC(), id)
	if err != nil {
		return fmt.Errorf("marking posting %d notified: %w", id, err)
	}
	return nil
}

// ExpireOlderThan deletes postings first seen more than days ago.
func (s *PostgresStore) ExpireOlderThan(ctx context.Context, days int) (int, error) {
	if days <= 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM jobs WHERE scraped_at < $1`, s.now().AddDate(0, 0, -days).UTC())
	if err != nil {
		return 0, fmt.Errorf("expiring postings older than %d days: %w", days, err)
	}
	return int(tag.RowsAffected()), nil
}

// RequeueFailed moves failed new postings back to pending. An empty source
// requeues every source.
func (s *PostgresStore) RequeueFailed(ctx context.Context, source model.Source) (int, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE jobs SET detail_status = $1
		WHERE detail_status = $2 AND status = $3 AND ($4 = '' OR source = $4)`,
		string(model.DetailPending), string(model.DetailFailed), string(model.StatusNew), string(source),
	)
	if err != nil {
		return 0, fmt.Errorf("requeueing failed postings: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// List returns stored postings, newest first.
func (s *PostgresStore) List(ctx context.Context, f model.ListFilter) ([]model.StoredPosting, error) {
	return s.query(ctx, "postings",
		`SELECT `+postingColumns+` FROM jobs
		WHERE ($1 = '' OR source = $1)
		ORDER BY scraped_at DESC, id DESC LIMIT $2`,
		string(f.Source), pgLimit(f.Limit),
	)
}

// Stats counts stored postings by lifecycle and detail status.
func (s *PostgresStore) Stats(ctx context.Context) (model.Stats, error) {
	var st model.Stats
	err := s.pool.QueryRow(ctx, `SELECT
		COUNT(*),
		COUNT(*) FILTER (WHERE status = 'new'),
		COUNT(*) FILTER (WHERE status = 'scored'),
		COUNT(*) FILTER (WHERE status = 'notified'),
		COUNT(*) FILTER (WHERE detail_status = 'pending'),
		COUNT(*) FILTER (WHERE detail_status = 'failed')
		FROM jobs`,
	).Scan(&st.Total, &st.New, &st.Scored, &st.Notified, &st.Pending, &st.Failed)
	if err != nil {
		return model.Stats{}, fmt.Errorf("computing stats: %w", err)
	}
	return st, nil
}

// RecordRun appends a run log row.
func (s *PostgresStore) RecordRun(ctx context.Context, r model.RunLog) error {
	var completed *time.Time
	if !r.CompletedAt.IsZero() {
		c := r.CompletedAt.UTC()
		completed = &c
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO scrape_logs (run_id, source, started_at,
		completed_at, jobs_found, jobs_new, jobs_duplicate, error_message, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		r.RunID, string(r.Source), r.StartedAt.UTC(), completed, r.Found, r.New,
		r.Duplicate, r.ErrorMessage, r.Status,
	)
	if err != nil {
		return fmt.Errorf("recording run %s for %s: %w", r.RunID, r.Source, err)
	}
	return nil
}

func (s *PostgresStore) query(ctx context.Context, what, query string, args ...any) ([]model.StoredPosting, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", what, err)
	}
	defer rows.Close()

	var out []model.StoredPosting
	for rows.Next() {
		p, err := scanPgPosting(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", what, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPgPosting(row rowScanner) (model.StoredPosting, error) {
	var (
		p                      model.StoredPosting
		source, detail, status string
		salaryMin, salaryMax   *int32
	)
	err := row.Scan(&p.ID, &p.Fingerprint, &source, &p.ExternalID, &p.URL, &p.Title, &p.Company,
		&p.Location, &p.ContractType, &salaryMin, &salaryMax, &p.Description, &detail,
		&p.KeywordScore, &p.AIScore, &p.FinalScore, &p.AIReasoning, &status, &p.ScrapedAt,
		&p.ScoredAt, &p.NotifiedAt)
	if err != nil {
		return model.StoredPosting{}, err
	}
	p.Source = model.Source(source)
	p.DetailStatus = model.DetailStatus(detail)
	p.Status = model.Status(status)
	p.SalaryMin = int32Ptr(salaryMin)
	p.SalaryMax = int32Ptr(salaryMax)
	return p, nil
}

func int32Ptr(v *int32) *int {
	if v == nil {
		return nil
	}
	i := int(*v)
	return &i
}

// pgLimit maps a non-positive limit to LIMIT ALL.
func pgLimit(limit int) *int {
	if limit <= 0 {
		return nil
	}
	return &limit
}
