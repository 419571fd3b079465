// Package usage persists per-provider call counters and curation run audit
// rows so free-tier consumption survives restarts and can be tracked month
// to month.
package usage

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/eduseek/curator/internal/model"
)

// Store wraps a sqlite database. Increment operations are serialized so two
// concurrent pipelines never lose a count.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// NewSQLite opens a sqlite database at the given path and configures WAL
// mode.
func NewSQLite(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "usage: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "usage: exec %s", pragma)
		}
	}
	return &Store{db: db}, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS provider_usage (
	provider     TEXT NOT NULL,
	period       TEXT NOT NULL,
	calls_made   INTEGER NOT NULL DEFAULT 0,
	failures     INTEGER NOT NULL DEFAULT 0,
	free_ceiling INTEGER NOT NULL DEFAULT 0,
	per_call_usd REAL NOT NULL DEFAULT 0,
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (provider, period)
);

CREATE TABLE IF NOT EXISTS curation_runs (
	id         TEXT PRIMARY KEY,
	region     TEXT NOT NULL,
	query      TEXT NOT NULL,
	provider   TEXT NOT NULL,
	results    INTEGER NOT NULL,
	avg_score  REAL NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_curation_runs_region ON curation_runs(region);
`

// Migrate applies the schema.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, migration)
	return eris.Wrap(err, "usage: migrate")
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Period formats t as the YYYY-MM billing period key.
func Period(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// RecordCall increments a provider's billable call count for the period,
// creating the row with the given ceiling/price on first use. Returns the
// updated counter.
func (s *Store) RecordCall(ctx context.Context, provider, period string, ceiling int, perCallUSD float64) (model.ProviderUsage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO provider_usage (provider, period, calls_made, free_ceiling, per_call_usd, updated_at)
		VALUES (?, ?, 1, ?, ?, ?)
		ON CONFLICT(provider, period) DO UPDATE SET
			calls_made = calls_made + 1,
			free_ceiling = excluded.free_ceiling,
			per_call_usd = excluded.per_call_usd,
			updated_at = excluded.updated_at`,
		provider, period, ceiling, perCallUSD, time.Now().UTC(),
	)
	if err != nil {
		return model.ProviderUsage{}, eris.Wrapf(err, "usage: record call %s", provider)
	}
	return s.get(ctx, provider, period)
}

// RecordFailure increments a provider's failure counter without billing.
func (s *Store) RecordFailure(ctx context.Context, provider, period string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO provider_usage (provider, period, failures, updated_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(provider, period) DO UPDATE SET
			failures = failures + 1,
			updated_at = excluded.updated_at`,
		provider, period, time.Now().UTC(),
	)
	return eris.Wrapf(err, "usage: record failure %s", provider)
}

// Get returns a provider's counter for the period; a zero-valued counter
// when the provider has not been used yet.
func (s *Store) Get(ctx context.Context, provider, period string) (model.ProviderUsage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(ctx, provider, period)
}

func (s *Store) get(ctx context.Context, provider, period string) (model.ProviderUsage, error) {
	u := model.ProviderUsage{Provider: provider, Period: period}
	err := s.db.QueryRowContext(ctx, `
		SELECT calls_made, failures, free_ceiling, per_call_usd
		FROM provider_usage WHERE provider = ? AND period = ?`,
		provider, period,
	).Scan(&u.CallsMade, &u.Failures, &u.FreeCeiling, &u.PerCallUSD)
	if err == sql.ErrNoRows {
		return u, nil
	}
	if err != nil {
		return u, eris.Wrapf(err, "usage: get %s", provider)
	}
	return u, nil
}

// List returns every provider counter for the period.
func (s *Store) List(ctx context.Context, period string) ([]model.ProviderUsage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT provider, calls_made, failures, free_ceiling, per_call_usd
		FROM provider_usage WHERE period = ? ORDER BY provider`,
		period,
	)
	if err != nil {
		return nil, eris.Wrap(err, "usage: list")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.ProviderUsage
	for rows.Next() {
		u := model.ProviderUsage{Period: period}
		if err := rows.Scan(&u.Provider, &u.CallsMade, &u.Failures, &u.FreeCeiling, &u.PerCallUSD); err != nil {
			return nil, eris.Wrap(err, "usage: scan")
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Reset zeroes counters for the period. Administrative action only.
func (s *Store) Reset(ctx context.Context, period string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM provider_usage WHERE period = ?`, period)
	return eris.Wrapf(err, "usage: reset %s", period)
}

// Run is one pipeline invocation's audit row.
type Run struct {
	ID       string
	Region   string
	Query    string
	Provider string
	Results  int
	AvgScore float64
}

// LogRun records a completed pipeline invocation.
func (s *Store) LogRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO curation_runs (id, region, query, provider, results, avg_score, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Region, run.Query, run.Provider, run.Results, run.AvgScore, time.Now().UTC(),
	)
	return eris.Wrap(err, "usage: log run")
}
