// Package store is the durable, queryable record of price observations,
// route baselines, lead-time curves, and notification events.
package store

import (
	"database/sql"
	"fmt"

	"serpradio/internal/logger"

	_ "modernc.org/sqlite"
)

// Store wraps a SQLite connection holding all persisted state for the
// pricing-intelligence core.
type Store struct {
	sql *sql.DB
}

// Open opens (or creates) the SQLite database at path and runs migrations.
// path may be ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	s := &Store{sql: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	logger.Success("STORE", fmt.Sprintf("opened %s", path))
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.sql.Close()
}

// SqlDB exposes the underlying *sql.DB for callers that need raw access
// (tests, cmd-line tooling).
func (s *Store) SqlDB() *sql.DB {
	return s.sql
}

func (s *Store) migrate() error {
	version := 0
	s.sql.QueryRow(`SELECT version FROM schema_version ORDER BY version DESC LIMIT 1`).Scan(&version)

	if version < 1 {
		_, err := s.sql.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

			CREATE TABLE IF NOT EXISTS price_observation (
				id           INTEGER PRIMARY KEY AUTOINCREMENT,
				origin       TEXT NOT NULL,
				destination  TEXT NOT NULL,
				cabin        TEXT NOT NULL,
				depart_date  TEXT NOT NULL,
				price        TEXT NOT NULL,
				source       TEXT NOT NULL,
				observed_at  TEXT NOT NULL,
				UNIQUE(origin, destination, cabin, depart_date, source, observed_at)
			);
			CREATE INDEX IF NOT EXISTS idx_obs_route_month ON price_observation(origin, destination, cabin, depart_date);
			CREATE INDEX IF NOT EXISTS idx_obs_observed_at ON price_observation(observed_at);

			CREATE TABLE IF NOT EXISTS route_baseline (
				origin        TEXT NOT NULL,
				destination   TEXT NOT NULL,
				cabin         TEXT NOT NULL,
				depart_month  TEXT NOT NULL,
				p25           TEXT NOT NULL,
				p50           TEXT NOT NULL,
				p75           TEXT NOT NULL,
				n_samples     INTEGER NOT NULL,
				last_updated  TEXT NOT NULL,
				PRIMARY KEY (origin, destination, cabin, depart_month)
			);

			CREATE TABLE IF NOT EXISTS lead_time_curve (
				origin        TEXT NOT NULL,
				destination   TEXT NOT NULL,
				cabin         TEXT NOT NULL,
				depart_month  TEXT NOT NULL,
				lead_days     INTEGER NOT NULL,
				q25           TEXT NOT NULL,
				q50           TEXT NOT NULL,
				q75           TEXT NOT NULL,
				PRIMARY KEY (origin, destination, cabin, depart_month, lead_days)
			);

			CREATE TABLE IF NOT EXISTS notification_event (
				id            INTEGER PRIMARY KEY AUTOINCREMENT,
				origin        TEXT NOT NULL,
				destination   TEXT NOT NULL,
				cabin         TEXT NOT NULL,
				depart_month  TEXT NOT NULL,
				event_type    TEXT NOT NULL,
				delta_pct     TEXT NOT NULL,
				price         TEXT NOT NULL,
				baseline_p50  TEXT NOT NULL,
				created_at    TEXT NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_notif_key_time ON notification_event(origin, destination, cabin, depart_month, event_type, created_at);

			CREATE TABLE IF NOT EXISTS ingest_cycle (
				id                 TEXT PRIMARY KEY,
				started_at         TEXT NOT NULL,
				finished_at        TEXT NOT NULL,
				phase_reached      TEXT NOT NULL,
				observations_upserted INTEGER NOT NULL,
				batches_failed     INTEGER NOT NULL,
				new_notifications  INTEGER NOT NULL,
				degraded           INTEGER NOT NULL
			);

			INSERT OR IGNORE INTO schema_version (version) VALUES (1);
		`)
		if err != nil {
			return err
		}
	}

	return nil
}
