package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"serpradio/internal/model"
)

// GetBaseline returns the materialised baseline row for the given key, if
// one has been computed.
func (s *Store) GetBaseline(origin, destination string, cabin model.Cabin, departMonth time.Time) (model.RouteBaseline, bool, error) {
	return queryBaseline(s.sql, origin, destination, cabin, departMonth)
}

func queryBaseline(q queryer, origin, destination string, cabin model.Cabin, departMonth time.Time) (model.RouteBaseline, bool, error) {
	var p25, p50, p75, lastUpdated string
	var n int
	err := q.QueryRow(`
		SELECT p25, p50, p75, n_samples, last_updated FROM route_baseline
		WHERE origin = ? AND destination = ? AND cabin = ? AND depart_month = ?
	`, origin, destination, string(cabin), departMonth.UTC().Format("2006-01-02")).
		Scan(&p25, &p50, &p75, &n, &lastUpdated)
	if err == sql.ErrNoRows {
		return model.RouteBaseline{}, false, nil
	}
	if err != nil {
		return model.RouteBaseline{}, false, fmt.Errorf("store: get_baseline: %w", err)
	}

	b := model.RouteBaseline{
		Origin: origin, Destination: destination, Cabin: cabin, DepartMonth: departMonth,
		NSamples: n,
	}
	b.P25, _ = decimal.NewFromString(p25)
	b.P50, _ = decimal.NewFromString(p50)
	b.P75, _ = decimal.NewFromString(p75)
	b.LastUpdated, _ = time.Parse(time.RFC3339Nano, lastUpdated)
	return b, true, nil
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryRow(query string, args ...interface{}) *sql.Row
}

// ReplaceBaselines rewrites the entire route_baseline table contents under
// a single transaction, so readers of the table see either the old or the
// new rows. The baseline aggregator calls it on both refresh paths: the
// concurrent path persists the generation it has just swapped in memory,
// and the blocking path persists before republishing in memory.
func (s *Store) ReplaceBaselines(rows []model.RouteBaseline) error {
	tx, err := s.sql.Begin()
	if err != nil {
		return fmt.Errorf("store: replace_baselines begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM route_baseline`); err != nil {
		return fmt.Errorf("store: replace_baselines delete: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO route_baseline (origin, destination, cabin, depart_month, p25, p50, p75, n_samples, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("store: replace_baselines prepare: %w", err)
	}
	defer stmt.Close()

	for _, b := range rows {
		_, err := stmt.Exec(
			b.Origin, b.Destination, string(b.Cabin), b.DepartMonth.UTC().Format("2006-01-02"),
			b.P25.String(), b.P50.String(), b.P75.String(), b.NSamples,
			b.LastUpdated.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("store: replace_baselines exec: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: replace_baselines commit: %w", err)
	}
	return nil
}

// AllObservationKeys returns the distinct (origin, destination, cabin,
// depart_month) combinations present in price_observation, used by the
// aggregator to know which baselines need recomputing.
func (s *Store) AllObservationKeys() ([]model.RouteBaseline, error) {
	rows, err := s.sql.Query(`
		SELECT DISTINCT origin, destination, cabin, substr(depart_date, 1, 7) || '-01'
		FROM price_observation
	`)
	if err != nil {
		return nil, fmt.Errorf("store: all_observation_keys: %w", err)
	}
	defer rows.Close()

	var out []model.RouteBaseline
	for rows.Next() {
		var origin, destination, cabin, month string
		if err := rows.Scan(&origin, &destination, &cabin, &month); err != nil {
			return nil, fmt.Errorf("store: all_observation_keys scan: %w", err)
		}
		departMonth, _ := time.Parse("2006-01-02", month)
		out = append(out, model.RouteBaseline{
			Origin: origin, Destination: destination, Cabin: model.Cabin(cabin), DepartMonth: departMonth,
		})
	}
	return out, rows.Err()
}
