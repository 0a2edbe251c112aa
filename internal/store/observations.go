package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"serpradio/internal/model"
)

// UpsertObservations inserts obs, replacing any row with an identical
// natural key (origin, destination, cabin, depart_date, source,
// observed_at). The whole batch commits atomically: readers see either the
// full batch or none of it.
func (s *Store) UpsertObservations(obs []model.PriceObservation) (int, error) {
	if len(obs) == 0 {
		return 0, nil
	}

	tx, err := s.sql.Begin()
	if err != nil {
		return 0, fmt.Errorf("store: upsert begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO price_observation (origin, destination, cabin, depart_date, price, source, observed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(origin, destination, cabin, depart_date, source, observed_at)
		DO UPDATE SET price = excluded.price
	`)
	if err != nil {
		return 0, fmt.Errorf("store: upsert prepare: %w", err)
	}
	defer stmt.Close()

	count := 0
	for _, o := range obs {
		_, err := stmt.Exec(
			o.Origin, o.Destination, string(o.Cabin),
			o.DepartDate.UTC().Format("2006-01-02"),
			o.Price.String(), o.Source,
			o.ObservedAt.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return 0, fmt.Errorf("store: upsert exec: %w", err)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: upsert commit: %w", err)
	}
	return count, nil
}

// RangeQuery returns observations for (origin, destination, cabin) whose
// depart_date falls in departMonth and whose observed_at is within
// [since, until]. Used by the baseline aggregator.
func (s *Store) RangeQuery(origin, destination string, cabin model.Cabin, departMonth time.Time, since, until time.Time) ([]model.PriceObservation, error) {
	rows, err := s.sql.Query(`
		SELECT origin, destination, cabin, depart_date, price, source, observed_at
		FROM price_observation
		WHERE origin = ? AND destination = ? AND cabin = ?
		  AND depart_date >= ? AND depart_date < ?
		  AND observed_at >= ? AND observed_at <= ?
	`,
		origin, destination, string(cabin),
		departMonth.UTC().Format("2006-01-02"),
		departMonth.UTC().AddDate(0, 1, 0).Format("2006-01-02"),
		since.UTC().Format(time.RFC3339Nano),
		until.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("store: range_query: %w", err)
	}
	defer rows.Close()

	var out []model.PriceObservation
	for rows.Next() {
		var o model.PriceObservation
		var cabinStr, departStr, priceStr, observedStr string
		if err := rows.Scan(&o.Origin, &o.Destination, &cabinStr, &departStr, &priceStr, &o.Source, &observedStr); err != nil {
			return nil, fmt.Errorf("store: range_query scan: %w", err)
		}
		o.Cabin = model.Cabin(cabinStr)
		o.DepartDate, _ = time.Parse("2006-01-02", departStr)
		o.Price, _ = decimal.NewFromString(priceStr)
		o.ObservedAt, _ = time.Parse(time.RFC3339Nano, observedStr)
		out = append(out, o)
	}
	return out, rows.Err()
}

// CurrentLowRecency bounds how old an observation may be and still count
// as the "current" low: only rows whose observed_at falls within this
// horizon of now are eligible. This is the single source of truth for
// "recent" in the current_low primitive's contract; callers with their own
// freshness requirements (e.g. the notifier's 1h drop-detection window)
// are governed by this same constant rather than keeping a second one.
const CurrentLowRecency = 1 * time.Hour

// CurrentLow returns the minimum price among observations whose depart_date
// falls within departMonth and whose observed_at is within CurrentLowRecency
// of now, and the most recent observed_at among rows tied at that minimum.
func (s *Store) CurrentLow(origin, destination string, cabin model.Cabin, departMonth time.Time, now time.Time) (model.CurrentLow, bool, error) {
	var priceStr sql.NullString
	var observedStr sql.NullString
	err := s.sql.QueryRow(`
		SELECT price, observed_at FROM price_observation
		WHERE origin = ? AND destination = ? AND cabin = ?
		  AND depart_date >= ? AND depart_date < ?
		  AND observed_at >= ?
		ORDER BY CAST(price AS REAL) ASC, observed_at DESC
		LIMIT 1
	`,
		origin, destination, string(cabin),
		departMonth.UTC().Format("2006-01-02"),
		departMonth.UTC().AddDate(0, 1, 0).Format("2006-01-02"),
		now.UTC().Add(-CurrentLowRecency).Format(time.RFC3339Nano),
	).Scan(&priceStr, &observedStr)
	if err == sql.ErrNoRows {
		return model.CurrentLow{}, false, nil
	}
	if err != nil {
		return model.CurrentLow{}, false, fmt.Errorf("store: current_low: %w", err)
	}

	price, _ := decimal.NewFromString(priceStr.String)
	observedAt, _ := time.Parse(time.RFC3339Nano, observedStr.String)
	return model.CurrentLow{Price: price, LastSeen: observedAt}, true, nil
}
