package store

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"serpradio/internal/model"
)

// LeadTimeCurve returns the externally maintained lead-time points for the
// given key, sorted by lead_days ascending. Read-only; the evaluator is the
// sole consumer.
func (s *Store) LeadTimeCurve(origin, destination string, cabin model.Cabin, departMonth time.Time) ([]model.LeadTimePoint, error) {
	rows, err := s.sql.Query(`
		SELECT lead_days, q25, q50, q75 FROM lead_time_curve
		WHERE origin = ? AND destination = ? AND cabin = ? AND depart_month = ?
		ORDER BY lead_days ASC
	`, origin, destination, string(cabin), departMonth.UTC().Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("store: lead_time_curve: %w", err)
	}
	defer rows.Close()

	var out []model.LeadTimePoint
	for rows.Next() {
		var p model.LeadTimePoint
		var q25, q50, q75 string
		if err := rows.Scan(&p.LeadDays, &q25, &q50, &q75); err != nil {
			return nil, fmt.Errorf("store: lead_time_curve scan: %w", err)
		}
		p.Q25, _ = decimal.NewFromString(q25)
		p.Q50, _ = decimal.NewFromString(q50)
		p.Q75, _ = decimal.NewFromString(q75)
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LeadDays < out[j].LeadDays })
	return out, rows.Err()
}

// PutLeadTimeCurve replaces the curve for a key. Exposed for test fixtures
// and operator seeding; the core itself only reads this table.
func (s *Store) PutLeadTimeCurve(origin, destination string, cabin model.Cabin, departMonth time.Time, points []model.LeadTimePoint) error {
	tx, err := s.sql.Begin()
	if err != nil {
		return fmt.Errorf("store: put_lead_time_curve begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`DELETE FROM lead_time_curve WHERE origin=? AND destination=? AND cabin=? AND depart_month=?`,
		origin, destination, string(cabin), departMonth.UTC().Format("2006-01-02"))
	if err != nil {
		return fmt.Errorf("store: put_lead_time_curve delete: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO lead_time_curve (origin, destination, cabin, depart_month, lead_days, q25, q50, q75)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("store: put_lead_time_curve prepare: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		_, err := stmt.Exec(origin, destination, string(cabin), departMonth.UTC().Format("2006-01-02"),
			p.LeadDays, p.Q25.String(), p.Q50.String(), p.Q75.String())
		if err != nil {
			return fmt.Errorf("store: put_lead_time_curve exec: %w", err)
		}
	}

	return tx.Commit()
}
