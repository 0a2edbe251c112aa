package store

import (
	"fmt"
	"time"
)

// CycleSummary records the outcome of one ingestion cycle. Mirrors the
// teacher's scan_history row in shape and intent: one line an operator can
// read to know what a cycle did without scraping logs.
type CycleSummary struct {
	ID                   string
	StartedAt            time.Time
	FinishedAt           time.Time
	PhaseReached         string
	ObservationsUpserted int
	BatchesFailed        int
	NewNotifications     int
	Degraded             bool
}

// InsertCycleSummary appends one cycle summary row.
func (s *Store) InsertCycleSummary(c CycleSummary) error {
	degraded := 0
	if c.Degraded {
		degraded = 1
	}
	_, err := s.sql.Exec(`
		INSERT INTO ingest_cycle (id, started_at, finished_at, phase_reached, observations_upserted, batches_failed, new_notifications, degraded)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.ID, c.StartedAt.UTC().Format(time.RFC3339Nano), c.FinishedAt.UTC().Format(time.RFC3339Nano),
		c.PhaseReached, c.ObservationsUpserted, c.BatchesFailed, c.NewNotifications, degraded,
	)
	if err != nil {
		return fmt.Errorf("store: insert_cycle_summary: %w", err)
	}
	return nil
}
