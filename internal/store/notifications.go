package store

import (
	"fmt"
	"time"

	"serpradio/internal/model"
)

// HasRecentEvent reports whether a NotificationEvent of eventType already
// exists for the given key within the last 24 hours.
func (s *Store) HasRecentEvent(origin, destination string, cabin model.Cabin, departMonth time.Time, eventType model.NotificationEventType, now time.Time) (bool, error) {
	var count int
	err := s.sql.QueryRow(`
		SELECT COUNT(*) FROM notification_event
		WHERE origin = ? AND destination = ? AND cabin = ? AND depart_month = ?
		  AND event_type = ? AND created_at > ?
	`,
		origin, destination, string(cabin), departMonth.UTC().Format("2006-01-02"),
		string(eventType), now.Add(-24*time.Hour).UTC().Format(time.RFC3339Nano),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("store: has_recent_event: %w", err)
	}
	return count > 0, nil
}

// InsertNotificationEvent appends one NotificationEvent row and returns its
// assigned ID.
func (s *Store) InsertNotificationEvent(ev model.NotificationEvent) (int64, error) {
	res, err := s.sql.Exec(`
		INSERT INTO notification_event (origin, destination, cabin, depart_month, event_type, delta_pct, price, baseline_p50, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		ev.Origin, ev.Destination, string(ev.Cabin), ev.DepartMonth.UTC().Format("2006-01-02"),
		string(ev.EventType), ev.DeltaPct.String(), ev.Price.String(), ev.BaselineP50.String(),
		ev.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("store: insert_notification_event: %w", err)
	}
	return res.LastInsertId()
}
