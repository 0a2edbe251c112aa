package store

import (
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	_ "modernc.org/sqlite"

	"serpradio/internal/model"
)

// openTestStore opens an in-memory SQLite store and runs migrations.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", ":memory:?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	s := &Store{sql: sqlDB}
	if err := s.migrate(); err != nil {
		sqlDB.Close()
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func obs(origin, destination string, cabin model.Cabin, departDate time.Time, price float64, source string, observedAt time.Time) model.PriceObservation {
	return model.PriceObservation{
		Origin: origin, Destination: destination, Cabin: cabin,
		DepartDate: departDate, Price: decimal.NewFromFloat(price),
		Source: source, ObservedAt: observedAt,
	}
}

func TestUpsertObservations_Idempotent(t *testing.T) {
	s := openTestStore(t)
	defer s.Close()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	batch := []model.PriceObservation{
		obs("JFK", "MIA", model.CabinEconomy, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), 150, "sample", now),
	}

	if _, err := s.UpsertObservations(batch); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if _, err := s.UpsertObservations(batch); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	var count int
	if err := s.sql.QueryRow(`SELECT COUNT(*) FROM price_observation`).Scan(&count); err != nil {
		t.Fatalf("count query: %v", err)
	}
	if count != 1 {
		t.Errorf("row count after repeated upsert = %d, want 1", count)
	}
}

func TestCurrentLow_ReturnsMinimumAmongRecentRows(t *testing.T) {
	s := openTestStore(t)
	defer s.Close()

	now := time.Now().UTC()
	depart := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	batch := []model.PriceObservation{
		obs("JFK", "MIA", model.CabinEconomy, depart, 150, "sample", now),
		obs("JFK", "MIA", model.CabinEconomy, depart, 120, "sample", now.Add(time.Minute)),
		obs("JFK", "MIA", model.CabinEconomy, depart, 200, "sample", now.Add(2*time.Minute)),
	}
	if _, err := s.UpsertObservations(batch); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	queryAt := now.Add(2 * time.Minute)
	low, ok, err := s.CurrentLow("JFK", "MIA", model.CabinEconomy, model.DepartMonth(depart), queryAt)
	if err != nil || !ok {
		t.Fatalf("CurrentLow error=%v ok=%v", err, ok)
	}
	if !low.Price.Equal(decimal.NewFromFloat(120)) {
		t.Errorf("CurrentLow price = %v, want 120", low.Price)
	}
}

func TestCurrentLow_IgnoresStaleRowsOutsideRecencyWindow(t *testing.T) {
	s := openTestStore(t)
	defer s.Close()

	depart := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	now := time.Now().UTC()
	// A cheaper observation from well outside the recency window (a stale
	// row still sitting in the baseline's 30-day history) must not win
	// over a pricier but fresh one.
	stale := obs("JFK", "MIA", model.CabinEconomy, depart, 100, "sample", now.Add(-2*CurrentLowRecency))
	fresh := obs("JFK", "MIA", model.CabinEconomy, depart, 120, "sample", now)
	if _, err := s.UpsertObservations([]model.PriceObservation{stale, fresh}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	low, ok, err := s.CurrentLow("JFK", "MIA", model.CabinEconomy, model.DepartMonth(depart), now)
	if err != nil || !ok {
		t.Fatalf("CurrentLow error=%v ok=%v", err, ok)
	}
	if !low.Price.Equal(decimal.NewFromFloat(120)) {
		t.Errorf("CurrentLow price = %v, want 120 (the fresh row), stale row must be excluded", low.Price)
	}
}

func TestCurrentLow_NoRowsWithinRecencyWindowReturnsNotFound(t *testing.T) {
	s := openTestStore(t)
	defer s.Close()

	depart := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	now := time.Now().UTC()
	stale := obs("JFK", "MIA", model.CabinEconomy, depart, 100, "sample", now.Add(-2*CurrentLowRecency))
	if _, err := s.UpsertObservations([]model.PriceObservation{stale}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	_, ok, err := s.CurrentLow("JFK", "MIA", model.CabinEconomy, model.DepartMonth(depart), now)
	if err != nil {
		t.Fatalf("CurrentLow error: %v", err)
	}
	if ok {
		t.Error("expected no current_low when every observation is outside the recency window")
	}
}

func TestHasRecentEvent_Dedup(t *testing.T) {
	s := openTestStore(t)
	defer s.Close()

	now := time.Now().UTC()
	month := model.DepartMonth(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

	has, err := s.HasRecentEvent("JFK", "MIA", model.CabinEconomy, month, model.PriceDrop, now)
	if err != nil || has {
		t.Fatalf("expected no recent event before any insert, got has=%v err=%v", has, err)
	}

	_, err = s.InsertNotificationEvent(model.NotificationEvent{
		Origin: "JFK", Destination: "MIA", Cabin: model.CabinEconomy, DepartMonth: month,
		EventType: model.PriceDrop, DeltaPct: decimal.NewFromFloat(-20), Price: decimal.NewFromFloat(120),
		BaselineP50: decimal.NewFromFloat(150), CreatedAt: now,
	})
	if err != nil {
		t.Fatalf("insert event: %v", err)
	}

	has, err = s.HasRecentEvent("JFK", "MIA", model.CabinEconomy, month, model.PriceDrop, now.Add(time.Hour))
	if err != nil || !has {
		t.Fatalf("expected recent event within 24h, got has=%v err=%v", has, err)
	}

	has, err = s.HasRecentEvent("JFK", "MIA", model.CabinEconomy, month, model.PriceDrop, now.Add(25*time.Hour))
	if err != nil || has {
		t.Fatalf("expected no recent event after 24h window, got has=%v err=%v", has, err)
	}
}
