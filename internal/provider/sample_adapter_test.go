package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"serpradio/internal/model"
)

func TestSampleAdapter_FetchPopulatesAllFields(t *testing.T) {
	a := NewSampleAdapter()
	q := model.RouteQuery{
		Origin: "JFK", Destination: "MIA", Cabin: model.CabinEconomy,
		Window: model.Window{
			Start: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		},
	}

	obs, err := a.Fetch(context.Background(), []model.RouteQuery{q})
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(obs) == 0 {
		t.Fatal("expected at least one observation")
	}
	for _, o := range obs {
		if o.Origin != "JFK" || o.Destination != "MIA" {
			t.Errorf("unexpected route: %s -> %s", o.Origin, o.Destination)
		}
		if o.Source != "sample" {
			t.Errorf("source = %q, want sample", o.Source)
		}
		if !o.Price.IsPositive() {
			t.Errorf("price = %v, want positive", o.Price)
		}
		if o.DepartDate.Before(q.Window.Start) || o.DepartDate.After(q.Window.End) {
			t.Errorf("depart_date %v outside window", o.DepartDate)
		}
	}
}

func TestSampleAdapter_EmptyQueriesYieldsEmptyResult(t *testing.T) {
	a := NewSampleAdapter()
	obs, err := a.Fetch(context.Background(), nil)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(obs) != 0 {
		t.Errorf("expected no observations, got %d", len(obs))
	}
}

func TestSampleAdapter_RespectsCancellation(t *testing.T) {
	a := NewSampleAdapter()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Fetch(ctx, []model.RouteQuery{{Origin: "JFK", Destination: "MIA", Cabin: model.CabinEconomy}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Fetch() error = %v, want context.Canceled", err)
	}
}

func TestSampleAdapter_FailTransientOnceThenSucceeds(t *testing.T) {
	a := NewSampleAdapter()
	a.FailTransientOnce = true

	q := model.RouteQuery{
		Origin: "JFK", Destination: "MIA", Cabin: model.CabinEconomy,
		Window: model.Window{
			Start: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC),
		},
	}

	_, err := a.Fetch(context.Background(), []model.RouteQuery{q})
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("first Fetch error = %v, want ErrTransient", err)
	}

	obs, err := a.Fetch(context.Background(), []model.RouteQuery{q})
	if err != nil {
		t.Fatalf("second Fetch error = %v, want nil", err)
	}
	if len(obs) == 0 {
		t.Fatal("expected observations on retry")
	}
}
