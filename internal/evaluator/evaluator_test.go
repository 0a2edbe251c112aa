package evaluator

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"serpradio/internal/model"
)

func dec(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func baselineFixture() model.RouteBaseline {
	return model.RouteBaseline{
		Origin: "JFK", Destination: "MIA", Cabin: model.CabinEconomy,
		P25: dec(135), P50: dec(150), P75: dec(175), NSamples: 40,
		LastUpdated: time.Now().UTC(),
	}
}

// S1: current_low = 120 (<= p25) -> BUY, confidence 85, delta_pct -20.0, deal_score 90.
func TestScenario_S1_BuyAtP25(t *testing.T) {
	b := baselineFixture()
	low := dec(120)

	delta := deltaPct(low, b.P50)
	if got := delta.StringFixed(1); got != "-20.0" {
		t.Errorf("delta_pct = %s, want -20.0", got)
	}
	if score := dealScore(low, b); score != 90 {
		t.Errorf("deal_score = %d, want 90", score)
	}
	rec, conf, _ := recommend(low, b, dealScore(low, b), nil, delta)
	if rec != Buy || conf != 85 {
		t.Errorf("recommendation/confidence = %s/%d, want BUY/85", rec, conf)
	}
}

// S2: current_low = p50 = 150 -> TRACK, confidence 70, delta_pct 0.0, deal_score 70.
func TestScenario_S2_TrackAtMedian(t *testing.T) {
	b := baselineFixture()
	low := dec(150)

	delta := deltaPct(low, b.P50)
	if got := delta.StringFixed(1); got != "0.0" {
		t.Errorf("delta_pct = %s, want 0.0", got)
	}
	if score := dealScore(low, b); score != 70 {
		t.Errorf("deal_score = %d, want 70", score)
	}
	rec, conf, _ := recommend(low, b, dealScore(low, b), nil, delta)
	if rec != Track || conf != 70 {
		t.Errorf("recommendation/confidence = %s/%d, want TRACK/70", rec, conf)
	}
}

// S3: current_low = 200 (> p75) -> WAIT, confidence 70, delta_pct 33.3, deal_score 20.
func TestScenario_S3_WaitAboveP75(t *testing.T) {
	b := baselineFixture()
	low := dec(200)

	delta := deltaPct(low, b.P50)
	if got := delta.StringFixed(1); got != "33.3" {
		t.Errorf("delta_pct = %s, want 33.3", got)
	}
	if score := dealScore(low, b); score != 20 {
		t.Errorf("deal_score = %d, want 20", score)
	}
	rec, conf, _ := recommend(low, b, dealScore(low, b), nil, delta)
	if rec != Wait || conf != 70 {
		t.Errorf("recommendation/confidence = %s/%d, want WAIT/70", rec, conf)
	}
}

// S5: sweet spot (30,45) present and current_low=310 <= p50=315 -> BUY, confidence 80.
func TestScenario_S5_BuyViaSweetSpot(t *testing.T) {
	b := model.RouteBaseline{P25: dec(290), P50: dec(315), P75: dec(360), NSamples: 20}
	curve := []model.LeadTimePoint{
		{LeadDays: 14, Q50: dec(380)},
		{LeadDays: 30, Q50: dec(310)},
		{LeadDays: 45, Q50: dec(305)},
		{LeadDays: 60, Q50: dec(400)},
	}
	spot := sweetSpot(curve)
	if spot == nil || spot.MinLeadDays != 30 || spot.MaxLeadDays != 45 {
		t.Fatalf("sweetSpot = %+v, want (30, 45)", spot)
	}

	low := dec(310)
	delta := deltaPct(low, b.P50)
	rec, conf, rationale := recommend(low, b, dealScore(low, b), spot, delta)
	if rec != Buy || conf != 80 {
		t.Errorf("recommendation/confidence = %s/%d, want BUY/80", rec, conf)
	}
	if !containsAll(rationale, "30", "45") {
		t.Errorf("rationale %q does not mention the sweet-spot band", rationale)
	}
}

// Boundary: sweet spot exists but current_low > p50 -> TRACK, not BUY.
func TestBoundary_SweetSpotPresentButAboveMedian(t *testing.T) {
	b := model.RouteBaseline{P25: dec(290), P50: dec(315), P75: dec(360), NSamples: 20}
	spot := &SweetSpot{MinLeadDays: 30, MaxLeadDays: 45}
	low := dec(320)

	rec, _, _ := recommend(low, b, dealScore(low, b), spot, deltaPct(low, b.P50))
	if rec != Track {
		t.Errorf("recommendation = %s, want TRACK", rec)
	}
}

// Boundary: current_low exactly equal to p25 is inclusive -> BUY.
func TestBoundary_CurrentLowEqualsP25(t *testing.T) {
	b := baselineFixture()
	low := b.P25
	rec, _, _ := recommend(low, b, dealScore(low, b), nil, deltaPct(low, b.P50))
	if rec != Buy {
		t.Errorf("recommendation = %s, want BUY when current_low == p25", rec)
	}
}

func TestResolveMonth_SameYearWhenFuture(t *testing.T) {
	now := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	got := resolveMonth(3, now)
	want := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("resolveMonth(3, Jan 2026) = %v, want %v", got, want)
	}
}

func TestResolveMonth_RollsOverToNextYear(t *testing.T) {
	now := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	got := resolveMonth(3, now)
	want := time.Date(2027, 3, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("resolveMonth(3, Jun 2026) = %v, want %v", got, want)
	}
}

func TestResolveMonth_CurrentMonthStaysThisYear(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	got := resolveMonth(3, now)
	want := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("resolveMonth(3, Mar 1 2026) = %v, want %v", got, want)
	}
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !contains(s, sub) {
			return false
		}
	}
	return true
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}
