// Package evaluator answers "how is (origin, destination, month, cabin)
// priced right now, and what should I do?" as a synchronous, pure query
// over the observation store and baseline aggregator.
package evaluator

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"serpradio/internal/baseline"
	"serpradio/internal/model"
	"serpradio/internal/store"
)

// Recommendation is the evaluator's verdict.
type Recommendation string

const (
	Buy   Recommendation = "BUY"
	Track Recommendation = "TRACK"
	Wait  Recommendation = "WAIT"
)

// SweetSpot is the contiguous lead-days band whose q50 sits within 5% of
// the curve's minimum q50.
type SweetSpot struct {
	MinLeadDays int
	MaxLeadDays int
}

// Result is the full evaluation record returned to callers.
type Result struct {
	Origin      string
	Destination string
	Month       int
	Cabin       model.Cabin

	HasData bool
	Reason  string // populated only when HasData is false

	CurrentPrice decimal.Decimal
	P25, P50, P75 decimal.Decimal
	NSamples     int
	LastUpdated  time.Time

	DeltaPct       decimal.Decimal
	DealScore      int
	SweetSpot      *SweetSpot
	Recommendation Recommendation
	Confidence     int
	Rationale      string
	LastSeen       time.Time
}

// Evaluator is a read-only query over the observation store and baseline
// aggregator. It holds no state of its own: two calls with identical
// arguments against data that hasn't changed between them return
// byte-identical results.
type Evaluator struct {
	store   *store.Store
	baselines *baseline.Aggregator
}

// New constructs an Evaluator.
func New(s *store.Store, b *baseline.Aggregator) *Evaluator {
	return &Evaluator{store: s, baselines: b}
}

// Evaluate runs the full algorithm for (origin, destination, month, cabin).
// month resolves to the next future calendar month carrying that number:
// if the current month's number is <= month, this year is used, else next
// year.
func (e *Evaluator) Evaluate(origin, destination string, month int, cabin string, now time.Time) Result {
	origin = strings.ToUpper(strings.TrimSpace(origin))
	destination = strings.ToUpper(strings.TrimSpace(destination))
	cab := model.Cabin(strings.ToLower(strings.TrimSpace(cabin)))
	departMonth := resolveMonth(month, now)

	res := Result{Origin: origin, Destination: destination, Month: month, Cabin: cab}

	b, ok := e.baselines.Get(origin, destination, cab, departMonth)
	if !ok {
		res.Reason = "no baseline data for this route/month/cabin"
		return res
	}
	if b.NSamples < model.InsufficientSamples {
		res.Reason = fmt.Sprintf("insufficient samples: n_samples=%d (need >= %d)", b.NSamples, model.InsufficientSamples)
		return res
	}

	low, ok, err := e.store.CurrentLow(origin, destination, cab, departMonth, now)
	if err != nil || !ok {
		res.Reason = "no current price observation for this route/month/cabin"
		return res
	}

	res.HasData = true
	res.CurrentPrice = low.Price
	res.P25, res.P50, res.P75 = b.P25, b.P50, b.P75
	res.NSamples = b.NSamples
	res.LastUpdated = b.LastUpdated
	res.LastSeen = low.LastSeen

	res.DeltaPct = deltaPct(low.Price, b.P50)
	res.DealScore = dealScore(low.Price, b)

	curve, err := e.store.LeadTimeCurve(origin, destination, cab, departMonth)
	if err == nil {
		res.SweetSpot = sweetSpot(curve)
	}

	res.Recommendation, res.Confidence, res.Rationale = recommend(low.Price, b, res.DealScore, res.SweetSpot, res.DeltaPct)
	return res
}

// resolveMonth maps a 1..12 month number to the next future calendar month
// carrying that number (this year if not yet past, else next year), and
// returns the first day of that month at UTC midnight.
func resolveMonth(month int, now time.Time) time.Time {
	now = now.UTC()
	year := now.Year()
	if int(now.Month()) > month {
		year++
	}
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
}

// deltaPct is round((current_low - p50) / p50 * 100, 1).
func deltaPct(currentLow, p50 decimal.Decimal) decimal.Decimal {
	if p50.IsZero() {
		return decimal.Zero
	}
	return currentLow.Sub(p50).Div(p50).Mul(decimal.NewFromInt(100)).Round(1)
}

// dealScore bands current_low against the baseline percentiles.
func dealScore(currentLow decimal.Decimal, b model.RouteBaseline) int {
	switch {
	case currentLow.LessThanOrEqual(b.P25):
		return 90
	case currentLow.LessThanOrEqual(b.P50):
		return 70
	case currentLow.LessThanOrEqual(b.P75):
		return 45
	default:
		return 20
	}
}

// sweetSpot finds the minimum q50 across curve, then the contiguous range
// of lead_days whose q50 <= 1.05 * that minimum.
func sweetSpot(curve []model.LeadTimePoint) *SweetSpot {
	if len(curve) == 0 {
		return nil
	}
	min := curve[0].Q50
	for _, p := range curve[1:] {
		if p.Q50.LessThan(min) {
			min = p.Q50
		}
	}
	threshold := min.Mul(decimal.NewFromFloat(1.05))

	var lo, hi *int
	seenMin := false
	for _, p := range curve {
		if p.Q50.LessThanOrEqual(threshold) {
			d := p.LeadDays
			if lo == nil {
				lo = &d
			}
			hi = &d
			seenMin = seenMin || p.Q50.Equal(min)
		} else if seenMin {
			break
		} else {
			lo, hi = nil, nil
		}
	}
	if lo == nil || hi == nil {
		return nil
	}
	if *lo > *hi {
		*lo, *hi = *hi, *lo
	}
	return &SweetSpot{MinLeadDays: *lo, MaxLeadDays: *hi}
}

// recommend chooses the first matching clause, in order, per the contract:
// percentile-band BUY takes priority over sweet-spot BUY, which takes
// priority over median-relative TRACK, then band-relative TRACK, then WAIT.
func recommend(currentLow decimal.Decimal, b model.RouteBaseline, dealScore int, spot *SweetSpot, delta decimal.Decimal) (Recommendation, int, string) {
	absDelta := delta.Abs()

	switch {
	case currentLow.LessThanOrEqual(b.P25):
		return Buy, 85, fmt.Sprintf("current price is at or below the 25th percentile (p25=%s)", b.P25.StringFixed(2))
	case spot != nil && currentLow.LessThanOrEqual(b.P50):
		return Buy, 80, fmt.Sprintf("%d–%d days out is the typical booking sweet spot, and the price is at or below median", spot.MinLeadDays, spot.MaxLeadDays)
	case currentLow.LessThanOrEqual(b.P50):
		return Track, 70, fmt.Sprintf("price is %s%% below median but may improve", absDelta.StringFixed(1))
	case dealScore >= 50:
		return Track, 65, fmt.Sprintf("price is near median (p50=%s)", b.P50.StringFixed(2))
	default:
		return Wait, 70, fmt.Sprintf("price is above the 75th percentile (p75=%s)", b.P75.StringFixed(2))
	}
}
