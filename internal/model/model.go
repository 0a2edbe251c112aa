// Package model holds the domain types shared across the ingestion worker,
// the observation store, the baseline aggregator, and the deal evaluator.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cabin is a fare class.
type Cabin string

const (
	CabinEconomy  Cabin = "economy"
	CabinPremium  Cabin = "premium"
	CabinBusiness Cabin = "business"
	CabinFirst    Cabin = "first"
)

// Valid reports whether c is one of the recognised cabin values.
func (c Cabin) Valid() bool {
	switch c {
	case CabinEconomy, CabinPremium, CabinBusiness, CabinFirst:
		return true
	}
	return false
}

// Window is a calendar-date span, typically one month.
type Window struct {
	Start time.Time
	End   time.Time
}

// RouteQuery is one (origin, destination, window, cabin) fetch request.
type RouteQuery struct {
	Origin      string
	Destination string
	Window      Window
	Cabin       Cabin
}

// PriceObservation is one immutable (route, cabin, depart_date, price,
// observed_at, source) tuple.
type PriceObservation struct {
	Origin      string
	Destination string
	Cabin       Cabin
	DepartDate  time.Time
	Price       decimal.Decimal
	Source      string
	ObservedAt  time.Time
}

// RouteBaseline is the materialised P25/P50/P75 view over a trailing
// 30-day window of observations for (origin, destination, cabin,
// depart_month).
type RouteBaseline struct {
	Origin       string
	Destination  string
	Cabin        Cabin
	DepartMonth  time.Time
	P25          decimal.Decimal
	P50          decimal.Decimal
	P75          decimal.Decimal
	NSamples     int
	LastUpdated  time.Time
}

// InsufficientSamples is the minimum NSamples a baseline must carry before
// the evaluator will use it.
const InsufficientSamples = 10

// LeadTimePoint is one (lead_days, q25, q50, q75) sample of an externally
// maintained lead-time curve.
type LeadTimePoint struct {
	LeadDays int
	Q25      decimal.Decimal
	Q50      decimal.Decimal
	Q75      decimal.Decimal
}

// NotificationEventType enumerates the kinds of notification events.
type NotificationEventType string

// PriceDrop is the only event type the emitter currently produces.
const PriceDrop NotificationEventType = "price_drop"

// NotificationEvent is an append-only record of a detected price drop.
type NotificationEvent struct {
	ID          int64
	Origin      string
	Destination string
	Cabin       Cabin
	DepartMonth time.Time
	EventType   NotificationEventType
	DeltaPct    decimal.Decimal
	Price       decimal.Decimal
	BaselineP50 decimal.Decimal
	CreatedAt   time.Time
}

// CurrentLow is the minimum observed price for a key, and when it was last
// seen.
type CurrentLow struct {
	Price    decimal.Decimal
	LastSeen time.Time
}

// DepartMonth returns the first day (UTC, midnight) of t's calendar month.
func DepartMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
