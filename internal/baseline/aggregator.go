// Package baseline maintains the materialised P25/P50/P75 view of prices
// per (origin, destination, cabin, depart_month) over the trailing 30-day
// observation window.
package baseline

import (
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"serpradio/internal/logger"
	"serpradio/internal/model"
	"serpradio/internal/store"
)

// Window is the trailing observation window baselines are computed over.
const Window = 30 * 24 * time.Hour

type keyStr = string

func key(origin, destination string, cabin model.Cabin, departMonth time.Time) keyStr {
	return origin + "|" + destination + "|" + string(cabin) + "|" + departMonth.UTC().Format("2006-01-02")
}

// Aggregator holds the current generation of baselines in memory, behind
// an atomically-swapped pointer, so readers never observe a half-built
// generation. This is the same read-copy-update discipline as a
// singleflight-guarded in-memory cache: build the whole next value off to
// the side, then publish it in one atomic store.
type Aggregator struct {
	store   *store.Store
	current atomic.Pointer[map[keyStr]model.RouteBaseline]
}

// New constructs an Aggregator backed by s. The in-memory generation starts
// empty; callers should call Refresh once before serving evaluator traffic.
func New(s *store.Store) *Aggregator {
	a := &Aggregator{store: s}
	empty := make(map[keyStr]model.RouteBaseline)
	a.current.Store(&empty)
	return a
}

// Get returns the in-memory baseline for a key, reading the current
// generation without blocking any concurrent refresh.
func (a *Aggregator) Get(origin, destination string, cabin model.Cabin, departMonth time.Time) (model.RouteBaseline, bool) {
	gen := a.current.Load()
	b, ok := (*gen)[key(origin, destination, cabin, departMonth)]
	return b, ok
}

// Refresh recomputes every baseline row from the observation store.
// It tries the concurrent primitive first (build off to the side, atomic
// switch); if building the next generation fails, it falls back to the
// blocking primitive, which rewrites route_baseline in place and serialises
// readers that go through the store directly.
func (a *Aggregator) Refresh(now time.Time) (degraded bool, err error) {
	next, buildErr := a.buildGeneration(now)
	if buildErr == nil {
		a.current.Store(&next)
		rows := make([]model.RouteBaseline, 0, len(next))
		for _, b := range next {
			rows = append(rows, b)
		}
		if err := a.store.ReplaceBaselines(rows); err != nil {
			logger.Warn("BASELINE", fmt.Sprintf("concurrent refresh computed but persist failed, falling back to blocking: %v", err))
			return a.blockingRefresh(now)
		}
		return false, nil
	}

	logger.Warn("BASELINE", fmt.Sprintf("concurrent refresh failed, falling back to blocking: %v", buildErr))
	return a.blockingRefresh(now)
}

// buildGeneration computes the full next-generation map without touching
// the published pointer or the store's route_baseline table.
func (a *Aggregator) buildGeneration(now time.Time) (map[keyStr]model.RouteBaseline, error) {
	keys, err := a.store.AllObservationKeys()
	if err != nil {
		return nil, fmt.Errorf("baseline: list keys: %w", err)
	}

	since := now.Add(-Window)
	next := make(map[keyStr]model.RouteBaseline, len(keys))
	for _, k := range keys {
		obs, err := a.store.RangeQuery(k.Origin, k.Destination, k.Cabin, k.DepartMonth, since, now)
		if err != nil {
			return nil, fmt.Errorf("baseline: range_query %s/%s/%s: %w", k.Origin, k.Destination, k.Cabin, err)
		}
		if len(obs) == 0 {
			continue
		}
		b := computeBaseline(k.Origin, k.Destination, k.Cabin, k.DepartMonth, obs, now)
		next[key(k.Origin, k.Destination, k.Cabin, k.DepartMonth)] = b
	}
	return next, nil
}

// blockingRefresh recomputes in place via the store's transactional
// replace, then republishes the in-memory generation from what was
// persisted.
func (a *Aggregator) blockingRefresh(now time.Time) (bool, error) {
	next, err := a.buildGeneration(now)
	if err != nil {
		return true, fmt.Errorf("baseline: blocking refresh: %w", err)
	}
	rows := make([]model.RouteBaseline, 0, len(next))
	for _, b := range next {
		rows = append(rows, b)
	}
	if err := a.store.ReplaceBaselines(rows); err != nil {
		return true, fmt.Errorf("baseline: blocking refresh persist: %w", err)
	}
	a.current.Store(&next)
	return false, nil
}

// computeBaseline derives one RouteBaseline row from its observation set.
func computeBaseline(origin, destination string, cabin model.Cabin, departMonth time.Time, obs []model.PriceObservation, now time.Time) model.RouteBaseline {
	prices := make([]float64, 0, len(obs))
	for _, o := range obs {
		f, _ := o.Price.Float64()
		prices = append(prices, f)
	}
	sort.Float64s(prices)

	return model.RouteBaseline{
		Origin:      origin,
		Destination: destination,
		Cabin:       cabin,
		DepartMonth: departMonth,
		P25:         decimal.NewFromFloat(percentile(prices, 25)).Round(2),
		P50:         decimal.NewFromFloat(percentile(prices, 50)).Round(2),
		P75:         decimal.NewFromFloat(percentile(prices, 75)).Round(2),
		NSamples:    len(prices),
		LastUpdated: now.UTC(),
	}
}
