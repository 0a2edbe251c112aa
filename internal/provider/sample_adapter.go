package provider

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/shopspring/decimal"

	"serpradio/internal/model"
)

// SampleAdapter is a deterministic, no-network adapter used in tests and in
// local/dev runs without provider credentials. It still honours the full
// Adapter contract, including simulated transient failures so retry paths
// can be exercised without a live endpoint.
type SampleAdapter struct {
	// FailTransientOnce, if set, makes Fetch return ErrTransient the first
	// time it is called for a given query signature, succeeding on retry.
	FailTransientOnce bool

	seen map[string]bool
}

// NewSampleAdapter constructs a SampleAdapter with default behaviour (no
// injected failures).
func NewSampleAdapter() *SampleAdapter {
	return &SampleAdapter{seen: make(map[string]bool)}
}

func (a *SampleAdapter) Identity() string { return "sample" }

func (a *SampleAdapter) Fetch(ctx context.Context, queries []model.RouteQuery) ([]model.PriceObservation, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	now := time.Now().UTC()
	var out []model.PriceObservation
	for _, q := range queries {
		sig := q.Origin + q.Destination + string(q.Cabin) + q.Window.Start.Format("2006-01")
		if a.FailTransientOnce && !a.seen[sig] {
			if a.seen == nil {
				a.seen = make(map[string]bool)
			}
			a.seen[sig] = true
			return out, ErrTransient
		}

		for d := q.Window.Start; !d.After(q.Window.End); d = d.AddDate(0, 0, 7) {
			out = append(out, model.PriceObservation{
				Origin:      q.Origin,
				Destination: q.Destination,
				Cabin:       q.Cabin,
				DepartDate:  d,
				Price:       syntheticPrice(q.Origin, q.Destination, q.Cabin, d),
				Source:      a.Identity(),
				ObservedAt:  now,
			})
		}
	}
	return out, nil
}

// syntheticPrice derives a stable, route-dependent price from a hash of
// the key so repeated runs against the same inputs are reproducible.
func syntheticPrice(origin, destination string, cabin model.Cabin, departDate time.Time) decimal.Decimal {
	h := fnv.New32a()
	h.Write([]byte(origin + destination + string(cabin) + departDate.Format("2006-01-02")))
	base := 120 + float64(h.Sum32()%400)
	switch cabin {
	case model.CabinPremium:
		base *= 1.6
	case model.CabinBusiness:
		base *= 3.2
	case model.CabinFirst:
		base *= 5.0
	}
	return decimal.NewFromFloat(base).Round(2)
}
