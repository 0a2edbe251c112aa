// Package notifier detects price-drop events after each baseline refresh
// and records them with anti-duplication.
package notifier

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"serpradio/internal/baseline"
	"serpradio/internal/logger"
	"serpradio/internal/model"
	"serpradio/internal/store"
)

// baselineFreshness is the maximum age of a refreshed baseline that the
// emitter will still trust. The current-low side of the join has its own
// freshness horizon enforced directly by store.CurrentLow (store.CurrentLowRecency),
// so there is no second "last seen" constant to keep in sync here.
const baselineFreshness = 12 * time.Hour

// Notifier joins current-low prices against the freshly refreshed baseline
// and emits NotificationEvent rows for qualifying drops.
type Notifier struct {
	store     *store.Store
	baselines *baseline.Aggregator
}

// New constructs a Notifier.
func New(s *store.Store, b *baseline.Aggregator) *Notifier {
	return &Notifier{store: s, baselines: b}
}

// RouteKey is one (origin, destination, cabin, depart_month) combination to
// consider. The worker supplies this set — every key it just refreshed
// baselines for.
type RouteKey struct {
	Origin      string
	Destination string
	Cabin       model.Cabin
	DepartMonth time.Time
}

// Detect runs the detection algorithm once per cycle, after the aggregator
// refresh, for each key in keys. It returns the list of newly inserted
// events.
func (n *Notifier) Detect(keys []RouteKey, now time.Time) ([]model.NotificationEvent, error) {
	var emitted []model.NotificationEvent

	for _, k := range keys {
		b, ok := n.baselines.Get(k.Origin, k.Destination, k.Cabin, k.DepartMonth)
		if !ok {
			continue
		}
		if now.Sub(b.LastUpdated) > baselineFreshness {
			continue
		}

		low, ok, err := n.store.CurrentLow(k.Origin, k.Destination, k.Cabin, k.DepartMonth, now)
		if err != nil {
			return emitted, fmt.Errorf("notifier: current_low %s/%s/%s: %w", k.Origin, k.Destination, k.Cabin, err)
		}
		if !ok {
			continue
		}
		if !low.Price.LessThan(b.P25) {
			continue
		}

		dup, err := n.store.HasRecentEvent(k.Origin, k.Destination, k.Cabin, k.DepartMonth, model.PriceDrop, now)
		if err != nil {
			return emitted, fmt.Errorf("notifier: has_recent_event %s/%s/%s: %w", k.Origin, k.Destination, k.Cabin, err)
		}
		if dup {
			continue
		}

		delta := decimal.Zero
		if !b.P50.IsZero() {
			delta = low.Price.Sub(b.P50).Div(b.P50).Mul(decimal.NewFromInt(100)).Round(1)
		}

		ev := model.NotificationEvent{
			Origin:      k.Origin,
			Destination: k.Destination,
			Cabin:       k.Cabin,
			DepartMonth: k.DepartMonth,
			EventType:   model.PriceDrop,
			DeltaPct:    delta,
			Price:       low.Price,
			BaselineP50: b.P50,
			CreatedAt:   now,
		}
		id, err := n.store.InsertNotificationEvent(ev)
		if err != nil {
			return emitted, fmt.Errorf("notifier: insert %s/%s/%s: %w", k.Origin, k.Destination, k.Cabin, err)
		}
		ev.ID = id
		emitted = append(emitted, ev)
		logger.Info("NOTIFY", fmt.Sprintf("price drop %s-%s %s %s: %s below p25", k.Origin, k.Destination, k.Cabin, k.DepartMonth.Format("2006-01"), low.Price.StringFixed(2)))
	}

	return emitted, nil
}
