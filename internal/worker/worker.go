// Package worker is the scheduler and orchestrator: it drives one full
// Plan→Fetch→Upsert→Refresh→Emit cycle and either exits (one-shot mode) or
// sleeps until the next cycle (daemon mode).
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"serpradio/internal/baseline"
	"serpradio/internal/config"
	"serpradio/internal/logger"
	"serpradio/internal/model"
	"serpradio/internal/notifier"
	"serpradio/internal/provider"
	"serpradio/internal/store"
)

// Worker composes the adapter, store, aggregator, and notifier into the
// scheduled ingestion cycle.
type Worker struct {
	cfg       *config.Config
	adapter   provider.Adapter
	store     *store.Store
	baselines *baseline.Aggregator
	notifier  *notifier.Notifier

	closer *Closer
}

// New constructs a Worker.
func New(cfg *config.Config, adapter provider.Adapter, s *store.Store, b *baseline.Aggregator, n *notifier.Notifier) *Worker {
	return &Worker{
		cfg:       cfg,
		adapter:   adapter,
		store:     s,
		baselines: b,
		notifier:  n,
		closer:    NewCloser(),
	}
}

// Run executes one cycle if cfg.OneShot is set, otherwise loops in daemon
// mode until ctx is cancelled or Stop is called.
func (w *Worker) Run(ctx context.Context) error {
	if w.cfg.OneShot {
		summary, err := w.tick(ctx)
		w.logCycle(summary)
		return err
	}
	return w.loop(ctx)
}

// loop is the daemon scheduling loop: tick, sleep for the configured
// refresh interval, repeat, until cancellation.
func (w *Worker) loop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.closer.MarkDone()
			return ctx.Err()
		case <-w.closer.Closed():
			w.closer.MarkDone()
			return nil
		default:
			summary, err := w.tick(ctx)
			if err != nil {
				logger.Error("WORKER", fmt.Sprintf("cycle failed: %v", err))
			}
			w.logCycle(summary)

			select {
			case <-ctx.Done():
				w.closer.MarkDone()
				return ctx.Err()
			case <-w.closer.Closed():
				w.closer.MarkDone()
				return nil
			case <-time.After(w.cfg.RefreshInterval):
			}
		}
	}
}

// Stop requests the daemon loop to exit after its current cycle and blocks
// until it does.
func (w *Worker) Stop() {
	w.closer.Close()
	<-w.closer.Done()
}

// tick runs exactly one Plan→Fetch→Upsert→Refresh→Emit cycle.
func (w *Worker) tick(ctx context.Context) (store.CycleSummary, error) {
	summary := store.CycleSummary{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}

	queries := w.plan(summary.StartedAt)
	summary.PhaseReached = "plan"

	obs, batchesFailed, err := w.fetch(ctx, queries)
	summary.BatchesFailed = batchesFailed
	summary.PhaseReached = "fetch"
	if err != nil {
		logger.Warn("WORKER", fmt.Sprintf("cycle %s: fetch had errors: %v", summary.ID, err))
	}

	count, err := w.store.UpsertObservations(obs)
	summary.ObservationsUpserted = count
	if err != nil {
		summary.FinishedAt = time.Now().UTC()
		summary.PhaseReached = "upsert_failed"
		w.persistSummary(summary)
		return summary, fmt.Errorf("worker: upsert phase aborted cycle %s: %w", summary.ID, err)
	}
	summary.PhaseReached = "upsert"

	degraded, refreshErr := w.baselines.Refresh(time.Now().UTC())
	summary.Degraded = degraded
	summary.PhaseReached = "refresh"
	if refreshErr != nil {
		logger.Error("WORKER", fmt.Sprintf("cycle %s: baseline refresh failed even after blocking fallback: %v", summary.ID, refreshErr))
		summary.FinishedAt = time.Now().UTC()
		w.persistSummary(summary)
		return summary, nil
	}

	if !degraded {
		keys := w.notifierKeys()
		events, err := w.notifier.Detect(keys, time.Now().UTC())
		if err != nil {
			logger.Error("WORKER", fmt.Sprintf("cycle %s: notification detection error: %v", summary.ID, err))
		}
		summary.NewNotifications = len(events)
	} else {
		logger.Warn("WORKER", fmt.Sprintf("cycle %s: baseline stale, skipping notification emission", summary.ID))
	}
	summary.PhaseReached = "emit"

	summary.FinishedAt = time.Now().UTC()
	w.persistSummary(summary)
	return summary, nil
}

func (w *Worker) persistSummary(s store.CycleSummary) {
	if err := w.store.InsertCycleSummary(s); err != nil {
		logger.Warn("WORKER", fmt.Sprintf("cycle %s: failed to persist summary: %v", s.ID, err))
	}
}

func (w *Worker) logCycle(s store.CycleSummary) {
	logger.Section(fmt.Sprintf("cycle %s", s.ID))
	logger.Stats("observations_upserted", s.ObservationsUpserted)
	logger.Stats("batches_failed", s.BatchesFailed)
	logger.Stats("new_notifications", s.NewNotifications)
	logger.Stats("duration", s.FinishedAt.Sub(s.StartedAt))
	if s.Degraded {
		logger.Warn("WORKER", "cycle completed in degraded mode (stale baseline)")
	}
}

// plan enumerates the cartesian product of configured origins and
// destinations (excluding self-pairs) across MonthsAhead monthly windows
// starting from now, for every cabin class.
func (w *Worker) plan(now time.Time) []model.RouteQuery {
	var queries []model.RouteQuery
	cabins := []model.Cabin{model.CabinEconomy, model.CabinPremium, model.CabinBusiness, model.CabinFirst}

	for _, origin := range w.cfg.Origins {
		for _, destination := range w.cfg.Destinations {
			if origin == destination {
				continue
			}
			for m := 0; m < w.cfg.MonthsAhead; m++ {
				start := model.DepartMonth(now.AddDate(0, m, 0))
				end := start.AddDate(0, 1, -1)
				for _, cabin := range cabins {
					queries = append(queries, model.RouteQuery{
						Origin:      origin,
						Destination: destination,
						Window:      model.Window{Start: start, End: end},
						Cabin:       cabin,
					})
				}
			}
		}
	}
	return queries
}

// fetch partitions queries into batches of ProviderBatchSize and calls the
// adapter once per batch, with bounded concurrency and an independent
// per-batch timeout. Cancellation is honoured between batches.
func (w *Worker) fetch(ctx context.Context, queries []model.RouteQuery) ([]model.PriceObservation, int, error) {
	batches := partition(queries, w.cfg.ProviderBatchSize)

	concurrency := 1
	if w.cfg.ProviderMode == "single" {
		concurrency = w.cfg.ProviderBatchSize
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	type batchResult struct {
		obs []model.PriceObservation
		err error
	}
	results := make([]batchResult, len(batches))

	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			batchCtx, cancel := context.WithTimeout(gctx, w.cfg.ProviderTimeout)
			defer cancel()

			obs, err := w.adapter.Fetch(batchCtx, batch)
			results[i] = batchResult{obs: obs, err: err}
			return nil // batch failures are recorded per-batch, not fatal to the group
		})
	}
	waitErr := g.Wait()

	var all []model.PriceObservation
	failed := 0
	var lastErr error
	for _, r := range results {
		all = append(all, r.obs...)
		if r.err != nil {
			failed++
			lastErr = r.err
		}
	}
	if waitErr != nil {
		return all, failed, waitErr
	}
	return all, failed, lastErr
}

// notifierKeys enumerates the same route/month/cabin keys the worker just
// planned, for the notification-detection pass.
func (w *Worker) notifierKeys() []notifier.RouteKey {
	now := time.Now().UTC()
	queries := w.plan(now)
	seen := make(map[string]bool)
	var keys []notifier.RouteKey
	for _, q := range queries {
		month := model.DepartMonth(q.Window.Start)
		sig := q.Origin + "|" + q.Destination + "|" + string(q.Cabin) + "|" + month.Format("2006-01")
		if seen[sig] {
			continue
		}
		seen[sig] = true
		keys = append(keys, notifier.RouteKey{
			Origin: q.Origin, Destination: q.Destination, Cabin: q.Cabin, DepartMonth: month,
		})
	}
	return keys
}

func partition(queries []model.RouteQuery, size int) [][]model.RouteQuery {
	if size <= 0 {
		size = 100
	}
	var batches [][]model.RouteQuery
	for i := 0; i < len(queries); i += size {
		end := i + size
		if end > len(queries) {
			end = len(queries)
		}
		batches = append(batches, queries[i:end])
	}
	return batches
}
