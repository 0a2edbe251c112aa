// Package provider implements the polymorphic boundary between the
// ingestion worker and third-party flight-price providers.
package provider

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"serpradio/internal/model"
)

// Adapter translates an internal route-query batch into a provider-specific
// request and parses the response into uniform observations.
type Adapter interface {
	// Fetch retrieves observations for the given queries. It may return a
	// non-nil error alongside a partial (possibly empty) result: callers
	// must not discard obs just because err != nil.
	Fetch(ctx context.Context, queries []model.RouteQuery) ([]model.PriceObservation, error)
	// Identity names this adapter; used as PriceObservation.Source.
	Identity() string
}

// ErrTransient wraps upstream failures the caller may retry (network
// timeout, 5xx, 429). ErrPermanent wraps failures that must not be retried
// (4xx other than 429, schema mismatch).
var (
	ErrTransient = errors.New("provider: transient failure")
	ErrPermanent = errors.New("provider: permanent failure")
)

// maxRetries and retryBaseWait encode the adapter-level retry policy: 3 retries, exponential
// backoff starting at 2s, with jitter.
const (
	maxRetries    = 3
	retryBaseWait = 2 * time.Second
)

// withRetry runs fn up to maxRetries+1 times, sleeping with exponential
// backoff between attempts, stopping early on a permanent error. It returns
// the last error seen. fn must itself classify its error as transient or
// permanent by wrapping it with ErrTransient/ErrPermanent.
func withRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			wait := retryBaseWait * time.Duration(1<<(attempt-1))
			jitter := time.Duration(rand.Int63n(int64(wait) / 4))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait + jitter):
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if errors.Is(err, ErrPermanent) {
			return lastErr
		}
	}
	return lastErr
}

// New constructs the Adapter named by source, configured from cfg-derived
// parameters. source is the PRICE_SOURCE config value: "parallel", "xapi",
// or "sample".
func New(source, endpoint, apiKey, mode string, batchSize int, timeout time.Duration) (Adapter, error) {
	switch source {
	case "sample":
		return NewSampleAdapter(), nil
	case "parallel":
		return NewHTTPAdapter("parallel", endpoint, apiKey, mode, batchSize, timeout), nil
	case "xapi":
		return NewHTTPAdapter("xapi", endpoint, apiKey, mode, batchSize, timeout), nil
	default:
		return nil, fmt.Errorf("provider: unknown PRICE_SOURCE %q", source)
	}
}
