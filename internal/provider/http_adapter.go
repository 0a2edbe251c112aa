package provider

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"serpradio/internal/logger"
	"serpradio/internal/model"
)

// HTTPAdapter talks to a real provider endpoint in either bulk or single
// batching mode. Transport configuration and retry discipline follow the
// same shape as a high-throughput internal HTTP client: a dedicated
// transport tuned for connection reuse and a semaphore bounding concurrent
// in-flight requests.
type HTTPAdapter struct {
	identity   string
	endpoint   string
	apiKey     string
	mode       string // "bulk" or "single"
	batchSize  int
	httpClient *http.Client
	sem        chan struct{}
}

// NewHTTPAdapter builds an HTTPAdapter. concurrency for bulk mode is 1 (one
// in-flight bulk request at a time); single mode allows up to batchSize
// concurrent single-route requests.
func NewHTTPAdapter(identity, endpoint, apiKey, mode string, batchSize int, timeout time.Duration) *HTTPAdapter {
	concurrency := 1
	if mode == "single" {
		concurrency = batchSize
	}
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
		TLSHandshakeTimeout: 10 * time.Second,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 50,
		IdleConnTimeout:     120 * time.Second,
	}
	return &HTTPAdapter{
		identity:   identity,
		endpoint:   endpoint,
		apiKey:     apiKey,
		mode:       mode,
		batchSize:  batchSize,
		httpClient: &http.Client{Timeout: timeout, Transport: transport},
		sem:        make(chan struct{}, concurrency),
	}
}

func (a *HTTPAdapter) Identity() string { return a.identity }

// bulkRequest mirrors the minimal request shape a bulk-mode provider needs:
// a list of route queries in one request body.
type bulkRequest struct {
	Queries []queryDTO `json:"queries"`
}

type queryDTO struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	Cabin       string `json:"cabin"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
}

type observationDTO struct {
	Origin      string  `json:"origin"`
	Destination string  `json:"destination"`
	Cabin       string  `json:"cabin"`
	DepartDate  string  `json:"depart_date"`
	Price       float64 `json:"price"`
}

type bulkResponse struct {
	Observations []observationDTO `json:"observations"`
}

// Fetch implements Adapter. In bulk mode it issues one request for the
// whole batch (up to batchSize queries); in single mode it issues one
// request per query, bounded by the adapter's semaphore.
func (a *HTTPAdapter) Fetch(ctx context.Context, queries []model.RouteQuery) ([]model.PriceObservation, error) {
	if len(queries) == 0 {
		return nil, nil
	}
	if a.mode == "single" {
		return a.fetchSingle(ctx, queries)
	}
	return a.fetchBulk(ctx, queries)
}

func (a *HTTPAdapter) fetchBulk(ctx context.Context, queries []model.RouteQuery) ([]model.PriceObservation, error) {
	cycleID := uuid.NewString()

	var obs []model.PriceObservation
	err := withRetry(ctx, func() error {
		resp, err := a.doBulkRequest(ctx, queries)
		if err != nil {
			return err
		}
		obs = resp
		return nil
	})
	if err != nil {
		logger.Warn(a.identity, fmt.Sprintf("cycle %s bulk fetch failed after retries: %v", cycleID, err))
	}
	return obs, err
}

func (a *HTTPAdapter) doBulkRequest(ctx context.Context, queries []model.RouteQuery) ([]model.PriceObservation, error) {
	req := bulkRequest{Queries: make([]queryDTO, 0, len(queries))}
	for _, q := range queries {
		req.Queries = append(req.Queries, queryDTO{
			Origin:      q.Origin,
			Destination: q.Destination,
			Cabin:       string(q.Cabin),
			StartDate:   q.Window.Start.Format("2006-01-02"),
			EndDate:     q.Window.End.Format("2006-01-02"),
		})
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal bulk request: %v", ErrPermanent, err)
	}

	a.sem <- struct{}{}
	defer func() { <-a.sem }()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrPermanent, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if a.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		var parsed bulkResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return nil, fmt.Errorf("%w: decode response: %v", ErrTransient, err)
		}
		return toObservations(parsed.Observations, a.identity), nil
	}

	raw, _ := io.ReadAll(resp.Body)
	if isTransientStatus(resp.StatusCode) {
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrTransient, resp.StatusCode, string(raw))
	}
	return nil, fmt.Errorf("%w: HTTP %d: %s", ErrPermanent, resp.StatusCode, string(raw))
}

func (a *HTTPAdapter) fetchSingle(ctx context.Context, queries []model.RouteQuery) ([]model.PriceObservation, error) {
	var all []model.PriceObservation
	var firstErr error
	for _, q := range queries {
		select {
		case <-ctx.Done():
			return all, ctx.Err()
		default:
		}
		var obs []model.PriceObservation
		err := withRetry(ctx, func() error {
			o, err := a.doBulkRequest(ctx, []model.RouteQuery{q})
			if err != nil {
				return err
			}
			obs = o
			return nil
		})
		all = append(all, obs...)
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return all, firstErr
}

func toObservations(dtos []observationDTO, source string) []model.PriceObservation {
	now := time.Now().UTC()
	out := make([]model.PriceObservation, 0, len(dtos))
	for _, d := range dtos {
		departDate, err := time.Parse("2006-01-02", d.DepartDate)
		if err != nil {
			continue
		}
		out = append(out, model.PriceObservation{
			Origin:      d.Origin,
			Destination: d.Destination,
			Cabin:       model.Cabin(d.Cabin),
			DepartDate:  departDate,
			Price:       decimalFromFloat(d.Price),
			Source:      source,
			ObservedAt:  now,
		})
	}
	return out
}

func isTransientStatus(code int) bool {
	return code == http.StatusTooManyRequests || (code >= 500 && code < 600)
}
