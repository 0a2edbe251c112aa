// Package config loads the ingestion worker's runtime configuration from
// environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all settings read at process startup.
type Config struct {
	PriceSource    string // PRICE_SOURCE: parallel | xapi | sample
	ProviderAPIKey string
	ProviderEndpoint string
	ProviderMode     string // bulk | single
	ProviderBatchSize int
	ProviderTimeout   time.Duration

	RefreshInterval time.Duration
	MonthsAhead     int
	Origins         []string
	Destinations    []string
	OneShot         bool
}

// Default returns a Config populated with every optional field's default
// value. Required fields (PriceSource, Origins, Destinations) are left zero
// so Load can detect and reject their absence.
func Default() *Config {
	return &Config{
		ProviderMode:      "bulk",
		ProviderBatchSize: 100,
		ProviderTimeout:   60 * time.Second,
		RefreshInterval:   6 * time.Hour,
		MonthsAhead:       6,
	}
}

// Load reads Config from the process environment, applying defaults for
// every optional setting and failing fast on missing required ones.
func Load() (*Config, error) {
	cfg := Default()

	cfg.PriceSource = os.Getenv("PRICE_SOURCE")
	if cfg.PriceSource == "" {
		return nil, fmt.Errorf("config: PRICE_SOURCE is required (parallel|xapi|sample)")
	}

	cfg.ProviderAPIKey = os.Getenv("PROVIDER_API_KEY")
	cfg.ProviderEndpoint = os.Getenv("PROVIDER_ENDPOINT")
	if cfg.PriceSource != "sample" && cfg.ProviderEndpoint == "" {
		return nil, fmt.Errorf("config: PROVIDER_ENDPOINT is required when PRICE_SOURCE=%s", cfg.PriceSource)
	}

	if v := os.Getenv("PROVIDER_MODE"); v != "" {
		if v != "bulk" && v != "single" {
			return nil, fmt.Errorf("config: PROVIDER_MODE must be bulk or single, got %q", v)
		}
		cfg.ProviderMode = v
	}

	if v := os.Getenv("PROVIDER_BATCH_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("config: PROVIDER_BATCH_SIZE must be a positive integer, got %q", v)
		}
		cfg.ProviderBatchSize = n
	}

	if v := os.Getenv("PROVIDER_TIMEOUT_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("config: PROVIDER_TIMEOUT_SECONDS must be a positive integer, got %q", v)
		}
		cfg.ProviderTimeout = time.Duration(n) * time.Second
	}

	if v := os.Getenv("REFRESH_INTERVAL_HOURS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("config: REFRESH_INTERVAL_HOURS must be a positive integer, got %q", v)
		}
		cfg.RefreshInterval = time.Duration(n) * time.Hour
	}

	if v := os.Getenv("MONTHS_AHEAD"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("config: MONTHS_AHEAD must be a positive integer, got %q", v)
		}
		cfg.MonthsAhead = n
	}

	cfg.Origins = splitCSV(os.Getenv("ORIGINS"))
	if len(cfg.Origins) == 0 {
		return nil, fmt.Errorf("config: ORIGINS is required (comma-separated airport codes)")
	}

	cfg.Destinations = splitCSV(os.Getenv("DESTINATIONS"))
	if len(cfg.Destinations) == 0 {
		return nil, fmt.Errorf("config: DESTINATIONS is required (comma-separated airport codes)")
	}

	if v := os.Getenv("ONE_SHOT"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("config: ONE_SHOT must be a boolean, got %q", v)
		}
		cfg.OneShot = b
	}

	return cfg, nil
}

func splitCSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(strings.ToUpper(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
