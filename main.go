package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"serpradio/internal/baseline"
	"serpradio/internal/config"
	"serpradio/internal/logger"
	"serpradio/internal/notifier"
	"serpradio/internal/provider"
	"serpradio/internal/store"
	"serpradio/internal/worker"
)

var version = "dev"

// loadDotEnv loads environment variables from a local .env file so a
// double-clicked binary or a bare systemd unit still picks up PRICE_SOURCE
// and friends. Existing OS env vars are never overridden.
func loadDotEnv() {
	paths := []string{".env"}
	if exePath, err := os.Executable(); err == nil {
		if exeDir := filepath.Dir(exePath); exeDir != "" {
			paths = append(paths, filepath.Join(exeDir, ".env"))
		}
	}

	seen := make(map[string]bool)
	for _, p := range paths {
		if seen[p] {
			continue
		}
		seen[p] = true

		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		for _, line := range strings.Split(string(data), "\n") {
			l := strings.TrimSpace(line)
			if l == "" || strings.HasPrefix(l, "#") {
				continue
			}
			parts := strings.SplitN(l, "=", 2)
			if len(parts) != 2 {
				continue
			}
			key := strings.TrimSpace(parts[0])
			val := strings.TrimSpace(parts[1])
			if key != "" && os.Getenv(key) == "" {
				os.Setenv(key, val)
			}
		}
	}
}

func dbPath() string {
	if wd, err := os.Getwd(); err == nil {
		return filepath.Join(wd, "serpradio.db")
	}
	exe, _ := os.Executable()
	return filepath.Join(filepath.Dir(exe), "serpradio.db")
}

func main() {
	loadDotEnv()
	logger.Banner(version)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("CONFIG", err.Error())
		os.Exit(1)
	}

	s, err := store.Open(dbPath())
	if err != nil {
		logger.Error("STORE", fmt.Sprintf("failed to open store: %v", err))
		os.Exit(1)
	}
	defer s.Close()

	adapter, err := provider.New(cfg.PriceSource, cfg.ProviderEndpoint, cfg.ProviderAPIKey, cfg.ProviderMode, cfg.ProviderBatchSize, cfg.ProviderTimeout)
	if err != nil {
		logger.Error("PROVIDER", err.Error())
		os.Exit(1)
	}
	logger.Info("PROVIDER", fmt.Sprintf("using adapter %q (mode=%s, batch_size=%d)", adapter.Identity(), cfg.ProviderMode, cfg.ProviderBatchSize))

	baselines := baseline.New(s)
	notif := notifier.New(s, baselines)
	w := worker.New(cfg, adapter, s, baselines, notif)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.OneShot {
		if err := w.Run(ctx); err != nil {
			logger.Error("WORKER", fmt.Sprintf("one-shot cycle failed: %v", err))
			os.Exit(1)
		}
		return
	}

	go func() {
		<-ctx.Done()
		logger.Info("WORKER", "shutting down gracefully...")
		w.Stop()
	}()

	if err := w.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("WORKER", fmt.Sprintf("daemon loop exited: %v", err))
		os.Exit(1)
	}
	logger.Info("WORKER", "stopped")
}
