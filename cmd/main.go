package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/singpath/progressd/internal/adapters/feed"
	"github.com/singpath/progressd/internal/adapters/http/ops"
	app "github.com/singpath/progressd/internal/app"
	"github.com/singpath/progressd/internal/config"
	"github.com/singpath/progressd/internal/domain/model"
	"github.com/singpath/progressd/pkg/logger"
)

func main() {
	// Initialize logging
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel),
			logger.Error(err),
		)
		_ = logger.SetLevelString("info")
	}

	store, err := buildFeed(cfg)
	if err != nil {
		os.Stderr.WriteString("failed to build feed: " + err.Error() + "\n")
		return
	}
	defer func() {
		_ = store.Close()
	}()

	svc := app.New(store,
		app.WithLogger(log),
		app.WithOwner(cfg.OwnerPublicID),
		app.WithListOnly(cfg.ListOnly),
		app.WithFlushInterval(cfg.FlushInterval()),
		app.WithRetry(cfg.RetryAttempts, cfg.RetryBackoff()),
		app.WithCacheTTL(cfg.CacheTTL()),
		app.WithProviderEndpoints(cfg.CodeCombatURL, cfg.CodeSchoolURL),
		app.WithProviderTimeout(cfg.ProviderTimeout()),
	)
	if err := svc.Start(ctx); err != nil {
		os.Stderr.WriteString("failed to start service: " + err.Error() + "\n")
		return
	}
	defer svc.Stop()

	// Operational HTTP surface: healthz, stats, metrics.
	opsServer := ops.NewServer(cfg.OpsAddr, svc)
	go func() {
		if err := opsServer.Start(ctx); err != nil {
			log.Error(ctx, "ops server failed", logger.Error(err))
		}
	}()

	if cfg.ListOnly {
		svc.Wait()
		log.Info(ctx, "event list done")
		return
	}

	<-ctx.Done()
	log.Info(ctx, "shutting down...")
}

// buildFeed creates the in-memory feed, preloaded from the configured
// seed file when one is set.
func buildFeed(cfg *config.Config) (*feed.Memory, error) {
	if cfg.SeedFile == "" {
		return feed.NewMemory(), nil
	}
	raw, err := os.ReadFile(cfg.SeedFile)
	if err != nil {
		return nil, err
	}
	seed := make(model.Patch)
	if err := json.Unmarshal(raw, &seed); err != nil {
		return nil, err
	}
	return feed.NewMemory(feed.WithSeed(seed)), nil
}
