package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/quorum-research/survey-cli/internal/cache"
	"github.com/quorum-research/survey-cli/internal/cachestore"
	"github.com/quorum-research/survey-cli/internal/model"
	"github.com/quorum-research/survey-cli/internal/provider"
	"github.com/quorum-research/survey-cli/internal/resilience"
	"github.com/quorum-research/survey-cli/internal/scheduler"
)

// runEnv bundles the shared components a command needs to execute jobs.
type runEnv struct {
	store cachestore.Store
	cache *cache.Cache
}

func (e *runEnv) Close() {
	if e.store != nil {
		_ = e.store.Close()
	}
}

// initStore opens the configured cache backend and runs its migration.
func initStore(ctx context.Context) (cachestore.Store, error) {
	switch cfg.Cache.Driver {
	case "sqlite", "":
		st, err := cachestore.NewSQLite(cfg.Cache.Path)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			st.Close()
			return nil, err
		}
		return st, nil
	case "postgres":
		st, err := cachestore.NewPostgres(ctx, cfg.Cache.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			st.Close()
			return nil, err
		}
		return st, nil
	case "redis":
		return cachestore.NewRedis(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisDB)
	case "memory":
		return cachestore.NewMemory(), nil
	default:
		return nil, eris.Errorf("unknown cache driver %q", cfg.Cache.Driver)
	}
}

func initEnv(ctx context.Context) (*runEnv, error) {
	store, err := initStore(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "init cache store")
	}
	return &runEnv{store: store, cache: cache.New(store)}, nil
}

// schedulerConfig builds the explicit run configuration from cfg.
func schedulerConfig(onEvent func(scheduler.Event)) scheduler.Config {
	retry := resilience.DefaultConfig()
	retry.MaxAttempts = cfg.Run.ProviderRetries
	retry.OnRetry = resilience.Logger("provider", "invoke")

	return scheduler.Config{
		MaxConcurrency:    cfg.Run.MaxConcurrency,
		ValidationRetries: cfg.Run.ValidationRetries,
		ProviderRetry:     retry,
		CallTimeout:       time.Duration(cfg.Run.CallTimeoutSecs) * time.Second,
		SafetyFactor:      cfg.Run.SafetyFactor,
		DefaultRPM:        cfg.Anthropic.DefaultRPM,
		DefaultTPM:        cfg.Anthropic.DefaultTPM,
		DefaultModel: model.ModelSpec{
			Provider: "anthropic",
			Name:     cfg.Anthropic.DefaultModel,
			RPM:      cfg.Anthropic.DefaultRPM,
			TPM:      cfg.Anthropic.DefaultTPM,
		},
		PollInterval: time.Duration(cfg.Run.PollIntervalMs) * time.Millisecond,
		OnEvent:      onEvent,
	}
}

// invokers maps provider names to adapters. dryRun swaps in the scripted
// provider so a survey can be exercised without external calls.
func invokers(dryRun bool) map[string]provider.Invoker {
	if dryRun {
		scripted := provider.NewScripted("sample answer")
		return map[string]provider.Invoker{
			"anthropic": scripted,
			"scripted":  scripted,
		}
	}
	return map[string]provider.Invoker{
		"anthropic": provider.NewAnthropic(cfg.Anthropic.Key),
		"scripted":  provider.NewScripted("sample answer"),
	}
}
