package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/property-resolver/internal/config"
	"github.com/sells-group/property-resolver/internal/housing"
	"github.com/sells-group/property-resolver/internal/match"
	"github.com/sells-group/property-resolver/internal/metrics"
	"github.com/sells-group/property-resolver/internal/provider"
	"github.com/sells-group/property-resolver/internal/reconcile"
	"github.com/sells-group/property-resolver/internal/resolve"
	"github.com/sells-group/property-resolver/internal/settings"
	anthropicpkg "github.com/sells-group/property-resolver/pkg/anthropic"
	"github.com/sells-group/property-resolver/pkg/census"
	"github.com/sells-group/property-resolver/pkg/datausa"
	"github.com/sells-group/property-resolver/pkg/fred"
)

// engineEnv holds everything a command needs to resolve properties.
type engineEnv struct {
	Engine   *resolve.Engine
	Metrics  *metrics.Recorder
	Settings settings.Store
	Secrets  *config.SecretCache
}

// Close releases the settings store.
func (e *engineEnv) Close() {
	if e.Settings != nil {
		if err := e.Settings.Close(); err != nil {
			zap.L().Debug("close settings store", zap.Error(err))
		}
	}
}

// initSettings opens and migrates the configured settings store. It
// returns nil when the driver is none.
func initSettings(ctx context.Context) (settings.Store, error) {
	st, err := settings.Open(ctx, cfg.Settings.Driver, cfg.Settings.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, nil
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate settings")
	}
	return st, nil
}

func initEngine(ctx context.Context, mode string) (*engineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initSettings(ctx)
	if err != nil {
		return nil, err
	}
	env := &engineEnv{Settings: st, Metrics: metrics.New()}

	if st != nil {
		env.Secrets = config.NewSecretCache(st, time.Duration(cfg.Settings.CacheTTLSecs)*time.Second, nil)
	}
	keys := config.NewKeyResolver(cfg, env.Secrets)

	guard := resolve.NewGuard(cfg.Lookup, env.Metrics)
	reg := provider.NewRegistry(keys)
	resolve.RegisterProviders(reg, cfg, guard)

	// Without a model key the selector falls back to deterministic scoring.
	var selector *match.Selector
	if cfg.Anthropic.Key != "" {
		client := anthropicpkg.NewClient(cfg.Anthropic.Key, anthropicpkg.WithMaxRetries(1))
		selector = match.NewSelector(anthropicpkg.NewCompleter(client, cfg.Anthropic.Model),
			match.WithCompletionTimeout(cfg.Anthropic.Timeout()))
	} else {
		selector = match.NewSelector(nil)
		zap.L().Debug("PROPRES_ANTHROPIC_KEY not set, candidate selection is deterministic")
	}

	censusOpts := []census.Option{}
	if cfg.Census.RateLimit > 0 {
		censusOpts = append(censusOpts, census.WithRateLimit(cfg.Census.RateLimit))
	}

	deps := resolve.Deps{
		Registry: reg,
		Selector: selector,
		Census:   census.NewClient(cfg.Census.Key, censusOpts...),
		OpenData: datausa.NewClient(),
		Recorder: env.Metrics,
	}
	if cfg.FRED.Key != "" {
		deps.Treasury = fred.NewClient(cfg.FRED.Key)
	}

	if cfg.Housing.GapTablePath != "" {
		tbl, err := housing.Load(cfg.Housing.GapTablePath)
		if err != nil {
			env.Close()
			return nil, err
		}
		deps.Housing = tbl
		zap.L().Info("housing gap table loaded", zap.Int("states", tbl.Len()))
	}

	defaults, err := reconcile.LoadDefaults(cfg.Reconcile.DefaultsPath)
	if err != nil {
		env.Close()
		return nil, err
	}
	deps.Defaults = defaults

	env.Engine = resolve.New(cfg, deps)
	return env, nil
}
