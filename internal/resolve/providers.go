package resolve

import (
	"github.com/sells-group/property-resolver/internal/config"
	"github.com/sells-group/property-resolver/internal/provider"
	"github.com/sells-group/property-resolver/internal/resilience"
	"github.com/sells-group/property-resolver/pkg/attom"
	"github.com/sells-group/property-resolver/pkg/melissa"
	"github.com/sells-group/property-resolver/pkg/rentcast"
	"github.com/sells-group/property-resolver/pkg/reportall"
)

// Credential config keys for each provider.
const (
	CredentialATTOM     = "attom.key"
	CredentialMelissa   = "melissa.key"
	CredentialRentcast  = "rentcast.key"
	CredentialReportAll = "reportall.key"
)

// NewGuard builds the shared retry and breaker guard from lookup settings.
func NewGuard(cfg config.LookupConfig, obs resilience.Observer) *resilience.Guard {
	retry := resilience.DefaultRetryPolicy()
	if cfg.MaxAttempts > 0 {
		retry.Attempts = cfg.MaxAttempts
	}
	breaker := resilience.DefaultBreakerConfig()
	if cfg.BreakerThreshold > 0 {
		breaker.Threshold = cfg.BreakerThreshold
	}
	if cfg.BreakerCooldown > 0 {
		breaker.Cooldown = secs(cfg.BreakerCooldown)
	}
	opts := []resilience.GuardOption{resilience.WithRetry(retry), resilience.WithBreaker(breaker)}
	if obs != nil {
		opts = append(opts, resilience.WithObserver(obs))
	}
	return resilience.NewGuard(opts...)
}

// RegisterProviders adds the four property data providers to reg. Each
// client is built lazily once its credential resolves, but the rate limiter
// of each provider is built here, once, and shared by every client the
// factory makes.
func RegisterProviders(reg *provider.Registry, cfg *config.Config, guard *resilience.Guard) {
	attomLimit := resilience.NewLimiter(rateOr(cfg.ATTOM.RateLimit, attom.DefaultRateLimit))
	reg.Register(provider.NameATTOM, CredentialATTOM, func(key string) provider.Source {
		opts := []attom.Option{attom.WithLimiter(attomLimit)}
		if cfg.ATTOM.BaseURL != "" {
			opts = append(opts, attom.WithBaseURL(cfg.ATTOM.BaseURL))
		}
		return provider.NewATTOM(attom.NewClient(key, opts...), guard)
	})

	melissaLimit := resilience.NewLimiter(rateOr(cfg.Melissa.RateLimit, melissa.DefaultRateLimit))
	reg.Register(provider.NameMelissa, CredentialMelissa, func(key string) provider.Source {
		opts := []melissa.Option{melissa.WithLimiter(melissaLimit)}
		if cfg.Melissa.BaseURL != "" {
			opts = append(opts, melissa.WithBaseURL(cfg.Melissa.BaseURL))
		}
		return provider.NewMelissa(melissa.NewClient(key, opts...), guard)
	})

	rentcastLimit := resilience.NewLimiter(rateOr(cfg.Rentcast.RateLimit, rentcast.DefaultRateLimit))
	reg.Register(provider.NameRentcast, CredentialRentcast, func(key string) provider.Source {
		opts := []rentcast.Option{rentcast.WithLimiter(rentcastLimit)}
		if cfg.Rentcast.BaseURL != "" {
			opts = append(opts, rentcast.WithBaseURL(cfg.Rentcast.BaseURL))
		}
		return provider.NewRentcast(rentcast.NewClient(key, opts...), guard)
	})

	reportallLimit := resilience.NewLimiter(rateOr(cfg.ReportAll.RateLimit, reportall.DefaultRateLimit))
	reg.Register(provider.NameReportAll, CredentialReportAll, func(key string) provider.Source {
		opts := []reportall.Option{reportall.WithLimiter(reportallLimit)}
		if cfg.ReportAll.BaseURL != "" {
			opts = append(opts, reportall.WithBaseURL(cfg.ReportAll.BaseURL))
		}
		return provider.NewReportAll(reportall.NewClient(key, opts...), guard)
	})
}

func rateOr(rps, def float64) float64 {
	if rps > 0 {
		return rps
	}
	return def
}
