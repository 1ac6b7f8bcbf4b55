package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/property-resolver/internal/property"
)

// Outcome labels for observed provider calls.
const (
	OutcomeOK          = "ok"
	OutcomeError       = "error"
	OutcomeTimeout     = "timeout"
	OutcomeCircuitOpen = "circuit_open"
)

// Observer receives one event per guarded call.
type Observer interface {
	Observe(provider, step, outcome string, elapsed time.Duration)
}

// Guard wraps provider calls with retry, a breaker per provider, and an
// observer. The zero value is not usable; use NewGuard.
type Guard struct {
	retry    RetryPolicy
	breakers BreakerConfig
	observer Observer
	now      func() time.Time

	mu  sync.Mutex
	per map[string]*Breaker
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithRetry sets the retry policy.
func WithRetry(p RetryPolicy) GuardOption { return func(g *Guard) { g.retry = p } }

// WithBreaker sets the breaker configuration used for each provider.
func WithBreaker(cfg BreakerConfig) GuardOption { return func(g *Guard) { g.breakers = cfg } }

// WithObserver attaches a call observer.
func WithObserver(o Observer) GuardOption { return func(g *Guard) { g.observer = o } }

// WithClock injects the breaker clock.
func WithClock(now func() time.Time) GuardOption { return func(g *Guard) { g.now = now } }

// NewGuard returns a Guard with default retry and breaker settings.
func NewGuard(opts ...GuardOption) *Guard {
	g := &Guard{
		retry:    DefaultRetryPolicy(),
		breakers: DefaultBreakerConfig(),
		now:      time.Now,
		per:      make(map[string]*Breaker),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Breaker returns the breaker for provider, creating it on first use.
func (g *Guard) Breaker(provider string) *Breaker {
	g.mu.Lock()
	defer g.mu.Unlock()
	b, ok := g.per[provider]
	if !ok {
		b = NewBreaker(g.breakers, g.now)
		g.per[provider] = b
	}
	return b
}

// Call runs fn for provider and step. Any failure comes back as a
// *property.ProviderError so callers can degrade to the next step.
func Call[T any](ctx context.Context, g *Guard, provider, step string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	start := time.Now()
	b := g.Breaker(provider)

	val, err := Retry(ctx, g.retry, func(ctx context.Context) (T, error) {
		if err := b.Allow(); err != nil {
			return zero, err
		}
		v, err := fn(ctx)
		b.Record(err)
		return v, err
	}, func(attempt int, err error) {
		zap.L().Debug("resilience: retrying provider call",
			zap.String("provider", provider),
			zap.String("step", step),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	})
	if err != nil {
		outcome := OutcomeError
		switch {
		case errors.Is(err, ErrOpen):
			outcome = OutcomeCircuitOpen
		case IsTimeout(err):
			outcome = OutcomeTimeout
		}
		g.observe(provider, step, outcome, start)
		return zero, &property.ProviderError{Provider: provider, Step: step, StatusCode: StatusCode(err), Err: err}
	}
	g.observe(provider, step, OutcomeOK, start)
	return val, nil
}

func (g *Guard) observe(provider, step, outcome string, start time.Time) {
	if g.observer != nil {
		g.observer.Observe(provider, step, outcome, time.Since(start))
	}
}
