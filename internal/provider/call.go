package provider

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/property-resolver/internal/payload"
	"github.com/sells-group/property-resolver/internal/property"
	"github.com/sells-group/property-resolver/internal/resilience"
)

type stepKey struct{}

// WithStep labels calls made with ctx as the named cascade step, so a
// normalized-address retry is reported separately from the first attempt.
func WithStep(ctx context.Context, step string) context.Context {
	return context.WithValue(ctx, stepKey{}, step)
}

func stepOf(ctx context.Context, def string) string {
	if s, ok := ctx.Value(stepKey{}).(string); ok && s != "" {
		return s
	}
	return def
}

// fetch runs one guarded provider call and decodes its body.
func fetch(ctx context.Context, g *resilience.Guard, provider, step string, fn func(context.Context) (json.RawMessage, error)) (any, error) {
	step = stepOf(ctx, step)
	raw, err := resilience.Call(ctx, g, provider, step, fn)
	if err != nil {
		return nil, err
	}
	doc, err := payload.Decode(raw)
	if err != nil {
		return nil, &property.ProviderError{Provider: provider, Step: step, Err: eris.Wrap(err, "provider: decode payload")}
	}
	return doc, nil
}

func guardOrDefault(g *resilience.Guard) *resilience.Guard {
	if g == nil {
		return resilience.NewGuard()
	}
	return g
}
