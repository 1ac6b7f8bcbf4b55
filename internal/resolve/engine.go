// Package resolve is the boundary of the property resolution engine. It
// opens a provider, runs the lookup cascade under a deadline, adds the
// sections the caller's intent asks for, and optionally reconciles the
// result against the caller's form.
package resolve

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/property-resolver/internal/area"
	"github.com/sells-group/property-resolver/internal/cascade"
	"github.com/sells-group/property-resolver/internal/config"
	"github.com/sells-group/property-resolver/internal/housing"
	"github.com/sells-group/property-resolver/internal/normalize"
	"github.com/sells-group/property-resolver/internal/property"
	"github.com/sells-group/property-resolver/internal/provider"
	"github.com/sells-group/property-resolver/internal/reconcile"
	"github.com/sells-group/property-resolver/pkg/fred"
)

// ErrTimeout means a resolution did not finish before its deadline.
var ErrTimeout = eris.New("resolve: lookup timed out")

const defaultTimeout = 20 * time.Second

// Treasury reports the latest value of a rate series. *fred.Client
// satisfies it.
type Treasury interface {
	Latest(ctx context.Context, seriesID string) (*fred.Observation, error)
}

// Recorder counts finished resolutions. *metrics.Recorder satisfies it.
type Recorder interface {
	Resolved(provider string, found bool)
}

// Deps are the engine's collaborators. Registry is required; any other
// field may be left nil to skip what it serves.
type Deps struct {
	Registry *provider.Registry
	Selector cascade.Selector
	Census   area.Census
	OpenData area.OpenData
	Treasury Treasury
	Housing  *housing.Table
	Defaults map[string]any
	Recorder Recorder
}

// Engine resolves properties. It holds no per-request state.
type Engine struct {
	cfg  *config.Config
	deps Deps
}

// New creates an Engine.
func New(cfg *config.Config, deps Deps) *Engine {
	if deps.Defaults == nil {
		deps.Defaults = map[string]any{}
	}
	return &Engine{cfg: cfg, deps: deps}
}

// Request is one resolution. Form, Defaults, and APISnapshot are optional;
// when Form is present the result is reconciled against it.
type Request struct {
	Provider    string                 `json:"provider"`
	Context     property.LookupContext `json:"context"`
	Form        map[string]any         `json:"form,omitempty"`
	Defaults    map[string]any         `json:"defaults,omitempty"`
	APISnapshot property.Snapshot      `json:"api_snapshot,omitempty"`
}

// StepReport is the user-facing trace of one cascade state.
type StepReport struct {
	State      cascade.State `json:"state"`
	Candidates int           `json:"candidates"`
	Method     string        `json:"method,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// Response is a Result plus the reconciliation outcome and trace.
type Response struct {
	property.Result
	Applied         map[string]any    `json:"applied,omitempty"`
	NextAPISnapshot property.Snapshot `json:"next_api_snapshot,omitempty"`
	Steps           []StepReport      `json:"steps"`
}

func (e *Engine) timeout() time.Duration {
	if d := e.cfg.Lookup.Timeout(); d > 0 {
		return d
	}
	return defaultTimeout
}

func (e *Engine) providerName(name string) string {
	if name == "" {
		return e.cfg.Lookup.Provider
	}
	return name
}

// ResolveProperty resolves one property. Ordinary not-found is a Result
// with APNFound false. Errors are a *property.ValidationError, a
// *property.ConfigError, ErrTimeout, or the caller's own cancellation.
func (e *Engine) ResolveProperty(ctx context.Context, providerName string, lc property.LookupContext) (property.Result, error) {
	res, _, err := e.resolve(ctx, providerName, lc)
	return res, err
}

// Resolve runs ResolveProperty and reconciles the result when the request
// carries a form.
func (e *Engine) Resolve(ctx context.Context, req Request) (Response, error) {
	res, out, err := e.resolve(ctx, req.Provider, req.Context)
	if err != nil {
		return Response{}, err
	}
	resp := Response{Result: res, Steps: trace(out)}
	if req.Form == nil {
		return resp, nil
	}

	outcome := reconcile.ApplyAll(reconcile.State{
		Form:     req.Form,
		Defaults: e.defaults(req.Defaults),
		Snapshot: req.APISnapshot,
	}, res.APISnapshot, reconcile.OriginProvider)
	resp.Applied = outcome.Applied
	resp.NextAPISnapshot = outcome.Snapshot
	return resp, nil
}

func (e *Engine) resolve(ctx context.Context, providerName string, lc property.LookupContext) (property.Result, *cascade.Outcome, error) {
	name := e.providerName(providerName)
	lc = lc.Normalized()
	if err := lc.Validate(); err != nil {
		return property.Result{}, nil, err
	}
	src, err := e.deps.Registry.Open(ctx, name)
	if err != nil {
		return property.Result{}, nil, err
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, e.timeout())
	defer cancel()

	opts := []cascade.Option{
		cascade.WithRadius(e.cfg.Lookup.RadiusMiles),
		cascade.WithStepTimeout(e.cfg.Lookup.StepTimeout()),
	}
	if e.deps.Selector != nil {
		opts = append(opts, cascade.WithSelector(e.deps.Selector))
	}
	res, out, err := cascade.New(src, opts...).Resolve(ctx, lc)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return property.Result{}, out, eris.Wrapf(ErrTimeout, "resolve: %s after %s", src.DisplayName(), e.timeout())
		}
		return property.Result{}, out, err
	}

	if res.APNFound {
		switch lc.Intent {
		case property.IntentTaxes:
			e.addTreasury(ctx, &res)
		default:
			e.addArea(ctx, src, out.Record, lc, &res)
			e.addHousing(lc, &res)
		}
		res.Refresh()
	}

	if e.deps.Recorder != nil {
		e.deps.Recorder.Resolved(src.Name(), res.APNFound)
	}
	zap.L().Info("resolve: property resolved",
		zap.String("provider", src.Name()),
		zap.Bool("apn_found", res.APNFound),
		zap.String("intent", string(lc.Intent)),
		zap.Int("steps", len(out.Steps)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, out, nil
}

func (e *Engine) aggregator(src provider.Source) *area.Aggregator {
	opts := []area.Option{area.WithOpenData(e.deps.OpenData, e.cfg.Area.UseOpenData)}
	if e.deps.Census != nil {
		opts = append(opts, area.WithCensus(e.deps.Census))
	}
	if c, ok := src.(area.Community); ok {
		opts = append(opts, area.WithCommunity(c))
	}
	if e.cfg.Area.ACSYear > 0 {
		opts = append(opts, area.WithYear(e.cfg.Area.ACSYear))
	}
	return area.New(opts...)
}

func (e *Engine) addArea(ctx context.Context, src provider.Source, rec *property.Record, lc property.LookupContext, res *property.Result) {
	rep := e.aggregator(src).Aggregate(ctx, area.Locator{Record: rec, Lookup: lc})
	res.DemographicsEconomics = rep.Metrics
	if res.PropertyIdentity.FIPSCode == "" {
		res.PropertyIdentity.FIPSCode = rep.FIPS
	}
	zap.L().Debug("resolve: area metrics",
		zap.String("fips", rep.FIPS),
		zap.Strings("tiers", rep.Tiers),
		zap.Int("missing", rep.Metrics.Missing()),
	)
}

func (e *Engine) addHousing(lc property.LookupContext, res *property.Result) {
	st := res.PropertyIdentity.State
	if st == "" {
		st = lc.State
	}
	if m, ok := e.deps.Housing.Lookup(st); ok {
		res.HousingCrisisMetrics = m
	}
}

func (e *Engine) addTreasury(ctx context.Context, res *property.Result) {
	if e.deps.Treasury == nil {
		return
	}
	obs, err := e.deps.Treasury.Latest(ctx, fred.SeriesTreasury10Y)
	if err != nil {
		zap.L().Warn("resolve: treasury yield unavailable", zap.Error(err))
		return
	}
	res.Financials.TreasuryYield10Y = normalize.Float(obs.Value)
	res.Financials.TreasuryAsOf = obs.Date
}

// ResolveAreaMetrics returns county metrics for a FIPS code. A code that
// does not normalize to five digits is a *property.ValidationError; a code
// with no data anywhere yields all-nil metrics.
func (e *Engine) ResolveAreaMetrics(ctx context.Context, fips string) (property.AreaMetrics, error) {
	code := normalize.FIPS(fips)
	if len(code) != 5 {
		return property.AreaMetrics{}, &property.ValidationError{Reason: "fips_code must be a 5-digit county code"}
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout())
	defer cancel()

	opts := []area.Option{area.WithOpenData(e.deps.OpenData, true)}
	if e.deps.Census != nil {
		opts = append(opts, area.WithCensus(e.deps.Census))
	}
	if e.cfg.Area.ACSYear > 0 {
		opts = append(opts, area.WithYear(e.cfg.Area.ACSYear))
	}
	rep := area.New(opts...).ResolveAreaMetrics(ctx, code)
	return rep.Metrics, nil
}

// ReconcileField applies the overwrite rule to one field. Engine-level
// defaults fill in for placeholders the caller did not send.
func (e *Engine) ReconcileField(field string, incoming, current any, defaults map[string]any, snapshot property.Snapshot) reconcile.Decision {
	return reconcile.Decide(field, incoming, current, e.defaults(defaults), snapshot)
}

func (e *Engine) defaults(req map[string]any) map[string]any {
	out := make(map[string]any, len(e.deps.Defaults)+len(req))
	for k, v := range e.deps.Defaults {
		out[k] = v
	}
	for k, v := range req {
		out[k] = v
	}
	return out
}

func trace(out *cascade.Outcome) []StepReport {
	if out == nil {
		return nil
	}
	steps := make([]StepReport, 0, len(out.Steps))
	for _, s := range out.Steps {
		r := StepReport{State: s.State, Candidates: s.Candidates, Method: string(s.Method)}
		if s.Err != nil {
			r.Error = stepError(s.Err)
		}
		steps = append(steps, r)
	}
	return steps
}

// stepError is the trace text for a failed step. Only the provider, step
// and status are reported; transport detail stays in the logs.
func stepError(err error) string {
	var pe *property.ProviderError
	if errors.As(err, &pe) {
		return pe.Summary()
	}
	return "lookup unavailable"
}

func secs(n int) time.Duration { return time.Duration(n) * time.Second }
