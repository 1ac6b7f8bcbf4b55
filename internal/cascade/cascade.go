// Package cascade runs the per-request lookup state machine against one
// provider: parcel, address, normalized address, then coordinates, followed
// by three enrichment passes on whatever was found.
package cascade

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/property-resolver/internal/match"
	"github.com/sells-group/property-resolver/internal/normalize"
	"github.com/sells-group/property-resolver/internal/property"
	"github.com/sells-group/property-resolver/internal/provider"
)

// DefaultRadiusMiles is the coordinate search radius.
const DefaultRadiusMiles = 2.0

// DefaultStepTimeout bounds each provider call the cascade makes.
const DefaultStepTimeout = 6 * time.Second

// State is one stage of the cascade.
type State string

const (
	StateParcel            State = "parcel_lookup"
	StateAddress           State = "address_lookup"
	StateNormalizedAddress State = "normalized_address_lookup"
	StateGeo               State = "geo_lookup"
	StateDetail            State = "detail_enrichment"
	StateExpanded          State = "expanded_enrichment"
	StateParcelReenrich    State = "parcel_reenrichment"
	StateDone              State = "done"
)

// Selector chooses one candidate. *match.Selector satisfies it.
type Selector interface {
	Select(ctx context.Context, cands []property.Candidate, target match.Target) (match.Selection, bool)
}

// Step records one state the cascade entered.
type Step struct {
	State      State
	Candidates int
	Method     match.Method
	Err        error
}

// Outcome is the merged record and the trace that produced it.
type Outcome struct {
	// Record is nil when no state produced a property.
	Record *property.Record
	// Source is the state that produced the property.
	Source property.LookupSource
	Steps  []Step
}

// Entered reports whether the cascade entered s.
func (o *Outcome) Entered(s State) bool {
	for _, st := range o.Steps {
		if st.State == s {
			return true
		}
	}
	return false
}

// Cascade runs lookups against one source.
type Cascade struct {
	source      provider.Source
	selector    Selector
	radius      float64
	stepTimeout time.Duration
}

// Option configures a Cascade.
type Option func(*Cascade)

// WithRadius sets the coordinate search radius in miles.
func WithRadius(miles float64) Option {
	return func(c *Cascade) {
		if miles > 0 {
			c.radius = miles
		}
	}
}

// WithStepTimeout bounds each provider step. A step that runs past it is
// treated as no match and the cascade moves on.
func WithStepTimeout(d time.Duration) Option {
	return func(c *Cascade) {
		if d > 0 {
			c.stepTimeout = d
		}
	}
}

// WithSelector sets the candidate selector. The default scores candidates
// deterministically.
func WithSelector(s Selector) Option { return func(c *Cascade) { c.selector = s } }

// New returns a cascade over source.
func New(source provider.Source, opts ...Option) *Cascade {
	c := &Cascade{
		source:      source,
		selector:    match.NewSelector(nil),
		radius:      DefaultRadiusMiles,
		stepTimeout: DefaultStepTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Resolve runs the cascade and converts the outcome into a Result. A
// property is reported found only when the merged record carries an APN.
func (c *Cascade) Resolve(ctx context.Context, lc property.LookupContext) (property.Result, *Outcome, error) {
	out, err := c.Run(ctx, lc)
	if err != nil {
		return property.Result{}, out, err
	}
	if out.Record == nil {
		return property.NotFound(c.source.DisplayName()), out, nil
	}
	return property.FromRecord(*out.Record, out.Source, c.source.DisplayName()), out, nil
}

// Run walks the states in order. Provider failures degrade to "no match";
// only fatal errors and abandonment of ctx by the caller end it early.
func (c *Cascade) Run(ctx context.Context, lc property.LookupContext) (*Outcome, error) {
	lc = lc.Normalized()
	if err := lc.Validate(); err != nil {
		return &Outcome{}, err
	}
	r := &run{c: c, lc: lc, out: &Outcome{}}

	steps := []func(context.Context) error{
		r.parcel,
		r.address,
		r.geo,
	}
	for _, step := range steps {
		if r.resolved() {
			break
		}
		if err := step(ctx); err != nil {
			return r.out, err
		}
	}
	if r.rec == nil {
		r.enter(Step{State: StateDone})
		return r.out, nil
	}

	for _, pass := range []func(context.Context) error{r.detail, r.expanded, r.reenrich} {
		if err := pass(ctx); err != nil {
			return r.out, err
		}
	}
	r.out.Record = r.rec
	r.out.Source = r.source
	r.enter(Step{State: StateDone})
	return r.out, nil
}

// run is the mutable state of one Run.
type run struct {
	c      *Cascade
	lc     property.LookupContext
	out    *Outcome
	rec    *property.Record
	source property.LookupSource
}

func (r *run) enter(s Step) { r.out.Steps = append(r.out.Steps, s) }

// stepCtx labels ctx with step and bounds it by the step timeout.
func (r *run) stepCtx(ctx context.Context, step string) (context.Context, context.CancelFunc) {
	return context.WithTimeout(provider.WithStep(ctx, step), r.c.stepTimeout)
}

// resolved reports whether a property with an APN is in hand. A property
// without one is kept but later states still run.
func (r *run) resolved() bool { return r.rec.HasAPN() }

func (r *run) parcel(ctx context.Context) error {
	if !r.lc.HasParcel() {
		return nil
	}
	sctx, cancel := r.stepCtx(ctx, provider.StepParcel)
	recs, err := r.c.source.ByParcel(sctx, r.lc.APN, r.lc.FIPSCode)
	cancel()
	_, err = r.adopt(ctx, StateParcel, property.SourceAPN, recs, err, match.Target{Address: r.lc.Address, Lat: r.lc.Lat, Lng: r.lc.Lng})
	return err
}

func (r *run) address(ctx context.Context) error {
	if r.lc.Address == "" {
		return nil
	}
	parts := r.lc.AddressParts()
	sctx, cancel := r.stepCtx(ctx, provider.StepAddress)
	recs, err := r.c.source.ByAddress(sctx, r.lc.Address, parts)
	cancel()
	matched, err := r.adopt(ctx, StateAddress, property.SourceAddress, recs, err, match.Target{Address: r.lc.Address, Lat: r.lc.Lat, Lng: r.lc.Lng})
	if err != nil || matched {
		return err
	}

	normalized := normalize.Address(r.lc.Address, parts)
	if normalized == "" || normalized == r.lc.Address {
		return nil
	}
	sctx, cancel = r.stepCtx(ctx, provider.StepNormalizedAddress)
	recs, err = r.c.source.ByAddress(sctx, normalized, parts)
	cancel()
	_, err = r.adopt(ctx, StateNormalizedAddress, property.SourceAddress, recs, err, match.Target{Address: normalized, Lat: r.lc.Lat, Lng: r.lc.Lng})
	return err
}

func (r *run) geo(ctx context.Context) error {
	if !r.lc.HasCoordinates() {
		return nil
	}
	sctx, cancel := r.stepCtx(ctx, provider.StepLocation)
	recs, err := r.c.source.ByLocation(sctx, *r.lc.Lat, *r.lc.Lng, r.c.radius)
	cancel()
	_, err = r.adopt(ctx, StateGeo, property.SourceLatLng, recs, err, match.Target{Address: r.lc.Address, Lat: r.lc.Lat, Lng: r.lc.Lng})
	return err
}

// adopt records a lookup state, selects a candidate and keeps it when
// nothing better is held. It reports whether the state produced any
// candidate; the returned error is non-nil only when the request must stop.
func (r *run) adopt(ctx context.Context, state State, source property.LookupSource, recs []property.Record, err error, target match.Target) (bool, error) {
	step := Step{State: state, Candidates: len(recs), Err: err}
	if err != nil {
		r.enter(step)
		return false, r.failed(ctx, state, err)
	}
	rec, sel, ok := r.pick(ctx, recs, target)
	step.Method = sel.Method
	r.enter(step)
	if !ok {
		return false, nil
	}
	if r.rec == nil || (!r.rec.HasAPN() && rec.HasAPN()) {
		r.rec, r.source = &rec, source
	}
	return true, nil
}

func (r *run) pick(ctx context.Context, recs []property.Record, target match.Target) (property.Record, match.Selection, bool) {
	sel, ok := r.c.selector.Select(ctx, property.Candidates(recs), target)
	if !ok || sel.Index < 0 || sel.Index >= len(recs) {
		return property.Record{}, sel, false
	}
	return recs[sel.Index], sel, true
}

// failed converts a step error into the cascade's decision: fatal errors
// and a finished request ctx stop the request, anything else is logged and
// treated as no match. ctx is the request context, not the step's, so an
// expired step deadline degrades like any other provider failure.
func (r *run) failed(ctx context.Context, state State, err error) error {
	if property.IsFatal(err) {
		return err
	}
	if ctx.Err() != nil {
		return eris.Wrapf(ctx.Err(), "cascade: %s abandoned", state)
	}
	zap.L().Warn("cascade: step unavailable, continuing",
		zap.String("provider", r.c.source.Name()),
		zap.String("step", string(state)),
		zap.Error(err),
	)
	return nil
}
