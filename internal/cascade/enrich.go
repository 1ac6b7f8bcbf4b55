package cascade

import (
	"context"

	"github.com/sells-group/property-resolver/internal/match"
	"github.com/sells-group/property-resolver/internal/normalize"
	"github.com/sells-group/property-resolver/internal/property"
	"github.com/sells-group/property-resolver/internal/provider"
)

// detail merges the provider's full record for the resolved ID.
func (r *run) detail(ctx context.Context) error {
	en, ok := r.c.source.(provider.Enricher)
	if !ok {
		return nil
	}
	sctx, cancel := r.stepCtx(ctx, provider.StepDetail)
	more, err := en.Detail(sctx, *r.rec)
	cancel()
	n := 0
	if more != nil {
		n = 1
	}
	r.enter(Step{State: StateDetail, Candidates: n, Err: err})
	if err != nil {
		return r.failed(ctx, StateDetail, err)
	}
	if more != nil {
		r.merge(*more)
	}
	return nil
}

// expanded merges the best expanded profile for the resolved address.
func (r *run) expanded(ctx context.Context) error {
	en, ok := r.c.source.(provider.Enricher)
	if !ok {
		return nil
	}
	sctx, cancel := r.stepCtx(ctx, provider.StepExpanded)
	recs, err := en.Expanded(sctx, *r.rec)
	cancel()
	step := Step{State: StateExpanded, Candidates: len(recs), Err: err}
	if err != nil {
		r.enter(step)
		return r.failed(ctx, StateExpanded, err)
	}
	target := match.Target{Address: r.rec.OneLine(), Lat: r.rec.Location.Lat, Lng: r.rec.Location.Lng}
	rec, sel, found := r.pick(ctx, recs, target)
	step.Method = sel.Method
	r.enter(step)
	if found {
		r.merge(rec)
	}
	return nil
}

// reenrich re-queries by the parcel the merged record now carries and
// merges the candidate with that parcel number.
func (r *run) reenrich(ctx context.Context) error {
	apn, fips, ok := r.rec.Parcel()
	if !ok {
		return nil
	}
	sctx, cancel := r.stepCtx(ctx, provider.StepParcelReenrich)
	recs, err := r.c.source.ByParcel(sctx, apn, fips)
	cancel()
	step := Step{State: StateParcelReenrich, Candidates: len(recs), Err: err}
	if err != nil {
		r.enter(step)
		return r.failed(ctx, StateParcelReenrich, err)
	}
	for i := range recs {
		if normalize.SameAPN(recs[i].Identifier.APN, apn) {
			r.enter(step)
			r.merge(recs[i])
			return nil
		}
	}
	rec, sel, found := r.pick(ctx, recs, match.Target{Address: r.rec.OneLine()})
	step.Method = sel.Method
	r.enter(step)
	if found {
		r.merge(rec)
	}
	return nil
}

func (r *run) merge(update property.Record) {
	merged := property.Merge(*r.rec, update)
	r.rec = &merged
}
