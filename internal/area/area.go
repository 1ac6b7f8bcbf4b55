// Package area aggregates county demographics and local crime indices for a
// resolved property through a tiered waterfall, where each tier fills only
// the metrics earlier tiers left empty.
package area

import (
	"context"
	"slices"
	"time"

	"github.com/sells-group/property-resolver/internal/property"
	"github.com/sells-group/property-resolver/pkg/census"
	"github.com/sells-group/property-resolver/pkg/datausa"
)

// Tier labels recorded in AreaMetrics.Source.
const (
	SourceProvider  = "provider"
	SourceCommunity = "community"
	SourceCensus    = "census_acs"
	SourceOpenData  = "datausa"
)

// acsLag is how many years the latest ACS 5-year release trails the
// calendar year.
const acsLag = 2

// Community is a provider's neighborhood endpoint. *provider.ATTOM
// satisfies it.
type Community interface {
	Community(ctx context.Context, geoIDV4 string) (any, error)
	GeoID(ctx context.Context, name, geographyType string) (string, error)
}

// Census is the government statistics service. *census.Client satisfies it.
type Census interface {
	CountyAt(ctx context.Context, lat, lng float64) (census.County, bool, error)
	Counties(ctx context.Context, year int, stateFIPS string) ([]census.County, error)
	CountyStats(ctx context.Context, year int, fips string) (*census.CountyStats, error)
}

// OpenData is the open time-series API. *datausa.Client satisfies it.
type OpenData interface {
	Series(ctx context.Context, geoID, measure string) ([]datausa.Point, error)
}

// Aggregator runs the metrics waterfall. Any collaborator may be nil; its
// tier is then skipped.
type Aggregator struct {
	community   Community
	census      Census
	open        OpenData
	useOpenData bool
	year        int
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithCommunity sets the community tier.
func WithCommunity(c Community) Option { return func(a *Aggregator) { a.community = c } }

// WithCensus sets the census tier and FIPS geocoder.
func WithCensus(c Census) Option { return func(a *Aggregator) { a.census = c } }

// WithOpenData sets the open-data tier. enabled controls whether Aggregate
// consults it; ResolveAreaMetrics always does.
func WithOpenData(o OpenData, enabled bool) Option {
	return func(a *Aggregator) {
		a.open = o
		a.useOpenData = enabled
	}
}

// WithYear sets the ACS vintage used as the current year.
func WithYear(year int) Option { return func(a *Aggregator) { a.year = year } }

// New returns an Aggregator. The ACS vintage defaults to the latest
// published 5-year release.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{year: time.Now().Year() - acsLag}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Report is the waterfall outcome.
type Report struct {
	FIPS    string
	Metrics property.AreaMetrics
	// Tiers lists the tiers that wrote at least one metric, in order.
	Tiers []string
}

func (r *Report) fill(tier property.AreaMetrics, source string) {
	if r.Metrics.Fill(tier, source) > 0 && !slices.Contains(r.Tiers, source) {
		r.Tiers = append(r.Tiers, source)
	}
}

// Aggregate runs every tier for a resolved property: its own payload, the
// provider community endpoint, census ACS, and open data when enabled.
// Crime indices are resolved after the first two tiers as one step that
// prefers the community document over the property payload.
func (a *Aggregator) Aggregate(ctx context.Context, loc Locator) Report {
	rep := Report{FIPS: a.ResolveFIPS(ctx, loc)}

	var crime []crimeDoc
	if loc.Record != nil {
		tier := loc.Record.Area
		tier.ViolentCrimeIndex, tier.PropertyCrimeIndex = nil, nil
		rep.fill(tier, SourceProvider)
	}
	if a.community != nil {
		if tier, doc, ok := a.communityTier(ctx, loc); ok {
			rep.fill(tier, SourceCommunity)
			crime = append(crime, crimeDoc{doc: doc, source: SourceCommunity})
		}
	}
	if loc.Record != nil {
		crime = append(crime, crimeDoc{doc: loc.Record.Raw, source: SourceProvider})
	}
	rep.fillCrime(crime)

	if rep.FIPS == "" {
		return rep
	}
	if tier, ok := a.censusTier(ctx, rep.FIPS); ok {
		rep.fill(tier, SourceCensus)
	}
	if a.useOpenData {
		if tier, ok := a.openDataTier(ctx, rep.FIPS); ok {
			rep.fill(tier, SourceOpenData)
		}
	}
	return rep
}

// ResolveAreaMetrics returns county metrics for a 5-digit FIPS code from
// census ACS and then open data. Metrics are all nil when neither has data.
func (a *Aggregator) ResolveAreaMetrics(ctx context.Context, fips string) Report {
	rep := Report{FIPS: fips}
	if fips == "" {
		return rep
	}
	if tier, ok := a.censusTier(ctx, fips); ok {
		rep.fill(tier, SourceCensus)
	}
	if tier, ok := a.openDataTier(ctx, fips); ok {
		rep.fill(tier, SourceOpenData)
	}
	return rep
}
