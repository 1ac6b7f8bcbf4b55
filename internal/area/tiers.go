package area

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/property-resolver/internal/normalize"
	"github.com/sells-group/property-resolver/internal/payload"
	"github.com/sells-group/property-resolver/internal/property"
	"github.com/sells-group/property-resolver/pkg/census"
	"github.com/sells-group/property-resolver/pkg/datausa"
)

// Community payload paths, relative to the community document.
var (
	communityPopulation       = []string{"community.demographics.population", "demographics.population"}
	communityPopulationChange = []string{"community.demographics.population_Chg_Pct_5_Yr", "demographics.population_Chg_Pct_5_Yr"}
	communityIncome           = []string{"community.demographics.median_Household_Income", "demographics.median_Household_Income"}
	communityPoverty          = []string{"community.demographics.households_Income_Below_Poverty_Pct", "community.demographics.poverty_Pct"}
	communityEmployment       = []string{"community.demographics.population_Employed_16P", "demographics.population_Employed_16P"}
	communityHomeValue        = []string{"community.demographics.housing_Owner_Households_Median_Value", "community.demographics.median_Home_Value"}
	communityRent             = []string{"community.demographics.housing_Median_Rent_2_Bedroom", "community.demographics.median_Rent"}
)

func pick(doc any, paths []string) *float64 {
	vals := make([]any, 0, len(paths))
	for _, p := range paths {
		vals = append(vals, payload.Get(doc, p))
	}
	return normalize.PickPositive(vals...)
}

// communityTier resolves a geography ID for loc and reads the provider's
// community statistics for it. The raw document is returned for the crime
// step.
func (a *Aggregator) communityTier(ctx context.Context, loc Locator) (property.AreaMetrics, any, bool) {
	geoID := a.geoID(ctx, loc)
	if geoID == "" {
		return property.AreaMetrics{}, nil, false
	}
	doc, err := a.community.Community(ctx, geoID)
	if err != nil {
		zap.L().Warn("area: community tier unavailable", zap.String("geo_id", geoID), zap.Error(err))
		return property.AreaMetrics{}, nil, false
	}
	tier := property.AreaMetrics{
		Population:            pick(doc, communityPopulation),
		PopulationChange:      normalize.PickNumber(payload.First(doc, communityPopulationChange...)),
		MedianHouseholdIncome: pick(doc, communityIncome),
		PovertyRate:           pick(doc, communityPoverty),
		Employment:            pick(doc, communityEmployment),
		MedianPropertyValue:   pick(doc, communityHomeValue),
		TwoBedroomRent:        pick(doc, communityRent),
	}
	return tier, doc, true
}

// geoID finds the community geography: the record's own ID, then any
// geoIdV4 key in its payload, then a name lookup by county, then by city.
func (a *Aggregator) geoID(ctx context.Context, loc Locator) string {
	if loc.Record != nil {
		if id := loc.Record.Location.GeoIDV4; id != "" {
			return id
		}
		if v, ok := payload.FindKey(loc.Record.Raw, []string{"geoIdV4", "geoIdv4", "geo_id_v4"}, payload.MaxSearchDepth); ok {
			if id := geoIDValue(v); id != "" {
				return id
			}
		}
	}

	state := loc.state()
	if state == "" {
		return ""
	}
	var name, kind string
	switch {
	case loc.county() != "":
		name, kind = countyLabel(loc.county())+", "+state, "CO"
	case loc.city() != "":
		name, kind = loc.city()+", "+state, "PL"
	default:
		return ""
	}
	id, err := a.community.GeoID(ctx, name, kind)
	if err != nil {
		zap.L().Warn("area: geography lookup failed", zap.String("name", name), zap.Error(err))
		return ""
	}
	return id
}

// geoIDValue accepts a plain ID or a map of IDs by geography type,
// preferring the county entry.
func geoIDValue(v any) string {
	m, ok := v.(map[string]any)
	if !ok {
		return normalize.ToString(v)
	}
	if id := normalize.ToString(m["CO"]); id != "" {
		return id
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if id := normalize.ToString(m[k]); id != "" {
			return id
		}
	}
	return ""
}

// countyLabel trims a trailing "County" so lookups read "Sangamon, IL".
func countyLabel(county string) string {
	c := strings.TrimSpace(county)
	if strings.HasSuffix(strings.ToLower(c), " county") {
		c = strings.TrimSpace(c[:len(c)-len(" county")])
	}
	return c
}

// censusTier fetches the current and prior ACS years concurrently and
// derives year-over-year changes.
func (a *Aggregator) censusTier(ctx context.Context, fips string) (property.AreaMetrics, bool) {
	if a.census == nil {
		return property.AreaMetrics{}, false
	}
	var cur, prev *census.CountyStats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cur, err = a.census.CountyStats(gctx, a.year, fips)
		return err
	})
	g.Go(func() error {
		var err error
		prev, err = a.census.CountyStats(gctx, a.year-1, fips)
		if err != nil {
			zap.L().Debug("area: prior census year unavailable", zap.String("fips", fips), zap.Error(err))
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		zap.L().Warn("area: census tier unavailable", zap.String("fips", fips), zap.Error(err))
		return property.AreaMetrics{}, false
	}
	if cur == nil {
		return property.AreaMetrics{}, false
	}
	tier := property.AreaMetrics{
		Population:            cur.Population,
		MedianHouseholdIncome: cur.MedianIncome,
		PovertyRate:           roundPtr(cur.PovertyRate),
		Employment:            cur.Employed,
		MedianPropertyValue:   cur.MedianHomeValue,
		TwoBedroomRent:        cur.TwoBedroomRent,
	}
	if prev != nil {
		tier.PopulationChange = normalize.PercentChange(cur.Population, prev.Population)
		tier.MedianHouseholdIncomeChange = normalize.PercentChange(cur.MedianIncome, prev.MedianIncome)
		tier.EmploymentChange = normalize.PercentChange(cur.Employed, prev.Employed)
		tier.MedianPropertyValueChange = normalize.PercentChange(cur.MedianHomeValue, prev.MedianHomeValue)
	}
	return tier, true
}

// openDataTier fetches the four county series concurrently and pairs the
// latest year of each with the year before it.
func (a *Aggregator) openDataTier(ctx context.Context, fips string) (property.AreaMetrics, bool) {
	if a.open == nil {
		return property.AreaMetrics{}, false
	}
	geoID := datausa.CountyGeoID(fips)
	measures := []string{
		datausa.MeasurePopulation,
		datausa.MeasureIncome,
		datausa.MeasurePropertyValue,
		datausa.MeasurePovertyRate,
	}
	series := make([][]datausa.Point, len(measures))

	var g errgroup.Group
	for i, m := range measures {
		g.Go(func() error {
			pts, err := a.open.Series(ctx, geoID, m)
			if err != nil {
				zap.L().Debug("area: open data series unavailable",
					zap.String("fips", fips),
					zap.String("measure", m),
					zap.Error(err),
				)
				return nil
			}
			series[i] = pts
			return nil
		})
	}
	_ = g.Wait()

	var tier property.AreaMetrics
	found := false
	value := func(pts []datausa.Point) (cur, change *float64) {
		c, p := datausa.LatestPair(pts)
		if c == nil {
			return nil, nil
		}
		found = true
		cur = normalize.Float(c.Value)
		if p != nil {
			change = normalize.PercentChange(cur, normalize.Float(p.Value))
		}
		return cur, change
	}
	tier.Population, tier.PopulationChange = value(series[0])
	tier.MedianHouseholdIncome, tier.MedianHouseholdIncomeChange = value(series[1])
	tier.MedianPropertyValue, tier.MedianPropertyValueChange = value(series[2])
	if rate, _ := value(series[3]); rate != nil {
		tier.PovertyRate = normalize.ToPercent(*rate)
	}
	return tier, found
}

func roundPtr(f *float64) *float64 {
	if f == nil {
		return nil
	}
	return normalize.Float(normalize.Round(*f, 2))
}
