package area

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/property-resolver/internal/normalize"
	"github.com/sells-group/property-resolver/internal/payload"
	"github.com/sells-group/property-resolver/internal/property"
)

// fipsPaths are the payload locations providers use for county FIPS.
var fipsPaths = []string{
	"identifier.fips",
	"area.countrySecSubdCode",
	"Parcel.FIPSCode",
	"county_id",
	"countyFips",
	"geography.geoid",
}

// fipsKeys are searched breadth-first when no declared path matched.
var fipsKeys = []string{"fips", "fips_code", "fipsCode", "county_fips", "countyFips", "geoid", "GEOID"}

// Locator is where a FIPS search starts: a resolved record, the caller's
// context, or both.
type Locator struct {
	Record *property.Record
	Lookup property.LookupContext
}

func (l Locator) coordinates() (lat, lng *float64) {
	if l.Record != nil && l.Record.Location.Lat != nil && l.Record.Location.Lng != nil {
		return l.Record.Location.Lat, l.Record.Location.Lng
	}
	return l.Lookup.Lat, l.Lookup.Lng
}

func (l Locator) county() string {
	if l.Record != nil && l.Record.Address.County != "" {
		return l.Record.Address.County
	}
	return l.Lookup.County
}

func (l Locator) state() string {
	if l.Record != nil && l.Record.Address.State != "" {
		return normalize.StateAbbr(l.Record.Address.State)
	}
	return normalize.StateAbbr(l.Lookup.State)
}

func (l Locator) city() string {
	if l.Record != nil && l.Record.Address.City != "" {
		return l.Record.Address.City
	}
	return l.Lookup.City
}

// ResolveFIPS finds the county FIPS for loc. Each method runs only when the
// previous found nothing: the record and its payload, the caller's code,
// the census geocoder by coordinates, then state plus county name against
// the census county list. Returns "" when every method fails.
func (a *Aggregator) ResolveFIPS(ctx context.Context, loc Locator) string {
	if fips := fromPayload(loc.Record); fips != "" {
		return fips
	}
	if fips := normalize.FIPS(loc.Lookup.FIPSCode); fips != "" {
		return fips
	}
	if fips := a.fipsAt(ctx, loc); fips != "" {
		return fips
	}
	return a.fipsByName(ctx, loc.state(), loc.county())
}

func fromPayload(rec *property.Record) string {
	if rec == nil {
		return ""
	}
	if fips := normalize.FIPS(rec.Identifier.FIPS); fips != "" {
		return fips
	}
	if fips := normalize.FIPS(payload.First(rec.Raw, fipsPaths...)); fips != "" {
		return fips
	}
	if v, ok := payload.FindKey(rec.Raw, fipsKeys, payload.MaxSearchDepth); ok {
		return normalize.FIPS(v)
	}
	return ""
}

func (a *Aggregator) fipsAt(ctx context.Context, loc Locator) string {
	lat, lng := loc.coordinates()
	if a.census == nil || lat == nil || lng == nil {
		return ""
	}
	county, ok, err := a.census.CountyAt(ctx, *lat, *lng)
	if err != nil {
		zap.L().Warn("area: census geocode failed", zap.Error(err))
		return ""
	}
	if !ok {
		return ""
	}
	return normalize.FIPS(county.GEOID)
}

func (a *Aggregator) fipsByName(ctx context.Context, state, county string) string {
	st, ok := normalize.LookupState(state)
	key := normalize.CountyName(county)
	if a.census == nil || !ok || key == "" {
		return ""
	}
	counties, err := a.census.Counties(ctx, a.year, st.FIPS)
	if err != nil {
		zap.L().Warn("area: census county list failed", zap.String("state", st.Abbr), zap.Error(err))
		return ""
	}
	for _, c := range counties {
		if normalize.CountyName(c.Name) == key {
			return normalize.FIPS(c.GEOID)
		}
	}
	return ""
}
