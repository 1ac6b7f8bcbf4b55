package provider

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/sells-group/property-resolver/internal/normalize"
	"github.com/sells-group/property-resolver/internal/payload"
	"github.com/sells-group/property-resolver/internal/property"
	"github.com/sells-group/property-resolver/internal/resilience"
	"github.com/sells-group/property-resolver/pkg/attom"
)

// NameATTOM is the registry key of the ATTOM adapter.
const NameATTOM = "attom"

var attomPaths = fieldPaths{
	APN:          []string{"identifier.apn", "identifier.apnOrig"},
	FIPS:         []string{"identifier.fips", "area.countrySecSubdCode"},
	ProviderID:   []string{"identifier.attomId", "identifier.Id"},
	Line1:        []string{"address.line1"},
	Line2:        []string{"address.line2"},
	OneLine:      []string{"address.oneLine"},
	City:         []string{"address.locality"},
	County:       []string{"area.countrySecSubd", "area.munName"},
	State:        []string{"address.countrySubd"},
	Zip:          []string{"address.postal1"},
	PropertyType: []string{"summary.propertyType", "summary.propType", "summary.propSubType"},
	YearBuilt:    []string{"summary.yearBuilt", "building.summary.yearBuilt"},
	Owner:        []string{"owner.owner1.fullName", "owner.owner1.lastName"},
	LotSqft:      []string{"lot.lotSize2", "lot.lotsize2"},
	LotAcres:     []string{"lot.lotSize1", "lot.lotsize1"},
	Lat:          []string{"location.latitude"},
	Lng:          []string{"location.longitude"},
	GeoIDV4:      []string{"location.geoIdV4.CO", "area.geoIdV4.CO"},
	SaleDate:     []string{"sale.saleAmountData.saleRecDate", "sale.saleTransDate", "sale.salesearchdate"},
	SalePrice:    []string{"sale.saleAmountData.saleAmt", "sale.amount.saleamt"},
	Assessed:     []string{"assessment.assessed.assdTtlValue"},
	Market:       []string{"assessment.market.mktTtlValue"},
	TaxAmount:    []string{"assessment.tax.taxAmt"},
	TaxYear:      []string{"assessment.tax.taxYear"},
}

// ATTOM adapts the ATTOM property API. Besides the three lookups it
// implements Enricher and exposes the community endpoints the area
// aggregator uses.
type ATTOM struct {
	client *attom.Client
	guard  *resilience.Guard
}

// NewATTOM wraps client. A nil guard gets default retry and breaker settings.
func NewATTOM(client *attom.Client, guard *resilience.Guard) *ATTOM {
	return &ATTOM{client: client, guard: guardOrDefault(guard)}
}

// Name implements Source.
func (a *ATTOM) Name() string { return NameATTOM }

// DisplayName implements Source.
func (a *ATTOM) DisplayName() string { return "ATTOM" }

// ByParcel implements Source.
func (a *ATTOM) ByParcel(ctx context.Context, apn, fips string) ([]property.Record, error) {
	return a.properties(ctx, StepParcel, func(ctx context.Context) (json.RawMessage, error) {
		return a.client.BasicProfileByParcel(ctx, apn, fips)
	})
}

// ByAddress implements Source.
func (a *ATTOM) ByAddress(ctx context.Context, address string, parts normalize.AddressParts) ([]property.Record, error) {
	line1, line2 := addressLines(address, parts)
	if line1 == "" {
		return nil, nil
	}
	return a.properties(ctx, StepAddress, func(ctx context.Context) (json.RawMessage, error) {
		return a.client.BasicProfileByAddress(ctx, line1, line2)
	})
}

// ByLocation implements Source.
func (a *ATTOM) ByLocation(ctx context.Context, lat, lng, radiusMiles float64) ([]property.Record, error) {
	return a.properties(ctx, StepLocation, func(ctx context.Context) (json.RawMessage, error) {
		return a.client.Snapshot(ctx, lat, lng, radiusMiles)
	})
}

// Detail implements Enricher using the ATTOM ID of rec.
func (a *ATTOM) Detail(ctx context.Context, rec property.Record) (*property.Record, error) {
	id := rec.Identifier.ProviderID
	if id == "" {
		return nil, nil
	}
	recs, err := a.properties(ctx, StepDetail, func(ctx context.Context) (json.RawMessage, error) {
		return a.client.Detail(ctx, id)
	})
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return &recs[0], nil
}

// Expanded implements Enricher using the address of rec.
func (a *ATTOM) Expanded(ctx context.Context, rec property.Record) ([]property.Record, error) {
	line1, line2 := rec.Address.Line1, rec.Address.Line2
	if line1 == "" {
		line1, line2 = addressLines(rec.OneLine(), normalize.AddressParts{
			City: rec.Address.City, State: rec.Address.State, Zip: rec.Address.Zip,
		})
	}
	if line1 == "" {
		return nil, nil
	}
	return a.properties(ctx, StepExpanded, func(ctx context.Context) (json.RawMessage, error) {
		return a.client.ExpandedProfile(ctx, line1, line2)
	})
}

// Community returns the decoded community document for a v4 geography ID.
func (a *ATTOM) Community(ctx context.Context, geoIDV4 string) (any, error) {
	return fetch(ctx, a.guard, NameATTOM, StepCommunity, func(ctx context.Context) (json.RawMessage, error) {
		return a.client.Community(ctx, geoIDV4)
	})
}

// GeoID resolves a place name to a v4 geography ID of the given type. An
// empty string means no geography matched.
func (a *ATTOM) GeoID(ctx context.Context, name, geographyType string) (string, error) {
	doc, err := fetch(ctx, a.guard, NameATTOM, StepGeoLookup, func(ctx context.Context) (json.RawMessage, error) {
		return a.client.LocationLookup(ctx, name, geographyType)
	})
	if err != nil {
		return "", err
	}
	for _, list := range []string{"geographies", "response.result.package.item", "locations"} {
		for _, item := range payload.Array(doc, list) {
			if id := normalize.ToString(payload.First(item, "geoIdV4", "geoIdv4", "geoid")); id != "" {
				return id, nil
			}
		}
	}
	if v, ok := payload.FindKey(doc, []string{"geoIdV4"}, payload.MaxSearchDepth); ok {
		return normalize.ToString(v), nil
	}
	return "", nil
}

func (a *ATTOM) properties(ctx context.Context, step string, fn func(context.Context) (json.RawMessage, error)) ([]property.Record, error) {
	doc, err := fetch(ctx, a.guard, NameATTOM, step, fn)
	if err != nil {
		return nil, err
	}
	return attomPaths.extractAll(NameATTOM, payload.Array(doc, "property")), nil
}

// addressLines splits a one-line address into ATTOM's street and locality
// lines, composing the locality from parts when the address has none.
func addressLines(address string, parts normalize.AddressParts) (line1, line2 string) {
	line1, line2 = normalize.SplitAddress(address)
	if line2 != "" {
		return line1, line2
	}
	loc := strings.TrimSpace(strings.Join(nonBlank(parts.State, parts.Zip), " "))
	switch {
	case parts.City != "" && loc != "":
		line2 = parts.City + ", " + loc
	case parts.City != "":
		line2 = parts.City
	default:
		line2 = loc
	}
	return line1, line2
}

func nonBlank(vals ...string) []string {
	out := vals[:0:0]
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
