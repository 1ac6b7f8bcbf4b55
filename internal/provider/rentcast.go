package provider

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"

	"github.com/sells-group/property-resolver/internal/normalize"
	"github.com/sells-group/property-resolver/internal/payload"
	"github.com/sells-group/property-resolver/internal/property"
	"github.com/sells-group/property-resolver/internal/resilience"
	"github.com/sells-group/property-resolver/pkg/rentcast"
)

// NameRentcast is the registry key of the Rentcast adapter.
const NameRentcast = "rentcast"

// rentcastNearbyLimit caps coordinate search results.
const rentcastNearbyLimit = 10

var rentcastPaths = fieldPaths{
	APN:          []string{"assessorID"},
	AssessorID:   []string{"assessorID"},
	ProviderID:   []string{"id"},
	Line1:        []string{"addressLine1"},
	Line2:        []string{"addressLine2"},
	OneLine:      []string{"formattedAddress"},
	City:         []string{"city"},
	County:       []string{"county"},
	State:        []string{"state"},
	Zip:          []string{"zipCode"},
	PropertyType: []string{"propertyType"},
	YearBuilt:    []string{"yearBuilt"},
	Owner:        []string{"owner.names.0"},
	LotSqft:      []string{"lotSize"},
	Lat:          []string{"latitude"},
	Lng:          []string{"longitude"},
	SaleDate:     []string{"lastSaleDate"},
	SalePrice:    []string{"lastSalePrice"},
}

// Rentcast adapts the Rentcast property records API. Rentcast has no
// parcel search, so ByParcel reports unsupported.
type Rentcast struct {
	client *rentcast.Client
	guard  *resilience.Guard
}

// NewRentcast wraps client. A nil guard gets default retry and breaker settings.
func NewRentcast(client *rentcast.Client, guard *resilience.Guard) *Rentcast {
	return &Rentcast{client: client, guard: guardOrDefault(guard)}
}

// Name implements Source.
func (r *Rentcast) Name() string { return NameRentcast }

// DisplayName implements Source.
func (r *Rentcast) DisplayName() string { return "Rentcast" }

// ByParcel implements Source.
func (r *Rentcast) ByParcel(context.Context, string, string) ([]property.Record, error) {
	return nil, nil
}

// ByAddress implements Source.
func (r *Rentcast) ByAddress(ctx context.Context, address string, parts normalize.AddressParts) ([]property.Record, error) {
	full := address
	if line1, line2 := addressLines(address, parts); line2 != "" {
		full = line1 + ", " + line2
	}
	return r.records(ctx, StepAddress, "", func(ctx context.Context) (json.RawMessage, error) {
		return r.client.PropertiesByAddress(ctx, full)
	})
}

// ByLocation implements Source.
func (r *Rentcast) ByLocation(ctx context.Context, lat, lng, radiusMiles float64) ([]property.Record, error) {
	return r.records(ctx, StepLocation, "", func(ctx context.Context) (json.RawMessage, error) {
		return r.client.PropertiesNear(ctx, lat, lng, radiusMiles, rentcastNearbyLimit)
	})
}

// Detail implements Enricher by re-reading the record by Rentcast ID.
func (r *Rentcast) Detail(ctx context.Context, rec property.Record) (*property.Record, error) {
	id := rec.Identifier.ProviderID
	if id == "" {
		return nil, nil
	}
	recs, err := r.records(ctx, StepDetail, id, func(ctx context.Context) (json.RawMessage, error) {
		return r.client.Property(ctx, id)
	})
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return &recs[0], nil
}

// Expanded implements Enricher. Rentcast has no expanded profile.
func (r *Rentcast) Expanded(context.Context, property.Record) ([]property.Record, error) {
	return nil, nil
}

func (r *Rentcast) records(ctx context.Context, step, id string, fn func(context.Context) (json.RawMessage, error)) ([]property.Record, error) {
	doc, err := fetch(ctx, r.guard, NameRentcast, step, fn)
	if err != nil {
		return nil, err
	}
	var list []any
	switch v := doc.(type) {
	case []any:
		list = v
	case map[string]any:
		if id != "" {
			list = []any{v}
		}
	}
	recs := rentcastPaths.extractAll(NameRentcast, list)
	for i := range recs {
		applyRentcastTaxes(&recs[i])
	}
	return recs, nil
}

// applyRentcastTaxes fills the county FIPS from Rentcast's split codes and
// the assessment and tax blocks from its per-year maps, using the latest
// year and the one before it.
func applyRentcastTaxes(rec *property.Record) {
	if county := normalize.ToString(payload.Get(rec.Raw, "countyFips")); len(county) == 5 {
		rec.Identifier.FIPS = county
	} else if state := normalize.ToString(payload.Get(rec.Raw, "stateFips")); state != "" && county != "" {
		rec.Identifier.FIPS = normalize.CombineFIPS(state, county)
	}

	assessments := payload.Object(rec.Raw, "taxAssessments")
	taxes := payload.Object(rec.Raw, "propertyTaxes")

	if years := yearKeys(assessments); len(years) > 0 {
		latest := assessments[years[0]]
		if v := normalize.PickPositive(payload.Get(latest, "value")); v != nil {
			rec.Assessment = &property.AssessmentBlock{Assessed: v}
		}
	}
	years := yearKeys(taxes)
	if len(years) == 0 {
		return
	}
	tax := &property.TaxBlock{
		Amount: normalize.PickPositive(payload.Get(taxes[years[0]], "total")),
		Year:   normalize.ToInt(years[0]),
	}
	if len(years) > 1 {
		tax.PriorAmount = normalize.PickPositive(payload.Get(taxes[years[1]], "total"))
	}
	if tax.Amount != nil || tax.PriorAmount != nil {
		rec.Tax = tax
	}
}

// yearKeys returns the numeric keys of m, newest first.
func yearKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		if _, err := strconv.Atoi(k); err == nil {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		a, _ := strconv.Atoi(keys[i])
		b, _ := strconv.Atoi(keys[j])
		return a > b
	})
	return keys
}
