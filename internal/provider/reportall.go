package provider

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/sells-group/property-resolver/internal/normalize"
	"github.com/sells-group/property-resolver/internal/payload"
	"github.com/sells-group/property-resolver/internal/property"
	"github.com/sells-group/property-resolver/internal/resilience"
	"github.com/sells-group/property-resolver/pkg/reportall"
)

// NameReportAll is the registry key of the ReportAllUSA adapter.
const NameReportAll = "reportall"

var reportAllPaths = fieldPaths{
	APN:          []string{"parcel_id", "parcel_id2"},
	FIPS:         []string{"county_id", "cty_row_id"},
	ProviderID:   []string{"robust_id"},
	Line1:        []string{"address"},
	City:         []string{"physcity", "muni_name"},
	County:       []string{"county_name"},
	State:        []string{"state_abbr"},
	Zip:          []string{"physzip", "census_zip"},
	PropertyType: []string{"land_use_class", "land_use_code"},
	YearBuilt:    []string{"year_built"},
	Owner:        []string{"owner"},
	LotSqft:      []string{"sqft_calc"},
	LotAcres:     []string{"acreage_calc", "acreage_deeded"},
	Lat:          []string{"latitude"},
	Lng:          []string{"longitude"},
	SaleDate:     []string{"trans_date"},
	SalePrice:    []string{"sale_price"},
	Market:       []string{"mkt_val_tot"},
}

// ReportAll adapts the ReportAllUSA parcel API.
type ReportAll struct {
	client *reportall.Client
	guard  *resilience.Guard
}

// NewReportAll wraps client. A nil guard gets default retry and breaker settings.
func NewReportAll(client *reportall.Client, guard *resilience.Guard) *ReportAll {
	return &ReportAll{client: client, guard: guardOrDefault(guard)}
}

// Name implements Source.
func (r *ReportAll) Name() string { return NameReportAll }

// DisplayName implements Source.
func (r *ReportAll) DisplayName() string { return "ReportAllUSA" }

// ByParcel implements Source.
func (r *ReportAll) ByParcel(ctx context.Context, apn, fips string) ([]property.Record, error) {
	return r.parcels(ctx, StepParcel, func(ctx context.Context) (json.RawMessage, error) {
		return r.client.ParcelsByID(ctx, apn, fips)
	})
}

// ByAddress implements Source. The locality line, or the known city and
// state, scopes the search region.
func (r *ReportAll) ByAddress(ctx context.Context, address string, parts normalize.AddressParts) ([]property.Record, error) {
	line1, line2 := normalize.SplitAddress(address)
	region := line2
	if region == "" {
		region = strings.Join(nonBlank(parts.City, normalize.StateAbbr(parts.State)), ", ")
	}
	if line1 == "" {
		return nil, nil
	}
	return r.parcels(ctx, StepAddress, func(ctx context.Context) (json.RawMessage, error) {
		return r.client.ParcelsByAddress(ctx, line1, region)
	})
}

// ByLocation implements Source. Parcels are matched by point intersection,
// so the radius is unused.
func (r *ReportAll) ByLocation(ctx context.Context, lat, lng, _ float64) ([]property.Record, error) {
	return r.parcels(ctx, StepLocation, func(ctx context.Context) (json.RawMessage, error) {
		return r.client.ParcelsAtPoint(ctx, lat, lng)
	})
}

func (r *ReportAll) parcels(ctx context.Context, step string, fn func(context.Context) (json.RawMessage, error)) ([]property.Record, error) {
	doc, err := fetch(ctx, r.guard, NameReportAll, step, fn)
	if err != nil {
		return nil, err
	}
	recs := reportAllPaths.extractAll(NameReportAll, payload.Array(doc, "results"))
	for i := range recs {
		fillCentroid(&recs[i])
	}
	return recs, nil
}

// fillCentroid derives coordinates from the parcel geometry when the
// record has none.
func fillCentroid(rec *property.Record) {
	if rec.Location.Lat != nil && rec.Location.Lng != nil {
		return
	}
	geom := normalize.ToString(payload.First(rec.Raw, "geom_as_wkt", "geom"))
	if geom == "" {
		return
	}
	lat, lng, err := reportall.Centroid(geom)
	if err != nil {
		return
	}
	rec.Location.Lat, rec.Location.Lng = normalize.Float(lat), normalize.Float(lng)
}
