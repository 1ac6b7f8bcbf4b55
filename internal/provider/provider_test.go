package provider

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/property-resolver/internal/normalize"
	"github.com/sells-group/property-resolver/internal/property"
	"github.com/sells-group/property-resolver/internal/resilience"
	"github.com/sells-group/property-resolver/pkg/attom"
	"github.com/sells-group/property-resolver/pkg/melissa"
	"github.com/sells-group/property-resolver/pkg/rentcast"
	"github.com/sells-group/property-resolver/pkg/reportall"
)

type staticKeys map[string]string

func (k staticKeys) Key(_ context.Context, name string) (string, error) { return k[name], nil }

type failingKeys struct{}

func (failingKeys) Key(context.Context, string) (string, error) { return "", errors.New("boom") }

func noRetry() *resilience.Guard {
	return resilience.NewGuard(resilience.WithRetry(resilience.RetryPolicy{Attempts: 1}))
}

func TestRegistry_Open(t *testing.T) {
	r := NewRegistry(staticKeys{"attom.key": "k1"})
	var gotKey string
	r.Register("ATTOM", "attom.key", func(key string) Source {
		gotKey = key
		return NewATTOM(attom.NewClient(key), nil)
	})
	r.Register("melissa", "melissa.key", func(key string) Source {
		return NewMelissa(melissa.NewClient(key), nil)
	})

	assert.Equal(t, []string{"attom", "melissa"}, r.Names())

	src, err := r.Open(context.Background(), "attom")
	require.NoError(t, err)
	assert.Equal(t, "ATTOM", src.DisplayName())
	assert.Equal(t, "k1", gotKey)

	_, err = r.Open(context.Background(), "melissa")
	var cfgErr *property.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "melissa.key", cfgErr.Credential)
	assert.True(t, property.IsFatal(err))

	_, err = r.Open(context.Background(), "zillow")
	var valErr *property.ValidationError
	assert.ErrorAs(t, err, &valErr)
}

func TestRegistry_Open_ResolverError(t *testing.T) {
	r := NewRegistry(failingKeys{})
	r.Register("attom", "attom.key", func(key string) Source { return NewATTOM(attom.NewClient(key), nil) })
	_, err := r.Open(context.Background(), "attom")
	assert.Error(t, err)
}

const attomBody = `{"status": {"code": 0}, "property": [{
	"identifier": {"attomId": 184713191, "fips": "17167", "apn": "14-28-126-001"},
	"address": {"line1": "123 MAIN ST", "line2": "SPRINGFIELD, IL 62701", "locality": "SPRINGFIELD",
		"countrySubd": "IL", "postal1": "62701", "oneLine": "123 MAIN ST, SPRINGFIELD, IL 62701"},
	"area": {"countrySecSubd": "Sangamon"},
	"summary": {"propertyType": "MOBILE HOME PARK", "yearBuilt": 1972},
	"owner": {"owner1": {"fullName": "PRAIRIE PARKS LLC"}},
	"lot": {"lotSize1": 12.5, "lotSize2": 544500},
	"location": {"latitude": "39.781721", "longitude": "-89.650148", "geoIdV4": {"CO": "CO-17167"}},
	"sale": {"saleAmountData": {"saleAmt": 1250000, "saleRecDate": "2019-06-14"}},
	"assessment": {
		"assessed": {"assdTtlValue": 350000},
		"market": {"mktTtlValue": 1050000},
		"tax": {"taxAmt": 7000, "taxYear": 2024}
	}
}]}`

func TestATTOM_ByAddress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/propertyapi/v1.0.0/property/basicprofile", r.URL.Path)
		assert.Equal(t, "123 Main St", r.URL.Query().Get("address1"))
		assert.Equal(t, "Springfield, IL 62701", r.URL.Query().Get("address2"))
		_, _ = io.WriteString(w, attomBody)
	}))
	defer srv.Close()

	a := NewATTOM(attom.NewClient("k", attom.WithBaseURL(srv.URL)), noRetry())
	recs, err := a.ByAddress(context.Background(), "123 Main St", normalize.AddressParts{City: "Springfield", State: "IL", Zip: "62701"})
	require.NoError(t, err)
	require.Len(t, recs, 1)

	rec := recs[0]
	assert.Equal(t, NameATTOM, rec.Provider)
	assert.Equal(t, "1428126001", rec.Identifier.APN)
	assert.Equal(t, "17167", rec.Identifier.FIPS)
	assert.Equal(t, "184713191", rec.Identifier.ProviderID)
	assert.Equal(t, "IL", rec.Address.State)
	assert.Equal(t, "Sangamon", rec.Address.County)
	assert.Equal(t, "CO-17167", rec.Location.GeoIDV4)
	assert.Equal(t, "PRAIRIE PARKS LLC", rec.Summary.OwnerName)
	require.NotNil(t, rec.Summary.YearBuilt)
	assert.Equal(t, 1972, *rec.Summary.YearBuilt)
	require.NotNil(t, rec.Location.Lat)
	assert.InDelta(t, 39.781721, *rec.Location.Lat, 1e-9)
	assert.Equal(t, "2019-06-14", rec.Sale.Date)
	require.NotNil(t, rec.Assessment)
	assert.Equal(t, 350000.0, *rec.Assessment.Assessed)
	assert.Equal(t, 1050000.0, *rec.Assessment.Market)
	require.NotNil(t, rec.Tax)
	assert.Equal(t, 7000.0, *rec.Tax.Amount)
	assert.Equal(t, 2024, *rec.Tax.Year)
}

func TestATTOM_DetailAndExpanded(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		_, _ = io.WriteString(w, attomBody)
	}))
	defer srv.Close()

	a := NewATTOM(attom.NewClient("k", attom.WithBaseURL(srv.URL)), noRetry())
	ctx := context.Background()

	none, err := a.Detail(ctx, property.Record{})
	require.NoError(t, err)
	assert.Nil(t, none)

	rec := property.Record{Identifier: property.IdentifierBlock{ProviderID: "184713191"}}
	detail, err := a.Detail(ctx, rec)
	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.Equal(t, "1428126001", detail.Identifier.APN)

	rec.Address.Line1 = "123 MAIN ST"
	rec.Address.Line2 = "SPRINGFIELD, IL 62701"
	expanded, err := a.Expanded(ctx, rec)
	require.NoError(t, err)
	assert.Len(t, expanded, 1)

	assert.Equal(t, []string{
		"/propertyapi/v1.0.0/property/detail",
		"/propertyapi/v1.0.0/property/expandedprofile",
	}, paths)
}

func TestATTOM_FailureIsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"status": {"msg": "SuccessWithoutResult"}}`)
	}))
	defer srv.Close()

	a := NewATTOM(attom.NewClient("k", attom.WithBaseURL(srv.URL)), noRetry())
	ctx := WithStep(context.Background(), StepNormalizedAddress)
	_, err := a.ByAddress(ctx, "1 Nowhere Rd, Springfield, IL", normalize.AddressParts{})

	var pe *property.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, NameATTOM, pe.Provider)
	assert.Equal(t, StepNormalizedAddress, pe.Step)
	assert.Equal(t, http.StatusBadRequest, pe.StatusCode)
	assert.False(t, property.IsFatal(err))
}

func TestATTOM_GeoID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("name") {
		case "Sangamon, IL":
			_, _ = io.WriteString(w, `{"geographies": [{"geoIdV4": "CO-17167", "name": "Sangamon"}]}`)
		case "Deep, IL":
			_, _ = io.WriteString(w, `{"response": {"wrapper": {"match": {"geoIdV4": "PL-99"}}}}`)
		default:
			_, _ = io.WriteString(w, `{"geographies": []}`)
		}
	}))
	defer srv.Close()

	a := NewATTOM(attom.NewClient("k", attom.WithBaseURL(srv.URL)), noRetry())
	ctx := context.Background()

	id, err := a.GeoID(ctx, "Sangamon, IL", "CO")
	require.NoError(t, err)
	assert.Equal(t, "CO-17167", id)

	id, err = a.GeoID(ctx, "Deep, IL", "PL")
	require.NoError(t, err)
	assert.Equal(t, "PL-99", id)

	id, err = a.GeoID(ctx, "Nowhere, IL", "CO")
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestMelissa_ByLocation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch r.URL.Path {
		case "/v3/web/ReverseGeoCode/doLookup":
			assert.Equal(t, "2", q.Get("dist"))
			_, _ = io.WriteString(w, `{"Records": [
				{"MelissaAddressKey": "111"},
				{"MelissaAddressKey": "222"},
				{"AddressLine1": "no key"}
			]}`)
		case "/v4/WEB/LookupProperty":
			if q.Get("mak") == "222" {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			_, _ = io.WriteString(w, `{"Records": [{
				"Parcel": {"FIPSCode": "17167", "UnformattedAPN": "1428126001"},
				"PropertyAddress": {"Address": "123 Main St", "City": "Springfield", "State": "IL",
					"Zip": "62701-1234", "MAK": "111"},
				"Tax": {"TaxBilledAmount": "7000", "AssessedValueTotal": "350000", "TaxFiscalYear": "2024"}
			}]}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	m := NewMelissa(melissa.NewClient("lic", melissa.WithBaseURL(srv.URL)), noRetry())
	recs, err := m.ByLocation(context.Background(), 39.78, -89.65, 2)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "1428126001", recs[0].Identifier.APN)
	assert.Equal(t, "62701", recs[0].Address.Zip)
	require.NotNil(t, recs[0].Tax)
	assert.Equal(t, 7000.0, *recs[0].Tax.Amount)
}

func TestMelissa_EmptyShellDropped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"TotalRecords": "1", "Records": [{"Results": "YE01", "Parcel": {}, "PropertyAddress": {}}]}`)
	}))
	defer srv.Close()

	m := NewMelissa(melissa.NewClient("lic", melissa.WithBaseURL(srv.URL)), noRetry())
	recs, err := m.ByAddress(context.Background(), "1 Nowhere Rd", normalize.AddressParts{City: "Springfield", State: "IL"})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestRentcast_TaxYears(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/properties", r.URL.Path)
		assert.Equal(t, "123 Main St, Springfield, IL 62701", r.URL.Query().Get("address"))
		_, _ = io.WriteString(w, `[{
			"id": "123-Main-St,-Springfield,-IL-62701",
			"formattedAddress": "123 Main St, Springfield, IL 62701",
			"addressLine1": "123 Main St", "city": "Springfield", "state": "IL", "zipCode": "62701",
			"stateFips": "17", "countyFips": "167",
			"assessorID": "14-28-126-001",
			"taxAssessments": {"2023": {"year": 2023, "value": 340000}, "2024": {"year": 2024, "value": 350000}},
			"propertyTaxes": {"2022": {"total": 6500}, "2023": {"total": 6800}, "2024": {"total": 7000}}
		}]`)
	}))
	defer srv.Close()

	rc := NewRentcast(rentcast.NewClient("k", rentcast.WithBaseURL(srv.URL)), noRetry())
	recs, err := rc.ByAddress(context.Background(), "123 Main St, Springfield, IL 62701", normalize.AddressParts{})
	require.NoError(t, err)
	require.Len(t, recs, 1)

	rec := recs[0]
	assert.Equal(t, "1428126001", rec.Identifier.APN)
	assert.Equal(t, "17167", rec.Identifier.FIPS)
	require.NotNil(t, rec.Assessment)
	assert.Equal(t, 350000.0, *rec.Assessment.Assessed)
	require.NotNil(t, rec.Tax)
	assert.Equal(t, 7000.0, *rec.Tax.Amount)
	assert.Equal(t, 6800.0, *rec.Tax.PriorAmount)
	assert.Equal(t, 2024, *rec.Tax.Year)

	none, err := rc.ByParcel(context.Background(), "1", "17167")
	assert.NoError(t, err)
	assert.Nil(t, none)
}

func TestReportAll_CentroidFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/parcels", r.URL.Path)
		assert.Equal(t, "14-28-126-001", r.URL.Query().Get("parcel_id"))
		_, _ = io.WriteString(w, `{"status": "OK", "count": 1, "results": [{
			"parcel_id": "14-28-126-001", "county_id": 17167, "state_abbr": "IL",
			"address": "123 MAIN ST", "physcity": "SPRINGFIELD", "acreage_calc": 12.5,
			"mkt_val_tot": 1050000,
			"geom_as_wkt": "MULTIPOLYGON(((-89.66 39.77,-89.64 39.77,-89.64 39.79,-89.66 39.79,-89.66 39.77)))"
		}]}`)
	}))
	defer srv.Close()

	ra := NewReportAll(reportall.NewClient("c", reportall.WithBaseURL(srv.URL)), noRetry())
	recs, err := ra.ByParcel(context.Background(), "14-28-126-001", "17167")
	require.NoError(t, err)
	require.Len(t, recs, 1)

	rec := recs[0]
	assert.Equal(t, "17167", rec.Identifier.FIPS)
	require.NotNil(t, rec.Location.Lat)
	assert.InDelta(t, 39.78, *rec.Location.Lat, 1e-9)
	assert.InDelta(t, -89.65, *rec.Location.Lng, 1e-9)
	require.NotNil(t, rec.Assessment)
	assert.Nil(t, rec.Assessment.Assessed)
	assert.Equal(t, 1050000.0, *rec.Assessment.Market)
}

func TestAddressLines(t *testing.T) {
	l1, l2 := addressLines("123 Main St, Springfield, IL 62701", normalize.AddressParts{City: "Ignored"})
	assert.Equal(t, "123 Main St", l1)
	assert.Equal(t, "Springfield, IL 62701", l2)

	l1, l2 = addressLines("123 Main St", normalize.AddressParts{State: "IL"})
	assert.Equal(t, "123 Main St", l1)
	assert.Equal(t, "IL", l2)
}
