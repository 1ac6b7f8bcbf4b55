package provider

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/sells-group/property-resolver/internal/normalize"
	"github.com/sells-group/property-resolver/internal/payload"
	"github.com/sells-group/property-resolver/internal/property"
	"github.com/sells-group/property-resolver/internal/resilience"
	"github.com/sells-group/property-resolver/pkg/melissa"
)

// NameMelissa is the registry key of the Melissa adapter.
const NameMelissa = "melissa"

// maxReverseRecords caps the address keys looked up per coordinate search.
const maxReverseRecords = 3

var melissaPaths = fieldPaths{
	APN:          []string{"Parcel.UnformattedAPN", "Parcel.FormattedAPN"},
	FIPS:         []string{"Parcel.FIPSCode"},
	ProviderID:   []string{"PropertyAddress.MAK", "MAK"},
	Line1:        []string{"PropertyAddress.Address", "PropertyAddress.AddressLine1"},
	City:         []string{"PropertyAddress.City"},
	County:       []string{"Parcel.County"},
	State:        []string{"PropertyAddress.State"},
	Zip:          []string{"PropertyAddress.Zip"},
	PropertyType: []string{"PropertyUseInfo.PropertyUseGroup", "PropertyUseInfo.PropertyUseStandardized"},
	YearBuilt:    []string{"PropertyUseInfo.YearBuilt"},
	Owner:        []string{"PrimaryOwner.Name1Full"},
	LotSqft:      []string{"PropertySize.AreaLotSF"},
	LotAcres:     []string{"PropertySize.AreaLotAcres"},
	Lat:          []string{"PropertyAddress.Latitude"},
	Lng:          []string{"PropertyAddress.Longitude"},
	SaleDate:     []string{"SaleInfo.DeedLastSaleDate", "SaleInfo.AssessorLastSaleDate"},
	SalePrice:    []string{"SaleInfo.DeedLastSalePrice", "SaleInfo.AssessorLastSaleAmount"},
	Assessed:     []string{"Tax.AssessedValueTotal"},
	Market:       []string{"Tax.MarketValueTotal"},
	TaxAmount:    []string{"Tax.TaxBilledAmount"},
	TaxYear:      []string{"Tax.TaxFiscalYear", "Tax.YearAssessed"},
}

// Melissa adapts the Melissa property and reverse-geocode services.
type Melissa struct {
	client *melissa.Client
	guard  *resilience.Guard
}

// NewMelissa wraps client. A nil guard gets default retry and breaker settings.
func NewMelissa(client *melissa.Client, guard *resilience.Guard) *Melissa {
	return &Melissa{client: client, guard: guardOrDefault(guard)}
}

// Name implements Source.
func (m *Melissa) Name() string { return NameMelissa }

// DisplayName implements Source.
func (m *Melissa) DisplayName() string { return "Melissa" }

// ByParcel implements Source.
func (m *Melissa) ByParcel(ctx context.Context, apn, fips string) ([]property.Record, error) {
	return m.records(ctx, StepParcel, func(ctx context.Context) (json.RawMessage, error) {
		return m.client.PropertyByParcel(ctx, apn, fips)
	})
}

// ByAddress implements Source. Known locality parts missing from the text
// are appended to the free-form query.
func (m *Melissa) ByAddress(ctx context.Context, address string, parts normalize.AddressParts) ([]property.Record, error) {
	ff := address
	if line1, line2 := addressLines(address, parts); line2 != "" {
		ff = line1 + ", " + line2
	}
	return m.records(ctx, StepAddress, func(ctx context.Context) (json.RawMessage, error) {
		return m.client.PropertyByAddress(ctx, ff)
	})
}

// ByLocation reverse-geocodes the point and looks up the nearest address
// keys. A failed key lookup is skipped; the search fails only when the
// reverse geocode itself does.
func (m *Melissa) ByLocation(ctx context.Context, lat, lng, radiusMiles float64) ([]property.Record, error) {
	doc, err := fetch(ctx, m.guard, NameMelissa, StepLocation, func(ctx context.Context) (json.RawMessage, error) {
		return m.client.ReverseGeocode(ctx, lat, lng, radiusMiles, maxReverseRecords)
	})
	if err != nil {
		return nil, err
	}

	var out []property.Record
	for _, item := range payload.Array(doc, "Records") {
		mak := normalize.ToString(payload.First(item, "MelissaAddressKey", "MAK"))
		if mak == "" {
			continue
		}
		recs, err := m.records(ctx, StepLocation, func(ctx context.Context) (json.RawMessage, error) {
			return m.client.PropertyByAddressKey(ctx, mak)
		})
		if err != nil {
			zap.L().Debug("provider: melissa address key lookup failed",
				zap.String("provider", NameMelissa),
				zap.Error(err),
			)
			continue
		}
		out = append(out, recs...)
		if len(out) >= maxReverseRecords {
			break
		}
	}
	return out, nil
}

func (m *Melissa) records(ctx context.Context, step string, fn func(context.Context) (json.RawMessage, error)) ([]property.Record, error) {
	doc, err := fetch(ctx, m.guard, NameMelissa, step, fn)
	if err != nil {
		return nil, err
	}
	recs := melissaPaths.extractAll(NameMelissa, payload.Array(doc, "Records"))
	out := recs[:0]
	for _, r := range recs {
		// Melissa answers unmatched queries with an empty record shell.
		if r.HasAPN() || r.Address.Line1 != "" {
			out = append(out, r)
		}
	}
	return out, nil
}
