package provider

import (
	"github.com/sells-group/property-resolver/internal/normalize"
	"github.com/sells-group/property-resolver/internal/payload"
	"github.com/sells-group/property-resolver/internal/property"
)

// fieldPaths declares, per record field, the payload paths a provider
// populates, in priority order.
type fieldPaths struct {
	APN, FIPS, AssessorID, ProviderID           []string
	Line1, Line2, OneLine, City, County, State  []string
	Zip                                         []string
	PropertyType, YearBuilt, Owner              []string
	LotSqft, LotAcres                           []string
	Lat, Lng, GeoIDV4                           []string
	SaleDate, SalePrice                         []string
	Assessed, Market                            []string
	TaxAmount, PriorTaxAmount, TaxYear          []string
	Population, MedianIncome, PovertyRate       []string
	Employment, MedianHomeValue, TwoBedroomRent []string
}

func values(doc any, paths []string) []any {
	out := make([]any, 0, len(paths))
	for _, p := range paths {
		if v := payload.Get(doc, p); v != nil {
			out = append(out, v)
		}
	}
	return out
}

func str(doc any, paths []string) string { return normalize.PickString(values(doc, paths)...) }

func num(doc any, paths []string) *float64 { return normalize.PickNumber(values(doc, paths)...) }

func positive(doc any, paths []string) *float64 { return normalize.PickPositive(values(doc, paths)...) }

func integer(doc any, paths []string) *int { return normalize.PickInt(values(doc, paths)...) }

// extract builds a record from one candidate object of a payload.
func (p fieldPaths) extract(provider string, doc any) property.Record {
	rec := property.Record{
		Provider: provider,
		Raw:      doc,
		Identifier: property.IdentifierBlock{
			APN:        normalize.APN(str(doc, p.APN)),
			FIPS:       normalize.FIPS(str(doc, p.FIPS)),
			AssessorID: str(doc, p.AssessorID),
			ProviderID: str(doc, p.ProviderID),
		},
		Address: property.AddressBlock{
			Line1:   str(doc, p.Line1),
			Line2:   str(doc, p.Line2),
			OneLine: str(doc, p.OneLine),
			City:    str(doc, p.City),
			County:  str(doc, p.County),
			State:   normalize.StateAbbr(str(doc, p.State)),
			Zip:     normalize.Zip5(str(doc, p.Zip)),
		},
		Summary: property.SummaryBlock{
			PropertyType: str(doc, p.PropertyType),
			YearBuilt:    integer(doc, p.YearBuilt),
			OwnerName:    str(doc, p.Owner),
		},
		Lot: property.LotBlock{
			SizeSqft:  positive(doc, p.LotSqft),
			SizeAcres: positive(doc, p.LotAcres),
		},
		Location: property.LocationBlock{
			Lat:     num(doc, p.Lat),
			Lng:     num(doc, p.Lng),
			GeoIDV4: str(doc, p.GeoIDV4),
		},
		Sale: property.SaleBlock{
			Date:  normalize.ToDate(payload.First(doc, p.SaleDate...)),
			Price: positive(doc, p.SalePrice),
		},
		Area: property.AreaMetrics{
			Population:            positive(doc, p.Population),
			MedianHouseholdIncome: positive(doc, p.MedianIncome),
			PovertyRate:           positive(doc, p.PovertyRate),
			Employment:            positive(doc, p.Employment),
			MedianPropertyValue:   positive(doc, p.MedianHomeValue),
			TwoBedroomRent:        positive(doc, p.TwoBedroomRent),
		},
	}

	assessed, market := positive(doc, p.Assessed), positive(doc, p.Market)
	if assessed != nil || market != nil {
		rec.Assessment = &property.AssessmentBlock{Assessed: assessed, Market: market}
	}
	amount, prior, year := positive(doc, p.TaxAmount), positive(doc, p.PriorTaxAmount), integer(doc, p.TaxYear)
	if amount != nil || prior != nil || year != nil {
		rec.Tax = &property.TaxBlock{Amount: amount, PriorAmount: prior, Year: year}
	}
	return rec
}

// extractAll maps each object of list through p.
func (p fieldPaths) extractAll(provider string, list []any) []property.Record {
	out := make([]property.Record, 0, len(list))
	for _, item := range list {
		if _, ok := item.(map[string]any); !ok {
			continue
		}
		out = append(out, p.extract(provider, item))
	}
	return out
}
