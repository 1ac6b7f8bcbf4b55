package property

import (
	"fmt"

	"github.com/sells-group/property-resolver/internal/normalize"
)

// Form field keys. An ApiSnapshot and the caller's working record share
// these names.
const (
	FieldAddress          = "property_address"
	FieldStreet           = "street"
	FieldCity             = "city"
	FieldCounty           = "county"
	FieldState            = "state"
	FieldZip              = "zip_code"
	FieldAPN              = "apn"
	FieldAssessorID       = "assessor_id"
	FieldFIPS             = "fips_code"
	FieldOwner            = "owner_name"
	FieldPropertyType     = "property_type"
	FieldYearBuilt        = "year_built"
	FieldLotSqft          = "lot_size_sqft"
	FieldLotAcres         = "lot_size_acres"
	FieldLatitude         = "latitude"
	FieldLongitude        = "longitude"
	FieldMarketValue      = "market_value"
	FieldAssessedValue    = "assessed_value"
	FieldTaxAmount        = "tax_amount"
	FieldPriorTaxAmount   = "prior_year_tax_amount"
	FieldTaxYear          = "tax_year"
	FieldMillageRate      = "millage_rate"
	FieldAssessmentRatio  = "assessment_ratio"
	FieldLastSaleDate     = "last_sale_date"
	FieldLastSalePrice    = "last_sale_price"
	FieldTreasuryYield    = "treasury_yield_10y"
	FieldTreasuryAsOf     = "treasury_as_of"
	FieldPopulation       = "population"
	FieldPopulationChange = "population_change_pct"
	FieldIncome           = "median_household_income"
	FieldIncomeChange     = "median_household_income_change_pct"
	FieldPovertyRate      = "poverty_rate"
	FieldEmployment       = "employment"
	FieldEmploymentChange = "employment_change_pct"
	FieldHomeValue        = "median_property_value"
	FieldHomeValueChange  = "median_property_value_change_pct"
	FieldViolentCrime     = "violent_crime_index"
	FieldPropertyCrime    = "property_crime_index"
	FieldTwoBedroomRent   = "two_bedroom_rent"
	FieldELIHouseholds    = "eli_renter_households"
	FieldAffordablePer100 = "affordable_units_per_100"
	FieldTotalUnits       = "total_units"
	FieldHousingStatus    = "housing_status"
)

// Snapshot is a flat form-field map of values last written by an automated
// source.
type Snapshot map[string]any

// Clone returns a shallow copy. A nil snapshot clones to an empty one.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Result is the provider-independent outcome of one resolution.
type Result struct {
	APNFound              bool                 `json:"apn_found"`
	APNLookupSource       *LookupSource        `json:"apn_lookup_source"`
	Provider              string               `json:"provider"`
	PropertyIdentity      Identity             `json:"property_identity"`
	Financials            Financials           `json:"financials"`
	DemographicsEconomics AreaMetrics          `json:"demographics_economics"`
	HousingCrisisMetrics  HousingCrisisMetrics `json:"housing_crisis_metrics"`
	APISnapshot           Snapshot             `json:"api_snapshot"`
	Message               string               `json:"message"`
}

// NotFoundMessage is surfaced verbatim to end users when no step of a
// provider's cascade produced an APN.
func NotFoundMessage(provider string) string {
	return fmt.Sprintf("No APN found via address or coordinates using %s.", provider)
}

// NotFound returns the empty result for a provider.
func NotFound(provider string) Result {
	return Result{
		Provider:    provider,
		APISnapshot: Snapshot{},
		Message:     NotFoundMessage(provider),
	}
}

// FromRecord converts a merged record into a Result. source is the step
// that first produced an APN.
func FromRecord(rec Record, source LookupSource, provider string) Result {
	if !rec.HasAPN() {
		return NotFound(provider)
	}
	src := source
	res := Result{
		APNFound:              true,
		APNLookupSource:       &src,
		Provider:              provider,
		PropertyIdentity:      identityOf(rec),
		Financials:            financialsOf(rec),
		DemographicsEconomics: rec.Area,
		Message:               fmt.Sprintf("APN %s found via %s using %s.", rec.Identifier.APN, source, provider),
	}
	res.APISnapshot = res.Fields()
	return res
}

func identityOf(rec Record) Identity {
	sqft := rec.Lot.SizeSqft
	acres := rec.Lot.SizeAcres
	if sqft == nil {
		sqft = normalize.SqftFromAcres(acres)
	}
	if acres == nil {
		acres = normalize.AcresFromSqft(sqft)
	}
	street := rec.Address.Line1
	if street == "" {
		street, _ = normalize.SplitAddress(rec.OneLine())
	}
	return Identity{
		Address:      rec.OneLine(),
		Street:       street,
		City:         rec.Address.City,
		County:       rec.Address.County,
		State:        normalize.StateAbbr(rec.Address.State),
		ZipCode:      normalize.Zip5(rec.Address.Zip),
		APN:          normalize.APN(rec.Identifier.APN),
		AssessorID:   rec.Identifier.AssessorID,
		FIPSCode:     normalize.FIPS(rec.Identifier.FIPS),
		OwnerName:    rec.Summary.OwnerName,
		PropertyType: rec.Summary.PropertyType,
		YearBuilt:    rec.Summary.YearBuilt,
		LotSizeSqft:  sqft,
		LotSizeAcres: acres,
		Latitude:     rec.Location.Lat,
		Longitude:    rec.Location.Lng,
		ProviderID:   rec.Identifier.ProviderID,
	}
}

func financialsOf(rec Record) Financials {
	var f Financials
	if rec.Assessment != nil {
		f.AssessedValue = rec.Assessment.Assessed
		f.MarketValue = rec.Assessment.Market
	}
	if rec.Tax != nil {
		f.TaxAmount = rec.Tax.Amount
		f.PriorYearTaxAmount = rec.Tax.PriorAmount
		f.TaxYear = rec.Tax.Year
	}
	f.LastSaleDate = rec.Sale.Date
	f.LastSalePrice = rec.Sale.Price
	f.Derive()
	return f
}

// Fields flattens the result's populated values onto form field keys.
func (r Result) Fields() Snapshot {
	out := Snapshot{}
	str := func(k, v string) {
		if v != "" {
			out[k] = v
		}
	}
	num := func(k string, v *float64) {
		if v != nil {
			out[k] = *v
		}
	}
	integer := func(k string, v *int) {
		if v != nil {
			out[k] = *v
		}
	}

	id := r.PropertyIdentity
	str(FieldAddress, id.Address)
	str(FieldStreet, id.Street)
	str(FieldCity, id.City)
	str(FieldCounty, id.County)
	str(FieldState, id.State)
	str(FieldZip, id.ZipCode)
	str(FieldAPN, id.APN)
	str(FieldAssessorID, id.AssessorID)
	str(FieldFIPS, id.FIPSCode)
	str(FieldOwner, id.OwnerName)
	str(FieldPropertyType, id.PropertyType)
	integer(FieldYearBuilt, id.YearBuilt)
	num(FieldLotSqft, id.LotSizeSqft)
	num(FieldLotAcres, id.LotSizeAcres)
	num(FieldLatitude, id.Latitude)
	num(FieldLongitude, id.Longitude)

	fin := r.Financials
	num(FieldMarketValue, fin.MarketValue)
	num(FieldAssessedValue, fin.AssessedValue)
	num(FieldTaxAmount, fin.TaxAmount)
	num(FieldPriorTaxAmount, fin.PriorYearTaxAmount)
	integer(FieldTaxYear, fin.TaxYear)
	num(FieldMillageRate, fin.MillageRate)
	num(FieldAssessmentRatio, fin.AssessmentRatio)
	str(FieldLastSaleDate, fin.LastSaleDate)
	num(FieldLastSalePrice, fin.LastSalePrice)
	num(FieldTreasuryYield, fin.TreasuryYield10Y)
	str(FieldTreasuryAsOf, fin.TreasuryAsOf)

	d := r.DemographicsEconomics
	num(FieldPopulation, d.Population)
	num(FieldPopulationChange, d.PopulationChange)
	num(FieldIncome, d.MedianHouseholdIncome)
	num(FieldIncomeChange, d.MedianHouseholdIncomeChange)
	num(FieldPovertyRate, d.PovertyRate)
	num(FieldEmployment, d.Employment)
	num(FieldEmploymentChange, d.EmploymentChange)
	num(FieldHomeValue, d.MedianPropertyValue)
	num(FieldHomeValueChange, d.MedianPropertyValueChange)
	num(FieldViolentCrime, d.ViolentCrimeIndex)
	num(FieldPropertyCrime, d.PropertyCrimeIndex)
	num(FieldTwoBedroomRent, d.TwoBedroomRent)

	h := r.HousingCrisisMetrics
	num(FieldELIHouseholds, h.ELIRenterHouseholds)
	num(FieldAffordablePer100, h.AffordableUnitsPer100)
	num(FieldTotalUnits, h.TotalUnits)
	if h.AffordableUnitsPer100 != nil {
		out[FieldHousingStatus] = string(h.Status())
	}
	return out
}

// Refresh recomputes derived financials and rebuilds the snapshot after
// later stages have added area, housing, or treasury data.
func (r *Result) Refresh() {
	r.Financials.Derive()
	if r.APNFound {
		r.APISnapshot = r.Fields()
	}
}
