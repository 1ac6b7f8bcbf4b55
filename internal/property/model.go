// Package property defines the resolved property record, its normalized
// result shape, and the error taxonomy shared by the resolution engine.
package property

import (
	"encoding/json"
	"strings"

	"github.com/sells-group/property-resolver/internal/normalize"
)

// LookupSource names the cascade step that first produced an APN.
type LookupSource string

const (
	SourceAPN     LookupSource = "apn"
	SourceAddress LookupSource = "address"
	SourceLatLng  LookupSource = "lat_lng"
)

// Intent selects which sections of the result the caller needs.
type Intent string

const (
	// IntentStep1 resolves identity plus area demographics and housing supply.
	IntentStep1 Intent = "step1"
	// IntentTaxes resolves identity plus tax financials and the treasury yield.
	IntentTaxes Intent = "taxes"
)

// LookupContext carries everything a caller knows about the target property.
type LookupContext struct {
	APN      string   `json:"apn,omitempty"`
	FIPSCode string   `json:"fips_code,omitempty"`
	Address  string   `json:"address,omitempty"`
	Lat      *float64 `json:"lat,omitempty"`
	Lng      *float64 `json:"lng,omitempty"`
	County   string   `json:"county,omitempty"`
	City     string   `json:"city,omitempty"`
	State    string   `json:"state,omitempty"`
	ZipCode  string   `json:"zip_code,omitempty"`
	Intent   Intent   `json:"intent,omitempty"`
}

// Normalized returns a copy with APN and FIPS normalized and strings trimmed.
func (c LookupContext) Normalized() LookupContext {
	c.APN = normalize.APN(c.APN)
	c.FIPSCode = normalize.FIPS(c.FIPSCode)
	c.Address = strings.TrimSpace(c.Address)
	c.County = strings.TrimSpace(c.County)
	c.City = strings.TrimSpace(c.City)
	c.State = strings.TrimSpace(c.State)
	c.ZipCode = strings.TrimSpace(c.ZipCode)
	if c.Intent == "" {
		c.Intent = IntentStep1
	}
	return c
}

// HasParcel reports whether both APN and FIPS are known.
func (c LookupContext) HasParcel() bool { return c.APN != "" && c.FIPSCode != "" }

// HasCoordinates reports whether both latitude and longitude are known.
func (c LookupContext) HasCoordinates() bool { return c.Lat != nil && c.Lng != nil }

// Validate rejects contexts that give the cascade nothing to search with.
func (c LookupContext) Validate() error {
	if c.APN == "" && c.Address == "" && !c.HasCoordinates() {
		return &ValidationError{Reason: "one of apn, address, or lat/lng is required"}
	}
	switch c.Intent {
	case "", IntentStep1, IntentTaxes:
	default:
		return &ValidationError{Reason: "intent must be step1 or taxes"}
	}
	return nil
}

// AddressParts returns the already-known locality parts.
func (c LookupContext) AddressParts() normalize.AddressParts {
	return normalize.AddressParts{City: c.City, State: c.State, Zip: c.ZipCode}
}

// Identity is the resolved identity of a parcel.
type Identity struct {
	Address      string   `json:"address"`
	Street       string   `json:"street"`
	City         string   `json:"city"`
	County       string   `json:"county"`
	State        string   `json:"state"`
	ZipCode      string   `json:"zip_code"`
	APN          string   `json:"apn"`
	AssessorID   string   `json:"assessor_id"`
	FIPSCode     string   `json:"fips_code"`
	OwnerName    string   `json:"owner_name"`
	PropertyType string   `json:"property_type"`
	YearBuilt    *int     `json:"year_built"`
	LotSizeSqft  *float64 `json:"lot_size_sqft"`
	LotSizeAcres *float64 `json:"lot_size_acres"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	ProviderID   string   `json:"provider_id,omitempty"`
}

// Financials holds tax and valuation facts. MillageRate and AssessmentRatio
// are always derived by Derive, never read from a provider.
type Financials struct {
	MarketValue        *float64 `json:"market_value"`
	AssessedValue      *float64 `json:"assessed_value"`
	TaxAmount          *float64 `json:"tax_amount"`
	PriorYearTaxAmount *float64 `json:"prior_year_tax_amount"`
	TaxYear            *int     `json:"tax_year"`
	MillageRate        *float64 `json:"millage_rate"`
	AssessmentRatio    *float64 `json:"assessment_ratio"`
	LastSaleDate       string   `json:"last_sale_date"`
	LastSalePrice      *float64 `json:"last_sale_price"`
	TreasuryYield10Y   *float64 `json:"treasury_yield_10y"`
	TreasuryAsOf       string   `json:"treasury_as_of"`
}

// Derive recomputes the derived ratios from their inputs.
func (f *Financials) Derive() {
	f.MillageRate = normalize.MillageRate(f.TaxAmount, f.AssessedValue)
	base := f.MarketValue
	if base == nil || *base == 0 {
		base = f.LastSalePrice
	}
	f.AssessmentRatio = normalize.AssessmentRatio(f.AssessedValue, base)
}

// AreaMetrics are county-level demographics. Source is the last waterfall
// tier that wrote at least one field.
type AreaMetrics struct {
	Population                  *float64 `json:"population"`
	PopulationChange            *float64 `json:"population_change_pct"`
	MedianHouseholdIncome       *float64 `json:"median_household_income"`
	MedianHouseholdIncomeChange *float64 `json:"median_household_income_change_pct"`
	PovertyRate                 *float64 `json:"poverty_rate"`
	Employment                  *float64 `json:"employment"`
	EmploymentChange            *float64 `json:"employment_change_pct"`
	MedianPropertyValue         *float64 `json:"median_property_value"`
	MedianPropertyValueChange   *float64 `json:"median_property_value_change_pct"`
	ViolentCrimeIndex           *float64 `json:"violent_crime_index"`
	PropertyCrimeIndex          *float64 `json:"property_crime_index"`
	TwoBedroomRent              *float64 `json:"two_bedroom_rent"`
	Source                      string   `json:"source"`
}

func (a *AreaMetrics) fields() []**float64 {
	return []**float64{
		&a.Population, &a.PopulationChange,
		&a.MedianHouseholdIncome, &a.MedianHouseholdIncomeChange,
		&a.PovertyRate,
		&a.Employment, &a.EmploymentChange,
		&a.MedianPropertyValue, &a.MedianPropertyValueChange,
		&a.ViolentCrimeIndex, &a.PropertyCrimeIndex,
		&a.TwoBedroomRent,
	}
}

// Fill copies fields from tier into a only where a is still nil or zero and
// tier has a non-zero value. When anything is written, Source becomes
// source. Returns the number of fields written.
func (a *AreaMetrics) Fill(tier AreaMetrics, source string) int {
	dst := a.fields()
	src := tier.fields()
	filled := 0
	for i := range dst {
		if !missing(*dst[i]) || missing(*src[i]) {
			continue
		}
		v := **src[i]
		*dst[i] = &v
		filled++
	}
	if filled > 0 {
		a.Source = source
	}
	return filled
}

// Missing returns how many metric fields are still nil or zero.
func (a *AreaMetrics) Missing() int {
	n := 0
	for _, f := range a.fields() {
		if missing(*f) {
			n++
		}
	}
	return n
}

func missing(f *float64) bool { return f == nil || *f == 0 }

// HousingStatus classifies the affordable-housing supply.
type HousingStatus string

const (
	HousingCritical    HousingStatus = "Critical Shortage"
	HousingStable      HousingStatus = "Stable"
	HousingUnavailable HousingStatus = "Unavailable"
)

// criticalShortageRatio is the affordable-units-per-100 threshold below
// which supply is a critical shortage.
const criticalShortageRatio = 30

// StatusFor classifies an affordable-units-per-100-ELI-households ratio.
func StatusFor(ratio *float64) HousingStatus {
	switch {
	case ratio == nil:
		return HousingUnavailable
	case *ratio < criticalShortageRatio:
		return HousingCritical
	default:
		return HousingStable
	}
}

// HousingCrisisMetrics describes rental supply for extremely-low-income
// (ELI) households. Status is computed from AffordableUnitsPer100 on every
// read.
type HousingCrisisMetrics struct {
	ELIRenterHouseholds   *float64 `json:"eli_renter_households"`
	AffordableUnitsPer100 *float64 `json:"affordable_units_per_100"`
	TotalUnits            *float64 `json:"total_units"`
}

// Status derives the shortage classification.
func (h HousingCrisisMetrics) Status() HousingStatus { return StatusFor(h.AffordableUnitsPer100) }

// MarshalJSON emits the metrics together with the freshly derived status.
func (h HousingCrisisMetrics) MarshalJSON() ([]byte, error) {
	type plain HousingCrisisMetrics
	return json.Marshal(struct {
		plain
		Status HousingStatus `json:"status"`
	}{plain(h), h.Status()})
}

// UnmarshalJSON ignores any incoming status; it is always derived.
func (h *HousingCrisisMetrics) UnmarshalJSON(data []byte) error {
	type plain HousingCrisisMetrics
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*h = HousingCrisisMetrics(p)
	return nil
}

// Candidate is the projection of a provider match used for disambiguation.
type Candidate struct {
	Index        int      `json:"index"`
	Address      string   `json:"address"`
	City         string   `json:"city,omitempty"`
	State        string   `json:"state,omitempty"`
	Zip          string   `json:"zip,omitempty"`
	APN          string   `json:"apn,omitempty"`
	AttomID      string   `json:"attom_id,omitempty"`
	PropertyType string   `json:"property_type,omitempty"`
	Lat          *float64 `json:"lat,omitempty"`
	Lng          *float64 `json:"lng,omitempty"`
}
