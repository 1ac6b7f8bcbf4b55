package property

import (
	"strings"

	"github.com/sells-group/property-resolver/internal/normalize"
)

// Block names a field group of a Record.
type Block string

const (
	BlockIdentifier Block = "identifier"
	BlockAddress    Block = "address"
	BlockSummary    Block = "summary"
	BlockLot        Block = "lot"
	BlockLocation   Block = "location"
	BlockSale       Block = "sale"
	BlockAssessment Block = "assessment"
	BlockTax        Block = "tax"
	BlockArea       Block = "area"
)

// MergeStrategy controls how a later partial record combines with an
// earlier one for a given block.
type MergeStrategy int

const (
	// MergeShallow takes each field from the update when present, keeping
	// the earlier value otherwise.
	MergeShallow MergeStrategy = iota
	// MergeReplace takes the whole block from the update when the update
	// carries one, keeping the earlier block otherwise.
	MergeReplace
)

var blockStrategies = map[Block]MergeStrategy{
	BlockIdentifier: MergeShallow,
	BlockAddress:    MergeShallow,
	BlockSummary:    MergeShallow,
	BlockLot:        MergeShallow,
	BlockLocation:   MergeShallow,
	BlockSale:       MergeShallow,
	BlockAssessment: MergeReplace,
	BlockTax:        MergeReplace,
	BlockArea:       MergeShallow,
}

// StrategyFor returns the declared merge strategy of a block.
func StrategyFor(b Block) MergeStrategy {
	return blockStrategies[b]
}

// IdentifierBlock holds parcel and county identifiers.
type IdentifierBlock struct {
	APN        string
	FIPS       string
	AssessorID string
	ProviderID string
}

// AddressBlock holds the parsed mailing address.
type AddressBlock struct {
	Line1   string
	Line2   string
	OneLine string
	City    string
	County  string
	State   string
	Zip     string
}

// SummaryBlock holds descriptive facts.
type SummaryBlock struct {
	PropertyType string
	YearBuilt    *int
	OwnerName    string
}

// LotBlock holds lot dimensions.
type LotBlock struct {
	SizeSqft  *float64
	SizeAcres *float64
}

// LocationBlock holds coordinates and geography identifiers.
type LocationBlock struct {
	Lat     *float64
	Lng     *float64
	GeoIDV4 string
}

// SaleBlock holds the last recorded sale.
type SaleBlock struct {
	Date  string
	Price *float64
}

// AssessmentBlock holds one assessor valuation. It is replaced as a unit.
type AssessmentBlock struct {
	Assessed *float64
	Market   *float64
}

// TaxBlock holds one tax bill. It is replaced as a unit.
type TaxBlock struct {
	Amount      *float64
	PriorAmount *float64
	Year        *int
}

// Record is one provider's partial view of a property. Successive lookups
// are folded together with Merge; Version counts the merges applied.
type Record struct {
	Provider   string
	Version    int
	Identifier IdentifierBlock
	Address    AddressBlock
	Summary    SummaryBlock
	Lot        LotBlock
	Location   LocationBlock
	Sale       SaleBlock
	Assessment *AssessmentBlock
	Tax        *TaxBlock
	Area       AreaMetrics
	// Raw is the decoded provider payload, kept for FIPS and geo-id search.
	Raw any
}

// HasAPN reports whether the record carries a parcel number.
func (r *Record) HasAPN() bool { return r != nil && r.Identifier.APN != "" }

// OneLine returns the single-line address, composing it from parts when
// the provider did not supply one.
func (r *Record) OneLine() string {
	if r.Address.OneLine != "" {
		return r.Address.OneLine
	}
	var parts []string
	if r.Address.Line1 != "" {
		parts = append(parts, r.Address.Line1)
	}
	loc := strings.TrimSpace(strings.Join(nonEmpty(r.Address.State, r.Address.Zip), " "))
	switch {
	case r.Address.City != "" && loc != "":
		parts = append(parts, r.Address.City, loc)
	case r.Address.City != "":
		parts = append(parts, r.Address.City)
	case loc != "":
		parts = append(parts, loc)
	}
	if len(parts) == 0 {
		return r.Address.Line2
	}
	return strings.Join(parts, ", ")
}

// Candidate projects the record for disambiguation.
func (r *Record) Candidate(index int) Candidate {
	return Candidate{
		Index:        index,
		Address:      r.OneLine(),
		City:         r.Address.City,
		State:        r.Address.State,
		Zip:          r.Address.Zip,
		APN:          r.Identifier.APN,
		AttomID:      r.Identifier.ProviderID,
		PropertyType: r.Summary.PropertyType,
		Lat:          r.Location.Lat,
		Lng:          r.Location.Lng,
	}
}

// Candidates projects a list of records.
func Candidates(recs []Record) []Candidate {
	out := make([]Candidate, len(recs))
	for i := range recs {
		out[i] = recs[i].Candidate(i)
	}
	return out
}

// Merge folds update into base block by block and returns the result.
// Neither input is modified.
func Merge(base, update Record) Record {
	out := base
	out.Version = base.Version + 1
	if update.Provider != "" {
		out.Provider = update.Provider
	}

	id := &out.Identifier
	id.APN = pickStr(id.APN, update.Identifier.APN)
	id.FIPS = pickStr(id.FIPS, update.Identifier.FIPS)
	id.AssessorID = pickStr(id.AssessorID, update.Identifier.AssessorID)
	id.ProviderID = pickStr(id.ProviderID, update.Identifier.ProviderID)

	addr := &out.Address
	addr.Line1 = pickStr(addr.Line1, update.Address.Line1)
	addr.Line2 = pickStr(addr.Line2, update.Address.Line2)
	addr.OneLine = pickStr(addr.OneLine, update.Address.OneLine)
	addr.City = pickStr(addr.City, update.Address.City)
	addr.County = pickStr(addr.County, update.Address.County)
	addr.State = pickStr(addr.State, update.Address.State)
	addr.Zip = pickStr(addr.Zip, update.Address.Zip)

	sum := &out.Summary
	sum.PropertyType = pickStr(sum.PropertyType, update.Summary.PropertyType)
	sum.YearBuilt = pickPtr(sum.YearBuilt, update.Summary.YearBuilt)
	sum.OwnerName = pickStr(sum.OwnerName, update.Summary.OwnerName)

	out.Lot.SizeSqft = pickPtr(out.Lot.SizeSqft, update.Lot.SizeSqft)
	out.Lot.SizeAcres = pickPtr(out.Lot.SizeAcres, update.Lot.SizeAcres)

	out.Location.Lat = pickPtr(out.Location.Lat, update.Location.Lat)
	out.Location.Lng = pickPtr(out.Location.Lng, update.Location.Lng)
	out.Location.GeoIDV4 = pickStr(out.Location.GeoIDV4, update.Location.GeoIDV4)

	out.Sale.Date = pickStr(out.Sale.Date, update.Sale.Date)
	out.Sale.Price = pickPtr(out.Sale.Price, update.Sale.Price)

	out.Assessment = mergeAssessment(base.Assessment, update.Assessment)
	out.Tax = mergeTax(base.Tax, update.Tax)

	out.Area = mergeArea(base.Area, update.Area)
	out.Raw = mergeRaw(base.Raw, update.Raw)
	return out
}

func mergeAssessment(base, update *AssessmentBlock) *AssessmentBlock {
	if update == nil {
		return base
	}
	if StrategyFor(BlockAssessment) == MergeReplace || base == nil {
		c := *update
		return &c
	}
	c := *base
	c.Assessed = pickPtr(c.Assessed, update.Assessed)
	c.Market = pickPtr(c.Market, update.Market)
	return &c
}

func mergeTax(base, update *TaxBlock) *TaxBlock {
	if update == nil {
		return base
	}
	if StrategyFor(BlockTax) == MergeReplace || base == nil {
		c := *update
		return &c
	}
	c := *base
	c.Amount = pickPtr(c.Amount, update.Amount)
	c.PriorAmount = pickPtr(c.PriorAmount, update.PriorAmount)
	c.Year = pickPtr(c.Year, update.Year)
	return &c
}

// mergeArea lets newer present values win, like the other shallow blocks.
// The non-clobber waterfall lives in AreaMetrics.Fill, not here.
func mergeArea(base, update AreaMetrics) AreaMetrics {
	out := base
	dst := out.fields()
	src := update.fields()
	for i := range dst {
		*dst[i] = pickPtr(*dst[i], *src[i])
	}
	out.Source = pickStr(out.Source, update.Source)
	return out
}

// mergeRaw overlays the update payload's top-level keys onto the base
// payload when both are objects.
func mergeRaw(base, update any) any {
	if update == nil {
		return base
	}
	bm, ok1 := base.(map[string]any)
	um, ok2 := update.(map[string]any)
	if !ok1 || !ok2 {
		return update
	}
	out := make(map[string]any, len(bm)+len(um))
	for k, v := range bm {
		out[k] = v
	}
	for k, v := range um {
		out[k] = v
	}
	return out
}

func pickStr(cur, next string) string {
	if strings.TrimSpace(next) != "" {
		return next
	}
	return cur
}

func pickPtr[T any](cur, next *T) *T {
	if next != nil {
		return next
	}
	return cur
}

func nonEmpty(vals ...string) []string {
	out := vals[:0:0]
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

// Parcel returns the normalized APN and FIPS pair when both are derivable.
func (r *Record) Parcel() (apn, fips string, ok bool) {
	apn = normalize.APN(r.Identifier.APN)
	fips = normalize.FIPS(r.Identifier.FIPS)
	return apn, fips, apn != "" && fips != ""
}
