package census

import (
	"context"
	"strconv"

	"github.com/rotisserie/eris"
)

// ACS 5-year detailed table variables.
const (
	VarPopulation      = "B01003_001E"
	VarMedianIncome    = "B19013_001E"
	VarPovertyUniverse = "B17001_001E"
	VarPovertyBelow    = "B17001_002E"
	VarEmployed        = "B23025_004E"
	VarMedianHomeValue = "B25077_001E"
	VarTwoBedroomRent  = "B25031_004E"
)

var countyVariables = []string{
	VarPopulation, VarMedianIncome, VarPovertyUniverse, VarPovertyBelow,
	VarEmployed, VarMedianHomeValue, VarTwoBedroomRent,
}

// CountyStats are one year's county estimates. Nil means the estimate was
// missing or suppressed.
type CountyStats struct {
	Year            int
	Name            string
	Population      *float64
	MedianIncome    *float64
	PovertyRate     *float64
	Employed        *float64
	MedianHomeValue *float64
	TwoBedroomRent  *float64
}

// CountyStats fetches the county profile for a 5-digit FIPS code. It returns
// nil stats when the API has no row for the county.
func (c *Client) CountyStats(ctx context.Context, year int, fips string) (*CountyStats, error) {
	if len(fips) != 5 {
		return nil, eris.Errorf("census: invalid county fips %q", fips)
	}
	row, err := c.Table(ctx, year, countyVariables, "county:"+fips[2:], "state:"+fips[:2])
	if err != nil || row == nil {
		return nil, err
	}
	s := &CountyStats{
		Year:            year,
		Name:            row["NAME"],
		Population:      estimate(row[VarPopulation]),
		MedianIncome:    estimate(row[VarMedianIncome]),
		Employed:        estimate(row[VarEmployed]),
		MedianHomeValue: estimate(row[VarMedianHomeValue]),
		TwoBedroomRent:  estimate(row[VarTwoBedroomRent]),
	}
	below, universe := estimate(row[VarPovertyBelow]), estimate(row[VarPovertyUniverse])
	if below != nil && universe != nil && *universe > 0 {
		rate := *below / *universe * 100
		s.PovertyRate = &rate
	}
	return s, nil
}

// estimate parses an ACS value. Negative values are the API's annotation
// codes for missing data.
func estimate(s string) *float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return nil
	}
	return &f
}
