// Package housing loads the rental-gap table of affordable units for
// extremely-low-income renters and answers state lookups against it.
package housing

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/property-resolver/internal/normalize"
	"github.com/sells-group/property-resolver/internal/property"
)

// column header fragments, matched case-insensitively.
var (
	stateHeaders = []string{"state"}
	eliHeaders   = []string{"eli renter households", "extremely low income renter households", "eli_renter_households"}
	ratioHeaders = []string{"per 100", "per_100"}
	totalHeaders = []string{"total units", "affordable and available units", "total_units"}
)

// Table holds one metrics row per state, keyed by abbreviation.
type Table struct {
	rows map[string]property.HousingCrisisMetrics
}

// NewTable builds a table from metrics keyed by state name or abbreviation.
// Unknown states are dropped.
func NewTable(rows map[string]property.HousingCrisisMetrics) *Table {
	t := &Table{rows: make(map[string]property.HousingCrisisMetrics, len(rows))}
	for st, m := range rows {
		if abbr := normalize.StateAbbr(st); abbr != "" {
			t.rows[abbr] = m
		}
	}
	return t
}

// Load reads the first sheet of an XLSX gap table. The first row is the
// header; it must name a state column and at least one metric column.
func Load(path string) (*Table, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "housing: open gap table")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("housing: %s has no sheets", path)
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, eris.Errorf("housing: %s is empty", path)
	}

	header := cells(sheet.Rows[0])
	stateCol := column(header, stateHeaders)
	eliCol, ratioCol, totalCol := column(header, eliHeaders), column(header, ratioHeaders), column(header, totalHeaders)
	if stateCol < 0 || (eliCol < 0 && ratioCol < 0 && totalCol < 0) {
		return nil, eris.Errorf("housing: %s header lacks state or metric columns", path)
	}

	rows := make(map[string]property.HousingCrisisMetrics)
	for _, row := range sheet.Rows[1:] {
		vals := cells(row)
		st := at(vals, stateCol)
		if st == "" {
			continue
		}
		rows[st] = property.HousingCrisisMetrics{
			ELIRenterHouseholds:   normalize.ToNumber(at(vals, eliCol)),
			AffordableUnitsPer100: normalize.ToNumber(at(vals, ratioCol)),
			TotalUnits:            normalize.ToNumber(at(vals, totalCol)),
		}
	}
	return NewTable(rows), nil
}

// Lookup returns the metrics for a state name or abbreviation. Status on
// the result is always derived from the ratio.
func (t *Table) Lookup(state string) (property.HousingCrisisMetrics, bool) {
	if t == nil {
		return property.HousingCrisisMetrics{}, false
	}
	m, ok := t.rows[normalize.StateAbbr(state)]
	return m, ok
}

// Len returns the number of states loaded.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

func cells(row *xlsx.Row) []string {
	out := make([]string, len(row.Cells))
	for i, c := range row.Cells {
		out[i] = strings.TrimSpace(c.String())
	}
	return out
}

func column(header []string, fragments []string) int {
	for _, frag := range fragments {
		for i, h := range header {
			if strings.Contains(strings.ToLower(h), frag) {
				return i
			}
		}
	}
	return -1
}

func at(vals []string, i int) string {
	if i < 0 || i >= len(vals) {
		return ""
	}
	return vals[i]
}
