package area

import (
	"github.com/sells-group/property-resolver/internal/normalize"
	"github.com/sells-group/property-resolver/internal/payload"
	"github.com/sells-group/property-resolver/internal/property"
)

// crimePrefixes are where crime blocks sit in community and property
// payloads.
var crimePrefixes = []string{"community.crime.", "crime.", ""}

var (
	violentPrimary   = []string{"aggravated_Assault_Index", "aggravatedAssaultIndex"}
	violentGeneric   = []string{"violent_Crime_Index", "violentCrimeIndex", "violent_crime_index"}
	violentParts     = []string{"murder_Index", "forcible_Rape_Index", "forcible_Robbery_Index", "aggravated_Assault_Index"}
	propertyPrimary  = []string{"motor_Vehicle_Theft_Index", "motorVehicleTheftIndex"}
	propertyGeneric  = []string{"property_Crime_Index", "propertyCrimeIndex", "property_crime_index"}
	propertySubParts = []string{"burglary_Index", "larceny_Index", "motor_Vehicle_Theft_Index"}
)

// crimeDoc is a payload crime indices may be read from, tagged with the
// tier it came from.
type crimeDoc struct {
	doc    any
	source string
}

// crimeIndices reads violent and property crime indices from one doc.
func crimeIndices(doc any) (violent, property *float64) {
	docs := []crimeDoc{{doc: doc}}
	violent, _ = crimeIndex(docs, violentPrimary, violentGeneric, violentParts)
	property, _ = crimeIndex(docs, propertyPrimary, propertyGeneric, propertySubParts)
	return violent, property
}

// crimeIndex prefers the headline index from any doc, in doc order, then a
// generic crime field from any doc, then the unweighted mean of whichever
// sub-indices the first doc carrying them has. It returns the value and
// the tier of the doc that supplied it.
func crimeIndex(docs []crimeDoc, primary, generic, parts []string) (*float64, string) {
	for _, keys := range [][]string{primary, generic} {
		for _, d := range docs {
			if v := firstIndex(d.doc, keys); v != nil {
				return v, d.source
			}
		}
	}
	for _, d := range docs {
		if v := meanIndex(d.doc, parts); v != nil {
			return v, d.source
		}
	}
	return nil, ""
}

// fillCrime resolves both crime indices across docs as a single step.
func (r *Report) fillCrime(docs []crimeDoc) {
	if v, src := crimeIndex(docs, violentPrimary, violentGeneric, violentParts); v != nil {
		r.fill(property.AreaMetrics{ViolentCrimeIndex: v}, src)
	}
	if p, src := crimeIndex(docs, propertyPrimary, propertyGeneric, propertySubParts); p != nil {
		r.fill(property.AreaMetrics{PropertyCrimeIndex: p}, src)
	}
}

func firstIndex(doc any, keys []string) *float64 {
	if doc == nil {
		return nil
	}
	for _, prefix := range crimePrefixes {
		for _, k := range keys {
			if v := normalize.ToNumber(payload.Get(doc, prefix+k)); v != nil {
				return v
			}
		}
	}
	return nil
}

func meanIndex(doc any, keys []string) *float64 {
	var sum float64
	n := 0
	for _, k := range keys {
		if v := firstIndex(doc, []string{k}); v != nil {
			sum += *v
			n++
		}
	}
	if n == 0 {
		return nil
	}
	return normalize.Float(normalize.Round(sum/float64(n), 2))
}
