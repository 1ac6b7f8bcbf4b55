// Package normalize turns heterogeneous provider payload values into typed
// numbers, strings, percentages and dates, and derives the tax metrics.
package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// numberStripper removes currency and percent decoration before parsing.
var numberStripper = strings.NewReplacer("$", "", ",", "", "%", "", " ", "", " ", "")

// ToNumber parses v into a finite float64. Strings may carry currency or
// percent decoration. Returns nil for empty, unparsable, NaN or infinite input.
func ToNumber(v any) *float64 {
	var f float64
	switch n := v.(type) {
	case nil:
		return nil
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	case *float64:
		if n == nil {
			return nil
		}
		f = *n
	case string:
		s := numberStripper.Replace(strings.TrimSpace(n))
		if s == "" {
			return nil
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// ToPercent parses v and expresses it as a percentage rounded to 2 decimals.
// Values <= 1 are treated as fractions and multiplied by 100; larger values
// are assumed to already be percentages. ToPercent(1) is therefore 100.
func ToPercent(v any) *float64 {
	n := ToNumber(v)
	if n == nil {
		return nil
	}
	p := *n
	if p <= 1 {
		p *= 100
	}
	p = Round(p, 2)
	return &p
}

// PickNumber returns the first candidate that parses to a finite number.
func PickNumber(candidates ...any) *float64 {
	for _, c := range candidates {
		if n := ToNumber(c); n != nil {
			return n
		}
	}
	return nil
}

// PickPositive returns the first candidate that parses to a number > 0.
func PickPositive(candidates ...any) *float64 {
	for _, c := range candidates {
		if n := ToNumber(c); n != nil && *n > 0 {
			return n
		}
	}
	return nil
}

// ToInt parses v and truncates it to an int.
func ToInt(v any) *int {
	n := ToNumber(v)
	if n == nil {
		return nil
	}
	i := int(*n)
	return &i
}

// PickInt returns the first candidate that parses to a non-zero int.
func PickInt(candidates ...any) *int {
	for _, c := range candidates {
		if i := ToInt(c); i != nil && *i != 0 {
			return i
		}
	}
	return nil
}

// ToString renders scalar payload values as trimmed strings.
func ToString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	case json.Number:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case bool:
		return strconv.FormatBool(s)
	default:
		return ""
	}
}

// PickString returns the first candidate that renders non-empty.
func PickString(candidates ...any) string {
	for _, c := range candidates {
		if s := ToString(c); s != "" {
			return s
		}
	}
	return ""
}

// PercentChange returns (current-previous)/previous*100 rounded to 2
// decimals, or nil when either side is missing or previous is zero.
func PercentChange(current, previous *float64) *float64 {
	if current == nil || previous == nil || *previous == 0 {
		return nil
	}
	pc := Round((*current-*previous) / *previous * 100, 2)
	return &pc
}

// MillageRate is tax dollars per $1,000 of assessed value.
func MillageRate(taxAmount, assessedValue *float64) *float64 {
	if taxAmount == nil || assessedValue == nil || *assessedValue == 0 {
		return nil
	}
	m := Round(*taxAmount*1000 / *assessedValue, 4)
	return &m
}

// AssessmentRatio is assessed value over market (or sale) value.
func AssessmentRatio(assessedValue, marketValue *float64) *float64 {
	if assessedValue == nil || marketValue == nil || *marketValue == 0 {
		return nil
	}
	r := Round(*assessedValue / *marketValue, 4)
	return &r
}

const sqftPerAcre = 43560.0

// AcresFromSqft converts square feet to acres, rounded to 4 decimals.
func AcresFromSqft(sqft *float64) *float64 {
	if sqft == nil || *sqft <= 0 {
		return nil
	}
	a := Round(*sqft/sqftPerAcre, 4)
	return &a
}

// SqftFromAcres converts acres to square feet, rounded to whole feet.
func SqftFromAcres(acres *float64) *float64 {
	if acres == nil || *acres <= 0 {
		return nil
	}
	s := math.Round(*acres * sqftPerAcre)
	return &s
}

// Round rounds f to the given number of decimals.
func Round(f float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(f*p) / p
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"20060102",
	"2006-01",
}

// ToDate parses common provider date encodings and returns YYYY-MM-DD, or
// "" when nothing matches.
func ToDate(v any) string {
	s := ToString(v)
	if s == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}

// Float returns a pointer to f. Handy for literals in tests and mappers.
func Float(f float64) *float64 { return &f }
