package normalize

import (
	"strings"
	"unicode"
)

// APN strips whitespace and hyphens from a parcel number and upper-cases it.
func APN(apn string) string {
	var b strings.Builder
	b.Grow(len(apn))
	for _, r := range strings.TrimSpace(apn) {
		if unicode.IsSpace(r) || r == '-' {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// SameAPN compares parcel numbers case- and separator-insensitively.
func SameAPN(a, b string) bool {
	ca, cb := Compact(a), Compact(b)
	return ca != "" && ca == cb
}

// Compact lower-cases s and drops every non-alphanumeric character.
func Compact(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FIPS extracts a 5-digit county FIPS code from v. Shorter numeric codes
// are left-padded; longer GEOIDs (tract, block group) are truncated to
// their state+county prefix. Summary-level GEOIDs such as "05000US17167"
// keep the part after "US". Returns "" when v holds no digits.
func FIPS(v any) string {
	s := ToString(v)
	if s == "" {
		return ""
	}
	if idx := strings.LastIndex(strings.ToUpper(s), "US"); idx >= 0 {
		s = s[idx+2:]
	}
	var digits strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		} else if r == '.' {
			break
		}
	}
	d := digits.String()
	switch {
	case d == "" || strings.Trim(d, "0") == "":
		return ""
	case len(d) < 5:
		return strings.Repeat("0", 5-len(d)) + d
	default:
		return d[:5]
	}
}

// CombineFIPS joins state and county codes into a 5-digit FIPS code.
func CombineFIPS(state, county string) string {
	state = strings.TrimSpace(state)
	county = strings.TrimSpace(county)
	if state == "" || county == "" {
		return ""
	}
	for len(state) < 2 {
		state = "0" + state
	}
	for len(county) < 3 {
		county = "0" + county
	}
	return state + county
}

// Zip5 returns the first five digits of a ZIP or ZIP+4.
func Zip5(zip string) string {
	var b strings.Builder
	for _, r := range zip {
		if r < '0' || r > '9' {
			if b.Len() > 0 {
				break
			}
			continue
		}
		b.WriteRune(r)
		if b.Len() == 5 {
			return b.String()
		}
	}
	return ""
}
