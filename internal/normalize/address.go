package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// streetAbbreviations maps USPS street suffixes and directionals to their
// standard abbreviations.
var streetAbbreviations = map[string]string{
	"STREET": "ST", "AVENUE": "AVE", "ROAD": "RD", "DRIVE": "DR",
	"BOULEVARD": "BLVD", "LANE": "LN", "COURT": "CT", "PLACE": "PL",
	"HIGHWAY": "HWY", "PARKWAY": "PKWY", "CIRCLE": "CIR", "TERRACE": "TER",
	"TRAIL": "TRL", "ROUTE": "RTE", "SQUARE": "SQ", "EXPRESSWAY": "EXPY",
	"FREEWAY": "FWY", "CROSSING": "XING", "POINT": "PT", "TURNPIKE": "TPKE",
	"NORTH": "N", "SOUTH": "S", "EAST": "E", "WEST": "W",
	"NORTHEAST": "NE", "NORTHWEST": "NW", "SOUTHEAST": "SE", "SOUTHWEST": "SW",
	"SUITE": "STE", "APARTMENT": "APT", "LOT": "LOT", "SPACE": "SPC",
}

var (
	multiSpaceRe = regexp.MustCompile(`\s+`)
	zipRe        = regexp.MustCompile(`\b(\d{5})(?:-\d{4})?\b`)
	numberRe     = regexp.MustCompile(`\d+`)
)

// AddressParts are the already-known components accompanying a free-text address.
type AddressParts struct {
	City  string
	State string
	Zip   string
}

// Address standardizes a free-text address: upper-case, punctuation
// dropped, USPS abbreviations applied, and any known city/state/zip that
// the text lacks appended.
func Address(raw string, parts AddressParts) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	s = strings.NewReplacer(".", "", "#", " ", ";", ",").Replace(s)

	segments := strings.Split(s, ",")
	for i, seg := range segments {
		words := strings.Fields(seg)
		for j, w := range words {
			if abbr, ok := streetAbbreviations[w]; ok {
				words[j] = abbr
			}
		}
		segments[i] = strings.Join(words, " ")
	}

	var kept []string
	for _, seg := range segments {
		if seg != "" {
			kept = append(kept, seg)
		}
	}
	s = strings.Join(kept, ", ")

	if city := strings.ToUpper(strings.TrimSpace(parts.City)); city != "" && !containsWord(s, city) {
		s += ", " + city
	}
	if st := StateAbbr(parts.State); st != "" && !containsWord(s, st) {
		if name, ok := LookupState(st); !ok || !containsWord(s, strings.ToUpper(name.Name)) {
			s += ", " + st
		}
	}
	if zip := Zip5(parts.Zip); zip != "" && !strings.Contains(s, zip) {
		s += " " + zip
	}

	return multiSpaceRe.ReplaceAllString(strings.TrimSpace(s), " ")
}

// SplitAddress splits a one-line address into street and locality lines at
// the first comma.
func SplitAddress(oneLine string) (line1, line2 string) {
	oneLine = strings.TrimSpace(oneLine)
	idx := strings.Index(oneLine, ",")
	if idx < 0 {
		return oneLine, ""
	}
	return strings.TrimSpace(oneLine[:idx]), strings.TrimSpace(oneLine[idx+1:])
}

// ZipsIn returns every 5-digit ZIP found in text.
func ZipsIn(text string) []string {
	var zips []string
	for _, m := range zipRe.FindAllStringSubmatch(text, -1) {
		zips = append(zips, m[1])
	}
	return zips
}

// NumbersIn returns every run of digits in text.
func NumbersIn(text string) []string {
	return numberRe.FindAllString(text, -1)
}

// countySuffixes are the county-equivalent designators stripped before
// county names are compared.
var countySuffixes = []string{"city and borough", "census area", "municipality", "borough", "parish", "county"}

// CountyName reduces a county name to a comparable key: diacritics folded,
// lower-cased, county-equivalent suffixes removed and non-alphanumerics
// collapsed. "Doña Ana County" and "DONA ANA" share the key "donaana".
func CountyName(name string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), name)
	if err != nil {
		folded = name
	}
	s := strings.ToLower(strings.TrimSpace(folded))
	if idx := strings.Index(s, ","); idx >= 0 {
		s = s[:idx]
	}
	for _, suffix := range countySuffixes {
		if strings.HasSuffix(s, " "+suffix) {
			s = strings.TrimSuffix(s, " "+suffix)
			break
		}
	}
	return Compact(s)
}

// containsWord reports whether needle appears in text bounded by
// non-alphanumeric characters.
func containsWord(text, needle string) bool {
	if needle == "" || text == "" {
		return false
	}
	start := 0
	for {
		idx := strings.Index(text[start:], needle)
		if idx < 0 {
			return false
		}
		abs := start + idx
		end := abs + len(needle)
		leftOK := abs == 0 || !isAlphaNum(text[abs-1])
		rightOK := end == len(text) || !isAlphaNum(text[end])
		if leftOK && rightOK {
			return true
		}
		start = abs + 1
	}
}

func isAlphaNum(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
