// Package match picks the best of several provider candidates for a target
// address, by deterministic scoring or with help from a language model.
package match

import (
	"strings"

	"github.com/sells-group/property-resolver/internal/normalize"
	"github.com/sells-group/property-resolver/internal/property"
)

// Score weights.
const (
	scoreExact     = 100
	scoreSubstring = 50
	scoreZip       = 10
	scoreNumber    = 5
	scoreState     = 5
	scoreCity      = 5
)

// Target describes what the caller is looking for.
type Target struct {
	Address string
	Lat     *float64
	Lng     *float64
}

// Score rates one candidate against the target text. It is pure and
// deterministic.
func Score(c property.Candidate, target string) int {
	score := 0
	nt := normalize.Compact(target)
	na := normalize.Compact(c.Address)

	if nt != "" && na != "" {
		switch {
		case nt == na:
			score += scoreExact
		case strings.Contains(na, nt) || strings.Contains(nt, na):
			score += scoreSubstring
		}
	}

	if zip := normalize.Zip5(c.Zip); zip != "" {
		for _, z := range normalize.ZipsIn(target) {
			if z == zip {
				score += scoreZip
				break
			}
		}
	}

	addr := strings.ToLower(c.Address)
	for _, n := range normalize.NumbersIn(target) {
		if strings.Contains(addr, n) {
			score += scoreNumber
			break
		}
	}

	lt := strings.ToLower(target)
	if st := normalize.StateAbbr(c.State); st != "" && strings.Contains(lt, strings.ToLower(st)) {
		score += scoreState
	}
	if city := strings.TrimSpace(c.City); city != "" && strings.Contains(lt, strings.ToLower(city)) {
		score += scoreCity
	}
	return score
}

// Best returns the index of the highest-scoring candidate. Ties go to the
// earlier index. An empty target or candidate list yields 0.
func Best(cands []property.Candidate, target string) int {
	if strings.TrimSpace(target) == "" || len(cands) == 0 {
		return 0
	}
	best, bestScore := 0, -1
	for i, c := range cands {
		if s := Score(c, target); s > bestScore {
			best, bestScore = i, s
		}
	}
	return best
}
