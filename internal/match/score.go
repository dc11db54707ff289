package match

import (
	"regexp"
	"strconv"
	"strings"
)

// DefaultScore is used when no score can be parsed out of the model's
// explanation. It is deliberately 1 rather than 0 so that an unparseable
// response sorts above a candidate the model explicitly scored zero.
const DefaultScore = 1

var (
	scoreOutOf100 = regexp.MustCompile(`(\d{1,3})\s*/\s*100`)
	standaloneInt = regexp.MustCompile(`\b(\d{1,3})\b`)
)

// ExtractScore parses a 0-100 integer score out of explanation text using a
// three-tier fallback: a line carrying the SCORE marker and "/100", then any
// line matching "N/100", then any standalone 0-100 integer anywhere in the
// text. Returns DefaultScore when all tiers fail.
func ExtractScore(text string) int {
	lines := strings.Split(text, "\n")

	// Tier 1: explicit SCORE marker.
	for _, line := range lines {
		if strings.Contains(line, "SCORE") && strings.Contains(line, "/100") {
			if n, ok := firstScoreIn(line); ok {
				return n
			}
		}
	}

	// Tier 2: any N/100 line.
	for _, line := range lines {
		if n, ok := firstScoreIn(line); ok {
			return n
		}
	}

	// Tier 3: any standalone 0-100 integer.
	for _, m := range standaloneInt.FindAllStringSubmatch(text, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && n <= 100 {
			return n
		}
	}

	return DefaultScore
}

// firstScoreIn returns the first valid "N/100" score on the line.
func firstScoreIn(line string) (int, bool) {
	for _, m := range scoreOutOf100.FindAllStringSubmatch(line, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && n <= 100 {
			return n, true
		}
	}
	return 0, false
}
