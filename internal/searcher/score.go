package searcher

import "strings"

// Symbol-name match confidences. Fixed bands rather than a continuous
// function so rankings stay explainable.
const (
	scoreExactName    = 0.95
	scoreSubstring    = 0.85
	scoreAllTerms     = 0.75
	scorePartialFloor = 0.55
	scorePartialCeil  = 0.70
)

// Boost multipliers applied after source scores are merged
const (
	boostScope      = 1.3
	boostProximity  = 1.2
	boostDocumented = 1.1
)

// scoreSymbolName rates how well a symbol name answers the query.
// Exact beats substring beats all-terms beats partial overlap; a name
// matching only some terms lands between the partial floor and ceiling
// in proportion to how many terms it covers.
func scoreSymbolName(name, query string, terms []string) float64 {
	lowerName := strings.ToLower(name)
	lowerQuery := strings.ToLower(strings.TrimSpace(query))

	if lowerName == lowerQuery {
		return scoreExactName
	}
	if lowerQuery != "" && strings.Contains(lowerName, lowerQuery) {
		return scoreSubstring
	}

	if len(terms) == 0 {
		return 0
	}

	matched := 0
	for _, term := range terms {
		if strings.Contains(lowerName, strings.ToLower(term)) {
			matched++
		}
	}
	if matched == 0 {
		return 0
	}
	if matched == len(terms) {
		return scoreAllTerms
	}

	score := scorePartialFloor + (scorePartialCeil-scorePartialFloor)*float64(matched)/float64(len(terms))
	if score > scorePartialCeil {
		score = scorePartialCeil
	}
	return score
}

// clampScore keeps final relevance in [0, 1] no matter how many boosts
// stacked up
func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// recencyBoost scales with how recently the defining file changed.
// Fresh files get up to 1.2x; anything older than ninety days is neutral.
func recencyBoost(ageDays float64) float64 {
	switch {
	case ageDays < 0:
		return 1.0
	case ageDays <= 7:
		return 1.2
	case ageDays <= 30:
		return 1.1
	case ageDays <= 90:
		return 1.05
	default:
		return 1.0
	}
}
