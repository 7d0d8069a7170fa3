package searcher

import (
	"regexp"
	"strings"
)

// CrossRefDirection says which side of the call graph a routed query wants
type CrossRefDirection string

const (
	CrossRefCallers CrossRefDirection = "callers"
	CrossRefCallees CrossRefDirection = "callees"
)

// CrossRefQuery is a natural-language question about the call graph that
// should bypass the search pipeline entirely
type CrossRefQuery struct {
	Direction CrossRefDirection
	Symbol    string
}

// Symbol names as they appear in queries: identifiers, optionally
// qualified (Conn.Close) or package-prefixed (fmt.Println).
const symbolPattern = `([A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)?)`

var crossRefPatterns = []struct {
	re        *regexp.Regexp
	direction CrossRefDirection
}{
	{regexp.MustCompile(`(?i)^\s*who\s+calls\s+` + symbolPattern), CrossRefCallers},
	{regexp.MustCompile(`(?i)^\s*callers\s+of\s+` + symbolPattern), CrossRefCallers},
	{regexp.MustCompile(`(?i)^\s*what\s+calls\s+` + symbolPattern), CrossRefCallers},
	{regexp.MustCompile(`(?i)^\s*what\s+does\s+` + symbolPattern + `\s+call`), CrossRefCallees},
	{regexp.MustCompile(`(?i)^\s*callees\s+of\s+` + symbolPattern), CrossRefCallees},
}

// ParseCrossRef recognizes call graph questions. These route straight to
// the graph, skipping scoring, boosting, and ranking entirely: the answer
// is a set of edges, not a relevance-ordered list.
func ParseCrossRef(query string) (*CrossRefQuery, bool) {
	for _, pattern := range crossRefPatterns {
		if m := pattern.re.FindStringSubmatch(query); m != nil {
			symbol := strings.TrimRight(m[1], "?.!")
			return &CrossRefQuery{
				Direction: pattern.direction,
				Symbol:    symbol,
			}, true
		}
	}
	return nil, false
}
