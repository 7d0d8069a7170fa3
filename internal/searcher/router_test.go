package searcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCrossRef(t *testing.T) {
	tests := []struct {
		query     string
		direction CrossRefDirection
		symbol    string
	}{
		{"who calls ProcessOrder", CrossRefCallers, "ProcessOrder"},
		{"who calls ProcessOrder?", CrossRefCallers, "ProcessOrder"},
		{"Who Calls processOrder", CrossRefCallers, "processOrder"},
		{"callers of Conn.Close", CrossRefCallers, "Conn.Close"},
		{"what calls validateInput", CrossRefCallers, "validateInput"},
		{"what does ProcessOrder call", CrossRefCallees, "ProcessOrder"},
		{"what does ProcessOrder call?", CrossRefCallees, "ProcessOrder"},
		{"callees of handleRequest", CrossRefCallees, "handleRequest"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			xref, ok := ParseCrossRef(tt.query)
			require.True(t, ok)
			assert.Equal(t, tt.direction, xref.Direction)
			assert.Equal(t, tt.symbol, xref.Symbol)
		})
	}
}

func TestParseCrossRefRejectsSearchQueries(t *testing.T) {
	for _, query := range []string{
		"authentication middleware",
		"what is a chunker",
		"how does caching work",
		"calls between services",
		"",
	} {
		_, ok := ParseCrossRef(query)
		assert.False(t, ok, "query %q should not route to the call graph", query)
	}
}
