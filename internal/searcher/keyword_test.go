package searcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"simple words", "parse config file", []string{"parse", "config", "file"}},
		{"snake case survives", "handle_request retry", []string{"handle_request", "retry"}},
		{"punctuation separates", "p.Parse(file)", []string{"p", "Parse", "file"}},
		{"digits kept", "sha256 v2", []string{"sha256", "v2"}},
		{"operators stripped", `"quoted" AND x OR y`, []string{"quoted", "AND", "x", "OR", "y"}},
		{"empty", "   ", nil},
		{"only punctuation", "... !!!", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.query))
		})
	}
}

func TestBuildMatchAll(t *testing.T) {
	expr := buildMatchAll([]string{"parse", "config"})
	assert.Equal(t, `"parse" "config"`, expr)
}

func TestBuildMatchAny(t *testing.T) {
	expr := buildMatchAny([]string{"parse", "config", "file"})
	assert.Equal(t, `"parse" OR "config" OR "file"`, expr)
}

func TestBuildMatchNear(t *testing.T) {
	expr := buildMatchNear([]string{"parse", "config"})
	assert.Equal(t, `NEAR("parse" "config", 10)`, expr)
}

func TestQuoteTermNeutralizesOperators(t *testing.T) {
	// Terms that are FTS5 syntax must come out inert
	assert.Equal(t, `"NEAR"`, quoteTerm("NEAR"))
	assert.Equal(t, `"a""b"`, quoteTerm(`a"b`))
}
