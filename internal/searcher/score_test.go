package searcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreSymbolName(t *testing.T) {
	tests := []struct {
		name   string
		symbol string
		query  string
		want   float64
	}{
		{"exact match", "ParseConfig", "ParseConfig", scoreExactName},
		{"exact case insensitive", "ParseConfig", "parseconfig", scoreExactName},
		{"query substring of name", "ParseConfigFile", "ParseConfig", scoreSubstring},
		{"all terms present", "LoadUserConfig", "config load", scoreAllTerms},
		{"no overlap", "Render", "database migration", 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scoreSymbolName(tt.symbol, tt.query, Tokenize(tt.query))
			assert.InDelta(t, tt.want, got, 0.001)
		})
	}
}

func TestScoreSymbolNamePartialBand(t *testing.T) {
	// One of two terms matched lands midway between floor and ceiling
	got := scoreSymbolName("ParseFile", "parse token", Tokenize("parse token"))
	assert.Greater(t, got, scorePartialFloor)
	assert.LessOrEqual(t, got, scorePartialCeil)

	// Two of three matched scores higher than one of three
	low := scoreSymbolName("ParseFile", "parse token stream", Tokenize("parse token stream"))
	high := scoreSymbolName("ParseFileStream", "parse token stream", Tokenize("parse token stream"))
	assert.Greater(t, high, low)
	assert.LessOrEqual(t, high, scorePartialCeil)
}

func TestScoreSymbolNameNeverReachesAllTermsBand(t *testing.T) {
	got := scoreSymbolName("ParseFile", "parse missing", Tokenize("parse missing"))
	assert.Less(t, got, scoreAllTerms)
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 1.0, clampScore(0.95*boostScope*boostProximity))
	assert.Equal(t, 0.0, clampScore(-0.1))
	assert.Equal(t, 0.5, clampScore(0.5))
}

func TestRecencyBoost(t *testing.T) {
	assert.Equal(t, 1.2, recencyBoost(1))
	assert.Equal(t, 1.2, recencyBoost(7))
	assert.Equal(t, 1.1, recencyBoost(20))
	assert.Equal(t, 1.05, recencyBoost(60))
	assert.Equal(t, 1.0, recencyBoost(365))
	assert.Equal(t, 1.0, recencyBoost(-5))
}
