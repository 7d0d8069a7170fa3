package searcher

import (
	"strings"
	"unicode"
)

// Tokenize splits a query into code-aware terms. Letters, digits, and
// underscores form one token class so snake_case identifiers survive as
// single terms; everything else separates. No stemming is applied, matching
// the FTS tokenizer exactly.
func Tokenize(query string) []string {
	var terms []string
	var current strings.Builder

	for _, r := range query {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			current.WriteRune(r)
			continue
		}
		if current.Len() > 0 {
			terms = append(terms, current.String())
			current.Reset()
		}
	}
	if current.Len() > 0 {
		terms = append(terms, current.String())
	}
	return terms
}

// quoteTerm wraps a term for FTS5 so it is always treated as a plain
// string, never an operator or syntax
func quoteTerm(term string) string {
	return `"` + strings.ReplaceAll(term, `"`, `""`) + `"`
}

// buildMatchAll requires every term (FTS5 implicit AND)
func buildMatchAll(terms []string) string {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = quoteTerm(t)
	}
	return strings.Join(quoted, " ")
}

// buildMatchAny matches any single term
func buildMatchAny(terms []string) string {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = quoteTerm(t)
	}
	return strings.Join(quoted, " OR ")
}

// buildMatchNear requires all terms within a 10-token window. Used only as
// a secondary signal to boost proximity, never as the primary match.
func buildMatchNear(terms []string) string {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = quoteTerm(t)
	}
	return "NEAR(" + strings.Join(quoted, " ") + ", 10)"
}
