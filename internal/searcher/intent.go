package searcher

import "strings"

// Intent classifies what kind of answer the query is after
type Intent string

const (
	IntentNone           Intent = ""
	IntentDocumentation  Intent = "documentation"
	IntentImplementation Intent = "implementation"
	IntentExample        Intent = "example"
)

// Trigger phrases checked in order; the first hit wins. Example intent is
// checked before documentation because "example of how to" contains "how".
var intentTriggers = []struct {
	intent  Intent
	phrases []string
}{
	{IntentExample, []string{
		"example", "usage of", "how to use", "sample",
	}},
	{IntentDocumentation, []string{
		"what is", "what does", "explain", "documentation", "docs for", "describe",
	}},
	{IntentImplementation, []string{
		"how does", "how is", "implementation", "implemented", "internals", "source of",
	}},
}

// DetectIntent scans the query for intent trigger phrases
func DetectIntent(query string) Intent {
	lower := strings.ToLower(query)
	for _, trigger := range intentTriggers {
		for _, phrase := range trigger.phrases {
			if strings.Contains(lower, phrase) {
				return trigger.intent
			}
		}
	}
	return IntentNone
}

// multiplier returns the rerank factor for results matching the intent
func (i Intent) multiplier() float64 {
	switch i {
	case IntentDocumentation:
		return 1.2
	case IntentImplementation:
		return 1.15
	case IntentExample:
		return 1.25
	default:
		return 1.0
	}
}
