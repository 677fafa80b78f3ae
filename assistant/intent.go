package assistant

import (
	"regexp"
	"strings"
)

// Deterministic rule-based classification: fast, offline-testable, and with
// no failure mode beyond defaulting to a free-form answer. The completion
// provider never decides routing.

var (
	explainPattern = regexp.MustCompile(`\b(explain|interpret|what does (this|that|the|my) query)\b`)

	// Imperative modification verbs, or a pronoun referring to the query
	// in the editor.
	refinePattern = regexp.MustCompile(`\b(add|remove|delete|drop|filter|order|sort|limit|change|modify|update|rewrite|replace|instead|also|group)\b` +
		`|\b(this|that|the|my|current) query\b|\bthe current one\b`)

	generatePattern = regexp.MustCompile(`\b(show|find|list|get|count|give|fetch|display|retrieve|select|which|who|where|what|how many)\b`)
)

// Classify routes a user turn to an intent. The priority ordering is a
// deliberate tie-break: an ambiguous "filter products" with an existing
// query refines that query rather than starting fresh, because silently
// losing editor context is worse than an unwanted refinement the user can
// undo from the transcript.
func Classify(userText string, hasCurrentQuery bool) Intent {
	text := strings.ToLower(strings.TrimSpace(userText))

	if hasCurrentQuery && explainPattern.MatchString(text) {
		return IntentExplain
	}
	if hasCurrentQuery && refinePattern.MatchString(text) {
		return IntentRefine
	}
	if generatePattern.MatchString(text) {
		return IntentGenerate
	}
	return IntentAnswer
}
