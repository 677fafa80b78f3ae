package assistant

import (
	"regexp"
	"strings"
)

// Outcome tags the result of parsing a completion response. All three cases
// are ordinary values, not errors; the engine decides what each one means
// for the transcript and the bound query.
type Outcome int

// Parse outcomes.
const (
	// OutcomeOK: a well-formed query was extracted (or none was expected).
	OutcomeOK Outcome = iota
	// OutcomeEmpty: a query was expected but the response contained none.
	OutcomeEmpty
	// OutcomeMalformed: a fenced block was found but its content is not a
	// plausible SPARQL query.
	OutcomeMalformed
)

// ParseResult is the structured reading of a raw completion response.
type ParseResult struct {
	Outcome Outcome

	// Explanation is the response prose with query fences removed.
	Explanation string

	// Query is the extracted query text, empty unless Outcome is OutcomeOK
	// and a query was expected.
	Query string

	// Reason describes why the outcome is OutcomeMalformed.
	Reason string
}

var (
	// fencePattern matches ```sparql ... ``` and anonymous ``` ... ``` blocks.
	fencePattern = regexp.MustCompile("(?s)```(?:sparql)?\\s*\n(.*?)```")

	// queryFormPattern validates the leading query form keyword after any
	// prologue. Full grammar validation belongs to the query engine at
	// execution time; this only keeps obvious garbage out of the editor.
	queryFormPattern = regexp.MustCompile(`(?i)^\s*(SELECT|ASK|CONSTRUCT|DESCRIBE)\b`)

	// prologuePattern strips PREFIX/BASE declarations and comments before
	// the form keyword check.
	prologuePattern = regexp.MustCompile(`(?im)^\s*(PREFIX\s+[^\n]*|BASE\s+[^\n]*|#[^\n]*)$`)

	multiBlank = regexp.MustCompile(`\n{3,}`)
)

// Parse extracts structure from a raw completion response. The router's
// intent is a hint, not a guarantee: for generate/refine the parser decides
// whether a query was actually produced, and the engine records the intent
// the parser reports.
func Parse(raw string, intent Intent) ParseResult {
	if intent == IntentExplain || intent == IntentAnswer {
		// The whole response is the explanation; no extraction attempted.
		return ParseResult{Outcome: OutcomeOK, Explanation: strings.TrimSpace(raw)}
	}

	match := fencePattern.FindStringSubmatch(raw)
	if match == nil {
		return ParseResult{Outcome: OutcomeEmpty, Explanation: strings.TrimSpace(raw)}
	}

	query := strings.TrimSpace(match[1])
	explanation := cleanExplanation(fencePattern.ReplaceAllString(raw, ""))

	if err := ValidateQueryText(query); err != nil {
		return ParseResult{
			Outcome:     OutcomeMalformed,
			Explanation: explanation,
			Reason:      err.Error(),
		}
	}

	return ParseResult{Outcome: OutcomeOK, Explanation: explanation, Query: query}
}

// ValidateQueryText checks that text is at minimum a non-empty string whose
// first token after prologue declarations is a recognized query form.
func ValidateQueryText(text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return &MalformedQueryError{Reason: "extracted block is empty"}
	}

	body := strings.TrimSpace(prologuePattern.ReplaceAllString(trimmed, ""))
	if body == "" {
		return &MalformedQueryError{Reason: "extracted block contains only prologue declarations"}
	}
	if !queryFormPattern.MatchString(body) {
		return &MalformedQueryError{Reason: "extracted block does not start with SELECT, ASK, CONSTRUCT, or DESCRIBE"}
	}
	return nil
}

func cleanExplanation(s string) string {
	return strings.TrimSpace(multiBlank.ReplaceAllString(s, "\n\n"))
}
