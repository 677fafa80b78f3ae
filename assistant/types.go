// Package assistant implements the context-aware SPARQL query assistant:
// session-scoped conversation state, intent classification, prompt assembly,
// response parsing, and the sync rules that keep the query editor and the
// chat transcript consistent.
package assistant

import (
	"time"

	"github.com/c360studio/sparqlpad/graph"
)

// Role identifies who produced a turn.
type Role string

// Turn roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Intent is the classified purpose of a turn. For user turns it is the
// router's prediction; for assistant turns it records what was actually
// produced, which may differ (the parser is the authority).
type Intent string

// Intents.
const (
	IntentGenerate Intent = "generate"
	IntentRefine   Intent = "refine"
	IntentExplain  Intent = "explain"
	IntentAnswer   Intent = "answer"
	IntentError    Intent = "error"
)

// Turn is one message in a session transcript. Turns are immutable once
// appended; this struct is always passed by value.
type Turn struct {
	Role Role `json:"role"`

	Text string `json:"text"`

	Intent Intent `json:"intent,omitempty"`

	// ProposedQuery carries the extracted query on assistant turns that
	// produced one. The client renders it into the editor.
	ProposedQuery string `json:"proposedQuery,omitempty"`

	// QueryAtTime snapshots the session's current query when the turn was
	// produced, preserving the transcript as an audit trail the user can
	// scroll to recover overwritten editor text.
	QueryAtTime string `json:"queryAtTimeOfTurn,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// Request is the ephemeral, bounded context handed to the completion
// provider for one turn. It exists only for the duration of one call.
type Request struct {
	Intent       Intent
	UserText     string
	Schema       *graph.Snapshot
	CurrentQuery string
	RecentTurns  []Turn
}

// Result is the parsed outcome of one completion call.
type Result struct {
	// Explanation is the assistant's prose (query fences removed).
	Explanation string

	// ProposedQuery is the extracted query, empty for explain/answer turns.
	ProposedQuery string

	// Intent is the final recorded intent, which the parser may have
	// downgraded from the router's prediction.
	Intent Intent
}
