package assistant

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/c360studio/sparqlpad/graph"
	"github.com/c360studio/sparqlpad/llm"
)

// turnState tracks one turn's lifecycle for logging. Terminal states are
// stateAppended (success or soft failure) and stateRejected, which is only
// reached on an invalid session id before classification.
type turnState string

const (
	stateReceived       turnState = "received"
	stateClassified     turnState = "classified"
	stateContextBuilt   turnState = "context_built"
	stateCompleting     turnState = "completing"
	stateParsedOK       turnState = "parsed_ok"
	stateParsedEmpty    turnState = "parsed_empty"
	stateProviderFailed turnState = "provider_failed"
	stateAppended       turnState = "appended"
	stateRejected       turnState = "rejected"
)

// SchemaSource supplies the current graph schema snapshot.
type SchemaSource interface {
	Snapshot() (*graph.Snapshot, error)
}

// TurnOutcome is what one processed turn produced, shaped for the wire: the
// client renders the transcript and the editor state from the same feed.
type TurnOutcome struct {
	SessionID     string `json:"session_id"`
	UserTurn      Turn   `json:"user_turn"`
	AssistantTurn Turn   `json:"assistant_turn"`

	// CurrentQuery is the session's bound query after the turn.
	CurrentQuery string `json:"current_query"`

	// QueryUpdated is set when this turn overwrote the bound query.
	QueryUpdated bool `json:"query_updated"`
}

// Engine runs the per-turn pipeline: classify, assemble context, complete,
// parse, and apply the sync rules between transcript and editor.
type Engine struct {
	store       *Store
	schema      SchemaSource
	completer   llm.Completer
	enabled     bool
	window      int
	maxTokens   int
	temperature *float64
	logger      *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithContextWindow bounds how many recent turns feed each prompt.
func WithContextWindow(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.window = n
		}
	}
}

// WithMaxTokens bounds completion length.
func WithMaxTokens(n int) EngineOption {
	return func(e *Engine) {
		e.maxTokens = n
	}
}

// WithTemperature sets the sampling temperature for completions.
func WithTemperature(t float64) EngineOption {
	return func(e *Engine) {
		e.temperature = &t
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates an assistant engine. completer may be nil when the
// assistant is disabled; every turn then fails softly with a clear
// "not configured" transcript entry.
func NewEngine(store *Store, schema SchemaSource, completer llm.Completer, opts ...EngineOption) *Engine {
	e := &Engine{
		store:     store,
		schema:    schema,
		completer: completer,
		enabled:   completer != nil,
		window:    DefaultContextWindow,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enabled reports whether the assistant has a configured provider.
func (e *Engine) Enabled() bool {
	return e.enabled
}

// Store exposes the conversation store for session management.
func (e *Engine) Store() *Store {
	return e.store
}

// HandleTurn processes one user turn end to end. editorQuery, when non-nil,
// syncs the browser editor's current text into the session before
// classification, so out-of-band edits are what refine/explain operate on. A
// pointer to the empty string means the user cleared the editor and unbinds
// the query; nil means the client sent no editor state.
//
// ErrInvalidSession is the only error returned without a transcript write.
// Every other failure is captured as an error-intent assistant turn so the
// conversation stays a complete audit log; the bound query is never touched
// by a failing turn.
func (e *Engine) HandleTurn(ctx context.Context, sessionID, userText string, editorQuery *string) (*TurnOutcome, error) {
	state := stateReceived

	if !e.store.Exists(sessionID) {
		state = stateRejected
		e.logger.Warn("Turn rejected", "session_id", sessionID, "state", state)
		return nil, ErrInvalidSession
	}

	if editorQuery != nil {
		if err := e.store.SetCurrentQuery(sessionID, *editorQuery); err != nil {
			return nil, err
		}
	}

	currentQuery, err := e.store.CurrentQuery(sessionID)
	if err != nil {
		return nil, err
	}

	intent := Classify(userText, currentQuery != "")
	state = stateClassified
	e.logger.Debug("Turn classified", "session_id", sessionID, "intent", intent, "state", state)

	// The user turn is appended before the completion call so that even a
	// failing turn leaves the question on record.
	userTurn := Turn{
		Role:        RoleUser,
		Text:        userText,
		Intent:      intent,
		QueryAtTime: currentQuery,
		Timestamp:   time.Now(),
	}
	if err := e.store.Append(sessionID, userTurn); err != nil {
		return nil, err
	}

	if !e.enabled {
		return e.failTurn(sessionID, userTurn, currentQuery, ErrDisabled.Error())
	}

	snap, err := e.schema.Snapshot()
	if err != nil {
		return e.failTurn(sessionID, userTurn, currentQuery,
			"Dataset statistics are not available yet; try again once the graph has loaded.")
	}

	recent, err := e.store.Context(sessionID, e.window)
	if err != nil {
		return nil, err
	}
	// Exclude the user turn just appended; it is carried separately.
	if n := len(recent); n > 0 {
		recent = recent[:n-1]
	}

	req := BuildRequest(intent, userText, snap, currentQuery, recent)
	state = stateContextBuilt

	state = stateCompleting
	e.logger.Debug("Completing", "session_id", sessionID, "intent", intent, "state", state)

	resp, err := e.completer.Complete(ctx, llm.Request{
		Messages:    req.Messages(),
		Temperature: e.temperature,
		MaxTokens:   e.maxTokens,
	})
	if err != nil {
		state = stateProviderFailed
		if errors.Is(err, context.Canceled) {
			// Client went away; nothing to record for nobody.
			return nil, err
		}
		e.logger.Warn("Completion failed",
			"session_id", sessionID,
			"intent", intent,
			"kind", llm.KindOf(err),
			"state", state,
			"error", err)
		return e.failTurn(sessionID, userTurn, currentQuery, providerFailureText(err))
	}

	parsed := Parse(resp.Content, intent)
	return e.applyResult(sessionID, userTurn, currentQuery, intent, parsed)
}

// applyResult runs the sync protocol: a successful extraction overwrites the
// bound query (replace, not merge; last-write-wins with the transcript as
// the audit trail), an empty extraction downgrades the intent to answer, and
// a malformed extraction records an error turn without touching the query.
func (e *Engine) applyResult(sessionID string, userTurn Turn, queryBefore string, predicted Intent, parsed ParseResult) (*TurnOutcome, error) {
	var state turnState
	result := Result{Explanation: parsed.Explanation, Intent: predicted}

	switch parsed.Outcome {
	case OutcomeOK:
		state = stateParsedOK
		result.ProposedQuery = parsed.Query

	case OutcomeEmpty:
		state = stateParsedEmpty
		// Routing predicted a query but none was produced; the parser is
		// the authority on what actually happened.
		result.Intent = IntentAnswer

	case OutcomeMalformed:
		state = stateProviderFailed
		result.Intent = IntentError
		if result.Explanation == "" {
			result.Explanation = "The assistant's response did not contain a usable SPARQL query."
		}
		e.logger.Warn("Malformed query extracted",
			"session_id", sessionID, "reason", parsed.Reason, "state", state)
	}

	queryUpdated := false
	currentQuery := queryBefore
	if result.ProposedQuery != "" {
		if err := e.store.SetCurrentQuery(sessionID, result.ProposedQuery); err != nil {
			return nil, err
		}
		currentQuery = result.ProposedQuery
		queryUpdated = true
	}

	assistantTurn := Turn{
		Role:          RoleAssistant,
		Text:          result.Explanation,
		Intent:        result.Intent,
		ProposedQuery: result.ProposedQuery,
		QueryAtTime:   currentQuery,
		Timestamp:     time.Now(),
	}
	if err := e.store.Append(sessionID, assistantTurn); err != nil {
		return nil, err
	}

	e.logger.Info("Turn appended",
		"session_id", sessionID,
		"intent", result.Intent,
		"query_updated", queryUpdated,
		"state", stateAppended)

	return &TurnOutcome{
		SessionID:     sessionID,
		UserTurn:      userTurn,
		AssistantTurn: assistantTurn,
		CurrentQuery:  currentQuery,
		QueryUpdated:  queryUpdated,
	}, nil
}

// failTurn records a soft failure: an error-intent assistant turn with a
// human-readable explanation. The bound query is left untouched.
func (e *Engine) failTurn(sessionID string, userTurn Turn, currentQuery, explanation string) (*TurnOutcome, error) {
	assistantTurn := Turn{
		Role:        RoleAssistant,
		Text:        explanation,
		Intent:      IntentError,
		QueryAtTime: currentQuery,
		Timestamp:   time.Now(),
	}
	if err := e.store.Append(sessionID, assistantTurn); err != nil {
		return nil, err
	}

	return &TurnOutcome{
		SessionID:     sessionID,
		UserTurn:      userTurn,
		AssistantTurn: assistantTurn,
		CurrentQuery:  currentQuery,
	}, nil
}

// providerFailureText maps provider error kinds to the text surfaced in the
// transcript.
func providerFailureText(err error) string {
	switch llm.KindOf(err) {
	case llm.ErrTimeout:
		return "The assistant timed out waiting for the language model. Please try again."
	case llm.ErrAuth:
		return "The language model rejected the configured credentials. Check the API key configuration."
	case llm.ErrRateLimited:
		return "The language model is rate limiting requests. Wait a moment and try again."
	case llm.ErrUnavailable:
		return "The language model could not be reached. Check the provider configuration and network."
	default:
		return "The assistant could not complete that request."
	}
}
