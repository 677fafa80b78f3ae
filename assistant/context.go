package assistant

import (
	"fmt"
	"sort"
	"strings"

	"github.com/c360studio/sparqlpad/graph"
	"github.com/c360studio/sparqlpad/llm"
)

// queryFence is how the model is instructed to delimit queries so the parser
// can extract them reliably.
const queryFence = "```sparql"

// explainSystemPrompt asks for a natural-language reading of a query.
const explainSystemPrompt = `You are an expert SPARQL assistant. Your task is to explain SPARQL queries in clear, natural language.

%s

When explaining a query:
1. Describe what the query is trying to find or retrieve
2. Explain any filters, conditions, or patterns used
3. Mention the expected result form (SELECT, ASK, CONSTRUCT, DESCRIBE)
4. Keep explanations accessible to users with varying SPARQL knowledge

Be concise but complete.`

// generateSystemPrompt asks for a fresh query from a description.
const generateSystemPrompt = `You are an expert SPARQL assistant. Your task is to generate SPARQL queries from natural language descriptions.

%s

When generating queries:
1. Use the prefixes declared above where they shorten IRIs
2. Use only classes and properties that exist in the graph where possible
3. Include a LIMIT clause when the result set could be large
4. Wrap the query in a fenced code block starting with ` + "```sparql" + `

Always return exactly one query in a ` + "```sparql" + ` fence, followed by a short explanation.`

// refineSystemPrompt asks for a modification of the current query.
const refineSystemPrompt = `You are an expert SPARQL assistant. Your task is to modify an existing SPARQL query according to the user's instructions.

%s

When modifying a query:
1. Preserve the structure and prefixes of the existing query where possible
2. Apply only the requested change
3. Return the complete modified query, not a fragment
4. Wrap the query in a fenced code block starting with ` + "```sparql" + `

Always return exactly one query in a ` + "```sparql" + ` fence, followed by a short explanation of what changed.`

// answerSystemPrompt covers free-form SPARQL and dataset questions.
const answerSystemPrompt = `You are an expert SPARQL assistant helping users work with RDF data and SPARQL queries.

%s

You can help with explaining SPARQL concepts, describing the loaded dataset, and suggesting how to query it. If you include a query in your answer, wrap it in a fenced code block starting with ` + "```sparql" + `.`

// BuildRequest assembles the bounded context for one completion call. It is
// a pure function of its inputs: no I/O, no clock, no store access. The
// current query is deliberately omitted for generate so a fresh generation
// is not anchored on stale editor text; refine and explain always carry it.
func BuildRequest(intent Intent, userText string, schema *graph.Snapshot, currentQuery string, recentTurns []Turn) Request {
	req := Request{
		Intent:      intent,
		UserText:    userText,
		Schema:      schema,
		RecentTurns: recentTurns,
	}
	if intent == IntentRefine || intent == IntentExplain || intent == IntentAnswer {
		req.CurrentQuery = currentQuery
	}
	return req
}

// Messages renders the request into the provider message list.
func (r Request) Messages() []llm.Message {
	msgs := []llm.Message{{Role: "system", Content: r.systemPrompt()}}

	for _, turn := range r.RecentTurns {
		role := "user"
		if turn.Role == RoleAssistant {
			role = "assistant"
		}
		msgs = append(msgs, llm.Message{Role: role, Content: turn.Text})
	}

	msgs = append(msgs, llm.Message{Role: "user", Content: r.userPrompt()})
	return msgs
}

func (r Request) systemPrompt() string {
	ctx := schemaContext(r.Schema)
	switch r.Intent {
	case IntentExplain:
		return fmt.Sprintf(explainSystemPrompt, ctx)
	case IntentGenerate:
		return fmt.Sprintf(generateSystemPrompt, ctx)
	case IntentRefine:
		return fmt.Sprintf(refineSystemPrompt, ctx)
	default:
		return fmt.Sprintf(answerSystemPrompt, ctx)
	}
}

func (r Request) userPrompt() string {
	var parts []string

	switch r.Intent {
	case IntentExplain:
		parts = append(parts,
			"Please explain this SPARQL query:",
			queryFence+"\n"+r.CurrentQuery+"\n```")
	case IntentRefine:
		parts = append(parts,
			"Current query:",
			queryFence+"\n"+r.CurrentQuery+"\n```",
			"Requested change: "+r.UserText)
	case IntentGenerate:
		parts = append(parts, "Generate a SPARQL query for: "+r.UserText)
	default:
		if r.CurrentQuery != "" {
			parts = append(parts,
				"Current query:",
				queryFence+"\n"+r.CurrentQuery+"\n```")
		}
		parts = append(parts, r.UserText)
	}

	return strings.Join(parts, "\n\n")
}

// schemaContext renders the size-bounded graph summary embedded in every
// system prompt.
func schemaContext(snap *graph.Snapshot) string {
	if snap == nil {
		return "No dataset statistics are available yet."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Graph context:\nThe RDF graph contains %d triples.\n", snap.TripleCount)

	if len(snap.Classes) > 0 {
		sb.WriteString("\nClasses:\n")
		for _, c := range snap.Classes {
			fmt.Fprintf(&sb, "  %s\n", c)
		}
		if snap.ClassesTruncated {
			fmt.Fprintf(&sb, "  ... and %d more\n", snap.TotalClasses-len(snap.Classes))
		}
	}

	if len(snap.Properties) > 0 {
		sb.WriteString("\nProperties:\n")
		for _, p := range snap.Properties {
			fmt.Fprintf(&sb, "  %s\n", p)
		}
		if snap.PropertiesTruncated {
			fmt.Fprintf(&sb, "  ... and %d more\n", snap.TotalProperties-len(snap.Properties))
		}
	}

	if len(snap.PrefixMap) > 0 {
		sb.WriteString("\nAvailable prefixes:\n")
		prefixes := make([]string, 0, len(snap.PrefixMap))
		for p := range snap.PrefixMap {
			prefixes = append(prefixes, p)
		}
		sort.Strings(prefixes)
		for _, p := range prefixes {
			fmt.Fprintf(&sb, "  PREFIX %s: <%s>\n", p, snap.PrefixMap[p])
		}
	}

	return strings.TrimRight(sb.String(), "\n")
}
