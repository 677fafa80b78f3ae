package assistant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_GenerateWithFence(t *testing.T) {
	raw := "Here is a query that lists all people:\n\n" +
		"```sparql\nPREFIX foaf: <http://xmlns.com/foaf/0.1/>\nSELECT ?p WHERE { ?p a foaf:Person }\n```\n\n" +
		"It matches every resource typed as foaf:Person."

	got := Parse(raw, IntentGenerate)

	require.Equal(t, OutcomeOK, got.Outcome)
	assert.Equal(t, "PREFIX foaf: <http://xmlns.com/foaf/0.1/>\nSELECT ?p WHERE { ?p a foaf:Person }", got.Query)
	assert.Contains(t, got.Explanation, "lists all people")
	assert.Contains(t, got.Explanation, "foaf:Person.")
	assert.NotContains(t, got.Explanation, "```")
}

func TestParse_AnonymousFence(t *testing.T) {
	raw := "```\nSELECT * WHERE { ?s ?p ?o } LIMIT 5\n```"

	got := Parse(raw, IntentRefine)

	require.Equal(t, OutcomeOK, got.Outcome)
	assert.Equal(t, "SELECT * WHERE { ?s ?p ?o } LIMIT 5", got.Query)
	assert.Empty(t, got.Explanation)
}

func TestParse_NoFence(t *testing.T) {
	raw := "Could you clarify which properties you want? The graph has several."

	for _, intent := range []Intent{IntentGenerate, IntentRefine} {
		got := Parse(raw, intent)
		assert.Equal(t, OutcomeEmpty, got.Outcome, "intent %s", intent)
		assert.Equal(t, raw, got.Explanation)
		assert.Empty(t, got.Query)
	}
}

func TestParse_MalformedFence(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{
			name: "prose inside fence",
			raw:  "```sparql\nthis is not actually a query\n```",
		},
		{
			name: "empty fence",
			raw:  "Sure:\n```sparql\n\n```",
		},
		{
			name: "only prologue",
			raw:  "```sparql\nPREFIX ex: <http://example.org/>\n# nothing else\n```",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.raw, IntentGenerate)
			assert.Equal(t, OutcomeMalformed, got.Outcome)
			assert.Empty(t, got.Query)
			assert.NotEmpty(t, got.Reason)
		})
	}
}

func TestParse_ExplainPassthrough(t *testing.T) {
	raw := "This query selects every person and, even though it mentions\n```sparql\nSELECT ?x WHERE { ?x ?y ?z }\n```\nno extraction should happen."

	got := Parse(raw, IntentExplain)

	require.Equal(t, OutcomeOK, got.Outcome)
	assert.Empty(t, got.Query)
	assert.Equal(t, raw, got.Explanation)
}

func TestParse_AnswerPassthrough(t *testing.T) {
	raw := "  OPTIONAL adds left-join semantics.  "

	got := Parse(raw, IntentAnswer)

	require.Equal(t, OutcomeOK, got.Outcome)
	assert.Equal(t, "OPTIONAL adds left-join semantics.", got.Explanation)
	assert.Empty(t, got.Query)
}

func TestParse_FirstFenceWins(t *testing.T) {
	raw := "```sparql\nSELECT ?a WHERE { ?a ?p ?o }\n```\nOr alternatively:\n```sparql\nSELECT ?b WHERE { ?b ?p ?o }\n```"

	got := Parse(raw, IntentGenerate)

	require.Equal(t, OutcomeOK, got.Outcome)
	assert.Equal(t, "SELECT ?a WHERE { ?a ?p ?o }", got.Query)
	// Both fences are stripped from the explanation.
	assert.NotContains(t, got.Explanation, "SELECT ?b")
}

func TestValidateQueryText(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantErr bool
	}{
		{"select", "SELECT ?s WHERE { ?s ?p ?o }", false},
		{"ask", "ASK { ?s ?p ?o }", false},
		{"construct", "CONSTRUCT { ?s ?p ?o } WHERE { ?s ?p ?o }", false},
		{"describe", "DESCRIBE <http://example.org/x>", false},
		{"lowercase form", "select ?s where { ?s ?p ?o }", false},
		{"prologue then select", "PREFIX ex: <http://example.org/>\nBASE <http://example.org/>\nSELECT ?s WHERE { ?s ex:p ?o }", false},
		{"comment then select", "# all triples\nSELECT * WHERE { ?s ?p ?o }", false},
		{"empty", "", true},
		{"whitespace", "   \n  ", true},
		{"prose", "here you go", true},
		{"prologue only", "PREFIX ex: <http://example.org/>", true},
		{"form keyword mid-text", "the SELECT statement", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateQueryText(tt.text)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
