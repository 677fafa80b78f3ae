package graph

import (
	"encoding/json"
	"strings"
)

// sparqlJSONHead is the "head" member of the SPARQL 1.1 JSON results format.
type sparqlJSONHead struct {
	Vars []string `json:"vars,omitempty"`
}

type sparqlJSONResults struct {
	Bindings []map[string]sparqlJSONTerm `json:"bindings"`
}

type sparqlJSONTerm struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Lang     string `json:"xml:lang,omitempty"`
	Datatype string `json:"datatype,omitempty"`
}

type sparqlJSONDocument struct {
	Head    sparqlJSONHead     `json:"head"`
	Boolean *bool              `json:"boolean,omitempty"`
	Results *sparqlJSONResults `json:"results,omitempty"`
}

// SPARQLJSON serializes the result in the SPARQL 1.1 Query Results JSON
// format, the format the query editor consumes.
func (r *Result) SPARQLJSON() ([]byte, error) {
	doc := sparqlJSONDocument{}

	if r.Form == FormAsk {
		b := r.Bool
		doc.Boolean = &b
		return json.Marshal(doc)
	}

	doc.Head.Vars = r.Vars
	bindings := make([]map[string]sparqlJSONTerm, 0, len(r.Bindings))
	for _, row := range r.Bindings {
		out := make(map[string]sparqlJSONTerm, len(row))
		for v, t := range row {
			out[v] = termJSON(t)
		}
		bindings = append(bindings, out)
	}
	doc.Results = &sparqlJSONResults{Bindings: bindings}
	return json.Marshal(doc)
}

func termJSON(t Term) sparqlJSONTerm {
	switch t.Kind {
	case TermIRI:
		return sparqlJSONTerm{Type: "uri", Value: t.Value}
	case TermBlank:
		return sparqlJSONTerm{Type: "bnode", Value: strings.TrimPrefix(t.Value, "_:")}
	default:
		return sparqlJSONTerm{Type: "literal", Value: t.Value, Lang: t.Lang, Datatype: t.Datatype}
	}
}
