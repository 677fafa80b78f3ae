package graph

import (
	"fmt"
	"sort"
	"strings"
)

// ExportFormat specifies the output serialization format.
type ExportFormat string

const (
	// ExportTurtle produces Turtle (.ttl) output.
	ExportTurtle ExportFormat = "turtle"

	// ExportNTriples produces N-Triples (.nt) output.
	ExportNTriples ExportFormat = "ntriples"
)

// ExportFormatInfo provides metadata about an export format.
type ExportFormatInfo struct {
	// Name is the format identifier.
	Name ExportFormat

	// MIMEType is the standard MIME type.
	MIMEType string

	// Extension is the file extension (with dot).
	Extension string
}

// ExportFormats contains metadata for all supported export formats.
var ExportFormats = map[ExportFormat]ExportFormatInfo{
	ExportTurtle: {
		Name:      ExportTurtle,
		MIMEType:  "text/turtle",
		Extension: ".ttl",
	},
	ExportNTriples: {
		Name:      ExportNTriples,
		MIMEType:  "application/n-triples",
		Extension: ".nt",
	},
}

// ParseExportFormat resolves a user-supplied export format name.
func ParseExportFormat(name string) (ExportFormat, error) {
	switch strings.ToLower(name) {
	case "", "turtle", "ttl":
		return ExportTurtle, nil
	case "ntriples", "nt", "n-triples":
		return ExportNTriples, nil
	default:
		return "", fmt.Errorf("unknown export format: %q (supported: turtle, ntriples)", name)
	}
}

// Export serializes the store's triples in the given format.
func (s *Store) Export(format ExportFormat) (string, error) {
	switch format {
	case ExportTurtle:
		return s.exportTurtle(), nil
	case ExportNTriples:
		return s.exportNTriples(), nil
	default:
		return "", fmt.Errorf("unknown export format: %q", format)
	}
}

// exportTurtle groups triples by subject and compacts IRIs against the
// declared prefixes. Subjects are emitted in sorted order so repeated exports
// of the same graph are byte-identical.
func (s *Store) exportTurtle() string {
	triples := s.Triples()
	prefixes := s.Prefixes()

	var sb strings.Builder

	names := make([]string, 0, len(prefixes))
	for p := range prefixes {
		names = append(names, p)
	}
	sort.Strings(names)
	for _, p := range names {
		fmt.Fprintf(&sb, "@prefix %s: <%s> .\n", p, prefixes[p])
	}
	if len(names) > 0 {
		sb.WriteString("\n")
	}

	bySubject := make(map[string][]Triple)
	subjects := make([]string, 0)
	for _, tr := range triples {
		key := termNTriples(tr.Subj)
		if _, ok := bySubject[key]; !ok {
			subjects = append(subjects, key)
		}
		bySubject[key] = append(bySubject[key], tr)
	}
	sort.Strings(subjects)

	for i, subj := range subjects {
		group := bySubject[subj]
		sb.WriteString(compactTerm(group[0].Subj, prefixes))
		sb.WriteString("\n")

		for j, tr := range group {
			terminator := " ;"
			if j == len(group)-1 {
				terminator = " ."
			}

			pred := compactTerm(tr.Pred, prefixes)
			if tr.Pred.Kind == TermIRI && tr.Pred.Value == rdfTypeIRI {
				pred = "a"
			}
			fmt.Fprintf(&sb, "    %s %s%s\n", pred, turtleObject(tr.Obj, prefixes), terminator)
		}

		if i < len(subjects)-1 {
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

func (s *Store) exportNTriples() string {
	triples := s.Triples()

	lines := make([]string, 0, len(triples))
	for _, tr := range triples {
		lines = append(lines, fmt.Sprintf("%s %s %s .",
			termNTriples(tr.Subj), termNTriples(tr.Pred), termNTriples(tr.Obj)))
	}
	sort.Strings(lines)

	var sb strings.Builder
	for _, line := range lines {
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String()
}

// compactTerm renders an IRI as a prefixed name when a declared namespace
// matches, falling back to the full <IRI> form. The local part must be a
// plain name; IRIs with slashes or hashes past the namespace stay absolute.
func compactTerm(t Term, prefixes map[string]string) string {
	if t.Kind != TermIRI {
		return termNTriples(t)
	}

	best := ""
	bestPrefix := ""
	for p, ns := range prefixes {
		if strings.HasPrefix(t.Value, ns) && len(ns) > len(best) {
			best = ns
			bestPrefix = p
		}
	}
	if best != "" {
		local := t.Value[len(best):]
		if local != "" && !strings.ContainsAny(local, "/#:") {
			return bestPrefix + ":" + local
		}
	}
	return "<" + t.Value + ">"
}

func turtleObject(t Term, prefixes map[string]string) string {
	if t.Kind == TermIRI {
		return compactTerm(t, prefixes)
	}
	return termNTriples(t)
}

// termNTriples renders a term in N-Triples syntax.
func termNTriples(t Term) string {
	switch t.Kind {
	case TermBlank:
		return "_:" + t.Value
	case TermLiteral:
		lit := `"` + escapeLiteral(t.Value) + `"`
		if t.Lang != "" {
			return lit + "@" + t.Lang
		}
		if t.Datatype != "" && t.Datatype != "http://www.w3.org/2001/XMLSchema#string" {
			return lit + "^^<" + t.Datatype + ">"
		}
		return lit
	default:
		return "<" + t.Value + ">"
	}
}

var literalEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

func escapeLiteral(s string) string {
	return literalEscaper.Replace(s)
}
