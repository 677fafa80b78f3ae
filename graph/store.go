// Package graph provides an in-memory RDF triple store with file loading,
// format auto-detection, and a bounded SPARQL query engine.
package graph

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/knakk/rdf"
)

// TermKind distinguishes the three RDF term types.
type TermKind int

// Term kinds.
const (
	TermIRI TermKind = iota
	TermLiteral
	TermBlank
)

// Term is an RDF term. Lang and Datatype are only meaningful for literals.
type Term struct {
	Kind     TermKind
	Value    string
	Lang     string
	Datatype string
}

// IsZero reports whether the term is the zero value.
func (t Term) IsZero() bool {
	return t.Value == "" && t.Kind == TermIRI && t.Lang == "" && t.Datatype == ""
}

// Equal reports whether two terms are identical.
func (t Term) Equal(o Term) bool {
	return t.Kind == o.Kind && t.Value == o.Value && t.Lang == o.Lang && t.Datatype == o.Datatype
}

// Triple is one subject-predicate-object statement.
type Triple struct {
	Subj Term
	Pred Term
	Obj  Term
}

// Store is an in-memory triple store loaded from RDF files.
// Reads far outnumber writes; writes only happen on load and reload.
type Store struct {
	mu       sync.RWMutex
	triples  []Triple
	prefixes map[string]string // prefix -> namespace IRI
	sources  []source
	logger   *slog.Logger
}

type source struct {
	path   string
	format rdf.Format
}

// NewStore creates an empty store.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		prefixes: make(map[string]string),
		logger:   logger,
	}
}

// DetectFormat guesses the RDF serialization from the file extension.
// Unknown extensions default to Turtle, matching common usage.
func DetectFormat(path string) rdf.Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ttl", ".turtle":
		return rdf.Turtle
	case ".nt":
		return rdf.NTriples
	case ".nq":
		return rdf.NQuads
	case ".rdf", ".xml", ".owl":
		return rdf.RDFXML
	default:
		return rdf.Turtle
	}
}

// ParseFormat resolves a user-supplied format name. Empty means auto-detect.
func ParseFormat(name string) (rdf.Format, error) {
	switch strings.ToLower(name) {
	case "turtle", "ttl":
		return rdf.Turtle, nil
	case "ntriples", "nt", "n-triples":
		return rdf.NTriples, nil
	case "nquads", "nq":
		return rdf.NQuads, nil
	case "xml", "rdfxml", "rdf/xml":
		return rdf.RDFXML, nil
	default:
		return rdf.Turtle, fmt.Errorf("unknown RDF format: %q (supported: turtle, ntriples, nquads, xml)", name)
	}
}

// Load reads the given files into the store, replacing any previous content.
// forcedFormat, when non-empty, overrides extension-based detection for all
// files. A file that fails to parse is logged and skipped; Load only fails
// when no file could be loaded at all.
func (s *Store) Load(paths []string, forcedFormat string) error {
	if len(paths) == 0 {
		return fmt.Errorf("no RDF files provided")
	}

	var forced *rdf.Format
	if forcedFormat != "" {
		f, err := ParseFormat(forcedFormat)
		if err != nil {
			return err
		}
		forced = &f
	}

	sources := make([]source, 0, len(paths))
	for _, p := range paths {
		format := DetectFormat(p)
		if forced != nil {
			format = *forced
		}
		sources = append(sources, source{path: p, format: format})
	}

	s.mu.Lock()
	s.sources = sources
	s.mu.Unlock()

	return s.Reload()
}

// Sources returns the paths of the configured source files.
func (s *Store) Sources() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	paths := make([]string, 0, len(s.sources))
	for _, src := range s.sources {
		paths = append(paths, src.path)
	}
	return paths
}

// Reload re-reads all configured source files from disk.
func (s *Store) Reload() error {
	s.mu.RLock()
	sources := append([]source(nil), s.sources...)
	s.mu.RUnlock()

	var triples []Triple
	prefixes := builtinPrefixes()
	loaded := 0

	for _, src := range sources {
		n, err := loadFile(src, &triples, prefixes)
		if err != nil {
			s.logger.Error("Failed to load RDF file", "path", src.path, "error", err)
			continue
		}
		s.logger.Info("Loaded RDF file", "path", src.path, "triples", n)
		loaded++
	}

	if loaded == 0 {
		return fmt.Errorf("no RDF files could be loaded")
	}

	s.mu.Lock()
	s.triples = triples
	s.prefixes = prefixes
	s.mu.Unlock()

	return nil
}

// loadFile parses one file, appending triples and discovered prefixes.
// A parse error discards the file entirely so a half-read file never leaks
// partial triples into the store.
func loadFile(src source, triples *[]Triple, prefixes map[string]string) (int, error) {
	f, err := os.Open(src.path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	// Prefix declarations are not exposed by the decoder, so scan for them
	// separately before decoding.
	filePrefixes := make(map[string]string)
	if src.format == rdf.Turtle {
		if err := scanPrefixes(f, filePrefixes); err != nil {
			return 0, err
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return 0, err
		}
	}

	dec := rdf.NewTripleDecoder(f, src.format)
	var fileTriples []Triple
	for {
		tr, err := dec.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("parse %s: %w", filepath.Base(src.path), err)
		}
		fileTriples = append(fileTriples, fromRDF(tr))
	}

	*triples = append(*triples, fileTriples...)
	for k, v := range filePrefixes {
		prefixes[k] = v
	}
	return len(fileTriples), nil
}

var prefixLine = regexp.MustCompile(`(?i)^\s*@?prefix\s+([A-Za-z][\w.-]*)?:\s*<([^>]*)>`)

// scanPrefixes extracts @prefix / PREFIX declarations from a Turtle document.
func scanPrefixes(r io.Reader, prefixes map[string]string) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if m := prefixLine.FindStringSubmatch(scanner.Text()); m != nil && m[1] != "" {
			prefixes[m[1]] = m[2]
		}
	}
	return scanner.Err()
}

// builtinPrefixes returns the well-known namespace bindings every snapshot
// carries regardless of what the input files declare.
func builtinPrefixes() map[string]string {
	return map[string]string{
		"rdf":  "http://www.w3.org/1999/02/22-rdf-syntax-ns#",
		"rdfs": "http://www.w3.org/2000/01/rdf-schema#",
		"owl":  "http://www.w3.org/2002/07/owl#",
		"xsd":  "http://www.w3.org/2001/XMLSchema#",
	}
}

// fromRDF converts a decoded triple into the store representation.
func fromRDF(tr rdf.Triple) Triple {
	return Triple{
		Subj: fromRDFTerm(tr.Subj),
		Pred: fromRDFTerm(tr.Pred),
		Obj:  fromRDFTerm(tr.Obj),
	}
}

func fromRDFTerm(t rdf.Term) Term {
	switch t.Type() {
	case rdf.TermIRI:
		return Term{Kind: TermIRI, Value: t.String()}
	case rdf.TermBlank:
		return Term{Kind: TermBlank, Value: t.String()}
	default:
		term := Term{Kind: TermLiteral, Value: t.String()}
		if lit, ok := t.(rdf.Literal); ok {
			term.Lang = lit.Lang()
			if dt := lit.DataType.String(); dt != "" && lit.Lang() == "" {
				term.Datatype = dt
			}
		}
		return term
	}
}

// Add appends a triple directly. Intended for tests and programmatic setup.
func (s *Store) Add(t Triple) {
	s.mu.Lock()
	s.triples = append(s.triples, t)
	s.mu.Unlock()
}

// AddPrefix registers a prefix binding directly.
func (s *Store) AddPrefix(prefix, namespace string) {
	s.mu.Lock()
	if s.prefixes == nil {
		s.prefixes = make(map[string]string)
	}
	s.prefixes[prefix] = namespace
	s.mu.Unlock()
}

// Len returns the number of triples in the store.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.triples)
}

// Prefixes returns a copy of the prefix-to-namespace map.
func (s *Store) Prefixes() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.prefixes))
	for k, v := range s.prefixes {
		out[k] = v
	}
	return out
}

// PrefixDeclarations returns SPARQL PREFIX lines sorted by prefix.
func (s *Store) PrefixDeclarations() []string {
	prefixes := s.Prefixes()
	keys := make([]string, 0, len(prefixes))
	for k := range prefixes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	decls := make([]string, 0, len(keys))
	for _, k := range keys {
		decls = append(decls, fmt.Sprintf("PREFIX %s: <%s>", k, prefixes[k]))
	}
	return decls
}

// Triples returns a snapshot copy of all triples.
func (s *Store) Triples() []Triple {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Triple(nil), s.triples...)
}
