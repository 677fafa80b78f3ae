package graph

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// ParseError reports a query the engine could not parse. Queries using
// SPARQL features outside the supported subset also surface as ParseError
// with a message naming the unsupported construct.
type ParseError struct {
	Msg string
}

func (e *ParseError) Error() string {
	return "sparql parse error: " + e.Msg
}

func parseErrorf(format string, args ...any) error {
	return &ParseError{Msg: fmt.Sprintf(format, args...)}
}

// QueryForm is the SPARQL query form.
type QueryForm string

// Supported query forms. CONSTRUCT and DESCRIBE are recognized but rejected.
const (
	FormSelect QueryForm = "SELECT"
	FormAsk    QueryForm = "ASK"
)

// Result is the outcome of executing a query.
type Result struct {
	Form     QueryForm
	Vars     []string
	Bindings []map[string]Term
	Bool     bool
}

const rdfTypeIRI = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"

// node is a triple pattern position: either a variable or a concrete term.
type node struct {
	isVar bool
	name  string // variable name without '?'
	term  Term
}

type pattern struct {
	s, p, o node
}

type query struct {
	form     QueryForm
	distinct bool
	star     bool
	vars     []string
	patterns []pattern
	limit    int // -1 means no limit
	offset   int
}

// Query parses and executes a SPARQL query against the current store
// contents. Grammar errors and unsupported constructs return *ParseError.
func (s *Store) Query(queryText string) (*Result, error) {
	q, err := parseQuery(queryText)
	if err != nil {
		return nil, err
	}

	triples := s.Triples()
	bindings := evalPatterns(triples, q.patterns)

	if q.form == FormAsk {
		return &Result{Form: FormAsk, Bool: len(bindings) > 0}, nil
	}

	vars := q.vars
	if q.star {
		vars = patternVars(q.patterns)
	}

	rows := project(bindings, vars)
	if q.distinct {
		rows = distinct(rows, vars)
	}
	if q.offset > 0 {
		if q.offset >= len(rows) {
			rows = nil
		} else {
			rows = rows[q.offset:]
		}
	}
	if q.limit >= 0 && q.limit < len(rows) {
		rows = rows[:q.limit]
	}

	return &Result{Form: FormSelect, Vars: vars, Bindings: rows}, nil
}

// evalPatterns joins the triple patterns left to right, threading variable
// bindings through each step.
func evalPatterns(triples []Triple, patterns []pattern) []map[string]Term {
	bindings := []map[string]Term{{}}

	for _, pat := range patterns {
		var next []map[string]Term
		for _, b := range bindings {
			for _, tr := range triples {
				if nb, ok := matchPattern(pat, tr, b); ok {
					next = append(next, nb)
				}
			}
		}
		bindings = next
		if len(bindings) == 0 {
			break
		}
	}
	return bindings
}

// matchPattern tests one triple against one pattern under existing bindings,
// returning extended bindings on success.
func matchPattern(pat pattern, tr Triple, bound map[string]Term) (map[string]Term, bool) {
	out := bound
	copied := false
	extend := func(n node, t Term) bool {
		if !n.isVar {
			return n.term.Equal(t)
		}
		if existing, ok := out[n.name]; ok {
			return existing.Equal(t)
		}
		if !copied {
			m := make(map[string]Term, len(out)+1)
			for k, v := range out {
				m[k] = v
			}
			out = m
			copied = true
		}
		out[n.name] = t
		return true
	}

	if !extend(pat.s, tr.Subj) || !extend(pat.p, tr.Pred) || !extend(pat.o, tr.Obj) {
		return nil, false
	}
	if !copied {
		// All positions were concrete or already bound.
		m := make(map[string]Term, len(out))
		for k, v := range out {
			m[k] = v
		}
		out = m
	}
	return out, true
}

func patternVars(patterns []pattern) []string {
	seen := make(map[string]bool)
	var vars []string
	for _, p := range patterns {
		for _, n := range []node{p.s, p.p, p.o} {
			if n.isVar && !seen[n.name] {
				seen[n.name] = true
				vars = append(vars, n.name)
			}
		}
	}
	return vars
}

func project(bindings []map[string]Term, vars []string) []map[string]Term {
	rows := make([]map[string]Term, 0, len(bindings))
	for _, b := range bindings {
		row := make(map[string]Term, len(vars))
		for _, v := range vars {
			if t, ok := b[v]; ok {
				row[v] = t
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func distinct(rows []map[string]Term, vars []string) []map[string]Term {
	seen := make(map[string]bool, len(rows))
	out := rows[:0]
	for _, row := range rows {
		var sb strings.Builder
		for _, v := range vars {
			t := row[v]
			fmt.Fprintf(&sb, "%d|%s|%s|%s\x00", t.Kind, t.Value, t.Lang, t.Datatype)
		}
		key := sb.String()
		if !seen[key] {
			seen[key] = true
			out = append(out, row)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Parsing
// ---------------------------------------------------------------------------

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokWord           // bare word: keywords, 'a', true/false
	tokVar            // ?name
	tokIRI            // <...>
	tokPName          // prefix:local or prefix:
	tokLiteral        // "..." with optional @lang or ^^datatype folded in
	tokNumber
	tokPunct // { } . ; , ( ) *
)

type token struct {
	kind tokenKind
	text string
	// literal annotations
	lang     string
	datatype string // raw: IRI or pname, resolved later
}

type lexer struct {
	input string
	pos   int
}

func (l *lexer) next() (token, error) {
	l.skipSpace()
	if l.pos >= len(l.input) {
		return token{kind: tokEOF}, nil
	}
	ch := l.input[l.pos]

	switch {
	case ch == '{' || ch == '}' || ch == '.' || ch == ';' || ch == ',' || ch == '(' || ch == ')' || ch == '*':
		l.pos++
		return token{kind: tokPunct, text: string(ch)}, nil

	case ch == '?' || ch == '$':
		start := l.pos + 1
		l.pos = start
		for l.pos < len(l.input) && isNameChar(rune(l.input[l.pos])) {
			l.pos++
		}
		if l.pos == start {
			return token{}, parseErrorf("empty variable name at offset %d", start)
		}
		return token{kind: tokVar, text: l.input[start:l.pos]}, nil

	case ch == '<':
		end := strings.IndexByte(l.input[l.pos:], '>')
		if end < 0 {
			return token{}, parseErrorf("unterminated IRI")
		}
		iri := l.input[l.pos+1 : l.pos+end]
		l.pos += end + 1
		return token{kind: tokIRI, text: iri}, nil

	case ch == '"' || ch == '\'':
		return l.lexLiteral(ch)

	case ch >= '0' && ch <= '9' || ch == '-' || ch == '+':
		start := l.pos
		l.pos++
		for l.pos < len(l.input) && (l.input[l.pos] >= '0' && l.input[l.pos] <= '9' || l.input[l.pos] == '.') {
			l.pos++
		}
		return token{kind: tokNumber, text: l.input[start:l.pos]}, nil

	default:
		start := l.pos
		for l.pos < len(l.input) && isNameChar(rune(l.input[l.pos])) {
			l.pos++
		}
		if l.pos == start {
			return token{}, parseErrorf("unexpected character %q at offset %d", ch, l.pos)
		}
		word := l.input[start:l.pos]
		// prefixed name: word ends with or is followed by ':'
		if l.pos < len(l.input) && l.input[l.pos] == ':' {
			l.pos++
			localStart := l.pos
			for l.pos < len(l.input) && isNameChar(rune(l.input[l.pos])) {
				l.pos++
			}
			return token{kind: tokPName, text: word + ":" + l.input[localStart:l.pos]}, nil
		}
		return token{kind: tokWord, text: word}, nil
	}
}

func (l *lexer) lexLiteral(quote byte) (token, error) {
	l.pos++
	var sb strings.Builder
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == '\\' && l.pos+1 < len(l.input) {
			next := l.input[l.pos+1]
			switch next {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case '\\', '"', '\'':
				sb.WriteByte(next)
			default:
				sb.WriteByte(next)
			}
			l.pos += 2
			continue
		}
		if ch == quote {
			l.pos++
			tok := token{kind: tokLiteral, text: sb.String()}
			// optional @lang
			if l.pos < len(l.input) && l.input[l.pos] == '@' {
				start := l.pos + 1
				l.pos = start
				for l.pos < len(l.input) && (isNameChar(rune(l.input[l.pos])) || l.input[l.pos] == '-') {
					l.pos++
				}
				tok.lang = l.input[start:l.pos]
			}
			// optional ^^datatype
			if strings.HasPrefix(l.input[l.pos:], "^^") {
				l.pos += 2
				dt, err := l.next()
				if err != nil {
					return token{}, err
				}
				if dt.kind != tokIRI && dt.kind != tokPName {
					return token{}, parseErrorf("expected datatype IRI after ^^")
				}
				tok.datatype = dtMarker(dt)
			}
			return tok, nil
		}
		sb.WriteByte(ch)
		l.pos++
	}
	return token{}, parseErrorf("unterminated string literal")
}

// dtMarker encodes whether the datatype still needs prefix expansion.
func dtMarker(t token) string {
	if t.kind == tokIRI {
		return "<" + t.text + ">"
	}
	return t.text
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == '#' {
			for l.pos < len(l.input) && l.input[l.pos] != '\n' {
				l.pos++
			}
			continue
		}
		if ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' {
			l.pos++
			continue
		}
		return
	}
}

func isNameChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || r == '.'
}

type parser struct {
	lex      *lexer
	tok      token
	prefixes map[string]string
}

func parseQuery(text string) (*query, error) {
	p := &parser{
		lex:      &lexer{input: text},
		prefixes: make(map[string]string),
	}
	if err := p.advance(); err != nil {
		return nil, err
	}

	if err := p.parsePrologue(); err != nil {
		return nil, err
	}

	q := &query{limit: -1}

	if p.tok.kind != tokWord {
		return nil, parseErrorf("expected query form, got %q", p.tok.text)
	}
	switch strings.ToUpper(p.tok.text) {
	case "SELECT":
		q.form = FormSelect
		if err := p.advance(); err != nil {
			return nil, err
		}
		if err := p.parseSelectClause(q); err != nil {
			return nil, err
		}
	case "ASK":
		q.form = FormAsk
		if err := p.advance(); err != nil {
			return nil, err
		}
	case "CONSTRUCT", "DESCRIBE":
		return nil, parseErrorf("%s queries are not supported by the embedded engine", strings.ToUpper(p.tok.text))
	default:
		return nil, parseErrorf("expected SELECT or ASK, got %q", p.tok.text)
	}

	// optional WHERE
	if p.tok.kind == tokWord && strings.EqualFold(p.tok.text, "WHERE") {
		if err := p.advance(); err != nil {
			return nil, err
		}
	}

	patterns, err := p.parseGroupGraphPattern()
	if err != nil {
		return nil, err
	}
	q.patterns = patterns

	if err := p.parseModifiers(q); err != nil {
		return nil, err
	}

	if p.tok.kind != tokEOF {
		return nil, parseErrorf("unexpected trailing input: %q", p.tok.text)
	}
	return q, nil
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) parsePrologue() error {
	for p.tok.kind == tokWord {
		switch strings.ToUpper(p.tok.text) {
		case "PREFIX":
			if err := p.advance(); err != nil {
				return err
			}
			if p.tok.kind != tokPName {
				return parseErrorf("expected prefix name after PREFIX")
			}
			name := strings.TrimSuffix(p.tok.text, ":")
			if idx := strings.IndexByte(p.tok.text, ':'); idx >= 0 {
				name = p.tok.text[:idx]
			}
			if err := p.advance(); err != nil {
				return err
			}
			if p.tok.kind != tokIRI {
				return parseErrorf("expected IRI after PREFIX %s:", name)
			}
			p.prefixes[name] = p.tok.text
			if err := p.advance(); err != nil {
				return err
			}
		case "BASE":
			if err := p.advance(); err != nil {
				return err
			}
			if p.tok.kind != tokIRI {
				return parseErrorf("expected IRI after BASE")
			}
			if err := p.advance(); err != nil {
				return err
			}
		default:
			return nil
		}
	}
	return nil
}

func (p *parser) parseSelectClause(q *query) error {
	if p.tok.kind == tokWord && strings.EqualFold(p.tok.text, "DISTINCT") {
		q.distinct = true
		if err := p.advance(); err != nil {
			return err
		}
	}

	if p.tok.kind == tokPunct && p.tok.text == "*" {
		q.star = true
		return p.advance()
	}

	for p.tok.kind == tokVar {
		q.vars = append(q.vars, p.tok.text)
		if err := p.advance(); err != nil {
			return err
		}
	}
	if len(q.vars) == 0 {
		return parseErrorf("SELECT requires * or at least one variable")
	}
	return nil
}

// unsupportedInPattern lists constructs the engine recognizes but rejects,
// so the error names the feature instead of a generic syntax complaint.
var unsupportedInPattern = map[string]bool{
	"FILTER": true, "OPTIONAL": true, "UNION": true, "GRAPH": true,
	"BIND": true, "MINUS": true, "SERVICE": true, "VALUES": true,
}

func (p *parser) parseGroupGraphPattern() ([]pattern, error) {
	if p.tok.kind != tokPunct || p.tok.text != "{" {
		return nil, parseErrorf("expected '{' to open graph pattern, got %q", p.tok.text)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}

	var patterns []pattern
	for {
		if p.tok.kind == tokPunct && p.tok.text == "}" {
			if err := p.advance(); err != nil {
				return nil, err
			}
			return patterns, nil
		}
		if p.tok.kind == tokEOF {
			return nil, parseErrorf("unexpected end of query inside graph pattern")
		}
		if p.tok.kind == tokWord && unsupportedInPattern[strings.ToUpper(p.tok.text)] {
			return nil, parseErrorf("%s is not supported by the embedded engine", strings.ToUpper(p.tok.text))
		}

		subj, err := p.parseNode(false)
		if err != nil {
			return nil, err
		}

		// predicate-object lists: p1 o1, o2; p2 o3 .
		for {
			pred, err := p.parseNode(true)
			if err != nil {
				return nil, err
			}
			for {
				obj, err := p.parseNode(false)
				if err != nil {
					return nil, err
				}
				patterns = append(patterns, pattern{s: subj, p: pred, o: obj})

				if p.tok.kind == tokPunct && p.tok.text == "," {
					if err := p.advance(); err != nil {
						return nil, err
					}
					continue
				}
				break
			}
			if p.tok.kind == tokPunct && p.tok.text == ";" {
				if err := p.advance(); err != nil {
					return nil, err
				}
				// allow trailing semicolon before '.' or '}'
				if p.tok.kind == tokPunct && (p.tok.text == "." || p.tok.text == "}") {
					break
				}
				continue
			}
			break
		}

		if p.tok.kind == tokPunct && p.tok.text == "." {
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
}

func (p *parser) parseNode(predicatePosition bool) (node, error) {
	switch p.tok.kind {
	case tokVar:
		n := node{isVar: true, name: p.tok.text}
		return n, p.advance()

	case tokIRI:
		n := node{term: Term{Kind: TermIRI, Value: p.tok.text}}
		return n, p.advance()

	case tokPName:
		iri, err := p.expandPName(p.tok.text)
		if err != nil {
			return node{}, err
		}
		n := node{term: Term{Kind: TermIRI, Value: iri}}
		return n, p.advance()

	case tokLiteral:
		if predicatePosition {
			return node{}, parseErrorf("literal cannot appear in predicate position")
		}
		term := Term{Kind: TermLiteral, Value: p.tok.text, Lang: p.tok.lang}
		if p.tok.datatype != "" {
			dt, err := p.resolveDatatype(p.tok.datatype)
			if err != nil {
				return node{}, err
			}
			term.Datatype = dt
		}
		return node{term: term}, p.advance()

	case tokNumber:
		if predicatePosition {
			return node{}, parseErrorf("number cannot appear in predicate position")
		}
		dt := "http://www.w3.org/2001/XMLSchema#integer"
		if strings.Contains(p.tok.text, ".") {
			dt = "http://www.w3.org/2001/XMLSchema#decimal"
		}
		n := node{term: Term{Kind: TermLiteral, Value: p.tok.text, Datatype: dt}}
		return n, p.advance()

	case tokWord:
		switch p.tok.text {
		case "a":
			n := node{term: Term{Kind: TermIRI, Value: rdfTypeIRI}}
			return n, p.advance()
		case "true", "false":
			n := node{term: Term{Kind: TermLiteral, Value: p.tok.text,
				Datatype: "http://www.w3.org/2001/XMLSchema#boolean"}}
			return n, p.advance()
		}
		return node{}, parseErrorf("unexpected token %q in triple pattern", p.tok.text)

	default:
		return node{}, parseErrorf("unexpected token %q in triple pattern", p.tok.text)
	}
}

func (p *parser) expandPName(pname string) (string, error) {
	idx := strings.IndexByte(pname, ':')
	prefix, local := pname[:idx], pname[idx+1:]
	ns, ok := p.prefixes[prefix]
	if !ok {
		if ns, ok = builtinPrefixes()[prefix]; !ok {
			return "", parseErrorf("undeclared prefix %q", prefix)
		}
	}
	return ns + local, nil
}

func (p *parser) resolveDatatype(marker string) (string, error) {
	if strings.HasPrefix(marker, "<") {
		return strings.Trim(marker, "<>"), nil
	}
	return p.expandPName(marker)
}

func (p *parser) parseModifiers(q *query) error {
	for p.tok.kind == tokWord {
		switch strings.ToUpper(p.tok.text) {
		case "LIMIT":
			if err := p.advance(); err != nil {
				return err
			}
			n, err := p.expectInt()
			if err != nil {
				return err
			}
			q.limit = n
		case "OFFSET":
			if err := p.advance(); err != nil {
				return err
			}
			n, err := p.expectInt()
			if err != nil {
				return err
			}
			q.offset = n
		case "ORDER", "GROUP", "HAVING":
			return parseErrorf("%s BY is not supported by the embedded engine", strings.ToUpper(p.tok.text))
		default:
			return parseErrorf("unexpected keyword %q after graph pattern", p.tok.text)
		}
	}
	return nil
}

func (p *parser) expectInt() (int, error) {
	if p.tok.kind != tokNumber {
		return 0, parseErrorf("expected integer, got %q", p.tok.text)
	}
	var n int
	if _, err := fmt.Sscanf(p.tok.text, "%d", &n); err != nil || n < 0 {
		return 0, parseErrorf("invalid integer %q", p.tok.text)
	}
	return n, p.advance()
}

// SortBindings orders rows deterministically for stable test output.
func SortBindings(rows []map[string]Term, vars []string) {
	sort.SliceStable(rows, func(i, j int) bool {
		for _, v := range vars {
			a, b := rows[i][v], rows[j][v]
			if a.Value != b.Value {
				return a.Value < b.Value
			}
		}
		return false
	})
}
