package server

import (
	"errors"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/c360studio/sparqlpad/graph"
)

const maxQueryBytes = 1 << 20

// handleSPARQL executes a query against the loaded graph. Queries arrive the
// three ways the SPARQL protocol allows: GET with a query parameter, POST
// with a form-encoded query field, or POST with an application/sparql-query
// body.
func (s *Server) handleSPARQL(w http.ResponseWriter, r *http.Request) {
	queryText, err := extractQuery(r)
	if err != nil {
		s.metrics.QueriesTotal.WithLabelValues("unknown", "bad_request").Inc()
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	start := time.Now()
	result, err := s.store.Query(queryText)
	s.metrics.QueryDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		var parseErr *graph.ParseError
		if errors.As(err, &parseErr) {
			s.metrics.QueriesTotal.WithLabelValues("unknown", "parse_error").Inc()
			writeError(w, http.StatusBadRequest, parseErr.Error())
			return
		}
		s.metrics.QueriesTotal.WithLabelValues("unknown", "error").Inc()
		s.logger.Error("Query execution failed", "error", err)
		writeError(w, http.StatusInternalServerError, "query execution failed")
		return
	}

	s.metrics.QueriesTotal.WithLabelValues(strings.ToLower(string(result.Form)), "ok").Inc()

	body, err := result.SPARQLJSON()
	if err != nil {
		s.logger.Error("Failed to serialize results", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to serialize results")
		return
	}

	w.Header().Set("Content-Type", "application/sparql-results+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func extractQuery(r *http.Request) (string, error) {
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query().Get("query")
		if q == "" {
			return "", errors.New("missing query parameter")
		}
		return q, nil

	case http.MethodPost:
		ct := r.Header.Get("Content-Type")
		if strings.HasPrefix(ct, "application/sparql-query") {
			body, err := io.ReadAll(io.LimitReader(r.Body, maxQueryBytes))
			if err != nil {
				return "", errors.New("failed to read request body")
			}
			if len(body) == 0 {
				return "", errors.New("empty query body")
			}
			return string(body), nil
		}

		if err := r.ParseForm(); err != nil {
			return "", errors.New("malformed form body")
		}
		q := r.PostForm.Get("query")
		if q == "" {
			q = r.URL.Query().Get("query")
		}
		if q == "" {
			return "", errors.New("missing query parameter")
		}
		return q, nil
	}

	return "", errors.New("unsupported method")
}

// handleExport serializes the loaded graph. The format parameter defaults to
// Turtle; a download filename is suggested via Content-Disposition.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := graph.ParseExportFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	body, err := s.store.Export(format)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	info := graph.ExportFormats[format]
	w.Header().Set("Content-Type", info.MIMEType+"; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="graph`+info.Extension+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

type infoResponse struct {
	TripleCount int               `json:"triple_count"`
	Sources     []string          `json:"sources"`
	Prefixes    map[string]string `json:"prefixes"`
	Classes     []string          `json:"classes,omitempty"`
	Properties  []string          `json:"properties,omitempty"`
}

// handleInfo summarizes the loaded dataset.
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	resp := infoResponse{
		TripleCount: s.store.Len(),
		Sources:     s.store.Sources(),
		Prefixes:    s.store.Prefixes(),
	}

	if snap, err := s.snapshots.Snapshot(); err == nil {
		resp.Classes = snap.Classes
		resp.Properties = snap.Properties
	}

	writeJSON(w, http.StatusOK, resp)
}

type prefixEntry struct {
	Prefix    string `json:"prefix"`
	Namespace string `json:"namespace"`
}

// handlePrefixes lists the declared namespace prefixes in sorted order,
// ready to paste into a query prologue.
func (s *Server) handlePrefixes(w http.ResponseWriter, r *http.Request) {
	prefixes := s.store.Prefixes()

	names := make([]string, 0, len(prefixes))
	for p := range prefixes {
		names = append(names, p)
	}
	sort.Strings(names)

	entries := make([]prefixEntry, 0, len(names))
	for _, p := range names {
		entries = append(entries, prefixEntry{Prefix: p, Namespace: prefixes[p]})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"prefixes":     entries,
		"declarations": s.store.PrefixDeclarations(),
	})
}

// handleHealth reports liveness plus the basic readiness facts a probe or a
// human wants in one place.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"triples":    s.store.Len(),
		"ai_enabled": s.engine.Enabled(),
	})
}
