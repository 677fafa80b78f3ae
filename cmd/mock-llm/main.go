// Package main implements a mock completion server for developing sparqlpad
// without a provider API key. It serves OpenAI-compatible /v1/chat/completions
// responses, inspecting the prompt to answer generate, refine, and explain
// requests with plausible fenced SPARQL.
//
// Usage:
//
//	mock-llm -port 11434
//	OPENAI_API_KEY=dummy SPARQLPAD_AI_BASE_URL=http://localhost:11434/v1 \
//	    SPARQLPAD_AI_PROVIDER=openai sparqlpad data.ttl
//
// With -fixtures, .txt files in the given directory are served instead of the
// built-in responses, selected by substring match of the filename against the
// last user message.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"
)

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

const (
	generateResponse = "Here is a query for that:\n\n```sparql\nSELECT ?s ?p ?o WHERE { ?s ?p ?o } LIMIT 25\n```\n\nIt returns up to 25 triples from the graph."

	refineResponse = "Here is the modified query:\n\n```sparql\nSELECT ?s ?p ?o WHERE { ?s ?p ?o } LIMIT 5\n```\n\nI reduced the limit as requested."

	explainResponse = "This query matches every subject, predicate, and object in the graph and returns the bindings, bounded by the LIMIT clause."

	answerResponse = "SPARQL basic graph patterns match triples by unifying variables across patterns. Ask me to generate a query to see one in action."
)

type server struct {
	fixtures map[string]string // lowercased filename stem -> content
	calls    atomic.Int64
}

func newServer(fixtureDir string) (*server, error) {
	s := &server{fixtures: make(map[string]string)}
	if fixtureDir == "" {
		return s, nil
	}

	entries, err := os.ReadDir(fixtureDir)
	if err != nil {
		return nil, fmt.Errorf("read fixtures dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".txt") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(fixtureDir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read fixture %s: %w", e.Name(), err)
		}
		stem := strings.ToLower(strings.TrimSuffix(e.Name(), ".txt"))
		s.fixtures[stem] = string(data)
	}
	return s, nil
}

// respond picks the response content: a fixture whose name appears in the
// last user message, or a built-in keyed off the system prompt's task.
func (s *server) respond(req chatRequest) string {
	lastUser := ""
	system := ""
	for _, m := range req.Messages {
		switch m.Role {
		case "user":
			lastUser = m.Content
		case "system":
			system = m.Content
		}
	}

	lowered := strings.ToLower(lastUser)
	for stem, content := range s.fixtures {
		if strings.Contains(lowered, stem) {
			return content
		}
	}

	switch {
	case strings.Contains(system, "modify an existing SPARQL query"):
		return refineResponse
	case strings.Contains(system, "generate SPARQL queries"):
		return generateResponse
	case strings.Contains(system, "explain SPARQL queries"):
		return explainResponse
	default:
		return answerResponse
	}
}

func (s *server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request", http.StatusBadRequest)
		return
	}

	n := s.calls.Add(1)
	content := s.respond(req)
	log.Printf("call %d: model=%s messages=%d -> %d bytes", n, req.Model, len(req.Messages), len(content))

	resp := chatResponse{
		ID:      fmt.Sprintf("mock-%d", n),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []chatChoice{{
			Message:      chatMessage{Role: "assistant", Content: content},
			FinishReason: "stop",
		}},
		Usage: chatUsage{
			PromptTokens:     len(strings.Fields(content)),
			CompletionTokens: len(strings.Fields(content)),
			TotalTokens:      2 * len(strings.Fields(content)),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func (s *server) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", s.handleChat)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "ok, %d calls served\n", s.calls.Load())
	})
	return mux
}

func main() {
	port := flag.Int("port", 11434, "Listen port")
	fixtures := flag.String("fixtures", "", "Directory of .txt fixture responses (optional)")
	flag.Parse()

	srv, err := newServer(*fixtures)
	if err != nil {
		log.Fatalf("mock-llm: %v", err)
	}
	if len(srv.fixtures) > 0 {
		log.Printf("loaded %d fixtures from %s", len(srv.fixtures), *fixtures)
	}

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("mock-llm listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, srv.handler()))
}
