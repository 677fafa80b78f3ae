// Package testutil provides test utilities for the llm package.
// It includes mock implementations for testing completion interactions.
package testutil

import (
	"context"
	"sync"

	"github.com/c360studio/sparqlpad/llm"
)

// MockCompleter is a thread-safe mock completion client for testing.
// It captures the requests passed to Complete() and returns configured
// responses in sequence.
//
// Usage:
//
//	// Single response mock
//	mock := &MockCompleter{
//	    Responses: []*llm.Response{
//	        {Content: "Here is the query", Model: "test-model"},
//	    },
//	}
//
//	// Error response
//	mock := &MockCompleter{
//	    Err: llm.NewProviderError(llm.ErrTimeout, errors.New("deadline exceeded")),
//	}
type MockCompleter struct {
	mu            sync.Mutex
	Responses     []*llm.Response // Responses to return in sequence
	Err           error           // Error to return (takes precedence over Responses)
	Delay         func(ctx context.Context) error
	requests      []llm.Request
	callCount     int
	responseIndex int
}

// Complete implements llm.Completer.
func (m *MockCompleter) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.callCount++
	delay := m.Delay
	m.mu.Unlock()

	// Delay simulates a slow provider; it must run outside the lock so
	// concurrent callers do not serialize on the mock itself.
	if delay != nil {
		if err := delay(ctx); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}

	if m.responseIndex < len(m.Responses) {
		resp := m.Responses[m.responseIndex]
		m.responseIndex++
		return resp, nil
	}

	// Default response if no responses configured
	return &llm.Response{Content: "", Model: "test-model"}, nil
}

// LastRequest returns the most recent request passed to Complete().
func (m *MockCompleter) LastRequest() (llm.Request, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return llm.Request{}, false
	}
	return m.requests[len(m.requests)-1], true
}

// CallCount returns the number of times Complete() was called.
func (m *MockCompleter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Reset resets the mock's state (call count and response index).
func (m *MockCompleter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.responseIndex = 0
	m.requests = nil
}
