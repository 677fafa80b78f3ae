package llm

import "net/http"

// Provider defines the interface for completion provider implementations.
// Credentials are injected at construction, never read from ambient state,
// so providers are independently testable with fake keys.
type Provider interface {
	// Name returns the provider identifier (e.g., "anthropic", "openai").
	Name() string

	// Model returns the configured model identifier.
	Model() string

	// Available reports whether the provider holds a usable credential.
	// The client fails fast with ErrUnavailable when this is false.
	Available() bool

	// BuildURL constructs the full API endpoint URL.
	BuildURL(baseURL string) string

	// SetHeaders adds provider-specific headers to the request.
	SetHeaders(req *http.Request)

	// BuildRequestBody creates the JSON request body for the provider.
	// temperature is nil to use provider default, or a pointer to explicit value.
	BuildRequestBody(messages []Message, temperature *float64, maxTokens int) ([]byte, error)

	// ParseResponse extracts the response from provider-specific JSON.
	ParseResponse(body []byte) (*Response, error)
}
