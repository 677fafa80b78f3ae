package providers

import (
	"fmt"

	"github.com/c360studio/sparqlpad/llm"
)

// New resolves a provider name to a concrete implementation. Selection
// happens once at configuration time; the returned provider is fixed for the
// lifetime of the client.
func New(name, apiKey, model string) (llm.Provider, error) {
	switch name {
	case "anthropic":
		return NewAnthropic(apiKey, model), nil
	case "openai":
		return NewOpenAI(apiKey, model), nil
	default:
		return nil, fmt.Errorf("unknown provider: %q (supported: anthropic, openai)", name)
	}
}
