package providers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/c360studio/sparqlpad/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIProvider_Name(t *testing.T) {
	p := NewOpenAI("key", "")
	assert.Equal(t, "openai", p.Name())
}

func TestOpenAIProvider_BuildURL(t *testing.T) {
	p := NewOpenAI("key", "")

	tests := []struct {
		name    string
		baseURL string
		want    string
	}{
		{
			name:    "empty uses default",
			baseURL: "",
			want:    "https://api.openai.com/v1/chat/completions",
		},
		{
			name:    "custom base URL",
			baseURL: "https://openrouter.ai/api/v1",
			want:    "https://openrouter.ai/api/v1/chat/completions",
		},
		{
			name:    "full endpoint passed through",
			baseURL: "https://api.openai.com/v1/chat/completions",
			want:    "https://api.openai.com/v1/chat/completions",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.BuildURL(tt.baseURL))
		})
	}
}

func TestOpenAIProvider_SetHeaders(t *testing.T) {
	p := NewOpenAI("test-api-key", "")

	req, _ := http.NewRequest("POST", "https://api.openai.com/v1/chat/completions", nil)
	p.SetHeaders(req)

	assert.Equal(t, "Bearer test-api-key", req.Header.Get("Authorization"))
}

func TestOpenAIProvider_BuildRequestBody(t *testing.T) {
	p := NewOpenAI("key", "gpt-test")
	temp := 0.1

	body, err := p.BuildRequestBody([]llm.Message{
		{Role: "system", Content: "You are a SPARQL assistant."},
		{Role: "user", Content: "List all classes"},
	}, &temp, 1500)
	require.NoError(t, err)

	var req openAIRequest
	require.NoError(t, json.Unmarshal(body, &req))

	assert.Equal(t, "gpt-test", req.Model)
	require.Len(t, req.Messages, 2, "system message stays inline")
	require.NotNil(t, req.Temperature)
	assert.InDelta(t, 0.1, *req.Temperature, 0.001)
	require.NotNil(t, req.MaxTokens)
	assert.Equal(t, 1500, *req.MaxTokens)
}

func TestOpenAIProvider_ParseResponse(t *testing.T) {
	p := NewOpenAI("key", "")

	t.Run("valid response", func(t *testing.T) {
		body := `{
			"model": "gpt-4",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "ASK { ?s ?p ?o }"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 5, "completion_tokens": 7, "total_tokens": 12}
		}`

		resp, err := p.ParseResponse([]byte(body))
		require.NoError(t, err)
		assert.Equal(t, "ASK { ?s ?p ?o }", resp.Content)
		assert.Equal(t, 12, resp.TokensUsed)
		assert.Equal(t, "stop", resp.FinishReason)
	})

	t.Run("no choices", func(t *testing.T) {
		_, err := p.ParseResponse([]byte(`{"choices": []}`))
		assert.Error(t, err)
	})
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		wantErr  bool
	}{
		{name: "anthropic", provider: "anthropic"},
		{name: "openai", provider: "openai"},
		{name: "unknown", provider: "cohere", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.provider, "key", "")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.provider, p.Name())
		})
	}
}
