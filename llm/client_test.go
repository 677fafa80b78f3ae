package llm

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider is a minimal in-package provider for client tests.
type fakeProvider struct {
	available bool
	parseErr  error
}

func (f *fakeProvider) Name() string            { return "fake" }
func (f *fakeProvider) Model() string           { return "fake-model" }
func (f *fakeProvider) Available() bool         { return f.available }
func (f *fakeProvider) BuildURL(b string) string { return b }
func (f *fakeProvider) SetHeaders(*http.Request) {}

func (f *fakeProvider) BuildRequestBody(messages []Message, _ *float64, _ int) ([]byte, error) {
	return []byte(`{"ok":true}`), nil
}

func (f *fakeProvider) ParseResponse(body []byte) (*Response, error) {
	if f.parseErr != nil {
		return nil, f.parseErr
	}
	return &Response{Content: string(body), Model: "fake-model"}, nil
}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...ClientOption) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	base := []ClientOption{
		WithBaseURL(srv.URL),
		WithRetryConfig(RetryConfig{MaxAttempts: 2, BackoffBase: time.Millisecond}),
	}
	return NewClient(&fakeProvider{available: true}, append(base, opts...)...), srv
}

func TestClient_Complete_Success(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.Write([]byte("hello"))
	})

	resp, err := client.Complete(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Content)
}

func TestClient_Complete_NoMessages(t *testing.T) {
	client := NewClient(&fakeProvider{available: true})

	_, err := client.Complete(context.Background(), Request{})
	require.Error(t, err)
	// A caller bug is a plain error; the ProviderError kinds describe what
	// the provider did, and no provider was involved.
	assert.Empty(t, KindOf(err))
}

func TestClient_Complete_UnavailableFailsFast(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})
	client.provider = &fakeProvider{available: false}

	_, err := client.Complete(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.Error(t, err)
	assert.Equal(t, ErrUnavailable, KindOf(err))
	assert.Equal(t, int32(0), calls.Load(), "no network I/O before availability check")
}

func TestClient_Complete_RetriesTransientOnce(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("recovered"))
	})

	resp, err := client.Complete(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Content)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_Complete_TransientExhausted(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.Complete(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.Error(t, err)
	assert.Equal(t, ErrUnavailable, KindOf(err))
	assert.Equal(t, int32(2), calls.Load(), "bounded to a single retry")
}

func TestClient_Complete_FatalErrorsNotRetried(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantKind ErrorKind
	}{
		{name: "auth", status: http.StatusUnauthorized, wantKind: ErrAuth},
		{name: "forbidden", status: http.StatusForbidden, wantKind: ErrAuth},
		{name: "rate limited", status: http.StatusTooManyRequests, wantKind: ErrRateLimited},
		{name: "bad request", status: http.StatusBadRequest, wantKind: ErrMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			})

			_, err := client.Complete(context.Background(), Request{
				Messages: []Message{{Role: "user", Content: "hi"}},
			})
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, KindOf(err))
			assert.Equal(t, int32(1), calls.Load(), "fatal errors are not retried")
		})
	}
}

func TestClient_Complete_Timeout(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server can detect the client disconnect and
		// cancel the request context; otherwise Close deadlocks in cleanup.
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}, WithTimeout(50*time.Millisecond))

	start := time.Now()
	_, err := client.Complete(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.Error(t, err)
	assert.Equal(t, ErrTimeout, KindOf(err))
	assert.Less(t, time.Since(start), 5*time.Second, "timeout unblocks deterministically")
}

func TestClient_Complete_CallerCancel(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := client.Complete(ctx, Request{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_Complete_MalformedResponse(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	client.provider = &fakeProvider{available: true, parseErr: assert.AnError}

	_, err := client.Complete(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.Error(t, err)
	assert.Equal(t, ErrMalformedResponse, KindOf(err))
}
