package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newOpenAITestProvider(t *testing.T, h http.HandlerFunc) *OpenAIProvider {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	p, err := NewOpenAIProvider("sk-test", srv.URL+"/v1", "gpt-4o-mini", "text-embedding-3-large")
	if err != nil {
		t.Fatalf("NewOpenAIProvider error = %v", err)
	}
	return p
}

func TestNewOpenAIProvider_RequiresKey(t *testing.T) {
	t.Parallel()

	if _, err := NewOpenAIProvider("", "", "m", "e"); err == nil {
		t.Error("expected error without API key")
	}
	if _, err := NewAzureProvider("key", "", "2024-12-01-preview", "gpt-4o-mini", "e"); err == nil {
		t.Error("expected error without Azure endpoint")
	}
}

func TestOpenAIProvider_ChatCompletion_Success(t *testing.T) {
	t.Parallel()

	var got map[string]any
	p := newOpenAITestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.Error(w, "unexpected path "+r.URL.Path, http.StatusNotFound)
			return
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			http.Error(w, "missing auth", http.StatusUnauthorized)
			return
		}
		json.NewDecoder(r.Body).Decode(&got) //nolint:errcheck
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"Sleep early."},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`)) //nolint:errcheck
	})

	resp, err := p.ChatCompletion(context.Background(), ChatRequest{
		Messages:    []Message{{Role: "system", Content: SystemPrompt}, {Role: "user", Content: "q"}},
		Temperature: 1,
		TopP:        1,
		MaxTokens:   4096,
	})
	if err != nil {
		t.Fatalf("ChatCompletion failed: %v", err)
	}
	if resp.Content != "Sleep early." || resp.StopReason != "stop" || resp.Tokens != 5 {
		t.Errorf("unexpected response: %+v", resp)
	}
	if got["model"] != "gpt-4o-mini" || got["max_tokens"] != float64(4096) {
		t.Errorf("request body = %v", got)
	}
	msgs, _ := got["messages"].([]any)
	if len(msgs) != 2 {
		t.Errorf("expected 2 messages, got %v", got["messages"])
	}
}

func TestOpenAIProvider_ChatCompletion_NoChoices(t *testing.T) {
	t.Parallel()

	p := newOpenAITestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c1","choices":[]}`)) //nolint:errcheck
	})

	_, err := p.ChatCompletion(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "q"}}})

	var f *ProviderFailure
	if !errors.As(err, &f) || f.Class != ProviderError || !f.Retryable {
		t.Errorf("expected retryable ProviderError, got %v", err)
	}
}

func TestOpenAIProvider_ChatCompletion_StatusClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status int
		class  FailureClass
	}{
		{http.StatusUnauthorized, AuthFailure},
		{http.StatusTooManyRequests, RateLimited},
		{http.StatusInternalServerError, ProviderError},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			t.Parallel()
			p := newOpenAITestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"error":{"message":"nope","type":"test_error"}}`)) //nolint:errcheck
			})

			_, err := p.ChatCompletion(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "q"}}})

			var f *ProviderFailure
			if !errors.As(err, &f) {
				t.Fatalf("expected *ProviderFailure, got %v", err)
			}
			if f.Class != tt.class || f.Status != tt.status {
				t.Errorf("failure = %+v; want class %s status %d", f, tt.class, tt.status)
			}
		})
	}
}

func TestOpenAIProvider_Embed_OrdersByIndex(t *testing.T) {
	t.Parallel()

	p := newOpenAITestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			http.Error(w, "unexpected path", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object":"list","data":[` + //nolint:errcheck
			`{"object":"embedding","index":1,"embedding":[0,1]},` +
			`{"object":"embedding","index":0,"embedding":[1,0]}],` +
			`"model":"text-embedding-3-large","usage":{"prompt_tokens":2,"total_tokens":2}}`))
	})

	resp, err := p.Embed(context.Background(), EmbedRequest{Texts: []string{"first", "second"}})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if resp.Embeddings[0][0] != 1 || resp.Embeddings[1][1] != 1 {
		t.Errorf("embeddings not ordered by index: %v", resp.Embeddings)
	}
}
