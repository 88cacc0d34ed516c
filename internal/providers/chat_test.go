package providers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func newTestChatClient(url string) *ChatClient {
	return NewChatClient(ChatConfig{
		BaseURL: url,
		APIKey:  "test-key",
		Retry:   fastPolicy(3),
	})
}

func TestChatClient_TranslateSuccess(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Fatalf("unexpected auth header: %q", got)
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("unmarshal body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"m","choices":[{"message":{"role":"assistant","content":"  你好，世界。 "}}],"usage":{"prompt_tokens":12,"completion_tokens":5}}`))
	}))
	defer server.Close()

	client := newTestChatClient(server.URL)
	got, err := client.Translate(context.Background(), "Hello, world.", "en", "zh")
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if got != "你好，世界。" {
		t.Fatalf("unexpected translation: %q", got)
	}

	if got, _ := payload["model"].(string); got != DefaultChatModel {
		t.Fatalf("expected default model, got %q", got)
	}
	if got, _ := payload["temperature"].(float64); got != 0.3 {
		t.Fatalf("expected temperature 0.3, got %v", got)
	}
	if got, _ := payload["max_tokens"].(float64); got != 4000 {
		t.Fatalf("expected max_tokens 4000, got %v", got)
	}
	if got, ok := payload["stream"].(bool); !ok || got {
		t.Fatalf("expected stream=false, got %v", payload["stream"])
	}
	msgs, _ := payload["messages"].([]any)
	if len(msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(msgs))
	}
	msg, _ := msgs[0].(map[string]any)
	if msg["role"] != "user" || !strings.Contains(msg["content"].(string), "Hello, world.") {
		t.Fatalf("unexpected message: %v", msg)
	}
}

func TestChatClient_ServerErrorsExhaustRetries(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "upstream down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := newTestChatClient(server.URL).Translate(context.Background(), "text", "en", "zh")
	if hits.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", hits.Load())
	}
	var exhausted *RetriesExhaustedError
	if !errors.As(err, &exhausted) || exhausted.Attempts != 3 {
		t.Fatalf("expected RetriesExhaustedError after 3 attempts, got %v", err)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected wrapped 503, got %v", err)
	}
}

func TestChatClient_ClientErrorSingleAttempt(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, `{"error":"bad key"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := newTestChatClient(server.URL).Translate(context.Background(), "text", "en", "zh")
	if hits.Load() != 1 {
		t.Fatalf("expected 1 attempt, got %d", hits.Load())
	}
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 StatusError, got %v", err)
	}
}

func TestChatClient_MalformedBodies(t *testing.T) {
	bodies := map[string]string{
		"not json":        `<html>oops</html>`,
		"no choices":      `{"choices":[]}`,
		"missing content": `{"choices":[{"message":{"role":"assistant"}}]}`,
		"wrong type":      `{"choices":[{"message":{"content":42}}]}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			var hits atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				_, _ = w.Write([]byte(body))
			}))
			defer server.Close()

			_, err := newTestChatClient(server.URL).Translate(context.Background(), "text", "en", "zh")
			if !errors.Is(err, ErrMalformedResponse) {
				t.Fatalf("expected ErrMalformedResponse, got %v", err)
			}
			if hits.Load() != 1 {
				t.Fatalf("expected 1 attempt, got %d", hits.Load())
			}
		})
	}
}

func TestChatClient_EmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"   "}}]}`))
	}))
	defer server.Close()

	_, err := newTestChatClient(server.URL).Translate(context.Background(), "text", "en", "zh")
	if !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("expected ErrEmptyContent, got %v", err)
	}
}

func TestChatClient_UnreachableHost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := newTestChatClient(url).Translate(context.Background(), "text", "en", "zh")
	var exhausted *RetriesExhaustedError
	if !errors.As(err, &exhausted) || exhausted.Attempts != 3 {
		t.Fatalf("expected exhaustion after 3 attempts, got %v", err)
	}
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
}

func TestTranslationPrompt(t *testing.T) {
	p := TranslationPrompt("Call me Ishmael.", "en", "zh")
	for _, want := range []string{"English", "Simplified Chinese", "Call me Ishmael."} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if LanguageName("xx") != "xx" {
		t.Error("unknown codes should pass through")
	}
}
