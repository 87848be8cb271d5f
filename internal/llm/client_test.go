package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestChat_MissingToken(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	_, err := c.Generate(context.Background(), "hi")
	if !errors.Is(err, ErrMissingToken) {
		t.Errorf("expected ErrMissingToken, got %v", err)
	}
	if called {
		t.Error("request should not be sent without token")
	}
}

func TestChat_Request(t *testing.T) {
	var got completionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer secret" {
			t.Errorf("unexpected Authorization header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"- point one"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL + "/", Token: "secret"})
	result, err := c.Summarize(context.Background(), "long text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "- point one" {
		t.Errorf("expected content, got %q", result)
	}

	if got.Model != DefaultModel {
		t.Errorf("expected model %s, got %s", DefaultModel, got.Model)
	}
	if got.MaxTokens != DefaultMaxTokens {
		t.Errorf("expected max_tokens %d, got %d", DefaultMaxTokens, got.MaxTokens)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got.Messages))
	}
	if got.Messages[0].Role != "system" || got.Messages[0].Content != SummarizeSystemPrompt {
		t.Errorf("unexpected system message %+v", got.Messages[0])
	}
	if got.Messages[1].Content != "Summarize the following text:\n\nlong text" {
		t.Errorf("unexpected user message %q", got.Messages[1].Content)
	}
}

func TestChat_NoSystemMessage(t *testing.T) {
	var got completionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Token: "t"})
	if _, err := c.Chat(context.Background(), "hello", "", 32); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != "user" {
		t.Errorf("expected single user message, got %+v", got.Messages)
	}
	if got.MaxTokens != 32 {
		t.Errorf("expected max_tokens 32, got %d", got.MaxTokens)
	}
}

func TestChat_FallbackToRawBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "no choices", body: `{"choices":[]}`},
		{name: "no content", body: `{"choices":[{"message":{}}]}`},
		{name: "not json", body: `plain answer`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient(Config{BaseURL: srv.URL, Token: "t"})
			result, err := c.Generate(context.Background(), "x")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.body {
				t.Errorf("expected raw body %q, got %q", tt.body, result)
			}
		})
	}
}

func TestChat_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"bad token"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Token: "t"})
	_, err := c.Generate(context.Background(), "x")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", apiErr.StatusCode)
	}
	if !strings.Contains(err.Error(), "bad token") {
		t.Errorf("error should include raw body, got %q", err.Error())
	}
}

func TestChat_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(Config{BaseURL: srv.URL, Token: "t"})
	if _, err := c.Generate(ctx, "x"); err == nil {
		t.Error("expected error for cancelled context")
	}
}
