package steps

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shaiso/Stepflow/internal/domain"
)

// fakeCompleter запоминает последний запрос и возвращает заданный ответ.
type fakeCompleter struct {
	result     string
	err        error
	lastPrompt string
	lastText   string
}

func (f *fakeCompleter) Generate(_ context.Context, prompt string) (string, error) {
	f.lastPrompt = prompt
	return f.result, f.err
}

func (f *fakeCompleter) Summarize(_ context.Context, text string) (string, error) {
	f.lastText = text
	return f.result, f.err
}

// Registry Tests

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	// Пустой реестр
	if r.Count() != 0 {
		t.Errorf("expected empty registry")
	}

	// Регистрация
	r.Register(NewEchoStep())
	if r.Count() != 1 {
		t.Errorf("expected 1 step, got %d", r.Count())
	}

	// Получение
	step, err := r.Get(domain.StepTypeEcho)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if step.Type() != domain.StepTypeEcho {
		t.Errorf("expected ECHO, got %s", step.Type())
	}

	// Несуществующий тип
	_, err = r.Get("unknown")
	if !errors.Is(err, ErrStepNotFound) {
		t.Errorf("expected ErrStepNotFound, got %v", err)
	}

	// Unregister
	r.Unregister(domain.StepTypeEcho)
	if r.Has(domain.StepTypeEcho) {
		t.Error("should not have ECHO after unregister")
	}
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry(&fakeCompleter{}, nil)

	for _, typ := range domain.StepTypes {
		if !r.Has(typ) {
			t.Errorf("default registry should have %s", typ)
		}
	}

	types := r.Types()
	if len(types) != len(domain.StepTypes) {
		t.Errorf("expected %d types, got %d", len(domain.StepTypes), len(types))
	}
	for i := 1; i < len(types); i++ {
		if types[i-1] > types[i] {
			t.Errorf("types should be sorted, got %v", types)
		}
	}
}

// FETCH_URL Tests

func TestFetchURLStep_FromContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		w.Write([]byte("<html><style>p{}</style><body><h1>Title</h1>\n<p>Some   text</p></body></html>"))
	}))
	defer server.Close()

	step := NewFetchURLStep(nil)
	req := NewRequest("fetch", nil, domain.Context{"url": server.URL}, 0)

	resp, err := step.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := resp.Outputs["pageContent"]; got != "Title Some text" {
		t.Errorf("expected stripped text, got %q", got)
	}
}

func TestFetchURLStep_ConfigFallbackAndLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<p>abcdefghij</p>"))
	}))
	defer server.Close()

	step := NewFetchURLStep(server.Client())
	req := NewRequest("fetch", map[string]any{
		"sourceField": "link",
		"targetField": "body",
		"url":         server.URL,
		"maxChars":    float64(4),
	}, domain.Context{}, 0)

	resp, err := step.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := resp.Outputs["body"]; got != "abcd" {
		t.Errorf("expected truncated text, got %q", got)
	}

	// пустой URL в контексте тоже заменяется config.url
	req = NewRequest("fetch", map[string]any{"url": server.URL}, domain.Context{"url": ""}, 0)
	resp, err = step.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("empty context url: unexpected error: %v", err)
	}
	if got := resp.Outputs["pageContent"]; got != "abcdefghij" {
		t.Errorf("expected page text from config url, got %q", got)
	}
}

func TestFetchURLStep_MaxChars(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<p>abcdefghij</p>"))
	}))
	defer server.Close()

	tests := []struct {
		name     string
		maxChars any
		want     string
	}{
		{name: "explicit zero", maxChars: float64(0), want: ""},
		{name: "negative uses default", maxChars: float64(-1), want: "abcdefghij"},
		{name: "null uses default", maxChars: nil, want: "abcdefghij"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := NewRequest("fetch", map[string]any{"maxChars": tt.maxChars}, domain.Context{"url": server.URL}, 0)
			resp, err := NewFetchURLStep(server.Client()).Execute(context.Background(), req)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := resp.Outputs["pageContent"]; got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestFetchURLStep_MissingURL(t *testing.T) {
	tests := []struct {
		name string
		ctx  domain.Context
	}{
		{name: "no field", ctx: domain.Context{}},
		{name: "not a string", ctx: domain.Context{"url": float64(1)}},
		{name: "empty string", ctx: domain.Context{"url": ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFetchURLStep(nil).Execute(context.Background(), NewRequest("fetch", nil, tt.ctx, 0))
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestFetchURLStep_BadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := NewFetchURLStep(nil).Execute(context.Background(),
		NewRequest("fetch", nil, domain.Context{"url": server.URL}, 0))
	if !errors.Is(err, ErrFetchFailed) {
		t.Errorf("expected ErrFetchFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("error should mention status, got %q", err.Error())
	}
}

func TestFetchURLStep_Cancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewFetchURLStep(nil).Execute(ctx, NewRequest("fetch", nil, domain.Context{"url": server.URL}, 0))
	if !errors.Is(err, ErrStepCancelled) {
		t.Errorf("expected ErrStepCancelled, got %v", err)
	}
}

// LLM_SUMMARIZE Tests

func TestSummarizeStep(t *testing.T) {
	fc := &fakeCompleter{result: "- short"}
	step := NewSummarizeStep(fc)

	resp, err := step.Execute(context.Background(),
		NewRequest("sum", nil, domain.Context{"pageContent": "long text"}, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fc.lastText != "long text" {
		t.Errorf("expected text to be sent, got %q", fc.lastText)
	}
	if resp.Outputs["summary"] != "- short" {
		t.Errorf("expected summary output, got %v", resp.Outputs)
	}
}

func TestSummarizeStep_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		ctx  domain.Context
	}{
		{name: "missing", ctx: domain.Context{}},
		{name: "empty", ctx: domain.Context{"pageContent": ""}},
		{name: "not a string", ctx: domain.Context{"pageContent": true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSummarizeStep(&fakeCompleter{}).Execute(context.Background(), NewRequest("sum", nil, tt.ctx, 0))
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestSummarizeStep_CompleterError(t *testing.T) {
	boom := errors.New("boom")
	step := NewSummarizeStep(&fakeCompleter{err: boom})

	_, err := step.Execute(context.Background(), NewRequest("sum", nil, domain.Context{"pageContent": "x"}, 0))
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped completer error, got %v", err)
	}
}

// LLM_GENERAL Tests

func TestGeneralPromptStep(t *testing.T) {
	fc := &fakeCompleter{result: "Bonjour"}
	step := NewGeneralPromptStep(fc)

	req := NewRequest("gen", map[string]any{
		"promptTemplate": "Translate: {{ text }} ({{missing}})",
		"outputField":    "fr",
	}, domain.Context{"text": "Hello"}, 0)

	resp, err := step.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fc.lastPrompt != "Translate: Hello ()" {
		t.Errorf("unexpected rendered prompt %q", fc.lastPrompt)
	}
	if resp.Outputs["fr"] != "Bonjour" {
		t.Errorf("expected output fr, got %v", resp.Outputs)
	}
}

func TestGeneralPromptStep_DefaultOutputField(t *testing.T) {
	step := NewGeneralPromptStep(&fakeCompleter{result: "ok"})

	resp, err := step.Execute(context.Background(),
		NewRequest("gen", map[string]any{"promptTemplate": "hi"}, nil, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Outputs["llmResult"] != "ok" {
		t.Errorf("expected llmResult, got %v", resp.Outputs)
	}
}

func TestGeneralPromptStep_MissingTemplate(t *testing.T) {
	tests := []struct {
		name   string
		config map[string]any
	}{
		{name: "missing", config: nil},
		{name: "not a string", config: map[string]any{"promptTemplate": float64(1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGeneralPromptStep(&fakeCompleter{}).Execute(context.Background(), NewRequest("gen", tt.config, nil, 0))
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

// TRANSFORM_TEXT Tests

func TestTransformTextStep(t *testing.T) {
	tests := []struct {
		name   string
		config map[string]any
		ctx    domain.Context
		field  string
		want   string
	}{
		{
			name:  "default uppercase in place",
			ctx:   domain.Context{"text": "hello"},
			field: "text",
			want:  "HELLO",
		},
		{
			name:   "lowercase to other field",
			config: map[string]any{"operation": "lowercase", "outputField": "low"},
			ctx:    domain.Context{"text": "HeLLo"},
			field:  "low",
			want:   "hello",
		},
		{
			name:   "trim",
			config: map[string]any{"inputField": "raw", "operation": "trim"},
			ctx:    domain.Context{"raw": "  padded \n"},
			field:  "raw",
			want:   "padded",
		},
		{
			name:   "unknown operation keeps value",
			config: map[string]any{"operation": "reverse"},
			ctx:    domain.Context{"text": "Same"},
			field:  "text",
			want:   "Same",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := NewTransformTextStep().Execute(context.Background(), NewRequest("tr", tt.config, tt.ctx, 0))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.Outputs[tt.field] != tt.want {
				t.Errorf("expected %q in %s, got %v", tt.want, tt.field, resp.Outputs)
			}
		})
	}
}

func TestTransformTextStep_NotString(t *testing.T) {
	_, err := NewTransformTextStep().Execute(context.Background(),
		NewRequest("tr", nil, domain.Context{"text": float64(5)}, 0))
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

// ECHO Tests

func TestEchoStep(t *testing.T) {
	tests := []struct {
		name   string
		config map[string]any
		field  string
		want   any
	}{
		{name: "defaults", field: "echo", want: DefaultEchoMessage},
		{name: "empty message", config: map[string]any{"message": ""}, field: "echo", want: DefaultEchoMessage},
		{name: "zero message", config: map[string]any{"message": float64(0)}, field: "echo", want: DefaultEchoMessage},
		{name: "custom", config: map[string]any{"message": "hi", "outputField": "out"}, field: "out", want: "hi"},
		{name: "number kept as is", config: map[string]any{"message": float64(42)}, field: "echo", want: float64(42)},
		{name: "bool kept as is", config: map[string]any{"message": true}, field: "echo", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := NewEchoStep().Execute(context.Background(), NewRequest("echo", tt.config, nil, 0))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.Outputs[tt.field] != tt.want {
				t.Errorf("expected %v, got %v", tt.want, resp.Outputs)
			}
		})
	}
}

// Config helpers

func TestGetConfigHelpers(t *testing.T) {
	cfg := map[string]any{
		"s":    "value",
		"n":    float64(42),
		"b":    true,
		"zero": "",
	}

	if GetConfigString(cfg, "s") != "value" {
		t.Error("GetConfigString failed")
	}
	if GetConfigStringDefault(cfg, "zero", "def") != "def" {
		t.Error("GetConfigStringDefault should replace empty value")
	}
	if GetConfigInt(cfg, "n") != 42 {
		t.Error("GetConfigInt failed")
	}
	if GetConfigInt(cfg, "s") != 0 {
		t.Error("GetConfigInt should return 0 for non-number")
	}
	if !GetConfigBool(cfg, "b", false) {
		t.Error("GetConfigBool failed")
	}
	if GetConfigBool(cfg, "missing", true) != true {
		t.Error("GetConfigBool should return default")
	}
}
