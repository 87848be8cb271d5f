package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shaiso/Stepflow/internal/telemetry"
)

const (
	// DefaultBaseURL — роутер Hugging Face с OpenAI-совместимым API.
	DefaultBaseURL = "https://router.huggingface.co"

	// DefaultModel — модель по умолчанию.
	DefaultModel = "meta-llama/Llama-3.2-3B-Instruct"

	// DefaultMaxTokens — лимит токенов ответа по умолчанию.
	DefaultMaxTokens = 256

	// DefaultSystemPrompt — инструкция для произвольных запросов.
	DefaultSystemPrompt = "You are a helpful assistant."

	// SummarizeSystemPrompt — инструкция для суммаризации.
	SummarizeSystemPrompt = "You are a concise summarization assistant. " +
		"Given a long text, you produce a clear summary in 3–5 bullet points."

	completionsPath    = "/v1/chat/completions"
	defaultHTTPTimeout = 60 * time.Second
	maxResponseBody    = 4 * 1024 * 1024
)

// ErrMissingToken — токен API не настроен, запрос не отправляется.
var ErrMissingToken = errors.New("llm: api token is not configured")

// APIError — ответ chat completion API с неуспешным статусом.
type APIError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("llm api error: %s: %s", e.Status, e.Body)
}

// Completer — то, что нужно шагам от клиента.
type Completer interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Summarize(ctx context.Context, text string) (string, error)
}

// Config — параметры клиента.
type Config struct {
	BaseURL   string
	Model     string
	Token     string
	MaxTokens int
	Timeout   time.Duration
}

// Client — клиент chat completion API.
type Client struct {
	baseURL   string
	model     string
	token     string
	maxTokens int
	http      *http.Client
}

// NewClient создаёт клиент. Пустые поля Config заменяются значениями по умолчанию.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultHTTPTimeout
	}

	return &Client{
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		model:     cfg.Model,
		token:     cfg.Token,
		maxTokens: cfg.MaxTokens,
		http:      &http.Client{Timeout: cfg.Timeout},
	}
}

// HasToken сообщает, настроен ли токен.
func (c *Client) HasToken() bool {
	return c.token != ""
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model     string    `json:"model"`
	Messages  []message `json:"messages"`
	MaxTokens int       `json:"max_tokens"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Chat отправляет один запрос chat completion.
// system может быть пустым. maxTokens <= 0 — лимит клиента.
//
// Возвращает choices[0].message.content, а если его нет — сырое тело ответа.
func (c *Client) Chat(ctx context.Context, user, system string, maxTokens int) (string, error) {
	if c.token == "" {
		return "", ErrMissingToken
	}
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	msgs := make([]message, 0, 2)
	if system != "" {
		msgs = append(msgs, message{Role: "system", Content: system})
	}
	msgs = append(msgs, message{Role: "user", Content: user})

	payload, err := json.Marshal(completionRequest{
		Model:     c.model,
		Messages:  msgs,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+completionsPath, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	telemetry.LLMRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		telemetry.LLMRequestsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("llm request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		telemetry.LLMRequestsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		telemetry.LLMRequestsTotal.WithLabelValues("api_error").Inc()
		return "", &APIError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}

	telemetry.LLMRequestsTotal.WithLabelValues("ok").Inc()
	return extractContent(body), nil
}

// extractContent достаёт текст ответа модели.
func extractContent(body []byte) string {
	var parsed completionResponse
	if err := json.Unmarshal(body, &parsed); err == nil && len(parsed.Choices) > 0 {
		if content := parsed.Choices[0].Message.Content; content != nil {
			return *content
		}
	}
	return string(body)
}

// Generate отправляет произвольный prompt с инструкцией по умолчанию.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	return c.Chat(ctx, prompt, DefaultSystemPrompt, c.maxTokens)
}

// Summarize делает краткое изложение текста.
func (c *Client) Summarize(ctx context.Context, text string) (string, error) {
	return c.Chat(ctx, "Summarize the following text:\n\n"+text, SummarizeSystemPrompt, c.maxTokens)
}
