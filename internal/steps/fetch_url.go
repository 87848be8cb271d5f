package steps

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shaiso/Stepflow/internal/domain"
	"github.com/shaiso/Stepflow/internal/htmltext"
)

const (
	defaultFetchTimeout = 30 * time.Second
	maxFetchBody        = 10 * 1024 * 1024 // 10 MB

	// DefaultMaxChars — длина текста страницы по умолчанию.
	DefaultMaxChars = 6000
)

// FetchURLStep — загрузка страницы и извлечение текста.
//
// Конфигурация:
//
//	{
//	    "sourceField": "url",          // поле контекста с адресом
//	    "targetField": "pageContent",  // куда записать текст
//	    "url": "https://example.com",  // адрес, если в контексте его нет или он пуст
//	    "maxChars": 6000               // 0 — пустой текст
//	}
type FetchURLStep struct {
	client *http.Client
}

// NewFetchURLStep создаёт новый FetchURLStep. client может быть nil.
func NewFetchURLStep(client *http.Client) *FetchURLStep {
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}
	return &FetchURLStep{client: client}
}

// Type возвращает тип шага.
func (s *FetchURLStep) Type() domain.StepType {
	return domain.StepTypeFetchURL
}

// Execute загружает страницу.
func (s *FetchURLStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	sourceField := GetConfigStringDefault(req.Config, "sourceField", "url")
	targetField := GetConfigStringDefault(req.Config, "targetField", "pageContent")

	// Явный maxChars: 0 даёт пустой текст, отрицательное значение — значение по умолчанию.
	maxChars := DefaultMaxChars
	if v, ok := req.Config["maxChars"]; ok && v != nil {
		maxChars = GetConfigInt(req.Config, "maxChars")
		if maxChars < 0 {
			maxChars = DefaultMaxChars
		}
	}

	// Пустое или нестроковое значение в контексте заменяется config.url.
	url, _ := req.Context[sourceField].(string)
	if url == "" {
		url, _ = req.Config["url"].(string)
	}
	if url == "" {
		return nil, fmt.Errorf("%w: %s: URL field %q is missing or not a string",
			ErrInvalidInput, domain.StepTypeFetchURL, sourceField)
	}

	text, err := FetchText(ctx, s.client, url, maxChars)
	if err != nil {
		return nil, err
	}
	if maxChars == 0 {
		text = ""
	}

	return Output(targetField, text), nil
}

// FetchText загружает страницу по GET и возвращает видимый текст,
// обрезанный до maxChars символов.
func FetchText(ctx context.Context, client *http.Client, url string, maxChars int) (string, error) {
	if client == nil {
		client = http.DefaultClient
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", ErrFetchFailed, err)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		if cErr := cancelled(ctx); cErr != nil {
			return "", cErr
		}
		return "", fmt.Errorf("%w: %s: %v", ErrFetchFailed, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: %s: status %s", ErrFetchFailed, url, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBody))
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", ErrFetchFailed, err)
	}

	return htmltext.Truncate(htmltext.Strip(string(body)), maxChars), nil
}
