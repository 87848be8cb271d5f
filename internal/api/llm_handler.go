package api

import (
	"errors"
	"net/http"

	"github.com/shaiso/Stepflow/internal/llm"
	"github.com/shaiso/Stepflow/internal/steps"
)

// TestLLM отправляет произвольный prompt в chat completion API.
// POST /api/v1/test-llm
func (h *Handler) TestLLM(w http.ResponseWriter, r *http.Request) {
	var req TestLLMRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.completer.Generate(r.Context(), req.Prompt)
	if err != nil {
		h.llmError(w, err)
		return
	}

	Success(w, TestLLMResponse{Prompt: req.Prompt, Result: result})
}

// SummarizeURL загружает страницу и возвращает её краткое содержание.
// POST /api/v1/summarize-url
//
// Ошибка загрузки страницы — ошибка клиента (400), ошибка LLM — 502.
func (h *Handler) SummarizeURL(w http.ResponseWriter, r *http.Request) {
	var req SummarizeURLRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	text, err := steps.FetchText(r.Context(), h.httpClient, req.URL, steps.DefaultMaxChars)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	summary, err := h.completer.Summarize(r.Context(), text)
	if err != nil {
		h.llmError(w, err)
		return
	}

	Success(w, SummarizeURLResponse{URL: req.URL, Summary: summary})
}

// ListStepTypes возвращает поддерживаемые типы шагов.
// GET /api/v1/step-types
func (h *Handler) ListStepTypes(w http.ResponseWriter, _ *http.Request) {
	result := make([]StepTypeResponse, len(h.stepTypes))
	for i, t := range h.stepTypes {
		result[i] = StepTypeResponse{Type: string(t)}
	}
	List(w, result, len(result))
}

func (h *Handler) llmError(w http.ResponseWriter, err error) {
	if errors.Is(err, llm.ErrMissingToken) {
		Error(w, http.StatusServiceUnavailable, ErrCodeUpstream, err.Error())
		return
	}

	var apiErr *llm.APIError
	if errors.As(err, &apiErr) {
		h.logger.Warn("llm api error", "status", apiErr.StatusCode, "body", apiErr.Body)
	}
	BadGateway(w, err.Error())
}
