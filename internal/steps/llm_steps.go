package steps

import (
	"context"
	"fmt"

	"github.com/shaiso/Stepflow/internal/domain"
	"github.com/shaiso/Stepflow/internal/engine"
	"github.com/shaiso/Stepflow/internal/llm"
)

// SummarizeStep — краткое изложение текста из контекста.
//
// Конфигурация:
//
//	{
//	    "inputField": "pageContent",
//	    "outputField": "summary"
//	}
type SummarizeStep struct {
	completer llm.Completer
}

// NewSummarizeStep создаёт новый SummarizeStep.
func NewSummarizeStep(completer llm.Completer) *SummarizeStep {
	return &SummarizeStep{completer: completer}
}

// Type возвращает тип шага.
func (s *SummarizeStep) Type() domain.StepType {
	return domain.StepTypeSummarize
}

// Execute вызывает модель с инструкцией суммаризации.
func (s *SummarizeStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	inputField := GetConfigStringDefault(req.Config, "inputField", "pageContent")
	outputField := GetConfigStringDefault(req.Config, "outputField", "summary")

	text, ok := req.Context.String(inputField)
	if !ok || text == "" {
		return nil, fmt.Errorf("%w: %s: input field %q is empty or not a string",
			ErrInvalidInput, domain.StepTypeSummarize, inputField)
	}

	summary, err := s.completer.Summarize(ctx, text)
	if err != nil {
		if cErr := cancelled(ctx); cErr != nil {
			return nil, cErr
		}
		return nil, fmt.Errorf("%s: %w", domain.StepTypeSummarize, err)
	}

	return Output(outputField, summary), nil
}

// GeneralPromptStep — произвольный запрос к модели по шаблону.
//
// Конфигурация:
//
//	{
//	    "promptTemplate": "Translate to French: {{ text }}",
//	    "outputField": "llmResult"
//	}
type GeneralPromptStep struct {
	completer llm.Completer
}

// NewGeneralPromptStep создаёт новый GeneralPromptStep.
func NewGeneralPromptStep(completer llm.Completer) *GeneralPromptStep {
	return &GeneralPromptStep{completer: completer}
}

// Type возвращает тип шага.
func (s *GeneralPromptStep) Type() domain.StepType {
	return domain.StepTypeGeneralPrompt
}

// Execute рендерит шаблон по контексту и отправляет его модели.
func (s *GeneralPromptStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	tmpl, ok := req.Config["promptTemplate"].(string)
	if !ok || tmpl == "" {
		return nil, fmt.Errorf("%w: %s: promptTemplate is required",
			ErrInvalidConfig, domain.StepTypeGeneralPrompt)
	}
	outputField := GetConfigStringDefault(req.Config, "outputField", "llmResult")

	result, err := s.completer.Generate(ctx, engine.Render(tmpl, req.Context))
	if err != nil {
		if cErr := cancelled(ctx); cErr != nil {
			return nil, cErr
		}
		return nil, fmt.Errorf("%s: %w", domain.StepTypeGeneralPrompt, err)
	}

	return Output(outputField, result), nil
}
