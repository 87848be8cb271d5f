package steps

import (
	"context"
	"errors"
	"time"

	"github.com/shaiso/Stepflow/internal/domain"
)

// Ошибки шагов.
var (
	// ErrStepNotFound — тип шага не найден в реестре.
	ErrStepNotFound = errors.New("step type not found")

	// ErrInvalidConfig — невалидная конфигурация шага.
	ErrInvalidConfig = errors.New("invalid step config")

	// ErrInvalidInput — во входном поле контекста нет нужного значения.
	ErrInvalidInput = errors.New("invalid step input")

	// ErrFetchFailed — не удалось загрузить страницу.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrStepCancelled — выполнение шага отменено.
	ErrStepCancelled = errors.New("step execution cancelled")
)

// Step — интерфейс для типов шагов.
//
// Каждый тип шага (FETCH_URL, LLM_SUMMARIZE, LLM_GENERAL,
// TRANSFORM_TEXT, ECHO) реализует этот интерфейс.
type Step interface {
	// Type возвращает тип шага.
	Type() domain.StepType

	// Execute выполняет шаг и возвращает поля, которые нужно записать в контекст.
	// Шаг не должен изменять req.Context.
	Execute(ctx context.Context, req *Request) (*Response, error)
}

// Request — входные данные для выполнения шага.
type Request struct {
	// StepID — идентификатор шага.
	StepID string

	// Config — конфигурация шага.
	Config map[string]any

	// Context — контекст, полученный от предыдущего шага. Только чтение.
	Context domain.Context

	// Timeout — таймаут выполнения шага.
	// Если 0, используется таймаут по умолчанию.
	Timeout time.Duration
}

// Response — результат выполнения шага.
type Response struct {
	// Outputs — поля, которые раннер записывает в копию контекста.
	Outputs map[string]any
}

// NewRequest создаёт новый Request.
func NewRequest(stepID string, config map[string]any, stepCtx domain.Context, timeout time.Duration) *Request {
	if config == nil {
		config = make(map[string]any)
	}
	if stepCtx == nil {
		stepCtx = domain.Context{}
	}
	return &Request{
		StepID:  stepID,
		Config:  config,
		Context: stepCtx,
		Timeout: timeout,
	}
}

// NewResponse создаёт новый Response с outputs.
func NewResponse(outputs map[string]any) *Response {
	if outputs == nil {
		outputs = make(map[string]any)
	}
	return &Response{
		Outputs: outputs,
	}
}

// Output — ответ из одного поля.
func Output(field string, value any) *Response {
	return &Response{Outputs: map[string]any{field: value}}
}

// GetConfigString извлекает строковое значение из конфига.
func GetConfigString(config map[string]any, key string) string {
	if v, ok := config[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetConfigStringDefault — как GetConfigString, но пустое значение
// заменяется на defaultVal.
func GetConfigStringDefault(config map[string]any, key, defaultVal string) string {
	if s := GetConfigString(config, key); s != "" {
		return s
	}
	return defaultVal
}

// GetConfigInt извлекает числовое значение из конфига.
func GetConfigInt(config map[string]any, key string) int {
	if v, ok := config[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case int64:
			return int(n)
		case float64:
			return int(n)
		}
	}
	return 0
}

// GetConfigBool извлекает булево значение из конфига.
func GetConfigBool(config map[string]any, key string, defaultVal bool) bool {
	if v, ok := config[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return defaultVal
}

// cancelled оборачивает ошибку отмены контекста.
func cancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errors.Join(ErrStepCancelled, err)
	}
	return nil
}
