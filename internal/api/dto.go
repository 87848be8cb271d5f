package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/shaiso/Stepflow/internal/domain"
)

// maxBodyBytes ограничивает размер тела запроса.
const maxBodyBytes = 1 << 20

// Workflow DTOs

// StepRequest — шаг в запросе на создание/обновление workflow.
type StepRequest struct {
	ID     string         `json:"id" validate:"required"`
	Type   string         `json:"type" validate:"required"`
	Order  int            `json:"order"`
	Config map[string]any `json:"config,omitempty"`
}

// CreateWorkflowRequest — запрос на создание workflow.
type CreateWorkflowRequest struct {
	Name        string        `json:"name" validate:"required,max=200"`
	Description string        `json:"description,omitempty" validate:"max=2000"`
	Trigger     string        `json:"trigger,omitempty" validate:"omitempty,oneof=manual schedule"`
	Steps       []StepRequest `json:"steps" validate:"dive"`
}

// UpdateWorkflowRequest — запрос на обновление workflow.
// Отсутствующие поля не меняются; steps, если переданы, заменяются целиком.
type UpdateWorkflowRequest struct {
	Name        *string        `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Description *string        `json:"description,omitempty" validate:"omitempty,max=2000"`
	Trigger     *string        `json:"trigger,omitempty" validate:"omitempty,oneof=manual schedule"`
	Steps       *[]StepRequest `json:"steps,omitempty" validate:"omitempty,dive"`
}

func stepsFromRequest(reqs []StepRequest) []domain.Step {
	steps := make([]domain.Step, len(reqs))
	for i, s := range reqs {
		steps[i] = domain.Step{
			ID:     s.ID,
			Type:   domain.StepType(s.Type),
			Order:  s.Order,
			Config: s.Config,
		}
	}
	return steps
}

// Run DTOs

// EnqueueRunRequest — запрос на асинхронный запуск.
type EnqueueRunRequest struct {
	Context        map[string]any `json:"context,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty" validate:"max=200"`
}

// Schedule DTOs

// CreateScheduleRequest — запрос на создание schedule.
type CreateScheduleRequest struct {
	Name        string         `json:"name,omitempty" validate:"max=200"`
	CronExpr    string         `json:"cron_expr,omitempty" validate:"required_without=IntervalSec"`
	IntervalSec int            `json:"interval_sec,omitempty" validate:"gte=0,required_without=CronExpr"`
	Timezone    string         `json:"timezone,omitempty"`
	Enabled     *bool          `json:"enabled,omitempty"`
	Context     map[string]any `json:"context,omitempty"`
}

// UpdateScheduleRequest — запрос на обновление schedule.
type UpdateScheduleRequest struct {
	Name        *string         `json:"name,omitempty" validate:"omitempty,max=200"`
	CronExpr    *string         `json:"cron_expr,omitempty"`
	IntervalSec *int            `json:"interval_sec,omitempty" validate:"omitempty,gte=0"`
	Timezone    *string         `json:"timezone,omitempty"`
	Context     *map[string]any `json:"context,omitempty"`
}

// SetEnabledRequest — запрос на включение/выключение.
type SetEnabledRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// LLM DTOs

// TestLLMRequest — запрос к /test-llm.
type TestLLMRequest struct {
	Prompt string `json:"prompt" validate:"required"`
}

// TestLLMResponse — ответ /test-llm.
type TestLLMResponse struct {
	Prompt string `json:"prompt"`
	Result string `json:"result"`
}

// SummarizeURLRequest — запрос к /summarize-url.
type SummarizeURLRequest struct {
	URL string `json:"url" validate:"required,url"`
}

// SummarizeURLResponse — ответ /summarize-url.
type SummarizeURLResponse struct {
	URL     string `json:"url"`
	Summary string `json:"summary"`
}

// StepTypeResponse — описание типа шага.
type StepTypeResponse struct {
	Type string `json:"type"`
}

// errEmptyBody — тело запроса отсутствует.
var errEmptyBody = errors.New("request body is empty")

// decodeJSON читает JSON тело запроса в dst.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

// decodeAndValidate читает тело и проверяет теги validate.
// Ответ с ошибкой уже отправлен, если возвращено false.
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeJSON(r, dst); err != nil {
		BadRequest(w, "invalid request body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		ValidationFailed(w, validationMessage(err))
		return false
	}
	return true
}

// validationMessage превращает ошибки validator в читаемую строку.
func validationMessage(err error) string {
	var vErrs validator.ValidationErrors
	if !errors.As(err, &vErrs) {
		return err.Error()
	}

	parts := make([]string, 0, len(vErrs))
	for _, fe := range vErrs {
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: failed %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s: failed %s", field, fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

// decodeContext читает начальный контекст запуска.
// Пустое тело и не-объект JSON дают пустой контекст.
func decodeContext(r *http.Request) (domain.Context, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return domain.Context{}, nil
	}

	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return domain.Context{}, nil
	}
	return domain.Context(obj), nil
}
