package engine

import (
	"fmt"
	"strings"

	"github.com/shaiso/Stepflow/internal/domain"
)

// Validate проверяет workflow перед сохранением.
//
// Проверяет:
// - Наличие имени
// - Корректность trigger (пустой trigger считается manual)
// - Непустые и уникальные ID шагов
// - Известные типы шагов
//
// Workflow без шагов допустим: его запуск просто возвращает начальный контекст.
func Validate(wf *domain.Workflow) error {
	if wf == nil || strings.TrimSpace(wf.Name) == "" {
		return NewValidationError("", "name", "workflow name is required", ErrEmptyName)
	}

	if wf.Trigger != "" && !wf.Trigger.IsValid() {
		return NewValidationError("", "trigger",
			fmt.Sprintf("invalid trigger: %s", wf.Trigger), ErrInvalidTrigger)
	}

	stepIDs := make(map[string]bool, len(wf.Steps))
	for i := range wf.Steps {
		if err := ValidateStep(&wf.Steps[i], stepIDs); err != nil {
			return err
		}
	}

	return nil
}

// ValidateStep валидирует один шаг.
// stepIDs — уже встреченные ID шагов (для проверки уникальности).
func ValidateStep(step *domain.Step, stepIDs map[string]bool) error {
	if step.ID == "" {
		return NewValidationError("", "id", "step has empty ID", ErrEmptyStepID)
	}

	if stepIDs[step.ID] {
		return NewValidationError(step.ID, "id",
			fmt.Sprintf("duplicate step ID: %s", step.ID), ErrDuplicateStepID)
	}
	stepIDs[step.ID] = true

	if step.Type == "" {
		return NewValidationError(step.ID, "type", "step has empty type", ErrUnknownStepType)
	}
	if !step.Type.IsValid() {
		return NewValidationError(step.ID, "type",
			fmt.Sprintf("unknown step type: %s", step.Type), ErrUnknownStepType)
	}

	return nil
}

// Normalize заполняет значения по умолчанию перед сохранением.
func Normalize(wf *domain.Workflow) {
	if wf.Trigger == "" {
		wf.Trigger = domain.TriggerManual
	}
	if wf.Steps == nil {
		wf.Steps = []domain.Step{}
	}
	for i := range wf.Steps {
		if wf.Steps[i].Config == nil {
			wf.Steps[i].Config = map[string]any{}
		}
	}
}
