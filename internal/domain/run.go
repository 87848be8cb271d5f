package domain

import (
	"time"

	"github.com/google/uuid"
)

// Run — одно выполнение workflow.
//
// Run создаётся когда:
// - Пользователь запускает workflow синхронно (POST /workflows/{id}/run)
// - Пользователь ставит workflow в очередь (POST /workflows/{id}/runs)
// - Scheduler создаёт run по расписанию
type Run struct {
	// ID — уникальный идентификатор run.
	ID uuid.UUID `json:"id"`

	// WorkflowID — ссылка на выполняемый workflow.
	WorkflowID uuid.UUID `json:"workflow_id"`

	// Status — текущий статус выполнения.
	Status RunStatus `json:"status"`

	// Trigger — источник запуска.
	Trigger Trigger `json:"trigger"`

	// Inputs — начальный контекст, переданный при запуске.
	Inputs Context `json:"inputs,omitempty"`

	// Context — контекст после выполнения (на момент остановки при ошибке).
	Context Context `json:"context,omitempty"`

	// StepsRun — журнал выполненных шагов.
	StepsRun []StepResult `json:"steps_run,omitempty"`

	// Error — сообщение об ошибке шага, остановившего run.
	Error string `json:"error,omitempty"`

	// IdempotencyKey — ключ идемпотентности (для запусков по расписанию).
	IdempotencyKey string `json:"idempotency_key,omitempty"`

	// StartedAt — время перехода в RUNNING.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// CreatedAt — время создания run.
	CreatedAt time.Time `json:"created_at"`
}

// StepResult — запись журнала о выполнении одного шага.
type StepResult struct {
	ID     string     `json:"id"`
	Type   StepType   `json:"type"`
	Status StepStatus `json:"status"`
	Error  string     `json:"error,omitempty"`
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если run ещё не завершён.
func (r *Run) Duration() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}

// IsFinished возвращает true, если run завершён.
func (r *Run) IsFinished() bool {
	return r.Status.IsTerminal()
}

// MarkRunning переводит run в статус RUNNING.
func (r *Run) MarkRunning() {
	now := time.Now()
	r.Status = RunStatusRunning
	r.StartedAt = &now
}

// Complete фиксирует результат выполнения.
// Статус определяется по последней записи журнала.
func (r *Run) Complete(ctx Context, stepsRun []StepResult) {
	now := time.Now()
	r.Context = ctx
	r.StepsRun = stepsRun
	r.FinishedAt = &now
	r.Status = RunStatusSucceeded
	r.Error = ""

	if n := len(stepsRun); n > 0 && stepsRun[n-1].Status == StepStatusError {
		r.Status = RunStatusFailed
		r.Error = stepsRun[n-1].Error
	}
}

// MarkFailed переводит run в FAILED с ошибкой, не связанной с шагами
// (например, workflow удалён до запуска).
func (r *Run) MarkFailed(err string) {
	now := time.Now()
	r.Status = RunStatusFailed
	r.FinishedAt = &now
	r.Error = err
}
