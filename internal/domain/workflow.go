package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Trigger — способ запуска workflow.
type Trigger string

const (
	// TriggerManual — запуск вручную (API/CLI).
	TriggerManual Trigger = "manual"

	// TriggerSchedule — запуск по расписанию (см. Schedule).
	TriggerSchedule Trigger = "schedule"
)

// IsValid проверяет, что значение trigger известно.
func (t Trigger) IsValid() bool {
	return t == TriggerManual || t == TriggerSchedule
}

// Workflow — сохранённая последовательность шагов.
//
// Шаги выполняются строго по возрастанию Order (не по позиции в списке).
// Все шаги читают и пишут один общий Context.
type Workflow struct {
	// ID — уникальный идентификатор workflow.
	ID uuid.UUID `json:"id"`

	// Name — имя workflow.
	Name string `json:"name"`

	// Description — описание назначения workflow.
	Description string `json:"description,omitempty"`

	// Trigger — способ запуска: "manual" или "schedule".
	Trigger Trigger `json:"trigger"`

	// Steps — шаги workflow.
	Steps []Step `json:"steps"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего изменения.
	UpdatedAt time.Time `json:"updated_at"`
}

// Step — один шаг workflow.
type Step struct {
	// ID — стабильный идентификатор шага внутри workflow.
	ID string `json:"id"`

	// Type — тип шага (FETCH_URL, LLM_SUMMARIZE, ...).
	Type StepType `json:"type"`

	// Order — порядковый номер. Шаги сортируются по нему перед выполнением.
	Order int `json:"order"`

	// Config — конфигурация шага, набор ключей зависит от типа.
	Config map[string]any `json:"config"`
}

// SortedSteps возвращает копию шагов, отсортированную по Order.
// Шаги с одинаковым Order сохраняют исходный порядок.
func (w *Workflow) SortedSteps() []Step {
	return SortSteps(w.Steps)
}

// SortSteps возвращает копию steps, отсортированную по Order (стабильно).
func SortSteps(steps []Step) []Step {
	sorted := make([]Step, len(steps))
	copy(sorted, steps)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Order < sorted[j].Order
	})
	return sorted
}

// SampleWorkflow создаёт демонстрационный workflow:
// скачать страницу по context.url и кратко её пересказать.
func SampleWorkflow() *Workflow {
	return &Workflow{
		ID:          uuid.New(),
		Name:        "Sample: Summarize URL",
		Description: "Fetch a URL and summarize its content using LLM.",
		Trigger:     TriggerManual,
		Steps: []Step{
			{
				ID:    "step1",
				Type:  StepTypeFetchURL,
				Order: 1,
				Config: map[string]any{
					"sourceField": "url",
					"targetField": "pageContent",
				},
			},
			{
				ID:    "step2",
				Type:  StepTypeSummarize,
				Order: 2,
				Config: map[string]any{
					"inputField":  "pageContent",
					"outputField": "summary",
				},
			},
		},
	}
}
