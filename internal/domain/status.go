package domain

// StepType — тип шага workflow.
type StepType string

const (
	// StepTypeFetchURL — скачать страницу и извлечь из неё текст.
	StepTypeFetchURL StepType = "FETCH_URL"

	// StepTypeSummarize — краткий пересказ текста через LLM.
	StepTypeSummarize StepType = "LLM_SUMMARIZE"

	// StepTypeGeneralPrompt — произвольный промпт-шаблон через LLM.
	StepTypeGeneralPrompt StepType = "LLM_GENERAL"

	// StepTypeTransformText — uppercase / lowercase / trim строки.
	StepTypeTransformText StepType = "TRANSFORM_TEXT"

	// StepTypeEcho — записать константу в контекст.
	StepTypeEcho StepType = "ECHO"
)

// StepTypes — все известные типы шагов.
var StepTypes = []StepType{
	StepTypeFetchURL,
	StepTypeSummarize,
	StepTypeGeneralPrompt,
	StepTypeTransformText,
	StepTypeEcho,
}

// IsValid проверяет, что тип шага известен.
func (t StepType) IsValid() bool {
	for _, known := range StepTypes {
		if t == known {
			return true
		}
	}
	return false
}

// StepStatus — результат выполнения одного шага в журнале run.
type StepStatus string

const (
	StepStatusSuccess StepStatus = "success"
	StepStatusError   StepStatus = "error"
)

// RunStatus — статус выполнения run.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → SUCCEEDED
//	                  ↘ FAILED
//
// Синхронный запуск через API создаёт run сразу в RUNNING.
type RunStatus string

const (
	// RunStatusPending — run создан и ждёт воркера.
	RunStatusPending RunStatus = "PENDING"

	// RunStatusRunning — run выполняется.
	RunStatusRunning RunStatus = "RUNNING"

	// RunStatusSucceeded — все шаги выполнены успешно.
	RunStatusSucceeded RunStatus = "SUCCEEDED"

	// RunStatusFailed — один из шагов завершился ошибкой.
	RunStatusFailed RunStatus = "FAILED"
)

// IsTerminal возвращает true, если статус финальный (run завершён).
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusSucceeded, RunStatusFailed:
		return true
	default:
		return false
	}
}

// IsValid проверяет, что статус известен.
func (s RunStatus) IsValid() bool {
	switch s {
	case RunStatusPending, RunStatusRunning, RunStatusSucceeded, RunStatusFailed:
		return true
	default:
		return false
	}
}
