// Package steps содержит реализации типов шагов workflow.
//
// # Обзор
//
// Каждый шаг получает конфигурацию и контекст предыдущего шага
// (только для чтения) и возвращает поля, которые раннер записывает
// в копию контекста:
//
//	type Step interface {
//	    Type() domain.StepType
//	    Execute(ctx context.Context, req *Request) (*Response, error)
//	}
//
// # Registry
//
//	registry := steps.DefaultRegistry(llmClient, nil)
//	step, err := registry.Get(domain.StepTypeEcho)
//	if errors.Is(err, steps.ErrStepNotFound) {
//	    // неизвестный тип
//	}
//
// # Типы шагов
//
//   - FETCH_URL      — GET страницы, текст без тегов (fetch_url.go)
//   - LLM_SUMMARIZE  — краткое изложение поля контекста (llm_steps.go)
//   - LLM_GENERAL    — запрос к модели по шаблону {{ field }} (llm_steps.go)
//   - TRANSFORM_TEXT — uppercase / lowercase / trim (text_steps.go)
//   - ECHO           — константа в контекст (text_steps.go)
//
// # Обработка ошибок
//
//	var (
//	    ErrInvalidConfig  // неверная конфигурация
//	    ErrInvalidInput   // нет нужного поля в контексте
//	    ErrFetchFailed    // ошибка загрузки страницы
//	    ErrStepCancelled  // context cancelled
//	)
//
// Повторов нет: первая ошибка останавливает workflow.
package steps
