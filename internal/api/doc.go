// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go          — Handler с DI (хранилища, сервис запусков, LLM, logger)
//   - routes.go           — регистрация маршрутов
//   - middleware.go       — middleware (logging, recovery, metrics, CORS)
//   - response.go         — унифицированные JSON-ответы и обработка ошибок
//   - dto.go              — Data Transfer Objects и валидация запросов
//   - workflow_handler.go — обработчики для /workflows и запусков
//   - run_handler.go      — обработчики для /runs
//   - schedule_handler.go — обработчики для /schedules
//   - llm_handler.go      — /test-llm, /summarize-url, /step-types
//
// Формат ответов:
//
//	{"data": ...}
//	{"data": [...], "total": n}
//	{"error": {"code": "...", "message": "..."}}
package api
