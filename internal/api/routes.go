package api

import (
	"net/http"
	"strings"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Workflows
	h.handle(mux, "GET /api/v1/workflows", h.ListWorkflows)
	h.handle(mux, "POST /api/v1/workflows", h.CreateWorkflow)
	h.handle(mux, "POST /api/v1/workflows/sample", h.CreateSampleWorkflow)
	h.handle(mux, "GET /api/v1/workflows/{id}", h.GetWorkflow)
	h.handle(mux, "PUT /api/v1/workflows/{id}", h.UpdateWorkflow)
	h.handle(mux, "DELETE /api/v1/workflows/{id}", h.DeleteWorkflow)

	// Запуски
	h.handle(mux, "POST /api/v1/workflows/{id}/run", h.RunWorkflow)
	h.handle(mux, "POST /api/v1/workflows/{id}/runs", h.EnqueueRun)
	h.handle(mux, "GET /api/v1/runs", h.ListRuns)
	h.handle(mux, "GET /api/v1/runs/{id}", h.GetRun)

	// Schedules
	h.handle(mux, "GET /api/v1/schedules", h.ListSchedules)
	h.handle(mux, "GET /api/v1/workflows/{id}/schedules", h.ListWorkflowSchedules)
	h.handle(mux, "POST /api/v1/workflows/{id}/schedules", h.CreateSchedule)
	h.handle(mux, "GET /api/v1/schedules/{id}", h.GetSchedule)
	h.handle(mux, "PUT /api/v1/schedules/{id}", h.UpdateSchedule)
	h.handle(mux, "DELETE /api/v1/schedules/{id}", h.DeleteSchedule)
	h.handle(mux, "PUT /api/v1/schedules/{id}/enabled", h.SetScheduleEnabled)

	// LLM и справочники
	h.handle(mux, "POST /api/v1/test-llm", h.TestLLM)
	h.handle(mux, "POST /api/v1/summarize-url", h.SummarizeURL)
	h.handle(mux, "GET /api/v1/step-types", h.ListStepTypes)

	// CORS preflight для всех маршрутов API
	h.handle(mux, "OPTIONS /api/v1/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

// handle оборачивает обработчик общей цепочкой middleware.
// Метка route для метрик — путь шаблона без метода.
func (h *Handler) handle(mux *http.ServeMux, pattern string, fn http.HandlerFunc) {
	route := pattern
	if _, path, ok := strings.Cut(pattern, " "); ok {
		route = path
	}

	chain := Chain(
		Metrics(route),
		Logging(h.logger),
		Recovery(h.logger),
		CORS(),
	)
	mux.Handle(pattern, chain(fn))
}
