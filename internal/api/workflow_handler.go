package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/shaiso/Stepflow/internal/domain"
	"github.com/shaiso/Stepflow/internal/engine"
)

// ListWorkflows возвращает список workflow.
// GET /api/v1/workflows?limit=...&offset=...
func (h *Handler) ListWorkflows(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	workflows, total, err := h.workflows.List(r.Context(), limit, offset)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}
	if workflows == nil {
		workflows = []domain.Workflow{}
	}

	List(w, workflows, total)
}

// CreateWorkflow создаёт новый workflow.
// POST /api/v1/workflows
func (h *Handler) CreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var req CreateWorkflowRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	now := h.now()
	wf := &domain.Workflow{
		ID:          uuid.New(),
		Name:        req.Name,
		Description: req.Description,
		Trigger:     domain.Trigger(req.Trigger),
		Steps:       stepsFromRequest(req.Steps),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if !h.saveWorkflow(w, r, wf, true) {
		return
	}
	Created(w, wf)
}

// CreateSampleWorkflow создаёт демонстрационный workflow «fetch → summarize».
// POST /api/v1/workflows/sample
func (h *Handler) CreateSampleWorkflow(w http.ResponseWriter, r *http.Request) {
	wf := domain.SampleWorkflow()
	now := h.now()
	wf.CreatedAt = now
	wf.UpdatedAt = now

	if !h.saveWorkflow(w, r, wf, true) {
		return
	}
	Created(w, wf)
}

// GetWorkflow возвращает workflow по ID.
// GET /api/v1/workflows/{id}
func (h *Handler) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "invalid workflow id")
	if !ok {
		return
	}

	wf, err := h.workflows.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "workflow not found") {
		return
	}

	Success(w, wf)
}

// UpdateWorkflow обновляет workflow.
// PUT /api/v1/workflows/{id}
func (h *Handler) UpdateWorkflow(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "invalid workflow id")
	if !ok {
		return
	}

	var req UpdateWorkflowRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	wf, err := h.workflows.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "workflow not found") {
		return
	}

	if req.Name != nil {
		wf.Name = *req.Name
	}
	if req.Description != nil {
		wf.Description = *req.Description
	}
	if req.Trigger != nil {
		wf.Trigger = domain.Trigger(*req.Trigger)
	}
	if req.Steps != nil {
		wf.Steps = stepsFromRequest(*req.Steps)
	}
	wf.UpdatedAt = h.now()

	if !h.saveWorkflow(w, r, wf, false) {
		return
	}
	Success(w, wf)
}

// DeleteWorkflow удаляет workflow вместе с его runs и schedules.
// DELETE /api/v1/workflows/{id}
func (h *Handler) DeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "invalid workflow id")
	if !ok {
		return
	}

	if err := h.workflows.Delete(r.Context(), id); HandleRepoError(w, h.logger, err, "workflow not found") {
		return
	}

	NoContent(w)
}

// RunWorkflow синхронно выполняет workflow.
// POST /api/v1/workflows/{id}/run
//
// Тело запроса — начальный контекст. Упавший шаг не является ошибкой
// запроса: ответ 200 содержит лог с status "error".
func (h *Handler) RunWorkflow(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "invalid workflow id")
	if !ok {
		return
	}

	initial, err := decodeContext(r)
	if err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	result, err := h.runner.RunWorkflow(r.Context(), id, initial)
	if HandleRepoError(w, h.logger, err, "workflow not found") {
		return
	}

	Success(w, result)
}

// EnqueueRun ставит запуск workflow в очередь.
// POST /api/v1/workflows/{id}/runs
func (h *Handler) EnqueueRun(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "invalid workflow id")
	if !ok {
		return
	}

	var req EnqueueRunRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		BadRequest(w, "invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		ValidationFailed(w, validationMessage(err))
		return
	}

	run, err := h.runner.Enqueue(r.Context(), id, req.Context, domain.TriggerManual, req.IdempotencyKey)
	if HandleRepoError(w, h.logger, err, "workflow not found") {
		return
	}

	Accepted(w, run)
}

// saveWorkflow нормализует, проверяет и сохраняет workflow.
func (h *Handler) saveWorkflow(w http.ResponseWriter, r *http.Request, wf *domain.Workflow, create bool) bool {
	engine.Normalize(wf)
	if err := engine.Validate(wf); err != nil {
		ValidationFailed(w, err.Error())
		return false
	}

	var err error
	if create {
		err = h.workflows.Create(r.Context(), wf)
	} else {
		err = h.workflows.Update(r.Context(), wf)
	}
	return !HandleRepoError(w, h.logger, err, "workflow not found")
}

// pathUUID разбирает {id} из пути. При ошибке отправляет 400.
func pathUUID(w http.ResponseWriter, r *http.Request, msg string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, msg)
		return uuid.Nil, false
	}
	return id, true
}
