package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/shaiso/Stepflow/internal/domain"
	"github.com/shaiso/Stepflow/internal/repo"
	"github.com/shaiso/Stepflow/internal/scheduler"
)

// ListSchedules возвращает список schedules с фильтрацией.
// GET /api/v1/schedules?workflow_id=...&enabled=...&limit=...&offset=...
func (h *Handler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	filter := repo.ScheduleFilter{}
	q := r.URL.Query()

	if wfIDStr := q.Get("workflow_id"); wfIDStr != "" {
		wfID, err := uuid.Parse(wfIDStr)
		if err != nil {
			BadRequest(w, "invalid workflow_id")
			return
		}
		filter.WorkflowID = &wfID
	}

	if enabledStr := q.Get("enabled"); enabledStr != "" {
		enabled := enabledStr == "true"
		filter.Enabled = &enabled
	}

	filter.Limit, filter.Offset = pagination(r)
	h.listSchedules(w, r, filter)
}

// ListWorkflowSchedules возвращает schedules одного workflow.
// GET /api/v1/workflows/{id}/schedules
func (h *Handler) ListWorkflowSchedules(w http.ResponseWriter, r *http.Request) {
	wfID, ok := pathUUID(w, r, "invalid workflow id")
	if !ok {
		return
	}

	if _, err := h.workflows.GetByID(r.Context(), wfID); HandleRepoError(w, h.logger, err, "workflow not found") {
		return
	}

	filter := repo.ScheduleFilter{WorkflowID: &wfID}
	filter.Limit, filter.Offset = pagination(r)
	h.listSchedules(w, r, filter)
}

func (h *Handler) listSchedules(w http.ResponseWriter, r *http.Request, filter repo.ScheduleFilter) {
	schedules, err := h.schedules.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}
	if schedules == nil {
		schedules = []domain.Schedule{}
	}

	List(w, schedules, len(schedules))
}

// CreateSchedule создаёт schedule для workflow.
// POST /api/v1/workflows/{id}/schedules
func (h *Handler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	wfID, ok := pathUUID(w, r, "invalid workflow id")
	if !ok {
		return
	}

	var req CreateScheduleRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	if _, err := h.workflows.GetByID(r.Context(), wfID); HandleRepoError(w, h.logger, err, "workflow not found") {
		return
	}

	timezone := req.Timezone
	if timezone == "" {
		timezone = domain.DefaultTimezone
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	now := h.now()
	sched := &domain.Schedule{
		ID:          uuid.New(),
		WorkflowID:  wfID,
		Name:        req.Name,
		CronExpr:    req.CronExpr,
		IntervalSec: req.IntervalSec,
		Timezone:    timezone,
		Enabled:     enabled,
		Context:     req.Context,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if !h.prepareSchedule(w, sched) {
		return
	}

	if err := h.schedules.Create(r.Context(), sched); HandleRepoError(w, h.logger, err, "") {
		return
	}

	Created(w, sched)
}

// GetSchedule возвращает schedule по ID.
// GET /api/v1/schedules/{id}
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "invalid schedule id")
	if !ok {
		return
	}

	sched, err := h.schedules.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "schedule not found") {
		return
	}

	Success(w, sched)
}

// UpdateSchedule обновляет schedule и пересчитывает next_due_at.
// PUT /api/v1/schedules/{id}
func (h *Handler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "invalid schedule id")
	if !ok {
		return
	}

	var req UpdateScheduleRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	sched, err := h.schedules.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "schedule not found") {
		return
	}

	if req.Name != nil {
		sched.Name = *req.Name
	}
	if req.CronExpr != nil {
		sched.CronExpr = *req.CronExpr
	}
	if req.IntervalSec != nil {
		sched.IntervalSec = *req.IntervalSec
	}
	if req.Timezone != nil {
		sched.Timezone = *req.Timezone
	}
	if req.Context != nil {
		sched.Context = *req.Context
	}
	sched.UpdatedAt = h.now()

	if !h.prepareSchedule(w, sched) {
		return
	}

	if err := h.schedules.Update(r.Context(), sched); HandleRepoError(w, h.logger, err, "schedule not found") {
		return
	}

	Success(w, sched)
}

// DeleteSchedule удаляет schedule.
// DELETE /api/v1/schedules/{id}
func (h *Handler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "invalid schedule id")
	if !ok {
		return
	}

	if err := h.schedules.Delete(r.Context(), id); HandleRepoError(w, h.logger, err, "schedule not found") {
		return
	}

	NoContent(w)
}

// SetScheduleEnabled включает или выключает schedule.
// PUT /api/v1/schedules/{id}/enabled
//
// При включении next_due_at отсчитывается от текущего момента,
// пропущенные за время простоя запуски не догоняются.
func (h *Handler) SetScheduleEnabled(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "invalid schedule id")
	if !ok {
		return
	}

	var req SetEnabledRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	sched, err := h.schedules.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "schedule not found") {
		return
	}

	enable := *req.Enabled
	if enable && !sched.Enabled {
		sched.Enabled = true
		if !h.prepareSchedule(w, sched) {
			return
		}
	}
	sched.Enabled = enable
	sched.UpdatedAt = h.now()

	if err := h.schedules.Update(r.Context(), sched); HandleRepoError(w, h.logger, err, "schedule not found") {
		return
	}

	Success(w, sched)
}

// prepareSchedule проверяет расписание и вычисляет next_due_at.
func (h *Handler) prepareSchedule(w http.ResponseWriter, sched *domain.Schedule) bool {
	if err := scheduler.Validate(sched); err != nil {
		ValidationFailed(w, err.Error())
		return false
	}
	if err := scheduler.InitNextDue(sched, h.now()); err != nil {
		ValidationFailed(w, err.Error())
		return false
	}
	return true
}
