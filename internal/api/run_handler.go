package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/shaiso/Stepflow/internal/domain"
	"github.com/shaiso/Stepflow/internal/repo"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// ListRuns возвращает список runs с фильтрацией.
// GET /api/v1/runs?workflow_id=...&status=...&limit=...&offset=...
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	filter := repo.RunFilter{}
	q := r.URL.Query()

	if wfIDStr := q.Get("workflow_id"); wfIDStr != "" {
		wfID, err := uuid.Parse(wfIDStr)
		if err != nil {
			BadRequest(w, "invalid workflow_id")
			return
		}
		filter.WorkflowID = &wfID
	}

	if status := q.Get("status"); status != "" {
		filter.Status = domain.RunStatus(status)
		if !filter.Status.IsValid() {
			BadRequest(w, "invalid status")
			return
		}
	}

	filter.Limit, filter.Offset = pagination(r)

	runs, total, err := h.runs.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}
	if runs == nil {
		runs = []domain.Run{}
	}

	List(w, runs, total)
}

// GetRun возвращает run по ID вместе с итоговым контекстом и логом шагов.
// GET /api/v1/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "invalid run id")
	if !ok {
		return
	}

	run, err := h.runs.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "run not found") {
		return
	}

	Success(w, run)
}

// pagination читает limit/offset из query.
// Некорректные значения заменяются значениями по умолчанию.
func pagination(r *http.Request) (limit, offset int) {
	q := r.URL.Query()

	limit = parseIntDefault(q.Get("limit"), defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	offset = parseIntDefault(q.Get("offset"), 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// parseIntDefault парсит строку в int с дефолтным значением.
func parseIntDefault(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return n
}
