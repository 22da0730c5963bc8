package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/korzhev/Cascade/internal/domain"
	"github.com/korzhev/Cascade/internal/repo"
)

// ListExecutions обрабатывает GET /api/v1/executions.
func (h *Handler) ListExecutions(w http.ResponseWriter, r *http.Request) {
	filter := repo.ExecutionFilter{
		Status: domain.ExecutionStatus(r.URL.Query().Get("status")),
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	}
	if rawFlowID := r.URL.Query().Get("flow_id"); rawFlowID != "" {
		flowID, err := uuid.Parse(rawFlowID)
		if err != nil {
			BadRequest(w, "invalid flow_id")
			return
		}
		filter.FlowID = &flowID
	}

	executions, err := h.executions.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "executions not found") {
		return
	}
	List(w, executions, len(executions))
}

// GetExecution обрабатывает GET /api/v1/executions/{id}.
func (h *Handler) GetExecution(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	ex, err := h.executions.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "execution not found") {
		return
	}
	Success(w, ex)
}

// ListExecutionLogs обрабатывает GET /api/v1/executions/{id}/logs.
// Записи возвращаются в порядке вставки.
func (h *Handler) ListExecutionLogs(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	// Execution должен существовать
	if _, err := h.executions.GetByID(r.Context(), id); HandleRepoError(w, h.logger, err, "execution not found") {
		return
	}

	logs, err := h.logs.ListByExecutionID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "execution not found") {
		return
	}
	List(w, logs, len(logs))
}
