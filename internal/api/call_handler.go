package api

import (
	"net/http"
	"strconv"

	"github.com/shaiso/Delegate/internal/domain"
	"github.com/shaiso/Delegate/internal/repo"
)

// ListCalls возвращает последние вызовы из журнала.
// GET /api/v1/calls?target=...&status=...&limit=...
func (h *Handler) ListCalls(w http.ResponseWriter, r *http.Request) {
	if !h.journalEnabled(w) {
		return
	}

	filter := repo.CallFilter{
		Target: r.URL.Query().Get("target"),
	}

	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = domain.CallStatus(status)
		if !filter.Status.IsValid() {
			BadRequest(w, "invalid status")
			return
		}
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			BadRequest(w, "invalid limit")
			return
		}
		filter.Limit = limit
	}

	calls, err := h.calls.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]CallResponse, len(calls))
	for i, call := range calls {
		result[i] = CallFromDomain(call)
	}

	List(w, result, len(result))
}

// GetCall возвращает вызов по correlation id.
// GET /api/v1/calls/{correlation_id}
func (h *Handler) GetCall(w http.ResponseWriter, r *http.Request) {
	if !h.journalEnabled(w) {
		return
	}

	call, err := h.calls.GetByCorrelationID(r.Context(), r.PathValue("correlation_id"))
	if HandleRepoError(w, h.logger, err, "call not found") {
		return
	}

	Success(w, CallFromDomain(*call))
}

func (h *Handler) journalEnabled(w http.ResponseWriter) bool {
	if h.calls == nil {
		Error(w, http.StatusServiceUnavailable, ErrCodeJournalDisabled, "call journal is not configured")
		return false
	}
	return true
}
