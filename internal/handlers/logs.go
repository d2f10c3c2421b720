package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/programhub/apiserver/internal/response"
	"github.com/programhub/apiserver/internal/services"
	"github.com/programhub/apiserver/types"
)

// LogHandler serves the activity log.
type LogHandler struct {
	activity *services.ActivityService
	logger   *slog.Logger
}

func NewLogHandler(activity *services.ActivityService, logger *slog.Logger) *LogHandler {
	return &LogHandler{activity: activity, logger: logger}
}

// LogRouter registers log routes. Every route requires an admin.
func LogRouter(r chi.Router, h *LogHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Use(authMiddleware, RequireAdmin)

	r.Get("/", h.ListLogs)
	r.Get("/recent", h.RecentLogs)
}

func (h *LogHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	page, limit, err := parsePagination(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	logs, err := h.activity.List(r.Context(), page, limit)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	response.Success(w, http.StatusOK, "Logs fetched successfully", paginated(logs))
}

func (h *LogHandler) RecentLogs(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	logs, err := h.activity.Recent(r.Context(), limit)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if logs == nil {
		logs = []types.UpdateLog{}
	}
	response.Success(w, http.StatusOK, "Recent logs fetched", logs)
}
