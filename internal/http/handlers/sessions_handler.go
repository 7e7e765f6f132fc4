package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/TakundaMabukwa/fuel-server-sub001/internal/models"
	"github.com/TakundaMabukwa/fuel-server-sub001/internal/repository"
)

// SessionsHandler serves the operating-session query endpoints.
type SessionsHandler struct {
	repo   repository.SessionRepo
	logger *zap.Logger
}

// NewSessionsHandler builds handler.
func NewSessionsHandler(repo repository.SessionRepo, logger *zap.Logger) *SessionsHandler {
	return &SessionsHandler{repo: repo, logger: logger}
}

// List handles GET /api/sessions with optional plate, cost_code, status,
// from, to and limit filters.
func (h *SessionsHandler) List(w http.ResponseWriter, r *http.Request) {
	from, err := parseTimeParam(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from timestamp")
		return
	}
	to, err := parseTimeParam(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to timestamp")
		return
	}

	status := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status")))
	if status != "" && status != models.SessionStatusOngoing && status != models.SessionStatusCompleted {
		writeError(w, http.StatusBadRequest, "unknown session status")
		return
	}

	filter := repository.SessionFilter{
		Plate:    strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("plate"))),
		CostCode: strings.TrimSpace(r.URL.Query().Get("cost_code")),
		Status:   status,
		From:     from,
		To:       to,
		Limit:    parseLimitParam(r, 100, 1000),
	}

	sessions, err := h.repo.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list sessions", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []models.OperatingSession{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// Active handles GET /api/sessions/active and returns all ongoing sessions.
func (h *SessionsHandler) Active(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.repo.ListOngoing(r.Context())
	if err != nil {
		h.logger.Error("failed to list active sessions", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list active sessions")
		return
	}
	if sessions == nil {
		sessions = []models.OperatingSession{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"count":    len(sessions),
	})
}
