package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/TakundaMabukwa/fuel-server-sub001/internal/models"
	"github.com/TakundaMabukwa/fuel-server-sub001/internal/repository"
)

// FillsHandler serves the fuel-fill query endpoint.
type FillsHandler struct {
	repo   repository.FillRepo
	logger *zap.Logger
}

// NewFillsHandler builds handler.
func NewFillsHandler(repo repository.FillRepo, logger *zap.Logger) *FillsHandler {
	return &FillsHandler{repo: repo, logger: logger}
}

// List handles GET /api/fills with optional plate, from, to and limit filters.
func (h *FillsHandler) List(w http.ResponseWriter, r *http.Request) {
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

	filter := repository.FillFilter{
		Plate: strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("plate"))),
		From:  from,
		To:    to,
		Limit: parseLimitParam(r, 100, 1000),
	}

	fills, err := h.repo.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list fill events", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list fill events")
		return
	}
	if fills == nil {
		fills = []models.FuelFillEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"fills": fills,
		"count": len(fills),
	})
}
