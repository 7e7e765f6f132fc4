package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/TakundaMabukwa/fuel-server-sub001/internal/http/middleware"
	"github.com/TakundaMabukwa/fuel-server-sub001/internal/models"
	"github.com/TakundaMabukwa/fuel-server-sub001/internal/repository"
	"github.com/TakundaMabukwa/fuel-server-sub001/internal/service"
)

// AnomaliesHandler serves the anomaly query, resolution and retrospective
// scan endpoints.
type AnomaliesHandler struct {
	repo       repository.AnomalyRepo
	classifier *service.AnomalyClassifier
	logger     *zap.Logger
}

// NewAnomaliesHandler builds handler.
func NewAnomaliesHandler(repo repository.AnomalyRepo, classifier *service.AnomalyClassifier, logger *zap.Logger) *AnomaliesHandler {
	return &AnomaliesHandler{repo: repo, classifier: classifier, logger: logger}
}

// List handles GET /api/anomalies with optional plate, status, from, to and
// limit filters.
func (h *AnomaliesHandler) List(w http.ResponseWriter, r *http.Request) {
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

	status := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status")))
	if status != "" && status != models.AnomalyStatusPending && status != models.AnomalyStatusResolved {
		writeError(w, http.StatusBadRequest, "unknown anomaly status")
		return
	}

	filter := repository.AnomalyFilter{
		Plate:  strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("plate"))),
		Status: status,
		From:   from,
		To:     to,
		Limit:  parseLimitParam(r, 100, 1000),
	}

	anomalies, err := h.repo.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list anomalies", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list anomalies")
		return
	}
	if anomalies == nil {
		anomalies = []models.FuelAnomaly{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"anomalies": anomalies,
		"count":     len(anomalies),
	})
}

type resolveRequest struct {
	ID         int64  `json:"id"`
	ResolvedBy string `json:"resolved_by"`
	Notes      string `json:"notes"`
}

// Resolve handles POST /api/anomalies/resolve. The resolver identity comes
// from the authenticated caller when present, otherwise from the request body.
func (h *AnomaliesHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ID <= 0 {
		writeError(w, http.StatusBadRequest, "anomaly id required")
		return
	}

	resolvedBy := strings.TrimSpace(req.ResolvedBy)
	if caller, ok := middleware.CallerFromContext(r.Context()); ok {
		resolvedBy = caller
	}
	if resolvedBy == "" {
		writeError(w, http.StatusBadRequest, "resolver identity required")
		return
	}

	changed, err := h.repo.Resolve(r.Context(), req.ID, resolvedBy, strings.TrimSpace(req.Notes))
	if err != nil {
		h.logger.Error("failed to resolve anomaly", zap.Int64("id", req.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to resolve anomaly")
		return
	}
	if !changed {
		writeError(w, http.StatusNotFound, "anomaly not found or already resolved")
		return
	}

	h.logger.Info("anomaly resolved", zap.Int64("id", req.ID), zap.String("resolved_by", resolvedBy))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":     req.ID,
		"status": models.AnomalyStatusResolved,
	})
}

type scanRequest struct {
	Plate string    `json:"plate"`
	From  time.Time `json:"from"`
	To    time.Time `json:"to"`
}

// Scan handles POST /api/anomalies/scan, replaying a plate's archived
// readings through the rule set. Replayed anomalies that already exist are
// left untouched, so the scan is safe to repeat.
func (h *AnomaliesHandler) Scan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Plate = strings.ToUpper(strings.TrimSpace(req.Plate))
	if req.Plate == "" {
		writeError(w, http.StatusBadRequest, "plate required")
		return
	}
	if req.From.IsZero() || req.To.IsZero() || !req.To.After(req.From) {
		writeError(w, http.StatusBadRequest, "valid from/to range required")
		return
	}

	created, err := h.classifier.ScanRange(r.Context(), req.Plate, req.From, req.To)
	if err != nil {
		h.logger.Error("retrospective scan failed", zap.String("plate", req.Plate), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "retrospective scan failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"plate":   req.Plate,
		"created": created,
	})
}
