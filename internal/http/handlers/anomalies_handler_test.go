package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/TakundaMabukwa/fuel-server-sub001/internal/models"
	"github.com/TakundaMabukwa/fuel-server-sub001/internal/repository"
	"github.com/TakundaMabukwa/fuel-server-sub001/internal/service"
)

// stubAnomalyRepo is a function-field mock for repository.AnomalyRepo.
type stubAnomalyRepo struct {
	UpsertFn  func(a *models.FuelAnomaly) (bool, error)
	ListFn    func(filter repository.AnomalyFilter) ([]models.FuelAnomaly, error)
	ResolveFn func(id int64, resolvedBy, notes string) (bool, error)

	resolveCalls []string
}

func (s *stubAnomalyRepo) Upsert(_ context.Context, a *models.FuelAnomaly) (bool, error) {
	return s.UpsertFn(a)
}

func (s *stubAnomalyRepo) List(_ context.Context, filter repository.AnomalyFilter) ([]models.FuelAnomaly, error) {
	return s.ListFn(filter)
}

func (s *stubAnomalyRepo) Resolve(_ context.Context, id int64, resolvedBy, notes string) (bool, error) {
	s.resolveCalls = append(s.resolveCalls, resolvedBy)
	return s.ResolveFn(id, resolvedBy, notes)
}

type stubReadingRepo struct {
	readings []models.TelemetryReading
}

func (s *stubReadingRepo) Insert(_ context.Context, r *models.TelemetryReading) error {
	s.readings = append(s.readings, *r)
	return nil
}

func (s *stubReadingRepo) ListRange(_ context.Context, plate string, from, to time.Time) ([]models.TelemetryReading, error) {
	var out []models.TelemetryReading
	for _, r := range s.readings {
		if r.Plate == plate && !r.DeviceTime.Before(from) && !r.DeviceTime.After(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

func TestAnomaliesList_FilterValidation(t *testing.T) {
	t.Parallel()

	repo := &stubAnomalyRepo{
		ListFn: func(filter repository.AnomalyFilter) ([]models.FuelAnomaly, error) {
			t.Fatal("List must not be called for invalid params")
			return nil, nil
		},
	}
	h := NewAnomaliesHandler(repo, nil, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/anomalies?status=bogus", nil)
	rec := httptest.NewRecorder()
	h.List(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/anomalies?from=yesterday", nil)
	rec = httptest.NewRecorder()
	h.List(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad timestamp, got %d", rec.Code)
	}
}

func TestAnomaliesList_PassesFilter(t *testing.T) {
	t.Parallel()

	var got repository.AnomalyFilter
	repo := &stubAnomalyRepo{
		ListFn: func(filter repository.AnomalyFilter) ([]models.FuelAnomaly, error) {
			got = filter
			return []models.FuelAnomaly{{ID: 7, Plate: "ABC123"}}, nil
		},
	}
	h := NewAnomaliesHandler(repo, nil, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/anomalies?plate=abc123&status=pending&limit=10", nil)
	rec := httptest.NewRecorder()
	h.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got.Plate != "ABC123" || got.Status != models.AnomalyStatusPending || got.Limit != 10 {
		t.Fatalf("unexpected filter: %+v", got)
	}

	var body struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Count != 1 {
		t.Fatalf("expected count 1, got %d", body.Count)
	}
}

func TestAnomaliesResolve(t *testing.T) {
	t.Parallel()

	repo := &stubAnomalyRepo{
		ResolveFn: func(id int64, resolvedBy, notes string) (bool, error) {
			if id != 7 {
				t.Fatalf("expected id 7, got %d", id)
			}
			return true, nil
		},
	}
	h := NewAnomaliesHandler(repo, nil, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/anomalies/resolve",
		strings.NewReader(`{"id":7,"resolved_by":"ops@site","notes":"verified refuel"}`))
	rec := httptest.NewRecorder()
	h.Resolve(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(repo.resolveCalls) != 1 || repo.resolveCalls[0] != "ops@site" {
		t.Fatalf("expected resolver from body, got %v", repo.resolveCalls)
	}
}

func TestAnomaliesResolve_NotFound(t *testing.T) {
	t.Parallel()

	repo := &stubAnomalyRepo{
		ResolveFn: func(int64, string, string) (bool, error) { return false, nil },
	}
	h := NewAnomaliesHandler(repo, nil, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/anomalies/resolve",
		strings.NewReader(`{"id":99,"resolved_by":"ops@site"}`))
	rec := httptest.NewRecorder()
	h.Resolve(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing or resolved anomaly, got %d", rec.Code)
	}
}

func TestAnomaliesResolve_RequiresIdentity(t *testing.T) {
	t.Parallel()

	repo := &stubAnomalyRepo{
		ResolveFn: func(int64, string, string) (bool, error) {
			t.Fatal("Resolve must not be called without a resolver identity")
			return false, nil
		},
	}
	h := NewAnomaliesHandler(repo, nil, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/anomalies/resolve", strings.NewReader(`{"id":7}`))
	rec := httptest.NewRecorder()
	h.Resolve(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without identity, got %d", rec.Code)
	}
}

func TestAnomaliesScan(t *testing.T) {
	t.Parallel()

	readings := &stubReadingRepo{}
	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	readings.readings = []models.TelemetryReading{
		{Plate: "ABC123", DeviceTime: base, FuelLevel: 400, HasFuel: true, Signal: models.SignalOff},
		{Plate: "ABC123", DeviceTime: base.Add(2 * time.Hour), FuelLevel: 330, HasFuel: true, Signal: models.SignalUnknown},
	}
	repo := &stubAnomalyRepo{
		UpsertFn: func(a *models.FuelAnomaly) (bool, error) { return true, nil },
	}
	classifier := service.NewAnomalyClassifier(repo, readings, service.AnomalyThresholds{
		TheftDrop: 50, SpillageDrop: 30, UnusualDrop: 100,
		RapidDrop: 50, RapidDropRatio: 0.2, RapidDropPerMin: 5, RapidDropWindow: 30 * time.Minute,
		FilledWhileOnMin: 10, FilledWhileOnMax: 15,
	}, zap.NewNop())
	h := NewAnomaliesHandler(repo, classifier, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/anomalies/scan",
		strings.NewReader(`{"plate":"abc123","from":"2025-06-01T00:00:00Z","to":"2025-06-02T00:00:00Z"}`))
	rec := httptest.NewRecorder()
	h.Scan(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Plate   string `json:"plate"`
		Created int    `json:"created"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Plate != "ABC123" || body.Created != 1 {
		t.Fatalf("unexpected scan result: %+v", body)
	}
}

func TestAnomaliesScan_Validation(t *testing.T) {
	t.Parallel()

	h := NewAnomaliesHandler(&stubAnomalyRepo{}, nil, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/anomalies/scan",
		strings.NewReader(`{"from":"2025-06-01T00:00:00Z","to":"2025-06-02T00:00:00Z"}`))
	rec := httptest.NewRecorder()
	h.Scan(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without plate, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/anomalies/scan",
		strings.NewReader(`{"plate":"ABC123","from":"2025-06-02T00:00:00Z","to":"2025-06-01T00:00:00Z"}`))
	rec = httptest.NewRecorder()
	h.Scan(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for inverted range, got %d", rec.Code)
	}
}
