package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/TakundaMabukwa/fuel-server-sub001/internal/models"
	"github.com/TakundaMabukwa/fuel-server-sub001/internal/repository"
)

// fakeSessionRepo is an in-memory SessionRepo with the same conditional
// update semantics as the SQL implementation.
type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*models.OperatingSession

	createErr error
	findErr   error

	// listOngoingBeforeFn overrides ListOngoingBefore when set, to simulate
	// rows that change between query and update.
	listOngoingBeforeFn func(cutoff time.Time) ([]models.OperatingSession, error)

	createCalls int
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*models.OperatingSession)}
}

func (f *fakeSessionRepo) put(s *models.OperatingSession) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *s
	f.sessions[s.ID] = &cp
}

func (f *fakeSessionRepo) get(id string) *models.OperatingSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil
	}
	cp := *s
	return &cp
}

func (f *fakeSessionRepo) Create(_ context.Context, session *models.OperatingSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return f.createErr
	}
	cp := *session
	f.sessions[session.ID] = &cp
	return nil
}

func (f *fakeSessionRepo) FindOngoing(_ context.Context, plate string) (*models.OperatingSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	for _, s := range f.sessions {
		if s.Plate == plate && s.Status == models.SessionStatusOngoing {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeSessionRepo) Complete(_ context.Context, id string, endTime time.Time, closingFuel, hours, usage, cost float64, pending bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok || s.Status != models.SessionStatusOngoing {
		return false, nil
	}
	end := endTime
	s.EndTime = &end
	s.ClosingFuel = closingFuel
	s.OperatingHours = hours
	s.TotalUsage = usage
	s.Cost = cost
	s.Status = models.SessionStatusCompleted
	s.PendingReconciliation = pending
	return true, nil
}

func (f *fakeSessionRepo) CompleteEstimated(_ context.Context, id string, cutoff, endTime time.Time, hours, usage, cost float64, note string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok || s.Status != models.SessionStatusOngoing || !s.StartTime.Before(cutoff) {
		return false, nil
	}
	end := endTime
	s.EndTime = &end
	s.OperatingHours = hours
	s.TotalUsage = usage
	s.Cost = cost
	s.Status = models.SessionStatusCompleted
	s.Estimated = true
	s.ClosureNote = note
	return true, nil
}

func (f *fakeSessionRepo) UpdateOpeningFuel(_ context.Context, id string, fuel float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return fmt.Errorf("session %s not found", id)
	}
	s.OpeningFuel = fuel
	s.PendingReconciliation = false
	return nil
}

func (f *fakeSessionRepo) UpdateClosingFuel(_ context.Context, id string, fuel, usage, cost float64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok || s.Status != models.SessionStatusCompleted || s.Estimated {
		return false, nil
	}
	s.ClosingFuel = fuel
	s.TotalUsage = usage
	s.Cost = cost
	return true, nil
}

func (f *fakeSessionRepo) AddFill(_ context.Context, id string, amount float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return fmt.Errorf("session %s not found", id)
	}
	s.TotalFill += amount
	s.FillEvents++
	return nil
}

func (f *fakeSessionRepo) ListOngoing(_ context.Context) ([]models.OperatingSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.OperatingSession
	for _, s := range f.sessions {
		if s.Status == models.SessionStatusOngoing {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeSessionRepo) ListOngoingBefore(_ context.Context, cutoff time.Time) ([]models.OperatingSession, error) {
	if f.listOngoingBeforeFn != nil {
		return f.listOngoingBeforeFn(cutoff)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.OperatingSession
	for _, s := range f.sessions {
		if s.Status == models.SessionStatusOngoing && s.StartTime.Before(cutoff) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeSessionRepo) List(_ context.Context, _ repository.SessionFilter) ([]models.OperatingSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.OperatingSession
	for _, s := range f.sessions {
		out = append(out, *s)
	}
	return out, nil
}

type fakeFillRepo struct {
	mu    sync.Mutex
	fills []models.FuelFillEvent
}

func (f *fakeFillRepo) Create(_ context.Context, fill *models.FuelFillEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fills = append(f.fills, *fill)
	return nil
}

func (f *fakeFillRepo) List(_ context.Context, _ repository.FillFilter) ([]models.FuelFillEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.FuelFillEvent(nil), f.fills...), nil
}

// fakeAnomalyRepo enforces the natural-key idempotency of the SQL upsert.
type fakeAnomalyRepo struct {
	mu   sync.Mutex
	rows map[string]*models.FuelAnomaly
	next int64
}

func newFakeAnomalyRepo() *fakeAnomalyRepo {
	return &fakeAnomalyRepo{rows: make(map[string]*models.FuelAnomaly)}
}

func anomalyKey(a *models.FuelAnomaly) string {
	return fmt.Sprintf("%s|%d|%s", a.Plate, a.AnomalyTime.UnixNano(), a.AnomalyType)
}

func (f *fakeAnomalyRepo) Upsert(_ context.Context, anomaly *models.FuelAnomaly) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := anomalyKey(anomaly)
	if _, exists := f.rows[key]; exists {
		return false, nil
	}
	f.next++
	cp := *anomaly
	cp.ID = f.next
	f.rows[key] = &cp
	anomaly.ID = f.next
	return true, nil
}

func (f *fakeAnomalyRepo) List(_ context.Context, _ repository.AnomalyFilter) ([]models.FuelAnomaly, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.FuelAnomaly
	for _, a := range f.rows {
		out = append(out, *a)
	}
	return out, nil
}

func (f *fakeAnomalyRepo) Resolve(_ context.Context, id int64, resolvedBy, notes string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.rows {
		if a.ID == id && a.Status == models.AnomalyStatusPending {
			now := time.Now().UTC()
			a.Status = models.AnomalyStatusResolved
			a.ResolvedBy = resolvedBy
			a.ResolutionNotes = notes
			a.ResolvedAt = &now
			return true, nil
		}
	}
	return false, nil
}

type fakeReadingRepo struct {
	mu       sync.Mutex
	readings []models.TelemetryReading
}

func (f *fakeReadingRepo) Insert(_ context.Context, reading *models.TelemetryReading) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readings = append(f.readings, *reading)
	return nil
}

func (f *fakeReadingRepo) ListRange(_ context.Context, plate string, from, to time.Time) ([]models.TelemetryReading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.TelemetryReading
	for _, r := range f.readings {
		if r.Plate == plate && !r.DeviceTime.Before(from) && !r.DeviceTime.After(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeVehicleRepo struct {
	vehicles map[string]*models.Vehicle
}

func (f *fakeVehicleRepo) Get(_ context.Context, plate string) (*models.Vehicle, error) {
	if f.vehicles == nil {
		return nil, nil
	}
	v, ok := f.vehicles[plate]
	if !ok {
		return nil, nil
	}
	cp := *v
	return &cp, nil
}
