package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/TakundaMabukwa/fuel-server-sub001/internal/models"
	"github.com/TakundaMabukwa/fuel-server-sub001/internal/repository"
)

// SessionConfig tunes the per-plate state machine. All values come from
// configuration, not hard-coded policy.
type SessionConfig struct {
	Debounce       time.Duration
	MinDuration    time.Duration
	BoundaryWindow time.Duration
	BufferSize     int
	FuelUnitCost   float64
	OrphanHorizon  time.Duration
}

// SessionService implements the IDLE <-> RUNNING state machine per plate.
// It is called only from the plate's worker, so transitions for one plate
// are never evaluated concurrently against stale state.
type SessionService struct {
	repo     repository.SessionRepo
	vehicles repository.VehicleRepo
	cfg      SessionConfig
	logger   *zap.Logger
}

// NewSessionService builds service.
func NewSessionService(repo repository.SessionRepo, vehicles repository.VehicleRepo, cfg SessionConfig, logger *zap.Logger) *SessionService {
	return &SessionService{
		repo:     repo,
		vehicles: vehicles,
		cfg:      cfg,
		logger:   logger,
	}
}

// NewVehicleState builds fresh per-plate state with this service's buffer settings.
func (s *SessionService) NewVehicleState(plate string) *VehicleState {
	return NewVehicleState(plate, s.cfg.BufferSize, s.cfg.BoundaryWindow)
}

// HandleOn processes an ON signal at the reading's device time.
func (s *SessionService) HandleOn(ctx context.Context, st *VehicleState, r *models.TelemetryReading) error {
	now := r.DeviceTime

	if st.Session != nil {
		// Already RUNNING. Refresh the debounce timestamp so a duplicate ON
		// cannot race a second session into existence.
		st.LastOnSignal = now

		// A session the reaper closed behind our back would wedge the plate
		// in RUNNING forever; re-check the store once the session is older
		// than the orphan horizon.
		if s.cfg.OrphanHorizon > 0 && now.Sub(st.Session.StartTime) > s.cfg.OrphanHorizon {
			ongoing, err := s.repo.FindOngoing(ctx, st.Plate)
			if err != nil {
				return fmt.Errorf("recheck ongoing: %w", err)
			}
			if ongoing == nil {
				s.logger.Info("stale in-memory session was closed externally, resetting",
					zap.String("plate", st.Plate), zap.String("session_id", st.Session.ID))
				st.Session = nil
				st.LastOnSignal = time.Time{}
				return s.HandleOn(ctx, st, r)
			}
		}
		return nil
	}

	if !st.LastOnSignal.IsZero() && now.Sub(st.LastOnSignal) < s.cfg.Debounce {
		s.logger.Debug("on signal debounced",
			zap.String("plate", st.Plate),
			zap.Time("device_time", now),
			zap.Time("last_on", st.LastOnSignal))
		return nil
	}

	// Invariant guard: the worker serializes per-plate processing, so this
	// query-then-create is a single logical step for the plate.
	existing, err := s.repo.FindOngoing(ctx, st.Plate)
	if err != nil {
		return fmt.Errorf("find ongoing: %w", err)
	}
	if existing != nil {
		s.logger.Warn("ongoing session already exists, adopting",
			zap.String("plate", st.Plate), zap.String("session_id", existing.ID))
		st.Session = existing
		st.LastOnSignal = now
		return nil
	}

	session := &models.OperatingSession{
		ID:        uuid.NewString(),
		Plate:     st.Plate,
		StartTime: now,
		Status:    models.SessionStatusOngoing,
	}

	if s.vehicles != nil {
		vehicle, err := s.vehicles.Get(ctx, st.Plate)
		if err != nil {
			s.logger.Warn("vehicle registry lookup failed", zap.String("plate", st.Plate), zap.Error(err))
		} else if vehicle != nil {
			session.CostCode = vehicle.CostCode
			session.Company = vehicle.Company
		}
	}

	var openingDelta time.Duration
	if boundary, ok := st.Buffer.ClosestTo(now); ok {
		session.OpeningFuel = boundary.Fuel()
		openingDelta = absDuration(boundary.DeviceTime.Sub(now))
	} else {
		// No reading near the transition: record the boundary as unavailable
		// and flag the session instead of assigning a wrong value.
		session.OpeningFuel = 0
		session.PendingReconciliation = true
	}

	if err := s.repo.Create(ctx, session); err != nil {
		return err
	}

	st.Session = session
	st.OpeningDelta = openingDelta
	st.LastOnSignal = now
	st.Closed = nil

	s.logger.Info("session opened",
		zap.String("plate", st.Plate),
		zap.String("session_id", session.ID),
		zap.Time("start", session.StartTime),
		zap.Float64("opening_fuel", session.OpeningFuel),
		zap.Bool("pending_reconciliation", session.PendingReconciliation))
	return nil
}

// HandleOff processes an OFF signal at the reading's device time.
func (s *SessionService) HandleOff(ctx context.Context, st *VehicleState, r *models.TelemetryReading) error {
	now := r.DeviceTime

	if st.Session == nil {
		s.logger.Debug("off signal while idle, ignored", zap.String("plate", st.Plate))
		return nil
	}

	session := st.Session
	duration := now.Sub(session.StartTime)
	if duration < s.cfg.MinDuration {
		// Signal noise: the session stays ONGOING untouched.
		s.logger.Debug("off signal below minimum duration, discarded",
			zap.String("plate", st.Plate),
			zap.String("session_id", session.ID),
			zap.Duration("duration", duration))
		return nil
	}

	var (
		closingFuel  float64
		closingDelta time.Duration
		pending      bool
	)
	if boundary, ok := st.Buffer.ClosestTo(now); ok {
		closingFuel = boundary.Fuel()
		closingDelta = absDuration(boundary.DeviceTime.Sub(now))
	} else {
		pending = true
	}
	pending = pending || session.PendingReconciliation

	hours := duration.Hours()
	usage := 0.0
	if !pending {
		usage = session.OpeningFuel - closingFuel
		if usage < 0 {
			usage = 0
		}
	}
	cost := usage * s.cfg.FuelUnitCost

	changed, err := s.repo.Complete(ctx, session.ID, now, closingFuel, hours, usage, cost, pending)
	if err != nil {
		return err
	}
	if !changed {
		// The reaper (or another writer) already closed this row; the store
		// wins, drop the in-memory copy.
		s.logger.Warn("session already closed externally",
			zap.String("plate", st.Plate), zap.String("session_id", session.ID))
		st.Session = nil
		st.LastOffSignal = now
		return nil
	}

	endTime := now
	session.EndTime = &endTime
	session.ClosingFuel = closingFuel
	session.OperatingHours = hours
	session.TotalUsage = usage
	session.Cost = cost
	session.Status = models.SessionStatusCompleted
	session.PendingReconciliation = pending

	st.Session = nil
	st.LastOffSignal = now
	st.Closed = &ClosedSession{
		Session: session,
		Anchor:  now,
		Delta:   closingDelta,
		Pending: pending,
	}

	s.logger.Info("session completed",
		zap.String("plate", st.Plate),
		zap.String("session_id", session.ID),
		zap.Float64("operating_hours", hours),
		zap.Float64("total_usage", usage),
		zap.Bool("pending_reconciliation", pending))
	return nil
}

// ReviseBoundaries re-resolves boundary fuel values when a newly arrived
// reading sits closer in device time to a transition anchor than the value
// currently assigned. Opening fuel is revisable while the session is open;
// closing fuel while the completed session is inside the boundary window of
// its OFF anchor.
func (s *SessionService) ReviseBoundaries(ctx context.Context, st *VehicleState, r *models.TelemetryReading) {
	if !r.HasFuel {
		return
	}

	if session := st.Session; session != nil {
		dist := absDuration(r.DeviceTime.Sub(session.StartTime))
		if dist <= s.cfg.BoundaryWindow && (session.PendingReconciliation || dist < st.OpeningDelta) {
			if err := s.repo.UpdateOpeningFuel(ctx, session.ID, r.Fuel()); err != nil {
				s.logger.Warn("opening fuel revision failed",
					zap.String("plate", st.Plate), zap.String("session_id", session.ID), zap.Error(err))
			} else {
				session.OpeningFuel = r.Fuel()
				session.PendingReconciliation = false
				st.OpeningDelta = dist
				s.logger.Debug("opening fuel revised",
					zap.String("plate", st.Plate),
					zap.String("session_id", session.ID),
					zap.Float64("opening_fuel", session.OpeningFuel))
			}
		}
	}

	closed := st.Closed
	if closed == nil {
		return
	}
	if r.DeviceTime.After(closed.Anchor.Add(s.cfg.BoundaryWindow)) {
		// Past the horizon: the closing value is final.
		st.Closed = nil
		return
	}
	dist := absDuration(r.DeviceTime.Sub(closed.Anchor))
	if dist > s.cfg.BoundaryWindow || (!closed.Pending && dist >= closed.Delta) {
		return
	}

	session := closed.Session
	closingFuel := r.Fuel()
	usage := 0.0
	if !session.PendingReconciliation {
		usage = session.OpeningFuel - closingFuel
		if usage < 0 {
			usage = 0
		}
	}
	cost := usage * s.cfg.FuelUnitCost

	changed, err := s.repo.UpdateClosingFuel(ctx, session.ID, closingFuel, usage, cost)
	if err != nil {
		s.logger.Warn("closing fuel revision failed",
			zap.String("plate", st.Plate), zap.String("session_id", session.ID), zap.Error(err))
		return
	}
	if !changed {
		st.Closed = nil
		return
	}
	session.ClosingFuel = closingFuel
	session.TotalUsage = usage
	session.Cost = cost
	closed.Delta = dist
	closed.Pending = false
	s.logger.Debug("closing fuel revised",
		zap.String("plate", st.Plate),
		zap.String("session_id", session.ID),
		zap.Float64("closing_fuel", closingFuel))
}

// RegisterFill adds a detected fill to the plate's ONGOING session tally, if
// any, and returns the session id the fill was linked to.
func (s *SessionService) RegisterFill(ctx context.Context, st *VehicleState, amount float64) (string, error) {
	if st.Session == nil {
		return "", nil
	}
	if err := s.repo.AddFill(ctx, st.Session.ID, amount); err != nil {
		return "", err
	}
	st.Session.TotalFill += amount
	st.Session.FillEvents++
	return st.Session.ID, nil
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
