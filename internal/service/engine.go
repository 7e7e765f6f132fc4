package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/TakundaMabukwa/fuel-server-sub001/internal/models"
	"github.com/TakundaMabukwa/fuel-server-sub001/internal/repository"
)

// LiveMirror pushes live per-vehicle state to a cache for downstream
// consumers. Implemented by the redis live store; optional.
type LiveMirror interface {
	UpdateVehicleState(ctx context.Context, reading *models.TelemetryReading, sessionID string) error
	CacheOngoing(ctx context.Context, session *models.OperatingSession) error
	DropOngoing(ctx context.Context, plate string) error
	PublishAnomaly(ctx context.Context, anomaly *models.FuelAnomaly) error
}

// Engine correlates the telemetry stream into sessions, fills and anomalies.
// HandleReading is invoked by the per-plate dispatcher worker, which
// guarantees sequential processing per plate; the states map itself is the
// only shared structure and is guarded by the mutex.
type Engine struct {
	mu     sync.Mutex
	states map[string]*VehicleState

	sessions  *SessionService
	fills     *FillDetector
	anomalies *AnomalyClassifier
	readings  repository.ReadingRepo
	live      LiveMirror
	logger    *zap.Logger
}

// NewEngine wires the correlation engine. live may be nil.
func NewEngine(
	sessions *SessionService,
	fills *FillDetector,
	anomalies *AnomalyClassifier,
	readings repository.ReadingRepo,
	live LiveMirror,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		states:    make(map[string]*VehicleState),
		sessions:  sessions,
		fills:     fills,
		anomalies: anomalies,
		readings:  readings,
		live:      live,
		logger:    logger,
	}
}

// Rebuild primes in-memory state from the record store. The store is the
// source of truth across restarts: every ONGOING session becomes a RUNNING
// plate again.
func (e *Engine) Rebuild(ctx context.Context) error {
	ongoing, err := e.sessions.repo.ListOngoing(ctx)
	if err != nil {
		return err
	}
	for i := range ongoing {
		session := ongoing[i]
		st := e.state(session.Plate)
		st.Session = &session
		st.LastOnSignal = session.StartTime
		st.LastSignal = models.SignalOn
	}
	if len(ongoing) > 0 {
		e.logger.Info("rebuilt vehicle state from record store", zap.Int("ongoing_sessions", len(ongoing)))
	}
	return nil
}

// HandleReading processes one normalized reading end to end: archive, buffer,
// boundary revision, fill and anomaly detection, session transition, live
// mirror. Persistence failures are logged per concern; a failure for this
// plate never touches any other plate's state.
func (e *Engine) HandleReading(ctx context.Context, r *models.TelemetryReading) {
	st := e.state(r.Plate)

	if e.readings != nil {
		if err := e.readings.Insert(ctx, r); err != nil {
			e.logger.Warn("reading archive failed", zap.String("plate", r.Plate), zap.Error(err))
		}
	}

	if r.HasFuel {
		st.Buffer.Add(*r)
	}

	e.sessions.ReviseBoundaries(ctx, st, r)

	if r.Signal != models.SignalUnknown {
		st.LastSignal = r.Signal
	}

	if r.HasFuel {
		e.detectPair(ctx, st, r)
	}

	before := sessionID(st)
	switch r.Signal {
	case models.SignalOn:
		if err := e.sessions.HandleOn(ctx, st, r); err != nil {
			e.logger.Error("on transition failed", zap.String("plate", r.Plate), zap.Error(err))
		}
	case models.SignalOff:
		if err := e.sessions.HandleOff(ctx, st, r); err != nil {
			e.logger.Error("off transition failed", zap.String("plate", r.Plate), zap.Error(err))
		}
	}
	e.syncLiveSession(ctx, st, before)

	if r.HasFuel {
		st.LastReading = r
	}

	if e.live != nil {
		if err := e.live.UpdateVehicleState(ctx, r, sessionID(st)); err != nil {
			e.logger.Warn("live state update failed", zap.String("plate", r.Plate), zap.Error(err))
		}
	}
}

// detectPair runs the engine-state-independent detectors over the previous
// and current fuel readings.
func (e *Engine) detectPair(ctx context.Context, st *VehicleState, r *models.TelemetryReading) {
	prev := st.LastReading
	if prev == nil {
		return
	}

	if fill := e.fills.Detect(prev, r); fill != nil {
		linkedID, err := e.sessions.RegisterFill(ctx, st, fill.FillAmount)
		if err != nil {
			e.logger.Warn("fill tally failed", zap.String("plate", r.Plate), zap.Error(err))
		}
		if err := e.fills.Record(ctx, fill, linkedID); err != nil {
			e.logger.Warn("fill record failed", zap.String("plate", r.Plate), zap.Error(err))
		}
	}

	pair := ReadingPair{Prev: *prev, Cur: *r, Signal: st.LastSignal}
	created, err := e.anomalies.Process(ctx, pair)
	if err != nil {
		e.logger.Warn("anomaly processing incomplete", zap.String("plate", r.Plate), zap.Error(err))
	}
	if e.live != nil {
		for i := range created {
			if err := e.live.PublishAnomaly(ctx, &created[i]); err != nil {
				e.logger.Warn("anomaly publish failed", zap.String("plate", r.Plate), zap.Error(err))
			}
		}
	}
}

// syncLiveSession keeps the cached ONGOING session in step with transitions.
func (e *Engine) syncLiveSession(ctx context.Context, st *VehicleState, before string) {
	if e.live == nil {
		return
	}
	after := sessionID(st)
	if before == after {
		return
	}
	var err error
	if after != "" {
		err = e.live.CacheOngoing(ctx, st.Session)
	} else {
		err = e.live.DropOngoing(ctx, st.Plate)
	}
	if err != nil {
		e.logger.Warn("ongoing session cache sync failed", zap.String("plate", st.Plate), zap.Error(err))
	}
}

func (e *Engine) state(plate string) *VehicleState {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.states[plate]
	if !ok {
		st = e.sessions.NewVehicleState(plate)
		e.states[plate] = st
	}
	return st
}

func sessionID(st *VehicleState) string {
	if st.Session == nil {
		return ""
	}
	return st.Session.ID
}
