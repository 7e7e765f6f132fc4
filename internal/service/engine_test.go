package service

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/TakundaMabukwa/fuel-server-sub001/internal/models"
	"github.com/TakundaMabukwa/fuel-server-sub001/internal/repository"
)

func newTestEngine(t *testing.T, cfg SessionConfig) (*Engine, *fakeSessionRepo, *fakeFillRepo, *fakeAnomalyRepo) {
	t.Helper()
	sessionRepo := newFakeSessionRepo()
	fillRepo := &fakeFillRepo{}
	anomalyRepo := newFakeAnomalyRepo()
	readingRepo := &fakeReadingRepo{}

	sessions := NewSessionService(sessionRepo, &fakeVehicleRepo{}, cfg, zap.NewNop())
	fills := NewFillDetector(fillRepo, testFillConfig(), zap.NewNop())
	anomalies := NewAnomalyClassifier(anomalyRepo, readingRepo, testThresholds(), zap.NewNop())

	return NewEngine(sessions, fills, anomalies, readingRepo, nil, zap.NewNop()), sessionRepo, fillRepo, anomalyRepo
}

func TestEngine_SessionLifecycleWithOutOfOrderBoundaries(t *testing.T) {
	t.Parallel()

	cfg := testSessionConfig()
	cfg.Debounce = time.Minute
	cfg.MinDuration = 2 * time.Minute

	engine, sessionRepo, _, _ := newTestEngine(t, cfg)
	ctx := context.Background()
	start := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

	// ON with no fuel reading yet: the session opens pending reconciliation.
	engine.HandleReading(ctx, &models.TelemetryReading{
		Plate: "ABC123", DeviceTime: start, StatusText: "PTO ON", Signal: models.SignalOn,
	})
	ongoing, err := sessionRepo.FindOngoing(ctx, "ABC123")
	if err != nil || ongoing == nil {
		t.Fatalf("expected an ongoing session, err=%v", err)
	}
	if !ongoing.PendingReconciliation {
		t.Fatalf("expected pending opening boundary")
	}
	id := ongoing.ID

	// Fuel readings arrive out of order: device time +5s first, then +2s.
	// The +2s reading is closer to the anchor and must own the boundary.
	engine.HandleReading(ctx, &models.TelemetryReading{
		Plate: "ABC123", DeviceTime: start.Add(5 * time.Second), FuelLevel: 500, HasFuel: true, Signal: models.SignalUnknown,
	})
	if got := sessionRepo.get(id); got.OpeningFuel != 500 || got.PendingReconciliation {
		t.Fatalf("expected provisional opening 500, got %+v", got)
	}
	engine.HandleReading(ctx, &models.TelemetryReading{
		Plate: "ABC123", DeviceTime: start.Add(2 * time.Second), FuelLevel: 505, HasFuel: true, Signal: models.SignalUnknown,
	})
	if got := sessionRepo.get(id); got.OpeningFuel != 505 {
		t.Fatalf("closer device time must win the boundary, got %.0f", got.OpeningFuel)
	}

	// OFF past the minimum duration completes the session.
	engine.HandleReading(ctx, &models.TelemetryReading{
		Plate: "ABC123", DeviceTime: start.Add(305 * time.Second), StatusText: "PTO OFF", Signal: models.SignalOff,
	})
	got := sessionRepo.get(id)
	if got.Status != models.SessionStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", got.Status)
	}
	if got.ClosingFuel != 500 {
		t.Fatalf("expected closing from nearest buffered reading (500), got %.0f", got.ClosingFuel)
	}
	if got.TotalUsage != 5 {
		t.Fatalf("expected usage 5, got %.1f", got.TotalUsage)
	}

	// A reading just after the OFF anchor revises the closing boundary.
	engine.HandleReading(ctx, &models.TelemetryReading{
		Plate: "ABC123", DeviceTime: start.Add(320 * time.Second), FuelLevel: 498, HasFuel: true, Signal: models.SignalUnknown,
	})
	got = sessionRepo.get(id)
	if got.ClosingFuel != 498 {
		t.Fatalf("expected revised closing 498, got %.0f", got.ClosingFuel)
	}
	if got.TotalUsage != 7 {
		t.Fatalf("expected recomputed usage 7, got %.1f", got.TotalUsage)
	}
}

func TestEngine_FillWhileIdleRecordedUnlinked(t *testing.T) {
	t.Parallel()

	engine, sessionRepo, fillRepo, _ := newTestEngine(t, testSessionConfig())
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

	engine.HandleReading(ctx, &models.TelemetryReading{
		Plate: "ABC123", DeviceTime: base, FuelLevel: 100, HasFuel: true, Signal: models.SignalUnknown,
	})
	engine.HandleReading(ctx, &models.TelemetryReading{
		Plate: "ABC123", DeviceTime: base.Add(10 * time.Minute), FuelLevel: 135, HasFuel: true, Signal: models.SignalUnknown,
	})

	fills, _ := fillRepo.List(ctx, repository.FillFilter{})
	if len(fills) != 1 {
		t.Fatalf("expected 1 fill event, got %d", len(fills))
	}
	if fills[0].SessionID != "" {
		t.Fatalf("fill while idle must not be linked to a session, got %q", fills[0].SessionID)
	}
	if ongoing, _ := sessionRepo.FindOngoing(ctx, "ABC123"); ongoing != nil {
		t.Fatalf("fill detection must never open a session")
	}
}

func TestEngine_FillDuringSessionTallied(t *testing.T) {
	t.Parallel()

	engine, sessionRepo, fillRepo, _ := newTestEngine(t, testSessionConfig())
	ctx := context.Background()
	start := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

	engine.HandleReading(ctx, &models.TelemetryReading{
		Plate: "ABC123", DeviceTime: start, FuelLevel: 100, HasFuel: true, StatusText: "ENGINE ON", Signal: models.SignalOn,
	})
	engine.HandleReading(ctx, &models.TelemetryReading{
		Plate: "ABC123", DeviceTime: start.Add(10 * time.Minute), FuelLevel: 180, HasFuel: true, Signal: models.SignalUnknown,
	})

	ongoing, _ := sessionRepo.FindOngoing(ctx, "ABC123")
	if ongoing == nil {
		t.Fatalf("expected an ongoing session")
	}
	if ongoing.TotalFill != 80 || ongoing.FillEvents != 1 {
		t.Fatalf("expected fill tally 80/1, got %.0f/%d", ongoing.TotalFill, ongoing.FillEvents)
	}

	fills, _ := fillRepo.List(ctx, repository.FillFilter{})
	if len(fills) != 1 || fills[0].SessionID != ongoing.ID {
		t.Fatalf("expected fill linked to session %s, got %+v", ongoing.ID, fills)
	}
}

func TestEngine_AnomalySignalFromLastEffective(t *testing.T) {
	t.Parallel()

	engine, _, _, anomalyRepo := newTestEngine(t, testSessionConfig())
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

	// OFF established, then a big drop on a position-only frame later: the
	// effective signal at detection time is still OFF.
	engine.HandleReading(ctx, &models.TelemetryReading{
		Plate: "ABC123", DeviceTime: base, FuelLevel: 400, HasFuel: true, StatusText: "ENGINE OFF", Signal: models.SignalOff,
	})
	engine.HandleReading(ctx, &models.TelemetryReading{
		Plate: "ABC123", DeviceTime: base.Add(2 * time.Hour), FuelLevel: 330, HasFuel: true, Signal: models.SignalUnknown,
	})

	anomalies, _ := anomalyRepo.List(ctx, repository.AnomalyFilter{})
	if len(anomalies) != 1 {
		t.Fatalf("expected 1 anomaly, got %d", len(anomalies))
	}
	if anomalies[0].AnomalyType != models.AnomalyPossibleTheft {
		t.Fatalf("expected POSSIBLE_THEFT, got %s", anomalies[0].AnomalyType)
	}
}

func TestEngine_RebuildRestoresOngoing(t *testing.T) {
	t.Parallel()

	cfg := testSessionConfig()
	engine, sessionRepo, _, _ := newTestEngine(t, cfg)
	ctx := context.Background()
	start := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

	sessionRepo.put(&models.OperatingSession{
		ID:        "restored-1",
		Plate:     "ABC123",
		StartTime: start,
		Status:    models.SessionStatusOngoing,
	})

	if err := engine.Rebuild(ctx); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	// An OFF past the minimum duration closes the restored session without a
	// fresh ON ever being seen by this process.
	engine.HandleReading(ctx, &models.TelemetryReading{
		Plate: "ABC123", DeviceTime: start.Add(time.Hour), StatusText: "ENGINE OFF", Signal: models.SignalOff,
	})
	if got := sessionRepo.get("restored-1"); got.Status != models.SessionStatusCompleted {
		t.Fatalf("expected the restored session completed, got %s", got.Status)
	}
}
