package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/TakundaMabukwa/fuel-server-sub001/internal/models"
)

func testReaperConfig() ReaperConfig {
	return ReaperConfig{
		Horizon:          24 * time.Hour,
		Interval:         time.Hour,
		InitialDelay:     5 * time.Minute,
		EstimatedHours:   8,
		UsageRatePerHour: 10,
		FuelUnitCost:     22.0,
	}
}

func TestSweep_ClosesOrphanedSessions(t *testing.T) {
	t.Parallel()

	repo := newFakeSessionRepo()
	now := time.Date(2025, 6, 3, 12, 0, 0, 0, time.UTC)

	orphan := &models.OperatingSession{
		ID:        "orphan-1",
		Plate:     "ABC123",
		StartTime: now.Add(-30 * time.Hour),
		Status:    models.SessionStatusOngoing,
	}
	fresh := &models.OperatingSession{
		ID:        "fresh-1",
		Plate:     "XYZ789",
		StartTime: now.Add(-2 * time.Hour),
		Status:    models.SessionStatusOngoing,
	}
	repo.put(orphan)
	repo.put(fresh)

	reaper := NewReaper(repo, testReaperConfig(), zap.NewNop())
	reaper.now = func() time.Time { return now }

	if closed := reaper.Sweep(context.Background()); closed != 1 {
		t.Fatalf("expected 1 closed session, got %d", closed)
	}

	got := repo.get("orphan-1")
	if got.Status != models.SessionStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", got.Status)
	}
	if !got.Estimated {
		t.Fatalf("force-closed sessions must be marked estimated")
	}
	if got.OperatingHours != 8 {
		t.Fatalf("expected estimated 8h, got %.1f", got.OperatingHours)
	}
	if got.TotalUsage != 80 {
		t.Fatalf("expected estimated usage 80, got %.1f", got.TotalUsage)
	}
	if got.Cost != 80*22.0 {
		t.Fatalf("expected estimated cost, got %.2f", got.Cost)
	}
	wantEnd := orphan.StartTime.Add(8 * time.Hour)
	if got.EndTime == nil || !got.EndTime.Equal(wantEnd) {
		t.Fatalf("expected end time %v, got %v", wantEnd, got.EndTime)
	}
	if !strings.Contains(got.ClosureNote, "auto-closed") {
		t.Fatalf("expected closure note, got %q", got.ClosureNote)
	}

	if repo.get("fresh-1").Status != models.SessionStatusOngoing {
		t.Fatalf("sessions inside the horizon must be untouched")
	}
}

func TestSweep_RealOffWins(t *testing.T) {
	t.Parallel()

	repo := newFakeSessionRepo()
	now := time.Date(2025, 6, 3, 12, 0, 0, 0, time.UTC)

	// Closed between the reaper's query and its update: the conditional
	// update reports no change and the estimated figures are never applied.
	session := &models.OperatingSession{
		ID:          "raced-1",
		Plate:       "ABC123",
		StartTime:   now.Add(-30 * time.Hour),
		Status:      models.SessionStatusCompleted,
		ClosingFuel: 410,
		TotalUsage:  90,
	}
	repo.put(session)
	repo.listOngoingBeforeFn = func(time.Time) ([]models.OperatingSession, error) {
		stale := *session
		stale.Status = models.SessionStatusOngoing
		return []models.OperatingSession{stale}, nil
	}

	reaper := NewReaper(repo, testReaperConfig(), zap.NewNop())
	reaper.now = func() time.Time { return now }

	if closed := reaper.Sweep(context.Background()); closed != 0 {
		t.Fatalf("expected no sessions closed, got %d", closed)
	}
	got := repo.get("raced-1")
	if got.Estimated || got.TotalUsage != 90 {
		t.Fatalf("real close must not be overwritten: %+v", got)
	}
}

func TestSweep_EmptyStore(t *testing.T) {
	t.Parallel()

	reaper := NewReaper(newFakeSessionRepo(), testReaperConfig(), zap.NewNop())
	if closed := reaper.Sweep(context.Background()); closed != 0 {
		t.Fatalf("expected 0, got %d", closed)
	}
}
