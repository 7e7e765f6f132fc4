package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/TakundaMabukwa/fuel-server-sub001/internal/repository"
)

// ReaperConfig tunes the orphaned-session sweep. The estimated runtime and
// usage rate are business defaults supplied by configuration.
type ReaperConfig struct {
	Horizon          time.Duration
	Interval         time.Duration
	InitialDelay     time.Duration
	EstimatedHours   float64
	UsageRatePerHour float64
	FuelUnitCost     float64
}

// Reaper force-closes sessions stuck ONGOING past the horizon. It runs on
// its own timer, independent of the telemetry stream, and relies on the
// repository's conditional update so it can never clobber a session a
// genuine OFF signal completed concurrently.
type Reaper struct {
	repo   repository.SessionRepo
	cfg    ReaperConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewReaper builds reaper.
func NewReaper(repo repository.SessionRepo, cfg ReaperConfig, logger *zap.Logger) *Reaper {
	return &Reaper{
		repo:   repo,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Run executes the sweep after an initial delay and then on every interval
// tick, until the context is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(r.cfg.InitialDelay):
	}
	r.Sweep(ctx)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep closes every session ONGOING since before the horizon with estimated
// figures. Failures are isolated per row; one failed close never aborts the
// rest of the sweep. Returns the number of sessions closed.
func (r *Reaper) Sweep(ctx context.Context) int {
	now := r.now().UTC()
	cutoff := now.Add(-r.cfg.Horizon)

	stale, err := r.repo.ListOngoingBefore(ctx, cutoff)
	if err != nil {
		r.logger.Error("reaper query failed", zap.Error(err))
		return 0
	}
	if len(stale) == 0 {
		return 0
	}

	usage := r.cfg.EstimatedHours * r.cfg.UsageRatePerHour
	cost := usage * r.cfg.FuelUnitCost
	note := fmt.Sprintf("auto-closed: orphaned session, estimated %.1fh runtime at %.1f L/h",
		r.cfg.EstimatedHours, r.cfg.UsageRatePerHour)

	closed := 0
	for _, session := range stale {
		endTime := session.StartTime.Add(time.Duration(r.cfg.EstimatedHours * float64(time.Hour)))
		changed, err := r.repo.CompleteEstimated(ctx, session.ID, cutoff, endTime,
			r.cfg.EstimatedHours, usage, cost, note)
		if err != nil {
			r.logger.Warn("reaper close failed",
				zap.String("plate", session.Plate),
				zap.String("session_id", session.ID),
				zap.Error(err))
			continue
		}
		if !changed {
			// A genuine OFF finalized the row between query and update.
			r.logger.Debug("session completed before reaper close",
				zap.String("session_id", session.ID))
			continue
		}
		closed++
		r.logger.Info("orphaned session force-closed",
			zap.String("plate", session.Plate),
			zap.String("session_id", session.ID),
			zap.Time("start", session.StartTime))
	}
	return closed
}
