package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/TakundaMabukwa/fuel-server-sub001/internal/models"
	"github.com/TakundaMabukwa/fuel-server-sub001/internal/repository"
	"github.com/TakundaMabukwa/fuel-server-sub001/internal/telemetry"
)

// DefaultFillIndicators are status phrases that mark a fill directly.
var DefaultFillIndicators = []string{"POSSIBLE FUEL FILL", "FUEL FILL", "REFUEL"}

// FillConfig tunes the fuel-fill detector.
type FillConfig struct {
	MinLiters        float64
	MinRatio         float64
	MaxGap           time.Duration
	IndicatorPhrases []string
}

// FillDetector finds abrupt fuel increases over consecutive readings for a
// plate. It runs independently of engine state and never creates or closes
// sessions.
type FillDetector struct {
	repo   repository.FillRepo
	cfg    FillConfig
	logger *zap.Logger
}

// NewFillDetector builds detector.
func NewFillDetector(repo repository.FillRepo, cfg FillConfig, logger *zap.Logger) *FillDetector {
	if len(cfg.IndicatorPhrases) == 0 {
		cfg.IndicatorPhrases = DefaultFillIndicators
	}
	return &FillDetector{repo: repo, cfg: cfg, logger: logger}
}

// Detect compares the previous and current fuel readings and returns a fill
// event when either the status indicator or the level-increase signal fires,
// whichever matches first. Returns nil when no fill is detected.
func (d *FillDetector) Detect(prev, cur *models.TelemetryReading) *models.FuelFillEvent {
	if prev == nil || !prev.HasFuel || !cur.HasFuel {
		return nil
	}

	before := prev.Fuel()
	after := cur.Fuel()
	increase := after - before

	if method := d.match(prev, cur, increase); method != "" {
		if increase < 0 {
			increase = 0
		}
		pct := 0.0
		if before > 0 {
			pct = increase / before * 100
		}
		return &models.FuelFillEvent{
			ID:              uuid.NewString(),
			Plate:           cur.Plate,
			FillTime:        cur.DeviceTime,
			FuelBefore:      before,
			FuelAfter:       after,
			FillAmount:      increase,
			FillPercentage:  pct,
			DetectionMethod: method,
		}
	}
	return nil
}

func (d *FillDetector) match(prev, cur *models.TelemetryReading, increase float64) string {
	normalized := telemetry.NormalizeStatusText(cur.StatusText)
	for _, phrase := range d.cfg.IndicatorPhrases {
		if strings.Contains(normalized, phrase) {
			return models.DetectionStatusIndicator
		}
	}

	gap := cur.DeviceTime.Sub(prev.DeviceTime)
	if gap <= 0 || gap > d.cfg.MaxGap {
		return ""
	}
	if increase < d.cfg.MinLiters {
		return ""
	}
	before := prev.Fuel()
	if before <= 0 || increase/before < d.cfg.MinRatio {
		return ""
	}
	return models.DetectionLevelIncrease
}

// Record persists a fill event, optionally linked to the session it was
// tallied against.
func (d *FillDetector) Record(ctx context.Context, fill *models.FuelFillEvent, sessionID string) error {
	fill.SessionID = sessionID
	if err := d.repo.Create(ctx, fill); err != nil {
		return err
	}
	d.logger.Info("fuel fill detected",
		zap.String("plate", fill.Plate),
		zap.Float64("fill_amount", fill.FillAmount),
		zap.String("method", fill.DetectionMethod),
		zap.String("session_id", sessionID))
	return nil
}
