package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/TakundaMabukwa/fuel-server-sub001/internal/models"
	"github.com/TakundaMabukwa/fuel-server-sub001/internal/repository"
)

// AnomalyThresholds holds the rule thresholds, litres unless noted.
type AnomalyThresholds struct {
	FilledWhileOnMin float64
	FilledWhileOnMax float64
	TheftDrop        float64
	SpillageDrop     float64
	UnusualDrop      float64

	// Time-aware rapid-drop (FUEL_THEFT) rule.
	RapidDrop        float64
	RapidDropRatio   float64
	RapidDropPerMin  float64
	RapidDropWindow  time.Duration
}

// ReadingPair is a pair of consecutive fuel-bearing readings for one plate,
// adjacent in device time, with the effective engine signal at the time of
// the current reading.
type ReadingPair struct {
	Prev   models.TelemetryReading
	Cur    models.TelemetryReading
	Signal models.StatusSignal
}

// Delta returns current minus previous fuel.
func (p ReadingPair) Delta() float64 {
	return p.Cur.Fuel() - p.Prev.Fuel()
}

// Elapsed returns the device-time gap between the readings.
func (p ReadingPair) Elapsed() time.Duration {
	return p.Cur.DeviceTime.Sub(p.Prev.DeviceTime)
}

type anomalyRule struct {
	Type     string
	Severity string
	Matches  func(p ReadingPair, t AnomalyThresholds) bool
}

// anomalyRules is the single canonical rule set. Streaming evaluation and
// retrospective replay both walk this table, so the two modes can never
// disagree. Several rules may fire for one pair; each produces its own record.
var anomalyRules = []anomalyRule{
	{
		Type:     models.AnomalyFilledWhileOn,
		Severity: models.SeverityMedium,
		Matches: func(p ReadingPair, t AnomalyThresholds) bool {
			d := p.Delta()
			return p.Signal == models.SignalOn && d >= t.FilledWhileOnMin && d < t.FilledWhileOnMax
		},
	},
	{
		Type:     models.AnomalyPossibleTheft,
		Severity: models.SeverityHigh,
		Matches: func(p ReadingPair, t AnomalyThresholds) bool {
			return p.Signal == models.SignalOff && p.Delta() < -t.TheftDrop
		},
	},
	{
		Type:     models.AnomalyPossibleSpillage,
		Severity: models.SeverityHigh,
		Matches: func(p ReadingPair, t AnomalyThresholds) bool {
			return p.Signal == models.SignalOn && p.Delta() < -t.SpillageDrop
		},
	},
	{
		Type:     models.AnomalyUnusualConsumption,
		Severity: models.SeverityMedium,
		Matches: func(p ReadingPair, t AnomalyThresholds) bool {
			return p.Delta() < -t.UnusualDrop
		},
	},
	{
		Type:     models.AnomalyFuelTheft,
		Severity: models.SeverityHigh,
		Matches: func(p ReadingPair, t AnomalyThresholds) bool {
			drop := -p.Delta()
			if drop < t.RapidDrop {
				return false
			}
			before := p.Prev.Fuel()
			if before <= 0 || drop/before < t.RapidDropRatio {
				return false
			}
			elapsed := p.Elapsed()
			if elapsed <= 0 || elapsed > t.RapidDropWindow {
				return false
			}
			return drop/elapsed.Minutes() >= t.RapidDropPerMin
		},
	},
}

// AnomalyClassifier evaluates reading pairs against the rule table, in
// streaming mode (per arriving reading) or batch mode (replaying a stored
// window).
type AnomalyClassifier struct {
	repo       repository.AnomalyRepo
	readings   repository.ReadingRepo
	thresholds AnomalyThresholds
	logger     *zap.Logger
}

// NewAnomalyClassifier builds classifier.
func NewAnomalyClassifier(repo repository.AnomalyRepo, readings repository.ReadingRepo, thresholds AnomalyThresholds, logger *zap.Logger) *AnomalyClassifier {
	return &AnomalyClassifier{
		repo:       repo,
		readings:   readings,
		thresholds: thresholds,
		logger:     logger,
	}
}

// Evaluate returns the anomalies the rule table produces for a pair, without
// persisting anything.
func (c *AnomalyClassifier) Evaluate(pair ReadingPair) []models.FuelAnomaly {
	var found []models.FuelAnomaly
	for _, rule := range anomalyRules {
		if !rule.Matches(pair, c.thresholds) {
			continue
		}
		found = append(found, models.FuelAnomaly{
			Plate:       pair.Cur.Plate,
			AnomalyType: rule.Type,
			AnomalyTime: pair.Cur.DeviceTime,
			FuelBefore:  pair.Prev.Fuel(),
			FuelAfter:   pair.Cur.Fuel(),
			Difference:  pair.Delta(),
			Severity:    rule.Severity,
			Status:      models.AnomalyStatusPending,
		})
	}
	return found
}

// Process evaluates a pair and upserts each firing rule's record. Returns the
// anomalies that were newly created (replays produce none). A failed upsert
// is logged and does not block the remaining rules.
func (c *AnomalyClassifier) Process(ctx context.Context, pair ReadingPair) ([]models.FuelAnomaly, error) {
	var (
		created []models.FuelAnomaly
		errs    []error
	)
	for _, anomaly := range c.Evaluate(pair) {
		inserted, err := c.repo.Upsert(ctx, &anomaly)
		if err != nil {
			c.logger.Warn("anomaly upsert failed",
				zap.String("plate", anomaly.Plate),
				zap.String("type", anomaly.AnomalyType),
				zap.Error(err))
			errs = append(errs, err)
			continue
		}
		if inserted {
			c.logger.Info("fuel anomaly detected",
				zap.String("plate", anomaly.Plate),
				zap.String("type", anomaly.AnomalyType),
				zap.String("severity", anomaly.Severity),
				zap.Float64("difference", anomaly.Difference))
			created = append(created, anomaly)
		}
	}
	return created, errors.Join(errs...)
}

// ScanRange replays a plate's archived readings over [from, to] through the
// same rule table and returns how many anomaly rows were created. Existing
// rows are skipped by the natural-key upsert.
func (c *AnomalyClassifier) ScanRange(ctx context.Context, plate string, from, to time.Time) (int, error) {
	readings, err := c.readings.ListRange(ctx, plate, from, to)
	if err != nil {
		return 0, err
	}

	var (
		prev    *models.TelemetryReading
		signal  = models.SignalUnknown
		created int
	)
	for i := range readings {
		cur := &readings[i]
		if cur.Signal != models.SignalUnknown {
			signal = cur.Signal
		}
		if !cur.HasFuel {
			continue
		}
		if prev != nil {
			pair := ReadingPair{Prev: *prev, Cur: *cur, Signal: signal}
			inserted, err := c.Process(ctx, pair)
			if err != nil {
				c.logger.Warn("batch scan pair failed", zap.String("plate", plate), zap.Error(err))
			}
			created += len(inserted)
		}
		prev = cur
	}
	return created, nil
}
