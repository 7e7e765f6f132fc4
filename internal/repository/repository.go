package repository

import (
	"context"
	"time"

	"github.com/TakundaMabukwa/fuel-server-sub001/internal/models"
)

// SessionFilter narrows session queries.
type SessionFilter struct {
	Plate    string
	CostCode string
	Status   string
	From     time.Time
	To       time.Time
	Limit    int
}

// FillFilter narrows fill-event queries.
type FillFilter struct {
	Plate string
	From  time.Time
	To    time.Time
	Limit int
}

// AnomalyFilter narrows anomaly queries.
type AnomalyFilter struct {
	Plate  string
	Status string
	From   time.Time
	To     time.Time
	Limit  int
}

// SessionRepo persists operating sessions. Mutations that race with other
// writers (OFF vs reaper) are conditional and report whether a row changed.
type SessionRepo interface {
	Create(ctx context.Context, session *models.OperatingSession) error
	FindOngoing(ctx context.Context, plate string) (*models.OperatingSession, error)
	Complete(ctx context.Context, id string, endTime time.Time, closingFuel, hours, usage, cost float64, pending bool) (bool, error)
	CompleteEstimated(ctx context.Context, id string, cutoff, endTime time.Time, hours, usage, cost float64, note string) (bool, error)
	UpdateOpeningFuel(ctx context.Context, id string, fuel float64) error
	UpdateClosingFuel(ctx context.Context, id string, fuel, usage, cost float64) (bool, error)
	AddFill(ctx context.Context, id string, amount float64) error
	ListOngoing(ctx context.Context) ([]models.OperatingSession, error)
	ListOngoingBefore(ctx context.Context, cutoff time.Time) ([]models.OperatingSession, error)
	List(ctx context.Context, filter SessionFilter) ([]models.OperatingSession, error)
}

// FillRepo persists fuel fill events.
type FillRepo interface {
	Create(ctx context.Context, fill *models.FuelFillEvent) error
	List(ctx context.Context, filter FillFilter) ([]models.FuelFillEvent, error)
}

// AnomalyRepo persists fuel anomalies with idempotent insertion by the
// natural key (plate, anomaly_time, anomaly_type).
type AnomalyRepo interface {
	Upsert(ctx context.Context, anomaly *models.FuelAnomaly) (bool, error)
	List(ctx context.Context, filter AnomalyFilter) ([]models.FuelAnomaly, error)
	Resolve(ctx context.Context, id int64, resolvedBy, notes string) (bool, error)
}

// ReadingRepo archives normalized readings for replay and startup warmup.
type ReadingRepo interface {
	Insert(ctx context.Context, reading *models.TelemetryReading) error
	ListRange(ctx context.Context, plate string, from, to time.Time) ([]models.TelemetryReading, error)
}

// VehicleRepo looks up billing attribution for a plate.
type VehicleRepo interface {
	Get(ctx context.Context, plate string) (*models.Vehicle, error)
}
