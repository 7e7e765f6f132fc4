package service

import (
	"time"

	"github.com/TakundaMabukwa/fuel-server-sub001/internal/models"
	"github.com/TakundaMabukwa/fuel-server-sub001/internal/telemetry"
)

// VehicleState is the in-memory processing state for one plate. It is owned
// exclusively by the plate's dispatcher worker, so no locking is needed on
// the fields themselves.
type VehicleState struct {
	Plate string

	// Session is the ONGOING session, nil while IDLE.
	Session *models.OperatingSession

	// Debounce timestamps, in device time.
	LastOnSignal  time.Time
	LastOffSignal time.Time

	// LastSignal is the effective engine signal; UNKNOWN readings leave it as is.
	LastSignal models.StatusSignal

	// LastReading is the previous fuel-bearing reading, for pair detectors.
	LastReading *models.TelemetryReading

	// Buffer holds recent fuel readings for boundary resolution.
	Buffer *telemetry.ReadingBuffer

	// OpeningDelta is the |device_time - anchor| of the currently assigned
	// opening fuel; a later reading with a smaller delta replaces it.
	OpeningDelta time.Duration

	// Closed tracks the most recently completed session while its closing
	// boundary is still revisable.
	Closed *ClosedSession
}

// ClosedSession is a completed session inside its reconciliation horizon:
// readings whose device time lands closer to the OFF anchor may still revise
// the closing fuel.
type ClosedSession struct {
	Session *models.OperatingSession
	Anchor  time.Time
	Delta   time.Duration
	Pending bool
}

// NewVehicleState builds state for a plate.
func NewVehicleState(plate string, bufferSize int, window time.Duration) *VehicleState {
	return &VehicleState{
		Plate:      plate,
		LastSignal: models.SignalUnknown,
		Buffer:     telemetry.NewReadingBuffer(bufferSize, window),
	}
}
