package models

import "time"

// StatusSignal is the tri-state engine signal derived from the free-text status field.
type StatusSignal string

const (
	SignalOn      StatusSignal = "ON"
	SignalOff     StatusSignal = "OFF"
	SignalUnknown StatusSignal = "UNKNOWN"
)

// TelemetryReading is a normalized telemetry frame for one vehicle.
// DeviceTime is the vehicle-reported timestamp and is authoritative for
// ordering; ReceivedTime is the arrival time and may disagree with it.
type TelemetryReading struct {
	Plate          string       `db:"plate" json:"plate"`
	DeviceTime     time.Time    `db:"device_time" json:"device_time"`
	ReceivedTime   time.Time    `db:"received_time" json:"received_time"`
	FuelLevel      float64      `db:"fuel_level" json:"fuel_level"`
	FuelVolume     float64      `db:"fuel_volume" json:"fuel_volume"`
	FuelPercentage float64      `db:"fuel_percentage" json:"fuel_percentage"`
	HasFuel        bool         `db:"has_fuel" json:"has_fuel"`
	Latitude       float64      `db:"latitude" json:"latitude"`
	Longitude      float64      `db:"longitude" json:"longitude"`
	StatusText     string       `db:"status_text" json:"status_text"`
	Signal         StatusSignal `db:"status_signal" json:"status_signal"`
}

// Fuel returns the preferred fuel value for detectors: the level sensor when
// present, otherwise the tank volume.
func (r *TelemetryReading) Fuel() float64 {
	if r.FuelLevel > 0 {
		return r.FuelLevel
	}
	return r.FuelVolume
}
