package models

import "time"

// Fill detection methods.
const (
	DetectionStatusIndicator = "STATUS_INDICATOR"
	DetectionLevelIncrease   = "LEVEL_INCREASE"
)

// FuelFillEvent records an abrupt fuel increase for a vehicle. It is an
// independent entity; SessionID links a fill to a concurrently ONGOING
// session for tally purposes only.
type FuelFillEvent struct {
	ID              string    `db:"id" json:"id"`
	Plate           string    `db:"plate" json:"plate"`
	FillTime        time.Time `db:"fill_time" json:"fill_time"`
	FuelBefore      float64   `db:"fuel_before" json:"fuel_before"`
	FuelAfter       float64   `db:"fuel_after" json:"fuel_after"`
	FillAmount      float64   `db:"fill_amount" json:"fill_amount"`
	FillPercentage  float64   `db:"fill_percentage" json:"fill_percentage"`
	DetectionMethod string    `db:"detection_method" json:"detection_method"`
	SessionID       string    `db:"session_id" json:"session_id,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}
