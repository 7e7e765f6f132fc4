package models

import "time"

// Anomaly types.
const (
	AnomalyFilledWhileOn      = "FILLED_WHILE_ON"
	AnomalyPossibleTheft      = "POSSIBLE_THEFT"
	AnomalyPossibleSpillage   = "POSSIBLE_SPILLAGE"
	AnomalyUnusualConsumption = "UNUSUAL_CONSUMPTION"
	AnomalyFuelTheft          = "FUEL_THEFT"
)

// Anomaly severities.
const (
	SeverityMedium = "MEDIUM"
	SeverityHigh   = "HIGH"
)

// Anomaly statuses.
const (
	AnomalyStatusPending  = "pending"
	AnomalyStatusResolved = "resolved"
)

// FuelAnomaly records a suspicious fuel movement detected over a consecutive
// reading pair. The natural key (plate, anomaly_time, anomaly_type) makes
// re-processing idempotent.
type FuelAnomaly struct {
	ID              int64      `db:"id" json:"id"`
	Plate           string     `db:"plate" json:"plate"`
	AnomalyType     string     `db:"anomaly_type" json:"anomaly_type"`
	AnomalyTime     time.Time  `db:"anomaly_time" json:"anomaly_time"`
	FuelBefore      float64    `db:"fuel_before" json:"fuel_before"`
	FuelAfter       float64    `db:"fuel_after" json:"fuel_after"`
	Difference      float64    `db:"difference" json:"difference"`
	Severity        string     `db:"severity" json:"severity"`
	Status          string     `db:"status" json:"status"`
	ResolvedBy      string     `db:"resolved_by" json:"resolved_by,omitempty"`
	ResolutionNotes string     `db:"resolution_notes" json:"resolution_notes,omitempty"`
	ResolvedAt      *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}
