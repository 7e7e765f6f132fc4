package models

import "time"

// Session status values.
const (
	SessionStatusOngoing   = "ONGOING"
	SessionStatusCompleted = "COMPLETED"
)

// OperatingSession represents one generator run from an accepted ON signal to
// an accepted OFF signal (or a reaper closure). At most one ONGOING session
// exists per plate at any time.
type OperatingSession struct {
	ID                    string     `db:"id" json:"id"`
	Plate                 string     `db:"plate" json:"plate"`
	CostCode              string     `db:"cost_code" json:"cost_code"`
	Company               string     `db:"company" json:"company"`
	StartTime             time.Time  `db:"session_start_time" json:"session_start_time"`
	EndTime               *time.Time `db:"session_end_time" json:"session_end_time,omitempty"`
	OpeningFuel           float64    `db:"opening_fuel" json:"opening_fuel"`
	ClosingFuel           float64    `db:"closing_fuel" json:"closing_fuel"`
	OperatingHours        float64    `db:"operating_hours" json:"operating_hours"`
	TotalUsage            float64    `db:"total_usage" json:"total_usage"`
	TotalFill             float64    `db:"total_fill" json:"total_fill"`
	FillEvents            int        `db:"fill_events" json:"fill_events"`
	Cost                  float64    `db:"cost" json:"cost"`
	Status                string     `db:"status" json:"status"`
	PendingReconciliation bool       `db:"pending_reconciliation" json:"pending_reconciliation"`
	Estimated             bool       `db:"estimated" json:"estimated"`
	ClosureNote           string     `db:"closure_note" json:"closure_note,omitempty"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at" json:"updated_at"`
}
