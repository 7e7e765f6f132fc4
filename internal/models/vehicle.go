package models

import "time"

// Vehicle is a registry row mapping a plate to its billing attribution.
type Vehicle struct {
	Plate     string    `db:"plate" json:"plate"`
	CostCode  string    `db:"cost_code" json:"cost_code"`
	Company   string    `db:"company" json:"company"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
