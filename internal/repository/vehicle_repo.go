package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/TakundaMabukwa/fuel-server-sub001/internal/models"
)

// VehicleRepository looks up registered vehicles.
type VehicleRepository struct {
	db *sql.DB
}

// NewVehicleRepository returns repository.
func NewVehicleRepository(db *sql.DB) *VehicleRepository {
	return &VehicleRepository{db: db}
}

// Get returns the registry row for a plate, or nil when unregistered.
func (r *VehicleRepository) Get(ctx context.Context, plate string) (*models.Vehicle, error) {
	const query = `
		SELECT plate, cost_code, company, created_at
		FROM vehicles
		WHERE plate = $1
	`
	var v models.Vehicle
	err := r.db.QueryRowContext(ctx, query, plate).Scan(&v.Plate, &v.CostCode, &v.Company, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}
