package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/TakundaMabukwa/fuel-server-sub001/internal/models"
)

// ReadingRepository archives normalized telemetry readings.
type ReadingRepository struct {
	db *sql.DB
}

// NewReadingRepository returns repository.
func NewReadingRepository(db *sql.DB) *ReadingRepository {
	return &ReadingRepository{db: db}
}

// Insert archives one reading.
func (r *ReadingRepository) Insert(ctx context.Context, reading *models.TelemetryReading) error {
	const query = `
		INSERT INTO telemetry_readings
			(plate, device_time, received_time, fuel_level, fuel_volume,
			 fuel_percentage, has_fuel, latitude, longitude, status_text,
			 status_signal, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
	`
	_, err := r.db.ExecContext(ctx, query,
		reading.Plate,
		reading.DeviceTime,
		reading.ReceivedTime,
		reading.FuelLevel,
		reading.FuelVolume,
		reading.FuelPercentage,
		reading.HasFuel,
		reading.Latitude,
		reading.Longitude,
		reading.StatusText,
		string(reading.Signal),
	)
	if err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}
	return nil
}

// ListRange returns a plate's readings in [from, to], ordered by device time.
// This feeds the retrospective anomaly scan.
func (r *ReadingRepository) ListRange(ctx context.Context, plate string, from, to time.Time) ([]models.TelemetryReading, error) {
	const query = `
		SELECT plate, device_time, received_time, fuel_level, fuel_volume,
		       fuel_percentage, has_fuel, latitude, longitude, status_text,
		       status_signal
		FROM telemetry_readings
		WHERE plate = $1 AND device_time >= $2 AND device_time <= $3
		ORDER BY device_time ASC
	`
	rows, err := r.db.QueryContext(ctx, query, plate, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var readings []models.TelemetryReading
	for rows.Next() {
		var (
			reading models.TelemetryReading
			signal  string
		)
		if err := rows.Scan(
			&reading.Plate,
			&reading.DeviceTime,
			&reading.ReceivedTime,
			&reading.FuelLevel,
			&reading.FuelVolume,
			&reading.FuelPercentage,
			&reading.HasFuel,
			&reading.Latitude,
			&reading.Longitude,
			&reading.StatusText,
			&signal,
		); err != nil {
			return nil, err
		}
		reading.Signal = models.StatusSignal(signal)
		readings = append(readings, reading)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return readings, nil
}
