package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/TakundaMabukwa/fuel-server-sub001/internal/models"
)

// AnomalyRepository handles persistence of fuel anomalies.
type AnomalyRepository struct {
	db *sql.DB
}

// NewAnomalyRepository returns repository.
func NewAnomalyRepository(db *sql.DB) *AnomalyRepository {
	return &AnomalyRepository{db: db}
}

// Upsert inserts an anomaly keyed by (plate, anomaly_time, anomaly_type).
// Replaying the same reading pair is a no-op; the bool reports whether a new
// row was created.
func (r *AnomalyRepository) Upsert(ctx context.Context, anomaly *models.FuelAnomaly) (bool, error) {
	const query = `
		INSERT INTO fuel_anomalies
			(plate, anomaly_type, anomaly_time, fuel_before, fuel_after,
			 difference, severity, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (plate, anomaly_time, anomaly_type) DO NOTHING
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		anomaly.Plate,
		anomaly.AnomalyType,
		anomaly.AnomalyTime,
		anomaly.FuelBefore,
		anomaly.FuelAfter,
		anomaly.Difference,
		anomaly.Severity,
		anomaly.Status,
	).Scan(&anomaly.ID, &anomaly.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("upsert anomaly: %w", err)
	}
	return true, nil
}

// List returns anomalies matching the filter, newest first.
func (r *AnomalyRepository) List(ctx context.Context, filter AnomalyFilter) ([]models.FuelAnomaly, error) {
	var (
		conds []string
		args  []interface{}
	)
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.Plate != "" {
		add("plate = $%d", filter.Plate)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if !filter.From.IsZero() {
		add("anomaly_time >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("anomaly_time <= $%d", filter.To)
	}

	query := `
		SELECT id, plate, anomaly_type, anomaly_time, fuel_before, fuel_after,
		       difference, severity, status, COALESCE(resolved_by, ''),
		       COALESCE(resolution_notes, ''), resolved_at, created_at
		FROM fuel_anomalies`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY anomaly_time DESC LIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var anomalies []models.FuelAnomaly
	for rows.Next() {
		var (
			a          models.FuelAnomaly
			resolvedAt sql.NullTime
		)
		if err := rows.Scan(
			&a.ID,
			&a.Plate,
			&a.AnomalyType,
			&a.AnomalyTime,
			&a.FuelBefore,
			&a.FuelAfter,
			&a.Difference,
			&a.Severity,
			&a.Status,
			&a.ResolvedBy,
			&a.ResolutionNotes,
			&resolvedAt,
			&a.CreatedAt,
		); err != nil {
			return nil, err
		}
		if resolvedAt.Valid {
			t := resolvedAt.Time
			a.ResolvedAt = &t
		}
		anomalies = append(anomalies, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return anomalies, nil
}

// Resolve marks a pending anomaly resolved. The bool is false when the row
// is missing or already resolved.
func (r *AnomalyRepository) Resolve(ctx context.Context, id int64, resolvedBy, notes string) (bool, error) {
	const query = `
		UPDATE fuel_anomalies
		SET status = $2,
		    resolved_by = $3,
		    resolution_notes = $4,
		    resolved_at = NOW()
		WHERE id = $1 AND status = $5
	`
	result, err := r.db.ExecContext(ctx, query, id, models.AnomalyStatusResolved, resolvedBy, notes, models.AnomalyStatusPending)
	if err != nil {
		return false, fmt.Errorf("resolve anomaly: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
