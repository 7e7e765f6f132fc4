package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/TakundaMabukwa/fuel-server-sub001/internal/models"
)

// FillRepository handles persistence of fuel fill events.
type FillRepository struct {
	db *sql.DB
}

// NewFillRepository returns repository.
func NewFillRepository(db *sql.DB) *FillRepository {
	return &FillRepository{db: db}
}

// Create inserts a fill event.
func (r *FillRepository) Create(ctx context.Context, fill *models.FuelFillEvent) error {
	const query = `
		INSERT INTO fuel_fill_events
			(id, plate, fill_time, fuel_before, fuel_after, fill_amount,
			 fill_percentage, detection_method, session_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), NOW())
		RETURNING created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		fill.ID,
		fill.Plate,
		fill.FillTime,
		fill.FuelBefore,
		fill.FuelAfter,
		fill.FillAmount,
		fill.FillPercentage,
		fill.DetectionMethod,
		fill.SessionID,
	).Scan(&fill.CreatedAt)
	if err != nil {
		return fmt.Errorf("create fill event: %w", err)
	}
	return nil
}

// List returns fill events matching the filter, newest first.
func (r *FillRepository) List(ctx context.Context, filter FillFilter) ([]models.FuelFillEvent, error) {
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
	if !filter.From.IsZero() {
		add("fill_time >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("fill_time <= $%d", filter.To)
	}

	query := `
		SELECT id, plate, fill_time, fuel_before, fuel_after, fill_amount,
		       fill_percentage, detection_method, COALESCE(session_id, ''), created_at
		FROM fuel_fill_events`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY fill_time DESC LIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fills []models.FuelFillEvent
	for rows.Next() {
		var f models.FuelFillEvent
		if err := rows.Scan(
			&f.ID,
			&f.Plate,
			&f.FillTime,
			&f.FuelBefore,
			&f.FuelAfter,
			&f.FillAmount,
			&f.FillPercentage,
			&f.DetectionMethod,
			&f.SessionID,
			&f.CreatedAt,
		); err != nil {
			return nil, err
		}
		fills = append(fills, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return fills, nil
}
