package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/TakundaMabukwa/fuel-server-sub001/internal/models"
)

// ErrSessionNotFound indicates a missing session row.
var ErrSessionNotFound = errors.New("session not found")

// SessionRepository handles persistence of operating sessions.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository returns repository.
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `
	id, plate, cost_code, company, session_start_time, session_end_time,
	opening_fuel, closing_fuel, operating_hours, total_usage, total_fill,
	fill_events, cost, status, pending_reconciliation, estimated,
	closure_note, created_at, updated_at`

// Create inserts a new ONGOING session.
func (r *SessionRepository) Create(ctx context.Context, session *models.OperatingSession) error {
	const query = `
		INSERT INTO operating_sessions
			(id, plate, cost_code, company, session_start_time, opening_fuel,
			 status, pending_reconciliation, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		session.ID,
		session.Plate,
		session.CostCode,
		session.Company,
		session.StartTime,
		session.OpeningFuel,
		session.Status,
		session.PendingReconciliation,
	).Scan(&session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// FindOngoing returns the single ONGOING session for a plate, or nil.
func (r *SessionRepository) FindOngoing(ctx context.Context, plate string) (*models.OperatingSession, error) {
	query := `SELECT` + sessionColumns + `
		FROM operating_sessions
		WHERE plate = $1 AND status = $2
		ORDER BY session_start_time DESC
		LIMIT 1
	`
	row := r.db.QueryRowContext(ctx, query, plate, models.SessionStatusOngoing)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

// Complete finalizes a session from a genuine OFF signal. The update is
// conditional on the row still being ONGOING so it cannot clobber a closure
// done by the reaper; the bool reports whether the row changed.
func (r *SessionRepository) Complete(ctx context.Context, id string, endTime time.Time, closingFuel, hours, usage, cost float64, pending bool) (bool, error) {
	const query = `
		UPDATE operating_sessions
		SET session_end_time = $2,
		    closing_fuel = $3,
		    operating_hours = $4,
		    total_usage = $5,
		    cost = $6,
		    pending_reconciliation = $7,
		    status = $8,
		    updated_at = NOW()
		WHERE id = $1 AND status = $9
	`
	result, err := r.db.ExecContext(ctx, query, id, endTime, closingFuel, hours, usage, cost, pending,
		models.SessionStatusCompleted, models.SessionStatusOngoing)
	if err != nil {
		return false, fmt.Errorf("complete session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// CompleteEstimated force-closes a stale session with estimated figures. The
// condition re-checks both status and start time so a just-completed session
// is never overwritten.
func (r *SessionRepository) CompleteEstimated(ctx context.Context, id string, cutoff, endTime time.Time, hours, usage, cost float64, note string) (bool, error) {
	const query = `
		UPDATE operating_sessions
		SET session_end_time = $2,
		    operating_hours = $3,
		    total_usage = $4,
		    cost = $5,
		    status = $6,
		    estimated = TRUE,
		    closure_note = $7,
		    updated_at = NOW()
		WHERE id = $1 AND status = $8 AND session_start_time < $9
	`
	result, err := r.db.ExecContext(ctx, query, id, endTime, hours, usage, cost,
		models.SessionStatusCompleted, note, models.SessionStatusOngoing, cutoff)
	if err != nil {
		return false, fmt.Errorf("complete estimated: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// UpdateOpeningFuel revises the opening boundary of a still-open session.
func (r *SessionRepository) UpdateOpeningFuel(ctx context.Context, id string, fuel float64) error {
	const query = `
		UPDATE operating_sessions
		SET opening_fuel = $2,
		    pending_reconciliation = FALSE,
		    updated_at = NOW()
		WHERE id = $1 AND status = $3
	`
	_, err := r.db.ExecContext(ctx, query, id, fuel, models.SessionStatusOngoing)
	if err != nil {
		return fmt.Errorf("update opening fuel: %w", err)
	}
	return nil
}

// UpdateClosingFuel revises the closing boundary of a completed session while
// it is still inside its reconciliation horizon. Estimated (reaper-closed)
// rows are excluded.
func (r *SessionRepository) UpdateClosingFuel(ctx context.Context, id string, fuel, usage, cost float64) (bool, error) {
	const query = `
		UPDATE operating_sessions
		SET closing_fuel = $2,
		    total_usage = $3,
		    cost = $4,
		    pending_reconciliation = FALSE,
		    updated_at = NOW()
		WHERE id = $1 AND status = $5 AND estimated = FALSE
	`
	result, err := r.db.ExecContext(ctx, query, id, fuel, usage, cost, models.SessionStatusCompleted)
	if err != nil {
		return false, fmt.Errorf("update closing fuel: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// AddFill increments the fill tally of an ONGOING session.
func (r *SessionRepository) AddFill(ctx context.Context, id string, amount float64) error {
	const query = `
		UPDATE operating_sessions
		SET total_fill = total_fill + $2,
		    fill_events = fill_events + 1,
		    updated_at = NOW()
		WHERE id = $1 AND status = $3
	`
	_, err := r.db.ExecContext(ctx, query, id, amount, models.SessionStatusOngoing)
	if err != nil {
		return fmt.Errorf("add fill: %w", err)
	}
	return nil
}

// ListOngoing returns all open sessions, used to rebuild in-memory state on startup.
func (r *SessionRepository) ListOngoing(ctx context.Context) ([]models.OperatingSession, error) {
	query := `SELECT` + sessionColumns + `
		FROM operating_sessions
		WHERE status = $1
		ORDER BY session_start_time ASC
	`
	return r.querySessions(ctx, query, models.SessionStatusOngoing)
}

// ListOngoingBefore returns open sessions started before cutoff, for the reaper.
func (r *SessionRepository) ListOngoingBefore(ctx context.Context, cutoff time.Time) ([]models.OperatingSession, error) {
	query := `SELECT` + sessionColumns + `
		FROM operating_sessions
		WHERE status = $1 AND session_start_time < $2
		ORDER BY session_start_time ASC
	`
	return r.querySessions(ctx, query, models.SessionStatusOngoing, cutoff)
}

// List returns sessions matching the filter, newest first.
func (r *SessionRepository) List(ctx context.Context, filter SessionFilter) ([]models.OperatingSession, error) {
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
	if filter.CostCode != "" {
		add("cost_code = $%d", filter.CostCode)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if !filter.From.IsZero() {
		add("session_start_time >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("session_start_time <= $%d", filter.To)
	}

	query := `SELECT` + sessionColumns + ` FROM operating_sessions`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY session_start_time DESC LIMIT $%d", len(args))

	return r.querySessions(ctx, query, args...)
}

func (r *SessionRepository) querySessions(ctx context.Context, query string, args ...interface{}) ([]models.OperatingSession, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.OperatingSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*models.OperatingSession, error) {
	var (
		s       models.OperatingSession
		endTime sql.NullTime
		note    sql.NullString
	)
	err := row.Scan(
		&s.ID,
		&s.Plate,
		&s.CostCode,
		&s.Company,
		&s.StartTime,
		&endTime,
		&s.OpeningFuel,
		&s.ClosingFuel,
		&s.OperatingHours,
		&s.TotalUsage,
		&s.TotalFill,
		&s.FillEvents,
		&s.Cost,
		&s.Status,
		&s.PendingReconciliation,
		&s.Estimated,
		&note,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if endTime.Valid {
		t := endTime.Time
		s.EndTime = &t
	}
	s.ClosureNote = note.String
	return &s, nil
}
