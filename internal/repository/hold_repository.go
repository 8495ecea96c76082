package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jc96818/sayitschedule-sub004/internal/models"
)

// HoldRepository persists short-lived appointment holds.
type HoldRepository struct {
	db *sqlx.DB
}

// NewHoldRepository constructs repository.
func NewHoldRepository(db *sqlx.DB) *HoldRepository {
	return &HoldRepository{db: db}
}

func (r *HoldRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

const holdColumns = `id, org_id, staff_id, room_id, date, start_time, end_time, expires_at, released_at, converted_to_session_id, created_at`

// Insert stores a new hold inside the caller's transaction.
func (r *HoldRepository) Insert(ctx context.Context, exec sqlx.ExtContext, hold *models.AppointmentHold) error {
	if hold == nil {
		return fmt.Errorf("hold payload is nil")
	}
	if hold.ID == "" {
		hold.ID = uuid.NewString()
	}
	if hold.CreatedAt.IsZero() {
		hold.CreatedAt = time.Now().UTC()
	}
	target := r.exec(exec)
	const query = `
INSERT INTO appointment_holds (id, org_id, staff_id, room_id, date, start_time, end_time, expires_at, released_at, converted_to_session_id, created_at)
VALUES (:id, :org_id, :staff_id, :room_id, :date, :start_time, :end_time, :expires_at, :released_at, :converted_to_session_id, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, target, query, hold); err != nil {
		return fmt.Errorf("insert hold: %w", err)
	}
	return nil
}

// FindByID loads one hold, optionally locking the row for a concurrent-safe
// conversion.
func (r *HoldRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string, forUpdate bool) (*models.AppointmentHold, error) {
	target := r.exec(exec)
	query := `SELECT ` + holdColumns + ` FROM appointment_holds WHERE id = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}
	var hold models.AppointmentHold
	if err := sqlx.GetContext(ctx, target, &hold, query, id); err != nil {
		return nil, err
	}
	return &hold, nil
}

// FindLiveOverlapping returns live holds overlapping [start, end) on a date
// for the given staff and/or room, locking matched rows. Liveness is checked
// against the clock, never against the sweep job.
func (r *HoldRepository) FindLiveOverlapping(ctx context.Context, exec sqlx.ExtContext, orgID string, staffID, roomID *string, date, startTime, endTime string, now time.Time) ([]models.AppointmentHold, error) {
	if staffID == nil && roomID == nil {
		return nil, fmt.Errorf("hold overlap check requires staff or room")
	}
	target := r.exec(exec)
	query := `SELECT ` + holdColumns + ` FROM appointment_holds
WHERE org_id = $1 AND date = $2 AND start_time < $3 AND end_time > $4
AND released_at IS NULL AND converted_to_session_id IS NULL AND expires_at > $5`
	args := []interface{}{orgID, date, endTime, startTime, now}
	idx := 6
	switch {
	case staffID != nil && roomID != nil:
		query += fmt.Sprintf(" AND (staff_id = $%d OR room_id = $%d)", idx, idx+1)
		args = append(args, *staffID, *roomID)
	case staffID != nil:
		query += fmt.Sprintf(" AND staff_id = $%d", idx)
		args = append(args, *staffID)
	default:
		query += fmt.Sprintf(" AND room_id = $%d", idx)
		args = append(args, *roomID)
	}
	query += " ORDER BY id ASC FOR UPDATE"

	var holds []models.AppointmentHold
	if err := sqlx.SelectContext(ctx, target, &holds, query, args...); err != nil {
		return nil, fmt.Errorf("find overlapping holds: %w", err)
	}
	return holds, nil
}

// Extend pushes a hold's expiry forward. Rows affected is zero when the hold
// is no longer live.
func (r *HoldRepository) Extend(ctx context.Context, exec sqlx.ExtContext, id string, expiresAt, now time.Time) error {
	target := r.exec(exec)
	const query = `UPDATE appointment_holds SET expires_at = $1
WHERE id = $2 AND released_at IS NULL AND converted_to_session_id IS NULL AND expires_at > $3`
	result, err := target.ExecContext(ctx, query, expiresAt, id, now)
	if err != nil {
		return fmt.Errorf("extend hold: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("extend hold rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Release marks a live hold released.
func (r *HoldRepository) Release(ctx context.Context, exec sqlx.ExtContext, id string, now time.Time) error {
	target := r.exec(exec)
	const query = `UPDATE appointment_holds SET released_at = $1
WHERE id = $2 AND released_at IS NULL AND converted_to_session_id IS NULL AND expires_at > $1`
	result, err := target.ExecContext(ctx, query, now, id)
	if err != nil {
		return fmt.Errorf("release hold: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("release hold rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MarkConverted links a hold to the session it produced, exactly once.
func (r *HoldRepository) MarkConverted(ctx context.Context, exec sqlx.ExtContext, id, sessionID string) error {
	target := r.exec(exec)
	const query = `UPDATE appointment_holds SET converted_to_session_id = $1
WHERE id = $2 AND released_at IS NULL AND converted_to_session_id IS NULL`
	result, err := target.ExecContext(ctx, query, sessionID, id)
	if err != nil {
		return fmt.Errorf("mark hold converted: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("convert hold rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteExpired removes holds past expiry that were never converted. Safe to
// call repeatedly.
func (r *HoldRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const query = `DELETE FROM appointment_holds
WHERE expires_at <= $1 AND converted_to_session_id IS NULL`
	result, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired holds: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expired holds rows affected: %w", err)
	}
	return affected, nil
}
