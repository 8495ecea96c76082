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

// SessionRepository persists committed sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

const sessionColumns = `id, schedule_id, org_id, staff_id, client_id, room_id, date, start_time, end_time,
status, booked_via, booked_by_contact_id, notes, created_at, updated_at`

func prepareSession(session *models.Session) {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.Status == "" {
		session.Status = models.SessionStatusScheduled
	}
	if session.BookedVia == "" {
		session.BookedVia = models.BookedViaAdmin
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now
}

// Create inserts one session, typically inside a booking transaction.
func (r *SessionRepository) Create(ctx context.Context, exec sqlx.ExtContext, session *models.Session) error {
	if session == nil {
		return fmt.Errorf("session payload is nil")
	}
	prepareSession(session)
	target := r.exec(exec)
	const query = `
INSERT INTO sessions (id, schedule_id, org_id, staff_id, client_id, room_id, date, start_time, end_time,
status, booked_via, booked_by_contact_id, notes, created_at, updated_at)
VALUES (:id, :schedule_id, :org_id, :staff_id, :client_id, :room_id, :date, :start_time, :end_time,
:status, :booked_via, :booked_by_contact_id, :notes, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, target, query, session); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// BulkCreate inserts a batch of sessions inside one transaction.
func (r *SessionRepository) BulkCreate(ctx context.Context, exec sqlx.ExtContext, sessions []models.Session) error {
	for i := range sessions {
		if err := r.Create(ctx, exec, &sessions[i]); err != nil {
			return err
		}
	}
	return nil
}

// FindByID loads one session.
func (r *SessionRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Session, error) {
	target := r.exec(exec)
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`
	var session models.Session
	if err := sqlx.GetContext(ctx, target, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// ListBySchedule returns a schedule's sessions ordered by date and start.
func (r *SessionRepository) ListBySchedule(ctx context.Context, exec sqlx.ExtContext, scheduleID string) ([]models.Session, error) {
	target := r.exec(exec)
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE schedule_id = $1 ORDER BY date ASC, start_time ASC, id ASC`
	var sessions []models.Session
	if err := sqlx.SelectContext(ctx, target, &sessions, query, scheduleID); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// FindBlockingOverlaps returns slot-blocking sessions overlapping [start, end)
// on a date for the given staff and/or room, locking matched rows so a
// concurrent booking cannot pass the same check. Cancellation variants do not
// block. Boundaries are exclusive: back-to-back sessions do not overlap.
func (r *SessionRepository) FindBlockingOverlaps(ctx context.Context, exec sqlx.ExtContext, orgID string, staffID, roomID *string, date, startTime, endTime string, excludeSessionID *string) ([]models.Session, error) {
	if staffID == nil && roomID == nil {
		return nil, fmt.Errorf("overlap check requires staff or room")
	}
	target := r.exec(exec)
	query := `SELECT ` + sessionColumns + ` FROM sessions
WHERE org_id = $1 AND date = $2 AND start_time < $3 AND end_time > $4
AND status NOT IN ($5, $6, $7)`
	args := []interface{}{orgID, date, endTime, startTime,
		models.SessionStatusCancelled, models.SessionStatusLateCancel, models.SessionStatusNoShow}
	idx := 8
	switch {
	case staffID != nil && roomID != nil:
		query += fmt.Sprintf(" AND (staff_id = $%d OR room_id = $%d)", idx, idx+1)
		args = append(args, *staffID, *roomID)
		idx += 2
	case staffID != nil:
		query += fmt.Sprintf(" AND staff_id = $%d", idx)
		args = append(args, *staffID)
		idx++
	default:
		query += fmt.Sprintf(" AND room_id = $%d", idx)
		args = append(args, *roomID)
		idx++
	}
	if excludeSessionID != nil {
		query += fmt.Sprintf(" AND id <> $%d", idx)
		args = append(args, *excludeSessionID)
	}
	query += " ORDER BY id ASC FOR UPDATE"

	var sessions []models.Session
	if err := sqlx.SelectContext(ctx, target, &sessions, query, args...); err != nil {
		return nil, fmt.Errorf("find overlapping sessions: %w", err)
	}
	return sessions, nil
}

// UpdateStatus transitions one session's lifecycle status.
func (r *SessionRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.SessionStatus) error {
	target := r.exec(exec)
	const query = `UPDATE sessions SET status = $1, updated_at = $2 WHERE id = $3`
	result, err := target.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("session status rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateSlot relocates a session during repair.
func (r *SessionRepository) UpdateSlot(ctx context.Context, exec sqlx.ExtContext, id, staffID string, roomID *string, date, startTime, endTime string) error {
	target := r.exec(exec)
	const query = `UPDATE sessions SET staff_id = $1, room_id = $2, date = $3, start_time = $4, end_time = $5, updated_at = $6 WHERE id = $7`
	result, err := target.ExecContext(ctx, query, staffID, roomID, date, startTime, endTime, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update session slot: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("session slot rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a session during repair.
func (r *SessionRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	target := r.exec(exec)
	const query = `DELETE FROM sessions WHERE id = $1`
	result, err := target.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("session rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
