package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jc96818/sayitschedule-sub004/internal/models"
)

func sessionRows(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "schedule_id", "org_id", "staff_id", "client_id", "room_id", "date", "start_time", "end_time",
		"status", "booked_via", "booked_by_contact_id", "notes", "created_at", "updated_at",
	}).AddRow("sess-1", "sched-1", "org-1", "staff-1", "client-1", nil, "2026-08-31", "10:00", "11:00",
		"SCHEDULED", "ADMIN", nil, nil, now, now)
}

func TestSessionRepositoryCreateFillsDefaults(t *testing.T) {
	db, mock, cleanup := newHoldMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectExec("INSERT INTO sessions").
		WillReturnResult(sqlmock.NewResult(1, 1))

	session := &models.Session{
		ScheduleID: "sched-1",
		OrgID:      "org-1",
		StaffID:    "staff-1",
		ClientID:   "client-1",
		Date:       "2026-08-31",
		StartTime:  "10:00",
		EndTime:    "11:00",
	}
	require.NoError(t, repo.Create(context.Background(), nil, session))
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, models.SessionStatusScheduled, session.Status)
	assert.Equal(t, models.BookedViaAdmin, session.BookedVia)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryFindBlockingOverlaps(t *testing.T) {
	db, mock, cleanup := newHoldMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	now := time.Now()
	mock.ExpectQuery(`SELECT (.+) FROM sessions`).
		WithArgs(
			"org-1", "2026-08-31", "11:30", "10:30",
			models.SessionStatusCancelled, models.SessionStatusLateCancel, models.SessionStatusNoShow,
			"staff-1",
		).
		WillReturnRows(sessionRows(now))

	staffID := "staff-1"
	sessions, err := repo.FindBlockingOverlaps(context.Background(), nil, "org-1", &staffID, nil, "2026-08-31", "10:30", "11:30", nil)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "sess-1", sessions[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryFindBlockingOverlapsExcludesSelf(t *testing.T) {
	db, mock, cleanup := newHoldMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectQuery(`SELECT (.+) FROM sessions`).
		WithArgs(
			"org-1", "2026-08-31", "11:00", "10:00",
			models.SessionStatusCancelled, models.SessionStatusLateCancel, models.SessionStatusNoShow,
			"staff-1", "sess-1",
		).
		WillReturnRows(sessionRows(time.Now()).RowError(0, sql.ErrNoRows))

	staffID := "staff-1"
	exclude := "sess-1"
	_, err := repo.FindBlockingOverlaps(context.Background(), nil, "org-1", &staffID, nil, "2026-08-31", "10:00", "11:00", &exclude)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newHoldMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectExec("UPDATE sessions SET status").
		WithArgs(models.SessionStatusConfirmed, sqlmock.AnyArg(), "sess-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateStatus(context.Background(), nil, "sess-1", models.SessionStatusConfirmed))

	mock.ExpectExec("UPDATE sessions SET status").
		WithArgs(models.SessionStatusConfirmed, sqlmock.AnyArg(), "sess-missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.UpdateStatus(context.Background(), nil, "sess-missing", models.SessionStatusConfirmed)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryUpdateSlot(t *testing.T) {
	db, mock, cleanup := newHoldMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectExec("UPDATE sessions SET staff_id").
		WithArgs("staff-2", nil, "2026-09-01", "09:00", "10:00", sqlmock.AnyArg(), "sess-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateSlot(context.Background(), nil, "sess-1", "staff-2", nil, "2026-09-01", "09:00", "10:00"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
