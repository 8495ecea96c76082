package repository

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockSlotAcquiresKeysInSortedOrder(t *testing.T) {
	db, mock, cleanup := newHoldMock(t)
	defer cleanup()
	repo := NewHoldRepository(db)

	// The room key sorts before the staff key; every caller must take them
	// in the same order.
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs("slot:org-1:room:room-1:2026-08-31").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs("slot:org-1:staff:staff-1:2026-08-31").
		WillReturnResult(sqlmock.NewResult(0, 0))

	staffID, roomID := "staff-1", "room-1"
	require.NoError(t, repo.LockSlot(context.Background(), nil, "org-1", "2026-08-31", &staffID, &roomID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockSlotStaffOnly(t *testing.T) {
	db, mock, cleanup := newHoldMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs("slot:org-1:staff:staff-1:2026-08-31").
		WillReturnResult(sqlmock.NewResult(0, 0))

	staffID := "staff-1"
	require.NoError(t, repo.LockSlot(context.Background(), nil, "org-1", "2026-08-31", &staffID, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockSlotRequiresResource(t *testing.T) {
	db, _, cleanup := newHoldMock(t)
	defer cleanup()
	repo := NewHoldRepository(db)

	err := repo.LockSlot(context.Background(), nil, "org-1", "2026-08-31", nil, nil)
	assert.Error(t, err)
}
