package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jc96818/sayitschedule-sub004/internal/models"
	appErrors "github.com/jc96818/sayitschedule-sub004/pkg/errors"
)

// Overlaps implements the single authoritative interval test. Boundaries are
// exclusive, so back-to-back sessions never conflict.
func Overlaps(start1, end1, start2, end2 string) bool {
	s1 := models.MinuteOfDay(start1)
	e1 := models.MinuteOfDay(end1)
	s2 := models.MinuteOfDay(start2)
	e2 := models.MinuteOfDay(end2)
	if s1 < 0 || e1 < 0 || s2 < 0 || e2 < 0 {
		return false
	}
	return s1 < e2 && s2 < e1
}

// SlotQuery identifies a resource/time window to test for conflicts.
type SlotQuery struct {
	OrgID            string
	StaffID          *string
	RoomID           *string
	Date             string
	StartTime        string
	EndTime          string
	ExcludeSessionID *string
}

type overlappingSessionFinder interface {
	FindBlockingOverlaps(ctx context.Context, exec sqlx.ExtContext, orgID string, staffID, roomID *string, date, startTime, endTime string, excludeSessionID *string) ([]models.Session, error)
}

type overlappingHoldFinder interface {
	FindLiveOverlapping(ctx context.Context, exec sqlx.ExtContext, orgID string, staffID, roomID *string, date, startTime, endTime string, now time.Time) ([]models.AppointmentHold, error)
}

// ConflictDetector answers "is this slot free" against committed sessions and
// live holds. Every caller that writes based on the answer must run the check
// inside the same transaction as the write, holding the slot's advisory locks:
// matched rows are locked by the finders, but a free slot has no row to lock.
type ConflictDetector struct {
	sessions overlappingSessionFinder
	holds    overlappingHoldFinder
}

// NewConflictDetector wires the detector. The holds finder may be nil for
// callers that only care about committed sessions.
func NewConflictDetector(sessions overlappingSessionFinder, holds overlappingHoldFinder) *ConflictDetector {
	return &ConflictDetector{sessions: sessions, holds: holds}
}

// SessionConflict returns a CONFLICT error when a slot-blocking session
// overlaps the queried window.
func (d *ConflictDetector) SessionConflict(ctx context.Context, exec sqlx.ExtContext, q SlotQuery) error {
	overlapping, err := d.sessions.FindBlockingOverlaps(ctx, exec, q.OrgID, q.StaffID, q.RoomID, q.Date, q.StartTime, q.EndTime, q.ExcludeSessionID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check session conflicts")
	}
	if len(overlapping) > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "slot overlaps an existing session")
	}
	return nil
}

// HoldConflict returns a CONFLICT error when a live hold overlaps the
// queried window.
func (d *ConflictDetector) HoldConflict(ctx context.Context, exec sqlx.ExtContext, q SlotQuery, now time.Time) error {
	if d.holds == nil {
		return nil
	}
	overlapping, err := d.holds.FindLiveOverlapping(ctx, exec, q.OrgID, q.StaffID, q.RoomID, q.Date, q.StartTime, q.EndTime, now)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check hold conflicts")
	}
	if len(overlapping) > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "slot is held by another checkout")
	}
	return nil
}
