package models

import "time"

// SessionStatus tracks a session through its post-booking lifecycle.
type SessionStatus string

const (
	SessionStatusScheduled  SessionStatus = "SCHEDULED"
	SessionStatusConfirmed  SessionStatus = "CONFIRMED"
	SessionStatusCheckedIn  SessionStatus = "CHECKED_IN"
	SessionStatusInProgress SessionStatus = "IN_PROGRESS"
	SessionStatusCompleted  SessionStatus = "COMPLETED"
	SessionStatusCancelled  SessionStatus = "CANCELLED"
	SessionStatusLateCancel SessionStatus = "LATE_CANCEL"
	SessionStatusNoShow     SessionStatus = "NO_SHOW"
)

// BookingChannel records how a session was created.
type BookingChannel string

const (
	BookedViaAdmin  BookingChannel = "ADMIN"
	BookedViaStaff  BookingChannel = "STAFF"
	BookedViaPortal BookingChannel = "PORTAL"
)

// Session is a committed staff/client appointment inside one schedule.
type Session struct {
	ID                string         `db:"id" json:"id"`
	ScheduleID        string         `db:"schedule_id" json:"schedule_id"`
	OrgID             string         `db:"org_id" json:"org_id"`
	StaffID           string         `db:"staff_id" json:"staff_id"`
	ClientID          string         `db:"client_id" json:"client_id"`
	RoomID            *string        `db:"room_id" json:"room_id,omitempty"`
	Date              string         `db:"date" json:"date"`
	StartTime         string         `db:"start_time" json:"start_time"`
	EndTime           string         `db:"end_time" json:"end_time"`
	Status            SessionStatus  `db:"status" json:"status"`
	BookedVia         BookingChannel `db:"booked_via" json:"booked_via"`
	BookedByContactID *string        `db:"booked_by_contact_id" json:"booked_by_contact_id,omitempty"`
	Notes             *string        `db:"notes" json:"notes,omitempty"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at" json:"updated_at"`
}

// Terminal reports whether no further transitions are allowed.
func (s SessionStatus) Terminal() bool {
	switch s {
	case SessionStatusCompleted, SessionStatusCancelled, SessionStatusLateCancel, SessionStatusNoShow:
		return true
	}
	return false
}

// Cancellation reports whether the status is a cancellation variant.
func (s SessionStatus) Cancellation() bool {
	switch s {
	case SessionStatusCancelled, SessionStatusLateCancel, SessionStatusNoShow:
		return true
	}
	return false
}

var sessionForward = map[SessionStatus]SessionStatus{
	SessionStatusScheduled:  SessionStatusConfirmed,
	SessionStatusConfirmed:  SessionStatusCheckedIn,
	SessionStatusCheckedIn:  SessionStatusInProgress,
	SessionStatusInProgress: SessionStatusCompleted,
}

// CanTransition validates the session state machine: one forward chain to
// COMPLETED, with cancellation variants allowed from any non-terminal state.
func CanTransition(from, to SessionStatus) bool {
	if from.Terminal() {
		return false
	}
	if to.Cancellation() {
		return true
	}
	return sessionForward[from] == to
}

// BlocksSlot reports whether the session still occupies its time slot for
// conflict purposes. Cancellation variants release the slot.
func (s Session) BlocksSlot() bool {
	return !s.Status.Cancellation()
}
