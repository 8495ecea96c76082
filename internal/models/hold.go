package models

import "time"

// AppointmentHold is an ephemeral slot reservation used during interactive
// checkout. A hold is live while it is unexpired, unreleased and unconverted;
// liveness is always evaluated at read time, the sweep job is advisory.
type AppointmentHold struct {
	ID                   string     `db:"id" json:"id"`
	OrgID                string     `db:"org_id" json:"org_id"`
	StaffID              *string    `db:"staff_id" json:"staff_id,omitempty"`
	RoomID               *string    `db:"room_id" json:"room_id,omitempty"`
	Date                 string     `db:"date" json:"date"`
	StartTime            string     `db:"start_time" json:"start_time"`
	EndTime              string     `db:"end_time" json:"end_time"`
	ExpiresAt            time.Time  `db:"expires_at" json:"expires_at"`
	ReleasedAt           *time.Time `db:"released_at" json:"released_at,omitempty"`
	ConvertedToSessionID *string    `db:"converted_to_session_id" json:"converted_to_session_id,omitempty"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
}

// Live reports whether the hold still reserves its slot at the given instant.
func (h AppointmentHold) Live(now time.Time) bool {
	return h.ReleasedAt == nil && h.ConvertedToSessionID == nil && now.Before(h.ExpiresAt)
}
