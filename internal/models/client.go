package models

import (
	"time"

	"github.com/lib/pq"
)

// Client is a care recipient with a weekly session requirement.
type Client struct {
	ID                     string         `db:"id" json:"id"`
	OrgID                  string         `db:"org_id" json:"org_id"`
	Name                   string         `db:"name" json:"name"`
	Gender                 string         `db:"gender" json:"gender"`
	RequiredSessions       int            `db:"required_sessions" json:"required_sessions"`
	RequiredCertifications pq.StringArray `db:"required_certifications" json:"required_certifications"`
	PreferredRoomID        *string        `db:"preferred_room_id" json:"preferred_room_id,omitempty"`
	PreferredStartTime     *string        `db:"preferred_start_time" json:"preferred_start_time,omitempty"`
	Status                 EntityStatus   `db:"status" json:"status"`
	CreatedAt              time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time      `db:"updated_at" json:"updated_at"`
}

// Active reports whether the client should be scheduled.
func (c Client) Active() bool { return c.Status == EntityStatusActive }
