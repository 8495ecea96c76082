package models

import (
	"time"

	"github.com/lib/pq"
)

// Room is a bookable treatment space with capability tags.
type Room struct {
	ID           string         `db:"id" json:"id"`
	OrgID        string         `db:"org_id" json:"org_id"`
	Name         string         `db:"name" json:"name"`
	Capabilities pq.StringArray `db:"capabilities" json:"capabilities"`
	Status       EntityStatus   `db:"status" json:"status"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// Active reports whether the room may be assigned.
func (r Room) Active() bool { return r.Status == EntityStatusActive }
