package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// ScheduleStatus represents lifecycle phases for weekly schedules.
type ScheduleStatus string

const (
	ScheduleStatusDraft     ScheduleStatus = "DRAFT"
	ScheduleStatusPublished ScheduleStatus = "PUBLISHED"
)

// Schedule is one organization's timetable for one ISO week. Versions are
// monotonic per org-week; draft copies increment the source version.
type Schedule struct {
	ID        string         `db:"id" json:"id"`
	OrgID     string         `db:"org_id" json:"org_id"`
	WeekStart string         `db:"week_start" json:"week_start"`
	Version   int            `db:"version" json:"version"`
	Status    ScheduleStatus `db:"status" json:"status"`
	Meta      types.JSONText `db:"meta" json:"meta"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}

// ScheduleDetail bundles a schedule with its sessions for API reads.
type ScheduleDetail struct {
	Schedule Schedule  `json:"schedule"`
	Sessions []Session `json:"sessions"`
}
