package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
)

// EntityStatus marks roster records as usable or retired.
type EntityStatus string

const (
	EntityStatusActive   EntityStatus = "ACTIVE"
	EntityStatusInactive EntityStatus = "INACTIVE"
)

// StaffMember is a provider who can be assigned sessions.
type StaffMember struct {
	ID             string         `db:"id" json:"id"`
	OrgID          string         `db:"org_id" json:"org_id"`
	Name           string         `db:"name" json:"name"`
	Gender         string         `db:"gender" json:"gender"`
	Certifications pq.StringArray `db:"certifications" json:"certifications"`
	DefaultHours   types.JSONText `db:"default_hours" json:"default_hours"`
	Status         EntityStatus   `db:"status" json:"status"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// Active reports whether the staff member may receive new sessions.
func (s StaffMember) Active() bool { return s.Status == EntityStatusActive }

// HasCertifications reports whether required is a subset of the staff set.
func (s StaffMember) HasCertifications(required []string) bool {
	if len(required) == 0 {
		return true
	}
	have := make(map[string]struct{}, len(s.Certifications))
	for _, cert := range s.Certifications {
		have[cert] = struct{}{}
	}
	for _, cert := range required {
		if _, ok := have[cert]; !ok {
			return false
		}
	}
	return true
}

// WeeklyHours maps ISO day-of-week (1=Monday) to working windows.
type WeeklyHours map[int][]TimeRange

// ParseWeeklyHours decodes the default_hours payload. Keys are day indexes
// encoded as strings ("1".."7").
func ParseWeeklyHours(raw types.JSONText) (WeeklyHours, error) {
	result := WeeklyHours{}
	if len(raw) == 0 {
		return result, nil
	}
	var decoded map[string][]TimeRange
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode weekly hours: %w", err)
	}
	for key, ranges := range decoded {
		var day int
		if _, err := fmt.Sscanf(key, "%d", &day); err != nil || day < 1 || day > 7 {
			return nil, fmt.Errorf("weekly hours: invalid day key %q", key)
		}
		for _, r := range ranges {
			if !r.Valid() {
				return nil, fmt.Errorf("weekly hours: invalid range %s-%s on day %d", r.Start, r.End, day)
			}
		}
		result[day] = ranges
	}
	return result, nil
}

// AvailabilityOverride replaces a staff member's hours on a specific date.
// Available=false blocks the whole day regardless of windows.
type AvailabilityOverride struct {
	ID        string    `db:"id" json:"id"`
	StaffID   string    `db:"staff_id" json:"staff_id"`
	Date      string    `db:"date" json:"date"`
	Available bool      `db:"available" json:"available"`
	StartTime *string   `db:"start_time" json:"start_time,omitempty"`
	EndTime   *string   `db:"end_time" json:"end_time,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
