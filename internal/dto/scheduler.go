package dto

import "github.com/jc96818/sayitschedule-sub004/internal/models"

// GenerateScheduleRequest asks the generator to build a draft for one week.
type GenerateScheduleRequest struct {
	OrgID     string `json:"orgId" validate:"required"`
	WeekStart string `json:"weekStart" validate:"required,datetime=2006-01-02"`
}

// GenerateScheduleResponse returns the persisted draft plus residual
// violations (unscheduled requirements and soft penalties).
type GenerateScheduleResponse struct {
	Schedule   models.Schedule    `json:"schedule"`
	Sessions   []models.Session   `json:"sessions"`
	Violations []models.Violation `json:"violations"`
	Penalty    float64            `json:"penalty"`
}

// ScheduleQuery filters schedule listings.
type ScheduleQuery struct {
	OrgID     string `form:"orgId" json:"orgId"`
	WeekStart string `form:"weekStart" json:"weekStart"`
}
