package dto

// BookFromHoldRequest converts a live hold into a committed session.
type BookFromHoldRequest struct {
	HoldID            string  `json:"holdId" validate:"required"`
	ClientID          string  `json:"clientId" validate:"required"`
	ScheduleID        *string `json:"scheduleId" validate:"omitempty"`
	Notes             *string `json:"notes" validate:"omitempty,max=2000"`
	BookedVia         string  `json:"bookedVia" validate:"omitempty,oneof=ADMIN STAFF PORTAL"`
	BookedByContactID *string `json:"bookedByContactId" validate:"omitempty"`
}

// BookDirectRequest books a slot without a hold, for privileged callers.
type BookDirectRequest struct {
	OrgID             string  `json:"orgId" validate:"required"`
	StaffID           string  `json:"staffId" validate:"required"`
	ClientID          string  `json:"clientId" validate:"required"`
	RoomID            *string `json:"roomId" validate:"omitempty"`
	ScheduleID        *string `json:"scheduleId" validate:"omitempty"`
	Date              string  `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime         string  `json:"startTime" validate:"required"`
	EndTime           string  `json:"endTime" validate:"required"`
	Notes             *string `json:"notes" validate:"omitempty,max=2000"`
	BookedVia         string  `json:"bookedVia" validate:"omitempty,oneof=ADMIN STAFF PORTAL"`
	BookedByContactID *string `json:"bookedByContactId" validate:"omitempty"`
}

// UpdateSessionStatusRequest drives the post-booking state machine. CANCELLED
// requests are reclassified to LATE_CANCEL inside the lateness window.
type UpdateSessionStatusRequest struct {
	Status string  `json:"status" validate:"required,oneof=CONFIRMED CHECKED_IN IN_PROGRESS COMPLETED CANCELLED NO_SHOW"`
	Reason *string `json:"reason" validate:"omitempty,max=500"`
}
