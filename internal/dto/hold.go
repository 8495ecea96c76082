package dto

// CreateHoldRequest reserves a slot for interactive checkout. At least one of
// staffId/roomId must be provided; TTL falls back to the configured default.
type CreateHoldRequest struct {
	OrgID      string  `json:"orgId" validate:"required"`
	StaffID    *string `json:"staffId" validate:"omitempty"`
	RoomID     *string `json:"roomId" validate:"omitempty"`
	Date       string  `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime  string  `json:"startTime" validate:"required"`
	EndTime    string  `json:"endTime" validate:"required"`
	TTLSeconds int     `json:"ttlSeconds" validate:"omitempty,min=1"`
}

// ExtendHoldRequest pushes a live hold's expiry forward.
type ExtendHoldRequest struct {
	Minutes int `json:"minutes" validate:"required,min=1,max=60"`
}
