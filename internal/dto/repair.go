package dto

import "github.com/jc96818/sayitschedule-sub004/internal/models"

// Patch operation kinds. Delete removes a session, add fills an unscheduled
// requirement, move relocates one session, swap exchanges two sessions.
const (
	PatchOpMove   = "MOVE"
	PatchOpSwap   = "SWAP"
	PatchOpAdd    = "ADD"
	PatchOpDelete = "DELETE"
)

// SlotRef names one candidate placement inside the repair search space.
type SlotRef struct {
	StaffID   string  `json:"staffId"`
	RoomID    *string `json:"roomId,omitempty"`
	Date      string  `json:"date"`
	StartTime string  `json:"startTime"`
	EndTime   string  `json:"endTime"`
}

// PatchOperation is one bounded edit proposed during repair. Every operation
// is re-validated by the engine before it is applied.
type PatchOperation struct {
	Op            string   `json:"op" validate:"required,oneof=MOVE SWAP ADD DELETE"`
	SessionID     string   `json:"sessionId,omitempty"`
	WithSessionID string   `json:"withSessionId,omitempty"`
	ClientID      string   `json:"clientId,omitempty"`
	Target        *SlotRef `json:"target,omitempty"`
}

// RepairRequest is handed to the patch proposer together with the bounded
// search space computed by the engine.
type RepairRequest struct {
	ScheduleID  string               `json:"scheduleId"`
	Violations  []models.Violation   `json:"violations"`
	SearchSpace map[string][]SlotRef `json:"searchSpace"`
}

// RepairScheduleResponse reports applied operations and what remains broken.
type RepairScheduleResponse struct {
	PatchApplied        []PatchOperation   `json:"patchApplied"`
	RemainingViolations []models.Violation `json:"remainingViolations"`
	Passes              int                `json:"passes"`
}
