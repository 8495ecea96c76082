package models

// ViolationSeverity distinguishes blocking breaches from penalised ones.
type ViolationSeverity string

const (
	ViolationSeverityHard ViolationSeverity = "HARD"
	ViolationSeveritySoft ViolationSeverity = "SOFT"
)

// Violation kinds emitted by generation and validation.
const (
	ViolationKindUnscheduledRequirement = "UNSCHEDULED_REQUIREMENT"
	ViolationKindRuleViolation          = "RULE_VIOLATION"
	ViolationKindOverlap                = "OVERLAP"
)

// Violation records a constraint breach or unmet requirement.
type Violation struct {
	Kind       string            `json:"kind"`
	Severity   ViolationSeverity `json:"severity"`
	RuleID     *string           `json:"rule_id,omitempty"`
	SessionIDs []string          `json:"session_ids,omitempty"`
	ClientID   string            `json:"client_id,omitempty"`
	StaffID    string            `json:"staff_id,omitempty"`
	Message    string            `json:"message"`
}
