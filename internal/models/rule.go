package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// RuleCategory identifies the closed set of supported rule kinds.
type RuleCategory string

const (
	RuleCategoryPairingByAttribute RuleCategory = "PAIRING_BY_ATTRIBUTE"
	RuleCategorySessionShape       RuleCategory = "SESSION_SHAPE"
	RuleCategoryAvailabilityWindow RuleCategory = "AVAILABILITY_WINDOW"
	RuleCategorySpecificPairForce  RuleCategory = "SPECIFIC_PAIR_FORCE"
	RuleCategorySpecificPairForbid RuleCategory = "SPECIFIC_PAIR_FORBID"
	RuleCategoryCertificationMatch RuleCategory = "CERTIFICATION_MATCH"
)

// Rule is a stored scheduling constraint. Logic is a category-keyed JSON
// payload; anything that does not parse into a known variant is flagged
// needs_review and excluded from generation.
type Rule struct {
	ID          string         `db:"id" json:"id"`
	OrgID       string         `db:"org_id" json:"org_id"`
	Category    RuleCategory   `db:"category" json:"category"`
	Logic       types.JSONText `db:"logic" json:"logic"`
	Priority    int            `db:"priority" json:"priority"`
	Active      bool           `db:"active" json:"active"`
	NeedsReview bool           `db:"needs_review" json:"needs_review"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// Hard reports whether the category blocks placement outright. Preference
// style scoring lives on Client (preferred room/time) and is handled as a
// soft penalty by the evaluator.
func (r Rule) Hard() bool {
	switch r.Category {
	case RuleCategoryPairingByAttribute,
		RuleCategorySessionShape,
		RuleCategoryAvailabilityWindow,
		RuleCategorySpecificPairForce,
		RuleCategorySpecificPairForbid,
		RuleCategoryCertificationMatch:
		return true
	}
	return false
}

// PairingByAttributeLogic forbids or requires staff/client attribute matches.
type PairingByAttributeLogic struct {
	Attribute   string `json:"attribute" validate:"required,oneof=gender"`
	Requirement string `json:"requirement" validate:"required,oneof=same different"`
}

// SessionShapeLogic bounds per-day load and spacing for a client's sessions.
type SessionShapeLogic struct {
	MaxPerDay       int `json:"maxPerDay" validate:"omitempty,min=1"`
	MinGapMinutes   int `json:"minGapMinutes" validate:"omitempty,min=0"`
	DurationMinutes int `json:"durationMinutes" validate:"omitempty,min=15"`
}

// AvailabilityWindowLogic restricts a staff member to a weekly window.
type AvailabilityWindowLogic struct {
	StaffID   string `json:"staffId" validate:"required"`
	DayOfWeek int    `json:"dayOfWeek" validate:"required,min=1,max=7"`
	Window    TimeRange
}

// UnmarshalJSON flattens the start/end pair into the embedded window.
func (l *AvailabilityWindowLogic) UnmarshalJSON(data []byte) error {
	var raw struct {
		StaffID   string `json:"staffId"`
		DayOfWeek int    `json:"dayOfWeek"`
		Start     string `json:"start"`
		End       string `json:"end"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	l.StaffID = raw.StaffID
	l.DayOfWeek = raw.DayOfWeek
	l.Window = TimeRange{Start: raw.Start, End: raw.End}
	return nil
}

// SpecificPairLogic names a staff/client pairing to force or forbid.
type SpecificPairLogic struct {
	StaffID  string `json:"staffId" validate:"required"`
	ClientID string `json:"clientId" validate:"required"`
}

// CertificationMatchLogic optionally adds certifications on top of the
// client's own required set.
type CertificationMatchLogic struct {
	ExtraCertifications []string `json:"extraCertifications"`
}

// RuleLogic is the closed tagged variant produced by ParseRuleLogic. Exactly
// one branch is non-nil, matching the rule category.
type RuleLogic struct {
	Pairing       *PairingByAttributeLogic
	Shape         *SessionShapeLogic
	Window        *AvailabilityWindowLogic
	Pair          *SpecificPairLogic
	Certification *CertificationMatchLogic
}

// ParseRuleLogic decodes a rule payload into its typed variant. Unknown
// categories and malformed payloads are rejected rather than interpreted.
func ParseRuleLogic(category RuleCategory, raw types.JSONText) (*RuleLogic, error) {
	if len(raw) == 0 {
		raw = types.JSONText(`{}`)
	}
	switch category {
	case RuleCategoryPairingByAttribute:
		var logic PairingByAttributeLogic
		if err := strictUnmarshal(raw, &logic); err != nil {
			return nil, err
		}
		if logic.Attribute == "" || logic.Requirement == "" {
			return nil, fmt.Errorf("pairing logic requires attribute and requirement")
		}
		return &RuleLogic{Pairing: &logic}, nil
	case RuleCategorySessionShape:
		var logic SessionShapeLogic
		if err := strictUnmarshal(raw, &logic); err != nil {
			return nil, err
		}
		return &RuleLogic{Shape: &logic}, nil
	case RuleCategoryAvailabilityWindow:
		var logic AvailabilityWindowLogic
		if err := strictUnmarshal(raw, &logic); err != nil {
			return nil, err
		}
		if logic.StaffID == "" || !logic.Window.Valid() {
			return nil, fmt.Errorf("availability window requires staffId and a valid window")
		}
		return &RuleLogic{Window: &logic}, nil
	case RuleCategorySpecificPairForce, RuleCategorySpecificPairForbid:
		var logic SpecificPairLogic
		if err := strictUnmarshal(raw, &logic); err != nil {
			return nil, err
		}
		if logic.StaffID == "" || logic.ClientID == "" {
			return nil, fmt.Errorf("pair logic requires staffId and clientId")
		}
		return &RuleLogic{Pair: &logic}, nil
	case RuleCategoryCertificationMatch:
		var logic CertificationMatchLogic
		if err := strictUnmarshal(raw, &logic); err != nil {
			return nil, err
		}
		return &RuleLogic{Certification: &logic}, nil
	}
	return nil, fmt.Errorf("unknown rule category %q", category)
}

func strictUnmarshal(raw types.JSONText, dest interface{}) error {
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode rule logic: %w", err)
	}
	return nil
}

// ResolvedRule couples a rule with its parsed logic for evaluation.
type ResolvedRule struct {
	Rule  Rule
	Logic *RuleLogic
}
