package service

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jc96818/sayitschedule-sub004/internal/models"
)

// RosterContext carries the resolved entities a rule evaluation needs.
type RosterContext struct {
	Staff   map[string]models.StaffMember
	Clients map[string]models.Client
	Rooms   map[string]models.Room
	// DaySessions holds the other slot-blocking sessions of the same
	// schedule, used by session-shape checks.
	DaySessions []models.Session
}

// ResolveRules parses rule logic and drops rules whose staff/client
// references do not resolve to active entities. Returned second value lists
// the rule IDs that need review.
func ResolveRules(rules []models.Rule, staff map[string]models.StaffMember, clients map[string]models.Client) ([]models.ResolvedRule, []string) {
	resolved := make([]models.ResolvedRule, 0, len(rules))
	var needsReview []string
	for _, rule := range rules {
		logic, err := models.ParseRuleLogic(rule.Category, rule.Logic)
		if err != nil {
			needsReview = append(needsReview, rule.ID)
			continue
		}
		if !referencesResolve(logic, staff, clients) {
			needsReview = append(needsReview, rule.ID)
			continue
		}
		resolved = append(resolved, models.ResolvedRule{Rule: rule, Logic: logic})
	}
	return resolved, needsReview
}

func referencesResolve(logic *models.RuleLogic, staff map[string]models.StaffMember, clients map[string]models.Client) bool {
	switch {
	case logic.Window != nil:
		member, ok := staff[logic.Window.StaffID]
		return ok && member.Active()
	case logic.Pair != nil:
		member, okStaff := staff[logic.Pair.StaffID]
		client, okClient := clients[logic.Pair.ClientID]
		return okStaff && member.Active() && okClient && client.Active()
	}
	return true
}

// RuleEvaluator applies the resolved rule set to candidate sessions.
type RuleEvaluator struct {
	rules  []models.ResolvedRule
	logger *zap.Logger
}

// NewRuleEvaluator builds an evaluator over an already-resolved rule set.
func NewRuleEvaluator(rules []models.ResolvedRule, logger *zap.Logger) *RuleEvaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RuleEvaluator{rules: rules, logger: logger}
}

// HardViolations returns every hard rule the candidate session breaks. An
// empty result means the placement is admissible.
func (e *RuleEvaluator) HardViolations(candidate models.Session, roster RosterContext) []models.Violation {
	var violations []models.Violation
	staff, okStaff := roster.Staff[candidate.StaffID]
	client, okClient := roster.Clients[candidate.ClientID]

	windowSatisfied := true
	windowSeen := false
	var firstWindowRule *models.ResolvedRule

	for i := range e.rules {
		rule := e.rules[i]
		if !rule.Rule.Hard() {
			continue
		}
		switch {
		case rule.Logic.Pairing != nil:
			if okStaff && okClient && violatesPairing(*rule.Logic.Pairing, staff, client) {
				violations = append(violations, ruleViolation(rule.Rule, candidate,
					fmt.Sprintf("staff %s and client %s break %s-%s pairing", candidate.StaffID, candidate.ClientID, rule.Logic.Pairing.Attribute, rule.Logic.Pairing.Requirement)))
			}
		case rule.Logic.Certification != nil:
			if okStaff && okClient {
				required := append([]string{}, client.RequiredCertifications...)
				required = append(required, rule.Logic.Certification.ExtraCertifications...)
				if !staff.HasCertifications(required) {
					violations = append(violations, ruleViolation(rule.Rule, candidate,
						fmt.Sprintf("staff %s lacks certifications required by client %s", candidate.StaffID, candidate.ClientID)))
				}
			}
		case rule.Logic.Pair != nil && rule.Rule.Category == models.RuleCategorySpecificPairForbid:
			if rule.Logic.Pair.StaffID == candidate.StaffID && rule.Logic.Pair.ClientID == candidate.ClientID {
				violations = append(violations, ruleViolation(rule.Rule, candidate,
					fmt.Sprintf("staff %s may not serve client %s", candidate.StaffID, candidate.ClientID)))
			}
		case rule.Logic.Pair != nil && rule.Rule.Category == models.RuleCategorySpecificPairForce:
			if rule.Logic.Pair.ClientID == candidate.ClientID && rule.Logic.Pair.StaffID != candidate.StaffID {
				violations = append(violations, ruleViolation(rule.Rule, candidate,
					fmt.Sprintf("client %s must be served by staff %s", candidate.ClientID, rule.Logic.Pair.StaffID)))
			}
		case rule.Logic.Window != nil:
			if rule.Logic.Window.StaffID != candidate.StaffID {
				continue
			}
			if dayOfWeek(candidate.Date) != rule.Logic.Window.DayOfWeek {
				continue
			}
			// Several window rules for the same staff/day act as
			// alternatives: one containing window is enough.
			if !windowSeen {
				windowSeen = true
				windowSatisfied = false
				firstWindowRule = &e.rules[i]
			}
			if rule.Logic.Window.Window.Contains(candidate.StartTime, candidate.EndTime) {
				windowSatisfied = true
			}
		case rule.Logic.Shape != nil:
			if v := e.shapeViolation(rule, candidate, roster); v != nil {
				violations = append(violations, *v)
			}
		}
	}

	if windowSeen && !windowSatisfied && firstWindowRule != nil {
		violations = append(violations, ruleViolation(firstWindowRule.Rule, candidate,
			fmt.Sprintf("session %s-%s falls outside staff %s availability window", candidate.StartTime, candidate.EndTime, candidate.StaffID)))
	}
	return violations
}

func (e *RuleEvaluator) shapeViolation(rule models.ResolvedRule, candidate models.Session, roster RosterContext) *models.Violation {
	shape := rule.Logic.Shape
	if shape.DurationMinutes > 0 {
		duration := models.MinuteOfDay(candidate.EndTime) - models.MinuteOfDay(candidate.StartTime)
		if duration != shape.DurationMinutes {
			v := ruleViolation(rule.Rule, candidate,
				fmt.Sprintf("session duration %dm differs from required %dm", duration, shape.DurationMinutes))
			return &v
		}
	}
	sameDay := 0
	for _, other := range roster.DaySessions {
		if other.ID == candidate.ID || other.ClientID != candidate.ClientID || other.Date != candidate.Date || !other.BlocksSlot() {
			continue
		}
		sameDay++
		if shape.MinGapMinutes > 0 {
			gap := gapMinutes(candidate, other)
			if gap >= 0 && gap < shape.MinGapMinutes {
				v := ruleViolation(rule.Rule, candidate,
					fmt.Sprintf("client %s sessions are %dm apart, below the %dm minimum", candidate.ClientID, gap, shape.MinGapMinutes))
				return &v
			}
		}
	}
	if shape.MaxPerDay > 0 && sameDay+1 > shape.MaxPerDay {
		v := ruleViolation(rule.Rule, candidate,
			fmt.Sprintf("client %s exceeds %d sessions on %s", candidate.ClientID, shape.MaxPerDay, candidate.Date))
		return &v
	}
	return nil
}

// SoftPenalty scores unmet client preferences for a candidate placement.
// Lower is better; hard admissibility is never affected.
func (e *RuleEvaluator) SoftPenalty(candidate models.Session, roster RosterContext) float64 {
	client, ok := roster.Clients[candidate.ClientID]
	if !ok {
		return 0
	}
	var penalty float64
	if client.PreferredRoomID != nil {
		if candidate.RoomID == nil || *candidate.RoomID != *client.PreferredRoomID {
			penalty += 1
		}
	}
	if client.PreferredStartTime != nil && candidate.StartTime != *client.PreferredStartTime {
		penalty += 1
	}
	return penalty
}

func violatesPairing(logic models.PairingByAttributeLogic, staff models.StaffMember, client models.Client) bool {
	if logic.Attribute != "gender" {
		return false
	}
	same := staff.Gender != "" && staff.Gender == client.Gender
	switch logic.Requirement {
	case "same":
		return !same
	case "different":
		return same
	}
	return false
}

func ruleViolation(rule models.Rule, session models.Session, message string) models.Violation {
	ruleID := rule.ID
	return models.Violation{
		Kind:       models.ViolationKindRuleViolation,
		Severity:   models.ViolationSeverityHard,
		RuleID:     &ruleID,
		SessionIDs: []string{session.ID},
		ClientID:   session.ClientID,
		StaffID:    session.StaffID,
		Message:    message,
	}
}

func gapMinutes(a, b models.Session) int {
	aStart := models.MinuteOfDay(a.StartTime)
	aEnd := models.MinuteOfDay(a.EndTime)
	bStart := models.MinuteOfDay(b.StartTime)
	bEnd := models.MinuteOfDay(b.EndTime)
	if aStart < 0 || aEnd < 0 || bStart < 0 || bEnd < 0 {
		return -1
	}
	if aEnd <= bStart {
		return bStart - aEnd
	}
	if bEnd <= aStart {
		return aStart - bEnd
	}
	return 0
}

func dayOfWeek(date string) int {
	day, err := time.ParseInLocation(models.DateLayout, date, time.UTC)
	if err != nil {
		return 0
	}
	weekday := int(day.Weekday())
	if weekday == 0 {
		return 7
	}
	return weekday
}
