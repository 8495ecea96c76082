package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jc96818/sayitschedule-sub004/internal/models"
)

func evaluatorRoster() RosterContext {
	staff := fixtureStaff("staff-1", "female", "speech", "peds")
	client := fixtureClient("client-1", "female", 2)
	return RosterContext{
		Staff:   map[string]models.StaffMember{staff.ID: staff},
		Clients: map[string]models.Client{client.ID: client},
		Rooms:   map[string]models.Room{"room-1": fixtureRoom("room-1")},
	}
}

func candidateSession() models.Session {
	return models.Session{
		ID:        "cand-1",
		StaffID:   "staff-1",
		ClientID:  "client-1",
		Date:      testWeekStart,
		StartTime: "09:00",
		EndTime:   "10:00",
		Status:    models.SessionStatusScheduled,
	}
}

func resolve(t *testing.T, rules ...models.Rule) []models.ResolvedRule {
	t.Helper()
	roster := evaluatorRoster()
	resolved, needsReview := ResolveRules(rules, roster.Staff, roster.Clients)
	require.Empty(t, needsReview)
	return resolved
}

func TestResolveRulesFlagsUnparseableLogic(t *testing.T) {
	roster := evaluatorRoster()
	rules := []models.Rule{
		fixtureRule("rule-bad", models.RuleCategoryPairingByAttribute, `{"attribute":"gender"}`),
		fixtureRule("rule-dangling", models.RuleCategorySpecificPairForbid, `{"staffId":"ghost","clientId":"client-1"}`),
		fixtureRule("rule-ok", models.RuleCategorySessionShape, `{"maxPerDay":2}`),
	}

	resolved, needsReview := ResolveRules(rules, roster.Staff, roster.Clients)
	assert.ElementsMatch(t, []string{"rule-bad", "rule-dangling"}, needsReview)
	require.Len(t, resolved, 1)
	assert.Equal(t, "rule-ok", resolved[0].Rule.ID)
}

func TestHardViolationsGenderPairing(t *testing.T) {
	evaluator := NewRuleEvaluator(resolve(t,
		fixtureRule("rule-1", models.RuleCategoryPairingByAttribute, `{"attribute":"gender","requirement":"same"}`),
	), nil)
	roster := evaluatorRoster()

	assert.Empty(t, evaluator.HardViolations(candidateSession(), roster))

	mismatched := roster
	staff := mismatched.Staff["staff-1"]
	staff.Gender = "male"
	mismatched.Staff = map[string]models.StaffMember{"staff-1": staff}
	violations := evaluator.HardViolations(candidateSession(), mismatched)
	require.Len(t, violations, 1)
	assert.Equal(t, models.ViolationKindRuleViolation, violations[0].Kind)
	assert.Equal(t, models.ViolationSeverityHard, violations[0].Severity)
}

func TestHardViolationsCertificationMatch(t *testing.T) {
	evaluator := NewRuleEvaluator(resolve(t,
		fixtureRule("rule-1", models.RuleCategoryCertificationMatch, `{"extraCertifications":["aba"]}`),
	), nil)
	roster := evaluatorRoster()

	// staff-1 has speech+peds but not aba.
	violations := evaluator.HardViolations(candidateSession(), roster)
	require.Len(t, violations, 1)

	staff := roster.Staff["staff-1"]
	staff.Certifications = append(staff.Certifications, "aba")
	roster.Staff = map[string]models.StaffMember{"staff-1": staff}
	assert.Empty(t, evaluator.HardViolations(candidateSession(), roster))
}

func TestHardViolationsSpecificPairs(t *testing.T) {
	forbid := NewRuleEvaluator(resolve(t,
		fixtureRule("rule-1", models.RuleCategorySpecificPairForbid, `{"staffId":"staff-1","clientId":"client-1"}`),
	), nil)
	violations := forbid.HardViolations(candidateSession(), evaluatorRoster())
	require.Len(t, violations, 1)

	force := NewRuleEvaluator(resolve(t,
		fixtureRule("rule-2", models.RuleCategorySpecificPairForce, `{"staffId":"staff-1","clientId":"client-1"}`),
	), nil)
	assert.Empty(t, force.HardViolations(candidateSession(), evaluatorRoster()))

	// Forced pairing violated when another staff member takes the client.
	roster := evaluatorRoster()
	stranger := fixtureStaff("staff-2", "female")
	roster.Staff["staff-2"] = stranger
	moved := candidateSession()
	moved.StaffID = "staff-2"
	violations = force.HardViolations(moved, roster)
	require.Len(t, violations, 1)
}

func TestHardViolationsAvailabilityWindowAlternatives(t *testing.T) {
	// Two window rules for the same staff/day act as alternatives.
	evaluator := NewRuleEvaluator(resolve(t,
		fixtureRule("rule-1", models.RuleCategoryAvailabilityWindow, `{"staffId":"staff-1","dayOfWeek":1,"start":"08:00","end":"10:00"}`),
		fixtureRule("rule-2", models.RuleCategoryAvailabilityWindow, `{"staffId":"staff-1","dayOfWeek":1,"start":"14:00","end":"16:00"}`),
	), nil)
	roster := evaluatorRoster()

	morning := candidateSession()
	morning.StartTime, morning.EndTime = "08:00", "09:00"
	assert.Empty(t, evaluator.HardViolations(morning, roster))

	afternoon := candidateSession()
	afternoon.StartTime, afternoon.EndTime = "14:00", "15:00"
	assert.Empty(t, evaluator.HardViolations(afternoon, roster))

	lunch := candidateSession()
	lunch.StartTime, lunch.EndTime = "12:00", "13:00"
	violations := evaluator.HardViolations(lunch, roster)
	require.Len(t, violations, 1)
	require.NotNil(t, violations[0].RuleID)
	assert.Equal(t, "rule-1", *violations[0].RuleID)
}

func TestHardViolationsSessionShape(t *testing.T) {
	evaluator := NewRuleEvaluator(resolve(t,
		fixtureRule("rule-1", models.RuleCategorySessionShape, `{"maxPerDay":1,"minGapMinutes":60,"durationMinutes":60}`),
	), nil)
	roster := evaluatorRoster()

	wrongDuration := candidateSession()
	wrongDuration.EndTime = "10:30"
	violations := evaluator.HardViolations(wrongDuration, roster)
	require.Len(t, violations, 1)

	// Second session for the same client same day breaks maxPerDay.
	roster.DaySessions = []models.Session{{
		ID: "sess-existing", StaffID: "staff-1", ClientID: "client-1",
		Date: testWeekStart, StartTime: "14:00", EndTime: "15:00",
		Status: models.SessionStatusScheduled,
	}}
	violations = evaluator.HardViolations(candidateSession(), roster)
	require.Len(t, violations, 1)

	// A cancelled session no longer counts.
	roster.DaySessions[0].Status = models.SessionStatusCancelled
	assert.Empty(t, evaluator.HardViolations(candidateSession(), roster))
}

func TestSoftPenaltyPreferences(t *testing.T) {
	evaluator := NewRuleEvaluator(nil, nil)
	roster := evaluatorRoster()
	client := roster.Clients["client-1"]
	client.PreferredRoomID = strPtr("room-1")
	client.PreferredStartTime = strPtr("09:00")
	roster.Clients = map[string]models.Client{"client-1": client}

	ideal := candidateSession()
	ideal.RoomID = strPtr("room-1")
	assert.Equal(t, 0.0, evaluator.SoftPenalty(ideal, roster))

	wrongRoom := candidateSession()
	wrongRoom.RoomID = strPtr("room-2")
	assert.Equal(t, 1.0, evaluator.SoftPenalty(wrongRoom, roster))

	wrongBoth := candidateSession()
	wrongBoth.StartTime = "11:00"
	assert.Equal(t, 2.0, evaluator.SoftPenalty(wrongBoth, roster))
}
