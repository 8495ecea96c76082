package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jc96818/sayitschedule-sub004/internal/dto"
	"github.com/jc96818/sayitschedule-sub004/internal/models"
	"github.com/jc96818/sayitschedule-sub004/pkg/config"
	appErrors "github.com/jc96818/sayitschedule-sub004/pkg/errors"
)

type generatorFixtureConfig struct {
	rules     []models.Rule
	staff     []models.StaffMember
	clients   []models.Client
	rooms     []models.Room
	overrides []models.AvailabilityOverride
}

type generatorFixture struct {
	service   *ScheduleGeneratorService
	rules     *ruleListerStub
	schedules *scheduleStoreStub
	sessions  *sessionStoreStub
	cache     *cacheStub
}

func newGeneratorFixture(t *testing.T, cfg generatorFixtureConfig) *generatorFixture {
	t.Helper()
	if cfg.staff == nil {
		cfg.staff = []models.StaffMember{fixtureStaff("staff-1", "female"), fixtureStaff("staff-2", "male")}
	}
	if cfg.clients == nil {
		cfg.clients = []models.Client{fixtureClient("client-1", "female", 2)}
	}
	if cfg.rooms == nil {
		cfg.rooms = []models.Room{fixtureRoom("room-1")}
	}

	tx, mock := newTxProviderMock(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	rules := &ruleListerStub{rules: cfg.rules}
	schedules := &scheduleStoreStub{}
	sessions := &sessionStoreStub{}
	cache := &cacheStub{}

	service := NewScheduleGeneratorService(
		rules,
		staffRosterStub{staff: cfg.staff, overrides: cfg.overrides},
		clientRosterStub{clients: cfg.clients},
		roomListerStub{rooms: cfg.rooms},
		schedules,
		sessions,
		tx,
		cache,
		nil,
		nil,
		config.SchedulerConfig{SlotMinutes: 60, DayStart: "08:00", DayEnd: "12:00", RepairPasses: 2, MaxPatchOpsPerPass: 20},
		nil,
	)
	return &generatorFixture{service: service, rules: rules, schedules: schedules, sessions: sessions, cache: cache}
}

func generateRequest() dto.GenerateScheduleRequest {
	return dto.GenerateScheduleRequest{OrgID: "org-1", WeekStart: testWeekStart}
}

func TestGenerateBuildsDraftForRequirements(t *testing.T) {
	fixture := newGeneratorFixture(t, generatorFixtureConfig{})

	resp, err := fixture.service.Generate(context.Background(), generateRequest())
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleStatusDraft, resp.Schedule.Status)
	assert.Equal(t, 1, resp.Schedule.Version)
	assert.Len(t, resp.Sessions, 2)
	assert.Empty(t, resp.Violations)
	for _, session := range resp.Sessions {
		assert.Equal(t, "client-1", session.ClientID)
		assert.Equal(t, models.SessionStatusScheduled, session.Status)
	}
	assert.Len(t, fixture.sessions.items, 2)
	assert.NotEmpty(t, fixture.cache.invalidated)
}

func TestGenerateIsDeterministic(t *testing.T) {
	cfg := generatorFixtureConfig{
		staff: []models.StaffMember{
			fixtureStaff("staff-2", "male"),
			fixtureStaff("staff-1", "female"),
		},
		clients: []models.Client{
			fixtureClient("client-2", "male", 1),
			fixtureClient("client-1", "female", 2),
		},
	}

	first, err := newGeneratorFixture(t, cfg).service.Generate(context.Background(), generateRequest())
	require.NoError(t, err)
	second, err := newGeneratorFixture(t, cfg).service.Generate(context.Background(), generateRequest())
	require.NoError(t, err)

	require.Equal(t, len(first.Sessions), len(second.Sessions))
	for i := range first.Sessions {
		assert.Equal(t, first.Sessions[i].StaffID, second.Sessions[i].StaffID)
		assert.Equal(t, first.Sessions[i].ClientID, second.Sessions[i].ClientID)
		assert.Equal(t, first.Sessions[i].Date, second.Sessions[i].Date)
		assert.Equal(t, first.Sessions[i].StartTime, second.Sessions[i].StartTime)
	}
}

func TestGenerateNeverBreaksHardRules(t *testing.T) {
	fixture := newGeneratorFixture(t, generatorFixtureConfig{
		rules: []models.Rule{
			fixtureRule("rule-gender", models.RuleCategoryPairingByAttribute, `{"attribute":"gender","requirement":"same"}`),
		},
		clients: []models.Client{fixtureClient("client-1", "female", 2)},
	})

	resp, err := fixture.service.Generate(context.Background(), generateRequest())
	require.NoError(t, err)
	require.Len(t, resp.Sessions, 2)
	for _, session := range resp.Sessions {
		assert.Equal(t, "staff-1", session.StaffID, "only the same-gender staff member is admissible")
	}
}

func TestGenerateReportsInfeasibleRequirements(t *testing.T) {
	// Forbid the only staff member: requirements cannot be met and must be
	// reported as violations, not errors.
	fixture := newGeneratorFixture(t, generatorFixtureConfig{
		rules: []models.Rule{
			fixtureRule("rule-forbid", models.RuleCategorySpecificPairForbid, `{"staffId":"staff-1","clientId":"client-1"}`),
		},
		staff:   []models.StaffMember{fixtureStaff("staff-1", "female")},
		clients: []models.Client{fixtureClient("client-1", "female", 2)},
	})

	resp, err := fixture.service.Generate(context.Background(), generateRequest())
	require.NoError(t, err)
	assert.Empty(t, resp.Sessions)
	require.Len(t, resp.Violations, 2)
	for _, violation := range resp.Violations {
		assert.Equal(t, models.ViolationKindUnscheduledRequirement, violation.Kind)
		assert.Equal(t, "client-1", violation.ClientID)
	}
}

func TestGenerateHonoursAvailabilityOverride(t *testing.T) {
	fixture := newGeneratorFixture(t, generatorFixtureConfig{
		staff:   []models.StaffMember{fixtureStaff("staff-1", "female")},
		clients: []models.Client{fixtureClient("client-1", "female", 1)},
		overrides: []models.AvailabilityOverride{
			{StaffID: "staff-1", Date: testWeekStart, Available: false},
		},
	})

	resp, err := fixture.service.Generate(context.Background(), generateRequest())
	require.NoError(t, err)
	for _, session := range resp.Sessions {
		assert.NotEqual(t, testWeekStart, session.Date, "blocked day must not be used")
	}
}

func TestGenerateFlagsUnparseableRules(t *testing.T) {
	fixture := newGeneratorFixture(t, generatorFixtureConfig{
		rules: []models.Rule{
			fixtureRule("rule-bad", models.RuleCategoryPairingByAttribute, `{"attribute":"gender"}`),
		},
	})

	_, err := fixture.service.Generate(context.Background(), generateRequest())
	require.NoError(t, err)
	assert.Equal(t, []string{"rule-bad"}, fixture.rules.reviewed)
}

func TestGenerateRejectsMidweekStart(t *testing.T) {
	fixture := newGeneratorFixture(t, generatorFixtureConfig{})

	_, err := fixture.service.Generate(context.Background(), dto.GenerateScheduleRequest{
		OrgID:     "org-1",
		WeekStart: "2026-09-02",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestGenerateRequiresActiveRoster(t *testing.T) {
	fixture := newGeneratorFixture(t, generatorFixtureConfig{clients: []models.Client{}})

	_, err := fixture.service.Generate(context.Background(), generateRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}
