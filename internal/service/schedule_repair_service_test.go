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

type proposerStub struct {
	ops []dto.PatchOperation
}

func (p proposerStub) Propose(_ context.Context, _ []models.Session, _ []models.Violation, _ map[string][]dto.SlotRef, _ int) []dto.PatchOperation {
	return p.ops
}

type repairFixtureConfig struct {
	rules    []models.Rule
	clients  []models.Client
	sessions []models.Session
	proposer PatchProposer
	maxOps   int
	status   models.ScheduleStatus
}

type repairFixture struct {
	service   *ScheduleRepairService
	schedules *scheduleStoreStub
	sessions  *sessionStoreStub
	cache     *cacheStub
}

func newRepairFixture(t *testing.T, cfg repairFixtureConfig) *repairFixture {
	t.Helper()
	if cfg.clients == nil {
		cfg.clients = []models.Client{fixtureClient("client-1", "female", 1)}
	}
	if cfg.maxOps == 0 {
		cfg.maxOps = 20
	}
	if cfg.status == "" {
		cfg.status = models.ScheduleStatusDraft
	}

	tx, mock := newTxProviderMock(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	schedules := &scheduleStoreStub{items: []models.Schedule{{
		ID:        "sched-1",
		OrgID:     "org-1",
		WeekStart: testWeekStart,
		Status:    cfg.status,
		Version:   1,
	}}}
	sessions := &sessionStoreStub{items: cfg.sessions, seq: len(cfg.sessions)}

	schedulerCfg := config.SchedulerConfig{
		SlotMinutes:        60,
		DayStart:           "08:00",
		DayEnd:             "12:00",
		RepairPasses:       2,
		MaxPatchOpsPerPass: cfg.maxOps,
	}
	generator := NewScheduleGeneratorService(
		&ruleListerStub{rules: cfg.rules},
		staffRosterStub{staff: []models.StaffMember{fixtureStaff("staff-1", "female"), fixtureStaff("staff-2", "male")}},
		clientRosterStub{clients: cfg.clients},
		roomListerStub{rooms: []models.Room{fixtureRoom("room-1")}},
		schedules,
		sessions,
		tx,
		nil,
		nil,
		nil,
		schedulerCfg,
		nil,
	)
	cache := &cacheStub{}
	service := NewScheduleRepairService(generator, schedules, sessions, tx, cache, cfg.proposer, nil, schedulerCfg, nil)
	return &repairFixture{service: service, schedules: schedules, sessions: sessions, cache: cache}
}

func repairSession(id, staffID, clientID, date, start, end string) models.Session {
	return models.Session{
		ID:         id,
		ScheduleID: "sched-1",
		OrgID:      "org-1",
		StaffID:    staffID,
		ClientID:   clientID,
		Date:       date,
		StartTime:  start,
		EndTime:    end,
		Status:     models.SessionStatusScheduled,
		BookedVia:  models.BookedViaAdmin,
	}
}

func TestRepairCleanDraftIsNoOp(t *testing.T) {
	fixture := newRepairFixture(t, repairFixtureConfig{
		sessions: []models.Session{repairSession("sess-1", "staff-1", "client-1", testWeekStart, "08:00", "09:00")},
	})

	resp, err := fixture.service.Repair(context.Background(), dto.RepairRequest{ScheduleID: "sched-1"})
	require.NoError(t, err)
	assert.Zero(t, resp.Passes)
	assert.Empty(t, resp.PatchApplied)
	assert.Empty(t, resp.RemainingViolations)
}

func TestRepairMovesOverlappingSession(t *testing.T) {
	fixture := newRepairFixture(t, repairFixtureConfig{
		clients: []models.Client{fixtureClient("client-1", "female", 2)},
		sessions: []models.Session{
			repairSession("sess-1", "staff-1", "client-1", testWeekStart, "08:00", "09:00"),
			repairSession("sess-2", "staff-1", "client-1", testWeekStart, "08:00", "09:00"),
		},
	})

	resp, err := fixture.service.Repair(context.Background(), dto.RepairRequest{ScheduleID: "sched-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Passes)
	require.Len(t, resp.PatchApplied, 1)
	assert.Equal(t, dto.PatchOpMove, resp.PatchApplied[0].Op)
	assert.Equal(t, "sess-2", resp.PatchApplied[0].SessionID)
	assert.Empty(t, resp.RemainingViolations)

	moved, err := fixture.sessions.FindByID(context.Background(), nil, "sess-2")
	require.NoError(t, err)
	assert.NotEqual(t, "08:00", moved.StartTime)
	assert.Contains(t, fixture.cache.invalidated, "schedule:detail:sched-1")
}

func TestRepairAddsSessionForUnmetRequirement(t *testing.T) {
	fixture := newRepairFixture(t, repairFixtureConfig{})

	resp, err := fixture.service.Repair(context.Background(), dto.RepairRequest{ScheduleID: "sched-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Passes)
	require.Len(t, resp.PatchApplied, 1)
	assert.Equal(t, dto.PatchOpAdd, resp.PatchApplied[0].Op)
	assert.Equal(t, "client-1", resp.PatchApplied[0].ClientID)
	assert.Empty(t, resp.RemainingViolations)

	require.Len(t, fixture.sessions.items, 1)
	assert.Equal(t, "sched-1", fixture.sessions.items[0].ScheduleID)
	assert.Equal(t, "client-1", fixture.sessions.items[0].ClientID)
}

func TestRepairStopsWhenProposerHasNothing(t *testing.T) {
	fixture := newRepairFixture(t, repairFixtureConfig{proposer: proposerStub{}})

	resp, err := fixture.service.Repair(context.Background(), dto.RepairRequest{ScheduleID: "sched-1"})
	require.NoError(t, err)
	assert.Zero(t, resp.Passes)
	assert.Empty(t, resp.PatchApplied)
	require.Len(t, resp.RemainingViolations, 1)
	assert.Equal(t, models.ViolationKindUnscheduledRequirement, resp.RemainingViolations[0].Kind)
}

func TestRepairDropsProposalWithUnknownSession(t *testing.T) {
	fixture := newRepairFixture(t, repairFixtureConfig{
		proposer: proposerStub{ops: []dto.PatchOperation{{Op: dto.PatchOpDelete, SessionID: "sess-ghost"}}},
	})

	resp, err := fixture.service.Repair(context.Background(), dto.RepairRequest{ScheduleID: "sched-1"})
	require.NoError(t, err)
	assert.Zero(t, resp.Passes)
	assert.Empty(t, resp.PatchApplied)
	require.Len(t, resp.RemainingViolations, 1)
}

func TestRepairDropsDuplicateSessionOps(t *testing.T) {
	fixture := newRepairFixture(t, repairFixtureConfig{
		clients: []models.Client{fixtureClient("client-1", "female", 2)},
		sessions: []models.Session{
			repairSession("sess-1", "staff-1", "client-1", testWeekStart, "08:00", "09:00"),
			repairSession("sess-2", "staff-1", "client-1", testWeekStart, "08:00", "09:00"),
		},
		proposer: proposerStub{ops: []dto.PatchOperation{
			{Op: dto.PatchOpDelete, SessionID: "sess-1"},
			{Op: dto.PatchOpDelete, SessionID: "sess-1"},
		}},
	})

	resp, err := fixture.service.Repair(context.Background(), dto.RepairRequest{ScheduleID: "sched-1"})
	require.NoError(t, err)
	assert.Zero(t, resp.Passes)
	assert.Empty(t, resp.PatchApplied)
	assert.NotEmpty(t, resp.RemainingViolations)
	assert.Len(t, fixture.sessions.items, 2)
}

func TestRepairDropsOversizedPatch(t *testing.T) {
	fixture := newRepairFixture(t, repairFixtureConfig{
		clients: []models.Client{fixtureClient("client-1", "female", 2)},
		sessions: []models.Session{
			repairSession("sess-1", "staff-1", "client-1", testWeekStart, "08:00", "09:00"),
			repairSession("sess-2", "staff-1", "client-1", testWeekStart, "08:00", "09:00"),
		},
		proposer: proposerStub{ops: []dto.PatchOperation{
			{Op: dto.PatchOpDelete, SessionID: "sess-1"},
			{Op: dto.PatchOpDelete, SessionID: "sess-2"},
		}},
		maxOps: 1,
	})

	resp, err := fixture.service.Repair(context.Background(), dto.RepairRequest{ScheduleID: "sched-1"})
	require.NoError(t, err)
	assert.Zero(t, resp.Passes)
	assert.Empty(t, resp.PatchApplied)
	assert.Len(t, fixture.sessions.items, 2)
}

func TestRepairDropsTargetOutsideSearchSpace(t *testing.T) {
	fixture := newRepairFixture(t, repairFixtureConfig{
		clients: []models.Client{fixtureClient("client-1", "female", 2)},
		sessions: []models.Session{
			repairSession("sess-1", "staff-1", "client-1", testWeekStart, "08:00", "09:00"),
			repairSession("sess-2", "staff-1", "client-1", testWeekStart, "08:00", "09:00"),
		},
		proposer: proposerStub{ops: []dto.PatchOperation{{
			Op:        dto.PatchOpMove,
			SessionID: "sess-2",
			Target:    &dto.SlotRef{StaffID: "staff-1", Date: testWeekStart, StartTime: "20:00", EndTime: "21:00"},
		}}},
	})

	resp, err := fixture.service.Repair(context.Background(), dto.RepairRequest{ScheduleID: "sched-1"})
	require.NoError(t, err)
	assert.Zero(t, resp.Passes)
	assert.Empty(t, resp.PatchApplied)
	assert.NotEmpty(t, resp.RemainingViolations)

	unmoved, err := fixture.sessions.FindByID(context.Background(), nil, "sess-2")
	require.NoError(t, err)
	assert.Equal(t, "08:00", unmoved.StartTime)
}

func TestRepairDropsUnsupportedOperation(t *testing.T) {
	// A proposer inventing an operation kind must not fail the run; the
	// draft found so far is still the answer.
	fixture := newRepairFixture(t, repairFixtureConfig{
		proposer: proposerStub{ops: []dto.PatchOperation{{Op: "TELEPORT", SessionID: "sess-1"}}},
	})

	resp, err := fixture.service.Repair(context.Background(), dto.RepairRequest{ScheduleID: "sched-1"})
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Zero(t, resp.Passes)
	assert.Empty(t, resp.PatchApplied)
	require.Len(t, resp.RemainingViolations, 1)
	assert.Equal(t, models.ViolationKindUnscheduledRequirement, resp.RemainingViolations[0].Kind)
}

func TestRepairDropsPatchBreakingHardRule(t *testing.T) {
	// The caller-supplied search space offers only a slot with the wrong
	// gender for the pairing rule, so the proposal is dropped and the
	// requirement stays unmet.
	fixture := newRepairFixture(t, repairFixtureConfig{
		rules: []models.Rule{
			fixtureRule("rule-gender", models.RuleCategoryPairingByAttribute, `{"attribute":"gender","requirement":"same"}`),
		},
	})

	resp, err := fixture.service.Repair(context.Background(), dto.RepairRequest{
		ScheduleID: "sched-1",
		SearchSpace: map[string][]dto.SlotRef{
			"client-1": {{StaffID: "staff-2", Date: testWeekStart, StartTime: "08:00", EndTime: "09:00"}},
		},
	})
	require.NoError(t, err)
	assert.Zero(t, resp.Passes)
	assert.Empty(t, resp.PatchApplied)
	require.Len(t, resp.RemainingViolations, 1)
	assert.Equal(t, models.ViolationKindUnscheduledRequirement, resp.RemainingViolations[0].Kind)
	assert.Empty(t, fixture.sessions.items)
}

func TestRepairDropsCollidingMoves(t *testing.T) {
	// Each move is structurally valid against the original busy map, but
	// both target the same slot; the simulated state has a fresh overlap.
	fixture := newRepairFixture(t, repairFixtureConfig{
		clients: []models.Client{fixtureClient("client-1", "female", 2)},
		sessions: []models.Session{
			repairSession("sess-1", "staff-1", "client-1", testWeekStart, "08:00", "09:00"),
			repairSession("sess-2", "staff-1", "client-1", testWeekStart, "08:00", "09:00"),
		},
		proposer: proposerStub{ops: []dto.PatchOperation{
			{Op: dto.PatchOpMove, SessionID: "sess-1", Target: &dto.SlotRef{StaffID: "staff-1", Date: testWeekStart, StartTime: "09:00", EndTime: "10:00"}},
			{Op: dto.PatchOpMove, SessionID: "sess-2", Target: &dto.SlotRef{StaffID: "staff-1", Date: testWeekStart, StartTime: "09:00", EndTime: "10:00"}},
		}},
	})

	resp, err := fixture.service.Repair(context.Background(), dto.RepairRequest{ScheduleID: "sched-1"})
	require.NoError(t, err)
	assert.Zero(t, resp.Passes)
	assert.Empty(t, resp.PatchApplied)
	assert.NotEmpty(t, resp.RemainingViolations)

	for _, id := range []string{"sess-1", "sess-2"} {
		session, err := fixture.sessions.FindByID(context.Background(), nil, id)
		require.NoError(t, err)
		assert.Equal(t, "08:00", session.StartTime)
	}
}

func TestRepairRefusesPublishedSchedule(t *testing.T) {
	fixture := newRepairFixture(t, repairFixtureConfig{status: models.ScheduleStatusPublished})

	_, err := fixture.service.Repair(context.Background(), dto.RepairRequest{ScheduleID: "sched-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestRepairUnknownScheduleIsNotFound(t *testing.T) {
	fixture := newRepairFixture(t, repairFixtureConfig{})

	_, err := fixture.service.Repair(context.Background(), dto.RepairRequest{ScheduleID: "sched-missing"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
