package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/jc96818/sayitschedule-sub004/internal/dto"
	"github.com/jc96818/sayitschedule-sub004/internal/models"
	"github.com/jc96818/sayitschedule-sub004/pkg/config"
	appErrors "github.com/jc96818/sayitschedule-sub004/pkg/errors"
)

type ruleLister interface {
	ListActiveByOrg(ctx context.Context, orgID string) ([]models.Rule, error)
	MarkNeedsReview(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type staffRoster interface {
	ListActiveByOrg(ctx context.Context, orgID string) ([]models.StaffMember, error)
	ListOverridesForWeek(ctx context.Context, orgID, weekStart string) ([]models.AvailabilityOverride, error)
}

type clientRoster interface {
	ListActiveByOrg(ctx context.Context, orgID string) ([]models.Client, error)
}

type roomLister interface {
	ListActiveByOrg(ctx context.Context, orgID string) ([]models.Room, error)
}

type scheduleStore interface {
	CreateVersioned(ctx context.Context, exec sqlx.ExtContext, schedule *models.Schedule) error
	FindByID(ctx context.Context, id string) (*models.Schedule, error)
	FindLatestByOrgWeek(ctx context.Context, exec sqlx.ExtContext, orgID, weekStart string) (*models.Schedule, error)
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.ScheduleStatus, meta types.JSONText) error
}

type sessionStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, session *models.Session) error
	BulkCreate(ctx context.Context, exec sqlx.ExtContext, sessions []models.Session) error
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Session, error)
	ListBySchedule(ctx context.Context, exec sqlx.ExtContext, scheduleID string) ([]models.Session, error)
	UpdateSlot(ctx context.Context, exec sqlx.ExtContext, id, staffID string, roomID *string, date, startTime, endTime string) error
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type cacheInvalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

// ScheduleGeneratorService builds deterministic weekly drafts from staff
// availability, client requirements and the active rule set.
type ScheduleGeneratorService struct {
	rules     ruleLister
	staff     staffRoster
	clients   clientRoster
	rooms     roomLister
	schedules scheduleStore
	sessions  sessionStore
	tx        txProvider
	cache     cacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
	cfg       config.SchedulerConfig
	metrics   *MetricsService
}

// NewScheduleGeneratorService wires generator dependencies.
func NewScheduleGeneratorService(
	rules ruleLister,
	staff staffRoster,
	clients clientRoster,
	rooms roomLister,
	schedules scheduleStore,
	sessions sessionStore,
	tx txProvider,
	cache cacheInvalidator,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg config.SchedulerConfig,
	metrics *MetricsService,
) *ScheduleGeneratorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SlotMinutes <= 0 {
		cfg.SlotMinutes = 60
	}
	if cfg.DayStart == "" {
		cfg.DayStart = "08:00"
	}
	if cfg.DayEnd == "" {
		cfg.DayEnd = "18:00"
	}
	return &ScheduleGeneratorService{
		rules:     rules,
		staff:     staff,
		clients:   clients,
		rooms:     rooms,
		schedules: schedules,
		sessions:  sessions,
		tx:        tx,
		cache:     cache,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		metrics:   metrics,
	}
}

// Generate builds and persists a draft schedule for the requested week.
// Infeasible requirements are recorded as violations, never as errors.
func (s *ScheduleGeneratorService) Generate(ctx context.Context, req dto.GenerateScheduleRequest) (*dto.GenerateScheduleResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule generation payload")
	}
	weekStart, err := models.WeekStartOf(req.WeekStart)
	if err != nil || weekStart != req.WeekStart {
		return nil, appErrors.Clone(appErrors.ErrValidation, "weekStart must be an ISO week Monday")
	}
	started := time.Now()

	inputs, err := s.loadInputs(ctx, req.OrgID, weekStart)
	if err != nil {
		return nil, err
	}
	if len(inputs.clients) == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "no active clients to schedule")
	}
	if len(inputs.staff) == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "no active staff to schedule")
	}

	draft := s.solve(inputs, weekStart)

	schedule, err := s.persistDraft(ctx, req.OrgID, weekStart, draft)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.DeleteByPattern(ctx, "schedule:"+req.OrgID+":*")
	}
	if s.metrics != nil {
		s.metrics.ObserveGeneration(time.Since(started), len(draft.sessions), len(draft.violations))
	}
	s.logger.Info("schedule draft generated",
		zap.String("org_id", req.OrgID),
		zap.String("week_start", weekStart),
		zap.Int("sessions", len(draft.sessions)),
		zap.Int("violations", len(draft.violations)),
	)

	return &dto.GenerateScheduleResponse{
		Schedule:   *schedule,
		Sessions:   draft.sessions,
		Violations: draft.violations,
		Penalty:    draft.penalty,
	}, nil
}

// generatorInputs bundles everything the solver consumes.
type generatorInputs struct {
	staff        []models.StaffMember
	clients      []models.Client
	rooms        []models.Room
	resolved     []models.ResolvedRule
	roster       RosterContext
	availability availabilityIndex
	forcedStaff  map[string]string
	forbidden    map[string]map[string]bool
}

func (s *ScheduleGeneratorService) loadInputs(ctx context.Context, orgID, weekStart string) (*generatorInputs, error) {
	rules, err := s.rules.ListActiveByOrg(ctx, orgID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rules")
	}
	staff, err := s.staff.ListActiveByOrg(ctx, orgID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load staff roster")
	}
	clients, err := s.clients.ListActiveByOrg(ctx, orgID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load client roster")
	}
	rooms, err := s.rooms.ListActiveByOrg(ctx, orgID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rooms")
	}
	overrides, err := s.staff.ListOverridesForWeek(ctx, orgID, weekStart)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability overrides")
	}

	staffByID := make(map[string]models.StaffMember, len(staff))
	for _, member := range staff {
		staffByID[member.ID] = member
	}
	clientsByID := make(map[string]models.Client, len(clients))
	for _, client := range clients {
		clientsByID[client.ID] = client
	}
	roomsByID := make(map[string]models.Room, len(rooms))
	for _, room := range rooms {
		roomsByID[room.ID] = room
	}

	resolved, needsReview := ResolveRules(rules, staffByID, clientsByID)
	for _, id := range needsReview {
		if err := s.rules.MarkNeedsReview(ctx, nil, id); err != nil {
			s.logger.Warn("failed to flag rule for review", zap.String("rule_id", id), zap.Error(err))
		}
	}

	availability, err := buildAvailabilityIndex(staff, overrides, weekStart)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid staff availability payload")
	}

	forcedStaff := make(map[string]string)
	forbidden := make(map[string]map[string]bool)
	for _, rule := range resolved {
		if rule.Logic.Pair == nil {
			continue
		}
		switch rule.Rule.Category {
		case models.RuleCategorySpecificPairForce:
			forcedStaff[rule.Logic.Pair.ClientID] = rule.Logic.Pair.StaffID
		case models.RuleCategorySpecificPairForbid:
			if forbidden[rule.Logic.Pair.ClientID] == nil {
				forbidden[rule.Logic.Pair.ClientID] = make(map[string]bool)
			}
			forbidden[rule.Logic.Pair.ClientID][rule.Logic.Pair.StaffID] = true
		}
	}

	return &generatorInputs{
		staff:    staff,
		clients:  clients,
		rooms:    rooms,
		resolved: resolved,
		roster: RosterContext{
			Staff:   staffByID,
			Clients: clientsByID,
			Rooms:   roomsByID,
		},
		availability: availability,
		forcedStaff:  forcedStaff,
		forbidden:    forbidden,
	}, nil
}

// draftResult is the solver output before persistence.
type draftResult struct {
	sessions   []models.Session
	violations []models.Violation
	penalty    float64
}

// solve runs the deterministic greedy placement. Forced pairings reserve
// their slots first; remaining clients follow in unmet-requirement order.
func (s *ScheduleGeneratorService) solve(inputs *generatorInputs, weekStart string) *draftResult {
	evaluator := NewRuleEvaluator(inputs.resolved, s.logger)
	state := newDraftState(inputs, weekStart, s.cfg)

	ordered := make([]models.Client, len(inputs.clients))
	copy(ordered, inputs.clients)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].RequiredSessions != ordered[j].RequiredSessions {
			return ordered[i].RequiredSessions > ordered[j].RequiredSessions
		}
		return ordered[i].ID < ordered[j].ID
	})

	// Two passes: forced pairings first so their slots are reserved before
	// generic allocation competes for them.
	result := &draftResult{}
	for _, forcedPass := range []bool{true, false} {
		for _, client := range ordered {
			_, hasForced := inputs.forcedStaff[client.ID]
			if hasForced != forcedPass {
				continue
			}
			s.scheduleClient(client, inputs, state, evaluator, result)
		}
	}

	result.sessions = state.export()
	return result
}

func (s *ScheduleGeneratorService) scheduleClient(client models.Client, inputs *generatorInputs, state *draftState, evaluator *RuleEvaluator, result *draftResult) {
	for i := 0; i < client.RequiredSessions; i++ {
		candidate, penalty, ok := state.bestCandidate(client, inputs, evaluator)
		if !ok {
			result.violations = append(result.violations, models.Violation{
				Kind:     models.ViolationKindUnscheduledRequirement,
				Severity: models.ViolationSeverityHard,
				ClientID: client.ID,
				Message:  fmt.Sprintf("no feasible slot for client %s (requirement %d of %d)", client.ID, i+1, client.RequiredSessions),
			})
			continue
		}
		state.place(candidate)
		result.penalty += penalty
	}
}

func (s *ScheduleGeneratorService) persistDraft(ctx context.Context, orgID, weekStart string, draft *draftResult) (*models.Schedule, error) {
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	meta, marshalErr := json.Marshal(map[string]any{
		"algorithm":  "greedy_v1",
		"penalty":    draft.penalty,
		"sessions":   len(draft.sessions),
		"violations": len(draft.violations),
	})
	if marshalErr != nil {
		err = appErrors.Wrap(marshalErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode schedule metadata")
		return nil, err
	}

	schedule := &models.Schedule{
		OrgID:     orgID,
		WeekStart: weekStart,
		Status:    models.ScheduleStatusDraft,
		Meta:      types.JSONText(meta),
	}
	if err = s.schedules.CreateVersioned(ctx, tx, schedule); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create schedule")
		return nil, err
	}

	for i := range draft.sessions {
		draft.sessions[i].ScheduleID = schedule.ID
		draft.sessions[i].OrgID = orgID
	}
	if err = s.sessions.BulkCreate(ctx, tx, draft.sessions); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist draft sessions")
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit draft schedule")
		return nil, err
	}
	return schedule, nil
}

// --- Availability ---

// availabilityIndex maps staff ID to date to permitted working windows for
// the target week (default weekly hours merged with date overrides).
type availabilityIndex map[string]map[string][]models.TimeRange

func buildAvailabilityIndex(staff []models.StaffMember, overrides []models.AvailabilityOverride, weekStart string) (availabilityIndex, error) {
	dates, err := weekDates(weekStart)
	if err != nil {
		return nil, err
	}
	index := make(availabilityIndex, len(staff))
	for _, member := range staff {
		weekly, err := models.ParseWeeklyHours(member.DefaultHours)
		if err != nil {
			return nil, fmt.Errorf("staff %s: %w", member.ID, err)
		}
		byDate := make(map[string][]models.TimeRange, len(dates))
		for day, date := range dates {
			if ranges, ok := weekly[day]; ok && len(ranges) > 0 {
				byDate[date] = ranges
			}
		}
		index[member.ID] = byDate
	}
	for _, override := range overrides {
		byDate, ok := index[override.StaffID]
		if !ok {
			continue
		}
		if !override.Available {
			delete(byDate, override.Date)
			continue
		}
		if override.StartTime != nil && override.EndTime != nil {
			byDate[override.Date] = []models.TimeRange{{Start: *override.StartTime, End: *override.EndTime}}
		}
	}
	return index, nil
}

func (a availabilityIndex) allows(staffID, date, start, end string) bool {
	ranges, ok := a[staffID][date]
	if !ok {
		return false
	}
	for _, r := range ranges {
		if r.Contains(start, end) {
			return true
		}
	}
	return false
}

// weekDates maps ISO day index (1=Monday) to concrete dates of the week.
func weekDates(weekStart string) (map[int]string, error) {
	monday, err := time.ParseInLocation(models.DateLayout, weekStart, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("parse week start %q: %w", weekStart, err)
	}
	dates := make(map[int]string, 7)
	for day := 1; day <= 7; day++ {
		dates[day] = monday.AddDate(0, 0, day-1).Format(models.DateLayout)
	}
	return dates, nil
}

// --- Draft state ---

type draftState struct {
	cfg        config.SchedulerConfig
	inputs     *generatorInputs
	dates      []string
	slots      []string
	placed     []models.Session
	staffBusy  map[string]bool
	roomBusy   map[string]bool
	clientBusy map[string]bool
}

func newDraftState(inputs *generatorInputs, weekStart string, cfg config.SchedulerConfig) *draftState {
	byDay, _ := weekDates(weekStart)
	dates := make([]string, 0, 7)
	for day := 1; day <= 7; day++ {
		dates = append(dates, byDay[day])
	}
	var slots []string
	for minute := models.MinuteOfDay(cfg.DayStart); minute+cfg.SlotMinutes <= models.MinuteOfDay(cfg.DayEnd); minute += cfg.SlotMinutes {
		slots = append(slots, models.ClockFromMinute(minute))
	}
	return &draftState{
		cfg:        cfg,
		inputs:     inputs,
		dates:      dates,
		slots:      slots,
		staffBusy:  make(map[string]bool),
		roomBusy:   make(map[string]bool),
		clientBusy: make(map[string]bool),
	}
}

func busyKey(id, date, start string) string {
	return id + "|" + date + "|" + start
}

// bestCandidate enumerates admissible (staff, room, slot) triples in a fixed
// order and returns the lowest-penalty one. Ties keep the earliest candidate,
// which makes generation reproducible.
func (s *draftState) bestCandidate(client models.Client, inputs *generatorInputs, evaluator *RuleEvaluator) (models.Session, float64, bool) {
	staffPool := make([]models.StaffMember, 0, len(inputs.staff))
	if forcedID, ok := inputs.forcedStaff[client.ID]; ok {
		if member, exists := inputs.roster.Staff[forcedID]; exists {
			staffPool = append(staffPool, member)
		}
	} else {
		staffPool = append(staffPool, inputs.staff...)
	}

	var best models.Session
	bestPenalty := 0.0
	found := false

	for _, date := range s.dates {
		for _, start := range s.slots {
			end := models.ClockFromMinute(models.MinuteOfDay(start) + s.cfg.SlotMinutes)
			if s.clientBusy[busyKey(client.ID, date, start)] {
				continue
			}
			for _, member := range staffPool {
				if inputs.forbidden[client.ID][member.ID] {
					continue
				}
				if s.staffBusy[busyKey(member.ID, date, start)] {
					continue
				}
				if !inputs.availability.allows(member.ID, date, start, end) {
					continue
				}
				roomID := s.pickRoom(client, date, start)
				candidate := models.Session{
					StaffID:   member.ID,
					ClientID:  client.ID,
					RoomID:    roomID,
					Date:      date,
					StartTime: start,
					EndTime:   end,
					Status:    models.SessionStatusScheduled,
					BookedVia: models.BookedViaAdmin,
				}
				roster := inputs.roster
				roster.DaySessions = s.placed
				if len(evaluator.HardViolations(candidate, roster)) > 0 {
					continue
				}
				penalty := evaluator.SoftPenalty(candidate, roster)
				if !found || penalty < bestPenalty {
					best = candidate
					bestPenalty = penalty
					found = true
				}
				if found && bestPenalty == 0 {
					return best, bestPenalty, true
				}
			}
		}
	}
	return best, bestPenalty, found
}

// pickRoom chooses the preferred room when free, otherwise the first free
// active room by ID, otherwise no room.
func (s *draftState) pickRoom(client models.Client, date, start string) *string {
	if client.PreferredRoomID != nil {
		if _, ok := s.inputs.roster.Rooms[*client.PreferredRoomID]; ok && !s.roomBusy[busyKey(*client.PreferredRoomID, date, start)] {
			id := *client.PreferredRoomID
			return &id
		}
	}
	for _, room := range s.inputs.rooms {
		if !s.roomBusy[busyKey(room.ID, date, start)] {
			id := room.ID
			return &id
		}
	}
	return nil
}

func (s *draftState) place(session models.Session) {
	s.placed = append(s.placed, session)
	s.staffBusy[busyKey(session.StaffID, session.Date, session.StartTime)] = true
	s.clientBusy[busyKey(session.ClientID, session.Date, session.StartTime)] = true
	if session.RoomID != nil {
		s.roomBusy[busyKey(*session.RoomID, session.Date, session.StartTime)] = true
	}
}

func (s *draftState) export() []models.Session {
	sessions := make([]models.Session, len(s.placed))
	copy(sessions, s.placed)
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].Date != sessions[j].Date {
			return sessions[i].Date < sessions[j].Date
		}
		if sessions[i].StartTime != sessions[j].StartTime {
			return sessions[i].StartTime < sessions[j].StartTime
		}
		if sessions[i].StaffID != sessions[j].StaffID {
			return sessions[i].StaffID < sessions[j].StaffID
		}
		return sessions[i].ClientID < sessions[j].ClientID
	})
	return sessions
}
