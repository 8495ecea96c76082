package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jc96818/sayitschedule-sub004/internal/dto"
	"github.com/jc96818/sayitschedule-sub004/internal/models"
	"github.com/jc96818/sayitschedule-sub004/pkg/config"
	appErrors "github.com/jc96818/sayitschedule-sub004/pkg/errors"
)

// PatchProposer suggests bounded edits for a broken draft. Proposals are
// advisory: the engine re-validates every operation before applying it.
type PatchProposer interface {
	Propose(ctx context.Context, draft []models.Session, violations []models.Violation, space map[string][]dto.SlotRef, maxOps int) []dto.PatchOperation
}

// ScheduleRepairService runs the bounded propose/validate/apply loop over a
// draft schedule.
type ScheduleRepairService struct {
	generator *ScheduleGeneratorService
	schedules scheduleStore
	sessions  sessionStore
	tx        txProvider
	cache     cacheInvalidator
	proposer  PatchProposer
	logger    *zap.Logger
	cfg       config.SchedulerConfig
	metrics   *MetricsService
}

// NewScheduleRepairService wires repair dependencies. A nil proposer falls
// back to the built-in heuristic proposer.
func NewScheduleRepairService(
	generator *ScheduleGeneratorService,
	schedules scheduleStore,
	sessions sessionStore,
	tx txProvider,
	cache cacheInvalidator,
	proposer PatchProposer,
	logger *zap.Logger,
	cfg config.SchedulerConfig,
	metrics *MetricsService,
) *ScheduleRepairService {
	if proposer == nil {
		proposer = &HeuristicProposer{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RepairPasses <= 0 {
		cfg.RepairPasses = 2
	}
	if cfg.MaxPatchOpsPerPass <= 0 {
		cfg.MaxPatchOpsPerPass = 20
	}
	return &ScheduleRepairService{
		generator: generator,
		schedules: schedules,
		sessions:  sessions,
		tx:        tx,
		cache:     cache,
		proposer:  proposer,
		logger:    logger,
		cfg:       cfg,
		metrics:   metrics,
	}
}

// Repair attempts to reduce the draft's violations with at most the
// configured number of passes. A pass that fails to reduce violations is
// discarded and ends the run, and a rejected proposal is dropped the same
// way: the caller always gets the best draft found with its remaining
// violations. Repair never edits published schedules.
func (s *ScheduleRepairService) Repair(ctx context.Context, req dto.RepairRequest) (*dto.RepairScheduleResponse, error) {
	schedule, err := s.schedules.FindByID(ctx, req.ScheduleID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
	}
	if schedule.Status != models.ScheduleStatusDraft {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "only draft schedules can be repaired")
	}

	inputs, err := s.generator.loadInputs(ctx, schedule.OrgID, schedule.WeekStart)
	if err != nil {
		return nil, err
	}
	draft, err := s.sessions.ListBySchedule(ctx, nil, schedule.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load draft sessions")
	}

	evaluator := NewRuleEvaluator(inputs.resolved, s.logger)
	working := filterBlocking(draft)
	violations := validateDraft(working, inputs, evaluator)

	space := req.SearchSpace
	if len(space) == 0 {
		space = computeSearchSpace(working, violations, inputs, schedule.WeekStart, s.cfg)
	}

	var applied []dto.PatchOperation
	passes := 0
	for passes < s.cfg.RepairPasses && len(violations) > 0 {
		ops := s.proposer.Propose(ctx, working, violations, space, s.cfg.MaxPatchOpsPerPass)
		if len(ops) == 0 {
			break
		}
		if err := validatePatch(ops, working, space, s.cfg.MaxPatchOpsPerPass); err != nil {
			s.logger.Warn("patch proposal dropped",
				zap.String("schedule_id", schedule.ID),
				zap.Error(err),
			)
			break
		}
		next, err := applyPatch(working, ops, schedule)
		if err != nil {
			s.logger.Warn("patch proposal dropped",
				zap.String("schedule_id", schedule.ID),
				zap.Error(err),
			)
			break
		}
		if introducesHardBreakage(ops, next, inputs, evaluator) {
			s.logger.Warn("patch proposal dropped",
				zap.String("schedule_id", schedule.ID),
				zap.String("reason", "patch would break a hard rule"),
			)
			break
		}
		nextViolations := validateDraft(next, inputs, evaluator)
		if len(nextViolations) >= len(violations) {
			break
		}
		working = next
		violations = nextViolations
		applied = append(applied, ops...)
		passes++
	}

	if len(applied) > 0 {
		if err := s.persistPatch(ctx, schedule, draft, working); err != nil {
			return nil, err
		}
		if s.cache != nil {
			_ = s.cache.DeleteByPattern(ctx, "schedule:"+schedule.OrgID+":*")
			_ = s.cache.DeleteByPattern(ctx, "schedule:detail:"+schedule.ID)
		}
	}
	if s.metrics != nil {
		s.metrics.ObserveRepair(passes)
	}
	s.logger.Info("schedule repair finished",
		zap.String("schedule_id", schedule.ID),
		zap.Int("passes", passes),
		zap.Int("ops_applied", len(applied)),
		zap.Int("remaining_violations", len(violations)),
	)

	return &dto.RepairScheduleResponse{
		PatchApplied:        applied,
		RemainingViolations: violations,
		Passes:              passes,
	}, nil
}

// persistPatch diffs the original draft against the repaired one and writes
// the difference inside one transaction.
func (s *ScheduleRepairService) persistPatch(ctx context.Context, schedule *models.Schedule, before, after []models.Session) error {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	beforeByID := make(map[string]models.Session, len(before))
	for _, session := range before {
		beforeByID[session.ID] = session
	}
	afterByID := make(map[string]bool, len(after))

	for _, session := range after {
		afterByID[session.ID] = true
		prev, existed := beforeByID[session.ID]
		if !existed {
			created := session
			created.ScheduleID = schedule.ID
			created.OrgID = schedule.OrgID
			if err = s.sessions.Create(ctx, tx, &created); err != nil {
				err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to insert repaired session")
				return err
			}
			continue
		}
		if prev.StaffID != session.StaffID || prev.Date != session.Date ||
			prev.StartTime != session.StartTime || prev.EndTime != session.EndTime ||
			!equalRoom(prev.RoomID, session.RoomID) {
			if err = s.sessions.UpdateSlot(ctx, tx, session.ID, session.StaffID, session.RoomID, session.Date, session.StartTime, session.EndTime); err != nil {
				err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to move repaired session")
				return err
			}
		}
	}
	for id, session := range beforeByID {
		if !afterByID[id] && session.BlocksSlot() {
			if err = s.sessions.Delete(ctx, tx, id); err != nil {
				err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete repaired session")
				return err
			}
		}
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit repair")
		return err
	}
	return nil
}

func equalRoom(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func filterBlocking(sessions []models.Session) []models.Session {
	out := make([]models.Session, 0, len(sessions))
	for _, session := range sessions {
		if session.BlocksSlot() {
			out = append(out, session)
		}
	}
	return out
}

// validateDraft recomputes the full violation set for a draft: pairwise
// overlaps, per-session hard rule breaks and unmet client requirements.
func validateDraft(sessions []models.Session, inputs *generatorInputs, evaluator *RuleEvaluator) []models.Violation {
	var violations []models.Violation

	for i := 0; i < len(sessions); i++ {
		for j := i + 1; j < len(sessions); j++ {
			a, b := sessions[i], sessions[j]
			if a.Date != b.Date || !Overlaps(a.StartTime, a.EndTime, b.StartTime, b.EndTime) {
				continue
			}
			sameStaff := a.StaffID == b.StaffID
			sameClient := a.ClientID == b.ClientID
			sameRoom := a.RoomID != nil && b.RoomID != nil && *a.RoomID == *b.RoomID
			if sameStaff || sameClient || sameRoom {
				violations = append(violations, models.Violation{
					Kind:       models.ViolationKindOverlap,
					Severity:   models.ViolationSeverityHard,
					SessionIDs: []string{a.ID, b.ID},
					StaffID:    a.StaffID,
					Message:    fmt.Sprintf("sessions %s and %s overlap on %s", a.ID, b.ID, a.Date),
				})
			}
		}
	}

	for i, session := range sessions {
		roster := inputs.roster
		roster.DaySessions = append(append([]models.Session{}, sessions[:i]...), sessions[i+1:]...)
		for _, violation := range evaluator.HardViolations(session, roster) {
			violation.SessionIDs = []string{session.ID}
			violations = append(violations, violation)
		}
		if !inputs.availability.allows(session.StaffID, session.Date, session.StartTime, session.EndTime) {
			violations = append(violations, models.Violation{
				Kind:       models.ViolationKindRuleViolation,
				Severity:   models.ViolationSeverityHard,
				SessionIDs: []string{session.ID},
				StaffID:    session.StaffID,
				Message:    fmt.Sprintf("staff %s is unavailable on %s %s-%s", session.StaffID, session.Date, session.StartTime, session.EndTime),
			})
		}
	}

	scheduled := make(map[string]int)
	for _, session := range sessions {
		scheduled[session.ClientID]++
	}
	clientIDs := make([]string, 0, len(inputs.clients))
	for _, client := range inputs.clients {
		clientIDs = append(clientIDs, client.ID)
	}
	sort.Strings(clientIDs)
	for _, id := range clientIDs {
		client := inputs.roster.Clients[id]
		if missing := client.RequiredSessions - scheduled[id]; missing > 0 {
			violations = append(violations, models.Violation{
				Kind:     models.ViolationKindUnscheduledRequirement,
				Severity: models.ViolationSeverityHard,
				ClientID: id,
				Message:  fmt.Sprintf("client %s is missing %d required session(s)", id, missing),
			})
		}
	}
	return violations
}

// computeSearchSpace builds a bounded candidate slot list per violating
// session (keyed by session ID) and per under-scheduled client (keyed by
// client ID).
func computeSearchSpace(sessions []models.Session, violations []models.Violation, inputs *generatorInputs, weekStart string, cfg config.SchedulerConfig) map[string][]dto.SlotRef {
	const maxSlotsPerKey = 40

	byDay, err := weekDates(weekStart)
	if err != nil {
		return nil
	}
	dates := make([]string, 0, 7)
	for day := 1; day <= 7; day++ {
		dates = append(dates, byDay[day])
	}
	var slots []string
	for minute := models.MinuteOfDay(cfg.DayStart); minute+cfg.SlotMinutes <= models.MinuteOfDay(cfg.DayEnd); minute += cfg.SlotMinutes {
		slots = append(slots, models.ClockFromMinute(minute))
	}

	byID := make(map[string]models.Session, len(sessions))
	staffBusy := make(map[string]bool)
	clientBusy := make(map[string]bool)
	for _, session := range sessions {
		byID[session.ID] = session
		staffBusy[busyKey(session.StaffID, session.Date, session.StartTime)] = true
		clientBusy[busyKey(session.ClientID, session.Date, session.StartTime)] = true
	}

	// A session's current slot is busy by the session itself, so the
	// candidate list never contains no-op moves.
	freeSlotsFor := func(staffID, clientID string) []dto.SlotRef {
		var refs []dto.SlotRef
		for _, date := range dates {
			for _, start := range slots {
				if len(refs) >= maxSlotsPerKey {
					return refs
				}
				end := models.ClockFromMinute(models.MinuteOfDay(start) + cfg.SlotMinutes)
				if staffBusy[busyKey(staffID, date, start)] || clientBusy[busyKey(clientID, date, start)] {
					continue
				}
				if !inputs.availability.allows(staffID, date, start, end) {
					continue
				}
				refs = append(refs, dto.SlotRef{StaffID: staffID, Date: date, StartTime: start, EndTime: end})
			}
		}
		return refs
	}

	space := make(map[string][]dto.SlotRef)
	for _, violation := range violations {
		for _, sessionID := range violation.SessionIDs {
			if _, done := space[sessionID]; done {
				continue
			}
			session, ok := byID[sessionID]
			if !ok {
				continue
			}
			space[sessionID] = freeSlotsFor(session.StaffID, session.ClientID)
		}
		if violation.Kind == models.ViolationKindUnscheduledRequirement && violation.ClientID != "" {
			if _, done := space[violation.ClientID]; done {
				continue
			}
			client, ok := inputs.roster.Clients[violation.ClientID]
			if !ok {
				continue
			}
			var refs []dto.SlotRef
			for _, member := range inputs.staff {
				if inputs.forbidden[client.ID][member.ID] {
					continue
				}
				if forcedID, forced := inputs.forcedStaff[client.ID]; forced && forcedID != member.ID {
					continue
				}
				refs = append(refs, freeSlotsFor(member.ID, client.ID)...)
				if len(refs) >= maxSlotsPerKey {
					refs = refs[:maxSlotsPerKey]
					break
				}
			}
			space[violation.ClientID] = refs
		}
	}
	return space
}

// validatePatch enforces the structural patch contract before any simulation.
func validatePatch(ops []dto.PatchOperation, sessions []models.Session, space map[string][]dto.SlotRef, maxOps int) error {
	if len(ops) > maxOps {
		return appErrors.Clone(appErrors.ErrPatchRejected, fmt.Sprintf("patch exceeds %d operations", maxOps))
	}
	byID := make(map[string]bool, len(sessions))
	for _, session := range sessions {
		byID[session.ID] = true
	}
	touched := make(map[string]bool)
	touch := func(id string) error {
		if touched[id] {
			return appErrors.Clone(appErrors.ErrPatchRejected, fmt.Sprintf("session %s referenced by multiple operations", id))
		}
		touched[id] = true
		return nil
	}
	inSpace := func(key string, target *dto.SlotRef) bool {
		if target == nil {
			return false
		}
		for _, ref := range space[key] {
			if ref.StaffID == target.StaffID && ref.Date == target.Date && ref.StartTime == target.StartTime && ref.EndTime == target.EndTime {
				return true
			}
		}
		return false
	}

	for _, op := range ops {
		switch op.Op {
		case dto.PatchOpMove:
			if !byID[op.SessionID] {
				return appErrors.Clone(appErrors.ErrPatchRejected, fmt.Sprintf("unknown session %s", op.SessionID))
			}
			if err := touch(op.SessionID); err != nil {
				return err
			}
			if !inSpace(op.SessionID, op.Target) {
				return appErrors.Clone(appErrors.ErrPatchRejected, fmt.Sprintf("move target for session %s is outside the search space", op.SessionID))
			}
		case dto.PatchOpSwap:
			if !byID[op.SessionID] || !byID[op.WithSessionID] {
				return appErrors.Clone(appErrors.ErrPatchRejected, "swap references an unknown session")
			}
			if err := touch(op.SessionID); err != nil {
				return err
			}
			if err := touch(op.WithSessionID); err != nil {
				return err
			}
		case dto.PatchOpAdd:
			if op.ClientID == "" {
				return appErrors.Clone(appErrors.ErrPatchRejected, "add operation missing client")
			}
			if !inSpace(op.ClientID, op.Target) {
				return appErrors.Clone(appErrors.ErrPatchRejected, fmt.Sprintf("add target for client %s is outside the search space", op.ClientID))
			}
		case dto.PatchOpDelete:
			if !byID[op.SessionID] {
				return appErrors.Clone(appErrors.ErrPatchRejected, fmt.Sprintf("unknown session %s", op.SessionID))
			}
			if err := touch(op.SessionID); err != nil {
				return err
			}
		default:
			return appErrors.Clone(appErrors.ErrPatchRejected, fmt.Sprintf("unsupported operation %q", op.Op))
		}
	}
	return nil
}

// applyPatch simulates the operations on a copy of the draft.
func applyPatch(sessions []models.Session, ops []dto.PatchOperation, schedule *models.Schedule) ([]models.Session, error) {
	next := make([]models.Session, len(sessions))
	copy(next, sessions)
	index := make(map[string]int, len(next))
	for i, session := range next {
		index[session.ID] = i
	}

	for _, op := range ops {
		switch op.Op {
		case dto.PatchOpMove:
			i := index[op.SessionID]
			next[i].StaffID = op.Target.StaffID
			next[i].RoomID = op.Target.RoomID
			next[i].Date = op.Target.Date
			next[i].StartTime = op.Target.StartTime
			next[i].EndTime = op.Target.EndTime
		case dto.PatchOpSwap:
			i, j := index[op.SessionID], index[op.WithSessionID]
			next[i].StaffID, next[j].StaffID = next[j].StaffID, next[i].StaffID
			next[i].RoomID, next[j].RoomID = next[j].RoomID, next[i].RoomID
			next[i].Date, next[j].Date = next[j].Date, next[i].Date
			next[i].StartTime, next[j].StartTime = next[j].StartTime, next[i].StartTime
			next[i].EndTime, next[j].EndTime = next[j].EndTime, next[i].EndTime
		case dto.PatchOpAdd:
			added := models.Session{
				ID:         uuid.NewString(),
				ScheduleID: schedule.ID,
				OrgID:      schedule.OrgID,
				StaffID:    op.Target.StaffID,
				ClientID:   op.ClientID,
				RoomID:     op.Target.RoomID,
				Date:       op.Target.Date,
				StartTime:  op.Target.StartTime,
				EndTime:    op.Target.EndTime,
				Status:     models.SessionStatusScheduled,
				BookedVia:  models.BookedViaAdmin,
			}
			index[added.ID] = len(next)
			next = append(next, added)
		case dto.PatchOpDelete:
			i := index[op.SessionID]
			next = append(next[:i], next[i+1:]...)
			index = make(map[string]int, len(next))
			for k, session := range next {
				index[session.ID] = k
			}
		}
	}
	return next, nil
}

// introducesHardBreakage checks every session touched by the patch against
// the hard rule set in the simulated draft, and scans touched pairs for
// overlaps the patch itself created. The overlap scan matters because each
// operation is structurally validated against the pre-patch busy map, so two
// moves in one pass can still collide on the same slot.
func introducesHardBreakage(ops []dto.PatchOperation, next []models.Session, inputs *generatorInputs, evaluator *RuleEvaluator) bool {
	touched := make(map[string]bool)
	for _, op := range ops {
		if op.SessionID != "" {
			touched[op.SessionID] = true
		}
		if op.WithSessionID != "" {
			touched[op.WithSessionID] = true
		}
		if op.Op == dto.PatchOpAdd {
			touched[op.ClientID] = true
		}
	}
	for i := 0; i < len(next); i++ {
		for j := i + 1; j < len(next); j++ {
			a, b := next[i], next[j]
			if !touched[a.ID] && !touched[b.ID] && !touched[a.ClientID] && !touched[b.ClientID] {
				continue
			}
			if a.Date != b.Date || !Overlaps(a.StartTime, a.EndTime, b.StartTime, b.EndTime) {
				continue
			}
			sameRoom := a.RoomID != nil && b.RoomID != nil && *a.RoomID == *b.RoomID
			if a.StaffID == b.StaffID || a.ClientID == b.ClientID || sameRoom {
				return true
			}
		}
	}
	for i, session := range next {
		if !touched[session.ID] && !touched[session.ClientID] {
			continue
		}
		roster := inputs.roster
		roster.DaySessions = append(append([]models.Session{}, next[:i]...), next[i+1:]...)
		if len(evaluator.HardViolations(session, roster)) > 0 {
			return true
		}
		if !inputs.availability.allows(session.StaffID, session.Date, session.StartTime, session.EndTime) {
			return true
		}
	}
	return false
}

// HeuristicProposer is the default deterministic proposer: move one side of
// each overlap, add sessions for unmet requirements, move rule breakers.
type HeuristicProposer struct{}

// Propose walks violations in order and emits at most maxOps operations.
func (p *HeuristicProposer) Propose(_ context.Context, _ []models.Session, violations []models.Violation, space map[string][]dto.SlotRef, maxOps int) []dto.PatchOperation {
	used := make(map[string]bool)
	var ops []dto.PatchOperation

	moveTo := func(sessionID string) *dto.PatchOperation {
		if used[sessionID] {
			return nil
		}
		refs := space[sessionID]
		if len(refs) == 0 {
			return nil
		}
		target := refs[0]
		used[sessionID] = true
		return &dto.PatchOperation{Op: dto.PatchOpMove, SessionID: sessionID, Target: &target}
	}

	for _, violation := range violations {
		if len(ops) >= maxOps {
			break
		}
		switch violation.Kind {
		case models.ViolationKindOverlap:
			// Relocate the later session of the pair; session IDs are
			// reported in draft order.
			if len(violation.SessionIDs) == 2 {
				if op := moveTo(violation.SessionIDs[1]); op != nil {
					ops = append(ops, *op)
				} else if op := moveTo(violation.SessionIDs[0]); op != nil {
					ops = append(ops, *op)
				}
			}
		case models.ViolationKindRuleViolation:
			if len(violation.SessionIDs) == 1 {
				if op := moveTo(violation.SessionIDs[0]); op != nil {
					ops = append(ops, *op)
				}
			}
		case models.ViolationKindUnscheduledRequirement:
			refs := space[violation.ClientID]
			if len(refs) == 0 || used[violation.ClientID] {
				continue
			}
			target := refs[0]
			used[violation.ClientID] = true
			ops = append(ops, dto.PatchOperation{Op: dto.PatchOpAdd, ClientID: violation.ClientID, Target: &target})
		}
	}
	return ops
}
