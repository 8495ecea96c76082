package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/jc96818/sayitschedule-sub004/internal/dto"
	"github.com/jc96818/sayitschedule-sub004/internal/models"
	"github.com/jc96818/sayitschedule-sub004/pkg/config"
	appErrors "github.com/jc96818/sayitschedule-sub004/pkg/errors"
)

type bookingHoldStore interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string, forUpdate bool) (*models.AppointmentHold, error)
	MarkConverted(ctx context.Context, exec sqlx.ExtContext, id, sessionID string) error
}

type bookingSessionStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, session *models.Session) error
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Session, error)
	FindBlockingOverlaps(ctx context.Context, exec sqlx.ExtContext, orgID string, staffID, roomID *string, date, startTime, endTime string, excludeSessionID *string) ([]models.Session, error)
	LockSlot(ctx context.Context, exec sqlx.ExtContext, orgID, date string, staffID, roomID *string) error
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.SessionStatus) error
}

type bookingScheduleStore interface {
	FindByID(ctx context.Context, id string) (*models.Schedule, error)
	FindLatestByOrgWeek(ctx context.Context, exec sqlx.ExtContext, orgID, weekStart string) (*models.Schedule, error)
	CreateVersioned(ctx context.Context, exec sqlx.ExtContext, schedule *models.Schedule) error
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// BookingService commits sessions from holds or directly, and drives the
// post-booking status machine.
type BookingService struct {
	holds     bookingHoldStore
	sessions  bookingSessionStore
	conflicts *ConflictDetector
	schedules bookingScheduleStore
	audit     auditWriter
	tx        txProvider
	cache     cacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
	cfg       config.BookingConfig
	metrics   *MetricsService
	now       func() time.Time
}

// NewBookingService wires booking dependencies. The clock is injectable for
// tests.
func NewBookingService(
	holds bookingHoldStore,
	sessions bookingSessionStore,
	schedules bookingScheduleStore,
	audit auditWriter,
	tx txProvider,
	cache cacheInvalidator,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg config.BookingConfig,
	metrics *MetricsService,
	now func() time.Time,
) *BookingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.LateCancelWindow <= 0 {
		cfg.LateCancelWindow = 24 * time.Hour
	}
	if now == nil {
		now = time.Now
	}
	return &BookingService{
		holds:     holds,
		sessions:  sessions,
		conflicts: NewConflictDetector(sessions, nil),
		schedules: schedules,
		audit:     audit,
		tx:        tx,
		cache:     cache,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		metrics:   metrics,
		now:       now,
	}
}

// BookFromHold converts a live hold into a committed session. The hold is
// locked for the duration of the transaction, its liveness re-checked against
// the clock, and the slot re-checked against booked sessions before commit.
func (s *BookingService) BookFromHold(ctx context.Context, req dto.BookFromHoldRequest) (*models.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}
	now := s.now()

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var hold *models.AppointmentHold
	hold, err = s.holds.FindByID(ctx, tx, req.HoldID, true)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrNotFound, "hold not found")
			return nil, err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load hold")
		return nil, err
	}
	if !hold.Live(now) {
		err = appErrors.ErrHoldExpired
		return nil, err
	}
	if hold.StaffID == nil {
		err = appErrors.Clone(appErrors.ErrPreconditionFailed, "hold has no staff member to book against")
		return nil, err
	}

	// The hold guards against other holds; booked sessions can still have
	// landed through privileged direct booking, so lock the slot's resources
	// and re-check inside this transaction.
	if err = s.sessions.LockSlot(ctx, tx, hold.OrgID, hold.Date, hold.StaffID, hold.RoomID); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock slot")
		return nil, err
	}
	if err = s.conflicts.SessionConflict(ctx, tx, SlotQuery{
		OrgID:     hold.OrgID,
		StaffID:   hold.StaffID,
		RoomID:    hold.RoomID,
		Date:      hold.Date,
		StartTime: hold.StartTime,
		EndTime:   hold.EndTime,
	}); err != nil {
		if s.metrics != nil && appErrors.HasCode(err, appErrors.ErrConflict) {
			s.metrics.RecordBookingConflict("hold")
		}
		return nil, err
	}

	var scheduleID string
	scheduleID, err = s.resolveSchedule(ctx, tx, req.ScheduleID, hold.OrgID, hold.Date)
	if err != nil {
		return nil, err
	}

	session := &models.Session{
		ScheduleID:        scheduleID,
		OrgID:             hold.OrgID,
		StaffID:           *hold.StaffID,
		ClientID:          req.ClientID,
		RoomID:            hold.RoomID,
		Date:              hold.Date,
		StartTime:         hold.StartTime,
		EndTime:           hold.EndTime,
		Status:            models.SessionStatusScheduled,
		BookedVia:         bookingChannel(req.BookedVia),
		BookedByContactID: req.BookedByContactID,
		Notes:             req.Notes,
	}
	if err = s.sessions.Create(ctx, tx, session); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session")
		return nil, err
	}
	if err = s.holds.MarkConverted(ctx, tx, hold.ID, session.ID); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to convert hold")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit booking")
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordHoldConverted()
	}
	s.invalidate(ctx, session.OrgID, session.ScheduleID)
	s.writeAudit(ctx, session.OrgID, req.BookedByContactID, "booking.from_hold", session.ID)
	s.logger.Info("session booked from hold",
		zap.String("session_id", session.ID),
		zap.String("hold_id", hold.ID),
		zap.String("client_id", session.ClientID),
	)
	return session, nil
}

// BookDirect books a slot without a hold. The overlap check and insert share
// one transaction.
func (s *BookingService) BookDirect(ctx context.Context, req dto.BookDirectRequest) (*models.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}
	start, end := models.MinuteOfDay(req.StartTime), models.MinuteOfDay(req.EndTime)
	if start < 0 || end < 0 || start >= end {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid session time range")
	}
	// Times are compared lexically in SQL, so "9:00" must become "09:00".
	req.StartTime = models.ClockFromMinute(start)
	req.EndTime = models.ClockFromMinute(end)

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	staffID := req.StaffID
	if err = s.sessions.LockSlot(ctx, tx, req.OrgID, req.Date, &staffID, req.RoomID); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock slot")
		return nil, err
	}
	if err = s.conflicts.SessionConflict(ctx, tx, SlotQuery{
		OrgID:     req.OrgID,
		StaffID:   &staffID,
		RoomID:    req.RoomID,
		Date:      req.Date,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	}); err != nil {
		if s.metrics != nil && appErrors.HasCode(err, appErrors.ErrConflict) {
			s.metrics.RecordBookingConflict("direct")
		}
		return nil, err
	}

	var scheduleID string
	scheduleID, err = s.resolveSchedule(ctx, tx, req.ScheduleID, req.OrgID, req.Date)
	if err != nil {
		return nil, err
	}

	session := &models.Session{
		ScheduleID:        scheduleID,
		OrgID:             req.OrgID,
		StaffID:           req.StaffID,
		ClientID:          req.ClientID,
		RoomID:            req.RoomID,
		Date:              req.Date,
		StartTime:         req.StartTime,
		EndTime:           req.EndTime,
		Status:            models.SessionStatusScheduled,
		BookedVia:         bookingChannel(req.BookedVia),
		BookedByContactID: req.BookedByContactID,
		Notes:             req.Notes,
	}
	if err = s.sessions.Create(ctx, tx, session); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit booking")
		return nil, err
	}

	s.invalidate(ctx, session.OrgID, session.ScheduleID)
	s.writeAudit(ctx, session.OrgID, req.BookedByContactID, "booking.direct", session.ID)
	s.logger.Info("session booked directly",
		zap.String("session_id", session.ID),
		zap.String("staff_id", session.StaffID),
		zap.String("client_id", session.ClientID),
	)
	return session, nil
}

// UpdateSessionStatus applies one state-machine transition. A CANCELLED
// request is reclassified to LATE_CANCEL when the session starts within the
// lateness window; a cancellation exactly at the window boundary is late.
func (s *BookingService) UpdateSessionStatus(ctx context.Context, id string, req dto.UpdateSessionStatusRequest) (*models.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}

	session, err := s.sessions.FindByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}

	target := models.SessionStatus(req.Status)
	if target == models.SessionStatusCancelled {
		target = s.classifyCancellation(session)
	}
	if !models.CanTransition(session.Status, target) {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed,
			fmt.Sprintf("cannot transition session from %s to %s", session.Status, target))
	}

	if err := s.sessions.UpdateStatus(ctx, nil, id, target); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update session status")
	}
	session.Status = target

	s.invalidate(ctx, session.OrgID, session.ScheduleID)
	s.writeAudit(ctx, session.OrgID, nil, "session.status."+string(target), session.ID)
	s.logger.Info("session status updated",
		zap.String("session_id", id),
		zap.String("status", string(target)),
	)
	return session, nil
}

// classifyCancellation picks CANCELLED or LATE_CANCEL from the clock. The
// boundary is inclusive: cancelling exactly at the window edge is late.
func (s *BookingService) classifyCancellation(session *models.Session) models.SessionStatus {
	start, err := models.SessionStart(session.Date, session.StartTime)
	if err != nil {
		return models.SessionStatusCancelled
	}
	if !s.now().Before(start.Add(-s.cfg.LateCancelWindow)) {
		return models.SessionStatusLateCancel
	}
	return models.SessionStatusCancelled
}

func (s *BookingService) resolveSchedule(ctx context.Context, tx *sqlx.Tx, scheduleID *string, orgID, date string) (string, error) {
	if scheduleID != nil && *scheduleID != "" {
		schedule, err := s.schedules.FindByID(ctx, *scheduleID)
		if err != nil {
			return "", appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		if schedule.OrgID != orgID {
			return "", appErrors.Clone(appErrors.ErrForbidden, "schedule belongs to another organization")
		}
		return schedule.ID, nil
	}

	weekStart, err := models.WeekStartOf(date)
	if err != nil {
		return "", appErrors.Clone(appErrors.ErrValidation, "invalid session date")
	}
	schedule, err := s.schedules.FindLatestByOrgWeek(ctx, tx, orgID, weekStart)
	if err == nil {
		return schedule.ID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve schedule")
	}

	// No schedule covers this week yet: open an empty draft to attach the
	// booking to.
	created := &models.Schedule{
		OrgID:     orgID,
		WeekStart: weekStart,
		Status:    models.ScheduleStatusDraft,
	}
	if err := s.schedules.CreateVersioned(ctx, tx, created); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open schedule for booking")
	}
	return created.ID, nil
}

func (s *BookingService) invalidate(ctx context.Context, orgID, scheduleID string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.DeleteByPattern(ctx, "schedule:"+orgID+":*")
	if scheduleID != "" {
		_ = s.cache.DeleteByPattern(ctx, "schedule:detail:"+scheduleID)
	}
}

func (s *BookingService) writeAudit(ctx context.Context, orgID string, actorID *string, action, entityID string) {
	if s.audit == nil {
		return
	}
	entry := &models.AuditLog{
		UserID:     actorID,
		Action:     action,
		Resource:   "session",
		ResourceID: &entityID,
		Summary:    json.RawMessage(`{"org_id":"` + orgID + `"}`),
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
	}
}

func bookingChannel(raw string) models.BookingChannel {
	switch models.BookingChannel(raw) {
	case models.BookedViaStaff:
		return models.BookedViaStaff
	case models.BookedViaPortal:
		return models.BookedViaPortal
	default:
		return models.BookedViaAdmin
	}
}
