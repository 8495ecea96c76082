package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/jc96818/sayitschedule-sub004/internal/dto"
	"github.com/jc96818/sayitschedule-sub004/internal/models"
	"github.com/jc96818/sayitschedule-sub004/pkg/config"
	appErrors "github.com/jc96818/sayitschedule-sub004/pkg/errors"
)

type holdStore interface {
	Insert(ctx context.Context, exec sqlx.ExtContext, hold *models.AppointmentHold) error
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string, forUpdate bool) (*models.AppointmentHold, error)
	FindLiveOverlapping(ctx context.Context, exec sqlx.ExtContext, orgID string, staffID, roomID *string, date, startTime, endTime string, now time.Time) ([]models.AppointmentHold, error)
	LockSlot(ctx context.Context, exec sqlx.ExtContext, orgID, date string, staffID, roomID *string) error
	Extend(ctx context.Context, exec sqlx.ExtContext, id string, expiresAt, now time.Time) error
	Release(ctx context.Context, exec sqlx.ExtContext, id string, now time.Time) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type overlapChecker interface {
	FindBlockingOverlaps(ctx context.Context, exec sqlx.ExtContext, orgID string, staffID, roomID *string, date, startTime, endTime string, excludeSessionID *string) ([]models.Session, error)
}

// HoldService places, extends, releases and sweeps appointment holds. All
// liveness decisions happen against the clock at read time.
type HoldService struct {
	holds     holdStore
	conflicts *ConflictDetector
	tx        txProvider
	validator *validator.Validate
	logger    *zap.Logger
	cfg       config.HoldsConfig
	metrics   *MetricsService
	now       func() time.Time
}

// NewHoldService wires hold dependencies. The clock is injectable for tests.
func NewHoldService(
	holds holdStore,
	sessions overlapChecker,
	tx txProvider,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg config.HoldsConfig,
	metrics *MetricsService,
	now func() time.Time,
) *HoldService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 5 * time.Minute
	}
	if cfg.MaxTTL <= 0 {
		cfg.MaxTTL = time.Hour
	}
	if now == nil {
		now = time.Now
	}
	return &HoldService{
		holds:     holds,
		conflicts: NewConflictDetector(sessions, holds),
		tx:        tx,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		metrics:   metrics,
		now:       now,
	}
}

// CreateHold reserves the slot when no live hold and no blocking session
// overlaps it. The slot's resources are advisory-locked before the overlap
// checks, inside the same transaction as the insert, so two concurrent
// requests for the same slot cannot both succeed.
func (s *HoldService) CreateHold(ctx context.Context, req dto.CreateHoldRequest) (*models.AppointmentHold, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid hold payload")
	}
	if req.StaffID == nil && req.RoomID == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "hold requires a staff member or a room")
	}
	start, end := models.MinuteOfDay(req.StartTime), models.MinuteOfDay(req.EndTime)
	if start < 0 || end < 0 || start >= end {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid hold time range")
	}
	// Times are compared lexically in SQL, so "9:00" must become "09:00".
	req.StartTime = models.ClockFromMinute(start)
	req.EndTime = models.ClockFromMinute(end)

	ttl := s.cfg.DefaultTTL
	if req.TTLSeconds > 0 {
		ttl = time.Duration(req.TTLSeconds) * time.Second
	}
	if ttl > s.cfg.MaxTTL {
		ttl = s.cfg.MaxTTL
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

	// The advisory lock serializes writers on the slot's resources; without
	// it two transactions can both see the slot free and both insert.
	if err = s.holds.LockSlot(ctx, tx, req.OrgID, req.Date, req.StaffID, req.RoomID); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock slot")
		return nil, err
	}
	slot := SlotQuery{
		OrgID:     req.OrgID,
		StaffID:   req.StaffID,
		RoomID:    req.RoomID,
		Date:      req.Date,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	}
	if err = s.conflicts.HoldConflict(ctx, tx, slot, now); err != nil {
		return nil, err
	}
	if err = s.conflicts.SessionConflict(ctx, tx, slot); err != nil {
		return nil, err
	}

	hold := &models.AppointmentHold{
		OrgID:     req.OrgID,
		StaffID:   req.StaffID,
		RoomID:    req.RoomID,
		Date:      req.Date,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		ExpiresAt: now.Add(ttl),
	}
	if err = s.holds.Insert(ctx, tx, hold); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to place hold")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit hold")
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordHoldCreated()
	}
	s.logger.Info("hold placed",
		zap.String("hold_id", hold.ID),
		zap.String("org_id", hold.OrgID),
		zap.String("date", hold.Date),
		zap.String("start_time", hold.StartTime),
		zap.Time("expires_at", hold.ExpiresAt),
	)
	return hold, nil
}

// GetHold returns the hold only while it is live. Expired, released or
// converted holds read as gone.
func (s *HoldService) GetHold(ctx context.Context, id string) (*models.AppointmentHold, error) {
	hold, err := s.holds.FindByID(ctx, nil, id, false)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "hold not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load hold")
	}
	if !hold.Live(s.now()) {
		return nil, appErrors.ErrHoldExpired
	}
	return hold, nil
}

// ExtendHold pushes a live hold's expiry forward, capped by the max TTL
// measured from now.
func (s *HoldService) ExtendHold(ctx context.Context, id string, req dto.ExtendHoldRequest) (*models.AppointmentHold, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid extend payload")
	}
	now := s.now()
	hold, err := s.GetHold(ctx, id)
	if err != nil {
		return nil, err
	}
	expiresAt := hold.ExpiresAt.Add(time.Duration(req.Minutes) * time.Minute)
	if max := now.Add(s.cfg.MaxTTL); expiresAt.After(max) {
		expiresAt = max
	}
	if err := s.holds.Extend(ctx, nil, id, expiresAt, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrHoldExpired
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to extend hold")
	}
	hold.ExpiresAt = expiresAt
	return hold, nil
}

// ReleaseHold frees the slot before expiry. Releasing a dead hold reports it
// as expired rather than succeeding silently.
func (s *HoldService) ReleaseHold(ctx context.Context, id string) error {
	if err := s.holds.Release(ctx, nil, id, s.now()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrHoldExpired
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to release hold")
	}
	s.logger.Info("hold released", zap.String("hold_id", id))
	return nil
}

// CleanupExpiredHolds removes dead hold rows. Correctness never depends on
// this running; it only keeps the table small.
func (s *HoldService) CleanupExpiredHolds(ctx context.Context) (int64, error) {
	swept, err := s.holds.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sweep holds")
	}
	if s.metrics != nil {
		s.metrics.RecordHoldsSwept(int(swept))
	}
	if swept > 0 {
		s.logger.Info("expired holds swept", zap.Int64("count", swept))
	}
	return swept, nil
}
