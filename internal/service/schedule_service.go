package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/jc96818/sayitschedule-sub004/internal/models"
	"github.com/jc96818/sayitschedule-sub004/pkg/config"
	appErrors "github.com/jc96818/sayitschedule-sub004/pkg/errors"
	"github.com/jc96818/sayitschedule-sub004/pkg/export"
)

type scheduleCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type scheduleLifecycleStore interface {
	scheduleStore
	ListByOrgWeek(ctx context.Context, orgID, weekStart string) ([]models.Schedule, error)
}

// ScheduleService reads, publishes, copies and exports schedules.
type ScheduleService struct {
	schedules scheduleLifecycleStore
	sessions  sessionStore
	tx        txProvider
	cache     scheduleCache
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	logger    *zap.Logger
	cfg       config.SchedulerConfig
}

// NewScheduleService wires schedule lifecycle dependencies.
func NewScheduleService(
	schedules scheduleLifecycleStore,
	sessions sessionStore,
	tx txProvider,
	cache scheduleCache,
	logger *zap.Logger,
	cfg config.SchedulerConfig,
) *ScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SummaryCacheTTL <= 0 {
		cfg.SummaryCacheTTL = 5 * time.Minute
	}
	return &ScheduleService{
		schedules: schedules,
		sessions:  sessions,
		tx:        tx,
		cache:     cache,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		logger:    logger,
		cfg:       cfg,
	}
}

// Get returns a schedule with its sessions, sessions ordered by date and
// start time. Results are cached per schedule.
func (s *ScheduleService) Get(ctx context.Context, id string) (*models.ScheduleDetail, error) {
	cacheKey := "schedule:detail:" + id
	if s.cache != nil {
		var cached models.ScheduleDetail
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	schedule, err := s.schedules.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	sessions, err := s.sessions.ListBySchedule(ctx, nil, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sessions")
	}

	detail := &models.ScheduleDetail{Schedule: *schedule, Sessions: sessions}
	if s.cache != nil {
		_ = s.cache.Set(ctx, cacheKey, detail, s.cfg.SummaryCacheTTL)
	}
	return detail, nil
}

// Publish freezes a draft. Publishing is idempotent-per-status: only drafts
// transition, a published schedule stays published.
func (s *ScheduleService) Publish(ctx context.Context, id string) (*models.Schedule, error) {
	schedule, err := s.schedules.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	if schedule.Status == models.ScheduleStatusPublished {
		return schedule, nil
	}
	if err := s.schedules.UpdateStatus(ctx, nil, id, models.ScheduleStatusPublished, nil); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish schedule")
	}
	schedule.Status = models.ScheduleStatusPublished
	s.invalidate(ctx, schedule.OrgID, id)
	s.logger.Info("schedule published", zap.String("schedule_id", id), zap.Int("version", schedule.Version))
	return schedule, nil
}

// CreateDraftCopy clones a schedule (usually a published one) into a fresh
// draft with the next version, so edits never touch the published plan.
func (s *ScheduleService) CreateDraftCopy(ctx context.Context, id string) (*models.ScheduleDetail, error) {
	source, err := s.schedules.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	sessions, err := s.sessions.ListBySchedule(ctx, nil, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sessions")
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

	copied := &models.Schedule{
		OrgID:     source.OrgID,
		WeekStart: source.WeekStart,
		Status:    models.ScheduleStatusDraft,
		Meta:      types.JSONText(fmt.Sprintf(`{"copied_from":%q}`, source.ID)),
	}
	if err = s.schedules.CreateVersioned(ctx, tx, copied); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create draft copy")
		return nil, err
	}

	cloned := make([]models.Session, 0, len(sessions))
	for _, session := range sessions {
		clone := session
		clone.ID = ""
		clone.ScheduleID = copied.ID
		cloned = append(cloned, clone)
	}
	if err = s.sessions.BulkCreate(ctx, tx, cloned); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to copy sessions")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit draft copy")
		return nil, err
	}

	s.invalidate(ctx, copied.OrgID, "")
	s.logger.Info("draft copy created",
		zap.String("source_id", source.ID),
		zap.String("copy_id", copied.ID),
		zap.Int("version", copied.Version),
	)
	return &models.ScheduleDetail{Schedule: *copied, Sessions: cloned}, nil
}

// Export renders the schedule's sessions as csv or pdf.
func (s *ScheduleService) Export(ctx context.Context, id, format string) ([]byte, string, error) {
	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}

	dataset := export.Dataset{
		Headers: []string{"Date", "Start", "End", "Staff", "Client", "Room", "Status"},
	}
	for _, session := range detail.Sessions {
		room := ""
		if session.RoomID != nil {
			room = *session.RoomID
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Date":   session.Date,
			"Start":  session.StartTime,
			"End":    session.EndTime,
			"Staff":  session.StaffID,
			"Client": session.ClientID,
			"Room":   room,
			"Status": string(session.Status),
		})
	}

	switch strings.ToLower(format) {
	case "csv", "":
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export")
		}
		return payload, "text/csv", nil
	case "pdf":
		title := fmt.Sprintf("Schedule %s (week of %s, v%d)", detail.Schedule.ID, detail.Schedule.WeekStart, detail.Schedule.Version)
		payload, err := s.pdf.Render(dataset, title)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf export")
		}
		return payload, "application/pdf", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}

// ListVersions returns every schedule version for an org week, newest first.
func (s *ScheduleService) ListVersions(ctx context.Context, orgID, weekStart string) ([]models.Schedule, error) {
	schedules, err := s.schedules.ListByOrgWeek(ctx, orgID, weekStart)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schedules")
	}
	return schedules, nil
}

func (s *ScheduleService) invalidate(ctx context.Context, orgID, scheduleID string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.DeleteByPattern(ctx, "schedule:"+orgID+":*")
	if scheduleID != "" {
		_ = s.cache.DeleteByPattern(ctx, "schedule:detail:"+scheduleID)
	}
}
