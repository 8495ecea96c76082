package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/jc96818/sayitschedule-sub004/internal/models"
)

// ScheduleRepository persists versioned weekly schedules.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository constructs repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

func (r *ScheduleRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// CreateVersioned inserts a schedule assigning the next version for the
// org-week tuple.
func (r *ScheduleRepository) CreateVersioned(ctx context.Context, exec sqlx.ExtContext, schedule *models.Schedule) error {
	if schedule == nil {
		return fmt.Errorf("schedule payload is nil")
	}
	if schedule.OrgID == "" || schedule.WeekStart == "" {
		return fmt.Errorf("org_id and week_start are required")
	}
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	if schedule.Status == "" {
		schedule.Status = models.ScheduleStatusDraft
	}
	if len(schedule.Meta) == 0 {
		schedule.Meta = types.JSONText(`{}`)
	}
	now := time.Now().UTC()
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = now
	}
	schedule.UpdatedAt = now

	target := r.exec(exec)

	const nextVersionQuery = `SELECT COALESCE(MAX(version), 0) + 1 FROM schedules WHERE org_id = $1 AND week_start = $2`
	if err := sqlx.GetContext(ctx, target, &schedule.Version, nextVersionQuery, schedule.OrgID, schedule.WeekStart); err != nil {
		return fmt.Errorf("compute next schedule version: %w", err)
	}

	const insertQuery = `
INSERT INTO schedules (id, org_id, week_start, version, status, meta, created_at, updated_at)
VALUES (:id, :org_id, :week_start, :version, :status, :meta, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, target, insertQuery, schedule); err != nil {
		return fmt.Errorf("insert schedule: %w", err)
	}
	return nil
}

// FindByID loads a schedule by its identifier.
func (r *ScheduleRepository) FindByID(ctx context.Context, id string) (*models.Schedule, error) {
	const query = `SELECT id, org_id, week_start, version, status, meta, created_at, updated_at FROM schedules WHERE id = $1`
	var schedule models.Schedule
	if err := r.db.GetContext(ctx, &schedule, query, id); err != nil {
		return nil, err
	}
	return &schedule, nil
}

// FindLatestByOrgWeek returns the highest-version schedule for an org-week,
// or sql.ErrNoRows when none exists.
func (r *ScheduleRepository) FindLatestByOrgWeek(ctx context.Context, exec sqlx.ExtContext, orgID, weekStart string) (*models.Schedule, error) {
	target := r.exec(exec)
	const query = `SELECT id, org_id, week_start, version, status, meta, created_at, updated_at
FROM schedules WHERE org_id = $1 AND week_start = $2 ORDER BY version DESC LIMIT 1`
	var schedule models.Schedule
	if err := sqlx.GetContext(ctx, target, &schedule, query, orgID, weekStart); err != nil {
		return nil, err
	}
	return &schedule, nil
}

// ListByOrgWeek returns all versions for an org-week, newest first.
func (r *ScheduleRepository) ListByOrgWeek(ctx context.Context, orgID, weekStart string) ([]models.Schedule, error) {
	const query = `SELECT id, org_id, week_start, version, status, meta, created_at, updated_at
FROM schedules WHERE org_id = $1 AND week_start = $2 ORDER BY version DESC`
	var schedules []models.Schedule
	if err := r.db.SelectContext(ctx, &schedules, query, orgID, weekStart); err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return schedules, nil
}

// UpdateStatus updates the status (and optionally meta) of a schedule.
func (r *ScheduleRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.ScheduleStatus, meta types.JSONText) error {
	target := r.exec(exec)
	now := time.Now().UTC()

	var (
		query string
		args  []interface{}
	)
	if len(meta) > 0 {
		query = `UPDATE schedules SET status = $1, meta = $2, updated_at = $3 WHERE id = $4`
		args = []interface{}{status, meta, now, id}
	} else {
		query = `UPDATE schedules SET status = $1, updated_at = $2 WHERE id = $3`
		args = []interface{}{status, now, id}
	}
	result, err := target.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update schedule status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("schedule status rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
