package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jc96818/sayitschedule-sub004/internal/models"
)

// StaffRepository reads the staff roster and availability overrides.
type StaffRepository struct {
	db *sqlx.DB
}

// NewStaffRepository constructs repository.
func NewStaffRepository(db *sqlx.DB) *StaffRepository {
	return &StaffRepository{db: db}
}

// ListActiveByOrg returns the active staff roster in a stable order.
func (r *StaffRepository) ListActiveByOrg(ctx context.Context, orgID string) ([]models.StaffMember, error) {
	const query = `SELECT id, org_id, name, gender, certifications, default_hours, status, created_at, updated_at
FROM staff_members WHERE org_id = $1 AND status = $2 ORDER BY id ASC`
	var staff []models.StaffMember
	if err := r.db.SelectContext(ctx, &staff, query, orgID, models.EntityStatusActive); err != nil {
		return nil, fmt.Errorf("list active staff: %w", err)
	}
	return staff, nil
}

// FindByID loads a staff member regardless of status.
func (r *StaffRepository) FindByID(ctx context.Context, id string) (*models.StaffMember, error) {
	const query = `SELECT id, org_id, name, gender, certifications, default_hours, status, created_at, updated_at
FROM staff_members WHERE id = $1`
	var staff models.StaffMember
	if err := r.db.GetContext(ctx, &staff, query, id); err != nil {
		return nil, err
	}
	return &staff, nil
}

// ListOverridesForWeek returns per-date availability overrides for all staff
// of an org within [weekStart, weekStart+7d).
func (r *StaffRepository) ListOverridesForWeek(ctx context.Context, orgID, weekStart string) ([]models.AvailabilityOverride, error) {
	const query = `SELECT o.id, o.staff_id, o.date, o.available, o.start_time, o.end_time, o.created_at
FROM availability_overrides o
JOIN staff_members s ON s.id = o.staff_id
WHERE s.org_id = $1 AND o.date >= $2::date AND o.date < $2::date + INTERVAL '7 days'
ORDER BY o.staff_id ASC, o.date ASC`
	var overrides []models.AvailabilityOverride
	if err := r.db.SelectContext(ctx, &overrides, query, orgID, weekStart); err != nil {
		return nil, fmt.Errorf("list availability overrides: %w", err)
	}
	return overrides, nil
}
