package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jc96818/sayitschedule-sub004/internal/models"
)

// RuleRepository persists scheduling rules.
type RuleRepository struct {
	db *sqlx.DB
}

// NewRuleRepository constructs repository.
func NewRuleRepository(db *sqlx.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

func (r *RuleRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// ListActiveByOrg returns active, review-free rules ordered by priority then
// ID so evaluation order is total and reproducible.
func (r *RuleRepository) ListActiveByOrg(ctx context.Context, orgID string) ([]models.Rule, error) {
	const query = `SELECT id, org_id, category, logic, priority, active, needs_review, created_at, updated_at
FROM rules WHERE org_id = $1 AND active = TRUE AND needs_review = FALSE ORDER BY priority ASC, id ASC`
	var rules []models.Rule
	if err := r.db.SelectContext(ctx, &rules, query, orgID); err != nil {
		return nil, fmt.Errorf("list active rules: %w", err)
	}
	return rules, nil
}

// FindByID loads a single rule.
func (r *RuleRepository) FindByID(ctx context.Context, id string) (*models.Rule, error) {
	const query = `SELECT id, org_id, category, logic, priority, active, needs_review, created_at, updated_at
FROM rules WHERE id = $1`
	var rule models.Rule
	if err := r.db.GetContext(ctx, &rule, query, id); err != nil {
		return nil, err
	}
	return &rule, nil
}

// MarkNeedsReview flags a rule whose references could not be resolved.
func (r *RuleRepository) MarkNeedsReview(ctx context.Context, exec sqlx.ExtContext, id string) error {
	target := r.exec(exec)
	const query = `UPDATE rules SET needs_review = TRUE, updated_at = $1 WHERE id = $2`
	result, err := target.ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("mark rule needs review: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rule rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
