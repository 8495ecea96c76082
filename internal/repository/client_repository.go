package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jc96818/sayitschedule-sub004/internal/models"
)

// ClientRepository reads the client roster.
type ClientRepository struct {
	db *sqlx.DB
}

// NewClientRepository constructs repository.
func NewClientRepository(db *sqlx.DB) *ClientRepository {
	return &ClientRepository{db: db}
}

// ListActiveByOrg returns active clients in a stable order.
func (r *ClientRepository) ListActiveByOrg(ctx context.Context, orgID string) ([]models.Client, error) {
	const query = `SELECT id, org_id, name, gender, required_sessions, required_certifications,
preferred_room_id, preferred_start_time, status, created_at, updated_at
FROM clients WHERE org_id = $1 AND status = $2 ORDER BY id ASC`
	var clients []models.Client
	if err := r.db.SelectContext(ctx, &clients, query, orgID, models.EntityStatusActive); err != nil {
		return nil, fmt.Errorf("list active clients: %w", err)
	}
	return clients, nil
}

// FindByID loads a client regardless of status.
func (r *ClientRepository) FindByID(ctx context.Context, id string) (*models.Client, error) {
	const query = `SELECT id, org_id, name, gender, required_sessions, required_certifications,
preferred_room_id, preferred_start_time, status, created_at, updated_at
FROM clients WHERE id = $1`
	var client models.Client
	if err := r.db.GetContext(ctx, &client, query, id); err != nil {
		return nil, err
	}
	return &client, nil
}
