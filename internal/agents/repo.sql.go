package agents

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-wms/meridian-wms/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts an agent and returns it with its assigned ID.
func (r *Repository) Create(ctx context.Context, agent FieldAgent) (FieldAgent, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO field_agents (name, phone, email, assigned_routes, active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,NOW(),NOW()) RETURNING id, created_at, updated_at`,
		agent.Name, agent.Phone, agent.Email, agent.AssignedRoutes, agent.Active).
		Scan(&agent.ID, &agent.CreatedAt, &agent.UpdatedAt)
	if err != nil {
		return FieldAgent{}, err
	}
	return agent, nil
}

// Update replaces the mutable fields of an agent.
func (r *Repository) Update(ctx context.Context, agent FieldAgent) error {
	tag, err := r.pool.Exec(ctx, `UPDATE field_agents SET name=$1, phone=$2, email=$3, assigned_routes=$4, active=$5, updated_at=NOW() WHERE id=$6`,
		agent.Name, agent.Phone, agent.Email, agent.AssignedRoutes, agent.Active, agent.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &shared.NotFoundError{Entity: "field agent", Ref: fmt.Sprintf("%d", agent.ID)}
	}
	return nil
}

// Get returns one agent by ID.
func (r *Repository) Get(ctx context.Context, id int64) (FieldAgent, error) {
	var agent FieldAgent
	err := r.pool.QueryRow(ctx, `SELECT id, name, phone, email, assigned_routes, active, created_at, updated_at FROM field_agents WHERE id=$1`, id).
		Scan(&agent.ID, &agent.Name, &agent.Phone, &agent.Email, &agent.AssignedRoutes, &agent.Active, &agent.CreatedAt, &agent.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FieldAgent{}, &shared.NotFoundError{Entity: "field agent", Ref: fmt.Sprintf("%d", id)}
		}
		return FieldAgent{}, err
	}
	return agent, nil
}

// List returns agents matching the filter.
func (r *Repository) List(ctx context.Context, filter Filter) ([]FieldAgent, int, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	var active any
	if filter.Active != nil {
		active = *filter.Active
	}
	rows, err := r.pool.Query(ctx, `SELECT id, name, phone, email, assigned_routes, active, created_at, updated_at
FROM field_agents
WHERE ($1::boolean IS NULL OR active = $1)
  AND ($2 = '' OR $2 = ANY(assigned_routes))
ORDER BY name
LIMIT $3 OFFSET $4`, active, filter.Route, limit, filter.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []FieldAgent
	for rows.Next() {
		var agent FieldAgent
		if err := rows.Scan(&agent.ID, &agent.Name, &agent.Phone, &agent.Email, &agent.AssignedRoutes, &agent.Active, &agent.CreatedAt, &agent.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, agent)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	var total int
	err = r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM field_agents
WHERE ($1::boolean IS NULL OR active = $1)
  AND ($2 = '' OR $2 = ANY(assigned_routes))`, active, filter.Route).Scan(&total)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
