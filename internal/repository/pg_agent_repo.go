package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deskhub/helpdesk/internal/domain"
)

const agentColumns = `id, name, email, tier, excluded_from_auto_assignment,
       last_assigned_at, created_at, updated_at`

type pgAgentRepository struct {
	pool *pgxpool.Pool
}

// NewPgAgentRepository returns an AgentRepository backed by PostgreSQL.
func NewPgAgentRepository(pool *pgxpool.Pool) AgentRepository {
	return &pgAgentRepository{pool: pool}
}

func (r *pgAgentRepository) Create(ctx context.Context, a *domain.Agent) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO agents
			(id, name, email, tier, excluded_from_auto_assignment,
			 last_assigned_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		a.ID, a.Name, a.Email, a.Tier, a.ExcludedFromAutoAssignment,
		a.LastAssignedAt, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert agent: %w", err)
	}
	return nil
}

func (r *pgAgentRepository) GetByID(ctx context.Context, id string) (*domain.Agent, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE id = $1`, id)

	a, err := scanAgent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return a, err
}

func (r *pgAgentRepository) List(ctx context.Context) ([]*domain.Agent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+agentColumns+` FROM agents ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()
	return scanAgents(rows)
}

func (r *pgAgentRepository) ListEligible(ctx context.Context) ([]*domain.Agent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+agentColumns+`
		FROM agents
		WHERE excluded_from_auto_assignment = FALSE
		ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list eligible agents: %w", err)
	}
	defer rows.Close()
	return scanAgents(rows)
}

func (r *pgAgentRepository) ListByTier(ctx context.Context, tier domain.Tier) ([]*domain.Agent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE tier = $1 ORDER BY created_at ASC`, tier)
	if err != nil {
		return nil, fmt.Errorf("list agents by tier: %w", err)
	}
	defer rows.Close()
	return scanAgents(rows)
}

func (r *pgAgentRepository) Update(ctx context.Context, a *domain.Agent) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE agents
		SET name = $1, email = $2, excluded_from_auto_assignment = $3, updated_at = $4
		WHERE id = $5`,
		a.Name, a.Email, a.ExcludedFromAutoAssignment, a.UpdatedAt, a.ID)
	if err != nil {
		return fmt.Errorf("update agent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *pgAgentRepository) SetAssignedAt(ctx context.Context, id string, ts int64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE agents SET last_assigned_at = $1, updated_at = $1 WHERE id = $2`, ts, id)
	return err
}

func (r *pgAgentRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM agents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete agent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ---- helpers ----

func scanAgent(row pgx.Row) (*domain.Agent, error) {
	var a domain.Agent
	err := row.Scan(
		&a.ID, &a.Name, &a.Email, &a.Tier, &a.ExcludedFromAutoAssignment,
		&a.LastAssignedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func scanAgents(rows pgx.Rows) ([]*domain.Agent, error) {
	var result []*domain.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}
