package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deskhub/helpdesk/internal/domain"
)

const ticketColumns = `id, requester_id, title, body, status, assigned_agent_id,
       completion_estimate_at, created_at, updated_at`

type pgTicketRepository struct {
	pool *pgxpool.Pool
}

// NewPgTicketRepository returns a TicketRepository backed by PostgreSQL.
func NewPgTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &pgTicketRepository{pool: pool}
}

func (r *pgTicketRepository) Create(ctx context.Context, t *domain.Ticket) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO tickets
			(id, requester_id, title, body, status, assigned_agent_id,
			 completion_estimate_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		t.ID, t.RequesterID, t.Title, t.Body, t.Status, t.AssignedAgentID,
		t.CompletionEstimateAt, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ticket: %w", err)
	}
	return nil
}

func (r *pgTicketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, id)

	t, err := scanTicket(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return t, err
}

func (r *pgTicketRepository) List(ctx context.Context, f domain.TicketFilter) ([]*domain.Ticket, error) {
	where, args := buildTicketWhere(f)

	rows, err := r.pool.Query(ctx,
		`SELECT `+ticketColumns+` FROM tickets`+where+` ORDER BY updated_at DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *pgTicketRepository) SetStatus(ctx context.Context, id string, status domain.TicketStatus, now int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tickets SET status = $1, updated_at = $2 WHERE id = $3`, status, now, id)
	if err != nil {
		return fmt.Errorf("set ticket status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *pgTicketRepository) SetAssignee(ctx context.Context, id string, agentID *string, now int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tickets SET assigned_agent_id = $1, updated_at = $2 WHERE id = $3`, agentID, now, id)
	if err != nil {
		return fmt.Errorf("set ticket assignee: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *pgTicketRepository) SetCompletionEstimate(ctx context.Context, id string, at *int64, now int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tickets SET completion_estimate_at = $1, updated_at = $2 WHERE id = $3`, at, now, id)
	if err != nil {
		return fmt.Errorf("set completion estimate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *pgTicketRepository) ReassignOpen(ctx context.Context, fromAgent string, toAgent *string, now int64) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE tickets
		SET assigned_agent_id = $1, updated_at = $2
		WHERE assigned_agent_id = $3
		  AND status IN ('new', 'in_progress', 'waiting')
		RETURNING id`, toAgent, now, fromAgent)
	if err != nil {
		return nil, fmt.Errorf("reassign open tickets: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *pgTicketRepository) CountOpenByAgent(ctx context.Context, agentID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM tickets
		WHERE assigned_agent_id = $1
		  AND status IN ('new', 'in_progress', 'waiting')`, agentID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count open tickets: %w", err)
	}
	return n, nil
}

// ---- helpers ----

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var t domain.Ticket
	err := row.Scan(
		&t.ID, &t.RequesterID, &t.Title, &t.Body, &t.Status,
		&t.AssignedAgentID, &t.CompletionEstimateAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func scanTickets(rows pgx.Rows) ([]*domain.Ticket, error) {
	var result []*domain.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

// buildTicketWhere builds a parameterised WHERE clause from a TicketFilter.
func buildTicketWhere(f domain.TicketFilter) (string, []any) {
	var conditions []string
	var args []any

	add := func(condition string, val any) {
		args = append(args, val)
		conditions = append(conditions, fmt.Sprintf(condition, len(args)))
	}

	if f.Status != nil {
		add("status = $%d", *f.Status)
	} else if !f.IncludeClosed {
		conditions = append(conditions, "status <> 'closed'")
	}
	if f.AssignedAgentID != nil {
		add("assigned_agent_id = $%d", *f.AssignedAgentID)
	}
	if f.RequesterID != nil {
		add("requester_id = $%d", *f.RequesterID)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}
