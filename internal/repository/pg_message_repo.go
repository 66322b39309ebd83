package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deskhub/helpdesk/internal/domain"
)

type pgMessageRepository struct {
	pool *pgxpool.Pool
}

// NewPgMessageRepository returns a MessageRepository backed by PostgreSQL.
func NewPgMessageRepository(pool *pgxpool.Pool) MessageRepository {
	return &pgMessageRepository{pool: pool}
}

func (r *pgMessageRepository) Insert(ctx context.Context, m *domain.Message) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO ticket_messages
			(id, ticket_id, author_role, author_id, body, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		m.ID, m.TicketID, m.AuthorRole, m.AuthorID, m.Body, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (r *pgMessageRepository) ListByTicket(ctx context.Context, ticketID string) ([]*domain.Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, ticket_id, author_role, author_id, body, created_at
		FROM ticket_messages
		WHERE ticket_id = $1
		ORDER BY created_at ASC, id ASC`, ticketID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var result []*domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.TicketID, &m.AuthorRole, &m.AuthorID, &m.Body, &m.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, &m)
	}
	return result, rows.Err()
}
