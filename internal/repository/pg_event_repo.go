package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deskhub/helpdesk/internal/domain"
)

const eventColumns = `id, subject_id, subject_role, event_type, entity_id,
       payload, created_at, read_at`

type pgEventRepository struct {
	pool *pgxpool.Pool
}

// NewPgEventRepository returns an EventRepository backed by PostgreSQL.
func NewPgEventRepository(pool *pgxpool.Pool) EventRepository {
	return &pgEventRepository{pool: pool}
}

func (r *pgEventRepository) Insert(ctx context.Context, e *domain.Event) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO events
			(id, subject_id, subject_role, event_type, entity_id, payload, created_at, read_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		e.ID, e.SubjectID, e.SubjectRole, e.EventType, e.EntityID,
		e.Payload, e.CreatedAt, e.ReadAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (r *pgEventRepository) FindRecentUnread(ctx context.Context, subjectID string, role domain.Role, t domain.EventType, entityID string, since int64) (*domain.Event, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE subject_id = $1 AND subject_role = $2
		  AND event_type = $3 AND entity_id = $4
		  AND read_at IS NULL AND created_at >= $5
		ORDER BY created_at DESC
		LIMIT 1`, subjectID, role, t, entityID, since)

	e, err := scanEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return e, err
}

func (r *pgEventRepository) ListUnread(ctx context.Context, subjectID string, role domain.Role, since *int64) ([]*domain.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE subject_id = $1 AND subject_role = $2 AND read_at IS NULL`
	args := []any{subjectID, role}

	if since != nil {
		args = append(args, *since)
		query += fmt.Sprintf(" AND created_at > $%d", len(args))
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list unread events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (r *pgEventRepository) ListSince(ctx context.Context, subjectID string, role domain.Role, since int64, limit int) ([]*domain.Event, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE subject_id = $1 AND subject_role = $2 AND created_at >= $3
		ORDER BY created_at DESC, id DESC
		LIMIT $4`, subjectID, role, since, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (r *pgEventRepository) CountUnreadByType(ctx context.Context, subjectID string, role domain.Role) (map[domain.EventType]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT event_type, COUNT(*)
		FROM events
		WHERE subject_id = $1 AND subject_role = $2 AND read_at IS NULL
		GROUP BY event_type`, subjectID, role)
	if err != nil {
		return nil, fmt.Errorf("count unread events: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.EventType]int)
	for rows.Next() {
		var t domain.EventType
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, err
		}
		counts[t] = n
	}
	return counts, rows.Err()
}

func (r *pgEventRepository) MarkRead(ctx context.Context, subjectID string, role domain.Role, ids []string, now int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE events
		SET read_at = $1
		WHERE subject_id = $2 AND subject_role = $3
		  AND id = ANY($4) AND read_at IS NULL`,
		now, subjectID, role, ids)
	if err != nil {
		return 0, fmt.Errorf("mark events read: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *pgEventRepository) MarkAllRead(ctx context.Context, subjectID string, role domain.Role, now int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE events
		SET read_at = $1
		WHERE subject_id = $2 AND subject_role = $3 AND read_at IS NULL`,
		now, subjectID, role)
	if err != nil {
		return 0, fmt.Errorf("mark all events read: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *pgEventRepository) DeleteAll(ctx context.Context, subjectID string, role domain.Role) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM events WHERE subject_id = $1 AND subject_role = $2`, subjectID, role)
	if err != nil {
		return fmt.Errorf("delete events: %w", err)
	}
	return nil
}

// ---- helpers ----

func scanEvent(row pgx.Row) (*domain.Event, error) {
	var e domain.Event
	err := row.Scan(
		&e.ID, &e.SubjectID, &e.SubjectRole, &e.EventType, &e.EntityID,
		&e.Payload, &e.CreatedAt, &e.ReadAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func scanEvents(rows pgx.Rows) ([]*domain.Event, error) {
	var result []*domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}
