package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deskhub/helpdesk/internal/domain"
)

type pgPreferenceRepository struct {
	pool *pgxpool.Pool
}

// NewPgPreferenceRepository returns a PreferenceRepository backed by PostgreSQL.
func NewPgPreferenceRepository(pool *pgxpool.Pool) PreferenceRepository {
	return &pgPreferenceRepository{pool: pool}
}

func (r *pgPreferenceRepository) Get(ctx context.Context, subjectID string, role domain.Role) (*domain.Preferences, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT subject_id, subject_role, sound_enabled, sound_volume,
		       enabled_event_types, updated_at
		FROM preferences
		WHERE subject_id = $1 AND subject_role = $2`, subjectID, role)

	var p domain.Preferences
	var types []string
	err := row.Scan(&p.SubjectID, &p.SubjectRole, &p.SoundEnabled,
		&p.SoundVolume, &types, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get preferences: %w", err)
	}

	p.EnabledEventTypes = make([]domain.EventType, len(types))
	for i, t := range types {
		p.EnabledEventTypes[i] = domain.EventType(t)
	}
	return &p, nil
}

func (r *pgPreferenceRepository) Upsert(ctx context.Context, p *domain.Preferences) error {
	types := make([]string, len(p.EnabledEventTypes))
	for i, t := range p.EnabledEventTypes {
		types[i] = string(t)
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO preferences
			(subject_id, subject_role, sound_enabled, sound_volume, enabled_event_types, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (subject_id, subject_role) DO UPDATE
		SET sound_enabled = EXCLUDED.sound_enabled,
		    sound_volume = EXCLUDED.sound_volume,
		    enabled_event_types = EXCLUDED.enabled_event_types,
		    updated_at = EXCLUDED.updated_at`,
		p.SubjectID, p.SubjectRole, p.SoundEnabled, p.SoundVolume, types, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert preferences: %w", err)
	}
	return nil
}
