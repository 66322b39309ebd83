package repository

import (
	"context"

	"github.com/deskhub/helpdesk/internal/domain"
)

// Per-entity persistence contracts. The pgx implementations live in the
// pg_*_repo.go files; tests use the hand-written MemoryStore, which
// implements all five interfaces.

type AgentRepository interface {
	Create(ctx context.Context, a *domain.Agent) error
	GetByID(ctx context.Context, id string) (*domain.Agent, error)
	List(ctx context.Context) ([]*domain.Agent, error)
	// ListEligible returns agents participating in automatic assignment,
	// i.e. those not flagged as excluded.
	ListEligible(ctx context.Context) ([]*domain.Agent, error)
	ListByTier(ctx context.Context, tier domain.Tier) ([]*domain.Agent, error)
	Update(ctx context.Context, a *domain.Agent) error
	// SetAssignedAt moves the round-robin fairness marker.
	SetAssignedAt(ctx context.Context, id string, ts int64) error
	Delete(ctx context.Context, id string) error
}

type TicketRepository interface {
	Create(ctx context.Context, t *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context, f domain.TicketFilter) ([]*domain.Ticket, error)
	SetStatus(ctx context.Context, id string, status domain.TicketStatus, now int64) error
	SetAssignee(ctx context.Context, id string, agentID *string, now int64) error
	SetCompletionEstimate(ctx context.Context, id string, at *int64, now int64) error
	// ReassignOpen re-targets every open ticket currently assigned to
	// fromAgent and returns the IDs of the tickets it touched.
	ReassignOpen(ctx context.Context, fromAgent string, toAgent *string, now int64) ([]string, error)
	// CountOpenByAgent is the load calculator's query: tickets assigned to
	// the agent with status in {new, in_progress, waiting}.
	CountOpenByAgent(ctx context.Context, agentID string) (int, error)
}

type EventRepository interface {
	Insert(ctx context.Context, e *domain.Event) error
	// FindRecentUnread returns the newest unread event matching the dedup
	// key (subject, role, type, entity) created at or after since, or
	// domain.ErrNotFound when there is none.
	FindRecentUnread(ctx context.Context, subjectID string, role domain.Role, t domain.EventType, entityID string, since int64) (*domain.Event, error)
	ListUnread(ctx context.Context, subjectID string, role domain.Role, since *int64) ([]*domain.Event, error)
	ListSince(ctx context.Context, subjectID string, role domain.Role, since int64, limit int) ([]*domain.Event, error)
	CountUnreadByType(ctx context.Context, subjectID string, role domain.Role) (map[domain.EventType]int, error)
	// MarkRead sets read_at on the given events, only where they belong to
	// the subject and are still unread. Returns the number of rows changed.
	MarkRead(ctx context.Context, subjectID string, role domain.Role, ids []string, now int64) (int64, error)
	MarkAllRead(ctx context.Context, subjectID string, role domain.Role, now int64) (int64, error)
	DeleteAll(ctx context.Context, subjectID string, role domain.Role) error
}

type PreferenceRepository interface {
	// Get returns domain.ErrNotFound when the subject has never saved
	// preferences; callers substitute defaults without writing.
	Get(ctx context.Context, subjectID string, role domain.Role) (*domain.Preferences, error)
	Upsert(ctx context.Context, p *domain.Preferences) error
}

type MessageRepository interface {
	Insert(ctx context.Context, m *domain.Message) error
	ListByTicket(ctx context.Context, ticketID string) ([]*domain.Message, error)
}
