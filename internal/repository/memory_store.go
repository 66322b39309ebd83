package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/deskhub/helpdesk/internal/domain"
)

// MemoryStore groups hand-written, in-memory implementations of every
// repository interface, used in unit tests. No mock-generation library
// needed. Reads return clones so tests cannot mutate stored state by
// accident.
type MemoryStore struct {
	Agents   *MemoryAgentRepo
	Tickets  *MemoryTicketRepo
	Events   *MemoryEventRepo
	Prefs    *MemoryPreferenceRepo
	Messages *MemoryMessageRepo
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		Agents:   &MemoryAgentRepo{agents: make(map[string]*domain.Agent)},
		Tickets:  &MemoryTicketRepo{tickets: make(map[string]*domain.Ticket)},
		Events:   &MemoryEventRepo{events: make(map[string]*domain.Event)},
		Prefs:    &MemoryPreferenceRepo{prefs: make(map[string]*domain.Preferences)},
		Messages: &MemoryMessageRepo{messages: make(map[string]*domain.Message)},
	}
}

var (
	_ AgentRepository      = (*MemoryAgentRepo)(nil)
	_ TicketRepository     = (*MemoryTicketRepo)(nil)
	_ EventRepository      = (*MemoryEventRepo)(nil)
	_ PreferenceRepository = (*MemoryPreferenceRepo)(nil)
	_ MessageRepository    = (*MemoryMessageRepo)(nil)
)

// ---- agents ----

type MemoryAgentRepo struct {
	mu     sync.RWMutex
	agents map[string]*domain.Agent

	// Optional error overrides, set in tests to simulate failure paths.
	ListEligibleErr error
}

func (m *MemoryAgentRepo) Create(_ context.Context, a *domain.Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *a
	m.agents[a.ID] = &clone
	return nil
}

func (m *MemoryAgentRepo) GetByID(_ context.Context, id string) (*domain.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.agents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *a
	return &clone, nil
}

func (m *MemoryAgentRepo) List(_ context.Context) ([]*domain.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.where(func(*domain.Agent) bool { return true }), nil
}

func (m *MemoryAgentRepo) ListEligible(_ context.Context) ([]*domain.Agent, error) {
	if m.ListEligibleErr != nil {
		return nil, m.ListEligibleErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.where(func(a *domain.Agent) bool {
		return !a.ExcludedFromAutoAssignment
	}), nil
}

func (m *MemoryAgentRepo) ListByTier(_ context.Context, tier domain.Tier) ([]*domain.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.where(func(a *domain.Agent) bool { return a.Tier == tier }), nil
}

func (m *MemoryAgentRepo) Update(_ context.Context, a *domain.Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.agents[a.ID]; !ok {
		return domain.ErrNotFound
	}
	clone := *a
	m.agents[a.ID] = &clone
	return nil
}

func (m *MemoryAgentRepo) SetAssignedAt(_ context.Context, id string, ts int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.agents[id]; ok {
		a.LastAssignedAt = ts
		a.UpdatedAt = ts
	}
	return nil
}

func (m *MemoryAgentRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.agents[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.agents, id)
	return nil
}

// where must be called with the lock held. Results are ordered by creation
// time then ID, matching the pg implementation.
func (m *MemoryAgentRepo) where(keep func(*domain.Agent) bool) []*domain.Agent {
	var result []*domain.Agent
	for _, a := range m.agents {
		if keep(a) {
			clone := *a
			result = append(result, &clone)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt < result[j].CreatedAt
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// ---- tickets ----

type MemoryTicketRepo struct {
	mu      sync.RWMutex
	tickets map[string]*domain.Ticket

	CountOpenErr error
	GetByIDErr   error
}

func (m *MemoryTicketRepo) Create(_ context.Context, t *domain.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *t
	m.tickets[t.ID] = &clone
	return nil
}

func (m *MemoryTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	if m.GetByIDErr != nil {
		return nil, m.GetByIDErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tickets[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *t
	return &clone, nil
}

func (m *MemoryTicketRepo) List(_ context.Context, f domain.TicketFilter) ([]*domain.Ticket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Ticket
	for _, t := range m.tickets {
		if f.Status != nil && t.Status != *f.Status {
			continue
		}
		if f.Status == nil && !f.IncludeClosed && t.Status == domain.StatusClosed {
			continue
		}
		if f.AssignedAgentID != nil && (t.AssignedAgentID == nil || *t.AssignedAgentID != *f.AssignedAgentID) {
			continue
		}
		if f.RequesterID != nil && t.RequesterID != *f.RequesterID {
			continue
		}
		clone := *t
		result = append(result, &clone)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].UpdatedAt != result[j].UpdatedAt {
			return result[i].UpdatedAt > result[j].UpdatedAt
		}
		return result[i].ID > result[j].ID
	})
	return result, nil
}

func (m *MemoryTicketRepo) SetStatus(_ context.Context, id string, status domain.TicketStatus, now int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok {
		return domain.ErrNotFound
	}
	t.Status = status
	t.UpdatedAt = now
	return nil
}

func (m *MemoryTicketRepo) SetAssignee(_ context.Context, id string, agentID *string, now int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok {
		return domain.ErrNotFound
	}
	t.AssignedAgentID = cloneStringPtr(agentID)
	t.UpdatedAt = now
	return nil
}

func (m *MemoryTicketRepo) SetCompletionEstimate(_ context.Context, id string, at *int64, now int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok {
		return domain.ErrNotFound
	}
	if at != nil {
		v := *at
		t.CompletionEstimateAt = &v
	} else {
		t.CompletionEstimateAt = nil
	}
	t.UpdatedAt = now
	return nil
}

func (m *MemoryTicketRepo) ReassignOpen(_ context.Context, fromAgent string, toAgent *string, now int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for _, t := range m.tickets {
		if t.AssignedAgentID == nil || *t.AssignedAgentID != fromAgent {
			continue
		}
		if !t.Status.IsOpen() {
			continue
		}
		t.AssignedAgentID = cloneStringPtr(toAgent)
		t.UpdatedAt = now
		ids = append(ids, t.ID)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MemoryTicketRepo) CountOpenByAgent(_ context.Context, agentID string) (int, error) {
	if m.CountOpenErr != nil {
		return 0, m.CountOpenErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, t := range m.tickets {
		if t.AssignedAgentID != nil && *t.AssignedAgentID == agentID && t.Status.IsOpen() {
			n++
		}
	}
	return n, nil
}

// ---- events ----

type MemoryEventRepo struct {
	mu     sync.RWMutex
	events map[string]*domain.Event

	InsertErr error
}

func (m *MemoryEventRepo) Insert(_ context.Context, e *domain.Event) error {
	if m.InsertErr != nil {
		return m.InsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *e
	m.events[e.ID] = &clone
	return nil
}

func (m *MemoryEventRepo) FindRecentUnread(_ context.Context, subjectID string, role domain.Role, t domain.EventType, entityID string, since int64) (*domain.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	matches := m.where(func(e *domain.Event) bool {
		return e.SubjectID == subjectID && e.SubjectRole == role &&
			e.EventType == t && e.EntityID == entityID &&
			e.ReadAt == nil && e.CreatedAt >= since
	})
	if len(matches) == 0 {
		return nil, domain.ErrNotFound
	}
	return matches[0], nil
}

func (m *MemoryEventRepo) ListUnread(_ context.Context, subjectID string, role domain.Role, since *int64) ([]*domain.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.where(func(e *domain.Event) bool {
		if e.SubjectID != subjectID || e.SubjectRole != role || e.ReadAt != nil {
			return false
		}
		return since == nil || e.CreatedAt > *since
	}), nil
}

func (m *MemoryEventRepo) ListSince(_ context.Context, subjectID string, role domain.Role, since int64, limit int) ([]*domain.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := m.where(func(e *domain.Event) bool {
		return e.SubjectID == subjectID && e.SubjectRole == role && e.CreatedAt >= since
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MemoryEventRepo) CountUnreadByType(_ context.Context, subjectID string, role domain.Role) (map[domain.EventType]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[domain.EventType]int)
	for _, e := range m.events {
		if e.SubjectID == subjectID && e.SubjectRole == role && e.ReadAt == nil {
			counts[e.EventType]++
		}
	}
	return counts, nil
}

func (m *MemoryEventRepo) MarkRead(_ context.Context, subjectID string, role domain.Role, ids []string, now int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var changed int64
	for _, id := range ids {
		e, ok := m.events[id]
		if !ok || e.SubjectID != subjectID || e.SubjectRole != role || e.ReadAt != nil {
			continue
		}
		ts := now
		e.ReadAt = &ts
		changed++
	}
	return changed, nil
}

func (m *MemoryEventRepo) MarkAllRead(_ context.Context, subjectID string, role domain.Role, now int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var changed int64
	for _, e := range m.events {
		if e.SubjectID == subjectID && e.SubjectRole == role && e.ReadAt == nil {
			ts := now
			e.ReadAt = &ts
			changed++
		}
	}
	return changed, nil
}

func (m *MemoryEventRepo) DeleteAll(_ context.Context, subjectID string, role domain.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.events {
		if e.SubjectID == subjectID && e.SubjectRole == role {
			delete(m.events, id)
		}
	}
	return nil
}

// All returns every stored event, unordered. Test helper.
func (m *MemoryEventRepo) All() []*domain.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Event
	for _, e := range m.events {
		clone := *e
		result = append(result, &clone)
	}
	return result
}

// where must be called with the lock held. Results are newest first, ties
// broken by descending ID, matching the pg implementation.
func (m *MemoryEventRepo) where(keep func(*domain.Event) bool) []*domain.Event {
	var result []*domain.Event
	for _, e := range m.events {
		if keep(e) {
			clone := *e
			result = append(result, &clone)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt > result[j].CreatedAt
		}
		return result[i].ID > result[j].ID
	})
	return result
}

// ---- preferences ----

type MemoryPreferenceRepo struct {
	mu    sync.RWMutex
	prefs map[string]*domain.Preferences
}

func (m *MemoryPreferenceRepo) Get(_ context.Context, subjectID string, role domain.Role) (*domain.Preferences, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.prefs[prefKey(subjectID, role)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *p
	clone.EnabledEventTypes = append([]domain.EventType(nil), p.EnabledEventTypes...)
	return &clone, nil
}

func (m *MemoryPreferenceRepo) Upsert(_ context.Context, p *domain.Preferences) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *p
	clone.EnabledEventTypes = append([]domain.EventType(nil), p.EnabledEventTypes...)
	m.prefs[prefKey(p.SubjectID, p.SubjectRole)] = &clone
	return nil
}

func prefKey(subjectID string, role domain.Role) string {
	return subjectID + "/" + string(role)
}

// ---- messages ----

type MemoryMessageRepo struct {
	mu       sync.RWMutex
	messages map[string]*domain.Message
}

func (m *MemoryMessageRepo) Insert(_ context.Context, msg *domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *msg
	m.messages[msg.ID] = &clone
	return nil
}

func (m *MemoryMessageRepo) ListByTicket(_ context.Context, ticketID string) ([]*domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Message
	for _, msg := range m.messages {
		if msg.TicketID == ticketID {
			clone := *msg
			result = append(result, &clone)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt < result[j].CreatedAt
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func cloneStringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
