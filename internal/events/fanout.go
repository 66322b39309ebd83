package events

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/deskhub/helpdesk/internal/domain"
	"github.com/deskhub/helpdesk/internal/repository"
)

// Fanout applies the notification policy: which subjects hear about which
// state change. Every method is best-effort: a failed emission is logged
// and skipped so a notification problem can never surface as the
// triggering operation's error. The methods run on dispatcher goroutines,
// detached from the request that caused the change.
type Fanout struct {
	bus    *Bus
	agents repository.AgentRepository
	logger *zap.Logger
}

func NewFanout(bus *Bus, agents repository.AgentRepository, logger *zap.Logger) *Fanout {
	return &Fanout{bus: bus, agents: agents, logger: logger}
}

// TicketCreated notifies every agent, eligible or not, of the new ticket
// and sends the requester a creation confirmation.
func (f *Fanout) TicketCreated(ctx context.Context, t *domain.Ticket) error {
	agents, err := f.agents.List(ctx)
	if err != nil {
		return err
	}
	for _, a := range agents {
		f.send(ctx, a.ID, domain.RoleAgent, domain.EventItemCreated, t.ID, map[string]any{
			"ticket_id": t.ID,
			"title":     t.Title,
		})
	}
	f.send(ctx, t.RequesterID, domain.RoleRequester, domain.EventItemCreated, t.ID, map[string]any{
		"ticket_id":    t.ID,
		"title":        t.Title,
		"confirmation": true,
	})
	return nil
}

// MessageAdded notifies the assigned agent, or all agents while the ticket
// is unassigned. The requester is additionally notified when the message
// came from an agent.
func (f *Fanout) MessageAdded(ctx context.Context, t *domain.Ticket, m *domain.Message) error {
	payload := map[string]any{
		"ticket_id":  t.ID,
		"message_id": m.ID,
		"author_id":  m.AuthorID,
	}

	if t.AssignedAgentID != nil {
		f.send(ctx, *t.AssignedAgentID, domain.RoleAgent, domain.EventNewMessage, t.ID, payload)
	} else {
		agents, err := f.agents.List(ctx)
		if err != nil {
			return err
		}
		for _, a := range agents {
			f.send(ctx, a.ID, domain.RoleAgent, domain.EventNewMessage, t.ID, payload)
		}
	}

	if m.AuthorRole == domain.RoleAgent {
		f.send(ctx, t.RequesterID, domain.RoleRequester, domain.EventNewMessage, t.ID, payload)
	}
	return nil
}

// StatusChanged notifies the requester and, if the ticket is assigned, its
// agent.
func (f *Fanout) StatusChanged(ctx context.Context, t *domain.Ticket) error {
	payload := map[string]any{
		"ticket_id": t.ID,
		"status":    t.Status,
	}
	f.send(ctx, t.RequesterID, domain.RoleRequester, domain.EventStatusChanged, t.ID, payload)
	if t.AssignedAgentID != nil {
		f.send(ctx, *t.AssignedAgentID, domain.RoleAgent, domain.EventStatusChanged, t.ID, payload)
	}
	return nil
}

// AssigneeChanged notifies the new assignee (if any) and the requester,
// then tells every other agent about the change for assignment visibility,
// skipping the new assignee to avoid a duplicate.
func (f *Fanout) AssigneeChanged(ctx context.Context, t *domain.Ticket, newAgentID *string) error {
	payload := map[string]any{"ticket_id": t.ID}
	if newAgentID != nil {
		payload["agent_id"] = *newAgentID
		f.send(ctx, *newAgentID, domain.RoleAgent, domain.EventItemAssigned, t.ID, payload)
	}
	f.send(ctx, t.RequesterID, domain.RoleRequester, domain.EventItemAssigned, t.ID, payload)

	agents, err := f.agents.List(ctx)
	if err != nil {
		return err
	}
	for _, a := range agents {
		if newAgentID != nil && a.ID == *newAgentID {
			continue
		}
		f.send(ctx, a.ID, domain.RoleAgent, domain.EventItemAssigned, t.ID, payload)
	}
	return nil
}

// EstimateChanged notifies the requester and the assigned agent of a new
// completion estimate.
func (f *Fanout) EstimateChanged(ctx context.Context, t *domain.Ticket) error {
	payload := map[string]any{
		"ticket_id":              t.ID,
		"completion_estimate_at": t.CompletionEstimateAt,
	}
	f.send(ctx, t.RequesterID, domain.RoleRequester, domain.EventCompletionUpdated, t.ID, payload)
	if t.AssignedAgentID != nil {
		f.send(ctx, *t.AssignedAgentID, domain.RoleAgent, domain.EventCompletionUpdated, t.ID, payload)
	}
	return nil
}

// RecoveryRequested notifies supervisors only.
func (f *Fanout) RecoveryRequested(ctx context.Context, requesterID string) error {
	supervisors, err := f.agents.ListByTier(ctx, domain.TierSupervisor)
	if err != nil {
		return err
	}
	for _, s := range supervisors {
		f.send(ctx, s.ID, domain.RoleAgent, domain.EventRecoveryRequest, requesterID, map[string]any{
			"requester_id": requesterID,
		})
	}
	return nil
}

// send emits one event to one subject, honouring the subject's delivery
// preferences. Failures are logged, never returned: one broken emission
// must not abort the rest of a fan-out.
func (f *Fanout) send(ctx context.Context, subjectID string, role domain.Role, t domain.EventType, entityID string, payload map[string]any) {
	if !f.bus.Allows(ctx, subjectID, role, t) {
		return
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		f.logger.Warn("event payload marshal failed",
			zap.String("event_type", string(t)), zap.Error(err))
		raw = []byte("{}")
	}

	if _, err := f.bus.Emit(ctx, subjectID, string(role), t, entityID, raw); err != nil {
		f.logger.Warn("event emission failed",
			zap.String("subject_id", subjectID),
			zap.String("event_type", string(t)),
			zap.Error(err))
	}
}
