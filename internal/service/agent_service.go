package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/deskhub/helpdesk/internal/assign"
	"github.com/deskhub/helpdesk/internal/domain"
	"github.com/deskhub/helpdesk/internal/events"
	"github.com/deskhub/helpdesk/internal/notify"
	"github.com/deskhub/helpdesk/internal/pkg/id"
	"github.com/deskhub/helpdesk/internal/repository"
)

// AgentService manages the agent roster. Deleting an agent is
// reassign-then-delete: their open tickets move to the least-loaded
// remaining eligible agent before the row goes away.
type AgentService struct {
	agents  repository.AgentRepository
	tickets repository.TicketRepository
	engine  *assign.Engine
	fanout  *events.Fanout
	q       *notify.Queue
	logger  *zap.Logger
}

func NewAgentService(
	agents repository.AgentRepository,
	tickets repository.TicketRepository,
	engine *assign.Engine,
	fanout *events.Fanout,
	q *notify.Queue,
	logger *zap.Logger,
) *AgentService {
	return &AgentService{
		agents: agents, tickets: tickets, engine: engine,
		fanout: fanout, q: q, logger: logger,
	}
}

// CreateAgent registers a new agent. Supervisors are forced out of the
// automatic assignment pool regardless of what the request says.
func (s *AgentService) CreateAgent(ctx context.Context, req domain.CreateAgentRequest) (*domain.Agent, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	a := &domain.Agent{
		ID:                         id.New(),
		Name:                       req.Name,
		Email:                      req.Email,
		Tier:                       req.Tier,
		ExcludedFromAutoAssignment: req.ExcludedFromAutoAssignment || req.Tier == domain.TierSupervisor,
		CreatedAt:                  now,
		UpdatedAt:                  now,
	}
	if err := s.agents.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("persist agent: %w", err)
	}
	return a, nil
}

func (s *AgentService) GetAgent(ctx context.Context, agentID string) (*domain.Agent, error) {
	return s.agents.GetByID(ctx, agentID)
}

func (s *AgentService) ListAgents(ctx context.Context) ([]*domain.Agent, error) {
	return s.agents.List(ctx)
}

// UpdateAgent applies a partial profile update. The supervisor exclusion
// is sticky: a supervisor cannot be opted back into automatic assignment.
func (s *AgentService) UpdateAgent(ctx context.Context, agentID string, req domain.UpdateAgentRequest) (*domain.Agent, error) {
	a, err := s.agents.GetByID(ctx, agentID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		if *req.Name == "" {
			return nil, domain.ErrInvalidName
		}
		a.Name = *req.Name
	}
	if req.Email != nil {
		a.Email = *req.Email
	}
	if req.ExcludedFromAutoAssignment != nil {
		a.ExcludedFromAutoAssignment = *req.ExcludedFromAutoAssignment
	}
	if a.Tier == domain.TierSupervisor {
		a.ExcludedFromAutoAssignment = true
	}
	a.UpdatedAt = time.Now().Unix()

	if err := s.agents.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// DeleteAgent re-targets the agent's open tickets to one replacement
// (selected once, applied to all, see assign.Engine.ReassignFrom), fans
// out the assignment changes, then hard-deletes the agent. Tickets already
// closed are untouched; with no eligible replacement the moved tickets end
// up unassigned, the ticket FK being set-null.
func (s *AgentService) DeleteAgent(ctx context.Context, agentID string) error {
	if _, err := s.agents.GetByID(ctx, agentID); err != nil {
		return err
	}

	target, ticketIDs, err := s.engine.ReassignFrom(ctx, agentID)
	if err != nil {
		return fmt.Errorf("reassign before delete: %w", err)
	}

	if len(ticketIDs) > 0 {
		var targetID *string
		if target != nil {
			targetID = &target.ID
		}
		moved := append([]string(nil), ticketIDs...)

		task := notify.Task{Name: "reassign_fanout", Run: func(ctx context.Context) error {
			for _, tid := range moved {
				t, err := s.tickets.GetByID(ctx, tid)
				if err != nil {
					s.logger.Warn("reassign fan-out: ticket lookup failed",
						zap.String("ticket_id", tid), zap.Error(err))
					continue
				}
				if err := s.fanout.AssigneeChanged(ctx, t, targetID); err != nil {
					s.logger.Warn("reassign fan-out failed",
						zap.String("ticket_id", tid), zap.Error(err))
				}
			}
			return nil
		}}
		if err := s.q.SubmitBroadcast(task); err != nil {
			s.logger.Warn("background task dropped", zap.String("task", task.Name), zap.Error(err))
		}
	}

	return s.agents.Delete(ctx, agentID)
}
