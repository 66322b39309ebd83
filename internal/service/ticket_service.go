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

// TicketService coordinates the ticket repositories, the assignment engine,
// and the notification fan-out. All business rules around ticket lifecycle
// live here; HTTP handlers and the dispatcher depend on this service, not
// on each other.
//
// Fan-out and automatic assignment are fire-and-forget: they run as
// dispatcher tasks submitted after the triggering write, so their failure
// can never fail or roll back the ticket change itself.
type TicketService struct {
	tickets  repository.TicketRepository
	agents   repository.AgentRepository
	messages repository.MessageRepository
	engine   *assign.Engine
	fanout   *events.Fanout
	q        *notify.Queue
	logger   *zap.Logger

	// onManualAssign is a metrics hook; optional.
	onManualAssign func()
}

// TicketServiceDeps groups the constructor dependencies.
type TicketServiceDeps struct {
	Tickets        repository.TicketRepository
	Agents         repository.AgentRepository
	Messages       repository.MessageRepository
	Engine         *assign.Engine
	Fanout         *events.Fanout
	Queue          *notify.Queue
	Logger         *zap.Logger
	OnManualAssign func()
}

func NewTicketService(deps TicketServiceDeps) *TicketService {
	if deps.OnManualAssign == nil {
		deps.OnManualAssign = func() {}
	}
	return &TicketService{
		tickets:        deps.Tickets,
		agents:         deps.Agents,
		messages:       deps.Messages,
		engine:         deps.Engine,
		fanout:         deps.Fanout,
		q:              deps.Queue,
		logger:         deps.Logger,
		onManualAssign: deps.OnManualAssign,
	}
}

// CreateTicket validates and persists a new ticket, then kicks off the
// creation fan-out and the automatic assignment as background tasks. The
// ticket is returned immediately; assignment lands moments later. If no
// agent is eligible, or assignment fails outright, the ticket simply stays
// unassigned; creation never fails for assignment reasons.
func (s *TicketService) CreateTicket(ctx context.Context, req domain.CreateTicketRequest) (*domain.Ticket, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	t := &domain.Ticket{
		ID:          id.New(),
		RequesterID: req.RequesterID,
		Title:       req.Title,
		Body:        req.Body,
		Status:      domain.StatusNew,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.tickets.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("persist ticket: %w", err)
	}

	created := *t
	s.submitBroadcast("ticket_created_fanout", func(ctx context.Context) error {
		return s.fanout.TicketCreated(ctx, &created)
	})
	s.submit("auto_assign", func(ctx context.Context) error {
		agent, err := s.engine.AutoAssign(ctx, created.ID)
		if err != nil {
			return fmt.Errorf("auto-assign ticket %s: %w", created.ID, err)
		}
		if agent == nil {
			return nil
		}
		assigned := created
		assigned.AssignedAgentID = &agent.ID
		return s.fanout.AssigneeChanged(ctx, &assigned, &agent.ID)
	})

	return t, nil
}

// UpdateTicket applies the provided fields and fans out one event per
// field that actually changed.
func (s *TicketService) UpdateTicket(ctx context.Context, ticketID string, req domain.UpdateTicketRequest) (*domain.Ticket, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	t, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	now := time.Now().Unix()

	if req.Status != nil && *req.Status != t.Status {
		if err := s.tickets.SetStatus(ctx, t.ID, *req.Status, now); err != nil {
			return nil, err
		}
		t.Status = *req.Status
		t.UpdatedAt = now

		changed := *t
		s.submit("status_changed_fanout", func(ctx context.Context) error {
			return s.fanout.StatusChanged(ctx, &changed)
		})
	}

	if req.CompletionEstimateAt != nil {
		estimate := domain.NormalizeUnix(*req.CompletionEstimateAt)
		if t.CompletionEstimateAt == nil || *t.CompletionEstimateAt != estimate {
			if err := s.tickets.SetCompletionEstimate(ctx, t.ID, &estimate, now); err != nil {
				return nil, err
			}
			t.CompletionEstimateAt = &estimate
			t.UpdatedAt = now

			changed := *t
			s.submit("estimate_changed_fanout", func(ctx context.Context) error {
				return s.fanout.EstimateChanged(ctx, &changed)
			})
		}
	}

	return t, nil
}

// AssignTicket is the manual assignment path: a privileged actor sets the
// assignee to any existing agent, or to nil, bypassing eligibility
// filtering. Events fire only when the assignee actually changes, and the
// fairness marker is not touched; manual moves carry no round-robin
// weight.
func (s *TicketService) AssignTicket(ctx context.Context, ticketID string, agentID *string) (*domain.Ticket, error) {
	t, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	if agentID != nil {
		if _, err := s.agents.GetByID(ctx, *agentID); err != nil {
			return nil, err
		}
	}

	if equalAssignee(t.AssignedAgentID, agentID) {
		return t, nil
	}

	now := time.Now().Unix()
	if err := s.tickets.SetAssignee(ctx, t.ID, agentID, now); err != nil {
		return nil, err
	}
	t.AssignedAgentID = agentID
	t.UpdatedAt = now
	s.onManualAssign()

	changed := *t
	s.submitBroadcast("assignee_changed_fanout", func(ctx context.Context) error {
		return s.fanout.AssigneeChanged(ctx, &changed, agentID)
	})

	return t, nil
}

// RestoreTicket reopens a closed ticket as in_progress. If its previous
// assignee no longer exists, selection runs once for this single ticket;
// a selection failure leaves the ticket unassigned rather than failing the
// restore.
func (s *TicketService) RestoreTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	t, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if t.Status != domain.StatusClosed {
		return nil, domain.ErrNotRestorable
	}

	now := time.Now().Unix()
	if err := s.tickets.SetStatus(ctx, t.ID, domain.StatusInProgress, now); err != nil {
		return nil, err
	}
	t.Status = domain.StatusInProgress
	t.UpdatedAt = now

	agent, err := s.engine.EnsureAssigned(ctx, t)
	if err != nil {
		s.logger.Warn("restore: reassignment failed, ticket left as-is",
			zap.String("ticket_id", t.ID), zap.Error(err))
	}
	if agent != nil {
		t.AssignedAgentID = &agent.ID

		reassigned := *t
		s.submitBroadcast("assignee_changed_fanout", func(ctx context.Context) error {
			return s.fanout.AssigneeChanged(ctx, &reassigned, &agent.ID)
		})
	}

	restored := *t
	s.submit("status_changed_fanout", func(ctx context.Context) error {
		return s.fanout.StatusChanged(ctx, &restored)
	})

	return t, nil
}

// AddMessage appends to the ticket thread and fans out new_message per the
// notification policy.
func (s *TicketService) AddMessage(ctx context.Context, ticketID string, req domain.AddMessageRequest) (*domain.Message, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	role, err := domain.NormalizeRole(req.AuthorRole)
	if err != nil {
		return nil, err
	}

	t, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	m := &domain.Message{
		ID:         id.New(),
		TicketID:   t.ID,
		AuthorRole: role,
		AuthorID:   req.AuthorID,
		Body:       req.Body,
		CreatedAt:  time.Now().Unix(),
	}
	if err := s.messages.Insert(ctx, m); err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}

	ticket, message := *t, *m
	task := func(ctx context.Context) error {
		return s.fanout.MessageAdded(ctx, &ticket, &message)
	}
	// An unassigned ticket means a message notifies every agent.
	if t.AssignedAgentID != nil {
		s.submit("message_added_fanout", task)
	} else {
		s.submitBroadcast("message_added_fanout", task)
	}

	return m, nil
}

// RequestRecovery fans a recovery_request event out to supervisors.
func (s *TicketService) RequestRecovery(ctx context.Context, requesterID string) error {
	if requesterID == "" {
		return domain.ErrInvalidRequester
	}
	s.submitBroadcast("recovery_request_fanout", func(ctx context.Context) error {
		return s.fanout.RecoveryRequested(ctx, requesterID)
	})
	return nil
}

func (s *TicketService) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	return s.tickets.GetByID(ctx, ticketID)
}

func (s *TicketService) ListTickets(ctx context.Context, f domain.TicketFilter) ([]*domain.Ticket, error) {
	return s.tickets.List(ctx, f)
}

func (s *TicketService) ListMessages(ctx context.Context, ticketID string) ([]*domain.Message, error) {
	if _, err := s.tickets.GetByID(ctx, ticketID); err != nil {
		return nil, err
	}
	return s.messages.ListByTicket(ctx, ticketID)
}

// ---- private helpers ----

// submit places a background task on the direct tier; a full queue drops
// the task with a warning. Dropped notifications are acceptable, failed
// requests are not.
func (s *TicketService) submit(name string, fn func(ctx context.Context) error) {
	if err := s.q.Submit(notify.Task{Name: name, Run: fn}); err != nil {
		s.logger.Warn("background task dropped", zap.String("task", name), zap.Error(err))
	}
}

func (s *TicketService) submitBroadcast(name string, fn func(ctx context.Context) error) {
	if err := s.q.SubmitBroadcast(notify.Task{Name: name, Run: fn}); err != nil {
		s.logger.Warn("background task dropped", zap.String("task", name), zap.Error(err))
	}
}

func equalAssignee(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
