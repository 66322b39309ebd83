package service_test

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/deskhub/helpdesk/internal/assign"
	"github.com/deskhub/helpdesk/internal/domain"
	"github.com/deskhub/helpdesk/internal/events"
	"github.com/deskhub/helpdesk/internal/notify"
	"github.com/deskhub/helpdesk/internal/repository"
	"github.com/deskhub/helpdesk/internal/service"
)

type fixture struct {
	tickets *service.TicketService
	agents  *service.AgentService
	store   *repository.MemoryStore
	queue   *notify.Queue
}

func newFixture() *fixture {
	store := repository.NewMemoryStore()
	logger := zap.NewNop()
	q := notify.NewQueue(64, 64)
	engine := assign.NewEngine(store.Agents, store.Tickets, logger, nil)
	bus := events.NewBus(store.Events, store.Prefs, events.Options{}, logger, events.Hooks{})
	fanout := events.NewFanout(bus, store.Agents, logger)

	return &fixture{
		tickets: service.NewTicketService(service.TicketServiceDeps{
			Tickets:  store.Tickets,
			Agents:   store.Agents,
			Messages: store.Messages,
			Engine:   engine,
			Fanout:   fanout,
			Queue:    q,
			Logger:   logger,
		}),
		agents: service.NewAgentService(store.Agents, store.Tickets, engine, fanout, q, logger),
		store:  store,
		queue:  q,
	}
}

// drain runs every queued background task inline, so tests observe the
// fire-and-forget side effects deterministically.
func (f *fixture) drain(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	for {
		direct, broadcast := f.queue.Depths()
		if direct+broadcast == 0 {
			return
		}
		task, ok := f.queue.Dequeue(ctx)
		if !ok {
			return
		}
		if err := task.Run(ctx); err != nil {
			t.Logf("background task %s: %v", task.Name, err)
		}
	}
}

func (f *fixture) addAgent(t *testing.T, id string, tier domain.Tier, excluded bool) {
	t.Helper()
	err := f.store.Agents.Create(context.Background(), &domain.Agent{
		ID:                         id,
		Name:                       id,
		Tier:                       tier,
		ExcludedFromAutoAssignment: excluded || tier == domain.TierSupervisor,
	})
	if err != nil {
		t.Fatalf("seed agent: %v", err)
	}
}

var validTicket = domain.CreateTicketRequest{
	RequesterID: "req-1",
	Title:       "VPN will not connect",
	Body:        "Tried everything.",
}

func TestTicketService_CreateTicket(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.addAgent(t, "a1", domain.TierStandard, false)

	tk, err := f.tickets.CreateTicket(ctx, validTicket)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tk.ID == "" {
		t.Fatal("expected a non-empty ID")
	}
	if tk.Status != domain.StatusNew {
		t.Fatalf("expected status=new, got %s", tk.Status)
	}
	if tk.AssignedAgentID != nil {
		t.Fatal("assignment is asynchronous; ticket should return unassigned")
	}

	f.drain(t)

	stored, err := f.store.Tickets.GetByID(ctx, tk.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.AssignedAgentID == nil || *stored.AssignedAgentID != "a1" {
		t.Fatalf("expected auto-assignment to a1, got %v", stored.AssignedAgentID)
	}

	a, err := f.store.Agents.GetByID(ctx, "a1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.LastAssignedAt == 0 {
		t.Fatal("auto-assignment should move the fairness marker")
	}
}

func TestTicketService_CreateTicket_NoAgents(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	tk, err := f.tickets.CreateTicket(ctx, validTicket)
	if err != nil {
		t.Fatalf("creation must not fail for assignment reasons: %v", err)
	}
	f.drain(t)

	stored, _ := f.store.Tickets.GetByID(ctx, tk.ID)
	if stored.AssignedAgentID != nil {
		t.Fatal("expected ticket to stay unassigned")
	}
}

func TestTicketService_CreateTicket_Invalid(t *testing.T) {
	f := newFixture()

	bad := validTicket
	bad.Title = ""
	if _, err := f.tickets.CreateTicket(context.Background(), bad); err != domain.ErrInvalidTitle {
		t.Fatalf("expected ErrInvalidTitle, got %v", err)
	}
}

func TestTicketService_UpdateTicket_StatusChangeFansOut(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	tk, _ := f.tickets.CreateTicket(ctx, validTicket)
	f.drain(t)
	before := len(f.store.Events.All())

	st := domain.StatusResolved
	updated, err := f.tickets.UpdateTicket(ctx, tk.ID, domain.UpdateTicketRequest{Status: &st})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != domain.StatusResolved {
		t.Fatalf("expected resolved, got %s", updated.Status)
	}
	f.drain(t)

	if len(f.store.Events.All()) <= before {
		t.Fatal("status change should emit events")
	}
}

func TestTicketService_UpdateTicket_SameStatusIsSilent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	tk, _ := f.tickets.CreateTicket(ctx, validTicket)
	f.drain(t)
	before := len(f.store.Events.All())

	st := domain.StatusNew
	if _, err := f.tickets.UpdateTicket(ctx, tk.ID, domain.UpdateTicketRequest{Status: &st}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.drain(t)

	if got := len(f.store.Events.All()); got != before {
		t.Fatalf("no-op status update must not emit events: before=%d after=%d", before, got)
	}
}

func TestTicketService_UpdateTicket_EstimateNormalized(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	tk, _ := f.tickets.CreateTicket(ctx, validTicket)
	f.drain(t)

	ms := int64(1700000000123)
	updated, err := f.tickets.UpdateTicket(ctx, tk.ID, domain.UpdateTicketRequest{CompletionEstimateAt: &ms})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.CompletionEstimateAt == nil || *updated.CompletionEstimateAt != 1700000000 {
		t.Fatalf("expected estimate normalized to seconds, got %v", updated.CompletionEstimateAt)
	}
}

func TestTicketService_AssignTicket_Manual(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	// Supervisors and excluded agents are valid manual targets.
	f.addAgent(t, "sup", domain.TierSupervisor, false)

	tk, _ := f.tickets.CreateTicket(ctx, validTicket)
	f.drain(t)

	sup := "sup"
	assigned, err := f.tickets.AssignTicket(ctx, tk.ID, &sup)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if assigned.AssignedAgentID == nil || *assigned.AssignedAgentID != "sup" {
		t.Fatalf("expected manual assignment to sup, got %v", assigned.AssignedAgentID)
	}

	a, _ := f.store.Agents.GetByID(ctx, "sup")
	if a.LastAssignedAt != 0 {
		t.Fatal("manual assignment must not move the fairness marker")
	}
}

func TestTicketService_AssignTicket_UnknownAgent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	tk, _ := f.tickets.CreateTicket(ctx, validTicket)
	f.drain(t)

	ghost := "ghost"
	if _, err := f.tickets.AssignTicket(ctx, tk.ID, &ghost); err != domain.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTicketService_AssignTicket_NoChangeNoEvents(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.addAgent(t, "a1", domain.TierStandard, false)

	tk, _ := f.tickets.CreateTicket(ctx, validTicket)
	f.drain(t)
	before := len(f.store.Events.All())

	a1 := "a1"
	if _, err := f.tickets.AssignTicket(ctx, tk.ID, &a1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.drain(t)

	if got := len(f.store.Events.All()); got != before {
		t.Fatalf("re-assigning the same agent must not emit events: before=%d after=%d", before, got)
	}
}

func TestTicketService_AssignTicket_Unassign(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.addAgent(t, "a1", domain.TierStandard, false)

	tk, _ := f.tickets.CreateTicket(ctx, validTicket)
	f.drain(t)

	updated, err := f.tickets.AssignTicket(ctx, tk.ID, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.AssignedAgentID != nil {
		t.Fatal("expected ticket to be unassigned")
	}
}

func TestTicketService_RestoreTicket(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.addAgent(t, "a1", domain.TierStandard, false)

	tk, _ := f.tickets.CreateTicket(ctx, validTicket)
	f.drain(t)

	t.Run("only closed tickets restorable", func(t *testing.T) {
		if _, err := f.tickets.RestoreTicket(ctx, tk.ID); err != domain.ErrNotRestorable {
			t.Fatalf("expected ErrNotRestorable, got %v", err)
		}
	})

	st := domain.StatusClosed
	if _, err := f.tickets.UpdateTicket(ctx, tk.ID, domain.UpdateTicketRequest{Status: &st}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.drain(t)

	t.Run("restore reopens as in_progress", func(t *testing.T) {
		restored, err := f.tickets.RestoreTicket(ctx, tk.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if restored.Status != domain.StatusInProgress {
			t.Fatalf("expected in_progress, got %s", restored.Status)
		}
		if restored.AssignedAgentID == nil || *restored.AssignedAgentID != "a1" {
			t.Fatal("valid assignee should survive the restore")
		}
		f.drain(t)
	})
}

func TestTicketService_RestoreTicket_OrphanedAssignee(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.addAgent(t, "old", domain.TierStandard, false)
	f.addAgent(t, "new", domain.TierStandard, false)

	tk, _ := f.tickets.CreateTicket(ctx, validTicket)
	f.drain(t)

	st := domain.StatusClosed
	_, _ = f.tickets.UpdateTicket(ctx, tk.ID, domain.UpdateTicketRequest{Status: &st})
	f.drain(t)

	// The original assignee disappears while the ticket is closed.
	stored, _ := f.store.Tickets.GetByID(ctx, tk.ID)
	orphan := *stored.AssignedAgentID
	if err := f.store.Agents.Delete(ctx, orphan); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	restored, err := f.tickets.RestoreTicket(ctx, tk.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if restored.AssignedAgentID == nil {
		t.Fatal("expected a replacement assignee")
	}
	if *restored.AssignedAgentID == orphan {
		t.Fatal("orphaned assignee should have been replaced")
	}
}

func TestTicketService_AddMessage(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.addAgent(t, "a1", domain.TierStandard, false)

	tk, _ := f.tickets.CreateTicket(ctx, validTicket)
	f.drain(t)

	m, err := f.tickets.AddMessage(ctx, tk.ID, domain.AddMessageRequest{
		AuthorRole: "customer",
		AuthorID:   "req-1",
		Body:       "Any update?",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.AuthorRole != domain.RoleRequester {
		t.Fatalf("expected author role normalized to requester, got %s", m.AuthorRole)
	}

	msgs, err := f.tickets.ListMessages(ctx, tk.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
}

func TestTicketService_AddMessage_BadRole(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	tk, _ := f.tickets.CreateTicket(ctx, validTicket)
	f.drain(t)

	_, err := f.tickets.AddMessage(ctx, tk.ID, domain.AddMessageRequest{
		AuthorRole: "robot",
		AuthorID:   "r2",
		Body:       "beep",
	})
	if err != domain.ErrInvalidRole {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestTicketService_RequestRecovery(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.addAgent(t, "sup", domain.TierSupervisor, false)
	f.addAgent(t, "regular", domain.TierStandard, false)

	if err := f.tickets.RequestRecovery(ctx, "req-9"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.drain(t)

	var supEvents, regularEvents int
	for _, e := range f.store.Events.All() {
		switch e.SubjectID {
		case "sup":
			supEvents++
		case "regular":
			regularEvents++
		}
	}
	if supEvents != 1 {
		t.Fatalf("expected 1 supervisor event, got %d", supEvents)
	}
	if regularEvents != 0 {
		t.Fatalf("recovery requests must not reach standard agents, got %d", regularEvents)
	}

	if err := f.tickets.RequestRecovery(ctx, ""); err != domain.ErrInvalidRequester {
		t.Fatalf("expected ErrInvalidRequester, got %v", err)
	}
}
