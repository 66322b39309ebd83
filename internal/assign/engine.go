package assign

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/deskhub/helpdesk/internal/domain"
	"github.com/deskhub/helpdesk/internal/repository"
)

// Engine selects agents for tickets under the least-load policy and handles
// the bulk reassignment that follows an agent deletion.
//
// There is no lock around the read-loads → pick → write sequence: two
// concurrent creations may both pick the agent that was least loaded at read
// time, skewing that agent's load by one until the next selection
// re-measures. This is an accepted trade of eventual fairness for simplicity
// on a single node.
type Engine struct {
	agents  repository.AgentRepository
	tickets repository.TicketRepository
	logger  *zap.Logger

	// onAssigned is a metrics hook called with the assignment mode
	// ("auto" or "reassign"). Optional; nil = no-op.
	onAssigned func(mode string)
}

func NewEngine(
	agents repository.AgentRepository,
	tickets repository.TicketRepository,
	logger *zap.Logger,
	onAssigned func(mode string),
) *Engine {
	if onAssigned == nil {
		onAssigned = func(string) {}
	}
	return &Engine{agents: agents, tickets: tickets, logger: logger, onAssigned: onAssigned}
}

// OpenLoad returns the number of open tickets currently assigned to the
// agent. Pure read; store errors propagate.
func (e *Engine) OpenLoad(ctx context.Context, agentID string) (int, error) {
	return e.tickets.CountOpenByAgent(ctx, agentID)
}

// PickLeastLoaded returns the eligible agent with the fewest open tickets.
// Load ties are broken by the oldest fairness marker, so among equally
// loaded agents the one who has gone longest without an automatic
// assignment wins; an agent never assigned (marker 0) beats everyone.
//
// An empty eligible pool is a defined outcome, not an error: (nil, nil).
func (e *Engine) PickLeastLoaded(ctx context.Context) (*domain.Agent, error) {
	return e.pick(ctx, "")
}

func (e *Engine) pick(ctx context.Context, excludeID string) (*domain.Agent, error) {
	eligible, err := e.agents.ListEligible(ctx)
	if err != nil {
		return nil, fmt.Errorf("list eligible agents: %w", err)
	}

	candidates := make([]*domain.Agent, 0, len(eligible))
	for _, a := range eligible {
		if a.ID != excludeID {
			candidates = append(candidates, a)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	// Loads are independent point queries, so compute them concurrently.
	// Each goroutine writes its own slot; no shared mutable state.
	loads := make([]int, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	for i, a := range candidates {
		i, a := i, a
		g.Go(func() error {
			n, err := e.tickets.CountOpenByAgent(gctx, a.ID)
			if err != nil {
				return fmt.Errorf("open load for agent %s: %w", a.ID, err)
			}
			loads[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	order := make([]int, len(candidates))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(x, y int) bool {
		i, j := order[x], order[y]
		if loads[i] != loads[j] {
			return loads[i] < loads[j]
		}
		return candidates[i].LastAssignedAt < candidates[j].LastAssignedAt
	})

	return candidates[order[0]], nil
}

// AutoAssign selects an agent for the ticket and applies the assignment:
// the ticket gets the assignee, the winner's fairness marker moves to now.
// Only this path moves the marker; manual assignment leaves it alone.
//
// Returns (nil, nil) when no agent is eligible; the ticket stays
// unassigned and the caller treats it as a successful no-op.
func (e *Engine) AutoAssign(ctx context.Context, ticketID string) (*domain.Agent, error) {
	if _, err := e.tickets.GetByID(ctx, ticketID); err != nil {
		return nil, err
	}

	agent, err := e.PickLeastLoaded(ctx)
	if err != nil {
		return nil, err
	}
	if agent == nil {
		e.logger.Warn("no eligible agent: ticket left unassigned",
			zap.String("ticket_id", ticketID))
		return nil, nil
	}

	now := time.Now().Unix()
	if err := e.tickets.SetAssignee(ctx, ticketID, &agent.ID, now); err != nil {
		return nil, fmt.Errorf("apply assignment: %w", err)
	}
	if err := e.agents.SetAssignedAt(ctx, agent.ID, now); err != nil {
		return nil, fmt.Errorf("move fairness marker: %w", err)
	}

	e.onAssigned("auto")
	e.logger.Info("ticket auto-assigned",
		zap.String("ticket_id", ticketID),
		zap.String("agent_id", agent.ID))
	return agent, nil
}

// ReassignFrom re-targets every open ticket assigned to the given agent to
// a single replacement, selected once and applied to all of them in one
// bulk update. Re-running the selection per ticket would spread the load
// more evenly after a bulk delete, at the cost of N extra selection rounds;
// a single selection keeps deletion cheap and the next assignments
// re-balance quickly.
//
// With no eligible replacement the tickets end up unassigned (nil target).
// Returns the replacement (possibly nil) and the IDs of the moved tickets.
func (e *Engine) ReassignFrom(ctx context.Context, agentID string) (*domain.Agent, []string, error) {
	target, err := e.pick(ctx, agentID)
	if err != nil {
		return nil, nil, err
	}

	var targetID *string
	if target != nil {
		targetID = &target.ID
	}

	now := time.Now().Unix()
	ids, err := e.tickets.ReassignOpen(ctx, agentID, targetID, now)
	if err != nil {
		return nil, nil, fmt.Errorf("reassign open tickets: %w", err)
	}

	if target != nil && len(ids) > 0 {
		if err := e.agents.SetAssignedAt(ctx, target.ID, now); err != nil {
			return nil, nil, fmt.Errorf("move fairness marker: %w", err)
		}
		e.onAssigned("reassign")
	}

	e.logger.Info("reassigned open tickets",
		zap.String("from_agent", agentID),
		zap.Int("tickets", len(ids)),
		zap.Bool("target_found", target != nil))
	return target, ids, nil
}

// EnsureAssigned re-runs selection for a single ticket whose assignee is
// missing or no longer exists (the restore-from-archive path). Returns the
// new agent, or nil when the current assignment is still valid or no agent
// is eligible.
func (e *Engine) EnsureAssigned(ctx context.Context, t *domain.Ticket) (*domain.Agent, error) {
	if t.AssignedAgentID != nil {
		_, err := e.agents.GetByID(ctx, *t.AssignedAgentID)
		if err == nil {
			return nil, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	return e.AutoAssign(ctx, t.ID)
}
