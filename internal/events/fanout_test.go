package events_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/deskhub/helpdesk/internal/domain"
	"github.com/deskhub/helpdesk/internal/events"
	"github.com/deskhub/helpdesk/internal/repository"
)

func newFanout(t *testing.T) (*events.Fanout, *events.Bus, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	bus := events.NewBus(store.Events, store.Prefs, events.Options{}, zap.NewNop(), events.Hooks{})
	f := events.NewFanout(bus, store.Agents, zap.NewNop())
	return f, bus, store
}

func seedAgent(t *testing.T, store *repository.MemoryStore, id string, tier domain.Tier) {
	t.Helper()
	require.NoError(t, store.Agents.Create(context.Background(), &domain.Agent{
		ID:   id,
		Name: id,
		Tier: tier,
	}))
}

// eventsFor filters stored events down to one subject.
func eventsFor(store *repository.MemoryStore, subjectID string) []*domain.Event {
	var out []*domain.Event
	for _, e := range store.Events.All() {
		if e.SubjectID == subjectID {
			out = append(out, e)
		}
	}
	return out
}

func TestFanout_TicketCreated(t *testing.T) {
	f, _, store := newFanout(t)
	ctx := context.Background()
	seedAgent(t, store, "a1", domain.TierStandard)
	seedAgent(t, store, "a2", domain.TierStandard)

	tk := &domain.Ticket{ID: "t1", RequesterID: "req-1", Title: "help"}
	require.NoError(t, f.TicketCreated(ctx, tk))

	require.Len(t, eventsFor(store, "a1"), 1)
	require.Len(t, eventsFor(store, "a2"), 1)

	reqEvents := eventsFor(store, "req-1")
	require.Len(t, reqEvents, 1)
	require.Equal(t, domain.RoleRequester, reqEvents[0].SubjectRole)
	require.Equal(t, domain.EventItemCreated, reqEvents[0].EventType)
}

func TestFanout_MessageAdded(t *testing.T) {
	ctx := context.Background()

	t.Run("assigned ticket notifies only the assignee", func(t *testing.T) {
		f, _, store := newFanout(t)
		seedAgent(t, store, "owner", domain.TierStandard)
		seedAgent(t, store, "other", domain.TierStandard)

		owner := "owner"
		tk := &domain.Ticket{ID: "t1", RequesterID: "req-1", AssignedAgentID: &owner}
		m := &domain.Message{ID: "m1", TicketID: "t1", AuthorID: "req-1", AuthorRole: domain.RoleRequester}

		require.NoError(t, f.MessageAdded(ctx, tk, m))
		require.Len(t, eventsFor(store, "owner"), 1)
		require.Empty(t, eventsFor(store, "other"))
		require.Empty(t, eventsFor(store, "req-1"), "requester's own message should not echo back")
	})

	t.Run("unassigned ticket notifies every agent", func(t *testing.T) {
		f, _, store := newFanout(t)
		seedAgent(t, store, "a1", domain.TierStandard)
		seedAgent(t, store, "a2", domain.TierStandard)

		tk := &domain.Ticket{ID: "t1", RequesterID: "req-1"}
		m := &domain.Message{ID: "m1", TicketID: "t1", AuthorID: "req-1", AuthorRole: domain.RoleRequester}

		require.NoError(t, f.MessageAdded(ctx, tk, m))
		require.Len(t, eventsFor(store, "a1"), 1)
		require.Len(t, eventsFor(store, "a2"), 1)
	})

	t.Run("agent message notifies the requester", func(t *testing.T) {
		f, _, store := newFanout(t)
		seedAgent(t, store, "owner", domain.TierStandard)

		owner := "owner"
		tk := &domain.Ticket{ID: "t1", RequesterID: "req-1", AssignedAgentID: &owner}
		m := &domain.Message{ID: "m1", TicketID: "t1", AuthorID: "owner", AuthorRole: domain.RoleAgent}

		require.NoError(t, f.MessageAdded(ctx, tk, m))
		require.Len(t, eventsFor(store, "req-1"), 1)
	})
}

func TestFanout_AssigneeChanged(t *testing.T) {
	f, _, store := newFanout(t)
	ctx := context.Background()
	seedAgent(t, store, "new-owner", domain.TierStandard)
	seedAgent(t, store, "bystander", domain.TierStandard)

	newOwner := "new-owner"
	tk := &domain.Ticket{ID: "t1", RequesterID: "req-1", AssignedAgentID: &newOwner}
	require.NoError(t, f.AssigneeChanged(ctx, tk, &newOwner))

	require.Len(t, eventsFor(store, "new-owner"), 1, "assignee notified exactly once")
	require.Len(t, eventsFor(store, "bystander"), 1)
	require.Len(t, eventsFor(store, "req-1"), 1)
}

func TestFanout_RecoveryRequested(t *testing.T) {
	f, _, store := newFanout(t)
	ctx := context.Background()
	seedAgent(t, store, "sup-1", domain.TierSupervisor)
	seedAgent(t, store, "sup-2", domain.TierSupervisor)
	seedAgent(t, store, "regular", domain.TierStandard)

	require.NoError(t, f.RecoveryRequested(ctx, "req-9"))

	require.Len(t, eventsFor(store, "sup-1"), 1)
	require.Len(t, eventsFor(store, "sup-2"), 1)
	require.Empty(t, eventsFor(store, "regular"), "recovery requests go to supervisors only")

	e := eventsFor(store, "sup-1")[0]
	require.Equal(t, domain.EventRecoveryRequest, e.EventType)
	require.Equal(t, "req-9", e.EntityID)
}

func TestFanout_PreferenceFiltering(t *testing.T) {
	f, bus, store := newFanout(t)
	ctx := context.Background()
	seedAgent(t, store, "muted", domain.TierStandard)
	seedAgent(t, store, "listening", domain.TierStandard)

	// "muted" turns off item_created notifications.
	enabled := []domain.EventType{domain.EventNewMessage}
	_, err := bus.UpdatePreferences(ctx, "muted", domain.RoleAgent,
		domain.UpdatePreferencesRequest{EnabledEventTypes: &enabled})
	require.NoError(t, err)

	tk := &domain.Ticket{ID: "t1", RequesterID: "req-1", Title: "help"}
	require.NoError(t, f.TicketCreated(ctx, tk))

	require.Empty(t, eventsFor(store, "muted"))
	require.Len(t, eventsFor(store, "listening"), 1)
}
