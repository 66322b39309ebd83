package events_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/deskhub/helpdesk/internal/domain"
	"github.com/deskhub/helpdesk/internal/events"
	"github.com/deskhub/helpdesk/internal/repository"
)

func newBus(t *testing.T) (*events.Bus, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	bus := events.NewBus(store.Events, store.Prefs, events.Options{}, zap.NewNop(), events.Hooks{})
	return bus, store
}

func TestBus_Emit(t *testing.T) {
	ctx := context.Background()

	t.Run("stores a new event", func(t *testing.T) {
		bus, store := newBus(t)

		e, err := bus.Emit(ctx, "agent-1", "agent", domain.EventNewMessage, "ticket-1", nil)
		require.NoError(t, err)
		require.NotEmpty(t, e.ID)
		require.Equal(t, domain.RoleAgent, e.SubjectRole)
		require.Len(t, store.Events.All(), 1)
	})

	t.Run("role aliases are normalized", func(t *testing.T) {
		bus, _ := newBus(t)

		e, err := bus.Emit(ctx, "u1", "administrator", domain.EventNewMessage, "t1", nil)
		require.NoError(t, err)
		require.Equal(t, domain.RoleAgent, e.SubjectRole)

		e, err = bus.Emit(ctx, "u2", "customer", domain.EventNewMessage, "t1", nil)
		require.NoError(t, err)
		require.Equal(t, domain.RoleRequester, e.SubjectRole)
	})

	t.Run("duplicate within window collapses onto existing event", func(t *testing.T) {
		bus, store := newBus(t)

		first, err := bus.Emit(ctx, "agent-1", "agent", domain.EventNewMessage, "ticket-1", nil)
		require.NoError(t, err)

		second, err := bus.Emit(ctx, "agent-1", "agent", domain.EventNewMessage, "ticket-1", nil)
		require.NoError(t, err)
		require.Equal(t, first.ID, second.ID)
		require.Len(t, store.Events.All(), 1)
	})

	t.Run("different entity is not a duplicate", func(t *testing.T) {
		bus, store := newBus(t)

		_, err := bus.Emit(ctx, "agent-1", "agent", domain.EventNewMessage, "ticket-1", nil)
		require.NoError(t, err)
		_, err = bus.Emit(ctx, "agent-1", "agent", domain.EventNewMessage, "ticket-2", nil)
		require.NoError(t, err)
		require.Len(t, store.Events.All(), 2)
	})

	t.Run("different subject is not a duplicate", func(t *testing.T) {
		bus, store := newBus(t)

		_, err := bus.Emit(ctx, "agent-1", "agent", domain.EventNewMessage, "ticket-1", nil)
		require.NoError(t, err)
		_, err = bus.Emit(ctx, "agent-2", "agent", domain.EventNewMessage, "ticket-1", nil)
		require.NoError(t, err)
		require.Len(t, store.Events.All(), 2)
	})

	t.Run("read event does not suppress a new one", func(t *testing.T) {
		bus, store := newBus(t)

		first, err := bus.Emit(ctx, "agent-1", "agent", domain.EventNewMessage, "ticket-1", nil)
		require.NoError(t, err)

		changed, err := bus.MarkRead(ctx, "agent-1", domain.RoleAgent, []string{first.ID})
		require.NoError(t, err)
		require.True(t, changed)

		second, err := bus.Emit(ctx, "agent-1", "agent", domain.EventNewMessage, "ticket-1", nil)
		require.NoError(t, err)
		require.NotEqual(t, first.ID, second.ID)
		require.Len(t, store.Events.All(), 2)
	})

	t.Run("aged-out event does not suppress a new one", func(t *testing.T) {
		bus, store := newBus(t)

		// Insert an unread event created well before the dedup window.
		old := &domain.Event{
			ID:          "old",
			SubjectID:   "agent-1",
			SubjectRole: domain.RoleAgent,
			EventType:   domain.EventNewMessage,
			EntityID:    "ticket-1",
			CreatedAt:   time.Now().Unix() - 120,
		}
		require.NoError(t, store.Events.Insert(ctx, old))

		fresh, err := bus.Emit(ctx, "agent-1", "agent", domain.EventNewMessage, "ticket-1", nil)
		require.NoError(t, err)
		require.NotEqual(t, "old", fresh.ID)
		require.Len(t, store.Events.All(), 2)
	})

	t.Run("invalid role rejected", func(t *testing.T) {
		bus, _ := newBus(t)
		_, err := bus.Emit(ctx, "u1", "supervisor", domain.EventNewMessage, "t1", nil)
		require.ErrorIs(t, err, domain.ErrInvalidRole)
	})

	t.Run("invalid event type rejected", func(t *testing.T) {
		bus, _ := newBus(t)
		_, err := bus.Emit(ctx, "u1", "agent", "smoke_signal", "t1", nil)
		require.ErrorIs(t, err, domain.ErrInvalidEventType)
	})
}

func TestBus_ReadState(t *testing.T) {
	ctx := context.Background()

	t.Run("mark read is idempotent", func(t *testing.T) {
		bus, _ := newBus(t)
		e, err := bus.Emit(ctx, "u1", "agent", domain.EventNewMessage, "t1", nil)
		require.NoError(t, err)

		changed, err := bus.MarkRead(ctx, "u1", domain.RoleAgent, []string{e.ID})
		require.NoError(t, err)
		require.True(t, changed)

		changed, err = bus.MarkRead(ctx, "u1", domain.RoleAgent, []string{e.ID})
		require.NoError(t, err)
		require.False(t, changed, "re-marking a read event should report no change")
	})

	t.Run("empty id list is a no-op", func(t *testing.T) {
		bus, _ := newBus(t)
		changed, err := bus.MarkRead(ctx, "u1", domain.RoleAgent, nil)
		require.NoError(t, err)
		require.False(t, changed)
	})

	t.Run("cannot mark another subject's events", func(t *testing.T) {
		bus, _ := newBus(t)
		e, err := bus.Emit(ctx, "u1", "agent", domain.EventNewMessage, "t1", nil)
		require.NoError(t, err)

		changed, err := bus.MarkRead(ctx, "u2", domain.RoleAgent, []string{e.ID})
		require.NoError(t, err)
		require.False(t, changed)
	})

	t.Run("mark all read", func(t *testing.T) {
		bus, _ := newBus(t)
		_, err := bus.Emit(ctx, "u1", "agent", domain.EventNewMessage, "t1", nil)
		require.NoError(t, err)
		_, err = bus.Emit(ctx, "u1", "agent", domain.EventStatusChanged, "t1", nil)
		require.NoError(t, err)

		changed, err := bus.MarkAllRead(ctx, "u1", domain.RoleAgent)
		require.NoError(t, err)
		require.True(t, changed)

		unread, err := bus.Unread(ctx, "u1", domain.RoleAgent, nil)
		require.NoError(t, err)
		require.Empty(t, unread)
	})

	t.Run("clear all removes only the subject's events", func(t *testing.T) {
		bus, store := newBus(t)
		_, err := bus.Emit(ctx, "u1", "agent", domain.EventNewMessage, "t1", nil)
		require.NoError(t, err)
		_, err = bus.Emit(ctx, "u2", "agent", domain.EventNewMessage, "t1", nil)
		require.NoError(t, err)

		require.NoError(t, bus.ClearAll(ctx, "u1", domain.RoleAgent))
		require.Len(t, store.Events.All(), 1)
	})
}

func TestBus_UnreadCounts(t *testing.T) {
	ctx := context.Background()
	bus, _ := newBus(t)

	_, err := bus.Emit(ctx, "sup-1", "agent", domain.EventNewMessage, "t1", nil)
	require.NoError(t, err)
	_, err = bus.Emit(ctx, "sup-1", "agent", domain.EventStatusChanged, "t1", nil)
	require.NoError(t, err)
	_, err = bus.Emit(ctx, "sup-1", "agent", domain.EventRecoveryRequest, "req-9", nil)
	require.NoError(t, err)

	counts, err := bus.UnreadCounts(ctx, "sup-1", domain.RoleAgent)
	require.NoError(t, err)
	require.Equal(t, 2, counts.Tickets)
	require.Equal(t, 1, counts.Recovery)
	require.Equal(t, 3, counts.Total)
}

func TestBus_Unread_SinceFilter(t *testing.T) {
	ctx := context.Background()
	bus, store := newBus(t)

	now := time.Now().Unix()
	for i, id := range []string{"e1", "e2", "e3"} {
		require.NoError(t, store.Events.Insert(ctx, &domain.Event{
			ID:          id,
			SubjectID:   "u1",
			SubjectRole: domain.RoleAgent,
			EventType:   domain.EventNewMessage,
			EntityID:    "t1",
			CreatedAt:   now - int64(30-10*i),
		}))
	}

	since := now - 25
	got, err := bus.Unread(ctx, "u1", domain.RoleAgent, &since)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Millisecond-scale since values are normalized before filtering.
	sinceMs := since * 1000
	got, err = bus.Unread(ctx, "u1", domain.RoleAgent, &sinceMs)
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestBus_Preferences(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults returned without persisting", func(t *testing.T) {
		bus, store := newBus(t)

		p, err := bus.GetPreferences(ctx, "u1", domain.RoleRequester)
		require.NoError(t, err)
		require.True(t, p.SoundEnabled)
		require.Equal(t, 80, p.SoundVolume)

		_, err = store.Prefs.Get(ctx, "u1", domain.RoleRequester)
		require.ErrorIs(t, err, domain.ErrNotFound, "defaults must not be written back")
	})

	t.Run("partial update merges over defaults", func(t *testing.T) {
		bus, _ := newBus(t)

		vol := 30
		p, err := bus.UpdatePreferences(ctx, "u1", domain.RoleRequester,
			domain.UpdatePreferencesRequest{SoundVolume: &vol})
		require.NoError(t, err)
		require.Equal(t, 30, p.SoundVolume)
		require.True(t, p.SoundEnabled, "untouched field keeps its default")
		require.Len(t, p.EnabledEventTypes, len(domain.AllEventTypes()))
	})

	t.Run("invalid volume rejected", func(t *testing.T) {
		bus, _ := newBus(t)
		vol := 140
		_, err := bus.UpdatePreferences(ctx, "u1", domain.RoleRequester,
			domain.UpdatePreferencesRequest{SoundVolume: &vol})
		require.ErrorIs(t, err, domain.ErrInvalidVolume)
	})

	t.Run("allows honours disabled types", func(t *testing.T) {
		bus, _ := newBus(t)

		enabled := []domain.EventType{domain.EventNewMessage}
		_, err := bus.UpdatePreferences(ctx, "u1", domain.RoleAgent,
			domain.UpdatePreferencesRequest{EnabledEventTypes: &enabled})
		require.NoError(t, err)

		require.True(t, bus.Allows(ctx, "u1", domain.RoleAgent, domain.EventNewMessage))
		require.False(t, bus.Allows(ctx, "u1", domain.RoleAgent, domain.EventStatusChanged))
	})

	t.Run("allows defaults to everything for unknown subject", func(t *testing.T) {
		bus, _ := newBus(t)
		for _, et := range domain.AllEventTypes() {
			require.True(t, bus.Allows(ctx, "stranger", domain.RoleRequester, et))
		}
	})
}
