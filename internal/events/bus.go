package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/deskhub/helpdesk/internal/domain"
	"github.com/deskhub/helpdesk/internal/pkg/id"
	"github.com/deskhub/helpdesk/internal/repository"
)

// Defaults for the bus tunables; overridable through Options.
const (
	DefaultDedupWindow  = 60 * time.Second
	DefaultRecentWindow = 24 * time.Hour
	DefaultRecentLimit  = 50
)

// Options carries the bus tunables. Zero values fall back to the defaults.
type Options struct {
	DedupWindow  time.Duration
	RecentWindow time.Duration
	RecentLimit  int
}

// Hooks carries optional metric callbacks. Nil funcs are no-ops.
type Hooks struct {
	OnEmitted      func(t domain.EventType)
	OnDeduplicated func(t domain.EventType)
}

// Bus creates, deduplicates, and serves notification events, and owns the
// per-subject delivery preferences.
type Bus struct {
	events repository.EventRepository
	prefs  repository.PreferenceRepository
	logger *zap.Logger

	dedupWindow  time.Duration
	recentWindow time.Duration
	recentLimit  int
	hooks        Hooks
}

func NewBus(
	events repository.EventRepository,
	prefs repository.PreferenceRepository,
	opts Options,
	logger *zap.Logger,
	hooks Hooks,
) *Bus {
	if opts.DedupWindow <= 0 {
		opts.DedupWindow = DefaultDedupWindow
	}
	if opts.RecentWindow <= 0 {
		opts.RecentWindow = DefaultRecentWindow
	}
	if opts.RecentLimit <= 0 {
		opts.RecentLimit = DefaultRecentLimit
	}
	if hooks.OnEmitted == nil {
		hooks.OnEmitted = func(domain.EventType) {}
	}
	if hooks.OnDeduplicated == nil {
		hooks.OnDeduplicated = func(domain.EventType) {}
	}
	return &Bus{
		events:       events,
		prefs:        prefs,
		logger:       logger,
		dedupWindow:  opts.DedupWindow,
		recentWindow: opts.RecentWindow,
		recentLimit:  opts.RecentLimit,
		hooks:        hooks,
	}
}

// Emit stores a notification event for the subject, unless an unread event
// with the same (subject, role, type, entity) key was created within the
// dedup window; in that case the existing event is returned instead. This
// bounds notification storms from rapid repeated state changes to one
// visible event per subject per window.
func (b *Bus) Emit(
	ctx context.Context,
	subjectID string,
	role string,
	eventType domain.EventType,
	entityID string,
	payload json.RawMessage,
) (*domain.Event, error) {
	canonical, err := domain.NormalizeRole(role)
	if err != nil {
		return nil, err
	}
	if !eventType.IsValid() {
		return nil, domain.ErrInvalidEventType
	}

	now := time.Now().Unix()
	windowStart := now - int64(b.dedupWindow.Seconds())

	existing, err := b.events.FindRecentUnread(ctx, subjectID, canonical, eventType, entityID, windowStart)
	if err == nil {
		b.hooks.OnDeduplicated(eventType)
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("dedup lookup: %w", err)
	}

	e := &domain.Event{
		ID:          id.New(),
		SubjectID:   subjectID,
		SubjectRole: canonical,
		EventType:   eventType,
		EntityID:    entityID,
		Payload:     payload,
		CreatedAt:   now,
	}
	if err := b.events.Insert(ctx, e); err != nil {
		return nil, fmt.Errorf("store event: %w", err)
	}

	b.hooks.OnEmitted(eventType)
	return e, nil
}

// Unread returns the subject's unread events, newest first. A non-nil
// since filters to events created strictly after it; millisecond-scale
// values are normalized to seconds.
func (b *Bus) Unread(ctx context.Context, subjectID string, role domain.Role, since *int64) ([]*domain.Event, error) {
	if since != nil {
		s := domain.NormalizeUnix(*since)
		since = &s
	}
	return b.events.ListUnread(ctx, subjectID, role, since)
}

// Recent returns the subject's events from the recent window, read or
// unread, newest first, capped at the configured limit.
func (b *Bus) Recent(ctx context.Context, subjectID string, role domain.Role) ([]*domain.Event, error) {
	since := time.Now().Add(-b.recentWindow).Unix()
	return b.events.ListSince(ctx, subjectID, role, since, b.recentLimit)
}

// UnreadCounts classifies the subject's unread events into the coarse UI
// buckets: everything ticket-related together, recovery requests apart.
func (b *Bus) UnreadCounts(ctx context.Context, subjectID string, role domain.Role) (*domain.UnreadCounts, error) {
	byType, err := b.events.CountUnreadByType(ctx, subjectID, role)
	if err != nil {
		return nil, err
	}

	var c domain.UnreadCounts
	for t, n := range byType {
		if t == domain.EventRecoveryRequest {
			c.Recovery += n
		} else {
			c.Tickets += n
		}
		c.Total += n
	}
	return &c, nil
}

// MarkRead sets read_at on the given events where they belong to the
// subject and are still unread. Idempotent: re-marking a read event is a
// successful no-op. Reports whether anything changed.
func (b *Bus) MarkRead(ctx context.Context, subjectID string, role domain.Role, ids []string) (bool, error) {
	if len(ids) == 0 {
		return false, nil
	}
	n, err := b.events.MarkRead(ctx, subjectID, role, ids, time.Now().Unix())
	if err != nil {
		return false, fmt.Errorf("mark events read: %w", err)
	}
	return n > 0, nil
}

// MarkAllRead marks every unread event of the subject as read.
func (b *Bus) MarkAllRead(ctx context.Context, subjectID string, role domain.Role) (bool, error) {
	n, err := b.events.MarkAllRead(ctx, subjectID, role, time.Now().Unix())
	if err != nil {
		return false, fmt.Errorf("mark all events read: %w", err)
	}
	return n > 0, nil
}

// ClearAll hard-deletes every event for the subject. Irreversible.
func (b *Bus) ClearAll(ctx context.Context, subjectID string, role domain.Role) error {
	return b.events.DeleteAll(ctx, subjectID, role)
}

// GetPreferences returns the subject's stored preferences, or the defaults
// when none were ever saved. The defaults are not written back.
func (b *Bus) GetPreferences(ctx context.Context, subjectID string, role domain.Role) (*domain.Preferences, error) {
	p, err := b.prefs.Get(ctx, subjectID, role)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.DefaultPreferences(subjectID, role), nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// UpdatePreferences merges the provided fields over the current (or
// default) preferences, validates, and upserts the result.
func (b *Bus) UpdatePreferences(ctx context.Context, subjectID string, role domain.Role, req domain.UpdatePreferencesRequest) (*domain.Preferences, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	p, err := b.GetPreferences(ctx, subjectID, role)
	if err != nil {
		return nil, err
	}

	if req.SoundEnabled != nil {
		p.SoundEnabled = *req.SoundEnabled
	}
	if req.SoundVolume != nil {
		p.SoundVolume = *req.SoundVolume
	}
	if req.EnabledEventTypes != nil {
		p.EnabledEventTypes = append([]domain.EventType(nil), (*req.EnabledEventTypes)...)
	}
	p.UpdatedAt = time.Now().Unix()

	if err := b.prefs.Upsert(ctx, p); err != nil {
		return nil, fmt.Errorf("save preferences: %w", err)
	}
	return p, nil
}

// Allows reports whether the subject's preferences enable the event type.
// A preference read failure fails open: a broken preference row must not
// silence notifications.
func (b *Bus) Allows(ctx context.Context, subjectID string, role domain.Role, t domain.EventType) bool {
	p, err := b.GetPreferences(ctx, subjectID, role)
	if err != nil {
		b.logger.Warn("preference lookup failed, delivering anyway",
			zap.String("subject_id", subjectID), zap.Error(err))
		return true
	}
	return p.Allows(t)
}
