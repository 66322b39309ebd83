package domain

import "encoding/json"

// EventType is the closed enum of notification kinds.
type EventType string

const (
	EventNewMessage        EventType = "new_message"
	EventItemCreated       EventType = "item_created"
	EventStatusChanged     EventType = "status_changed"
	EventItemAssigned      EventType = "item_assigned"
	EventCompletionUpdated EventType = "completion_updated"
	EventRecoveryRequest   EventType = "recovery_request"
)

func (t EventType) IsValid() bool {
	switch t {
	case EventNewMessage, EventItemCreated, EventStatusChanged,
		EventItemAssigned, EventCompletionUpdated, EventRecoveryRequest:
		return true
	}
	return false
}

// AllEventTypes lists every member of the enum, in declaration order.
func AllEventTypes() []EventType {
	return []EventType{
		EventNewMessage, EventItemCreated, EventStatusChanged,
		EventItemAssigned, EventCompletionUpdated, EventRecoveryRequest,
	}
}

// Event is a persisted notification addressed to one (subject, role) pair.
//
// Invariant, enforced by the bus rather than the table: at most one unread
// event per (subject_id, subject_role, event_type, entity_id) within a
// 60-second creation window.
type Event struct {
	ID          string          `json:"id"`
	SubjectID   string          `json:"subject_id"`
	SubjectRole Role            `json:"subject_role"`
	EventType   EventType       `json:"event_type"`
	EntityID    string          `json:"entity_id"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	CreatedAt   int64           `json:"created_at"`

	// ReadAt is nil while unread. Set once by mark-read; never cleared.
	ReadAt *int64 `json:"read_at,omitempty"`
}

// Unread reports whether the event has not yet been marked read.
func (e *Event) Unread() bool { return e.ReadAt == nil }

// UnreadCounts classifies a subject's unread events into the coarse
// buckets the UI tabs use.
type UnreadCounts struct {
	Tickets  int `json:"tickets"`
	Recovery int `json:"recovery"`
	Total    int `json:"total"`
}
