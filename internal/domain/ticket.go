package domain

// TicketStatus tracks the lifecycle of a ticket.
type TicketStatus string

const (
	StatusNew        TicketStatus = "new"
	StatusInProgress TicketStatus = "in_progress"
	StatusWaiting    TicketStatus = "waiting"
	StatusResolved   TicketStatus = "resolved"
	StatusClosed     TicketStatus = "closed"
)

func (s TicketStatus) IsValid() bool {
	switch s {
	case StatusNew, StatusInProgress, StatusWaiting, StatusResolved, StatusClosed:
		return true
	}
	return false
}

// IsOpen reports whether the ticket counts toward an agent's open load.
func (s TicketStatus) IsOpen() bool {
	switch s {
	case StatusNew, StatusInProgress, StatusWaiting:
		return true
	}
	return false
}

// Ticket is a support request owned by at most one agent at a time.
// Closed tickets are excluded from load counts and from the default listing.
type Ticket struct {
	ID          string       `json:"id"`
	RequesterID string       `json:"requester_id"`
	Title       string       `json:"title"`
	Body        string       `json:"body"`
	Status      TicketStatus `json:"status"`

	// AssignedAgentID is nil while the ticket is unassigned. The column is
	// ON DELETE SET NULL so deleting an agent never deletes their tickets.
	AssignedAgentID *string `json:"assigned_agent_id,omitempty"`

	// CompletionEstimateAt is the agent's promised completion time
	// in Unix seconds, if one was given.
	CompletionEstimateAt *int64 `json:"completion_estimate_at,omitempty"`

	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// CreateTicketRequest is the inbound payload for opening a ticket.
type CreateTicketRequest struct {
	RequesterID string `json:"requester_id" validate:"required"`
	Title       string `json:"title" validate:"required,max=500"`
	Body        string `json:"body" validate:"max=16384"`
}

func (r *CreateTicketRequest) Validate() error {
	if r.RequesterID == "" {
		return ErrInvalidRequester
	}
	if r.Title == "" || len(r.Title) > 500 {
		return ErrInvalidTitle
	}
	return nil
}

// UpdateTicketRequest carries a partial ticket update. Nil fields are left
// unchanged. CompletionEstimateAt accepts millisecond timestamps and is
// normalized to seconds at the boundary.
type UpdateTicketRequest struct {
	Status               *TicketStatus `json:"status"`
	CompletionEstimateAt *int64        `json:"completion_estimate_at"`
}

func (r *UpdateTicketRequest) Validate() error {
	if r.Status != nil && !r.Status.IsValid() {
		return ErrInvalidStatus
	}
	return nil
}

// TicketFilter holds query parameters for ticket listing.
// Closed tickets are omitted unless IncludeClosed is set.
type TicketFilter struct {
	Status          *TicketStatus
	AssignedAgentID *string
	RequesterID     *string
	IncludeClosed   bool
}
