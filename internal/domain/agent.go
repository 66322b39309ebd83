package domain

// Tier separates regular support agents from supervisors.
type Tier string

const (
	TierStandard   Tier = "standard"
	TierSupervisor Tier = "supervisor"
)

func (t Tier) IsValid() bool {
	switch t {
	case TierStandard, TierSupervisor:
		return true
	}
	return false
}

// Agent is a support administrator capable of owning tickets.
//
// Supervisors are permanently excluded from automatic assignment (the flag
// is forced on at creation) but may still be assigned manually, and they are
// the sole audience for recovery-request events.
type Agent struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Tier  Tier   `json:"tier"`

	// ExcludedFromAutoAssignment removes the agent from the automatic
	// assignment pool. Manual assignment ignores it.
	ExcludedFromAutoAssignment bool `json:"excluded_from_auto_assignment"`

	// LastAssignedAt is the round-robin fairness marker in Unix seconds.
	// Zero means "never automatically assigned" and wins any load tie.
	// Only the automatic assignment path moves it.
	LastAssignedAt int64 `json:"last_assigned_at"`

	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// Eligible reports whether the agent participates in automatic assignment.
func (a *Agent) Eligible() bool {
	return !a.ExcludedFromAutoAssignment
}

// CreateAgentRequest is the inbound payload for registering an agent.
type CreateAgentRequest struct {
	Name  string `json:"name" validate:"required,max=200"`
	Email string `json:"email" validate:"required,email"`
	Tier  Tier   `json:"tier"`

	// ExcludedFromAutoAssignment may be set for standard agents that should
	// not receive automatic work. Supervisors are excluded regardless.
	ExcludedFromAutoAssignment bool `json:"excluded_from_auto_assignment"`
}

func (r *CreateAgentRequest) Validate() error {
	if r.Name == "" {
		return ErrInvalidName
	}
	if r.Tier == "" {
		r.Tier = TierStandard
	}
	if !r.Tier.IsValid() {
		return ErrInvalidTier
	}
	return nil
}

// UpdateAgentRequest carries a partial agent update. Nil fields are left
// unchanged. Tier is fixed at creation time.
type UpdateAgentRequest struct {
	Name                       *string `json:"name" validate:"omitempty,max=200"`
	Email                      *string `json:"email" validate:"omitempty,email"`
	ExcludedFromAutoAssignment *bool   `json:"excluded_from_auto_assignment"`
}
