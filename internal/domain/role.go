package domain

// Role identifies which side of a ticket a subject is on. Events,
// preferences, and the polling endpoints are all scoped by (subject, role).
type Role string

const (
	RoleRequester Role = "requester"
	RoleAgent     Role = "agent"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleRequester, RoleAgent:
		return true
	}
	return false
}

// NormalizeRole collapses the accepted role spellings to the two canonical
// values. This is the single normalization boundary: everything below it
// only ever sees RoleRequester or RoleAgent.
func NormalizeRole(s string) (Role, error) {
	switch s {
	case "agent", "administrator":
		return RoleAgent, nil
	case "requester", "customer":
		return RoleRequester, nil
	}
	return "", ErrInvalidRole
}

// NormalizeUnix converts millisecond-scale timestamps to Unix seconds.
// All persisted timestamps are seconds; clients occasionally send
// Date.now() values, which are detected by magnitude.
func NormalizeUnix(ts int64) int64 {
	if ts > 1_000_000_000_000 {
		return ts / 1000
	}
	return ts
}
