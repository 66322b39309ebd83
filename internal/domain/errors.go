package domain

import "errors"

// Sentinel errors used throughout the application.
// Handlers translate these to HTTP status codes via a single mapError function.
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidRole      = errors.New("invalid role: must be requester or agent")
	ErrInvalidTier      = errors.New("invalid tier: must be standard or supervisor")
	ErrInvalidName      = errors.New("name must not be empty")
	ErrInvalidRequester = errors.New("requester_id must not be empty")
	ErrInvalidTitle     = errors.New("title must be between 1 and 500 characters")
	ErrInvalidStatus    = errors.New("invalid status: must be new, in_progress, waiting, resolved, or closed")
	ErrInvalidEventType = errors.New("invalid event type")
	ErrInvalidVolume    = errors.New("sound volume must be between 0 and 100")
	ErrInvalidBody      = errors.New("body must not be empty")
	ErrNotRestorable    = errors.New("only closed tickets can be restored")
	ErrQueueFull        = errors.New("notification queue is at capacity")
)
