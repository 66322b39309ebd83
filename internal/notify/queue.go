package notify

import (
	"context"

	"github.com/deskhub/helpdesk/internal/domain"
)

// Task is a unit of best-effort background work: an assignment run or a
// batch of notification emissions. Failures are logged by the dispatcher
// and never reach the operation that submitted the task.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Queue dispatches tasks to one of two buffered channels.
//
// Buffer sizes reflect expected traffic shape:
//
//	direct:    1024, single-subject notifications and assignment runs
//	broadcast: 4096, all-agents fan-outs, which arrive in bursts
//
// Workers dequeue via the double-select pattern, which guarantees that
// direct tasks are always served before broadcast ones, while still
// allowing the worker to sleep when both tiers are empty.
type Queue struct {
	direct    chan Task
	broadcast chan Task
}

func NewQueue(directSize, broadcastSize int) *Queue {
	return &Queue{
		direct:    make(chan Task, directSize),
		broadcast: make(chan Task, broadcastSize),
	}
}

// Submit places a task on the direct tier. It is non-blocking: if the tier
// is full, ErrQueueFull is returned immediately rather than blocking the
// caller (the triggering request handler).
func (q *Queue) Submit(t Task) error {
	select {
	case q.direct <- t:
		return nil
	default:
		return domain.ErrQueueFull
	}
}

// SubmitBroadcast places a task on the broadcast tier. Non-blocking, like
// Submit.
func (q *Queue) SubmitBroadcast(t Task) error {
	select {
	case q.broadcast <- t:
		return nil
	default:
		return domain.ErrQueueFull
	}
}

// Dequeue blocks until a task is available or ctx is cancelled.
//
// Tier guarantee, via the double-select pattern:
//  1. A non-blocking select checks the direct channel first. If a task is
//     waiting there, it is returned immediately regardless of broadcast.
//  2. Only when direct is empty does the goroutine enter a fair blocking
//     select across both channels plus the done signal.
//
// Returns (Task{}, false) when ctx is cancelled (graceful shutdown signal).
func (q *Queue) Dequeue(ctx context.Context) (Task, bool) {
	// Step 1: drain direct before entering a fair wait.
	select {
	case t := <-q.direct:
		return t, true
	default:
	}

	// Step 2: fair competition when direct is empty.
	select {
	case t := <-q.direct:
		return t, true
	case t := <-q.broadcast:
		return t, true
	case <-ctx.Done():
		return Task{}, false
	}
}

// Depths returns the current number of tasks waiting in each tier.
// Used by the metrics handler for the queue-depth snapshot.
func (q *Queue) Depths() (direct, broadcast int) {
	return len(q.direct), len(q.broadcast)
}
