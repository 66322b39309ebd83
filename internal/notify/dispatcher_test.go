package notify_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/deskhub/helpdesk/internal/notify"
)

func TestDispatcher_FailedTaskDoesNotStopWorkers(t *testing.T) {
	q := notify.NewQueue(8, 8)
	var completed atomic.Int32
	var failed atomic.Int32

	d := notify.NewDispatcher(q, 2, zap.NewNop(), notify.MetricHooks{
		OnDone:   func(string, time.Duration) { completed.Add(1) },
		OnFailed: func(string) { failed.Add(1) },
	})

	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)

	if err := q.Submit(notify.Task{
		Name: "boom",
		Run:  func(context.Context) error { return errors.New("boom") },
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := q.Submit(notify.Task{
		Name: "fine",
		Run:  func(context.Context) error { return nil },
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for completed.Load() < 1 || failed.Load() < 1 {
		select {
		case <-deadline:
			t.Fatalf("tasks not processed: completed=%d failed=%d",
				completed.Load(), failed.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	d.Wait()
}
