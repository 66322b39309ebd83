package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// MetricHooks carries the metric callback functions injected by main.
// Using a struct keeps the dispatcher constructor signature clean.
type MetricHooks struct {
	OnDone   func(name string, latency time.Duration)
	OnFailed func(name string)
}

// Dispatcher runs a small pool of goroutines draining the task queue.
// It is the isolation boundary for fire-and-forget work: a task error is
// logged and counted here and never propagates to the request that
// submitted it.
type Dispatcher struct {
	q       *Queue
	workers int
	logger  *zap.Logger
	hooks   MetricHooks
	wg      sync.WaitGroup
}

func NewDispatcher(q *Queue, workers int, logger *zap.Logger, hooks MetricHooks) *Dispatcher {
	if hooks.OnDone == nil {
		hooks.OnDone = func(string, time.Duration) {}
	}
	if hooks.OnFailed == nil {
		hooks.OnFailed = func(string) {}
	}
	return &Dispatcher{q: q, workers: workers, logger: logger, hooks: hooks}
}

// Start launches the worker goroutines. Cancelling ctx triggers a graceful
// shutdown of the pool; in-flight tasks run to completion.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func(id int) {
			defer d.wg.Done()
			d.run(ctx, id)
		}(i)
	}
}

// Wait blocks until every worker has returned after ctx is cancelled.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) run(ctx context.Context, id int) {
	log := d.logger.With(zap.Int("dispatcher_worker", id))
	log.Info("dispatcher worker started")

	for {
		task, ok := d.q.Dequeue(ctx)
		if !ok {
			log.Info("dispatcher worker stopping")
			return
		}

		start := time.Now()
		if err := task.Run(ctx); err != nil {
			d.hooks.OnFailed(task.Name)
			log.Warn("background task failed",
				zap.String("task", task.Name),
				zap.Error(err))
			continue
		}
		d.hooks.OnDone(task.Name, time.Since(start))
	}
}
