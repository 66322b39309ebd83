package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/deskhub/helpdesk/internal/domain"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	EventsEmitted       *prometheus.CounterVec
	EventsDeduplicated  *prometheus.CounterVec
	Assignments         *prometheus.CounterVec
	TasksFailed         *prometheus.CounterVec
	TaskLatency         *prometheus.HistogramVec
	QueueDepthDirect    prometheus.Gauge
	QueueDepthBroadcast prometheus.Gauge
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "events_emitted_total",
			Help: "Total number of notification events stored.",
		}, []string{"event_type"}),

		EventsDeduplicated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "events_deduplicated_total",
			Help: "Total number of emissions collapsed into an existing unread event.",
		}, []string{"event_type"}),

		Assignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticket_assignments_total",
			Help: "Total number of ticket assignments by mode (auto, manual, reassign).",
		}, []string{"mode"}),

		TasksFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "background_tasks_failed_total",
			Help: "Total number of dispatcher tasks that returned an error.",
		}, []string{"task"}),

		TaskLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "background_task_seconds",
			Help:    "Dispatcher task execution latency from dequeue to completion.",
			Buckets: prometheus.DefBuckets,
		}, []string{"task"}),

		QueueDepthDirect: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "notify_queue_depth_direct",
			Help: "Current number of tasks in the direct notification tier.",
		}),
		QueueDepthBroadcast: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "notify_queue_depth_broadcast",
			Help: "Current number of tasks in the broadcast notification tier.",
		}),
	}

	reg.MustRegister(
		m.EventsEmitted,
		m.EventsDeduplicated,
		m.Assignments,
		m.TasksFailed,
		m.TaskLatency,
		m.QueueDepthDirect,
		m.QueueDepthBroadcast,
	)

	return m
}

// DispatcherHooks returns the metric callback functions expected by
// notify.MetricHooks. Centralises the prometheus observation calls so the
// dispatcher stays metrics-agnostic.
func (m *Metrics) DispatcherHooks() (
	onDone func(task string, latency time.Duration),
	onFailed func(task string),
) {
	onDone = func(task string, latency time.Duration) {
		m.TaskLatency.WithLabelValues(task).Observe(latency.Seconds())
	}
	onFailed = func(task string) {
		m.TasksFailed.WithLabelValues(task).Inc()
	}
	return
}

// BusHooks returns the metric callbacks the event bus expects.
func (m *Metrics) BusHooks() (
	onEmitted func(t domain.EventType),
	onDeduplicated func(t domain.EventType),
) {
	onEmitted = func(t domain.EventType) {
		m.EventsEmitted.WithLabelValues(string(t)).Inc()
	}
	onDeduplicated = func(t domain.EventType) {
		m.EventsDeduplicated.WithLabelValues(string(t)).Inc()
	}
	return
}

// AssignmentHook returns the callback the assignment paths use to count
// assignments by mode.
func (m *Metrics) AssignmentHook() func(mode string) {
	return func(mode string) {
		m.Assignments.WithLabelValues(mode).Inc()
	}
}

// ObserveQueueDepths records the current notify queue depths.
func (m *Metrics) ObserveQueueDepths(direct, broadcast int) {
	m.QueueDepthDirect.Set(float64(direct))
	m.QueueDepthBroadcast.Set(float64(broadcast))
}
