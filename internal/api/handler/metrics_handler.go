package handler

import (
	"net/http"

	"github.com/deskhub/helpdesk/internal/metrics"
	"github.com/deskhub/helpdesk/internal/notify"
)

// MetricsHandler serves a human-readable JSON queue snapshot.
// Raw Prometheus metrics (counters, histograms) are available at /metrics
// via promhttp.Handler and are separate from this endpoint.
type MetricsHandler struct {
	q *notify.Queue
	m *metrics.Metrics
}

func NewMetricsHandler(q *notify.Queue, m *metrics.Metrics) *MetricsHandler {
	return &MetricsHandler{q: q, m: m}
}

// GetMetrics handles GET /api/v1/metrics
//
// @Summary  Real-time task queue depth snapshot
// @Tags     metrics
// @Produce  json
// @Success  200  {object}  map[string]any
// @Router   /api/v1/metrics [get]
func (h *MetricsHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	direct, broadcast := h.q.Depths()
	h.m.ObserveQueueDepths(direct, broadcast)
	respondJSON(w, http.StatusOK, map[string]any{
		"queue_depth": map[string]int{
			"direct":    direct,
			"broadcast": broadcast,
			"total":     direct + broadcast,
		},
	})
}
