package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/deskhub/helpdesk/internal/api/handler"
	apimw "github.com/deskhub/helpdesk/internal/api/middleware"
	"github.com/deskhub/helpdesk/internal/config"
	"github.com/deskhub/helpdesk/internal/events"
	"github.com/deskhub/helpdesk/internal/metrics"
	"github.com/deskhub/helpdesk/internal/notify"
	"github.com/deskhub/helpdesk/internal/service"
)

// RouterDeps collects everything the HTTP surface needs. Keeping it in one
// struct keeps NewRouter's signature stable as handlers are added.
type RouterDeps struct {
	Tickets *service.TicketService
	Agents  *service.AgentService
	Bus     *events.Bus
	Queue   *notify.Queue
	Metrics *metrics.Metrics
	Reg     prometheus.Gatherer
	Cfg     *config.Config
	Logger  *zap.Logger
}

// NewRouter wires the chi router, attaches all middleware, and registers
// every route. It is the single source of truth for the HTTP surface area.
func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()

	// --- global middleware (applied to every route) ---
	r.Use(chimw.Recoverer)          // recover panics, return 500
	r.Use(chimw.RealIP)             // trust X-Forwarded-For / X-Real-IP
	r.Use(chimw.RequestSize(1<<20)) // 1 MB max request body
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.Cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Correlation-ID"},
		ExposedHeaders:   []string{"X-Correlation-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(apimw.CorrelationID) // X-Correlation-ID inject / echo
	r.Use(apimw.RequestLogger(d.Logger))

	limiter := apimw.NewRateLimiter(rate.Limit(d.Cfg.RateLimitPerSec), d.Cfg.RateLimitBurst)

	// --- handler instances ---
	th := handler.NewTicketHandler(d.Tickets, d.Logger)
	ah := handler.NewAgentHandler(d.Agents, d.Logger)
	eh := handler.NewEventHandler(d.Bus, d.Logger)
	mh := handler.NewMetricsHandler(d.Queue, d.Metrics)
	hh := handler.NewHealthHandler()

	// --- routes ---
	r.Get("/health", hh.Health)

	// Raw Prometheus scrape endpoint (for Prometheus server / Grafana)
	r.Handle("/metrics", promhttp.HandlerFor(d.Reg, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		// Mutating routes are rate limited per IP. The polling reads
		// (events, counts) are exempt so the sync clients' own retries
		// never push them further into backoff.
		r.Group(func(r chi.Router) {
			r.Use(limiter.Limit)

			r.Post("/tickets", th.Create)
			r.Patch("/tickets/{id}", th.Update)
			r.Put("/tickets/{id}/assignee", th.Assign)
			r.Post("/tickets/{id}/restore", th.Restore)
			r.Post("/tickets/{id}/messages", th.AddMessage)

			r.Post("/agents", ah.Create)
			r.Patch("/agents/{id}", ah.Update)
			r.Delete("/agents/{id}", ah.Delete)

			r.Post("/events/read", eh.MarkRead)
			r.Post("/events/read-all", eh.MarkAllRead)
			r.Delete("/events", eh.Clear)
			r.Put("/preferences", eh.UpdatePreferences)

			r.Post("/recovery-requests", th.RequestRecovery)
		})

		// Tickets
		r.Get("/tickets", th.List)
		r.Get("/tickets/{id}", th.GetByID)
		r.Get("/tickets/{id}/messages", th.ListMessages)

		// Agents
		r.Get("/agents", ah.List)
		r.Get("/agents/{id}", ah.GetByID)

		// Events (polled by sync clients)
		r.Get("/events/unread", eh.Unread)
		r.Get("/events/recent", eh.Recent)
		r.Get("/events/counts", eh.Counts)

		// Preferences
		r.Get("/preferences", eh.GetPreferences)

		// JSON metrics snapshot
		r.Get("/metrics", mh.GetMetrics)
	})

	return r
}
