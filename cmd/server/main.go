package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/deskhub/helpdesk/internal/api"
	"github.com/deskhub/helpdesk/internal/assign"
	"github.com/deskhub/helpdesk/internal/config"
	"github.com/deskhub/helpdesk/internal/db"
	"github.com/deskhub/helpdesk/internal/events"
	"github.com/deskhub/helpdesk/internal/metrics"
	"github.com/deskhub/helpdesk/internal/notify"
	"github.com/deskhub/helpdesk/internal/repository"
	"github.com/deskhub/helpdesk/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// ---- database ----
	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("database migrations applied")

	// ---- core dependencies ----
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	q := notify.NewQueue(cfg.DirectQueueSize, cfg.BroadcastQueueSize)

	agentRepo := repository.NewPgAgentRepository(pool)
	ticketRepo := repository.NewPgTicketRepository(pool)
	eventRepo := repository.NewPgEventRepository(pool)
	prefRepo := repository.NewPgPreferenceRepository(pool)
	messageRepo := repository.NewPgMessageRepository(pool)

	engine := assign.NewEngine(agentRepo, ticketRepo, logger, m.AssignmentHook())

	onEmitted, onDeduplicated := m.BusHooks()
	bus := events.NewBus(eventRepo, prefRepo, events.Options{
		DedupWindow:  cfg.DedupWindow,
		RecentWindow: cfg.RecentWindow,
		RecentLimit:  cfg.RecentLimit,
	}, logger, events.Hooks{
		OnEmitted:      onEmitted,
		OnDeduplicated: onDeduplicated,
	})
	fanout := events.NewFanout(bus, agentRepo, logger)

	ticketSvc := service.NewTicketService(service.TicketServiceDeps{
		Tickets:  ticketRepo,
		Agents:   agentRepo,
		Messages: messageRepo,
		Engine:   engine,
		Fanout:   fanout,
		Queue:    q,
		Logger:   logger,
		OnManualAssign: func() {
			m.Assignments.WithLabelValues("manual").Inc()
		},
	})
	agentSvc := service.NewAgentService(agentRepo, ticketRepo, engine, fanout, q, logger)

	// ---- dispatcher pool ----
	// Context for all background goroutines; cancelled on shutdown signal.
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	onDone, onFailed := m.DispatcherHooks()
	dispatcher := notify.NewDispatcher(q, cfg.DispatcherWorkers, logger, notify.MetricHooks{
		OnDone:   onDone,
		OnFailed: onFailed,
	})
	dispatcher.Start(workerCtx)

	// ---- HTTP server ----
	router := api.NewRouter(api.RouterDeps{
		Tickets: ticketSvc,
		Agents:  agentSvc,
		Bus:     bus,
		Queue:   q,
		Metrics: m,
		Reg:     reg,
		Cfg:     cfg,
		Logger:  logger,
	})
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start server in a goroutine so it does not block the shutdown listener.
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// 1. Stop accepting new HTTP requests; drain in-flight ones.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// 2. Signal the dispatcher workers to stop dequeuing.
	cancelWorkers()

	// 3. Wait for in-flight tasks to finish.
	dispatcher.Wait()

	logger.Info("server stopped cleanly")
}
