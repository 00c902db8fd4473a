package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/supportdesk/ticketflow/internal/api/http"
	"github.com/supportdesk/ticketflow/internal/api/http/handlers"
	"github.com/supportdesk/ticketflow/internal/auth"
	"github.com/supportdesk/ticketflow/internal/config"
	"github.com/supportdesk/ticketflow/internal/events"
	"github.com/supportdesk/ticketflow/internal/observability"
	"github.com/supportdesk/ticketflow/internal/persistence"
	"github.com/supportdesk/ticketflow/internal/repository"
	"github.com/supportdesk/ticketflow/internal/repository/memory"
	"github.com/supportdesk/ticketflow/internal/repository/postgres"
	"github.com/supportdesk/ticketflow/internal/repository/sqlite"
	"github.com/supportdesk/ticketflow/internal/service"
	"github.com/supportdesk/ticketflow/internal/txguard"
	"github.com/supportdesk/ticketflow/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer store.Close() //nolint:errcheck

	metrics := observability.NewMetrics()
	guard := txguard.New(store, txguard.Policy{
		MaxAttempts: cfg.Tx.MaxAttempts,
		BaseDelay:   cfg.Tx.BaseDelay(),
		MaxDelay:    cfg.Tx.MaxDelay(),
	}, logger, txguard.WithObserver(metrics))

	dispatcher := events.NewInMemoryDispatcher(logger)
	pingers := map[string]handlers.Pinger{"store": store}

	var sinks []events.EventHandler
	if cfg.Events.Enabled {
		stream := persistence.NewEventStream(ctx, cfg.Redis, cfg.Events.Stream, logger)
		defer stream.Close()
		sink := events.NewRedisStreamSink(stream.Client, stream.Stream, logger, events.WithPublishTimeout(cfg.Events.PublishTimeout()))
		queue := worker.NewEventQueue(sink.Handle, cfg.Events.Buffer, logger)
		queue.Start()
		defer func() {
			drainCtx, drainCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer drainCancel()
			_ = queue.Stop(drainCtx)
		}()
		sinks = append(sinks, queue.Handle)
		pingers["redis"] = stream
	}
	worker.StartEventRelay(service.NewNotificationService(dispatcher, logger, sinks...))

	tickets := service.NewTicketService(service.TicketDependencies{
		Store:      store,
		Guard:      guard,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	var directory repository.UserDirectory
	if cfg.Auth.CheckDirectory {
		directory = store.Users()
	}

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pingers),
		Tickets:        handlers.NewTicketsHandler(tickets),
		StaffTickets:   handlers.NewStaffTicketsHandler(tickets),
		Audit:          handlers.NewAuditHandler(tickets),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, directory),
		Metrics:        metrics,
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.String("store", cfg.Store.Driver))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.Store, error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		pool, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, err
		}
		return postgres.NewStore(pool), nil
	case config.DriverSQLite:
		db, err := persistence.NewSQLite(ctx, cfg.SQLite, logger)
		if err != nil {
			return nil, err
		}
		return sqlite.NewStore(db), nil
	case config.DriverMemory:
		logger.Warn("using in-memory store; records are lost on exit")
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
