package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/mockly-backend/internal/data/db"
	mhttp "github.com/yungbote/mockly-backend/internal/http"
	"github.com/yungbote/mockly-backend/internal/jobs/worker"
	"github.com/yungbote/mockly-backend/internal/observability"
	"github.com/yungbote/mockly-backend/internal/platform/logger"
	"github.com/yungbote/mockly-backend/internal/realtime"
)

const poolDrainTimeout = 30 * time.Second

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Repos    Repos
	Clients  Clients
	Services Services
	Hub      *realtime.SSEHub
	Pool     *worker.Pool
	Server   *mhttp.Server

	pg           *db.PostgresService
	otelShutdown func(context.Context) error
}

// NewLogger builds the process logger from LOG_MODE before any config is read.
func NewLogger() (*logger.Logger, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return log, nil
}

func New(ctx context.Context, log *logger.Logger) (*App, error) {
	log.Info("Loading configuration...")
	cfg, err := LoadConfig(log)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	otelShutdown := observability.InitOTel(ctx, log, cfg.Otel)
	metrics := observability.NewMetrics()

	pg, err := db.NewPostgresService(log, cfg.Postgres)
	if err != nil {
		_ = otelShutdown(ctx)
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		_ = pg.Close()
		_ = otelShutdown(ctx)
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	clients, err := wireClients(log, cfg)
	if err != nil {
		_ = pg.Close()
		_ = otelShutdown(ctx)
		return nil, err
	}

	hub := realtime.NewSSEHub(log)
	pool := worker.NewPool(log, cfg.Worker)
	reposet := wireRepos(theDB, log)
	serviceset := wireServices(log, cfg, reposet, clients, hub, pool, metrics)
	handlerset := wireHandlers(log, cfg, serviceset, clients, hub, theDB)
	server := wireServer(log, cfg, handlerset, clients, metrics)
	server.OnShutdown(hub.CloseAll)

	return &App{
		Log:          log,
		DB:           theDB,
		Cfg:          cfg,
		Repos:        reposet,
		Clients:      clients,
		Services:     serviceset,
		Hub:          hub,
		Pool:         pool,
		Server:       server,
		pg:           pg,
		otelShutdown: otelShutdown,
	}, nil
}

// Run serves HTTP and runs report tasks until ctx is canceled. On shutdown the
// server drains first, then queued report tasks are allowed to finish.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}

	// Tasks keep running past the signal; Shutdown bounds how long we wait.
	a.Pool.Start(context.WithoutCancel(ctx))

	g, gctx := errgroup.WithContext(ctx)
	if a.Clients.Bus != nil {
		if err := a.Clients.Bus.StartForwarder(gctx, a.Hub.Broadcast); err != nil {
			return fmt.Errorf("start event forwarder: %w", err)
		}
		a.Log.Info("Forwarding session events from redis", "channel", a.Cfg.Redis.Channel)
	}

	g.Go(func() error {
		addr := a.Cfg.Addr()
		a.Log.Info("HTTP server listening", "addr", addr)
		serveErr := a.Server.Run(gctx, addr)

		drainCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), poolDrainTimeout)
		defer cancel()
		if err := a.Pool.Shutdown(drainCtx); err != nil {
			a.Log.Warn("Worker pool did not drain", "error", err, "in_flight", a.Pool.InFlight())
		}
		return serveErr
	})
	return g.Wait()
}

func (a *App) Close() {
	if a == nil {
		return
	}
	a.Clients.Close()
	if a.pg != nil {
		_ = a.pg.Close()
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("OTel shutdown failed", "error", err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}

// Migrate applies the schema and exits.
func Migrate(log *logger.Logger) error {
	cfg, err := LoadConfig(log)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	pg, err := db.NewPostgresService(log, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("init postgres: %w", err)
	}
	defer pg.Close()
	return pg.AutoMigrateAll()
}
