package app

import (
	"context"
	"fmt"

	"github.com/yungbote/capacity-checker/internal/data/db"
	"github.com/yungbote/capacity-checker/internal/http"
	httpH "github.com/yungbote/capacity-checker/internal/http/handlers"
	"github.com/yungbote/capacity-checker/internal/observability"
	errs "github.com/yungbote/capacity-checker/internal/pkg/errors"
	"github.com/yungbote/capacity-checker/internal/pkg/logger"
)

type App struct {
	Log      *logger.Logger
	DB       *db.Service
	Cfg      Config
	Metrics  *observability.Metrics
	Clients  Clients
	Repos    Repos
	Services Services
	Server   *http.Server

	otelShutdown func(context.Context) error
}

// New loads configuration from the environment and wires every layer. HTTP is wired too,
// so CLI commands and the server share one construction path.
func New(ctx context.Context) (*App, error) {
	log, err := logger.New(envLogMode())
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: cfg.OtelServiceName,
		Environment: cfg.Environment,
	})
	metrics := observability.NewMetrics(log)

	database, err := db.Open(cfg.DatabaseDSN, log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := database.AutoMigrateAll(); err != nil {
		_ = database.Close()
		log.Sync()
		return nil, fmt.Errorf("database automigrate: %w", err)
	}
	if sqlDB, err := database.SQLDB(); err == nil {
		metrics.RegisterDB(sqlDB, database.Dialect())
	}

	clients, err := wireClients(ctx, log, metrics, cfg)
	if err != nil {
		_ = database.Close()
		log.Sync()
		return nil, err
	}
	reposet := wireRepos(database.DB(), log)
	serviceset, err := wireServices(log, metrics, cfg, reposet, clients)
	if err != nil {
		clients.Close()
		_ = database.Close()
		log.Sync()
		return nil, err
	}

	checks := map[string]httpH.Pinger{"database": database}
	if clients.Redis != nil {
		checks["redis"] = redisPinger{rdb: clients.Redis}
	}
	handlerset := wireHandlers(log, serviceset, checks)

	return &App{
		Log:          log,
		DB:           database,
		Cfg:          cfg,
		Metrics:      metrics,
		Clients:      clients,
		Repos:        reposet,
		Services:     serviceset,
		Server:       wireServer(log, metrics, cfg, handlerset),
		otelShutdown: otelShutdown,
	}, nil
}

// Run serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Server.Run(ctx, a.Cfg.HTTPAddr)
}

// RequireSharedStore fails when job output written to the fast store would stay in this
// process. Index and mapping rebuilds run from the CLI publish only there.
func (a *App) RequireSharedStore(job string) error {
	if a.Clients.SharedFastStore() {
		return nil
	}
	if a.Log != nil {
		a.Log.Error("refusing to run job without a shared fast store", "job", job)
	}
	return fmt.Errorf("%s: %w", job, errs.MissingConfig("REDIS_ADDR"))
}

func (a *App) Close() {
	if a == nil {
		return
	}
	a.Services.Close()
	a.Clients.Close()
	if a.DB != nil {
		_ = a.DB.Close()
	}
	if a.otelShutdown != nil {
		_ = a.otelShutdown(context.Background())
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
