package app

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/ckguru/orchestrator/internal/data/db"
	"github.com/ckguru/orchestrator/internal/jobs/crs"
	"github.com/ckguru/orchestrator/internal/observability"
	"github.com/ckguru/orchestrator/internal/platform/dbctx"
	"github.com/ckguru/orchestrator/internal/platform/logger"
	"github.com/ckguru/orchestrator/internal/temporalx/temporalworker"
)

// App is the process-wide wiring root: one Postgres connection, one
// Repos/Services/Handlers graph, an optional HTTP router and an
// optional Temporal worker, started independently per Config's
// RunServer/RunWorker flags so the same binary serves both a pure API
// container and a pure worker container.
type App struct {
	Log     *logger.Logger
	DB      *gorm.DB
	Router  *gin.Engine
	Cfg     Config
	Repos   Repos
	Clients Clients
	Services Services
	Metrics *observability.Metrics

	worker *temporalworker.Runner
	cancel context.CancelFunc
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	metrics := observability.Init(log)

	clients, err := wireClients(log, cfg)
	if err != nil {
		log.Sync()
		return nil, err
	}

	reposet := wireRepos(theDB, log)

	serviceset, err := wireServices(theDB, log, cfg, reposet, clients)
	if err != nil {
		clients.Close()
		log.Sync()
		return nil, err
	}

	handlerset := wireHandlers(serviceset)
	router := wireRouter(log, metrics, handlerset)

	var workerRunner *temporalworker.Runner
	if cfg.RunWorker {
		workerRunner, err = temporalworker.NewRunner(log, clients.Temporal, theDB, reposet.Job, reposet.JobEvent, serviceset.JobRegistry, clients.CancelBus)
		if err != nil {
			clients.Close()
			log.Sync()
			return nil, fmt.Errorf("init temporal worker: %w", err)
		}
	}

	return &App{
		Log:      log,
		DB:       theDB,
		Router:   router,
		Cfg:      cfg,
		Repos:    reposet,
		Clients:  clients,
		Services: serviceset,
		Metrics:  metrics,
		worker:   workerRunner,
	}, nil
}

// Start launches the background components this process owns: the
// Capability Registry Sync (always, so a server-only process still
// advertises up-to-date capabilities for the CP's validation checks)
// and the Temporal worker (only when runWorker).
func (a *App) Start(runServer, runWorker bool) {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if err := crs.SyncAll(dbctx.Background(ctx), a.Log, crs.Registries{
		Cleaning:         a.Services.CleaningRegistry,
		FeatureSelection: a.Services.FeatureSelectionRegistry,
		ModelType:        a.Services.ModelTypeRegistry,
	}, crs.Repos{
		Cleaning:         a.Repos.CleaningRuleRegistry,
		FeatureSelection: a.Repos.FeatureSelectionRegistry,
		ModelType:        a.Repos.ModelTypeRegistry,
	}, a.Cfg.WorkerOwnerID); err != nil {
		a.Log.Warn("capability registry sync failed", "error", err)
	}

	if runWorker && a.worker != nil {
		go func() {
			if err := a.worker.Start(ctx); err != nil {
				a.Log.Error("temporal worker stopped", "error", err)
			}
		}()
	}
}

func (a *App) Run(addr string) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Router.Run(addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.Clients.Close()
	if a.Log != nil {
		a.Log.Sync()
	}
}
