package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/prosodia/prosodia-backend/internal/clients/redis"
	"github.com/prosodia/prosodia-backend/internal/data/db"
	"github.com/prosodia/prosodia-backend/internal/observability"
	"github.com/prosodia/prosodia-backend/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Router   *gin.Engine
	Cfg      Config
	Repos    Repos
	Services Services

	pg           *db.PostgresService
	mongo        *db.MongoService
	bus          redis.InvalidationBus
	otelShutdown func(context.Context) error
}

func New(ctx context.Context) (*App, error) {
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

	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "prosodia-backend",
		Environment: cfg.Environment,
		Version:     cfg.Version,
	})

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

	mongoSvc, err := db.NewMongoService(log)
	if err != nil {
		pg.Close()
		log.Sync()
		return nil, fmt.Errorf("init mongo: %w", err)
	}

	// Invalidation events are best-effort; boot without Redis if it is down.
	bus, err := redis.NewInvalidationBus(log)
	if err != nil {
		log.Warn("invalidation bus unavailable, events disabled", "error", err)
		bus = nil
	}
	if bus != nil {
		// Mirror our own invalidation traffic into the logs so operators can
		// correlate stale-cache reports with the events workers received.
		err := bus.StartForwarder(ctx, func(evt redis.InvalidationEvent) {
			log.Info("invalidation event observed",
				"exercise_id", evt.ExerciseID,
				"reason", evt.Reason,
				"at", evt.At,
			)
		})
		if err != nil {
			log.Warn("invalidation forwarder start failed", "error", err)
		}
	}

	reposet := wireRepos(theDB, mongoSvc.Collection(featureCollection), log)
	if err := reposet.FeatureCache.EnsureIndexes(ctx); err != nil {
		log.Sync()
		return nil, fmt.Errorf("ensure cache indexes: %w", err)
	}
	if n, err := reposet.FeatureCache.Count(ctx); err == nil {
		log.Info("feature cache ready", "documents", n)
	}

	serviceset := wireServices(theDB, log, reposet, bus)
	handlerset := wireHandlers(log, theDB, mongoSvc.Client(), serviceset, reposet)
	middlewareset := wireMiddleware(log, cfg)
	router := wireRouter(log, handlerset, middlewareset)

	return &App{
		Log:          log,
		DB:           theDB,
		Router:       router,
		Cfg:          cfg,
		Repos:        reposet,
		Services:     serviceset,
		pg:           pg,
		mongo:        mongoSvc,
		bus:          bus,
		otelShutdown: otelShutdown,
	}, nil
}

// Close releases both connection pools and flushes logs.
func (a *App) Close() {
	if a == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if a.bus != nil {
		if err := a.bus.Close(); err != nil {
			a.Log.Warn("invalidation bus close failed", "error", err)
		}
	}
	if a.mongo != nil {
		a.mongo.Close(ctx)
	}
	if a.pg != nil {
		a.pg.Close()
	}
	if a.otelShutdown != nil {
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
