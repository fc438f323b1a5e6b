package app

import (
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"

	"github.com/prosodia/prosodia-backend/internal/http/handlers"
	"github.com/prosodia/prosodia-backend/internal/platform/logger"
)

type Handlers struct {
	Exercise *handlers.ExerciseHandler
	Progress *handlers.ProgressHandler
	Health   *handlers.HealthHandler
}

func wireHandlers(log *logger.Logger, db *gorm.DB, mongoClient *mongo.Client, serviceset Services, reposet Repos) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Exercise: handlers.NewExerciseHandler(log, serviceset.Exercise, serviceset.Consistency, serviceset.Reconciler),
		Progress: handlers.NewProgressHandler(log, reposet.Progress),
		Health:   handlers.NewHealthHandler(db, mongoClient),
	}
}
