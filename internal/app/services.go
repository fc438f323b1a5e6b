package app

import (
	"gorm.io/gorm"

	"github.com/prosodia/prosodia-backend/internal/clients/redis"
	"github.com/prosodia/prosodia-backend/internal/platform/logger"
	"github.com/prosodia/prosodia-backend/internal/services"
)

type Services struct {
	Exercise    services.ExerciseService
	Consistency services.ConsistencyService
	Reconciler  services.ReconcilerService
}

func wireServices(db *gorm.DB, log *logger.Logger, reposet Repos, bus redis.InvalidationBus) Services {
	log.Info("Wiring services...")
	return Services{
		Exercise:    services.NewExerciseService(db, log, reposet.Exercise, reposet.FeatureCache),
		Consistency: services.NewConsistencyService(db, log, reposet.Exercise, reposet.FeatureCache, bus),
		Reconciler:  services.NewReconcilerService(db, log, reposet.Exercise, reposet.FeatureCache, bus),
	}
}
