package app

import (
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"

	"github.com/prosodia/prosodia-backend/internal/data/repos"
	"github.com/prosodia/prosodia-backend/internal/platform/logger"
)

// featureCollection is the Mongo collection holding cached reference features.
const featureCollection = "reference_features"

type Repos struct {
	Exercise     repos.ExerciseRepo
	FeatureCache repos.FeatureCacheRepo
	Progress     repos.UserExerciseProgressRepo
}

func wireRepos(db *gorm.DB, featureCol *mongo.Collection, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Exercise:     repos.NewExerciseRepo(db, log),
		FeatureCache: repos.NewFeatureCacheRepo(featureCol, log),
		Progress:     repos.NewUserExerciseProgressRepo(db, log),
	}
}
