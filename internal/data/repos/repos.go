package repos

import (
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"

	"github.com/prosodia/prosodia-backend/internal/data/repos/exercises"
	"github.com/prosodia/prosodia-backend/internal/data/repos/progress"
	"github.com/prosodia/prosodia-backend/internal/platform/logger"
)

type ExerciseRepo = exercises.ExerciseRepo
type FeatureCacheRepo = exercises.FeatureCacheRepo
type UserExerciseProgressRepo = progress.UserExerciseProgressRepo

func NewExerciseRepo(db *gorm.DB, baseLog *logger.Logger) ExerciseRepo {
	return exercises.NewExerciseRepo(db, baseLog)
}

func NewFeatureCacheRepo(col *mongo.Collection, baseLog *logger.Logger) FeatureCacheRepo {
	return exercises.NewFeatureCacheRepo(col, baseLog)
}

func NewUserExerciseProgressRepo(db *gorm.DB, baseLog *logger.Logger) UserExerciseProgressRepo {
	return progress.NewUserExerciseProgressRepo(db, baseLog)
}
