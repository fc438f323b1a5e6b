package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/prosodia/prosodia-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&types.Exercise{},
		&types.UserExerciseProgress{},
	)
}

func EnsureExerciseIndexes(db *gorm.DB) error {
	// uuid-ossp is already enabled in NewPostgresService, but safe to re-run
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		return fmt.Errorf("enable uuid-ossp: %w", err)
	}
	// Deterministic listing order: created_at asc, tie-broken by exercise_id.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_exercises_created_at_key
		ON exercises (created_at, exercise_id);
	`).Error; err != nil {
		return fmt.Errorf("create idx_exercises_created_at_key: %w", err)
	}
	// Grouped listing per category.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_exercises_category_grouped
		ON exercises (category, subcategory, difficulty_level, exercise_id)
		WHERE is_active = TRUE;
	`).Error; err != nil {
		return fmt.Errorf("create idx_exercises_category_grouped: %w", err)
	}
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_user_exercise_progress_user_status
		ON user_exercise_progress (user_id, status);
	`).Error; err != nil {
		return fmt.Errorf("create idx_user_exercise_progress_user_status: %w", err)
	}
	return nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	if err := EnsureExerciseIndexes(s.db); err != nil {
		s.log.Error("Exercise index migration failed", "error", err)
		return err
	}
	return nil
}
