package progress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/prosodia/prosodia-backend/internal/data/repos/storeerr"
	types "github.com/prosodia/prosodia-backend/internal/domain"
	"github.com/prosodia/prosodia-backend/internal/platform/apierr"
	"github.com/prosodia/prosodia-backend/internal/platform/logger"
)

type UserExerciseProgressRepo interface {
	GetByUserAndExercise(ctx context.Context, tx *gorm.DB, userID uuid.UUID, exerciseKey string) (*types.UserExerciseProgress, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.UserExerciseProgress, error)
	Upsert(ctx context.Context, tx *gorm.DB, row *types.UserExerciseProgress) (*types.UserExerciseProgress, error)
	RecordAttempt(ctx context.Context, tx *gorm.DB, userID uuid.UUID, exerciseKey string, score float64) (*types.UserExerciseProgress, error)
}

type userExerciseProgressRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserExerciseProgressRepo(db *gorm.DB, baseLog *logger.Logger) UserExerciseProgressRepo {
	return &userExerciseProgressRepo{db: db, log: baseLog.With("repo", "UserExerciseProgressRepo")}
}

func (r *userExerciseProgressRepo) GetByUserAndExercise(ctx context.Context, tx *gorm.DB, userID uuid.UUID, exerciseKey string) (*types.UserExerciseProgress, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if userID == uuid.Nil {
		return nil, apierr.InvalidArgument(fmt.Errorf("user_id must not be nil"))
	}
	if exerciseKey == "" {
		return nil, apierr.InvalidArgument(fmt.Errorf("exercise_id must not be empty"))
	}
	var out types.UserExerciseProgress
	if err := t.WithContext(ctx).
		Where("user_id = ? AND exercise_id = ?", userID, exerciseKey).
		First(&out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFound(fmt.Errorf("no progress for user %s on exercise %q", userID, exerciseKey))
		}
		return nil, storeerr.Wrap(err)
	}
	return &out, nil
}

func (r *userExerciseProgressRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.UserExerciseProgress, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if userID == uuid.Nil {
		return nil, apierr.InvalidArgument(fmt.Errorf("user_id must not be nil"))
	}
	var rows []*types.UserExerciseProgress
	if err := t.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("exercise_id ASC").
		Find(&rows).Error; err != nil {
		return nil, storeerr.Wrap(err)
	}
	return rows, nil
}

var progressMutableColumns = []string{
	"status",
	"best_score",
	"attempts_count",
	"last_attempt_at",
	"unlocked_at",
	"completed_at",
	"metadata",
	"updated_at",
}

func (r *userExerciseProgressRepo) Upsert(ctx context.Context, tx *gorm.DB, row *types.UserExerciseProgress) (*types.UserExerciseProgress, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if row.UserID == uuid.Nil {
		return nil, apierr.InvalidArgument(fmt.Errorf("user_id must not be nil"))
	}
	if row.ExerciseID == "" {
		return nil, apierr.InvalidArgument(fmt.Errorf("exercise_id must not be empty"))
	}
	row.UpdatedAt = time.Now().UTC()
	if err := t.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "exercise_id"}},
			DoUpdates: clause.AssignmentColumns(progressMutableColumns),
		}).
		Create(row).Error; err != nil {
		return nil, storeerr.Wrap(err)
	}
	return r.GetByUserAndExercise(ctx, tx, row.UserID, row.ExerciseID)
}

// RecordAttempt folds one scored attempt into the row: bumps the attempt
// counter, keeps the best score, and promotes status when the score clears
// the completion threshold.
func (r *userExerciseProgressRepo) RecordAttempt(ctx context.Context, tx *gorm.DB, userID uuid.UUID, exerciseKey string, score float64) (*types.UserExerciseProgress, error) {
	now := time.Now().UTC()
	row, err := r.GetByUserAndExercise(ctx, tx, userID, exerciseKey)
	if apierr.IsNotFound(err) {
		row = &types.UserExerciseProgress{
			UserID:     userID,
			ExerciseID: exerciseKey,
			Status:     types.ProgressInProgress,
			UnlockedAt: &now,
		}
		err = nil
	}
	if err != nil {
		return nil, err
	}

	row.AttemptsCount++
	row.LastAttemptAt = &now
	if row.BestScore == nil || score > *row.BestScore {
		row.BestScore = &score
	}
	if score >= completionScore && !isCompletedStatus(row.Status) {
		row.Status = types.ProgressCompleted
		row.CompletedAt = &now
	} else if row.Status == types.ProgressLocked || row.Status == types.ProgressUnlocked {
		row.Status = types.ProgressInProgress
	}
	return r.Upsert(ctx, tx, row)
}

const completionScore = 80.0

func isCompletedStatus(status string) bool {
	return status == types.ProgressCompleted || status == types.ProgressMastered
}
