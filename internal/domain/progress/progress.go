package progress

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	StatusLocked     = "locked"
	StatusUnlocked   = "unlocked"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusMastered   = "mastered"
)

// UserExerciseProgress tracks one user's standing on one exercise. One row
// per (user_id, exercise_id) pair, upserted as attempts come in.
type UserExerciseProgress struct {
	ID uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`

	UserID     uuid.UUID `gorm:"type:uuid;not null;index;index:idx_user_exercise_progress,unique,priority:1" json:"user_id"`
	ExerciseID string    `gorm:"type:varchar(128);not null;index:idx_user_exercise_progress,unique,priority:2" json:"exercise_id"`

	Status        string     `gorm:"type:varchar(32);not null;default:'locked';index" json:"status"`
	BestScore     *float64   `gorm:"type:double precision" json:"best_score,omitempty"`
	AttemptsCount int        `gorm:"not null;default:0" json:"attempts_count"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
	UnlockedAt    *time.Time `json:"unlocked_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`

	Metadata datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'" json:"metadata"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (UserExerciseProgress) TableName() string { return "user_exercise_progress" }

// IsAvailable reports whether the exercise can be attempted.
func (p *UserExerciseProgress) IsAvailable() bool {
	switch p.Status {
	case StatusUnlocked, StatusInProgress, StatusCompleted, StatusMastered:
		return true
	}
	return false
}

func (p *UserExerciseProgress) IsCompleted() bool {
	return p.Status == StatusCompleted || p.Status == StatusMastered
}
