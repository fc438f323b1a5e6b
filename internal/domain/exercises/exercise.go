package exercises

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/prosodia/prosodia-backend/internal/platform/apierr"
)

const (
	MinDifficulty = 1
	MaxDifficulty = 5

	MaxTextContentLen = 500
)

// Exercise is the authoritative row for a pronunciation exercise. The
// internal UUID and created_at are assigned at creation and never change;
// exercise_id is the human-meaningful key used for all external lookups.
type Exercise struct {
	ID uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`

	ExerciseID string `gorm:"type:varchar(128);not null;uniqueIndex:idx_exercises_exercise_id" json:"exercise_id"`

	Category    string `gorm:"type:varchar(64);not null;index" json:"category"`
	Subcategory string `gorm:"type:varchar(64);not null;index" json:"subcategory"`

	TextContent     string `gorm:"type:text;not null" json:"text_content"`
	DifficultyLevel int    `gorm:"not null;index" json:"difficulty_level"`

	TargetPhonemes    pq.StringArray `gorm:"type:text[];not null;default:'{}'" json:"target_phonemes"`
	ReferenceAudioURL string         `gorm:"type:text;not null" json:"reference_audio_url"`

	Instructions *string `gorm:"type:text" json:"instructions,omitempty"`
	Tips         *string `gorm:"type:text" json:"tips,omitempty"`

	IsActive  bool      `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
}

func (Exercise) TableName() string { return "exercises" }

// Validate enforces the domain invariants before any store access.
func (e *Exercise) Validate() error {
	if e == nil {
		return apierr.InvalidArgument(fmt.Errorf("exercise is nil"))
	}
	if err := ValidateKey(e.ExerciseID); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return apierr.InvalidArgument(fmt.Errorf("category must not be empty"))
	}
	if strings.TrimSpace(e.Subcategory) == "" {
		return apierr.InvalidArgument(fmt.Errorf("subcategory must not be empty"))
	}
	if strings.TrimSpace(e.TextContent) == "" {
		return apierr.InvalidArgument(fmt.Errorf("text_content must not be empty"))
	}
	if len(e.TextContent) > MaxTextContentLen {
		return apierr.InvalidArgument(fmt.Errorf("text_content exceeds %d characters", MaxTextContentLen))
	}
	if e.DifficultyLevel < MinDifficulty || e.DifficultyLevel > MaxDifficulty {
		return apierr.InvalidArgument(fmt.Errorf("difficulty_level %d out of range [%d,%d]", e.DifficultyLevel, MinDifficulty, MaxDifficulty))
	}
	if !strings.HasPrefix(e.ReferenceAudioURL, "http://") && !strings.HasPrefix(e.ReferenceAudioURL, "https://") {
		return apierr.InvalidArgument(fmt.Errorf("reference_audio_url must be an http(s) URL"))
	}
	return nil
}

// ValidateKey checks the exercise_id shape: category_subcategory_n, at least
// three underscore-separated parts.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return apierr.InvalidArgument(fmt.Errorf("exercise_id must not be empty"))
	}
	if len(strings.Split(key, "_")) < 3 {
		return apierr.InvalidArgument(fmt.Errorf("exercise_id %q must follow category_subcategory_number", key))
	}
	return nil
}

// Summary is the grouped-listing projection: everything except the optional
// long free-text columns.
type Summary struct {
	ID                uuid.UUID      `json:"id"`
	ExerciseID        string         `json:"exercise_id"`
	Category          string         `json:"category"`
	Subcategory       string         `json:"subcategory"`
	TextContent       string         `json:"text_content"`
	DifficultyLevel   int            `json:"difficulty_level"`
	TargetPhonemes    pq.StringArray `gorm:"type:text[]" json:"target_phonemes"`
	ReferenceAudioURL string         `json:"reference_audio_url"`
	IsActive          bool           `json:"is_active"`
	CreatedAt         time.Time      `json:"created_at"`
}

func (e *Exercise) Summary() *Summary {
	return &Summary{
		ID:                e.ID,
		ExerciseID:        e.ExerciseID,
		Category:          e.Category,
		Subcategory:       e.Subcategory,
		TextContent:       e.TextContent,
		DifficultyLevel:   e.DifficultyLevel,
		TargetPhonemes:    e.TargetPhonemes,
		ReferenceAudioURL: e.ReferenceAudioURL,
		IsActive:          e.IsActive,
		CreatedAt:         e.CreatedAt,
	}
}
