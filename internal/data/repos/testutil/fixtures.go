package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	types "github.com/prosodia/prosodia-backend/internal/domain"
)

// NewExercise builds a valid row without persisting it. The key must follow
// the category_subcategory_sequence convention.
func NewExercise(key string) *types.Exercise {
	return &types.Exercise{
		ExerciseID:        key,
		Category:          "fonema",
		Subcategory:       "r_simple",
		TextContent:       "El perro corre por el parque.",
		DifficultyLevel:   2,
		TargetPhonemes:    pq.StringArray{"r", "rr"},
		ReferenceAudioURL: fmt.Sprintf("https://cdn.example.com/audio/%s.wav", key),
		IsActive:          true,
	}
}

func SeedExercise(tb testing.TB, ctx context.Context, tx *gorm.DB, key string) *types.Exercise {
	tb.Helper()
	e := NewExercise(key)
	if err := tx.WithContext(ctx).Create(e).Error; err != nil {
		tb.Fatalf("seed exercise: %v", err)
	}
	return e
}

func PtrString(v string) *string { return &v }

func PtrTime(v time.Time) *time.Time { return &v }

func PtrFloat64(v float64) *float64 { return &v }
