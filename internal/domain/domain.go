package domain

import (
	"github.com/prosodia/prosodia-backend/internal/domain/exercises"
	"github.com/prosodia/prosodia-backend/internal/domain/progress"
)

type Exercise = exercises.Exercise
type ExerciseSummary = exercises.Summary
type ExerciseFilter = exercises.Filter
type Page = exercises.Page
type ReferenceFeatures = exercises.ReferenceFeatures

type UserExerciseProgress = progress.UserExerciseProgress

const (
	MinDifficulty = exercises.MinDifficulty
	MaxDifficulty = exercises.MaxDifficulty
	MaxListLimit  = exercises.MaxListLimit

	ProgressLocked     = progress.StatusLocked
	ProgressUnlocked   = progress.StatusUnlocked
	ProgressInProgress = progress.StatusInProgress
	ProgressCompleted  = progress.StatusCompleted
	ProgressMastered   = progress.StatusMastered
)
