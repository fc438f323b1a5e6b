package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/prosodia/prosodia-backend/internal/data/repos"
	types "github.com/prosodia/prosodia-backend/internal/domain"
	"github.com/prosodia/prosodia-backend/internal/platform/apierr"
	"github.com/prosodia/prosodia-backend/internal/platform/logger"
)

// ExerciseService is the read side: every lookup the clients and the
// scoring pipeline need, composed from both stores.
type ExerciseService interface {
	List(ctx context.Context, tx *gorm.DB, f types.ExerciseFilter, p types.Page) (*ExercisePage, error)
	GetByKey(ctx context.Context, tx *gorm.DB, key string) (*types.Exercise, error)
	GetDetails(ctx context.Context, tx *gorm.DB, key string) (*ExerciseDetails, error)
	GetReferenceFeatures(ctx context.Context, tx *gorm.DB, key string) (*types.ReferenceFeatures, error)
	GetComparisonFeatures(ctx context.Context, tx *gorm.DB, key string) (map[string]any, error)
	ListGrouped(ctx context.Context, tx *gorm.DB, category string) (map[string][]*types.ExerciseSummary, error)
	Statistics(ctx context.Context, tx *gorm.DB) (*Statistics, error)
}

// ExercisePage is one listing page with per-row cache status.
type ExercisePage struct {
	Items  []*ExerciseListItem `json:"items"`
	Total  int64               `json:"total"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
}

type ExerciseListItem struct {
	*types.Exercise
	HasReferenceFeatures bool `json:"has_reference_features"`
}

type ExerciseDetails struct {
	Exercise      *types.Exercise `json:"exercise"`
	CacheVersion  *int64          `json:"cache_version,omitempty"`
	CachedAt      *time.Time      `json:"cached_at,omitempty"`
	FeaturesReady bool            `json:"features_ready"`
}

type Statistics struct {
	TotalActive    int64            `json:"total_active"`
	ByCategory     map[string]int64 `json:"by_category"`
	CachedFeatures int64            `json:"cached_features"`
	CacheCoverage  float64          `json:"cache_coverage"`
}

// comparisonFields is the payload subset the pronunciation scorer compares
// user audio against. Raw frame data stays out of the response.
var comparisonFields = []string{
	"mfcc_stats",
	"normalization_params",
	"thresholds",
	"duration_seconds",
}

type exerciseService struct {
	db           *gorm.DB
	log          *logger.Logger
	exerciseRepo repos.ExerciseRepo
	featureCache repos.FeatureCacheRepo
}

func NewExerciseService(
	db *gorm.DB,
	baseLog *logger.Logger,
	exerciseRepo repos.ExerciseRepo,
	featureCache repos.FeatureCacheRepo,
) ExerciseService {
	return &exerciseService{
		db:           db,
		log:          baseLog.With("service", "ExerciseService"),
		exerciseRepo: exerciseRepo,
		featureCache: featureCache,
	}
}

func (s *exerciseService) List(ctx context.Context, tx *gorm.DB, f types.ExerciseFilter, p types.Page) (*ExercisePage, error) {
	rows, total, err := s.exerciseRepo.List(ctx, tx, f, p)
	if err != nil {
		return nil, err
	}
	items := make([]*ExerciseListItem, 0, len(rows))
	for _, row := range rows {
		has, err := s.featureCache.Exists(ctx, row.ExerciseID)
		if err != nil {
			// Cache status is cosmetic on listings; degrade to false.
			s.log.Warn("cache exists check failed", "exercise_id", row.ExerciseID, "error", err)
			has = false
		}
		items = append(items, &ExerciseListItem{Exercise: row, HasReferenceFeatures: has})
	}
	return &ExercisePage{Items: items, Total: total, Limit: p.Limit, Offset: p.Offset}, nil
}

func (s *exerciseService) GetByKey(ctx context.Context, tx *gorm.DB, key string) (*types.Exercise, error) {
	return s.exerciseRepo.GetByKey(ctx, tx, key)
}

func (s *exerciseService) GetDetails(ctx context.Context, tx *gorm.DB, key string) (*ExerciseDetails, error) {
	row, err := s.exerciseRepo.GetByKey(ctx, tx, key)
	if err != nil {
		return nil, err
	}
	out := &ExerciseDetails{Exercise: row}
	cached, err := s.featureCache.Get(ctx, key)
	if apierr.IsCacheMiss(err) {
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	out.CacheVersion = &cached.CacheVersion
	out.CachedAt = &cached.CachedAt
	out.FeaturesReady = true
	return out, nil
}

// GetReferenceFeatures distinguishes "no such exercise" from "features not
// computed yet": the first is NotFound, the second surfaces the cache miss.
func (s *exerciseService) GetReferenceFeatures(ctx context.Context, tx *gorm.DB, key string) (*types.ReferenceFeatures, error) {
	if _, err := s.exerciseRepo.GetByKey(ctx, tx, key); err != nil {
		return nil, err
	}
	return s.featureCache.Get(ctx, key)
}

func (s *exerciseService) GetComparisonFeatures(ctx context.Context, tx *gorm.DB, key string) (map[string]any, error) {
	cached, err := s.GetReferenceFeatures(ctx, tx, key)
	if err != nil {
		return nil, err
	}
	out := map[string]any{
		"exercise_id":   cached.ExerciseID,
		"cache_version": cached.CacheVersion,
	}
	for _, field := range comparisonFields {
		if v, ok := cached.FeaturePayload[field]; ok {
			out[field] = v
		}
	}
	return out, nil
}

func (s *exerciseService) ListGrouped(ctx context.Context, tx *gorm.DB, category string) (map[string][]*types.ExerciseSummary, error) {
	return s.exerciseRepo.ListByCategoryGrouped(ctx, tx, category)
}

func (s *exerciseService) Statistics(ctx context.Context, tx *gorm.DB) (*Statistics, error) {
	byCategory, err := s.exerciseRepo.CategoryCounts(ctx, tx)
	if err != nil {
		return nil, err
	}
	var totalActive int64
	for _, n := range byCategory {
		totalActive += n
	}
	docs, err := s.featureCache.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cached features: %w", err)
	}
	activeKeys, err := s.exerciseRepo.ListKeys(ctx, tx, true)
	if err != nil {
		return nil, err
	}
	active := make(map[string]struct{}, len(activeKeys))
	for _, key := range activeKeys {
		active[key] = struct{}{}
	}
	// Soft-deleted rows keep their cache documents, so coverage only counts
	// docs backed by an active row. That keeps the ratio in [0, 1].
	var activeCached int64
	for _, doc := range docs {
		if _, ok := active[doc.ExerciseID]; ok {
			activeCached++
		}
	}
	out := &Statistics{
		TotalActive:    totalActive,
		ByCategory:     byCategory,
		CachedFeatures: int64(len(docs)),
	}
	if totalActive > 0 {
		out.CacheCoverage = float64(activeCached) / float64(totalActive)
	}
	return out, nil
}
