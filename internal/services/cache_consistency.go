package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/prosodia/prosodia-backend/internal/clients/redis"
	"github.com/prosodia/prosodia-backend/internal/data/repos"
	types "github.com/prosodia/prosodia-backend/internal/domain"
	"github.com/prosodia/prosodia-backend/internal/platform/apierr"
	"github.com/prosodia/prosodia-backend/internal/platform/logger"
)

// ConsistencyService owns every write that touches both stores. The
// relational row is authoritative; cache documents are derived and safe to
// throw away, so a failed invalidation degrades to a staleness warning
// instead of failing the write.
type ConsistencyService interface {
	SaveExercise(ctx context.Context, tx *gorm.DB, row *types.Exercise) (*SaveResult, error)
	SoftDeleteExercise(ctx context.Context, tx *gorm.DB, key string) error
	SaveFeatures(ctx context.Context, features *types.ReferenceFeatures) (*types.ReferenceFeatures, error)
	InvalidateFeatures(ctx context.Context, key string, reason string) error
	RequestRecompute(ctx context.Context, key string) error
}

// SaveResult reports the persisted row plus whether a required cache
// invalidation could not be confirmed.
type SaveResult struct {
	Exercise            *types.Exercise `json:"exercise"`
	CacheInvalidated    bool            `json:"cache_invalidated"`
	StaleCacheSuspected bool            `json:"stale_cache_suspected"`
}

type consistencyService struct {
	db           *gorm.DB
	log          *logger.Logger
	exerciseRepo repos.ExerciseRepo
	featureCache repos.FeatureCacheRepo
	bus          redis.InvalidationBus
}

// NewConsistencyService accepts a nil bus; events are then skipped.
func NewConsistencyService(
	db *gorm.DB,
	baseLog *logger.Logger,
	exerciseRepo repos.ExerciseRepo,
	featureCache repos.FeatureCacheRepo,
	bus redis.InvalidationBus,
) ConsistencyService {
	return &consistencyService{
		db:           db,
		log:          baseLog.With("service", "ConsistencyService"),
		exerciseRepo: exerciseRepo,
		featureCache: featureCache,
		bus:          bus,
	}
}

// SaveExercise writes the authoritative row first, then invalidates the
// cached features only when the reference audio changed. Text or metadata
// edits leave the cache alone: features derive from audio, not text.
func (s *consistencyService) SaveExercise(ctx context.Context, tx *gorm.DB, row *types.Exercise) (*SaveResult, error) {
	transaction := tx
	if transaction == nil {
		transaction = s.db
	}

	prior, err := s.exerciseRepo.GetByKey(ctx, transaction, row.ExerciseID)
	if err != nil && !apierr.IsNotFound(err) && !apierr.IsInvalidArgument(err) {
		return nil, fmt.Errorf("load prior exercise: %w", err)
	}

	saved, err := s.exerciseRepo.Save(ctx, transaction, row)
	if err != nil {
		return nil, err
	}

	result := &SaveResult{Exercise: saved}
	if prior == nil || prior.ReferenceAudioURL == saved.ReferenceAudioURL {
		return result, nil
	}

	if err := s.featureCache.Invalidate(ctx, saved.ExerciseID); err != nil {
		s.log.Error("cache invalidation failed after audio change",
			"exercise_id", saved.ExerciseID, "error", err)
		result.StaleCacheSuspected = true
		return result, nil
	}
	result.CacheInvalidated = true
	s.publish(ctx, saved.ExerciseID, redis.ReasonAudioChanged)
	return result, nil
}

// SoftDeleteExercise does not touch the cache. The row stays readable by
// key, and a later reactivation reuses the cached features as-is.
func (s *consistencyService) SoftDeleteExercise(ctx context.Context, tx *gorm.DB, key string) error {
	transaction := tx
	if transaction == nil {
		transaction = s.db
	}
	return s.exerciseRepo.SoftDelete(ctx, transaction, key)
}

// SaveFeatures refuses to cache features for a key with no authoritative
// row, active or not.
func (s *consistencyService) SaveFeatures(ctx context.Context, features *types.ReferenceFeatures) (*types.ReferenceFeatures, error) {
	if features == nil {
		return nil, apierr.InvalidArgument(fmt.Errorf("features is nil"))
	}
	exists, err := s.exerciseRepo.Exists(ctx, nil, features.ExerciseID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apierr.NotFound(fmt.Errorf("exercise %q not found", features.ExerciseID))
	}
	return s.featureCache.Save(ctx, features)
}

func (s *consistencyService) InvalidateFeatures(ctx context.Context, key string, reason string) error {
	if reason == "" {
		reason = redis.ReasonManual
	}
	if err := s.featureCache.Invalidate(ctx, key); err != nil {
		return err
	}
	s.publish(ctx, key, reason)
	return nil
}

// RequestRecompute announces a cache miss so a feature-extraction worker
// picks the key up. Purely best-effort.
func (s *consistencyService) RequestRecompute(ctx context.Context, key string) error {
	if key == "" {
		return apierr.InvalidArgument(fmt.Errorf("exercise_id must not be empty"))
	}
	s.publish(ctx, key, redis.ReasonCacheMiss)
	return nil
}

func (s *consistencyService) publish(ctx context.Context, key, reason string) {
	if s.bus == nil {
		return
	}
	evt := redis.InvalidationEvent{ExerciseID: key, Reason: reason, At: time.Now().UTC()}
	if err := s.bus.Publish(ctx, evt); err != nil {
		s.log.Warn("invalidation event publish failed",
			"exercise_id", key, "reason", reason, "error", err)
	}
}
