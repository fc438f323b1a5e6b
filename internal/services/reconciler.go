package services

import (
	"context"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/prosodia/prosodia-backend/internal/clients/redis"
	"github.com/prosodia/prosodia-backend/internal/data/repos"
	types "github.com/prosodia/prosodia-backend/internal/domain"
	"github.com/prosodia/prosodia-backend/internal/platform/logger"
)

// ReconcileReport summarizes one sweep over the cache.
type ReconcileReport struct {
	CacheDocs   int      `json:"cache_docs"`
	Exercises   int      `json:"exercises"`
	Orphans     []string `json:"orphans"`
	Invalidated int      `json:"invalidated"`
	Failures    int      `json:"failures"`
}

type ReconcilerService interface {
	Sweep(ctx context.Context) (*ReconcileReport, error)
}

type reconcilerService struct {
	db           *gorm.DB
	log          *logger.Logger
	exerciseRepo repos.ExerciseRepo
	featureCache repos.FeatureCacheRepo
	bus          redis.InvalidationBus
}

func NewReconcilerService(
	db *gorm.DB,
	baseLog *logger.Logger,
	exerciseRepo repos.ExerciseRepo,
	featureCache repos.FeatureCacheRepo,
	bus redis.InvalidationBus,
) ReconcilerService {
	return &reconcilerService{
		db:           db,
		log:          baseLog.With("service", "ReconcilerService"),
		exerciseRepo: exerciseRepo,
		featureCache: featureCache,
		bus:          bus,
	}
}

// Sweep drops cache documents whose exercise row no longer exists. Rows
// without cached features are left alone; workers fill those in lazily on
// the next miss.
func (s *reconcilerService) Sweep(ctx context.Context) (*ReconcileReport, error) {
	var (
		docs []*types.ReferenceFeatures
		keys []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		docs, err = s.featureCache.ListAll(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		keys, err = s.exerciseRepo.ListKeys(gctx, nil, false)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(keys))
	for _, key := range keys {
		known[key] = true
	}

	report := &ReconcileReport{CacheDocs: len(docs), Exercises: len(keys)}
	for _, doc := range docs {
		if known[doc.ExerciseID] {
			continue
		}
		report.Orphans = append(report.Orphans, doc.ExerciseID)
		if err := s.featureCache.Invalidate(ctx, doc.ExerciseID); err != nil {
			s.log.Error("orphan invalidation failed", "exercise_id", doc.ExerciseID, "error", err)
			report.Failures++
			continue
		}
		report.Invalidated++
		if s.bus != nil {
			evt := redis.InvalidationEvent{ExerciseID: doc.ExerciseID, Reason: redis.ReasonOrphaned}
			if err := s.bus.Publish(ctx, evt); err != nil {
				s.log.Warn("orphan event publish failed", "exercise_id", doc.ExerciseID, "error", err)
			}
		}
	}
	s.log.Info("cache reconciliation finished",
		"cache_docs", report.CacheDocs,
		"orphans", len(report.Orphans),
		"invalidated", report.Invalidated,
		"failures", report.Failures)
	return report, nil
}
