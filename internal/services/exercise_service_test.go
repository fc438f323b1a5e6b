package services_test

import (
	"context"
	"testing"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/prosodia/prosodia-backend/internal/data/repos/exercises"
	"github.com/prosodia/prosodia-backend/internal/data/repos/testutil"
	types "github.com/prosodia/prosodia-backend/internal/domain"
	"github.com/prosodia/prosodia-backend/internal/platform/apierr"
	"github.com/prosodia/prosodia-backend/internal/services"
)

func newExerciseFixture(t *testing.T) (services.ExerciseService, exercises.ExerciseRepo, exercises.FeatureCacheRepo) {
	t.Helper()
	repo := exercises.NewMemoryExerciseRepo()
	cache := exercises.NewMemoryFeatureCache()
	return services.NewExerciseService(nil, testutil.Logger(t), repo, cache), repo, cache
}

func TestListReportsCacheStatus(t *testing.T) {
	svc, repo, cache := newExerciseFixture(t)
	ctx := context.Background()

	for _, key := range []string{"fonema_r_1", "fonema_r_2"} {
		if _, err := repo.Save(ctx, nil, testutil.NewExercise(key)); err != nil {
			t.Fatalf("save %s: %v", key, err)
		}
	}
	if _, err := cache.Save(ctx, refFeatures("fonema_r_1")); err != nil {
		t.Fatalf("cache: %v", err)
	}

	page, err := svc.List(ctx, nil, types.ExerciseFilter{}, types.Page{Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 2 || len(page.Items) != 2 {
		t.Fatalf("unexpected page: total=%d items=%d", page.Total, len(page.Items))
	}
	status := map[string]bool{}
	for _, item := range page.Items {
		status[item.ExerciseID] = item.HasReferenceFeatures
	}
	if !status["fonema_r_1"] || status["fonema_r_2"] {
		t.Fatalf("wrong cache status: %v", status)
	}
}

func TestGetDetailsWithAndWithoutCache(t *testing.T) {
	svc, repo, cache := newExerciseFixture(t)
	ctx := context.Background()

	if _, err := repo.Save(ctx, nil, testutil.NewExercise("fonema_d_1")); err != nil {
		t.Fatalf("save: %v", err)
	}

	details, err := svc.GetDetails(ctx, nil, "fonema_d_1")
	if err != nil {
		t.Fatalf("details without cache: %v", err)
	}
	if details.FeaturesReady || details.CacheVersion != nil {
		t.Fatalf("expected no cache info yet: %+v", details)
	}

	if _, err := cache.Save(ctx, refFeatures("fonema_d_1")); err != nil {
		t.Fatalf("cache: %v", err)
	}
	details, err = svc.GetDetails(ctx, nil, "fonema_d_1")
	if err != nil {
		t.Fatalf("details with cache: %v", err)
	}
	if !details.FeaturesReady || details.CacheVersion == nil || *details.CacheVersion != 1 {
		t.Fatalf("expected cache version 1: %+v", details)
	}

	if _, err := svc.GetDetails(ctx, nil, "fonema_d_404"); !apierr.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGetReferenceFeaturesDistinguishesMissFromAbsence(t *testing.T) {
	svc, repo, _ := newExerciseFixture(t)
	ctx := context.Background()

	if _, err := repo.Save(ctx, nil, testutil.NewExercise("fonema_m_1")); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Known exercise, empty cache: a miss the caller can recover from.
	_, err := svc.GetReferenceFeatures(ctx, nil, "fonema_m_1")
	if !apierr.IsCacheMiss(err) {
		t.Fatalf("expected cache miss, got %v", err)
	}

	// Unknown exercise: hard not-found, no recompute makes sense.
	_, err = svc.GetReferenceFeatures(ctx, nil, "fonema_m_404")
	if !apierr.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGetComparisonFeaturesFiltersPayload(t *testing.T) {
	svc, repo, cache := newExerciseFixture(t)
	ctx := context.Background()

	if _, err := repo.Save(ctx, nil, testutil.NewExercise("fonema_c_1")); err != nil {
		t.Fatalf("save: %v", err)
	}
	doc := &types.ReferenceFeatures{
		ExerciseID: "fonema_c_1",
		FeaturePayload: bson.M{
			"mfcc_stats":       bson.M{"mean": []float64{0.2}},
			"duration_seconds": 2.1,
			"raw_frames":       []float64{1, 2, 3},
		},
	}
	if _, err := cache.Save(ctx, doc); err != nil {
		t.Fatalf("cache: %v", err)
	}

	out, err := svc.GetComparisonFeatures(ctx, nil, "fonema_c_1")
	if err != nil {
		t.Fatalf("comparison: %v", err)
	}
	if _, ok := out["raw_frames"]; ok {
		t.Fatalf("raw frames leaked into comparison payload")
	}
	if _, ok := out["mfcc_stats"]; !ok {
		t.Fatalf("mfcc_stats missing: %v", out)
	}
	if out["cache_version"] != int64(1) {
		t.Fatalf("expected cache_version 1, got %v", out["cache_version"])
	}
}

func TestStatistics(t *testing.T) {
	svc, repo, cache := newExerciseFixture(t)
	ctx := context.Background()

	for _, key := range []string{"fonema_s_1", "fonema_s_2"} {
		if _, err := repo.Save(ctx, nil, testutil.NewExercise(key)); err != nil {
			t.Fatalf("save %s: %v", key, err)
		}
	}
	ritmo := testutil.NewExercise("ritmo_base_1")
	ritmo.Category = "ritmo"
	ritmo.Subcategory = "base"
	if _, err := repo.Save(ctx, nil, ritmo); err != nil {
		t.Fatalf("save ritmo: %v", err)
	}
	if _, err := cache.Save(ctx, refFeatures("fonema_s_1")); err != nil {
		t.Fatalf("cache: %v", err)
	}

	// A soft-deleted exercise keeps its cache doc. It still counts as a
	// cached feature set but must not inflate coverage past the active rows.
	if _, err := repo.Save(ctx, nil, testutil.NewExercise("fonema_s_old")); err != nil {
		t.Fatalf("save retired: %v", err)
	}
	if _, err := cache.Save(ctx, refFeatures("fonema_s_old")); err != nil {
		t.Fatalf("cache retired: %v", err)
	}
	if err := repo.SoftDelete(ctx, nil, "fonema_s_old"); err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	stats, err := svc.Statistics(ctx, nil)
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.TotalActive != 3 || stats.ByCategory["fonema"] != 2 || stats.ByCategory["ritmo"] != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.CachedFeatures != 2 {
		t.Fatalf("expected 2 cached docs, got %d", stats.CachedFeatures)
	}
	// Only fonema_s_1 is both cached and active: coverage is 1/3.
	if stats.CacheCoverage <= 0.3 || stats.CacheCoverage >= 0.4 {
		t.Fatalf("unexpected coverage: %f", stats.CacheCoverage)
	}
}
