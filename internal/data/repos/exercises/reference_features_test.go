package exercises_test

import (
	"context"
	"testing"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/prosodia/prosodia-backend/internal/data/repos/exercises"
	"github.com/prosodia/prosodia-backend/internal/data/repos/testutil"
	types "github.com/prosodia/prosodia-backend/internal/domain"
	"github.com/prosodia/prosodia-backend/internal/platform/apierr"
)

func featureDoc(key string, energy float64) *types.ReferenceFeatures {
	return &types.ReferenceFeatures{
		ExerciseID: key,
		FeaturePayload: bson.M{
			"duration_seconds": 2.4,
			"mfcc_stats":       bson.M{"mean": []float64{1.2, -0.4}, "std": []float64{0.3, 0.2}},
			"energy_mean":      energy,
		},
	}
}

func TestFeatureCacheVersionMonotonicity(t *testing.T) {
	col := testutil.MongoCollection(t)
	ctx := context.Background()
	cache := exercises.NewFeatureCacheRepo(col, testutil.Logger(t))

	for want := int64(1); want <= 3; want++ {
		saved, err := cache.Save(ctx, featureDoc("fonema_r_1", float64(want)))
		if err != nil {
			t.Fatalf("save %d: %v", want, err)
		}
		if saved.CacheVersion != want {
			t.Fatalf("expected cache_version %d, got %d", want, saved.CacheVersion)
		}
		if saved.CachedAt.IsZero() {
			t.Fatalf("expected cached_at to be set")
		}
	}

	got, err := cache.Get(ctx, "fonema_r_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CacheVersion != 3 {
		t.Fatalf("expected persisted version 3, got %d", got.CacheVersion)
	}
	if got.FeaturePayload["energy_mean"] != 3.0 {
		t.Fatalf("expected latest payload to win, got %v", got.FeaturePayload["energy_mean"])
	}
}

func TestFeatureCacheMissIsNotNotFound(t *testing.T) {
	col := testutil.MongoCollection(t)
	ctx := context.Background()
	cache := exercises.NewFeatureCacheRepo(col, testutil.Logger(t))

	_, err := cache.Get(ctx, "fonema_r_404")
	if !apierr.IsCacheMiss(err) {
		t.Fatalf("expected cache miss, got %v", err)
	}
	if apierr.IsNotFound(err) {
		t.Fatalf("a miss must not read as not_found")
	}
}

func TestFeatureCacheInvalidate(t *testing.T) {
	col := testutil.MongoCollection(t)
	ctx := context.Background()
	cache := exercises.NewFeatureCacheRepo(col, testutil.Logger(t))

	if _, err := cache.Save(ctx, featureDoc("fonema_s_1", 1)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := cache.Save(ctx, featureDoc("fonema_s_1", 2)); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := cache.Invalidate(ctx, "fonema_s_1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := cache.Get(ctx, "fonema_s_1"); !apierr.IsCacheMiss(err) {
		t.Fatalf("expected miss after invalidate, got %v", err)
	}

	// Idempotent on an absent key.
	if err := cache.Invalidate(ctx, "fonema_s_1"); err != nil {
		t.Fatalf("repeat invalidate: %v", err)
	}

	// A fresh save after invalidation starts the version over.
	saved, err := cache.Save(ctx, featureDoc("fonema_s_1", 3))
	if err != nil {
		t.Fatalf("save after invalidate: %v", err)
	}
	if saved.CacheVersion != 1 {
		t.Fatalf("expected version restart at 1, got %d", saved.CacheVersion)
	}
}

func TestFeatureCacheExistsListCount(t *testing.T) {
	col := testutil.MongoCollection(t)
	ctx := context.Background()
	cache := exercises.NewFeatureCacheRepo(col, testutil.Logger(t))

	for _, key := range []string{"fonema_a_1", "fonema_a_2"} {
		if _, err := cache.Save(ctx, featureDoc(key, 1)); err != nil {
			t.Fatalf("save %s: %v", key, err)
		}
	}

	exists, err := cache.Exists(ctx, "fonema_a_1")
	if err != nil || !exists {
		t.Fatalf("expected exists=true, got %v err=%v", exists, err)
	}
	exists, err = cache.Exists(ctx, "fonema_a_3")
	if err != nil || exists {
		t.Fatalf("expected exists=false, got %v err=%v", exists, err)
	}

	all, err := cache.ListAll(ctx)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 docs, got %d", len(all))
	}

	total, err := cache.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected count 2, got %d", total)
	}
}

func TestFeatureCacheEnsureIndexesIsIdempotent(t *testing.T) {
	col := testutil.MongoCollection(t)
	ctx := context.Background()
	cache := exercises.NewFeatureCacheRepo(col, testutil.Logger(t))

	if err := cache.EnsureIndexes(ctx); err != nil {
		t.Fatalf("first ensure: %v", err)
	}
	if err := cache.EnsureIndexes(ctx); err != nil {
		t.Fatalf("second ensure: %v", err)
	}

	// The unique index rejects a second raw document for the same key.
	if _, err := cache.Save(ctx, featureDoc("fonema_u_1", 1)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := col.InsertOne(ctx, bson.M{"exercise_id": "fonema_u_1"}); err == nil {
		t.Fatalf("expected duplicate key error from unique index")
	}
}
