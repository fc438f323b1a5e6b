package services_test

import (
	"context"
	"testing"

	"github.com/prosodia/prosodia-backend/internal/data/repos/exercises"
	"github.com/prosodia/prosodia-backend/internal/data/repos/testutil"
	"github.com/prosodia/prosodia-backend/internal/platform/apierr"
	"github.com/prosodia/prosodia-backend/internal/services"
)

func TestReconcilerDropsOrphans(t *testing.T) {
	repo := exercises.NewMemoryExerciseRepo()
	cache := exercises.NewMemoryFeatureCache()
	ctx := context.Background()

	if _, err := repo.Save(ctx, nil, testutil.NewExercise("fonema_r_1")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := cache.Save(ctx, refFeatures("fonema_r_1")); err != nil {
		t.Fatalf("cache live: %v", err)
	}
	// Orphan: cached features with no backing row.
	if _, err := cache.Save(ctx, refFeatures("fonema_gone_9")); err != nil {
		t.Fatalf("cache orphan: %v", err)
	}

	svc := services.NewReconcilerService(nil, testutil.Logger(t), repo, cache, nil)
	report, err := svc.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}

	if report.CacheDocs != 2 || report.Exercises != 1 {
		t.Fatalf("unexpected counts: %+v", report)
	}
	if len(report.Orphans) != 1 || report.Orphans[0] != "fonema_gone_9" {
		t.Fatalf("unexpected orphans: %v", report.Orphans)
	}
	if report.Invalidated != 1 || report.Failures != 0 {
		t.Fatalf("unexpected outcome: %+v", report)
	}

	if _, err := cache.Get(ctx, "fonema_gone_9"); !apierr.IsCacheMiss(err) {
		t.Fatalf("orphan should be gone, got %v", err)
	}
	if _, err := cache.Get(ctx, "fonema_r_1"); err != nil {
		t.Fatalf("live doc should survive: %v", err)
	}
}

func TestReconcilerKeepsDocsForInactiveRows(t *testing.T) {
	repo := exercises.NewMemoryExerciseRepo()
	cache := exercises.NewMemoryFeatureCache()
	ctx := context.Background()

	if _, err := repo.Save(ctx, nil, testutil.NewExercise("fonema_i_1")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := cache.Save(ctx, refFeatures("fonema_i_1")); err != nil {
		t.Fatalf("cache: %v", err)
	}
	if err := repo.SoftDelete(ctx, nil, "fonema_i_1"); err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	svc := services.NewReconcilerService(nil, testutil.Logger(t), repo, cache, nil)
	report, err := svc.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(report.Orphans) != 0 {
		t.Fatalf("soft-deleted rows still own their cache docs: %+v", report)
	}
}
