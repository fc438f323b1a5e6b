package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/prosodia/prosodia-backend/internal/data/repos/exercises"
	"github.com/prosodia/prosodia-backend/internal/data/repos/testutil"
	types "github.com/prosodia/prosodia-backend/internal/domain"
	"github.com/prosodia/prosodia-backend/internal/services"
)

func newTestRouter(t *testing.T) (*gin.Engine, exercises.ExerciseRepo, exercises.FeatureCacheRepo) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := testutil.Logger(t)
	repo := exercises.NewMemoryExerciseRepo()
	cache := exercises.NewMemoryFeatureCache()
	exerciseSvc := services.NewExerciseService(nil, log, repo, cache)
	consistencySvc := services.NewConsistencyService(nil, log, repo, cache, nil)
	reconcilerSvc := services.NewReconcilerService(nil, log, repo, cache, nil)
	h := NewExerciseHandler(log, exerciseSvc, consistencySvc, reconcilerSvc)

	router := gin.New()
	router.GET("/api/v1/exercises", h.List)
	router.GET("/api/v1/exercises/:exercise_id", h.Get)
	router.GET("/api/v1/exercises/:exercise_id/features", h.GetFeatures)
	return router, repo, cache
}

func doRequest(t *testing.T, router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestListQueryParsing(t *testing.T) {
	router, repo, _ := newTestRouter(t)
	ctx := context.Background()
	if _, err := repo.Save(ctx, nil, testutil.NewExercise("fonema_r_1")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec := doRequest(t, router, http.MethodGet, "/api/v1/exercises")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var page struct {
		Total int64 `json:"total"`
		Limit int   `json:"limit"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Total != 1 || page.Limit != defaultListLimit {
		t.Fatalf("unexpected page: %+v", page)
	}

	for _, path := range []string{
		"/api/v1/exercises?limit=abc",
		"/api/v1/exercises?min_difficulty=high",
		"/api/v1/exercises?include_inactive=maybe",
		"/api/v1/exercises?offset=-2",
		"/api/v1/exercises?subcategory=r_simple",
	} {
		rec := doRequest(t, router, http.MethodGet, path)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("%s: expected 422, got %d", path, rec.Code)
		}
	}
}

func TestGetFeaturesTriggersRecomputeOnMiss(t *testing.T) {
	router, repo, cache := newTestRouter(t)
	ctx := context.Background()
	if _, err := repo.Save(ctx, nil, testutil.NewExercise("fonema_r_1")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Known exercise, cold cache: accepted for recompute.
	rec := doRequest(t, router, http.MethodGet, "/api/v1/exercises/fonema_r_1/features")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202 on miss, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "recompute_triggered" || body["exercise_id"] != "fonema_r_1" {
		t.Fatalf("unexpected body: %v", body)
	}

	// Unknown exercise: a plain 404, never a recompute.
	rec = doRequest(t, router, http.MethodGet, "/api/v1/exercises/fonema_x_9/features")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown exercise, got %d", rec.Code)
	}

	// Warm cache: the document comes straight back.
	doc := &types.ReferenceFeatures{
		ExerciseID:     "fonema_r_1",
		FeaturePayload: bson.M{"duration_seconds": 2.0},
	}
	if _, err := cache.Save(context.Background(), doc); err != nil {
		t.Fatalf("cache: %v", err)
	}
	rec = doRequest(t, router, http.MethodGet, "/api/v1/exercises/fonema_r_1/features")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with warm cache, got %d", rec.Code)
	}
}
