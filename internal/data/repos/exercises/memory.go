package exercises

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/prosodia/prosodia-backend/internal/domain"
	"github.com/prosodia/prosodia-backend/internal/platform/apierr"
)

// In-memory doubles for both store contracts. They carry the same semantics
// as the Postgres/Mongo implementations (identity preservation, soft-delete
// visibility, version monotonicity) so services can be exercised without any
// backing store. The tx parameter is accepted and ignored.

type memExerciseRepo struct {
	mu   sync.Mutex
	rows map[string]*types.Exercise
	seq  int
}

func NewMemoryExerciseRepo() ExerciseRepo {
	return &memExerciseRepo{rows: map[string]*types.Exercise{}}
}

func (r *memExerciseRepo) GetByID(ctx context.Context, _ *gorm.DB, id uuid.UUID) (*types.Exercise, error) {
	if id == uuid.Nil {
		return nil, apierr.InvalidArgument(fmt.Errorf("id must not be nil"))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.ID == id {
			return copyExercise(row), nil
		}
	}
	return nil, apierr.NotFound(fmt.Errorf("exercise %s not found", id))
}

func (r *memExerciseRepo) GetByKey(ctx context.Context, _ *gorm.DB, key string) (*types.Exercise, error) {
	if key == "" {
		return nil, apierr.InvalidArgument(fmt.Errorf("exercise_id must not be empty"))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[key]
	if !ok {
		return nil, apierr.NotFound(fmt.Errorf("exercise %q not found", key))
	}
	return copyExercise(row), nil
}

func (r *memExerciseRepo) List(ctx context.Context, tx *gorm.DB, f types.ExerciseFilter, p types.Page) ([]*types.Exercise, int64, error) {
	if err := f.Validate(); err != nil {
		return nil, 0, err
	}
	if err := p.Validate(); err != nil {
		return nil, 0, err
	}
	matched := r.matching(f)
	total := int64(len(matched))
	lo := p.Offset
	if lo > len(matched) {
		lo = len(matched)
	}
	hi := lo + p.Limit
	if hi > len(matched) {
		hi = len(matched)
	}
	return matched[lo:hi], total, nil
}

func (r *memExerciseRepo) Count(ctx context.Context, _ *gorm.DB, f types.ExerciseFilter) (int64, error) {
	if err := f.Validate(); err != nil {
		return 0, err
	}
	return int64(len(r.matching(f))), nil
}

func (r *memExerciseRepo) Create(ctx context.Context, _ *gorm.DB, row *types.Exercise) (*types.Exercise, error) {
	if err := row.Validate(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[row.ExerciseID]; ok {
		return nil, apierr.Conflict(fmt.Errorf("exercise %q already exists", row.ExerciseID))
	}
	stored := copyExercise(row)
	r.assignIdentity(stored)
	r.rows[stored.ExerciseID] = stored
	return copyExercise(stored), nil
}

func (r *memExerciseRepo) Save(ctx context.Context, _ *gorm.DB, row *types.Exercise) (*types.Exercise, error) {
	if err := row.Validate(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := copyExercise(row)
	if prior, ok := r.rows[row.ExerciseID]; ok {
		stored.ID = prior.ID
		stored.CreatedAt = prior.CreatedAt
	} else {
		r.assignIdentity(stored)
	}
	r.rows[stored.ExerciseID] = stored
	return copyExercise(stored), nil
}

func (r *memExerciseRepo) SoftDelete(ctx context.Context, _ *gorm.DB, key string) error {
	if key == "" {
		return apierr.InvalidArgument(fmt.Errorf("exercise_id must not be empty"))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[key]
	if !ok {
		return apierr.NotFound(fmt.Errorf("exercise %q not found", key))
	}
	row.IsActive = false
	return nil
}

func (r *memExerciseRepo) Exists(ctx context.Context, _ *gorm.DB, key string) (bool, error) {
	if key == "" {
		return false, apierr.InvalidArgument(fmt.Errorf("exercise_id must not be empty"))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rows[key]
	return ok, nil
}

func (r *memExerciseRepo) ListByCategoryGrouped(ctx context.Context, _ *gorm.DB, category string) (map[string][]*types.ExerciseSummary, error) {
	if category == "" {
		return nil, apierr.InvalidArgument(fmt.Errorf("category must not be empty"))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var rows []*types.Exercise
	for _, row := range r.rows {
		if row.Category == category && row.IsActive {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Subcategory != rows[j].Subcategory {
			return rows[i].Subcategory < rows[j].Subcategory
		}
		if rows[i].DifficultyLevel != rows[j].DifficultyLevel {
			return rows[i].DifficultyLevel < rows[j].DifficultyLevel
		}
		return rows[i].ExerciseID < rows[j].ExerciseID
	})
	grouped := map[string][]*types.ExerciseSummary{}
	for _, row := range rows {
		grouped[row.Subcategory] = append(grouped[row.Subcategory], row.Summary())
	}
	return grouped, nil
}

func (r *memExerciseRepo) ListKeys(ctx context.Context, _ *gorm.DB, activeOnly bool) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.rows))
	for key, row := range r.rows {
		if activeOnly && !row.IsActive {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (r *memExerciseRepo) CategoryCounts(ctx context.Context, _ *gorm.DB) (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]int64{}
	for _, row := range r.rows {
		if row.IsActive {
			out[row.Category]++
		}
	}
	return out, nil
}

func (r *memExerciseRepo) matching(f types.ExerciseFilter) []*types.Exercise {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.Exercise
	for _, row := range r.rows {
		if !f.IncludeInactive && !row.IsActive {
			continue
		}
		if f.Category != "" && row.Category != f.Category {
			continue
		}
		if f.Subcategory != "" && row.Subcategory != f.Subcategory {
			continue
		}
		if f.MinDifficulty != 0 && row.DifficultyLevel < f.MinDifficulty {
			continue
		}
		if f.MaxDifficulty != 0 && row.DifficultyLevel > f.MaxDifficulty {
			continue
		}
		out = append(out, copyExercise(row))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ExerciseID < out[j].ExerciseID
	})
	return out
}

// assignIdentity mimics the DB defaults; the seq keeps created_at strictly
// increasing so ordering stays deterministic within one test run.
func (r *memExerciseRepo) assignIdentity(row *types.Exercise) {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC().Add(time.Duration(r.seq) * time.Microsecond)
		r.seq++
	}
}

func copyExercise(in *types.Exercise) *types.Exercise {
	out := *in
	out.TargetPhonemes = append(out.TargetPhonemes[:0:0], in.TargetPhonemes...)
	return &out
}

type memFeatureCache struct {
	mu   sync.Mutex
	docs map[string]*types.ReferenceFeatures
}

func NewMemoryFeatureCache() FeatureCacheRepo {
	return &memFeatureCache{docs: map[string]*types.ReferenceFeatures{}}
}

func (c *memFeatureCache) Get(ctx context.Context, key string) (*types.ReferenceFeatures, error) {
	if key == "" {
		return nil, apierr.InvalidArgument(fmt.Errorf("exercise_id must not be empty"))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	doc, ok := c.docs[key]
	if !ok {
		return nil, apierr.CacheMiss(fmt.Errorf("no cached features for exercise %q", key))
	}
	out := *doc
	return &out, nil
}

func (c *memFeatureCache) Save(ctx context.Context, features *types.ReferenceFeatures) (*types.ReferenceFeatures, error) {
	if features == nil {
		return nil, apierr.InvalidArgument(fmt.Errorf("features is nil"))
	}
	if features.ExerciseID == "" {
		return nil, apierr.InvalidArgument(fmt.Errorf("exercise_id must not be empty"))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	version := int64(1)
	if prior, ok := c.docs[features.ExerciseID]; ok {
		version = prior.CacheVersion + 1
	}
	doc := &types.ReferenceFeatures{
		ExerciseID:     features.ExerciseID,
		FeaturePayload: features.FeaturePayload,
		CacheVersion:   version,
		CachedAt:       time.Now().UTC(),
	}
	c.docs[features.ExerciseID] = doc
	out := *doc
	return &out, nil
}

func (c *memFeatureCache) Invalidate(ctx context.Context, key string) error {
	if key == "" {
		return apierr.InvalidArgument(fmt.Errorf("exercise_id must not be empty"))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.docs, key)
	return nil
}

func (c *memFeatureCache) Exists(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, apierr.InvalidArgument(fmt.Errorf("exercise_id must not be empty"))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.docs[key]
	return ok, nil
}

func (c *memFeatureCache) ListAll(ctx context.Context) ([]*types.ReferenceFeatures, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*types.ReferenceFeatures, 0, len(c.docs))
	for _, doc := range c.docs {
		d := *doc
		out = append(out, &d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExerciseID < out[j].ExerciseID })
	return out, nil
}

func (c *memFeatureCache) Count(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int64(len(c.docs)), nil
}

func (c *memFeatureCache) EnsureIndexes(ctx context.Context) error { return nil }
