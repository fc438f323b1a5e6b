package exercises

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/prosodia/prosodia-backend/internal/data/repos/storeerr"
	types "github.com/prosodia/prosodia-backend/internal/domain"
	"github.com/prosodia/prosodia-backend/internal/platform/apierr"
	"github.com/prosodia/prosodia-backend/internal/platform/logger"
)

// ExerciseRepo is the authoritative store for exercise rows. Soft-deleted
// rows stay queryable by direct key lookup; default listings exclude them.
// Concurrent saves on the same key resolve last-write-wins.
type ExerciseRepo interface {
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Exercise, error)
	GetByKey(ctx context.Context, tx *gorm.DB, key string) (*types.Exercise, error)
	List(ctx context.Context, tx *gorm.DB, f types.ExerciseFilter, p types.Page) ([]*types.Exercise, int64, error)
	Count(ctx context.Context, tx *gorm.DB, f types.ExerciseFilter) (int64, error)
	Create(ctx context.Context, tx *gorm.DB, row *types.Exercise) (*types.Exercise, error)
	Save(ctx context.Context, tx *gorm.DB, row *types.Exercise) (*types.Exercise, error)
	SoftDelete(ctx context.Context, tx *gorm.DB, key string) error
	Exists(ctx context.Context, tx *gorm.DB, key string) (bool, error)
	ListByCategoryGrouped(ctx context.Context, tx *gorm.DB, category string) (map[string][]*types.ExerciseSummary, error)
	ListKeys(ctx context.Context, tx *gorm.DB, activeOnly bool) ([]string, error)
	CategoryCounts(ctx context.Context, tx *gorm.DB) (map[string]int64, error)
}

type exerciseRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewExerciseRepo(db *gorm.DB, baseLog *logger.Logger) ExerciseRepo {
	return &exerciseRepo{db: db, log: baseLog.With("repo", "ExerciseRepo")}
}

// exerciseMutableColumns are everything Save may replace on an existing row.
// internal id and created_at are immutable by contract.
var exerciseMutableColumns = []string{
	"category",
	"subcategory",
	"text_content",
	"difficulty_level",
	"target_phonemes",
	"reference_audio_url",
	"instructions",
	"tips",
	"is_active",
}

func (r *exerciseRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Exercise, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil, apierr.InvalidArgument(fmt.Errorf("id must not be nil"))
	}
	var out types.Exercise
	if err := t.WithContext(ctx).Where("id = ?", id).First(&out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFound(fmt.Errorf("exercise %s not found", id))
		}
		return nil, storeerr.Wrap(err)
	}
	return &out, nil
}

func (r *exerciseRepo) GetByKey(ctx context.Context, tx *gorm.DB, key string) (*types.Exercise, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if key == "" {
		return nil, apierr.InvalidArgument(fmt.Errorf("exercise_id must not be empty"))
	}
	var out types.Exercise
	if err := t.WithContext(ctx).Where("exercise_id = ?", key).First(&out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFound(fmt.Errorf("exercise %q not found", key))
		}
		return nil, storeerr.Wrap(err)
	}
	return &out, nil
}

func (r *exerciseRepo) List(ctx context.Context, tx *gorm.DB, f types.ExerciseFilter, p types.Page) ([]*types.Exercise, int64, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if err := f.Validate(); err != nil {
		return nil, 0, err
	}
	if err := p.Validate(); err != nil {
		return nil, 0, err
	}

	total, err := r.Count(ctx, tx, f)
	if err != nil {
		return nil, 0, err
	}

	var rows []*types.Exercise
	if err := applyFilter(t.WithContext(ctx).Model(&types.Exercise{}), f).
		Order("created_at ASC, exercise_id ASC").
		Limit(p.Limit).
		Offset(p.Offset).
		Find(&rows).Error; err != nil {
		return nil, 0, storeerr.Wrap(err)
	}
	return rows, total, nil
}

func (r *exerciseRepo) Count(ctx context.Context, tx *gorm.DB, f types.ExerciseFilter) (int64, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if err := f.Validate(); err != nil {
		return 0, err
	}
	var total int64
	if err := applyFilter(t.WithContext(ctx).Model(&types.Exercise{}), f).
		Count(&total).Error; err != nil {
		return 0, storeerr.Wrap(err)
	}
	return total, nil
}

// Create inserts a new row and surfaces Conflict on a duplicate exercise_id.
// Callers that want upsert semantics use Save instead.
func (r *exerciseRepo) Create(ctx context.Context, tx *gorm.DB, row *types.Exercise) (*types.Exercise, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if err := row.Validate(); err != nil {
		return nil, err
	}
	if err := t.WithContext(ctx).Create(row).Error; err != nil {
		if storeerr.IsUniqueViolation(err) {
			return nil, apierr.Conflict(fmt.Errorf("exercise %q already exists", row.ExerciseID))
		}
		return nil, storeerr.Wrap(err)
	}
	return row, nil
}

// Save upserts by exercise_id: the insert path assigns id/created_at, the
// conflict path replaces all mutable columns and leaves both untouched. The
// persisted row is re-read so the caller always sees the surviving identity.
func (r *exerciseRepo) Save(ctx context.Context, tx *gorm.DB, row *types.Exercise) (*types.Exercise, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if err := row.Validate(); err != nil {
		return nil, err
	}
	if err := t.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "exercise_id"}},
			DoUpdates: clause.AssignmentColumns(exerciseMutableColumns),
		}).
		Create(row).Error; err != nil {
		return nil, storeerr.Wrap(err)
	}
	return r.GetByKey(ctx, tx, row.ExerciseID)
}

// SoftDelete flips is_active off. Re-deleting an inactive row is a no-op
// success; an unknown key is NotFound.
func (r *exerciseRepo) SoftDelete(ctx context.Context, tx *gorm.DB, key string) error {
	t := tx
	if t == nil {
		t = r.db
	}
	if key == "" {
		return apierr.InvalidArgument(fmt.Errorf("exercise_id must not be empty"))
	}
	res := t.WithContext(ctx).
		Model(&types.Exercise{}).
		Where("exercise_id = ?", key).
		Update("is_active", false)
	if res.Error != nil {
		return storeerr.Wrap(res.Error)
	}
	if res.RowsAffected == 0 {
		return apierr.NotFound(fmt.Errorf("exercise %q not found", key))
	}
	return nil
}

func (r *exerciseRepo) Exists(ctx context.Context, tx *gorm.DB, key string) (bool, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if key == "" {
		return false, apierr.InvalidArgument(fmt.Errorf("exercise_id must not be empty"))
	}
	var count int64
	if err := t.WithContext(ctx).
		Model(&types.Exercise{}).
		Where("exercise_id = ?", key).
		Count(&count).Error; err != nil {
		return false, storeerr.Wrap(err)
	}
	return count > 0, nil
}

func (r *exerciseRepo) ListByCategoryGrouped(ctx context.Context, tx *gorm.DB, category string) (map[string][]*types.ExerciseSummary, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if category == "" {
		return nil, apierr.InvalidArgument(fmt.Errorf("category must not be empty"))
	}
	var rows []*types.ExerciseSummary
	if err := t.WithContext(ctx).
		Model(&types.Exercise{}).
		Select("id", "exercise_id", "category", "subcategory", "text_content",
			"difficulty_level", "target_phonemes", "reference_audio_url",
			"is_active", "created_at").
		Where("category = ? AND is_active = TRUE", category).
		Order("subcategory ASC, difficulty_level ASC, exercise_id ASC").
		Find(&rows).Error; err != nil {
		return nil, storeerr.Wrap(err)
	}
	grouped := map[string][]*types.ExerciseSummary{}
	for _, row := range rows {
		grouped[row.Subcategory] = append(grouped[row.Subcategory], row)
	}
	return grouped, nil
}

// ListKeys returns exercise keys in stable order. With activeOnly false it
// includes soft-deleted rows, which the reconciliation sweep needs to spot
// orphaned cache documents; activeOnly true restricts to rows clients can see.
func (r *exerciseRepo) ListKeys(ctx context.Context, tx *gorm.DB, activeOnly bool) ([]string, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	q := t.WithContext(ctx).Model(&types.Exercise{})
	if activeOnly {
		q = q.Where("is_active = TRUE")
	}
	var keys []string
	if err := q.
		Order("exercise_id ASC").
		Pluck("exercise_id", &keys).Error; err != nil {
		return nil, storeerr.Wrap(err)
	}
	return keys, nil
}

func (r *exerciseRepo) CategoryCounts(ctx context.Context, tx *gorm.DB) (map[string]int64, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var rows []struct {
		Category string
		Total    int64
	}
	if err := t.WithContext(ctx).
		Model(&types.Exercise{}).
		Select("category, COUNT(*) AS total").
		Where("is_active = TRUE").
		Group("category").
		Find(&rows).Error; err != nil {
		return nil, storeerr.Wrap(err)
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Category] = row.Total
	}
	return out, nil
}

func applyFilter(q *gorm.DB, f types.ExerciseFilter) *gorm.DB {
	if !f.IncludeInactive {
		q = q.Where("is_active = TRUE")
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.Subcategory != "" {
		q = q.Where("subcategory = ?", f.Subcategory)
	}
	if f.MinDifficulty != 0 {
		q = q.Where("difficulty_level >= ?", f.MinDifficulty)
	}
	if f.MaxDifficulty != 0 {
		q = q.Where("difficulty_level <= ?", f.MaxDifficulty)
	}
	return q
}
