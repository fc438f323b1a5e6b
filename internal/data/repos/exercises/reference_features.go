package exercises

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	types "github.com/prosodia/prosodia-backend/internal/domain"
	"github.com/prosodia/prosodia-backend/internal/platform/apierr"
	"github.com/prosodia/prosodia-backend/internal/platform/logger"
)

// FeatureCacheRepo owns the derived reference-feature documents: at most one
// live document per exercise_id. A missing document is a cache miss, not an
// error state; the store owns cache_version monotonicity.
type FeatureCacheRepo interface {
	Get(ctx context.Context, key string) (*types.ReferenceFeatures, error)
	Save(ctx context.Context, features *types.ReferenceFeatures) (*types.ReferenceFeatures, error)
	Invalidate(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	ListAll(ctx context.Context) ([]*types.ReferenceFeatures, error)
	Count(ctx context.Context) (int64, error)
	EnsureIndexes(ctx context.Context) error
}

const featureCacheMaxTries = 4

type featureCacheRepo struct {
	col *mongo.Collection
	log *logger.Logger
}

func NewFeatureCacheRepo(col *mongo.Collection, baseLog *logger.Logger) FeatureCacheRepo {
	return &featureCacheRepo{col: col, log: baseLog.With("repo", "FeatureCacheRepo")}
}

func (r *featureCacheRepo) Get(ctx context.Context, key string) (*types.ReferenceFeatures, error) {
	if key == "" {
		return nil, apierr.InvalidArgument(fmt.Errorf("exercise_id must not be empty"))
	}
	return retryCache(ctx, func() (*types.ReferenceFeatures, error) {
		var out types.ReferenceFeatures
		err := r.col.FindOne(ctx, bson.M{"exercise_id": key}).Decode(&out)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apierr.CacheMiss(fmt.Errorf("no cached features for exercise %q", key))
		}
		if err != nil {
			return nil, err
		}
		return &out, nil
	})
}

// Save upserts the document for the key. The version is owned here: $inc on
// an upsert starts an absent document at 1 and bumps an existing one by
// exactly 1, atomically with the payload swap.
func (r *featureCacheRepo) Save(ctx context.Context, features *types.ReferenceFeatures) (*types.ReferenceFeatures, error) {
	if features == nil {
		return nil, apierr.InvalidArgument(fmt.Errorf("features is nil"))
	}
	if features.ExerciseID == "" {
		return nil, apierr.InvalidArgument(fmt.Errorf("exercise_id must not be empty"))
	}
	update := bson.M{
		"$set": bson.M{
			"feature_payload": features.FeaturePayload,
			"cached_at":       time.Now().UTC(),
		},
		"$setOnInsert": bson.M{"exercise_id": features.ExerciseID},
		"$inc":         bson.M{"cache_version": int64(1)},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)
	return retryCache(ctx, func() (*types.ReferenceFeatures, error) {
		var out types.ReferenceFeatures
		if err := r.col.FindOneAndUpdate(ctx, bson.M{"exercise_id": features.ExerciseID}, update, opts).Decode(&out); err != nil {
			return nil, err
		}
		return &out, nil
	})
}

// Invalidate removes the document. Invalidating an absent key is a no-op.
func (r *featureCacheRepo) Invalidate(ctx context.Context, key string) error {
	if key == "" {
		return apierr.InvalidArgument(fmt.Errorf("exercise_id must not be empty"))
	}
	_, err := retryCache(ctx, func() (struct{}, error) {
		_, err := r.col.DeleteOne(ctx, bson.M{"exercise_id": key})
		return struct{}{}, err
	})
	return err
}

func (r *featureCacheRepo) Exists(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, apierr.InvalidArgument(fmt.Errorf("exercise_id must not be empty"))
	}
	return retryCache(ctx, func() (bool, error) {
		count, err := r.col.CountDocuments(ctx, bson.M{"exercise_id": key}, options.Count().SetLimit(1))
		if err != nil {
			return false, err
		}
		return count > 0, nil
	})
}

func (r *featureCacheRepo) ListAll(ctx context.Context) ([]*types.ReferenceFeatures, error) {
	return retryCache(ctx, func() ([]*types.ReferenceFeatures, error) {
		cur, err := r.col.Find(ctx, bson.M{})
		if err != nil {
			return nil, err
		}
		defer cur.Close(ctx)
		var out []*types.ReferenceFeatures
		if err := cur.All(ctx, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
}

func (r *featureCacheRepo) Count(ctx context.Context) (int64, error) {
	return retryCache(ctx, func() (int64, error) {
		return r.col.CountDocuments(ctx, bson.M{})
	})
}

// EnsureIndexes is idempotent and runs on every process start.
func (r *featureCacheRepo) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "exercise_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_reference_features_exercise_id"),
		},
		{
			Keys:    bson.D{{Key: "cache_version", Value: 1}},
			Options: options.Index().SetName("idx_reference_features_cache_version"),
		},
		{
			Keys:    bson.D{{Key: "cached_at", Value: 1}},
			Options: options.Index().SetName("idx_reference_features_cached_at"),
		},
	}
	_, err := retryCache(ctx, func() (struct{}, error) {
		_, err := r.col.Indexes().CreateMany(ctx, models)
		return struct{}{}, err
	})
	if err != nil {
		return err
	}
	r.log.Info("reference_features indexes ensured")
	return nil
}

// retryCache retries transient transport failures with exponential backoff,
// bounded by featureCacheMaxTries. Domain outcomes (CacheMiss, invalid input)
// never retry; a still-failing transient error surfaces as StoreUnavailable.
func retryCache[T any](ctx context.Context, op func() (T, error)) (T, error) {
	out, err := backoff.Retry(ctx, func() (T, error) {
		v, err := op()
		if err != nil && !isTransientMongoErr(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(featureCacheMaxTries),
	)
	if err != nil && isTransientMongoErr(err) {
		return out, apierr.StoreUnavailable(err)
	}
	return out, err
}

func isTransientMongoErr(err error) bool {
	if err == nil {
		return false
	}
	var ae *apierr.Error
	if errors.As(err, &ae) {
		return false
	}
	return mongo.IsNetworkError(err) || mongo.IsTimeout(err)
}
