package exercises

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// ReferenceFeatures is the cached acoustic-feature document for one exercise.
// The payload format is owned by the external extraction pipeline and treated
// as opaque here. CacheVersion is owned by the store: it starts at 1 on first
// save and increments by exactly one on every subsequent save; an invalidated
// key starts a fresh cycle at 1.
type ReferenceFeatures struct {
	ExerciseID     string    `bson:"exercise_id" json:"exercise_id"`
	FeaturePayload bson.M    `bson:"feature_payload" json:"feature_payload"`
	CacheVersion   int64     `bson:"cache_version" json:"cache_version"`
	CachedAt       time.Time `bson:"cached_at" json:"cached_at"`
}
