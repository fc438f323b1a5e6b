package testutil

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	mongoOptions "go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	types "github.com/prosodia/prosodia-backend/internal/domain"
	"github.com/prosodia/prosodia-backend/internal/platform/logger"
)

var (
	errMissingDSN      = errors.New("missing TEST_POSTGRES_DSN")
	errMissingMongoURI = errors.New("missing TEST_MONGO_URI")
)

var (
	dbOnce sync.Once
	db     *gorm.DB
	dbErr  error

	mongoOnce   sync.Once
	mongoClient *mongo.Client
	mongoErr    error

	logOnce sync.Once
	logg    *logger.Logger
	logErr  error

	colSeq int
	colMu  sync.Mutex
)

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	logOnce.Do(func() {
		logg, logErr = logger.New("test")
	})
	if logErr != nil {
		tb.Fatalf("failed to init logger: %v", logErr)
	}
	return logg
}

func DB(tb testing.TB) *gorm.DB {
	tb.Helper()

	dbOnce.Do(func() {
		dsn := os.Getenv("TEST_POSTGRES_DSN")
		if dsn == "" {
			dbErr = errMissingDSN
			return
		}

		var err error
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			DisableForeignKeyConstraintWhenMigrating: true,
			Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
		})
		if err != nil {
			dbErr = err
			return
		}

		if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
			dbErr = err
			return
		}

		if err := autoMigrateAll(db); err != nil {
			dbErr = err
			return
		}
	})

	if errors.Is(dbErr, errMissingDSN) {
		tb.Skip("set TEST_POSTGRES_DSN to run repo integration tests")
	}
	if dbErr != nil {
		tb.Fatalf("failed to init test db: %v", dbErr)
	}
	return db
}

func Tx(tb testing.TB, db *gorm.DB) *gorm.DB {
	tb.Helper()
	tx := db.Begin()
	if tx.Error != nil {
		tb.Fatalf("begin tx: %v", tx.Error)
	}
	tb.Cleanup(func() {
		_ = tx.Rollback().Error
	})
	return tx
}

// MongoCollection hands each test its own scratch collection and drops it on
// cleanup, so tests stay independent without a shared fixture reset.
func MongoCollection(tb testing.TB) *mongo.Collection {
	tb.Helper()

	mongoOnce.Do(func() {
		uri := os.Getenv("TEST_MONGO_URI")
		if uri == "" {
			mongoErr = errMissingMongoURI
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		client, err := mongo.Connect(ctx, mongoOptions.Client().ApplyURI(uri))
		if err != nil {
			mongoErr = err
			return
		}
		if err := client.Ping(ctx, nil); err != nil {
			mongoErr = err
			return
		}
		mongoClient = client
	})

	if errors.Is(mongoErr, errMissingMongoURI) {
		tb.Skip("set TEST_MONGO_URI to run cache integration tests")
	}
	if mongoErr != nil {
		tb.Fatalf("failed to init test mongo client: %v", mongoErr)
	}

	colMu.Lock()
	colSeq++
	name := fmt.Sprintf("reference_features_test_%d_%d", time.Now().UnixNano(), colSeq)
	colMu.Unlock()

	col := mongoClient.Database("audio_processing_test").Collection(name)
	tb.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = col.Drop(ctx)
	})
	return col
}

func autoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&types.Exercise{},
		&types.UserExerciseProgress{},
	)
}
