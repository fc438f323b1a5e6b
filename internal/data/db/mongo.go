package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/prosodia/prosodia-backend/internal/platform/envutil"
	"github.com/prosodia/prosodia-backend/internal/platform/logger"
)

type MongoService struct {
	client *mongo.Client
	dbName string
	log    *logger.Logger
}

func NewMongoService(logg *logger.Logger) (*MongoService, error) {
	serviceLog := logg.With("service", "MongoService")

	uri := envutil.GetEnv("MONGO_URI", "mongodb://localhost:27017", logg)
	dbName := envutil.GetEnv("MONGO_DB", "audio_processing", logg)
	minPool := envutil.GetEnvAsInt("MONGO_MIN_POOL_SIZE", 1, logg)
	maxPool := envutil.GetEnvAsInt("MONGO_MAX_POOL_SIZE", 20, logg)

	opts := options.Client().
		ApplyURI(uri).
		SetMinPoolSize(uint64(minPool)).
		SetMaxPoolSize(uint64(maxPool))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	return &MongoService{client: client, dbName: dbName, log: serviceLog}, nil
}

func (s *MongoService) Client() *mongo.Client { return s.client }

func (s *MongoService) Collection(name string) *mongo.Collection {
	return s.client.Database(s.dbName).Collection(name)
}

func (s *MongoService) Close(ctx context.Context) {
	if err := s.client.Disconnect(ctx); err != nil {
		s.log.Warn("mongo client close failed", "error", err)
		return
	}
	s.log.Info("mongo client closed")
}
