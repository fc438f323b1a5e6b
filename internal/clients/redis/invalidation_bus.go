package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/prosodia/prosodia-backend/internal/platform/logger"
)

// Invalidation event reasons, carried verbatim on the wire.
const (
	ReasonAudioChanged = "audio_changed"
	ReasonManual       = "manual"
	ReasonCacheMiss    = "cache_miss"
	ReasonOrphaned     = "orphaned"
)

// InvalidationEvent tells feature-extraction workers that the cached
// reference features for an exercise are gone or stale.
type InvalidationEvent struct {
	ExerciseID string    `json:"exercise_id"`
	Reason     string    `json:"reason"`
	At         time.Time `json:"at"`
}

type InvalidationBus interface {
	Publish(ctx context.Context, evt InvalidationEvent) error
	StartForwarder(ctx context.Context, onEvt func(evt InvalidationEvent)) error
	Close() error
}

type invalidationBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

func NewInvalidationBus(log *logger.Logger) (InvalidationBus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	ch := strings.TrimSpace(os.Getenv("REDIS_CHANNEL"))
	if ch == "" {
		ch = "feature-invalidation"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &invalidationBus{
		log:     log.With("service", "RedisInvalidationBus"),
		rdb:     rdb,
		channel: ch,
	}, nil
}

func (b *invalidationBus) Publish(ctx context.Context, evt InvalidationEvent) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("invalidation bus not initialized")
	}
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}
	raw, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

func (b *invalidationBus) StartForwarder(ctx context.Context, onEvt func(evt InvalidationEvent)) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("invalidation bus not initialized")
	}
	if onEvt == nil {
		return fmt.Errorf("onEvt callback required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)

	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				var evt InvalidationEvent
				if err := json.Unmarshal([]byte(m.Payload), &evt); err != nil {
					b.log.Warn("bad invalidation payload", "error", err)
					continue
				}
				onEvt(evt)
			}
		}
	}()

	return nil
}

func (b *invalidationBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}
