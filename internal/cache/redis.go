package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aman-zulfiqar/simpledex-engine/internal/models"
	"github.com/aman-zulfiqar/simpledex-engine/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	snapshotKeyPrefix = "dex:snapshot:"
	recentOpsKey      = "dex:ops:recent"

	SnapshotChannel  = "dex:snapshots"
	OperationChannel = "dex:operations"

	defaultMaxRecent = 500
)

// ErrCacheMiss is returned when a key has never been written.
var ErrCacheMiss = errors.New("cache miss")

type RedisConfig struct {
	Addr      string
	DB        int
	MaxRecent int64 // length cap of the recent operations list
	Logger    *logrus.Logger
}

// RedisCache mirrors snapshots and operation records to Redis.
type RedisCache struct {
	client    *redis.Client
	maxRecent int64
	logger    *logrus.Logger
}

var (
	_ storage.SnapshotPublisher = (*RedisCache)(nil)
	_ storage.OperationCache    = (*RedisCache)(nil)
)

// NewRedisCache connects to cfg.Addr and pings it.
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
		DB:   cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	c := NewRedisCacheFromClient(client, cfg.Logger)
	if cfg.MaxRecent > 0 {
		c.maxRecent = cfg.MaxRecent
	}
	c.logger.WithField("addr", cfg.Addr).Info("connected to redis")
	return c, nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client *redis.Client, logger *logrus.Logger) *RedisCache {
	if logger == nil {
		logger = logrus.New()
	}
	return &RedisCache{client: client, maxRecent: defaultMaxRecent, logger: logger}
}

// Client exposes the underlying client for stores that share the connection.
func (r *RedisCache) Client() *redis.Client { return r.client }

// PublishSnapshot stores the latest snapshot of its kind and fans it out.
func (r *RedisCache) PublishSnapshot(ctx context.Context, update *models.SnapshotUpdate) error {
	data, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, snapshotKeyPrefix+string(update.Kind), data, 0)
	pipe.Publish(ctx, SnapshotChannel, data)
	pipe.Publish(ctx, SnapshotChannel+":"+string(update.Kind), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the last stored snapshot of kind.
func (r *RedisCache) LatestSnapshot(ctx context.Context, kind models.SnapshotKind) (*models.SnapshotUpdate, error) {
	val, err := r.client.Get(ctx, snapshotKeyPrefix+string(kind)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}

	var update models.SnapshotUpdate
	if err := json.Unmarshal(val, &update); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &update, nil
}

func (r *RedisCache) AddRecentOperation(ctx context.Context, op *models.OperationRecord) error {
	data, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("marshal operation: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, recentOpsKey, data)
	pipe.LTrim(ctx, recentOpsKey, 0, r.maxRecent-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("add recent operation: %w", err)
	}
	return nil
}

func (r *RedisCache) GetRecentOperations(ctx context.Context, limit int64) ([]*models.OperationRecord, error) {
	if limit <= 0 {
		return []*models.OperationRecord{}, nil
	}

	vals, err := r.client.LRange(ctx, recentOpsKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("get recent operations: %w", err)
	}

	out := make([]*models.OperationRecord, 0, len(vals))
	for _, v := range vals {
		var op models.OperationRecord
		if err := json.Unmarshal([]byte(v), &op); err != nil {
			r.logger.WithError(err).Warn("skipping malformed operation record")
			continue
		}
		out = append(out, &op)
	}
	return out, nil
}

func (r *RedisCache) PublishOperation(ctx context.Context, op *models.OperationRecord) error {
	data, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("marshal operation: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.Publish(ctx, OperationChannel, data)
	pipe.Publish(ctx, OperationChannel+":"+op.Kind, data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish operation: %w", err)
	}
	return nil
}

func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
