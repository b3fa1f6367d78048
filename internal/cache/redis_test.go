package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aman-zulfiqar/simpledex-engine/internal/models"
	"github.com/aman-zulfiqar/simpledex-engine/internal/pricing"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   2, // Use different DB for tests
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	require.NoError(t, client.FlushDB(ctx).Err())

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.FlushDB(ctx).Err()
		_ = client.Close()
	})
	return client
}

func TestNewRedisCache_RequiresAddr(t *testing.T) {
	_, err := NewRedisCache(context.Background(), RedisConfig{})
	assert.Error(t, err)
}

func TestRedisCache_Snapshots(t *testing.T) {
	c := NewRedisCacheFromClient(setupTestRedis(t), nil)
	ctx := context.Background()

	_, err := c.LatestSnapshot(ctx, models.SnapshotReserves)
	assert.ErrorIs(t, err, ErrCacheMiss)

	update := &models.SnapshotUpdate{
		Kind: models.SnapshotReserves,
		Reserves: &models.ReserveSnapshot{
			EthReserve:   10,
			TokenReserve: 2000,
			LPSupply:     10,
			EthPerToken:  pricing.Of(0.00495),
			TokenPerEth:  pricing.Unavailable,
		},
	}
	require.NoError(t, c.PublishSnapshot(ctx, update))

	got, err := c.LatestSnapshot(ctx, models.SnapshotReserves)
	require.NoError(t, err)
	require.NotNil(t, got.Reserves)
	assert.Equal(t, 2000.0, got.Reserves.TokenReserve)
	assert.True(t, got.Reserves.EthPerToken.Available)
	assert.False(t, got.Reserves.TokenPerEth.Available)
}

func TestRedisCache_RecentOperations(t *testing.T) {
	client := setupTestRedis(t)
	c := NewRedisCacheFromClient(client, nil)
	c.maxRecent = 3
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, c.AddRecentOperation(ctx, &models.OperationRecord{
			ID:   fmt.Sprintf("op_%d", i),
			Kind: "redeem",
		}))
	}

	n, err := client.LLen(ctx, recentOpsKey).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	ops, err := c.GetRecentOperations(ctx, 2)
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, "op_4", ops[0].ID)
	assert.Equal(t, "op_3", ops[1].ID)

	ops, err = c.GetRecentOperations(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, ops)
}

func TestPubSubManager_SubscribeOperations(t *testing.T) {
	client := setupTestRedis(t)
	c := NewRedisCacheFromClient(client, nil)
	ps := NewPubSubManager(client, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan *models.OperationRecord, 1)
	done := make(chan error, 1)
	go func() {
		done <- ps.SubscribeOperations(ctx, "swap_eth_to_token", func(op *models.OperationRecord) {
			select {
			case got <- op:
			default:
			}
			cancel()
		})
	}()

	// publish until the subscriber is attached
	require.Eventually(t, func() bool {
		_ = c.PublishOperation(ctx, &models.OperationRecord{ID: "op_1", Kind: "swap_eth_to_token"})
		return len(got) > 0
	}, 3*time.Second, 50*time.Millisecond)

	op := <-got
	assert.Equal(t, "op_1", op.ID)
	assert.ErrorIs(t, <-done, context.Canceled)
}
