package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/Nzyazin/smartwallet/internal/core/cache"
	"github.com/Nzyazin/smartwallet/internal/core/models"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCache(t *testing.T, ttl time.Duration) (*cache.RedisActivityCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return cache.NewRedisActivityCache(client, ttl), mr
}

func TestRedisActivityCache_RoundTrip(t *testing.T) {
	c, _ := setupCache(t, time.Minute)
	ctx := context.Background()
	walletID := uuid.NewString()

	_, version, ok, err := c.Get(ctx, walletID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, version)

	txs := []models.Transaction{{
		ID:          uuid.New(),
		Sender:      walletID,
		Receiver:    "Smart Wallet Ltd",
		Amount:      decimal.RequireFromString("5.00"),
		BalanceLeft: decimal.RequireFromString("15.00"),
		Currency:    "EUR",
		Type:        models.TransactionWithdrawal,
		Status:      models.TransactionSucceeded,
		CreatedAt:   time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
	}}
	require.NoError(t, c.Set(ctx, walletID, version, txs))

	got, _, ok, err := c.Get(ctx, walletID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, txs[0].ID, got[0].ID)
	assert.True(t, txs[0].BalanceLeft.Equal(got[0].BalanceLeft))
}

func TestRedisActivityCache_EmptyListIsAHit(t *testing.T) {
	c, _ := setupCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "w1", 0, nil))
	got, _, ok, err := c.Get(ctx, "w1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, got)
}

func TestRedisActivityCache_InvalidateAndExpire(t *testing.T) {
	c, mr := setupCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "w1", 0, []models.Transaction{}))
	require.NoError(t, c.Set(ctx, "w2", 0, []models.Transaction{}))
	assert.True(t, mr.Exists(cache.ActivityKey("w1")))

	require.NoError(t, c.Invalidate(ctx, "w1", "Smart Wallet Ltd"))
	assert.False(t, mr.Exists(cache.ActivityKey("w1")))
	assert.True(t, mr.Exists(cache.ActivityKey("w2")))

	mr.FastForward(2 * time.Minute)
	_, _, ok, err := c.Get(ctx, "w2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisActivityCache_SetAfterInvalidateIsDropped(t *testing.T) {
	c, mr := setupCache(t, time.Minute)
	ctx := context.Background()

	_, version, ok, err := c.Get(ctx, "w1")
	require.NoError(t, err)
	require.False(t, ok)

	// A write commits and invalidates while the reader is still on the database.
	require.NoError(t, c.Invalidate(ctx, "w1"))

	stale := []models.Transaction{{ID: uuid.New(), Sender: "w1"}}
	require.NoError(t, c.Set(ctx, "w1", version, stale))
	assert.False(t, mr.Exists(cache.ActivityKey("w1")))

	_, next, ok, err := c.Get(ctx, "w1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, version+1, next)

	require.NoError(t, c.Set(ctx, "w1", next, stale))
	got, _, ok, err := c.Get(ctx, "w1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, stale[0].ID, got[0].ID)
}

func TestRedisActivityCache_ReportsBackendErrors(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	c := cache.NewRedisActivityCache(client, time.Minute)
	mr.Close()

	_, _, _, err = c.Get(context.Background(), "w1")
	assert.Error(t, err)
	assert.Error(t, c.Set(context.Background(), "w1", 0, nil))
	assert.Error(t, c.Invalidate(context.Background(), "w1"))
}

func TestNewRedisClient(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client, err := cache.NewRedisClient(context.Background(), mr.Addr(), "")
	require.NoError(t, err)
	client.Close()

	_, err = cache.NewRedisClient(context.Background(), "", "")
	assert.Error(t, err)
}
