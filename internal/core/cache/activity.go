package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/Nzyazin/smartwallet/internal/core/models"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix     = "smartwallet:activity:v1:"
	versionPrefix = "smartwallet:activity-version:v1:"
)

// ActivityKey is the redis key holding a wallet's recent transactions.
func ActivityKey(walletID string) string {
	return keyPrefix + walletID
}

// VersionKey counts the invalidations of a wallet's entry.
func VersionKey(walletID string) string {
	return versionPrefix + walletID
}

// setIfVersion writes the entry only while the version still matches the one
// the reader saw before going to the database.
var setIfVersion = redis.NewScript(`
local current = redis.call('GET', KEYS[2]) or '0'
if current ~= ARGV[1] then
	return 0
end
if ARGV[3] == '0' then
	redis.call('SET', KEYS[1], ARGV[2])
else
	redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
end
return 1
`)

// RedisActivityCache stores recent wallet activity as JSON with a TTL.
// Version keys carry no TTL so a late Set can never outlive an Invalidate.
type RedisActivityCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisActivityCache(client redis.Cmdable, ttl time.Duration) *RedisActivityCache {
	return &RedisActivityCache{client: client, ttl: ttl}
}

// NewRedisClient connects and pings, like every other redis user in the service.
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:            addr,
		Password:        password,
		PoolTimeout:     4 * time.Second,
		ConnMaxIdleTime: 5 * time.Minute,
		MaxRetries:      3,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Get returns the cached list on a hit. On a miss the returned version must be
// handed back to Set.
func (c *RedisActivityCache) Get(ctx context.Context, walletID string) ([]models.Transaction, int64, bool, error) {
	values, err := c.client.MGet(ctx, ActivityKey(walletID), VersionKey(walletID)).Result()
	if err != nil {
		return nil, 0, false, fmt.Errorf("cache get: %w", err)
	}

	var version int64
	if raw, ok := values[1].(string); ok {
		if version, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return nil, 0, false, fmt.Errorf("cache version: %w", err)
		}
	}

	data, ok := values[0].(string)
	if !ok {
		return nil, version, false, nil
	}

	var txs []models.Transaction
	if err := json.Unmarshal([]byte(data), &txs); err != nil {
		return nil, version, false, fmt.Errorf("cache decode: %w", err)
	}
	return txs, version, true, nil
}

// Set is a no-op when the wallet was invalidated after the Get that returned version.
func (c *RedisActivityCache) Set(ctx context.Context, walletID string, version int64, txs []models.Transaction) error {
	if txs == nil {
		txs = []models.Transaction{}
	}
	data, err := json.Marshal(txs)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}

	keys := []string{ActivityKey(walletID), VersionKey(walletID)}
	if err := setIfVersion.Run(ctx, c.client, keys, version, data, c.ttl.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Invalidate drops the entries of every given wallet and bumps their versions.
// Counterparties that are not wallets simply have no entry.
func (c *RedisActivityCache) Invalidate(ctx context.Context, walletIDs ...string) error {
	if len(walletIDs) == 0 {
		return nil
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range walletIDs {
			pipe.Incr(ctx, VersionKey(id))
			pipe.Del(ctx, ActivityKey(id))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}

// Nop never hits.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]models.Transaction, int64, bool, error) {
	return nil, 0, false, nil
}

func (Nop) Set(context.Context, string, int64, []models.Transaction) error {
	return nil
}

func (Nop) Invalidate(context.Context, ...string) error {
	return nil
}
