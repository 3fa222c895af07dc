package liquidity

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const DefaultKey = "gigwallet:float:available"

// reserveScript decrements the float only when it covers the amount.
var reserveScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local amount = tonumber(ARGV[1])
if current < amount then
	return -1
end
return redis.call('DECRBY', KEYS[1], amount)
`)

// RedisGauge keeps the float in a single Redis counter shared by every API
// and worker process.
type RedisGauge struct {
	rdb *redis.Client
	key string
}

func NewRedisGauge(rdb *redis.Client, key string) *RedisGauge {
	if key == "" {
		key = DefaultKey
	}
	return &RedisGauge{rdb: rdb, key: key}
}

var _ Gauge = (*RedisGauge)(nil)

// Seed sets the float to initial unless a value already exists.
func (g *RedisGauge) Seed(ctx context.Context, initial int64) error {
	return g.rdb.SetNX(ctx, g.key, initial, 0).Err()
}

func (g *RedisGauge) Reserve(ctx context.Context, amount int64) (bool, error) {
	if amount < 0 {
		return false, fmt.Errorf("liquidity: negative reservation %d", amount)
	}
	left, err := reserveScript.Run(ctx, g.rdb, []string{g.key}, amount).Int64()
	if err != nil {
		return false, fmt.Errorf("reserve float: %w", err)
	}
	return left >= 0, nil
}

func (g *RedisGauge) Release(ctx context.Context, amount int64) error {
	return g.Replenish(ctx, amount)
}

func (g *RedisGauge) Replenish(ctx context.Context, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("liquidity: negative amount %d", amount)
	}
	return g.rdb.IncrBy(ctx, g.key, amount).Err()
}

func (g *RedisGauge) Available(ctx context.Context) (int64, error) {
	v, err := g.rdb.Get(ctx, g.key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}
