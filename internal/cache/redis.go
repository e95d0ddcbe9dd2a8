package cache

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/pricepulse/pulse/internal/market"
)

// GoRedis adapts *redis.Client to RedisClient.
type GoRedis struct {
	rdb *redis.Client
}

// Dial connects to Redis and verifies the connection with PING.
func Dial(ctx context.Context, addr, password string, db int) (*GoRedis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("cache: ping redis %s: %w", addr, err)
	}
	return &GoRedis{rdb: rdb}, nil
}

// NewGoRedis wraps an existing client.
func NewGoRedis(rdb *redis.Client) *GoRedis {
	return &GoRedis{rdb: rdb}
}

func (g *GoRedis) HSet(ctx context.Context, key string, values ...any) error {
	return g.rdb.HSet(ctx, key, values...).Err()
}

// Latest reads the cached snapshot for id back as a PriceUpdate. ok is false
// when nothing has been written for id yet.
func (g *GoRedis) Latest(ctx context.Context, id string) (u market.PriceUpdate, ok bool, err error) {
	fields, err := g.rdb.HGetAll(ctx, Key(id)).Result()
	if err != nil {
		return market.PriceUpdate{}, false, fmt.Errorf("cache: hgetall %s: %w", id, err)
	}
	if len(fields) == 0 {
		return market.PriceUpdate{}, false, nil
	}

	u.ID = id
	if u.Price, err = strconv.ParseFloat(fields["price"], 64); err != nil {
		return market.PriceUpdate{}, false, fmt.Errorf("cache: parse price for %s: %w", id, err)
	}
	u.PriceChanges.H1 = parseOptional(fields["1h"])
	u.PriceChanges.H24 = parseOptional(fields["24h"])
	u.PriceChanges.D7 = parseOptional(fields["7d"])
	return u, true, nil
}

func (g *GoRedis) Close() error {
	return g.rdb.Close()
}

func parseOptional(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
