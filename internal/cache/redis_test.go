package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pricepulse/pulse/internal/market"
)

func TestGoRedis_WriteAndReadBack(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	g, err := Dial(ctx, mr.Addr(), "", 0)
	require.NoError(t, err)
	defer g.Close()

	w := NewSnapshotWriter(g, zap.NewNop())
	w.write(ctx, record{update: market.PriceUpdate{
		ID:           "ethereum",
		Price:        3100,
		PriceChanges: market.PriceChanges{H24: market.Float(1.5)},
	}})

	assert.Equal(t, "3100", mr.HGet("price:ethereum", "price"))
	assert.Equal(t, "1.5", mr.HGet("price:ethereum", "24h"))

	u, ok, err := g.Latest(ctx, "ethereum")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3100.0, u.Price)
	assert.Nil(t, u.PriceChanges.H1)
	require.NotNil(t, u.PriceChanges.H24)
	assert.Equal(t, 1.5, *u.PriceChanges.H24)
}

func TestGoRedis_LatestMissing(t *testing.T) {
	mr := miniredis.RunT(t)
	g := NewGoRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	defer g.Close()

	_, ok, err := g.Latest(context.Background(), "dogecoin")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDial_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := Dial(context.Background(), addr, "", 0)
	assert.Error(t, err)
}
