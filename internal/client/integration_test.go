package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pricepulse/pulse/internal/catalog"
	"github.com/pricepulse/pulse/internal/feed"
	"github.com/pricepulse/pulse/internal/market"
)

// startFeed runs a real feed server on an httptest listener.
func startFeed(t *testing.T) (*feed.Server, *httptest.Server) {
	t.Helper()
	srv := feed.NewServer(feed.ServerConfig{
		AllowedOrigins: []string{"http://localhost:3000"},
		Interval:       20 * time.Millisecond,
	}, feed.NewGenerator(catalog.DefaultIDs(), nil), catalog.NewStatic(nil), nil, zap.NewNop())

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func TestIntegration_LiveUpdatesThenFailure(t *testing.T) {
	srv, ts := startFeed(t)
	store := market.NewStore(zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, NewRefresher(ts.URL, store, zap.NewNop()).Refresh(ctx))
	seeded := store.Snapshot()
	require.Len(t, seeded.Assets, 5)
	require.False(t, seeded.Loading)

	ctrl := NewController(Config{MaxAttempts: 3, RetryDelay: 100 * time.Millisecond},
		NewWSDialer(DefaultWSConfig(wsURL(ts))), store, zap.NewNop())
	done := make(chan error, 1)
	go func() { done <- ctrl.Run(ctx) }()

	waitFor(t, func() bool { return ctrl.Status() == market.StatusConnected }, "never connected")

	// Every seeded asset moves once the feed starts ticking.
	waitFor(t, func() bool {
		snap := store.Snapshot()
		for i, a := range snap.Assets {
			if a.Price == seeded.Assets[i].Price {
				return false
			}
		}
		return true
	}, "live updates not applied")

	// Server drops every session and stops accepting: one disconnect plus
	// two refused dials use up the budget.
	shutdownCtx, stop := context.WithTimeout(ctx, 2*time.Second)
	defer stop()
	require.NoError(t, srv.Shutdown(shutdownCtx))
	ts.Close()

	waitFor(t, func() bool { return ctrl.Status() == market.StatusFailed }, "never failed")
	assert.Equal(t, 3, ctrl.Attempts())
	assert.ErrorIs(t, ctrl.Err(), ErrRetryBudgetExhausted)
	assert.Equal(t, msgRetryFailed, store.Snapshot().Error)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("controller did not stop")
	}
}

func TestIntegration_OriginHeader(t *testing.T) {
	_, ts := startFeed(t)

	cfg := DefaultWSConfig(wsURL(ts))
	cfg.Headers = http.Header{"Origin": []string{"http://evil.example"}}

	_, err := NewWSDialer(cfg).Dial(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")

	cfg.Headers = http.Header{"Origin": []string{"http://localhost:3000"}}
	conn, err := NewWSDialer(cfg).Dial(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	raw, err := conn.ReadMessage()
	require.NoError(t, err)
	_, ok := market.DecodeUpdate(raw)
	assert.True(t, ok)
}

func TestWSDialer_ReadTimeout(t *testing.T) {
	_, ts := startFeed(t)

	cfg := DefaultWSConfig(wsURL(ts))
	cfg.ReadTimeout = time.Millisecond
	conn, err := NewWSDialer(cfg).Dial(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	// The feed ticks every 20ms, far beyond the 1ms read timeout.
	_, err = conn.ReadMessage()
	assert.Error(t, err)
}
