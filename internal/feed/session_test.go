package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/pricepulse/pulse/internal/market"
)

type recordingTap struct {
	mu   sync.Mutex
	seen []string
}

func (r *recordingTap) Record(sessionID string, u market.PriceUpdate) {
	r.mu.Lock()
	r.seen = append(r.seen, sessionID+"/"+u.ID)
	r.mu.Unlock()
}

func (r *recordingTap) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

func TestSession_OneEventPerAssetPerTick(t *testing.T) {
	ids := []string{"bitcoin", "ethereum", "solana"}
	gen := NewGenerator(ids, nil)
	tap := &recordingTap{}
	sess := NewSession("s1", gen, 20*time.Millisecond, []Tap{tap}, zap.NewNop())

	events := make(chan market.PriceUpdate, 64)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- sess.Run(ctx, EmitterFunc(func(u market.PriceUpdate) error {
			events <- u
			return nil
		}))
	}()

	// First tick: exactly one event per asset, in order.
	for _, want := range ids {
		select {
		case u := <-events:
			if u.ID != want {
				t.Fatalf("expected %s, got %s", want, u.ID)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("session did not stop on cancel")
	}

	// Nothing more arrives once the session has stopped.
	drained := len(events)
	time.Sleep(60 * time.Millisecond)
	if len(events) != drained {
		t.Fatal("session kept emitting after cancel")
	}

	if tap.count() < len(ids) {
		t.Fatalf("expected tap to see at least %d events, got %d", len(ids), tap.count())
	}
}

func TestSession_StopsOnEmitError(t *testing.T) {
	gen := NewGenerator([]string{"bitcoin", "ethereum"}, nil)
	sess := NewSession("s2", gen, 10*time.Millisecond, nil, zap.NewNop())

	broken := errors.New("broken pipe")
	calls := 0
	err := sess.Run(context.Background(), EmitterFunc(func(market.PriceUpdate) error {
		calls++
		return broken
	}))

	if !errors.Is(err, broken) {
		t.Fatalf("expected wrapped broken pipe, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected to stop after first failed emit, got %d calls", calls)
	}
}
