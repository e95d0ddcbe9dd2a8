package publish

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pricepulse/pulse/internal/market"
)

type mockWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (m *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, msgs...)
	return m.err
}

func (m *mockWriter) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func (m *mockWriter) snapshot() ([]kafka.Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]kafka.Message, len(m.msgs))
	copy(out, m.msgs)
	return out, m.closed
}

func waitMessages(t *testing.T, w *mockWriter, n int) []kafka.Message {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		if msgs, _ := w.snapshot(); len(msgs) >= n {
			return msgs
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %d messages", n)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestPublisher_WritesKeyedMessages(t *testing.T) {
	w := &mockWriter{}
	p := NewPublisher(w, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	p.Record("sess-1", market.PriceUpdate{ID: "bitcoin", Price: 51000, PriceChanges: market.PriceChanges{H1: market.Float(0.8)}})
	p.Record("sess-2", market.PriceUpdate{ID: "ethereum", Price: 3100})

	msgs := waitMessages(t, w, 2)

	assert.Equal(t, "bitcoin", string(msgs[0].Key))
	require.Len(t, msgs[0].Headers, 1)
	assert.Equal(t, HeaderClientID, msgs[0].Headers[0].Key)
	assert.Equal(t, "sess-1", string(msgs[0].Headers[0].Value))

	var u market.PriceUpdate
	require.NoError(t, json.Unmarshal(msgs[0].Value, &u))
	assert.Equal(t, 51000.0, u.Price)
	require.NotNil(t, u.PriceChanges.H1)
	assert.Nil(t, u.PriceChanges.H24)

	assert.Equal(t, "ethereum", string(msgs[1].Key))
	assert.Equal(t, "sess-2", string(msgs[1].Headers[0].Value))
}

func TestPublisher_SurvivesWriteErrors(t *testing.T) {
	w := &mockWriter{err: errors.New("leader not available")}
	p := NewPublisher(w, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	p.Record("s", market.PriceUpdate{ID: "bnb", Price: 1})
	waitMessages(t, w, 1)
	p.Record("s", market.PriceUpdate{ID: "bnb", Price: 2})
	waitMessages(t, w, 2)
}

func TestPublisher_ClosesWriterOnStop(t *testing.T) {
	w := &mockWriter{}
	p := NewPublisher(w, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher did not stop")
	}
	_, closed := w.snapshot()
	assert.True(t, closed)
}

func TestNewKafkaWriter(t *testing.T) {
	kw := NewKafkaWriter([]string{"localhost:9092"}, "price_updates")
	defer kw.Close()

	assert.Equal(t, "price_updates", kw.Topic)
	assert.IsType(t, &kafka.Hash{}, kw.Balancer)
}

func TestPublisher_DrainsOnStop(t *testing.T) {
	w := &mockWriter{}
	p := NewPublisher(w, zap.NewNop())

	for i := 0; i < 100; i++ {
		p.Record("s", market.PriceUpdate{ID: "tether", Price: float64(i)})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.Run(ctx)

	msgs, closed := w.snapshot()
	assert.Len(t, msgs, 100)
	assert.True(t, closed, "writer closed after the final flush")
}
