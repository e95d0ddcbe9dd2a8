package cache

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pricepulse/pulse/internal/market"
)

// RedisClient abstracts the Redis operations used by SnapshotWriter.
// In production this is satisfied by *GoRedis; in tests by a mock.
type RedisClient interface {
	HSet(ctx context.Context, key string, values ...any) error
}

// snapshot holds the last-written fields for an asset so we can skip
// duplicate writes.
type snapshot struct {
	Price string
	H1    string
	H24   string
	D7    string
}

type record struct {
	update market.PriceUpdate
	at     time.Time
}

// SnapshotWriter keeps the latest price of every asset in Redis using the
// schema:
//
//	Key:    price:{id}
//	Fields: price, 1h, 24h, 7d, ts
//
// Record never blocks: updates are buffered and flushed by Run. Writes whose
// fields match the previous write for the key are suppressed.
type SnapshotWriter struct {
	client RedisClient
	logger *zap.Logger
	buf    chan record

	mu   sync.Mutex
	last map[string]snapshot

	nowFunc func() time.Time
}

// NewSnapshotWriter creates a SnapshotWriter over client.
func NewSnapshotWriter(client RedisClient, logger *zap.Logger) *SnapshotWriter {
	return &SnapshotWriter{
		client:  client,
		logger:  logger,
		buf:     make(chan record, 1024),
		last:    make(map[string]snapshot),
		nowFunc: time.Now,
	}
}

// Record enqueues u for writing. The session id is not part of the cache.
func (w *SnapshotWriter) Record(_ string, u market.PriceUpdate) {
	select {
	case w.buf <- record{update: u, at: w.nowFunc()}:
	default:
		w.logger.Warn("cache: buffer full, dropping update", zap.String("id", u.ID))
	}
}

// drainTimeout bounds the final flush after Run is cancelled.
const drainTimeout = 2 * time.Second

// Run flushes buffered updates to Redis until ctx is cancelled, then writes
// out what is still buffered.
func (w *SnapshotWriter) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return
		case r := <-w.buf:
			w.write(ctx, r)
		}
	}
}

func (w *SnapshotWriter) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	for ctx.Err() == nil {
		select {
		case r := <-w.buf:
			w.write(ctx, r)
		default:
			return
		}
	}
	w.logger.Warn("cache: drain timed out", zap.Int("dropped", len(w.buf)))
}

// write checks for duplicates and issues an HSET.
func (w *SnapshotWriter) write(ctx context.Context, r record) {
	u := r.update
	key := Key(u.ID)

	// Absent deltas keep the previously written value.
	w.mu.Lock()
	prev, exists := w.last[key]
	next := snapshot{
		Price: formatFloat(u.Price),
		H1:    pick(u.PriceChanges.H1, prev.H1),
		H24:   pick(u.PriceChanges.H24, prev.H24),
		D7:    pick(u.PriceChanges.D7, prev.D7),
	}
	if exists && prev == next {
		w.mu.Unlock()
		return
	}
	w.last[key] = next
	w.mu.Unlock()

	ts := strconv.FormatInt(r.at.UnixMilli(), 10)
	fields := []any{"price", next.Price, "ts", ts}
	if next.H1 != "" {
		fields = append(fields, "1h", next.H1)
	}
	if next.H24 != "" {
		fields = append(fields, "24h", next.H24)
	}
	if next.D7 != "" {
		fields = append(fields, "7d", next.D7)
	}

	if err := w.client.HSet(ctx, key, fields...); err != nil {
		w.logger.Warn("cache: hset failed", zap.String("key", key), zap.Error(err))
		// Forget the snapshot so the next update retries the write.
		w.mu.Lock()
		delete(w.last, key)
		w.mu.Unlock()
	}
}

func pick(v *float64, fallback string) string {
	if v == nil {
		return fallback
	}
	return formatFloat(*v)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Key returns the Redis key holding the snapshot for id.
func Key(id string) string {
	return fmt.Sprintf("price:%s", id)
}
