package publish

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/pricepulse/pulse/internal/market"
)

// HeaderClientID carries the id of the session an update was sent to.
const HeaderClientID = "client-id"

// KafkaWriter is the subset of *kafka.Writer the publisher needs.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter returns a writer for topic on brokers, balanced by key so
// every asset keeps its own partition.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
}

type record struct {
	sessionID string
	update    market.PriceUpdate
}

// Publisher streams every emitted update to Kafka as an audit trail. Record
// never blocks; Run drains the buffer and writes in small batches.
type Publisher struct {
	writer   KafkaWriter
	logger   *zap.Logger
	buf      chan record
	maxBatch int
}

// NewPublisher creates a Publisher over writer.
func NewPublisher(writer KafkaWriter, logger *zap.Logger) *Publisher {
	return &Publisher{
		writer:   writer,
		logger:   logger,
		buf:      make(chan record, 1024),
		maxBatch: 64,
	}
}

// Record enqueues u as sent to sessionID.
func (p *Publisher) Record(sessionID string, u market.PriceUpdate) {
	select {
	case p.buf <- record{sessionID: sessionID, update: u}:
	default:
		p.logger.Warn("publish: buffer full, dropping update", zap.String("id", u.ID))
	}
}

// drainTimeout bounds the final flush after Run is cancelled.
const drainTimeout = 2 * time.Second

// Run writes buffered updates until ctx is cancelled, flushes whatever is
// still buffered and then closes the writer.
func (p *Publisher) Run(ctx context.Context) {
	defer func() {
		if err := p.writer.Close(); err != nil {
			p.logger.Warn("publish: close writer", zap.Error(err))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			p.drain()
			return
		case r := <-p.buf:
			p.flush(ctx, p.batch(r))
		}
	}
}

// batch collects r plus whatever is already buffered, up to maxBatch.
func (p *Publisher) batch(r record) []kafka.Message {
	batch := []kafka.Message{p.message(r)}
	for len(batch) < p.maxBatch {
		select {
		case r := <-p.buf:
			batch = append(batch, p.message(r))
		default:
			return batch
		}
	}
	return batch
}

func (p *Publisher) flush(ctx context.Context, batch []kafka.Message) {
	if err := p.writer.WriteMessages(ctx, batch...); err != nil && ctx.Err() == nil {
		p.logger.Error("publish: kafka write", zap.Int("messages", len(batch)), zap.Error(err))
	}
}

func (p *Publisher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	for ctx.Err() == nil {
		select {
		case r := <-p.buf:
			p.flush(ctx, p.batch(r))
		default:
			return
		}
	}
	p.logger.Warn("publish: drain timed out", zap.Int("dropped", len(p.buf)))
}

func (p *Publisher) message(r record) kafka.Message {
	payload, _ := json.Marshal(r.update) // PriceUpdate always marshals
	return kafka.Message{
		Key:   []byte(r.update.ID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: HeaderClientID, Value: []byte(r.sessionID)},
		},
	}
}
