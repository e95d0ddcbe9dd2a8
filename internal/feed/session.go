package feed

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pricepulse/pulse/internal/market"
)

// Emitter delivers one update to the session's client.
type Emitter interface {
	Emit(u market.PriceUpdate) error
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(u market.PriceUpdate) error

func (f EmitterFunc) Emit(u market.PriceUpdate) error { return f(u) }

// Tap observes every update a session emits. Record must not block.
type Tap interface {
	Record(sessionID string, u market.PriceUpdate)
}

// Session is the per-client feed: its own ticker, its own emitter.
type Session struct {
	ID       string
	gen      *Generator
	interval time.Duration
	taps     []Tap
	logger   *zap.Logger
}

// NewSession builds a session that ticks every interval.
func NewSession(id string, gen *Generator, interval time.Duration, taps []Tap, logger *zap.Logger) *Session {
	return &Session{
		ID:       id,
		gen:      gen,
		interval: interval,
		taps:     taps,
		logger:   logger.With(zap.String("session", id)),
	}
}

// Run emits one event per asset on every tick until ctx is cancelled or an
// emit fails. The ticker is stopped on return.
func (s *Session) Run(ctx context.Context, out Emitter) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for _, u := range s.gen.Tick() {
				if err := out.Emit(u); err != nil {
					return fmt.Errorf("feed: emit %s: %w", u.ID, err)
				}
				for _, tap := range s.taps {
					tap.Record(s.ID, u)
				}
			}
		}
	}
}
