package feed

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/pricepulse/pulse/internal/market"
)

// Rand is the randomness the generator needs; *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
}

// Generator produces one synthetic PriceUpdate per asset id per tick.
type Generator struct {
	ids []string

	mu  sync.Mutex
	rnd Rand
}

// NewGenerator returns a Generator over ids. A nil rnd uses a time-seeded
// source.
func NewGenerator(ids []string, rnd Rand) *Generator {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	out := make([]string, len(ids))
	copy(out, ids)
	return &Generator{ids: out, rnd: rnd}
}

// IDs returns the asset ids the generator covers.
func (g *Generator) IDs() []string {
	out := make([]string, len(g.ids))
	copy(out, g.ids)
	return out
}

// Tick returns a fresh update for every asset, in id order. Prices land in
// [0, 10000) and the 1h/24h/7d deltas in (-1,1), (-2.5,2.5) and (-5,5).
func (g *Generator) Tick() []market.PriceUpdate {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]market.PriceUpdate, 0, len(g.ids))
	for _, id := range g.ids {
		change := (g.rnd.Float64() - 0.5) * 200
		out = append(out, market.PriceUpdate{
			ID:    id,
			Price: math.Abs(change * 100),
			PriceChanges: market.PriceChanges{
				H1:  market.Float((g.rnd.Float64() - 0.5) * 2),
				H24: market.Float((g.rnd.Float64() - 0.5) * 5),
				D7:  market.Float((g.rnd.Float64() - 0.5) * 10),
			},
		})
	}
	return out
}
