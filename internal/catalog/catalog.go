package catalog

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/pricepulse/pulse/internal/market"
)

// Catalog supplies the seed asset collection served at /api/cryptos.
type Catalog interface {
	Assets(ctx context.Context) ([]market.Asset, error)
}

// ChartPoints is the sparkline length of the built-in seed data.
const ChartPoints = 7

// Rand is the randomness the static catalog needs; *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
}

// Static serves the five built-in assets. Every call draws a fresh random
// sparkline, matching what the dashboard showed on each page load.
type Static struct {
	mu  sync.Mutex
	rnd Rand
}

// NewStatic returns a Static catalog. A nil rnd uses a time-seeded source.
func NewStatic(rnd Rand) *Static {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Static{rnd: rnd}
}

func (s *Static) Assets(_ context.Context) ([]market.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]market.Asset, len(seed))
	for i, a := range seed {
		a = a.Clone()
		a.ChartData = make([]float64, ChartPoints)
		for j := range a.ChartData {
			a.ChartData[j] = s.rnd.Float64() * 1000
		}
		out[i] = a
	}
	return out, nil
}

// DefaultIDs lists the ids of the built-in assets in rank order.
func DefaultIDs() []string {
	ids := make([]string, len(seed))
	for i, a := range seed {
		ids[i] = a.ID
	}
	return ids
}

var seed = []market.Asset{
	{
		ID: "bitcoin", Rank: 1, Logo: "/images/btc.svg", Name: "Bitcoin", Symbol: "BTC",
		Price: 50000, PriceChange1h: 0.5, PriceChange24h: 2.3, PriceChange7d: -1.2,
		MarketCap: 1000000000000, Volume24h: 30000000000,
		CirculatingSupply: 19000000, MaxSupply: market.Float(21000000),
	},
	{
		ID: "ethereum", Rank: 2, Logo: "/images/eth.svg", Name: "Ethereum", Symbol: "ETH",
		Price: 3000, PriceChange1h: -0.2, PriceChange24h: 1.5, PriceChange7d: 3.2,
		MarketCap: 350000000000, Volume24h: 15000000000,
		CirculatingSupply: 120000000,
	},
	{
		ID: "tether", Rank: 3, Logo: "/images/usdt.svg", Name: "Tether", Symbol: "USDT",
		Price: 1, PriceChange1h: 0.01, PriceChange24h: -0.02, PriceChange7d: 0.01,
		MarketCap: 83000000000, Volume24h: 40000000000,
		CirculatingSupply: 83000000000,
	},
	{
		ID: "bnb", Rank: 4, Logo: "/images/bnb.svg", Name: "BNB", Symbol: "BNB",
		Price: 400, PriceChange1h: 1.2, PriceChange24h: -0.8, PriceChange7d: 5.4,
		MarketCap: 62000000000, Volume24h: 2000000000,
		CirculatingSupply: 155000000, MaxSupply: market.Float(165000000),
	},
	{
		ID: "solana", Rank: 5, Logo: "/images/sol.svg", Name: "Solana", Symbol: "SOL",
		Price: 100, PriceChange1h: -1.5, PriceChange24h: 4.2, PriceChange7d: -2.8,
		MarketCap: 40000000000, Volume24h: 1500000000,
		CirculatingSupply: 400000000,
	},
}
