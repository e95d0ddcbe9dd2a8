package market

import (
	"fmt"
	"sort"
	"strings"
)

// SortKey names a sortable column of the price table.
type SortKey string

const (
	SortRank      SortKey = "rank"
	SortName      SortKey = "name"
	SortPrice     SortKey = "price"
	SortChange1h  SortKey = "priceChange1h"
	SortChange24h SortKey = "priceChange24h"
	SortChange7d  SortKey = "priceChange7d"
	SortMarketCap SortKey = "marketCap"
	SortVolume24h SortKey = "volume24h"
)

// SortDirection is ascending or descending.
type SortDirection string

const (
	Ascending  SortDirection = "asc"
	Descending SortDirection = "desc"
)

// ParseSortKey validates a user-supplied column name.
func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(s); k {
	case SortRank, SortName, SortPrice, SortChange1h, SortChange24h,
		SortChange7d, SortMarketCap, SortVolume24h:
		return k, nil
	}
	return "", fmt.Errorf("market: unknown sort key %q", s)
}

// SortAssets returns a sorted copy of assets. Ties are broken by rank so the
// order is stable across live updates.
func SortAssets(assets []Asset, key SortKey, dir SortDirection) []Asset {
	out := make([]Asset, len(assets))
	copy(out, assets)

	less := func(a, b Asset) int {
		switch key {
		case SortName:
			return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		case SortPrice:
			return cmpFloat(a.Price, b.Price)
		case SortChange1h:
			return cmpFloat(a.PriceChange1h, b.PriceChange1h)
		case SortChange24h:
			return cmpFloat(a.PriceChange24h, b.PriceChange24h)
		case SortChange7d:
			return cmpFloat(a.PriceChange7d, b.PriceChange7d)
		case SortMarketCap:
			return cmpFloat(a.MarketCap, b.MarketCap)
		case SortVolume24h:
			return cmpFloat(a.Volume24h, b.Volume24h)
		default:
			return a.Rank - b.Rank
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		c := less(out[i], out[j])
		if dir == Descending {
			c = -c
		}
		if c == 0 {
			return out[i].Rank < out[j].Rank
		}
		return c < 0
	})
	return out
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
