package client

import (
	"fmt"
	"io"
	"text/tabwriter"

	"golang.org/x/text/language"
	xmessage "golang.org/x/text/message"

	"github.com/pricepulse/pulse/internal/market"
)

// Render writes the status line and the sorted price table for s.
func Render(w io.Writer, s market.State, key market.SortKey, dir market.SortDirection) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)

	fmt.Fprintf(w, "[%s]", s.ConnectionStatus.Label())
	if s.Error != "" {
		fmt.Fprintf(w, " %s", s.Error)
	}
	fmt.Fprintln(w)

	if s.Loading {
		fmt.Fprintln(w, "Loading...")
		return nil
	}

	fmt.Fprintln(tw, "#\tName\tPrice\t1h %\t24h %\t7d %\tMarket Cap\tVolume(24h)\tCirculating Supply\tLast 7 Days\t")
	for _, a := range market.SortAssets(s.Assets, key, dir) {
		fmt.Fprintf(tw, "%d\t%s %s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			a.Rank, a.Name, a.Symbol,
			money(a.Price),
			percent(a.PriceChange1h), percent(a.PriceChange24h), percent(a.PriceChange7d),
			money(a.MarketCap), money(a.Volume24h),
			supply(a.CirculatingSupply, a.Symbol),
			sparkline(a.ChartData))
	}
	return tw.Flush()
}

func money(v float64) string {
	return "$" + grouped(v, 2)
}

func percent(v float64) string {
	return fmt.Sprintf("%+.2f%%", v)
}

func supply(v float64, symbol string) string {
	return grouped(v, 0) + " " + symbol
}

var printer = xmessage.NewPrinter(language.English)

// grouped formats v with thousands separators.
func grouped(v float64, decimals int) string {
	return printer.Sprintf(fmt.Sprintf("%%.%df", decimals), v)
}

var bars = []rune("▁▂▃▄▅▆▇█")

func sparkline(points []float64) string {
	if len(points) == 0 {
		return ""
	}
	lo, hi := points[0], points[0]
	for _, p := range points {
		lo = min(lo, p)
		hi = max(hi, p)
	}
	out := make([]rune, len(points))
	for i, p := range points {
		idx := 0
		if hi > lo {
			idx = int((p - lo) / (hi - lo) * float64(len(bars)-1))
		}
		out[i] = bars[idx]
	}
	return string(out)
}
