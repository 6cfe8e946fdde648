// Package publish formats and emits the consolidated per-symbol market row:
// one CSV line per (symbol, second), every numeric field fixed at 6
// fractional digits via shopspring/decimal so formatting never reintroduces
// the float rounding the rest of the system deliberately avoids.
package publish

import (
	"strings"
	"time"

	"github.com/holowatch/marketpulse/domain"
	"github.com/holowatch/marketpulse/stats"
	"github.com/shopspring/decimal"
)

// Row is one formatted snapshot of a symbol at a point in time, matching
// the CSV header:
// ts,symbol,mid,spread,bestBidPx,bestBidQty,bestAskPx,bestAskQty,
// topBidsStr,topAsksStr,lastPrice,lastQty,lastSide,vwapWindow,vwapSession,imbalance
type Row struct {
	Timestamp time.Time
	Symbol    domain.Symbol

	Mid    float64
	Spread float64

	BestBidPx  float64
	BestBidQty float64
	BestAskPx  float64
	BestAskQty float64

	TopBids []domain.PriceLevel
	TopAsks []domain.PriceLevel

	LastPrice float64
	LastQty   float64
	LastSide  stats.Side

	VWAPWindow  float64
	VWAPSession float64
	Imbalance   float64
}

// fixed renders v as a fixed-point decimal string with 6 fractional
// digits.
func fixed(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(6)
}

// levelsString renders a side's top-N levels as "price:qty|price:qty|..."
// with no trailing separator, in the order the levels were given.
func levelsString(levels []domain.PriceLevel) string {
	parts := make([]string, 0, len(levels))
	for _, lvl := range levels {
		parts = append(parts, fixed(lvl.Price)+":"+fixed(lvl.Qty))
	}
	return strings.Join(parts, "|")
}

// sideString maps stats.Side to the CSV's "buy"/"sell"/"none" vocabulary.
func sideString(s stats.Side) string {
	switch s {
	case stats.SideBuy:
		return "buy"
	case stats.SideSell:
		return "sell"
	default:
		return "none"
	}
}

// Format renders the row as one CSV line, no trailing newline.
func (r Row) Format() string {
	fields := []string{
		r.Timestamp.UTC().Format(time.RFC3339),
		r.Symbol.String(),
		fixed(r.Mid),
		fixed(r.Spread),
		fixed(r.BestBidPx),
		fixed(r.BestBidQty),
		fixed(r.BestAskPx),
		fixed(r.BestAskQty),
		levelsString(r.TopBids),
		levelsString(r.TopAsks),
		fixed(r.LastPrice),
		fixed(r.LastQty),
		sideString(r.LastSide),
		fixed(r.VWAPWindow),
		fixed(r.VWAPSession),
		fixed(r.Imbalance),
	}
	return strings.Join(fields, ",")
}
