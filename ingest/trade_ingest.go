package ingest

import "github.com/holowatch/marketpulse/stats"

// TradeIngest forwards parsed trade events straight to TradeStats. Unlike
// depth updates, trades need no sequencing or buffering: each trade is
// independent and TradeStats.OnTrade is already safe for concurrent callers.
type TradeIngest struct {
	stats *stats.TradeStats
}

func NewTradeIngest(ts *stats.TradeStats) *TradeIngest {
	return &TradeIngest{stats: ts}
}

func (t *TradeIngest) OnTrade(price, qty float64, side stats.Side) {
	t.stats.OnTrade(price, qty, side)
}
