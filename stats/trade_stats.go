package stats

import (
	"sync"
	"time"

	"github.com/gammazero/deque"
)

// Side is the aggressor side derived from the exchange's isBuyerMaker flag.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
	SideNone Side = ""
)

// SideFromIsBuyerMaker applies the exchange convention: the aggressor was the
// seller (isBuyerMaker=true) iff the resting order was a buy.
func SideFromIsBuyerMaker(isBuyerMaker bool) Side {
	if isBuyerMaker {
		return SideSell
	}
	return SideBuy
}

// LastTrade is the most recently observed trade for a symbol.
type LastTrade struct {
	Price float64
	Qty   float64
	Side  Side
}

type timedTrade struct {
	at    time.Time
	price float64
	qty   float64
}

// window is how far back the rolling VWAP looks.
const window = 300 * time.Second

// TradeStats accumulates the last trade, session VWAP, and a 300-second
// rolling-window VWAP for one symbol. Every mutation and read goes through a
// single mutex, matching OrderBook's discipline.
type TradeStats struct {
	mu sync.Mutex

	last LastTrade
	sumPxQty float64
	sumQty   float64

	recent deque.Deque[timedTrade]

	now func() time.Time
}

func NewTradeStats() *TradeStats {
	return &TradeStats{now: time.Now}
}

// NewTradeStatsWithClock is used by tests that need deterministic control
// over "now" to exercise the rolling window's eviction boundary.
func NewTradeStatsWithClock(now func() time.Time) *TradeStats {
	return &TradeStats{now: now}
}

// OnTrade records a trade. Non-positive price or qty is dropped silently.
func (ts *TradeStats) OnTrade(price, qty float64, side Side) {
	if price <= 0 || qty <= 0 {
		return
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()

	now := ts.now()

	ts.last = LastTrade{Price: price, Qty: qty, Side: side}
	ts.sumPxQty += price * qty
	ts.sumQty += qty

	ts.recent.PushBack(timedTrade{at: now, price: price, qty: qty})
	cutoff := now.Add(-window)
	for ts.recent.Len() > 0 && ts.recent.Front().at.Before(cutoff) {
		ts.recent.PopFront()
	}
}

// Snapshot is an immutable view of a symbol's current trade metrics.
type Snapshot struct {
	Last         LastTrade
	VWAPSession  float64
	VWAPWindow   float64
}

// Snapshot computes the session and windowed VWAPs as of now. The window scan
// is defensive: it re-filters by the current cutoff rather than trusting that
// a recent OnTrade call already evicted everything stale, since a quiet
// symbol may not have called OnTrade in a while.
func (ts *TradeStats) Snapshot() Snapshot {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	out := Snapshot{Last: ts.last}
	if ts.sumQty > 0 {
		out.VWAPSession = ts.sumPxQty / ts.sumQty
	}

	cutoff := ts.now().Add(-window)
	var sumPxQty, sumQty float64
	for i := 0; i < ts.recent.Len(); i++ {
		t := ts.recent.At(i)
		if t.at.Before(cutoff) {
			continue
		}
		sumPxQty += t.price * t.qty
		sumQty += t.qty
	}
	if sumQty > 0 {
		out.VWAPWindow = sumPxQty / sumQty
	}

	return out
}
