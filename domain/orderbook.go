package domain

import (
	"sort"
	"sync"
)

// bookSide is a price-keyed sorted map for one side of the book: a qty lookup
// plus a slice of prices kept in ranked order by binary-search insertion, so
// that reading the top of the book never costs more than the number of
// levels read — unlike re-sorting the whole side on every delta.
type bookSide struct {
	qty    map[float64]float64
	prices []float64
	desc   bool // true for bids (decreasing), false for asks (increasing)
}

func newBookSide(desc bool) *bookSide {
	return &bookSide{
		qty:  make(map[float64]float64),
		desc: desc,
	}
}

func (s *bookSide) apply(price, qty float64) {
	if price <= 0 || qty < 0 {
		return
	}
	if qty == 0 {
		s.remove(price)
		return
	}
	if _, exists := s.qty[price]; !exists {
		s.insert(price)
	}
	s.qty[price] = qty
}

func (s *bookSide) insert(price float64) {
	i := s.rank(price)
	s.prices = append(s.prices, 0)
	copy(s.prices[i+1:], s.prices[i:])
	s.prices[i] = price
}

// rank returns the index at which price belongs in the side's sort order.
func (s *bookSide) rank(price float64) int {
	if s.desc {
		return sort.Search(len(s.prices), func(i int) bool { return s.prices[i] < price })
	}
	return sort.Search(len(s.prices), func(i int) bool { return s.prices[i] > price })
}

func (s *bookSide) remove(price float64) {
	if _, exists := s.qty[price]; !exists {
		return
	}
	delete(s.qty, price)

	// rank() is a strict comparator, so for a price already present it
	// overshoots by one slot (the insertion point for a duplicate sorts
	// after the existing entry). The existing entry is therefore at i-1.
	i := s.rank(price)
	if i > 0 && s.prices[i-1] == price {
		s.prices = append(s.prices[:i-1], s.prices[i:]...)
		return
	}
	// Fallback: shouldn't happen given the map said price exists, but keep
	// the two structures consistent rather than leaving a dangling entry.
	for j, p := range s.prices {
		if p == price {
			s.prices = append(s.prices[:j], s.prices[j+1:]...)
			return
		}
	}
}

func (s *bookSide) best() (price, qty float64, ok bool) {
	if len(s.prices) == 0 {
		return 0, 0, false
	}
	p := s.prices[0]
	return p, s.qty[p], true
}

func (s *bookSide) top(n int) []PriceLevel {
	if n <= 0 || n > len(s.prices) {
		n = len(s.prices)
	}
	out := make([]PriceLevel, n)
	for i := 0; i < n; i++ {
		p := s.prices[i]
		out[i] = PriceLevel{Price: p, Qty: s.qty[p]}
	}
	return out
}

func (s *bookSide) size() int {
	return len(s.prices)
}

// OrderBook is a thread-safe L2 book for one symbol. bids are kept in
// strictly decreasing price order, asks in strictly increasing order. It is
// mutated only through ApplyBidLevel/ApplyAskLevel/ApplyDepthDelta and the
// REST path's LoadSnapshot, and observed only through Snapshot/IsSane.
type OrderBook struct {
	symbol Symbol

	mu   sync.Mutex
	bids *bookSide
	asks *bookSide
}

func NewOrderBook(symbol Symbol) *OrderBook {
	return &OrderBook{
		symbol: symbol,
		bids:   newBookSide(true),
		asks:   newBookSide(false),
	}
}

func (ob *OrderBook) Symbol() Symbol {
	return ob.symbol
}

func (ob *OrderBook) ApplyBidLevel(price, qty float64) {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	ob.bids.apply(price, qty)
}

func (ob *OrderBook) ApplyAskLevel(price, qty float64) {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	ob.asks.apply(price, qty)
}

// LoadSnapshot replaces the book's current bid/ask levels in-place with a
// REST snapshot, under a single critical section: both sides are reset to
// empty and then rebuilt by applying every level through the same
// insert-or-overwrite rule as a live delta. Used by the sync worker's
// snapshot/resync path; never by the delta path.
func (ob *OrderBook) LoadSnapshot(bids, asks []PriceLevel) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	ob.bids = newBookSide(true)
	ob.asks = newBookSide(false)
	for _, lvl := range bids {
		ob.bids.apply(lvl.Price, lvl.Qty)
	}
	for _, lvl := range asks {
		ob.asks.apply(lvl.Price, lvl.Qty)
	}
}

// ApplyDepthDelta applies every level of update under a single critical
// section. Iteration order within the delta (bids then asks) doesn't affect
// the final state, since each level is a total overwrite.
func (ob *OrderBook) ApplyDepthDelta(update *DepthUpdate) {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	for _, lvl := range update.Bids {
		ob.bids.apply(lvl.Price, lvl.Qty)
	}
	for _, lvl := range update.Asks {
		ob.asks.apply(lvl.Price, lvl.Qty)
	}
}

// Snapshot returns a standalone copy of the top of the book, disconnected
// from further mutation.
func (ob *OrderBook) Snapshot(topN int) BookSnapshot {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	bestBidPx, bestBidQty, _ := ob.bids.best()
	bestAskPx, bestAskQty, _ := ob.asks.best()

	return BookSnapshot{
		Symbol:     ob.symbol,
		BestBidPx:  bestBidPx,
		BestBidQty: bestBidQty,
		BestAskPx:  bestAskPx,
		BestAskQty: bestAskQty,
		TopBids:    ob.bids.top(topN),
		TopAsks:    ob.asks.top(topN),
	}
}

// IsSane reports whether the book is non-crossed: true if either side is
// empty, or the best bid is strictly below the best ask. A crossed book is
// never corrected here — callers decide what to do (log and keep publishing).
func (ob *OrderBook) IsSane() bool {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	bestBidPx, _, hasBid := ob.bids.best()
	bestAskPx, _, hasAsk := ob.asks.best()
	if !hasBid || !hasAsk {
		return true
	}
	return bestBidPx > 0 && bestAskPx > 0 && bestBidPx < bestAskPx
}

// BookSnapshot is an immutable view of the top of one symbol's book.
type BookSnapshot struct {
	Symbol     Symbol
	BestBidPx  float64
	BestBidQty float64
	BestAskPx  float64
	BestAskQty float64
	TopBids    []PriceLevel
	TopAsks    []PriceLevel
}
