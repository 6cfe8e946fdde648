// Package registry is the shared-ownership handle: a process-wide,
// symbol-keyed map from the orchestrator's construction time to the single
// OrderBook/TradeStats instance a symbol's SyncWorker (writer) and the
// Publisher (reader) both hold. Adapted from a provider×symbol storage map
// into a single-exchange, symbol-keyed registry, since cross-venue
// aggregation is out of scope here.
package registry

import (
	"fmt"

	"github.com/holowatch/marketpulse/domain"
	"github.com/holowatch/marketpulse/stats"
)

// Entry is the pair of shared handles one symbol's worker and publisher
// both reach. Each field carries its own mutex; Registry adds no
// additional lock on top.
type Entry struct {
	Symbol domain.Symbol
	Book   *domain.OrderBook
	Stats  *stats.TradeStats
}

// Registry holds one Entry per tracked symbol, built once at startup from
// the CLI's --symbols list and never mutated afterward — only the entries'
// own mutex-guarded contents change at runtime. That makes Get lock-free.
type Registry struct {
	order   []domain.Symbol
	entries map[domain.Symbol]*Entry
}

// New builds a registry with one fresh OrderBook/TradeStats pair per
// symbol, in the given order. The order is preserved by Symbols() so the
// Publisher iterates symbols in a stable sequence.
func New(symbols []domain.Symbol) *Registry {
	r := &Registry{
		order:   append([]domain.Symbol(nil), symbols...),
		entries: make(map[domain.Symbol]*Entry, len(symbols)),
	}
	for _, sym := range symbols {
		r.entries[sym] = &Entry{
			Symbol: sym,
			Book:   domain.NewOrderBook(sym),
			Stats:  stats.NewTradeStats(),
		}
	}
	return r
}

// Get returns the shared entry for symbol, or an error if the symbol was
// never registered at startup.
func (r *Registry) Get(symbol domain.Symbol) (*Entry, error) {
	e, ok := r.entries[symbol]
	if !ok {
		return nil, fmt.Errorf("registry: unknown symbol %q", symbol)
	}
	return e, nil
}

// Symbols returns every tracked symbol in the stable order they were
// registered.
func (r *Registry) Symbols() []domain.Symbol {
	return append([]domain.Symbol(nil), r.order...)
}

// Entries returns every entry in the stable registration order, for
// callers (the Publisher) that want to iterate both symbol and handles
// together.
func (r *Registry) Entries() []*Entry {
	out := make([]*Entry, 0, len(r.order))
	for _, sym := range r.order {
		out = append(out, r.entries[sym])
	}
	return out
}
