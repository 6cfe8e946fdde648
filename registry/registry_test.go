package registry_test

import (
	"testing"

	"github.com/holowatch/marketpulse/domain"
	"github.com/holowatch/marketpulse/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func syms(t *testing.T, raw ...string) []domain.Symbol {
	out := make([]domain.Symbol, 0, len(raw))
	for _, r := range raw {
		s, err := domain.NewSymbol(r)
		require.NoError(t, err)
		out = append(out, s)
	}
	return out
}

func TestRegistry_GetReturnsSharedHandles(t *testing.T) {
	reg := registry.New(syms(t, "btcusdt", "ethusdt"))

	e1, err := reg.Get(syms(t, "btcusdt")[0])
	require.NoError(t, err)

	e1.Book.ApplyBidLevel(100, 1)

	e2, err := reg.Get(syms(t, "btcusdt")[0])
	require.NoError(t, err)
	assert.Same(t, e1.Book, e2.Book, "same symbol must resolve to the same *OrderBook instance")

	snap := e2.Book.Snapshot(5)
	assert.Equal(t, 100.0, snap.BestBidPx)
}

func TestRegistry_UnknownSymbolErrors(t *testing.T) {
	reg := registry.New(syms(t, "btcusdt"))
	_, err := reg.Get(syms(t, "ethusdt")[0])
	assert.Error(t, err)
}

func TestRegistry_SymbolsPreservesOrder(t *testing.T) {
	want := syms(t, "ethusdt", "btcusdt", "solusdt")
	reg := registry.New(want)
	assert.Equal(t, want, reg.Symbols())
}

func TestRegistry_EntriesMatchSymbolOrder(t *testing.T) {
	want := syms(t, "ethusdt", "btcusdt")
	reg := registry.New(want)
	entries := reg.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, want[0], entries[0].Symbol)
	assert.Equal(t, want[1], entries[1].Symbol)
}
