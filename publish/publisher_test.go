package publish_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/holowatch/marketpulse/domain"
	"github.com/holowatch/marketpulse/publish"
	"github.com/holowatch/marketpulse/registry"
	"github.com/holowatch/marketpulse/stats"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustSymbol(t *testing.T, raw string) domain.Symbol {
	s, err := domain.NewSymbol(raw)
	require.NoError(t, err)
	return s
}

func TestRow_Format_Fields(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	row := publish.Row{
		Timestamp:  ts,
		Symbol:     mustSymbol(t, "btcusdt"),
		Mid:        100.5,
		Spread:     1,
		BestBidPx:  100,
		BestBidQty: 2,
		BestAskPx:  101,
		BestAskQty: 3,
		TopBids:    []domain.PriceLevel{{Price: 100, Qty: 2}, {Price: 99, Qty: 1}},
		TopAsks:    []domain.PriceLevel{{Price: 101, Qty: 3}},
		LastPrice:  100.25,
		LastQty:    0.5,
		LastSide:   stats.SideBuy,
		VWAPWindow: 100.1,
		VWAPSession: 99.9,
		Imbalance:  0.6,
	}

	line := row.Format()
	fields := strings.Split(line, ",")

	require.Len(t, fields, 16)
	assert.Equal(t, "btcusdt", fields[1])
	assert.Equal(t, "100.500000", fields[2])
	assert.Equal(t, "1.000000", fields[3])
	assert.Equal(t, "100.000000:2.000000|99.000000:1.000000", fields[8])
	assert.Equal(t, "101.000000:3.000000", fields[9])
	assert.Equal(t, "buy", fields[12])
}

func TestRow_Format_NoTradeYieldsNoneSide(t *testing.T) {
	row := publish.Row{Symbol: mustSymbol(t, "ethusdt"), LastSide: stats.SideNone}
	fields := strings.Split(row.Format(), ",")
	assert.Equal(t, "none", fields[12])
}

// S6 — cross check: publisher still emits the row and logs a warning when
// the book is crossed.
func TestPublisher_PublishesEvenWhenBookCrossed(t *testing.T) {
	sym := mustSymbol(t, "btcusdt")
	reg := registry.New([]domain.Symbol{sym})
	entry, err := reg.Get(sym)
	require.NoError(t, err)

	entry.Book.ApplyBidLevel(100, 1)
	entry.Book.ApplyAskLevel(99, 1) // crosses the book
	require.False(t, entry.Book.IsSane())

	var buf bytes.Buffer
	pub := publish.NewPublisher(reg, 5, &buf, zerolog.Nop(), publish.WithInterval(time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	_ = pub.Run(ctx)

	assert.Contains(t, buf.String(), "btcusdt")
}

func TestPublisher_ImbalanceAndMidSpread(t *testing.T) {
	sym := mustSymbol(t, "btcusdt")
	reg := registry.New([]domain.Symbol{sym})
	entry, err := reg.Get(sym)
	require.NoError(t, err)

	entry.Book.ApplyBidLevel(100, 3)
	entry.Book.ApplyAskLevel(102, 1)

	var buf bytes.Buffer
	pub := publish.NewPublisher(reg, 5, &buf, zerolog.Nop(), publish.WithInterval(time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	_ = pub.Run(ctx)

	line := strings.TrimSpace(strings.Split(buf.String(), "\n")[0])
	fields := strings.Split(line, ",")
	assert.Equal(t, "101.000000", fields[2]) // mid = (100+102)/2
	assert.Equal(t, "2.000000", fields[3])   // spread = 102-100
	assert.Equal(t, "0.750000", fields[15])  // imbalance = 3/(3+1)
}

func TestPublisher_EmptyBookYieldsZeroMidSpread(t *testing.T) {
	sym := mustSymbol(t, "btcusdt")
	reg := registry.New([]domain.Symbol{sym})

	var buf bytes.Buffer
	pub := publish.NewPublisher(reg, 5, &buf, zerolog.Nop(), publish.WithInterval(time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	_ = pub.Run(ctx)

	line := strings.TrimSpace(strings.Split(buf.String(), "\n")[0])
	fields := strings.Split(line, ",")
	assert.Equal(t, "0.000000", fields[2])
	assert.Equal(t, "0.000000", fields[3])
	assert.Equal(t, "0.000000", fields[15])
}
