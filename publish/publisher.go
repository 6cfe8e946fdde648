package publish

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/holowatch/marketpulse/domain"
	"github.com/holowatch/marketpulse/infrastructure/prometheus"
	"github.com/holowatch/marketpulse/registry"
	"github.com/holowatch/marketpulse/stats"
	"github.com/rs/zerolog"
)

// defaultInterval is the Publisher's default wake interval.
const defaultInterval = time.Second

// Publisher is the single, process-wide worker that samples every
// registered symbol's OrderBook and TradeStats independently (no
// cross-lock between the two) and appends a formatted row to the sink.
type Publisher struct {
	registry *registry.Registry
	topN     int
	sink     io.Writer
	interval time.Duration
	now      func() time.Time
	logger   zerolog.Logger
	metrics  *promclient.Metrics
}

// Option configures optional Publisher fields.
type Option func(*Publisher)

func WithInterval(d time.Duration) Option {
	return func(p *Publisher) { p.interval = d }
}

func WithClock(now func() time.Time) Option {
	return func(p *Publisher) { p.now = now }
}

func WithMetrics(m *promclient.Metrics) Option {
	return func(p *Publisher) { p.metrics = m }
}

// NewPublisher builds a Publisher that writes rows to sink. sink is never
// closed by the Publisher — callers own the file handle (or os.Stdout)
// lifecycle.
func NewPublisher(reg *registry.Registry, topN int, sink io.Writer, logger zerolog.Logger, opts ...Option) *Publisher {
	p := &Publisher{
		registry: reg,
		topN:     topN,
		sink:     sink,
		interval: defaultInterval,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run wakes on p.interval and publishes every registered symbol until ctx
// is cancelled.
func (p *Publisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.publishAll()
		}
	}
}

func (p *Publisher) publishAll() {
	for _, e := range p.registry.Entries() {
		p.publishOne(e)
	}
}

func (p *Publisher) publishOne(e *registry.Entry) {
	bookSnap := e.Book.Snapshot(p.topN)
	statsSnap := e.Stats.Snapshot()

	row := buildRow(p.now(), bookSnap, statsSnap)

	if _, err := fmt.Fprintln(p.sink, row.Format()); err != nil {
		p.logger.Error().Err(err).Str("symbol", e.Symbol.String()).Msg("failed to write published row")
	}
	if f, ok := p.sink.(*os.File); ok {
		_ = f.Sync() // flush each row as it's written
	}

	if !e.Book.IsSane() {
		p.logger.Warn().Str("symbol", e.Symbol.String()).Msg("crossed book detected")
		if p.metrics != nil {
			p.metrics.CrossedTotal.WithLabelValues(e.Symbol.String()).Inc()
		}
	}
}

// buildRow computes mid/spread/imbalance from independently-sampled
// book/stats snapshots and composes the final Row.
func buildRow(at time.Time, book domain.BookSnapshot, st stats.Snapshot) Row {
	var mid, spread float64
	if book.BestBidPx > 0 && book.BestAskPx > 0 {
		mid = (book.BestBidPx + book.BestAskPx) / 2
		spread = book.BestAskPx - book.BestBidPx
	}

	var bidQty, askQty float64
	for _, lvl := range book.TopBids {
		bidQty += lvl.Qty
	}
	for _, lvl := range book.TopAsks {
		askQty += lvl.Qty
	}
	var imbalance float64
	if total := bidQty + askQty; total > 0 {
		imbalance = bidQty / total
	}

	return Row{
		Timestamp:   at,
		Symbol:      book.Symbol,
		Mid:         mid,
		Spread:      spread,
		BestBidPx:   book.BestBidPx,
		BestBidQty:  book.BestBidQty,
		BestAskPx:   book.BestAskPx,
		BestAskQty:  book.BestAskQty,
		TopBids:     book.TopBids,
		TopAsks:     book.TopAsks,
		LastPrice:   st.Last.Price,
		LastQty:     st.Last.Qty,
		LastSide:    st.Last.Side,
		VWAPWindow:  st.VWAPWindow,
		VWAPSession: st.VWAPSession,
		Imbalance:   imbalance,
	}
}
