// Command marketpulse connects to a single exchange's depth and trade
// streams for a set of symbols, keeps each symbol's order book
// synchronized against the live delta stream, and periodically publishes a
// consolidated per-symbol row of book/trade state.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/holowatch/marketpulse/config"
	"github.com/holowatch/marketpulse/exchange"
	"github.com/holowatch/marketpulse/infrastructure/prometheus"
	"github.com/holowatch/marketpulse/ingest"
	"github.com/holowatch/marketpulse/logging"
	"github.com/holowatch/marketpulse/publish"
	"github.com/holowatch/marketpulse/reconcile"
	"github.com/holowatch/marketpulse/registry"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

func main() {
	_ = godotenv.Load() // optional .env overlay for the env.Parse knobs; missing file is not an error

	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		os.Exit(usageError(err))
	}

	logger := logging.New(cfg.Runtime.LogLevel)

	sink, closeSink, err := openSink(cfg.LogPath)
	if err != nil {
		logger.Error().Err(err).Str("path", cfg.LogPath).Msg("failed to open log sink")
		os.Exit(1)
	}
	defer closeSink()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, sink); err != nil {
		logger.Error().Err(err).Msg("marketpulse exited with error")
		os.Exit(1)
	}
}

func usageError(err error) int {
	os.Stderr.WriteString(err.Error() + "\n")
	return 1
}

func openSink(path string) (*os.File, func(), error) {
	if path == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}

// run wires every component together and blocks until ctx is cancelled.
// Cancellation ends the publisher and metrics server on its own; run then
// stops every sync worker, waits for the publisher and metrics server to
// return, and finally, through its defers, stops the trade streams and
// zeroes the open-order-book gauges.
func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger, sink *os.File) error {
	metrics := promclient.New()

	reg := registry.New(cfg.Symbols)
	rest := exchange.NewRestClient(cfg.Runtime.RestBaseURL, logger)

	workers := make([]*reconcile.SyncWorker, 0, len(cfg.Symbols))
	for _, sym := range cfg.Symbols {
		entry, err := reg.Get(sym)
		if err != nil {
			return err
		}

		depthQueue := ingest.NewDepthIngest()
		depthStream := exchange.NewDepthStream(sym, cfg.Runtime.WSEndpoint, depthQueue, logger)

		tradeIngest := ingest.NewTradeIngest(entry.Stats)
		tradeStream := exchange.NewTradeStream(sym, cfg.Runtime.WSEndpoint, tradeIngest, logger)
		if err := tradeStream.Start(ctx); err != nil {
			logger.Warn().Err(err).Str("symbol", sym.String()).Msg("trade stream failed to open")
		}

		worker := reconcile.NewSyncWorker(
			sym, entry.Book, depthQueue, depthStream, rest, cfg.Runtime.SnapshotLimit, logger,
			reconcile.WithMetrics(metrics),
			reconcile.WithPeriod(cfg.Runtime.ReconcilePeriod),
			reconcile.WithRestTimeout(cfg.Runtime.RestTimeout),
		)
		if err := worker.Start(ctx); err != nil {
			return err
		}
		metrics.OpenOrderBooks.WithLabelValues(sym.String()).Set(1)
		workers = append(workers, worker)

		defer func(sym2 string) { metrics.OpenOrderBooks.WithLabelValues(sym2).Set(0) }(sym.String())
		defer tradeStream.Stop()
	}

	pub := publish.NewPublisher(reg, cfg.TopN, sink, logger,
		publish.WithInterval(cfg.Runtime.PublishInterval),
		publish.WithMetrics(metrics),
	)

	metricsErrCh := make(chan error, 1)
	go func() { metricsErrCh <- metrics.Serve(ctx, cfg.Runtime.MetricsAddr, logger) }()

	pubErrCh := make(chan error, 1)
	go func() { pubErrCh <- pub.Run(ctx) }()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	for _, w := range workers {
		w.Stop()
	}
	<-pubErrCh
	<-metricsErrCh

	return nil
}
