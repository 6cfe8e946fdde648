// Package promclient exposes the process's Prometheus metrics: one registry
// shared by every symbol's SyncWorker and Publisher. Adapted from the
// teacher's single-exchange open-order-book gauge into a per-symbol vector
// plus the resync/gap counters the reconciliation state machine needs to
// make its steady-state behavior observable.
package promclient

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Metrics holds every counter/gauge emitted by the order-book sync engine.
type Metrics struct {
	OpenOrderBooks *prometheus.GaugeVec
	Synchronized   *prometheus.GaugeVec
	ResyncTotal    *prometheus.CounterVec
	GapTotal       *prometheus.CounterVec
	CrossedTotal   *prometheus.CounterVec
	AppliedDeltas  *prometheus.CounterVec

	registry *prometheus.Registry
}

// New builds and registers every metric against a fresh registry, isolated
// from the default global one so tests can construct independent instances.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		OpenOrderBooks: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "marketpulse_open_order_books",
			Help: "1 while a symbol's sync worker is running, 0 otherwise.",
		}, []string{"symbol"}),
		Synchronized: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "marketpulse_synchronized",
			Help: "1 while a symbol's book is synchronized with the live stream, 0 otherwise.",
		}, []string{"symbol"}),
		ResyncTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketpulse_resync_total",
			Help: "Number of times a symbol's sync worker fetched a fresh snapshot.",
		}, []string{"symbol"}),
		GapTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketpulse_gap_total",
			Help: "Number of sequence discontinuities detected in the live delta stream.",
		}, []string{"symbol"}),
		CrossedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketpulse_crossed_book_total",
			Help: "Number of publish cycles where the book was found crossed (unhealthy).",
		}, []string{"symbol"}),
		AppliedDeltas: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketpulse_applied_deltas_total",
			Help: "Number of depth deltas applied to a symbol's book.",
		}, []string{"symbol"}),
		registry: reg,
	}

	reg.MustRegister(m.OpenOrderBooks, m.Synchronized, m.ResyncTotal, m.GapTotal, m.CrossedTotal, m.AppliedDeltas)
	reg.MustRegister(collectors.NewGoCollector())

	return m
}

// Serve starts the /metrics HTTP endpoint and blocks until ctx is
// cancelled, at which point it shuts the listener down.
func (m *Metrics) Serve(ctx context.Context, addr string, logger zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("metrics server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		return srv.Close()
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}
