package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/holowatch/marketpulse/domain"
	"github.com/recws-org/recws"
	"github.com/rs/zerolog"
)

// DepthPusher is the narrow slice of ingest.DepthIngest the stream needs:
// somewhere to hand off a parsed delta without blocking on the reconcile
// loop's drain.
type DepthPusher interface {
	Push(update *domain.DepthUpdate)
}

// DepthStream wraps an auto-reconnecting WebSocket connection to one
// symbol's depth-diff topic and decodes each frame into a domain.DepthUpdate
// pushed onto a DepthPusher. Connection-lifecycle events are log-only — a
// Close/Error never synthesizes an update.
type DepthStream struct {
	symbol   domain.Symbol
	endpoint string
	pusher   DepthPusher
	logger   zerolog.Logger

	conn    *recws.RecConn
	running atomic.Bool
}

// NewDepthStream builds a stream for symbol against a base WS endpoint
// (e.g. "wss://stream.binance.com:9443").
func NewDepthStream(symbol domain.Symbol, endpoint string, pusher DepthPusher, logger zerolog.Logger) *DepthStream {
	return &DepthStream{
		symbol:   symbol,
		endpoint: endpoint,
		pusher:   pusher,
		logger:   logger,
	}
}

// Start dials the stream and begins decoding frames in a background
// goroutine. It returns once the dial has been issued; the connection
// itself may still be completing its handshake — Dial is fire-and-forget.
func (s *DepthStream) Start(ctx context.Context) error {
	s.running.Store(true)

	s.conn = &recws.RecConn{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 5 * time.Second,
		KeepAliveTimeout: 20 * time.Second,
	}
	url := fmt.Sprintf("%s/ws/%s@depth", s.endpoint, s.symbol.String())
	s.conn.Dial(url, nil)

	go s.read()
	return nil
}

// Stop tears down the connection and stops the read loop. Idempotent: a
// second Stop on an already-stopped stream is a no-op.
func (s *DepthStream) Stop() error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if s.conn != nil {
		s.conn.Close()
	}
	return nil
}

func (s *DepthStream) read() {
	for s.running.Load() {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			if !s.running.Load() {
				return
			}
			s.logger.Warn().Err(err).Str("symbol", s.symbol.String()).Msg("depth stream read error")
			time.Sleep(time.Second)
			continue
		}

		var raw depthDeltaJSON
		if err := json.Unmarshal(msg, &raw); err != nil {
			s.logger.Warn().Err(err).Str("symbol", s.symbol.String()).Msg("depth delta decode error")
			continue
		}
		if raw.FirstUpdateID == nil || raw.LastUpdateID == nil {
			continue // missing U/u: dropped silently
		}

		update := domain.NewDepthUpdate(
			*raw.FirstUpdateID, *raw.LastUpdateID,
			parseLevels(raw.Bids), parseLevels(raw.Asks),
		)
		if !update.Valid() {
			continue // U > u is invalid input, dropped at the ingest layer
		}

		s.pusher.Push(update)
	}
}
