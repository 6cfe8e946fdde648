package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/holowatch/marketpulse/domain"
	"github.com/holowatch/marketpulse/stats"
	"github.com/recws-org/recws"
	"github.com/rs/zerolog"
)

// TradeReceiver is the narrow slice of ingest.TradeIngest the stream needs.
type TradeReceiver interface {
	OnTrade(price, qty float64, side stats.Side)
}

// TradeStream wraps an auto-reconnecting WebSocket connection to one
// symbol's trade topic and decodes each frame into a trade event forwarded
// to a TradeReceiver. No sequencing is needed for trades, so unlike
// DepthStream there is no queue behind it.
type TradeStream struct {
	symbol   domain.Symbol
	endpoint string
	receiver TradeReceiver
	logger   zerolog.Logger

	conn    *recws.RecConn
	running atomic.Bool
}

func NewTradeStream(symbol domain.Symbol, endpoint string, receiver TradeReceiver, logger zerolog.Logger) *TradeStream {
	return &TradeStream{
		symbol:   symbol,
		endpoint: endpoint,
		receiver: receiver,
		logger:   logger,
	}
}

func (s *TradeStream) Start(ctx context.Context) error {
	s.running.Store(true)

	s.conn = &recws.RecConn{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 5 * time.Second,
		KeepAliveTimeout: 20 * time.Second,
	}
	url := fmt.Sprintf("%s/ws/%s@trade", s.endpoint, s.symbol.String())
	s.conn.Dial(url, nil)

	go s.read()
	return nil
}

func (s *TradeStream) Stop() error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if s.conn != nil {
		s.conn.Close()
	}
	return nil
}

func (s *TradeStream) read() {
	for s.running.Load() {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			if !s.running.Load() {
				return
			}
			s.logger.Warn().Err(err).Str("symbol", s.symbol.String()).Msg("trade stream read error")
			time.Sleep(time.Second)
			continue
		}

		var raw tradeJSON
		if err := json.Unmarshal(msg, &raw); err != nil {
			s.logger.Warn().Err(err).Str("symbol", s.symbol.String()).Msg("trade decode error")
			continue
		}

		price, err := strconv.ParseFloat(raw.Price, 64)
		if err != nil {
			continue
		}
		qty, err := strconv.ParseFloat(raw.Qty, 64)
		if err != nil {
			continue
		}

		s.receiver.OnTrade(price, qty, stats.SideFromIsBuyerMaker(raw.IsBuyerMaker))
	}
}
