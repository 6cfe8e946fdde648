package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/holowatch/marketpulse/domain"
	"github.com/rs/zerolog"
)

// RestClient fetches initial and resync depth snapshots over plain HTTP.
// Every request carries the caller's context, so a SyncWorker can bound it
// with a timeout and cancel it on Stop().
type RestClient struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewRestClient builds a client against baseURL (e.g. "https://api.binance.com").
// The http.Client itself carries no timeout — callers bound each call via
// context, per the design requirement that REST calls be interruptible at
// shutdown rather than blocking on a client-wide deadline.
func NewRestClient(baseURL string, logger zerolog.Logger) *RestClient {
	return &RestClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// LoadSnapshot fetches a depth snapshot for symbol at the given limit and
// loads it into book via OrderBook.LoadSnapshot, returning the snapshot's
// lastUpdateId. The body is fully decoded and checked before the book is
// touched, so on any failure the book keeps its previous contents; no
// rollback logic exists, and the caller's next resync attempt fully
// overwrites the book anyway.
func (c *RestClient) LoadSnapshot(ctx context.Context, symbol domain.Symbol, book *domain.OrderBook, limit int) (uint64, error) {
	url := fmt.Sprintf("%s/api/v3/depth?symbol=%s&limit=%d", c.baseURL, strings.ToUpper(symbol.String()), limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: build request: %v", ErrSnapshotUnavailable, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSnapshotUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: status %d", ErrSnapshotUnavailable, resp.StatusCode)
	}

	var payload depthSnapshotJSON
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("%w: decode body: %v", ErrSnapshotUnavailable, err)
	}
	if payload.LastUpdateID == 0 {
		return 0, fmt.Errorf("%w: missing lastUpdateId", ErrSnapshotUnavailable)
	}

	book.LoadSnapshot(parseLevels(payload.Bids), parseLevels(payload.Asks))

	c.logger.Debug().
		Str("symbol", symbol.String()).
		Uint64("lastUpdateId", payload.LastUpdateID).
		Int("bids", len(payload.Bids)).
		Int("asks", len(payload.Asks)).
		Msg("loaded snapshot")

	return payload.LastUpdateID, nil
}

// DefaultTimeout is the recommended REST timeout. Nothing in this module
// reads it: SyncWorker and config.Runtime each default to 10s on their own.
const DefaultTimeout = 10 * time.Second
