// Package exchange holds the thin, real collaborators the core state
// machine depends on but doesn't own the correctness of: the REST snapshot
// client and the depth/trade WebSocket streams. Their wire decoding is
// exercised here, but the sequencing logic they feed lives in package
// reconcile.
package exchange

import (
	"errors"
	"strconv"

	"github.com/holowatch/marketpulse/domain"
)

// ErrSnapshotUnavailable is returned by RestClient.LoadSnapshot for any
// transport, status, or decode failure. Callers treat it as "try again
// later", never as fatal.
var ErrSnapshotUnavailable = errors.New("exchange: snapshot unavailable")

// depthSnapshotJSON is the REST response body for a depth snapshot.
type depthSnapshotJSON struct {
	LastUpdateID uint64     `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

// depthDeltaJSON is one incremental depth message off the WebSocket stream.
// U/u are pointers so a message missing either field can be told apart from
// one that legitimately carries 0.
type depthDeltaJSON struct {
	FirstUpdateID *uint64    `json:"U"`
	LastUpdateID  *uint64    `json:"u"`
	Bids          [][]string `json:"b"`
	Asks          [][]string `json:"a"`
}

// tradeJSON is one trade event off the WebSocket stream.
type tradeJSON struct {
	Price        string `json:"p"`
	Qty          string `json:"q"`
	IsBuyerMaker bool   `json:"m"`
}

// parseLevels decodes [[priceStr, qtyStr], ...] pairs to PriceLevel values.
// A level that fails to parse is skipped silently rather than failing the
// whole message — one bad level shouldn't drop an otherwise-valid snapshot
// or delta.
func parseLevels(raw [][]string) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, len(raw))
	for _, pair := range raw {
		if len(pair) != 2 {
			continue
		}
		price, err := strconv.ParseFloat(pair[0], 64)
		if err != nil {
			continue
		}
		qty, err := strconv.ParseFloat(pair[1], 64)
		if err != nil {
			continue
		}
		out = append(out, domain.PriceLevel{Price: price, Qty: qty})
	}
	return out
}
