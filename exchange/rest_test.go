package exchange_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/holowatch/marketpulse/domain"
	"github.com/holowatch/marketpulse/exchange"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustSymbol(t *testing.T) domain.Symbol {
	s, err := domain.NewSymbol("btcusdt")
	require.NoError(t, err)
	return s
}

func TestRestClient_LoadSnapshot_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"lastUpdateId":42,"bids":[["100.5","1.0"]],"asks":[["101.0","2.0"]]}`))
	}))
	defer srv.Close()

	client := exchange.NewRestClient(srv.URL, zerolog.Nop())
	book := domain.NewOrderBook(mustSymbol(t))

	id, err := client.LoadSnapshot(context.Background(), mustSymbol(t), book, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)

	snap := book.Snapshot(5)
	assert.Equal(t, 100.5, snap.BestBidPx)
	assert.Equal(t, 101.0, snap.BestAskPx)
}

func TestRestClient_LoadSnapshot_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := exchange.NewRestClient(srv.URL, zerolog.Nop())
	book := domain.NewOrderBook(mustSymbol(t))

	_, err := client.LoadSnapshot(context.Background(), mustSymbol(t), book, 10)
	assert.ErrorIs(t, err, exchange.ErrSnapshotUnavailable)
}

func TestRestClient_LoadSnapshot_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	client := exchange.NewRestClient(srv.URL, zerolog.Nop())
	book := domain.NewOrderBook(mustSymbol(t))

	_, err := client.LoadSnapshot(context.Background(), mustSymbol(t), book, 10)
	assert.ErrorIs(t, err, exchange.ErrSnapshotUnavailable)
}

func TestRestClient_LoadSnapshot_MissingLastUpdateId(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"bids":[],"asks":[]}`))
	}))
	defer srv.Close()

	client := exchange.NewRestClient(srv.URL, zerolog.Nop())
	book := domain.NewOrderBook(mustSymbol(t))

	_, err := client.LoadSnapshot(context.Background(), mustSymbol(t), book, 10)
	assert.ErrorIs(t, err, exchange.ErrSnapshotUnavailable)
}
