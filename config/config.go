// Package config resolves the process's startup configuration: the
// required-by-spec CLI flags (--symbols, --topN, --log) plus a secondary
// overlay of ambient operational knobs pulled from the environment.
package config

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/holowatch/marketpulse/domain"
)

// Config is the fully resolved startup configuration: the flags required by
// the CLI contract plus the Runtime overlay.
type Config struct {
	Symbols []domain.Symbol
	TopN    int
	LogPath string

	Runtime Runtime
}

// Runtime carries operational knobs the CLI contract doesn't name directly:
// transport endpoints, timeouts, and the metrics listener address. These are
// tunable via environment variables so operators don't need a code change to
// point at a different endpoint or loosen a timeout.
type Runtime struct {
	RestBaseURL string `env:"MARKETPULSE_REST_BASE_URL" envDefault:"https://api.binance.com"`
	WSEndpoint  string `env:"MARKETPULSE_WS_ENDPOINT" envDefault:"wss://stream.binance.com:9443"`

	RestTimeoutSeconds int `env:"MARKETPULSE_REST_TIMEOUT_SECONDS" envDefault:"10"`
	RestTimeout         time.Duration `env:"-"`

	ReconcilePeriodMs int `env:"MARKETPULSE_RECONCILE_PERIOD_MS" envDefault:"20"`
	ReconcilePeriod   time.Duration `env:"-"`

	PublishIntervalSeconds int `env:"MARKETPULSE_PUBLISH_INTERVAL_SECONDS" envDefault:"1"`
	PublishInterval        time.Duration `env:"-"`

	SnapshotLimit int `env:"MARKETPULSE_SNAPSHOT_LIMIT" envDefault:"10"`

	MetricsAddr string `env:"MARKETPULSE_METRICS_ADDR" envDefault:":9090"`
	LogLevel    string `env:"MARKETPULSE_LOG_LEVEL" envDefault:"info"`
}

// Parse resolves Config from CLI args and the environment. It returns an
// error for every input-validation failure: unknown flag, missing
// --symbols, non-positive --topN.
func Parse(args []string) (*Config, error) {
	fs := flag.NewFlagSet("marketpulse", flag.ContinueOnError)

	symbolsFlag := fs.String("symbols", "", "comma-separated list of trading symbols (required)")
	topNFlag := fs.Int("topN", 5, "number of book levels per side to publish (required > 0)")
	logFlag := fs.String("log", "", "path to append published rows to; empty means stdout")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	if strings.TrimSpace(*symbolsFlag) == "" {
		return nil, fmt.Errorf("--symbols is required")
	}
	if *topNFlag <= 0 {
		return nil, fmt.Errorf("--topN must be > 0, got %d", *topNFlag)
	}

	symbols, err := parseSymbols(*symbolsFlag)
	if err != nil {
		return nil, err
	}

	var rt Runtime
	if err := env.Parse(&rt); err != nil {
		return nil, fmt.Errorf("parse runtime env: %w", err)
	}
	rt.RestTimeout = time.Duration(rt.RestTimeoutSeconds) * time.Second
	rt.ReconcilePeriod = time.Duration(rt.ReconcilePeriodMs) * time.Millisecond
	rt.PublishInterval = time.Duration(rt.PublishIntervalSeconds) * time.Second

	return &Config{
		Symbols: symbols,
		TopN:    *topNFlag,
		LogPath: *logFlag,
		Runtime: rt,
	}, nil
}

func parseSymbols(raw string) ([]domain.Symbol, error) {
	parts := strings.Split(raw, ",")
	out := make([]domain.Symbol, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			return nil, fmt.Errorf("--symbols contains an empty entry")
		}
		sym, err := domain.NewSymbol(p)
		if err != nil {
			return nil, fmt.Errorf("--symbols: %w", err)
		}
		out = append(out, sym)
	}
	return out, nil
}
