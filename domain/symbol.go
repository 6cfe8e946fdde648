package domain

import (
	"fmt"
	"strings"
)

// Symbol is a normalized, exchange-facing trading pair token (e.g. "btcusdt").
// Construction always lower-cases the raw value so it is safe to use directly
// as a stream topic suffix or as a map key.
type Symbol string

func NewSymbol(raw string) (Symbol, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("symbol must not be empty")
	}
	return Symbol(strings.ToLower(trimmed)), nil
}

func (s Symbol) String() string {
	return string(s)
}
