package domain_test

import (
	"testing"

	"github.com/holowatch/marketpulse/domain"
	"github.com/stretchr/testify/assert"
)

func TestNewSymbol(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		want        domain.Symbol
		expectError bool
	}{
		{"LowercaseConversion", "BTCUSDT", "btcusdt", false},
		{"AlreadyLower", "ethusdt", "ethusdt", false},
		{"TrimsWhitespace", "  btcusdt  ", "btcusdt", false},
		{"Empty", "", "", true},
		{"Whitespace", "   ", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := domain.NewSymbol(tt.raw)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSymbol_String(t *testing.T) {
	s, err := domain.NewSymbol("BTCUSDT")
	assert.NoError(t, err)
	assert.Equal(t, "btcusdt", s.String())
}
