package occ

import (
	"testing"
	"time"

	"github.com/atlasbuilds77/meridian-dashboard-sub001/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		symbol string
		want   *Contract
	}{
		{
			name:   "QQQ call",
			symbol: "QQQ260224C00607000",
			want: &Contract{
				Underlying: "QQQ",
				Expiry:     time.Date(2026, 2, 24, 0, 0, 0, 0, time.UTC),
				Type:       domain.OptionCall,
				Strike:     607.00,
			},
		},
		{
			name:   "SPY put with fractional strike",
			symbol: "SPY240119P00470500",
			want: &Contract{
				Underlying: "SPY",
				Expiry:     time.Date(2024, 1, 19, 0, 0, 0, 0, time.UTC),
				Type:       domain.OptionPut,
				Strike:     470.50,
			},
		},
		{
			name:   "single letter underlying",
			symbol: "F251017C00012000",
			want: &Contract{
				Underlying: "F",
				Expiry:     time.Date(2025, 10, 17, 0, 0, 0, 0, time.UTC),
				Type:       domain.OptionCall,
				Strike:     12.00,
			},
		},
		{name: "plain stock ticker", symbol: "QQQ", want: nil},
		{name: "empty", symbol: "", want: nil},
		{name: "missing underlying", symbol: "260224C00607000", want: nil},
		{name: "lowercase underlying", symbol: "qqq260224C00607000", want: nil},
		{name: "bad type letter", symbol: "QQQ260224X00607000", want: nil},
		{name: "month out of range", symbol: "QQQ261324C00607000", want: nil},
		{name: "day normalizes away", symbol: "QQQ260230C00607000", want: nil},
		{name: "strike too short", symbol: "QQQ260224C0060700", want: nil},
		{name: "strike not numeric", symbol: "QQQ260224C0060700A", want: nil},
		{name: "digits in underlying", symbol: "QQ1260224C00607000", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.symbol)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want.Underlying, got.Underlying)
			assert.True(t, tt.want.Expiry.Equal(got.Expiry), "expiry %v != %v", got.Expiry, tt.want.Expiry)
			assert.Equal(t, tt.want.Type, got.Type)
			assert.InDelta(t, tt.want.Strike, got.Strike, 1e-9)
		})
	}
}

func TestIsOptionSymbol(t *testing.T) {
	assert.True(t, IsOptionSymbol("QQQ260224C00607000"))
	assert.False(t, IsOptionSymbol("QQQ"))
	assert.False(t, IsOptionSymbol("BRK.B"))
}

func TestParseFixedEpoch(t *testing.T) {
	// 99 maps to 2099, not 1999. The epoch is fixed, not rolling.
	got := Parse("IBM991231C00100000")
	require.NotNil(t, got)
	assert.Equal(t, 2099, got.Expiry.Year())
}
