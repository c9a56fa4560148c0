package pnl

import (
	"testing"
	"time"

	"github.com/atlasbuilds77/meridian-dashboard-sub001/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func closedStockTrade(entry, exit, qty float64, stored *float64) *domain.Trade {
	exitTime := time.Date(2026, 3, 2, 21, 0, 0, 0, time.UTC)
	return &domain.Trade{
		ID:         7,
		ExternalID: "tradier:TEST:20260302",
		Symbol:     "TEST",
		AssetType:  domain.AssetStock,
		EntryPrice: entry,
		ExitPrice:  &exit,
		Quantity:   qty,
		Direction:  domain.DirectionLong,
		EntryTime:  exitTime.Add(-48 * time.Hour),
		ExitTime:   &exitTime,
		PNL:        stored,
		Status:     domain.StatusClosed,
	}
}

func TestValidateTrade(t *testing.T) {
	t.Run("matching stored value passes", func(t *testing.T) {
		// entry=10 exit=12 qty=10 -> expected 20, tolerance 3.
		assert.Nil(t, ValidateTrade(closedStockTrade(10, 12, 10, fptr(20))))
	})

	t.Run("fee-sized drift stays inside the band", func(t *testing.T) {
		assert.Nil(t, ValidateTrade(closedStockTrade(10, 12, 10, fptr(17.5))))
	})

	t.Run("large disagreement is flagged", func(t *testing.T) {
		got := ValidateTrade(closedStockTrade(10, 12, 10, fptr(5)))
		require.NotNil(t, got)
		assert.InDelta(t, 20, got.Expected, 1e-9)
		assert.InDelta(t, 5, got.Actual, 1e-9)
		assert.InDelta(t, 15, got.Diff, 1e-9)
		assert.Equal(t, int64(7), got.TradeID)
	})

	t.Run("near-zero stored values are skipped", func(t *testing.T) {
		// stored 0.50 vs expected 20 would be way out of band, but trades
		// this small are noise-dominated and never reviewed.
		assert.Nil(t, ValidateTrade(closedStockTrade(10, 12, 10, fptr(0.5))))
	})

	t.Run("no stored value means nothing to reconcile", func(t *testing.T) {
		assert.Nil(t, ValidateTrade(closedStockTrade(10, 12, 10, nil)))
	})

	t.Run("undeterminable expectation is not a mismatch", func(t *testing.T) {
		tr := closedStockTrade(10, 12, 10, fptr(50))
		tr.Direction = "MYSTERY"
		assert.Nil(t, ValidateTrade(tr))
	})
}
