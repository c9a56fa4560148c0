package analytics

import (
	"testing"
	"time"

	"github.com/atlasbuilds77/meridian-dashboard-sub001/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 1, 5, 15, 0, 0, 0, time.UTC)

// closedTrade builds the i-th closed stock trade of the sequence with the
// given stored P&L, one hour apart, exiting the same day it was entered.
func closedTrade(i int, storedPnl float64) *domain.Trade {
	entry := baseTime.Add(time.Duration(i) * 24 * time.Hour)
	exit := entry.Add(time.Hour)
	exitPrice := 100.0
	return &domain.Trade{
		ID:         int64(i + 1),
		Symbol:     "SPY",
		AssetType:  domain.AssetStock,
		EntryPrice: 100,
		ExitPrice:  &exitPrice,
		Quantity:   1,
		Direction:  domain.DirectionLong,
		EntryTime:  entry,
		ExitTime:   &exit,
		PNL:        &storedPnl,
		Status:     domain.StatusClosed,
	}
}

func TestComputeEmpty(t *testing.T) {
	s := Compute(nil)
	assert.Equal(t, 0, s.TotalTrades)
	assert.Equal(t, 0.0, s.WinRate)
	assert.Equal(t, 0, s.CurrentStreak)
	assert.Nil(t, s.BestDay)
	assert.Nil(t, s.WorstDay)
}

func TestComputeStreaks(t *testing.T) {
	// win, win, loss, win
	trades := []*domain.Trade{
		closedTrade(0, 10),
		closedTrade(1, 10),
		closedTrade(2, -5),
		closedTrade(3, 10),
	}
	s := Compute(trades)

	assert.Equal(t, 4, s.TotalTrades)
	assert.Equal(t, 3, s.Wins)
	assert.Equal(t, 1, s.Losses)
	assert.Equal(t, 2, s.MaxWinStreak)
	assert.Equal(t, 1, s.MaxLossStreak)
	assert.Equal(t, 1, s.CurrentStreak)
	assert.InDelta(t, 75, s.WinRate, 1e-9)
}

func TestComputeCurrentLossStreakIsNegative(t *testing.T) {
	trades := []*domain.Trade{
		closedTrade(0, 10),
		closedTrade(1, -5),
		closedTrade(2, -5),
	}
	s := Compute(trades)
	assert.Equal(t, -2, s.CurrentStreak)
}

func TestComputeDrawdown(t *testing.T) {
	// Cumulative walk: 100, 50, 150, 20.
	// Peaks:           100, 100, 150, 150.
	// Drawdowns:       0, 50, 0, 130.
	trades := []*domain.Trade{
		closedTrade(0, 100),
		closedTrade(1, -50),
		closedTrade(2, 100),
		closedTrade(3, -130),
	}
	s := Compute(trades)
	assert.InDelta(t, 130, s.MaxDrawdown, 1e-9)
	assert.InDelta(t, 20, s.TotalPnl, 1e-9)
}

func TestComputeTiesAreLosses(t *testing.T) {
	trades := []*domain.Trade{
		closedTrade(0, 10),
		closedTrade(1, 0), // flat trade classifies as a loss
	}
	s := Compute(trades)
	assert.Equal(t, 1, s.Wins)
	assert.Equal(t, 1, s.Losses)
	assert.InDelta(t, 50, s.WinRate, 1e-9)
}

func TestComputeAverages(t *testing.T) {
	trades := []*domain.Trade{
		closedTrade(0, 30),
		closedTrade(1, 10),
		closedTrade(2, -20),
	}
	s := Compute(trades)
	assert.InDelta(t, 20, s.AverageWin, 1e-9)
	assert.InDelta(t, -20, s.AverageLoss, 1e-9)
}

func TestComputeSkipsOpenAndUnresolvable(t *testing.T) {
	open := &domain.Trade{
		Symbol:     "SPY",
		AssetType:  domain.AssetStock,
		EntryPrice: 100,
		Quantity:   1,
		Direction:  domain.DirectionLong,
		EntryTime:  baseTime,
		Status:     domain.StatusOpen,
	}
	// Closed but with no stored P&L and an unknown direction: unresolvable.
	unresolvable := closedTrade(1, 0)
	unresolvable.PNL = nil
	unresolvable.Direction = "WEIRD"

	s := Compute([]*domain.Trade{open, unresolvable, closedTrade(2, 15)})
	assert.Equal(t, 1, s.TotalTrades)
	assert.Equal(t, 1, s.Wins)
	assert.InDelta(t, 100, s.WinRate, 1e-9)
}

func TestComputeDerivesWhenStoredAbsent(t *testing.T) {
	tr := closedTrade(0, 0)
	tr.PNL = nil
	exitPrice := 110.0
	tr.ExitPrice = &exitPrice // entry 100 -> derived +10
	s := Compute([]*domain.Trade{tr})
	assert.Equal(t, 1, s.Wins)
	assert.InDelta(t, 10, s.TotalPnl, 1e-9)
}

func TestComputeDailyGrouping(t *testing.T) {
	day1a := closedTrade(0, 40)
	day1b := closedTrade(0, -15)
	day2 := closedTrade(1, -60)
	day3 := closedTrade(2, 25)

	s := Compute([]*domain.Trade{day1a, day1b, day2, day3})
	require.Len(t, s.Daily, 3)

	require.NotNil(t, s.BestDay)
	assert.InDelta(t, 25, s.BestDay.Pnl, 1e-9)
	require.NotNil(t, s.WorstDay)
	assert.InDelta(t, -60, s.WorstDay.Pnl, 1e-9)
	assert.Equal(t, 2, s.Daily[0].Trades)
}

func TestComputeBestDayTieFirstEncountered(t *testing.T) {
	a := closedTrade(0, 25)
	b := closedTrade(1, 25)
	s := Compute([]*domain.Trade{a, b})
	require.NotNil(t, s.BestDay)
	assert.Equal(t, s.Daily[0].Day, s.BestDay.Day)
}
