// Package analytics rolls closed trades up into dashboard statistics.
package analytics

import (
	"sort"

	"github.com/atlasbuilds77/meridian-dashboard-sub001/internal/domain"
	"github.com/atlasbuilds77/meridian-dashboard-sub001/internal/pnl"
)

// Stats holds aggregate performance figures over a set of closed trades.
type Stats struct {
	TotalTrades int     `json:"total_trades"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	WinRate     float64 `json:"win_rate"` // percent, 0 when no classified trades
	TotalPnl    float64 `json:"total_pnl"`
	AverageWin  float64 `json:"average_win"`
	AverageLoss float64 `json:"average_loss"`

	// CurrentStreak is the run ending at the most recent trade: positive for
	// an active win run, negative for an active loss run.
	CurrentStreak int `json:"current_streak"`
	MaxWinStreak  int `json:"max_win_streak"`
	MaxLossStreak int `json:"max_loss_streak"`

	// MaxDrawdown is the largest peak-to-trough decline of cumulative P&L,
	// in dollars, walked in chronological order.
	MaxDrawdown float64 `json:"max_drawdown"`

	Daily    []DayPnl `json:"daily,omitempty"`
	BestDay  *DayPnl  `json:"best_day,omitempty"`
	WorstDay *DayPnl  `json:"worst_day,omitempty"`
}

// DayPnl is one day's aggregate P&L, grouped on the exit date.
type DayPnl struct {
	Day    string  `json:"day"` // YYYY-MM-DD
	Pnl    float64 `json:"pnl"`
	Trades int     `json:"trades"`
}

// Compute rolls up the trade set. Only closed trades with a resolvable P&L
// (stored or derived) participate in win/loss classification, streaks and
// drawdown; everything else is skipped, never counted as a zero. A P&L of
// exactly zero classifies as a loss; ties are losses by policy.
func Compute(trades []*domain.Trade) Stats {
	var s Stats

	// Trades arrive ordered by entry time ascending from the repository, but
	// callers may hand us an arbitrary set. Stable sort keeps same-timestamp
	// trades in input order so day ties stay first-encountered.
	sorted := make([]*domain.Trade, len(trades))
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EntryTime.Before(sorted[j].EntryTime)
	})

	var (
		winRun, lossRun int
		cumulative      float64
		peak            float64
		totalWin        float64
		totalLoss       float64
		dayIndex        = map[string]int{}
	)

	for _, t := range sorted {
		if !t.IsClosed() {
			continue
		}
		resolved := pnl.Resolve(t)
		if resolved == nil {
			continue
		}
		s.TotalTrades++
		v := resolved.Pnl
		s.TotalPnl += v

		if v > 0 {
			s.Wins++
			totalWin += v
			winRun++
			lossRun = 0
			if winRun > s.MaxWinStreak {
				s.MaxWinStreak = winRun
			}
		} else {
			s.Losses++
			totalLoss += v
			lossRun++
			winRun = 0
			if lossRun > s.MaxLossStreak {
				s.MaxLossStreak = lossRun
			}
		}

		cumulative += v
		if cumulative > peak {
			peak = cumulative
		}
		if dd := peak - cumulative; dd > s.MaxDrawdown {
			s.MaxDrawdown = dd
		}

		if t.ExitTime != nil {
			day := t.ExitTime.Format("2006-01-02")
			idx, ok := dayIndex[day]
			if !ok {
				idx = len(s.Daily)
				dayIndex[day] = idx
				s.Daily = append(s.Daily, DayPnl{Day: day})
			}
			s.Daily[idx].Pnl += v
			s.Daily[idx].Trades++
		}
	}

	if winRun > 0 {
		s.CurrentStreak = winRun
	} else if lossRun > 0 {
		s.CurrentStreak = -lossRun
	}

	if s.Wins > 0 {
		s.AverageWin = totalWin / float64(s.Wins)
	}
	if s.Losses > 0 {
		s.AverageLoss = totalLoss / float64(s.Losses)
	}
	if classified := s.Wins + s.Losses; classified > 0 {
		s.WinRate = 100 * float64(s.Wins) / float64(classified)
	}

	// Best/worst day: strict comparisons keep ties first-encountered.
	for i := range s.Daily {
		d := s.Daily[i]
		if s.BestDay == nil || d.Pnl > s.BestDay.Pnl {
			s.BestDay = &s.Daily[i]
		}
		if s.WorstDay == nil || d.Pnl < s.WorstDay.Pnl {
			s.WorstDay = &s.Daily[i]
		}
	}

	return s
}
