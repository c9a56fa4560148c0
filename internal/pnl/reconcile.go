package pnl

import (
	"math"

	"github.com/atlasbuilds77/meridian-dashboard-sub001/internal/domain"
)

const (
	// toleranceRatio and toleranceFloor define the band inside which a
	// stored/derived disagreement is treated as fee or rounding noise.
	toleranceRatio = 0.10
	toleranceFloor = 1.0

	// Trades with |stored P&L| at or below this are skipped entirely:
	// near-zero results are noise-dominated.
	minReviewable = 1.0
)

// Mismatch reports a stored P&L that disagrees with the value recomputed
// from the trade's legs. It carries enough for a human reviewer to decide
// whether the discrepancy is a fee artifact or a data error. Validation
// never auto-corrects.
type Mismatch struct {
	TradeID    int64   `json:"trade_id"`
	ExternalID string  `json:"external_id"`
	Symbol     string  `json:"symbol"`
	Expected   float64 `json:"expected"`
	Actual     float64 `json:"actual"`
	Diff       float64 `json:"diff"`
}

// ValidateTrade compares the trade's stored P&L against the expected value
// recomputed from its legs. It returns nil when the trade has no stored
// P&L, when the expected value is undeterminable, or when the difference
// sits inside the tolerance band.
func ValidateTrade(t *domain.Trade) *Mismatch {
	if t.PNL == nil {
		return nil
	}
	stored := *t.PNL
	if math.Abs(stored) <= minReviewable {
		return nil
	}

	expected := Derive(t.EntryPrice, t.ExitPrice, t.Quantity, t.Direction, t.AssetType)
	if expected == nil {
		return nil
	}

	tolerance := math.Abs(expected.Pnl)*toleranceRatio + toleranceFloor
	diff := math.Abs(stored - expected.Pnl)
	if diff <= tolerance {
		return nil
	}

	return &Mismatch{
		TradeID:    t.ID,
		ExternalID: t.ExternalID,
		Symbol:     t.Symbol,
		Expected:   expected.Pnl,
		Actual:     stored,
		Diff:       diff,
	}
}
