// Package pnl derives and reconciles trade profit/loss.
//
// Derivation is a pure fallback for rows whose broker-reported P&L is
// absent; a stored value always wins (see Resolve). All arithmetic is
// float64; rounding drift is accepted and bounded by the reconciliation
// tolerance band.
package pnl

import (
	"github.com/atlasbuilds77/meridian-dashboard-sub001/internal/domain"
)

// Derived is a non-persisted P&L value computed from a trade's legs.
// PnlPercent is nil when the entry price is zero (division guard); the
// percent figure is a price ratio and is never scaled by the contract
// multiplier.
type Derived struct {
	Pnl        float64  `json:"pnl"`
	PnlPercent *float64 `json:"pnl_percent,omitempty"`
}

// Derive computes dollar and percent P&L from entry/exit price, quantity,
// direction and asset type.
//
// It returns nil (undetermined) when the exit price is nil or zero, or when
// the direction is unknown, never a defaulted zero that could be mistaken
// for a flat trade. It is pure and total: no inputs panic.
func Derive(entryPrice float64, exitPrice *float64, quantity float64, direction domain.Direction, assetType domain.AssetType) *Derived {
	if exitPrice == nil || *exitPrice == 0 {
		return nil
	}
	bullish, known := direction.IsBullish()
	if !known {
		return nil
	}

	mult := assetType.ContractMultiplier()
	move := *exitPrice - entryPrice
	if !bullish {
		move = -move
	}

	d := &Derived{Pnl: move * quantity * mult}
	if entryPrice != 0 {
		pct := (*exitPrice - entryPrice) / entryPrice * 100
		if !bullish {
			pct = -pct
		}
		d.PnlPercent = &pct
	}
	return d
}

// Resolve returns the trade's P&L: the stored value when present (the broker
// feed is authoritative), otherwise the derived value. An explicit
// two-branch COALESCE, kept out of the database on purpose.
func Resolve(t *domain.Trade) *Derived {
	if t.PNL != nil {
		return &Derived{Pnl: *t.PNL, PnlPercent: t.PNLPercent}
	}
	return Derive(t.EntryPrice, t.ExitPrice, t.Quantity, t.Direction, t.AssetType)
}
