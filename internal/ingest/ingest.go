// Package ingest normalizes broker-reported closed positions into domain
// trades.
package ingest

import (
	"fmt"
	"math"

	"github.com/atlasbuilds77/meridian-dashboard-sub001/internal/domain"
	"github.com/atlasbuilds77/meridian-dashboard-sub001/internal/occ"
	"github.com/atlasbuilds77/meridian-dashboard-sub001/internal/ports"
)

// Normalize converts one raw closed-position record into a closed trade for
// the given account. Option symbols are classified via their ticker code;
// anything that does not parse falls back to stock handling.
//
// Direction for options follows the contract type. Plain stock positions
// default to LONG regardless of the P&L sign: the gain/loss feed does not
// carry a side, so short stock positions are mislabeled. Known
// simplification, kept deliberately.
func Normalize(accountID int64, source domain.BrokerSource, rec ports.ClosedPosition) (*domain.Trade, error) {
	if rec.Symbol == "" {
		return nil, fmt.Errorf("closed position has no symbol: %w", ports.ErrInvalidRequest)
	}
	qty := math.Abs(rec.Quantity)
	if qty == 0 {
		return nil, fmt.Errorf("closed position %q has zero quantity: %w", rec.Symbol, ports.ErrInvalidRequest)
	}

	t := &domain.Trade{
		ExternalID: rec.ExternalID,
		AccountID:  accountID,
		Source:     source,
		Symbol:     rec.Symbol,
		AssetType:  domain.AssetStock,
		Quantity:   qty,
		Direction:  domain.DirectionLong,
		EntryTime:  rec.OpenDate,
		ExitTime:   &rec.CloseDate,
		PNL:        rec.GainLoss,
		PNLPercent: rec.GainLossPercent,
		Status:     domain.StatusClosed,
	}

	if contract := occ.Parse(rec.Symbol); contract != nil {
		t.AssetType = domain.AssetOption
		t.Underlying = &contract.Underlying
		t.Strike = &contract.Strike
		expiry := contract.Expiry
		t.Expiry = &expiry
		optType := contract.Type
		t.OptionType = &optType
		t.Direction = domain.Direction(contract.Type)
	}

	// Cost and proceeds are whole-position dollar figures; recover per-unit
	// prices by dividing out quantity and the contract multiplier.
	mult := t.AssetType.ContractMultiplier()
	t.EntryPrice = rec.Cost / (qty * mult)
	exit := rec.Proceeds / (qty * mult)
	t.ExitPrice = &exit

	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("normalized trade for %q is invalid: %w", rec.Symbol, err)
	}
	return t, nil
}

// NormalizeAll converts a batch, collecting per-record errors without
// aborting the batch. One malformed record must not poison a sync run.
func NormalizeAll(accountID int64, source domain.BrokerSource, recs []ports.ClosedPosition) ([]*domain.Trade, []error) {
	trades := make([]*domain.Trade, 0, len(recs))
	var errs []error
	for _, rec := range recs {
		t, err := Normalize(accountID, source, rec)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		trades = append(trades, t)
	}
	return trades, errs
}
