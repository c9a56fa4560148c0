// Package risk enforces per-account limits on manually entered trades.
// Synced broker trades are historical facts and bypass these checks.
package risk

import (
	"fmt"

	"github.com/atlasbuilds77/meridian-dashboard-sub001/internal/domain"
	"github.com/atlasbuilds77/meridian-dashboard-sub001/internal/ports"
)

// CheckNewTrade validates a manual trade against the account's settings.
// A zero MaxPositionSize means no limit. Notional is quantity times entry
// price times the contract multiplier.
func CheckNewTrade(acct *domain.Account, t *domain.Trade) error {
	if !acct.Settings.Enabled {
		return fmt.Errorf("account %d is disabled: %w", acct.ID, ports.ErrPermissionDenied)
	}

	if max := acct.Settings.MaxPositionSize; max > 0 {
		notional := t.Quantity * t.EntryPrice * t.AssetType.ContractMultiplier()
		if notional > max {
			return fmt.Errorf("position notional %.2f exceeds account limit %.2f: %w",
				notional, max, ports.ErrInvalidRequest)
		}
	}
	return nil
}
