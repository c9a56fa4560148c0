package domain

import "time"

// Trade is one completed or open position tracked by the dashboard.
//
// Nullable columns are pointers: for an open trade the exit and P&L fields
// are nil. For a closed trade the exit fields must be present while the P&L
// fields may still be nil, in which case the value is derived at read time,
// never defaulted to zero.
type Trade struct {
	ID         int64        `json:"id"`
	ExternalID string       `json:"external_id"` // broker-assigned, dedup key for sync upserts
	AccountID  int64        `json:"account_id"`
	Source     BrokerSource `json:"source"`

	Symbol     string      `json:"symbol"`
	AssetType  AssetType   `json:"asset_type"`
	Underlying *string     `json:"underlying,omitempty"`
	Strike     *float64    `json:"strike,omitempty"`
	Expiry     *time.Time  `json:"expiry,omitempty"`
	OptionType *OptionType `json:"option_type,omitempty"`

	EntryPrice float64   `json:"entry_price"`
	ExitPrice  *float64  `json:"exit_price,omitempty"`
	Quantity   float64   `json:"quantity"`
	Direction  Direction `json:"direction"`

	EntryTime time.Time  `json:"entry_time"`
	ExitTime  *time.Time `json:"exit_time,omitempty"`

	// Stored P&L is authoritative when present (broker gain/loss feed).
	PNL        *float64    `json:"pnl,omitempty"`
	PNLPercent *float64    `json:"pnl_percent,omitempty"`
	Status     TradeStatus `json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsOpen checks if the trade status is open.
func (t *Trade) IsOpen() bool {
	return t.Status == StatusOpen
}

// IsClosed checks if the trade status is closed.
func (t *Trade) IsClosed() bool {
	return t.Status == StatusClosed
}

// Validate enforces the status/exit-field invariant.
func (t *Trade) Validate() error {
	if t.Symbol == "" {
		return ErrMissingSymbol
	}
	if t.Quantity == 0 {
		return ErrZeroQuantity
	}
	switch t.Status {
	case StatusOpen:
		if t.ExitPrice != nil || t.ExitTime != nil || t.PNL != nil || t.PNLPercent != nil {
			return ErrOpenTradeHasExit
		}
	case StatusClosed:
		if t.ExitPrice == nil || t.ExitTime == nil {
			return ErrClosedTradeMissingExit
		}
	default:
		return ErrUnknownStatus
	}
	return nil
}
