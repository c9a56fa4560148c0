package domain

import "errors"

// Invariant violations reported by Trade.Validate.
var (
	ErrMissingSymbol          = errors.New("trade symbol is required")
	ErrZeroQuantity           = errors.New("trade quantity must be non-zero")
	ErrOpenTradeHasExit       = errors.New("open trade must not carry exit or P&L fields")
	ErrClosedTradeMissingExit = errors.New("closed trade requires exit price and exit time")
	ErrUnknownStatus          = errors.New("unknown trade status")
)
