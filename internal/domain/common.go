package domain

import "strings"

// AssetType classifies the instrument a trade was made on.
type AssetType string

const (
	AssetStock  AssetType = "stock"
	AssetOption AssetType = "option"
	AssetFuture AssetType = "future"
)

// ContractMultiplier returns the notional scaling factor for the asset type.
// One option or future contract controls 100 underlying shares.
func (a AssetType) ContractMultiplier() float64 {
	switch a {
	case AssetOption, AssetFuture:
		return 100
	default:
		return 1
	}
}

// Direction is the directional bet of a trade. LONG and CALL profit when the
// price rises; SHORT and PUT profit when it falls.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
	DirectionCall  Direction = "CALL"
	DirectionPut   Direction = "PUT"
)

// Normalize upper-cases the direction so comparisons are case-insensitive.
func (d Direction) Normalize() Direction {
	return Direction(strings.ToUpper(string(d)))
}

// IsBullish reports whether the direction profits from a rising price.
// The second return value is false for unknown directions.
func (d Direction) IsBullish() (bullish bool, known bool) {
	switch d.Normalize() {
	case DirectionLong, DirectionCall:
		return true, true
	case DirectionShort, DirectionPut:
		return false, true
	default:
		return false, false
	}
}

// OptionType distinguishes calls from puts.
type OptionType string

const (
	OptionCall OptionType = "CALL"
	OptionPut  OptionType = "PUT"
)

// TradeStatus represents the lifecycle state of a trade.
type TradeStatus string

const (
	StatusOpen   TradeStatus = "open"
	StatusClosed TradeStatus = "closed"
)

// BrokerSource identifies which connector a trade or account came from.
type BrokerSource string

const (
	SourceTradier    BrokerSource = "tradier"
	SourcePolymarket BrokerSource = "polymarket"
	SourceBinance    BrokerSource = "binance"
	SourceManual     BrokerSource = "manual"
)
