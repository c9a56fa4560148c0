package ports

import (
	"context"
	"time"

	"github.com/atlasbuilds77/meridian-dashboard-sub001/internal/domain"
)

// ClosedPosition is a broker-reported closed position, the raw input to
// trade ingestion. Gain/loss fields are pointers because not every broker
// reports them; when present they are treated as authoritative.
type ClosedPosition struct {
	ExternalID      string    // stable per broker record, dedup key
	Symbol          string    // broker ticker, may be an OCC option code
	Cost            float64   // total acquisition cost in dollars
	Proceeds        float64   // total disposal proceeds in dollars
	Quantity        float64   // contracts or shares
	OpenDate        time.Time
	CloseDate       time.Time
	GainLoss        *float64
	GainLossPercent *float64
	Term            int // holding period in days
}

// Balance is a point-in-time account balance snapshot.
type Balance struct {
	Source      domain.BrokerSource `json:"source"`
	Currency    string              `json:"currency"`
	TotalEquity float64             `json:"total_equity"`
	Cash        float64             `json:"cash"`
}

// BrokerFeed defines the read-only interface every broker connector
// implements. Connectors only produce raw records; all P&L interpretation
// happens downstream.
type BrokerFeed interface {
	// Source identifies the connector.
	Source() domain.BrokerSource
	// FetchClosedPositions retrieves closed positions since the given time.
	// A zero since value means the broker's full reporting window.
	FetchClosedPositions(ctx context.Context, since time.Time) ([]ClosedPosition, error)
	// FetchBalance retrieves the current account balance snapshot.
	FetchBalance(ctx context.Context) (*Balance, error)
}
