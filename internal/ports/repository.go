package ports

import (
	"context"
	"time"

	"github.com/atlasbuilds77/meridian-dashboard-sub001/internal/domain"
)

// TradeFilter narrows a trade listing. Nil/zero fields are ignored.
type TradeFilter struct {
	AccountID *int64
	Symbol    string
	Status    *domain.TradeStatus
	From      *time.Time // inclusive lower bound on entry time
	To        *time.Time // exclusive upper bound on entry time
	Limit     int
}

// TradeRepository defines the interface for storing and retrieving trades.
// The trade table is an append-only audit trail: there is deliberately no
// delete operation.
type TradeRepository interface {
	// CreateTrade saves a new trade record and returns its assigned ID.
	CreateTrade(ctx context.Context, trade *domain.Trade) (int64, error)
	// UpsertTrade inserts the trade or, when a row with the same external ID
	// already exists, refreshes its mutable columns. Returns the row ID and
	// whether a new row was created. Safe to re-run: sync is idempotent per
	// external trade ID.
	UpsertTrade(ctx context.Context, trade *domain.Trade) (id int64, created bool, err error)
	// FindByID retrieves a trade by its internal ID. Returns nil, nil if not found.
	FindByID(ctx context.Context, id int64) (*domain.Trade, error)
	// FindByExternalID retrieves a trade by its broker-assigned ID.
	// Returns nil, nil if not found.
	FindByExternalID(ctx context.Context, externalID string) (*domain.Trade, error)
	// FindTrades retrieves trades matching the filter, ordered by entry time ascending.
	FindTrades(ctx context.Context, filter TradeFilter) ([]*domain.Trade, error)
	// CloseTrade transitions an open trade to closed with the given exit leg.
	CloseTrade(ctx context.Context, id int64, exitPrice float64, exitTime time.Time) error
}

// AccountRepository defines the interface for account administration.
type AccountRepository interface {
	// CreateAccount saves a new account with its settings and returns its ID.
	CreateAccount(ctx context.Context, acct *domain.Account) (int64, error)
	// FindAccountByID retrieves an account by ID. Returns nil, nil if not found.
	FindAccountByID(ctx context.Context, id int64) (*domain.Account, error)
	// ListAccounts retrieves all accounts, ordered by creation time.
	ListAccounts(ctx context.Context) ([]*domain.Account, error)
	// UpdateAccountSettings updates the settings row and the account's
	// updated_at stamp in a single transaction spanning both tables.
	UpdateAccountSettings(ctx context.Context, accountID int64, settings domain.AccountSettings) error
}
