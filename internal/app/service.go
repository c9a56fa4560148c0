// Package app contains the dashboard service, which wires broker feeds,
// the repository and the P&L engine together behind one use-case API.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/atlasbuilds77/meridian-dashboard-sub001/internal/analytics"
	"github.com/atlasbuilds77/meridian-dashboard-sub001/internal/domain"
	"github.com/atlasbuilds77/meridian-dashboard-sub001/internal/ingest"
	"github.com/atlasbuilds77/meridian-dashboard-sub001/internal/pnl"
	"github.com/atlasbuilds77/meridian-dashboard-sub001/internal/ports"
	"github.com/atlasbuilds77/meridian-dashboard-sub001/internal/risk"
)

// Service exposes the dashboard use cases. It owns no domain rules of its
// own: P&L math lives in pnl, aggregation in analytics, normalization in
// ingest. The service sequences them and talks to storage.
type Service struct {
	trades   ports.TradeRepository
	accounts ports.AccountRepository
	feeds    map[domain.BrokerSource]ports.BrokerFeed
	logger   ports.Logger
	lookback time.Duration
}

// Config holds the dependencies required by the service.
type Config struct {
	Trades       ports.TradeRepository
	Accounts     ports.AccountRepository
	Feeds        []ports.BrokerFeed
	Logger       ports.Logger
	LookbackDays int // sync window; 0 means the broker's full reporting window
}

// NewService creates the dashboard service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Trades == nil || cfg.Accounts == nil {
		return nil, fmt.Errorf("trade and account repositories are required: %w", ports.ErrConfigurationError)
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required: %w", ports.ErrConfigurationError)
	}

	feeds := make(map[domain.BrokerSource]ports.BrokerFeed, len(cfg.Feeds))
	for _, f := range cfg.Feeds {
		if f == nil {
			continue
		}
		feeds[f.Source()] = f
	}

	return &Service{
		trades:   cfg.Trades,
		accounts: cfg.Accounts,
		feeds:    feeds,
		logger:   cfg.Logger,
		lookback: time.Duration(cfg.LookbackDays) * 24 * time.Hour,
	}, nil
}

// SyncResult reports the outcome of syncing one broker feed.
type SyncResult struct {
	Source     domain.BrokerSource `json:"source"`
	Fetched    int                 `json:"fetched"`
	Created    int                 `json:"created"`
	Updated    int                 `json:"updated"`
	Skipped    int                 `json:"skipped"`
	Mismatches []pnl.Mismatch      `json:"mismatches,omitempty"`
	Error      string              `json:"error,omitempty"`
}

// SyncAccount pulls closed positions from every configured broker feed into
// the account's trade history. Each feed is synced independently: a broker
// outage degrades that source's result instead of failing the whole run.
// Re-running is safe, records dedupe on their external IDs.
func (s *Service) SyncAccount(ctx context.Context, accountID int64) ([]*SyncResult, error) {
	acct, err := s.accounts.FindAccountByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load account %d: %w", accountID, err)
	}
	if acct == nil {
		return nil, fmt.Errorf("account %d: %w", accountID, ports.ErrAccountNotFound)
	}
	if len(s.feeds) == 0 {
		return nil, fmt.Errorf("no broker feeds configured: %w", ports.ErrConfigurationError)
	}

	var since time.Time
	if s.lookback > 0 {
		since = time.Now().UTC().Add(-s.lookback)
	}

	results := make([]*SyncResult, 0, len(s.feeds))
	for _, feed := range s.feeds {
		results = append(results, s.syncFeed(ctx, accountID, feed, since))
	}
	return results, nil
}

func (s *Service) syncFeed(ctx context.Context, accountID int64, feed ports.BrokerFeed, since time.Time) *SyncResult {
	res := &SyncResult{Source: feed.Source()}

	recs, err := feed.FetchClosedPositions(ctx, since)
	if err != nil {
		s.logger.Error(ctx, err, "Broker fetch failed", map[string]interface{}{
			"source":    string(feed.Source()),
			"accountID": accountID,
		})
		res.Error = err.Error()
		return res
	}
	res.Fetched = len(recs)

	trades, normErrs := ingest.NormalizeAll(accountID, feed.Source(), recs)
	for _, nerr := range normErrs {
		s.logger.Warn(ctx, "Skipping malformed broker record", map[string]interface{}{
			"source": string(feed.Source()),
			"error":  nerr.Error(),
		})
	}
	res.Skipped = len(normErrs)

	for _, t := range trades {
		id, created, err := s.trades.UpsertTrade(ctx, t)
		if err != nil {
			s.logger.Error(ctx, err, "Failed to upsert trade", map[string]interface{}{
				"externalID": t.ExternalID,
				"symbol":     t.Symbol,
			})
			res.Skipped++
			continue
		}
		t.ID = id
		if created {
			res.Created++
		} else {
			res.Updated++
		}

		// Reconciliation never blocks ingestion: a broker figure outside the
		// tolerance band is stored as-is and surfaced for review.
		if m := pnl.ValidateTrade(t); m != nil {
			s.logger.Warn(ctx, "Stored P&L disagrees with derived P&L", map[string]interface{}{
				"tradeID":  m.TradeID,
				"symbol":   m.Symbol,
				"expected": m.Expected,
				"actual":   m.Actual,
				"diff":     m.Diff,
			})
			res.Mismatches = append(res.Mismatches, *m)
		}
	}

	s.logger.Info(ctx, "Feed sync complete", map[string]interface{}{
		"source":  string(feed.Source()),
		"fetched": res.Fetched,
		"created": res.Created,
		"updated": res.Updated,
		"skipped": res.Skipped,
	})
	return res
}

// TradeView is a trade joined with its resolved P&L. The resolved figure is
// computed at read time and never written back.
type TradeView struct {
	*domain.Trade
	Resolved *pnl.Derived `json:"resolved_pnl,omitempty"`
}

// Trades lists trades matching the filter, each carrying its resolved P&L.
func (s *Service) Trades(ctx context.Context, filter ports.TradeFilter) ([]*TradeView, error) {
	trades, err := s.trades.FindTrades(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	views := make([]*TradeView, len(trades))
	for i, t := range trades {
		views[i] = &TradeView{Trade: t, Resolved: pnl.Resolve(t)}
	}
	return views, nil
}

// Trade retrieves a single trade by ID with its resolved P&L.
func (s *Service) Trade(ctx context.Context, id int64) (*TradeView, error) {
	t, err := s.trades.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load trade %d: %w", id, err)
	}
	if t == nil {
		return nil, fmt.Errorf("trade %d: %w", id, ports.ErrNotFound)
	}
	return &TradeView{Trade: t, Resolved: pnl.Resolve(t)}, nil
}

// Stats computes aggregate performance statistics over the closed trades
// matching the filter.
func (s *Service) Stats(ctx context.Context, filter ports.TradeFilter) (*analytics.Stats, error) {
	closed := domain.StatusClosed
	filter.Status = &closed
	trades, err := s.trades.FindTrades(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to load trades for stats: %w", err)
	}
	stats := analytics.Compute(trades)
	return &stats, nil
}

// CloseTrade records the exit leg on an open trade and returns the updated
// row.
func (s *Service) CloseTrade(ctx context.Context, id int64, exitPrice float64, exitTime time.Time) (*TradeView, error) {
	if exitPrice < 0 {
		return nil, fmt.Errorf("exit price must not be negative: %w", ports.ErrInvalidRequest)
	}
	if exitTime.IsZero() {
		exitTime = time.Now().UTC()
	}
	if err := s.trades.CloseTrade(ctx, id, exitPrice, exitTime); err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "Trade closed", map[string]interface{}{"tradeID": id, "exitPrice": exitPrice})
	return s.Trade(ctx, id)
}

// CreateManualTrade records a trade entered by hand rather than synced from
// a broker. Manual entries share the trade table and the external-ID dedup
// scheme with synced rows, so they get a generated ULID key.
func (s *Service) CreateManualTrade(ctx context.Context, t *domain.Trade) (*TradeView, error) {
	acct, err := s.accounts.FindAccountByID(ctx, t.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load account %d: %w", t.AccountID, err)
	}
	if acct == nil {
		return nil, fmt.Errorf("account %d: %w", t.AccountID, ports.ErrAccountNotFound)
	}
	if err := risk.CheckNewTrade(acct, t); err != nil {
		return nil, err
	}

	t.Source = domain.SourceManual
	t.ExternalID = "manual:" + ulid.Make().String()
	t.Direction = t.Direction.Normalize()
	if t.Status == "" {
		if t.ExitPrice != nil {
			t.Status = domain.StatusClosed
		} else {
			t.Status = domain.StatusOpen
		}
	}
	if t.EntryTime.IsZero() {
		t.EntryTime = time.Now().UTC()
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("%v: %w", err, ports.ErrInvalidRequest)
	}

	id, err := s.trades.CreateTrade(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("failed to save manual trade: %w", err)
	}
	t.ID = id
	s.logger.Info(ctx, "Manual trade recorded", map[string]interface{}{"tradeID": id, "symbol": t.Symbol})
	return &TradeView{Trade: t, Resolved: pnl.Resolve(t)}, nil
}

// CreateAccount registers a new account with default settings.
func (s *Service) CreateAccount(ctx context.Context, acct *domain.Account) (*domain.Account, error) {
	if acct.Name == "" {
		return nil, fmt.Errorf("account name is required: %w", ports.ErrInvalidRequest)
	}
	// New accounts start enabled; admins flip the switch afterwards.
	acct.Settings.Enabled = true
	id, err := s.accounts.CreateAccount(ctx, acct)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	acct.ID = id
	s.logger.Info(ctx, "Account created", map[string]interface{}{"accountID": id, "name": acct.Name})
	return acct, nil
}

// ListAccounts returns all registered accounts.
func (s *Service) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	return s.accounts.ListAccounts(ctx)
}

// UpdateAccountSettings replaces the settings of an existing account.
func (s *Service) UpdateAccountSettings(ctx context.Context, accountID int64, settings domain.AccountSettings) error {
	acct, err := s.accounts.FindAccountByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to load account %d: %w", accountID, err)
	}
	if acct == nil {
		return fmt.Errorf("account %d: %w", accountID, ports.ErrAccountNotFound)
	}
	if err := s.accounts.UpdateAccountSettings(ctx, accountID, settings); err != nil {
		return err
	}
	s.logger.Info(ctx, "Account settings updated", map[string]interface{}{"accountID": accountID})
	return nil
}

// Overview is the dashboard landing payload: balances per broker plus
// all-time stats.
type Overview struct {
	Balances    []ports.Balance  `json:"balances"`
	TotalEquity float64          `json:"total_equity"`
	Stats       *analytics.Stats `json:"stats"`
}

// Overview fetches balances from every configured feed in parallel and
// attaches all-time statistics. A feed failure drops that balance from the
// snapshot rather than failing the whole request.
func (s *Service) Overview(ctx context.Context, filter ports.TradeFilter) (*Overview, error) {
	var (
		mu       sync.Mutex
		balances []ports.Balance
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, feed := range s.feeds {
		feed := feed
		g.Go(func() error {
			bal, err := feed.FetchBalance(gctx)
			if err != nil {
				s.logger.Warn(gctx, "Balance fetch failed, omitting from overview", map[string]interface{}{
					"source": string(feed.Source()),
					"error":  err.Error(),
				})
				return nil
			}
			mu.Lock()
			balances = append(balances, *bal)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats, err := s.Stats(ctx, filter)
	if err != nil {
		return nil, err
	}

	ov := &Overview{Balances: balances, Stats: stats}
	for _, b := range balances {
		ov.TotalEquity += b.TotalEquity
	}
	return ov, nil
}
