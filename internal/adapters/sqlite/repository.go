// Package sqlite implements the repository ports on a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/atlasbuilds77/meridian-dashboard-sub001/internal/domain"
	"github.com/atlasbuilds77/meridian-dashboard-sub001/internal/ports"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements ports.TradeRepository and ports.AccountRepository
// using SQLite. Trades are append-only: there is no delete path.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository opens (and if needed creates) the database and bootstraps
// the schema.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/meridian.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// WAL mode for concurrent dashboard reads during sync writes.
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// The Go driver benefits from a single connection; SQLite serializes
	// writers anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	repo := &Repository{db: db, logger: cfg.Logger}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "SQLite database ready", map[string]interface{}{"path": dbPath})

	return repo, nil
}

func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		external_id TEXT NOT NULL UNIQUE,
		account_id INTEGER NOT NULL,
		source TEXT NOT NULL,
		symbol TEXT NOT NULL,
		asset_type TEXT NOT NULL,
		underlying TEXT DEFAULT NULL,
		strike REAL DEFAULT NULL,
		expiry TIMESTAMP DEFAULT NULL,
		option_type TEXT DEFAULT NULL,
		entry_price REAL NOT NULL,
		exit_price REAL DEFAULT NULL,
		quantity REAL NOT NULL,
		direction TEXT NOT NULL,
		entry_time TIMESTAMP NOT NULL,
		exit_time TIMESTAMP DEFAULT NULL,
		pnl REAL DEFAULT NULL,
		pnl_percent REAL DEFAULT NULL,
		status TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS accounts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT NOT NULL,
		name TEXT NOT NULL,
		owner_discord_id TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS account_settings (
		account_id INTEGER PRIMARY KEY,
		enabled INTEGER NOT NULL DEFAULT 1,
		max_position_size REAL NOT NULL DEFAULT 0,
		notes TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_trades_account_status ON trades (account_id, status);
	CREATE INDEX IF NOT EXISTS idx_trades_entry_time ON trades (entry_time);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// --- TradeRepository Implementation ---

const tradeColumns = `id, external_id, account_id, source, symbol, asset_type,
	underlying, strike, expiry, option_type, entry_price, exit_price, quantity,
	direction, entry_time, exit_time, pnl, pnl_percent, status, created_at, updated_at`

// CreateTrade saves a new trade record and returns its assigned ID.
func (r *Repository) CreateTrade(ctx context.Context, trade *domain.Trade) (int64, error) {
	if err := trade.Validate(); err != nil {
		return 0, fmt.Errorf("refusing to persist invalid trade %q: %w", trade.ExternalID, err)
	}
	const query = `
	INSERT INTO trades (external_id, account_id, source, symbol, asset_type,
	                    underlying, strike, expiry, option_type, entry_price, exit_price,
	                    quantity, direction, entry_time, exit_time, pnl, pnl_percent,
	                    status, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, query,
		trade.ExternalID, trade.AccountID, trade.Source, trade.Symbol, trade.AssetType,
		nullString(trade.Underlying), nullFloat(trade.Strike), nullTime(trade.Expiry), nullOptionType(trade.OptionType),
		trade.EntryPrice, nullFloat(trade.ExitPrice),
		trade.Quantity, trade.Direction.Normalize(), trade.EntryTime, nullTime(trade.ExitTime),
		nullFloat(trade.PNL), nullFloat(trade.PNLPercent),
		trade.Status, now, now)
	if err != nil {
		return 0, fmt.Errorf("failed to insert trade %q: %w", trade.ExternalID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for trade %q: %w", trade.ExternalID, err)
	}
	trade.ID = id
	trade.CreatedAt = now
	trade.UpdatedAt = now
	r.logger.Debug(ctx, "Trade created", map[string]interface{}{"tradeID": id, "symbol": trade.Symbol})
	return id, nil
}

// UpsertTrade inserts the trade or refreshes the mutable columns of the
// existing row with the same external ID. Re-running a sync is a no-op for
// unchanged records.
func (r *Repository) UpsertTrade(ctx context.Context, trade *domain.Trade) (int64, bool, error) {
	existing, err := r.FindByExternalID(ctx, trade.ExternalID)
	if err != nil {
		return 0, false, err
	}
	if existing == nil {
		id, err := r.CreateTrade(ctx, trade)
		return id, true, err
	}

	const query = `
	UPDATE trades
	SET exit_price = ?, exit_time = ?, pnl = ?, pnl_percent = ?, status = ?, updated_at = ?
	WHERE id = ?`

	now := time.Now().UTC()
	if _, err := r.db.ExecContext(ctx, query,
		nullFloat(trade.ExitPrice), nullTime(trade.ExitTime),
		nullFloat(trade.PNL), nullFloat(trade.PNLPercent),
		trade.Status, now, existing.ID); err != nil {
		return 0, false, fmt.Errorf("failed to update trade %q: %w", trade.ExternalID, err)
	}
	trade.ID = existing.ID
	r.logger.Debug(ctx, "Trade refreshed from sync", map[string]interface{}{"tradeID": existing.ID, "symbol": trade.Symbol})
	return existing.ID, false, nil
}

// FindByID retrieves a trade by its internal ID.
func (r *Repository) FindByID(ctx context.Context, id int64) (*domain.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)
	trade, err := scanTrade(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query trade by ID %d: %w", id, err)
	}
	return trade, nil
}

// FindByExternalID retrieves a trade by its broker-assigned ID.
func (r *Repository) FindByExternalID(ctx context.Context, externalID string) (*domain.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE external_id = ?`
	row := r.db.QueryRowContext(ctx, query, externalID)
	trade, err := scanTrade(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query trade by external ID %q: %w", externalID, err)
	}
	return trade, nil
}

// FindTrades retrieves trades matching the filter, ordered by entry time
// ascending. The filter is assembled dynamically with squirrel.
func (r *Repository) FindTrades(ctx context.Context, filter ports.TradeFilter) ([]*domain.Trade, error) {
	qb := sq.Select(tradeColumns).From("trades").OrderBy("entry_time ASC, id ASC")
	if filter.AccountID != nil {
		qb = qb.Where(sq.Eq{"account_id": *filter.AccountID})
	}
	if filter.Symbol != "" {
		qb = qb.Where(sq.Eq{"symbol": filter.Symbol})
	}
	if filter.Status != nil {
		qb = qb.Where(sq.Eq{"status": string(*filter.Status)})
	}
	if filter.From != nil {
		qb = qb.Where(sq.GtOrEq{"entry_time": *filter.From})
	}
	if filter.To != nil {
		qb = qb.Where(sq.Lt{"entry_time": *filter.To})
	}
	if filter.Limit > 0 {
		qb = qb.Limit(uint64(filter.Limit))
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build trade filter query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	trades := make([]*domain.Trade, 0)
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade during FindTrades: %w", err)
		}
		trades = append(trades, trade)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade rows: %w", err)
	}
	return trades, nil
}

// CloseTrade transitions an open trade to closed with the given exit leg.
func (r *Repository) CloseTrade(ctx context.Context, id int64, exitPrice float64, exitTime time.Time) error {
	const query = `
	UPDATE trades
	SET exit_price = ?, exit_time = ?, status = ?, updated_at = ?
	WHERE id = ? AND status = ?`

	result, err := r.db.ExecContext(ctx, query,
		exitPrice, exitTime, domain.StatusClosed, time.Now().UTC(), id, domain.StatusOpen)
	if err != nil {
		return fmt.Errorf("failed to close trade ID %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected closing trade ID %d: %w", id, err)
	}
	if affected == 0 {
		existing, err := r.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return fmt.Errorf("trade ID %d not found: %w", id, ports.ErrNotFound)
		}
		return fmt.Errorf("trade ID %d: %w", id, ports.ErrTradeAlreadyClosed)
	}
	r.logger.Debug(ctx, "Trade closed", map[string]interface{}{"tradeID": id, "exitPrice": exitPrice})
	return nil
}

// --- AccountRepository Implementation ---

// CreateAccount saves a new account with its settings row.
func (r *Repository) CreateAccount(ctx context.Context, acct *domain.Account) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin account transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx,
		`INSERT INTO accounts (source, name, owner_discord_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		acct.Source, acct.Name, acct.OwnerDiscordID, now, now)
	if err != nil {
		return 0, fmt.Errorf("failed to insert account %q: %w", acct.Name, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for account %q: %w", acct.Name, err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO account_settings (account_id, enabled, max_position_size, notes) VALUES (?, ?, ?, ?)`,
		id, boolToInt(acct.Settings.Enabled), acct.Settings.MaxPositionSize, acct.Settings.Notes); err != nil {
		return 0, fmt.Errorf("failed to insert settings for account %q: %w", acct.Name, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit account creation: %w", err)
	}
	acct.ID = id
	acct.CreatedAt = now
	acct.UpdatedAt = now
	r.logger.Debug(ctx, "Account created", map[string]interface{}{"accountID": id, "name": acct.Name})
	return id, nil
}

const accountColumns = `a.id, a.source, a.name, a.owner_discord_id, a.created_at, a.updated_at,
	COALESCE(s.enabled, 1), COALESCE(s.max_position_size, 0), COALESCE(s.notes, '')`

// FindAccountByID retrieves an account with its settings.
func (r *Repository) FindAccountByID(ctx context.Context, id int64) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + `
	FROM accounts a LEFT JOIN account_settings s ON s.account_id = a.id
	WHERE a.id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	acct, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query account by ID %d: %w", id, err)
	}
	return acct, nil
}

// ListAccounts retrieves all accounts with settings, oldest first.
func (r *Repository) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	query := `SELECT ` + accountColumns + `
	FROM accounts a LEFT JOIN account_settings s ON s.account_id = a.id
	ORDER BY a.created_at ASC, a.id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]*domain.Account, 0)
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account during ListAccounts: %w", err)
		}
		accounts = append(accounts, acct)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating account rows: %w", err)
	}
	return accounts, nil
}

// UpdateAccountSettings updates the settings and the account's updated_at
// stamp in a single transaction spanning both tables.
func (r *Repository) UpdateAccountSettings(ctx context.Context, accountID int64, settings domain.AccountSettings) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin settings transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE accounts SET updated_at = ? WHERE id = ?`, time.Now().UTC(), accountID)
	if err != nil {
		return fmt.Errorf("failed to stamp account ID %d: %w", accountID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for account ID %d: %w", accountID, err)
	}
	if affected == 0 {
		return fmt.Errorf("account ID %d not found for settings update: %w", accountID, ports.ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, `
	INSERT INTO account_settings (account_id, enabled, max_position_size, notes)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(account_id) DO UPDATE SET
		enabled = excluded.enabled,
		max_position_size = excluded.max_position_size,
		notes = excluded.notes`,
		accountID, boolToInt(settings.Enabled), settings.MaxPositionSize, settings.Notes); err != nil {
		return fmt.Errorf("failed to upsert settings for account ID %d: %w", accountID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit settings update for account ID %d: %w", accountID, err)
	}
	r.logger.Debug(ctx, "Account settings updated", map[string]interface{}{"accountID": accountID})
	return nil
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTrade(s scanner) (*domain.Trade, error) {
	t := &domain.Trade{}
	var (
		underlying sql.NullString
		strike     sql.NullFloat64
		expiry     sql.NullTime
		optType    sql.NullString
		exitPrice  sql.NullFloat64
		exitTime   sql.NullTime
		pnlVal     sql.NullFloat64
		pnlPct     sql.NullFloat64
		source     string
		assetType  string
		direction  string
		status     string
	)
	err := s.Scan(
		&t.ID, &t.ExternalID, &t.AccountID, &source, &t.Symbol, &assetType,
		&underlying, &strike, &expiry, &optType, &t.EntryPrice, &exitPrice, &t.Quantity,
		&direction, &t.EntryTime, &exitTime, &pnlVal, &pnlPct, &status,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	t.Source = domain.BrokerSource(source)
	t.AssetType = domain.AssetType(assetType)
	t.Direction = domain.Direction(direction)
	t.Status = domain.TradeStatus(status)
	if underlying.Valid {
		t.Underlying = &underlying.String
	}
	if strike.Valid {
		t.Strike = &strike.Float64
	}
	if expiry.Valid {
		t.Expiry = &expiry.Time
	}
	if optType.Valid {
		v := domain.OptionType(optType.String)
		t.OptionType = &v
	}
	if exitPrice.Valid {
		t.ExitPrice = &exitPrice.Float64
	}
	if exitTime.Valid {
		t.ExitTime = &exitTime.Time
	}
	if pnlVal.Valid {
		t.PNL = &pnlVal.Float64
	}
	if pnlPct.Valid {
		t.PNLPercent = &pnlPct.Float64
	}
	return t, nil
}

func scanAccount(s scanner) (*domain.Account, error) {
	a := &domain.Account{}
	var (
		source  string
		enabled int
	)
	err := s.Scan(&a.ID, &source, &a.Name, &a.OwnerDiscordID, &a.CreatedAt, &a.UpdatedAt,
		&enabled, &a.Settings.MaxPositionSize, &a.Settings.Notes)
	if err != nil {
		return nil, err
	}
	a.Source = domain.BrokerSource(source)
	a.Settings.Enabled = enabled != 0
	return a, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullOptionType(o *domain.OptionType) sql.NullString {
	if o == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*o), Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
