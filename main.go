// Meridian is a trading dashboard backend: an HTTP API over trade history
// synced from broker accounts, with P&L derivation, reconciliation and
// aggregate statistics.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/atlasbuilds77/meridian-dashboard-sub001/config"
	"github.com/atlasbuilds77/meridian-dashboard-sub001/internal/adapters/binance"
	"github.com/atlasbuilds77/meridian-dashboard-sub001/internal/adapters/logger"
	"github.com/atlasbuilds77/meridian-dashboard-sub001/internal/adapters/polymarket"
	"github.com/atlasbuilds77/meridian-dashboard-sub001/internal/adapters/sqlite"
	"github.com/atlasbuilds77/meridian-dashboard-sub001/internal/adapters/tradier"
	"github.com/atlasbuilds77/meridian-dashboard-sub001/internal/app"
	"github.com/atlasbuilds77/meridian-dashboard-sub001/internal/ports"
	"github.com/atlasbuilds77/meridian-dashboard-sub001/internal/server"
)

func main() {
	root := &cobra.Command{
		Use:           "meridian",
		Short:         "Trading dashboard backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), syncCmd(), statsCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// runtime bundles everything a subcommand needs after bootstrap.
type runtime struct {
	cfg    *config.Config
	logger *logger.ZapLogger
	repo   *sqlite.Repository
	svc    *app.Service
}

func (rt *runtime) close() {
	if rt.repo != nil {
		rt.repo.Close()
	}
	if rt.logger != nil {
		rt.logger.Sync()
	}
}

func bootstrap() (*runtime, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(logger.ParseLevel(cfg.LogLevel))
	if err != nil {
		return nil, err
	}

	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: log})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	feeds, err := buildFeeds(cfg, log)
	if err != nil {
		repo.Close()
		return nil, err
	}

	svc, err := app.NewService(app.Config{
		Trades:       repo,
		Accounts:     repo,
		Feeds:        feeds,
		Logger:       log,
		LookbackDays: cfg.SyncLookbackDays,
	})
	if err != nil {
		repo.Close()
		return nil, err
	}

	return &runtime{cfg: cfg, logger: log, repo: repo, svc: svc}, nil
}

// buildFeeds constructs a connector for every broker with credentials in the
// environment. Running with no connectors at all is allowed: manual trades
// still work.
func buildFeeds(cfg *config.Config, log ports.Logger) ([]ports.BrokerFeed, error) {
	var feeds []ports.BrokerFeed

	if cfg.TradierEnabled() {
		c, err := tradier.New(tradier.Config{
			Token:       cfg.TradierToken,
			AccountID:   cfg.TradierAccountID,
			Sandbox:     cfg.TradierSandbox,
			Logger:      log,
			MaxAttempts: cfg.BrokerMaxAttempts,
			MinDelay:    cfg.BrokerRetryDelay,
		})
		if err != nil {
			return nil, fmt.Errorf("tradier connector: %w", err)
		}
		feeds = append(feeds, c)
	}

	if cfg.PolymarketEnabled() {
		c, err := polymarket.New(polymarket.Config{
			Wallet:      cfg.PolymarketWallet,
			Logger:      log,
			MaxAttempts: cfg.BrokerMaxAttempts,
			MinDelay:    cfg.BrokerRetryDelay,
		})
		if err != nil {
			return nil, fmt.Errorf("polymarket connector: %w", err)
		}
		feeds = append(feeds, c)
	}

	if cfg.BinanceEnabled() {
		c, err := binance.New(binance.Config{
			APIKey:     cfg.BinanceAPIKey,
			SecretKey:  cfg.BinanceSecretKey,
			UseTestnet: cfg.BinanceTestnet,
			Symbols:    cfg.BinanceSymbols,
			Logger:     log,
		})
		if err != nil {
			return nil, fmt.Errorf("binance connector: %w", err)
		}
		feeds = append(feeds, c)
	}

	return feeds, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap()
			if err != nil {
				return err
			}
			defer rt.close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return server.New(rt.cfg, rt.svc, rt.logger).Run(ctx)
		},
	}
}

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync <account-id>",
		Short: "Pull closed positions from all configured brokers into an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid account id %q", args[0])
			}

			rt, err := bootstrap()
			if err != nil {
				return err
			}
			defer rt.close()

			results, err := rt.svc.SyncAccount(cmd.Context(), accountID)
			if err != nil {
				return err
			}
			return printJSON(results)
		},
	}
}

func statsCmd() *cobra.Command {
	var accountID int64
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print aggregate performance statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap()
			if err != nil {
				return err
			}
			defer rt.close()

			filter := ports.TradeFilter{}
			if accountID > 0 {
				filter.AccountID = &accountID
			}
			stats, err := rt.svc.Stats(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return printJSON(stats)
		},
	}
	cmd.Flags().Int64Var(&accountID, "account", 0, "restrict to one account")
	return cmd
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
