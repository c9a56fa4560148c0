// Package binance implements the ports.BrokerFeed interface for a Binance
// spot account using the go-binance library.
package binance

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/atlasbuilds77/meridian-dashboard-sub001/internal/domain"
	"github.com/atlasbuilds77/meridian-dashboard-sub001/internal/ports"

	binance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
)

const (
	baseURLProduction = "https://api.binance.com"
	baseURLTestnet    = "https://testnet.binance.vision"
)

// Client implements the ports.BrokerFeed interface for a spot account.
//
// Binance reports raw fills, not round trips. Sells are matched against the
// running average cost of prior buys per symbol, which is how the exchange
// itself presents realized P&L for spot.
type Client struct {
	spotClient *binance.Client
	logger     ports.Logger
	symbols    []string
	quoteAsset string
}

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	APIKey     string
	SecretKey  string
	UseTestnet bool
	Symbols    []string // spot symbols to sync, e.g. ["ETHUSDT"]
	QuoteAsset string   // balance asset, defaults to USDT
	Logger     ports.Logger
}

// New creates a new Binance client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("binance API key and secret are required: %w", ports.ErrConfigurationError)
	}
	if len(cfg.Symbols) == 0 {
		return nil, fmt.Errorf("at least one binance symbol is required: %w", ports.ErrConfigurationError)
	}

	client := binance.NewClient(cfg.APIKey, cfg.SecretKey)
	if cfg.UseTestnet {
		client.BaseURL = baseURLTestnet
		cfg.Logger.Info(context.Background(), "Binance client configured for Testnet", map[string]interface{}{"baseURL": client.BaseURL})
	} else {
		client.BaseURL = baseURLProduction
	}

	quote := cfg.QuoteAsset
	if quote == "" {
		quote = "USDT"
	}

	return &Client{
		spotClient: client,
		logger:     cfg.Logger,
		symbols:    cfg.Symbols,
		quoteAsset: quote,
	}, nil
}

// Source identifies the connector.
func (c *Client) Source() domain.BrokerSource {
	return domain.SourceBinance
}

// FetchClosedPositions reconstructs closed round trips from the account's
// fill history for each configured symbol.
func (c *Client) FetchClosedPositions(ctx context.Context, since time.Time) ([]ports.ClosedPosition, error) {
	var out []ports.ClosedPosition
	for _, symbol := range c.symbols {
		svc := c.spotClient.NewListTradesService().Symbol(symbol)
		if !since.IsZero() {
			svc = svc.StartTime(since.UnixMilli())
		}
		fills, err := svc.Do(ctx)
		if err != nil {
			return nil, c.handleError(ctx, err, "ListTrades "+symbol)
		}
		out = append(out, roundTrips(symbol, fills)...)
	}
	c.logger.Debug(ctx, "Fetched Binance round trips", map[string]interface{}{"count": len(out)})
	return out, nil
}

// roundTrips matches sells against the running average cost of prior buys.
// Sells with no prior inventory in the fetch window are skipped: there is no
// entry price to report.
func roundTrips(symbol string, fills []*binance.TradeV3) []ports.ClosedPosition {
	sorted := make([]*binance.TradeV3, len(fills))
	copy(sorted, fills)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })

	var (
		out      []ports.ClosedPosition
		heldQty  float64
		heldCost float64
		openedAt time.Time
	)
	for _, f := range sorted {
		price, err1 := strconv.ParseFloat(f.Price, 64)
		qty, err2 := strconv.ParseFloat(f.Quantity, 64)
		if err1 != nil || err2 != nil || qty == 0 {
			continue
		}
		at := time.UnixMilli(f.Time).UTC()

		if f.IsBuyer {
			if heldQty == 0 {
				openedAt = at
			}
			heldCost += price * qty
			heldQty += qty
			continue
		}

		if heldQty == 0 {
			continue
		}
		matched := qty
		if matched > heldQty {
			matched = heldQty
		}
		avgCost := heldCost / heldQty
		cost := avgCost * matched
		proceeds := price * matched
		gain := proceeds - cost
		var gainPct *float64
		if cost != 0 {
			pct := gain / cost * 100
			gainPct = &pct
		}
		out = append(out, ports.ClosedPosition{
			ExternalID:      "binance:" + symbol + ":" + strconv.FormatInt(f.ID, 10),
			Symbol:          symbol,
			Cost:            cost,
			Proceeds:        proceeds,
			Quantity:        matched,
			OpenDate:        openedAt,
			CloseDate:       at,
			GainLoss:        &gain,
			GainLossPercent: gainPct,
			Term:            int(at.Sub(openedAt).Hours() / 24),
		})
		heldQty -= matched
		heldCost -= cost
		if heldQty <= 0 {
			heldQty, heldCost = 0, 0
		}
	}
	return out
}

// FetchBalance reports the free+locked balance of the configured quote asset.
func (c *Client) FetchBalance(ctx context.Context) (*ports.Balance, error) {
	acct, err := c.spotClient.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, "GetAccount")
	}
	var free, locked float64
	for _, b := range acct.Balances {
		if b.Asset != c.quoteAsset {
			continue
		}
		free, _ = strconv.ParseFloat(b.Free, 64)
		locked, _ = strconv.ParseFloat(b.Locked, 64)
		break
	}
	return &ports.Balance{
		Source:      domain.SourceBinance,
		Currency:    c.quoteAsset,
		TotalEquity: free + locked,
		Cash:        free,
	}, nil
}

// handleError translates common Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}
	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		var mappedErr error
		switch apiErr.Code {
		case -1003:
			mappedErr = ports.ErrRateLimited
		case -1022:
			mappedErr = ports.ErrAuthenticationFailed
		case -2014, -2015:
			mappedErr = ports.ErrInvalidAPIKeys
		default:
			mappedErr = ports.ErrBrokerUnavailable
		}
		c.logger.Error(ctx, err, "Binance API error", fields)
		return fmt.Errorf("%s failed (code %d): %w", operation, apiErr.Code, mappedErr)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", operation, ports.ErrContextCanceled)
	}
	c.logger.Error(ctx, err, "Binance request failed", fields)
	return fmt.Errorf("%s failed: %w", operation, ports.ErrConnectionFailed)
}
