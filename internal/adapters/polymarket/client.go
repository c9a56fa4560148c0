// Package polymarket implements the ports.BrokerFeed interface against the
// Polymarket data API for a single proxy wallet.
package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/atlasbuilds77/meridian-dashboard-sub001/internal/domain"
	"github.com/atlasbuilds77/meridian-dashboard-sub001/internal/ports"

	"github.com/jpillora/backoff"
)

const defaultBaseURL = "https://data-api.polymarket.com"

// Client implements the ports.BrokerFeed interface for a Polymarket wallet.
// Prediction shares trade between 0 and 1 dollars and resolve to 0 or 1;
// they are ingested as stock-like positions with a unit multiplier.
type Client struct {
	httpClient  *http.Client
	logger      ports.Logger
	baseURL     string
	wallet      string
	maxAttempts int
	minDelay    time.Duration
}

// Config holds configuration specific to the Polymarket client adapter.
type Config struct {
	Wallet      string // proxy wallet address
	Logger      ports.Logger
	BaseURL     string // optional override, used in tests
	HTTPClient  *http.Client
	MaxAttempts int
	MinDelay    time.Duration
}

// New creates a new Polymarket client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Polymarket client")
	}
	if cfg.Wallet == "" {
		return nil, fmt.Errorf("polymarket wallet address is required: %w", ports.ErrConfigurationError)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 4
	}
	minDelay := cfg.MinDelay
	if minDelay <= 0 {
		minDelay = 500 * time.Millisecond
	}

	return &Client{
		httpClient:  httpClient,
		logger:      cfg.Logger,
		baseURL:     baseURL,
		wallet:      cfg.Wallet,
		maxAttempts: maxAttempts,
		minDelay:    minDelay,
	}, nil
}

// Source identifies the connector.
func (c *Client) Source() domain.BrokerSource {
	return domain.SourcePolymarket
}

// --- wire types ---

type position struct {
	Asset        string  `json:"asset"` // token id
	ConditionID  string  `json:"conditionId"`
	Slug         string  `json:"slug"`
	Outcome      string  `json:"outcome"`
	Size         float64 `json:"size"`
	AvgPrice     float64 `json:"avgPrice"`
	CurPrice     float64 `json:"curPrice"`
	InitialValue float64 `json:"initialValue"`
	CurrentValue float64 `json:"currentValue"`
	RealizedPnl  float64 `json:"realizedPnl"`
	PercentPnl   float64 `json:"percentRealizedPnl"`
	Redeemable   bool    `json:"redeemable"`
	EndDate      string  `json:"endDate"`
}

type valueResponse []struct {
	User  string  `json:"user"`
	Value float64 `json:"value"`
}

// FetchClosedPositions retrieves redeemable (resolved) positions for the
// wallet. The market end date stands in for both open and close timestamps
// beyond what the data API exposes.
func (c *Client) FetchClosedPositions(ctx context.Context, since time.Time) ([]ports.ClosedPosition, error) {
	params := url.Values{}
	params.Set("user", c.wallet)
	params.Set("redeemable", "true")

	var resp []position
	if err := c.get(ctx, "/positions", params, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch positions: %w", err)
	}

	out := make([]ports.ClosedPosition, 0, len(resp))
	for _, p := range resp {
		if p.Size == 0 {
			continue
		}
		closeDate, err := time.Parse(time.RFC3339, p.EndDate)
		if err != nil {
			// Some resolved markets report no end date; fall back to now so
			// the record still lands in the current sync window.
			closeDate = time.Now().UTC()
		}
		if !since.IsZero() && closeDate.Before(since) {
			continue
		}
		gain := p.CurrentValue - p.InitialValue
		gainPct := p.PercentPnl
		out = append(out, ports.ClosedPosition{
			ExternalID:      "polymarket:" + p.ConditionID + ":" + p.Asset,
			Symbol:          p.Slug + ":" + p.Outcome,
			Cost:            p.InitialValue,
			Proceeds:        p.CurrentValue,
			Quantity:        p.Size,
			OpenDate:        closeDate, // data API does not expose the entry timestamp
			CloseDate:       closeDate,
			GainLoss:        &gain,
			GainLossPercent: &gainPct,
		})
	}
	c.logger.Debug(ctx, "Fetched Polymarket resolved positions", map[string]interface{}{"count": len(out)})
	return out, nil
}

// FetchBalance retrieves the wallet's total portfolio value. The data API
// has no cash figure, so cash is reported as zero.
func (c *Client) FetchBalance(ctx context.Context) (*ports.Balance, error) {
	params := url.Values{}
	params.Set("user", c.wallet)

	var resp valueResponse
	if err := c.get(ctx, "/value", params, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch portfolio value: %w", err)
	}
	total := 0.0
	if len(resp) > 0 {
		total = resp[0].Value
	}
	return &ports.Balance{
		Source:      domain.SourcePolymarket,
		Currency:    "USDC",
		TotalEquity: total,
	}, nil
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	u := c.baseURL + endpoint + "?" + params.Encode()

	b := &backoff.Backoff{Min: c.minDelay, Max: 10 * time.Second, Factor: 2, Jitter: true}
	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(b.Duration()):
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", ports.ErrContextCanceled, ctx.Err())
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return fmt.Errorf("failed to build request for %s: %w", endpoint, err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: %v", ports.ErrConnectionFailed, err)
			continue
		}
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("failed to read response from %s: %w", endpoint, readErr)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("failed to decode response from %s: %w", endpoint, err)
			}
			return nil
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("%s returned 429: %w", endpoint, ports.ErrRateLimited)
			c.logger.Warn(ctx, "Polymarket rate limit hit, backing off", map[string]interface{}{"endpoint": endpoint, "attempt": attempt + 1})
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("%s returned %d: %w", endpoint, resp.StatusCode, ports.ErrBrokerUnavailable)
		default:
			return fmt.Errorf("%s returned unexpected status %d: %w", endpoint, resp.StatusCode, ports.ErrInvalidRequest)
		}
	}
	return lastErr
}
