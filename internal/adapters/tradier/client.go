// Package tradier implements the ports.BrokerFeed interface against the
// Tradier brokerage REST API.
package tradier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/atlasbuilds77/meridian-dashboard-sub001/internal/domain"
	"github.com/atlasbuilds77/meridian-dashboard-sub001/internal/ports"

	"github.com/jpillora/backoff"
)

const (
	baseURLProduction = "https://api.tradier.com"
	baseURLSandbox    = "https://sandbox.tradier.com"
)

// Client implements the ports.BrokerFeed interface for a Tradier account.
type Client struct {
	httpClient  *http.Client
	logger      ports.Logger
	baseURL     string
	token       string
	accountID   string
	maxAttempts int
	minDelay    time.Duration
}

// Config holds configuration specific to the Tradier client adapter.
type Config struct {
	Token       string
	AccountID   string
	Sandbox     bool
	Logger      ports.Logger
	HTTPClient  *http.Client  // optional, defaults to a 15s-timeout client
	MaxAttempts int           // retry attempts for rate-limit/5xx responses
	MinDelay    time.Duration // initial retry backoff
}

// New creates a new Tradier client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Tradier client")
	}
	if cfg.Token == "" || cfg.AccountID == "" {
		return nil, fmt.Errorf("tradier token and account ID are required: %w", ports.ErrConfigurationError)
	}

	baseURL := baseURLProduction
	if cfg.Sandbox {
		baseURL = baseURLSandbox
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

	cfg.Logger.Info(context.Background(), "Tradier client configured",
		map[string]interface{}{"baseURL": baseURL, "account": cfg.AccountID})

	return &Client{
		httpClient:  httpClient,
		logger:      cfg.Logger,
		baseURL:     baseURL,
		token:       cfg.Token,
		accountID:   cfg.AccountID,
		maxAttempts: maxAttempts,
		minDelay:    minDelay,
	}, nil
}

// Source identifies the connector.
func (c *Client) Source() domain.BrokerSource {
	return domain.SourceTradier
}

// --- wire types ---

// Tradier collapses single-element arrays into bare objects; the list types
// accept both shapes.

type gainLossResponse struct {
	GainLoss struct {
		ClosedPosition closedPositionList `json:"closed_position"`
	} `json:"gainloss"`
}

type closedPositionList []closedPosition

func (l *closedPositionList) UnmarshalJSON(data []byte) error {
	var many []closedPosition
	if err := json.Unmarshal(data, &many); err == nil {
		*l = many
		return nil
	}
	var one closedPosition
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*l = closedPositionList{one}
	return nil
}

type closedPosition struct {
	CloseDate       string  `json:"close_date"`
	Cost            float64 `json:"cost"`
	GainLoss        float64 `json:"gain_loss"`
	GainLossPercent float64 `json:"gain_loss_percent"`
	OpenDate        string  `json:"open_date"`
	Proceeds        float64 `json:"proceeds"`
	Quantity        float64 `json:"quantity"`
	Symbol          string  `json:"symbol"`
	Term            int     `json:"term"`
}

type balancesResponse struct {
	Balances struct {
		TotalEquity float64 `json:"total_equity"`
		TotalCash   float64 `json:"total_cash"`
	} `json:"balances"`
}

// FetchClosedPositions retrieves the account's gain/loss feed. The broker's
// gain_loss figure is authoritative and carried through as the stored P&L.
func (c *Client) FetchClosedPositions(ctx context.Context, since time.Time) ([]ports.ClosedPosition, error) {
	params := url.Values{}
	if !since.IsZero() {
		params.Set("start", since.Format("2006-01-02"))
	}
	endpoint := fmt.Sprintf("/v1/accounts/%s/gainloss", c.accountID)

	var resp gainLossResponse
	if err := c.get(ctx, endpoint, params, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch gain/loss feed: %w", err)
	}

	out := make([]ports.ClosedPosition, 0, len(resp.GainLoss.ClosedPosition))
	for _, p := range resp.GainLoss.ClosedPosition {
		openDate, err := parseDate(p.OpenDate)
		if err != nil {
			c.logger.Warn(ctx, "Skipping closed position with bad open date",
				map[string]interface{}{"symbol": p.Symbol, "openDate": p.OpenDate})
			continue
		}
		closeDate, err := parseDate(p.CloseDate)
		if err != nil {
			c.logger.Warn(ctx, "Skipping closed position with bad close date",
				map[string]interface{}{"symbol": p.Symbol, "closeDate": p.CloseDate})
			continue
		}
		gain := p.GainLoss
		gainPct := p.GainLossPercent
		out = append(out, ports.ClosedPosition{
			// The feed carries no record ID; synthesize a stable one so
			// re-synced rows dedup on upsert.
			ExternalID:      externalID(p, closeDate),
			Symbol:          p.Symbol,
			Cost:            p.Cost,
			Proceeds:        p.Proceeds,
			Quantity:        p.Quantity,
			OpenDate:        openDate,
			CloseDate:       closeDate,
			GainLoss:        &gain,
			GainLossPercent: &gainPct,
			Term:            p.Term,
		})
	}
	c.logger.Debug(ctx, "Fetched Tradier closed positions", map[string]interface{}{"count": len(out)})
	return out, nil
}

// FetchBalance retrieves the account balance snapshot.
func (c *Client) FetchBalance(ctx context.Context) (*ports.Balance, error) {
	endpoint := fmt.Sprintf("/v1/accounts/%s/balances", c.accountID)
	var resp balancesResponse
	if err := c.get(ctx, endpoint, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch balances: %w", err)
	}
	return &ports.Balance{
		Source:      domain.SourceTradier,
		Currency:    "USD",
		TotalEquity: resp.Balances.TotalEquity,
		Cash:        resp.Balances.TotalCash,
	}, nil
}

func externalID(p closedPosition, closeDate time.Time) string {
	return "tradier:" + p.Symbol + ":" + closeDate.Format("20060102") + ":" +
		strconv.FormatFloat(p.Quantity, 'f', -1, 64) + ":" +
		strconv.FormatFloat(p.Proceeds, 'f', 2, 64)
}

func parseDate(s string) (time.Time, error) {
	// The API reports dates as RFC3339 timestamps at midnight; older
	// responses use a bare date.
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse("2006-01-02", s)
}

// get performs an authenticated GET with bounded retry on rate-limit and
// server errors.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	u := c.baseURL + endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

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
		req.Header.Set("Authorization", "Bearer "+c.token)
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
		case resp.StatusCode == http.StatusUnauthorized:
			return fmt.Errorf("%s returned 401: %w", endpoint, ports.ErrAuthenticationFailed)
		case resp.StatusCode == http.StatusNotFound:
			return fmt.Errorf("%s returned 404: %w", endpoint, ports.ErrAccountNotFound)
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("%s returned 429: %w", endpoint, ports.ErrRateLimited)
			c.logger.Warn(ctx, "Tradier rate limit hit, backing off", map[string]interface{}{"endpoint": endpoint, "attempt": attempt + 1})
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("%s returned %d: %w", endpoint, resp.StatusCode, ports.ErrBrokerUnavailable)
			c.logger.Warn(ctx, "Tradier server error, retrying", map[string]interface{}{"endpoint": endpoint, "status": resp.StatusCode})
		default:
			return fmt.Errorf("%s returned unexpected status %d: %w", endpoint, resp.StatusCode, ports.ErrInvalidRequest)
		}
	}
	return lastErr
}
