package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasbuilds77/meridian-dashboard-sub001/config"
	"github.com/atlasbuilds77/meridian-dashboard-sub001/internal/adapters/sqlite"
	"github.com/atlasbuilds77/meridian-dashboard-sub001/internal/app"
	"github.com/atlasbuilds77/meridian-dashboard-sub001/internal/domain"
	"github.com/atlasbuilds77/meridian-dashboard-sub001/internal/ports"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

type mockFeed struct {
	source    domain.BrokerSource
	positions []ports.ClosedPosition
	balance   *ports.Balance
}

func (m *mockFeed) Source() domain.BrokerSource { return m.source }

func (m *mockFeed) FetchClosedPositions(ctx context.Context, since time.Time) ([]ports.ClosedPosition, error) {
	return m.positions, nil
}

func (m *mockFeed) FetchBalance(ctx context.Context) (*ports.Balance, error) {
	if m.balance == nil {
		return &ports.Balance{Source: m.source}, nil
	}
	return m.balance, nil
}

func gain(v float64) *float64 { return &v }

func newTestServer(t *testing.T, feeds ...ports.BrokerFeed) *httptest.Server {
	t.Helper()
	logger := &mockLogger{}

	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: filepath.Join(t.TempDir(), "test.db"),
		Logger: logger,
	})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	svc, err := app.NewService(app.Config{
		Trades:       repo,
		Accounts:     repo,
		Feeds:        feeds,
		Logger:       logger,
		LookbackDays: 0,
	})
	require.NoError(t, err)

	cfg := &config.Config{
		ListenAddr:      ":0",
		AdminDiscordIDs: []string{"admin-1"},
	}
	srv := httptest.NewServer(New(cfg, svc, logger).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body interface{}, headers map[string]string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

var adminHeaders = map[string]string{adminHeader: "admin-1"}

func createAccount(t *testing.T, srv *httptest.Server) int64 {
	t.Helper()
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/admin/accounts",
		&domain.Account{Name: "main", Source: domain.SourceTradier, OwnerDiscordID: "admin-1"},
		adminHeaders)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var acct domain.Account
	decode(t, resp, &acct)
	require.NotZero(t, acct.ID)
	return acct.ID
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestAdminGate(t *testing.T) {
	srv := newTestServer(t)

	// No header at all.
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/admin/accounts", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Unknown caller.
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/admin/accounts", nil, map[string]string{adminHeader: "stranger"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Allowlisted caller.
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/admin/accounts", nil, adminHeaders)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestManualTradeLifecycle(t *testing.T) {
	srv := newTestServer(t)
	accountID := createAccount(t, srv)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/trades", map[string]interface{}{
		"account_id":  accountID,
		"symbol":      "AAPL",
		"asset_type":  "stock",
		"direction":   "long",
		"quantity":    10,
		"entry_price": 180.0,
		"entry_time":  "2026-02-01T14:30:00Z",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created app.TradeView
	decode(t, resp, &created)
	assert.Equal(t, domain.SourceManual, created.Source)
	assert.Equal(t, domain.StatusOpen, created.Status)
	assert.True(t, strings.HasPrefix(created.ExternalID, "manual:"))

	// Close it.
	resp = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/trades/%d/close", srv.URL, created.ID),
		map[string]interface{}{"exit_price": 190.0, "exit_time": "2026-02-05T20:00:00Z"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var closed app.TradeView
	decode(t, resp, &closed)
	assert.Equal(t, domain.StatusClosed, closed.Status)
	require.NotNil(t, closed.Resolved)
	assert.InDelta(t, 100, closed.Resolved.Pnl, 1e-9)

	// Closing again conflicts.
	resp = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/trades/%d/close", srv.URL, created.ID),
		map[string]interface{}{"exit_price": 200.0}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Stats now see one win.
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/stats", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats struct {
		TotalTrades int     `json:"total_trades"`
		Wins        int     `json:"wins"`
		TotalPnl    float64 `json:"total_pnl"`
	}
	decode(t, resp, &stats)
	assert.Equal(t, 1, stats.TotalTrades)
	assert.Equal(t, 1, stats.Wins)
	assert.InDelta(t, 100, stats.TotalPnl, 1e-9)
}

func TestSyncEndpoint(t *testing.T) {
	feed := &mockFeed{
		source: domain.SourceTradier,
		positions: []ports.ClosedPosition{{
			ExternalID: "tradier:SPY:1",
			Symbol:     "SPY",
			Cost:       4000,
			Proceeds:   4500,
			Quantity:   10,
			OpenDate:   time.Date(2026, 2, 1, 14, 30, 0, 0, time.UTC),
			CloseDate:  time.Date(2026, 2, 3, 20, 0, 0, 0, time.UTC),
			GainLoss:   gain(500),
		}},
	}
	srv := newTestServer(t, feed)
	accountID := createAccount(t, srv)

	resp := doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/sync/%d", srv.URL, accountID), nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var results []app.SyncResult
	decode(t, resp, &results)
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].Created)

	// Unknown account is a 404.
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/sync/999", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExportCSV(t *testing.T) {
	feed := &mockFeed{
		source: domain.SourceTradier,
		positions: []ports.ClosedPosition{{
			ExternalID: "tradier:SPY:1",
			Symbol:     "SPY",
			Cost:       4000,
			Proceeds:   4500,
			Quantity:   10,
			OpenDate:   time.Date(2026, 2, 1, 14, 30, 0, 0, time.UTC),
			CloseDate:  time.Date(2026, 2, 3, 20, 0, 0, 0, time.UTC),
			GainLoss:   gain(500),
		}},
	}
	srv := newTestServer(t, feed)
	accountID := createAccount(t, srv)
	resp := doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/sync/%d", srv.URL, accountID), nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/trades/export", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))

	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "id,external_id,account_id,source,symbol"))
	assert.Contains(t, lines[1], "SPY")
	assert.Contains(t, lines[1], "500")
}

func TestBadFilterRejected(t *testing.T) {
	srv := newTestServer(t)
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/trades?status=weird", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/trades?from=notatime", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
