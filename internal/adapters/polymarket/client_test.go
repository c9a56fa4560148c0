package polymarket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{
		Wallet:      "0xabc123",
		Logger:      &mockLogger{},
		BaseURL:     srv.URL,
		HTTPClient:  srv.Client(),
		MaxAttempts: 2,
		MinDelay:    time.Millisecond,
	})
	require.NoError(t, err)
	return c
}

const positionsBody = `[
  {
    "asset": "7131",
    "conditionId": "0xcond1",
    "slug": "fed-cut-march-2026",
    "outcome": "Yes",
    "size": 200.0,
    "avgPrice": 0.40,
    "curPrice": 1.0,
    "initialValue": 80.0,
    "currentValue": 200.0,
    "realizedPnl": 120.0,
    "percentRealizedPnl": 150.0,
    "redeemable": true,
    "endDate": "2026-03-18T00:00:00Z"
  },
  {
    "asset": "9944",
    "conditionId": "0xcond2",
    "slug": "old-market",
    "outcome": "No",
    "size": 50.0,
    "avgPrice": 0.70,
    "curPrice": 0.0,
    "initialValue": 35.0,
    "currentValue": 0.0,
    "realizedPnl": -35.0,
    "percentRealizedPnl": -100.0,
    "redeemable": true,
    "endDate": "2025-06-01T00:00:00Z"
  }
]`

func TestFetchClosedPositions(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/positions", r.URL.Path)
		assert.Equal(t, "0xabc123", r.URL.Query().Get("user"))
		assert.Equal(t, "true", r.URL.Query().Get("redeemable"))
		w.Write([]byte(positionsBody))
	}))

	got, err := c.FetchClosedPositions(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "polymarket:0xcond1:7131", got[0].ExternalID)
	assert.Equal(t, "fed-cut-march-2026:Yes", got[0].Symbol)
	assert.InDelta(t, 80, got[0].Cost, 1e-9)
	assert.InDelta(t, 200, got[0].Proceeds, 1e-9)
	require.NotNil(t, got[0].GainLoss)
	assert.InDelta(t, 120, *got[0].GainLoss, 1e-9)
}

func TestFetchClosedPositionsSinceFilter(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(positionsBody))
	}))

	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	got, err := c.FetchClosedPositions(context.Background(), since)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "fed-cut-march-2026:Yes", got[0].Symbol)
}

func TestFetchBalance(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/value", r.URL.Path)
		w.Write([]byte(`[{"user":"0xabc123","value":1234.56}]`))
	}))

	bal, err := c.FetchBalance(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 1234.56, bal.TotalEquity, 1e-9)
	assert.Equal(t, "USDC", bal.Currency)
}
