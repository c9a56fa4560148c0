package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/atlasbuilds77/meridian-dashboard-sub001/internal/domain"
	"github.com/atlasbuilds77/meridian-dashboard-sub001/internal/ports"
	"github.com/atlasbuilds77/meridian-dashboard-sub001/internal/utils"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	filter, err := tradeFilterFromQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ov, err := s.svc.Overview(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ov)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	filter, err := tradeFilterFromQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	stats, err := s.svc.Stats(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleListTrades(w http.ResponseWriter, r *http.Request) {
	filter, err := tradeFilterFromQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	trades, err := s.svc.Trades(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, trades)
}

func (s *Server) handleGetTrade(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	trade, err := s.svc.Trade(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, trade)
}

func (s *Server) handleCreateTrade(w http.ResponseWriter, r *http.Request) {
	var t domain.Trade
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		s.writeError(w, r, fmt.Errorf("malformed trade body: %w", ports.ErrInvalidRequest))
		return
	}
	view, err := s.svc.CreateManualTrade(r.Context(), &t)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, view)
}

type closeTradeRequest struct {
	ExitPrice float64    `json:"exit_price"`
	ExitTime  *time.Time `json:"exit_time,omitempty"`
}

func (s *Server) handleCloseTrade(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req closeTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, fmt.Errorf("malformed close body: %w", ports.ErrInvalidRequest))
		return
	}
	exitTime := time.Time{}
	if req.ExitTime != nil {
		exitTime = *req.ExitTime
	}
	view, err := s.svc.CloseTrade(r.Context(), id, req.ExitPrice, exitTime)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleExportTrades(w http.ResponseWriter, r *http.Request) {
	filter, err := tradeFilterFromQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	trades, err := s.svc.Trades(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="trades.csv"`)
	if err := utils.WriteTradesCSV(w, trades); err != nil {
		s.logger.Error(r.Context(), err, "CSV export failed mid-stream", nil)
	}
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathID(r, "accountID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	results, err := s.svc.SyncAccount(r.Context(), accountID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.svc.ListAccounts(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, accounts)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var acct domain.Account
	if err := json.NewDecoder(r.Body).Decode(&acct); err != nil {
		s.writeError(w, r, fmt.Errorf("malformed account body: %w", ports.ErrInvalidRequest))
		return
	}
	created, err := s.svc.CreateAccount(r.Context(), &acct)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateAccountSettings(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var settings domain.AccountSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		s.writeError(w, r, fmt.Errorf("malformed settings body: %w", ports.ErrInvalidRequest))
		return
	}
	if err := s.svc.UpdateAccountSettings(r.Context(), id, settings); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusNoContent, nil)
}

// --- request parsing helpers ---

func pathID(r *http.Request, name string) (int64, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q: %w", name, raw, ports.ErrInvalidRequest)
	}
	return id, nil
}

// tradeFilterFromQuery builds a trade filter from query parameters:
// account, symbol, status, from, to (RFC 3339), limit.
func tradeFilterFromQuery(r *http.Request) (ports.TradeFilter, error) {
	var filter ports.TradeFilter
	q := r.URL.Query()

	if raw := q.Get("account"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return filter, fmt.Errorf("invalid account %q: %w", raw, ports.ErrInvalidRequest)
		}
		filter.AccountID = &id
	}
	filter.Symbol = q.Get("symbol")
	if raw := q.Get("status"); raw != "" {
		status := domain.TradeStatus(raw)
		if status != domain.StatusOpen && status != domain.StatusClosed {
			return filter, fmt.Errorf("invalid status %q: %w", raw, ports.ErrInvalidRequest)
		}
		filter.Status = &status
	}
	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, fmt.Errorf("invalid from time %q: %w", raw, ports.ErrInvalidRequest)
		}
		filter.From = &t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, fmt.Errorf("invalid to time %q: %w", raw, ports.ErrInvalidRequest)
		}
		filter.To = &t
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return filter, fmt.Errorf("invalid limit %q: %w", raw, ports.ErrInvalidRequest)
		}
		filter.Limit = n
	}
	return filter, nil
}
