// Package server exposes the dashboard over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/atlasbuilds77/meridian-dashboard-sub001/config"
	"github.com/atlasbuilds77/meridian-dashboard-sub001/internal/app"
	"github.com/atlasbuilds77/meridian-dashboard-sub001/internal/ports"
)

const shutdownTimeout = 10 * time.Second

// Server is the HTTP front end over the dashboard service.
type Server struct {
	cfg    *config.Config
	svc    *app.Service
	logger ports.Logger
	router *mux.Router
	http   *http.Server
}

// New builds the server and registers all routes.
func New(cfg *config.Config, svc *app.Service, logger ports.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		svc:    svc,
		logger: logger,
		router: mux.NewRouter(),
	}
	s.routes()
	s.http = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.router.Use(s.withRequestID, s.logRequests)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/overview", s.handleOverview).Methods(http.MethodGet)
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)

	api.HandleFunc("/trades", s.handleListTrades).Methods(http.MethodGet)
	api.HandleFunc("/trades", s.handleCreateTrade).Methods(http.MethodPost)
	api.HandleFunc("/trades/export", s.handleExportTrades).Methods(http.MethodGet)
	api.HandleFunc("/trades/{id:[0-9]+}", s.handleGetTrade).Methods(http.MethodGet)
	api.HandleFunc("/trades/{id:[0-9]+}/close", s.handleCloseTrade).Methods(http.MethodPost)

	api.HandleFunc("/sync/{accountID:[0-9]+}", s.handleSync).Methods(http.MethodPost)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(s.requireAdmin)
	admin.HandleFunc("/accounts", s.handleListAccounts).Methods(http.MethodGet)
	admin.HandleFunc("/accounts", s.handleCreateAccount).Methods(http.MethodPost)
	admin.HandleFunc("/accounts/{id:[0-9]+}/settings", s.handleUpdateAccountSettings).Methods(http.MethodPut)
}

// Handler returns the routed handler, used directly in tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until the context is canceled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "HTTP server listening", map[string]interface{}{"addr": s.http.Addr})
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info(shutdownCtx, "HTTP server shutting down", nil)
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
