// Package server exposes the billing reports as a read-only JSON API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"billingrecon/internal/billing"
	"billingrecon/internal/cache"
	"billingrecon/internal/logger"
)

const shutdownTimeout = 10 * time.Second

// Server routes report requests to the engine, memoizing results in cache.
type Server struct {
	engine *billing.Engine
	cache  *cache.Cache
	router *mux.Router
	log    zerolog.Logger
}

// New wires the report routes. A nil cache disables caching.
func New(engine *billing.Engine, c *cache.Cache) *Server {
	s := &Server{
		engine: engine,
		cache:  c,
		router: mux.NewRouter().StrictSlash(true),
		log:    logger.WithComponent("http-server"),
	}
	s.initializeRoutes()
	return s
}

func (s *Server) initializeRoutes() {
	s.router.Use(s.requestContext)
	s.router.NotFoundHandler = http.HandlerFunc(notFound)

	s.router.HandleFunc("/healthz", s.health).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/revenue/yearly", s.yearlyRevenue).Methods(http.MethodGet)
	api.HandleFunc("/revenue/monthly", s.monthlyRevenue).Methods(http.MethodGet)
	api.HandleFunc("/revenue/daily", s.dailyCollections).Methods(http.MethodGet)
	api.HandleFunc("/outstanding", s.outstanding).Methods(http.MethodGet)
	api.HandleFunc("/aging/groups", s.agingGroups).Methods(http.MethodGet)
	api.HandleFunc("/aging/details", s.agingDetails).Methods(http.MethodGet)
	api.HandleFunc("/channels", s.channels).Methods(http.MethodGet)
	api.HandleFunc("/overview", s.overview).Methods(http.MethodGet)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	const op = "ListenAndServe"

	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("Server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	case <-ctx.Done():
		s.log.Info().Msg("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s: shutdown: %w", op, err)
		}
		return nil
	}
}
