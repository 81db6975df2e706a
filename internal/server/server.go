// Package server exposes the activities HTTP surface and the per-session
// websocket stream.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/parlorlabs/arcade/internal/auth"
	"github.com/parlorlabs/arcade/internal/coordinator"
	"github.com/parlorlabs/arcade/internal/hub"
	"github.com/parlorlabs/arcade/internal/wire"
)

// Config configures a Server.
type Config struct {
	Logger      *slog.Logger
	Addr        string
	Coordinator *coordinator.Coordinator
	Hub         *hub.Hub
	Auth        *auth.Authenticator
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.Coordinator == nil {
		return errors.New("coordinator is required")
	}
	if c.Hub == nil {
		return errors.New("hub is required")
	}
	if c.Auth == nil {
		return errors.New("authenticator is required")
	}
	return nil
}

type Server struct {
	log   *slog.Logger
	addr  string
	coord *coordinator.Coordinator
	hub   *hub.Hub
	auth  *auth.Authenticator
}

func New(cfg *Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Server{
		log:   cfg.Logger,
		addr:  cfg.Addr,
		coord: cfg.Coordinator,
		hub:   cfg.Hub,
		auth:  cfg.Auth,
	}, nil
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("POST /activities/session", s.authed(s.handleCreate))
	mux.HandleFunc("GET /activities/sessions", s.authed(s.handleList))
	mux.HandleFunc("GET /activities/session/{id}", s.authed(s.handleGet))
	mux.HandleFunc("POST /activities/session/{id}/join", s.authed(s.handleJoin))
	mux.HandleFunc("POST /activities/session/{id}/leave", s.authed(s.handleLeave))
	mux.HandleFunc("POST /activities/session/{id}/ready", s.authed(s.handleReady))
	mux.HandleFunc("POST /activities/session/{id}/start", s.authed(s.handleStart))
	mux.HandleFunc("GET /activities/session/{id}/stream", s.handleStream)
	return mux
}

// Run serves until ctx is cancelled, then drains with a bounded shutdown.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// authed wraps a handler with bearer authentication.
func (s *Server) authed(next func(w http.ResponseWriter, r *http.Request, id auth.Identity)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := s.auth.Authenticate(r)
		if err != nil {
			s.writeError(w, wire.NewError(wire.CodeUnauthorized, ""))
			return
		}
		next(w, r, id)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var werr *wire.Error
	if !errors.As(err, &werr) {
		s.log.Error("request failed", "error", err)
		werr = wire.NewError(wire.CodeInternal, "")
	}
	s.writeJSON(w, werr.Code.HTTPStatus(), werr)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Debug("failed to write response", "error", err)
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, wire.NewError(wire.CodeInvalidRequest, "malformed request body"))
		return false
	}
	return true
}
