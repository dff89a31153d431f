// Package api is the thin HTTP transport over the config model and the
// server state aggregate: token auth, JSON (un)marshalling, routing. It
// adds no domain logic of its own.
package api

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/watchmesh/watchmesh/internal/config"
	"github.com/watchmesh/watchmesh/internal/incident"
	"github.com/watchmesh/watchmesh/internal/state"
)

// Server wires the state aggregate, config snapshot, and alert router
// behind chi routes.
type Server struct {
	log    hclog.Logger
	token  string
	agg    *state.Aggregate
	router *incident.Router

	snapMu sync.RWMutex
	snap   *config.Snapshot
}

func NewServer(log hclog.Logger, token string, agg *state.Aggregate, router *incident.Router, snap *config.Snapshot) *Server {
	return &Server{log: log, token: token, agg: agg, router: router, snap: snap}
}

// UpdateSnapshot swaps the config snapshot the /config endpoint serves,
// called by the operator-triggered reload path.
func (s *Server) UpdateSnapshot(snap *config.Snapshot) {
	s.snapMu.Lock()
	defer s.snapMu.Unlock()
	s.snap = snap
}

func (s *Server) currentSnapshot() *config.Snapshot {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	return s.snap
}

// Handler returns the chi router with every route mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Second))
	r.Use(s.requestIDHeader)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authenticate)
		r.Get("/config", s.handleGetConfig)
		r.Post("/relay/{region}", s.handlePostRelay)
		r.Get("/analytics", s.handleAnalytics)
		r.Get("/status", s.handleStatus)
		r.Get("/incidents", s.handleIncidents)
		r.Post("/alerting/test", s.handleAlertingTest)
	})

	return r
}

// requestIDHeader tags the uuid used for correlation across log lines.
func (s *Server) requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r)
	})
}

// authenticate rejects any request without the exact shared bearer token,
// comparing in constant time to avoid leaking the token via timing.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		const prefix = "Bearer "
		auth := r.Header.Get("Authorization")
		if len(auth) < len(prefix) || auth[:len(prefix)] != prefix {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		given := auth[len(prefix):]
		if subtle.ConstantTimeCompare([]byte(given), []byte(s.token)) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
