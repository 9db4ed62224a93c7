// Package webserver exposes the mutation API and the realtime channel. Every
// state-changing handler performs exactly one store operation and, only when
// that operation succeeds, hands the resulting record to the broadcaster
// before writing the response, so the response body and the broadcast carry
// the same record value.
package webserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/civicworks/wastewatch/internal/events"
	"github.com/civicworks/wastewatch/internal/hub"
	"github.com/civicworks/wastewatch/internal/notify"
	"github.com/civicworks/wastewatch/internal/store"
)

type Config struct {
	Port          int
	Host          string
	AllowedOrigin string
}

type Server struct {
	store       *store.Store
	hub         *hub.Hub
	broadcaster events.Broadcaster
	notifier    *notify.Notifier
	cfg         Config
	logger      *slog.Logger
	http        *http.Server
}

func New(st *store.Store, h *hub.Hub, n *notify.Notifier, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		store:    st,
		hub:      h,
		notifier: n,
		cfg:      cfg,
		logger:   logger,
	}
	if h != nil {
		s.broadcaster = h
	}
	return s
}

// SetBroadcaster replaces the event sink. Used in tests.
func (s *Server) SetBroadcaster(b events.Broadcaster) {
	s.broadcaster = b
}

func (s *Server) emit(e events.Event) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.Broadcast(e)
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(s.logRequests)
	r.Use(CORS(s.cfg.AllowedOrigin))

	r.Get("/api/health", s.handleHealth)

	r.Route("/api/requests", func(r chi.Router) {
		r.Get("/", s.handleList(store.KindRequest))
		r.Post("/", s.handleCreate(store.KindRequest))
		r.Get("/{id}", s.handleGet(store.KindRequest))
		r.Patch("/{id}/status", s.handleUpdateStatus(store.KindRequest))
	})
	r.Route("/api/reports", func(r chi.Router) {
		r.Get("/", s.handleList(store.KindReport))
		r.Post("/", s.handleCreate(store.KindReport))
		r.Get("/{id}", s.handleGet(store.KindReport))
		r.Patch("/{id}/status", s.handleUpdateStatus(store.KindReport))
	})

	r.Get("/ws", s.handleWS)
	r.Handle("/*", http.FileServer(staticFiles()))

	return r
}

// Start listens until Shutdown is called or the listener fails.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("listening", "addr", addr)
	err := s.http.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown disconnects all viewer sessions and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.hub != nil {
		s.hub.Close()
	}
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
