package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"clan_helper_bot/internal/infra/scheduler"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// StatusSource is satisfied by *scheduler.Scheduler.
type StatusSource interface {
	Status() scheduler.Status
}

type handler struct {
	db     Pinger
	status StatusSource
	now    func() time.Time
	logger *logrus.Entry
}

// NewRouter builds the operations router: liveness, database health and scheduler status.
func NewRouter(db Pinger, status StatusSource, logger *logrus.Entry) *chi.Mux {
	h := &handler{db: db, status: status, now: time.Now, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/health", func(r chi.Router) {
		r.Get("/", h.health)
		r.Get("/db", h.healthDB)
	})
	r.Get("/status", h.schedulerStatus)
	return r
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

func (h *handler) healthDB(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	if err := h.db.PingContext(ctx); err != nil {
		h.logger.WithError(err).Warn("Database health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "unhealthy",
			"database":  "disconnected",
			"timestamp": h.now().UTC().Format(time.RFC3339),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"database":  "connected",
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

func (h *handler) schedulerStatus(w http.ResponseWriter, r *http.Request) {
	st := h.status.Status()
	code := http.StatusOK
	if !st.Running {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, st)
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// Server runs the router until Shutdown is called.
type Server struct {
	srv    *http.Server
	logger *logrus.Entry
}

func NewServer(addr string, router http.Handler, logger *logrus.Entry) *Server {
	return &Server{
		srv: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// Start listens in the background. A listen failure is logged, not fatal: the bot keeps working without it.
func (s *Server) Start() {
	go func() {
		s.logger.WithField("addr", s.srv.Addr).Info("Starting HTTP server")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.WithError(err).Error("HTTP server failed")
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")
	return s.srv.Shutdown(ctx)
}
