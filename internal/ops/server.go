// Package ops exposes the small operational HTTP surface: liveness with a
// storage ping, and build information.
package ops

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/m3rciful/agrobot/core/buildinfo"
	"github.com/m3rciful/agrobot/core/logger"
	"log/slog"
)

// Config controls the ops listener. An empty Listen disables it.
type Config struct {
	Listen string `yaml:"listen" envconfig:"OPS_LISTEN"`
}

// Pinger checks storage connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the ops HTTP listener.
type Server struct {
	cfg        Config
	srv        *http.Server
	ping       Pinger
	sendErrors func() uint64
}

// New builds the server; nil when disabled.
func New(cfg Config, ping Pinger) *Server {
	if cfg.Listen == "" {
		return nil
	}
	s := &Server{cfg: cfg, ping: ping}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/version", s.handleVersion)

	s.srv = &http.Server{
		Addr:              cfg.Listen,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// SetSendErrors installs the outbound-failure counter reported by healthz.
// Called once the Telegram dispatcher exists, which is after New.
func (s *Server) SetSendErrors(fn func() uint64) {
	if s == nil {
		return
	}
	s.sendErrors = fn
}

// Start runs the listener in a goroutine; errors other than a clean close
// are logged, never fatal.
func (s *Server) Start() {
	if s == nil {
		return
	}
	logger.OPS.Info("ops server listening",
		slog.String("event", "start"),
		slog.String("addr", s.cfg.Listen),
	)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.OPS.Error("ops server stopped",
				slog.String("event", "stop"),
				slog.String("err", err.Error()),
			)
		}
	}()
}

// Shutdown stops the listener gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	body := map[string]any{"status": "ok"}
	if s.ping != nil {
		if err := s.ping.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["storage"] = err.Error()
		}
	}
	if s.sendErrors != nil {
		body["send_errors"] = s.sendErrors()
	}
	writeJSON(w, status, body)
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version": buildinfo.Version,
		"commit":  buildinfo.Commit,
		"date":    buildinfo.Date,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
