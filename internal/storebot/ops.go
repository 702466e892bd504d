package storebot

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/m3rciful/storebot/core/buildinfo"
	"github.com/m3rciful/storebot/core/logger"
	"github.com/m3rciful/storebot/core/telegram/state"
)

const readyTimeout = 2 * time.Second

// NewOpsRouter serves /healthz (process is up) and /readyz (session store reachable).
func NewOpsRouter(store state.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, struct {
			Status string `json:"status"`
			buildinfo.Info
		}{"ok", buildinfo.Read()})
	})

	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		p, ok := store.(state.Pinger)
		if !ok {
			writeStatus(w, http.StatusOK, map[string]string{"status": "ok"})
			return
		}
		ctx, cancel := context.WithTimeout(req.Context(), readyTimeout)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			logger.Ops.Warn("readiness check failed",
				slog.String("event", "readyz.fail"),
				slog.String("err", err.Error()),
			)
			writeStatus(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
		writeStatus(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return r
}

// OpsServer runs the health endpoints next to the bot.
type OpsServer struct {
	srv *http.Server
}

// NewOpsServer binds the ops router to addr.
func NewOpsServer(addr string, store state.Store) *OpsServer {
	return &OpsServer{srv: &http.Server{
		Addr:              addr,
		Handler:           NewOpsRouter(store),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}}
}

// Start serves in the background until Shutdown.
func (s *OpsServer) Start() {
	go func() {
		logger.Ops.Info("ops server listening",
			slog.String("event", "listen"),
			slog.String("listen", s.srv.Addr),
		)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Ops.Error("ops server failed",
				slog.String("event", "listen.fail"),
				slog.String("err", err.Error()),
			)
		}
	}()
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *OpsServer) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

func writeStatus(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
