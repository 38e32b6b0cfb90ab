package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/gridparty/tictactoe-relay/internal/repository"
)

type roomCounter interface {
	Count() int
}

// Server exposes the read-only HTTP surface: liveness and outcome tallies.
type Server struct {
	logger   *slog.Logger
	archive  repository.ResultArchive
	registry roomCounter
}

func New(logger *slog.Logger, archive repository.ResultArchive, registry roomCounter) *Server {
	return &Server{
		logger:   logger.With("component", "rest"),
		archive:  archive,
		registry: registry,
	}
}

// Start - starts the HTTP server and blocks until ctx is canceled.
func (that *Server) Start(ctx context.Context, port string) error {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)

	router.Get("/ping", that.handlePing)
	router.Get("/stats", that.handleStats)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			that.logger.Error("failed to shut down http server", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

func (that *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write([]byte("pong")); err != nil {
		that.logger.Error("failed to write ping response", "error", err)
	}
}

type statsResponse struct {
	LiveRooms int              `json:"live_rooms"`
	Results   repository.Stats `json:"results"`
}

func (that *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "handleStats")

	stats, err := that.archive.Stats(r.Context())
	if err != nil {
		log.Error("failed to read stats", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)

		return
	}

	response := statsResponse{
		LiveRooms: that.registry.Count(),
		Results:   stats,
	}

	w.Header().Set("Content-Type", "application/json")

	if err = json.NewEncoder(w).Encode(response); err != nil {
		log.Error("failed to encode stats response", "error", err)
	}
}
