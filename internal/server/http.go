package server

import (
	"context"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mohoot/live-server/internal/config"
	"github.com/mohoot/live-server/internal/identity"
	"github.com/mohoot/live-server/internal/quiz"
	"github.com/mohoot/live-server/internal/stats"
)

// NewHTTPServer wires the REST surface and the WebSocket endpoint.
func NewHTTPServer(
	cfg *config.App,
	logger zerolog.Logger,
	pool *pgxpool.Pool,
	redisClient *redis.Client,
	identityHandlers *identity.HTTPHandlers,
	quizHandlers *quiz.HTTPHandlers,
	statsHandler *stats.HTTPHandler,
	sessionWS http.Handler,
) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/v1/ping", func(w http.ResponseWriter, r *http.Request) {
		if err := pingDependencies(r.Context(), pool, redisClient); err != nil {
			logger.Error().Err(err).Msg("dependency ping failed")
			http.Error(w, "upstream error", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pong":true}`))
	})

	mux.HandleFunc("POST /v1/auth/guest", identityHandlers.CreateGuest)

	mux.HandleFunc("POST /v1/quizzes", quizHandlers.HandleCreate)
	mux.HandleFunc("GET /v1/quizzes", quizHandlers.HandleList)
	mux.HandleFunc("GET /v1/quizzes/{id}", quizHandlers.HandleGet)
	mux.HandleFunc("PUT /v1/quizzes/{id}", quizHandlers.HandleUpdate)
	mux.HandleFunc("DELETE /v1/quizzes/{id}", quizHandlers.HandleDelete)

	mux.HandleFunc("GET /v1/stats/me", statsHandler.HandleGetMe)
	mux.HandleFunc("GET /v1/stats/me/history", statsHandler.HandleGetHistory)

	mux.Handle("/ws/sessions", sessionWS)

	return &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}
}

func pingDependencies(ctx context.Context, pool *pgxpool.Pool, redisClient *redis.Client) error {
	if err := pool.Ping(ctx); err != nil {
		return err
	}
	return redisClient.Ping(ctx).Err()
}
