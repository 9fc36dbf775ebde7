package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mohoot/live-server/internal/config"
	"github.com/mohoot/live-server/internal/db/repository"
	"github.com/mohoot/live-server/internal/identity"
	"github.com/mohoot/live-server/internal/logging"
	"github.com/mohoot/live-server/internal/quiz"
	"github.com/mohoot/live-server/internal/scoring"
	"github.com/mohoot/live-server/internal/server"
	"github.com/mohoot/live-server/internal/session"
	"github.com/mohoot/live-server/internal/stats"
	"github.com/mohoot/live-server/pkg/http/ws"
)

// Application aggregates shared infrastructure (DB, cache, HTTP server).
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	pool  *pgxpool.Pool
	redis *redis.Client
	http  *http.Server

	broadcaster *session.Broadcaster
	bgCancels   []context.CancelFunc
}

// New bootstraps config, logger, Postgres, Redis and the HTTP server.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env)
	logger.Info().Msg("starting application bootstrap")

	connString := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=10",
		cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.User, cfg.Postgres.Password, cfg.Postgres.Database, cfg.Postgres.SSLMode)

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	quizRepo := repository.NewQuizRepository(pool)
	historyRepo := repository.NewHistoryRepository(pool)

	identitySvc := identity.NewService(identity.Config{
		Secret: []byte(cfg.Security.TokenSecret),
		TTL:    cfg.Security.TokenTTL,
		Issuer: cfg.Name,
	}, logger)
	identityHandlers := identity.NewHTTPHandlers(identitySvc)

	scorer := scoring.NewEngine(scoring.Config{BaseScore: cfg.Game.BaseScore})
	aggregator := stats.NewAggregator(redisClient, cfg.AppID, logger)
	store := session.NewSnapshotStore(redisClient, cfg.AppID, cfg.Game.SessionTTL, logger)

	manager := session.NewManager(store, scorer, aggregator, historyRepo, cfg.Game.PreRoll, cfg.Game.PinMaxAttempts, logger)
	wsHub := ws.NewHub(logger)

	sessionHandler := session.NewHandler(manager, wsHub, store, identitySvc, quizRepo, logger)
	broadcaster := session.NewBroadcaster(redisClient, wsHub, manager, logger)

	quizHandlers := quiz.NewHTTPHandlers(quizRepo, identityHandlers, logger)
	statsHandler := stats.NewHTTPHandler(aggregator, historyRepo, identityHandlers, logger)

	apiServer := server.NewHTTPServer(cfg, logger, pool, redisClient, identityHandlers, quizHandlers, statsHandler, sessionHandler)

	return &Application{
		cfg:         cfg,
		logger:      logger,
		pool:        pool,
		redis:       redisClient,
		http:        apiServer,
		broadcaster: broadcaster,
		bgCancels:   make([]context.CancelFunc, 0, 1),
	}, nil
}

// Run starts the HTTP server and waits for termination signals.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	a.startBackgroundWorkers(ctx)

	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}

	for _, cancel := range a.bgCancels {
		cancel()
	}

	a.pool.Close()
	if err := a.redis.Close(); err != nil {
		a.logger.Error().Err(err).Msg("redis shutdown error")
	}

	a.logger.Info().Msg("shutdown complete")
	return nil
}

func (a *Application) startBackgroundWorkers(ctx context.Context) {
	bgCtx, cancel := context.WithCancel(ctx)
	a.bgCancels = append(a.bgCancels, cancel)
	go func() {
		if err := a.broadcaster.Run(bgCtx); err != nil && err != context.Canceled {
			a.logger.Warn().Err(err).Msg("session broadcaster stopped")
		}
	}()
}
