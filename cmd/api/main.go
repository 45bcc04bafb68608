package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"chessmate/internal/auth"
	"chessmate/internal/config"
	transporthttp "chessmate/internal/http"
	"chessmate/internal/platform/database"
	"chessmate/internal/platform/logging"
	"chessmate/internal/platform/metrics"
	"chessmate/internal/platform/migrate"
	"chessmate/internal/platform/mongodb"
	platformredis "chessmate/internal/platform/redis"
	"chessmate/internal/status"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	stores, err := buildStores(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize stores", "error", err)
		os.Exit(1)
	}
	defer stores.close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	exchangeOpts := []auth.ExchangeOption{
		auth.WithExchangeTimeout(cfg.ExchangeTimeout),
		auth.WithLatencyObserver(collector),
	}
	if cfg.ExchangeClientID != "" {
		exchangeOpts = append(exchangeOpts, auth.WithClientCredentials(ctx, cfg.ExchangeClientID, cfg.ExchangeClientSecret, cfg.ExchangeTokenURL))
	}
	exchange := auth.NewHTTPExchange(cfg.ExchangeURL, exchangeOpts...)

	authSvc := auth.NewService(stores.users, stores.sessions, exchange,
		auth.WithSessionTTL(cfg.SessionTTL),
		auth.WithUserListLimit(cfg.UserListLimit),
		auth.WithLogger(logger),
		auth.WithMetrics(collector),
	)
	statusSvc := status.NewService(stores.status)

	if cfg.SessionSweepInterval > 0 {
		go auth.NewSweeper(authSvc, cfg.SessionSweepInterval, logger).Run(ctx)
	}

	router := transporthttp.NewRouter(cfg, transporthttp.Dependencies{
		Auth:    authSvc,
		Status:  statusSvc,
		Store:   stores.pingers,
		Metrics: metrics.Handler(registry),
		Logger:  logger,
	})
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.ExchangeTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    http.DefaultMaxHeaderBytes,
	}

	go func() {
		logger.Info("Chessmate API listening", "addr", srv.Addr, "store", cfg.DataStore, "session_store", cfg.SessionStore)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

type pingers []transporthttp.Pinger

func (p pingers) Ping(ctx context.Context) error {
	for _, pinger := range p {
		if err := pinger.Ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

type storeSet struct {
	users    auth.UserStore
	sessions auth.SessionStore
	status   status.Repository
	pingers  pingers
	cleanups []func()
}

func (s *storeSet) close() {
	for i := len(s.cleanups) - 1; i >= 0; i-- {
		s.cleanups[i]()
	}
}

func buildStores(ctx context.Context, cfg config.Config, logger *slog.Logger) (*storeSet, error) {
	stores := &storeSet{}

	switch cfg.DataStore {
	case config.StoreMongo:
		client, err := mongodb.Connect(ctx, mongodb.Config{
			URL:            cfg.MongoURL,
			Database:       cfg.MongoDatabase,
			ConnectTimeout: 10 * time.Second,
			MaxPoolSize:    100,
			RetryAttempts:  5,
			RetryInterval:  2 * time.Second,
		})
		if err != nil {
			return nil, err
		}
		stores.cleanups = append(stores.cleanups, func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(disconnectCtx)
		})

		db := client.Database(cfg.MongoDatabase)
		repo := auth.NewMongoRepository(db)
		if err := repo.EnsureIndexes(ctx); err != nil {
			stores.close()
			return nil, err
		}
		logger.Info("connected to mongodb", "database", cfg.MongoDatabase)
		stores.users, stores.sessions, stores.status = repo, repo, status.NewMongoRepository(db)
		stores.pingers = append(stores.pingers, repo)

	case config.StorePostgres:
		db, err := database.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		stores.cleanups = append(stores.cleanups, func() { _ = db.Close() })

		if err := migrate.Apply(ctx, db, logger); err != nil {
			stores.close()
			return nil, err
		}
		logger.Info("connected to postgres")
		repo := auth.NewPostgresRepository(db)
		stores.users, stores.sessions, stores.status = repo, repo, status.NewPostgresRepository(db)
		stores.pingers = append(stores.pingers, repo)

	default:
		logger.Info("using in-memory repository")
		repo := auth.NewInMemoryRepository()
		if cfg.IsDevelopment() {
			seedLocalUsers(ctx, repo, logger)
		}
		stores.users, stores.sessions, stores.status = repo, repo, status.NewInMemoryRepository()
		stores.pingers = append(stores.pingers, repo)
	}

	if cfg.SessionStore == config.StoreRedis {
		client, err := platformredis.Connect(ctx, platformredis.Config{
			URL:            cfg.RedisURL,
			ConnectTimeout: 10 * time.Second,
			RetryAttempts:  5,
			RetryInterval:  2 * time.Second,
		})
		if err != nil {
			stores.close()
			return nil, err
		}
		stores.cleanups = append(stores.cleanups, func() { _ = client.Close() })

		logger.Info("using redis session store")
		sessions := auth.NewRedisSessionStore(client)
		stores.sessions = sessions
		stores.pingers = append(stores.pingers, sessions)
	}

	return stores, nil
}
