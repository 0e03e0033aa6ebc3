package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/aicmo/auth-service/internal/api"
	"github.com/aicmo/auth-service/internal/api/handler"
	"github.com/aicmo/auth-service/internal/core/ports"
	"github.com/aicmo/auth-service/internal/core/service"
	"github.com/aicmo/auth-service/internal/infrastructure/config"
	"github.com/aicmo/auth-service/internal/infrastructure/db/memory"
	"github.com/aicmo/auth-service/internal/infrastructure/db/mongo"
	"github.com/aicmo/auth-service/internal/infrastructure/db/postgres"
	"github.com/aicmo/auth-service/internal/infrastructure/db/redis"
	"github.com/aicmo/auth-service/internal/infrastructure/security"
	"github.com/aicmo/auth-service/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		// The singleton may not exist yet when configuration fails.
		log := zerolog.New(os.Stderr).With().Timestamp().Logger()
		log.Fatal().Err(err).Msg("auth-service stopped")
	}
}

// store bundles the selected credential store with its readiness check and
// shutdown hook.
type store struct {
	repo  ports.UserRepository
	ping  handler.DependencyCheck
	close func(context.Context) error
}

func run(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "auth-service",
	})

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.close(context.Background()); err != nil {
			log.Warn().Err(err).Msg("closing credential store")
		}
	}()

	checks := map[string]handler.DependencyCheck{"store": st.ping}

	var limiter *redis.AttemptLimiter
	if cfg.Redis.Addr != "" {
		rdb, err := redis.Connect(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		defer rdb.Close()

		limiter = redis.NewAttemptLimiter(rdb, cfg.RateLimit.Attempts, cfg.RateLimit.Window.Std())
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		log.Info().Str("addr", cfg.Redis.Addr).Msg("attempt limiter enabled")
	}

	hasher := security.NewBcryptHasher(cfg.BcryptCost)
	tokens := security.NewJWTManager(cfg.JWT.Secret, cfg.JWT.ExpiresIn.Std())
	authService := service.NewAuthService(st.repo, hasher, tokens, cfg.StoreTimeout.Std(), logger.Component("auth"))

	seedCtx, cancelSeed := context.WithTimeout(ctx, cfg.StoreTimeout.Std())
	err = service.EnsureAdmin(seedCtx, st.repo, hasher, cfg.Admin.Username, cfg.Admin.Password, logger.Component("bootstrap"))
	cancelSeed()
	if err != nil {
		return err
	}

	deps := api.Deps{
		AuthService: authService,
		Verifier:    tokens,
		TrustProxy:  cfg.Server.TrustProxy,
		Checks:      checks,
		Log:         logger.Component("http"),
	}
	if limiter != nil {
		deps.Limiter = limiter
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.NewRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("store", cfg.StoreDriver).Msg("auth-service listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*store, error) {
	switch cfg.StoreDriver {
	case config.StoreMongo:
		client, db, err := mongo.Connect(ctx, mongo.Config{
			URI:              cfg.Mongo.URI,
			Database:         cfg.Mongo.Database,
			OperationTimeout: cfg.StoreTimeout.Std(),
		})
		if err != nil {
			return nil, err
		}
		repo := mongo.NewUserRepository(db)
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
		log.Info().Str("database", cfg.Mongo.Database).Msg("connected to mongo")
		return &store{
			repo:  repo,
			ping:  func(ctx context.Context) error { return client.Ping(ctx, nil) },
			close: client.Disconnect,
		}, nil

	case config.StorePostgres:
		db, err := postgres.Connect(ctx, postgres.Config{DSN: cfg.Postgres.DSN})
		if err != nil {
			return nil, err
		}
		log.Info().Msg("connected to postgres")
		return &store{
			repo:  postgres.NewUserRepository(db),
			ping:  db.PingContext,
			close: func(context.Context) error { return db.Close() },
		}, nil

	case config.StoreMemory:
		repo := memory.NewUserRepository()
		log.Warn().Msg("using in-memory credential store; users are lost on restart")
		return &store{
			repo:  repo,
			ping:  repo.Ping,
			close: func(context.Context) error { return nil },
		}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
