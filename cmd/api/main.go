package main

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/guildgate/internal/adapter/cache"
	"github.com/smallbiznis/guildgate/internal/adapter/discord"
	"github.com/smallbiznis/guildgate/internal/config"
	httptransport "github.com/smallbiznis/guildgate/internal/http"
	"github.com/smallbiznis/guildgate/internal/http/handler"
	httpmiddleware "github.com/smallbiznis/guildgate/internal/http/middleware"
	"github.com/smallbiznis/guildgate/internal/jwt"
	apimiddleware "github.com/smallbiznis/guildgate/internal/middleware"
	"github.com/smallbiznis/guildgate/internal/repository"
	"github.com/smallbiznis/guildgate/internal/server"
	"github.com/smallbiznis/guildgate/internal/service"
	authservice "github.com/smallbiznis/guildgate/internal/service/auth"
	"github.com/smallbiznis/guildgate/internal/session"
	"github.com/smallbiznis/guildgate/internal/telemetry"
	"github.com/smallbiznis/guildgate/internal/verification"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newSnowflake,
			newPGXPool,
			newProjectRepository,
			newVerificationRepository,
			newRedisStore,
			newEphemeralStore,
			newRoleSyncQueue,
			newCodec,
			session.NewRegistry,
			session.NewStateGuard,
			verification.NewChallenges,
			newDiscordClient,
			service.NewAuthService,
			newSessionIssuer,
			authservice.NewOAuthService,
			service.NewVerificationService,
			apimiddleware.NewRateLimiter,
			newAuthMiddleware,
			handler.NewAuthHandler,
			handler.NewVerificationHandler,
			handler.NewAdminHandler,
			newHealthHandler,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, startHTTPServer),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Environment == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

func newSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}

func newPGXPool(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})

	return pool, nil
}

func newProjectRepository(pool *pgxpool.Pool) repository.ProjectRepository {
	return repository.NewPostgresProjectRepo(pool)
}

func newVerificationRepository(pool *pgxpool.Pool) repository.VerificationRepository {
	return repository.NewPostgresVerificationRepo(pool)
}

func newRedisStore(lc fx.Lifecycle, cfg config.Config) (*cache.RedisStore, error) {
	store, err := cache.Open(context.Background(), cfg)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return store.Close()
		},
	})
	return store, nil
}

func newEphemeralStore(store *cache.RedisStore) repository.EphemeralStore {
	return store
}

func newRoleSyncQueue(store *cache.RedisStore) repository.RoleSyncQueue {
	return cache.NewRedisRoleSyncQueue(store.Client())
}

func newCodec(cfg config.Config) (*jwt.Codec, error) {
	return jwt.NewCodec(cfg.AccessTokenSecret, cfg.RefreshTokenSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
}

func newDiscordClient(cfg config.Config) discord.Client {
	return discord.NewHTTPClient(cfg)
}

func newSessionIssuer(auth *service.AuthService) authservice.SessionIssuer {
	return auth
}

func newAuthMiddleware(codec *jwt.Codec) *httpmiddleware.Auth {
	return &httpmiddleware.Auth{Codec: codec}
}

func newHealthHandler(store *cache.RedisStore) *handler.HealthHandler {
	return handler.NewHealthHandler(store)
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, logger *zap.Logger) {
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				logger.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.Run(runCtx); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func useTelemetry(*telemetry.Provider) {}
