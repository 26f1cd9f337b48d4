package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/user-management/internal/config"
	"github.com/iliyamo/user-management/internal/database"
	"github.com/iliyamo/user-management/internal/handler"
	"github.com/iliyamo/user-management/internal/logging"
	"github.com/iliyamo/user-management/internal/middleware"
	"github.com/iliyamo/user-management/internal/queue"
	"github.com/iliyamo/user-management/internal/repository"
	"github.com/iliyamo/user-management/internal/router"
	"github.com/iliyamo/user-management/internal/service"
	"github.com/iliyamo/user-management/internal/storage"
	"github.com/iliyamo/user-management/internal/utils"
)

// revocationPurgeInterval is how often expired rows leave revoked_tokens.
const revocationPurgeInterval = time.Hour

func main() {
	cfg := config.Load()
	log := logging.New(os.Stdout, cfg.LogFormat, cfg.LogLevel)
	if err := run(cfg, log); err != nil {
		log.Error(context.Background(), "server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		return err
	}

	rdb := config.NewRedisClient(cfg.Redis)
	var shared redis.UniversalClient
	if rdb != nil {
		shared = rdb
		defer rdb.Close()
	} else {
		log.Warn(ctx, "redis unavailable, rate limiting and caching run in process", "addr", cfg.Redis.Addr)
	}

	revoked, err := repository.NewRevocationStore(cfg.RevocationBackend, shared, db, cfg.RevocationPrefix)
	if err != nil {
		return fmt.Errorf("revocation store: %w", err)
	}
	if sqlStore, ok := revoked.(*repository.SQLRevocationStore); ok {
		go purgeRevoked(ctx, sqlStore, log)
	}

	codec, err := utils.NewTokenCodec(cfg.JWTSecret, cfg.JWTAlgorithm)
	if err != nil {
		return err
	}
	issuer := service.NewTokenIssuer(codec, cfg)

	var notifier service.ResetNotifier
	if cfg.RabbitMQ.URL != "" {
		notifier = service.NewQueuePublisher(cfg.RabbitMQ, log)
		if cfg.RabbitMQ.ConsumerEnabled {
			go func() {
				if err := queue.StartResetConsumer(ctx, cfg.RabbitMQ, log); err != nil && !errors.Is(err, context.Canceled) {
					log.Error(ctx, "reset consumer stopped", "error", err)
				}
			}()
		}
	} else {
		log.Warn(ctx, "RABBITMQ_URL not set, password reset links are not delivered")
	}

	var avatars service.AvatarStore
	if cfg.S3.Enabled {
		store, err := storage.NewAvatarStore(ctx, cfg.S3)
		if err != nil {
			return err
		}
		avatars = store
	}

	users := repository.NewUserRepo(db)
	groups := repository.NewGroupRepo(db)
	auth := service.NewAuthService(cfg, users, groups, utils.NewPasswordHasher(cfg.BcryptCost),
		issuer, revoked, notifier, log)

	e := router.New(log)
	router.RegisterRoutes(e, handler.NewHealthHandler(healthChecks(db, rdb)))
	router.RegisterAuth(e, handler.NewAuthHandler(auth, log), middleware.NewTokenBucket(cfg.RateLimit, rdb, log))
	router.RegisterUsers(e, handler.NewUserHandler(service.NewUserService(users, avatars, log), log), codec, log)
	router.RegisterGroups(e, handler.NewGroupHandler(service.NewGroupService(groups, log), log), codec, log,
		middleware.NewRedisCache(cfg.Cache, rdb, log))

	return serve(ctx, e, ":"+cfg.Port, cfg.Env, log)
}

// serve runs e until ctx is cancelled and then drains in-flight requests.
func serve(ctx context.Context, e *echo.Echo, addr, env string, log logging.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "listening", "addr", addr, "env", env)
		errCh <- e.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info(shutdownCtx, "shutting down")
	return e.Shutdown(shutdownCtx)
}

func healthChecks(db *sql.DB, rdb *redis.Client) map[string]handler.HealthCheck {
	checks := map[string]handler.HealthCheck{"mysql": db.PingContext}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	return checks
}

func purgeRevoked(ctx context.Context, store *repository.SQLRevocationStore, log logging.Logger) {
	t := time.NewTicker(revocationPurgeInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := store.PurgeExpired(ctx)
			if err != nil {
				log.Warn(ctx, "revocation purge failed", "error", err)
				continue
			}
			if n > 0 {
				log.Debug(ctx, "revocation purge", "removed", n)
			}
		}
	}
}
