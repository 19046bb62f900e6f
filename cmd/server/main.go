package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kayprogrammer/socialnet-v2/config"
	"github.com/kayprogrammer/socialnet-v2/internal/api"
	"github.com/kayprogrammer/socialnet-v2/internal/api/handler"
	"github.com/kayprogrammer/socialnet-v2/internal/auth"
	"github.com/kayprogrammer/socialnet-v2/internal/model"
	"github.com/kayprogrammer/socialnet-v2/internal/relay"
	"github.com/kayprogrammer/socialnet-v2/internal/repository"
	"github.com/kayprogrammer/socialnet-v2/internal/service"
	"github.com/kayprogrammer/socialnet-v2/internal/storage"
	"github.com/kayprogrammer/socialnet-v2/pkg/database"
	"github.com/kayprogrammer/socialnet-v2/pkg/logger"
	"github.com/kayprogrammer/socialnet-v2/pkg/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Development); err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Error("server exited", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.Sentry.DSN, Environment: cfg.Sentry.Environment}); err != nil {
			return err
		}
		defer sentry.Flush(2 * time.Second)
	}

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing.ServiceName, cfg.Tracing.Endpoint, cfg.Tracing.Insecure)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	db, err := database.InitDB(cfg)
	if err != nil {
		return err
	}
	if err := model.AutoMigrate(db); err != nil {
		return err
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
		defer rdb.Close()
	}

	hub := relay.NewHub()
	var broker relay.Broker = hub
	if cfg.Relay.RedisBridge && rdb != nil {
		rb := relay.NewRedisBroker(rdb, cfg.Relay.RedisChannel, hub)
		if err := rb.Run(ctx); err != nil {
			return err
		}
		broker = rb
		logger.Info("relay redis bridge enabled", zap.String("channel", cfg.Relay.RedisChannel))
	}

	signer := storage.NewSigner(cfg.Storage.CloudName, cfg.Storage.APIKey, cfg.Storage.APISecret, cfg.Storage.UploadURL)
	directory := service.NewDirectory(repository.NewUserRepository(db), signer, rdb, cfg.Redis.CacheTTL)
	verifier := auth.NewTokenVerifier(cfg.JWT.Secret, cfg.JWT.TTL, directory)

	notifications := service.NewNotificationService(db, directory, broker)
	chats := service.NewChatService(db, directory, signer, broker)
	feed := service.NewFeedService(db, directory, notifications, signer, broker)
	friends := service.NewFriendService(repository.NewFriendRepository(db), directory)

	broadcaster := service.NewBroadcaster(db, broker, cfg.Notifications.BroadcastWorkers, cfg.Notifications.BroadcastBatch, cfg.Notifications.PollInterval)
	stopBroadcaster := broadcaster.Start()

	ws := relay.NewServer(hub, broker, verifier, chats, relay.Options{
		QueueSize:       cfg.Relay.QueueSize,
		PingInterval:    cfg.Relay.PingInterval,
		WriteTimeout:    cfg.Relay.WriteTimeout,
		FramesPerSecond: cfg.Relay.FramesPerSecond,
		Burst:           cfg.Relay.Burst,
	}, cfg.Server.AllowedOrigins)

	router, err := api.NewRouter(api.Options{
		Mode:        cfg.Server.Mode,
		ServiceName: cfg.Tracing.ServiceName,
		Sentry:      cfg.Sentry.DSN != "",
		Tracing:     cfg.Tracing.Endpoint != "",
	}, handler.NewHandler(chats, feed, notifications, friends), ws, verifier)
	if err != nil {
		return err
	}

	srv := &http.Server{Addr: ":" + cfg.Server.Port, Handler: router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	return stopBroadcaster(shutdownCtx)
}
