package main

// @title           Book Catalog API
// @version         1.0
// @description     API for managing books and their cover images.

// @contact.name   Sina Niyavarzi
// @contact.email  sinaniya@gmail.com

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/snnyvrz/book-catalog/internal/asset"
	"github.com/snnyvrz/book-catalog/internal/catalog"
	"github.com/snnyvrz/book-catalog/internal/cleanup"
	"github.com/snnyvrz/book-catalog/internal/config"
	"github.com/snnyvrz/book-catalog/internal/db"
	docs "github.com/snnyvrz/book-catalog/internal/docs"
	"github.com/snnyvrz/book-catalog/internal/handler"
	"github.com/snnyvrz/book-catalog/internal/logging"
	"github.com/snnyvrz/book-catalog/internal/repository"
	"github.com/snnyvrz/book-catalog/internal/telemetry"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"golang.org/x/sync/errgroup"
)

const appVersion = "0.1.0"

// dispatcher is the cleanup side the process has to drain on shutdown.
type dispatcher interface {
	catalog.Cleaner
	Close(ctx context.Context) error
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("books-api: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.Setup(ctx, telemetry.Options{
		ServiceName: cfg.ServiceName,
		Version:     appVersion,
		Endpoint:    cfg.OTLPEndpoint,
	})
	if err != nil {
		return err
	}

	handlers := []slog.Handler{logging.NewHandler(cfg.LogLevel, os.Stdout)}
	if tel.Enabled() {
		handlers = append(handlers, tel.Handler)
	}
	logger := logging.New(handlers...).With(slog.String("service", cfg.ServiceName))

	database, err := db.ConnectWithRetry(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	sqlDB, err := database.DB()
	if err != nil {
		return err
	}

	store, err := newAssetStore(ctx, cfg)
	if err != nil {
		return err
	}

	cleaner, err := newCleaner(ctx, cfg, store, logger)
	if err != nil {
		return err
	}

	svc := catalog.NewService(
		repository.NewGormBookRepository(database),
		store,
		cleaner,
		catalog.WithLogger(logger),
		catalog.WithMaxUploadBytes(cfg.MaxUploadBytes),
		catalog.WithOrphanCompensation(cfg.CompensateOrphans),
	)

	gin.SetMode(cfg.GinMode)

	e, err := handler.NewRouter(handler.RouterConfig{
		Logger:           logger,
		Books:            svc,
		Assets:           store,
		DB:               sqlDB,
		AssetsPrefix:     cfg.AssetsPrefix,
		MaxUploadBytes:   cfg.MaxUploadBytes,
		CORSAllowOrigins: cfg.CORSAllowOrigins,
		TrustedProxies:   cfg.TrustedProxies,
		ServiceName:      cfg.ServiceName,
		Version:          appVersion,
		StartTime:        startTime,
	})
	if err != nil {
		return err
	}

	docs.SwaggerInfo.BasePath = "/api"
	docs.SwaggerInfo.Version = appVersion
	e.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		return errors.Join(
			srv.Shutdown(shutdownCtx),
			cleaner.Close(shutdownCtx),
			db.Close(database),
			tel.Shutdown(shutdownCtx),
		)
	})

	return g.Wait()
}

func newAssetStore(ctx context.Context, cfg *config.Config) (asset.Store, error) {
	if cfg.AssetBackend == config.BackendMinio {
		return asset.NewMinioStore(ctx,
			cfg.MinioEndpoint,
			cfg.MinioAccessKey,
			cfg.MinioSecretKey,
			cfg.MinioBucket,
			cfg.AssetsPrefix,
			cfg.MinioUseSSL,
		)
	}
	return asset.NewLocalStore(cfg.UploadDir, cfg.AssetsPrefix)
}

func newCleaner(ctx context.Context, cfg *config.Config, store asset.Store, logger *slog.Logger) (dispatcher, error) {
	if cfg.RedisAddr == "" {
		return cleanup.NewPool(store, logger, cfg.CleanupWorkers), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}

	q, err := cleanup.NewRedisQueue(client, store, logger, cleanup.RedisQueueConfig{
		MaxRetries: cfg.CleanupMaxRetries,
	})
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	if err := q.Start(ctx, cfg.CleanupWorkers); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &redisDispatcher{RedisQueue: q, client: client}, nil
}

type redisDispatcher struct {
	*cleanup.RedisQueue
	client *redis.Client
}

// Close waits for the consumers, which stop with the signal context, then
// releases the client.
func (d *redisDispatcher) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}
	return d.client.Close()
}
