// Package main is the entry point for the Trove server.
// Trove is a campus lost-and-found service with a JSON REST API.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/campus-tf/trove/internal/auth"
	memorycache "github.com/campus-tf/trove/internal/cache/memory"
	rediscache "github.com/campus-tf/trove/internal/cache/redis"
	"github.com/campus-tf/trove/internal/config"
	"github.com/campus-tf/trove/internal/handler"
	"github.com/campus-tf/trove/internal/lock"
	"github.com/campus-tf/trove/internal/metrics"
	"github.com/campus-tf/trove/internal/repository"
	"github.com/campus-tf/trove/internal/repository/postgres"
	"github.com/campus-tf/trove/internal/repository/sqlite"
	"github.com/campus-tf/trove/internal/service"
	"github.com/campus-tf/trove/internal/storage"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const itemCacheTTL = 5 * time.Minute

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	cfg := config.MustLoad(*configPath)
	logger := newLogger(cfg.Logging)

	logger.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Msg("starting trove server")

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server exited with error")
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	var (
		userRepo repository.UserRepository
		itemRepo repository.ItemRepository
		ping     func(ctx context.Context) error
	)

	switch {
	case cfg.Database.IsEmbedded():
		dbCfg := sqlite.DefaultConfig(cfg.Database.Path)
		dbCfg.JournalMode = cfg.Database.JournalMode
		dbCfg.BusyTimeout = cfg.Database.BusyTimeout
		dbCfg.CacheSize = cfg.Database.CacheSize
		dbCfg.SynchronousMode = cfg.Database.SynchronousMode

		db, err := sqlite.NewDB(ctx, dbCfg, logger)
		if err != nil {
			return fmt.Errorf("opening sqlite database: %w", err)
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}

		userRepo = sqlite.NewUserRepository(db)
		itemRepo = sqlite.NewItemRepository(db)
		ping = db.Ping

	default:
		db, err := postgres.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}

		userRepo = postgres.NewUserRepository(db)
		itemRepo = postgres.NewItemRepository(db)
		ping = db.Ping
	}

	logger.Info().Str("driver", cfg.Database.Driver).Msg("database ready")

	// Cache and distributed lock. Redis when enabled, in-process otherwise.
	var (
		itemCache repository.Cache
		locker    lock.Locker
	)
	if cfg.Redis.Enabled {
		client, err := rediscache.NewClient(ctx, cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer client.Close()

		itemCache = rediscache.NewCache(client)
		locker = lock.NewRedisLocker(client)
		logger.Info().Str("addr", cfg.Redis.Addr()).Msg("redis connected")
	} else {
		memCache := memorycache.NewCache()
		defer memCache.Stop()

		memLocker := lock.NewMemoryLocker()
		defer memLocker.Stop()

		itemCache = memCache
		locker = memLocker
	}

	itemRepo = repository.NewCachedItemRepository(itemRepo, itemCache, itemCacheTTL, logger)

	// Image storage
	var images storage.Backend
	switch cfg.Storage.Backend {
	case "s3":
		s3, err := storage.NewS3Backend(ctx, cfg.Storage.S3, cfg.Storage.MaxImageSize, logger)
		if err != nil {
			return fmt.Errorf("initializing s3 backend: %w", err)
		}
		images = s3
	default:
		fsb, err := storage.NewFilesystemBackend(cfg.Storage.DataDir, cfg.Storage.PublicPath, cfg.Storage.MaxImageSize, logger)
		if err != nil {
			return fmt.Errorf("initializing filesystem backend: %w", err)
		}
		images = fsb
	}
	logger.Info().Str("backend", cfg.Storage.Backend).Msg("image storage ready")

	// Metrics
	var (
		m             *metrics.Metrics
		metricsServer *metrics.Server
	)
	if cfg.Metrics.Enabled {
		m = metrics.New()
		metricsServer = metrics.NewServer(m, cfg.Metrics.Port, logger)
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	// Services
	tokens := auth.NewTokenService(auth.TokenConfig{
		Secret: cfg.Auth.TokenSecret,
		TTL:    cfg.Auth.TokenTTL,
		Issuer: cfg.Auth.Issuer,
	})
	users := service.NewUserService(userRepo, m, logger)
	items := service.NewItemService(itemRepo, userRepo, images, m, logger)

	sweeper := service.NewImageSweeper(itemRepo, images, locker, m, logger, service.SweeperConfig{
		Enabled:     cfg.Sweeper.Enabled,
		Interval:    cfg.Sweeper.Interval,
		GracePeriod: cfg.Sweeper.GracePeriod,
		BatchSize:   cfg.Sweeper.BatchSize,
		DryRun:      cfg.Sweeper.DryRun,
	})
	if cfg.Sweeper.Enabled {
		sweeper.Start()
		defer sweeper.Stop()
	}

	// Router and HTTP server
	uploadsDir := ""
	uploadsPath := ""
	if fsb, ok := images.(*storage.FilesystemBackend); ok {
		uploadsDir = fsb.DataDir()
		uploadsPath = cfg.Storage.PublicPath
	}

	router := handler.NewRouter(handler.RouterConfig{
		AuthHandler:    handler.NewAuthHandler(users, tokens, logger),
		ItemHandler:    handler.NewItemHandler(items, cfg.Storage.MaxImageSize, logger),
		AuthMiddleware: auth.Middleware(tokens, userRepo, logger),
		Metrics:        m,
		UploadsDir:     uploadsDir,
		UploadsPath:    uploadsPath,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Logger:         logger,
		Health: func(r *http.Request) error {
			return ping(r.Context())
		},
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown failed")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown failed")
		}
	}

	logger.Info().Msg("shutdown complete")
	return nil
}

// newLogger builds the root logger from logging settings.
func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out *os.File
	switch cfg.Output {
	case "stderr":
		out = os.Stderr
	default:
		out = os.Stdout
	}

	zerolog.TimeFieldFormat = cfg.TimeFormat

	if cfg.Format == "console" {
		return zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).
			Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
