// Package server initializes and runs the application: storage backend
// selection, schema migrations, the HTTP API with graceful shutdown and
// the retention sweeper.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/voidnote/voidnote/internal/logging"
	"github.com/voidnote/voidnote/internal/server/blob"
	"github.com/voidnote/voidnote/internal/server/config"
	"github.com/voidnote/voidnote/internal/server/httpapi"
	"github.com/voidnote/voidnote/internal/server/lifecycle"
	"github.com/voidnote/voidnote/internal/server/repositories/accesslogs"
	"github.com/voidnote/voidnote/internal/server/repositories/repomanager"
	"github.com/voidnote/voidnote/internal/server/repositories/secrets"
	"github.com/voidnote/voidnote/internal/server/retention"
	"github.com/voidnote/voidnote/internal/server/services"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	service *services.SecretService
	sweeper *retention.Sweeper

	closers []func() error
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	app := &App{config: cfg, logger: logger}

	repo, recorder, err := app.initStorage(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage init: %w", err)
	}

	blobs := app.initBlobs()

	lc := lifecycle.NewService(repo, recorder, logger)
	app.service = services.NewSecretService(repo, recorder, lc, blobs, cfg, logger)
	app.sweeper = retention.NewSweeper(repo, blobs, logger,
		cfg.RetentionWindow, cfg.SweepInterval)

	return app, nil
}

func (app *App) initStorage(ctx context.Context) (secrets.Repository, accesslogs.Recorder, error) {
	switch app.config.StoreBackend {
	case config.BackendPostgres:
		db, err := sql.Open("pgx", app.config.DatabaseDSN)
		if err != nil {
			return nil, nil, err
		}
		app.closers = append(app.closers, db.Close)

		rm := repomanager.NewPostgresRepositoryManager()
		if err := rm.RunMigrations(ctx, db); err != nil {
			return nil, nil, fmt.Errorf("migrations: %w", err)
		}
		return rm.Secrets(db), rm.AccessLogs(db), nil

	case config.BackendRedis:
		repo, err := secrets.NewRedisRepository(ctx, &redis.Options{
			Addr:     app.config.RedisAddr,
			Password: app.config.RedisPassword,
		}, app.config.RetentionWindow)
		if err != nil {
			return nil, nil, err
		}
		app.closers = append(app.closers, repo.Close)

		logTTL := app.config.MaxTTL + app.config.RetentionWindow
		return repo, accesslogs.NewRedisRecorder(repo.Client(), logTTL), nil

	case config.BackendMemory:
		return secrets.NewMemoryRepository(), accesslogs.NewMemoryRecorder(), nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend: %s", app.config.StoreBackend)
	}
}

func (app *App) initBlobs() blob.Store {
	if app.config.StoreBackend == config.BackendMemory {
		return blob.NewMemoryStore()
	}
	return blob.NewS3Store(blob.S3Config{
		User:         app.config.S3User,
		Password:     app.config.S3Password,
		Bucket:       app.config.S3Bucket,
		Region:       app.config.S3Region,
		BaseEndpoint: app.config.S3BaseEndpoint,
	})
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	router := httpapi.NewRouter(app.service, app.config, app.logger)
	srv := &http.Server{
		Addr:    app.config.EndpointAddrHTTP,
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(shutdownCtx, "http shutdown", "error", err)
		}
	}()

	app.logger.Info(ctx, "http server listening", "addr", app.config.EndpointAddrHTTP)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, "http server", "error", err)
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting app",
		"backend", app.config.StoreBackend, "addr", app.config.EndpointAddrHTTP)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.sweeper.Run(ctx)
	}()

	wg.Wait()

	for _, close := range app.closers {
		if err := close(); err != nil {
			app.logger.Error(context.Background(), "close failed", "error", err)
		}
	}
}
