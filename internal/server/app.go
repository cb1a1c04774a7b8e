// Package server wires the account service together: PostgreSQL (or the
// in-memory backend), object storage, the verification queue, the HTTP API and the gRPC health
// endpoint. It also owns graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/usersvc/internal/cryptox"
	"github.com/dmitrijs2005/usersvc/internal/logging"
	"github.com/dmitrijs2005/usersvc/internal/server/auth"
	"github.com/dmitrijs2005/usersvc/internal/server/config"
	"github.com/dmitrijs2005/usersvc/internal/server/httpapi"
	"github.com/dmitrijs2005/usersvc/internal/server/metrics"
	"github.com/dmitrijs2005/usersvc/internal/server/notify"
	"github.com/dmitrijs2005/usersvc/internal/server/objectstore"
	"github.com/dmitrijs2005/usersvc/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/usersvc/internal/server/services"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	gs "github.com/dmitrijs2005/usersvc/internal/server/grpc"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	queue   *notify.RedisQueue
	metrics *metrics.Metrics

	accounts     *services.AccountService
	verification *services.VerificationService
	media        *services.MediaService
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.New(c.LogBackend, os.Stdout)

	hasher, err := cryptox.NewHasher(c.HashAlgorithm, c.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hasher init error: %w", err)
	}

	m := metrics.New()

	db, rm, s, err := openStorage(ctx, c)
	if err != nil {
		return nil, err
	}
	store := objectstore.Instrument(s, m)
	if c.StorageBackend == config.StorageMemory {
		logger.Warn(ctx, "using in-memory storage, data is lost on restart")
	}

	queue := notify.NewRedisQueue(c.RedisAddr, c.RedisPassword)
	if err := queue.Ping(ctx); err != nil {
		// tokens are still stored; messages are lost until redis is back
		logger.Warn(ctx, "redis unavailable at startup", "addr", c.RedisAddr, "error", err)
	}

	return &App{
		config:       c,
		logger:       logger,
		db:           db,
		queue:        queue,
		metrics:      m,
		accounts:     services.NewAccountService(db, rm, hasher),
		verification: services.NewVerificationService(db, rm, queue, c, logger),
		media:        services.NewMediaService(db, rm, store, c, logger),
	}, nil
}

// openStorage returns the database handle, repositories and object store
// for the configured backend. The memory backend still needs a *sql.DB for
// transactions and health checks, so it opens an in-process SQLite database.
func openStorage(ctx context.Context, c *config.Config) (*sql.DB, repomanager.RepositoryManager, objectstore.Store, error) {
	switch c.StorageBackend {
	case config.StorageMemory:
		db, err := sql.Open("sqlite", ":memory:")
		if err != nil {
			return nil, nil, nil, fmt.Errorf("db init error: %w", err)
		}
		return db, repomanager.NewInMemoryRepositoryManager(), objectstore.NewMemoryStore(), nil

	case config.StoragePostgres, "":
		db, err := sql.Open("pgx", c.DatabaseDSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("db init error: %w", err)
		}

		rm := repomanager.NewPostgresRepositoryManager()
		if err := rm.RunMigrations(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, nil, fmt.Errorf("db migration error: %w", err)
		}

		s3, err := objectstore.NewS3Store(ctx, objectstore.Options{
			Region:    c.S3Region,
			AccessKey: c.S3AccessKey,
			SecretKey: c.S3SecretKey,
			Endpoint:  c.S3BaseEndpoint,
			Bucket:    c.S3Bucket,
			PathStyle: c.S3PathStyle,
		})
		if err != nil {
			_ = db.Close()
			return nil, nil, nil, fmt.Errorf("object store init error: %w", err)
		}
		return db, rm, s3, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) httpDeps() httpapi.Deps {
	return httpapi.Deps{
		Accounts:       app.accounts,
		Verifier:       app.verification,
		Media:          app.media,
		DB:             app.db,
		Gate:           auth.NewGate(app.accounts),
		Metrics:        app.metrics,
		Log:            app.logger,
		MaxUploadBytes: app.config.MaxUploadBytes,
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewServer(app.config.HTTPAddr, httpapi.NewRouter(app.httpDeps()), app.config.ShutdownTimeout, app.logger)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewHealthServer(app.config.GRPCAddr, app.logger, app.db, app.config.HealthProbeInterval, app.metrics)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is cancelled, a termination signal arrives or one
// of the servers fails, then releases every resource.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.verification.RunPurge(ctx, app.config.TokenPurgeInterval)
	}()

	wg.Wait()

	app.Close(context.Background())
}

// Close waits for background verification publishes and closes the
// database and redis clients.
func (app *App) Close(ctx context.Context) {
	app.verification.Wait()

	if err := app.queue.Close(); err != nil {
		app.logger.Error(ctx, "redis close error", "error", err)
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
