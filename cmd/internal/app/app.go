// Package app wires the pulse server runtime: config, logging, the
// database pool, the token cache, and the HTTP surface.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"pulse/cmd/identity"
	"pulse/cmd/internal/auth"
	authapi "pulse/cmd/internal/auth/api"
	"pulse/cmd/internal/repo"
	"pulse/cmd/internal/token"
	trackapi "pulse/cmd/internal/tracking/api"
	"pulse/cmd/internal/tracking/ingest"
	"pulse/cmd/internal/tracking/session"
)

// App is the pulse server runtime. It owns the pool, the token cache,
// and the HTTP wiring; everything else hangs off those.
type App struct {
	cfg Config
	log Logger

	pool    *pgxpool.Pool
	tokens  *token.Service
	fw      *auth.Framework
	auth    *authapi.Handler
	track   *trackapi.Handler
	started time.Time
}

// New constructs a fully wired App instance from config and logger.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel)
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}

	users, err := identity.NewPostgresStore(pool)
	if err != nil {
		pool.Close()
		return nil, err
	}

	tokens := token.NewService(token.LoadConfigFromEnv(), log, token.NewPostgresStore(pool))
	fw := auth.New(log, auth.Config{
		AutoCreateUsers: cfg.AutoCreateUsers,
		EmailDomain:     cfg.EmailDomain,
	}, tokens, users)

	sessions := session.NewPostgresStore(pool)
	engine := session.NewEngine(log, sessions)

	writers := ingest.NewWriters(log, ingest.NewPostgresSink(pool))
	pipeline := ingest.NewPipeline(log, writers, func(ctx context.Context, fn func(ctx context.Context) error) error {
		return repo.ExecuteInTransaction(ctx, pool, fn)
	})

	return &App{
		cfg:     cfg,
		log:     log,
		pool:    pool,
		tokens:  tokens,
		fw:      fw,
		auth:    authapi.NewHandler(log, fw, users, pool),
		track:   trackapi.NewHandler(log, fw, engine, sessions, writers, pipeline, pool),
		started: time.Now(),
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or
// fatal server error.
func (a *App) Run(ctx context.Context) error {
	// Warm the token cache so the first requests after a restart do not
	// all fall through to the database.
	if err := a.tokens.LoadActive(ctx); err != nil {
		a.log.Error("tokens.load_active.fail", "err", err)
		return err
	}

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	sweeperDone := make(chan struct{})
	go func() {
		defer close(sweeperDone)
		a.tokens.RunSweeper(sweepCtx)
	}()

	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.fw, a.tokens, a.pool, a.auth, a.track, a.started)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           WithRequestLogging(mux, a.log, a.cfg.RequestTimeout),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 35*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "version", Version)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		runErr = err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		if runErr == nil {
			runErr = err
		}
	}

	// Stop the sweeper, flush the token cache, then drop the pool.
	stopSweeper()
	select {
	case <-sweeperDone:
	case <-shutdownCtx.Done():
	}
	a.tokens.Close()
	a.pool.Close()

	a.log.Info("server.stopped")
	return runErr
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
