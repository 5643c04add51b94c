package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/ideshell/internal/config"
	"github.com/loykin/ideshell/internal/files"
	"github.com/loykin/ideshell/internal/history"
	"github.com/loykin/ideshell/internal/history/factory"
	"github.com/loykin/ideshell/internal/metastore"
	"github.com/loykin/ideshell/internal/metrics"
	"github.com/loykin/ideshell/internal/preview"
	"github.com/loykin/ideshell/internal/process"
	"github.com/loykin/ideshell/internal/server"
	"github.com/loykin/ideshell/internal/status"
)

const shutdownTimeout = 10 * time.Second

// daemon is the wired object graph behind `ideshell serve`.
type daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *metastore.Client
	sup     *preview.Supervisor
	handler http.Handler
	closers []io.Closer
}

func buildDaemon(cfg *config.Config, logger *slog.Logger) (*daemon, error) {
	d := &daemon{cfg: cfg, logger: logger}

	var sinks []history.Sink
	if cfg.History.Enabled {
		sink, err := factory.NewSinkFromDSN(cfg.History.DSN)
		if err != nil {
			return nil, fmt.Errorf("history sink: %w", err)
		}
		if e, ok := sink.(interface{ EnsureTable(context.Context) error }); ok {
			if err := e.EnsureTable(context.Background()); err != nil {
				logger.Warn("history table setup failed", "error", err)
			}
		}
		sinks = append(sinks, sink)
		if c, ok := sink.(io.Closer); ok {
			d.closers = append(d.closers, c)
		}
	}

	env, err := cfg.PreviewEnv()
	if err != nil {
		d.close()
		return nil, fmt.Errorf("preview env: %w", err)
	}

	mc := cfg.MetastoreClientConfig()
	mc.Logger = logger
	d.store = metastore.New(mc)
	layout := cfg.Layout()

	d.sup = preview.New(preview.Config{
		Dirs:       layout,
		Terminator: process.NewTerminator(),
		Status:     status.New(d.store, logger),
		Command:    cfg.Preview.Command,
		Grace:      cfg.Preview.GracePeriod,
		Host:       cfg.Preview.Host,
		Env:        env,
		Sinks:      sinks,
		Logger:     logger,
	})
	coord := files.New(files.Config{
		Store:    d.store,
		Paths:    layout,
		Rollback: cfg.Files.Rollback,
		Sinks:    sinks,
		Logger:   logger,
	})

	r := server.NewRouter(d.sup, coord, cfg.Server.BasePath).WithLogger(logger)
	if cfg.Metrics.Enabled {
		if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
			logger.Warn("metrics registration failed", "error", err)
		} else {
			r.WithMetrics(cfg.Metrics.Path, metrics.Handler())
		}
	}
	d.handler = r.Handler()
	return d, nil
}

func (d *daemon) close() {
	if d.sup != nil {
		d.sup.Close()
	}
	for _, c := range d.closers {
		_ = c.Close()
	}
}

// reconcile resets stored statuses that claim a preview this fresh daemon
// cannot own.
func (d *daemon) reconcile(ctx context.Context) {
	n, err := d.sup.Reconcile(ctx, d.store, d.cfg.Workspace.ID)
	if err != nil {
		d.logger.Warn("status reconciliation skipped", "workspace", d.cfg.Workspace.ID, "error", err)
		return
	}
	if n > 0 {
		d.logger.Info("status reconciliation done", "workspace", d.cfg.Workspace.ID, "reset", n)
	}
}

func runServe(ctx context.Context, configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	logger := cfg.Log.NewSlogger()
	slog.SetDefault(logger)

	d, err := buildDaemon(cfg, logger)
	if err != nil {
		return err
	}
	defer d.close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	d.reconcile(ctx)

	srv := server.NewServer(cfg.Server.Listen, d.handler)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logger.Info("ideshell listening", "addr", cfg.Server.Listen, "base", cfg.Server.BasePath, "workspace", cfg.Workspace.ID)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.sup.Shutdown(context.Background())
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	d.sup.Shutdown(sctx)
	return nil
}
