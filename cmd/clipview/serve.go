package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ericfisherdev/clipview/internal/adapter/driven/jsonfile"
	"github.com/ericfisherdev/clipview/internal/adapter/driven/osclipboard"
	sqliteadapter "github.com/ericfisherdev/clipview/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/clipview/internal/adapter/driving/http"
	"github.com/ericfisherdev/clipview/internal/application"
	"github.com/ericfisherdev/clipview/internal/config"
	"github.com/ericfisherdev/clipview/internal/domain/port/driven"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var paused bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the clipboard daemon and its HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), a, !paused)
		},
	}

	cmd.Flags().BoolVar(&paused, "paused", false, "start with clipboard monitoring stopped")
	return cmd
}

// openStore returns the history store for the configured backend and a
// function that releases it.
func openStore(cfg config.Config) (driven.HistoryStore, func() error, error) {
	switch cfg.StorageBackend {
	case config.BackendSQLite:
		db, err := sqliteadapter.Open(cfg.DBPath)
		if err != nil {
			return nil, nil, err
		}
		return sqliteadapter.NewHistoryRepo(db), db.Close, nil
	default:
		return jsonfile.NewStore(cfg.HistoryFile), func() error { return nil }, nil
	}
}

func serve(ctx context.Context, a *app, monitor bool) error {
	cfg := a.config()
	logger := a.logger

	// 1. Storage.
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := closeStore(); closeErr != nil {
			logger.Error("error closing history store", "error", closeErr)
		}
	}()
	logger.Info("history store opened", "backend", cfg.StorageBackend, "file", cfg.HistoryFile, "db_path", cfg.DBPath)

	// 2. Services.
	broker := application.NewBroker(logger)
	history := application.NewHistoryService(store, broker, cfg.MaxHistoryItems, cfg.WriteRetryDelay, logger)
	loaded := history.Load(ctx)
	logger.Info("history loaded", "records", loaded)

	clip := osclipboard.New(logger)
	watcher := application.NewWatcher(clip, history, broker, cfg.PollInterval, cfg.MaxItemSize, logger)
	if err := watcher.Init(ctx); err != nil {
		logger.Warn("could not read initial clipboard", "error", err)
	}

	janitor := application.NewJanitor(history, cfg.CleanupDays, cfg.CleanupInterval, logger)

	// 3. API token.
	token := httphandler.GenerateToken()
	if err := httphandler.WriteTokenFile(cfg.TokenFile(), token); err != nil {
		return err
	}

	// 4. Live config reload.
	a.manager.OnConfigChange(func(next config.Config) {
		history.SetMaxItems(ctx, next.MaxHistoryItems)
		janitor.SetDays(next.CleanupDays)
		if next.PollInterval != cfg.PollInterval || next.ListenAddr != cfg.ListenAddr || next.StorageBackend != cfg.StorageBackend {
			logger.Warn("poll interval, listen address and storage changes apply after restart")
		}
	})
	if a.manager.Watch() {
		logger.Info("watching config file", "file", a.manager.File())
	}

	// 5. HTTP API.
	handler := httphandler.NewHandler(history, watcher, broker, logger)
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.NewServeMux(handler, token, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	srv.RegisterOnShutdown(handler.CloseStreams)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		history.Run(gctx)
		return nil
	})
	g.Go(func() error {
		watcher.Run(gctx)
		return nil
	})
	if cfg.AutoCleanup {
		g.Go(func() error {
			janitor.Start(gctx)
			return nil
		})
	}
	if monitor {
		g.Go(func() error {
			if _, err := watcher.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("start monitoring: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		logger.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
		return nil
	})

	logger.Info("clipview started",
		"listen_addr", cfg.ListenAddr,
		"poll_interval", cfg.PollInterval,
		"max_history_items", cfg.MaxHistoryItems,
		"monitoring", monitor,
	)

	runErr := g.Wait()

	// Persist whatever the last mutations left pending.
	flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := history.Flush(flushCtx); err != nil {
		logger.Error("final history write failed", "error", err)
	}

	logger.Info("shutdown complete")
	return runErr
}
