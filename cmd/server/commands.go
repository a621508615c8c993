package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourorg/payment-router/internal/config"
	"github.com/yourorg/payment-router/internal/logging"
	"github.com/yourorg/payment-router/internal/storage"
	"github.com/yourorg/payment-router/internal/tracing"
)

const shutdownTimeout = 10 * time.Second

func loadConfig() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, nil)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if cfg.Tracing.Enabled {
				shutdownTracing, err := tracing.Setup(cfg.Tracing.ServiceName, nil)
				if err != nil {
					return err
				}
				defer func() {
					if err := shutdownTracing(context.Background()); err != nil {
						logger.WithError(err).Warn("Failed to flush traces")
					}
				}()
			}

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			srv := &http.Server{
				Addr:         cfg.Server.Addr,
				Handler:      a.engine,
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
			}
			errCh := make(chan error, 1)
			go func() {
				logger.WithField("addr", cfg.Server.Addr).Info("Starting server")
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server: %w", err)
				}
				return nil
			case <-ctx.Done():
			}
			logger.Info("Shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.addr")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the SQLite schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Storage.Driver != "sqlite" {
				return fmt.Errorf("migrate needs storage.driver sqlite, got %s", cfg.Storage.Driver)
			}
			db, err := storage.OpenSQLite(cfg.Storage.DSN)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := storage.RunMigrations(cmd.Context(), db); err != nil {
				return err
			}
			logger.WithField("dsn", cfg.Storage.DSN).Info("Migrations applied")
			return nil
		},
	}
}
