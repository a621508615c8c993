package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/payment-router/internal/adapter"
	"github.com/yourorg/payment-router/internal/adapter/mock"
	"github.com/yourorg/payment-router/internal/adapter/nooni"
	"github.com/yourorg/payment-router/internal/adapter/payu"
	"github.com/yourorg/payment-router/internal/adapter/stripe"
	"github.com/yourorg/payment-router/internal/config"
	"github.com/yourorg/payment-router/internal/merchant"
	"github.com/yourorg/payment-router/internal/monitor"
	"github.com/yourorg/payment-router/internal/orchestrator"
	"github.com/yourorg/payment-router/internal/payments"
	"github.com/yourorg/payment-router/internal/processor"
	"github.com/yourorg/payment-router/internal/reporting"
	"github.com/yourorg/payment-router/internal/router"
	"github.com/yourorg/payment-router/internal/router/circuitbreaker"
	"github.com/yourorg/payment-router/internal/storage"
	"github.com/yourorg/payment-router/internal/vault"
)

type app struct {
	engine http.Handler
	db     *sql.DB
}

func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
}

// connectors lists every integration the service ships with.
func connectors(cfg *config.Config) []adapter.Connector {
	dummyURL := cfg.BaseURL(mock.Name)
	if dummyURL == "" {
		dummyURL = "http://localhost" + cfg.Server.Addr
		if !strings.HasPrefix(cfg.Server.Addr, ":") {
			dummyURL = "http://" + cfg.Server.Addr
		}
	}
	return []adapter.Connector{
		mock.NewMockAdapter(dummyURL),
		payu.New(cfg.BaseURL(payu.Name)),
		nooni.New(cfg.BaseURL(nooni.Name)),
		stripe.NewStripeAdapter(cfg.BaseURL(stripe.Name)),
	}
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, *sql.DB, error) {
	if cfg.Storage.Driver == "memory" {
		return storage.NewMemoryStore(), nil, nil
	}
	db, err := storage.OpenSQLite(cfg.Storage.DSN)
	if err != nil {
		return nil, nil, err
	}
	if err := storage.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, nil, err
	}
	return storage.NewSQLiteStore(db), db, nil
}

func newApp(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*app, error) {
	store, db, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &app{db: db}

	repo := merchant.NewMemoryRepository()
	now := time.Now().UTC()
	for _, mc := range cfg.Merchants {
		account, ks, err := mc.Account()
		if err != nil {
			a.Close()
			return nil, err
		}
		repo.Add(account, ks)
		for _, bp := range mc.BusinessProfiles(now) {
			if err := store.InsertBusinessProfile(ctx, bp); err != nil && !errors.Is(err, storage.ErrConflict) {
				a.Close()
				return nil, fmt.Errorf("seeding profile %s: %w", bp.ProfileID, err)
			}
		}
	}

	ids, err := payments.NewIDGenerator(cfg.NodeID)
	if err != nil {
		a.Close()
		return nil, err
	}

	breaker := circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		ResetTimeout:     cfg.Breaker.ResetTimeout,
	})
	transport := processor.NewHTTPTransport(&http.Client{Timeout: cfg.Transport.Timeout}, logger).
		WithRetry(cfg.Transport.RetryAttempts, cfg.Transport.RetryDelay)
	proc := processor.NewProcessor(transport, breaker, logger, connectors(cfg)...)

	deps := &payments.Deps{
		Store:     store,
		Processor: proc,
		Router:    router.NewRouter(proc, breaker, logger),
		Vault:     vault.NewMemoryVault(),
		IDs:       ids,
		Logger:    logger,
	}

	contract, err := paymentsContract(cfg.Server.PaymentsSchema)
	if err != nil {
		a.Close()
		return nil, err
	}

	var sandbox *mock.Sandbox
	if cfg.Server.Sandbox {
		sandbox = mock.NewSandbox(logger)
	}
	s := &server{
		orc:      orchestrator.NewOrchestrator(repo, deps, logger),
		store:    store,
		reporter: reporting.NewRetrospectiveReporter(),
		contract: contract,
		logger:   logger,
	}
	a.engine = s.routes(cfg.Tracing.ServiceName, sandbox)
	return a, nil
}

// paymentsContract uses the built-in schema unless the config points at a file.
func paymentsContract(path string) (*monitor.ContractMonitor, error) {
	if path == "" {
		return monitor.NewPaymentsCreateMonitor()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving payments schema %s: %w", path, err)
	}
	return monitor.NewContractMonitor(abs)
}
