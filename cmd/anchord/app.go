package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/gorm"

	"anchorplatform/config"
	"anchorplatform/core/assets"
	"anchorplatform/core/events"
	"anchorplatform/core/types"
	"anchorplatform/integrations/custody"
	"anchorplatform/integrations/customers"
	"anchorplatform/integrations/horizon"
	"anchorplatform/observability"
	"anchorplatform/rpc"
	"anchorplatform/rpc/methods"
	"anchorplatform/services/recon"
	"anchorplatform/storage"
	"anchorplatform/storage/txstore"
)

// app holds every long-lived component of the daemon.
type app struct {
	cfg        config.Config
	logger     *slog.Logger
	db         *gorm.DB
	queue      *events.Queue
	deliverer  *events.Deliverer
	server     *rpc.Server
	reconciler *recon.Reconciler
	schedule   recon.Schedule
	index      *recon.Index
}

func newApp(cfg config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	db, err := storage.Open(cfg.Database.Driver, cfg.Database.DSN, storage.Options{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime.Duration,
		SlowThreshold:   cfg.Database.SlowThreshold.Duration,
	})
	if err != nil {
		return nil, err
	}
	a.db = db
	families, err := txstore.NewFamilies(db)
	if err != nil {
		return nil, err
	}
	quotes, err := txstore.NewQuoteStore(db)
	if err != nil {
		return nil, err
	}

	catalog, err := loadCatalog(cfg.Assets)
	if err != nil {
		return nil, err
	}

	ledger, err := horizon.NewClient(horizon.Config{
		URL:               cfg.Horizon.URL,
		Timeout:           cfg.Horizon.Timeout.Duration,
		RequestsPerSecond: cfg.Horizon.RequestsPerSecond,
		Burst:             cfg.Horizon.Burst,
	})
	if err != nil {
		return nil, err
	}

	var (
		gateway methods.CustodyGateway
		source  methods.DepositAddressSource
	)
	if cfg.Custody.Enabled {
		client, err := custody.NewClient(custody.Config{
			Type:       cfg.Custody.Type,
			BaseURL:    cfg.Custody.BaseURL,
			AuthToken:  cfg.Custody.AuthToken,
			CACertPath: cfg.Custody.CACertFile,
			ClientCert: cfg.Custody.CertFile,
			ClientKey:  cfg.Custody.KeyFile,
			Timeout:    cfg.Custody.Timeout.Duration,
		})
		if err != nil {
			return nil, err
		}
		gateway, source = client, client
	}

	var customerService methods.CustomerService
	if strings.TrimSpace(cfg.Customers.BaseURL) != "" {
		client, err := customers.NewClient(customers.Config{
			BaseURL: cfg.Customers.BaseURL,
			APIKey:  cfg.Customers.APIKey,
			Timeout: cfg.Customers.Timeout.Duration,
		})
		if err != nil {
			return nil, err
		}
		customerService = client
	}

	generators := make(map[types.Protocol]methods.DepositInfoGenerator)
	for protocol, kind := range map[types.Protocol]string{
		types.ProtocolSEP6:  cfg.DepositInfo.SEP6,
		types.ProtocolSEP24: cfg.DepositInfo.SEP24,
		types.ProtocolSEP31: cfg.DepositInfo.SEP31,
	} {
		generator, err := methods.NewDepositInfoGenerator(kind, catalog, source)
		if err != nil {
			return nil, fmt.Errorf("sep%s: %w", protocol, err)
		}
		if generator != nil {
			generators[protocol] = generator
		}
	}

	a.queue = events.NewQueue(
		events.WithTaskCapacity(cfg.Events.QueueCapacity),
		events.WithHistoryCapacity(cfg.Events.HistoryCapacity),
		events.WithTTL(cfg.Events.TTL.Duration),
	)
	eventMetrics := observability.Events()
	if len(cfg.Events.Webhooks) > 0 {
		endpoints := make([]events.Endpoint, 0, len(cfg.Events.Webhooks))
		for _, hook := range cfg.Events.Webhooks {
			kinds := make([]events.Type, 0, len(hook.Types))
			for _, t := range hook.Types {
				kinds = append(kinds, events.Type(t))
			}
			endpoints = append(endpoints, events.Endpoint{URL: hook.URL, Secret: hook.Secret, Types: kinds})
		}
		a.deliverer, err = events.NewDeliverer(a.queue, events.DelivererConfig{
			Endpoints:   endpoints,
			MaxAttempts: cfg.Events.MaxAttempts,
			BaseBackoff: cfg.Events.BaseBackoff.Duration,
			Recorder:    eventMetrics,
			Logger:      logger,
		})
		if err != nil {
			return nil, err
		}
	}

	stores := make([]methods.TransactionStore, 0, len(families))
	sources := make([]recon.TransactionSource, 0, len(families))
	for _, store := range families {
		stores = append(stores, store)
		sources = append(sources, store)
	}
	anchorMetrics := observability.Anchor()
	registry, err := methods.NewRegistry(methods.Deps{
		Stores:      stores,
		Quotes:      quotes,
		Assets:      catalog,
		Reconciler:  ledger,
		Trustlines:  ledger,
		Custody:     gateway,
		Customers:   customerService,
		DepositInfo: generators,
		Events:      events.RecordingPublisher{Next: a.queue, Recorder: eventMetrics},
		Metrics:     anchorMetrics,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	a.server, err = rpc.NewServer(registry, rpc.Config{
		ServiceName:    cfg.Service,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		RequestTimeout: cfg.Server.RequestTimeout.Duration,
		Auth: rpc.AuthConfig{
			Enabled:    cfg.Auth.Enabled,
			HMACSecret: cfg.Auth.HMACSecret,
			Issuer:     cfg.Auth.Issuer,
			Audience:   cfg.Auth.Audience,
			ClockSkew:  cfg.Auth.ClockSkew.Duration,
		},
		RateLimit: rpc.RateLimit{
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			Burst:             cfg.RateLimit.Burst,
		},
		Gatherer: prometheusGatherer(),
		Observer: anchorMetrics,
		Events:   a.queue,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	if cfg.Recon.Enabled {
		if err := os.MkdirAll(filepath.Dir(cfg.Recon.IndexPath), 0o755); err != nil {
			return nil, fmt.Errorf("recon: create index dir: %w", err)
		}
		a.index, err = recon.OpenIndex(cfg.Recon.IndexPath)
		if err != nil {
			return nil, err
		}
		a.reconciler, err = recon.NewReconciler(recon.Config{
			Sources:   sources,
			Ledger:    ledger,
			OutputDir: cfg.Recon.OutputDir,
			Index:     a.index,
			DryRun:    cfg.Recon.DryRun,
			Logger:    logger,
		})
		if err != nil {
			return nil, err
		}
		a.schedule = recon.Schedule{
			Hour:   cfg.Recon.RunHour,
			Minute: cfg.Recon.RunMinute,
			Window: cfg.Recon.Window.Duration,
		}
	}

	ok = true
	return a, nil
}

func loadCatalog(cfg config.AssetsConfig) (*assets.Catalog, error) {
	if strings.TrimSpace(cfg.File) != "" {
		return assets.LoadFile(cfg.File)
	}
	return assets.NewCatalog(cfg.List)
}

// run serves until ctx is cancelled, then drains in-flight requests.
func (a *app) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.deliverer != nil {
		go a.deliverer.Run(ctx)
	}
	if a.reconciler != nil {
		go a.reconciler.Nightly(ctx, a.schedule)
	}

	srv := &http.Server{
		Addr:              a.cfg.Server.Listen,
		Handler:           a.server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("anchor platform listening", slog.String("addr", srv.Addr))
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	grace := a.cfg.Server.ShutdownGrace.Duration
	if grace <= 0 {
		grace = 10 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), grace)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (a *app) close() {
	if a.queue != nil {
		a.queue.Close()
	}
	if a.index != nil {
		if err := a.index.Close(); err != nil {
			a.logger.Warn("close recon index", slog.Any("error", err))
		}
	}
	if a.db != nil {
		if err := storage.Close(a.db); err != nil {
			a.logger.Warn("close database", slog.Any("error", err))
		}
	}
}
