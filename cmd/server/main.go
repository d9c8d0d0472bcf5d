package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/stockboard/internal/config"
	"github.com/mamadbah2/stockboard/internal/domain/models"
	"github.com/mamadbah2/stockboard/internal/poller"
	"github.com/mamadbah2/stockboard/internal/repository/memory"
	"github.com/mamadbah2/stockboard/internal/repository/mongodb"
	"github.com/mamadbah2/stockboard/internal/repository/postgres"
	"github.com/mamadbah2/stockboard/internal/repository/postgrest"
	"github.com/mamadbah2/stockboard/internal/repository/sheets"
	"github.com/mamadbah2/stockboard/internal/repository/table"
	"github.com/mamadbah2/stockboard/internal/server/handlers"
	"github.com/mamadbah2/stockboard/internal/server/live"
	"github.com/mamadbah2/stockboard/internal/server/router"
	"github.com/mamadbah2/stockboard/internal/service/alerts"
	"github.com/mamadbah2/stockboard/internal/service/dashboard"
	"github.com/mamadbah2/stockboard/internal/service/export"
	"github.com/mamadbah2/stockboard/internal/service/session"
	"github.com/mamadbah2/stockboard/internal/service/views"
	whatsappclient "github.com/mamadbah2/stockboard/pkg/clients/whatsapp"
	"github.com/mamadbah2/stockboard/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Server.LogLevel))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tables, closeTables, err := openTables(ctx, cfg.Backend)
	if err != nil {
		baseLogger.Fatal("failed to init table client", zap.Error(err))
	}
	defer closeTables()

	storage, closeStorage, err := openSessionStorage(ctx, cfg)
	if err != nil {
		baseLogger.Fatal("failed to init session storage", zap.Error(err))
	}
	defer closeStorage()

	homeRegion := findHomeRegion(cfg.Regions, cfg.Session.Region)
	verifier, err := session.NewStaticVerifier(cfg.Session.Username, cfg.Session.Password, models.User{
		ID:       "1",
		Username: cfg.Session.Username,
		Name:     cfg.Session.DisplayName,
		Role:     cfg.Session.Role,
		Region:   homeRegion.Name,
	})
	if err != nil {
		baseLogger.Fatal("failed to init credential verifier", zap.Error(err))
	}
	issuer := session.NewJWTIssuer(cfg.Session.Secret, cfg.Session.TokenTTL, nil)
	sessionStore := session.NewStore(storage, verifier, issuer, session.Options{LoginLatency: cfg.Session.LoginLatency}, baseLogger.Named("svc.session"))
	if err := sessionStore.Restore(ctx); err != nil {
		baseLogger.Error("failed to restore session", zap.Error(err))
	}

	sched := poller.NewCronScheduler(baseLogger.Named("scheduler"))
	sched.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		sched.Stop(stopCtx)
	}()

	dashboardSvc := dashboard.NewService(tables, sched, poller.Options{
		Interval: cfg.Polling.Interval,
		Timeout:  cfg.Polling.FetchTimeout,
	}, baseLogger.Named("svc.dashboard"))

	hub := live.NewHub(baseLogger.Named("live"))
	go hub.Run(ctx)
	live.Watch(hub, dashboard.DomainInventory, dashboardSvc.Inventory())
	live.Watch(hub, dashboard.DomainDispatches, dashboardSvc.Dispatches())
	live.Watch(hub, dashboard.DomainPredictions, dashboardSvc.Predictions())

	var sheetExporter handlers.SheetExporter
	if cfg.Sheets.Enabled() {
		sheetsRepo, err := sheets.NewGoogleSheetRepository(ctx, cfg.Sheets, baseLogger.Named("repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init sheets repository", zap.Error(err))
		}
		sheetExporter = export.NewSheetExporter(sheetsRepo, cfg.Sheets.ExportRange, baseLogger.Named("svc.export"))
	} else {
		baseLogger.Warn("google sheets export not configured")
	}

	if cfg.WhatsApp.Enabled() {
		whatsClient := whatsappclient.NewClient(cfg.WhatsApp)

		notifier := alerts.NewNotifier(whatsClient, cfg.WhatsApp.AlertRecipient, baseLogger.Named("svc.alerts"))
		dashboardSvc.Inventory().Subscribe(notifier.Observe)
		go notifier.Run(ctx)

		if cfg.WhatsApp.DigestSchedule != "off" {
			digest := alerts.NewDigest(whatsClient, cfg.WhatsApp.AlertRecipient, views.DashboardTitle(homeRegion), func() alerts.Snapshot {
				return alerts.Snapshot{
					Inventory:   dashboardSvc.Inventory().State().Data,
					Dispatches:  dashboardSvc.Dispatches().State().Data,
					Predictions: dashboardSvc.Predictions().State().Data,
				}
			}, nil, baseLogger.Named("svc.digest"))
			if _, err := digest.Schedule(sched, cfg.WhatsApp.DigestSchedule); err != nil {
				baseLogger.Error("failed to schedule stock digest", zap.Error(err))
			}
		}
	} else {
		baseLogger.Warn("whatsapp alerts not configured")
	}

	if err := dashboardSvc.Start(ctx); err != nil {
		baseLogger.Fatal("failed to start pollers", zap.Error(err))
	}
	defer dashboardSvc.Stop()

	engine := router.New(router.Handlers{
		Session:   handlers.NewSessionHandler(sessionStore, baseLogger.Named("handlers.session")),
		Dashboard: handlers.NewDashboardHandler(dashboardSvc, cfg.Regions, sheetExporter, nil, baseLogger.Named("handlers.dashboard")),
		Live:      hub.ServeWS,
	}, baseLogger.Named("router"))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func openTables(ctx context.Context, cfg config.BackendConfig) (table.Client, func(), error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		client, err := postgres.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return client, func() { _ = client.Close() }, nil
	default:
		return postgrest.NewClient(cfg), func() {}, nil
	}
}

func openSessionStorage(ctx context.Context, cfg *config.Config) (session.Storage, func(), error) {
	if cfg.Session.Store != config.SessionStoreMongo {
		return memory.NewKVStore(), func() {}, nil
	}

	repo, err := mongodb.NewKVRepository(ctx, cfg.MongoDB.URI, cfg.MongoDB.DBName, cfg.MongoDB.Collection)
	if err != nil {
		return nil, nil, err
	}
	return repo, func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := repo.Close(closeCtx); err != nil {
			zap.L().Error("failed to close mongodb connection", zap.Error(err))
		}
	}, nil
}

func findHomeRegion(regions []models.Region, name string) models.Region {
	for _, r := range regions {
		if r.Name == name {
			return r
		}
	}
	return regions[0]
}
