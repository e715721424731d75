// Command flashmenu-server starts the ephemeral catalog HTTP server.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/avetisov/flashmenu/internal/config"
	"github.com/avetisov/flashmenu/internal/limiter"
	"github.com/avetisov/flashmenu/internal/migrate"
	"github.com/avetisov/flashmenu/internal/repository/postgres"
	httpserver "github.com/avetisov/flashmenu/internal/server/http"
	"github.com/avetisov/flashmenu/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration, runs migrations, and serves until interrupted.
func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
	)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, cfg.DSN); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}

	db, err := postgres.New(ctx, cfg.DSN)
	if err != nil {
		logger.Fatal("postgres.New", zap.Error(err))
	}
	defer db.Close()

	// Repositories
	catalogRepo := postgres.NewCatalogRepo(db)
	whitelistRepo := postgres.NewWhitelistRepo(db)
	eventRepo := postgres.NewEventRepo(db)
	inventoryRepo := postgres.NewInventoryRepo(db)
	customerRepo := postgres.NewCustomerRepo(db)

	ledger := limiter.NewPGWithQuerier(db.Pool, cfg.RateLimit.Window, cfg.RateLimit.MaxFails)

	processor, err := service.NewPaymentProcessor(cfg.Payments.Provider)
	if err != nil {
		logger.Fatal("payments", zap.Error(err))
	}
	if _, dev := processor.(service.DevProcessor); dev {
		logger.Warn("dev payment processor active, charges are simulated")
	}

	// Services
	lifecycle := service.NewLifecycle(catalogRepo, whitelistRepo, nil, cfg.Passphrase, logger)
	events := service.NewSecurityEvents(eventRepo, catalogRepo, lifecycle, logger)
	gate := service.NewGate(catalogRepo, whitelistRepo, ledger, events, lifecycle, cfg.Passphrase, logger)
	saga := service.NewOrderSaga(catalogRepo, inventoryRepo, customerRepo, processor, events, cfg.Passphrase, logger)

	sweeper := service.NewReservationSweeper(inventoryRepo, cfg.Sweep.Interval, cfg.Sweep.MaxAge, logger)
	go sweeper.Start(ctx)
	defer sweeper.Stop()

	srv := httpserver.New(gate, saga, events, lifecycle, catalogRepo, []byte(cfg.SignKey), logger)
	server := &http.Server{Addr: cfg.Addr, Handler: srv.Routes()}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", zap.Error(err))
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}

	logger.Info("shutdown complete")
}
