package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Clark-Hu/movplay/db"
	"github.com/Clark-Hu/movplay/internal/auth"
	"github.com/Clark-Hu/movplay/internal/catalog"
	"github.com/Clark-Hu/movplay/internal/config"
	httpserver "github.com/Clark-Hu/movplay/internal/http"
	"github.com/Clark-Hu/movplay/internal/logging"
	"github.com/Clark-Hu/movplay/internal/repository"
	"github.com/Clark-Hu/movplay/internal/repository/memory"
	"github.com/Clark-Hu/movplay/internal/service"
	"github.com/Clark-Hu/movplay/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	deps, health, closeStore, err := openBackend(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("open store", zap.String("backend", cfg.StoreBackend), zap.Error(err))
	}
	defer closeStore()

	catalogClient, err := catalog.NewHTTPClient(cfg.CatalogURL, cfg.CatalogAPIKey, time.Duration(cfg.CatalogTimeoutSecs)*time.Second, logger)
	if err != nil {
		logger.Fatal("init catalog client", zap.Error(err))
	}
	deps.Catalog = catalogClient
	deps.Logger = logger
	deps.BootstrapAdmin = cfg.BootstrapAdmin

	svc := service.New(deps)
	tokens := auth.NewTokens(cfg.JWTSecret, time.Duration(cfg.JWTTTLHours)*time.Hour)
	server := httpserver.New(cfg, health, svc, tokens, logger)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			serverErrCh <- err
			return
		}
		serverErrCh <- nil
	}()

	select {
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn("graceful shutdown error", zap.Error(err))
	}
}

// openBackend wires the repositories for the configured store backend.
func openBackend(ctx context.Context, cfg config.Config, logger *zap.Logger) (service.Deps, httpserver.HealthChecker, func(), error) {
	if cfg.StoreBackend == config.BackendMemory {
		logger.Warn("using in-memory store; data is lost on restart")
		repo := memory.New()
		return service.Deps{
			Movies:     repo.Movies,
			Reviews:    repo.Reviews,
			Users:      repo.Users,
			Watchlists: repo.Watchlists,
		}, repo, func() {}, nil
	}

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	st, err := store.New(dbCtx, cfg.DBURL, store.Options{
		MaxConns:               int32(cfg.DBMaxConns),
		MinConns:               int32(cfg.DBMinConns),
		MaxConnIdleTime:        time.Duration(cfg.DBMaxIdleSecs) * time.Second,
		MaxConnLifetime:        time.Duration(cfg.DBMaxLifeSecs) * time.Second,
		ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
		StatementCacheCapacity: cfg.DBStatementCache,
		Logger:                 logger,
	})
	if err != nil {
		return service.Deps{}, nil, nil, err
	}
	if cfg.DBAutoMigrate {
		if err := st.Migrate(ctx, db.Migrations); err != nil {
			st.Close()
			return service.Deps{}, nil, nil, err
		}
	}

	repo := repository.New(st)
	return service.Deps{
		Movies:     repo.Movies,
		Reviews:    repo.Reviews,
		Users:      repo.Users,
		Watchlists: repo.Watchlists,
	}, st, st.Close, nil
}
