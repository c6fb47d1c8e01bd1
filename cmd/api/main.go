package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/karat/internal/alert"
	"github.com/MrJamesThe3rd/karat/internal/alert/queue"
	alertStore "github.com/MrJamesThe3rd/karat/internal/alert/store"
	"github.com/MrJamesThe3rd/karat/internal/alias"
	aliasStore "github.com/MrJamesThe3rd/karat/internal/alias/store"
	"github.com/MrJamesThe3rd/karat/internal/config"
	"github.com/MrJamesThe3rd/karat/internal/database"
	karatHttp "github.com/MrJamesThe3rd/karat/internal/http"
	aliasHandler "github.com/MrJamesThe3rd/karat/internal/http/alias"
	importHandler "github.com/MrJamesThe3rd/karat/internal/http/importcsv"
	notificationHandler "github.com/MrJamesThe3rd/karat/internal/http/notification"
	reserveHandler "github.com/MrJamesThe3rd/karat/internal/http/reserve"
	settlementHandler "github.com/MrJamesThe3rd/karat/internal/http/settlement"
	shopHandler "github.com/MrJamesThe3rd/karat/internal/http/shop"
	"github.com/MrJamesThe3rd/karat/internal/importer"
	"github.com/MrJamesThe3rd/karat/internal/movement"
	movementStore "github.com/MrJamesThe3rd/karat/internal/movement/store"
	"github.com/MrJamesThe3rd/karat/internal/reconcile"
	"github.com/MrJamesThe3rd/karat/internal/reserve"
	reserveStore "github.com/MrJamesThe3rd/karat/internal/reserve/store"
	"github.com/MrJamesThe3rd/karat/internal/settlement"
	settlementStore "github.com/MrJamesThe3rd/karat/internal/settlement/store"
	"github.com/MrJamesThe3rd/karat/internal/shop"
	shopStore "github.com/MrJamesThe3rd/karat/internal/shop/store"
	"github.com/MrJamesThe3rd/karat/internal/storage/memory"
)

type repositories struct {
	reserves      reserve.Repository
	movements     movement.Repository
	settlements   settlement.Repository
	shops         shop.Repository
	notifications alert.Repository
	aliases       alias.Repository
	close         func() error
}

func openStorage(ctx context.Context, cfg *config.Config, loc *time.Location) (*repositories, error) {
	if cfg.StorageDriver == "memory" {
		slog.Warn("using in-memory storage; data is lost on restart")

		m := memory.New()

		return &repositories{
			reserves:      m,
			movements:     m,
			settlements:   m,
			shops:         m,
			notifications: m,
			aliases:       m,
			close:         func() error { return nil },
		}, nil
	}

	db, err := database.New(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if cfg.DB.Migrate {
		if err := database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return postgresRepositories(db, loc), nil
}

func postgresRepositories(db *sql.DB, loc *time.Location) *repositories {
	return &repositories{
		reserves:      reserveStore.New(db),
		movements:     movementStore.New(db),
		settlements:   settlementStore.New(db, loc),
		shops:         shopStore.New(db),
		notifications: alertStore.New(db),
		aliases:       aliasStore.New(db),
		close:         db.Close,
	}
}

func newDispatcher(ctx context.Context, cfg *config.Config) (alert.Dispatcher, func() error, error) {
	if cfg.Redis.Addr == "" {
		slog.Info("no redis configured; notifications are logged only")
		return alert.LogDispatcher{}, func() error { return nil }, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return queue.NewRedis(rdb), rdb.Close, nil
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	loc, err := cfg.Location()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repos, err := openStorage(ctx, cfg, loc)
	if err != nil {
		slog.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer repos.close()

	dispatcher, closeDispatcher, err := newDispatcher(ctx, cfg)
	if err != nil {
		slog.Error("failed to set up notifications", "error", err)
		os.Exit(1)
	}
	defer closeDispatcher()

	var (
		shopService     = shop.NewService(repos.shops)
		reserveService  = reserve.NewService(repos.reserves)
		movementService = movement.NewService(repos.movements)
		aliasService    = alias.NewService(repos.aliases)
		alertPolicy     = alert.NewPolicy(repos.notifications, dispatcher)
		engine          = settlement.NewEngine(
			repos.settlements,
			repos.reserves,
			repos.movements,
			repos.shops,
			alertPolicy,
			settlement.Options{
				MaxAttempts: cfg.Ledger.MaxSettleAttempts,
				Backoff:     cfg.Ledger.SettleBackoff,
				Threshold:   cfg.Ledger.LowStockThreshold,
				Location:    loc,
			},
		)
		reconcileService = reconcile.NewService(repos.movements, repos.reserves, repos.settlements, repos.settlements, loc)
		importService    = importer.NewService(aliasService, reserveService, engine)
	)

	rates := map[reserve.Metal]decimal.Decimal{
		reserve.MetalGold:   cfg.Ledger.GoldRate,
		reserve.MetalSilver: cfg.Ledger.SilverRate,
	}

	router := karatHttp.New(
		karatHttp.Options{JWTSecret: cfg.Auth.JWTSecret, CORSOrigins: cfg.Server.CORSOrigins},
		shopHandler.NewHandler(shopService),
		settlementHandler.NewHandler(engine, rates, loc),
		reserveHandler.NewHandler(reserveService, movementService, reconcileService, loc),
		notificationHandler.NewHandler(alertPolicy),
		importHandler.NewHandler(importService),
		aliasHandler.NewHandler(aliasService),
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.Timeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("starting server", "port", srv.Addr, "storage", cfg.StorageDriver, "timezone", loc.String())

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
