package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/agro-market/internal/config"
	"github.com/ariefcatur/agro-market/internal/httpx"
	"github.com/ariefcatur/agro-market/internal/ledger"
	"github.com/ariefcatur/agro-market/internal/logx"
	"github.com/ariefcatur/agro-market/internal/memstore"
	"github.com/ariefcatur/agro-market/internal/notifications"
	"github.com/ariefcatur/agro-market/internal/observability"
	"github.com/ariefcatur/agro-market/internal/orders"
	"github.com/ariefcatur/agro-market/internal/postgres"
	"github.com/ariefcatur/agro-market/internal/redisx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := logx.New(cfg.ServiceName, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.ServiceName, cfg.OtelEndpoint)
	if err != nil {
		log.Warn("tracing disabled", zap.Error(err))
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	var (
		orderStore  orders.Store
		ledgerStore ledger.Store
		sink        notifications.Sink
		seeder      productSeeder
	)
	if cfg.PostgresDSN != "" {
		db, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatal("db connect", zap.Error(err))
		}
		defer db.Close()
		if cfg.AutoMigrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				log.Fatal("db migrate", zap.Error(err))
			}
		}
		orderStore = &orders.Repo{DB: db}
		ledgerStore = &ledger.Repo{DB: db}
		sink = notifications.Repo{DB: db}
		seeder = pgSeeder{db: db}
	} else {
		log.Warn("POSTGRES_DSN not set, using in-memory store; data is lost on exit")
		mem := memstore.New()
		orderStore, ledgerStore, sink, seeder = mem, mem, mem, memSeeder{mem}
	}

	if path := os.Getenv("SEED_PRODUCTS"); path != "" {
		n, err := seedProducts(ctx, seeder, path)
		if err != nil {
			log.Fatal("seed products", zap.String("path", path), zap.Error(err))
		}
		log.Info("products seeded", zap.Int("count", n))
	}

	router := httpx.NewRouter(log)
	oh := &httpx.OrdersHandler{
		Orders: orders.NewService(orderStore, sink, log.Named("orders")),
		Log:    log,
	}
	if cfg.RedisAddr != "" {
		rdb := redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		oh.Redis = rdb
	}
	oh.Register(router)
	lh := &httpx.LedgerHandler{
		Ledger: ledger.NewService(ledgerStore, cfg.VerifyBaseURL, log.Named("ledger")),
		Log:    log,
	}
	lh.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
}
