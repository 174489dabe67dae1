package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/agro-market/internal/config"
	kafkax "github.com/ariefcatur/agro-market/internal/kafka"
	"github.com/ariefcatur/agro-market/internal/logx"
	"github.com/ariefcatur/agro-market/internal/notifications"
	"github.com/ariefcatur/agro-market/internal/postgres"
	"github.com/ariefcatur/agro-market/internal/redisx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// notifier relays committed notifications from the Postgres outbox to Kafka
// and consumes them back for delivery.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := logx.New(cfg.ServiceName+"-notifier", cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if cfg.PostgresDSN == "" || cfg.RedisAddr == "" {
		log.Fatal("notifier needs POSTGRES_DSN and REDIS_ADDR")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	prod := kafkax.NewProducer(cfg.KafkaBrokers, notifications.TopicNotifications, cfg.OutboxBatch, log)
	defer func() { _ = prod.Close() }()

	relay := &notifications.Relay{
		Outbox:    notifications.Repo{DB: db},
		Publisher: prod,
		Producer:  cfg.ServiceName,
		Batch:     cfg.OutboxBatch,
		Interval:  cfg.OutboxInterval,
		Log:       log.Named("relay"),
	}
	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		log.Info("outbox relay started", zap.Duration("interval", cfg.OutboxInterval))
		_ = relay.Run(ctx)
	}()

	svc := &notifications.DeliveryService{
		Dedup:     redisx.Deduper{RDB: rdb, Service: "notifier"},
		Deliverer: notifications.LogDeliverer{Log: log.Named("delivery")},
		Log:       log,
	}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.NotifierGroup, notifications.TopicNotifications, cfg.NotifierWorkers, log)
	go func() {
		log.Info("delivery consumer started",
			zap.String("group", cfg.NotifierGroup), zap.String("topic", notifications.TopicNotifications),
			zap.Int("workers", cfg.NotifierWorkers))
		if err := cons.Start(ctx, svc.HandleMessage); err != nil {
			log.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Info("shutting down notifier...")
	cancel()
	<-relayDone
}
