package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/openshop/openshop/internal/config"
	kafkax "github.com/openshop/openshop/internal/kafka"
	"github.com/openshop/openshop/internal/logging"
	"github.com/openshop/openshop/internal/orders"
	"github.com/openshop/openshop/internal/payments"
	"github.com/openshop/openshop/internal/postgres"
	"github.com/openshop/openshop/internal/redisx"
)

// paymentworker applies the gateway's authorized/failed verdicts to the
// payment lifecycle.
func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.New(cfg.ServiceName + "-paymentworker")
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	orderRepo := &orders.Repo{DB: db, LockTimeout: cfg.LockTimeout}
	svc := &payments.Service{
		Store:  &payments.Repo{DB: db, LockTimeout: cfg.LockTimeout},
		Orders: orderRepo,
		Redis:  rdb,
		Log:    log,
	}
	worker := &payments.Worker{
		Payments:    svc,
		Redis:       rdb,
		ServiceName: cfg.ServiceName + "-paymentworker",
		Log:         log,
	}

	authorized := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.PaymentGroup, orders.TopicPaymentAuthorized, cfg.PaymentWorkers, log)
	failed := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.PaymentGroup, orders.TopicPaymentFailed, cfg.PaymentWorkers, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("consumer started",
			zap.String("topic", orders.TopicPaymentAuthorized), zap.String("group", cfg.PaymentGroup))
		return authorized.Start(gctx, worker.HandleAuthorized)
	})
	g.Go(func() error {
		log.Info("consumer started",
			zap.String("topic", orders.TopicPaymentFailed), zap.String("group", cfg.PaymentGroup))
		return failed.Start(gctx, worker.HandleFailed)
	})

	// wait signal or consumer exit
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info("shutting down consumers")
		cancel()
	}()

	if err := g.Wait(); err != nil {
		log.Error("consumer exit", zap.Error(err))
	}
}
