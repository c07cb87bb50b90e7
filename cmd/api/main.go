package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/openshop/openshop/internal/cart"
	"github.com/openshop/openshop/internal/config"
	"github.com/openshop/openshop/internal/httpx"
	"github.com/openshop/openshop/internal/inventory"
	kafkax "github.com/openshop/openshop/internal/kafka"
	"github.com/openshop/openshop/internal/logging"
	"github.com/openshop/openshop/internal/orders"
	"github.com/openshop/openshop/internal/payments"
	"github.com/openshop/openshop/internal/postgres"
	"github.com/openshop/openshop/internal/products"
	"github.com/openshop/openshop/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.New(cfg.ServiceName)
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers
	pPlaced := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderPlaced, 1024, log)
	pPlaced.Start(ctx)
	pCancelled := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCancelled, 1024, log)
	pCancelled.Start(ctx)

	// Wiring
	productRepo := &products.Repo{DB: db}
	cartStore := &cart.Store{Redis: rdb, Products: productRepo, Log: log}
	ledger := &inventory.Ledger{
		Store: &inventory.PGStore{DB: db, LockTimeout: cfg.LockTimeout},
		Log:   log,
	}
	orderRepo := &orders.Repo{DB: db, LockTimeout: cfg.LockTimeout}
	orderSvc := &orders.Service{
		Store:       orderRepo,
		Cart:        cartStore,
		Placed:      pPlaced,
		Cancelled:   pCancelled,
		Redis:       rdb,
		ServiceName: cfg.ServiceName,
		Log:         log,
	}
	paymentSvc := &payments.Service{
		Store:  &payments.Repo{DB: db, LockTimeout: cfg.LockTimeout},
		Orders: orderRepo,
		Redis:  rdb,
		Log:    log,
	}

	router := httpx.NewRouter()
	(&httpx.OrdersHandler{Orders: orderSvc, Cart: cartStore, Redis: rdb}).Register(router)
	(&httpx.InventoryHandler{Ledger: ledger}).Register(router)
	(&httpx.PaymentsHandler{Payments: paymentSvc}).Register(router)
	(&httpx.CartHandler{Cart: cartStore}).Register(router)
	(&httpx.ProductsHandler{Repo: productRepo}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	pPlaced.Close() // close inbox -> flush & close writer
	pCancelled.Close()
	pPlaced.WaitClosed()
	pCancelled.WaitClosed()
}
