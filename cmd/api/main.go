package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"ordercart/internal/cart"
	"ordercart/internal/clients"
	"ordercart/internal/config"
	"ordercart/internal/httpx"
	kafkax "ordercart/internal/kafka"
	"ordercart/internal/metrics"
	"ordercart/internal/orders"
	"ordercart/internal/postgres"
	"ordercart/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logrus.SetFormatter(&logrus.JSONFormatter{})

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logrus.WithError(err).Fatal("db connect")
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Metrics
	m := metrics.New(prometheus.DefaultRegisterer)

	// Kafka producer for lifecycle events
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024)
	prod.Start(ctx)

	// External collaborators
	products := clients.NewProductClient(cfg.ProductURL, cfg.ExternalTimeout)
	auth := clients.NewAuthClient(cfg.UserURL, cfg.ExternalTimeout)
	gateway := clients.NewPaymentClient(cfg.PaymentURL, cfg.ExternalTimeout)
	notifier := clients.NewDispatcher(
		clients.NewNotificationClient(cfg.NotificationURL, cfg.ExternalTimeout),
		cfg.ExternalTimeout, 1024,
		func() { m.SideEffectFailure("notification") },
	)
	notifier.Start(ctx)

	// Services
	carts := cart.NewService(&cart.Repo{DB: db}, products)
	claims := &redisx.PaymentClaims{R: rdb}
	orderSvc := orders.NewService(&orders.Repo{DB: db}, products, auth,
		notifier, gateway, prod, carts, claims, m, cfg.ServiceName)

	// Router
	router := httpx.NewRouter()
	ch := &httpx.CartHandler{Carts: carts, Auth: auth}
	oh := &httpx.OrdersHandler{Orders: orderSvc, Auth: auth, Redis: rdb}
	router.Route("/api/v1", func(r chi.Router) {
		ch.Register(r)
		oh.Register(r)
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		logrus.WithField("addr", cfg.HTTPAddr).Info("HTTP listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("listen")
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logrus.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close() // flush buffered events and close the writer
	notifier.Close()
	prod.WaitClosed()
	notifier.WaitClosed()
}
