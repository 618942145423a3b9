package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"print-order-service/internal/config"
	handler "print-order-service/internal/controllers/http"
	"print-order-service/internal/infra"
	"print-order-service/internal/infra/carrier"
	mmysql "print-order-service/internal/infra/mysql"
	"print-order-service/internal/infra/otel"
	"print-order-service/internal/infra/payplus"
	"print-order-service/internal/infra/rabbitmq"
	"print-order-service/internal/infra/redis"
	mysqlrepo "print-order-service/internal/repository/mysql"
	"print-order-service/internal/services"

	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 15 * time.Second

func runServer(ctx context.Context, cfg *config.Config) error {
	tracing, err := otel.Init(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		if err := tracing.Shutdown(context.Background()); err != nil {
			slog.Warn("tracing shutdown failed", "error", err)
		}
	}()

	db, err := mmysql.Open(cfg.MySQL)
	if err != nil {
		return fmt.Errorf("db: connect: %w", err)
	}
	orderRepo := mysqlrepo.NewOrderRepository(db)
	paymentRepo := mysqlrepo.NewPaymentRepository(db)
	shipmentRepo := mysqlrepo.NewShipmentRepository(db)
	auditRepo := mysqlrepo.NewAuditRepository(db)

	// Notifications are best effort; the API runs without a broker.
	var publisher rabbitmq.PublisherInterface
	if p, err := rabbitmq.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange); err != nil {
		slog.Warn("rabbitmq unavailable, order events will not be published", "error", err)
	} else {
		defer p.Close()
		publisher = p
	}

	var (
		counters services.CounterStore
		windows  map[services.RateTier]services.WindowStore
	)
	if rdb := redis.NewClient(cfg.Redis); rdb != nil {
		defer rdb.Close()
		counters = redis.NewCounterStore(rdb)
		windows = make(map[services.RateTier]services.WindowStore, len(services.DefaultTiers))
		for tier := range services.DefaultTiers {
			windows[tier] = redis.NewSlidingWindow(rdb, services.TierPrefix(tier))
		}
	} else {
		slog.Warn("redis not configured, rate and concurrency limits disabled")
	}

	audit := services.NewAuditLogger(auditRepo)
	orders := services.NewOrderService(orderRepo, publisher)
	carriers := carrier.NewService(carrier.NewIsraelPostProvider(cfg.IsraelPost))

	shipments := services.NewShipmentService(orders, shipmentRepo, audit, carriers, services.ShipmentDefaultsFromConfig(cfg.Shop))
	slots := services.NewSlotManager(counters, services.DefaultMaxConcurrent, services.DefaultSlotTTL)
	transforms := services.NewTransformGate(slots, infra.NewTransformClient(cfg.Transform.URL, cfg.Transform.Timeout))

	h := handler.NewHandler(handler.Deps{
		Orders:        orders,
		Webhooks:      services.NewWebhookService(orders, orderRepo, services.NewPaymentRecorder(paymentRepo)),
		Refunds:       services.NewRefundService(orderRepo, paymentRepo, audit, payplus.NewClient(cfg.PayPlus)),
		Shipments:     shipments,
		Transforms:    transforms,
		Limiter:       services.NewRateLimiter(windows, nil),
		WebhookSecret: cfg.PayPlus.SecretKey,
	})

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), handler.Trace(cfg.Tracing.ServiceName))
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	h.RegisterRoutes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting print order service", "port", cfg.HTTP.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server run: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
