package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"print-order-service/internal/config"
	"print-order-service/internal/domain"
	mmysql "print-order-service/internal/infra/mysql"
	"print-order-service/internal/infra/rabbitmq"
	"print-order-service/internal/worker/notification"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var cfg *config.Config

	root := &cobra.Command{
		Use:           "print-order-service",
		Short:         "Order, payment and shipment API for the print shop",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			config.SetupLogger(loaded.LogLevel)
			cfg = loaded
			return nil
		},
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), cfg)
		},
	}

	worker := &cobra.Command{
		Use:   "worker",
		Short: "Consume order events and send customer notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(cmd.Context(), cfg)
		},
	}

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := mmysql.Open(cfg.MySQL)
			if err != nil {
				return fmt.Errorf("db: connect: %w", err)
			}
			if err := mmysql.Migrate(db); err != nil {
				return fmt.Errorf("db: migrate: %w", err)
			}
			slog.Info("schema migrated")
			return nil
		},
	}

	root.AddCommand(serve, worker, migrate)
	root.RunE = serve.RunE

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	cobra.OnFinalize(stop)
	root.SetContext(ctx)
	return root
}

func runWorker(ctx context.Context, cfg *config.Config) error {
	consumer, err := rabbitmq.NewConsumer(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.Queue,
		domain.RoutingOrderConfirmation, domain.RoutingOrderStatusChanged)
	if err != nil {
		return err
	}
	defer consumer.Close()

	w := notification.NewWorker(cfg.Notification)
	slog.Info("notification worker started", "queue", cfg.RabbitMQ.Queue)
	return consumer.Run(ctx, w.Handle)
}
