package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/yard-sale-vendors/internal/adapters/rabbit"
	"github.com/robertarktes/yard-sale-vendors/internal/config"
	"github.com/robertarktes/yard-sale-vendors/internal/notify"
	"github.com/robertarktes/yard-sale-vendors/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Require(config.KeyRabbitURL, config.KeyResendAPIKey); err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOtel, err := observability.SetupOTel(ctx, cfg, "vendors-mailer")
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger(cfg.LogLevel)
	observability.InitMetrics()
	go observability.ServeMetrics(ctx, cfg.MetricsAddr, logger)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()

	consumer, err := rabbit.NewConsumer(conn, rabbit.ConfirmationQueue, notify.RoutingKey)
	if err != nil {
		log.Fatalf("failed to create consumer: %v", err)
	}
	defer consumer.Close()

	deliveries, err := consumer.Consume("vendors-mailer")
	if err != nil {
		log.Fatalf("failed to consume: %v", err)
	}

	sender := notify.NewEmailSender(notify.EmailOptions{
		BaseURL:   cfg.ResendBaseURL,
		APIKey:    cfg.ResendAPIKey,
		From:      cfg.EmailFrom,
		EventName: cfg.EventName,
	})

	logger.WithField("queue", rabbit.ConfirmationQueue).Info("mailer started")
	if err := notify.NewWorker(sender, logger).Run(ctx, deliveries); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Error("mailer stopped")
		return
	}
	logger.Info("Shutdown mailer")
}
