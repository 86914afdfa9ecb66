package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/event-ticketing-payments/internal/adapters/mailfn"
	"github.com/robertarktes/event-ticketing-payments/internal/adapters/rabbit"
	redisadapter "github.com/robertarktes/event-ticketing-payments/internal/adapters/redis"
	"github.com/robertarktes/event-ticketing-payments/internal/config"
	"github.com/robertarktes/event-ticketing-payments/internal/domain"
	"github.com/robertarktes/event-ticketing-payments/internal/notify"
	"github.com/robertarktes/event-ticketing-payments/internal/observability"
)

const queueName = "notify.booking-confirmed.q"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.ValidateNotifier(); err != nil {
		log.Fatalf("refusing to start: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOtel, err := observability.SetupOTel(ctx, cfg, "notify-worker")
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()
	observability.InitMetrics()

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()

	consumer, err := rabbit.NewConsumer(conn, queueName, domain.EventBookingConfirmed, cfg.NotifyConcurrency)
	if err != nil {
		log.Fatalf("failed to create consumer: %v", err)
	}
	defer consumer.Close()

	deliveries, err := consumer.Consume(ctx)
	if err != nil {
		log.Fatalf("failed to consume: %v", err)
	}

	var dedupe notify.Deduper
	if redisClient := redisadapter.Connect(ctx, cfg.RedisAddr); redisClient != nil {
		defer redisClient.Close()
		dedupe = redisadapter.NewCache(redisClient)
	} else {
		logger.Warn("redis unavailable, redelivered messages may send duplicate emails")
	}

	sender := mailfn.NewClient(cfg.NotifyFunctionURL, cfg.EmailWebhookSecret, cfg.SupabaseServiceKey, &http.Client{})
	worker := notify.NewWorker(sender, dedupe, logger, notify.Options{
		Timeout:     cfg.NotifyTimeout,
		MaxAttempts: cfg.NotifyMaxAttempts,
		Concurrency: cfg.NotifyConcurrency,
		BaseBackoff: time.Second,
		MaxBackoff:  30 * time.Second,
	})

	logger.WithFields(map[string]interface{}{
		"queue":       queueName,
		"concurrency": cfg.NotifyConcurrency,
	}).Info("notify worker started")
	if err := worker.Run(ctx, deliveries); err != nil {
		logger.WithError(err).Error("notify worker stopped")
	}
	logger.Info("Shutdown notify worker")
}
