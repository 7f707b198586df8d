package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boloapp/order-service/internal/actor"
	"github.com/boloapp/order-service/internal/api"
	"github.com/boloapp/order-service/internal/clients"
	"github.com/boloapp/order-service/internal/config"
	"github.com/boloapp/order-service/internal/database"
	"github.com/boloapp/order-service/internal/handlers"
	"github.com/boloapp/order-service/internal/models"
	"github.com/boloapp/order-service/internal/outbox"
	"github.com/boloapp/order-service/internal/repository"
	"github.com/boloapp/order-service/internal/service"
	"github.com/boloapp/order-service/internal/store"
	"github.com/boloapp/order-service/internal/store/memory"
	"github.com/boloapp/order-service/pkg/kafka"
	"github.com/boloapp/order-service/pkg/logger"
	"github.com/boloapp/order-service/pkg/middleware"
	"github.com/boloapp/order-service/pkg/retry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	l := logger.New(cfg.LogLevel)
	l.Info("starting order service", "env", cfg.Env, "storeBackend", cfg.StoreBackend)

	orders, history, outboxStore, deadLetters, cleanup, err := buildStores(cfg, l)
	if err != nil {
		l.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	verifier := actor.NewTokenVerifier(cfg.Auth.JWTSecret)
	actors := &actor.ContextProvider{
		Fallback: models.Actor{
			ID:   cfg.Auth.SystemActorID,
			Name: cfg.Auth.SystemActorName,
			Role: "system",
		},
	}

	orderService := service.NewOrderService(orders, history, actors, cfg.StrictTransitions, l)

	notifier := clients.NewNotifierClient(cfg.Notifier.BaseURL, cfg.Notifier.Timeout, l)

	outboxProcessor := outbox.NewProcessor(outboxStore, deadLetters, outbox.ProcessorConfig{
		PollingInterval: 5 * time.Second,
		BatchSize:       10,
		MaxRetries:      3,
	}, l)

	deadLetterProcessor := outbox.NewDeadLetterProcessor(deadLetters, outbox.DeadLetterProcessorConfig{
		PollingInterval: 30 * time.Second,
		BatchSize:       5,
		MaxRetries:      5,
		Backoff: &retry.ExponentialBackoff{
			InitialInterval: 1 * time.Second,
			MaxInterval:     2 * time.Minute,
			Multiplier:      2.0,
			JitterFactor:    0.1,
		},
	}, l)

	var kafkaProducer *kafka.Producer
	var kafkaConsumer *kafka.Consumer

	if cfg.Kafka.Enabled {
		kafkaProducer, err = kafka.NewProducer(cfg.Kafka.Brokers, l)
		if err != nil {
			l.Error("failed to create kafka producer", "error", err)
			os.Exit(1)
		}

		for _, eventType := range []string{
			models.EventOrderStatusChanged,
			models.EventPaymentStatusChanged,
			models.EventPaymentMethodChanged,
		} {
			handler := outbox.NewKafkaHandler(kafkaProducer, eventType, l)
			outboxProcessor.RegisterHandler(eventType, handler)
			deadLetterProcessor.RegisterHandler(eventType, handler)
		}

		kafkaConsumer, err = kafka.NewConsumer(&kafka.ConsumerConfig{
			Brokers: cfg.Kafka.Brokers,
			Topics: []string{
				models.EventOrderStatusChanged,
				models.EventPaymentStatusChanged,
				models.EventPaymentMethodChanged,
			},
			ConsumerGroup: cfg.Kafka.ConsumerGroup,
		}, l)
		if err != nil {
			l.Error("failed to create kafka consumer", "error", err)
			os.Exit(1)
		}

		eventsHandler := handlers.NewOrderEventsHandler(notifier, l)
		kafkaConsumer.RegisterHandler(models.EventOrderStatusChanged, eventsHandler)
		kafkaConsumer.RegisterHandler(models.EventPaymentStatusChanged, eventsHandler)
		kafkaConsumer.RegisterHandler(models.EventPaymentMethodChanged, eventsHandler)
	} else {
		// Log-only publication for local development.
		logHandler := outbox.NewLoggingHandler(l)
		for _, eventType := range []string{
			models.EventOrderStatusChanged,
			models.EventPaymentStatusChanged,
			models.EventPaymentMethodChanged,
		} {
			outboxProcessor.RegisterHandler(eventType, logHandler)
			deadLetterProcessor.RegisterHandler(eventType, logHandler)
		}
	}

	rateLimiter := middleware.NewRateLimiter(&middleware.RateLimiterConfig{
		GlobalCapacity:    cfg.Rate.GlobalCapacity,
		GlobalRefillRate:  cfg.Rate.GlobalRefillRate,
		IPCapacity:        cfg.Rate.IPCapacity,
		IPRefillRate:      cfg.Rate.IPRefillRate,
		TrustForwardedFor: cfg.Rate.TrustForwardedFor,
	}, l)

	server := api.NewServer(cfg, api.Dependencies{
		OrderService: orderService,
		DeadLetters:  deadLetters,
		Notifier:     notifier,
		Verifier:     verifier,
		RateLimiter:  rateLimiter,
	}, l)

	outboxProcessor.Start()
	deadLetterProcessor.Start()
	if kafkaConsumer != nil {
		if err := kafkaConsumer.Start(); err != nil {
			// Keep serving; events will drain once Kafka is back.
			l.Error("failed to start kafka consumer", "error", err)
		}
	}

	go func() {
		l.Info(fmt.Sprintf("server is starting on port %d", cfg.Port))
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			l.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	l.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	outboxProcessor.Stop()
	deadLetterProcessor.Stop()
	if kafkaConsumer != nil {
		if err := kafkaConsumer.Stop(); err != nil {
			l.Error("error stopping kafka consumer", "error", err)
		}
	}
	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			l.Error("error closing kafka producer", "error", err)
		}
	}

	if err := server.Shutdown(ctx); err != nil {
		l.Error("server forced to shutdown", "error", err)
	} else {
		l.Info("server exiting")
	}
}

// buildStores wires the configured storage backend. The memory backend
// boots with the demo dataset.
func buildStores(cfg *config.Config, l logger.Logger) (store.OrderStore, store.HistoryStore, store.OutboxStore, store.DeadLetterStore, func(), error) {
	if cfg.StoreBackend == "memory" {
		mem := memory.New()
		if err := memory.Seed(context.Background(), mem); err != nil {
			return nil, nil, nil, nil, nil, err
		}
		l.Info("using in-memory store with seed data")
		return mem, mem, mem, memory.NewDeadLetterQueue(), func() {}, nil
	}

	db, err := database.New(cfg, l)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, nil, nil, nil, nil, err
	}

	historyRepo := repository.NewHistoryRepository(db, l)
	outboxRepo := repository.NewOutboxRepository(db, l)
	orderRepo := repository.NewOrderRepository(db, historyRepo, outboxRepo, l)
	dlqRepo := repository.NewDeadLetterRepository(db, l)

	cleanup := func() {
		if err := db.Close(); err != nil {
			l.Error("error closing database connection", "error", err)
		}
	}
	return orderRepo, historyRepo, outboxRepo, dlqRepo, cleanup, nil
}
