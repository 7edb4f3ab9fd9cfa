package main

import (
	"context"

	"wayfare/internal/notifications/handler"
	"wayfare/internal/notifications/repository"
	"wayfare/internal/notifications/service"
	"wayfare/pkg/app"
	"wayfare/pkg/config"
	"wayfare/pkg/events"
	"wayfare/pkg/kafka"
	kafka_config "wayfare/pkg/kafka/config"
	kafka_middleware "wayfare/pkg/kafka/middleware"
)

const ServiceName = "notifications"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()

	cfg.Log.Info("Starting Notifications service")

	notificationRepo := repository.NewMongoNotificationRepository(cfg)
	notificationService := service.NewNotificationService(notificationRepo, cfg)
	cfg.Log.Info("Notification service initialized", "database", cfg.MongoDatabaseName)

	dispatcher := events.NewDispatcher()
	notificationService.Register(dispatcher)

	kafkaCfg := kafka_config.Load()
	consumer, err := kafka.NewConsumer(
		kafkaCfg,
		kafkaCfg.LifecycleTopic,
		ServiceName,
		kafkaCfg.LifecycleDLQTopic,
		events.ConsumerHandler(dispatcher),
	)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka consumer", "error", err)
	}
	if kafkaCfg.EnableMiddleware {
		consumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))
		consumer.Use(kafka_middleware.MetricsConsumerMiddleware())
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := consumer.Start(ctx); err != nil && err != context.Canceled {
			cfg.Log.Error("Kafka consumer stopped", "error", err)
		}
	}()

	serverApp := app.NewApplication()
	serverApp.SetApp(cfg, handler.NewNotificationHandler(notificationService, cfg.Log))
	serverApp.OnShutdown(func() {
		cancel()
		if err := consumer.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka consumer", "error", err)
		}
	})
	serverApp.Run()
}
