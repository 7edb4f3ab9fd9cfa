package main

import (
	"context"

	"wayfare/internal/chat/handler"
	"wayfare/internal/chat/repository"
	"wayfare/internal/chat/service"
	"wayfare/pkg/app"
	"wayfare/pkg/config"
	"wayfare/pkg/events"
	"wayfare/pkg/kafka"
	kafka_config "wayfare/pkg/kafka/config"
	kafka_middleware "wayfare/pkg/kafka/middleware"
)

const ServiceName = "chat"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()

	cfg.Log.Info("Starting Chat service")

	kafkaCfg := kafka_config.Load()
	producer, err := kafka.NewProducer(kafkaCfg, kafkaCfg.LifecycleTopic, kafkaCfg.LifecycleDLQTopic)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	if kafkaCfg.EnableMiddleware {
		producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
		producer.Use(kafka_middleware.MetricsProducerMiddleware())
	}
	bus := events.NewKafkaPublisher(producer, ServiceName)

	conversationRepo := repository.NewMongoConversationRepository(cfg)
	chatService := service.NewChatService(conversationRepo, bus, cfg)
	cfg.Log.Info("Chat service initialized", "database", cfg.MongoDatabaseName)

	dispatcher := events.NewDispatcher()
	chatService.Register(dispatcher)

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
	serverApp.SetApp(cfg, handler.NewConversationHandler(chatService, cfg.Log))
	serverApp.OnShutdown(func() {
		cancel()
		if err := consumer.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka consumer", "error", err)
		}
		if err := producer.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka producer", "error", err)
		}
	})
	serverApp.Run()
}
