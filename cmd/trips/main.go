package main

import (
	"context"

	"wayfare/internal/trips/handler"
	"wayfare/internal/trips/repository"
	"wayfare/internal/trips/scheduler"
	"wayfare/internal/trips/service"
	"wayfare/internal/trips/validator"
	"wayfare/pkg/app"
	"wayfare/pkg/config"
	"wayfare/pkg/events"
	"wayfare/pkg/kafka"
	kafka_config "wayfare/pkg/kafka/config"
	kafka_middleware "wayfare/pkg/kafka/middleware"
)

const ServiceName = "trips"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()

	cfg.Log.Info("Starting Trips service")

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

	tripService, tripScheduler := initServices(cfg, bus)

	ctx, cancel := context.WithCancel(context.Background())
	tripScheduler.Start(ctx)

	consumer := startConsumer(ctx, cfg, kafkaCfg, tripService)

	serverApp := app.NewApplication()
	serverApp.SetApp(cfg, handler.NewTripHandler(tripService, cfg.Log))
	serverApp.OnShutdown(func() {
		cancel()
		tripScheduler.Stop()
		if err := consumer.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka consumer", "error", err)
		}
		if err := producer.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka producer", "error", err)
		}
	})
	serverApp.Run()
}

func initServices(cfg *config.Config, bus events.Publisher) (service.TripService, *scheduler.Scheduler) {
	tripValidator := validator.NewTripValidator(cfg.Log)
	tripRepo := repository.NewMongoTripRepository(cfg)
	lockRepo := repository.NewTaskLockRepository(cfg)

	tripService := service.NewTripService(tripRepo, tripValidator, bus, cfg)
	tripScheduler := scheduler.NewScheduler(tripRepo, lockRepo, bus, cfg)

	cfg.Log.Info("Trip service initialized", "database", cfg.MongoDatabaseName)
	return tripService, tripScheduler
}

// startConsumer subscribes the trip service to the facts it reacts to, so a
// conversation announced by the chat service gets linked back onto its trip.
func startConsumer(ctx context.Context, cfg *config.Config, kafkaCfg *kafka_config.Config, tripService service.TripService) *kafka.Consumer {
	dispatcher := events.NewDispatcher()
	tripService.Register(dispatcher)

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

	go func() {
		if err := consumer.Start(ctx); err != nil && err != context.Canceled {
			cfg.Log.Error("Kafka consumer stopped", "error", err)
		}
	}()

	return consumer
}
