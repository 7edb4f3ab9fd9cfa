package main

import (
	"context"

	chathandler "wayfare/internal/chat/handler"
	chatrepository "wayfare/internal/chat/repository"
	chatservice "wayfare/internal/chat/service"
	notificationhandler "wayfare/internal/notifications/handler"
	notificationrepository "wayfare/internal/notifications/repository"
	notificationservice "wayfare/internal/notifications/service"
	triphandler "wayfare/internal/trips/handler"
	triprepository "wayfare/internal/trips/repository"
	"wayfare/internal/trips/scheduler"
	tripservice "wayfare/internal/trips/service"
	"wayfare/internal/trips/validator"
	"wayfare/pkg/app"
	"wayfare/pkg/config"
	"wayfare/pkg/contracts"
	"wayfare/pkg/events"
)

const ServiceName = "wayfare"

// Single-process deployment: all three domains share one HTTP server and
// exchange facts over the in-memory bus instead of Kafka. Useful for local
// development and small installations.
func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()

	cfg.Log.Info("Starting Wayfare all-in-one service")

	bus := events.NewMemoryBus(cfg.Log)

	tripValidator := validator.NewTripValidator(cfg.Log)
	tripRepo := triprepository.NewMongoTripRepository(cfg)
	lockRepo := triprepository.NewTaskLockRepository(cfg)
	tripService := tripservice.NewTripService(tripRepo, tripValidator, bus, cfg)
	tripScheduler := scheduler.NewScheduler(tripRepo, lockRepo, bus, cfg)

	conversationRepo := chatrepository.NewMongoConversationRepository(cfg)
	chatService := chatservice.NewChatService(conversationRepo, bus, cfg)

	notificationRepo := notificationrepository.NewMongoNotificationRepository(cfg)
	notificationService := notificationservice.NewNotificationService(notificationRepo, cfg)

	tripService.Register(bus.Dispatcher())
	chatService.Register(bus.Dispatcher())
	notificationService.Register(bus.Dispatcher())

	ctx, cancel := context.WithCancel(context.Background())
	tripScheduler.Start(ctx)

	serverApp := app.NewApplication()
	serverApp.SetApp(cfg, contracts.Composite{
		triphandler.NewTripHandler(tripService, cfg.Log),
		chathandler.NewConversationHandler(chatService, cfg.Log),
		notificationhandler.NewNotificationHandler(notificationService, cfg.Log),
	})
	serverApp.OnShutdown(func() {
		cancel()
		tripScheduler.Stop()
	})
	serverApp.Run()
}
