package bootstrap

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"

	"persona-chat-be/internal/config"
	"persona-chat-be/internal/constant"
	"persona-chat-be/internal/controller"
	"persona-chat-be/internal/handler"
	"persona-chat-be/internal/pkg/logger"
	"persona-chat-be/internal/repository/unitofwork"
	"persona-chat-be/internal/service"
	"persona-chat-be/internal/websocket"
	"persona-chat-be/pkg/chat/history"
	"persona-chat-be/pkg/chat/thread"
	"persona-chat-be/pkg/chat/title"
	"persona-chat-be/pkg/chat/waterfall"
	"persona-chat-be/pkg/events"
	"persona-chat-be/pkg/llm/factory"

	pktNats "persona-chat-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	ChatController controller.IChatController
	AuthController controller.IAuthController

	// Background Services (Exposed for main.go to run)
	TitleConsumerService service.ITitleConsumerService
	TitleSummarizer      *title.Summarizer

	// WebSockets & Notification
	NotificationHandler *handler.NotificationHandler
	WebSocketHub        *websocket.Hub
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	engineLogger := initEngineLogger()

	// 2. Event Bus (in-process title triggers)
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. Generation Tiers
	tiers, err := factory.BuildTiers(cfg.TierConfigs())
	if err != nil {
		log.Fatalf("[FATAL] Failed to build generation tiers: %v", err)
	}
	dispatcher := waterfall.NewDispatcher(tiers, engineLogger)

	titleTier, err := factory.CheapestTier(tiers, cfg.Title.Tier)
	if err != nil {
		log.Fatalf("[FATAL] Failed to pick title tier: %v", err)
	}
	log.Printf("[INFO] Title summarizer uses tier: %s", titleTier.Label)

	// 3.5 Infrastructure
	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger("logs/notification.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	// 4. Chat Engine Components
	resolver := thread.NewResolver(uowFactory)
	historyLoader := history.NewLoader(uowFactory, cfg.Chat.ContextWindowTurns, engineLogger)

	onTitled := func(threadId, ownerId uuid.UUID, threadTitle string) {
		if natsPub == nil {
			return
		}
		evt := events.BaseEvent{
			Type: constant.NatsThreadTitledEvent,
			Data: map[string]interface{}{
				"thread_id": threadId.String(),
				"user_id":   ownerId.String(),
				"title":     threadTitle,
			},
			OccurredAt: time.Now(),
		}
		if err := natsPub.Publish(context.Background(), evt); err != nil {
			engineLogger.Printf("[TITLE] Failed to publish titled event for thread %s: %v", threadId, err)
		}
	}

	summarizer := title.NewSummarizer(
		uowFactory,
		titleTier.Provider,
		engineLogger,
		title.Config{
			CallTimeout:   titleTier.Timeout,
			SweepInterval: time.Duration(cfg.Title.SweepIntervalSeconds) * time.Second,
			BatchSize:     cfg.Title.SweepBatchSize,
			ItemDelay:     time.Duration(cfg.Title.SweepItemDelaySecs) * time.Second,
		},
		onTitled,
	)

	// 5. Services
	titlePublisher := service.NewPublisherService(cfg.Title.TopicName, pubSub)
	titleConsumer := service.NewTitleConsumerService(pubSub, cfg.Title.TopicName, summarizer)

	chatService := service.NewChatService(
		uowFactory,
		resolver,
		historyLoader,
		dispatcher,
		titlePublisher,
	)
	authService := service.NewAuthService(uowFactory, cfg.Auth)

	// 6. Notification System
	if natsSub != nil {
		notifService := service.NewNotificationService(natsSub, wsHub, wsLogger)
		go notifService.Start()
	}
	notifHandler := handler.NewNotificationHandler(wsHub, wsLogger)

	sysLogger.Info("Bootstrap", "Container wired", map[string]interface{}{
		"tiers":      len(tiers),
		"title_tier": titleTier.Label,
	})

	// 7. Controllers
	return &Container{
		ChatController: controller.NewChatController(chatService),
		AuthController: controller.NewAuthController(authService),

		TitleConsumerService: titleConsumer,
		TitleSummarizer:      summarizer,

		NotificationHandler: notifHandler,
		WebSocketHub:        wsHub,
	}
}

func initEngineLogger() *log.Logger {
	logPath := filepath.Join(".", "logs", "engine.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		log.Printf("Failed to create logs directory: %v", err)
	}
	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return log.New(os.Stdout, "[ENGINE] ", log.LstdFlags)
	}
	return log.New(file, "", log.LstdFlags)
}
