package service

import (
	"context"
	"strings"
	"time"

	"persona-chat-be/internal/constant"
	"persona-chat-be/internal/model"
	"persona-chat-be/internal/pkg/logger"
	"persona-chat-be/pkg/events"
	pktNats "persona-chat-be/pkg/nats"

	"github.com/google/uuid"
)

// NotificationDelivery defines how to push real-time updates.
// Typically implemented by the WebSocket Hub.
type NotificationDelivery interface {
	Send(userID uuid.UUID, notification model.ThreadNotification)
}

// NotificationService bridges the NATS event bus to connected websocket
// clients, so a thread titled on any instance reaches the owner's browser.
type NotificationService struct {
	subscriber *pktNats.Subscriber
	delivery   NotificationDelivery
	logger     logger.ILogger
}

func NewNotificationService(sub *pktNats.Subscriber, delivery NotificationDelivery, log logger.ILogger) *NotificationService {
	return &NotificationService{
		subscriber: sub,
		delivery:   delivery,
		logger:     log,
	}
}

// Start begins listening to the event bus.
func (s *NotificationService) Start() {
	err := s.subscriber.Subscribe("chat.>", "chat-notif-worker", s.handleEvent)
	if err != nil {
		s.logger.Error("NotificationService", "Failed to start notification subscriber", map[string]interface{}{"error": err})
		return
	}
	s.logger.Info("NotificationService", "Notification service started, listening to chat.>", nil)
}

func (s *NotificationService) handleEvent(ctx context.Context, event events.Event) error {
	// Subjects carry the stream prefix ("chat.THREAD_TITLED").
	if !strings.HasSuffix(event.EventType(), constant.NatsThreadTitledEvent) {
		return nil
	}

	payload := event.Payload()

	userIdStr, _ := payload["user_id"].(string)
	threadIdStr, _ := payload["thread_id"].(string)
	title, _ := payload["title"].(string)

	userId, err := uuid.Parse(userIdStr)
	if err != nil {
		// Event without a routable owner (e.g. guest thread); nothing to push.
		return nil
	}
	threadId, err := uuid.Parse(threadIdStr)
	if err != nil {
		return nil
	}

	notification := model.ThreadNotification{
		Type:       constant.NatsThreadTitledEvent,
		ThreadId:   threadId,
		Title:      title,
		OccurredAt: time.Now(),
	}

	if s.delivery != nil {
		s.delivery.Send(userId, notification)
	}
	s.logger.Info("NotificationService", "Thread title pushed", map[string]interface{}{
		"user_id":   userId,
		"thread_id": threadId,
	})
	return nil
}
