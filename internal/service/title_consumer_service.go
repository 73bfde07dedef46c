package service

import (
	"context"
	"encoding/json"
	"log"

	"persona-chat-be/internal/dto"
	"persona-chat-be/pkg/chat/title"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type ITitleConsumerService interface {
	Consume(ctx context.Context) error
}

// titleConsumerService drains the in-process title topic and hands each
// thread to the summarizer. Summarization failures are not retried here;
// the periodic sweep picks those threads up again.
type titleConsumerService struct {
	pubSub     *gochannel.GoChannel
	topicName  string
	summarizer *title.Summarizer
}

func NewTitleConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	summarizer *title.Summarizer,
) ITitleConsumerService {
	return &titleConsumerService{
		pubSub:     pubSub,
		topicName:  topicName,
		summarizer: summarizer,
	}
}

func (cs *titleConsumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *titleConsumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.SummarizeTitleMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		log.Printf("[ERROR] Failed to unmarshal title message: %v", err)
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	cs.summarizer.MaybeSummarize(ctx, payload.ThreadId)

	// Always ack. Whether the summarization worked or not, the sweep is the
	// retry mechanism, not this queue.
	msg.Ack()
}
