package history

import (
	"context"
	"fmt"
	"log"

	"persona-chat-be/internal/constant"
	"persona-chat-be/internal/dto"
	"persona-chat-be/internal/repository/specification"
	"persona-chat-be/internal/repository/unitofwork"
	"persona-chat-be/pkg/llm"

	"github.com/google/uuid"
)

// Loader assembles the bounded context window for one generation call:
// persona instruction first, then the most recent stored turns in
// chronological order, then the not-yet-persisted user text.
type Loader struct {
	uowFactory unitofwork.RepositoryFactory
	limit      int
	logger     *log.Logger
}

// NewLoader creates a loader bounded to limit turns per window.
func NewLoader(uowFactory unitofwork.RepositoryFactory, limit int, logger *log.Logger) *Loader {
	if limit <= 0 {
		limit = constant.ContextWindowTurns
	}
	return &Loader{
		uowFactory: uowFactory,
		limit:      limit,
		logger:     logger,
	}
}

// Build produces the structured context window for a stored thread.
// History is a best-effort enrichment: if the storage read fails, the window
// degrades to persona + new user text instead of failing the request.
func (l *Loader) Build(ctx context.Context, threadId uuid.UUID, personaInstruction, userText string) []llm.Message {
	messages := make([]llm.Message, 0, l.limit+2)
	messages = append(messages, llm.Message{
		Role:    constant.ChatMessageRoleSystem,
		Content: personaInstruction,
	})

	stored, err := l.loadRecent(ctx, threadId)
	if err != nil {
		if l.logger != nil {
			l.logger.Printf("[CONTEXT] History retrieval degraded for thread %s: %v", threadId, err)
		}
	} else {
		messages = append(messages, stored...)
	}

	messages = append(messages, llm.Message{
		Role:    constant.ChatMessageRoleUser,
		Content: userText,
	})
	return messages
}

// BuildFromTranscript produces the context window from a client-supplied
// transcript (stateless anonymous callers). Unknown roles are normalized to
// assistant; an entry with empty text is a validation error.
func (l *Loader) BuildFromTranscript(transcript []dto.TranscriptEntry, personaInstruction, userText string) ([]llm.Message, error) {
	messages := make([]llm.Message, 0, len(transcript)+2)
	messages = append(messages, llm.Message{
		Role:    constant.ChatMessageRoleSystem,
		Content: personaInstruction,
	})

	start := 0
	if len(transcript) > l.limit {
		start = len(transcript) - l.limit
	}
	for i, entry := range transcript[start:] {
		if entry.Text == "" {
			return nil, fmt.Errorf("transcript entry %d has empty text", start+i)
		}
		role := entry.Role
		if role != constant.ChatMessageRoleUser {
			role = constant.ChatMessageRoleAssistant
		}
		messages = append(messages, llm.Message{
			Role:    role,
			Content: entry.Text,
		})
	}

	messages = append(messages, llm.Message{
		Role:    constant.ChatMessageRoleUser,
		Content: userText,
	})
	return messages, nil
}

// loadRecent fetches the newest turns first to honor the bound, then flips
// them back into chronological order.
func (l *Loader) loadRecent(ctx context.Context, threadId uuid.UUID) ([]llm.Message, error) {
	uow := l.uowFactory.NewUnitOfWork(ctx)

	turns, err := uow.TurnRepository().FindAll(ctx,
		specification.ByThreadID{ThreadID: threadId},
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: l.limit, Offset: 0},
	)
	if err != nil {
		return nil, err
	}

	messages := make([]llm.Message, 0, len(turns))
	for i := len(turns) - 1; i >= 0; i-- {
		turn := turns[i]
		role := constant.ChatMessageRoleUser
		if turn.Role == constant.ChatMessageRoleAssistant {
			role = constant.ChatMessageRoleAssistant
		}
		messages = append(messages, llm.Message{
			Role:    role,
			Content: turn.Chat,
		})
	}
	return messages, nil
}
