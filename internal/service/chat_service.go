package service

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"time"

	"persona-chat-be/internal/constant"
	"persona-chat-be/internal/dto"
	"persona-chat-be/internal/entity"
	"persona-chat-be/internal/repository/specification"
	"persona-chat-be/internal/repository/unitofwork"
	"persona-chat-be/pkg/chat/history"
	"persona-chat-be/pkg/chat/stream"
	"persona-chat-be/pkg/chat/thread"
	"persona-chat-be/pkg/chat/waterfall"
	"persona-chat-be/pkg/llm"
	"persona-chat-be/pkg/persona"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// IChatService defines the chat engine's service surface.
type IChatService interface {
	SendChat(ctx context.Context, userId uuid.UUID, request *dto.SendChatRequest) (*dto.SendChatResponse, error)
	SendChatStream(ctx context.Context, userId uuid.UUID, request *dto.SendChatRequest, onFragment llm.FragmentFunc) (*dto.SendChatResponse, error)
	CheckThreadAccess(ctx context.Context, userId uuid.UUID, threadId uuid.UUID) error
	GetAllThreads(ctx context.Context, userId uuid.UUID) ([]*dto.GetAllThreadsResponse, error)
	GetThreadHistory(ctx context.Context, userId uuid.UUID, threadId uuid.UUID) ([]*dto.GetThreadHistoryResponse, error)
	DeleteThread(ctx context.Context, userId uuid.UUID, threadId uuid.UUID) error
	GetPersonas(ctx context.Context) ([]*dto.PersonaResponse, error)
}

// chatService orchestrates one generation per request: resolve the thread,
// assemble the context window, run the tier waterfall, persist the exchange.
type chatService struct {
	uowFactory     unitofwork.RepositoryFactory
	resolver       *thread.Resolver
	historyLoader  *history.Loader
	dispatcher     *waterfall.Dispatcher
	titlePublisher IPublisherService
	chatLogger     *log.Logger
}

func NewChatService(
	uowFactory unitofwork.RepositoryFactory,
	resolver *thread.Resolver,
	historyLoader *history.Loader,
	dispatcher *waterfall.Dispatcher,
	titlePublisher IPublisherService,
) IChatService {
	return &chatService{
		uowFactory:     uowFactory,
		resolver:       resolver,
		historyLoader:  historyLoader,
		dispatcher:     dispatcher,
		titlePublisher: titlePublisher,
		chatLogger:     initChatLogger(),
	}
}

func initChatLogger() *log.Logger {
	logPath := filepath.Join(".", "logs", "chat_engine.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		log.Printf("Failed to create logs directory: %v", err)
	}
	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return log.New(os.Stdout, "[CHAT] ", log.LstdFlags)
	}
	return log.New(file, "", log.LstdFlags)
}

// SendChat runs a buffered generation: the reply is returned whole.
func (cs *chatService) SendChat(ctx context.Context, userId uuid.UUID, request *dto.SendChatRequest) (*dto.SendChatResponse, error) {
	return cs.send(ctx, userId, request, nil)
}

// SendChatStream runs a streaming generation: fragments are forwarded to
// onFragment as they arrive and the assembled reply is returned at the end.
// The complete reply reaches onFragment exactly once, whether the winning
// tier streamed or answered in one buffer.
func (cs *chatService) SendChatStream(ctx context.Context, userId uuid.UUID, request *dto.SendChatRequest, onFragment llm.FragmentFunc) (*dto.SendChatResponse, error) {
	return cs.send(ctx, userId, request, onFragment)
}

// CheckThreadAccess verifies a thread reference ahead of generation so the
// streaming endpoint can reject foreign or unknown refs with a proper HTTP
// status before the response stream opens.
func (cs *chatService) CheckThreadAccess(ctx context.Context, userId uuid.UUID, threadId uuid.UUID) error {
	return cs.resolver.CheckAccess(ctx, userId, threadId)
}

func (cs *chatService) send(ctx context.Context, userId uuid.UUID, request *dto.SendChatRequest, onFragment llm.FragmentFunc) (*dto.SendChatResponse, error) {
	personaKey := persona.Key(request.Persona)
	instruction, err := persona.Lookup(personaKey)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	resolution, err := cs.resolver.Resolve(ctx, userId, request.ThreadId)
	if err != nil {
		return nil, err
	}

	window, err := cs.buildWindow(ctx, userId, resolution, instruction, request)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	var assembler *stream.Assembler
	var fragment llm.FragmentFunc
	if onFragment != nil {
		assembler = stream.NewAssembler(onFragment)
		fragment = assembler.OnFragment
	}

	result, err := cs.dispatcher.Dispatch(ctx, window, fragment)
	if err != nil {
		// Total failure persists nothing. The user resubmits the same text
		// against the same (possibly still-empty) thread.
		return nil, err
	}

	reply := result.Text
	if assembler != nil {
		reply = assembler.Finalize(result.Text)
	}

	now := time.Now()
	if err := cs.persistExchange(ctx, resolution.Thread.Id, request, reply, result.TierLabel, now); err != nil {
		return nil, err
	}

	if resolution.IsNewThread {
		cs.triggerTitle(ctx, resolution.Thread.Id)
	}

	return &dto.SendChatResponse{
		ThreadId:  resolution.Thread.Id,
		Reply:     reply,
		TierLabel: result.TierLabel,
		Persona:   request.Persona,
		CreatedAt: now,
	}, nil
}

// buildWindow picks the context source: client transcript for anonymous
// callers that sent one, stored history otherwise.
func (cs *chatService) buildWindow(ctx context.Context, userId uuid.UUID, resolution *thread.Resolution, instruction string, request *dto.SendChatRequest) ([]llm.Message, error) {
	if thread.IsGuest(userId) && len(request.Transcript) > 0 {
		return cs.historyLoader.BuildFromTranscript(request.Transcript, instruction, request.Chat)
	}
	if resolution.IsNewThread {
		// Nothing stored yet; skip the history read.
		return cs.historyLoader.BuildFromTranscript(nil, instruction, request.Chat)
	}
	return cs.historyLoader.Build(ctx, resolution.Thread.Id, instruction, request.Chat), nil
}

// persistExchange appends the user turn and the assistant turn atomically.
// Either both land or neither does; a half-persisted exchange would corrupt
// every future context window for the thread.
func (cs *chatService) persistExchange(ctx context.Context, threadId uuid.UUID, request *dto.SendChatRequest, reply, tierLabel string, now time.Time) error {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	userTurn := &entity.Turn{
		Id:         uuid.New(),
		ThreadId:   threadId,
		Role:       constant.ChatMessageRoleUser,
		Chat:       request.Chat,
		PersonaKey: request.Persona,
		TierLabel:  constant.TierLabelUserInput,
		CreatedAt:  now,
	}
	if err := uow.TurnRepository().Create(ctx, userTurn); err != nil {
		return err
	}

	assistantTurn := &entity.Turn{
		Id:         uuid.New(),
		ThreadId:   threadId,
		Role:       constant.ChatMessageRoleAssistant,
		Chat:       reply,
		PersonaKey: request.Persona,
		TierLabel:  tierLabel,
		CreatedAt:  now.Add(1 * time.Millisecond),
	}
	if err := uow.TurnRepository().Create(ctx, assistantTurn); err != nil {
		return err
	}

	return uow.Commit()
}

// triggerTitle fires the background naming flow for a fresh thread. Failures
// only get logged: the sweep catches anything that slips through here.
func (cs *chatService) triggerTitle(ctx context.Context, threadId uuid.UUID) {
	if cs.titlePublisher == nil {
		return
	}
	payload, err := json.Marshal(dto.SummarizeTitleMessage{ThreadId: threadId})
	if err != nil {
		return
	}
	if err := cs.titlePublisher.Publish(ctx, payload); err != nil {
		cs.chatLogger.Printf("[TITLE] Failed to publish title trigger for thread %s: %v", threadId, err)
	}
}

// GetAllThreads lists the caller's threads, newest first.
func (cs *chatService) GetAllThreads(ctx context.Context, userId uuid.UUID) ([]*dto.GetAllThreadsResponse, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	threads, err := uow.ThreadRepository().FindAll(ctx,
		specification.OwnedBy{UserID: userId},
		specification.OrderBy{Field: "created_at", Desc: true},
	)
	if err != nil {
		return nil, err
	}

	response := make([]*dto.GetAllThreadsResponse, 0, len(threads))
	for _, t := range threads {
		response = append(response, &dto.GetAllThreadsResponse{
			Id:             t.Id,
			Title:          t.Title,
			TitleFinalized: t.TitleFinalized,
			CreatedAt:      t.CreatedAt,
			UpdatedAt:      t.UpdatedAt,
		})
	}

	return response, nil
}

// GetThreadHistory returns the full transcript of an owned thread in
// chronological order.
func (cs *chatService) GetThreadHistory(ctx context.Context, userId uuid.UUID, threadId uuid.UUID) ([]*dto.GetThreadHistoryResponse, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	owned, err := uow.ThreadRepository().FindOne(ctx,
		specification.ByID{ID: threadId},
		specification.OwnedBy{UserID: userId},
	)
	if err != nil {
		return nil, err
	}
	if owned == nil {
		return nil, thread.ErrNotFound
	}

	turns, err := uow.TurnRepository().FindAll(ctx,
		specification.ByThreadID{ThreadID: threadId},
		specification.OrderBy{Field: "created_at", Desc: false},
	)
	if err != nil {
		return nil, err
	}

	response := make([]*dto.GetThreadHistoryResponse, 0, len(turns))
	for _, turn := range turns {
		response = append(response, &dto.GetThreadHistoryResponse{
			Id:        turn.Id,
			Role:      turn.Role,
			Chat:      turn.Chat,
			Persona:   turn.PersonaKey,
			TierLabel: turn.TierLabel,
			CreatedAt: turn.CreatedAt,
		})
	}

	return response, nil
}

// DeleteThread removes an owned thread and its turns.
func (cs *chatService) DeleteThread(ctx context.Context, userId uuid.UUID, threadId uuid.UUID) error {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	owned, err := uow.ThreadRepository().FindOne(ctx,
		specification.ByID{ID: threadId},
		specification.OwnedBy{UserID: userId},
	)
	if err != nil {
		return err
	}
	if owned == nil {
		return thread.ErrNotFound
	}

	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.ThreadRepository().Delete(ctx, threadId); err != nil {
		return err
	}
	if err := uow.TurnRepository().DeleteByThreadId(ctx, threadId); err != nil {
		return err
	}

	return uow.Commit()
}

// GetPersonas lists the configured persona keys.
func (cs *chatService) GetPersonas(ctx context.Context) ([]*dto.PersonaResponse, error) {
	keys := persona.Keys()
	response := make([]*dto.PersonaResponse, 0, len(keys))
	for _, key := range keys {
		response = append(response, &dto.PersonaResponse{Key: string(key)})
	}
	return response, nil
}
