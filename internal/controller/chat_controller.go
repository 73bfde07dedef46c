package controller

import (
	"bufio"
	"encoding/json"
	"errors"

	"persona-chat-be/internal/dto"
	"persona-chat-be/internal/pkg/serverutils"
	"persona-chat-be/internal/service"
	"persona-chat-be/pkg/chat/thread"
	"persona-chat-be/pkg/chat/waterfall"
	"persona-chat-be/pkg/persona"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	SendChat(ctx *fiber.Ctx) error
	SendChatStream(ctx *fiber.Ctx) error
	GetAllThreads(ctx *fiber.Ctx) error
	GetThreadHistory(ctx *fiber.Ctx) error
	DeleteThread(ctx *fiber.Ctx) error
	GetPersonas(ctx *fiber.Ctx) error
}

type chatController struct {
	chatService service.IChatService
}

func NewChatController(chatService service.IChatService) IChatController {
	return &chatController{
		chatService: chatService,
	}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1")

	// Generation and persona listing stay open to guests.
	h.Post("/send", serverutils.OptionalJwtMiddleware, c.SendChat)
	h.Post("/stream", serverutils.OptionalJwtMiddleware, c.SendChatStream)
	h.Get("/personas", c.GetPersonas)

	// Thread management needs a real identity.
	threads := h.Group("/threads")
	threads.Use(serverutils.JwtMiddleware)
	threads.Get("", c.GetAllThreads)
	threads.Get(":id/history", c.GetThreadHistory)
	threads.Delete(":id", c.DeleteThread)
}

func (c *chatController) SendChat(ctx *fiber.Ctx) error {
	userId := serverutils.UserIdFromLocals(ctx)

	var req dto.SendChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	res, err := c.chatService.SendChat(ctx.Context(), userId, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success send chat", res))
}

// streamEvent is one NDJSON line on the streaming endpoint. Fragment events
// carry text; the terminal event carries the thread metadata, mirroring the
// buffered response.
type streamEvent struct {
	Type     string     `json:"type"` // "fragment", "done", "error"
	Text     string     `json:"text,omitempty"`
	ThreadId *uuid.UUID `json:"thread_id,omitempty"`
	Tier     string     `json:"tier,omitempty"`
	Persona  string     `json:"persona,omitempty"`
	Message  string     `json:"message,omitempty"`
}

// SendChatStream streams the reply as NDJSON events. Validation, persona and
// thread-access failures are rejected with a proper HTTP status before the
// stream opens; failures after that arrive as a terminal error event.
func (c *chatController) SendChatStream(ctx *fiber.Ctx) error {
	userId := serverutils.UserIdFromLocals(ctx)

	var req dto.SendChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	if _, err := persona.Lookup(persona.Key(req.Persona)); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	if req.ThreadId != nil {
		if err := c.chatService.CheckThreadAccess(ctx.Context(), userId, *req.ThreadId); err != nil {
			return err
		}
	}

	userCtx := ctx.UserContext()

	ctx.Set(fiber.HeaderContentType, "application/x-ndjson")
	ctx.Set(fiber.HeaderCacheControl, "no-cache")

	ctx.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		writeEvent := func(event streamEvent) {
			line, err := json.Marshal(event)
			if err != nil {
				return
			}
			w.Write(line)
			w.WriteByte('\n')
			w.Flush()
		}

		res, err := c.chatService.SendChatStream(userCtx, userId, &req, func(text string) {
			writeEvent(streamEvent{Type: "fragment", Text: text})
		})
		if err != nil {
			writeEvent(streamEvent{Type: "error", Message: streamErrorMessage(err)})
			return
		}

		writeEvent(streamEvent{
			Type:     "done",
			ThreadId: &res.ThreadId,
			Tier:     res.TierLabel,
			Persona:  res.Persona,
		})
	}))

	return nil
}

// streamErrorMessage keeps backend detail out of the wire while staying
// actionable for the client.
func streamErrorMessage(err error) string {
	switch {
	case errors.Is(err, waterfall.ErrAllTiersExhausted):
		return "All generation backends are unavailable, please retry"
	case errors.Is(err, waterfall.ErrStreamInterrupted):
		return "Generation was interrupted, please retry"
	case errors.Is(err, thread.ErrOwnership):
		return "Thread access denied"
	case errors.Is(err, thread.ErrNotFound):
		return "Thread not found"
	default:
		return err.Error()
	}
}

func (c *chatController) GetAllThreads(ctx *fiber.Ctx) error {
	userId := serverutils.UserIdFromLocals(ctx)

	res, err := c.chatService.GetAllThreads(ctx.Context(), userId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get threads", res))
}

func (c *chatController) GetThreadHistory(ctx *fiber.Ctx) error {
	userId := serverutils.UserIdFromLocals(ctx)

	threadId, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid thread id")
	}

	res, err := c.chatService.GetThreadHistory(ctx.Context(), userId, threadId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get thread history", res))
}

func (c *chatController) DeleteThread(ctx *fiber.Ctx) error {
	userId := serverutils.UserIdFromLocals(ctx)

	threadId, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid thread id")
	}

	if err := c.chatService.DeleteThread(ctx.Context(), userId, threadId); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success delete thread", nil))
}

func (c *chatController) GetPersonas(ctx *fiber.Ctx) error {
	res, err := c.chatService.GetPersonas(ctx.Context())
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get personas", res))
}
