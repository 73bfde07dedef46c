package serverutils

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"persona-chat-be/pkg/chat/thread"
	"persona-chat-be/pkg/chat/waterfall"
)

// ErrorHandlerMiddleware converts errors that escape a handler into the
// standard response envelope. Handlers that already wrote a status keep it.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		code := fiber.StatusInternalServerError
		message := err.Error()

		var fiberErr *fiber.Error
		switch {
		case errors.As(err, &fiberErr):
			code = fiberErr.Code
			message = fiberErr.Message
		case errors.Is(err, thread.ErrOwnership):
			code = fiber.StatusForbidden
		case errors.Is(err, thread.ErrNotFound):
			code = fiber.StatusNotFound
		case errors.Is(err, waterfall.ErrAllTiersExhausted):
			code = fiber.StatusServiceUnavailable
			message = "All generation backends are unavailable, please retry"
		case errors.Is(err, waterfall.ErrStreamInterrupted):
			code = fiber.StatusServiceUnavailable
		}

		return ctx.Status(code).JSON(ErrorResponse(code, message))
	}
}
