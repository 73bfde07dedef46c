package serverutils

import (
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"persona-chat-be/internal/constant"
)

func JwtMiddleware(ctx *fiber.Ctx) error {
	authHeader := ctx.Get("Authorization")
	if len(authHeader) < 7 || authHeader[:7] != "Bearer " {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Missing token"})
	}
	tokenStr := authHeader[7:]

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		return []byte(os.Getenv("JWT_SECRET")), nil
	})

	if err != nil || !token.Valid {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Invalid token"})
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Invalid claims"})
	}

	ctx.Locals("user_id", claims["user_id"])
	return ctx.Next()
}

// OptionalJwtMiddleware resolves identity without requiring it. A valid
// bearer token sets the real user id; everything else falls back to the
// shared guest identity so chat endpoints stay open to anonymous use.
func OptionalJwtMiddleware(ctx *fiber.Ctx) error {
	authHeader := ctx.Get("Authorization")
	if len(authHeader) < 7 || authHeader[:7] != "Bearer " {
		ctx.Locals("user_id", constant.GuestUserId.String())
		return ctx.Next()
	}
	tokenStr := authHeader[7:]

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		return []byte(os.Getenv("JWT_SECRET")), nil
	})
	if err != nil || !token.Valid {
		ctx.Locals("user_id", constant.GuestUserId.String())
		return ctx.Next()
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		ctx.Locals("user_id", constant.GuestUserId.String())
		return ctx.Next()
	}

	ctx.Locals("user_id", claims["user_id"])
	return ctx.Next()
}

// UserIdFromLocals reads the identity set by the JWT middlewares. A missing
// or malformed value means guest.
func UserIdFromLocals(ctx *fiber.Ctx) uuid.UUID {
	raw, ok := ctx.Locals("user_id").(string)
	if !ok {
		return constant.GuestUserId
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return constant.GuestUserId
	}
	return id
}
