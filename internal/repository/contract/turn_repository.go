package contract

import (
	"context"

	"persona-chat-be/internal/entity"
	"persona-chat-be/internal/repository/specification"

	"github.com/google/uuid"
)

type TurnRepository interface {
	// Create appends one turn. Turns are never updated in place.
	Create(ctx context.Context, turn *entity.Turn) error
	DeleteByThreadId(ctx context.Context, threadId uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Turn, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Turn, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
