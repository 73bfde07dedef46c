package contract

import (
	"context"

	"persona-chat-be/internal/entity"
	"persona-chat-be/internal/repository/specification"

	"github.com/google/uuid"
)

type ThreadRepository interface {
	Create(ctx context.Context, thread *entity.Thread) error
	Update(ctx context.Context, thread *entity.Thread) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Thread, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Thread, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)

	// FinalizeTitle writes the summarized title and flips title_finalized,
	// but only while the flag is still false. Returns whether this call won
	// the transition, which makes concurrent summarization idempotent.
	FinalizeTitle(ctx context.Context, id uuid.UUID, title string) (bool, error)
}
