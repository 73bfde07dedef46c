package mapper

import (
	"time"

	"persona-chat-be/internal/entity"
	"persona-chat-be/internal/model"

	"gorm.io/gorm"
)

type ChatMapper struct{}

func NewChatMapper() *ChatMapper {
	return &ChatMapper{}
}

// Thread Mappers

func (m *ChatMapper) ThreadToEntity(t *model.Thread) *entity.Thread {
	if t == nil {
		return nil
	}

	var deletedAt *time.Time
	if t.DeletedAt.Valid {
		ts := t.DeletedAt.Time
		deletedAt = &ts
	}

	var updatedAt *time.Time
	if !t.UpdatedAt.IsZero() {
		ts := t.UpdatedAt
		updatedAt = &ts
	}

	return &entity.Thread{
		Id:             t.Id,
		UserId:         t.UserId,
		Title:          t.Title,
		TitleFinalized: t.TitleFinalized,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      updatedAt,
		DeletedAt:      deletedAt,
		IsDeleted:      t.DeletedAt.Valid,
	}
}

func (m *ChatMapper) ThreadToModel(t *entity.Thread) *model.Thread {
	if t == nil {
		return nil
	}

	var deletedAt gorm.DeletedAt
	if t.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *t.DeletedAt, Valid: true}
	} else if t.IsDeleted {
		deletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	}

	var updatedAt time.Time
	if t.UpdatedAt != nil {
		updatedAt = *t.UpdatedAt
	}

	return &model.Thread{
		Id:             t.Id,
		UserId:         t.UserId,
		Title:          t.Title,
		TitleFinalized: t.TitleFinalized,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      updatedAt,
		DeletedAt:      deletedAt,
	}
}

// Turn Mappers

func (m *ChatMapper) TurnToEntity(t *model.Turn) *entity.Turn {
	if t == nil {
		return nil
	}

	return &entity.Turn{
		Id:         t.Id,
		ThreadId:   t.ThreadId,
		Role:       t.Role,
		Chat:       t.Chat,
		PersonaKey: t.PersonaKey,
		TierLabel:  t.TierLabel,
		CreatedAt:  t.CreatedAt,
	}
}

func (m *ChatMapper) TurnToModel(t *entity.Turn) *model.Turn {
	if t == nil {
		return nil
	}

	return &model.Turn{
		Id:         t.Id,
		ThreadId:   t.ThreadId,
		Role:       t.Role,
		Chat:       t.Chat,
		PersonaKey: t.PersonaKey,
		TierLabel:  t.TierLabel,
		CreatedAt:  t.CreatedAt,
	}
}

func (m *ChatMapper) TurnsToEntities(models []*model.Turn) []*entity.Turn {
	entities := make([]*entity.Turn, len(models))
	for i, t := range models {
		entities[i] = m.TurnToEntity(t)
	}
	return entities
}
