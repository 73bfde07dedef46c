package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ByThreadID filters turns by their thread
type ByThreadID struct {
	ThreadID uuid.UUID
}

func (s ByThreadID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("thread_id = ?", s.ThreadID)
}

// TitlePending selects threads the background summarizer still has to label
type TitlePending struct{}

func (s TitlePending) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("title_finalized = ?", false)
}
