package model

import (
	"time"

	"github.com/google/uuid"
)

// Turn rows are append-only; there is no soft delete column because turns are
// never deleted individually, only hard-removed with their thread.
type Turn struct {
	Id         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ThreadId   uuid.UUID `gorm:"type:uuid;not null;index"`
	Role       string    `gorm:"type:varchar(50);not null"`
	Chat       string    `gorm:"type:text;not null"`
	PersonaKey string    `gorm:"type:varchar(50);not null"`
	TierLabel  string    `gorm:"type:varchar(100);not null"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index"`
}

func (Turn) TableName() string {
	return "turns"
}
