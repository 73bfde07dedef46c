package entity

import (
	"time"

	"github.com/google/uuid"
)

// Turn is one persisted message within a thread. Immutable once written:
// turns are only ever appended, never updated.
type Turn struct {
	Id         uuid.UUID
	ThreadId   uuid.UUID
	Role       string
	Chat       string
	PersonaKey string
	TierLabel  string
	CreatedAt  time.Time
}
