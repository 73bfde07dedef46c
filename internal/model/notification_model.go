package model

import (
	"time"

	"github.com/google/uuid"
)

// ThreadNotification is the payload pushed over websocket when something
// happens to one of the user's threads (currently title finalization).
type ThreadNotification struct {
	Type       string    `json:"type"`
	ThreadId   uuid.UUID `json:"thread_id"`
	Title      string    `json:"title,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
