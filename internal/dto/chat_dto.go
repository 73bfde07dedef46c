package dto

import (
	"time"

	"github.com/google/uuid"
)

// TranscriptEntry is one prior turn supplied directly by a stateless client
// in place of server-side history. Only honored for anonymous callers.
type TranscriptEntry struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type SendChatRequest struct {
	Chat       string            `json:"chat" validate:"required"`
	Persona    string            `json:"persona" validate:"required"`
	ThreadId   *uuid.UUID        `json:"thread_id,omitempty"`
	Transcript []TranscriptEntry `json:"transcript,omitempty"`
}

type SendChatResponse struct {
	ThreadId  uuid.UUID `json:"thread_id"`
	Reply     string    `json:"reply"`
	TierLabel string    `json:"tier"`
	Persona   string    `json:"persona"`
	CreatedAt time.Time `json:"created_at"`
}

type GetAllThreadsResponse struct {
	Id             uuid.UUID  `json:"id"`
	Title          string     `json:"title"`
	TitleFinalized bool       `json:"title_finalized"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
}

type GetThreadHistoryResponse struct {
	Id        uuid.UUID `json:"id"`
	Role      string    `json:"role"`
	Chat      string    `json:"chat"`
	Persona   string    `json:"persona"`
	TierLabel string    `json:"tier"`
	CreatedAt time.Time `json:"created_at"`
}

type PersonaResponse struct {
	Key string `json:"key"`
}

// SummarizeTitleMessage is the payload published on the title topic when a
// thread becomes eligible for background naming.
type SummarizeTitleMessage struct {
	ThreadId uuid.UUID `json:"thread_id"`
}
