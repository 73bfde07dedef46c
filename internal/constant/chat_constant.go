package constant

import "github.com/google/uuid"

const (
	ChatMessageRoleUser      = "user"
	ChatMessageRoleAssistant = "assistant"
	ChatMessageRoleSystem    = "system"

	// TierLabelUserInput marks turns typed by the user rather than produced
	// by a generation tier.
	TierLabelUserInput = "user-input"

	// ContextWindowTurns bounds how many stored turns feed one generation
	// call. Keeps backend request size predictable.
	ContextWindowTurns = 15

	// ThreadPlaceholderTitle is set on lazily created threads until the
	// background summarizer produces a real one.
	ThreadPlaceholderTitle = "New conversation"

	// ThreadTitleMaxLength truncates summarizer output.
	ThreadTitleMaxLength = 80

	// TitleTopicName is the in-process topic a new thread's first exchange is
	// announced on; the consumer triggers title summarization.
	TitleTopicName = "SUMMARIZE_THREAD_TITLE"

	// NatsThreadTitledEvent is published when a thread's title is finalized.
	NatsThreadTitledEvent = "THREAD_TITLED"
)

// GuestUserId is the reserved owner identity for unauthenticated callers.
// Guest threads are still persisted so the exchange can continue server-side.
var GuestUserId = uuid.MustParse("00000000-0000-0000-0000-000000000001")
