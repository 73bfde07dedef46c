package prompt

import (
	"strings"

	"persona-chat-be/internal/constant"
	"persona-chat-be/pkg/llm"
)

// Flatten renders a structured context window as a single instruction-tagged
// text block, for backends that accept only one prompt string. Turn order is
// preserved and the persona instruction is never dropped.
func Flatten(messages []llm.Message) string {
	var b strings.Builder

	var turns []llm.Message
	for _, msg := range messages {
		if msg.Role == constant.ChatMessageRoleSystem {
			b.WriteString("<instructions>\n")
			b.WriteString(msg.Content)
			b.WriteString("\n</instructions>\n\n")
			continue
		}
		turns = append(turns, msg)
	}

	if len(turns) > 1 {
		b.WriteString("<conversation>\n")
		for _, msg := range turns[:len(turns)-1] {
			b.WriteString(msg.Role)
			b.WriteString(": ")
			b.WriteString(msg.Content)
			b.WriteString("\n")
		}
		b.WriteString("</conversation>\n\n")
	}

	if len(turns) > 0 {
		last := turns[len(turns)-1]
		b.WriteString(last.Role)
		b.WriteString(": ")
		b.WriteString(last.Content)
		b.WriteString("\n")
	}

	b.WriteString("assistant:")
	return b.String()
}
