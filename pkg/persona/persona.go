package persona

import "fmt"

// Key names one configured persona. The set is closed: an unknown key is a
// validation error, never a silent fallback.
type Key string

const (
	KeyCasual  Key = "casual"
	KeyScholar Key = "scholar"
	KeyConcise Key = "concise"
	KeyCoach   Key = "coach"

	Default = KeyCasual
)

// instructions maps each key to the system instruction injected at the front
// of every context window. The engine treats the text as opaque.
var instructions = map[Key]string{
	KeyCasual: `You are a friendly conversational companion. Keep the tone relaxed and warm, ` +
		`use everyday language, and feel free to be a little playful. Answer the user's ` +
		`question directly before adding color.`,

	KeyScholar: `You are a meticulous research assistant. Answer precisely, cite the reasoning ` +
		`behind claims, acknowledge uncertainty explicitly, and prefer structured, complete ` +
		`explanations over brevity.`,

	KeyConcise: `You are a terse expert. Answer in as few words as accuracy allows. No greetings, ` +
		`no filler, no restating the question. One short paragraph maximum unless the user ` +
		`asks for detail.`,

	KeyCoach: `You are an encouraging personal coach. Help the user reason through their own ` +
		`problem: ask one clarifying question when the goal is vague, reflect their ideas back, ` +
		`and end with a concrete next step.`,
}

// Lookup returns the instruction text for key.
func Lookup(key Key) (string, error) {
	instruction, ok := instructions[key]
	if !ok {
		return "", fmt.Errorf("unknown persona key: %q", key)
	}
	return instruction, nil
}

// Valid reports whether key names a configured persona.
func Valid(key Key) bool {
	_, ok := instructions[key]
	return ok
}

// Keys returns all configured persona keys in a stable order.
func Keys() []Key {
	return []Key{KeyCasual, KeyScholar, KeyConcise, KeyCoach}
}
