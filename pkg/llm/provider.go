package llm

import (
	"context"
	"errors"
	"fmt"
)

// Message represents a chat message in a provider-agnostic format
type Message struct {
	Role    string // "user", "assistant", "system"
	Content string
}

// FragmentFunc receives incremental response text as a provider produces it.
// Providers that do not stream call it once with the full reply.
type FragmentFunc func(text string)

// ErrEmptyResponse marks an HTTP-level success whose payload carried no text.
// It must never be treated as a successful generation.
var ErrEmptyResponse = errors.New("backend returned empty response")

// BackendError is a backend-reported rejection (non-2xx status or an error
// field inside a 2xx body).
type BackendError struct {
	Provider string
	Status   int
	Body     string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s rejected request: status %d, body: %s", e.Provider, e.Status, e.Body)
}

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string // Override default model
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

// Provider defines the contract for any generation backend.
type Provider interface {
	// Chat sends a chat history to the model and returns the full response.
	Chat(ctx context.Context, history []Message, options ...Option) (string, error)

	// ChatStream behaves like Chat but additionally emits fragments through
	// onFragment as they arrive. The returned string is always the complete
	// concatenated reply, so callers that ignore fragments lose nothing.
	// Providers without a streaming transport emit a single terminal fragment.
	ChatStream(ctx context.Context, history []Message, onFragment FragmentFunc, options ...Option) (string, error)
}
