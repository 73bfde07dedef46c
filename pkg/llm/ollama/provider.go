package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"persona-chat-be/pkg/chat/stream"
	"persona-chat-be/pkg/llm"
)

// maxRecordSize bounds a single ndjson record from the Ollama stream.
const maxRecordSize = 64 * 1024

// OllamaProvider talks to a locally hosted model reachable over a tunnel.
// The transport supports incremental delivery through newline-delimited JSON.
type OllamaProvider struct {
	BaseURL   string
	ModelName string
	Client    *http.Client
}

// Ensure OllamaProvider implements Provider
var _ llm.Provider = &OllamaProvider{}

// NewOllamaProvider creates a provider without a client-level timeout; the
// caller bounds each attempt through the request context instead.
func NewOllamaProvider(baseURL, modelName string) *OllamaProvider {
	return &OllamaProvider{
		BaseURL:   baseURL,
		ModelName: modelName,
		Client:    &http.Client{},
	}
}

// --- Request/Response structs (Internal to this package) ---

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Model   string        `json:"model"`
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

// --- Interface Implementation ---

func (o *OllamaProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	body, err := o.send(ctx, history, false, opts...)
	if err != nil {
		return "", err
	}
	defer body.Close()

	bodyBytes, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var ollamaRes ollamaChatResponse
	if err := json.Unmarshal(bodyBytes, &ollamaRes); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}

	if ollamaRes.Message.Content == "" {
		return "", llm.ErrEmptyResponse
	}
	return ollamaRes.Message.Content, nil
}

// ChatStream requests an ndjson stream and emits each decoded chunk through
// onFragment. The chunks are accumulated and returned as the full reply.
func (o *OllamaProvider) ChatStream(ctx context.Context, history []llm.Message, onFragment llm.FragmentFunc, opts ...llm.Option) (string, error) {
	body, err := o.send(ctx, history, true, opts...)
	if err != nil {
		return "", err
	}
	defer body.Close()

	var full bytes.Buffer
	decoder := stream.NewLineDecoder(body, maxRecordSize)
	for {
		record, err := decoder.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read stream: %w", err)
		}

		var chunk ollamaChatResponse
		if err := json.Unmarshal(record, &chunk); err != nil {
			return "", fmt.Errorf("unmarshal stream record: %w", err)
		}
		if chunk.Message.Content != "" {
			full.WriteString(chunk.Message.Content)
			if onFragment != nil {
				onFragment(chunk.Message.Content)
			}
		}
		if chunk.Done {
			break
		}
	}

	if full.Len() == 0 {
		return "", llm.ErrEmptyResponse
	}
	return full.String(), nil
}

// send issues the chat request and returns the raw response body on 200.
func (o *OllamaProvider) send(ctx context.Context, history []llm.Message, streaming bool, opts ...llm.Option) (io.ReadCloser, error) {
	options := &llm.Options{
		Temperature: 0.7, // Default
	}
	for _, opt := range opts {
		opt(options)
	}

	ollamaMessages := make([]ollamaMessage, len(history))
	for i, msg := range history {
		role := msg.Role
		if role == "model" {
			role = "assistant"
		}
		ollamaMessages[i] = ollamaMessage{
			Role:    role,
			Content: msg.Content,
		}
	}

	model := o.ModelName
	if options.Model != "" {
		model = options.Model
	}

	reqPayload := ollamaChatRequest{
		Model:    model,
		Messages: ollamaMessages,
		Stream:   streaming,
		Options: &ollamaOptions{
			Temperature: options.Temperature,
		},
	}
	if options.MaxTokens > 0 {
		reqPayload.Options.NumPredict = options.MaxTokens
	}

	payloadBytes, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := o.BaseURL + "/api/chat"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &llm.BackendError{Provider: "ollama", Status: resp.StatusCode, Body: string(bodyBytes)}
	}

	return resp.Body, nil
}
