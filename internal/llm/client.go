package llm

import "context"

// Client is the interface that all LLM providers must implement.
// Agents make single-shot tool-choice calls, so there is no streaming
// variant; responses arrive whole.
type Client interface {
	// Chat sends a chat completion request and returns the response.
	Chat(ctx context.Context, model string, messages []Message, tools []map[string]any) (*ChatResponse, error)

	// Ping checks if the provider is reachable.
	Ping(ctx context.Context) error
}
