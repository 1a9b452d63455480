package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/aviarysim/aviary/internal/config"
	"github.com/aviarysim/aviary/internal/httpkit"
)

const defaultOpenAIBaseURL = "https://api.openai.com"

// OpenAIClient is a client for OpenAI-compatible chat completion APIs.
// Besides the hosted OpenAI service it covers vLLM, LM Studio, and
// other local servers that speak the same protocol.
type OpenAIClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
	limiter    *rate.Limiter
}

// NewOpenAIClient creates a client for an OpenAI-compatible endpoint.
// baseURL is the server root ("/v1/..." is appended); empty means the
// hosted OpenAI API. rps > 0 throttles requests client-side, which
// keeps a large agent population inside a hosted endpoint's rate limit.
func NewOpenAIClient(baseURL, apiKey string, rps float64, logger *slog.Logger) *OpenAIClient {
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}

	var limiter *rate.Limiter
	if rps > 0 {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}

	return &OpenAIClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		logger:  logger.With("provider", "openai"),
		limiter: limiter,
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(5*time.Minute),
			httpkit.WithRetry(2, time.Second),
			httpkit.WithLogger(logger),
		),
	}
}

// OpenAI request/response types. The wire format differs from ours in
// one important way: tool call arguments travel as a JSON-encoded
// string, not an object.

type openaiRequest struct {
	Model    string           `json:"model"`
	Messages []openaiMessage  `json:"messages"`
	Tools    []map[string]any `json:"tools,omitempty"`
}

type openaiMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCalls  []openaiToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openaiToolCall struct {
	ID       string `json:"id,omitempty"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openaiResponse struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Created int64          `json:"created"`
	Choices []openaiChoice `json:"choices"`
	Usage   openaiUsage    `json:"usage"`
}

type openaiChoice struct {
	Index        int           `json:"index"`
	Message      openaiMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openaiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Chat sends a chat completion request.
func (c *OpenAIClient) Chat(ctx context.Context, model string, messages []Message, tools []map[string]any) (*ChatResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	req := openaiRequest{
		Model:    model,
		Messages: convertToOpenAI(messages),
		Tools:    tools,
	}

	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	c.logger.Log(ctx, config.LevelTrace, "request payload", "json", string(jsonData))

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody := httpkit.ReadErrorBody(resp.Body, 4096)
		c.logger.Error("API error", "status", resp.StatusCode, "body", errBody)
		return nil, fmt.Errorf("openai API error %d: %s", resp.StatusCode, errBody)
	}

	var wire openaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(wire.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}
	result := convertFromOpenAI(&wire)

	// Local OpenAI-compatible servers front the same small models as
	// Ollama, with the same habit of answering in JSON text.
	if len(result.Message.ToolCalls) == 0 && result.Message.Content != "" {
		if parsed := parseTextToolCalls(result.Message.Content, extractToolNames(tools)); len(parsed) > 0 {
			result.Message.ToolCalls = parsed
			result.Message.Content = ""
		}
	}

	c.logger.Debug("response received",
		"model", result.Model,
		"input_tokens", result.InputTokens,
		"output_tokens", result.OutputTokens,
		"tool_calls", len(result.Message.ToolCalls),
	)
	c.logger.Log(ctx, config.LevelTrace, "response content", "content", result.Message.Content)

	return result, nil
}

// Ping checks if the endpoint is reachable and the key is accepted.
func (c *OpenAIClient) Ping(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/v1/models", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("invalid API key")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

// convertToOpenAI converts internal messages to the OpenAI wire format.
func convertToOpenAI(messages []Message) []openaiMessage {
	result := make([]openaiMessage, 0, len(messages))
	for _, msg := range messages {
		out := openaiMessage{
			Role:       msg.Role,
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		for i, tc := range msg.ToolCalls {
			args := tc.Function.Arguments
			if args == nil {
				args = map[string]any{}
			}
			encoded, err := json.Marshal(args)
			if err != nil {
				encoded = []byte("{}")
			}
			id := tc.ID
			if id == "" {
				id = fmt.Sprintf("call_%s_%d", tc.Function.Name, i)
			}
			var wire openaiToolCall
			wire.ID = id
			wire.Type = "function"
			wire.Function.Name = tc.Function.Name
			wire.Function.Arguments = string(encoded)
			out.ToolCalls = append(out.ToolCalls, wire)
		}
		result = append(result, out)
	}
	return result
}

// convertFromOpenAI converts the first choice of a response to our
// internal format.
func convertFromOpenAI(resp *openaiResponse) *ChatResponse {
	choice := resp.Choices[0]

	var toolCalls []ToolCall
	for _, wire := range choice.Message.ToolCalls {
		var args map[string]any
		if wire.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(wire.Function.Arguments), &args); err != nil {
				args = map[string]any{"_raw": wire.Function.Arguments}
			}
		}
		tc := ToolCall{ID: wire.ID}
		tc.Function.Name = wire.Function.Name
		tc.Function.Arguments = args
		toolCalls = append(toolCalls, tc)
	}

	var createdAt time.Time
	if resp.Created > 0 {
		createdAt = time.Unix(resp.Created, 0)
	}

	return &ChatResponse{
		Model:     resp.Model,
		Provider:  "openai",
		CreatedAt: createdAt,
		Message: Message{
			Role:      choice.Message.Role,
			Content:   choice.Message.Content,
			ToolCalls: toolCalls,
		},
		Done:         true,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
}
