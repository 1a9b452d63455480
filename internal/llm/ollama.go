package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/aviarysim/aviary/internal/config"
	"github.com/aviarysim/aviary/internal/httpkit"
)

// OllamaClient is a client for the Ollama API.
type OllamaClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewOllamaClient creates a new Ollama client.
func NewOllamaClient(baseURL string, logger *slog.Logger) *OllamaClient {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OllamaClient{
		baseURL: baseURL,
		logger:  logger.With("provider", "ollama"),
		httpClient: httpkit.NewClient(
			// Large models with tools need time before the first byte,
			// and a loaded local server queues requests behind each other.
			httpkit.WithTimeout(5*time.Minute),
			httpkit.WithRetry(2, time.Second),
			httpkit.WithLogger(logger),
		),
	}
}

// ollamaChatRequest is the request format for the Ollama chat API.
type ollamaChatRequest struct {
	Model    string           `json:"model"`
	Messages []Message        `json:"messages"`
	Stream   bool             `json:"stream"`
	Tools    []map[string]any `json:"tools,omitempty"`
}

// ollamaWireResponse is the raw /api/chat response. Ollama reports
// times as RFC 3339 strings and durations as nanosecond integers.
type ollamaWireResponse struct {
	Model     string  `json:"model"`
	CreatedAt string  `json:"created_at"`
	Message   Message `json:"message"`
	Done      bool    `json:"done"`

	TotalDuration      int64 `json:"total_duration,omitempty"`
	LoadDuration       int64 `json:"load_duration,omitempty"`
	PromptEvalCount    int   `json:"prompt_eval_count,omitempty"`
	PromptEvalDuration int64 `json:"prompt_eval_duration,omitempty"`
	EvalCount          int   `json:"eval_count,omitempty"`
	EvalDuration       int64 `json:"eval_duration,omitempty"`
}

// toChatResponse converts the wire format to the provider-neutral form.
func (w *ollamaWireResponse) toChatResponse() *ChatResponse {
	var createdAt time.Time
	if w.CreatedAt != "" {
		if t, err := time.Parse(time.RFC3339Nano, w.CreatedAt); err == nil {
			createdAt = t
		}
	}
	return &ChatResponse{
		Model:         w.Model,
		Provider:      "ollama",
		CreatedAt:     createdAt,
		Message:       w.Message,
		Done:          w.Done,
		InputTokens:   w.PromptEvalCount,
		OutputTokens:  w.EvalCount,
		TotalDuration: time.Duration(w.TotalDuration),
		LoadDuration:  time.Duration(w.LoadDuration),
		EvalDuration:  time.Duration(w.EvalDuration),
	}
}

// Chat sends a chat completion request to Ollama.
func (c *OllamaClient) Chat(ctx context.Context, model string, messages []Message, tools []map[string]any) (*ChatResponse, error) {
	req := ollamaChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   false,
		Tools:    tools,
	}

	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	c.logger.Log(ctx, config.LevelTrace, "request payload", "json", string(jsonData))

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/chat", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody := httpkit.ReadErrorBody(resp.Body, 4096)
		c.logger.Error("API error", "status", resp.StatusCode, "body", errBody)
		return nil, fmt.Errorf("ollama API error %d: %s", resp.StatusCode, errBody)
	}

	var wire ollamaWireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	result := wire.toChatResponse()

	// Many small models answer with the tool call as JSON text instead
	// of using the native tool_calls field.
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

// Ping checks if Ollama is reachable.
func (c *OllamaClient) Ping(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API error %d", resp.StatusCode)
	}

	return nil
}

// ListModels returns the models available on the server.
func (c *OllamaClient) ListModels(ctx context.Context) ([]string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	names := make([]string, len(result.Models))
	for i, m := range result.Models {
		names[i] = m.Name
	}
	return names, nil
}

// rawToolCall is the shape models emit when they answer with JSON in
// the content instead of native tool_calls.
type rawToolCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// parseTextToolCalls attempts to extract tool calls from content text.
// Many models output tool calls as JSON in the content rather than
// using the native tool_calls field. Handled formats:
//   - Raw JSON object: {"name": "...", "arguments": {...}}
//   - Concatenated objects: {...}{...}{...}, trailing prose ignored
//   - JSON array: [{"name": "...", "arguments": {...}}]
//   - Functions envelope: {"reason": "...", "functions": [{...}]}, the
//     shape the JSON-format system prompt asks for
//   - Tagged: <tool_call>...</tool_call>
//   - Bare name: tool_name {"arg": ...}
//
// When validTools is non-empty, calls naming unknown tools are dropped.
func parseTextToolCalls(content string, validTools []string) []ToolCall {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	// Extract from <tool_call> tags, ignoring any preamble.
	if start := strings.Index(content, "<tool_call>"); start != -1 {
		end := strings.Index(content, "</tool_call>")
		if end > start {
			content = strings.TrimSpace(content[start+len("<tool_call>") : end])
		} else {
			// No closing tag, take rest of content
			content = strings.TrimSpace(content[start+len("<tool_call>"):])
		}
	}

	var raw []rawToolCall
	switch {
	case strings.HasPrefix(content, "["):
		if err := json.Unmarshal([]byte(content), &raw); err != nil {
			return nil
		}
	case strings.HasPrefix(content, "{"):
		raw = decodeEnvelope(content)
		if raw == nil {
			raw = decodeConcatenated(content)
		}
	default:
		name, rest, ok := splitNameJSON(content)
		if !ok {
			return nil
		}
		var args map[string]any
		if err := json.NewDecoder(strings.NewReader(rest)).Decode(&args); err != nil {
			return nil
		}
		raw = []rawToolCall{{Name: name, Arguments: args}}
	}

	valid := make(map[string]bool, len(validTools))
	for _, name := range validTools {
		valid[name] = true
	}

	var result []ToolCall
	for _, rc := range raw {
		if rc.Name == "" {
			continue
		}
		if len(valid) > 0 && !valid[rc.Name] {
			continue
		}
		var tc ToolCall
		tc.Function.Name = rc.Name
		tc.Function.Arguments = rc.Arguments
		result = append(result, tc)
	}
	return result
}

// decodeEnvelope unwraps a {"reason": ..., "functions": [...]} reply.
// Trailing prose after the closing brace is ignored. Returns nil when
// the content is not such an envelope.
func decodeEnvelope(content string) []rawToolCall {
	var env struct {
		Functions []rawToolCall `json:"functions"`
	}
	if err := json.NewDecoder(strings.NewReader(content)).Decode(&env); err != nil {
		return nil
	}
	return env.Functions
}

// decodeConcatenated reads successive JSON objects from the front of
// content, stopping at the first decode error. Some models emit several
// calls back to back and then keep talking.
func decodeConcatenated(content string) []rawToolCall {
	dec := json.NewDecoder(strings.NewReader(content))
	var raw []rawToolCall
	for {
		var rc rawToolCall
		if err := dec.Decode(&rc); err != nil {
			break
		}
		raw = append(raw, rc)
	}
	return raw
}

// splitNameJSON splits "tool_name {json...}" into the name and the
// JSON remainder. The name must look like a tool identifier.
func splitNameJSON(content string) (name, rest string, ok bool) {
	brace := strings.Index(content, "{")
	if brace <= 0 {
		return "", "", false
	}
	name = strings.TrimSpace(content[:brace])
	if name == "" || !isToolName(name) {
		return "", "", false
	}
	return name, content[brace:], true
}

func isToolName(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}
	return true
}

// extractToolNames pulls the function names out of OpenAI-format tool
// definitions, for validating text-parsed tool calls.
func extractToolNames(tools []map[string]any) []string {
	if len(tools) == 0 {
		return nil
	}
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		fn, ok := tool["function"].(map[string]any)
		if !ok {
			continue
		}
		if name, _ := fn["name"].(string); name != "" {
			names = append(names, name)
		}
	}
	return names
}
