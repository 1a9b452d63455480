package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestConvertToOpenAI(t *testing.T) {
	var follow ToolCall
	follow.ID = "call_abc"
	follow.Function.Name = "follow"
	follow.Function.Arguments = map[string]any{"followee_id": 4}

	messages := []Message{
		{Role: "system", Content: "You are a social media user."},
		{Role: "user", Content: "Decide what to do."},
		{Role: "assistant", ToolCalls: []ToolCall{follow}},
		{Role: "tool", Content: `{"success": true}`, ToolCallID: "call_abc"},
	}

	result := convertToOpenAI(messages)

	if len(result) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(result))
	}
	if result[0].Role != "system" {
		t.Errorf("first role = %q, want system", result[0].Role)
	}

	if len(result[2].ToolCalls) != 1 {
		t.Fatalf("assistant tool calls = %d, want 1", len(result[2].ToolCalls))
	}
	wire := result[2].ToolCalls[0]
	if wire.ID != "call_abc" {
		t.Errorf("tool call ID = %q, want call_abc", wire.ID)
	}
	if wire.Type != "function" {
		t.Errorf("tool call type = %q, want function", wire.Type)
	}
	if wire.Function.Name != "follow" {
		t.Errorf("tool name = %q, want follow", wire.Function.Name)
	}
	// OpenAI carries arguments as a JSON string
	var args map[string]any
	if err := json.Unmarshal([]byte(wire.Function.Arguments), &args); err != nil {
		t.Fatalf("arguments not valid JSON: %v", err)
	}
	if args["followee_id"] != float64(4) {
		t.Errorf("followee_id = %v, want 4", args["followee_id"])
	}

	if result[3].ToolCallID != "call_abc" {
		t.Errorf("tool result ToolCallID = %q, want call_abc", result[3].ToolCallID)
	}
}

func TestConvertToOpenAISynthesizesToolCallID(t *testing.T) {
	var tc ToolCall
	tc.Function.Name = "refresh"
	tc.Function.Arguments = nil

	result := convertToOpenAI([]Message{{Role: "assistant", ToolCalls: []ToolCall{tc}}})

	if len(result) != 1 || len(result[0].ToolCalls) != 1 {
		t.Fatal("expected one message with one tool call")
	}
	if result[0].ToolCalls[0].ID == "" {
		t.Error("expected synthesized ID for tool call without one")
	}
	if result[0].ToolCalls[0].Function.Arguments != "{}" {
		t.Errorf("nil arguments encoded as %q, want {}", result[0].ToolCalls[0].Function.Arguments)
	}
}

func TestConvertFromOpenAI(t *testing.T) {
	raw := `{
		"id": "chatcmpl-123",
		"model": "gpt-4o-mini",
		"created": 1767225600,
		"choices": [{
			"index": 0,
			"message": {
				"role": "assistant",
				"content": "",
				"tool_calls": [{
					"id": "call_xyz",
					"type": "function",
					"function": {
						"name": "create_post",
						"arguments": "{\"content\": \"just setting up my account\"}"
					}
				}]
			},
			"finish_reason": "tool_calls"
		}],
		"usage": {"prompt_tokens": 310, "completion_tokens": 28, "total_tokens": 338}
	}`

	var wire openaiResponse
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	result := convertFromOpenAI(&wire)

	if result.Model != "gpt-4o-mini" {
		t.Errorf("Model = %q", result.Model)
	}
	if result.CreatedAt.IsZero() {
		t.Error("CreatedAt is zero, expected parsed unix time")
	}
	if len(result.Message.ToolCalls) != 1 {
		t.Fatalf("ToolCalls = %d, want 1", len(result.Message.ToolCalls))
	}
	tc := result.Message.ToolCalls[0]
	if tc.ID != "call_xyz" {
		t.Errorf("ToolCall.ID = %q, want call_xyz", tc.ID)
	}
	if tc.Function.Name != "create_post" {
		t.Errorf("tool name = %q, want create_post", tc.Function.Name)
	}
	if tc.Function.Arguments["content"] != "just setting up my account" {
		t.Errorf("content arg = %v", tc.Function.Arguments["content"])
	}
	if result.Provider != "openai" {
		t.Errorf("Provider = %q, want %q", result.Provider, "openai")
	}
	if result.InputTokens != 310 {
		t.Errorf("InputTokens = %d, want 310", result.InputTokens)
	}
	if result.OutputTokens != 28 {
		t.Errorf("OutputTokens = %d, want 28", result.OutputTokens)
	}
	if !result.Done {
		t.Error("Done = false, want true")
	}
}

func TestConvertFromOpenAIMalformedArguments(t *testing.T) {
	wire := &openaiResponse{
		Model: "gpt-4o-mini",
		Choices: []openaiChoice{{
			Message: openaiMessage{
				Role: "assistant",
				ToolCalls: []openaiToolCall{func() openaiToolCall {
					var tc openaiToolCall
					tc.ID = "call_bad"
					tc.Type = "function"
					tc.Function.Name = "like_post"
					tc.Function.Arguments = `{"post_id": `
					return tc
				}()},
			},
		}},
	}

	result := convertFromOpenAI(wire)

	if len(result.Message.ToolCalls) != 1 {
		t.Fatalf("ToolCalls = %d, want 1", len(result.Message.ToolCalls))
	}
	// The raw text is preserved so the failure is debuggable.
	args := result.Message.ToolCalls[0].Function.Arguments
	if args["_raw"] != `{"post_id": ` {
		t.Errorf("expected _raw fallback with original text, got %v", args)
	}
}

func TestOpenAIChat(t *testing.T) {
	var gotPath, gotAuth string
	var gotReq openaiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		fmt.Fprint(w, `{
			"id": "chatcmpl-1",
			"model": "gpt-4o-mini",
			"created": 1767225600,
			"choices": [{
				"index": 0,
				"message": {"role": "assistant", "content": "Skipping this round."},
				"finish_reason": "stop"
			}],
			"usage": {"prompt_tokens": 120, "completion_tokens": 6, "total_tokens": 126}
		}`)
	}))
	defer srv.Close()

	client := NewOpenAIClient(srv.URL, "sk-test", 0, nil)
	resp, err := client.Chat(context.Background(), "gpt-4o-mini", []Message{{Role: "user", Content: "act"}}, sampleTools())
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if gotPath != "/v1/chat/completions" {
		t.Errorf("request path = %q, want /v1/chat/completions", gotPath)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q, want Bearer sk-test", gotAuth)
	}
	if gotReq.Model != "gpt-4o-mini" {
		t.Errorf("request model = %q", gotReq.Model)
	}
	if len(gotReq.Tools) != 2 {
		t.Errorf("request tools = %d, want 2", len(gotReq.Tools))
	}

	if resp.Message.Content != "Skipping this round." {
		t.Errorf("content = %q", resp.Message.Content)
	}
	if resp.InputTokens != 120 || resp.OutputTokens != 6 {
		t.Errorf("tokens = %d/%d, want 120/6", resp.InputTokens, resp.OutputTokens)
	}
}

func TestOpenAIChatNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id": "chatcmpl-1", "model": "gpt-4o-mini", "choices": []}`)
	}))
	defer srv.Close()

	client := NewOpenAIClient(srv.URL, "sk-test", 0, nil)
	_, err := client.Chat(context.Background(), "gpt-4o-mini", []Message{{Role: "user", Content: "hi"}}, nil)
	if err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestOpenAIPingRejectsBadKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			t.Errorf("ping path = %q, want /v1/models", r.URL.Path)
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewOpenAIClient(srv.URL, "sk-bad", 0, nil)
	if err := client.Ping(context.Background()); err == nil {
		t.Error("expected error for 401 response")
	}
}

func TestOpenAIRateLimiterOnlyWhenConfigured(t *testing.T) {
	unlimited := NewOpenAIClient("http://example.invalid", "k", 0, nil)
	if unlimited.limiter != nil {
		t.Error("rps 0 should not install a limiter")
	}

	limited := NewOpenAIClient("http://example.invalid", "k", 4, nil)
	if limited.limiter == nil {
		t.Fatal("rps 4 should install a limiter")
	}
	if got := float64(limited.limiter.Limit()); got != 4 {
		t.Errorf("limiter rate = %v, want 4", got)
	}
}
