package agent

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/aviarysim/aviary/internal/action"
	"github.com/aviarysim/aviary/internal/llm"
	"github.com/aviarysim/aviary/internal/profiles"
	"github.com/aviarysim/aviary/internal/prompts"
	"github.com/aviarysim/aviary/internal/usage"
)

type dispatchCall struct {
	agentID int64
	action  string
	payload any
}

// platformStub answers dispatches with canned replies per action and
// records every call.
type platformStub struct {
	mu      sync.Mutex
	calls   []dispatchCall
	replies map[string]map[string]any
	errFor  map[string]error
}

func (p *platformStub) send(ctx context.Context, agentID int64, act string, payload any) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, dispatchCall{agentID: agentID, action: act, payload: payload})
	if err := p.errFor[act]; err != nil {
		return nil, err
	}
	if reply, ok := p.replies[act]; ok {
		return reply, nil
	}
	return map[string]any{"success": true}, nil
}

func (p *platformStub) actions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.calls))
	for i, c := range p.calls {
		out[i] = c.action
	}
	return out
}

type chatCall struct {
	model    string
	messages []llm.Message
	tools    []map[string]any
}

// scriptedClient returns a fixed response for every chat call.
type scriptedClient struct {
	resp  *llm.ChatResponse
	err   error
	calls []chatCall
}

func (c *scriptedClient) Chat(ctx context.Context, model string, messages []llm.Message, tools []map[string]any) (*llm.ChatResponse, error) {
	c.calls = append(c.calls, chatCall{model: model, messages: messages, tools: tools})
	if c.err != nil {
		return nil, c.err
	}
	return c.resp, nil
}

func (c *scriptedClient) Ping(ctx context.Context) error { return nil }

type recorderStub struct {
	mu   sync.Mutex
	recs []usage.Record
}

func (r *recorderStub) Record(ctx context.Context, rec usage.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs = append(r.recs, rec)
	return nil
}

func toolCall(name string, args map[string]any) llm.ToolCall {
	var tc llm.ToolCall
	tc.Function.Name = name
	tc.Function.Arguments = args
	return tc
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func observeReplies() map[string]map[string]any {
	return map[string]map[string]any{
		action.Refresh: {
			"success": true,
			"posts": []map[string]any{
				{"post_id": int64(3), "user_id": int64(2), "content": "launch day"},
			},
		},
		action.ListenFromGroup: {
			"success":       true,
			"all_groups":    map[int64]string{1: "general"},
			"joined_groups": []int64{1},
			"messages":      map[int64][]map[string]any{},
		},
	}
}

func TestActByLLMExecutesToolCalls(t *testing.T) {
	stub := &platformStub{replies: observeReplies()}
	client := &scriptedClient{resp: &llm.ChatResponse{
		Model:    "qwen3:4b",
		Provider: "ollama",
		Message: llm.Message{Role: "assistant", ToolCalls: []llm.ToolCall{
			toolCall(action.LikePost, map[string]any{"post_id": float64(3)}),
			toolCall(action.CreateComment, map[string]any{"post_id": float64(3), "content": "congrats"}),
		}},
		Done: true,
	}}
	a := New(7, profiles.Profile{Name: "Jordan", Persona: "launch watcher"}, Deps{
		Send:   stub.send,
		Client: client,
		Model:  "qwen3:4b",
		Logger: discardLogger(),
	})

	if err := a.ActByLLM(context.Background()); err != nil {
		t.Fatalf("ActByLLM: %v", err)
	}

	want := []string{action.Refresh, action.ListenFromGroup, action.LikePost, action.CreateComment}
	if got := stub.actions(); !reflect.DeepEqual(got, want) {
		t.Errorf("dispatched actions = %v, want %v", got, want)
	}
	for _, c := range stub.calls {
		if c.agentID != 7 {
			t.Errorf("dispatch for agent %d, want 7", c.agentID)
		}
	}

	if len(client.calls) != 1 {
		t.Fatalf("chat calls = %d, want 1", len(client.calls))
	}
	call := client.calls[0]
	if call.model != "qwen3:4b" {
		t.Errorf("model = %q, want %q", call.model, "qwen3:4b")
	}
	if len(call.messages) != 2 {
		t.Fatalf("messages = %d, want system + user", len(call.messages))
	}
	if call.messages[0].Role != "system" || !strings.Contains(call.messages[0].Content, "Jordan") {
		t.Errorf("system message missing persona: %q", call.messages[0].Content)
	}
	if call.messages[1].Role != "user" || !strings.Contains(call.messages[1].Content, "launch day") {
		t.Errorf("user message missing observed post: %q", call.messages[1].Content)
	}
	if len(call.tools) == 0 {
		t.Error("chat call carried no tool definitions")
	}
}

func TestActByLLMNoActions(t *testing.T) {
	stub := &platformStub{replies: observeReplies()}
	client := &scriptedClient{resp: &llm.ChatResponse{
		Model:   "qwen3:4b",
		Message: llm.Message{Role: "assistant", Content: "interesting posts today"},
		Done:    true,
	}}
	a := New(1, profiles.Profile{Name: "Sam"}, Deps{
		Send:   stub.send,
		Client: client,
		Logger: discardLogger(),
	})

	if err := a.ActByLLM(context.Background()); err != nil {
		t.Fatalf("ActByLLM: %v", err)
	}
	want := []string{action.Refresh, action.ListenFromGroup}
	if got := stub.actions(); !reflect.DeepEqual(got, want) {
		t.Errorf("dispatched actions = %v, want observation only %v", got, want)
	}
}

func TestActByLLMChatError(t *testing.T) {
	stub := &platformStub{replies: observeReplies()}
	client := &scriptedClient{err: errors.New("model offline")}
	a := New(1, profiles.Profile{Name: "Sam"}, Deps{
		Send:   stub.send,
		Client: client,
		Logger: discardLogger(),
	})

	err := a.ActByLLM(context.Background())
	if err == nil {
		t.Fatal("expected error when chat fails")
	}
	if !strings.Contains(err.Error(), "model offline") {
		t.Errorf("error = %v, want wrapped chat failure", err)
	}
	want := []string{action.Refresh, action.ListenFromGroup}
	if got := stub.actions(); !reflect.DeepEqual(got, want) {
		t.Errorf("dispatched actions = %v, want observation only %v", got, want)
	}
}

func TestActByLLMSkipsUnknownTool(t *testing.T) {
	stub := &platformStub{replies: observeReplies()}
	client := &scriptedClient{resp: &llm.ChatResponse{
		Message: llm.Message{Role: "assistant", ToolCalls: []llm.ToolCall{
			toolCall("interview", map[string]any{"prompt": "how are you"}),
			toolCall(action.LikePost, map[string]any{"post_id": float64(3)}),
		}},
		Done: true,
	}}
	a := New(1, profiles.Profile{Name: "Sam"}, Deps{
		Send:   stub.send,
		Client: client,
		Logger: discardLogger(),
	})

	if err := a.ActByLLM(context.Background()); err != nil {
		t.Fatalf("ActByLLM: %v", err)
	}
	want := []string{action.Refresh, action.ListenFromGroup, action.LikePost}
	if got := stub.actions(); !reflect.DeepEqual(got, want) {
		t.Errorf("dispatched actions = %v, want %v (interview skipped)", got, want)
	}
}

func TestActByLLMActionFailureDoesNotAbortTurn(t *testing.T) {
	stub := &platformStub{
		replies: observeReplies(),
		errFor:  map[string]error{action.LikePost: errors.New("channel hiccup")},
	}
	client := &scriptedClient{resp: &llm.ChatResponse{
		Message: llm.Message{Role: "assistant", ToolCalls: []llm.ToolCall{
			toolCall(action.LikePost, map[string]any{"post_id": float64(3)}),
			toolCall(action.CreateComment, map[string]any{"post_id": float64(3), "content": "still here"}),
		}},
		Done: true,
	}}
	a := New(1, profiles.Profile{Name: "Sam"}, Deps{
		Send:   stub.send,
		Client: client,
		Logger: discardLogger(),
	})

	if err := a.ActByLLM(context.Background()); err != nil {
		t.Fatalf("ActByLLM: %v", err)
	}
	want := []string{action.Refresh, action.ListenFromGroup, action.LikePost, action.CreateComment}
	if got := stub.actions(); !reflect.DeepEqual(got, want) {
		t.Errorf("dispatched actions = %v, want %v", got, want)
	}
}

func TestActByLLMWithoutClient(t *testing.T) {
	stub := &platformStub{}
	a := New(4, profiles.Profile{Name: "Quiet"}, Deps{Send: stub.send, Logger: discardLogger()})

	err := a.ActByLLM(context.Background())
	if err == nil {
		t.Fatal("expected error for agent without model client")
	}
	if !strings.Contains(err.Error(), "no model client") {
		t.Errorf("error = %v", err)
	}
	if len(stub.actions()) != 0 {
		t.Errorf("dispatched %v, want none", stub.actions())
	}
}

func TestActByManual(t *testing.T) {
	stub := &platformStub{replies: map[string]map[string]any{
		action.CreatePost: {"success": true, "post_id": int64(11)},
	}}
	a := New(2, profiles.Profile{Name: "Scripted"}, Deps{Send: stub.send, Logger: discardLogger()})

	reply, err := a.ActByManual(context.Background(), action.CreatePost, map[string]any{"content": "hello"})
	if err != nil {
		t.Fatalf("ActByManual: %v", err)
	}
	if reply["post_id"] != int64(11) {
		t.Errorf("reply post_id = %v, want 11", reply["post_id"])
	}

	if len(stub.calls) != 1 {
		t.Fatalf("dispatch calls = %d, want 1", len(stub.calls))
	}
	call := stub.calls[0]
	if call.agentID != 2 || call.action != action.CreatePost {
		t.Errorf("dispatched %d/%q, want 2/%q", call.agentID, call.action, action.CreatePost)
	}
	payload, ok := call.payload.(map[string]any)
	if !ok || payload["content"] != "hello" {
		t.Errorf("payload = %v, want content hello", call.payload)
	}
}

func TestInterview(t *testing.T) {
	stub := &platformStub{}
	client := &scriptedClient{resp: &llm.ChatResponse{
		Model:    "qwen3:4b",
		Provider: "ollama",
		Message:  llm.Message{Role: "assistant", Content: "  I feel optimistic.  "},
		Done:     true,
	}}
	a := New(5, profiles.Profile{Name: "Marta", Persona: "ferry devotee"}, Deps{
		Send:   stub.send,
		Client: client,
		Model:  "qwen3:4b",
		Logger: discardLogger(),
	})

	got, err := a.Interview(context.Background(), "How do you feel about the new schedule?")
	if err != nil {
		t.Fatalf("Interview: %v", err)
	}
	if got != "I feel optimistic." {
		t.Errorf("response = %q, want trimmed model content", got)
	}

	if len(client.calls) != 1 {
		t.Fatalf("chat calls = %d, want 1", len(client.calls))
	}
	call := client.calls[0]
	if call.tools != nil {
		t.Error("interview chat should not offer tools")
	}
	if !strings.Contains(call.messages[0].Content, "Marta") {
		t.Error("interview should reuse the persona system message")
	}
	if call.messages[1].Content != "How do you feel about the new schedule?" {
		t.Errorf("user message = %q", call.messages[1].Content)
	}

	if len(stub.calls) != 1 {
		t.Fatalf("dispatch calls = %d, want 1", len(stub.calls))
	}
	if stub.calls[0].action != action.Interview {
		t.Errorf("dispatched %q, want %q", stub.calls[0].action, action.Interview)
	}
	payload, _ := stub.calls[0].payload.(map[string]any)
	if payload["prompt"] != "How do you feel about the new schedule?" {
		t.Errorf("payload prompt = %v", payload["prompt"])
	}
	if payload["response"] != "I feel optimistic." {
		t.Errorf("payload response = %v", payload["response"])
	}
}

func TestUsageRecording(t *testing.T) {
	stub := &platformStub{replies: observeReplies()}
	rec := &recorderStub{}
	client := &scriptedClient{resp: &llm.ChatResponse{
		Model:        "qwen3:4b",
		Provider:     "ollama",
		Message:      llm.Message{Role: "assistant", Content: "nothing to do"},
		Done:         true,
		InputTokens:  120,
		OutputTokens: 30,
	}}
	a := New(7, profiles.Profile{Name: "Jordan"}, Deps{
		Send:   stub.send,
		Client: client,
		Model:  "qwen3:4b",
		Logger: discardLogger(),
		Usage:  rec,
	})

	if err := a.ActByLLM(context.Background()); err != nil {
		t.Fatalf("ActByLLM: %v", err)
	}

	if len(rec.recs) != 1 {
		t.Fatalf("usage records = %d, want 1", len(rec.recs))
	}
	got := rec.recs[0]
	if got.AgentID != 7 {
		t.Errorf("AgentID = %d, want 7", got.AgentID)
	}
	if got.Model != "qwen3:4b" || got.Provider != "ollama" {
		t.Errorf("model/provider = %q/%q", got.Model, got.Provider)
	}
	if got.InputTokens != 120 || got.OutputTokens != 30 {
		t.Errorf("tokens = %d/%d, want 120/30", got.InputTokens, got.OutputTokens)
	}
}

func TestSystemMessageFollowsMode(t *testing.T) {
	stub := &platformStub{}

	reddit := New(1, profiles.Profile{Name: "R"}, Deps{
		Send:   stub.send,
		Mode:   prompts.ModeReddit,
		Logger: discardLogger(),
	})
	if !strings.Contains(reddit.SystemMessage(), "# OBJECTIVE") {
		t.Error("reddit mode should use the JSON action-space prompt")
	}

	twitter := New(2, profiles.Profile{Name: "T"}, Deps{
		Send:   stub.send,
		Logger: discardLogger(),
	})
	if !strings.Contains(twitter.SystemMessage(), "hashtags") {
		t.Error("default mode should use the tool-calling prompt")
	}
}
