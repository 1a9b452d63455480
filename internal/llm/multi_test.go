package llm

import (
	"context"
	"fmt"
	"testing"
)

// stubClient records calls and returns a canned response.
type stubClient struct {
	name    string
	calls   int
	lastMod string
	pingErr error
}

func (s *stubClient) Chat(ctx context.Context, model string, messages []Message, tools []map[string]any) (*ChatResponse, error) {
	s.calls++
	s.lastMod = model
	return &ChatResponse{Model: model, Message: Message{Role: "assistant", Content: s.name}, Done: true}, nil
}

func (s *stubClient) Ping(ctx context.Context) error { return s.pingErr }

func TestMultiClientRoutesByModel(t *testing.T) {
	local := &stubClient{name: "local"}
	hosted := &stubClient{name: "hosted"}

	m := NewMultiClient(local)
	m.AddProvider("ollama", local)
	m.AddProvider("openai", hosted)
	m.AddModel("qwen3:4b", "ollama")
	m.AddModel("gpt-4o-mini", "openai")

	resp, err := m.Chat(context.Background(), "gpt-4o-mini", []Message{{Role: "user", Content: "hi"}}, nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Message.Content != "hosted" {
		t.Errorf("routed to %q, want hosted", resp.Message.Content)
	}
	if hosted.calls != 1 || local.calls != 0 {
		t.Errorf("calls = hosted %d local %d, want 1/0", hosted.calls, local.calls)
	}
}

func TestMultiClientFallsBackForUnknownModel(t *testing.T) {
	local := &stubClient{name: "local"}
	m := NewMultiClient(local)
	m.AddProvider("ollama", local)
	m.AddModel("qwen3:4b", "ollama")

	resp, err := m.Chat(context.Background(), "mystery:latest", nil, nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Message.Content != "local" {
		t.Errorf("fallback routed to %q, want local", resp.Message.Content)
	}
}

func TestMultiClientNoProvider(t *testing.T) {
	m := NewMultiClient(nil)
	if _, err := m.Chat(context.Background(), "anything", nil, nil); err == nil {
		t.Error("expected error with no fallback configured")
	}
	if err := m.Ping(context.Background()); err == nil {
		t.Error("expected Ping error with no fallback configured")
	}
}

func TestRoundRobinCycles(t *testing.T) {
	a := &stubClient{name: "a"}
	b := &stubClient{name: "b"}
	c := &stubClient{name: "c"}
	rr := NewRoundRobin(a, b, c)

	want := []string{"a", "b", "c", "a", "b"}
	for i, expected := range want {
		resp, err := rr.Chat(context.Background(), "qwen3:4b", nil, nil)
		if err != nil {
			t.Fatalf("Chat %d: %v", i, err)
		}
		if resp.Message.Content != expected {
			t.Errorf("call %d went to %q, want %q", i, resp.Message.Content, expected)
		}
	}
	if a.calls != 2 || b.calls != 2 || c.calls != 1 {
		t.Errorf("calls = %d/%d/%d, want 2/2/1", a.calls, b.calls, c.calls)
	}
}

func TestRoundRobinEmpty(t *testing.T) {
	rr := NewRoundRobin()
	if _, err := rr.Chat(context.Background(), "m", nil, nil); err == nil {
		t.Error("expected error with no backends")
	}
	if err := rr.Ping(context.Background()); err == nil {
		t.Error("expected Ping error with no backends")
	}
}

func TestRoundRobinPingAnyHealthy(t *testing.T) {
	down := &stubClient{name: "down", pingErr: fmt.Errorf("connection refused")}
	up := &stubClient{name: "up"}

	if err := NewRoundRobin(down, up).Ping(context.Background()); err != nil {
		t.Errorf("Ping with one healthy backend: %v", err)
	}

	if err := NewRoundRobin(down, down).Ping(context.Background()); err == nil {
		t.Error("expected Ping error when every backend is down")
	}
}

func TestClientImplementations(t *testing.T) {
	// Compile-time checks that every provider satisfies Client
	var _ Client = (*OllamaClient)(nil)
	var _ Client = (*OpenAIClient)(nil)
	var _ Client = (*MultiClient)(nil)
	var _ Client = (*RoundRobin)(nil)
}
