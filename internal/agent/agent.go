// Package agent implements the LLM-driven personas that inhabit a
// simulation. Each agent binds a profile, a tool registry dispatching into
// the platform channel, and a model client; one ActByLLM call runs a full
// observe-decide-act turn.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aviarysim/aviary/internal/action"
	"github.com/aviarysim/aviary/internal/llm"
	"github.com/aviarysim/aviary/internal/profiles"
	"github.com/aviarysim/aviary/internal/prompts"
	"github.com/aviarysim/aviary/internal/tools"
	"github.com/aviarysim/aviary/internal/usage"
)

// UsageRecorder receives one record per LLM call. usage.Store satisfies
// it.
type UsageRecorder interface {
	Record(ctx context.Context, rec usage.Record) error
}

// Deps carries the collaborators a SocialAgent needs. Send is required;
// everything else has a workable zero value.
type Deps struct {
	// Send dispatches actions into the platform, usually
	// channel.Channel.Send.
	Send tools.Dispatch

	// Registry is the agent's available action set. Nil builds the full
	// registry over Send.
	Registry *tools.Registry

	// Client serves the agent's chat turns. Agents without a client can
	// only act manually.
	Client llm.Client

	// Model is the model name passed to Client on every call.
	Model string

	// Mode selects the prompt flavor, prompts.ModeTwitter or
	// prompts.ModeReddit.
	Mode string

	// Logger receives per-turn diagnostics. Nil falls back to
	// slog.Default.
	Logger *slog.Logger

	// Usage records token counts after each model call. Nil disables
	// recording.
	Usage UsageRecorder
}

// SocialAgent is one simulated platform user.
type SocialAgent struct {
	ID      int64
	Profile profiles.Profile

	send     tools.Dispatch
	registry *tools.Registry
	client   llm.Client
	model    string
	system   string
	logger   *slog.Logger
	usage    UsageRecorder
}

// New creates an agent for the given id and profile. The system message is
// fixed at construction: profiles do not change mid-simulation.
func New(id int64, profile profiles.Profile, deps Deps) *SocialAgent {
	registry := deps.Registry
	if registry == nil {
		registry = tools.NewRegistry(deps.Send)
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SocialAgent{
		ID:       id,
		Profile:  profile,
		send:     deps.Send,
		registry: registry,
		client:   deps.Client,
		model:    deps.Model,
		system:   prompts.SystemMessage(profile, deps.Mode, registry.List()),
		logger:   logger,
		usage:    deps.Usage,
	}
}

// SystemMessage exposes the agent's fixed system message, used verbatim
// for interviews and inspection.
func (a *SocialAgent) SystemMessage() string {
	return a.system
}

// ActByLLM runs one full turn: observe the platform (a feed refresh plus
// group chatter), ask the model for actions, and execute every tool call
// it returns. Individual action failures are logged and do not abort the
// rest of the turn; a failed observation or model call does.
func (a *SocialAgent) ActByLLM(ctx context.Context) error {
	if a.client == nil {
		return fmt.Errorf("agent %d has no model client", a.ID)
	}
	if a.send == nil {
		return fmt.Errorf("agent %d has no platform dispatch", a.ID)
	}

	env, err := a.observe(ctx)
	if err != nil {
		return err
	}

	messages := []llm.Message{
		{Role: "system", Content: a.system},
		{Role: "user", Content: prompts.UserMessage(env)},
	}
	resp, err := a.client.Chat(ctx, a.model, messages, a.registry.List())
	if err != nil {
		return fmt.Errorf("agent %d: chat: %w", a.ID, err)
	}
	a.recordUsage(ctx, resp)

	calls := resp.Message.ToolCalls
	if len(calls) == 0 {
		a.logger.Debug("model chose no actions", "agent", a.ID, "model", resp.Model)
		return nil
	}

	ctx = tools.WithAgentID(ctx, a.ID)
	for _, call := range calls {
		name := call.Function.Name
		if _, err := a.registry.Execute(ctx, name, call.Function.Arguments); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var unavailable *tools.ErrToolUnavailable
			if errors.As(err, &unavailable) {
				a.logger.Debug("skipping unavailable tool", "agent", a.ID, "tool", name)
				continue
			}
			a.logger.Warn("action failed", "agent", a.ID, "tool", name, "error", err)
		}
	}
	return nil
}

// ActByManual performs a single scripted action through the same dispatch
// path an LLM-chosen action takes, so both leave identical traces.
func (a *SocialAgent) ActByManual(ctx context.Context, act string, args map[string]any) (map[string]any, error) {
	if a.send == nil {
		return nil, fmt.Errorf("agent %d has no platform dispatch", a.ID)
	}
	return a.send(ctx, a.ID, act, args)
}

// Interview asks the persona a question outside the simulation. The
// prompt goes to the model under the agent's system message, and the
// exchange lands in the trace as a single interview action.
func (a *SocialAgent) Interview(ctx context.Context, prompt string) (string, error) {
	if a.client == nil {
		return "", fmt.Errorf("agent %d has no model client", a.ID)
	}
	if a.send == nil {
		return "", fmt.Errorf("agent %d has no platform dispatch", a.ID)
	}

	messages := []llm.Message{
		{Role: "system", Content: a.system},
		{Role: "user", Content: prompt},
	}
	resp, err := a.client.Chat(ctx, a.model, messages, nil)
	if err != nil {
		return "", fmt.Errorf("agent %d: interview: %w", a.ID, err)
	}
	a.recordUsage(ctx, resp)

	response := strings.TrimSpace(resp.Message.Content)
	if _, err := a.send(ctx, a.ID, action.Interview, map[string]any{
		"prompt":   prompt,
		"response": response,
	}); err != nil {
		return "", fmt.Errorf("agent %d: record interview: %w", a.ID, err)
	}
	return response, nil
}

// observe gathers the agent's feed and group chatter into the environment
// prompt for this turn. The refresh goes through the normal action path,
// so observing leaves the same trace a manual refresh would.
func (a *SocialAgent) observe(ctx context.Context) (string, error) {
	refresh, err := a.send(ctx, a.ID, action.Refresh, nil)
	if err != nil {
		return "", fmt.Errorf("agent %d: refresh: %w", a.ID, err)
	}
	groups, err := a.send(ctx, a.ID, action.ListenFromGroup, nil)
	if err != nil {
		return "", fmt.Errorf("agent %d: listen to groups: %w", a.ID, err)
	}
	return prompts.EnvPrompt(refresh, groups), nil
}

func (a *SocialAgent) recordUsage(ctx context.Context, resp *llm.ChatResponse) {
	if a.usage == nil {
		return
	}
	model := resp.Model
	if model == "" {
		model = a.model
	}
	rec := usage.Record{
		AgentID:      a.ID,
		Model:        model,
		Provider:     resp.Provider,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
	}
	if err := a.usage.Record(ctx, rec); err != nil {
		a.logger.Warn("usage record failed", "agent", a.ID, "error", err)
	}
}
