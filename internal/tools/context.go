package tools

import "context"

type contextKey string

const agentIDKey contextKey = "agent_id"

// WithAgentID binds the acting agent's id to the context. Tool handlers
// recover it to address platform requests.
func WithAgentID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, agentIDKey, id)
}

// AgentIDFromContext extracts the acting agent's id from the context.
// The second return is false when no agent is bound.
func AgentIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(agentIDKey).(int64)
	return id, ok
}
