// Package tools defines the platform actions exposed to agents as LLM tools.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/aviarysim/aviary/internal/action"
)

// Tool represents a callable tool.
type Tool struct {
	Name        string                                                         `json:"name"`
	Description string                                                         `json:"description"`
	Parameters  map[string]any                                                 `json:"parameters"`
	Handler     func(ctx context.Context, args map[string]any) (string, error) `json:"-"`
}

// Dispatch sends one platform request on behalf of an agent and returns
// the platform's reply. channel.Channel.Send satisfies it.
type Dispatch func(ctx context.Context, agentID int64, act string, payload any) (map[string]any, error)

// Registry holds available tools.
type Registry struct {
	tools    map[string]*Tool
	dispatch Dispatch
}

// NewRegistry creates a registry with every agent-facing platform action
// bound to dispatch. The interview action is driver-initiated and never
// registered as a tool.
func NewRegistry(dispatch Dispatch) *Registry {
	r := &Registry{
		tools:    make(map[string]*Tool),
		dispatch: dispatch,
	}
	r.registerBuiltins()
	return r
}

// ForActions creates a registry restricted to the allowed action names.
// Unknown names and the interview action are skipped. An empty list
// means no restriction.
func ForActions(dispatch Dispatch, allowed []string) *Registry {
	full := NewRegistry(dispatch)
	if len(allowed) == 0 {
		return full
	}
	include := make([]string, 0, len(allowed))
	for _, name := range allowed {
		if name == action.Interview {
			continue
		}
		include = append(include, name)
	}
	return full.FilteredCopy(include)
}

func (r *Registry) registerBuiltins() {
	// Feed
	r.Register(&Tool{
		Name:        action.Refresh,
		Description: "Refresh your feed to see a new batch of recommended posts. Use this to find out what is happening on the platform.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		Handler: r.handle(action.Refresh),
	})
	r.Register(&Tool{
		Name:        action.Trend,
		Description: "See the recent posts with the most likes. Use this to find out what is popular right now.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		Handler: r.handle(action.Trend),
	})
	r.Register(&Tool{
		Name:        action.SearchPosts,
		Description: "Search posts by keyword. Matches post content and ids.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The keyword or phrase to search for",
				},
			},
			"required": []string{"query"},
		},
		Handler: r.handle(action.SearchPosts),
	})
	r.Register(&Tool{
		Name:        action.SearchUser,
		Description: "Search users by name, username, or bio.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The keyword to search for",
				},
			},
			"required": []string{"query"},
		},
		Handler: r.handle(action.SearchUser),
	})

	// Posts
	r.Register(&Tool{
		Name:        action.CreatePost,
		Description: "Publish a new post under your own name. Other users may see it, like it, comment on it, or share it.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"content": map[string]any{
					"type":        "string",
					"description": "The text of the post",
				},
			},
			"required": []string{"content"},
		},
		Handler: r.handle(action.CreatePost),
	})
	r.Register(&Tool{
		Name:        action.Repost,
		Description: "Share an existing post with your followers without adding commentary. Sharing the same post twice is rejected.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"post_id": map[string]any{
					"type":        "integer",
					"description": "The id of the post to share",
				},
			},
			"required": []string{"post_id"},
		},
		Handler: r.handle(action.Repost),
	})
	r.Register(&Tool{
		Name:        action.QuotePost,
		Description: "Share an existing post with your own commentary attached.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"post_id": map[string]any{
					"type":        "integer",
					"description": "The id of the post to quote",
				},
				"quote_content": map[string]any{
					"type":        "string",
					"description": "Your commentary on the post",
				},
			},
			"required": []string{"post_id", "quote_content"},
		},
		Handler: r.handle(action.QuotePost),
	})
	r.Register(&Tool{
		Name:        action.LikePost,
		Description: "Like a post. Fails if you already liked it.",
		Parameters:  postIDParams("The id of the post to like"),
		Handler:     r.handle(action.LikePost),
	})
	r.Register(&Tool{
		Name:        action.UnlikePost,
		Description: "Remove your like from a post.",
		Parameters:  postIDParams("The id of the post to unlike"),
		Handler:     r.handle(action.UnlikePost),
	})
	r.Register(&Tool{
		Name:        action.DislikePost,
		Description: "Dislike a post. Fails if you already disliked it.",
		Parameters:  postIDParams("The id of the post to dislike"),
		Handler:     r.handle(action.DislikePost),
	})
	r.Register(&Tool{
		Name:        action.UndoDislikePost,
		Description: "Remove your dislike from a post.",
		Parameters:  postIDParams("The id of the post"),
		Handler:     r.handle(action.UndoDislikePost),
	})
	r.Register(&Tool{
		Name:        action.ReportPost,
		Description: "Report a post that violates platform rules, giving a short reason.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"post_id": map[string]any{
					"type":        "integer",
					"description": "The id of the post to report",
				},
				"reason": map[string]any{
					"type":        "string",
					"description": "Why the post should be reviewed",
				},
			},
			"required": []string{"post_id", "reason"},
		},
		Handler: r.handle(action.ReportPost),
	})

	// Comments
	r.Register(&Tool{
		Name:        action.CreateComment,
		Description: "Comment on a post.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"post_id": map[string]any{
					"type":        "integer",
					"description": "The id of the post to comment on",
				},
				"content": map[string]any{
					"type":        "string",
					"description": "The text of the comment",
				},
			},
			"required": []string{"post_id", "content"},
		},
		Handler: r.handle(action.CreateComment),
	})
	r.Register(&Tool{
		Name:        action.LikeComment,
		Description: "Like a comment. Fails if you already liked it.",
		Parameters:  commentIDParams("The id of the comment to like"),
		Handler:     r.handle(action.LikeComment),
	})
	r.Register(&Tool{
		Name:        action.UnlikeComment,
		Description: "Remove your like from a comment.",
		Parameters:  commentIDParams("The id of the comment to unlike"),
		Handler:     r.handle(action.UnlikeComment),
	})
	r.Register(&Tool{
		Name:        action.DislikeComment,
		Description: "Dislike a comment. Fails if you already disliked it.",
		Parameters:  commentIDParams("The id of the comment to dislike"),
		Handler:     r.handle(action.DislikeComment),
	})
	r.Register(&Tool{
		Name:        action.UndoDislikeComment,
		Description: "Remove your dislike from a comment.",
		Parameters:  commentIDParams("The id of the comment"),
		Handler:     r.handle(action.UndoDislikeComment),
	})

	// Social graph
	r.Register(&Tool{
		Name:        action.Follow,
		Description: "Follow another user so their posts appear in your feed.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"followee_id": map[string]any{
					"type":        "integer",
					"description": "The id of the user to follow",
				},
			},
			"required": []string{"followee_id"},
		},
		Handler: r.handle(action.Follow),
	})
	r.Register(&Tool{
		Name:        action.Unfollow,
		Description: "Stop following a user.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"followee_id": map[string]any{
					"type":        "integer",
					"description": "The id of the user to unfollow",
				},
			},
			"required": []string{"followee_id"},
		},
		Handler: r.handle(action.Unfollow),
	})
	r.Register(&Tool{
		Name:        action.Mute,
		Description: "Hide a user's posts from your feed without unfollowing them. They are not notified.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"mutee_id": map[string]any{
					"type":        "integer",
					"description": "The id of the user to mute",
				},
			},
			"required": []string{"mutee_id"},
		},
		Handler: r.handle(action.Mute),
	})
	r.Register(&Tool{
		Name:        action.Unmute,
		Description: "Show a muted user's posts in your feed again.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"mutee_id": map[string]any{
					"type":        "integer",
					"description": "The id of the user to unmute",
				},
			},
			"required": []string{"mutee_id"},
		},
		Handler: r.handle(action.Unmute),
	})

	// Groups
	r.Register(&Tool{
		Name:        action.CreateGroup,
		Description: "Create a new group chat channel. You join it automatically.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"group_name": map[string]any{
					"type":        "string",
					"description": "The name of the new group",
				},
			},
			"required": []string{"group_name"},
		},
		Handler: r.handle(action.CreateGroup),
	})
	r.Register(&Tool{
		Name:        action.JoinGroup,
		Description: "Join an existing group chat channel.",
		Parameters:  groupIDParams("The id of the group to join"),
		Handler:     r.handle(action.JoinGroup),
	})
	r.Register(&Tool{
		Name:        action.LeaveGroup,
		Description: "Leave a group chat channel you are a member of.",
		Parameters:  groupIDParams("The id of the group to leave"),
		Handler:     r.handle(action.LeaveGroup),
	})
	r.Register(&Tool{
		Name:        action.SendToGroup,
		Description: "Send a message to a group chat channel. You must be a member of the group.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"group_id": map[string]any{
					"type":        "integer",
					"description": "The id of the group to message",
				},
				"message": map[string]any{
					"type":        "string",
					"description": "The message text",
				},
			},
			"required": []string{"group_id", "message"},
		},
		Handler: r.handle(action.SendToGroup),
	})
	r.Register(&Tool{
		Name:        action.ListenFromGroup,
		Description: "See the group chat channels on the platform, the ones you joined, and their recent messages.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		Handler: r.handle(action.ListenFromGroup),
	})

	// Commerce
	r.Register(&Tool{
		Name:        action.SignUpProduct,
		Description: "List a product for sale under your own name.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"product_id": map[string]any{
					"type":        "integer",
					"description": "The id to sell the product under",
				},
				"product_name": map[string]any{
					"type":        "string",
					"description": "The name of the product",
				},
			},
			"required": []string{"product_id", "product_name"},
		},
		Handler: r.handle(action.SignUpProduct),
	})
	r.Register(&Tool{
		Name:        action.PurchaseProduct,
		Description: "Purchase a quantity of a listed product by name.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"product_name": map[string]any{
					"type":        "string",
					"description": "The name of the product to buy",
				},
				"purchase_num": map[string]any{
					"type":        "integer",
					"description": "How many to buy",
				},
			},
			"required": []string{"product_name", "purchase_num"},
		},
		Handler: r.handle(action.PurchaseProduct),
	})

	// Account
	r.Register(&Tool{
		Name:        action.SignUp,
		Description: "Register an account with a username, a display name, and a bio.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"user_name": map[string]any{
					"type":        "string",
					"description": "Unique login name",
				},
				"name": map[string]any{
					"type":        "string",
					"description": "Display name",
				},
				"bio": map[string]any{
					"type":        "string",
					"description": "Short self-description",
				},
			},
			"required": []string{"user_name", "name", "bio"},
		},
		Handler: r.handle(action.SignUp),
	})
	r.Register(&Tool{
		Name:        action.DoNothing,
		Description: "Take no action this turn. Choose this when nothing in your feed deserves a response.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		Handler: r.handle(action.DoNothing),
	})
}

// handle builds a handler that forwards the tool call to the platform as
// the agent bound to the context and returns the reply as JSON text.
func (r *Registry) handle(act string) func(ctx context.Context, args map[string]any) (string, error) {
	return func(ctx context.Context, args map[string]any) (string, error) {
		agentID, ok := AgentIDFromContext(ctx)
		if !ok {
			return "", fmt.Errorf("%s: no agent bound to context", act)
		}
		if r.dispatch == nil {
			return "", fmt.Errorf("%s: registry has no dispatcher", act)
		}
		reply, err := r.dispatch(ctx, agentID, act, args)
		if err != nil {
			return "", err
		}
		out, err := json.Marshal(reply)
		if err != nil {
			return "", fmt.Errorf("encoding %s reply: %w", act, err)
		}
		return string(out), nil
	}
}

func postIDParams(description string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"post_id": map[string]any{
				"type":        "integer",
				"description": description,
			},
		},
		"required": []string{"post_id"},
	}
}

func commentIDParams(description string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"comment_id": map[string]any{
				"type":        "integer",
				"description": description,
			},
		},
		"required": []string{"comment_id"},
	}
}

func groupIDParams(description string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"group_id": map[string]any{
				"type":        "integer",
				"description": description,
			},
		},
		"required": []string{"group_id"},
	}
}

// Register adds a tool to the registry.
func (r *Registry) Register(t *Tool) {
	r.tools[t.Name] = t
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) *Tool {
	return r.tools[name]
}

// List returns all tool schemas for the chat APIs, sorted by name so
// repeated calls produce identical schema lists.
func (r *Registry) List() []map[string]any {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	result := make([]map[string]any, 0, len(names))
	for _, name := range names {
		t := r.tools[name]
		result = append(result, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.Parameters,
			},
		})
	}
	return result
}

// Execute runs a tool by name with the given arguments.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	tool := r.tools[name]
	if tool == nil {
		return "", &ErrToolUnavailable{ToolName: name}
	}
	return tool.Handler(ctx, args)
}
